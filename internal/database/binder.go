package database

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// ErrUnsupportedValue is returned for a scanned value with no lexical form.
var ErrUnsupportedValue = errors.New("unsupported driver value")

// dateTimeLayouts are the XML Schema lexical forms accepted for date, time
// and timestamp cells, most specific first.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02Z07:00",
	"2006-01-02",
	"15:04:05.999999999Z07:00",
	"15:04:05.999999999",
}

// Binder converts cells between their archive lexical form and the native
// values handed to and received from database drivers.
type Binder struct{}

// NewBinder creates a binder.
func NewBinder() *Binder {
	return &Binder{}
}

// Bind converts c into a driver argument using the column type t. Values of
// unsupported types are bound as text.
func (b *Binder) Bind(t *datatype.Type, c model.Cell) (any, error) {
	switch v := c.(type) {
	case nil, model.NullCell:
		return nil, nil
	case *model.BinaryCell:
		data, err := v.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to read binary value: %w", err)
		}
		if t != nil {
			if _, ok := t.Variant.(datatype.Text); ok {
				return string(data), nil
			}
		}
		return data, nil
	case model.ComposedCell:
		return b.compositeLiteral(t, v)
	case model.SimpleCell:
		return b.bindText(t, v.Text)
	}
	return nil, fmt.Errorf("cannot bind %T", c)
}

func (b *Binder) bindText(t *datatype.Type, s string) (any, error) {
	if t == nil {
		return s, nil
	}
	switch v := t.Variant.(type) {
	case datatype.NumericExact:
		s = strings.TrimSpace(s)
		if v.Scale == 0 {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
		}
		if _, ok := new(big.Rat).SetString(s); !ok {
			return nil, fmt.Errorf("cannot convert %q to an exact number", s)
		}
		// decimals are bound as text so no precision is lost
		return s, nil
	case datatype.NumericApproximate:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	case datatype.Boolean:
		return parseBool(s)
	case datatype.DateTime:
		return ParseDateTime(s)
	case datatype.Binary:
		data, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("cannot convert hex string to bytes: %w", err)
		}
		return data, nil
	}
	return s, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t", "yes":
		return true, nil
	case "false", "0", "f", "no":
		return false, nil
	}
	return false, fmt.Errorf("cannot convert %q to bool", s)
}

// ParseDateTime parses the XML Schema lexical forms of date, time and
// dateTime values.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot convert %q to a date/time", s)
}

// compositeLiteral renders a row or array literal, e.g. ("Main St",7) or {1,2}.
func (b *Binder) compositeLiteral(t *datatype.Type, c model.ComposedCell) (string, error) {
	lb, rb := "(", ")"
	childType := func(int) *datatype.Type { return nil }
	if t != nil {
		switch v := t.Variant.(type) {
		case datatype.Array:
			lb, rb = "{", "}"
			childType = func(int) *datatype.Type { return v.Element }
		case datatype.Structure:
			childType = func(i int) *datatype.Type {
				if i < len(v.Fields) {
					return v.Fields[i].Type
				}
				return nil
			}
		}
	}
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		switch cv := child.(type) {
		case model.NullCell:
			if lb == "{" {
				parts[i] = "NULL"
			}
		case model.ComposedCell:
			s, err := b.compositeLiteral(childType(i), cv)
			if err != nil {
				return "", err
			}
			parts[i] = quoteElement(s)
		case model.SimpleCell:
			parts[i] = quoteElement(cv.Text)
		case *model.BinaryCell:
			data, err := cv.Bytes()
			if err != nil {
				return "", fmt.Errorf("failed to read binary value: %w", err)
			}
			parts[i] = quoteElement(`\x` + hex.EncodeToString(data))
		}
	}
	return lb + strings.Join(parts, ",") + rb, nil
}

func quoteElement(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// Lexical converts a value scanned from a driver into a cell for a leaf of
// type t. Binary values become byte cells; everything else is rendered in
// its XML Schema lexical form. A value of any other Go type fails with
// ErrUnsupportedValue.
func (b *Binder) Lexical(t *datatype.Type, v any) (model.Cell, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		v = val
	}
	if v == nil {
		return model.NullCell{}, nil
	}
	binary := t != nil && t.IsBinary()
	switch x := v.(type) {
	case []byte:
		if binary {
			return model.NewBinaryCellFromBytes(append([]byte(nil), x...)), nil
		}
		return model.SimpleCell{Text: string(x)}, nil
	case string:
		if binary {
			return model.NewBinaryCellFromBytes([]byte(x)), nil
		}
		return model.SimpleCell{Text: x}, nil
	case time.Time:
		return model.SimpleCell{Text: formatDateTime(t, x)}, nil
	case bool:
		return model.SimpleCell{Text: strconv.FormatBool(x)}, nil
	case int64:
		return model.SimpleCell{Text: strconv.FormatInt(x, 10)}, nil
	case int32:
		return model.SimpleCell{Text: strconv.FormatInt(int64(x), 10)}, nil
	case int16:
		return model.SimpleCell{Text: strconv.FormatInt(int64(x), 10)}, nil
	case int8:
		return model.SimpleCell{Text: strconv.FormatInt(int64(x), 10)}, nil
	case int:
		return model.SimpleCell{Text: strconv.Itoa(x)}, nil
	case uint64:
		return model.SimpleCell{Text: strconv.FormatUint(x, 10)}, nil
	case uint32:
		return model.SimpleCell{Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint16:
		return model.SimpleCell{Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint8:
		return model.SimpleCell{Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint:
		return model.SimpleCell{Text: strconv.FormatUint(uint64(x), 10)}, nil
	case float64:
		return model.SimpleCell{Text: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case float32:
		return model.SimpleCell{Text: strconv.FormatFloat(float64(x), 'g', -1, 32)}, nil
	case [16]byte:
		return model.SimpleCell{Text: formatUUID(x)}, nil
	case []any:
		if t != nil {
			if arr, ok := t.Variant.(datatype.Array); ok {
				children := make([]model.Cell, len(x))
				for i, elem := range x {
					c, err := b.Lexical(arr.Element, elem)
					if err != nil {
						return nil, err
					}
					children[i] = c
				}
				return model.ComposedCell{Children: children}, nil
			}
		}
		return b.jsonText(x)
	case map[string]any:
		return b.jsonText(x)
	case fmt.Stringer:
		return model.SimpleCell{Text: x.String()}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// jsonText renders decoded json and jsonb values back into text.
func (b *Binder) jsonText(v any) (model.Cell, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to render json value: %w", err)
	}
	return model.SimpleCell{Text: string(data)}, nil
}

func formatUUID(u [16]byte) string {
	h := hex.EncodeToString(u[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:]
}

func formatDateTime(t *datatype.Type, v time.Time) string {
	dt := datatype.DateTime{HasDate: true, HasTime: true}
	if t != nil {
		if declared, ok := t.Variant.(datatype.DateTime); ok {
			dt = declared
		}
	}
	switch {
	case dt.HasDate && !dt.HasTime:
		return v.Format("2006-01-02")
	case dt.HasTime && !dt.HasDate:
		if dt.HasTimezone {
			return v.Format("15:04:05.999999999Z07:00")
		}
		return v.Format("15:04:05.999999999")
	case dt.HasTimezone:
		return v.Format("2006-01-02T15:04:05.999999999Z07:00")
	}
	return v.Format("2006-01-02T15:04:05.999999999")
}
