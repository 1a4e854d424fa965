package content

import (
	"context"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

type sourceState int

const (
	srcStart sourceState = iota
	srcSchema
	srcTable
	srcRows
	srcDone
)

// ArchiveSource streams the rows of an archive whose structure was already
// imported. Table documents are decoded token by token, so only one row is
// held in memory; LOB files are opened when the sink reads them.
type ArchiveSource struct {
	storage  core.ArchiveStorage
	aux      core.ArchiveStorage
	resolver pathstrategy.ContentResolver
	db       *model.Database

	state sourceState
	si    int
	ti    int
	cur   *tableReader
}

// NewArchiveSource returns a source over db's content. aux is the container
// holding externally stored LOBs and may be nil.
func NewArchiveSource(storage core.ArchiveStorage, resolver pathstrategy.ContentResolver, db *model.Database, aux core.ArchiveStorage) *ArchiveSource {
	return &ArchiveSource{storage: storage, aux: aux, resolver: resolver, db: db}
}

func (s *ArchiveSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	switch s.state {
	case srcStart:
		s.state = srcSchema
		return Structure(s.db), nil

	case srcSchema:
		if s.si >= len(s.db.Schemas) {
			s.state = srcDone
			return End(), nil
		}
		s.ti = 0
		s.state = srcTable
		return OpenSchema(s.db.Schemas[s.si].Name), nil

	case srcTable:
		schema := s.db.Schemas[s.si]
		if s.ti >= len(schema.Tables) {
			s.si++
			s.state = srcSchema
			return CloseSchema(schema.Name), nil
		}
		t := schema.Tables[s.ti]
		r, err := s.openTable(schema.Name, t)
		if err != nil {
			s.ti++
			return Event{}, &core.TableError{TableID: t.ID(), Err: err}
		}
		s.cur = r
		s.state = srcRows
		return OpenTable(t.ID()), nil

	case srcRows:
		row, err := s.cur.next()
		if err == nil {
			return Row(row), nil
		}
		if core.IsRowLocal(err) {
			return Event{}, err
		}
		id := s.cur.table.ID()
		s.closeTable()
		if errors.Is(err, io.EOF) {
			return CloseTable(id), nil
		}
		return Event{}, &core.TableError{TableID: id, Err: err}
	}
	return Event{}, io.EOF
}

func (s *ArchiveSource) openTable(schema string, t *model.Table) (*tableReader, error) {
	paths, err := s.resolver.ResolveContentPath(schema, t.ID())
	if err != nil {
		return nil, err
	}
	rc, err := s.storage.CreateInputStream(paths.XML)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", paths.XML, err)
	}
	log.Printf("[CONTENT] Reading table %s from %s", t.ID(), paths.XML)
	return &tableReader{src: s, schema: schema, table: t, rc: rc, dec: xml.NewDecoder(rc)}, nil
}

func (s *ArchiveSource) closeTable() {
	s.ti++
	s.state = srcTable
	if s.cur != nil {
		s.cur.rc.Close()
		s.cur = nil
	}
}

// Close releases the open table document.
func (s *ArchiveSource) Close() error {
	if s.cur == nil {
		return nil
	}
	err := s.cur.rc.Close()
	s.cur = nil
	return err
}

// maxArrayElements bounds the element index accepted in composed cells.
const maxArrayElements = 1 << 16

type tableReader struct {
	src    *ArchiveSource
	schema string
	table  *model.Table
	rc     io.ReadCloser
	dec    *xml.Decoder
	index  int64
}

// cellProblem rejects the row being decoded; the decoder stays in sync.
type cellProblem struct {
	reason string
	err    error
}

func (p *cellProblem) Error() string {
	if p.err != nil {
		return p.reason + ": " + p.err.Error()
	}
	return p.reason
}

func (r *tableReader) next() (*model.Row, error) {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: unexpected end of table document", core.ErrParse)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
			case "row":
				r.index++
				return r.readRow()
			default:
				return nil, fmt.Errorf("%w: unexpected element %s", core.ErrParse, t.Name.Local)
			}
		case xml.EndElement:
			if t.Name.Local == "table" {
				return nil, io.EOF
			}
		}
	}
}

func (r *tableReader) readRow() (*model.Row, error) {
	row := model.NewRow(r.index, len(r.table.Columns))
	var problem *cellProblem
	for {
		tok, err := r.dec.Token()
		if err != nil {
			row.Release()
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrParse, r.index, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			idx, ok := elementIndex(t.Name.Local, "c")
			if !ok {
				row.Release()
				return nil, fmt.Errorf("%w: row %d: unexpected element %s", core.ErrParse, r.index, t.Name.Local)
			}
			if idx > len(r.table.Columns) {
				if err := r.dec.Skip(); err != nil {
					row.Release()
					return nil, fmt.Errorf("%w: row %d: %v", core.ErrParse, r.index, err)
				}
				if problem == nil {
					problem = &cellProblem{reason: fmt.Sprintf("cell %s exceeds the %d columns of the table", t.Name.Local, len(r.table.Columns))}
				}
				continue
			}
			col := r.table.Columns[idx-1]
			cell, err := r.readCell(t, col.Type, col.ID())
			if err != nil {
				var cp *cellProblem
				if !errors.As(err, &cp) {
					row.Release()
					return nil, err
				}
				if problem == nil {
					problem = cp
				}
				continue
			}
			row.Cells[idx-1] = cell
		case xml.EndElement:
			if problem != nil {
				row.Release()
				return nil, &core.DataError{Subject: rowSubject(r.table.ID(), r.index), Reason: problem.Error()}
			}
			return row, nil
		}
	}
}

// readCell decodes the element opened by start, consuming it completely.
func (r *tableReader) readCell(start xml.StartElement, t *datatype.Type, columnID string) (model.Cell, error) {
	if file, ok := attr(start, "file"); ok {
		if err := r.dec.Skip(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		length, _ := attr(start, "length")
		return r.lobCell(t, columnID, file, length)
	}
	if t != nil && t.IsComposed() {
		return r.composedCell(t, columnID)
	}

	var (
		text    strings.Builder
		problem *cellProblem
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		switch v := tok.(type) {
		case xml.CharData:
			text.Write(v)
		case xml.StartElement:
			if err := r.dec.Skip(); err != nil {
				return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
			}
			problem = &cellProblem{reason: "unexpected element " + v.Name.Local + " in " + start.Name.Local}
		case xml.EndElement:
			if problem != nil {
				return nil, problem
			}
			value := UnescapeText(text.String())
			if t != nil && t.IsBinary() {
				b, err := hex.DecodeString(strings.TrimSpace(value))
				if err != nil {
					return nil, &cellProblem{reason: "invalid hex value in " + start.Name.Local, err: err}
				}
				return model.NewBinaryCellFromBytes(b), nil
			}
			return model.SimpleCell{Text: value}, nil
		}
	}
}

func (r *tableReader) composedCell(t *datatype.Type, columnID string) (model.Cell, error) {
	var (
		prefix   string
		children []model.Cell
		typeAt   func(i int) *datatype.Type
	)
	switch v := t.Variant.(type) {
	case datatype.Structure:
		prefix = "u"
		children = nullCells(len(v.Fields))
		typeAt = func(i int) *datatype.Type {
			if i < len(v.Fields) {
				return v.Fields[i].Type
			}
			return nil
		}
	case datatype.Array:
		prefix = "a"
		if v.DeclaredLength != nil {
			children = nullCells(*v.DeclaredLength)
		}
		typeAt = func(int) *datatype.Type { return v.Element }
	}

	var problem error
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		switch v := tok.(type) {
		case xml.StartElement:
			idx, ok := elementIndex(v.Name.Local, prefix)
			if !ok || idx > maxArrayElements {
				if err := r.dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
				}
				problem = &cellProblem{reason: "unexpected element " + v.Name.Local}
				continue
			}
			cell, err := r.readCell(v, typeAt(idx-1), columnID)
			if err != nil {
				var cp *cellProblem
				if !errors.As(err, &cp) {
					return nil, err
				}
				problem = cp
				continue
			}
			for len(children) < idx {
				children = append(children, model.NullCell{})
			}
			children[idx-1] = cell
		case xml.EndElement:
			if problem != nil {
				(&model.Row{Cells: children}).Release()
				return nil, problem
			}
			return model.ComposedCell{Children: children}, nil
		}
	}
}

// lobCell resolves a file reference. Text LOBs are read at once; binary LOBs
// are opened when consumed.
func (r *tableReader) lobCell(t *datatype.Type, columnID, file, length string) (model.Cell, error) {
	path, err := r.src.resolver.ResolveLOBPath("", r.schema, r.table.ID(), columnID, file)
	if err != nil {
		return nil, &cellProblem{reason: "failed to resolve lob " + file, err: err}
	}
	storage := r.src.storage
	if strings.HasPrefix(file, "..") {
		if r.src.aux == nil {
			return nil, &cellProblem{reason: "lob " + file + " is stored outside the archive"}
		}
		storage = r.src.aux
	}
	if !storage.Exists(path) {
		return nil, &cellProblem{reason: "lob file " + path + " not found"}
	}

	if t == nil || !t.IsBinary() {
		rc, err := storage.CreateInputStream(path)
		if err != nil {
			return nil, &cellProblem{reason: "failed to open lob " + path, err: err}
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, &cellProblem{reason: "failed to read lob " + path, err: err}
		}
		return model.SimpleCell{Text: string(data)}, nil
	}

	size, _ := strconv.ParseInt(length, 10, 64)
	return model.NewBinaryCell(size, func() (io.ReadCloser, error) {
		return storage.CreateInputStream(path)
	}), nil
}

func attr(e xml.StartElement, name string) (string, bool) {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// elementIndex parses the 1-based index of names like c3, a2 or u1.
func elementIndex(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func nullCells(n int) []model.Cell {
	out := make([]model.Cell, n)
	for i := range out {
		out[i] = model.NullCell{}
	}
	return out
}
