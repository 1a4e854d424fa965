// Package datatype holds the canonical representation of a column type.
//
// A Type wraps exactly one Variant plus the names it was known by: the vendor
// name reported by the source, and up to two standard names (SQL:1999 and
// SQL:2008) used when the type is written back out.
package datatype

import (
	"fmt"
	"strings"
)

// Variant is implemented by every concrete type shape. The set is closed;
// the unexported marker keeps other packages from adding variants.
type Variant interface {
	// Kind returns a short identifier for the variant, used in logs and reports.
	Kind() string

	variant()
}

// Type is a normalized column type.
type Type struct {
	Variant Variant

	// OriginalName is the type name as reported by the source.
	OriginalName string

	// SQL99Name and SQL2008Name are the standard names for each revision.
	// Either may be empty.
	SQL99Name   string
	SQL2008Name string

	Description string
}

// Text is a character string type.
type Text struct {
	Length    int
	Variable  bool
	Large     bool
	National  bool
	Charset   string
	Collation string
}

// NumericExact is an exact numeric type.
type NumericExact struct {
	Precision int
	Scale     int
}

// NumericApproximate is a floating point type.
type NumericApproximate struct {
	Precision int
}

// Boolean is a truth value type.
type Boolean struct{}

// DateTime covers DATE, TIME and TIMESTAMP.
type DateTime struct {
	HasDate     bool
	HasTime     bool
	HasTimezone bool
}

// Binary is a byte string type.
type Binary struct {
	Length   int
	Variable bool
	Large    bool
}

// Enumeration is a closed set of string options.
type Enumeration struct {
	Options []string
}

// Interval is a duration type. Qualifier is e.g. "YEAR TO MONTH".
type Interval struct {
	Qualifier string
}

// Array is a collection of a single element type.
type Array struct {
	Element *Type

	// DeclaredLength is nil for unbounded arrays.
	DeclaredLength *int
}

// Field is a named member of a Structure.
type Field struct {
	Name string
	Type *Type
}

// Structure is a user defined composite type.
type Structure struct {
	Name   string
	Schema string
	Fields []Field
}

// Unsupported keeps a type the normalizer could not classify. Values of an
// unsupported type are carried as text.
type Unsupported struct {
	OriginalName string
}

func (Text) Kind() string               { return "text" }
func (NumericExact) Kind() string       { return "exact" }
func (NumericApproximate) Kind() string { return "approximate" }
func (Boolean) Kind() string            { return "boolean" }
func (DateTime) Kind() string           { return "datetime" }
func (Binary) Kind() string             { return "binary" }
func (Enumeration) Kind() string        { return "enumeration" }
func (Interval) Kind() string           { return "interval" }
func (Array) Kind() string              { return "array" }
func (Structure) Kind() string          { return "structure" }
func (Unsupported) Kind() string        { return "unsupported" }

func (Text) variant()               {}
func (NumericExact) variant()       {}
func (NumericApproximate) variant() {}
func (Boolean) variant()            {}
func (DateTime) variant()           {}
func (Binary) variant()             {}
func (Enumeration) variant()        {}
func (Interval) variant()           {}
func (Array) variant()              {}
func (Structure) variant()          {}
func (Unsupported) variant()        {}

// New creates a type with both standard names set to name.
func New(v Variant, name, original string) *Type {
	return &Type{
		Variant:      v,
		OriginalName: original,
		SQL99Name:    name,
		SQL2008Name:  name,
	}
}

// NewArray wraps element. The element is owned by the returned type.
func NewArray(element *Type, declaredLength *int) *Type {
	name := element.CanonicalName() + " ARRAY"
	if declaredLength != nil {
		name = fmt.Sprintf("%s[%d]", name, *declaredLength)
	}
	return &Type{
		Variant:      Array{Element: element, DeclaredLength: declaredLength},
		OriginalName: element.OriginalName,
		SQL99Name:    name,
		SQL2008Name:  name,
		Description:  element.Description,
	}
}

// NewStructure creates a composite type. Field types are owned by the result.
func NewStructure(schema, name string, fields []Field) *Type {
	return &Type{
		Variant:      Structure{Name: name, Schema: schema, Fields: fields},
		OriginalName: name,
	}
}

// NewUnsupported keeps original as-is.
func NewUnsupported(original string) *Type {
	return &Type{
		Variant:      Unsupported{OriginalName: original},
		OriginalName: original,
		SQL99Name:    original,
		SQL2008Name:  original,
	}
}

// Kind returns the variant kind, or "" for a zero Type.
func (t *Type) Kind() string {
	if t == nil || t.Variant == nil {
		return ""
	}
	return t.Variant.Kind()
}

// CanonicalName returns the name used when writing the type out:
// the SQL:2008 name, then the SQL:1999 name, then the original name.
func (t *Type) CanonicalName() string {
	switch {
	case t.SQL2008Name != "":
		return t.SQL2008Name
	case t.SQL99Name != "":
		return t.SQL99Name
	default:
		return t.OriginalName
	}
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.CanonicalName()
}

// IsComposed reports whether values of this type decompose into several cells.
func (t *Type) IsComposed() bool {
	switch t.Variant.(type) {
	case Array, Structure:
		return true
	}
	return false
}

// IsLOB reports whether the type is a character or binary large object.
func (t *Type) IsLOB() bool {
	switch v := t.Variant.(type) {
	case Text:
		return v.Large
	case Binary:
		return v.Large
	}
	return false
}

// IsBinary reports whether values are carried as byte streams.
func (t *Type) IsBinary() bool {
	_, ok := t.Variant.(Binary)
	return ok
}

// Clone returns a deep copy of t.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	switch v := t.Variant.(type) {
	case Array:
		a := Array{Element: v.Element.Clone()}
		if v.DeclaredLength != nil {
			n := *v.DeclaredLength
			a.DeclaredLength = &n
		}
		c.Variant = a
	case Structure:
		fields := make([]Field, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = Field{Name: f.Name, Type: f.Type.Clone()}
		}
		c.Variant = Structure{Name: v.Name, Schema: v.Schema, Fields: fields}
	case Enumeration:
		c.Variant = Enumeration{Options: append([]string(nil), v.Options...)}
	}
	return &c
}

// Equivalent compares the shape of two types, ignoring names and descriptions.
func Equivalent(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch va := a.Variant.(type) {
	case Array:
		vb, ok := b.Variant.(Array)
		if !ok {
			return false
		}
		if (va.DeclaredLength == nil) != (vb.DeclaredLength == nil) {
			return false
		}
		if va.DeclaredLength != nil && *va.DeclaredLength != *vb.DeclaredLength {
			return false
		}
		return Equivalent(va.Element, vb.Element)
	case Structure:
		vb, ok := b.Variant.(Structure)
		if !ok || len(va.Fields) != len(vb.Fields) {
			return false
		}
		for i := range va.Fields {
			if va.Fields[i].Name != vb.Fields[i].Name || !Equivalent(va.Fields[i].Type, vb.Fields[i].Type) {
				return false
			}
		}
		return true
	case Enumeration:
		vb, ok := b.Variant.(Enumeration)
		if !ok || len(va.Options) != len(vb.Options) {
			return false
		}
		for i := range va.Options {
			if va.Options[i] != vb.Options[i] {
				return false
			}
		}
		return true
	case Unsupported:
		vb, ok := b.Variant.(Unsupported)
		return ok && strings.EqualFold(va.OriginalName, vb.OriginalName)
	default:
		return a.Variant == b.Variant
	}
}
