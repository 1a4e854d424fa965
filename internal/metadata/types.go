package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
)

// typeRef is the type description shared by columns and UDT attributes.
type typeRef struct {
	Type         string
	TypeOriginal string
	TypeSchema   string
	TypeName     string
	Cardinality  string
	Description  string
}

func refOf(c xmlColumn) typeRef {
	return typeRef{
		Type:         c.Type,
		TypeOriginal: c.TypeOriginal,
		TypeSchema:   c.TypeSchema,
		TypeName:     c.TypeName,
		Cardinality:  c.Cardinality,
		Description:  c.Description,
	}
}

func attributeRef(a xmlAttribute) typeRef {
	return typeRef{
		Type:         a.Type,
		TypeOriginal: a.TypeOriginal,
		TypeSchema:   a.TypeSchema,
		TypeName:     a.TypeName,
		Cardinality:  a.Cardinality,
		Description:  a.Description,
	}
}

// typeResolver turns column type references into descriptors, building
// user defined types from the schemas' <types> sections. Each column gets
// its own copy of a resolved structure.
type typeResolver struct {
	normalizer *normalize.Normalizer
	types      map[string]xmlType
	resolved   map[string]*datatype.Type
	visiting   map[string]bool
}

func newTypeResolver(n *normalize.Normalizer, schemas []xmlSchema) *typeResolver {
	r := &typeResolver{
		normalizer: n,
		types:      make(map[string]xmlType),
		resolved:   make(map[string]*datatype.Type),
		visiting:   make(map[string]bool),
	}
	for _, s := range schemas {
		for _, t := range s.Types {
			r.types[udtKey(s.Name, t.Name)] = t
		}
	}
	return r
}

func udtKey(schema, name string) string { return schema + "." + name }

// resolve returns the structure for the user defined type schema.name.
func (r *typeResolver) resolve(schema, name string) (*datatype.Type, error) {
	key := udtKey(schema, name)
	if t, ok := r.resolved[key]; ok {
		return t.Clone(), nil
	}
	xt, ok := r.types[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user defined type %s", core.ErrSchemaValidation, key)
	}
	if r.visiting[key] {
		return nil, fmt.Errorf("%w: user defined type %s contains itself", core.ErrSchemaValidation, key)
	}
	r.visiting[key] = true
	defer delete(r.visiting, key)

	fields := make([]datatype.Field, 0, len(xt.Attributes))
	for _, a := range xt.Attributes {
		ft, err := r.columnType(schema, attributeRef(a))
		if err != nil {
			return nil, fmt.Errorf("type %s attribute %s: %w", key, a.Name, err)
		}
		fields = append(fields, datatype.Field{Name: a.Name, Type: ft})
	}
	t := datatype.NewStructure(schema, xt.Name, fields)
	t.Description = xt.Description
	r.resolved[key] = t
	return t.Clone(), nil
}

// columnType resolves a column or attribute type. A cardinality wraps the
// type in an array.
func (r *typeResolver) columnType(schema string, ref typeRef) (*datatype.Type, error) {
	var (
		t   *datatype.Type
		err error
	)
	if ref.TypeName != "" {
		ts := ref.TypeSchema
		if ts == "" {
			ts = schema
		}
		t, err = r.resolve(ts, ref.TypeName)
		if err != nil {
			return nil, err
		}
	} else {
		t, err = r.normalizer.Normalize(ref.Type, 0, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
		}
	}
	if ref.TypeOriginal != "" {
		t.OriginalName = ref.TypeOriginal
	}
	t.Description = ref.Description

	if c := strings.TrimSpace(ref.Cardinality); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: cardinality %q", core.ErrSchemaValidation, ref.Cardinality)
		}
		t = datatype.NewArray(t, &n)
	}
	return t, nil
}
