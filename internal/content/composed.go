package content

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// AliasLength is the length of generated projection aliases.
const AliasLength = 15

// Subtype is one leaf of a composed column. Path starts with the column
// name and continues with field names, or "[i]" for array elements.
type Subtype struct {
	Path []string
	Type *datatype.Type
}

// Name joins the path with dots, for reports.
func (s Subtype) Name() string {
	return strings.Join(s.Path, ".")
}

// Flatten expands a column type into its leaf subtypes, depth-first.
// Structures expand field by field and arrays with a declared length
// element by element. Anything else, unbounded arrays included, is a
// single leaf.
func Flatten(column string, t *datatype.Type) []Subtype {
	return flatten([]string{column}, t, nil)
}

func flatten(path []string, t *datatype.Type, out []Subtype) []Subtype {
	switch v := t.Variant.(type) {
	case datatype.Structure:
		for _, f := range v.Fields {
			out = flatten(appendPath(path, f.Name), f.Type, out)
		}
		return out
	case datatype.Array:
		if v.DeclaredLength != nil {
			for i := 1; i <= *v.DeclaredLength; i++ {
				out = flatten(appendPath(path, "["+strconv.Itoa(i)+"]"), v.Element, out)
			}
			return out
		}
	}
	return append(out, Subtype{Path: path, Type: t})
}

func appendPath(path []string, elem string) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)
	return append(p, elem)
}

// LeafCount returns the number of leaves a value of t decomposes into. The
// second result is false when the shape is not fixed, as for unbounded arrays.
func LeafCount(t *datatype.Type) (int, bool) {
	switch v := t.Variant.(type) {
	case datatype.Structure:
		total := 0
		for _, f := range v.Fields {
			n, ok := LeafCount(f.Type)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	case datatype.Array:
		if v.DeclaredLength == nil {
			return 0, false
		}
		n, ok := LeafCount(v.Element)
		if !ok {
			return 0, false
		}
		return n * *v.DeclaredLength, true
	}
	return 1, true
}

// Reassemble rebuilds a composed cell of type t from its leaves, the inverse
// of model.Leaves for fixed shapes. It returns the cell and the number of
// leaves consumed.
func Reassemble(t *datatype.Type, leaves []model.Cell) (model.Cell, int, error) {
	switch v := t.Variant.(type) {
	case datatype.Structure:
		children := make([]model.Cell, 0, len(v.Fields))
		used := 0
		for _, f := range v.Fields {
			c, n, err := Reassemble(f.Type, leaves[used:])
			if err != nil {
				return nil, 0, err
			}
			children = append(children, c)
			used += n
		}
		return model.ComposedCell{Children: children}, used, nil
	case datatype.Array:
		if v.DeclaredLength != nil {
			children := make([]model.Cell, 0, *v.DeclaredLength)
			used := 0
			for i := 0; i < *v.DeclaredLength; i++ {
				c, n, err := Reassemble(v.Element, leaves[used:])
				if err != nil {
					return nil, 0, err
				}
				children = append(children, c)
				used += n
			}
			return model.ComposedCell{Children: children}, used, nil
		}
	}
	if len(leaves) == 0 {
		return nil, 0, fmt.Errorf("not enough leaves for %s", t)
	}
	return leaves[0], 1, nil
}

// AliasAllocator hands out unique lowercase aliases for projected subtypes.
type AliasAllocator struct {
	used map[string]struct{}
	intn func(n int) int
}

// NewAliasAllocator returns an allocator that never returns any of taken,
// which should hold the table's column names.
func NewAliasAllocator(taken ...string) *AliasAllocator {
	a := &AliasAllocator{used: make(map[string]struct{}, len(taken)), intn: rand.IntN}
	for _, name := range taken {
		a.used[strings.ToLower(name)] = struct{}{}
	}
	return a
}

// Next returns a fresh alias, drawing again on collision.
func (a *AliasAllocator) Next() string {
	var b strings.Builder
	for {
		b.Reset()
		for i := 0; i < AliasLength; i++ {
			b.WriteByte(byte('a' + a.intn(26)))
		}
		alias := b.String()
		if _, dup := a.used[alias]; !dup {
			a.used[alias] = struct{}{}
			return alias
		}
	}
}

// Projection is the select list entry for one subtype.
type Projection struct {
	Subtype Subtype
	Alias   string
	Expr    string
}

// SQL returns "<expr> AS <alias>".
func (p Projection) SQL() string {
	if p.Alias == "" {
		return p.Expr
	}
	return p.Expr + " AS " + quoteIdent(p.Alias)
}

// Project builds one projection per leaf of the column. A non composed
// column projects as its quoted name without alias.
func Project(column string, t *datatype.Type, aliases *AliasAllocator) []Projection {
	subs := Flatten(column, t)
	if len(subs) == 1 && len(subs[0].Path) == 1 {
		return []Projection{{Subtype: subs[0], Expr: quoteIdent(column)}}
	}
	out := make([]Projection, 0, len(subs))
	for _, s := range subs {
		out = append(out, Projection{Subtype: s, Alias: aliases.Next(), Expr: pathExpr(s.Path)})
	}
	return out
}

// pathExpr renders (("col")."f1")."f2" or ("col")[2].
func pathExpr(path []string) string {
	expr := quoteIdent(path[0])
	for _, elem := range path[1:] {
		if strings.HasPrefix(elem, "[") {
			expr = "(" + expr + ")" + elem
			continue
		}
		expr = "(" + expr + ")." + quoteIdent(elem)
	}
	return expr
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
