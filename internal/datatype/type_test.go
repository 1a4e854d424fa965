package datatype

import "testing"

func TestCanonicalName_Precedence(t *testing.T) {
	ty := &Type{Variant: Boolean{}, OriginalName: "bool"}
	if ty.CanonicalName() != "bool" {
		t.Fatalf("expected original name fallback, got %q", ty.CanonicalName())
	}
	ty.SQL99Name = "BOOLEAN"
	if ty.CanonicalName() != "BOOLEAN" {
		t.Fatalf("expected SQL99 name, got %q", ty.CanonicalName())
	}
	ty.SQL2008Name = "BOOLEAN2008"
	if ty.CanonicalName() != "BOOLEAN2008" {
		t.Fatalf("expected SQL2008 name, got %q", ty.CanonicalName())
	}
}

func TestClone_OwnsChildren(t *testing.T) {
	n := 3
	inner := New(NumericExact{Precision: 10}, "INTEGER", "int4")
	orig := NewStructure("public", "address", []Field{
		{Name: "street", Type: New(Text{Length: 40, Variable: true}, "CHARACTER VARYING(40)", "varchar")},
		{Name: "codes", Type: NewArray(inner, &n)},
	})

	c := orig.Clone()
	if !Equivalent(orig, c) {
		t.Fatalf("clone not equivalent to original")
	}

	cs := c.Variant.(Structure)
	cs.Fields[0].Type.Variant = Boolean{}
	*cs.Fields[1].Type.Variant.(Array).DeclaredLength = 9

	os := orig.Variant.(Structure)
	if os.Fields[0].Type.Kind() != "text" {
		t.Fatalf("mutating the clone changed the original field type")
	}
	if *os.Fields[1].Type.Variant.(Array).DeclaredLength != 3 {
		t.Fatalf("mutating the clone changed the original array length")
	}
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{"same text", New(Text{Length: 5}, "A", ""), New(Text{Length: 5}, "B", ""), true},
		{"different length", New(Text{Length: 5}, "A", ""), New(Text{Length: 6}, "A", ""), false},
		{"different variant", New(Boolean{}, "A", ""), New(Binary{}, "A", ""), false},
		{"unsupported case-insensitive", NewUnsupported("geometry"), NewUnsupported("GEOMETRY"), true},
		{"enum order", New(Enumeration{Options: []string{"a", "b"}}, "", ""), New(Enumeration{Options: []string{"b", "a"}}, "", ""), false},
		{"array vs element", NewArray(New(Boolean{}, "BOOLEAN", ""), nil), New(Boolean{}, "BOOLEAN", ""), false},
		{"nil both", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equivalent(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equivalent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	clob := New(Text{Large: true, Variable: true}, "CHARACTER LARGE OBJECT", "")
	blob := New(Binary{Large: true}, "BINARY LARGE OBJECT", "")
	arr := NewArray(New(Boolean{}, "BOOLEAN", ""), nil)

	if !clob.IsLOB() || !blob.IsLOB() {
		t.Fatalf("expected LOB types")
	}
	if clob.IsBinary() || !blob.IsBinary() {
		t.Fatalf("unexpected IsBinary results")
	}
	if !arr.IsComposed() || clob.IsComposed() {
		t.Fatalf("unexpected IsComposed results")
	}
	if arr.CanonicalName() != "BOOLEAN ARRAY" {
		t.Fatalf("unexpected array name %q", arr.CanonicalName())
	}
}
