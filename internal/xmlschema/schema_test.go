package xmlschema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

const booksXSD = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns="urn:books" xmlns:b="urn:books"
           targetNamespace="urn:books" elementFormDefault="qualified">
  <xs:element name="books">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="book" maxOccurs="unbounded">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="title" type="xs:string"/>
              <xs:element name="pages" type="xs:nonNegativeInteger"/>
            </xs:sequence>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
    <xs:unique name="uniqueTitle">
      <xs:selector xpath="b:book"/>
      <xs:field xpath="b:title"/>
    </xs:unique>
  </xs:element>
</xs:schema>`

func TestValidate(t *testing.T) {
	schema := New("books.xsd", []byte(booksXSD))

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "valid",
			doc:  `<books xmlns="urn:books"><book><title>Dune</title><pages>412</pages></book></books>`,
		},
		{
			name: "missing element",
			doc:  `<books xmlns="urn:books"><book><title>Dune</title></book></books>`,
			want: core.ErrSchemaValidation,
		},
		{
			name: "undeclared element",
			doc:  `<books xmlns="urn:books"><book><title>Dune</title><pages>1</pages><isbn>x</isbn></book></books>`,
			want: core.ErrSchemaValidation,
		},
		{
			name: "negative count",
			doc:  `<books xmlns="urn:books"><book><title>Dune</title><pages>-1</pages></book></books>`,
			want: core.ErrSchemaValidation,
		},
		{
			name: "duplicate title",
			doc:  `<books xmlns="urn:books"><book><title>Dune</title><pages>1</pages></book><book><title>Dune</title><pages>2</pages></book></books>`,
			want: core.ErrSchemaValidation,
		},
		{
			name: "wrong namespace",
			doc:  `<books><book><title>Dune</title><pages>1</pages></book></books>`,
			want: core.ErrSchemaValidation,
		},
		{
			name: "malformed",
			doc:  `<books xmlns="urn:books"><book>`,
			want: core.ErrParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(context.Background(), "books.xml", strings.NewReader(tt.doc))
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateBrokenSchema(t *testing.T) {
	schema := New("broken.xsd", []byte(`<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"><xs:element name="a" type="missing"/></xs:schema>`))
	err := schema.Validate(context.Background(), "a.xml", strings.NewReader(`<a/>`))
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if errors.Is(err, core.ErrSchemaValidation) || errors.Is(err, core.ErrParse) {
		t.Fatalf("compile errors must not be reported as document errors: %v", err)
	}
	if !strings.Contains(err.Error(), "broken.xsd") {
		t.Fatalf("expected the schema name in %q", err)
	}
	if again := schema.Validate(context.Background(), "a.xml", strings.NewReader(`<a/>`)); again != err {
		t.Fatalf("expected the compile error to be cached")
	}
}

func TestValidateCanceled(t *testing.T) {
	schema := New("books.xsd", []byte(booksXSD))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := schema.Validate(ctx, "books.xml", strings.NewReader(`<books xmlns="urn:books"/>`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
