package content

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

const xsNamespace = "http://www.w3.org/2001/XMLSchema"

// writeTableXSD writes the row schema of one table document.
func writeTableXSD(w io.Writer, namespace string, t *model.Table) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<xs:schema xmlns:xs="%s" xmlns="%s" targetNamespace="%s" elementFormDefault="qualified" attributeFormDefault="unqualified">`+"\n",
		xsNamespace, namespace, namespace)
	b.WriteString(`  <xs:element name="table">` + "\n")
	b.WriteString(`    <xs:complexType><xs:sequence>` + "\n")
	b.WriteString(`      <xs:element name="row" type="recordType" minOccurs="0" maxOccurs="unbounded"/>` + "\n")
	b.WriteString(`    </xs:sequence>` + "\n")
	b.WriteString(`    <xs:attribute name="version" type="xs:string"/>` + "\n")
	b.WriteString(`    </xs:complexType>` + "\n")
	b.WriteString(`  </xs:element>` + "\n")

	b.WriteString(`  <xs:complexType name="recordType"><xs:sequence>` + "\n")
	var nested []string
	for i, c := range t.Columns {
		typ, extra := xsdElementType(c.Type, "c"+strconv.Itoa(i+1))
		nested = append(nested, extra...)
		min := ""
		if c.Nillable {
			min = ` minOccurs="0"`
		}
		fmt.Fprintf(&b, `    <xs:element name="c%d" type="%s"%s/>`+"\n", i+1, typ, min)
	}
	b.WriteString(`  </xs:sequence></xs:complexType>` + "\n")
	for _, n := range nested {
		b.WriteString(n)
	}
	b.WriteString(lobTypes)
	b.WriteString(`</xs:schema>` + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// xsdElementType returns the type name for a cell element and the named
// complex types it needs.
func xsdElementType(t *datatype.Type, name string) (string, []string) {
	if t == nil {
		return "xs:string", nil
	}
	switch v := t.Variant.(type) {
	case datatype.Structure:
		typeName := name + "Type"
		var b strings.Builder
		var nested []string
		fmt.Fprintf(&b, `  <xs:complexType name="%s"><xs:sequence>`+"\n", typeName)
		for i, f := range v.Fields {
			ft, extra := xsdElementType(f.Type, name+"u"+strconv.Itoa(i+1))
			nested = append(nested, extra...)
			fmt.Fprintf(&b, `    <xs:element name="u%d" type="%s" minOccurs="0"/>`+"\n", i+1, ft)
		}
		b.WriteString(`  </xs:sequence></xs:complexType>` + "\n")
		return typeName, append([]string{b.String()}, nested...)
	case datatype.Array:
		typeName := name + "Type"
		et, nested := xsdElementType(v.Element, name+"a")
		var b strings.Builder
		fmt.Fprintf(&b, `  <xs:complexType name="%s"><xs:sequence>`+"\n", typeName)
		if v.DeclaredLength != nil {
			for i := 1; i <= *v.DeclaredLength; i++ {
				fmt.Fprintf(&b, `    <xs:element name="a%d" type="%s" minOccurs="0"/>`+"\n", i, et)
			}
		} else {
			// element names a1..aN are open ended
			b.WriteString(`    <xs:any processContents="lax" minOccurs="0" maxOccurs="unbounded"/>` + "\n")
		}
		b.WriteString(`  </xs:sequence></xs:complexType>` + "\n")
		return typeName, append([]string{b.String()}, nested...)
	case datatype.Text:
		return "clobType", nil
	case datatype.Binary:
		return "blobType", nil
	case datatype.NumericExact:
		if v.Scale == 0 {
			return "xs:integer", nil
		}
		return "xs:decimal", nil
	case datatype.NumericApproximate:
		if v.Precision > 0 && v.Precision <= 24 {
			return "xs:float", nil
		}
		return "xs:double", nil
	case datatype.Boolean:
		return "xs:boolean", nil
	case datatype.DateTime:
		switch {
		case v.HasDate && v.HasTime:
			return "xs:dateTime", nil
		case v.HasTime:
			return "xs:time", nil
		}
		return "xs:date", nil
	case datatype.Interval:
		return "xs:duration", nil
	}
	return "xs:string", nil
}

const lobTypes = `  <xs:complexType name="clobType" mixed="true">
    <xs:attribute name="file" type="xs:string"/>
    <xs:attribute name="length" type="xs:integer"/>
    <xs:attribute name="digest" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="blobType" mixed="true">
    <xs:attribute name="file" type="xs:string"/>
    <xs:attribute name="length" type="xs:integer"/>
    <xs:attribute name="digest" type="xs:string"/>
  </xs:complexType>
`
