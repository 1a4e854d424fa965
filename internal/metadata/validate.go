package metadata

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
	"github.com/rzpsarthak13/dbarchive/internal/xmlschema"
)

//go:embed metadata.xsd
var metadataXSD []byte

//go:embed tableIndex.xsd
var tableIndexXSD []byte

var (
	metadataSchema   = xmlschema.New("metadata.xsd", metadataXSD)
	metadataSchema10 = xmlschema.New("metadata.xsd", bytes.ReplaceAll(metadataXSD,
		[]byte(pathstrategy.NewLayout(archive.Version22).MetadataNamespace()),
		[]byte(pathstrategy.NewLayout(archive.Version10).MetadataNamespace())))
	tableIndexSchema = xmlschema.New("tableIndex.xsd", tableIndexXSD)
)

// schemaFor returns the metadata schema of version v. Version 1.0 shares
// the 2.x structure under its own namespace.
func schemaFor(v archive.Version) *xmlschema.Schema {
	if v == archive.Version10 {
		return metadataSchema10
	}
	return metadataSchema
}

// Validator checks the rules of a schema-valid metadata document that the
// schema itself cannot state.
type Validator struct {
	doc *siardArchive
}

// NewValidator creates a validator for doc.
func NewValidator(doc *siardArchive) *Validator {
	return &Validator{doc: doc}
}

// Validate returns an error wrapping core.ErrSchemaValidation for the first
// rule the document breaks.
func (v *Validator) Validate() error {
	if v.doc == nil {
		return invalid("document cannot be nil")
	}
	for _, s := range v.doc.Schemas {
		for _, t := range s.Tables {
			for _, c := range t.Columns {
				if err := validateColumn(c); err != nil {
					return fmt.Errorf("schema %q: table %q: %w", s.Name, t.Name, err)
				}
			}
		}
	}
	return nil
}

// validateColumn requires a built-in type or a reference to a user defined
// type; both are optional in the schema.
func validateColumn(c xmlColumn) error {
	if strings.TrimSpace(c.Type) == "" && c.TypeName == "" {
		return invalid("column %q: missing type", c.Name)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrSchemaValidation, fmt.Sprintf(format, args...))
}
