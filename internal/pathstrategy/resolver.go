package pathstrategy

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// ContentPaths locates the document pair of one table.
type ContentPaths struct {
	XML string
	XSD string
}

// ContentResolver answers content and LOB path queries during streaming.
type ContentResolver interface {
	// ResolveMetadataPath returns the path of a structural document.
	ResolveMetadataPath(kind FileKind, name string) string

	// ResolveContentPath returns the xml/xsd pair of a table.
	ResolveContentPath(schema, tableID string) (ContentPaths, error)

	// ResolveLOBPath returns the path of a LOB file referenced from a cell.
	ResolveLOBPath(base, schema, tableID, columnID, fileName string) (string, error)
}

// currentDir stands for an unspecified path segment.
const currentDir = "."

// Builder records folder associations while metadata is being parsed.
type Builder struct {
	layout    Layout
	schemas   map[string]string
	tables    map[string]string
	columns   map[string]string
	lobFolder string
}

// NewBuilder returns an empty builder for layout.
func NewBuilder(layout Layout) *Builder {
	return &Builder{
		layout:  layout,
		schemas: make(map[string]string),
		tables:  make(map[string]string),
		columns: make(map[string]string),
	}
}

func (b *Builder) AssociateSchemaWithFolder(schema, folder string) {
	b.schemas[schema] = folder
}

func (b *Builder) AssociateTableWithFolder(tableID, folder string) {
	b.tables[tableID] = folder
}

func (b *Builder) AssociateColumnWithFolder(columnID, folder string) {
	b.columns[columnID] = folder
}

// SetLOBFolder records the database-wide LOB folder.
func (b *Builder) SetLOBFolder(folder string) {
	b.lobFolder = folder
}

// Freeze returns an immutable resolver holding a copy of the associations.
func (b *Builder) Freeze() *Resolver {
	r := &Resolver{
		layout:    b.layout,
		schemas:   make(map[string]string, len(b.schemas)),
		tables:    make(map[string]string, len(b.tables)),
		columns:   make(map[string]string, len(b.columns)),
		lobFolder: b.lobFolder,
	}
	for k, v := range b.schemas {
		r.schemas[k] = v
	}
	for k, v := range b.tables {
		r.tables[k] = v
	}
	for k, v := range b.columns {
		r.columns[k] = v
	}
	return r
}

// Resolver resolves content paths from the associations frozen by a Builder.
type Resolver struct {
	layout    Layout
	schemas   map[string]string
	tables    map[string]string
	columns   map[string]string
	lobFolder string
}

func (r *Resolver) empty() bool {
	return len(r.schemas) == 0 && len(r.tables) == 0 && len(r.columns) == 0
}

// ResolveMetadataPath returns the path of a structural document. It does not
// need any association.
func (r *Resolver) ResolveMetadataPath(kind FileKind, name string) string {
	return r.layout.MetadataPath(kind, name)
}

// TableFolder returns the folder recorded for tableID.
func (r *Resolver) TableFolder(tableID string) (string, error) {
	if r.empty() {
		return "", core.ErrNoAssociations
	}
	f, ok := r.tables[tableID]
	if !ok || f == "" {
		return "", fmt.Errorf("%w: table %s", core.ErrUnresolvedFolder, tableID)
	}
	return f, nil
}

// ResolveContentPath returns content/<schemaFolder>/<tableFolder>/<tableFolder>.xml|xsd.
func (r *Resolver) ResolveContentPath(schema, tableID string) (ContentPaths, error) {
	if r.empty() {
		return ContentPaths{}, core.ErrNoAssociations
	}
	sf, ok := r.schemas[schema]
	if !ok || sf == "" {
		return ContentPaths{}, fmt.Errorf("%w: schema %s", core.ErrUnresolvedFolder, schema)
	}
	tf, err := r.TableFolder(tableID)
	if err != nil {
		return ContentPaths{}, err
	}
	dir := contentDir + "/" + sf + "/" + tf + "/" + tf
	return ContentPaths{XML: dir + ".xml", XSD: dir + ".xsd"}, nil
}

// ResolveLOBPath builds the path of a LOB file. Unset segments default to
// ".". A blank base falls back to the database LOB folder. With both the base
// and the column segment unset the file name is returned on its own, minus a
// leading "../" that points into the auxiliary container. A file name that
// already starts with the resolved directory, as 1.0 cells may carry, is
// returned unchanged.
func (r *Resolver) ResolveLOBPath(base, schema, tableID, columnID, fileName string) (string, error) {
	if r.empty() {
		return "", core.ErrNoAssociations
	}
	if strings.TrimSpace(base) == "" {
		base = r.lobFolder
	}
	base = orCurrent(base)
	schemaPart := orCurrent(r.schemas[schema])
	tablePart := orCurrent(r.tables[tableID])
	columnPart := orCurrent(r.columns[columnID])

	if columnPart == currentDir {
		if base == currentDir && strings.HasPrefix(fileName, "..") {
			return fileName[3:], nil
		}
		return fileName, nil
	}

	dir := base + "/" + schemaPart + "/" + tablePart + "/" + columnPart + "/"
	if strings.HasPrefix(fileName, dir) {
		return fileName, nil
	}
	return dir + fileName, nil
}

func orCurrent(s string) string {
	if strings.TrimSpace(s) == "" {
		return currentDir
	}
	return s
}
