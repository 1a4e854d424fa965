// Package pathstrategy maps logical archive identifiers to container paths.
//
// Export paths are computed from indexes by Layout. Import paths are
// discovered while metadata is parsed: the metadata reader records folder
// names on a Builder, and content streaming resolves through the frozen
// Resolver.
package pathstrategy

import (
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
)

// FileKind selects the document of an xml/xsd pair.
type FileKind int

const (
	XML FileKind = iota
	XSD
)

func (k FileKind) ext() string {
	if k == XSD {
		return "xsd"
	}
	return "xml"
}

// LOBKind selects the file extension of a LOB file.
type LOBKind int

const (
	Blob LOBKind = iota
	Clob
)

func (k LOBKind) ext() string {
	if k == Clob {
		return "txt"
	}
	return "bin"
}

const (
	contentDir = "content"
	headerDir  = "header"
)

// Layout computes export paths for one format version.
type Layout struct {
	Version archive.Version
}

// NewLayout returns the layout for version v.
func NewLayout(v archive.Version) Layout {
	return Layout{Version: v}
}

// MetadataPath returns the path of a structural document such as
// "metadata" or, for the Danish variant, "tableIndex".
func (l Layout) MetadataPath(kind FileKind, name string) string {
	if l.Version == archive.VersionDK {
		if kind == XSD {
			return "Schemas/standard/" + name + ".xsd"
		}
		return "Indices/" + name + ".xml"
	}
	return headerDir + "/" + name + "." + kind.ext()
}

// VersionMarkerPath returns the empty marker directory written into the
// header, or "" for versions that have none.
func (l Layout) VersionMarkerPath() string {
	switch l.Version {
	case archive.Version20, archive.Version21, archive.Version22:
		return archive.VersionMarkerDir + string(l.Version) + "/"
	}
	return ""
}

func (l Layout) SchemaFolder(i int) string { return "schema" + strconv.Itoa(i) }
func (l Layout) TableFolder(i int) string  { return "table" + strconv.Itoa(i) }
func (l Layout) ColumnFolder(i int) string { return "lob" + strconv.Itoa(i) }

// TableContentPath returns content/schema<s>/table<t>/table<t>.xml|xsd.
func (l Layout) TableContentPath(schema, table int, kind FileKind) string {
	t := l.TableFolder(table)
	return strings.Join([]string{contentDir, l.SchemaFolder(schema), t, t + "." + kind.ext()}, "/")
}

// TableNamespace is the target namespace of a table's xsd.
func (l Layout) TableNamespace(schema, table int) string {
	return "http://www.bar.admin.ch/xmlns/siard/" + l.majorVersion() + "/" +
		l.SchemaFolder(schema) + "/" + l.TableFolder(table) + ".xsd"
}

// MetadataNamespace is the namespace of header/metadata.xml.
func (l Layout) MetadataNamespace() string {
	if l.Version == archive.Version10 {
		return "http://www.bar.admin.ch/xmlns/siard/1.0/metadata.xsd"
	}
	return "http://www.bar.admin.ch/xmlns/siard/2/metadata.xsd"
}

func (l Layout) majorVersion() string {
	if l.Version == archive.Version10 {
		return "1.0"
	}
	return "2"
}

// LOBFileName returns record<row>.bin|txt.
func (l Layout) LOBFileName(row int64, kind LOBKind) string {
	return "record" + strconv.FormatInt(row, 10) + "." + kind.ext()
}

// LOBFilePath returns the inline LOB path below the table folder.
func (l Layout) LOBFilePath(schema, table, column int, row int64, kind LOBKind) string {
	return strings.Join([]string{
		contentDir, l.SchemaFolder(schema), l.TableFolder(table), l.ColumnFolder(column), l.LOBFileName(row, kind),
	}, "/")
}
