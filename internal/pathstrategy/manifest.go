package pathstrategy

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/xmlschema"
)

// FileIndexName is the logical name of the Danish file manifest.
const FileIndexName = "fileIndex"

var tableFolderPattern = regexp.MustCompile(`^(AVID\.[A-ZÆØÅ]{2,4}\.[0-9]*\.[0-9]*)\\Tables\\(table[0-9]*)$`)

//go:embed fileIndex.xsd
var fileIndexXSD []byte

var fileIndexSchema = xmlschema.New("fileIndex.xsd", fileIndexXSD)

type fileIndexDoc struct {
	XMLName xml.Name        `xml:"fileIndex"`
	Files   []fileIndexFile `xml:"f"`
}

type fileIndexFile struct {
	Folder string `xml:"foN"`
	Name   string `xml:"fiN"`
	MD5    string `xml:"md5"`
}

// path converts the backslash folder into a container path. The first
// folder component names the archive itself and is dropped.
func (f fileIndexFile) path() string {
	parts := strings.Split(f.Folder, `\`)
	if len(parts) > 0 && strings.HasPrefix(parts[0], "AVID.") {
		parts = parts[1:]
	}
	parts = append(parts, f.Name)
	return strings.Join(parts, "/")
}

// ManifestResolver resolves content paths from the Danish file index
// instead of name-derived folders.
type ManifestResolver struct {
	layout  Layout
	storage core.ArchiveStorage
	tables  *Resolver

	parsed    bool
	entries   []archive.ManifestEntry
	checksums map[string]string
	xml       map[string]string
	xsd       map[string]string
}

// NewManifestResolver reads the file index from storage on first use. tables
// supplies the table id to folder associations recorded by the metadata
// reader.
func NewManifestResolver(storage core.ArchiveStorage, tables *Resolver) *ManifestResolver {
	return &ManifestResolver{
		layout:  NewLayout(archive.VersionDK),
		storage: storage,
		tables:  tables,
	}
}

// Parse loads the file index and validates it against fileIndex.xsd.
// Calling it again is a no-op.
func (m *ManifestResolver) Parse() error {
	if m.parsed {
		return nil
	}
	p := m.layout.MetadataPath(XML, FileIndexName)
	r, err := m.storage.CreateInputStream(p)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}
	if err := fileIndexSchema.Validate(context.Background(), p, bytes.NewReader(data)); err != nil {
		return err
	}
	var doc fileIndexDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrParse, p, err)
	}

	m.checksums = make(map[string]string, len(doc.Files))
	m.xml = make(map[string]string)
	m.xsd = make(map[string]string)
	m.entries = make([]archive.ManifestEntry, 0, len(doc.Files))

	for _, f := range doc.Files {
		path := f.path()
		m.checksums[path] = strings.ToLower(f.MD5)
		m.entries = append(m.entries, archive.ManifestEntry{Path: path, Checksum: f.MD5, Scheme: archive.MD5})

		match := tableFolderPattern.FindStringSubmatch(f.Folder)
		if match == nil {
			continue
		}
		folder := match[2]
		switch name := strings.ToLower(f.Name); {
		case strings.HasSuffix(name, ".xml"):
			if _, dup := m.xml[folder]; dup {
				return fmt.Errorf("%w: multiple xml entries for table folder %s", core.ErrSchemaValidation, folder)
			}
			m.xml[folder] = path
		case strings.HasSuffix(name, ".xsd"):
			if _, dup := m.xsd[folder]; dup {
				return fmt.Errorf("%w: multiple xsd entries for table folder %s", core.ErrSchemaValidation, folder)
			}
			m.xsd[folder] = path
		}
	}

	m.parsed = true
	log.Printf("[ARCHIVE] Parsed file index: %d files, %d tables", len(m.entries), len(m.xml))
	return nil
}

func (m *ManifestResolver) ResolveMetadataPath(kind FileKind, name string) string {
	return m.layout.MetadataPath(kind, name)
}

// ResolveContentPath looks the table's folder up in the file index.
func (m *ManifestResolver) ResolveContentPath(schema, tableID string) (ContentPaths, error) {
	if err := m.Parse(); err != nil {
		return ContentPaths{}, err
	}
	folder, err := m.tables.TableFolder(tableID)
	if err != nil {
		return ContentPaths{}, err
	}
	x, ok := m.xml[folder]
	if !ok {
		return ContentPaths{}, fmt.Errorf("%w: no xml file indexed for %s", core.ErrUnresolvedFolder, folder)
	}
	xsd, ok := m.xsd[folder]
	if !ok {
		return ContentPaths{}, fmt.Errorf("%w: no xsd file indexed for %s", core.ErrUnresolvedFolder, folder)
	}
	return ContentPaths{XML: x, XSD: xsd}, nil
}

// ResolveLOBPath returns the referenced file relative to the archive root.
func (m *ManifestResolver) ResolveLOBPath(base, schema, tableID, columnID, fileName string) (string, error) {
	if err := m.Parse(); err != nil {
		return "", err
	}
	f := fileIndexFile{Name: fileName}
	if base != "" {
		f.Folder = base
	}
	return strings.TrimPrefix(f.path(), "/"), nil
}

// Checksum returns the indexed md5 of path in lowercase hex.
func (m *ManifestResolver) Checksum(path string) (string, bool) {
	if err := m.Parse(); err != nil {
		return "", false
	}
	sum, ok := m.checksums[path]
	return sum, ok
}

// Entries returns every indexed file in index order.
func (m *ManifestResolver) Entries() ([]archive.ManifestEntry, error) {
	if err := m.Parse(); err != nil {
		return nil, err
	}
	return m.entries, nil
}
