package content

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"unicode/utf8"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/lob"
	"github.com/rzpsarthak13/dbarchive/internal/metadata"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

const (
	// InlineTextLimit is the longest text, in characters, kept in the table document.
	InlineTextLimit = 4000
	// InlineBinaryLimit is the longest binary value, in bytes, kept in the table document.
	InlineBinaryLimit = 2000

	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

// SinkOptions configures where an ArchiveSink puts LOB files.
type SinkOptions struct {
	// Strategy defaults to inline storage.
	Strategy *lob.Strategy

	// Auxiliary receives external LOB files. It is rooted at the archive's
	// parent directory and required in external mode.
	Auxiliary core.ArchiveStorage

	Segments lob.SegmentPolicy
}

// ArchiveSink writes a database into an archive container: one xml and xsd
// document per table, LOB files for large values and the structural
// document last, once row counts are known.
type ArchiveSink struct {
	storage  core.ArchiveStorage
	aux      core.ArchiveStorage
	layout   pathstrategy.Layout
	strategy *lob.Strategy
	tracker  *lob.Tracker

	db        *model.Database
	schemaIdx int
	table     *model.Table
	tableIdx  int
	out       io.WriteCloser
	w         *bufio.Writer
	rows      int64
	row       bytes.Buffer
}

// NewArchiveSink returns a sink writing into storage.
func NewArchiveSink(storage core.ArchiveStorage, layout pathstrategy.Layout, opts SinkOptions) (*ArchiveSink, error) {
	strategy := opts.Strategy
	if strategy == nil {
		strategy = lob.NewInline(layout)
	}
	if strategy.Mode == lob.External && opts.Auxiliary == nil {
		return nil, errors.New("external lob storage requires an auxiliary container")
	}
	policy := opts.Segments
	if policy == (lob.SegmentPolicy{}) {
		policy = lob.DefaultSegmentPolicy
	}
	return &ArchiveSink{
		storage:  storage,
		aux:      opts.Auxiliary,
		layout:   layout,
		strategy: strategy,
		tracker:  lob.NewTracker(strategy, policy),
	}, nil
}

func (s *ArchiveSink) Init(ctx context.Context) error { return ctx.Err() }

// HandleStructure assigns schema, table and LOB folders by position.
func (s *ArchiveSink) HandleStructure(ctx context.Context, db *model.Database) error {
	s.db = db
	inline := s.strategy.Mode == lob.Inline
	if inline {
		db.LOBFolder = "content"
	} else {
		db.LOBFolder = ""
	}
	for si, schema := range db.Schemas {
		schema.Folder = s.layout.SchemaFolder(si + 1)
		for ti, t := range schema.Tables {
			t.Folder = s.layout.TableFolder(ti + 1)
			for ci, c := range t.Columns {
				c.Folder = ""
				if inline && holdsLOB(c.Type) {
					c.Folder = s.layout.ColumnFolder(ci + 1)
				}
			}
		}
	}
	return nil
}

func (s *ArchiveSink) HandleOpenSchema(ctx context.Context, schema string) error {
	for i, sc := range s.db.Schemas {
		if sc.Name == schema {
			s.schemaIdx = i + 1
			return nil
		}
	}
	return fmt.Errorf("unknown schema %s", schema)
}

func (s *ArchiveSink) HandleOpenTable(ctx context.Context, tableID string) error {
	t, ok := s.db.LookupTable(tableID)
	if !ok {
		return fmt.Errorf("unknown table %s", tableID)
	}
	s.tableIdx = 0
	for i, candidate := range t.Schema().Tables {
		if candidate == t {
			s.tableIdx = i + 1
		}
	}
	s.table = t
	s.rows = 0

	namespace := s.layout.TableNamespace(s.schemaIdx, s.tableIdx)
	xsdPath := s.layout.TableContentPath(s.schemaIdx, s.tableIdx, pathstrategy.XSD)
	xw, err := s.storage.CreateOutputStream(xsdPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", xsdPath, err)
	}
	if err := writeTableXSD(xw, namespace, t); err != nil {
		xw.Close()
		return fmt.Errorf("failed to write %s: %w", xsdPath, err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", xsdPath, err)
	}

	xmlPath := s.layout.TableContentPath(s.schemaIdx, s.tableIdx, pathstrategy.XML)
	out, err := s.storage.CreateOutputStream(xmlPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", xmlPath, err)
	}
	s.out = out
	s.w = bufio.NewWriterSize(out, 64*1024)

	version := ""
	if s.layout.Version != archive.Version10 {
		version = ` version="` + string(s.layout.Version) + `"`
	}
	_, err = fmt.Fprintf(s.w, "%s<table xmlns=\"%s\" xmlns:xsi=\"%s\" xsi:schemaLocation=\"%s %s\"%s>\n",
		xml.Header, namespace, xsiNamespace, namespace, s.layout.TableFolder(s.tableIdx)+".xsd", version)
	return err
}

// HandleRow renders the row into memory first, so a rejected row leaves no
// trace in the table document.
func (s *ArchiveSink) HandleRow(ctx context.Context, row *model.Row) error {
	if len(row.Cells) != len(s.table.Columns) {
		return &core.DataError{
			Subject: rowSubject(s.table.ID(), row.Index),
			Reason:  fmt.Sprintf("expected %d cells but got %d", len(s.table.Columns), len(row.Cells)),
		}
	}
	s.rows++
	s.row.Reset()
	s.row.WriteString("  <row>")
	for i, c := range row.Cells {
		key := pathstrategy.LOBKey{Schema: s.schemaIdx, Table: s.tableIdx, Column: i + 1}
		if err := s.writeCell(&s.row, "c"+strconv.Itoa(i+1), s.table.Columns[i].Type, c, key, true); err != nil {
			s.rows--
			var de *core.DataError
			if errors.As(err, &de) {
				de.Subject = rowSubject(s.table.ID(), row.Index)
				return de
			}
			return err
		}
	}
	s.row.WriteString("</row>\n")
	_, err := s.w.Write(s.row.Bytes())
	return err
}

// writeCell renders one cell. LOB files are only written for top level cells.
func (s *ArchiveSink) writeCell(b *bytes.Buffer, elem string, t *datatype.Type, c model.Cell, key pathstrategy.LOBKey, top bool) error {
	switch v := c.(type) {
	case model.NullCell:
		return nil

	case model.ComposedCell:
		b.WriteString("<" + elem + ">")
		prefix, childType := "u", func(i int) *datatype.Type { return nil }
		if t != nil {
			switch tv := t.Variant.(type) {
			case datatype.Structure:
				childType = func(i int) *datatype.Type {
					if i < len(tv.Fields) {
						return tv.Fields[i].Type
					}
					return nil
				}
			case datatype.Array:
				prefix = "a"
				childType = func(int) *datatype.Type { return tv.Element }
			}
		}
		for i, child := range v.Children {
			if err := s.writeCell(b, prefix+strconv.Itoa(i+1), childType(i), child, key, false); err != nil {
				return err
			}
		}
		b.WriteString("</" + elem + ">")
		return nil

	case model.SimpleCell:
		if top && isText(t) && utf8.RuneCountInString(v.Text) > InlineTextLimit {
			return s.writeLOBCell(b, elem, key, pathstrategy.Clob, int64(len(v.Text)), int64(utf8.RuneCountInString(v.Text)), bytes.NewReader([]byte(v.Text)))
		}
		writeText(b, elem, v.Text)
		return nil

	case *model.BinaryCell:
		rc, err := v.Open()
		if err != nil {
			return &core.DataError{Reason: "failed to open binary value", Err: err}
		}
		if isText(t) {
			data, err := io.ReadAll(rc)
			if err != nil {
				return &core.DataError{Reason: "failed to read text value", Err: err}
			}
			return s.writeCell(b, elem, t, model.SimpleCell{Text: string(data)}, key, top)
		}
		head := make([]byte, InlineBinaryLimit+1)
		n, err := io.ReadFull(rc, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return &core.DataError{Reason: "failed to read binary value", Err: err}
		}
		head = head[:n]
		if n <= InlineBinaryLimit || !top {
			if n > InlineBinaryLimit {
				rest, err := io.ReadAll(rc)
				if err != nil {
					return &core.DataError{Reason: "failed to read binary value", Err: err}
				}
				head = append(head, rest...)
			}
			b.WriteString("<" + elem + ">" + hex.EncodeToString(head) + "</" + elem + ">")
			return nil
		}
		size := v.Size
		if size < int64(n) {
			size = int64(n)
		}
		return s.writeLOBCell(b, elem, key, pathstrategy.Blob, size, -1, io.MultiReader(bytes.NewReader(head), rc))
	}
	return fmt.Errorf("unsupported cell %T", c)
}

// writeLOBCell stores r as a LOB file and renders the referencing element.
// length is the character count for text and -1 for binary values, which
// report the byte count.
func (s *ArchiveSink) writeLOBCell(b *bytes.Buffer, elem string, key pathstrategy.LOBKey, kind pathstrategy.LOBKind, size, length int64, r io.Reader) error {
	var (
		storage core.ArchiveStorage
		path    string
		ref     string
	)
	if s.strategy.Mode == lob.External {
		container := s.tracker.Place(key, size)
		name := s.strategy.ExternalFileName(key, s.rows, kind)
		storage, path, ref = s.aux, container+"/"+name, s.strategy.FileReference(container, name)
	} else {
		storage, path, ref = s.storage, s.strategy.InlinePath(key, s.rows, kind), s.strategy.InlineFileName(s.rows, kind)
	}
	w, err := storage.CreateOutputStream(path)
	if err != nil {
		return fmt.Errorf("failed to create lob %s: %w", path, err)
	}
	n, err := io.Copy(w, r)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &core.DataError{Reason: "failed to write lob " + path, Err: err}
	}
	if length < 0 {
		length = n
	}
	b.WriteString("<" + elem + ` file="`)
	xml.EscapeText(b, []byte(ref))
	b.WriteString(`" length="` + strconv.FormatInt(length, 10) + `"/>`)
	return nil
}

func (s *ArchiveSink) HandleCloseTable(ctx context.Context, tableID string) error {
	if s.w == nil {
		return nil
	}
	defer func() { s.out, s.w = nil, nil }()
	if _, err := s.w.WriteString("</table>\n"); err != nil {
		s.out.Close()
		return err
	}
	if err := s.w.Flush(); err != nil {
		s.out.Close()
		return err
	}
	s.table.RowCount = s.rows
	log.Printf("[CONTENT] Wrote table %s: %d rows", tableID, s.rows)
	return s.out.Close()
}

func (s *ArchiveSink) HandleCloseSchema(ctx context.Context, schema string) error { return nil }

// Finish writes the structural document.
func (s *ArchiveSink) Finish(ctx context.Context) error {
	return metadata.Export(ctx, s.storage, s.layout, s.db)
}

// Abort closes a table document left open by a failed conversion.
func (s *ArchiveSink) Abort(ctx context.Context) error {
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out, s.w = nil, nil
	return err
}

func writeText(b *bytes.Buffer, elem, text string) {
	b.WriteString("<" + elem + ">")
	xml.EscapeText(b, []byte(EscapeText(text)))
	b.WriteString("</" + elem + ">")
}

func isText(t *datatype.Type) bool {
	if t == nil {
		return false
	}
	_, ok := t.Variant.(datatype.Text)
	return ok
}

// holdsLOB reports whether values of t may be written to LOB files.
func holdsLOB(t *datatype.Type) bool {
	if t == nil {
		return false
	}
	switch t.Variant.(type) {
	case datatype.Text, datatype.Binary:
		return true
	}
	return false
}
