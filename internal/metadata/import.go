package metadata

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
	"github.com/rzpsarthak13/dbarchive/internal/xmlschema"
)

// MetadataName is the logical name of the structural document.
const MetadataName = "metadata"

// errRowOverflow marks a declared row count that does not fit in int64.
var errRowOverflow = errors.New("declared row count overflows a 64-bit counter")

// Importer builds a model.Database from an archive's structural document and
// records every folder it names on Builder.
type Importer struct {
	Storage  core.ArchiveStorage
	Version  archive.Version
	Builder  *pathstrategy.Builder
	Reporter core.Reporter

	// Normalizer defaults to SQL:1999 for version 1.0 and SQL:2008 otherwise.
	Normalizer *normalize.Normalizer
}

func (im *Importer) normalizer() *normalize.Normalizer {
	if im.Normalizer != nil {
		return im.Normalizer
	}
	if im.Version == archive.Version10 || im.Version == archive.VersionDK {
		im.Normalizer = normalize.New(normalize.SQL99)
	} else {
		im.Normalizer = normalize.New(normalize.SQL2008)
	}
	return im.Normalizer
}

func (im *Importer) report(subject, reason string) {
	if im.Reporter != nil {
		im.Reporter.Failed(subject, reason)
	}
}

// Import reads header/metadata.xml. Parse and validation failures are fatal;
// tables that cannot be described are reported and left out.
func (im *Importer) Import(ctx context.Context) (*model.Database, error) {
	if im.Version == archive.VersionDK {
		return im.ImportDK(ctx, DefaultDKSchema)
	}

	path := pathstrategy.NewLayout(im.Version).MetadataPath(pathstrategy.XML, MetadataName)
	data, err := readValid(ctx, im.Storage, path, schemaFor(im.Version))
	if err != nil {
		return nil, err
	}

	var doc siardArchive
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrParse, path, err)
	}
	if err := NewValidator(&doc).Validate(); err != nil {
		return nil, err
	}

	db, err := im.build(ctx, &doc)
	if err != nil {
		return nil, err
	}
	log.Printf("[METADATA] Imported %s: %d schemas, %d tables", db.Name, len(db.Schemas), len(db.Tables()))
	return db, nil
}

// readValid reads a structural document and validates it against schema
// before anything is decoded from it.
func readValid(ctx context.Context, storage core.ArchiveStorage, path string, schema *xmlschema.Schema) ([]byte, error) {
	r, err := storage.CreateInputStream(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := schema.Validate(ctx, path, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (im *Importer) build(ctx context.Context, doc *siardArchive) (*model.Database, error) {
	db := model.NewDatabase(doc.DBName)
	db.Description = doc.Description
	db.ProductName, db.ProductVersion = splitProduct(doc.DatabaseProduct)
	db.DataOwner = doc.DataOwner
	db.Producer = doc.ProducerApplication
	db.ArchivalDate = parseDate(doc.ArchivalDate)
	db.LOBFolder = doc.LOBFolder

	lobFolder := doc.LOBFolder
	if lobFolder == "" && im.Version == archive.Version10 {
		// 1.0 cells carry the full path below content/.
		lobFolder = "content"
	}
	im.Builder.SetLOBFolder(lobFolder)

	udts := newTypeResolver(im.normalizer(), doc.Schemas)
	for _, xs := range doc.Schemas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := db.AddSchema(xs.Name)
		s.Folder = xs.Folder
		s.Description = xs.Description
		im.Builder.AssociateSchemaWithFolder(xs.Name, xs.Folder)

		for _, xt := range xs.Types {
			t, err := udts.resolve(xs.Name, xt.Name)
			if err != nil {
				return nil, err
			}
			s.Types = append(s.Types, t)
		}

		for _, xt := range xs.Tables {
			rows, err := parseRowCount(xt.Rows)
			if err != nil {
				id := model.TableID(xs.Name, xt.Name)
				im.report("Table `"+id+"`", err.Error()+"; table omitted")
				log.Printf("[METADATA] Omitting table %s: %v", id, err)
				continue
			}
			t := s.AddTable(xt.Name)
			t.Folder = xt.Folder
			t.Description = xt.Description
			t.RowCount = rows
			im.Builder.AssociateTableWithFolder(t.ID(), xt.Folder)

			for _, xc := range xt.Columns {
				typ, err := udts.columnType(xs.Name, refOf(xc))
				if err != nil {
					return nil, fmt.Errorf("table %s column %s: %w", t.ID(), xc.Name, err)
				}
				c := t.AddColumn(xc.Name, typ)
				if xc.Nullable != nil {
					c.Nillable = *xc.Nullable
				}
				c.DefaultValue = xc.DefaultValue
				c.Description = xc.Description
				c.Folder = xc.LOBFolder
				if c.Folder == "" {
					c.Folder = xc.Folder
				}
				if c.Folder != "" {
					im.Builder.AssociateColumnWithFolder(c.ID(), c.Folder)
				}
			}
			applyConstraints(t, xs.Name, xt)
		}

		for _, xv := range xs.Views {
			v := model.View{Name: xv.Name, Query: xv.Query, QueryOriginal: xv.QueryOriginal, Description: xv.Description}
			for _, xc := range xv.Columns {
				typ, err := udts.columnType(xs.Name, refOf(xc))
				if err != nil {
					im.report("View `"+xs.Name+"."+xv.Name+"`", err.Error())
					typ = datatype.NewUnsupported(xc.Type)
				}
				v.Columns = append(v.Columns, &model.Column{Name: xc.Name, Type: typ, Nillable: true, Description: xc.Description})
			}
			s.Views = append(s.Views, v)
		}

		for _, xr := range xs.Routines {
			s.Routines = append(s.Routines, im.routine(xr))
		}
	}

	for _, u := range doc.Users {
		db.Users = append(db.Users, model.User{Name: u.Name, Description: u.Description})
	}
	for _, r := range doc.Roles {
		db.Roles = append(db.Roles, model.Role{Name: r.Name, Admin: r.Admin, Description: r.Description})
	}
	for _, p := range doc.Privileges {
		db.Privileges = append(db.Privileges, model.Privilege{
			Type: p.Type, Object: p.Object, Grantor: p.Grantor, Grantee: p.Grantee, Option: p.Option, Description: p.Description,
		})
	}

	if err := db.Index(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
	}
	for _, p := range db.CheckReferences() {
		im.report("Database `"+db.Name+"`", p)
	}
	return db, nil
}

func applyConstraints(t *model.Table, schema string, xt xmlTable) {
	if xt.PrimaryKey != nil {
		t.PrimaryKey = &model.PrimaryKey{
			Name:        xt.PrimaryKey.Name,
			Columns:     xt.PrimaryKey.Columns,
			Description: xt.PrimaryKey.Description,
		}
	}
	for _, fk := range xt.ForeignKeys {
		m := model.ForeignKey{
			Name:             fk.Name,
			ReferencedSchema: fk.ReferencedSchema,
			ReferencedTable:  fk.ReferencedTable,
			MatchType:        fk.MatchType,
			DeleteAction:     fk.DeleteAction,
			UpdateAction:     fk.UpdateAction,
			Description:      fk.Description,
		}
		if m.ReferencedSchema == "" {
			m.ReferencedSchema = schema
		}
		for _, r := range fk.References {
			m.References = append(m.References, model.Reference{Column: r.Column, Referenced: r.Referenced})
		}
		t.ForeignKeys = append(t.ForeignKeys, m)
	}
	for _, ck := range xt.CandidateKeys {
		t.CandidateKeys = append(t.CandidateKeys, model.CandidateKey{Name: ck.Name, Columns: ck.Columns, Description: ck.Description})
	}
	for _, cc := range xt.CheckConstraints {
		t.CheckConstraints = append(t.CheckConstraints, model.CheckConstraint{Name: cc.Name, Condition: cc.Condition, Description: cc.Description})
	}
	for _, tr := range xt.Triggers {
		t.Triggers = append(t.Triggers, model.Trigger{
			Name:            tr.Name,
			ActionTime:      tr.ActionTime,
			Event:           tr.TriggerEvent,
			AliasList:       tr.AliasList,
			TriggeredAction: tr.TriggeredAction,
			Description:     tr.Description,
		})
	}
}

func (im *Importer) routine(xr xmlRoutine) model.Routine {
	r := model.Routine{
		Name:           xr.Name,
		SpecificName:   xr.SpecificName,
		Description:    xr.Description,
		Source:         xr.Source,
		Body:           xr.Body,
		Characteristic: xr.Characteristic,
		ReturnType:     xr.ReturnType,
	}
	for _, p := range xr.Parameters {
		typ, err := im.normalizer().Normalize(p.Type, 0, 0, 0)
		if err != nil {
			typ = datatype.NewUnsupported(p.Type)
		}
		if p.TypeOriginal != "" {
			typ.OriginalName = p.TypeOriginal
		}
		r.Parameters = append(r.Parameters, model.Parameter{Name: p.Name, Mode: p.Mode, Type: typ, Description: p.Description})
	}
	return r
}

// parseRowCount parses a declared row count. A value beyond int64 is a
// per-table error rather than being clamped.
func parseRowCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", errRowOverflow, s)
		}
		return 0, fmt.Errorf("%w: rows %q", core.ErrSchemaValidation, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: rows %d is negative", core.ErrSchemaValidation, n)
	}
	return n, nil
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// splitProduct splits "PostgreSQL 16.2" into name and version.
func splitProduct(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ' '); i > 0 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
		return s[:i], s[i+1:]
	}
	return s, ""
}
