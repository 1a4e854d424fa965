package metadata

import (
	"context"
	"encoding/xml"
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
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// Export writes the structural document, its schema and the version marker.
func Export(ctx context.Context, storage core.ArchiveStorage, layout pathstrategy.Layout, db *model.Database) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := toDocument(layout, db)

	if err := writeEntry(storage, layout.MetadataPath(pathstrategy.XML, MetadataName), func(w io.Writer) error {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := writeEntry(storage, layout.MetadataPath(pathstrategy.XSD, MetadataName), func(w io.Writer) error {
		_, err := w.Write(schemaFor(layout.Version).Bytes())
		return err
	}); err != nil {
		return fmt.Errorf("failed to write metadata schema: %w", err)
	}

	if marker := layout.VersionMarkerPath(); marker != "" {
		w, err := storage.CreateOutputStream(marker)
		if err != nil {
			return fmt.Errorf("failed to write version marker: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("failed to write version marker: %w", err)
		}
	}
	log.Printf("[METADATA] Exported %s (version %s)", db.Name, layout.Version)
	return nil
}

func writeEntry(storage core.ArchiveStorage, path string, fill func(io.Writer) error) error {
	w, err := storage.CreateOutputStream(path)
	if err != nil {
		return err
	}
	if err := fill(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func toDocument(layout pathstrategy.Layout, db *model.Database) *siardArchive {
	doc := &siardArchive{
		Xmlns:               layout.MetadataNamespace(),
		DBName:              db.Name,
		Description:         db.Description,
		DataOwner:           orUnspecified(db.DataOwner),
		DataOriginTimespan:  "unspecified",
		LOBFolder:           db.LOBFolder,
		ProducerApplication: db.Producer,
		DatabaseProduct:     strings.TrimSpace(db.ProductName + " " + db.ProductVersion),
	}
	if layout.Version != archive.Version10 {
		doc.Version = string(layout.Version)
	}
	archived := db.ArchivalDate
	if archived.IsZero() {
		archived = time.Now()
	}
	doc.ArchivalDate = archived.Format("2006-01-02")

	legacy := layout.Version == archive.Version10
	udts := collectStructures(db)

	for si, s := range db.Schemas {
		xs := xmlSchema{Name: s.Name, Folder: s.Folder, Description: s.Description}
		if xs.Folder == "" {
			xs.Folder = layout.SchemaFolder(si + 1)
		}
		for _, t := range udts[s.Name] {
			xs.Types = append(xs.Types, udtOf(t, legacy))
		}
		for ti, t := range s.Tables {
			xs.Tables = append(xs.Tables, tableOf(layout, t, ti+1, legacy))
		}
		for _, v := range s.Views {
			xv := xmlView{Name: v.Name, Query: v.Query, QueryOriginal: v.QueryOriginal, Description: v.Description}
			for _, c := range v.Columns {
				xv.Columns = append(xv.Columns, columnOf(c, legacy))
			}
			xs.Views = append(xs.Views, xv)
		}
		for _, r := range s.Routines {
			xr := xmlRoutine{
				SpecificName:   r.SpecificName,
				Name:           r.Name,
				Description:    r.Description,
				Source:         r.Source,
				Body:           r.Body,
				Characteristic: r.Characteristic,
				ReturnType:     r.ReturnType,
			}
			if xr.SpecificName == "" {
				xr.SpecificName = r.Name
			}
			for _, p := range r.Parameters {
				xp := xmlParameter{Name: p.Name, Mode: p.Mode, Description: p.Description}
				if p.Type != nil {
					xp.Type = standardName(p.Type, legacy)
					xp.TypeOriginal = p.Type.OriginalName
				}
				xr.Parameters = append(xr.Parameters, xp)
			}
			xs.Routines = append(xs.Routines, xr)
		}
		doc.Schemas = append(doc.Schemas, xs)
	}

	for _, u := range db.Users {
		doc.Users = append(doc.Users, xmlUser{Name: u.Name, Description: u.Description})
	}
	for _, r := range db.Roles {
		doc.Roles = append(doc.Roles, xmlRole{Name: r.Name, Admin: r.Admin, Description: r.Description})
	}
	for _, p := range db.Privileges {
		doc.Privileges = append(doc.Privileges, xmlPrivilege{
			Type: p.Type, Object: p.Object, Grantor: p.Grantor, Grantee: p.Grantee, Option: p.Option, Description: p.Description,
		})
	}
	return doc
}

func tableOf(layout pathstrategy.Layout, t *model.Table, index int, legacy bool) xmlTable {
	xt := xmlTable{
		Name:        t.Name,
		Folder:      t.Folder,
		Description: t.Description,
		Rows:        strconv.FormatInt(t.RowCount, 10),
	}
	if xt.Folder == "" {
		xt.Folder = layout.TableFolder(index)
	}
	for _, c := range t.Columns {
		xt.Columns = append(xt.Columns, columnOf(c, legacy))
	}
	if pk := t.PrimaryKey; pk != nil {
		xt.PrimaryKey = &xmlKey{Name: pk.Name, Columns: pk.Columns, Description: pk.Description}
	}
	for _, fk := range t.ForeignKeys {
		xf := xmlForeignKey{
			Name:             fk.Name,
			ReferencedSchema: fk.ReferencedSchema,
			ReferencedTable:  fk.ReferencedTable,
			MatchType:        fk.MatchType,
			DeleteAction:     fk.DeleteAction,
			UpdateAction:     fk.UpdateAction,
			Description:      fk.Description,
		}
		for _, r := range fk.References {
			xf.References = append(xf.References, xmlReference{Column: r.Column, Referenced: r.Referenced})
		}
		xt.ForeignKeys = append(xt.ForeignKeys, xf)
	}
	for _, ck := range t.CandidateKeys {
		xt.CandidateKeys = append(xt.CandidateKeys, xmlKey{Name: ck.Name, Columns: ck.Columns, Description: ck.Description})
	}
	for _, cc := range t.CheckConstraints {
		xt.CheckConstraints = append(xt.CheckConstraints, xmlCheckConstraint{Name: cc.Name, Condition: cc.Condition, Description: cc.Description})
	}
	for _, tr := range t.Triggers {
		xt.Triggers = append(xt.Triggers, xmlTrigger{
			Name:            tr.Name,
			ActionTime:      tr.ActionTime,
			TriggerEvent:    tr.Event,
			AliasList:       tr.AliasList,
			TriggeredAction: tr.TriggeredAction,
			Description:     tr.Description,
		})
	}
	return xt
}

func columnOf(c *model.Column, legacy bool) xmlColumn {
	nullable := c.Nillable
	xc := xmlColumn{
		Name:         c.Name,
		Nullable:     &nullable,
		DefaultValue: c.DefaultValue,
		Description:  c.Description,
	}
	if legacy {
		xc.Folder = c.Folder
	} else {
		xc.LOBFolder = c.Folder
	}
	ref := refFor(c.Type, legacy)
	xc.Type, xc.TypeOriginal = ref.Type, ref.TypeOriginal
	xc.TypeSchema, xc.TypeName = ref.TypeSchema, ref.TypeName
	xc.Cardinality = ref.Cardinality
	return xc
}

// refFor describes t the way a column or attribute element carries it.
func refFor(t *datatype.Type, legacy bool) typeRef {
	if t == nil {
		return typeRef{}
	}
	switch v := t.Variant.(type) {
	case datatype.Structure:
		return typeRef{TypeSchema: v.Schema, TypeName: v.Name, TypeOriginal: t.OriginalName}
	case datatype.Array:
		if v.DeclaredLength != nil {
			ref := refFor(v.Element, legacy)
			ref.Cardinality = strconv.Itoa(*v.DeclaredLength)
			return ref
		}
	}
	return typeRef{Type: standardName(t, legacy), TypeOriginal: t.OriginalName}
}

func standardName(t *datatype.Type, legacy bool) string {
	if legacy && t.SQL99Name != "" {
		return t.SQL99Name
	}
	return t.CanonicalName()
}

func udtOf(t *datatype.Type, legacy bool) xmlType {
	st := t.Variant.(datatype.Structure)
	xt := xmlType{Name: st.Name, Category: "udt", Instantiable: true, Final: true, Description: t.Description}
	for _, f := range st.Fields {
		ref := refFor(f.Type, legacy)
		xt.Attributes = append(xt.Attributes, xmlAttribute{
			Name:         f.Name,
			Type:         ref.Type,
			TypeOriginal: ref.TypeOriginal,
			TypeSchema:   ref.TypeSchema,
			TypeName:     ref.TypeName,
			Cardinality:  ref.Cardinality,
		})
	}
	return xt
}

// collectStructures gathers every structure a schema declares or a column
// uses, keyed by the structure's own schema, nested structures first.
func collectStructures(db *model.Database) map[string][]*datatype.Type {
	out := make(map[string][]*datatype.Type)
	seen := make(map[string]bool)

	var walk func(t *datatype.Type)
	walk = func(t *datatype.Type) {
		if t == nil {
			return
		}
		switch v := t.Variant.(type) {
		case datatype.Array:
			walk(v.Element)
		case datatype.Structure:
			for _, f := range v.Fields {
				walk(f.Type)
			}
			key := udtKey(v.Schema, v.Name)
			if !seen[key] {
				seen[key] = true
				out[v.Schema] = append(out[v.Schema], t)
			}
		}
	}
	for _, s := range db.Schemas {
		for _, t := range s.Types {
			walk(t)
		}
		for _, t := range s.Tables {
			for _, c := range t.Columns {
				walk(c.Type)
			}
		}
	}
	return out
}

func orUnspecified(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
