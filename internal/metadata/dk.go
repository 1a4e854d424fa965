package metadata

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// DefaultDKSchema is the schema Danish archives are imported into; the
// format has a single unnamed schema.
const DefaultDKSchema = "public"

// TableIndexName is the logical name of the Danish table index.
const TableIndexName = "tableIndex"

type dkTableIndex struct {
	XMLName         xml.Name  `xml:"siardDiark"`
	Version         string    `xml:"version"`
	DBName          string    `xml:"dbName"`
	DatabaseProduct string    `xml:"databaseProduct"`
	Tables          []dkTable `xml:"tables>table"`
	Views           []dkView  `xml:"views>view"`
}

type dkTable struct {
	Name        string          `xml:"name"`
	Folder      string          `xml:"folder"`
	Description string          `xml:"description"`
	Columns     []dkColumn      `xml:"columns>column"`
	PrimaryKey  *xmlKey         `xml:"primaryKey"`
	ForeignKeys []xmlForeignKey `xml:"foreignKeys>foreignKey"`
	Rows        string          `xml:"rows"`
}

type dkColumn struct {
	Name         string `xml:"name"`
	ColumnID     string `xml:"columnID"`
	Type         string `xml:"type"`
	TypeOriginal string `xml:"typeOriginal"`
	DefaultValue string `xml:"defaultValue"`
	Nullable     bool   `xml:"nullable"`
	Description  string `xml:"description"`
}

type dkView struct {
	Name          string `xml:"name"`
	QueryOriginal string `xml:"queryOriginal"`
	Description   string `xml:"description"`
}

// ImportDK reads Indices/tableIndex.xml into a single schema named schema.
// The table folders are recorded for the file index resolver.
func (im *Importer) ImportDK(ctx context.Context, schema string) (*model.Database, error) {
	path := pathstrategy.NewLayout(im.Version).MetadataPath(pathstrategy.XML, TableIndexName)
	data, err := readValid(ctx, im.Storage, path, tableIndexSchema)
	if err != nil {
		return nil, err
	}

	var doc dkTableIndex
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrParse, path, err)
	}

	db := model.NewDatabase(doc.DBName)
	db.ProductName, db.ProductVersion = splitProduct(doc.DatabaseProduct)
	s := db.AddSchema(schema)
	im.Builder.AssociateSchemaWithFolder(schema, "Tables")

	n := im.normalizer()
	for _, xt := range doc.Tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := model.TableID(schema, xt.Name)
		rows, err := parseRowCount(xt.Rows)
		if err != nil {
			im.report("Table `"+id+"`", err.Error()+"; table omitted")
			log.Printf("[METADATA] Omitting table %s: %v", id, err)
			continue
		}

		t := s.AddTable(xt.Name)
		t.Folder = xt.Folder
		t.Description = xt.Description
		t.RowCount = rows
		im.Builder.AssociateTableWithFolder(id, xt.Folder)

		for _, xc := range xt.Columns {
			typ, err := n.Normalize(xc.Type, 0, 0, 0)
			if err != nil {
				return nil, fmt.Errorf("%w: table %s column %s: %v", core.ErrSchemaValidation, id, xc.Name, err)
			}
			if xc.TypeOriginal != "" {
				typ.OriginalName = xc.TypeOriginal
			}
			c := t.AddColumn(xc.Name, typ)
			c.Nillable = xc.Nullable
			c.DefaultValue = xc.DefaultValue
			c.Description = xc.Description
		}
		applyConstraints(t, schema, xmlTable{PrimaryKey: xt.PrimaryKey, ForeignKeys: xt.ForeignKeys})
	}

	for _, v := range doc.Views {
		s.Views = append(s.Views, model.View{Name: v.Name, QueryOriginal: v.QueryOriginal, Description: v.Description})
	}

	if err := db.Index(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaValidation, err)
	}
	for _, p := range db.CheckReferences() {
		im.report("Database `"+db.Name+"`", p)
	}
	log.Printf("[METADATA] Imported %s (DK): %d tables", db.Name, len(s.Tables))
	return db, nil
}
