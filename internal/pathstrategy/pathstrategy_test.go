package pathstrategy

import (
	"context"
	"errors"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
)

func TestLayout(t *testing.T) {
	t.Parallel()

	Convey("Layout", t, func() {
		l := NewLayout(archive.Version22)

		So(l.MetadataPath(XML, "metadata"), ShouldEqual, "header/metadata.xml")
		So(l.MetadataPath(XSD, "metadata"), ShouldEqual, "header/metadata.xsd")
		So(l.VersionMarkerPath(), ShouldEqual, "header/siardversion/2.2/")
		So(l.TableContentPath(1, 3, XML), ShouldEqual, "content/schema1/table3/table3.xml")
		So(l.TableContentPath(1, 3, XSD), ShouldEqual, "content/schema1/table3/table3.xsd")
		So(l.LOBFileName(7, Clob), ShouldEqual, "record7.txt")
		So(l.LOBFilePath(1, 2, 4, 9, Blob), ShouldEqual, "content/schema1/table2/lob4/record9.bin")

		Convey("legacy and danish variants", func() {
			So(NewLayout(archive.Version10).VersionMarkerPath(), ShouldEqual, "")
			dk := NewLayout(archive.VersionDK)
			So(dk.MetadataPath(XML, "tableIndex"), ShouldEqual, "Indices/tableIndex.xml")
			So(dk.MetadataPath(XSD, "tableIndex"), ShouldEqual, "Schemas/standard/tableIndex.xsd")
		})
	})
}

func TestResolver(t *testing.T) {
	t.Parallel()

	Convey("Resolver", t, func() {
		b := NewBuilder(NewLayout(archive.Version21))

		Convey("without associations", func() {
			r := b.Freeze()
			_, err := r.ResolveContentPath("public", "public.t")
			So(err, ShouldEqual, core.ErrNoAssociations)
			_, err = r.ResolveLOBPath("", "public", "public.t", "public.t.c", "record1.bin")
			So(err, ShouldEqual, core.ErrNoAssociations)
			So(r.ResolveMetadataPath(XML, "metadata"), ShouldEqual, "header/metadata.xml")
		})

		Convey("with associations", func() {
			b.AssociateSchemaWithFolder("public", "schema1")
			b.AssociateTableWithFolder("public.t", "table1")
			b.AssociateColumnWithFolder("public.t.c", "lob2")
			r := b.Freeze()

			Convey("content paths", func() {
				p, err := r.ResolveContentPath("public", "public.t")
				So(err, ShouldBeNil)
				So(p.XML, ShouldEqual, "content/schema1/table1/table1.xml")
				So(p.XSD, ShouldEqual, "content/schema1/table1/table1.xsd")
			})

			Convey("unknown table", func() {
				_, err := r.ResolveContentPath("public", "public.other")
				So(errors.Is(err, core.ErrUnresolvedFolder), ShouldBeTrue)
				So(core.IsTableLocal(err), ShouldBeTrue)
			})

			Convey("associations made after freezing are not visible", func() {
				b.AssociateTableWithFolder("public.late", "table9")
				_, err := r.ResolveContentPath("public", "public.late")
				So(errors.Is(err, core.ErrUnresolvedFolder), ShouldBeTrue)
			})

			Convey("all LOB segments set", func() {
				p, err := r.ResolveLOBPath("content", "public", "public.t", "public.t.c", "record1.bin")
				So(err, ShouldBeNil)
				So(p, ShouldEqual, "content/schema1/table1/lob2/record1.bin")
			})

			Convey("file attribute already carries the directory", func() {
				p, err := r.ResolveLOBPath("content", "public", "public.t", "public.t.c", "content/schema1/table1/lob2/record1.bin")
				So(err, ShouldBeNil)
				So(p, ShouldEqual, "content/schema1/table1/lob2/record1.bin")
			})

			Convey("unset base and column give the bare file", func() {
				p, err := r.ResolveLOBPath("", "public", "public.t", "public.x", "record1.bin")
				So(err, ShouldBeNil)
				So(p, ShouldEqual, "record1.bin")
			})

			Convey("escaping file reference", func() {
				p, err := r.ResolveLOBPath("", "public", "public.t", "public.x", "../db_lobs/s1_t1_c2/seg_0/t1_c2_r1.bin")
				So(err, ShouldBeNil)
				So(p, ShouldEqual, "db_lobs/s1_t1_c2/seg_0/t1_c2_r1.bin")
			})
		})

		Convey("database LOB folder fills a blank base", func() {
			b.AssociateSchemaWithFolder("s", "schema1")
			b.AssociateTableWithFolder("s.t", "table1")
			b.AssociateColumnWithFolder("s.t.c", "lob1")
			b.SetLOBFolder("content")
			r := b.Freeze()
			p, err := r.ResolveLOBPath("", "s", "s.t", "s.t.c", "record2.txt")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, "content/schema1/table1/lob1/record2.txt")
		})
	})
}

func TestExternalLayout(t *testing.T) {
	t.Parallel()

	Convey("ExternalLayout", t, func() {
		l := NewExternalLayout("/data/out/db.siard")
		key := LOBKey{Schema: 1, Table: 2, Column: 3}

		So(l.LOBDir(), ShouldEqual, "db_lobs")
		So(l.ContainerPath(key, 0), ShouldEqual, "db_lobs/s1_t2_c3/seg_0")
		So(l.ExternalFileName(key, 5, Blob), ShouldEqual, "t2_c3_r5.bin")
		So(l.FileReference(l.ContainerPath(key, 0), "t2_c3_r5.bin"), ShouldEqual, "../db_lobs/s1_t2_c3/seg_0/t2_c3_r5.bin")
	})
}

const fileIndexXML = `<?xml version="1.0" encoding="UTF-8"?>
<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0">
  <f><foN>AVID.SA.18000.1\Indices</foN><fiN>tableIndex.xml</fiN><md5>1193BCAF1511C34DF0F2DAFFC63E78F7</md5></f>
  <f><foN>AVID.SA.18000.1\Tables\table1</foN><fiN>table1.xml</fiN><md5>0123456789ABCDEF0123456789ABCDEF</md5></f>
  <f><foN>AVID.SA.18000.1\Tables\table1</foN><fiN>table1.xsd</fiN><md5>FEDCBA9876543210FEDCBA9876543210</md5></f>
</fileIndex>`

func writeFileIndex(s core.ArchiveStorage, body string) error {
	w, err := s.CreateOutputStream("Indices/fileIndex.xml")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

func TestManifestResolver(t *testing.T) {
	t.Parallel()

	Convey("ManifestResolver", t, func() {
		s := archive.NewFolderStorage(t.TempDir(), archive.Write)
		So(s.Setup(context.Background()), ShouldBeNil)

		b := NewBuilder(NewLayout(archive.VersionDK))
		b.AssociateTableWithFolder("public.customers", "table1")
		tables := b.Freeze()

		Convey("resolves indexed tables", func() {
			So(writeFileIndex(s, fileIndexXML), ShouldBeNil)
			m := NewManifestResolver(s, tables)
			So(m.Parse(), ShouldBeNil)
			So(m.Parse(), ShouldBeNil)

			p, err := m.ResolveContentPath("public", "public.customers")
			So(err, ShouldBeNil)
			So(p.XML, ShouldEqual, "Tables/table1/table1.xml")
			So(p.XSD, ShouldEqual, "Tables/table1/table1.xsd")

			sum, ok := m.Checksum("Tables/table1/table1.xml")
			So(ok, ShouldBeTrue)
			So(sum, ShouldEqual, "0123456789abcdef0123456789abcdef")

			entries, err := m.Entries()
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 3)
			So(entries[0].Path, ShouldEqual, "Indices/tableIndex.xml")
		})

		Convey("duplicate table documents are fatal", func() {
			dup := `<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0">
  <f><foN>AVID.SA.1.1\Tables\table1</foN><fiN>table1.xml</fiN><md5>0123456789ABCDEF0123456789ABCDEF</md5></f>
  <f><foN>AVID.SA.1.1\Tables\table1</foN><fiN>TABLE1.XML</fiN><md5>0123456789ABCDEF0123456789ABCDEF</md5></f>
</fileIndex>`
			So(writeFileIndex(s, dup), ShouldBeNil)
			err := NewManifestResolver(s, tables).Parse()
			So(errors.Is(err, core.ErrSchemaValidation), ShouldBeTrue)
		})

		Convey("documents violating fileIndex.xsd are rejected", func() {
			for _, bad := range []string{
				`<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0"><f><foN>AVID.SA.1.1\Tables\table1</foN><fiN>table1.xml</fiN><md5>zz</md5></f></fileIndex>`,
				`<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0"><f><foN>AVID.SA.1.1\Tables\table1</foN><md5>0123456789ABCDEF0123456789ABCDEF</md5></f></fileIndex>`,
				`<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0"><f><foN>AVID.SA.1.1</foN><fiN>a.xml</fiN><md5>0123456789ABCDEF0123456789ABCDEF</md5><size>3</size></f></fileIndex>`,
				`<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0"></fileIndex>`,
				`<fileIndex><f><foN>AVID.SA.1.1</foN><fiN>a.xml</fiN><md5>0123456789ABCDEF0123456789ABCDEF</md5></f></fileIndex>`,
			} {
				So(writeFileIndex(s, bad), ShouldBeNil)
				err := NewManifestResolver(s, tables).Parse()
				So(errors.Is(err, core.ErrSchemaValidation), ShouldBeTrue)
			}
		})

		Convey("malformed xml", func() {
			So(writeFileIndex(s, `<fileIndex xmlns="http://www.sa.dk/xmlns/diark/1.0"><f></fileIndex>`), ShouldBeNil)
			err := NewManifestResolver(s, tables).Parse()
			So(errors.Is(err, core.ErrParse), ShouldBeTrue)
		})

		Convey("table without indexed documents", func() {
			b.AssociateTableWithFolder("public.orders", "table2")
			So(writeFileIndex(s, fileIndexXML), ShouldBeNil)
			_, err := NewManifestResolver(s, b.Freeze()).ResolveContentPath("public", "public.orders")
			So(errors.Is(err, core.ErrUnresolvedFolder), ShouldBeTrue)
		})
	})
}
