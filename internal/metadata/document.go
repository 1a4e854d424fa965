// Package metadata reads and writes the archive's structural document.
package metadata

import "encoding/xml"

// siardArchive mirrors header/metadata.xml for versions 1.0 and 2.x.
type siardArchive struct {
	XMLName             xml.Name `xml:"siardArchive"`
	Xmlns               string   `xml:"xmlns,attr,omitempty"`
	Version             string   `xml:"version,attr,omitempty"`
	DBName              string   `xml:"dbname"`
	Description         string   `xml:"description,omitempty"`
	Archiver            string   `xml:"archiver,omitempty"`
	ArchiverContact     string   `xml:"archiverContact,omitempty"`
	DataOwner           string   `xml:"dataOwner"`
	DataOriginTimespan  string   `xml:"dataOriginTimespan"`
	LOBFolder           string   `xml:"lobFolder,omitempty"`
	ProducerApplication string   `xml:"producerApplication,omitempty"`
	ArchivalDate        string   `xml:"archivalDate"`
	MessageDigest       string   `xml:"messageDigest,omitempty"`
	ClientMachine       string   `xml:"clientMachine,omitempty"`
	DatabaseProduct     string   `xml:"databaseProduct,omitempty"`
	Connection          string   `xml:"connection,omitempty"`
	DatabaseUser        string   `xml:"databaseUser,omitempty"`

	Schemas    []xmlSchema    `xml:"schemas>schema"`
	Users      []xmlUser      `xml:"users>user"`
	Roles      []xmlRole      `xml:"roles>role,omitempty"`
	Privileges []xmlPrivilege `xml:"privileges>privilege,omitempty"`
}

type xmlSchema struct {
	Name        string       `xml:"name"`
	Folder      string       `xml:"folder"`
	Description string       `xml:"description,omitempty"`
	Types       []xmlType    `xml:"types>type,omitempty"`
	Routines    []xmlRoutine `xml:"routines>routine,omitempty"`
	Tables      []xmlTable   `xml:"tables>table"`
	Views       []xmlView    `xml:"views>view,omitempty"`
}

type xmlType struct {
	Name         string         `xml:"name"`
	Category     string         `xml:"category"`
	Instantiable bool           `xml:"instantiable"`
	Final        bool           `xml:"final"`
	Attributes   []xmlAttribute `xml:"attributes>attribute"`
	Description  string         `xml:"description,omitempty"`
}

// xmlAttribute is a field of a user defined type.
type xmlAttribute struct {
	Name         string `xml:"name"`
	Type         string `xml:"type,omitempty"`
	TypeOriginal string `xml:"typeOriginal,omitempty"`
	TypeSchema   string `xml:"typeSchema,omitempty"`
	TypeName     string `xml:"typeName,omitempty"`
	Cardinality  string `xml:"cardinality,omitempty"`
	Description  string `xml:"description,omitempty"`
}

type xmlTable struct {
	Name             string               `xml:"name"`
	Folder           string               `xml:"folder"`
	Description      string               `xml:"description,omitempty"`
	Columns          []xmlColumn          `xml:"columns>column"`
	PrimaryKey       *xmlKey              `xml:"primaryKey,omitempty"`
	ForeignKeys      []xmlForeignKey      `xml:"foreignKeys>foreignKey,omitempty"`
	CandidateKeys    []xmlKey             `xml:"candidateKeys>candidateKey,omitempty"`
	CheckConstraints []xmlCheckConstraint `xml:"checkConstraints>checkConstraint,omitempty"`
	Triggers         []xmlTrigger         `xml:"triggers>trigger,omitempty"`
	Rows             string               `xml:"rows"`
}

type xmlColumn struct {
	Name         string `xml:"name"`
	Folder       string `xml:"folder,omitempty"`
	LOBFolder    string `xml:"lobFolder,omitempty"`
	Type         string `xml:"type,omitempty"`
	TypeOriginal string `xml:"typeOriginal,omitempty"`
	TypeSchema   string `xml:"typeSchema,omitempty"`
	TypeName     string `xml:"typeName,omitempty"`
	Cardinality  string `xml:"cardinality,omitempty"`
	Nullable     *bool  `xml:"nullable,omitempty"`
	DefaultValue string `xml:"defaultValue,omitempty"`
	Description  string `xml:"description,omitempty"`
}

type xmlKey struct {
	Name        string   `xml:"name"`
	Columns     []string `xml:"column"`
	Description string   `xml:"description,omitempty"`
}

type xmlReference struct {
	Column     string `xml:"column"`
	Referenced string `xml:"referenced"`
}

type xmlForeignKey struct {
	Name             string         `xml:"name"`
	ReferencedSchema string         `xml:"referencedSchema"`
	ReferencedTable  string         `xml:"referencedTable"`
	References       []xmlReference `xml:"reference"`
	MatchType        string         `xml:"matchType,omitempty"`
	DeleteAction     string         `xml:"deleteAction,omitempty"`
	UpdateAction     string         `xml:"updateAction,omitempty"`
	Description      string         `xml:"description,omitempty"`
}

type xmlCheckConstraint struct {
	Name        string `xml:"name"`
	Condition   string `xml:"condition"`
	Description string `xml:"description,omitempty"`
}

type xmlTrigger struct {
	Name            string `xml:"name"`
	ActionTime      string `xml:"actionTime"`
	TriggerEvent    string `xml:"triggerEvent"`
	AliasList       string `xml:"aliasList,omitempty"`
	TriggeredAction string `xml:"triggeredAction"`
	Description     string `xml:"description,omitempty"`
}

type xmlView struct {
	Name          string      `xml:"name"`
	Query         string      `xml:"query,omitempty"`
	QueryOriginal string      `xml:"queryOriginal,omitempty"`
	Description   string      `xml:"description,omitempty"`
	Columns       []xmlColumn `xml:"columns>column"`
}

type xmlParameter struct {
	Name         string `xml:"name"`
	Mode         string `xml:"mode"`
	Type         string `xml:"type,omitempty"`
	TypeOriginal string `xml:"typeOriginal,omitempty"`
	Description  string `xml:"description,omitempty"`
}

type xmlRoutine struct {
	SpecificName   string         `xml:"specificName"`
	Name           string         `xml:"name"`
	Description    string         `xml:"description,omitempty"`
	Source         string         `xml:"source,omitempty"`
	Body           string         `xml:"body,omitempty"`
	Characteristic string         `xml:"characteristic,omitempty"`
	ReturnType     string         `xml:"returnType,omitempty"`
	Parameters     []xmlParameter `xml:"parameters>parameter,omitempty"`
}

type xmlUser struct {
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
}

type xmlRole struct {
	Name        string `xml:"name"`
	Admin       string `xml:"admin"`
	Description string `xml:"description,omitempty"`
}

type xmlPrivilege struct {
	Type        string `xml:"type"`
	Object      string `xml:"object"`
	Grantor     string `xml:"grantor"`
	Grantee     string `xml:"grantee"`
	Option      string `xml:"option,omitempty"`
	Description string `xml:"description,omitempty"`
}
