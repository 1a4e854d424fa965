// Package archive implements the archive container and its byte storage.
package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// Version is an archive format version.
type Version string

const (
	VersionUnknown Version = ""
	Version10      Version = "1.0"
	Version20      Version = "2.0"
	Version21      Version = "2.1"
	Version22      Version = "2.2"
	VersionDK      Version = "dk"
)

// Kind is the on-disk shape of a container.
type Kind int

const (
	// Packed is a single zip file.
	Packed Kind = iota
	// Folder is an exploded directory tree.
	Folder
	// FolderWithChecksums is a directory tree with a file manifest.
	FolderWithChecksums
)

func (k Kind) String() string {
	switch k {
	case Packed:
		return "packed"
	case Folder:
		return "folder"
	case FolderWithChecksums:
		return "folder-with-checksums"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind parses the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "packed", "zip", "":
		return Packed, nil
	case "folder":
		return Folder, nil
	case "folder-with-checksums", "checksums":
		return FolderWithChecksums, nil
	}
	return Packed, fmt.Errorf("unknown archive kind %q", s)
}

// Role distinguishes the main archive from auxiliary LOB containers.
type Role int

const (
	Main Role = iota
	Auxiliary
)

// Mode selects whether a container is read or written.
type Mode int

const (
	Read Mode = iota
	Write
)

// Fixed paths probed during version detection.
const (
	VersionMarkerDir = "header/siardversion/"
	MetadataPath     = "header/metadata.xml"
	DKFileIndexPath  = "Indices/fileIndex.xml"
)

var (
	// ErrUnknownVersion is returned when no version marker is found.
	ErrUnknownVersion = errors.New("cannot determine archive version")

	// ErrNotSetUp is returned when storage is used before Setup.
	ErrNotSetUp = errors.New("archive container is not set up")
)

type state int

const (
	stateNew state = iota
	stateOpen
	stateFinished
)

// Container identifies one archive instance. A container is set up once,
// used, and finished; it is never reused for a different archive.
type Container struct {
	Version Version
	Path    string
	Kind    Kind
	Role    Role

	// Checksum selects the manifest digest of a FolderWithChecksums
	// container. MD5 when empty.
	Checksum ChecksumScheme

	mode    Mode
	storage core.ArchiveStorage
	state   state
}

// NewContainer describes an archive at path. version may be VersionUnknown
// when reading; it is then detected during Setup.
func NewContainer(path string, kind Kind, role Role, version Version) *Container {
	return &Container{Path: path, Kind: kind, Role: role, Version: version}
}

// Setup opens the underlying storage.
func (c *Container) Setup(ctx context.Context, mode Mode) error {
	if c.state != stateNew {
		return fmt.Errorf("%w: %s", core.ErrContainerReused, c.Path)
	}
	c.mode = mode

	var s core.ArchiveStorage
	switch c.Kind {
	case Packed:
		s = NewZipStorage(c.Path, mode)
	case Folder, FolderWithChecksums:
		s = NewFolderStorage(c.Path, mode)
	default:
		return fmt.Errorf("unsupported archive kind %s", c.Kind)
	}

	if err := s.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up %s container %s: %w", c.Kind, c.Path, err)
	}
	c.storage = s
	c.state = stateOpen

	if mode == Read && c.Role == Main && c.Version == VersionUnknown {
		v, err := DetectVersion(s)
		if err != nil {
			_ = s.Finish()
			c.state = stateFinished
			return err
		}
		c.Version = v
		log.Printf("[ARCHIVE] Detected version %s for %s", v, c.Path)
	}
	return nil
}

// Storage returns the container's byte storage.
func (c *Container) Storage() (core.ArchiveStorage, error) {
	if c.state != stateOpen {
		return nil, fmt.Errorf("%w: %s", ErrNotSetUp, c.Path)
	}
	return c.storage, nil
}

// Finish releases the storage. It is a no-op on a finished container.
func (c *Container) Finish() error {
	if c.state != stateOpen {
		c.state = stateFinished
		return nil
	}
	c.state = stateFinished
	if err := c.storage.Finish(); err != nil {
		return fmt.Errorf("failed to finish container %s: %w", c.Path, err)
	}
	if c.Kind == FolderWithChecksums && c.mode == Write {
		scheme := c.Checksum
		if scheme == "" {
			scheme = MD5
		}
		n, err := WriteManifest(c.Path, scheme)
		if err != nil {
			return fmt.Errorf("failed to write manifest of %s: %w", c.Path, err)
		}
		log.Printf("[ARCHIVE] Wrote %s manifest of %d files for %s", scheme, n, c.Path)
	}
	return nil
}

// DetectVersion probes the fixed marker paths of each format version.
func DetectVersion(s core.ArchiveStorage) (Version, error) {
	for _, v := range []Version{Version22, Version21, Version20, Version10} {
		if s.Exists(VersionMarkerDir + string(v) + "/") {
			return v, nil
		}
	}
	if s.Exists(DKFileIndexPath) {
		return VersionDK, nil
	}
	if !s.Exists(MetadataPath) {
		return VersionUnknown, ErrUnknownVersion
	}

	// No marker directory: tell 1.0 from 2.0 by the metadata namespace.
	r, err := s.CreateInputStream(MetadataPath)
	if err != nil {
		return VersionUnknown, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer r.Close()
	head := make([]byte, 2048)
	n, err := io.ReadFull(bufio.NewReader(r), head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return VersionUnknown, fmt.Errorf("failed to read metadata: %w", err)
	}
	if strings.Contains(string(head[:n]), "xmlns/siard/2") {
		return Version20, nil
	}
	return Version10, nil
}
