// Package lob decides where large cell payloads are written.
package lob

import (
	"fmt"

	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// Mode selects inline or external LOB storage.
type Mode int

const (
	// Inline writes LOB files inside the main container.
	Inline Mode = iota
	// External writes LOB files into segmented sibling directories.
	External
)

func (m Mode) String() string {
	if m == External {
		return "external"
	}
	return "inline"
}

// ParseMode parses "inline" or "external".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "inline":
		return Inline, nil
	case "external":
		return External, nil
	}
	return Inline, fmt.Errorf("unknown lob mode %q", s)
}

// Strategy places LOB files. In external mode it tracks the current segment
// of every column; segments only advance when the caller rolls them.
type Strategy struct {
	Mode     Mode
	layout   pathstrategy.Layout
	external pathstrategy.ExternalLayout
	segments map[pathstrategy.LOBKey]int
}

// NewInline returns a strategy that keeps LOBs in the main container.
func NewInline(layout pathstrategy.Layout) *Strategy {
	return &Strategy{Mode: Inline, layout: layout}
}

// NewExternal returns a strategy that writes LOBs next to archivePath.
func NewExternal(layout pathstrategy.Layout, archivePath string) *Strategy {
	return &Strategy{
		Mode:     External,
		layout:   layout,
		external: pathstrategy.NewExternalLayout(archivePath),
		segments: make(map[pathstrategy.LOBKey]int),
	}
}

// InlinePath returns the path of a LOB inside the main container.
func (s *Strategy) InlinePath(key pathstrategy.LOBKey, row int64, kind pathstrategy.LOBKind) string {
	return s.layout.LOBFilePath(key.Schema, key.Table, key.Column, row, kind)
}

// InlineFileName is the value of the file attribute for an inline LOB.
func (s *Strategy) InlineFileName(row int64, kind pathstrategy.LOBKind) string {
	return s.layout.LOBFileName(row, kind)
}

// NextContainerPath rolls key over to a fresh segment and returns its path.
// The first roll for a key yields segment 0.
func (s *Strategy) NextContainerPath(key pathstrategy.LOBKey) string {
	seg, ok := s.segments[key]
	if ok {
		seg++
	}
	s.segments[key] = seg
	return s.external.ContainerPath(key, seg)
}

// CurrentContainerPath returns the current segment path for key, rolling to
// segment 0 if key has none yet.
func (s *Strategy) CurrentContainerPath(key pathstrategy.LOBKey) string {
	seg, ok := s.segments[key]
	if !ok {
		return s.NextContainerPath(key)
	}
	return s.external.ContainerPath(key, seg)
}

// Segment returns the current segment index for key, or -1.
func (s *Strategy) Segment(key pathstrategy.LOBKey) int {
	if seg, ok := s.segments[key]; ok {
		return seg
	}
	return -1
}

// ExternalFileName returns the file name of an external LOB.
func (s *Strategy) ExternalFileName(key pathstrategy.LOBKey, row int64, kind pathstrategy.LOBKind) string {
	return s.external.ExternalFileName(key, row, kind)
}

// FileReference returns the cell file attribute for an external LOB.
func (s *Strategy) FileReference(containerPath, fileName string) string {
	return s.external.FileReference(containerPath, fileName)
}

// ExternalDir is the auxiliary directory name relative to the archive's
// parent directory.
func (s *Strategy) ExternalDir() string {
	return s.external.LOBDir()
}
