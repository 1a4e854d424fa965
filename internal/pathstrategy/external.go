package pathstrategy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LOBKey identifies the column whose LOBs share a segment sequence.
type LOBKey struct {
	Schema int
	Table  int
	Column int
}

func (k LOBKey) String() string {
	return fmt.Sprintf("s%d_t%d_c%d", k.Schema, k.Table, k.Column)
}

// ExternalLayout places LOB files in a sibling "<archive>_lobs" directory,
// split into numbered segments per column.
type ExternalLayout struct {
	// ArchiveName is the main archive's file name without extension.
	ArchiveName string
}

// NewExternalLayout derives the LOB directory name from the archive path.
func NewExternalLayout(archivePath string) ExternalLayout {
	base := filepath.Base(archivePath)
	return ExternalLayout{ArchiveName: strings.TrimSuffix(base, filepath.Ext(base))}
}

// LOBDir is the auxiliary container directory, relative to the archive's
// parent directory.
func (l ExternalLayout) LOBDir() string {
	return l.ArchiveName + "_lobs"
}

// ContainerPath returns <archive>_lobs/s<S>_t<T>_c<C>/seg_<N>.
func (l ExternalLayout) ContainerPath(key LOBKey, segment int) string {
	return fmt.Sprintf("%s/%s/seg_%d", l.LOBDir(), key, segment)
}

// ExternalFileName returns t<T>_c<C>_r<R>.txt|bin.
func (l ExternalLayout) ExternalFileName(key LOBKey, row int64, kind LOBKind) string {
	return fmt.Sprintf("t%d_c%d_r%d.%s", key.Table, key.Column, row, kind.ext())
}

// FileReference is the value written into a cell's file attribute. It is
// relative to the content document's root, so it escapes with "../".
func (l ExternalLayout) FileReference(containerPath, fileName string) string {
	return "../" + containerPath + "/" + fileName
}
