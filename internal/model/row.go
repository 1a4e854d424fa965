package model

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrCellConsumed is returned when a binary cell is opened a second time.
var ErrCellConsumed = errors.New("binary cell already consumed")

// Cell is one value in a Row: NullCell, SimpleCell, *BinaryCell or ComposedCell.
type Cell interface {
	cell()
}

// NullCell is an absent value.
type NullCell struct{}

// SimpleCell carries a value in its lexical form. Conversion to a native
// value happens at the sink.
type SimpleCell struct {
	Text string
}

// ComposedCell holds the children of an array or structure value, in field order.
type ComposedCell struct {
	Children []Cell
}

// BinaryCell is a byte stream that can be consumed once.
type BinaryCell struct {
	Size int64

	mu       sync.Mutex
	open     func() (io.ReadCloser, error)
	rc       io.ReadCloser
	consumed bool
	released bool
}

func (NullCell) cell()     {}
func (SimpleCell) cell()   {}
func (ComposedCell) cell() {}
func (*BinaryCell) cell()  {}

// NewBinaryCell creates a cell whose stream is opened lazily by open.
func NewBinaryCell(size int64, open func() (io.ReadCloser, error)) *BinaryCell {
	return &BinaryCell{Size: size, open: open}
}

// NewBinaryCellFromBytes creates a cell backed by b.
func NewBinaryCellFromBytes(b []byte) *BinaryCell {
	return NewBinaryCell(int64(len(b)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	})
}

// Open returns the cell's stream. It may be called once; the stream is
// closed by Release.
func (c *BinaryCell) Open() (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed || c.released {
		return nil, ErrCellConsumed
	}
	c.consumed = true
	rc, err := c.open()
	if err != nil {
		return nil, err
	}
	c.rc = rc
	return rc, nil
}

// Bytes reads the whole stream.
func (c *BinaryCell) Bytes() ([]byte, error) {
	rc, err := c.Open()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(rc)
}

// Release closes the stream if it was opened. It is safe to call more than once.
func (c *BinaryCell) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil
	}
	c.released = true
	if c.rc == nil {
		return nil
	}
	return c.rc.Close()
}

// Row is one table row. Cells align 1:1 with the table's columns.
type Row struct {
	// Index is the 1-based position of the row within its table.
	Index int64
	Cells []Cell
}

// NewRow creates a row with every cell set to NullCell.
func NewRow(index int64, columns int) *Row {
	cells := make([]Cell, columns)
	for i := range cells {
		cells[i] = NullCell{}
	}
	return &Row{Index: index, Cells: cells}
}

// Release closes every binary stream held by the row, including the ones
// nested in composed cells.
func (r *Row) Release() error {
	var errs []error
	for _, c := range r.Cells {
		if err := releaseCell(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func releaseCell(c Cell) error {
	switch v := c.(type) {
	case *BinaryCell:
		return v.Release()
	case ComposedCell:
		var errs []error
		for _, child := range v.Children {
			if err := releaseCell(child); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

// Leaves returns the leaf cells of c in depth-first order.
func Leaves(c Cell) []Cell {
	composed, ok := c.(ComposedCell)
	if !ok {
		return []Cell{c}
	}
	var out []Cell
	for _, child := range composed.Children {
		out = append(out, Leaves(child)...)
	}
	return out
}
