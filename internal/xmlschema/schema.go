// Package xmlschema validates the archive's XML documents against the
// schemas shipped with the binary.
package xmlschema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jacoelho/xsd"
	"github.com/jacoelho/xsd/xsderrors"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// Schema is an XML schema compiled on first use and shared by every
// validation afterwards.
type Schema struct {
	name string
	data []byte

	once   sync.Once
	engine *xsd.Engine
	err    error
}

// New creates a schema from the document data, identified by name in errors.
func New(name string, data []byte) *Schema {
	return &Schema{name: name, data: data}
}

// Name returns the schema's file name.
func (s *Schema) Name() string {
	return s.name
}

// Bytes returns the schema document.
func (s *Schema) Bytes() []byte {
	return s.data
}

func (s *Schema) compile(ctx context.Context) (*xsd.Engine, error) {
	s.once.Do(func() {
		s.engine, s.err = xsd.Compile(context.WithoutCancel(ctx), xsd.Bytes(s.name, s.data))
		if s.err != nil {
			s.err = fmt.Errorf("failed to compile %s: %w", s.name, s.err)
		}
	})
	return s.engine, s.err
}

// Validate checks the document read from r. Malformed XML wraps
// core.ErrParse; a well-formed document the schema rejects wraps
// core.ErrSchemaValidation.
func (s *Schema) Validate(ctx context.Context, document string, r io.Reader) error {
	engine, err := s.compile(ctx)
	if err != nil {
		return err
	}
	if err := engine.Validate(ctx, r); err != nil {
		return classify(ctx, document, err)
	}
	return nil
}

func classify(ctx context.Context, document string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case malformed(err):
		return fmt.Errorf("%w: %s: %v", core.ErrParse, document, err)
	case hasCategory(err, xsderrors.CategoryInternal):
		return fmt.Errorf("failed to validate %s: %w", document, err)
	}
	return fmt.Errorf("%w: %s: %v", core.ErrSchemaValidation, document, err)
}

// malformed reports whether any diagnostic in err is about the XML itself
// rather than its content.
func malformed(err error) bool {
	return walk(err, func(e *xsderrors.Error) bool {
		return e.Code == xsderrors.CodeValidationXML || e.Category == xsderrors.CategoryUnsupported
	})
}

func hasCategory(err error, category xsderrors.Category) bool {
	return walk(err, func(e *xsderrors.Error) bool { return e.Category == category })
}

func walk(err error, match func(*xsderrors.Error) bool) bool {
	var list xsderrors.Errors
	if errors.As(err, &list) {
		for _, e := range list {
			if e != nil && walk(e, match) {
				return true
			}
		}
		return false
	}
	var xerr *xsderrors.Error
	return errors.As(err, &xerr) && match(xerr)
}
