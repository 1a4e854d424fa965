package core

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a structural document cannot be parsed.
	ErrParse = errors.New("malformed structural document")

	// ErrSchemaValidation is returned when a structural document does not match its schema.
	ErrSchemaValidation = errors.New("structural document failed schema validation")

	// ErrUnknownType is returned when a type name cannot be normalized at all.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnresolvedFolder is returned when content is requested for an id
	// whose folder was never recorded while reading metadata.
	ErrUnresolvedFolder = errors.New("no folder associated with id")

	// ErrNoAssociations is returned when a path resolver is queried before
	// any folder association was recorded.
	ErrNoAssociations = errors.New("path resolver has no folder associations")

	// ErrNesting is returned when content events arrive out of order.
	ErrNesting = errors.New("content event out of order")

	// ErrConnectivity marks failures talking to a database or broker.
	ErrConnectivity = errors.New("connectivity failure")

	// ErrContainerReused is returned when a container is set up twice.
	ErrContainerReused = errors.New("archive container cannot be reused")
)

// DataError is a failure local to one row or one statement. It is reported
// and processing continues.
type DataError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Subject, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

func (e *DataError) Unwrap() error { return e.Err }

// TableError aborts one table without aborting the archive.
type TableError struct {
	TableID string
	Err     error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %v", e.TableID, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// IsRowLocal reports whether err only affects the current row.
func IsRowLocal(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsTableLocal reports whether err only affects the current table.
func IsTableLocal(err error) bool {
	if errors.Is(err, ErrUnresolvedFolder) {
		return true
	}
	var te *TableError
	return errors.As(err, &te)
}

// Connectivity wraps err so that errors.Is(err, ErrConnectivity) holds.
func Connectivity(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnectivity, op, err)
}
