// Package errors provides structured error handling for voxelpart.
// Every failure mode of the partition pipeline maps to a Kind so that
// callers can distinguish configuration mistakes from bad input files
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	// KindSourceNotFound indicates a raster path that does not exist or
	// cannot be opened.
	KindSourceNotFound Kind = "source_not_found"
	// KindSourceFormat indicates a file that cannot be parsed as a
	// supported volumetric grid or hierarchy document.
	KindSourceFormat Kind = "source_format"
	// KindDimensionality indicates a grid whose dimension is not 3.
	KindDimensionality Kind = "dimensionality"
	// KindShapeMismatch indicates grids of incompatible shapes being
	// combined or masked together.
	KindShapeMismatch Kind = "shape_mismatch"
	// KindEmptySelection indicates a mask that selects zero voxels.
	KindEmptySelection Kind = "empty_selection"
	// KindKeyCountMismatch indicates a keys list whose length differs
	// from the source count.
	KindKeyCountMismatch Kind = "key_count_mismatch"
	// KindUnknownColumnKey indicates a column name that was never declared.
	KindUnknownColumnKey Kind = "unknown_column_key"
	// KindUnknownStructure indicates an atlas identifier with no match.
	KindUnknownStructure Kind = "unknown_structure"
	// KindAmbiguousStructure indicates an atlas identifier with more than
	// one match.
	KindAmbiguousStructure Kind = "ambiguous_structure"
	// KindValidation indicates a descriptor-level configuration error.
	KindValidation Kind = "validation"
)

// Error is a categorized pipeline error. It wraps an optional cause and
// carries key-value details for structured logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail to the error and returns it.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a kind and message to an existing error. Returns nil if
// err is nil.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsKind reports whether err (or any error it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the kind of err, or the empty string for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
