package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// Error categories reported to admin clients.
const (
	CategoryFetch      = "fetch_error"
	CategoryExtraction = "extraction_error"
	CategoryStore      = "store_error"
	CategoryValidation = "validation_error"
	CategoryNotFound   = "not_found"
	CategoryInternal   = "internal_error"
)

// FetchError is a network or provider failure while acquiring a source.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Category implements CategorizedError.
func (e *FetchError) Category() string { return CategoryFetch }

// ExtractionError is a provider failure or malformed response during
// extraction. It degrades the source to zero candidates.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Category implements CategorizedError.
func (e *ExtractionError) Category() string { return CategoryExtraction }

// StoreError is a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Category implements CategorizedError.
func (e *StoreError) Category() string { return CategoryStore }

// ValidationError is rejected caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Category implements CategorizedError.
func (e *ValidationError) Category() string { return CategoryValidation }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CategorizedError is implemented by errors that carry an admin-facing category.
type CategorizedError interface {
	error
	Category() string
}

// ErrorCategory returns the category of err, looking through wrapping.
func ErrorCategory(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return CategoryNotFound
	}
	var c CategorizedError
	if errors.As(err, &c) {
		return c.Category()
	}
	return CategoryInternal
}
