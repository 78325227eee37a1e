package fieldtype

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrIllegalUsage is returned when a shape-specific operation is invoked on a
// field type of another shape, or a value of the wrong Go type is passed.
var ErrIllegalUsage = errors.New("illegal usage of field type")

// ValidationError reports textual input that cannot become a typed value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalidf builds a ValidationError without a field key; the ingestion
// boundary attaches the key.
func Invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConversionError reports a persisted value that no longer converts back to
// its typed form. Read paths log it and treat the value as absent.
type ConversionError struct {
	Field  string
	Record string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert stored value of field %s record %s: %v", e.Field, e.Record, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ErrorCollection maps field keys to validation messages.
type ErrorCollection map[string]string

func (c ErrorCollection) AddError(field, message string) {
	c[field] = message
}

// Add records err under field, keeping ValidationError messages bare.
func (c ErrorCollection) Add(field string, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		c.AddError(field, ve.Message)
		return
	}
	c.AddError(field, err.Error())
}

func (c ErrorCollection) HasAnyErrors() bool { return len(c) > 0 }

func (c ErrorCollection) Error() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+c[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns the collection as an error, or nil when it is empty.
func (c ErrorCollection) Err() error {
	if !c.HasAnyErrors() {
		return nil
	}
	return c
}

func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Message: err.Error()}
}
