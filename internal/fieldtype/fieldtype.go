// Package fieldtype converts field values between their typed in-memory form,
// their textual form and their persisted storage form.
//
// A field type is built from one of three shapes: Single for scalar values,
// Multi for sets of scalar elements and Computed for derived values. Concrete
// kinds supply a Codec describing the conversions; the shapes own the
// persistence lifecycle, default values, corruption recovery and change-log
// rendering. External code branches on shape through Accept and the narrow
// visitor interfaces in visitor.go.
package fieldtype

import (
	"context"
	"log/slog"

	"fieldline/internal/domain"
)

// Descriptor is the identity surface shared by every field type.
type Descriptor interface {
	Key() string
	Name() string
	// Accept routes v to the most specific visitor interface it implements.
	// It reports false when no layer recognised the visitor.
	Accept(v Visitor) (any, bool)
}

// FieldType is the contract every field type implements. T is the typed
// (transport) value; "no value" is signalled by a false second result.
type FieldType[T any] interface {
	Descriptor

	DefaultValue(ctx context.Context, cfg domain.FieldConfig) (T, bool, error)
	SetDefaultValue(ctx context.Context, cfg domain.FieldConfig, value T) error
	ClearDefaultValue(ctx context.Context, cfg domain.FieldConfig) error

	ValueForRecord(ctx context.Context, field domain.Field, recordID string) (T, bool, error)
	// CreateValue and UpdateValue do not check for existing rows; the
	// caller decides which applies.
	CreateValue(ctx context.Context, field domain.Field, recordID string, value T) error
	UpdateValue(ctx context.Context, field domain.Field, recordID string, value T) error
	// ClearValue deletes the record's value.
	ClearValue(ctx context.Context, field domain.Field, recordID string) error
	// Remove deletes every value of field and returns the affected records.
	Remove(ctx context.Context, field domain.Field) (RecordSet, error)

	ToText(value T) string
	FromText(text string) (T, error)
	// FromParams converts submitted form values, one string per element.
	FromParams(values []string) (T, bool, error)
	ChangelogText(value T) string
	Equal(a, b T) bool
}

// TextCodec maps between a typed value and its textual form.
type TextCodec[T any] interface {
	ToText(v T) string
	// FromText returns a *ValidationError for malformed input.
	FromText(text string) (T, error)
}

// Codec adds the storage mapping of a single typed value or element.
type Codec[T any] interface {
	TextCodec[T]
	StorageKind() StorageKind
	// ToStorage reports false when v has no stored representation.
	ToStorage(v T) (StorageValue, bool)
	FromStorage(sv StorageValue) (T, error)
}

// Options carries the collaborators shared by every shape.
type Options struct {
	Values   ValuePersister
	Defaults DefaultStore
	// Logger receives read-path failures. If nil, slog.Default() is used.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

type base struct {
	key    string
	name   string
	logger *slog.Logger
}

func newBase(key, name string, opts Options) base {
	return base{key: key, name: name, logger: opts.logger().With("field_type", key)}
}

func (b base) Key() string  { return b.key }
func (b base) Name() string { return b.name }

// accept is the end of every Accept chain.
func (b base) accept(self Descriptor, v Visitor) (any, bool) {
	if tv, ok := v.(TypeVisitor); ok {
		return tv.VisitType(self), true
	}
	return nil, false
}
