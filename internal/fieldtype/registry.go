package fieldtype

import (
	"context"
	"fmt"
	"sort"

	"fieldline/internal/domain"
)

// Type is FieldType with the typed value erased to any, so types of
// different value types can share a registry. A nil value means no value.
type Type interface {
	Descriptor

	DefaultValue(ctx context.Context, cfg domain.FieldConfig) (any, bool, error)
	// SetDefaultValue clears the default when value is nil.
	SetDefaultValue(ctx context.Context, cfg domain.FieldConfig, value any) error
	ClearDefaultValue(ctx context.Context, cfg domain.FieldConfig) error

	ValueForRecord(ctx context.Context, field domain.Field, recordID string) (any, bool, error)
	CreateValue(ctx context.Context, field domain.Field, recordID string, value any) error
	UpdateValue(ctx context.Context, field domain.Field, recordID string, value any) error
	ClearValue(ctx context.Context, field domain.Field, recordID string) error
	Remove(ctx context.Context, field domain.Field) (RecordSet, error)

	ToText(value any) string
	FromText(text string) (any, error)
	FromParams(values []string) (any, bool, error)
	ChangelogText(value any) string
	Equal(a, b any) bool
}

// Erase wraps ft as a Type. Accept is forwarded, so overrides on ft keep
// their dispatch behaviour.
func Erase[T any](ft FieldType[T]) Type {
	return erased[T]{ft: ft}
}

type erased[T any] struct {
	ft FieldType[T]
}

func (e erased[T]) Key() string                  { return e.ft.Key() }
func (e erased[T]) Name() string                 { return e.ft.Name() }
func (e erased[T]) Accept(v Visitor) (any, bool) { return e.ft.Accept(v) }

func (e erased[T]) typed(value any) (T, error) {
	v, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: field type %s expects %T, got %T", ErrIllegalUsage, e.ft.Key(), zero, value)
	}
	return v, nil
}

func (e erased[T]) DefaultValue(ctx context.Context, cfg domain.FieldConfig) (any, bool, error) {
	v, ok, err := e.ft.DefaultValue(ctx, cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (e erased[T]) SetDefaultValue(ctx context.Context, cfg domain.FieldConfig, value any) error {
	if value == nil {
		return e.ft.ClearDefaultValue(ctx, cfg)
	}
	v, err := e.typed(value)
	if err != nil {
		return err
	}
	return e.ft.SetDefaultValue(ctx, cfg, v)
}

func (e erased[T]) ClearDefaultValue(ctx context.Context, cfg domain.FieldConfig) error {
	return e.ft.ClearDefaultValue(ctx, cfg)
}

func (e erased[T]) ValueForRecord(ctx context.Context, field domain.Field, recordID string) (any, bool, error) {
	v, ok, err := e.ft.ValueForRecord(ctx, field, recordID)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (e erased[T]) CreateValue(ctx context.Context, field domain.Field, recordID string, value any) error {
	v, err := e.typed(value)
	if err != nil {
		return err
	}
	return e.ft.CreateValue(ctx, field, recordID, v)
}

func (e erased[T]) UpdateValue(ctx context.Context, field domain.Field, recordID string, value any) error {
	if value == nil {
		return e.ft.ClearValue(ctx, field, recordID)
	}
	v, err := e.typed(value)
	if err != nil {
		return err
	}
	return e.ft.UpdateValue(ctx, field, recordID, v)
}

func (e erased[T]) ClearValue(ctx context.Context, field domain.Field, recordID string) error {
	return e.ft.ClearValue(ctx, field, recordID)
}

func (e erased[T]) Remove(ctx context.Context, field domain.Field) (RecordSet, error) {
	return e.ft.Remove(ctx, field)
}

func (e erased[T]) ToText(value any) string {
	v, ok := value.(T)
	if !ok {
		return ""
	}
	return e.ft.ToText(v)
}

func (e erased[T]) FromText(text string) (any, error) {
	v, err := e.ft.FromText(text)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (e erased[T]) FromParams(values []string) (any, bool, error) {
	v, ok, err := e.ft.FromParams(values)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (e erased[T]) ChangelogText(value any) string {
	v, ok := value.(T)
	if !ok {
		return ""
	}
	return e.ft.ChangelogText(v)
}

func (e erased[T]) Equal(a, b any) bool {
	va, okA := a.(T)
	vb, okB := b.(T)
	if !okA || !okB {
		return a == nil && b == nil
	}
	return e.ft.Equal(va, vb)
}

// Registry holds the field types known to the process. It is built once and
// read concurrently afterwards.
type Registry struct {
	types map[string]Type
}

func NewRegistry(types ...Type) (*Registry, error) {
	r := &Registry{types: make(map[string]Type, len(types))}
	for _, t := range types {
		if t.Key() == "" {
			return nil, fmt.Errorf("field type with empty key")
		}
		if _, dup := r.types[t.Key()]; dup {
			return nil, fmt.Errorf("field type %s registered twice", t.Key())
		}
		r.types[t.Key()] = t
	}
	return r, nil
}

func (r *Registry) Lookup(key string) (Type, bool) {
	t, ok := r.types[key]
	return t, ok
}

// Keys returns the registered type keys sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
