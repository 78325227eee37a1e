package fieldtype

import (
	"context"

	"fieldline/internal/domain"
)

// Deriver computes a record's value from data stored elsewhere.
type Deriver[T any] func(ctx context.Context, field domain.Field, recordID string) (T, bool, error)

// Computed is the base for field types whose value is derived at read time.
// Nothing is ever persisted: writes, defaults and Remove are no-ops.
type Computed[T any] struct {
	base
	codec  TextCodec[T]
	derive Deriver[T]
}

var _ FieldType[string] = (*Computed[string])(nil)

func NewComputed[T any](key, name string, codec TextCodec[T], derive Deriver[T], opts Options) *Computed[T] {
	return &Computed[T]{
		base:   newBase(key, name, opts),
		codec:  codec,
		derive: derive,
	}
}

func (c *Computed[T]) Accept(v Visitor) (any, bool) {
	if cv, ok := v.(ComputedVisitor); ok {
		return cv.VisitComputed(c), true
	}
	return c.base.accept(c, v)
}

func (c *Computed[T]) DefaultValue(context.Context, domain.FieldConfig) (T, bool, error) {
	var zero T
	return zero, false, nil
}

func (c *Computed[T]) SetDefaultValue(context.Context, domain.FieldConfig, T) error { return nil }
func (c *Computed[T]) ClearDefaultValue(context.Context, domain.FieldConfig) error  { return nil }

func (c *Computed[T]) ValueForRecord(ctx context.Context, field domain.Field, recordID string) (T, bool, error) {
	if c.derive == nil {
		var zero T
		return zero, false, nil
	}
	return c.derive(ctx, field, recordID)
}

func (c *Computed[T]) CreateValue(context.Context, domain.Field, string, T) error { return nil }
func (c *Computed[T]) UpdateValue(context.Context, domain.Field, string, T) error { return nil }
func (c *Computed[T]) ClearValue(context.Context, domain.Field, string) error     { return nil }

func (c *Computed[T]) Remove(context.Context, domain.Field) (RecordSet, error) {
	return NewRecordSet(), nil
}

func (c *Computed[T]) ToText(value T) string { return c.codec.ToText(value) }

func (c *Computed[T]) FromText(text string) (T, error) {
	v, err := c.codec.FromText(text)
	return v, asValidation(err)
}

func (c *Computed[T]) FromParams(values []string) (T, bool, error) {
	var zero T
	if len(values) == 0 {
		return zero, false, nil
	}
	v, err := c.FromText(values[0])
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (c *Computed[T]) ChangelogText(value T) string { return c.codec.ToText(value) }

func (c *Computed[T]) Equal(a, b T) bool { return c.codec.ToText(a) == c.codec.ToText(b) }
