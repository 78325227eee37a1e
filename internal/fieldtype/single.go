package fieldtype

import (
	"context"
	"fmt"

	"fieldline/internal/domain"
)

// Single is the base for field types holding exactly one scalar value per
// record.
type Single[T any] struct {
	base
	codec    Codec[T]
	values   ValuePersister
	defaults DefaultStore
}

var _ FieldType[string] = (*Single[string])(nil)

func NewSingle[T any](key, name string, codec Codec[T], opts Options) *Single[T] {
	return &Single[T]{
		base:     newBase(key, name, opts),
		codec:    codec,
		values:   opts.Values,
		defaults: opts.Defaults,
	}
}

func (s *Single[T]) StorageKind() StorageKind { return s.codec.StorageKind() }

func (s *Single[T]) Accept(v Visitor) (any, bool) {
	if sv, ok := v.(SingleVisitor); ok {
		return sv.VisitSingle(s), true
	}
	return s.base.accept(s, v)
}

func (s *Single[T]) DefaultValue(ctx context.Context, cfg domain.FieldConfig) (T, bool, error) {
	var zero T
	stored, err := s.defaults.GetDefault(ctx, DefaultValueNamespace, cfg.ID)
	if err != nil {
		return zero, false, fmt.Errorf("get default for config %s: %w", cfg.ID, err)
	}
	if len(stored) == 0 {
		return zero, false, nil
	}
	v, err := s.codec.FromStorage(stored[0])
	if err != nil {
		s.logger.WarnContext(ctx, "default value cannot be converted", "config", cfg.ID, "err", err)
		return zero, false, nil
	}
	return v, true, nil
}

func (s *Single[T]) SetDefaultValue(ctx context.Context, cfg domain.FieldConfig, value T) error {
	sv, ok := s.codec.ToStorage(value)
	if !ok {
		return s.ClearDefaultValue(ctx, cfg)
	}
	return s.defaults.SetDefault(ctx, DefaultValueNamespace, cfg.ID, []StorageValue{sv})
}

func (s *Single[T]) ClearDefaultValue(ctx context.Context, cfg domain.FieldConfig) error {
	return s.defaults.SetDefault(ctx, DefaultValueNamespace, cfg.ID, nil)
}

// ValueForRecord returns the record's value. When more than one row is found
// the first is kept, the others are deleted and a warning is logged.
func (s *Single[T]) ValueForRecord(ctx context.Context, field domain.Field, recordID string) (T, bool, error) {
	var zero T
	rows, err := s.values.GetValues(ctx, field.ID, recordID, s.StorageKind())
	if err != nil {
		return zero, false, fmt.Errorf("get values of field %s: %w", field.Key, err)
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	first := rows[0]
	if len(rows) > 1 {
		s.logger.WarnContext(ctx, "single value field has multiple stored values; keeping the first",
			"field", field.Key, "record", recordID, "count", len(rows))
		if err := s.values.UpdateValues(ctx, field.ID, recordID, s.StorageKind(), []StorageValue{first}); err != nil {
			return zero, false, fmt.Errorf("repair values of field %s: %w", field.Key, err)
		}
	}
	v, err := s.codec.FromStorage(first)
	if err != nil {
		cerr := &ConversionError{Field: field.Key, Record: recordID, Err: err}
		s.logger.WarnContext(ctx, "stored value cannot be converted", "field", field.Key, "record", recordID, "err", cerr)
		return zero, false, nil
	}
	return v, true, nil
}

func (s *Single[T]) CreateValue(ctx context.Context, field domain.Field, recordID string, value T) error {
	return s.values.CreateValues(ctx, field.ID, recordID, s.StorageKind(), s.toRows(value))
}

func (s *Single[T]) UpdateValue(ctx context.Context, field domain.Field, recordID string, value T) error {
	return s.values.UpdateValues(ctx, field.ID, recordID, s.StorageKind(), s.toRows(value))
}

func (s *Single[T]) ClearValue(ctx context.Context, field domain.Field, recordID string) error {
	return s.values.UpdateValues(ctx, field.ID, recordID, s.StorageKind(), nil)
}

func (s *Single[T]) toRows(value T) []StorageValue {
	sv, ok := s.codec.ToStorage(value)
	if !ok {
		return nil
	}
	return []StorageValue{sv}
}

func (s *Single[T]) Remove(ctx context.Context, field domain.Field) (RecordSet, error) {
	return s.values.RemoveAllValues(ctx, field.ID)
}

func (s *Single[T]) ToText(value T) string { return s.codec.ToText(value) }

func (s *Single[T]) FromText(text string) (T, error) {
	v, err := s.codec.FromText(text)
	return v, asValidation(err)
}

// FromParams uses the first submitted value.
func (s *Single[T]) FromParams(values []string) (T, bool, error) {
	var zero T
	if len(values) == 0 {
		return zero, false, nil
	}
	v, err := s.FromText(values[0])
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (s *Single[T]) ChangelogText(value T) string {
	if _, ok := s.codec.ToStorage(value); !ok {
		return ""
	}
	return s.codec.ToText(value)
}

func (s *Single[T]) Equal(a, b T) bool {
	sa, okA := s.codec.ToStorage(a)
	sb, okB := s.codec.ToStorage(b)
	if okA != okB {
		return false
	}
	return !okA || sa.Equal(sb)
}
