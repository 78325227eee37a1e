package fieldtype

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fieldline/internal/domain"
)

// Multi is the base for field types whose value is a set of scalar elements.
// Each element is persisted as its own row under the same (field, record).
type Multi[S comparable] struct {
	base
	codec    Codec[S]
	less     func(a, b S) bool
	values   ValuePersister
	defaults DefaultStore
}

var _ FieldType[[]string] = (*Multi[string])(nil)

// NewMulti builds a multi-valued type. less may be nil, in which case sets
// keep the order elements were read in.
func NewMulti[S comparable](key, name string, codec Codec[S], less func(a, b S) bool, opts Options) *Multi[S] {
	return &Multi[S]{
		base:     newBase(key, name, opts),
		codec:    codec,
		less:     less,
		values:   opts.Values,
		defaults: opts.Defaults,
	}
}

func (m *Multi[S]) StorageKind() StorageKind { return m.codec.StorageKind() }
func (m *Multi[S]) Ordered() bool            { return m.less != nil }

func (m *Multi[S]) Accept(v Visitor) (any, bool) {
	if mv, ok := v.(MultiVisitor); ok {
		return mv.VisitMulti(m), true
	}
	return m.base.accept(m, v)
}

// collect converts rows into a deduplicated, optionally sorted set. Rows that
// fail conversion are dropped with a warning.
func (m *Multi[S]) collect(ctx context.Context, fieldKey, recordID string, rows []StorageValue) []S {
	seen := make(map[S]struct{}, len(rows))
	set := make([]S, 0, len(rows))
	for _, row := range rows {
		el, err := m.codec.FromStorage(row)
		if err != nil {
			m.logger.WarnContext(ctx, "dropping stored element that cannot be converted",
				"field", fieldKey, "record", recordID, "err", err)
			continue
		}
		if _, dup := seen[el]; dup {
			continue
		}
		seen[el] = struct{}{}
		set = append(set, el)
	}
	if m.less != nil {
		sort.SliceStable(set, func(i, j int) bool { return m.less(set[i], set[j]) })
	}
	return set
}

func (m *Multi[S]) toRows(value []S) []StorageValue {
	rows := make([]StorageValue, 0, len(value))
	for _, el := range value {
		if sv, ok := m.codec.ToStorage(el); ok {
			rows = append(rows, sv)
		}
	}
	return rows
}

func (m *Multi[S]) DefaultValue(ctx context.Context, cfg domain.FieldConfig) ([]S, bool, error) {
	stored, err := m.defaults.GetDefault(ctx, DefaultValueNamespace, cfg.ID)
	if err != nil {
		return nil, false, fmt.Errorf("get default for config %s: %w", cfg.ID, err)
	}
	if len(stored) == 0 {
		return nil, false, nil
	}
	set := m.collect(ctx, m.key, "", stored)
	if len(set) == 0 {
		return nil, false, nil
	}
	return set, true, nil
}

// SetDefaultValue stores value as the default. A value with no storable
// elements clears the default.
func (m *Multi[S]) SetDefaultValue(ctx context.Context, cfg domain.FieldConfig, value []S) error {
	rows := m.toRows(value)
	if len(rows) == 0 {
		return m.ClearDefaultValue(ctx, cfg)
	}
	return m.defaults.SetDefault(ctx, DefaultValueNamespace, cfg.ID, rows)
}

func (m *Multi[S]) ClearDefaultValue(ctx context.Context, cfg domain.FieldConfig) error {
	return m.defaults.SetDefault(ctx, DefaultValueNamespace, cfg.ID, nil)
}

// ValueForRecord returns nil, false when no rows exist. An existing but fully
// unconvertible set is returned as an empty set.
func (m *Multi[S]) ValueForRecord(ctx context.Context, field domain.Field, recordID string) ([]S, bool, error) {
	rows, err := m.values.GetValues(ctx, field.ID, recordID, m.StorageKind())
	if err != nil {
		return nil, false, fmt.Errorf("get values of field %s: %w", field.Key, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return m.collect(ctx, field.Key, recordID, rows), true, nil
}

func (m *Multi[S]) CreateValue(ctx context.Context, field domain.Field, recordID string, value []S) error {
	return m.values.CreateValues(ctx, field.ID, recordID, m.StorageKind(), m.toRows(value))
}

func (m *Multi[S]) UpdateValue(ctx context.Context, field domain.Field, recordID string, value []S) error {
	return m.values.UpdateValues(ctx, field.ID, recordID, m.StorageKind(), m.toRows(value))
}

func (m *Multi[S]) ClearValue(ctx context.Context, field domain.Field, recordID string) error {
	return m.values.UpdateValues(ctx, field.ID, recordID, m.StorageKind(), nil)
}

func (m *Multi[S]) Remove(ctx context.Context, field domain.Field) (RecordSet, error) {
	return m.values.RemoveAllValues(ctx, field.ID)
}

// RemoveElement deletes one element from every record of field.
func (m *Multi[S]) RemoveElement(ctx context.Context, field domain.Field, element S) (RecordSet, error) {
	sv, ok := m.codec.ToStorage(element)
	if !ok {
		return NewRecordSet(), nil
	}
	return m.values.RemoveValue(ctx, field.ID, m.StorageKind(), sv)
}

// RemoveElementText parses text as one element and removes it.
func (m *Multi[S]) RemoveElementText(ctx context.Context, field domain.Field, text string) (RecordSet, error) {
	el, err := m.ElementFromText(text)
	if err != nil {
		return nil, err
	}
	return m.RemoveElement(ctx, field, el)
}

func (m *Multi[S]) ElementToText(el S) string { return m.codec.ToText(el) }

// ElementTexts renders each element of value. It reports false when value is
// not a set of this type's elements.
func (m *Multi[S]) ElementTexts(value any) ([]string, bool) {
	set, ok := value.([]S)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for _, el := range set {
		out = append(out, m.codec.ToText(el))
	}
	return out, true
}

func (m *Multi[S]) ElementFromText(text string) (S, error) {
	el, err := m.codec.FromText(text)
	return el, asValidation(err)
}

// ToText joins the elements with commas.
func (m *Multi[S]) ToText(value []S) string {
	parts := make([]string, 0, len(value))
	for _, el := range value {
		parts = append(parts, m.codec.ToText(el))
	}
	return strings.Join(parts, ",")
}

// FromText splits text on commas; blank pieces are skipped.
func (m *Multi[S]) FromText(text string) ([]S, error) {
	var pieces []string
	for _, p := range strings.Split(text, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pieces = append(pieces, p)
		}
	}
	v, _, err := m.FromParams(pieces)
	return v, err
}

func (m *Multi[S]) FromParams(values []string) ([]S, bool, error) {
	if len(values) == 0 {
		return nil, false, nil
	}
	seen := make(map[S]struct{}, len(values))
	out := make([]S, 0, len(values))
	for _, raw := range values {
		el, err := m.ElementFromText(raw)
		if err != nil {
			return nil, false, err
		}
		if _, dup := seen[el]; dup {
			continue
		}
		seen[el] = struct{}{}
		out = append(out, el)
	}
	return out, true, nil
}

// ChangelogText lists the elements in the order given.
func (m *Multi[S]) ChangelogText(value []S) string {
	parts := make([]string, 0, len(value))
	for _, el := range value {
		parts = append(parts, m.codec.ToText(el))
	}
	return strings.Join(parts, ", ")
}

// Equal ignores element order.
func (m *Multi[S]) Equal(a, b []S) bool {
	if len(a) == 0 && len(b) == 0 {
		return (a == nil) == (b == nil)
	}
	left := make(map[S]struct{}, len(a))
	for _, el := range a {
		left[el] = struct{}{}
	}
	right := make(map[S]struct{}, len(b))
	for _, el := range b {
		right[el] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for el := range left {
		if _, ok := right[el]; !ok {
			return false
		}
	}
	return true
}
