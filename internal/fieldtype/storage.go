package fieldtype

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// StorageKind selects the persistence channel a value is written to.
type StorageKind int

const (
	ShortText StorageKind = iota + 1
	LongText
	Number
	Timestamp
)

// ShortTextLimit is the maximum length of a ShortText storage value.
const ShortTextLimit = 255

// DefaultValueNamespace marks default-value rows in the default store.
const DefaultValueNamespace = "DefaultValue"

func (k StorageKind) String() string {
	switch k {
	case ShortText:
		return "short_text"
	case LongText:
		return "long_text"
	case Number:
		return "number"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseStorageKind is the inverse of StorageKind.String.
func ParseStorageKind(s string) (StorageKind, error) {
	switch s {
	case "short_text":
		return ShortText, nil
	case "long_text":
		return LongText, nil
	case "number":
		return Number, nil
	case "timestamp":
		return Timestamp, nil
	}
	return 0, fmt.Errorf("unknown storage kind %q", s)
}

// StorageValue is one persisted value. Only the member matching Kind is set,
// except for a timestamp row whose stored text cannot be parsed: it keeps its
// kind, a zero Time and the raw text in String.
type StorageValue struct {
	Kind   StorageKind
	String string
	Number float64
	Time   time.Time
}

func TextValue(s string) StorageValue         { return StorageValue{Kind: ShortText, String: s} }
func LongTextValue(s string) StorageValue     { return StorageValue{Kind: LongText, String: s} }
func NumberValue(n float64) StorageValue      { return StorageValue{Kind: Number, Number: n} }
func TimestampValue(t time.Time) StorageValue { return StorageValue{Kind: Timestamp, Time: t.UTC()} }

// Equal reports whether two storage values hold the same data.
func (v StorageValue) Equal(o StorageValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Number:
		return v.Number == o.Number
	case Timestamp:
		if v.Time.IsZero() || o.Time.IsZero() {
			return v.Time.IsZero() && o.Time.IsZero() && v.String == o.String
		}
		return v.Time.Equal(o.Time)
	default:
		return v.String == o.String
	}
}

// Text returns the string member, failing when the value was stored under
// another kind.
func (v StorageValue) Text() (string, error) {
	if v.Kind != ShortText && v.Kind != LongText {
		return "", fmt.Errorf("stored %s value is not text", v.Kind)
	}
	return v.String, nil
}

func (v StorageValue) Float() (float64, error) {
	if v.Kind != Number {
		return 0, fmt.Errorf("stored %s value is not a number", v.Kind)
	}
	return v.Number, nil
}

func (v StorageValue) Timestamp() (time.Time, error) {
	if v.Kind != Timestamp {
		return time.Time{}, fmt.Errorf("stored %s value is not a timestamp", v.Kind)
	}
	if v.Time.IsZero() {
		return time.Time{}, fmt.Errorf("stored timestamp %q cannot be parsed", v.String)
	}
	return v.Time, nil
}

// ValuePersister stores per-record values keyed by (field, record).
type ValuePersister interface {
	// GetValues returns rows in insertion order.
	GetValues(ctx context.Context, fieldID, recordID string, kind StorageKind) ([]StorageValue, error)
	CreateValues(ctx context.Context, fieldID, recordID string, kind StorageKind, values []StorageValue) error
	// UpdateValues replaces every row of (field, record) with values.
	UpdateValues(ctx context.Context, fieldID, recordID string, kind StorageKind, values []StorageValue) error
	RemoveAllValues(ctx context.Context, fieldID string) (RecordSet, error)
	// RemoveValue deletes rows equal to value across all records of a field.
	RemoveValue(ctx context.Context, fieldID string, kind StorageKind, value StorageValue) (RecordSet, error)
}

// DefaultStore stores default values keyed by (namespace, configuration id).
// An empty slice means no default.
type DefaultStore interface {
	GetDefault(ctx context.Context, namespace, configID string) ([]StorageValue, error)
	SetDefault(ctx context.Context, namespace, configID string, values []StorageValue) error
}

// RecordSet is a set of record identifiers.
type RecordSet map[string]struct{}

func NewRecordSet(ids ...string) RecordSet {
	s := make(RecordSet, len(ids))
	s.Add(ids...)
	return s
}

func (s RecordSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s RecordSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s RecordSet) Len() int { return len(s) }

// Sorted returns the members sorted lexicographically.
func (s RecordSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
