package kinds

import (
	"context"
	"strconv"
	"strings"
	"time"

	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
)

const RecordAgeKey = "record-age"

// RecordClock reports when a record was created.
type RecordClock interface {
	RecordCreatedAt(ctx context.Context, recordID string) (time.Time, bool, error)
}

type daysCodec struct{}

func (daysCodec) ToText(v int) string { return strconv.Itoa(v) }

func (daysCodec) FromText(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0, fieldtype.Invalidf("%q is not a whole number of days", text)
	}
	return n, nil
}

// NewRecordAge builds a computed kind holding the whole days elapsed since the
// record was created.
func NewRecordAge(clock RecordClock, now func() time.Time, opts fieldtype.Options) *fieldtype.Computed[int] {
	if now == nil {
		now = time.Now
	}
	derive := func(ctx context.Context, _ domain.Field, recordID string) (int, bool, error) {
		created, ok, err := clock.RecordCreatedAt(ctx, recordID)
		if err != nil || !ok {
			return 0, false, err
		}
		days := int(now().Sub(created) / (24 * time.Hour))
		if days < 0 {
			days = 0
		}
		return days, true, nil
	}
	return fieldtype.NewComputed[int](RecordAgeKey, "Record Age (days)", daysCodec{}, derive, opts)
}

// Builtins returns every built-in kind, erased for registration.
func Builtins(opts fieldtype.Options, clock RecordClock, now func() time.Time) []fieldtype.Type {
	return []fieldtype.Type{
		fieldtype.Erase[string](NewText(opts)),
		fieldtype.Erase[string](NewTextArea(opts)),
		fieldtype.Erase[float64](NewNumber(opts)),
		fieldtype.Erase[time.Time](NewDate(opts)),
		fieldtype.Erase[time.Time](NewDateTime(opts)),
		fieldtype.Erase[[]string](NewLabels(opts)),
		fieldtype.Erase[[]string](NewActors(opts)),
		fieldtype.Erase[int](NewRecordAge(clock, now, opts)),
	}
}

// NewRegistry builds a registry of the built-in kinds plus any extra types.
func NewRegistry(opts fieldtype.Options, clock RecordClock, now func() time.Time, extra ...fieldtype.Type) (*fieldtype.Registry, error) {
	return fieldtype.NewRegistry(append(Builtins(opts, clock, now), extra...)...)
}
