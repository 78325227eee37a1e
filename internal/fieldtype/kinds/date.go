package kinds

import (
	"strings"
	"time"

	"fieldline/internal/fieldtype"
)

const (
	DateKey     = "date"
	DateTimeKey = "datetime"

	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

type timeCodec struct {
	layout string
	// truncate drops the time of day.
	truncate bool
}

func (timeCodec) StorageKind() fieldtype.StorageKind { return fieldtype.Timestamp }

func (c timeCodec) normalize(t time.Time) time.Time {
	t = t.UTC()
	if c.truncate {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Second)
}

// ToStorage treats the zero time as no value.
func (c timeCodec) ToStorage(v time.Time) (fieldtype.StorageValue, bool) {
	if v.IsZero() {
		return fieldtype.StorageValue{}, false
	}
	return fieldtype.TimestampValue(c.normalize(v)), true
}

func (c timeCodec) FromStorage(sv fieldtype.StorageValue) (time.Time, error) {
	t, err := sv.Timestamp()
	if err != nil {
		return time.Time{}, err
	}
	return c.normalize(t), nil
}

func (c timeCodec) ToText(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return c.normalize(v).Format(c.layout)
}

func (c timeCodec) FromText(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	t, err := time.Parse(c.layout, text)
	if err != nil {
		return time.Time{}, fieldtype.Invalidf("%q is not a valid date, expected format %s", text, c.layout)
	}
	return c.normalize(t), nil
}

func NewDate(opts fieldtype.Options) *fieldtype.Single[time.Time] {
	return fieldtype.NewSingle[time.Time](DateKey, "Date Picker", timeCodec{layout: DateLayout, truncate: true}, opts)
}

func NewDateTime(opts fieldtype.Options) *fieldtype.Single[time.Time] {
	return fieldtype.NewSingle[time.Time](DateTimeKey, "Date Time Picker", timeCodec{layout: DateTimeLayout}, opts)
}
