package fieldtype_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
)

// memPort is an in-memory ValuePersister and DefaultStore that counts calls.
type memPort struct {
	rows     map[string][]fieldtype.StorageValue
	defaults map[string][]fieldtype.StorageValue
	calls    map[string]int
}

func newMemPort() *memPort {
	return &memPort{
		rows:     map[string][]fieldtype.StorageValue{},
		defaults: map[string][]fieldtype.StorageValue{},
		calls:    map[string]int{},
	}
}

func rowKey(fieldID, recordID string) string { return fieldID + "|" + recordID }

func (p *memPort) total() int {
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *memPort) seed(fieldID, recordID string, values ...fieldtype.StorageValue) {
	p.rows[rowKey(fieldID, recordID)] = append(p.rows[rowKey(fieldID, recordID)], values...)
}

func (p *memPort) GetValues(_ context.Context, fieldID, recordID string, _ fieldtype.StorageKind) ([]fieldtype.StorageValue, error) {
	p.calls["get"]++
	rows := p.rows[rowKey(fieldID, recordID)]
	return append([]fieldtype.StorageValue(nil), rows...), nil
}

func (p *memPort) CreateValues(_ context.Context, fieldID, recordID string, _ fieldtype.StorageKind, values []fieldtype.StorageValue) error {
	p.calls["create"]++
	p.seed(fieldID, recordID, values...)
	return nil
}

func (p *memPort) UpdateValues(_ context.Context, fieldID, recordID string, _ fieldtype.StorageKind, values []fieldtype.StorageValue) error {
	p.calls["update"]++
	if len(values) == 0 {
		delete(p.rows, rowKey(fieldID, recordID))
		return nil
	}
	p.rows[rowKey(fieldID, recordID)] = append([]fieldtype.StorageValue(nil), values...)
	return nil
}

func (p *memPort) RemoveAllValues(_ context.Context, fieldID string) (fieldtype.RecordSet, error) {
	p.calls["remove_all"]++
	set := fieldtype.NewRecordSet()
	for k := range p.rows {
		f, r, _ := strings.Cut(k, "|")
		if f == fieldID {
			set.Add(r)
			delete(p.rows, k)
		}
	}
	return set, nil
}

func (p *memPort) RemoveValue(_ context.Context, fieldID string, _ fieldtype.StorageKind, value fieldtype.StorageValue) (fieldtype.RecordSet, error) {
	p.calls["remove_value"]++
	set := fieldtype.NewRecordSet()
	for k, rows := range p.rows {
		f, r, _ := strings.Cut(k, "|")
		if f != fieldID {
			continue
		}
		kept := rows[:0]
		for _, row := range rows {
			if row.Equal(value) {
				set.Add(r)
				continue
			}
			kept = append(kept, row)
		}
		p.rows[k] = kept
	}
	return set, nil
}

func (p *memPort) GetDefault(_ context.Context, namespace, configID string) ([]fieldtype.StorageValue, error) {
	p.calls["get_default"]++
	return p.defaults[namespace+"|"+configID], nil
}

func (p *memPort) SetDefault(_ context.Context, namespace, configID string, values []fieldtype.StorageValue) error {
	p.calls["set_default"]++
	if len(values) == 0 {
		delete(p.defaults, namespace+"|"+configID)
		return nil
	}
	p.defaults[namespace+"|"+configID] = values
	return nil
}

// strCodec is a short text codec; input containing "!" is rejected with a
// plain error so tests can check it is wrapped.
type strCodec struct{}

func (strCodec) StorageKind() fieldtype.StorageKind { return fieldtype.ShortText }

func (strCodec) ToStorage(v string) (fieldtype.StorageValue, bool) {
	if v == "" {
		return fieldtype.StorageValue{}, false
	}
	return fieldtype.TextValue(v), true
}

func (strCodec) FromStorage(sv fieldtype.StorageValue) (string, error) { return sv.Text() }
func (strCodec) ToText(v string) string                               { return v }

func (strCodec) FromText(text string) (string, error) {
	if strings.Contains(text, "!") {
		return "", errors.New("exclamation marks are not allowed")
	}
	return strings.TrimSpace(text), nil
}

type fixture struct {
	port *memPort
	log  *bytes.Buffer
	opts fieldtype.Options
}

func newFixture() fixture {
	port := newMemPort()
	buf := &bytes.Buffer{}
	return fixture{
		port: port,
		log:  buf,
		opts: fieldtype.Options{
			Values:   port,
			Defaults: port,
			Logger:   slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		},
	}
}

var (
	fieldF = domain.Field{ID: "f-1", Key: "customer", TypeKey: "test-text"}
	fieldG = domain.Field{ID: "g-1", Key: "tags", TypeKey: "test-tags"}
	cfgA   = domain.FieldConfig{ID: "cfg-a", FieldID: "f-1", Context: "global"}
)
