package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fieldline/internal/domain"
)

const (
	FieldCreated       = "field.created"
	FieldConfigAdded   = "field.config.added"
	FieldValuesRemoved = "field.values.removed"
	RecordCreated      = "record.created"
	ValueChanged       = "value.changed"
	DefaultChanged     = "default.changed"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) now() string {
	if w.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return w.Now().UTC().Format(time.RFC3339)
}

// Append writes one event row inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		w.now(), evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

// AppendChange writes a change-log item and its value.changed event in tx.
func (w Writer) AppendChange(ctx context.Context, tx *sql.Tx, item domain.ChangeItem) error {
	if item.CreatedAt == "" {
		item.CreatedAt = w.now()
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO change_items(record_id,field_id,field_key,old_text,new_text,actor_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		item.RecordID, item.FieldID, item.FieldKey, item.OldText, item.NewText, item.ActorID, item.CreatedAt); err != nil {
		return fmt.Errorf("insert change item: %w", err)
	}
	return w.Append(ctx, tx, ValueChanged, "record", item.RecordID, item.ActorID, EventPayload{
		"field": item.FieldKey,
		"old":   item.OldText,
		"new":   item.NewText,
	})
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
