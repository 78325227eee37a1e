package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"fieldline/internal/db"
	"fieldline/internal/domain"
)

func TestAppendChangeWritesItemAndEvent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenMigrated(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w := Writer{DB: conn, Now: func() time.Time { return fixed }}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO records(id,context,title,created_at) VALUES ('r1','global','Launch',?)`, fixed.Format(time.RFC3339)); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO fields(id,key,name,description,type_key,created_at) VALUES ('f1','due','Due','','date',?)`, fixed.Format(time.RFC3339)); err != nil {
		t.Fatalf("insert field: %v", err)
	}
	item := domain.ChangeItem{RecordID: "r1", FieldID: "f1", FieldKey: "due", NewText: "2024-03-02", ActorID: "alice"}
	if err := w.AppendChange(ctx, tx, item); err != nil {
		t.Fatalf("append change: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var createdAt, newText string
	if err := conn.QueryRowContext(ctx, `SELECT created_at,new_text FROM change_items WHERE record_id='r1'`).Scan(&createdAt, &newText); err != nil {
		t.Fatalf("select change: %v", err)
	}
	if createdAt != "2024-03-01T12:00:00Z" || newText != "2024-03-02" {
		t.Fatalf("unexpected change row: %s %s", createdAt, newText)
	}

	var evtType, kind, payload string
	if err := conn.QueryRowContext(ctx, `SELECT type,entity_kind,payload_json FROM events WHERE entity_id='r1'`).Scan(&evtType, &kind, &payload); err != nil {
		t.Fatalf("select event: %v", err)
	}
	if evtType != ValueChanged || kind != "record" {
		t.Fatalf("unexpected event: %s %s", evtType, kind)
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p["field"] != "due" || p["new"] != "2024-03-02" {
		t.Fatalf("unexpected payload: %v", p)
	}
}

func TestAppendStoresNullEntity(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenMigrated(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	w := Writer{DB: conn}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := w.Append(ctx, tx, "catalog.imported", "catalog", "", "local-user", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var entity sql.NullString
	var payload string
	if err := conn.QueryRowContext(ctx, `SELECT entity_id,payload_json FROM events`).Scan(&entity, &payload); err != nil {
		t.Fatalf("select: %v", err)
	}
	if entity.Valid || payload != "{}" {
		t.Fatalf("unexpected row: %v %s", entity, payload)
	}
}
