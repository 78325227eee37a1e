package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const fieldColumns = `id,key,name,COALESCE(description,''),type_key,created_at`

func scanField(row *sql.Row) (domain.Field, error) {
	var f domain.Field
	err := row.Scan(&f.ID, &f.Key, &f.Name, &f.Description, &f.TypeKey, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) InsertField(ctx context.Context, f domain.Field) error {
	return r.InsertFieldTx(ctx, nil, f)
}

func (r Repo) InsertFieldTx(ctx context.Context, tx *sql.Tx, f domain.Field) error {
	_, err := r.exec(ctx, tx, `INSERT INTO fields(id,key,name,description,type_key,created_at) VALUES (?,?,?,?,?,?)`,
		f.ID, f.Key, f.Name, nullable(f.Description), f.TypeKey, f.CreatedAt)
	return err
}

func (r Repo) GetField(ctx context.Context, id string) (domain.Field, error) {
	return scanField(r.DB.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE id=?`, id))
}

func (r Repo) GetFieldByKey(ctx context.Context, key string) (domain.Field, error) {
	return r.GetFieldByKeyTx(ctx, nil, key)
}

func (r Repo) GetFieldByKeyTx(ctx context.Context, tx *sql.Tx, key string) (domain.Field, error) {
	return scanField(r.queryer(tx).QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE key=?`, key))
}

func (r Repo) ListFields(ctx context.Context) ([]domain.Field, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+fieldColumns+` FROM fields ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Field
	for rows.Next() {
		var f domain.Field
		if err := rows.Scan(&f.ID, &f.Key, &f.Name, &f.Description, &f.TypeKey, &f.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r Repo) InsertFieldConfig(ctx context.Context, c domain.FieldConfig) error {
	return r.InsertFieldConfigTx(ctx, nil, c)
}

func (r Repo) InsertFieldConfigTx(ctx context.Context, tx *sql.Tx, c domain.FieldConfig) error {
	_, err := r.exec(ctx, tx, `INSERT INTO field_configs(id,field_id,context,created_at) VALUES (?,?,?,?)`,
		c.ID, c.FieldID, c.Context, c.CreatedAt)
	return err
}

func scanFieldConfig(row *sql.Row) (domain.FieldConfig, error) {
	var c domain.FieldConfig
	err := row.Scan(&c.ID, &c.FieldID, &c.Context, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetFieldConfig(ctx context.Context, id string) (domain.FieldConfig, error) {
	return scanFieldConfig(r.DB.QueryRowContext(ctx, `SELECT id,field_id,context,created_at FROM field_configs WHERE id=?`, id))
}

// GetFieldConfigByContext returns the configuration of fieldID for a context.
func (r Repo) GetFieldConfigByContext(ctx context.Context, fieldID, scope string) (domain.FieldConfig, error) {
	return scanFieldConfig(r.DB.QueryRowContext(ctx, `SELECT id,field_id,context,created_at FROM field_configs WHERE field_id=? AND context=?`, fieldID, scope))
}

func (r Repo) ListFieldConfigs(ctx context.Context, fieldID string) ([]domain.FieldConfig, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,field_id,context,created_at FROM field_configs WHERE field_id=? ORDER BY context ASC`, fieldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FieldConfig
	for rows.Next() {
		var c domain.FieldConfig
		if err := rows.Scan(&c.ID, &c.FieldID, &c.Context, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertRecord(ctx context.Context, rec domain.Record) error {
	return r.InsertRecordTx(ctx, nil, rec)
}

func (r Repo) InsertRecordTx(ctx context.Context, tx *sql.Tx, rec domain.Record) error {
	_, err := r.exec(ctx, tx, `INSERT INTO records(id,context,title,created_at) VALUES (?,?,?,?)`,
		rec.ID, rec.Context, rec.Title, rec.CreatedAt)
	return err
}

func (r Repo) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	var rec domain.Record
	err := r.DB.QueryRowContext(ctx, `SELECT id,context,title,created_at FROM records WHERE id=?`, id).
		Scan(&rec.ID, &rec.Context, &rec.Title, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

// RecordCreatedAt reports the creation time of a record; false when the
// record does not exist.
func (r Repo) RecordCreatedAt(ctx context.Context, recordID string) (time.Time, bool, error) {
	rec, err := r.GetRecord(ctx, recordID)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("record %s created_at: %w", recordID, err)
	}
	return t, true, nil
}

// ListChangeItems returns a record's change log, newest first.
func (r Repo) ListChangeItems(ctx context.Context, recordID, fieldKey string, limit int) ([]domain.ChangeItem, error) {
	clauses := []string{"record_id=?"}
	args := []any{recordID}
	if fieldKey != "" {
		clauses = append(clauses, "field_key=?")
		args = append(args, fieldKey)
	}
	query := `SELECT id,record_id,field_id,field_key,old_text,new_text,actor_id,created_at FROM change_items WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChangeItem
	for rows.Next() {
		var c domain.ChangeItem
		if err := rows.Scan(&c.ID, &c.RecordID, &c.FieldID, &c.FieldKey, &c.OldText, &c.NewText, &c.ActorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

// LatestEventsFrom returns events older than cursor, newest first.
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.DB.ExecContext(ctx, query, args...)
}

func (r Repo) queryer(tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
