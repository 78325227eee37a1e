// Package store implements the field value and default value ports on top of
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fieldline/internal/fieldtype"
)

const timeLayout = time.RFC3339Nano

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// columns returns string_value, text_value, number_value, date_value for v.
func columns(v fieldtype.StorageValue) (any, any, any, any) {
	switch v.Kind {
	case fieldtype.ShortText:
		return v.String, nil, nil, nil
	case fieldtype.LongText:
		return nil, v.String, nil, nil
	case fieldtype.Number:
		return nil, nil, v.Number, nil
	case fieldtype.Timestamp:
		return nil, nil, nil, dateColumn(v)
	}
	return nil, nil, nil, nil
}

// dateColumn writes unparseable timestamps back as they were read.
func dateColumn(v fieldtype.StorageValue) string {
	if v.Time.IsZero() {
		return v.String
	}
	return v.Time.UTC().Format(timeLayout)
}

func scanValue(kindName string, str, text sql.NullString, num sql.NullFloat64, date sql.NullString) (fieldtype.StorageValue, error) {
	kind, err := fieldtype.ParseStorageKind(kindName)
	if err != nil {
		return fieldtype.StorageValue{}, err
	}
	v := fieldtype.StorageValue{Kind: kind}
	switch kind {
	case fieldtype.ShortText:
		v.String = str.String
	case fieldtype.LongText:
		v.String = text.String
	case fieldtype.Number:
		v.Number = num.Float64
	case fieldtype.Timestamp:
		// Unparseable dates keep the raw text and a zero time; the field
		// type's conversion rejects them.
		t, err := time.Parse(timeLayout, date.String)
		if err != nil {
			v.String = date.String
			return v, nil
		}
		v.Time = t
	}
	return v, nil
}

// ValueStore persists per-record field values, one row per element.
type ValueStore struct {
	DB *sql.DB
}

var _ fieldtype.ValuePersister = ValueStore{}

func (s ValueStore) GetValues(ctx context.Context, fieldID, recordID string, kind fieldtype.StorageKind) ([]fieldtype.StorageValue, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT kind,string_value,text_value,number_value,date_value FROM field_values
WHERE field_id=? AND record_id=? AND kind=? ORDER BY id ASC`, fieldID, recordID, kind.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []fieldtype.StorageValue
	for rows.Next() {
		var kindName string
		var str, text, date sql.NullString
		var num sql.NullFloat64
		if err := rows.Scan(&kindName, &str, &text, &num, &date); err != nil {
			return nil, err
		}
		v, err := scanValue(kindName, str, text, num, date)
		if err != nil {
			return nil, fmt.Errorf("field %s record %s: %w", fieldID, recordID, err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func insertValues(ctx context.Context, ex execer, fieldID, recordID string, kind fieldtype.StorageKind, values []fieldtype.StorageValue) error {
	for _, v := range values {
		if v.Kind != kind {
			return fmt.Errorf("value of kind %s written to %s channel", v.Kind, kind)
		}
		str, text, num, date := columns(v)
		if _, err := ex.ExecContext(ctx, `INSERT INTO field_values(field_id,record_id,kind,string_value,text_value,number_value,date_value)
VALUES (?,?,?,?,?,?,?)`, fieldID, recordID, kind.String(), str, text, num, date); err != nil {
			return fmt.Errorf("insert value: %w", err)
		}
	}
	return nil
}

func (s ValueStore) CreateValues(ctx context.Context, fieldID, recordID string, kind fieldtype.StorageKind, values []fieldtype.StorageValue) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertValues(ctx, tx, fieldID, recordID, kind, values); err != nil {
		return err
	}
	return tx.Commit()
}

func (s ValueStore) UpdateValues(ctx context.Context, fieldID, recordID string, kind fieldtype.StorageKind, values []fieldtype.StorageValue) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE field_id=? AND record_id=? AND kind=?`,
		fieldID, recordID, kind.String()); err != nil {
		return fmt.Errorf("delete values: %w", err)
	}
	if err := insertValues(ctx, tx, fieldID, recordID, kind, values); err != nil {
		return err
	}
	return tx.Commit()
}

func collectRecords(rows *sql.Rows) (fieldtype.RecordSet, error) {
	defer rows.Close()
	set := fieldtype.NewRecordSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set.Add(id)
	}
	return set, rows.Err()
}

func (s ValueStore) RemoveAllValues(ctx context.Context, fieldID string) (fieldtype.RecordSet, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT record_id FROM field_values WHERE field_id=?`, fieldID)
	if err != nil {
		return nil, err
	}
	affected, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE field_id=?`, fieldID); err != nil {
		return nil, fmt.Errorf("delete values: %w", err)
	}
	return affected, tx.Commit()
}

func (s ValueStore) RemoveValue(ctx context.Context, fieldID string, kind fieldtype.StorageKind, value fieldtype.StorageValue) (fieldtype.RecordSet, error) {
	column, arg, err := matchColumn(value)
	if err != nil {
		return nil, err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	where := `field_id=? AND kind=? AND ` + column + `=?`
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT record_id FROM field_values WHERE `+where, fieldID, kind.String(), arg)
	if err != nil {
		return nil, err
	}
	affected, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE `+where, fieldID, kind.String(), arg); err != nil {
		return nil, fmt.Errorf("delete value: %w", err)
	}
	return affected, tx.Commit()
}

func matchColumn(v fieldtype.StorageValue) (string, any, error) {
	switch v.Kind {
	case fieldtype.ShortText:
		return "string_value", v.String, nil
	case fieldtype.LongText:
		return "text_value", v.String, nil
	case fieldtype.Number:
		return "number_value", v.Number, nil
	case fieldtype.Timestamp:
		return "date_value", dateColumn(v), nil
	}
	return "", nil, fmt.Errorf("unknown storage kind %s", v.Kind)
}

// DefaultStore persists default values in the generic_config table keyed by
// (namespace, configuration id), one row per element.
type DefaultStore struct {
	DB *sql.DB
}

var _ fieldtype.DefaultStore = DefaultStore{}

func (s DefaultStore) GetDefault(ctx context.Context, namespace, configID string) ([]fieldtype.StorageValue, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT kind,string_value,text_value,number_value,date_value FROM generic_config
WHERE namespace=? AND config_key=? ORDER BY position ASC, id ASC`, namespace, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []fieldtype.StorageValue
	for rows.Next() {
		var kindName string
		var str, text, date sql.NullString
		var num sql.NullFloat64
		if err := rows.Scan(&kindName, &str, &text, &num, &date); err != nil {
			return nil, err
		}
		v, err := scanValue(kindName, str, text, num, date)
		if err != nil {
			return nil, fmt.Errorf("default %s/%s: %w", namespace, configID, err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// SetDefault replaces the stored default; nil or empty values clear it.
func (s DefaultStore) SetDefault(ctx context.Context, namespace, configID string, values []fieldtype.StorageValue) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM generic_config WHERE namespace=? AND config_key=?`, namespace, configID); err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	for i, v := range values {
		str, text, num, date := columns(v)
		if _, err := tx.ExecContext(ctx, `INSERT INTO generic_config(namespace,config_key,position,kind,string_value,text_value,number_value,date_value)
VALUES (?,?,?,?,?,?,?,?)`, namespace, configID, i, v.Kind.String(), str, text, num, date); err != nil {
			return fmt.Errorf("insert default: %w", err)
		}
	}
	return tx.Commit()
}
