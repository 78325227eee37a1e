package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fieldline/internal/db"
	"fieldline/internal/fieldtype"
	"fieldline/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMigrated(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestValueStoreRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	ctx := context.Background()

	when := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		kind  fieldtype.StorageKind
		value fieldtype.StorageValue
	}{
		{fieldtype.ShortText, fieldtype.TextValue("hello")},
		{fieldtype.LongText, fieldtype.LongTextValue("line one\nline two")},
		{fieldtype.Number, fieldtype.NumberValue(12.5)},
		{fieldtype.Timestamp, fieldtype.TimestampValue(when)},
	}
	for _, tc := range cases {
		field := "f-" + tc.kind.String()
		if err := s.CreateValues(ctx, field, "R", tc.kind, []fieldtype.StorageValue{tc.value}); err != nil {
			t.Fatalf("create %s: %v", tc.kind, err)
		}
		got, err := s.GetValues(ctx, field, "R", tc.kind)
		if err != nil {
			t.Fatalf("get %s: %v", tc.kind, err)
		}
		if len(got) != 1 || !got[0].Equal(tc.value) {
			t.Fatalf("%s round trip: got %+v want %+v", tc.kind, got, tc.value)
		}
	}
}

func TestValueStoreKeepsInsertionOrder(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	ctx := context.Background()

	rows := []fieldtype.StorageValue{fieldtype.TextValue("c"), fieldtype.TextValue("a"), fieldtype.TextValue("b")}
	if err := s.CreateValues(ctx, "f", "R", fieldtype.ShortText, rows); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetValues(ctx, "f", "R", fieldtype.ShortText)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rows {
		if !got[i].Equal(rows[i]) {
			t.Fatalf("row %d: got %+v want %+v", i, got[i], rows[i])
		}
	}
}

func TestValueStoreUpdateReplacesRows(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	ctx := context.Background()

	if err := s.CreateValues(ctx, "f", "R", fieldtype.ShortText, []fieldtype.StorageValue{fieldtype.TextValue("a"), fieldtype.TextValue("b")}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateValues(ctx, "f", "R", fieldtype.ShortText, []fieldtype.StorageValue{fieldtype.TextValue("z")}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetValues(ctx, "f", "R", fieldtype.ShortText)
	if len(got) != 1 || got[0].String != "z" {
		t.Fatalf("expected single z row, got %+v", got)
	}
	if err := s.UpdateValues(ctx, "f", "R", fieldtype.ShortText, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetValues(ctx, "f", "R", fieldtype.ShortText)
	if len(got) != 0 {
		t.Fatalf("expected no rows after clearing, got %+v", got)
	}
}

func TestValueStoreRejectsMismatchedKind(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	err := s.CreateValues(context.Background(), "f", "R", fieldtype.Number, []fieldtype.StorageValue{fieldtype.TextValue("x")})
	if err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestValueStoreRemove(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	ctx := context.Background()

	seed := map[string][]string{"R1": {"a", "b"}, "R2": {"b"}, "R3": {"c"}}
	for rec, vals := range seed {
		var rows []fieldtype.StorageValue
		for _, v := range vals {
			rows = append(rows, fieldtype.TextValue(v))
		}
		if err := s.CreateValues(ctx, "f", rec, fieldtype.ShortText, rows); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateValues(ctx, "other", "R1", fieldtype.ShortText, []fieldtype.StorageValue{fieldtype.TextValue("b")}); err != nil {
		t.Fatal(err)
	}

	affected, err := s.RemoveValue(ctx, "f", fieldtype.ShortText, fieldtype.TextValue("b"))
	if err != nil {
		t.Fatal(err)
	}
	if got := affected.Sorted(); len(got) != 2 || got[0] != "R1" || got[1] != "R2" {
		t.Fatalf("remove value affected %v", got)
	}
	other, _ := s.GetValues(ctx, "other", "R1", fieldtype.ShortText)
	if len(other) != 1 {
		t.Fatalf("other field must keep its rows, got %+v", other)
	}

	affected, err = s.RemoveAllValues(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	if got := affected.Sorted(); len(got) != 2 || got[0] != "R1" || got[1] != "R3" {
		t.Fatalf("remove all affected %v", got)
	}
	left, _ := s.GetValues(ctx, "f", "R3", fieldtype.ShortText)
	if len(left) != 0 {
		t.Fatalf("expected no rows, got %+v", left)
	}
}

func TestCorruptTimestampKeepsKind(t *testing.T) {
	conn := openTestDB(t)
	s := store.ValueStore{DB: conn}
	ctx := context.Background()
	if _, err := conn.Exec(`INSERT INTO field_values(field_id,record_id,kind,date_value) VALUES ('f','R','timestamp','not-a-date')`); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetValues(ctx, "f", "R", fieldtype.Timestamp)
	if err != nil {
		t.Fatalf("corrupt row must not fail the read: %v", err)
	}
	if len(got) != 1 || got[0].Kind != fieldtype.Timestamp || got[0].String != "not-a-date" || !got[0].Time.IsZero() {
		t.Fatalf("expected raw timestamp row, got %+v", got)
	}
	if _, err := got[0].Timestamp(); err == nil {
		t.Fatal("expected timestamp conversion to fail")
	}

	// Writing the rotten row back through its own channel must succeed.
	if err := s.UpdateValues(ctx, "f", "R", fieldtype.Timestamp, got); err != nil {
		t.Fatalf("rewrite corrupt row: %v", err)
	}
	again, err := s.GetValues(ctx, "f", "R", fieldtype.Timestamp)
	if err != nil || len(again) != 1 || !again[0].Equal(got[0]) {
		t.Fatalf("expected the raw row back, got %+v err %v", again, err)
	}
	affected, err := s.RemoveValue(ctx, "f", fieldtype.Timestamp, got[0])
	if err != nil || !affected.Has("R") {
		t.Fatalf("remove corrupt row: %v %v", affected, err)
	}
}

func TestDefaultStore(t *testing.T) {
	conn := openTestDB(t)
	s := store.DefaultStore{DB: conn}
	ctx := context.Background()

	got, err := s.GetDefault(ctx, fieldtype.DefaultValueNamespace, "cfg")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no default, got %+v err %v", got, err)
	}
	vals := []fieldtype.StorageValue{fieldtype.TextValue("b"), fieldtype.TextValue("a")}
	if err := s.SetDefault(ctx, fieldtype.DefaultValueNamespace, "cfg", vals); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDefault(ctx, "Other", "cfg", []fieldtype.StorageValue{fieldtype.NumberValue(1)}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetDefault(ctx, fieldtype.DefaultValueNamespace, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].String != "b" || got[1].String != "a" {
		t.Fatalf("unexpected default rows %+v", got)
	}
	if err := s.SetDefault(ctx, fieldtype.DefaultValueNamespace, "cfg", nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetDefault(ctx, fieldtype.DefaultValueNamespace, "cfg")
	if len(got) != 0 {
		t.Fatalf("expected cleared default, got %+v", got)
	}
	other, _ := s.GetDefault(ctx, "Other", "cfg")
	if len(other) != 1 {
		t.Fatalf("other namespace must be untouched, got %+v", other)
	}
}
