package kinds_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/db"
	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
	"fieldline/internal/fieldtype/kinds"
	"fieldline/internal/store"
)

func sqliteOptions(t *testing.T) fieldtype.Options {
	t.Helper()
	conn, err := db.OpenMigrated(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return fieldtype.Options{Values: store.ValueStore{DB: conn}, Defaults: store.DefaultStore{DB: conn}}
}

type fixedClock map[string]time.Time

func (c fixedClock) RecordCreatedAt(_ context.Context, id string) (time.Time, bool, error) {
	t, ok := c[id]
	return t, ok, nil
}

func TestTextKinds(t *testing.T) {
	opts := fieldtype.Options{}
	text := kinds.NewText(opts)

	v, err := text.FromText("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = text.FromText(strings.Repeat("x", fieldtype.ShortTextLimit+1))
	var ve *fieldtype.ValidationError
	require.ErrorAs(t, err, &ve)

	area := kinds.NewTextArea(opts)
	long := strings.Repeat("y", 1000)
	v, err = area.FromText(long)
	require.NoError(t, err)
	assert.Equal(t, long, v)
	assert.Equal(t, fieldtype.LongText, area.StorageKind())
}

func TestNumberKind(t *testing.T) {
	n := kinds.NewNumber(fieldtype.Options{})
	for _, in := range []string{"0", "-3", "12.25", "1e3"} {
		v, err := n.FromText(in)
		require.NoError(t, err, in)
		back, err := n.FromText(n.ToText(v))
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
	for _, bad := range []string{"", "abc", "NaN", "Inf"} {
		_, err := n.FromText(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "1000", n.ToText(1000))
}

func TestDateKinds(t *testing.T) {
	date := kinds.NewDate(fieldtype.Options{})
	v, err := date.FromText("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), v)
	assert.Equal(t, "2024-02-29", date.ToText(v))
	_, err = date.FromText("29/02/2024")
	assert.Error(t, err)

	dt := kinds.NewDateTime(fieldtype.Options{})
	v, err = dt.FromText("2024-02-29T10:15:30+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29T08:15:30Z", dt.ToText(v))
	assert.Equal(t, "", dt.ToText(time.Time{}))
}

func TestDatePersistsTruncatedToDay(t *testing.T) {
	opts := sqliteOptions(t)
	ctx := context.Background()
	date := kinds.NewDate(opts)
	field := domain.Field{ID: "f-due", Key: "due", TypeKey: kinds.DateKey}

	require.NoError(t, date.CreateValue(ctx, field, "R", time.Date(2024, 5, 6, 23, 59, 0, 0, time.UTC)))
	v, ok, err := date.ValueForRecord(ctx, field, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), v)
}

func TestDateRepairKeepsRottenFirstRow(t *testing.T) {
	opts := sqliteOptions(t)
	ctx := context.Background()
	conn := opts.Values.(store.ValueStore).DB
	date := kinds.NewDate(opts)
	field := domain.Field{ID: "f-due", Key: "due", TypeKey: kinds.DateKey}

	_, err := conn.Exec(`INSERT INTO field_values(field_id,record_id,kind,date_value) VALUES ('f-due','R','timestamp','garbage')`)
	require.NoError(t, err)
	require.NoError(t, date.CreateValue(ctx, field, "R", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))

	_, ok, err := date.ValueForRecord(ctx, field, "R")
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := opts.Values.GetValues(ctx, field.ID, "R", fieldtype.Timestamp)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "garbage", rows[0].String)

	require.NoError(t, date.UpdateValue(ctx, field, "R", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	v, ok, err := date.ValueForRecord(ctx, field, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), v)
}

func TestLabelsKind(t *testing.T) {
	opts := sqliteOptions(t)
	ctx := context.Background()
	labels := kinds.NewLabels(opts)
	field := domain.Field{ID: "f-labels", Key: "labels", TypeKey: kinds.LabelsKey}

	v, err := labels.FromText("ops, backend,ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", "backend"}, v)
	require.NoError(t, labels.CreateValue(ctx, field, "R", v))

	got, ok, err := labels.ValueForRecord(ctx, field, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"backend", "ops"}, got)

	_, _, err = labels.FromParams([]string{"two words"})
	assert.Error(t, err)
}

func TestActorsKeepStorageOrder(t *testing.T) {
	opts := sqliteOptions(t)
	ctx := context.Background()
	actors := kinds.NewActors(opts)
	field := domain.Field{ID: "f-watchers", Key: "watchers", TypeKey: kinds.ActorsKey}

	require.NoError(t, actors.CreateValue(ctx, field, "R", []string{"zoe", "alice@example.com"}))
	got, ok, err := actors.ValueForRecord(ctx, field, "R")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"zoe", "alice@example.com"}, got)
	assert.False(t, actors.Ordered())

	_, err = actors.FromText("bad actor")
	assert.Error(t, err)
}

func TestRecordAge(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := fixedClock{
		"old":    time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		"future": now.Add(time.Hour),
	}
	age := kinds.NewRecordAge(clock, func() time.Time { return now }, fieldtype.Options{})
	field := domain.Field{ID: "f-age", Key: "age", TypeKey: kinds.RecordAgeKey}
	ctx := context.Background()

	v, ok, err := age.ValueForRecord(ctx, field, "old")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, v)

	v, ok, err = age.ValueForRecord(ctx, field, "future")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, v)

	_, ok, err = age.ValueForRecord(ctx, field, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

type textOnly struct{}

func (textOnly) VisitText(t *kinds.Text) any               { return "text:" + t.Key() }
func (textOnly) VisitSingle(t fieldtype.SingleShape) any   { return "single:" + t.Key() }
func (textOnly) VisitComputed(fieldtype.ComputedShape) any { return "computed" }

func TestTextVisitorLayer(t *testing.T) {
	reg, err := kinds.NewRegistry(fieldtype.Options{}, fixedClock{}, nil)
	require.NoError(t, err)

	cases := map[string]string{
		kinds.TextKey:      "text:text",
		kinds.TextAreaKey:  "single:textarea",
		kinds.NumberKey:    "single:number",
		kinds.RecordAgeKey: "computed",
	}
	for key, want := range cases {
		ft, ok := reg.Lookup(key)
		require.True(t, ok, key)
		got, ok := fieldtype.Dispatch[string](ft, textOnly{})
		require.True(t, ok, key)
		assert.Equal(t, want, got)
	}

	labels, _ := reg.Lookup(kinds.LabelsKey)
	_, ok := labels.Accept(textOnly{})
	assert.False(t, ok)
}

func TestRegistryHoldsBuiltins(t *testing.T) {
	reg, err := kinds.NewRegistry(fieldtype.Options{}, fixedClock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		kinds.ActorsKey, kinds.DateKey, kinds.DateTimeKey, kinds.LabelsKey,
		kinds.NumberKey, kinds.RecordAgeKey, kinds.TextKey, kinds.TextAreaKey,
	}, reg.Keys())

	_, err = kinds.NewRegistry(fieldtype.Options{}, fixedClock{}, nil, fieldtype.Erase[string](kinds.NewText(fieldtype.Options{})))
	assert.Error(t, err)
}
