package fieldlinesdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/db"
	"fieldline/internal/engine"
	"fieldline/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.OpenMigrated(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	e, err := engine.New(conn, engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	handler, err := server.New(server.Config{Engine: e})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	f, err := c.CreateField(ctx, "watchers", "actors", "Watchers")
	require.NoError(t, err)
	assert.Equal(t, "multi", f.Shape)

	cfg, err := c.AddFieldConfig(ctx, "watchers", "global")
	require.NoError(t, err)
	def, err := c.SetDefault(ctx, cfg.ID, "triager")
	require.NoError(t, err)
	assert.Equal(t, []string{"triager"}, def.Elements)

	rec, err := c.CreateRecord(ctx, "Flaky test", "", true)
	require.NoError(t, err)
	v, err := c.Value(ctx, rec.ID, "watchers")
	require.NoError(t, err)
	assert.True(t, v.Present)
	assert.Equal(t, []string{"triager"}, v.Elements)

	v, err = c.SetValue(ctx, rec.ID, "watchers", "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, v.Elements)

	changes, err := c.Changes(ctx, rec.ID, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "triager", changes[1].NewText)

	affected, err := c.RemoveElement(ctx, "watchers", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID}, affected)

	require.NoError(t, c.ClearValue(ctx, rec.ID, "watchers"))
	v, err = c.Value(ctx, rec.ID, "watchers")
	require.NoError(t, err)
	assert.False(t, v.Present)

	page, err := c.EventsPage(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	_, err := c.CreateField(ctx, "due", "date", "")
	require.NoError(t, err)
	rec, err := c.CreateRecord(ctx, "Launch", "", false)
	require.NoError(t, err)

	_, err = c.SetValue(ctx, rec.ID, "due", "soon")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Contains(t, apiErr.Details, "due")

	_, err = c.Value(ctx, "nope", "due")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)
}
