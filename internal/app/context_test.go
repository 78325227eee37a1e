package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/internal/config"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOpenImportsCatalogOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(config.GenerateDefault()), 0o644))

	ws, err := Open(ctx, Options{Workspace: dir, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, 7, ws.Imported.FieldsCreated)
	fields, err := ws.Engine.ListFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 7)
	require.NoError(t, ws.Close())

	ws, err = Open(ctx, Options{Workspace: dir, Logger: quietLogger()})
	require.NoError(t, err)
	defer ws.Close()
	assert.Zero(t, ws.Imported.FieldsCreated)
	assert.Zero(t, ws.Imported.ConfigsCreated)
}

func TestOpenWithoutCatalog(t *testing.T) {
	ctx := context.Background()
	ws, err := Open(ctx, Options{Workspace: t.TempDir(), Logger: quietLogger()})
	require.NoError(t, err)
	defer ws.Close()
	fields, err := ws.Engine.ListFields(ctx)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestOpenRejectsBadCatalog(t *testing.T) {
	dir := t.TempDir()
	bad := "fields:\n  - key: due\n    name: Due\n    type: date\n    contexts:\n      - name: global\n        default: someday\n"
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(bad), 0o644))
	_, err := Open(context.Background(), Options{Workspace: dir, Logger: quietLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "due@global")
}
