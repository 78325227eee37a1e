package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"fieldline/internal/config"
	"fieldline/internal/db"
	"fieldline/internal/engine"
)

// Options describe how a workspace is opened.
type Options struct {
	Workspace string
	ActorID   string
	Logger    *slog.Logger
	// SkipCatalog leaves fieldline.yml alone even when it exists.
	SkipCatalog bool
}

// Workspace is an open database plus the engine bound to it.
type Workspace struct {
	Engine engine.Engine
	// Imported reports what the catalog import created while opening.
	Imported engine.ImportResult
	conn     *sql.DB
}

func (w *Workspace) Close() error { return w.conn.Close() }

// Open migrates the workspace database, builds the engine and, when the
// workspace holds a catalog, imports the fields it lists that are missing.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	if opts.ActorID == "" {
		opts.ActorID = "local-user"
	}
	conn, err := db.OpenMigrated(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	e, err := engine.New(conn, engine.Options{Logger: opts.Logger})
	if err != nil {
		conn.Close()
		return nil, err
	}
	ws := &Workspace{Engine: e, conn: conn}
	if opts.SkipCatalog {
		return ws, nil
	}
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg == nil {
		return ws, nil
	}
	res, err := e.ImportCatalog(ctx, cfg, opts.ActorID)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("import catalog %s: %w", config.Path(opts.Workspace), err)
	}
	if res.FieldsCreated > 0 || res.ConfigsCreated > 0 {
		e.Logger.InfoContext(ctx, "catalog imported", "fields", res.FieldsCreated, "configs", res.ConfigsCreated, "defaults", res.DefaultsSet)
	}
	ws.Imported = res
	return ws, nil
}
