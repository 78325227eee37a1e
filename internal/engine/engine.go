package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldline/internal/config"
	"fieldline/internal/domain"
	"fieldline/internal/events"
	"fieldline/internal/fieldtype"
	"fieldline/internal/fieldtype/kinds"
	"fieldline/internal/repo"
	"fieldline/internal/store"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Types  *fieldtype.Registry
	Logger *slog.Logger
	Now    func() time.Time
}

type Options struct {
	Logger *slog.Logger
	// Now drives timestamps and the record-age kind. Defaults to time.Now.
	Now func() time.Time
	// Types are registered next to the built-in kinds.
	Types []fieldtype.Type
}

func New(db *sql.DB, opts Options) (Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	r := repo.Repo{DB: db}
	typeOpts := fieldtype.Options{
		Values:   store.ValueStore{DB: db},
		Defaults: store.DefaultStore{DB: db},
		Logger:   logger,
	}
	types, err := kinds.NewRegistry(typeOpts, r, now, opts.Types...)
	if err != nil {
		return Engine{}, fmt.Errorf("build type registry: %w", err)
	}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db, Now: now},
		Types:  types,
		Logger: logger,
		Now:    now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string { return e.now().UTC().Format(time.RFC3339) }

// withTx runs fn in a transaction. Field type operations must not be called
// from fn: the database allows a single connection.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// FieldCreateOptions are parameters for defining a field.
type FieldCreateOptions struct {
	ID          string
	Key         string
	Name        string
	Description string
	TypeKey     string
	ActorID     string
}

func (e Engine) CreateField(ctx context.Context, opts FieldCreateOptions) (domain.Field, error) {
	opts.Key = strings.TrimSpace(opts.Key)
	if !config.ValidKey(opts.Key) {
		return domain.Field{}, fmt.Errorf("invalid field key %q", opts.Key)
	}
	if _, ok := e.Types.Lookup(opts.TypeKey); !ok {
		return domain.Field{}, fmt.Errorf("unknown field type %s", opts.TypeKey)
	}
	if opts.Name == "" {
		opts.Name = opts.Key
	}
	f := domain.Field{
		ID:          opts.ID,
		Key:         opts.Key,
		Name:        opts.Name,
		Description: opts.Description,
		TypeKey:     opts.TypeKey,
		CreatedAt:   e.timestamp(),
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetFieldByKeyTx(ctx, tx, f.Key); err == nil {
			return fmt.Errorf("field %s already exists", f.Key)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := e.Repo.InsertFieldTx(ctx, tx, f); err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
		return e.Events.Append(ctx, tx, events.FieldCreated, "field", f.ID, opts.ActorID, events.EventPayload{
			"key":  f.Key,
			"type": f.TypeKey,
		})
	})
	if err != nil {
		return domain.Field{}, err
	}
	return f, nil
}

// Field loads a field definition and resolves its type.
func (e Engine) Field(ctx context.Context, key string) (domain.Field, fieldtype.Type, error) {
	f, err := e.Repo.GetFieldByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return f, nil, fmt.Errorf("field %s: %w", key, repo.ErrNotFound)
		}
		return f, nil, err
	}
	ft, ok := e.Types.Lookup(f.TypeKey)
	if !ok {
		return f, nil, fmt.Errorf("field %s has unregistered type %s", key, f.TypeKey)
	}
	return f, ft, nil
}

func (e Engine) ListFields(ctx context.Context) ([]domain.Field, error) {
	return e.Repo.ListFields(ctx)
}

// AddFieldConfig scopes a field to a context.
func (e Engine) AddFieldConfig(ctx context.Context, fieldKey, scope, actorID string) (domain.FieldConfig, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return domain.FieldConfig{}, errors.New("context is required")
	}
	f, _, err := e.Field(ctx, fieldKey)
	if err != nil {
		return domain.FieldConfig{}, err
	}
	c := domain.FieldConfig{
		ID:        uuid.NewString(),
		FieldID:   f.ID,
		Context:   scope,
		CreatedAt: e.timestamp(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertFieldConfigTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert field config: %w", err)
		}
		return e.Events.Append(ctx, tx, events.FieldConfigAdded, "field", f.ID, actorID, events.EventPayload{
			"config":  c.ID,
			"context": c.Context,
		})
	})
	if err != nil {
		return domain.FieldConfig{}, err
	}
	return c, nil
}

func (e Engine) ListFieldConfigs(ctx context.Context, fieldKey string) ([]domain.FieldConfig, error) {
	f, _, err := e.Field(ctx, fieldKey)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListFieldConfigs(ctx, f.ID)
}

// fieldConfig loads a configuration together with its field and type.
func (e Engine) fieldConfig(ctx context.Context, configID string) (domain.FieldConfig, domain.Field, fieldtype.Type, error) {
	c, err := e.Repo.GetFieldConfig(ctx, configID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return c, domain.Field{}, nil, fmt.Errorf("field config %s: %w", configID, repo.ErrNotFound)
		}
		return c, domain.Field{}, nil, err
	}
	f, err := e.Repo.GetField(ctx, c.FieldID)
	if err != nil {
		return c, f, nil, err
	}
	ft, ok := e.Types.Lookup(f.TypeKey)
	if !ok {
		return c, f, nil, fmt.Errorf("field %s has unregistered type %s", f.Key, f.TypeKey)
	}
	return c, f, ft, nil
}

// RecordCreateOptions are parameters for creating a record.
type RecordCreateOptions struct {
	ID      string
	Context string
	Title   string
	ActorID string
	// ApplyDefaults fills every field configured for the record's context
	// from its default value.
	ApplyDefaults bool
}

func (e Engine) CreateRecord(ctx context.Context, opts RecordCreateOptions) (domain.Record, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Record{}, errors.New("title is required")
	}
	if opts.Context == "" {
		opts.Context = "global"
	}
	rec := domain.Record{
		ID:        opts.ID,
		Context:   opts.Context,
		Title:     strings.TrimSpace(opts.Title),
		CreatedAt: e.timestamp(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(rec.Context+"|"+rec.Title+"|"+rec.CreatedAt)).String()
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertRecordTx(ctx, tx, rec); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return e.Events.Append(ctx, tx, events.RecordCreated, "record", rec.ID, opts.ActorID, events.EventPayload{
			"context": rec.Context,
			"title":   rec.Title,
		})
	})
	if err != nil {
		return domain.Record{}, err
	}
	if opts.ApplyDefaults {
		fields, err := e.Repo.ListFields(ctx)
		if err != nil {
			return rec, err
		}
		for _, f := range fields {
			if _, err := e.ApplyDefault(ctx, rec.ID, f.Key, opts.ActorID); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return rec, fmt.Errorf("apply default of %s: %w", f.Key, err)
			}
		}
	}
	return rec, nil
}

func (e Engine) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	rec, err := e.Repo.GetRecord(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return rec, fmt.Errorf("record %s: %w", id, repo.ErrNotFound)
	}
	return rec, err
}

func (e Engine) RecordChanges(ctx context.Context, recordID, fieldKey string, limit int) ([]domain.ChangeItem, error) {
	if _, err := e.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return e.Repo.ListChangeItems(ctx, recordID, fieldKey, limit)
}
