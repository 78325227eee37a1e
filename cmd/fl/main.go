package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fieldline/internal/app"
	"fieldline/internal/config"
	"fieldline/internal/domain"
	"fieldline/internal/engine"
	"fieldline/internal/fieldtype"
	"fieldline/internal/repo"
	"fieldline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fl",
	Short: "Fieldline CLI",
	Long: `Fieldline stores typed custom field values on records.
Core concepts:
- Field: a named slot with a type (text, textarea, number, date, datetime, labels, actors, record-age).
- Field type: owns parsing, validation and storage of a field's values; single, multi or computed.
- Configuration: scopes a field to a context and may carry a default value.
- Record: the thing values are attached to; its context selects which defaults apply.
- Catalog: fieldline.yml lists fields and configurations; it is imported when the workspace opens.
- Change log: every value change is recorded, view with 'fl record changes'.
- Event log: diary of changes, view with 'fl log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FIELDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-catalog", false, "do not import fieldline.yml when opening the workspace")
	rootCmd.PersistentFlags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	for _, name := range []string{"workspace", "json", "actor-id", "log-level", "no-catalog", "jwt-secret"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(fieldCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(defaultCmd())
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(valueCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(authCmd())
}

func fieldCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "field", Short: "Manage field definitions"}
	cmd.AddCommand(fieldListCmd())
	cmd.AddCommand(fieldCreateCmd())
	cmd.AddCommand(fieldShowCmd())
	cmd.AddCommand(fieldPurgeCmd())
	return cmd
}

func fieldListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fields, err := e.ListFields(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(fields)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Key", "Name", "Type", "Created"})
				for _, f := range fields {
					tw.AppendRow(table.Row{f.Key, f.Name, f.TypeKey, ago(f.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func fieldCreateCmd() *cobra.Command {
	var opts engine.FieldCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Define a field",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				f, err := e.CreateField(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Key, "key", "", "field key")
	cmd.Flags().StringVar(&opts.TypeKey, "type", "", "field type")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func fieldShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show a field and its configurations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, _, err := e.Field(ctx, args[0])
				if err != nil {
					return err
				}
				configs, err := e.ListFieldConfigs(ctx, f.Key)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"field": f, "configs": configs})
				}
				fmt.Printf("%s (%s), type %s, created %s\n", f.Name, f.Key, f.TypeKey, ago(f.CreatedAt))
				if f.Description != "" {
					fmt.Println(f.Description)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Config", "Context", "Default"})
				for _, c := range configs {
					view, err := e.GetDefault(ctx, c.ID)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{c.ID, c.Context, view.Text})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func fieldPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <key>",
		Short: "Delete every value of a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				affected, err := e.PurgeField(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printAffected(args[0], affected)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage field configurations"}
	cmd.AddCommand(configAddCmd())
	cmd.AddCommand(configListCmd())
	return cmd
}

func configAddCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "add <field>",
		Short: "Scope a field to a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddFieldConfig(ctx, args[0], scope, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "context", "global", "context name")
	return cmd
}

func configListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <field>",
		Short: "List a field's configurations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				configs, err := e.ListFieldConfigs(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(configs)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Context", "Created"})
				for _, c := range configs {
					tw.AppendRow(table.Row{c.ID, c.Context, ago(c.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func defaultCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "default", Short: "Manage configuration defaults"}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <config-id>",
		Short: "Show a configuration's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.GetDefault(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <config-id> <value>...",
		Short: "Set a configuration's default, one argument per element",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.SetDefault(ctx, args[0], args[1:], viper.GetString("actor-id"))
				if err != nil {
					return describe(err)
				}
				return printJSONOrTable(view)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <config-id>",
		Short: "Clear a configuration's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.ClearDefault(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	})
	return cmd
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "record", Short: "Manage records"}
	cmd.AddCommand(recordCreateCmd())
	cmd.AddCommand(recordShowCmd())
	cmd.AddCommand(recordChangesCmd())
	return cmd
}

func recordCreateCmd() *cobra.Command {
	var opts engine.RecordCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				rec, err := e.CreateRecord(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "record id (derived when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Context, "context", "global", "context name")
	cmd.Flags().BoolVar(&opts.ApplyDefaults, "apply-defaults", true, "fill fields from their context defaults")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func recordShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record with all its field values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.GetRecord(ctx, args[0])
				if err != nil {
					return err
				}
				fields, err := e.ListFields(ctx)
				if err != nil {
					return err
				}
				values := make([]domain.FieldValue, 0, len(fields))
				for _, f := range fields {
					v, err := e.GetValue(ctx, rec.ID, f.Key)
					if err != nil {
						return err
					}
					values = append(values, v)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"record": rec, "values": values})
				}
				fmt.Printf("%s  %s  [%s]  created %s\n", rec.ID, rec.Title, rec.Context, ago(rec.CreatedAt))
				tw := newTable()
				tw.AppendHeader(table.Row{"Field", "Type", "Value"})
				for _, v := range values {
					text := v.Text
					if !v.Present {
						text = "-"
					}
					tw.AppendRow(table.Row{v.FieldKey, v.TypeKey, text})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func recordChangesCmd() *cobra.Command {
	var fieldKey string
	var n int
	cmd := &cobra.Command{
		Use:   "changes <id>",
		Short: "Show a record's change log, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.RecordChanges(ctx, args[0], fieldKey, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"When", "Field", "From", "To", "Actor"})
				for _, it := range items {
					tw.AppendRow(table.Row{ago(it.CreatedAt), it.FieldKey, it.OldText, it.NewText, it.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fieldKey, "field", "", "only changes of this field")
	cmd.Flags().IntVar(&n, "n", 20, "number of changes")
	return cmd
}

func valueCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "value", Short: "Read and write record values"}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <record> <field>",
		Short: "Show a record's value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetValue(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <record> <field> <value>...",
		Short: "Set a record's value, one argument per element",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.SetValue(ctx, engine.ValueSetOptions{
					RecordID: args[0],
					FieldKey: args[1],
					Values:   args[2:],
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return describe(err)
				}
				return printJSONOrTable(v)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <record> <field>",
		Short: "Clear a record's value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.ClearValue(ctx, args[0], args[1], viper.GetString("actor-id"))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove-element <field> <element>",
		Short: "Remove an element from every value of a multi-valued field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				affected, err := e.RemoveElement(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return describe(err)
				}
				return printAffected(args[0], affected)
			})
		},
	})
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Manage the fieldline.yml catalog"}
	cmd.AddCommand(catalogInitCmd())
	cmd.AddCommand(catalogImportCmd())
	return cmd
}

func catalogInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter fieldline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing catalog")
	return cmd
}

func catalogImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a catalog into the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				filePath = config.Path(viper.GetString("workspace"))
			}
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), true, func(ctx context.Context, ws *app.Workspace) error {
				res, err := ws.Engine.ImportCatalog(ctx, cfg, viper.GetString("actor-id"))
				if err != nil {
					return describe(err)
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "catalog path (defaults to the workspace fieldline.yml)")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "When", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, ago(evt.TS), evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), false, func(ctx context.Context, ws *app.Workspace) error {
				authCfg := server.AuthConfig{
					JWTSecret: viper.GetString("jwt-secret"),
					Required:  viper.GetBool("require-auth"),
					DevLogin:  viper.GetBool("dev-login"),
					Logger:    ws.Engine.Logger,
				}
				if authCfg.JWTSecret == "" && (authCfg.Required || authCfg.DevLogin) {
					return fmt.Errorf("FIELDLINE_JWT_SECRET is required with --require-auth or --dev-login")
				}
				addr := viper.GetString("addr")
				basePath := viper.GetString("base-path")
				handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Fieldline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().String("base-path", "/v0", "API base path")
	cmd.Flags().Bool("require-auth", false, "reject requests without credentials")
	cmd.Flags().Bool("dev-login", false, "expose POST <base>/auth/dev/token")
	for _, name := range []string{"addr", "base-path", "require-auth", "dev-login"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Manage API credentials"}
	cmd.AddCommand(authTokenCmd())
	cmd.AddCommand(apiKeyCmd())
	return cmd
}

func authTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the acting actor (needs FIELDLINE_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := server.SignToken(viper.GetString("jwt-secret"), viper.GetString("actor-id"), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting actor; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				secret := "fl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": secret})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	cmd.AddCommand(create)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys of the acting actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, ago(k.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func withWorkspace(ctx context.Context, skipCatalog bool, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, app.Options{
		Workspace:   viper.GetString("workspace"),
		ActorID:     viper.GetString("actor-id"),
		Logger:      newLogger(),
		SkipCatalog: skipCatalog || viper.GetBool("no-catalog"),
	})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withWorkspace(ctx, false, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Engine)
	})
}

// describe spells out every message of a validation failure.
func describe(err error) error {
	var errs fieldtype.ErrorCollection
	if !errors.As(err, &errs) {
		return err
	}
	var b strings.Builder
	b.WriteString("validation failed:")
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Field", "Problem"})
	for k, msg := range errs {
		tw.AppendRow(table.Row{k, msg})
	}
	tw.SortBy([]table.SortBy{{Name: "Field", Mode: table.Asc}})
	b.WriteString("\n")
	b.WriteString(tw.Render())
	return errors.New(b.String())
}

func printAffected(field string, affected fieldtype.RecordSet) error {
	records := affected.Sorted()
	if viper.GetBool("json") {
		if records == nil {
			records = []string{}
		}
		return printJSON(map[string]any{"field": field, "records": records})
	}
	fmt.Printf("%s: %d record(s) affected\n", field, len(records))
	for _, id := range records {
		fmt.Println(" ", id)
	}
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

// ago renders an RFC3339 timestamp relative to now.
func ago(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
