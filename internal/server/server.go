package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"fieldline/internal/domain"
	"fieldline/internal/engine"
	"fieldline/internal/fieldtype"
	"fieldline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"validation failed: due: invalid date"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"due\":\"invalid date\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Fieldline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Engine.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Fieldline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{e: cfg.Engine, logger: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	registerFields(group, h)
	registerConfigs(group, h)
	registerRecords(group, h)
	registerEvents(group, h)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// handlers share the engine and the logger used for unexpected failures.
type handlers struct {
	e      engine.Engine
	logger *slog.Logger
}

func (h handlers) fail(ctx context.Context, err error) huma.StatusError {
	se := handleError(err)
	if se != nil && se.GetStatus() >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", "err", err)
	}
	return se
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var errs fieldtype.ErrorCollection
	if errors.As(err, &errs) {
		details := make(map[string]any, len(errs))
		for k, v := range errs {
			details[k] = v
		}
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), details)
	}
	var ve *fieldtype.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, fieldtype.ErrIllegalUsage) {
		return newAPIError(http.StatusBadRequest, "illegal_usage", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	public := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/token"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Fieldline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerFields(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-fields",
		Method:      http.MethodGet,
		Path:        "/fields",
		Summary:     "List field definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []FieldResponse `json:"body"`
	}, error) {
		fields, err := h.e.ListFields(ctx)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		out := []FieldResponse{}
		for _, f := range fields {
			ft, _ := h.e.Types.Lookup(f.TypeKey)
			out = append(out, fieldResponse(f, ft))
		}
		return &struct {
			Body []FieldResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-field",
		Method:        http.MethodPost,
		Path:          "/fields",
		Summary:       "Define a field",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateFieldRequest `json:"body"`
	}) (*struct {
		Body FieldResponse `json:"body"`
	}, error) {
		opts := engine.FieldCreateOptions{
			Key:         input.Body.Key,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			TypeKey:     input.Body.Type,
			ActorID:     actorFromContext(ctx),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		f, err := h.e.CreateField(ctx, opts)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		ft, _ := h.e.Types.Lookup(f.TypeKey)
		return &struct {
			Body FieldResponse `json:"body"`
		}{Body: fieldResponse(f, ft)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-field",
		Method:      http.MethodGet,
		Path:        "/fields/{key}",
		Summary:     "Get a field with its configurations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key string `path:"key"`
	}) (*struct {
		Body FieldDetailResponse `json:"body"`
	}, error) {
		f, ft, err := h.e.Field(ctx, input.Key)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		configs, err := h.e.ListFieldConfigs(ctx, f.Key)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body FieldDetailResponse `json:"body"`
		}{Body: FieldDetailResponse{FieldResponse: fieldResponse(f, ft), Configs: nonNilSlice(configs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-field-values",
		Method:      http.MethodDelete,
		Path:        "/fields/{key}/values",
		Summary:     "Delete every value of a field",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key string `path:"key"`
	}) (*struct {
		Body AffectedRecordsResponse `json:"body"`
	}, error) {
		affected, err := h.e.PurgeField(ctx, input.Key, actorFromContext(ctx))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body AffectedRecordsResponse `json:"body"`
		}{Body: affectedResponse(input.Key, affected)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-field-element",
		Method:      http.MethodPost,
		Path:        "/fields/{key}/elements/remove",
		Summary:     "Remove one element from every value of a multi-valued field",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Key  string               `path:"key"`
		Body RemoveElementRequest `json:"body"`
	}) (*struct {
		Body AffectedRecordsResponse `json:"body"`
	}, error) {
		affected, err := h.e.RemoveElement(ctx, input.Key, input.Body.Element, actorFromContext(ctx))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body AffectedRecordsResponse `json:"body"`
		}{Body: affectedResponse(input.Key, affected)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-field-config",
		Method:        http.MethodPost,
		Path:          "/fields/{key}/configs",
		Summary:       "Scope a field to a context",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Key  string                `path:"key"`
		Body AddFieldConfigRequest `json:"body"`
	}) (*struct {
		Body domain.FieldConfig `json:"body"`
	}, error) {
		c, err := h.e.AddFieldConfig(ctx, input.Key, input.Body.Context, actorFromContext(ctx))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body domain.FieldConfig `json:"body"`
		}{Body: c}, nil
	})
}

func registerConfigs(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-default",
		Method:      http.MethodGet,
		Path:        "/configs/{id}/default",
		Summary:     "Get a configuration's default value",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.DefaultView `json:"body"`
	}, error) {
		view, err := h.e.GetDefault(ctx, input.ID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body engine.DefaultView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-default",
		Method:      http.MethodPut,
		Path:        "/configs/{id}/default",
		Summary:     "Set a configuration's default value",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ValuesRequest `json:"body"`
	}) (*struct {
		Body engine.DefaultView `json:"body"`
	}, error) {
		view, err := h.e.SetDefault(ctx, input.ID, input.Body.Values, actorFromContext(ctx))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body engine.DefaultView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-default",
		Method:      http.MethodDelete,
		Path:        "/configs/{id}/default",
		Summary:     "Clear a configuration's default value",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.DefaultView `json:"body"`
	}, error) {
		view, err := h.e.ClearDefault(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body engine.DefaultView `json:"body"`
		}{Body: view}, nil
	})
}

func registerRecords(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-record",
		Method:        http.MethodPost,
		Path:          "/records",
		Summary:       "Create a record",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateRecordRequest `json:"body"`
	}) (*struct {
		Body domain.Record `json:"body"`
	}, error) {
		opts := engine.RecordCreateOptions{
			Context:       input.Body.Context,
			Title:         input.Body.Title,
			ActorID:       actorFromContext(ctx),
			ApplyDefaults: input.Body.ApplyDefaults,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		rec, err := h.e.CreateRecord(ctx, opts)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body domain.Record `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/records/{id}",
		Summary:     "Get a record",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Record `json:"body"`
	}, error) {
		rec, err := h.e.GetRecord(ctx, input.ID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body domain.Record `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-value",
		Method:      http.MethodGet,
		Path:        "/records/{id}/fields/{key}",
		Summary:     "Get a record's value for a field",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID  string `path:"id"`
		Key string `path:"key"`
	}) (*struct {
		Body domain.FieldValue `json:"body"`
	}, error) {
		v, err := h.e.GetValue(ctx, input.ID, input.Key)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body domain.FieldValue `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-value",
		Method:      http.MethodPut,
		Path:        "/records/{id}/fields/{key}",
		Summary:     "Set a record's value for a field",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Key  string        `path:"key"`
		Body ValuesRequest `json:"body"`
	}) (*struct {
		Body domain.FieldValue `json:"body"`
	}, error) {
		v, err := h.e.SetValue(ctx, engine.ValueSetOptions{
			RecordID: input.ID,
			FieldKey: input.Key,
			Values:   input.Body.Values,
			ActorID:  actorFromContext(ctx),
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body domain.FieldValue `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-value",
		Method:        http.MethodDelete,
		Path:          "/records/{id}/fields/{key}",
		Summary:       "Clear a record's value for a field",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID  string `path:"id"`
		Key string `path:"key"`
	}) (*struct{}, error) {
		if err := h.e.ClearValue(ctx, input.ID, input.Key, actorFromContext(ctx)); err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-record-changes",
		Method:      http.MethodGet,
		Path:        "/records/{id}/changes",
		Summary:     "List a record's value changes, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Field string `query:"field"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.ChangeItem `json:"body"`
	}, error) {
		items, err := h.e.RecordChanges(ctx, input.ID, input.Field, normalizeLimit(input.Limit))
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct {
			Body []domain.ChangeItem `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}

func registerEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"field,record,field_config"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-token",
		Method:      http.MethodPost,
		Path:        "/auth/dev/token",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body TokenRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		ttl := 24 * time.Hour
		if input.Body.TTL != "" {
			parsed, err := time.ParseDuration(input.Body.TTL)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid ttl", map[string]any{"ttl": input.Body.TTL})
			}
			ttl = parsed
		}
		token, err := SignToken(authCfg.JWTSecret, actor, ttl)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
