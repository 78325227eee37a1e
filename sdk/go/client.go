package fieldlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fieldline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Field represents a field definition.
type Field struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Shape       string `json:"shape"`
	CreatedAt   string `json:"created_at"`
}

// FieldConfig scopes a field to a context.
type FieldConfig struct {
	ID        string `json:"id"`
	FieldID   string `json:"field_id"`
	Context   string `json:"context"`
	CreatedAt string `json:"created_at"`
}

type Record struct {
	ID        string `json:"id"`
	Context   string `json:"context"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Value is the textual view of a record's value or of a default.
type Value struct {
	RecordID string   `json:"record_id,omitempty"`
	ConfigID string   `json:"config_id,omitempty"`
	FieldKey string   `json:"field_key"`
	Present  bool     `json:"present"`
	Text     string   `json:"text"`
	Elements []string `json:"elements,omitempty"`
}

type ChangeItem struct {
	ID        int64  `json:"id"`
	RecordID  string `json:"record_id"`
	FieldKey  string `json:"field_key"`
	OldText   string `json:"old_text"`
	NewText   string `json:"new_text"`
	ActorID   string `json:"actor_id"`
	CreatedAt string `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateField defines a field of the given type.
func (c *Client) CreateField(ctx context.Context, key, typeKey, name string) (Field, error) {
	body := map[string]any{
		"key":  key,
		"type": typeKey,
	}
	if name != "" {
		body["name"] = name
	}
	var resp Field
	err := c.do(ctx, http.MethodPost, "fields", body, &resp)
	return resp, err
}

func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var resp []Field
	err := c.do(ctx, http.MethodGet, "fields", nil, &resp)
	return resp, err
}

// AddFieldConfig scopes a field to a context.
func (c *Client) AddFieldConfig(ctx context.Context, fieldKey, scope string) (FieldConfig, error) {
	var resp FieldConfig
	endpoint := fmt.Sprintf("fields/%s/configs", url.PathEscape(fieldKey))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"context": scope}, &resp)
	return resp, err
}

// SetDefault stores a configuration's default; no values clears it.
func (c *Client) SetDefault(ctx context.Context, configID string, values ...string) (Value, error) {
	var resp Value
	endpoint := fmt.Sprintf("configs/%s/default", url.PathEscape(configID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"values": nonNil(values)}, &resp)
	return resp, err
}

// CreateRecord creates a record in scope, optionally filled from defaults.
func (c *Client) CreateRecord(ctx context.Context, title, scope string, applyDefaults bool) (Record, error) {
	body := map[string]any{
		"title":          title,
		"apply_defaults": applyDefaults,
	}
	if scope != "" {
		body["context"] = scope
	}
	var resp Record
	err := c.do(ctx, http.MethodPost, "records", body, &resp)
	return resp, err
}

func (c *Client) Value(ctx context.Context, recordID, fieldKey string) (Value, error) {
	var resp Value
	err := c.do(ctx, http.MethodGet, valuePath(recordID, fieldKey), nil, &resp)
	return resp, err
}

// SetValue writes a record's value; no values clears it.
func (c *Client) SetValue(ctx context.Context, recordID, fieldKey string, values ...string) (Value, error) {
	var resp Value
	err := c.do(ctx, http.MethodPut, valuePath(recordID, fieldKey), map[string]any{"values": nonNil(values)}, &resp)
	return resp, err
}

func (c *Client) ClearValue(ctx context.Context, recordID, fieldKey string) error {
	return c.do(ctx, http.MethodDelete, valuePath(recordID, fieldKey), nil, nil)
}

// Changes returns a record's change log, newest first.
func (c *Client) Changes(ctx context.Context, recordID string, limit int) ([]ChangeItem, error) {
	endpoint := fmt.Sprintf("records/%s/changes", url.PathEscape(recordID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ChangeItem
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RemoveElement removes one element from every value of a multi-valued
// field and returns the affected record ids.
func (c *Client) RemoveElement(ctx context.Context, fieldKey, element string) ([]string, error) {
	var resp struct {
		Records []string `json:"records"`
	}
	endpoint := fmt.Sprintf("fields/%s/elements/remove", url.PathEscape(fieldKey))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"element": element}, &resp)
	return resp.Records, err
}

// PurgeField deletes every value of a field and returns the affected
// record ids.
func (c *Client) PurgeField(ctx context.Context, fieldKey string) ([]string, error) {
	var resp struct {
		Records []string `json:"records"`
	}
	endpoint := fmt.Sprintf("fields/%s/values", url.PathEscape(fieldKey))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Records, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func valuePath(recordID, fieldKey string) string {
	return fmt.Sprintf("records/%s/fields/%s", url.PathEscape(recordID), url.PathEscape(fieldKey))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
