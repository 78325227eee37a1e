package server

import (
	"encoding/json"

	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
)

// Request payloads

type CreateFieldRequest struct {
	ID          *string `json:"id,omitempty"`
	Key         string  `json:"key" pattern:"^[a-z][a-z0-9_-]*$"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type"`
}

type AddFieldConfigRequest struct {
	Context string `json:"context"`
}

// ValuesRequest carries the submitted strings of a value or default, one per
// element. An empty list clears.
type ValuesRequest struct {
	Values []string `json:"values"`
}

type RemoveElementRequest struct {
	Element string `json:"element"`
}

type CreateRecordRequest struct {
	ID            *string `json:"id,omitempty"`
	Context       string  `json:"context,omitempty"`
	Title         string  `json:"title"`
	ApplyDefaults bool    `json:"apply_defaults,omitempty"`
}

type TokenRequest struct {
	ActorID string `json:"actor_id"`
	TTL     string `json:"ttl,omitempty" example:"24h"`
}

// Response payloads

type FieldResponse struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Shape       string `json:"shape" enum:"single,multi,computed,other"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type FieldDetailResponse struct {
	FieldResponse
	Configs []domain.FieldConfig `json:"configs"`
}

type AffectedRecordsResponse struct {
	Field   string   `json:"field"`
	Records []string `json:"records"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type shapeNamer struct{}

func (shapeNamer) VisitSingle(fieldtype.SingleShape) any     { return "single" }
func (shapeNamer) VisitMulti(fieldtype.MultiShape) any       { return "multi" }
func (shapeNamer) VisitComputed(fieldtype.ComputedShape) any { return "computed" }

func fieldResponse(f domain.Field, ft fieldtype.Type) FieldResponse {
	shape := "other"
	if ft != nil {
		if s, ok := fieldtype.Dispatch[string](ft, shapeNamer{}); ok {
			shape = s
		}
	}
	return FieldResponse{
		ID:          f.ID,
		Key:         f.Key,
		Name:        f.Name,
		Description: f.Description,
		Type:        f.TypeKey,
		Shape:       shape,
		CreatedAt:   f.CreatedAt,
	}
}

func affectedResponse(field string, set fieldtype.RecordSet) AffectedRecordsResponse {
	return AffectedRecordsResponse{Field: field, Records: nonNilSlice(set.Sorted())}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
