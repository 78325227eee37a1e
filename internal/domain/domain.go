package domain

// Field is a field definition. Its TypeKey selects the field type that owns
// conversion and persistence of its values.
type Field struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TypeKey     string `json:"type_key"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// FieldConfig scopes a field to a context and owns its default value.
type FieldConfig struct {
	ID        string `json:"id"`
	FieldID   string `json:"field_id"`
	Context   string `json:"context"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Record struct {
	ID        string `json:"id"`
	Context   string `json:"context"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ChangeItem is one audit-trail entry for a field value change.
type ChangeItem struct {
	ID        int64  `json:"id"`
	RecordID  string `json:"record_id"`
	FieldID   string `json:"field_id"`
	FieldKey  string `json:"field_key"`
	OldText   string `json:"old_text"`
	NewText   string `json:"new_text"`
	ActorID   string `json:"actor_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// FieldValue is the textual view of a record's value for one field.
type FieldValue struct {
	RecordID string   `json:"record_id"`
	FieldKey string   `json:"field_key"`
	TypeKey  string   `json:"type_key"`
	Present  bool     `json:"present"`
	Text     string   `json:"text"`
	Elements []string `json:"elements,omitempty"`
}

// APIKey authenticates an actor against the HTTP API. Only the hash is kept.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
