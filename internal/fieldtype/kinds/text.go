// Package kinds holds the built-in field types.
package kinds

import (
	"strings"
	"unicode/utf8"

	"fieldline/internal/fieldtype"
)

const (
	TextKey     = "text"
	TextAreaKey = "textarea"
)

// TextVisitor lets visitors single out the built-in short text kind.
type TextVisitor interface {
	VisitText(t *Text) any
}

type textCodec struct {
	kind  fieldtype.StorageKind
	limit int
}

func (c textCodec) StorageKind() fieldtype.StorageKind { return c.kind }

// ToStorage treats the empty string as no value.
func (c textCodec) ToStorage(v string) (fieldtype.StorageValue, bool) {
	if v == "" {
		return fieldtype.StorageValue{}, false
	}
	if c.kind == fieldtype.LongText {
		return fieldtype.LongTextValue(v), true
	}
	return fieldtype.TextValue(v), true
}

func (c textCodec) FromStorage(sv fieldtype.StorageValue) (string, error) {
	return sv.Text()
}

func (c textCodec) ToText(v string) string { return v }

// FromText trims surrounding whitespace.
func (c textCodec) FromText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if c.limit > 0 && utf8.RuneCountInString(text) > c.limit {
		return "", fieldtype.Invalidf("text is longer than %d characters", c.limit)
	}
	return text, nil
}

// Text is the single-line text kind stored as short text.
type Text struct {
	*fieldtype.Single[string]
}

func NewText(opts fieldtype.Options) *Text {
	codec := textCodec{kind: fieldtype.ShortText, limit: fieldtype.ShortTextLimit}
	return &Text{Single: fieldtype.NewSingle[string](TextKey, "Text Field (single line)", codec, opts)}
}

func (t *Text) Accept(v fieldtype.Visitor) (any, bool) {
	if tv, ok := v.(TextVisitor); ok {
		return tv.VisitText(t), true
	}
	return t.Single.Accept(v)
}

// NewTextArea builds the multi-line text kind stored as long text.
func NewTextArea(opts fieldtype.Options) *fieldtype.Single[string] {
	return fieldtype.NewSingle[string](TextAreaKey, "Text Field (multi-line)", textCodec{kind: fieldtype.LongText}, opts)
}
