package kinds

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"fieldline/internal/fieldtype"
)

const (
	LabelsKey = "labels"
	ActorsKey = "actors"
)

type labelCodec struct{}

func (labelCodec) StorageKind() fieldtype.StorageKind { return fieldtype.ShortText }

func (labelCodec) ToStorage(v string) (fieldtype.StorageValue, bool) {
	if v == "" {
		return fieldtype.StorageValue{}, false
	}
	return fieldtype.TextValue(v), true
}

func (labelCodec) FromStorage(sv fieldtype.StorageValue) (string, error) {
	s, err := sv.Text()
	if err != nil {
		return "", err
	}
	if err := checkLabel(s); err != nil {
		return "", err
	}
	return s, nil
}

func (labelCodec) ToText(v string) string { return v }

func (labelCodec) FromText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := checkLabel(text); err != nil {
		return "", err
	}
	return text, nil
}

func checkLabel(s string) error {
	if s == "" {
		return fieldtype.Invalidf("label must not be empty")
	}
	if utf8.RuneCountInString(s) > fieldtype.ShortTextLimit {
		return fieldtype.Invalidf("label is longer than %d characters", fieldtype.ShortTextLimit)
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return fieldtype.Invalidf("label %q must not contain spaces", s)
	}
	return nil
}

// NewLabels builds the labels kind; sets come back sorted.
func NewLabels(opts fieldtype.Options) *fieldtype.Multi[string] {
	less := func(a, b string) bool { return a < b }
	return fieldtype.NewMulti[string](LabelsKey, "Labels", labelCodec{}, less, opts)
}

var actorIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

type actorCodec struct{}

func (actorCodec) StorageKind() fieldtype.StorageKind { return fieldtype.ShortText }

func (actorCodec) ToStorage(v string) (fieldtype.StorageValue, bool) {
	if v == "" {
		return fieldtype.StorageValue{}, false
	}
	return fieldtype.TextValue(v), true
}

func (actorCodec) FromStorage(sv fieldtype.StorageValue) (string, error) {
	s, err := sv.Text()
	if err != nil {
		return "", err
	}
	if !actorIDPattern.MatchString(s) {
		return "", fieldtype.Invalidf("stored actor id %q is malformed", s)
	}
	return s, nil
}

func (actorCodec) ToText(v string) string { return v }

func (actorCodec) FromText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if !actorIDPattern.MatchString(text) {
		return "", fieldtype.Invalidf("%q is not a valid actor id", text)
	}
	return text, nil
}

// NewActors builds the multi actor picker. Sets keep storage order.
func NewActors(opts fieldtype.Options) *fieldtype.Multi[string] {
	return fieldtype.NewMulti[string](ActorsKey, "Actor Picker (multiple actors)", actorCodec{}, nil, opts)
}
