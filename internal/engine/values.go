package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fieldline/internal/domain"
	"fieldline/internal/events"
	"fieldline/internal/fieldtype"
	"fieldline/internal/repo"
)

// elementTexts lists the elements of a multi-valued value.
type elementTexts struct{ value any }

func (v elementTexts) VisitMulti(t fieldtype.MultiShape) any {
	texts, _ := t.ElementTexts(v.value)
	return texts
}

// readOnly flags computed types.
type readOnly struct{}

func (readOnly) VisitComputed(fieldtype.ComputedShape) any { return true }

// elementRemover removes one element from every record of a multi field.
type elementRemover struct {
	ctx   context.Context
	field domain.Field
	text  string
}

type removal struct {
	affected fieldtype.RecordSet
	err      error
}

func (v elementRemover) VisitMulti(t fieldtype.MultiShape) any {
	affected, err := t.RemoveElementText(v.ctx, v.field, v.text)
	return removal{affected: affected, err: err}
}

func isReadOnly(ft fieldtype.Type) bool {
	ro, _ := fieldtype.Dispatch[bool](ft, readOnly{})
	return ro
}

// render builds the textual view of a value.
func render(ft fieldtype.Type, value any, present bool) (string, []string) {
	if !present {
		return "", nil
	}
	elements, _ := fieldtype.Dispatch[[]string](ft, elementTexts{value: value})
	return ft.ToText(value), elements
}

// ingest converts submitted params into a typed value, recording failures
// in errs under the field key.
func ingest(ft fieldtype.Type, fieldKey string, params []string, errs fieldtype.ErrorCollection) (any, bool) {
	v, ok, err := ft.FromParams(params)
	if err != nil {
		errs.Add(fieldKey, err)
		return nil, false
	}
	return v, ok
}

func (e Engine) GetValue(ctx context.Context, recordID, fieldKey string) (domain.FieldValue, error) {
	if _, err := e.GetRecord(ctx, recordID); err != nil {
		return domain.FieldValue{}, err
	}
	f, ft, err := e.Field(ctx, fieldKey)
	if err != nil {
		return domain.FieldValue{}, err
	}
	v, ok, err := ft.ValueForRecord(ctx, f, recordID)
	if err != nil {
		return domain.FieldValue{}, err
	}
	text, elements := render(ft, v, ok)
	return domain.FieldValue{
		RecordID: recordID,
		FieldKey: f.Key,
		TypeKey:  f.TypeKey,
		Present:  ok,
		Text:     text,
		Elements: elements,
	}, nil
}

// ValueSetOptions are parameters for writing a record's value. Values holds
// the submitted strings, one per element; an empty slice clears the value.
type ValueSetOptions struct {
	RecordID string
	FieldKey string
	Values   []string
	ActorID  string
}

// SetValue validates and stores a value, appending a change item when it
// differs from the stored one. Validation failures are returned as a
// fieldtype.ErrorCollection.
func (e Engine) SetValue(ctx context.Context, opts ValueSetOptions) (domain.FieldValue, error) {
	if _, err := e.GetRecord(ctx, opts.RecordID); err != nil {
		return domain.FieldValue{}, err
	}
	f, ft, err := e.Field(ctx, opts.FieldKey)
	if err != nil {
		return domain.FieldValue{}, err
	}
	if isReadOnly(ft) {
		return domain.FieldValue{}, fmt.Errorf("%w: field %s is computed and cannot be written", fieldtype.ErrIllegalUsage, f.Key)
	}
	errs := fieldtype.ErrorCollection{}
	value, present := ingest(ft, f.Key, opts.Values, errs)
	if err := errs.Err(); err != nil {
		return domain.FieldValue{}, err
	}
	if !present {
		if err := e.clear(ctx, f, ft, opts.RecordID, opts.ActorID); err != nil {
			return domain.FieldValue{}, err
		}
		return e.GetValue(ctx, opts.RecordID, f.Key)
	}
	old, had, err := ft.ValueForRecord(ctx, f, opts.RecordID)
	if err != nil {
		return domain.FieldValue{}, err
	}
	if had && ft.Equal(old, value) {
		return e.GetValue(ctx, opts.RecordID, f.Key)
	}
	if err := ft.UpdateValue(ctx, f, opts.RecordID, value); err != nil {
		return domain.FieldValue{}, err
	}
	oldText := ""
	if had {
		oldText = ft.ChangelogText(old)
	}
	if err := e.logChange(ctx, f, opts.RecordID, oldText, ft.ChangelogText(value), opts.ActorID); err != nil {
		return domain.FieldValue{}, err
	}
	return e.GetValue(ctx, opts.RecordID, f.Key)
}

func (e Engine) logChange(ctx context.Context, f domain.Field, recordID, oldText, newText, actorID string) error {
	if oldText == newText {
		return nil
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Events.AppendChange(ctx, tx, domain.ChangeItem{
			RecordID: recordID,
			FieldID:  f.ID,
			FieldKey: f.Key,
			OldText:  oldText,
			NewText:  newText,
			ActorID:  actorID,
		})
	})
}

// ClearValue deletes a record's value for a field.
func (e Engine) ClearValue(ctx context.Context, recordID, fieldKey, actorID string) error {
	if _, err := e.GetRecord(ctx, recordID); err != nil {
		return err
	}
	f, ft, err := e.Field(ctx, fieldKey)
	if err != nil {
		return err
	}
	if isReadOnly(ft) {
		return fmt.Errorf("%w: field %s is computed and cannot be cleared", fieldtype.ErrIllegalUsage, f.Key)
	}
	return e.clear(ctx, f, ft, recordID, actorID)
}

// clear deletes the stored rows even when the current value cannot be read.
func (e Engine) clear(ctx context.Context, f domain.Field, ft fieldtype.Type, recordID, actorID string) error {
	old, had, err := ft.ValueForRecord(ctx, f, recordID)
	if err != nil {
		e.Logger.WarnContext(ctx, "clearing unreadable value", "field", f.Key, "record", recordID, "err", err)
		had = false
	}
	if err := ft.ClearValue(ctx, f, recordID); err != nil {
		return err
	}
	if !had {
		return nil
	}
	return e.logChange(ctx, f, recordID, ft.ChangelogText(old), "", actorID)
}

// DefaultView is the textual view of a configuration's default value.
type DefaultView struct {
	ConfigID string   `json:"config_id"`
	FieldKey string   `json:"field_key"`
	Context  string   `json:"context"`
	Present  bool     `json:"present"`
	Text     string   `json:"text"`
	Elements []string `json:"elements,omitempty"`
}

func (e Engine) GetDefault(ctx context.Context, configID string) (DefaultView, error) {
	c, f, ft, err := e.fieldConfig(ctx, configID)
	if err != nil {
		return DefaultView{}, err
	}
	v, ok, err := ft.DefaultValue(ctx, c)
	if err != nil {
		return DefaultView{}, err
	}
	text, elements := render(ft, v, ok)
	return DefaultView{ConfigID: c.ID, FieldKey: f.Key, Context: c.Context, Present: ok, Text: text, Elements: elements}, nil
}

// SetDefault validates params and stores them as the configuration's
// default. Empty params clear it.
func (e Engine) SetDefault(ctx context.Context, configID string, params []string, actorID string) (DefaultView, error) {
	return e.setDefault(ctx, configID, actorID, func(ft fieldtype.Type) (any, bool, error) {
		return ft.FromParams(params)
	})
}

// SetDefaultText is SetDefault for the textual form of a value, as found in
// the catalog. Blank text clears the default.
func (e Engine) SetDefaultText(ctx context.Context, configID, text, actorID string) (DefaultView, error) {
	return e.setDefault(ctx, configID, actorID, func(ft fieldtype.Type) (any, bool, error) {
		if strings.TrimSpace(text) == "" {
			return nil, false, nil
		}
		v, err := ft.FromText(text)
		return v, err == nil, err
	})
}

func (e Engine) setDefault(ctx context.Context, configID, actorID string, parse func(fieldtype.Type) (any, bool, error)) (DefaultView, error) {
	c, f, ft, err := e.fieldConfig(ctx, configID)
	if err != nil {
		return DefaultView{}, err
	}
	if isReadOnly(ft) {
		return DefaultView{}, fmt.Errorf("%w: field %s is computed and has no default", fieldtype.ErrIllegalUsage, f.Key)
	}
	value, present, err := parse(ft)
	if err != nil {
		errs := fieldtype.ErrorCollection{}
		errs.Add(f.Key, err)
		return DefaultView{}, errs
	}
	if present {
		err = ft.SetDefaultValue(ctx, c, value)
	} else {
		err = ft.ClearDefaultValue(ctx, c)
	}
	if err != nil {
		return DefaultView{}, err
	}
	view, err := e.GetDefault(ctx, configID)
	if err != nil {
		return DefaultView{}, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Events.Append(ctx, tx, events.DefaultChanged, "field_config", c.ID, actorID, events.EventPayload{
			"field":   f.Key,
			"default": view.Text,
			"present": view.Present,
		})
	})
	return view, err
}

func (e Engine) ClearDefault(ctx context.Context, configID, actorID string) (DefaultView, error) {
	return e.SetDefault(ctx, configID, nil, actorID)
}

// ApplyDefault fills a record's empty value from the default of the field's
// configuration for the record's context. It reports whether a value was
// written.
func (e Engine) ApplyDefault(ctx context.Context, recordID, fieldKey, actorID string) (bool, error) {
	rec, err := e.GetRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	f, ft, err := e.Field(ctx, fieldKey)
	if err != nil {
		return false, err
	}
	if isReadOnly(ft) {
		return false, nil
	}
	c, err := e.Repo.GetFieldConfigByContext(ctx, f.ID, rec.Context)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_, had, err := ft.ValueForRecord(ctx, f, recordID)
	if err != nil || had {
		return false, err
	}
	def, ok, err := ft.DefaultValue(ctx, c)
	if err != nil || !ok {
		return false, err
	}
	if err := ft.UpdateValue(ctx, f, recordID, def); err != nil {
		return false, err
	}
	return true, e.logChange(ctx, f, recordID, "", ft.ChangelogText(def), actorID)
}

// PurgeField deletes every value of a field and reports the affected
// records, which need reindexing.
func (e Engine) PurgeField(ctx context.Context, fieldKey, actorID string) (fieldtype.RecordSet, error) {
	f, ft, err := e.Field(ctx, fieldKey)
	if err != nil {
		return nil, err
	}
	affected, err := ft.Remove(ctx, f)
	if err != nil {
		return nil, err
	}
	e.Logger.InfoContext(ctx, "field values removed", "field", f.Key, "records", affected.Len())
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Events.Append(ctx, tx, events.FieldValuesRemoved, "field", f.ID, actorID, events.EventPayload{
			"field":   f.Key,
			"records": affected.Sorted(),
		})
	})
	return affected, err
}

// RemoveElement removes one element from every record of a multi-valued
// field. Other shapes yield fieldtype.ErrIllegalUsage.
func (e Engine) RemoveElement(ctx context.Context, fieldKey, elementText, actorID string) (fieldtype.RecordSet, error) {
	f, ft, err := e.Field(ctx, fieldKey)
	if err != nil {
		return nil, err
	}
	res, ok := fieldtype.Dispatch[removal](ft, elementRemover{ctx: ctx, field: f, text: elementText})
	if !ok {
		return nil, fmt.Errorf("%w: field %s of type %s is not multi-valued", fieldtype.ErrIllegalUsage, f.Key, f.TypeKey)
	}
	if res.err != nil {
		var ve *fieldtype.ValidationError
		if errors.As(res.err, &ve) {
			errs := fieldtype.ErrorCollection{}
			errs.Add(f.Key, res.err)
			return nil, errs
		}
		return nil, res.err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Events.Append(ctx, tx, events.FieldValuesRemoved, "field", f.ID, actorID, events.EventPayload{
			"field":   f.Key,
			"element": elementText,
			"records": res.affected.Sorted(),
		})
	})
	return res.affected, err
}
