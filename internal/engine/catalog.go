package engine

import (
	"context"
	"errors"
	"fmt"

	"fieldline/internal/config"
	"fieldline/internal/domain"
	"fieldline/internal/fieldtype"
	"fieldline/internal/repo"
)

// ImportResult counts what a catalog import changed.
type ImportResult struct {
	FieldsCreated  int `json:"fields_created"`
	ConfigsCreated int `json:"configs_created"`
	DefaultsSet    int `json:"defaults_set"`
}

// ImportCatalog creates the fields and configurations listed in cfg that do
// not exist yet and stores their defaults. Existing fields must keep their
// type.
func (e Engine) ImportCatalog(ctx context.Context, cfg *config.Config, actorID string) (ImportResult, error) {
	var res ImportResult
	if cfg == nil {
		return res, errors.New("catalog is nil")
	}
	if err := cfg.Validate(func(key string) bool {
		_, ok := e.Types.Lookup(key)
		return ok
	}); err != nil {
		return res, err
	}
	// parse every default up front so a bad catalog changes nothing
	errs := fieldtype.ErrorCollection{}
	for _, spec := range cfg.Fields {
		ft, _ := e.Types.Lookup(spec.Type)
		for _, cs := range spec.Contexts {
			if cs.Default == nil {
				continue
			}
			if _, err := ft.FromText(*cs.Default); err != nil {
				errs.Add(spec.Key+"@"+cs.Name, err)
			}
		}
	}
	if err := errs.Err(); err != nil {
		return res, err
	}

	for _, spec := range cfg.Fields {
		f, err := e.Repo.GetFieldByKey(ctx, spec.Key)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			f, err = e.CreateField(ctx, FieldCreateOptions{
				Key:         spec.Key,
				Name:        spec.Name,
				Description: spec.Description,
				TypeKey:     spec.Type,
				ActorID:     actorID,
			})
			if err != nil {
				return res, err
			}
			res.FieldsCreated++
		case err != nil:
			return res, err
		case f.TypeKey != spec.Type:
			return res, fmt.Errorf("field %s already exists with type %s, catalog says %s", f.Key, f.TypeKey, spec.Type)
		}
		for _, cs := range spec.Contexts {
			c, err := e.ensureConfig(ctx, f, cs.Name, actorID, &res)
			if err != nil {
				return res, err
			}
			if cs.Default == nil {
				continue
			}
			if _, err := e.SetDefaultText(ctx, c.ID, *cs.Default, actorID); err != nil {
				return res, err
			}
			res.DefaultsSet++
		}
	}
	return res, nil
}

func (e Engine) ensureConfig(ctx context.Context, f domain.Field, scope, actorID string, res *ImportResult) (domain.FieldConfig, error) {
	c, err := e.Repo.GetFieldConfigByContext(ctx, f.ID, scope)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return c, err
	}
	c, err = e.AddFieldConfig(ctx, f.Key, scope, actorID)
	if err != nil {
		return c, err
	}
	res.ConfigsCreated++
	return c, nil
}
