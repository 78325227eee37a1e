package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config models fieldline.yml, the field catalog of a workspace.
type Config struct {
	Fields []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Type        string        `yaml:"type"`
	Contexts    []ContextSpec `yaml:"contexts,omitempty"`
}

// ContextSpec is one configuration of a field. Default is the textual form
// of the default value and is parsed by the field's type.
type ContextSpec struct {
	Name    string  `yaml:"name"`
	Default *string `yaml:"default,omitempty"`
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidKey reports whether key may name a field.
func ValidKey(key string) bool { return keyPattern.MatchString(key) }

// Validate checks structure. When knownType is non-nil every field type
// must be one it accepts.
func (c *Config) Validate(knownType func(string) bool) error {
	seen := map[string]bool{}
	for i, f := range c.Fields {
		if f.Key == "" {
			return fmt.Errorf("fields[%d].key is required", i)
		}
		if !ValidKey(f.Key) {
			return fmt.Errorf("field key %q must match %s", f.Key, keyPattern)
		}
		if seen[f.Key] {
			return fmt.Errorf("field %s is defined twice", f.Key)
		}
		seen[f.Key] = true
		if f.Name == "" {
			return fmt.Errorf("field %s: name is required", f.Key)
		}
		if f.Type == "" {
			return fmt.Errorf("field %s: type is required", f.Key)
		}
		if knownType != nil && !knownType(f.Type) {
			return fmt.Errorf("field %s: unknown type %s", f.Key, f.Type)
		}
		contexts := map[string]bool{}
		for _, cs := range f.Contexts {
			if cs.Name == "" {
				return fmt.Errorf("field %s: context name is required", f.Key)
			}
			if contexts[cs.Name] {
				return fmt.Errorf("field %s: context %s is defined twice", f.Key, cs.Name)
			}
			contexts[cs.Name] = true
		}
	}
	return nil
}

// Path returns the catalog path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "fieldline.yml")
}

// Load reads and validates the catalog of a workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog %s not found; create one with fl catalog init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil, nil if the catalog does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err != nil {
		if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// FromYAML parses and structurally validates raw YAML.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	if err := cfg.Validate(nil); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the starter catalog.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(err)
	}
	return cfg
}

// GenerateDefault returns the starter catalog as YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `fields:
  - key: customer
    name: Customer
    description: "Customer the record belongs to"
    type: text
    contexts:
      - name: global
  - key: notes
    name: Notes
    type: textarea
    contexts:
      - name: global
  - key: estimate
    name: Estimate
    description: "Estimated effort in hours"
    type: number
    contexts:
      - name: global
        default: "1"
  - key: due
    name: Due date
    type: date
    contexts:
      - name: global
  - key: labels
    name: Labels
    type: labels
    contexts:
      - name: global
        default: "triage"
  - key: watchers
    name: Watchers
    type: actors
    contexts:
      - name: global
  - key: age
    name: Age
    description: "Days since the record was created"
    type: record-age
`
