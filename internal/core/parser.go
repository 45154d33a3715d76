package core

import (
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ParseConfig parses YAML content into a Config and validates its shape.
func ParseConfig(data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newConfigError("", "malformed YAML", err)
	}

	// An empty document (no content, only comments or "---") has no fields.
	if doc == nil {
		doc = map[string]any{}
	}
	doc = normalizeKeys(doc)

	root, ok := doc.(map[string]any)
	if !ok {
		return nil, newConfigError("", "document root must be a mapping", nil)
	}
	for _, field := range []string{"variables", "steps"} {
		value, present := root[field]
		if !present {
			return nil, newConfigError(field, "missing", nil)
		}
		if _, isList := value.([]any); !isList {
			return nil, newConfigError(field, "must be a sequence", nil)
		}
	}

	if err := validateSchema(root); err != nil {
		return nil, err
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: scalarToString,
		Result:     &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(root); err != nil {
		return nil, newConfigError("", "decode", err)
	}

	for i, v := range cfg.Variables {
		if v.Value != nil && v.ValueFrom != nil {
			return nil, newConfigError(fmt.Sprintf("variables/%d", i),
				fmt.Sprintf("variable %q sets both value and valueFrom", v.Name), nil)
		}
	}
	return &cfg, nil
}

// LoadConfig reads a runbook file and returns a Config object.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// scalarToString renders YAML numbers and booleans the way they were written
// when the target is a string, so `value: 8080` becomes "8080" and not an error.
func scalarToString(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return data, nil
}

// normalizeKeys rewrites mappings with non-string keys (yaml.v3 decodes
// `1: x` into map[any]any) into map[string]any so that every mapping can be
// validated and decoded. Keys are rendered with fmt.Sprint.
func normalizeKeys(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			v[key] = normalizeKeys(value)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[fmt.Sprint(key)] = normalizeKeys(value)
		}
		return out
	case []any:
		for i, value := range v {
			v[i] = normalizeKeys(value)
		}
		return v
	}
	return node
}
