package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// coerceToJSONBytes turns a .yaml/.yml file into JSON so both formats share
// the strict decoder. Other extensions pass through as JSON. It returns the
// bytes and the detected format ("json" or "yaml").
//
// A YAML file must hold a single mapping document; an empty file is {}.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, "yaml", fmt.Errorf("yaml: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, "yaml", fmt.Errorf("yaml: %w", err)
		}
		return nil, "yaml", errors.New("yaml: multiple documents in config file")
	}

	switch doc.(type) {
	case nil:
		doc = map[string]any{}
	case map[string]any, map[any]any:
	default:
		return nil, "yaml", fmt.Errorf("yaml: top level must be a mapping, got %T", doc)
	}

	j, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml to json: %w", err)
	}
	return j, "yaml", nil
}

// stringKeys rewrites nested maps so every key is a string; JSON has no
// other key type and YAML allows `1: x` or `true: y`.
func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
	case []any:
		for i, v := range x {
			x[i] = stringKeys(v)
		}
	}
	return in
}
