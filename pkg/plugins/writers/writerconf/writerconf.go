// Package writerconf decodes and describes the JSON configuration of export
// writer plugins.
package writerconf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Field describes one configuration key.
type Field struct {
	Name        string
	Type        string // JSON schema type: string, integer, boolean
	Description string
	Default     any
	Required    bool
}

// Schema renders fields as a JSON schema object.
func Schema(fields ...Field) map[string]any {
	props := make(map[string]any, len(fields))
	var required []string
	for _, f := range fields {
		prop := map[string]any{"type": f.Type, "description": f.Description}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		slices.Sort(required)
		schema["required"] = required
	}
	return schema
}

// Decode unmarshals data into dst, rejecting keys dst does not declare so a
// misspelled option fails loudly. Empty data leaves dst untouched.
func Decode(plugin string, data json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding %s config: %w", plugin, err)
	}
	return nil
}

// ErrMissing reports a required key that was left empty.
var ErrMissing = errors.New("missing required config")

// Require returns ErrMissing naming key when value is empty.
func Require(plugin, key, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %w %q", plugin, ErrMissing, key)
	}
	return nil
}
