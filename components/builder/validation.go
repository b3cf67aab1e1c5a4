package builder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigValidator validates widget content payloads against their schema.
type ConfigValidator interface {
	Validate(t WidgetType, content WidgetContent) error
}

// JSONSchemaValidator compiles per-type schemas and validates widget content.
type JSONSchemaValidator struct {
	mu       sync.RWMutex
	schemas  map[string]map[string]any
	compiled map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator builds a validator backed by jsonschema v5 with the
// built-in kpi/chart/document schemas registered.
func NewJSONSchemaValidator() *JSONSchemaValidator {
	return &JSONSchemaValidator{
		schemas: map[string]map[string]any{
			string(WidgetKPI):   kpiSchema(),
			string(WidgetChart): chartSchema(),
			documentSchemaKey:   documentSchema(),
		},
		compiled: make(map[string]*jsonschema.Schema),
	}
}

const documentSchemaKey = "document"

// Validate ensures the content matches the widget type and its schema.
func (v *JSONSchemaValidator) Validate(t WidgetType, content WidgetContent) error {
	if content == nil {
		return fmt.Errorf("builder: %s widget config is required: %w", t, ErrInvalidArgument)
	}
	if content.WidgetType() != t {
		return fmt.Errorf("builder: %s config on %s widget: %w", content.WidgetType(), t, ErrInvalidArgument)
	}
	payload, err := toPayload(content)
	if err != nil {
		return err
	}
	if err := v.validate(string(t), payload); err != nil {
		return fmt.Errorf("%w: %w", err, ErrInvalidArgument)
	}
	return nil
}

// ValidateDocument checks a raw persisted document before it is decoded.
func (v *JSONSchemaValidator) ValidateDocument(raw json.RawMessage) error {
	payload, err := decodePayload(raw)
	if err != nil {
		return fmt.Errorf("builder: normalize document: %w", err)
	}
	return v.validate(documentSchemaKey, payload)
}

func (v *JSONSchemaValidator) validate(key string, payload any) error {
	schema, err := v.schemaFor(key)
	if err != nil {
		return err
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("builder: %s failed validation: %w", key, err)
	}
	return nil
}

func (v *JSONSchemaValidator) schemaFor(key string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[key]
	def, known := v.schemas[key]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	if !known {
		return nil, fmt.Errorf("builder: no schema registered for %s", key)
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("builder: marshal schema %s: %w", key, err)
	}
	compiler := jsonschema.NewCompiler()
	name := key + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("builder: load schema %s: %w", key, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("builder: compile schema %s: %w", key, err)
	}
	v.mu.Lock()
	v.compiled[key] = compiled
	v.mu.Unlock()
	return compiled, nil
}

func toPayload(content WidgetContent) (any, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("builder: marshal %s config: %w", content.WidgetType(), err)
	}
	payload, err := decodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("builder: normalize %s config: %w", content.WidgetType(), err)
	}
	return payload, nil
}

func decodePayload(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func kpiSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"value", "description"},
		"properties": map[string]any{
			"value":       map[string]any{"type": "string"},
			"trend":       map[string]any{"type": []string{"string", "null"}},
			"description": map[string]any{"type": "string"},
		},
	}
}

func chartSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"type", "data"},
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []string{"bar", "line", "area", "pie", "composed"},
			},
			"data": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name"},
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
					},
					"additionalProperties": map[string]any{"type": []string{"number", "string"}},
				},
			},
			"colors": map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": "string", "minLength": 1},
			},
		},
	}
}

func documentSchema() map[string]any {
	pair := func(min int) map[string]any {
		return map[string]any{
			"type":     "array",
			"minItems": 2,
			"maxItems": 2,
			"items":    map[string]any{"type": "integer", "minimum": min},
		}
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"id", "name", "widgets"},
		"properties": map[string]any{
			"id":           map[string]any{"type": "string", "minLength": 1},
			"name":         map[string]any{"type": "string"},
			"lastModified": map[string]any{"type": "string"},
			"version":      map[string]any{"type": "integer", "minimum": 0},
			"widgets": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "type", "size", "config"},
					"properties": map[string]any{
						"id":       map[string]any{"type": "string", "minLength": 1},
						"type":     map[string]any{"type": "string"},
						"title":    map[string]any{"type": "string"},
						"size":     pair(1),
						"position": pair(0),
					},
				},
			},
		},
	}
}

type noopConfigValidator struct{}

func (noopConfigValidator) Validate(WidgetType, WidgetContent) error { return nil }
