package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// fieldConfigSchemas holds the JSON schema each field type's configuration
// payload must satisfy. Types absent from the map accept any configuration.
var fieldConfigSchemas = map[FieldType]map[string]any{
	FieldTypeChecklist: {
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"minItems": 1,
			},
		},
		"required":             []string{"items"},
		"additionalProperties": false,
	},
	FieldTypeText: {
		"type": "object",
		"properties": map[string]any{
			"max_length":  map[string]any{"type": "integer", "minimum": 1},
			"multiline":   map[string]any{"type": "boolean"},
			"placeholder": map[string]any{"type": "string"},
		},
		"additionalProperties": false,
	},
	FieldTypeNumber: {
		"type": "object",
		"properties": map[string]any{
			"min":      map[string]any{"type": "number"},
			"max":      map[string]any{"type": "number"},
			"currency": map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	},
}

// ValidateFieldConfiguration checks a field's configuration payload against
// the schema for its type.
func ValidateFieldConfiguration(fieldType FieldType, configuration map[string]any) error {
	schema, ok := fieldConfigSchemas[fieldType]
	if !ok {
		return nil
	}

	if configuration == nil {
		// Checklists must carry their items, other types may omit configuration.
		if fieldType == FieldTypeChecklist {
			return fmt.Errorf("field type %s requires a configuration payload", fieldType)
		}

		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(configuration),
	)
	if err != nil {
		return fmt.Errorf("failed to validate field configuration: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("invalid %s configuration: %s", fieldType, strings.Join(details, "; "))
	}

	return nil
}

// ChecklistItems extracts the ordered item labels from a checklist field's
// configuration.
func ChecklistItems(configuration map[string]any) []string {
	raw, ok := configuration["items"].([]any)
	if !ok {
		return nil
	}

	items := make([]string, 0, len(raw))

	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			items = append(items, s)
		}
	}

	return items
}
