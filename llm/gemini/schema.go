package gemini

import (
	"fmt"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/samber/lo"
)

// MapSchema translates a schema into Gemini's OpenAPI subset: a single
// scalar type, "nullable" instead of a null type and no
// additionalProperties. Enums keep their derived type.
func MapSchema(schema llm.Schema) (map[string]any, error) {
	doc := map[string]any{}

	switch s := schema.(type) {
	case *llm.ObjectSchema:
		properties := make(map[string]any, len(s.Properties))
		for _, prop := range s.Properties {
			mapped, err := MapSchema(prop)
			if err != nil {
				return nil, err
			}
			properties[prop.SchemaName()] = mapped
		}
		doc["type"] = "object"
		doc["properties"] = properties
		if len(s.RequiredFields) > 0 {
			doc["required"] = s.RequiredFields
		}
	case *llm.ArraySchema:
		if s.Items == nil {
			return nil, llm.NewConfigurationError(fmt.Sprintf("array %q has no item schema", s.Name))
		}
		items, err := MapSchema(s.Items)
		if err != nil {
			return nil, err
		}
		doc["type"] = "array"
		doc["items"] = items
	case *llm.EnumSchema:
		kinds, err := s.Kinds()
		if err != nil {
			return nil, err
		}
		// Nullability is carried by "nullable" below.
		kinds = lo.Without(kinds, "null")
		if len(kinds) == 1 {
			doc["type"] = kinds[0]
		} else {
			doc["type"] = kinds
		}
		doc["enum"] = s.Options
	case *llm.StringSchema:
		doc["type"] = "string"
	case *llm.NumberSchema:
		doc["type"] = "number"
	case *llm.BooleanSchema:
		doc["type"] = "boolean"
	case nil:
		return nil, llm.NewConfigurationError("schema is nil")
	default:
		return nil, llm.NewConfigurationError(fmt.Sprintf("unsupported schema type %T", schema))
	}

	if desc := schema.SchemaDescription(); desc != "" {
		doc["description"] = desc
	}
	if schema.IsNullable() {
		doc["nullable"] = true
	}
	return doc, nil
}
