package llm

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// ParseJSONSchema builds a Schema from a decoded JSON Schema document, as
// found in request files and MCP tool definitions. Properties are ordered by
// name. Unsupported shapes fail with a configuration error.
func ParseJSONSchema(name string, doc map[string]any) (Schema, error) {
	if doc == nil {
		return nil, NewConfigurationError(fmt.Sprintf("schema %q is empty", name))
	}
	description := cast.ToString(doc["description"])

	if options, ok := doc["enum"]; ok {
		opts, err := cast.ToSliceE(options)
		if err != nil {
			return nil, NewConfigurationError(fmt.Sprintf("schema %q: enum must be a list", name))
		}
		nullable := lo.Contains(cast.ToStringSlice(doc["type"]), "null") || lo.Contains(opts, nil)
		return &EnumSchema{
			Name:        name,
			Description: description,
			Options:     lo.Filter(opts, func(o any, _ int) bool { return o != nil }),
			Nullable:    nullable,
		}, nil
	}

	typ, nullable, err := schemaType(doc["type"])
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}

	switch typ {
	case "object", "":
		props, err := cast.ToStringMapE(doc["properties"])
		if err != nil && doc["properties"] != nil {
			return nil, NewConfigurationError(fmt.Sprintf("schema %q: properties must be an object", name))
		}
		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		sort.Strings(names)

		obj := &ObjectSchema{
			Name:           name,
			Description:    description,
			Properties:     make([]Schema, 0, len(names)),
			RequiredFields: cast.ToStringSlice(doc["required"]),
			Nullable:       nullable,
		}
		if additional, ok := doc["additionalProperties"].(bool); ok {
			obj.AllowAdditionalProperties = additional
		}
		for _, propName := range names {
			propDoc, err := cast.ToStringMapE(props[propName])
			if err != nil {
				return nil, NewConfigurationError(fmt.Sprintf("schema %q: property %q must be an object", name, propName))
			}
			prop, err := ParseJSONSchema(propName, propDoc)
			if err != nil {
				return nil, err
			}
			obj.Properties = append(obj.Properties, prop)
		}
		return obj, nil
	case "array":
		itemsDoc, err := cast.ToStringMapE(doc["items"])
		if err != nil || itemsDoc == nil {
			return nil, NewConfigurationError(fmt.Sprintf("schema %q: array requires items", name))
		}
		items, err := ParseJSONSchema(name+"_item", itemsDoc)
		if err != nil {
			return nil, err
		}
		return &ArraySchema{Name: name, Description: description, Items: items, Nullable: nullable}, nil
	case "string":
		return &StringSchema{Name: name, Description: description, Nullable: nullable}, nil
	case "number", "integer":
		return &NumberSchema{Name: name, Description: description, Nullable: nullable}, nil
	case "boolean":
		return &BooleanSchema{Name: name, Description: description, Nullable: nullable}, nil
	}
	return nil, NewConfigurationError(fmt.Sprintf("schema %q: unsupported type %q", name, typ))
}

// schemaType reads a "type" attribute that is either a string or a list of
// strings with an optional "null" entry.
func schemaType(v any) (string, bool, error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, false, nil
	}
	types, err := cast.ToStringSliceE(v)
	if err != nil {
		return "", false, NewConfigurationError(fmt.Sprintf("invalid type %v", v))
	}
	var (
		typ      string
		nullable bool
	)
	for _, t := range types {
		if t == "null" {
			nullable = true
			continue
		}
		if typ != "" {
			return "", false, NewConfigurationError(fmt.Sprintf("union type %v is not supported", types))
		}
		typ = t
	}
	return typ, nullable, nil
}
