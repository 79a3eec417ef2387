package llm

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/samber/lo"
)

// Schema describes the shape of a structured output or tool input. The set
// of implementations is closed.
type Schema interface {
	SchemaName() string
	SchemaDescription() string
	IsNullable() bool
	isSchema()
}

// ObjectSchema is a JSON object with named properties.
type ObjectSchema struct {
	Name                      string
	Description               string
	Properties                []Schema
	RequiredFields            []string
	AllowAdditionalProperties bool
	Nullable                  bool
}

// ArraySchema is a list of Items.
type ArraySchema struct {
	Name        string
	Description string
	Items       Schema
	Nullable    bool
}

// EnumSchema restricts a value to a fixed list of numeric or string literals.
type EnumSchema struct {
	Name        string
	Description string
	Options     []any
	Nullable    bool
}

// StringSchema is a string value.
type StringSchema struct {
	Name        string
	Description string
	Nullable    bool
}

// NumberSchema is a numeric value.
type NumberSchema struct {
	Name        string
	Description string
	Nullable    bool
}

// BooleanSchema is a boolean value.
type BooleanSchema struct {
	Name        string
	Description string
	Nullable    bool
}

func (s *ObjectSchema) SchemaName() string  { return s.Name }
func (s *ArraySchema) SchemaName() string   { return s.Name }
func (s *EnumSchema) SchemaName() string    { return s.Name }
func (s *StringSchema) SchemaName() string  { return s.Name }
func (s *NumberSchema) SchemaName() string  { return s.Name }
func (s *BooleanSchema) SchemaName() string { return s.Name }

func (s *ObjectSchema) SchemaDescription() string  { return s.Description }
func (s *ArraySchema) SchemaDescription() string   { return s.Description }
func (s *EnumSchema) SchemaDescription() string    { return s.Description }
func (s *StringSchema) SchemaDescription() string  { return s.Description }
func (s *NumberSchema) SchemaDescription() string  { return s.Description }
func (s *BooleanSchema) SchemaDescription() string { return s.Description }

func (s *ObjectSchema) IsNullable() bool  { return s.Nullable }
func (s *ArraySchema) IsNullable() bool   { return s.Nullable }
func (s *EnumSchema) IsNullable() bool    { return s.Nullable }
func (s *StringSchema) IsNullable() bool  { return s.Nullable }
func (s *NumberSchema) IsNullable() bool  { return s.Nullable }
func (s *BooleanSchema) IsNullable() bool { return s.Nullable }

func (*ObjectSchema) isSchema()  {}
func (*ArraySchema) isSchema()   {}
func (*EnumSchema) isSchema()    {}
func (*StringSchema) isSchema()  {}
func (*NumberSchema) isSchema()  {}
func (*BooleanSchema) isSchema() {}

// Kinds returns the JSON types of the options in first-seen order, with
// "null" appended when the enum is nullable. Integer and floating point
// options both map to "number".
func (s *EnumSchema) Kinds() ([]string, error) {
	kinds := make([]string, 0, 2)
	for _, opt := range s.Options {
		kind, err := literalKind(opt)
		if err != nil {
			return nil, fmt.Errorf("enum %q: %w", s.Name, err)
		}
		kinds = append(kinds, kind)
	}
	kinds = lo.Uniq(kinds)
	if s.Nullable {
		kinds = append(kinds, "null")
	}
	return kinds, nil
}

// Type returns Kinds collapsed to a single string when only one kind
// remains.
func (s *EnumSchema) Type() (any, error) {
	kinds, err := s.Kinds()
	if err != nil {
		return nil, err
	}
	if len(kinds) == 1 {
		return kinds[0], nil
	}
	return kinds, nil
}

func literalKind(v any) (string, error) {
	switch v.(type) {
	case string:
		return "string", nil
	case json.Number:
		return "number", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number", nil
	}
	return "", NewConfigurationError(fmt.Sprintf("unsupported enum option %v of type %s", v, reflect.TypeOf(v)))
}

func scalarType(t string, nullable bool) any {
	if nullable {
		return []string{t, "null"}
	}
	return t
}

// JSONSchema renders a schema as a generic JSON Schema document. Optional
// attributes are omitted rather than set to null.
func JSONSchema(schema Schema) (map[string]any, error) {
	switch s := schema.(type) {
	case *ObjectSchema:
		properties := make(map[string]any, len(s.Properties))
		for _, prop := range s.Properties {
			doc, err := JSONSchema(prop)
			if err != nil {
				return nil, err
			}
			properties[prop.SchemaName()] = doc
		}
		required := s.RequiredFields
		if required == nil {
			required = []string{}
		}
		return map[string]any{
			"description":          s.Description,
			"type":                 scalarType("object", s.Nullable),
			"properties":           properties,
			"required":             required,
			"additionalProperties": s.AllowAdditionalProperties,
		}, nil
	case *ArraySchema:
		if s.Items == nil {
			return nil, NewConfigurationError(fmt.Sprintf("array %q has no item schema", s.Name))
		}
		items, err := JSONSchema(s.Items)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"description": s.Description,
			"type":        scalarType("array", s.Nullable),
			"items":       items,
		}, nil
	case *EnumSchema:
		typ, err := s.Type()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"description": s.Description,
			"enum":        s.Options,
			"type":        typ,
		}, nil
	case *StringSchema:
		return map[string]any{"description": s.Description, "type": scalarType("string", s.Nullable)}, nil
	case *NumberSchema:
		return map[string]any{"description": s.Description, "type": scalarType("number", s.Nullable)}, nil
	case *BooleanSchema:
		return map[string]any{"description": s.Description, "type": scalarType("boolean", s.Nullable)}, nil
	case nil:
		return nil, NewConfigurationError("schema is nil")
	}
	return nil, NewConfigurationError(fmt.Sprintf("unsupported schema type %T", schema))
}
