package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// JSON represents a JSON Schema definition.
// Only the subset of keywords that models are asked to honour is supported.
type JSON struct {
	Type                 string          `json:"type,omitempty"`
	Description          string          `json:"description,omitempty"`
	Properties           map[string]JSON `json:"properties,omitempty"`
	Required             []string        `json:"required,omitempty"`
	AdditionalProperties *bool           `json:"additionalProperties,omitempty"`
	Items                *JSON           `json:"items,omitempty"`
	MinItems             *int            `json:"minItems,omitempty"`
	MaxItems             *int            `json:"maxItems,omitempty"`
	Enum                 []any           `json:"enum,omitempty"`
	Default              any             `json:"default,omitempty"`
	Minimum              *float64        `json:"minimum,omitempty"`
	Maximum              *float64        `json:"maximum,omitempty"`
	MinLength            *int            `json:"minLength,omitempty"`
	MaxLength            *int            `json:"maxLength,omitempty"`
	Pattern              string          `json:"pattern,omitempty"`
	Format               string          `json:"format,omitempty"`
	Ref                  string          `json:"$ref,omitempty"`
	Definitions          map[string]JSON `json:"definitions,omitempty"`
}

// Parse decodes a schema document. Comments and trailing commas are allowed.
func Parse(data []byte) (JSON, error) {
	var s JSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return JSON{}, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

// Map returns the schema as a generic map, the shape vendor tool APIs expect.
func (s JSON) Map() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Any creates a JSON schema that accepts any type.
func Any() JSON {
	return JSON{}
}

// String creates a JSON schema for a string type.
func String() JSON {
	return JSON{Type: "string"}
}

// StringWithDesc creates a JSON schema for a string type with a description.
func StringWithDesc(desc string) JSON {
	return JSON{Type: "string", Description: desc}
}

// Int creates a JSON schema for an integer type.
func Int() JSON {
	return JSON{Type: "integer"}
}

// Number creates a JSON schema for a number type.
func Number() JSON {
	return JSON{Type: "number"}
}

// Bool creates a JSON schema for a boolean type.
func Bool() JSON {
	return JSON{Type: "boolean"}
}

// Array creates a JSON schema for an array type with the specified item schema.
func Array(items JSON) JSON {
	return JSON{Type: "array", Items: &items}
}

// Object creates a JSON schema for an object type with the specified properties and required fields.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{Type: "object", Properties: properties, Required: required}
}

// Enum creates a JSON schema with enumerated values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// Validate checks value against the schema and returns every violation as
// a ValidationErrors, or nil when the value conforms.
func (s JSON) Validate(value any) error {
	if errs := s.Errors(value); len(errs) > 0 {
		return errs
	}
	return nil
}

// Errors returns every violation of the schema by value, in a stable order.
func (s JSON) Errors(value any) ValidationErrors {
	v := &validator{root: s, visited: make(map[string]bool)}
	v.validate(s, normalize(value), "$")
	return v.errs
}

type validator struct {
	root    JSON
	visited map[string]bool
	errs    ValidationErrors
}

func (v *validator) fail(path, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validate(s JSON, value any, path string) {
	if s.Ref != "" {
		v.validateRef(s.Ref, value, path)
		return
	}

	if len(s.Enum) > 0 {
		v.validateEnum(s, value, path)
		return
	}

	if value == nil {
		if s.Type != "" && s.Type != "null" {
			v.fail(path, "expected %s, got null", s.Type)
		}
		return
	}

	switch s.Type {
	case "":
		// Untyped schemas still check object and array keywords when they apply.
		switch tv := value.(type) {
		case map[string]any:
			v.validateObject(s, tv, path)
		case []any:
			v.validateArray(s, tv, path)
		}
	case "string":
		str, ok := value.(string)
		if !ok {
			v.fail(path, "expected string, got %s", typeName(value))
			return
		}
		v.validateString(s, str, path)
	case "integer":
		num, ok := value.(float64)
		if !ok || num != float64(int64(num)) {
			v.fail(path, "expected integer, got %s", typeName(value))
			return
		}
		v.validateNumber(s, num, path)
	case "number":
		num, ok := value.(float64)
		if !ok {
			v.fail(path, "expected number, got %s", typeName(value))
			return
		}
		v.validateNumber(s, num, path)
	case "boolean":
		if _, ok := value.(bool); !ok {
			v.fail(path, "expected boolean, got %s", typeName(value))
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			v.fail(path, "expected array, got %s", typeName(value))
			return
		}
		v.validateArray(s, arr, path)
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			v.fail(path, "expected object, got %s", typeName(value))
			return
		}
		v.validateObject(s, obj, path)
	case "null":
		v.fail(path, "expected null, got %s", typeName(value))
	default:
		v.fail(path, "unsupported schema type %q", s.Type)
	}
}

func (v *validator) validateRef(ref string, value any, path string) {
	if !strings.HasPrefix(ref, "#/definitions/") {
		v.fail(path, "unsupported $ref format: %s (only #/definitions/X is supported)", ref)
		return
	}
	if v.visited[ref] {
		v.fail(path, "circular $ref detected: %s", ref)
		return
	}
	def, ok := v.root.Definitions[strings.TrimPrefix(ref, "#/definitions/")]
	if !ok {
		v.fail(path, "$ref %s cannot be resolved: definition not found", ref)
		return
	}

	v.visited[ref] = true
	defer delete(v.visited, ref)
	v.validate(def, value, path)
}

func (v *validator) validateEnum(s JSON, value any, path string) {
	for _, allowed := range s.Enum {
		if reflect.DeepEqual(value, normalize(allowed)) {
			return
		}
	}
	v.fail(path, "value %v is not one of the allowed values: %v", value, s.Enum)
}

func (v *validator) validateString(s JSON, str, path string) {
	if s.MinLength != nil && len(str) < *s.MinLength {
		v.fail(path, "string length %d is less than minimum %d", len(str), *s.MinLength)
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		v.fail(path, "string length %d is greater than maximum %d", len(str), *s.MaxLength)
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			v.fail(path, "invalid pattern %s: %v", s.Pattern, err)
			return
		}
		if !re.MatchString(str) {
			v.fail(path, "string does not match pattern %s", s.Pattern)
		}
	}
}

func (v *validator) validateNumber(s JSON, num float64, path string) {
	if s.Minimum != nil && num < *s.Minimum {
		v.fail(path, "value %v is less than minimum %v", num, *s.Minimum)
	}
	if s.Maximum != nil && num > *s.Maximum {
		v.fail(path, "value %v is greater than maximum %v", num, *s.Maximum)
	}
}

func (v *validator) validateArray(s JSON, arr []any, path string) {
	if s.MinItems != nil && len(arr) < *s.MinItems {
		v.fail(path, "array has %d items, fewer than minimum %d", len(arr), *s.MinItems)
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		v.fail(path, "array has %d items, more than maximum %d", len(arr), *s.MaxItems)
	}
	if s.Items == nil {
		return
	}
	for i, item := range arr {
		v.validate(*s.Items, item, fmt.Sprintf("%s[%d]", path, i))
	}
}

func (v *validator) validateObject(s JSON, obj map[string]any, path string) {
	for _, req := range s.Required {
		if _, exists := obj[req]; !exists {
			v.fail(path, "required property %q is missing", req)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, exists := s.Properties[key]
		if !exists {
			if s.AdditionalProperties != nil && !*s.AdditionalProperties {
				v.fail(path, "additional property %q is not allowed", key)
			}
			continue
		}
		v.validate(prop, obj[key], path+"."+key)
	}
}

// normalize converts Go values to the shapes encoding/json produces when
// decoding into any, so structs and typed slices validate like parsed JSON.
func normalize(value any) any {
	switch value.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return value
	}
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return value
	}
	return out
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
