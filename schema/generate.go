package schema

import (
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeFor[time.Time]()

// For returns the schema of T's encoding/json form. It describes the
// arguments of typed actions so models are told, and validators check, the
// same shape the handler decodes.
//
// Struct fields follow encoding/json naming: the json tag name wins, "-"
// skips the field and untagged embedded structs are flattened. A field is
// required unless it is tagged omitempty or is a pointer. A `description`
// tag is copied onto the property.
func For[T any]() JSON {
	return fromType(reflect.TypeFor[T]())
}

// FromType is For for a value whose type is only known at run time.
func FromType(v any) JSON {
	if v == nil {
		return Any()
	}
	return fromType(reflect.TypeOf(v))
}

func fromType(t reflect.Type) JSON {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return JSON{Type: "string", Format: "date-time"}
	}

	switch t.Kind() {
	case reflect.Struct:
		s := JSON{Type: "object", Properties: make(map[string]JSON)}
		addFields(&s, t)
		return s
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte is encoded as base64 text.
			return String()
		}
		return Array(fromType(t.Elem()))
	case reflect.Array:
		return Array(fromType(t.Elem()))
	case reflect.Map:
		return JSON{Type: "object"}
	case reflect.String:
		return String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int()
	case reflect.Float32, reflect.Float64:
		return Number()
	case reflect.Bool:
		return Bool()
	}
	return Any()
}

func addFields(s *JSON, t reflect.Type) {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			embedded := f.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				addFields(s, embedded)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}

		prop := fromType(f.Type)
		if desc := f.Tag.Get("description"); desc != "" {
			prop.Description = desc
		}
		s.Properties[name] = prop

		if !hasOption(opts, "omitempty") && f.Type.Kind() != reflect.Pointer {
			s.Required = append(s.Required, name)
		}
	}
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}
