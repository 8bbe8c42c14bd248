// Package schema implements the subset of JSON Schema used to describe and
// check model output: typed objects, arrays, enums, numeric and string
// constraints, additionalProperties and local $ref definitions.
//
// Unlike a first-error validator, Errors reports every violation with a path,
// because the list is fed back to the model as repair instructions:
//
//	s := schema.Object(map[string]schema.JSON{
//		"name": schema.String(),
//		"age":  schema.Int(),
//	}, "name", "age")
//
//	for _, e := range s.Errors(map[string]any{"age": "ten"}) {
//		fmt.Println(e) // $: required property "name" is missing
//		               // $.age: expected integer, got string
//	}
//
// Values are compared in their encoding/json shape: Go structs, typed slices
// and integer types are normalized through a JSON round trip first.
package schema
