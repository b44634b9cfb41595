// Package schema generates JSON Schemas for command argument and result types.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/hpp2334/hol-runtime/domain/entities"
	"github.com/hpp2334/hol-runtime/wireformat"
)

var (
	resourceType = reflect.TypeFor[wireformat.Resource]()
	blobType     = reflect.TypeFor[wireformat.BlobResource]()
)

// GenerateSchema reflects v into a JSON Schema. Nested structs are inlined and
// resource handles are described as {"id": N} objects.
func GenerateSchema(v any) ([]byte, error) {
	r := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Mapper:         mapHandles,
	}
	s := r.Reflect(v)

	out, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema of %T: %w", v, err)
	}
	return out, nil
}

func mapHandles(t reflect.Type) *jsonschema.Schema {
	switch t {
	case resourceType, reflect.TypeFor[entities.ResourceHandle]():
		return handleSchema("Resource table handle")
	case blobType, reflect.TypeFor[entities.BlobHandle]():
		return handleSchema("Blob handle")
	}
	return nil
}

func handleSchema(desc string) *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("id", &jsonschema.Schema{Type: "integer", Minimum: json.Number("0")})
	return &jsonschema.Schema{
		Type:        "object",
		Description: desc,
		Properties:  props,
		Required:    []string{"id"},
	}
}
