package schemagraph

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/tsapidocs/internal/docorder"
)

// Located is a schema reference together with the pointer it was found at.
type Located struct {
	Schema  *openapi3.SchemaRef
	Pointer string
}

// StatusSchema is the body schema of one declared response.
type StatusSchema struct {
	Status string
	Located
}

// ContentSchema returns the schema of the first media type, in declaration
// order, that carries one. There is no content-type preference.
func ContentSchema(content openapi3.Content, pointer string, order *docorder.Index) (Located, bool) {
	for _, mediaType := range docorder.KeysOf(order, pointer, content) {
		mt := content[mediaType]
		if mt != nil && IsDefined(mt.Schema) {
			return Located{Schema: mt.Schema, Pointer: docorder.Join(pointer, mediaType, "schema")}, true
		}
	}
	return Located{}, false
}

// RequestSchema extracts the request body schema of an OpenAPI 3 operation
// declared at pointer.
func RequestSchema(op *openapi3.Operation, pointer string, order *docorder.Index) (Located, bool) {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return Located{}, false
	}
	at := docorder.Join(pointer, "requestBody")
	if op.RequestBody.Ref != "" {
		at = docorder.FromRef(op.RequestBody.Ref)
	}
	return ContentSchema(op.RequestBody.Value.Content, docorder.Join(at, "content"), order)
}

// ResponseSchemas extracts the body schema of every response of an OpenAPI 3
// operation that declares one, in declaration order.
func ResponseSchemas(op *openapi3.Operation, pointer string, order *docorder.Index) []StatusSchema {
	if op == nil {
		return nil
	}
	at := docorder.Join(pointer, "responses")
	var out []StatusSchema
	for _, status := range docorder.KeysOf(order, at, op.Responses) {
		ref := op.Responses[status]
		if ref == nil || ref.Value == nil {
			continue
		}
		rp := docorder.Join(at, status)
		if ref.Ref != "" {
			rp = docorder.FromRef(ref.Ref)
		}
		if loc, ok := ContentSchema(ref.Value.Content, docorder.Join(rp, "content"), order); ok {
			out = append(out, StatusSchema{Status: status, Located: loc})
		}
	}
	return out
}

// LegacyRequestSchema returns the schema of the first in: body parameter of a
// Swagger 2.0 operation that carries a defined schema. Path-level parameters
// are consulted when the operation declares no such parameter of its own.
func LegacyRequestSchema(op *openapi2.Operation, pointer string, shared openapi2.Parameters, sharedPointer string) (Located, bool) {
	if op == nil {
		return Located{}, false
	}
	if loc, ok := firstBodyParam(op.Parameters, docorder.Join(pointer, "parameters")); ok {
		return loc, true
	}
	return firstBodyParam(shared, sharedPointer)
}

func firstBodyParam(params openapi2.Parameters, pointer string) (Located, bool) {
	for i, p := range params {
		if p == nil || p.In != "body" || !IsDefined(p.Schema) {
			continue
		}
		return Located{Schema: p.Schema, Pointer: docorder.Join(pointer, strconv.Itoa(i), "schema")}, true
	}
	return Located{}, false
}

// LegacyResponseSchemas returns the direct schema of every response of a
// Swagger 2.0 operation that declares one, in declaration order.
func LegacyResponseSchemas(op *openapi2.Operation, pointer string, order *docorder.Index) []StatusSchema {
	if op == nil {
		return nil
	}
	at := docorder.Join(pointer, "responses")
	var out []StatusSchema
	for _, status := range docorder.KeysOf(order, at, op.Responses) {
		r := op.Responses[status]
		if r == nil || !IsDefined(r.Schema) {
			continue
		}
		out = append(out, StatusSchema{
			Status:  status,
			Located: Located{Schema: r.Schema, Pointer: docorder.Join(at, status, "schema")},
		})
	}
	return out
}
