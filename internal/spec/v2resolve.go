package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/tsapidocs/internal/docorder"
)

// legacyResolver dereferences the local references of a Swagger 2.0
// document in place. Every reference to the same target ends up sharing one
// *openapi3.Schema, which is what node identity relies on.
type legacyResolver struct {
	doc     *openapi2.T
	walked  map[*openapi3.Schema]bool
	pending map[string]bool
}

func resolveLegacyRefs(doc *openapi2.T) error {
	if doc == nil {
		return &SpecError{Code: InputError, Message: "spec: nil swagger document"}
	}
	r := &legacyResolver{doc: doc, walked: map[*openapi3.Schema]bool{}, pending: map[string]bool{}}

	for _, name := range sortedKeys(doc.Definitions) {
		if err := r.schemaRef(doc.Definitions[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(doc.Parameters) {
		if p := doc.Parameters[name]; p != nil {
			if err := r.schemaRef(p.Schema); err != nil {
				return err
			}
		}
	}
	for _, name := range sortedKeys(doc.Responses) {
		if resp := doc.Responses[name]; resp != nil {
			if err := r.schemaRef(resp.Schema); err != nil {
				return err
			}
		}
	}
	for _, path := range sortedKeys(doc.Paths) {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		if err := r.parameters(item.Parameters); err != nil {
			return err
		}
		for _, op := range legacyOperations(item) {
			if op.op == nil {
				continue
			}
			if err := r.parameters(op.op.Parameters); err != nil {
				return err
			}
			if err := r.responses(op.op.Responses); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *legacyResolver) parameters(params openapi2.Parameters) error {
	for i, p := range params {
		if p == nil {
			continue
		}
		if p.Ref != "" {
			target, err := r.section(p.Ref, "parameters")
			if err != nil {
				return err
			}
			shared, ok := r.doc.Parameters[target]
			if !ok || shared == nil {
				return unresolved(p.Ref)
			}
			params[i] = shared
			continue
		}
		if err := r.schemaRef(p.Schema); err != nil {
			return err
		}
	}
	return nil
}

func (r *legacyResolver) responses(responses map[string]*openapi2.Response) error {
	for status, resp := range responses {
		if resp == nil {
			continue
		}
		if resp.Ref != "" {
			target, err := r.section(resp.Ref, "responses")
			if err != nil {
				return err
			}
			shared, ok := r.doc.Responses[target]
			if !ok || shared == nil {
				return unresolved(resp.Ref)
			}
			responses[status] = shared
			continue
		}
		if err := r.schemaRef(resp.Schema); err != nil {
			return err
		}
	}
	return nil
}

// section returns the entry name of a "#/<section>/<name>" reference.
func (r *legacyResolver) section(ref, section string) (string, error) {
	tokens, err := refTokens(ref)
	if err != nil {
		return "", err
	}
	if len(tokens) != 2 || tokens[0] != section {
		return "", unresolved(ref)
	}
	return tokens[1], nil
}

// schemaRef fills ref.Value and walks everything reachable from it.
func (r *legacyResolver) schemaRef(ref *openapi3.SchemaRef) error {
	if ref == nil {
		return nil
	}
	if err := r.value(ref); err != nil {
		return err
	}
	if ref.Value == nil {
		return nil
	}
	return r.walk(ref.Value)
}

func (r *legacyResolver) walk(s *openapi3.Schema) error {
	if r.walked[s] {
		return nil
	}
	r.walked[s] = true
	children := []*openapi3.SchemaRef{s.Items, s.AdditionalProperties.Schema, s.Not}
	for _, name := range sortedKeys(s.Properties) {
		children = append(children, s.Properties[name])
	}
	children = append(children, s.AllOf...)
	children = append(children, s.AnyOf...)
	children = append(children, s.OneOf...)
	for _, c := range children {
		if err := r.schemaRef(c); err != nil {
			return err
		}
	}
	return nil
}

// value resolves ref.Value without walking below it.
func (r *legacyResolver) value(ref *openapi3.SchemaRef) error {
	if ref.Value != nil || ref.Ref == "" {
		return nil
	}
	if r.pending[ref.Ref] {
		return &SpecError{Code: ResolutionError, Message: fmt.Sprintf("spec: circular reference alias %q", ref.Ref), JSONPointer: ref.Ref}
	}
	r.pending[ref.Ref] = true
	defer delete(r.pending, ref.Ref)

	target, err := r.lookup(ref.Ref)
	if err != nil {
		return err
	}
	ref.Value = target
	return nil
}

// lookup follows a "#/definitions/<name>/..." pointer. Pointers may reach
// into a definition through properties, items, additionalProperties and the
// composition keywords.
func (r *legacyResolver) lookup(ref string) (*openapi3.Schema, error) {
	tokens, err := refTokens(ref)
	if err != nil {
		return nil, err
	}
	if len(tokens) < 2 || tokens[0] != "definitions" {
		return nil, unresolved(ref)
	}
	cur, ok := r.doc.Definitions[tokens[1]]
	if !ok || cur == nil {
		return nil, unresolved(ref)
	}
	rest := tokens[2:]
	for {
		if err := r.value(cur); err != nil {
			return nil, err
		}
		if cur.Value == nil {
			return nil, unresolved(ref)
		}
		if len(rest) == 0 {
			return cur.Value, nil
		}
		s := cur.Value
		var next *openapi3.SchemaRef
		switch rest[0] {
		case "properties":
			if len(rest) < 2 {
				return nil, unresolved(ref)
			}
			next, rest = s.Properties[rest[1]], rest[2:]
		case "items":
			next, rest = s.Items, rest[1:]
		case "additionalProperties":
			next, rest = s.AdditionalProperties.Schema, rest[1:]
		case "not":
			next, rest = s.Not, rest[1:]
		case "allOf", "anyOf", "oneOf":
			if len(rest) < 2 {
				return nil, unresolved(ref)
			}
			list := map[string]openapi3.SchemaRefs{"allOf": s.AllOf, "anyOf": s.AnyOf, "oneOf": s.OneOf}[rest[0]]
			i, err := strconv.Atoi(rest[1])
			if err != nil || i < 0 || i >= len(list) {
				return nil, unresolved(ref)
			}
			next, rest = list[i], rest[2:]
		default:
			return nil, unresolved(ref)
		}
		if next == nil {
			return nil, unresolved(ref)
		}
		cur = next
	}
}

func refTokens(ref string) ([]string, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, &SpecError{Code: ResolutionError, Message: fmt.Sprintf("spec: external reference %q is not supported for swagger documents", ref), JSONPointer: ref}
	}
	tokens, err := docorder.Tokens(docorder.FromRef(ref))
	if err != nil {
		return nil, &SpecError{Code: ResolutionError, Message: fmt.Sprintf("spec: malformed reference %q", ref), JSONPointer: ref, Cause: err}
	}
	return tokens, nil
}

func unresolved(ref string) error {
	return &SpecError{Code: ResolutionError, Message: fmt.Sprintf("spec: unresolved reference %q", ref), JSONPointer: ref}
}

type legacyOperation struct {
	method HttpMethod
	op     *openapi2.Operation
}

// legacyOperations lists the operations of a path item in the fixed verb
// order. Swagger 2.0 has no trace verb.
func legacyOperations(item *openapi2.PathItem) []legacyOperation {
	return []legacyOperation{
		{GET, item.Get},
		{PUT, item.Put},
		{POST, item.Post},
		{DELETE, item.Delete},
		{OPTIONS, item.Options},
		{HEAD, item.Head},
		{PATCH, item.Patch},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
