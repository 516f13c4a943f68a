// Package schemagraph holds the identity and traversal helpers shared by the
// normalizer and the model extractor. Schema identity is pointer identity:
// after dereferencing every reference to the same target shares one
// *openapi3.Schema.
package schemagraph

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// IsDefined reports whether ref is present and resolved.
func IsDefined(ref *openapi3.SchemaRef) bool {
	return ref != nil && ref.Value != nil
}

// Index assigns a stable integer to every schema node on first sight.
type Index struct {
	ids map[*openapi3.Schema]int
}

// NewIndex returns an empty identity index.
func NewIndex() *Index {
	return &Index{ids: make(map[*openapi3.Schema]int)}
}

// ID returns the id of s, assigning the next free one if s is new.
func (ix *Index) ID(s *openapi3.Schema) int {
	if id, ok := ix.ids[s]; ok {
		return id
	}
	id := len(ix.ids)
	ix.ids[s] = id
	return id
}

// Len returns the number of indexed nodes.
func (ix *Index) Len() int { return len(ix.ids) }

// PropertyOrder lists the property names of a schema in visiting order.
type PropertyOrder func(s *openapi3.Schema) []string

// SortedProperties orders property names lexically.
func SortedProperties(s *openapi3.Schema) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edge is a structural child of a schema together with the reference tokens
// leading to it from its parent.
type Edge struct {
	Tokens []string
	Ref    *openapi3.SchemaRef
}

// Children returns the defined structural children of s: properties, items,
// an object-valued additionalProperties, then allOf, anyOf and oneOf members.
func Children(s *openapi3.Schema, order PropertyOrder) []Edge {
	if order == nil {
		order = SortedProperties
	}
	var out []Edge
	for _, name := range order(s) {
		if ref := s.Properties[name]; IsDefined(ref) {
			out = append(out, Edge{Tokens: []string{"properties", name}, Ref: ref})
		}
	}
	if IsDefined(s.Items) {
		out = append(out, Edge{Tokens: []string{"items"}, Ref: s.Items})
	}
	if IsDefined(s.AdditionalProperties.Schema) {
		out = append(out, Edge{Tokens: []string{"additionalProperties"}, Ref: s.AdditionalProperties.Schema})
	}
	for _, group := range []struct {
		key  string
		refs openapi3.SchemaRefs
	}{{"allOf", s.AllOf}, {"anyOf", s.AnyOf}, {"oneOf", s.OneOf}} {
		for i, ref := range group.refs {
			if IsDefined(ref) {
				out = append(out, Edge{Tokens: []string{group.key, itoa(i)}, Ref: ref})
			}
		}
	}
	return out
}

// Dependencies returns the structural closure of root, root included, in
// first-visit order. The walk uses an explicit stack and never pushes a node
// twice, so cyclic graphs terminate.
func Dependencies(root *openapi3.Schema, order PropertyOrder) []*openapi3.Schema {
	if root == nil {
		return nil
	}
	visited := map[*openapi3.Schema]bool{root: true}
	out := []*openapi3.Schema{root}
	stack := []*openapi3.Schema{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range Children(n, order) {
			child := e.Ref.Value
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			stack = append(stack, child)
		}
	}
	return out
}
