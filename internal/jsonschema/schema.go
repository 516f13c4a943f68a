// Package jsonschema is the ordered JSON-Schema tree handed to the TypeScript
// compiler. It is produced fresh by the normalizer and never aliases the
// caller's OpenAPI document.
package jsonschema

import (
	"github.com/pb33f/libopenapi/orderedmap"
)

// DefinitionsPrefix is the reference prefix for entries of Definitions.
const DefinitionsPrefix = "#/definitions/"

// Schema is a JSON-Schema node. Properties and Definitions keep insertion order.
type Schema struct {
	Ref         string
	Title       string
	Description string
	Type        []string
	Format      string

	Properties           *orderedmap.Map[string, *Schema]
	Required             []string
	AdditionalProperties *Additional

	Items    *Schema
	MinItems *uint64
	MaxItems *uint64

	AllOf []*Schema
	AnyOf []*Schema
	OneOf []*Schema

	Enum      []any
	EnumNames []string
	// Const is nil when absent.
	Const any

	Nullable   bool
	Deprecated bool
	ReadOnly   bool
	WriteOnly  bool
	Default    any

	Definitions *orderedmap.Map[string, *Schema]
}

// Additional is the value of additionalProperties: either a schema or a
// boolean.
type Additional struct {
	Allowed *bool
	Schema  *Schema
}

// NewObject returns an empty object schema.
func NewObject() *Schema {
	return &Schema{Type: []string{"object"}, Properties: orderedmap.New[string, *Schema]()}
}

// RefTo returns a pointer to the definition with the given id.
func RefTo(id string) *Schema {
	return &Schema{Ref: DefinitionsPrefix + id}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// SetProperty adds or replaces a property, creating the map on first use.
func (s *Schema) SetProperty(name string, child *Schema) {
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, *Schema]()
	}
	s.Properties.Set(name, child)
}

// SetDefinition adds or replaces a definition, creating the map on first use.
func (s *Schema) SetDefinition(id string, child *Schema) {
	if s.Definitions == nil {
		s.Definitions = orderedmap.New[string, *Schema]()
	}
	s.Definitions.Set(id, child)
}

// PropertyCount returns the number of properties.
func (s *Schema) PropertyCount() int {
	if s.Properties == nil {
		return 0
	}
	return s.Properties.Len()
}

// Property returns the named property.
func (s *Schema) Property(name string) (*Schema, bool) {
	if s.Properties == nil {
		return nil, false
	}
	return s.Properties.Get(name)
}

// Definition returns the named definition.
func (s *Schema) Definition(id string) (*Schema, bool) {
	if s.Definitions == nil {
		return nil, false
	}
	return s.Definitions.Get(id)
}

// IsRequired reports whether name is listed in Required.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// HasType reports whether t is one of the declared types.
func (s *Schema) HasType(t string) bool {
	for _, have := range s.Type {
		if have == t {
			return true
		}
	}
	return false
}

// Entry is one key/value pair of an ordered schema map.
type Entry struct {
	Key    string
	Schema *Schema
}

// Entries flattens an ordered schema map.
func Entries(m *orderedmap.Map[string, *Schema]) []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, m.Len())
	for pair := m.First(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key(), Schema: pair.Value()})
	}
	return out
}
