package jsonschema

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Marshal serializes s. Properties and definitions are written in insertion
// order; an empty indent produces compact output.
func Marshal(s *Schema, indent string) ([]byte, error) {
	opts := []json.Options{json.Deterministic(true)}
	if indent != "" {
		opts = append(opts, jsontext.WithIndent(indent))
	}
	return json.Marshal(s, opts...)
}

// MarshalJSONV2 is the marshaler hook of the pinned go-json-experiment
// version; it delegates to MarshalJSONTo.
func (s *Schema) MarshalJSONV2(enc *jsontext.Encoder, _ json.Options) error {
	return s.MarshalJSONTo(enc)
}

// MarshalJSONTo writes s as a JSON object.
func (s *Schema) MarshalJSONTo(enc *jsontext.Encoder) error {
	w := &objectWriter{enc: enc}
	w.token(jsontext.ObjectStart)
	if s.Ref != "" {
		w.str("$ref", s.Ref)
	}
	w.str("title", s.Title)
	w.str("description", s.Description)
	switch len(s.Type) {
	case 0:
	case 1:
		w.str("type", s.Type[0])
	default:
		w.value("type", s.Type)
	}
	w.str("format", s.Format)
	if len(s.Enum) > 0 {
		w.value("enum", s.Enum)
	}
	if len(s.EnumNames) > 0 {
		w.value("tsEnumNames", s.EnumNames)
	}
	if s.Const != nil {
		w.value("const", s.Const)
	}
	w.flag("nullable", s.Nullable)
	w.flag("deprecated", s.Deprecated)
	w.flag("readOnly", s.ReadOnly)
	w.flag("writeOnly", s.WriteOnly)
	if s.Default != nil {
		w.value("default", s.Default)
	}
	w.schemaMap("properties", Entries(s.Properties))
	if len(s.Required) > 0 {
		w.value("required", s.Required)
	}
	if ap := s.AdditionalProperties; ap != nil {
		switch {
		case ap.Schema != nil:
			w.value("additionalProperties", ap.Schema)
		case ap.Allowed != nil:
			w.value("additionalProperties", *ap.Allowed)
		}
	}
	if s.Items != nil {
		w.value("items", s.Items)
	}
	if s.MinItems != nil {
		w.value("minItems", *s.MinItems)
	}
	if s.MaxItems != nil {
		w.value("maxItems", *s.MaxItems)
	}
	w.schemaList("allOf", s.AllOf)
	w.schemaList("anyOf", s.AnyOf)
	w.schemaList("oneOf", s.OneOf)
	w.schemaMap("definitions", Entries(s.Definitions))
	w.token(jsontext.ObjectEnd)
	return w.err
}

type objectWriter struct {
	enc *jsontext.Encoder
	err error
}

func (w *objectWriter) token(t jsontext.Token) {
	if w.err == nil {
		w.err = w.enc.WriteToken(t)
	}
}

func (w *objectWriter) value(key string, v any) {
	w.token(jsontext.String(key))
	if w.err == nil {
		w.err = json.MarshalEncode(w.enc, v)
	}
}

func (w *objectWriter) str(key, v string) {
	if v != "" {
		w.token(jsontext.String(key))
		w.token(jsontext.String(v))
	}
}

func (w *objectWriter) flag(key string, v bool) {
	if v {
		w.token(jsontext.String(key))
		w.token(jsontext.True)
	}
}

func (w *objectWriter) schemaList(key string, list []*Schema) {
	if len(list) == 0 {
		return
	}
	w.value(key, list)
}

func (w *objectWriter) schemaMap(key string, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	w.token(jsontext.String(key))
	w.token(jsontext.ObjectStart)
	for _, e := range entries {
		w.value(e.Key, e.Schema)
	}
	w.token(jsontext.ObjectEnd)
}
