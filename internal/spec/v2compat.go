package spec

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites Swagger 2.0 operations that
// openapi2conv cannot upgrade:
//   - several body parameters are merged into one object-typed body parameter
//     with a property per original parameter;
//   - body parameters mixed with formData parameters become formData
//     parameters, and the operation consumes multipart/form-data.
//
// The document is edited as a node tree, so declaration order survives. On
// error the input is returned unchanged with modified=false.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths := mappingValue(documentRoot(&doc), "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return data, false, nil
	}
	modified := false
	for i := 1; i < len(paths.Content); i += 2 {
		item := deref(paths.Content[i])
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			switch strings.ToLower(item.Content[j].Value) {
			case "get", "put", "post", "delete", "options", "head", "patch":
			default:
				continue
			}
			if fixLegacyOperation(deref(item.Content[j+1])) {
				modified = true
			}
		}
	}
	if !modified {
		return data, false, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return data, false, err
	}
	if err := enc.Close(); err != nil {
		return data, false, err
	}
	return buf.Bytes(), true, nil
}

func fixLegacyOperation(op *yaml.Node) bool {
	params := deref(mappingValue(op, "parameters"))
	if params == nil || params.Kind != yaml.SequenceNode {
		return false
	}
	bodies := 0
	hasFormData := false
	for _, p := range params.Content {
		switch paramIn(p) {
		case "body":
			bodies++
		case "formdata":
			hasFormData = true
		}
	}
	switch {
	case bodies == 0:
		return false
	case hasFormData:
		for i, p := range params.Content {
			if paramIn(p) == "body" {
				params.Content[i] = formDataFromBodyParam(deref(p))
			}
		}
		ensureConsumes(op, "multipart/form-data")
		return true
	case bodies > 1:
		merged := newMapping()
		props := newMapping()
		required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		rest := []*yaml.Node{merged}
		for _, p := range params.Content {
			if paramIn(p) != "body" {
				rest = append(rest, p)
				continue
			}
			pm := deref(p)
			name := scalarValue(mappingValue(pm, "name"))
			if name == "" {
				name = "field"
			}
			schema := schemaOfParam(pm)
			if schema == nil {
				schema = newMapping()
				setMappingValue(schema, "type", scalarNode("string"))
			}
			setMappingValue(props, name, schema)
			if scalarValue(mappingValue(pm, "required")) == "true" {
				required.Content = append(required.Content, scalarNode(name))
			}
		}
		bodySchema := newMapping()
		setMappingValue(bodySchema, "type", scalarNode("object"))
		setMappingValue(bodySchema, "properties", props)
		if len(required.Content) > 0 {
			setMappingValue(bodySchema, "required", required)
		}
		setMappingValue(merged, "in", scalarNode("body"))
		setMappingValue(merged, "name", scalarNode("body"))
		setMappingValue(merged, "schema", bodySchema)
		params.Content = rest
		return true
	}
	return false
}

// schemaOfParam returns the parameter's schema, or one synthesized from its
// type, items and format.
func schemaOfParam(pm *yaml.Node) *yaml.Node {
	if sch := deref(mappingValue(pm, "schema")); sch != nil && sch.Kind == yaml.MappingNode {
		return sch
	}
	typ := scalarValue(mappingValue(pm, "type"))
	if typ == "" {
		return nil
	}
	out := newMapping()
	setMappingValue(out, "type", scalarNode(typ))
	if items := mappingValue(pm, "items"); items != nil {
		setMappingValue(out, "items", items)
	}
	if f := scalarValue(mappingValue(pm, "format")); f != "" {
		setMappingValue(out, "format", scalarNode(f))
	}
	return out
}

func formDataFromBodyParam(pm *yaml.Node) *yaml.Node {
	name := scalarValue(mappingValue(pm, "name"))
	if name == "" {
		name = "field"
	}
	out := newMapping()
	setMappingValue(out, "in", scalarNode("formData"))
	setMappingValue(out, "name", scalarNode(name))
	if desc := scalarValue(mappingValue(pm, "description")); desc != "" {
		setMappingValue(out, "description", scalarNode(desc))
	}
	if req := mappingValue(pm, "required"); req != nil {
		setMappingValue(out, "required", req)
	}

	var typ, format string
	var items *yaml.Node
	if sch := deref(mappingValue(pm, "schema")); sch != nil && sch.Kind == yaml.MappingNode {
		typ = scalarValue(mappingValue(sch, "type"))
		format = scalarValue(mappingValue(sch, "format"))
		items = mappingValue(sch, "items")
		if typ == "" && mappingValue(sch, "$ref") != nil {
			// a referenced object has no formData form
			typ = "string"
		}
	}
	if typ == "" {
		typ = scalarValue(mappingValue(pm, "type"))
		format = scalarValue(mappingValue(pm, "format"))
		items = mappingValue(pm, "items")
	}
	if typ == "" {
		typ = "string"
	}
	setMappingValue(out, "type", scalarNode(typ))
	if items != nil {
		setMappingValue(out, "items", items)
	}
	if format != "" {
		setMappingValue(out, "format", scalarNode(format))
	}
	return out
}

func ensureConsumes(op *yaml.Node, mime string) {
	consumes := deref(mappingValue(op, "consumes"))
	if consumes == nil || consumes.Kind != yaml.SequenceNode {
		consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setMappingValue(op, "consumes", consumes)
	}
	for _, c := range consumes.Content {
		if scalarValue(c) == mime {
			return
		}
	}
	consumes.Content = append(consumes.Content, scalarNode(mime))
}

func paramIn(p *yaml.Node) string {
	return strings.ToLower(scalarValue(mappingValue(deref(p), "in")))
}

// yaml.Node helpers

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return deref(doc.Content[0])
	}
	return deref(doc)
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	m = deref(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, scalarNode(key), v)
}

func scalarValue(n *yaml.Node) string {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
