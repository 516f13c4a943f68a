package spec

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/docorder"
	"github.com/mark3labs/tsapidocs/internal/ident"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
	"github.com/mark3labs/tsapidocs/internal/schemagraph"
)

// BuildOption configures how a document is normalized.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	log         logrus.FieldLogger
	err         error
}

func (c *buildConfig) fail(msg string) {
	if c.err == nil {
		c.err = &SpecError{Code: InputError, Message: "spec: " + msg}
	}
}

// WithIncludeTags keeps only endpoints that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if c.includeTags == nil {
				c.includeTags = make(map[string]struct{}, len(tags))
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes endpoints that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if c.excludeTags == nil {
				c.excludeTags = make(map[string]struct{}, len(tags))
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only endpoints using one of the provided HTTP methods.
// Methods are matched case-insensitively; an unknown method fails the build.
func WithMethods(methods []string) BuildOption {
	return func(c *buildConfig) {
		for _, raw := range methods {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			m, err := ParseMethod(raw)
			if err != nil {
				c.fail(err.Error())
				continue
			}
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only endpoints whose path matches at least one of
// the provided regular expressions. A pattern that does not compile fails
// the build.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				c.fail(fmt.Sprintf("invalid path pattern %q: %v", p, err))
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithBuildLogger routes normalizer diagnostics to l.
func WithBuildLogger(l logrus.FieldLogger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.log = l
		}
	}
}

func (c *buildConfig) allow(method HttpMethod, path string, tags []string) bool {
	if len(c.methods) > 0 {
		if _, ok := c.methods[method]; !ok {
			return false
		}
	}
	if len(c.pathRes) > 0 {
		matched := false
		for _, re := range c.pathRes {
			if re.MatchString(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return allowByTags(tags, c)
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// NamedSchema is a schema node that becomes its own model.
type NamedSchema struct {
	ID            string
	Title         string
	Node          *openapi3.Schema
	Schema        *jsonschema.Schema
	AutoGenerated bool
	// Dependencies are the ids of the named schemas reachable from Node.
	Dependencies []string
}

// Normalized is the outcome of naming a document's schemas.
type Normalized struct {
	Named     []*NamedSchema
	Endpoints []*Endpoint

	byID map[string]*NamedSchema
}

// Lookup returns the named schema with the given id.
func (n *Normalized) Lookup(id string) (*NamedSchema, bool) {
	ns, ok := n.byID[strings.ToLower(id)]
	return ns, ok
}

// Definitions lists the rewritten schemas in naming order.
func (n *Normalized) Definitions() []codegen.Definition {
	defs := make([]codegen.Definition, 0, len(n.Named))
	for _, ns := range n.Named {
		defs = append(defs, codegen.Definition{ID: ns.ID, Schema: ns.Schema})
	}
	return defs
}

type candidate struct {
	node      *openapi3.Schema
	raw       string
	anonymous bool
	named     *NamedSchema
}

type pendingEndpoint struct {
	endpoint  *Endpoint
	request   *candidate
	responses []statusCandidate
}

type statusCandidate struct {
	status string
	c      *candidate
}

// normalizer side tables are keyed by identity index id, never by writing
// into the caller's schema nodes.
type normalizer struct {
	cfg   buildConfig
	doc   *Document
	order *docorder.Index
	locs  *schemagraph.Locations
	index *schemagraph.Index

	candidates   []*candidate
	candidateOf  map[int]*candidate
	descriptions map[int]string
	named        map[int]*NamedSchema
	endpoints    []*pendingEndpoint
}

// Normalize names every schema that should become a model, builds the
// endpoint records and rewrites each named schema into a standalone
// definition whose named children are references.
//
// Naming is deterministic: components are visited before paths, both in
// declaration order, and methods in the fixed verb order.
func Normalize(doc *Document, opts ...BuildOption) (*Normalized, error) {
	if doc == nil || (doc.V3 == nil && doc.V2 == nil) {
		return nil, &SpecError{Code: InputError, Message: "spec: nil document"}
	}
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.log = l
	}
	n := &normalizer{
		cfg:          cfg,
		doc:          doc,
		order:        doc.Order(),
		locs:         schemagraph.NewLocations(doc.Order()),
		index:        schemagraph.NewIndex(),
		candidateOf:  map[int]*candidate{},
		descriptions: map[int]string{},
		named:        map[int]*NamedSchema{},
	}
	if doc.Legacy() {
		n.legacyComponents()
		n.legacyPaths()
	} else {
		n.components()
		n.paths()
	}
	out := n.finalize()
	cfg.log.WithFields(logrus.Fields{
		"named":     len(out.Named),
		"endpoints": len(out.Endpoints),
		"nodes":     n.index.Len(),
	}).Debug("normalized document")
	return out, nil
}

// name registers node under raw unless it already has a name.
func (n *normalizer) name(node *openapi3.Schema, raw string, anonymous bool) (*candidate, bool) {
	id := n.index.ID(node)
	if c, ok := n.candidateOf[id]; ok {
		return c, false
	}
	c := &candidate{node: node, raw: raw, anonymous: anonymous}
	n.candidateOf[id] = c
	n.candidates = append(n.candidates, c)
	return c, true
}

func (n *normalizer) located(loc schemagraph.Located, raw string, anonymous bool) *candidate {
	n.locs.Walk(loc.Schema, loc.Pointer)
	c, _ := n.name(loc.Schema.Value, raw, anonymous)
	return c
}

func (n *normalizer) components() {
	c := n.doc.V3.Components
	if c == nil {
		return
	}
	for _, key := range docorder.KeysOf(n.order, "/components/schemas", c.Schemas) {
		ref := c.Schemas[key]
		if schemagraph.IsDefined(ref) {
			n.located(schemagraph.Located{Schema: ref, Pointer: docorder.Join("/components/schemas", key)}, key, false)
		}
	}
	for _, key := range docorder.KeysOf(n.order, "/components/responses", c.Responses) {
		r := c.Responses[key]
		if r == nil || r.Value == nil {
			continue
		}
		at := docorder.Join("/components/responses", key)
		if r.Ref != "" {
			at = docorder.FromRef(r.Ref)
		}
		if loc, ok := schemagraph.ContentSchema(r.Value.Content, docorder.Join(at, "content"), n.order); ok {
			n.located(loc, key, false)
		}
	}
	for _, key := range docorder.KeysOf(n.order, "/components/requestBodies", c.RequestBodies) {
		rb := c.RequestBodies[key]
		if rb == nil || rb.Value == nil {
			continue
		}
		at := docorder.Join("/components/requestBodies", key)
		if rb.Ref != "" {
			at = docorder.FromRef(rb.Ref)
		}
		if loc, ok := schemagraph.ContentSchema(rb.Value.Content, docorder.Join(at, "content"), n.order); ok {
			n.located(loc, key, false)
		}
	}
}

func (n *normalizer) legacyComponents() {
	doc := n.doc.V2
	for _, key := range docorder.KeysOf(n.order, "/definitions", doc.Definitions) {
		ref := doc.Definitions[key]
		if schemagraph.IsDefined(ref) {
			n.located(schemagraph.Located{Schema: ref, Pointer: docorder.Join("/definitions", key)}, key, false)
		}
	}
	// shared responses name their schema like components.responses does
	for _, key := range docorder.KeysOf(n.order, "/responses", doc.Responses) {
		r := doc.Responses[key]
		if r != nil && schemagraph.IsDefined(r.Schema) {
			n.located(schemagraph.Located{Schema: r.Schema, Pointer: docorder.Join("/responses", key, "schema")}, key, false)
		}
	}
}

type currentOperation struct {
	method HttpMethod
	op     *openapi3.Operation
}

func currentOperations(item *openapi3.PathItem) []currentOperation {
	return []currentOperation{
		{GET, item.Get},
		{PUT, item.Put},
		{POST, item.Post},
		{DELETE, item.Delete},
		{OPTIONS, item.Options},
		{HEAD, item.Head},
		{PATCH, item.Patch},
		{TRACE, item.Trace},
	}
}

func (n *normalizer) paths() {
	paths := n.doc.V3.Paths
	for _, path := range docorder.KeysOf(n.order, "/paths", paths) {
		item := paths[path]
		if item == nil {
			continue
		}
		itemAt := docorder.Join("/paths", path)
		for _, o := range currentOperations(item) {
			if o.op == nil {
				continue
			}
			if !n.cfg.allow(o.method, path, o.op.Tags) {
				continue
			}
			at := docorder.Join(itemAt, string(o.method))
			pe := n.newEndpoint(path, o.method, o.op.Summary, o.op.OperationID, o.op.Tags)
			if loc, ok := schemagraph.RequestSchema(o.op, at, n.order); ok {
				pe.request = n.request(loc, path, o.method)
			}
			for _, rs := range schemagraph.ResponseSchemas(o.op, at, n.order) {
				pe.responses = append(pe.responses, statusCandidate{rs.Status, n.response(rs, path, o.method)})
			}
		}
	}
}

func (n *normalizer) legacyPaths() {
	paths := n.doc.V2.Paths
	for _, path := range docorder.KeysOf(n.order, "/paths", paths) {
		item := paths[path]
		if item == nil {
			continue
		}
		itemAt := docorder.Join("/paths", path)
		for _, o := range legacyOperations(item) {
			if o.op == nil {
				continue
			}
			if !n.cfg.allow(o.method, path, o.op.Tags) {
				continue
			}
			at := docorder.Join(itemAt, string(o.method))
			pe := n.newEndpoint(path, o.method, o.op.Summary, o.op.OperationID, o.op.Tags)
			if loc, ok := schemagraph.LegacyRequestSchema(o.op, at, item.Parameters, docorder.Join(itemAt, "parameters")); ok {
				pe.request = n.request(loc, path, o.method)
			}
			for _, rs := range schemagraph.LegacyResponseSchemas(o.op, at, n.order) {
				pe.responses = append(pe.responses, statusCandidate{rs.Status, n.response(rs, path, o.method)})
			}
		}
	}
}

func (n *normalizer) newEndpoint(path string, method HttpMethod, summary, operationID string, tags []string) *pendingEndpoint {
	pe := &pendingEndpoint{endpoint: &Endpoint{
		ID:             strings.ToLower(path + "::" + string(method)),
		Title:          path,
		Path:           path,
		Method:         method,
		Summary:        strings.TrimSpace(summary),
		OperationID:    operationID,
		Tags:           append([]string(nil), tags...),
		ResponseModels: map[string]string{},
	}}
	n.endpoints = append(n.endpoints, pe)
	return pe
}

func (n *normalizer) request(loc schemagraph.Located, path string, method HttpMethod) *candidate {
	n.locs.Walk(loc.Schema, loc.Pointer)
	c, created := n.name(loc.Schema.Value, path+"_RequestBody", true)
	if created && c.node.Description == "" {
		n.descriptions[n.index.ID(c.node)] = "Request body for " + strings.ToUpper(string(method)) + " " + path
	}
	return c
}

func (n *normalizer) response(rs schemagraph.StatusSchema, path string, method HttpMethod) *candidate {
	n.locs.Walk(rs.Schema, rs.Pointer)
	c, created := n.name(rs.Schema.Value, path+"_"+rs.Status+"_ResponseBody", true)
	if created && c.node.Description == "" {
		n.descriptions[n.index.ID(c.node)] = rs.Status + " response body for " + strings.ToUpper(string(method)) + " " + path
	}
	return c
}

// stripMarker drops the leading underscore the status-code naming scheme can
// leave behind, as long as what remains still starts an identifier. A digit
// after the underscore keeps it: "_200_ResponseBody" stays as is.
func stripMarker(name string) string {
	if rest, ok := strings.CutPrefix(name, "_"); ok && ident.IsIdentifierStart(rest) {
		return rest
	}
	return name
}

func (n *normalizer) finalize() *Normalized {
	out := &Normalized{
		byID: make(map[string]*NamedSchema, len(n.candidates)),
	}
	names := ident.NewNames()
	names.Reserve(ident.ToSafeIdentifier(codegen.TopLevelTitle))
	for _, c := range n.candidates {
		title := names.Reserve(stripMarker(ident.ToSafeIdentifier(c.raw)))
		ns := &NamedSchema{
			ID:            strings.ToLower(title),
			Title:         title,
			Node:          c.node,
			AutoGenerated: c.anonymous,
		}
		c.named = ns
		out.Named = append(out.Named, ns)
		out.byID[ns.ID] = ns
		n.named[n.index.ID(c.node)] = ns
		n.cfg.log.WithFields(logrus.Fields{"raw": c.raw, "title": title}).Debug("named schema")
	}

	for _, ns := range out.Named {
		seen := map[string]bool{ns.ID: true}
		for _, dep := range schemagraph.Dependencies(ns.Node, n.locs.Properties) {
			named, ok := n.named[n.index.ID(dep)]
			if !ok || seen[named.ID] {
				continue
			}
			seen[named.ID] = true
			ns.Dependencies = append(ns.Dependencies, named.ID)
		}
		ns.Schema = n.rewrite(ns)
	}

	for _, pe := range n.endpoints {
		if pe.request != nil {
			pe.endpoint.RequestModel = pe.request.named.ID
		}
		for _, r := range pe.responses {
			pe.endpoint.ResponseModels[r.status] = r.c.named.ID
		}
		out.Endpoints = append(out.Endpoints, pe.endpoint)
	}
	return out
}

// rewrite converts the graph under ns into a standalone definition. Named
// children become references, and an unnamed node met again on its own path
// is cut to an empty schema. Only the root carries a title, so the titles of
// nested unnamed nodes are suppressed.
func (n *normalizer) rewrite(ns *NamedSchema) *jsonschema.Schema {
	active := map[int]bool{}
	var convert func(s *openapi3.Schema, root bool) *jsonschema.Schema
	convert = func(s *openapi3.Schema, root bool) *jsonschema.Schema {
		id := n.index.ID(s)
		if target, ok := n.named[id]; ok && !root {
			return jsonschema.RefTo(target.ID)
		}
		if active[id] {
			return &jsonschema.Schema{}
		}
		active[id] = true
		defer delete(active, id)

		out := &jsonschema.Schema{
			Description: s.Description,
			Format:      s.Format,
			Nullable:    s.Nullable || extensionBool(s.Extensions, "x-nullable"),
			Deprecated:  s.Deprecated,
			ReadOnly:    s.ReadOnly,
			WriteOnly:   s.WriteOnly,
			Default:     s.Default,
			MaxItems:    s.MaxItems,
		}
		if root {
			out.Title = ns.Title
			if out.Description == "" {
				out.Description = n.descriptions[id]
			}
		}
		if s.Type != "" {
			out.Type = []string{s.Type}
		}
		if len(s.Enum) > 0 {
			out.Enum = append([]any(nil), s.Enum...)
			out.EnumNames = enumNames(s.Extensions, len(s.Enum))
		}
		if v, ok := s.Extensions["const"]; ok && v != nil {
			out.Const = v
		}
		if s.MinItems > 0 {
			minItems := s.MinItems
			out.MinItems = &minItems
		}
		for _, name := range n.locs.Properties(s) {
			if child := s.Properties[name]; schemagraph.IsDefined(child) {
				out.SetProperty(name, convert(child.Value, false))
			}
		}
		out.Required = append([]string(nil), s.Required...)
		if s.AdditionalProperties.Has != nil || schemagraph.IsDefined(s.AdditionalProperties.Schema) {
			add := &jsonschema.Additional{Allowed: s.AdditionalProperties.Has}
			if schemagraph.IsDefined(s.AdditionalProperties.Schema) {
				add.Schema = convert(s.AdditionalProperties.Schema.Value, false)
			}
			out.AdditionalProperties = add
		}
		if schemagraph.IsDefined(s.Items) {
			out.Items = convert(s.Items.Value, false)
		}
		out.AllOf = convertAll(s.AllOf, convert)
		out.AnyOf = convertAll(s.AnyOf, convert)
		out.OneOf = convertAll(s.OneOf, convert)
		return out
	}
	return convert(ns.Node, true)
}

func convertAll(refs openapi3.SchemaRefs, convert func(*openapi3.Schema, bool) *jsonschema.Schema) []*jsonschema.Schema {
	var out []*jsonschema.Schema
	for _, r := range refs {
		if schemagraph.IsDefined(r) {
			out = append(out, convert(r.Value, false))
		}
	}
	return out
}

func extensionBool(ext map[string]interface{}, key string) bool {
	b, _ := ext[key].(bool)
	return b
}

// enumNames reads member names from x-enum-varnames or x-enumNames. Names
// are only used when there is one per enum value.
func enumNames(ext map[string]interface{}, want int) []string {
	for _, key := range []string{"x-enum-varnames", "x-enumNames"} {
		list, ok := ext[key].([]interface{})
		if !ok || len(list) != want {
			continue
		}
		names := make([]string, 0, len(list))
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				break
			}
			names = append(names, s)
		}
		if len(names) == want {
			return names
		}
	}
	return nil
}
