// Package tscompiler renders a JSON-Schema document as TypeScript
// declarations, following the conventions of json-schema-to-typescript:
// titled schemas and definitions become named exports, everything else is
// inlined at its use site.
package tscompiler

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/ident"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
)

// Compiler implements codegen.Compiler. It holds no per-document state and
// may be shared between goroutines.
type Compiler struct {
	log logrus.FieldLogger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a compiler.
func New(opts ...Option) *Compiler {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Compiler{log: discard}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ codegen.Compiler = (*Compiler)(nil)

// Compile renders root and every named schema reachable from it.
func (c *Compiler) Compile(ctx context.Context, root *jsonschema.Schema, opts codegen.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if root == nil {
		return "", fmt.Errorf("tscompiler: nil root schema")
	}
	r := newRenderer(root, opts)
	r.run()
	if r.err != nil {
		return "", r.err
	}
	out := r.output()
	c.log.WithFields(logrus.Fields{
		"aliases":    len(r.aliases),
		"interfaces": len(r.interfaces),
		"enums":      len(r.enums),
	}).Debug("compiled declarations")
	return out, nil
}

type renderer struct {
	root   *jsonschema.Schema
	opts   codegen.Options
	names  *ident.Names
	named  map[*jsonschema.Schema]string
	defKey map[*jsonschema.Schema]string
	inline map[*jsonschema.Schema]bool

	pending    []*jsonschema.Schema
	aliases    []string
	interfaces []string
	enums      []string
	err        error
}

func newRenderer(root *jsonschema.Schema, opts codegen.Options) *renderer {
	r := &renderer{
		root:   root,
		opts:   opts,
		names:  ident.NewNames(),
		named:  make(map[*jsonschema.Schema]string),
		defKey: make(map[*jsonschema.Schema]string),
		inline: make(map[*jsonschema.Schema]bool),
	}
	for _, e := range jsonschema.Entries(root.Definitions) {
		if _, seen := r.defKey[e.Schema]; !seen && e.Schema != nil {
			r.defKey[e.Schema] = e.Key
		}
	}
	return r
}

func (r *renderer) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *renderer) run() {
	r.named[r.root] = r.names.Reserve(ident.ToSafeIdentifier(r.titleOf(r.root)))
	r.emit(r.root)
	if r.opts.UnreachableDefinitions {
		for _, e := range jsonschema.Entries(r.root.Definitions) {
			if e.Schema == nil {
				continue
			}
			if _, done := r.named[e.Schema]; !done {
				r.reference(e.Schema)
				r.emit(e.Schema)
			}
		}
	}
}

// emit renders the declaration of s, then the declarations it discovered,
// depth first.
func (r *renderer) emit(s *jsonschema.Schema) {
	if r.err != nil {
		return
	}
	saved := r.pending
	r.pending = nil
	if s == r.root || r.opts.DeclareExternallyReferenced {
		r.declare(s, r.named[s])
	}
	children := r.pending
	r.pending = saved
	for _, child := range children {
		r.emit(child)
	}
}

func (r *renderer) titleOf(s *jsonschema.Schema) string {
	if s.Title != "" {
		return s.Title
	}
	return r.defKey[s]
}

func (r *renderer) isNamed(s *jsonschema.Schema) bool {
	return r.titleOf(s) != ""
}

// reference returns the declared name of s, naming and queueing it on first use.
func (r *renderer) reference(s *jsonschema.Schema) string {
	if name, ok := r.named[s]; ok {
		return name
	}
	name := r.names.Reserve(ident.ToSafeIdentifier(r.titleOf(s)))
	r.named[s] = name
	r.pending = append(r.pending, s)
	return name
}

func (r *renderer) resolve(s *jsonschema.Schema) *jsonschema.Schema {
	seen := make(map[*jsonschema.Schema]bool)
	for s.Ref != "" {
		if seen[s] {
			r.fail(fmt.Errorf("tscompiler: circular reference chain at %q", s.Ref))
			return nil
		}
		seen[s] = true
		id, ok := strings.CutPrefix(s.Ref, jsonschema.DefinitionsPrefix)
		if !ok {
			r.fail(fmt.Errorf("tscompiler: unsupported reference %q", s.Ref))
			return nil
		}
		target, ok := r.root.Definition(id)
		if !ok || target == nil {
			r.fail(fmt.Errorf("tscompiler: unresolved reference %q", s.Ref))
			return nil
		}
		s = target
	}
	return s
}

func (r *renderer) declare(s *jsonschema.Schema, name string) {
	doc := docComment(s, "")
	switch {
	case r.isConstEnum(s):
		r.enums = append(r.enums, doc+"export const enum "+name+" "+r.enumBody(s))
	case isInterface(s):
		r.interfaces = append(r.interfaces, doc+"export interface "+name+" "+r.objectLiteral(s, ""))
	default:
		r.aliases = append(r.aliases, doc+"export type "+name+" = "+r.inlineType(s, "")+";")
	}
}

func isInterface(s *jsonschema.Schema) bool {
	if s.Nullable || s.Const != nil || len(s.Enum) > 0 || len(s.AllOf) > 0 || len(s.AnyOf) > 0 || len(s.OneOf) > 0 {
		return false
	}
	switch len(s.Type) {
	case 0:
		return s.PropertyCount() > 0 || s.AdditionalProperties != nil
	case 1:
		return s.Type[0] == "object"
	}
	return false
}

func (r *renderer) isConstEnum(s *jsonschema.Schema) bool {
	return r.opts.EnableConstEnums && len(s.Enum) > 0 && len(s.EnumNames) == len(s.Enum)
}

func (r *renderer) enumBody(s *jsonschema.Schema) string {
	members := ident.NewNames()
	lines := make([]string, 0, len(s.Enum))
	for i, v := range s.Enum {
		name := ident.ToSafeIdentifier(s.EnumNames[i])
		if name == "" {
			name = fmt.Sprintf("Value%d", i)
		}
		lines = append(lines, "  "+members.Reserve(name)+" = "+literal(v))
	}
	return "{\n" + strings.Join(lines, ",\n") + "\n}"
}

// typeOf renders s at a use site.
func (r *renderer) typeOf(s *jsonschema.Schema, indent string) string {
	if s == nil {
		return "unknown"
	}
	if s.Ref != "" {
		target := r.resolve(s)
		if target == nil {
			return "unknown"
		}
		return r.reference(target)
	}
	if r.isNamed(s) {
		return r.reference(s)
	}
	if r.inline[s] {
		return "unknown"
	}
	r.inline[s] = true
	defer delete(r.inline, s)
	return r.inlineType(s, indent)
}

func (r *renderer) inlineType(s *jsonschema.Schema, indent string) string {
	t := r.baseType(s, indent)
	if s.Nullable && !s.HasType("null") && t != "unknown" && t != "null" {
		t += " | null"
	}
	return t
}

func (r *renderer) baseType(s *jsonschema.Schema, indent string) string {
	if s.Const != nil {
		return literal(s.Const)
	}
	if len(s.Enum) > 0 {
		parts := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			parts = append(parts, literal(v))
		}
		return strings.Join(dedupe(parts), " | ")
	}
	if len(s.AllOf) > 0 {
		parts := r.members(s.AllOf, indent)
		if s.PropertyCount() > 0 {
			parts = append([]string{r.objectLiteral(s, indent)}, parts...)
		}
		return joinTypes(parts, " & ")
	}
	for _, group := range [][]*jsonschema.Schema{s.AnyOf, s.OneOf} {
		if len(group) == 0 {
			continue
		}
		union := joinTypes(r.members(group, indent), " | ")
		if s.PropertyCount() > 0 {
			return r.objectLiteral(s, indent) + " & (" + union + ")"
		}
		return union
	}
	switch len(s.Type) {
	case 0:
		switch {
		case s.PropertyCount() > 0 || s.AdditionalProperties != nil:
			return r.objectLiteral(s, indent)
		case s.Items != nil:
			return r.arrayType(s, indent)
		}
		return "unknown"
	case 1:
		return r.primitive(s, s.Type[0], indent)
	}
	parts := make([]string, 0, len(s.Type))
	for _, t := range s.Type {
		parts = append(parts, r.primitive(s, t, indent))
	}
	return joinTypes(dedupe(parts), " | ")
}

func (r *renderer) members(list []*jsonschema.Schema, indent string) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, r.typeOf(m, indent))
	}
	return out
}

func (r *renderer) primitive(s *jsonschema.Schema, t, indent string) string {
	switch t {
	case "string":
		return "string"
	case "integer", "number":
		return "number"
	case "boolean":
		return "boolean"
	case "null":
		return "null"
	case "array":
		return r.arrayType(s, indent)
	case "object":
		return r.objectLiteral(s, indent)
	}
	return "unknown"
}

func (r *renderer) arrayType(s *jsonschema.Schema, indent string) string {
	elem := "unknown"
	if s.Items != nil {
		elem = r.typeOf(s.Items, indent)
	}
	list := wrapElement(elem) + "[]"
	if r.opts.IgnoreMinAndMaxItems {
		return list
	}
	var lo uint64
	if s.MinItems != nil {
		lo = *s.MinItems
	}
	limit := uint64(r.opts.MaxTupleItems)
	switch {
	case s.MaxItems != nil && *s.MaxItems >= lo && *s.MaxItems <= limit:
		var variants []string
		for n := lo; n <= *s.MaxItems; n++ {
			variants = append(variants, "["+strings.Join(repeat(elem, n), ", ")+"]")
		}
		return strings.Join(variants, " | ")
	case lo > 0 && lo <= limit:
		return "[" + strings.Join(append(repeat(elem, lo), "..."+list), ", ") + "]"
	}
	return list
}

func (r *renderer) objectLiteral(s *jsonschema.Schema, indent string) string {
	inner := indent + "  "
	var lines []string
	for _, e := range jsonschema.Entries(s.Properties) {
		opt := "?"
		if s.IsRequired(e.Key) {
			opt = ""
		}
		var doc string
		if e.Schema != nil && e.Schema.Ref == "" && !r.isNamed(e.Schema) {
			doc = docComment(e.Schema, inner)
		}
		lines = append(lines, doc+inner+propertyKey(e.Key)+opt+": "+r.typeOf(e.Schema, inner)+";")
	}
	if sig := r.indexSignature(s, inner); sig != "" {
		lines = append(lines, inner+sig+";")
	}
	if len(lines) == 0 {
		return "{}"
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + indent + "}"
}

func (r *renderer) indexSignature(s *jsonschema.Schema, indent string) string {
	ap := s.AdditionalProperties
	var value string
	switch {
	case ap == nil || (ap.Schema == nil && (ap.Allowed == nil || *ap.Allowed)):
		value = "unknown"
	case ap.Schema != nil:
		value = r.typeOf(ap.Schema, indent)
	default:
		return ""
	}
	if r.opts.StrictIndexSignatures {
		value += " | undefined"
	}
	return "[k: string]: " + value
}

// output groups aliases, then interfaces, then enums. Each group keeps
// discovery order.
func (r *renderer) output() string {
	var sections []string
	if b := strings.TrimSpace(r.opts.BannerComment); b != "" {
		sections = append(sections, b)
	}
	for _, group := range [][]string{r.aliases, r.interfaces, r.enums} {
		if len(group) > 0 {
			sections = append(sections, strings.Join(group, "\n"))
		}
	}
	out := strings.Join(sections, "\n\n") + "\n"
	if r.opts.Format {
		out = normalizeWhitespace(out)
	}
	return out
}

var (
	identifierKey  = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

func propertyKey(name string) string {
	if identifierKey.MatchString(name) {
		return name
	}
	return literal(name)
}

func normalizeWhitespace(s string) string {
	s = trailingSpaces.ReplaceAllString(s, "\n")
	return blankRuns.ReplaceAllString(s, "\n\n")
}

func joinTypes(parts []string, sep string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	wrapped := make([]string, len(parts))
	for i, p := range parts {
		if sep == " & " && strings.Contains(p, " | ") && !strings.HasPrefix(p, "{") {
			p = "(" + p + ")"
		}
		wrapped[i] = p
	}
	return strings.Join(wrapped, sep)
}

func wrapElement(t string) string {
	if strings.HasPrefix(t, "{") {
		return t
	}
	if strings.Contains(t, " | ") || strings.Contains(t, " & ") {
		return "(" + t + ")"
	}
	return t
}

func repeat(s string, n uint64) []string {
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, s)
	}
	return out
}

func dedupe(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := parts[:0:0]
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
