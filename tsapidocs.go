// Package tsapidocs compiles OpenAPI 3 and Swagger 2.0 documents into
// TypeScript model declarations, one per named schema, plus an endpoint index
// mapping each operation to the models of its request and response bodies.
package tsapidocs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
	"github.com/mark3labs/tsapidocs/internal/spec"
	"github.com/mark3labs/tsapidocs/internal/tscompiler"
)

type (
	Result     = spec.Result
	Model      = spec.Model
	Endpoint   = spec.Endpoint
	HttpMethod = spec.HttpMethod
	Document   = spec.Document
	SpecError  = spec.SpecError
	ErrorCode  = spec.ErrorCode

	// Compiler, CompilerFunc, CompilerOptions and Schema let callers plug in
	// their own TypeScript generator with WithCompiler.
	Compiler        = codegen.Compiler
	CompilerFunc    = codegen.CompilerFunc
	CompilerOptions = codegen.Options
	Schema          = jsonschema.Schema
)

// Error codes carried by SpecError.
const (
	InputError      = spec.InputError
	NetworkError    = spec.NetworkError
	ParseError      = spec.ParseError
	ValidationError = spec.ValidationError
	ConversionError = spec.ConversionError
	ResolutionError = spec.ResolutionError
)

// ErrGeneration wraps failures of the code generator.
var ErrGeneration = codegen.ErrGeneration

type config struct {
	log      logrus.FieldLogger
	compiler codegen.Compiler
	loader   []spec.Option
	build    []spec.BuildOption
}

// Option configures Parse.
type Option func(*config)

// WithLogger routes diagnostics to l. The default discards them.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCompiler replaces the TypeScript generator.
func WithCompiler(cc Compiler) Option {
	return func(c *config) {
		if cc != nil {
			c.compiler = cc
		}
	}
}

// WithUpgradeLegacy converts Swagger 2.0 input to OpenAPI 3 before
// compiling. By default Swagger documents keep their own shape.
func WithUpgradeLegacy(up bool) Option {
	return func(c *config) { c.loader = append(c.loader, spec.WithUpgradeLegacy(up)) }
}

// WithHTTPTimeout bounds each attempt to fetch a remote document.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) { c.loader = append(c.loader, spec.WithHTTPTimeout(d)) }
}

// WithMaxRetries sets how often a transient fetch failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.loader = append(c.loader, spec.WithMaxRetries(n)) }
}

// WithAllowFileRefs permits external file references in local documents.
func WithAllowFileRefs(allow bool) Option {
	return func(c *config) { c.loader = append(c.loader, spec.WithAllowFileRefs(allow)) }
}

// WithIncludeTags keeps only operations carrying at least one of tags.
func WithIncludeTags(tags ...string) Option {
	return func(c *config) { c.build = append(c.build, spec.WithIncludeTags(tags)) }
}

// WithExcludeTags drops operations carrying any of tags.
func WithExcludeTags(tags ...string) Option {
	return func(c *config) { c.build = append(c.build, spec.WithExcludeTags(tags)) }
}

// WithMethods keeps only operations using one of the given HTTP methods.
// An unknown method makes Parse fail with an InputError.
func WithMethods(methods ...string) Option {
	return func(c *config) { c.build = append(c.build, spec.WithMethods(methods)) }
}

// WithPathPatterns keeps only paths matching at least one regular
// expression. A pattern that does not compile makes Parse fail with an
// InputError.
func WithPathPatterns(patterns ...string) Option {
	return func(c *config) { c.build = append(c.build, spec.WithPathPatterns(patterns)) }
}

func newConfig(opts []Option) *config {
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &config{log: l}
	for _, opt := range opts {
		opt(c)
	}
	if c.compiler == nil {
		c.compiler = tscompiler.New(tscompiler.WithLogger(c.log))
	}
	return c
}

// Parse builds the models and endpoints of an API description. input is a
// file path or http(s) URL, raw document bytes, a *openapi3.T, a *openapi2.T
// or a loaded *Document. Any failure aborts with no partial result.
func Parse(ctx context.Context, input any, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	doc, err := resolve(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	return build(ctx, doc, cfg)
}

// ParseLocation loads the document at a path or URL and parses it.
func ParseLocation(ctx context.Context, location string, opts ...Option) (*Result, error) {
	return Parse(ctx, location, opts...)
}

// ParseData parses document bytes; location names them in errors and may be
// empty.
func ParseData(ctx context.Context, data []byte, location string, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	doc, err := spec.LoadData(ctx, data, location, cfg.loaderOptions()...)
	if err != nil {
		return nil, err
	}
	return build(ctx, doc, cfg)
}

func (c *config) loaderOptions() []spec.Option {
	return append([]spec.Option{spec.WithLogger(c.log)}, c.loader...)
}

func resolve(ctx context.Context, input any, cfg *config) (*Document, error) {
	switch v := input.(type) {
	case string:
		return spec.Load(ctx, v, cfg.loaderOptions()...)
	case []byte:
		return spec.LoadData(ctx, v, "", cfg.loaderOptions()...)
	case *openapi3.T:
		if v == nil {
			break
		}
		return spec.FromV3(v, nil)
	case *openapi2.T:
		if v == nil {
			break
		}
		return spec.FromV2(v, nil)
	case *Document:
		if v == nil {
			break
		}
		return v, nil
	default:
		return nil, &SpecError{Code: spec.InputError, Message: fmt.Sprintf("tsapidocs: unsupported input type %T", input)}
	}
	return nil, &SpecError{Code: spec.InputError, Message: "tsapidocs: nil document"}
}

func build(ctx context.Context, doc *Document, cfg *config) (*Result, error) {
	opts := append([]spec.BuildOption{spec.WithBuildLogger(cfg.log)}, cfg.build...)
	return spec.Build(ctx, doc, cfg.compiler, opts...)
}
