// Package codegen assembles the synthetic JSON-Schema document from the
// normalized schemas and obtains TypeScript source from a compiler.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/tsapidocs/internal/ident"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
)

// TopLevelTitle is the title of the synthetic wrapper schema. Its declaration
// is dropped from the extracted models.
const TopLevelTitle = "_toplevelobject_"

// ErrGeneration marks failures raised by the compiler.
var ErrGeneration = errors.New("generation failure")

// TopLevelID is the model id the wrapper declaration compiles to.
func TopLevelID() string {
	return strings.ToLower(ident.ToSafeIdentifier(TopLevelTitle))
}

// Definition is one named schema keyed by its lowercase id.
type Definition struct {
	ID     string
	Schema *jsonschema.Schema
}

// Options configure the compiler.
type Options struct {
	BannerComment               string
	DeclareExternallyReferenced bool
	EnableConstEnums            bool
	UnreachableDefinitions      bool
	StrictIndexSignatures       bool
	Format                      bool
	IgnoreMinAndMaxItems        bool
	// MaxTupleItems bounds tuple expansion when min/max items are honored.
	MaxTupleItems int
}

// DefaultOptions is the fixed configuration used for every document.
func DefaultOptions() Options {
	return Options{
		BannerComment:               "/* eslint-disable */\n/**\n * This file was automatically generated by tsapidocs.\n * DO NOT MODIFY IT BY HAND.\n */",
		DeclareExternallyReferenced: true,
		EnableConstEnums:            true,
		UnreachableDefinitions:      false,
		StrictIndexSignatures:       false,
		Format:                      false,
		IgnoreMinAndMaxItems:        true,
		MaxTupleItems:               20,
	}
}

// Compiler turns a JSON-Schema document into TypeScript source.
type Compiler interface {
	Compile(ctx context.Context, root *jsonschema.Schema, opts Options) (string, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, root *jsonschema.Schema, opts Options) (string, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, root *jsonschema.Schema, opts Options) (string, error) {
	return f(ctx, root, opts)
}

// BuildRoot returns the wrapper schema. Both properties and definitions map
// every id to the schema itself so the compiler declares each one.
func BuildRoot(defs []Definition) *jsonschema.Schema {
	root := jsonschema.NewObject()
	root.Title = TopLevelTitle
	root.AdditionalProperties = &jsonschema.Additional{Allowed: jsonschema.Bool(false)}
	for _, d := range defs {
		root.SetProperty(d.ID, d.Schema)
		root.SetDefinition(d.ID, d.Schema)
	}
	return root
}

// Generate compiles defs with the default options.
func Generate(ctx context.Context, c Compiler, defs []Definition) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: no compiler configured", ErrGeneration)
	}
	src, err := c.Compile(ctx, BuildRoot(defs), DefaultOptions())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return src, nil
}
