package spec

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/depgraph"
)

// Build runs normalization, code generation and extraction over a loaded
// document. Any failure aborts the build; no partial result is returned.
func Build(ctx context.Context, doc *Document, compiler codegen.Compiler, opts ...BuildOption) (*Result, error) {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if doc != nil {
		log = log.WithField("location", doc.Location)
	}

	norm, err := Normalize(doc, opts...)
	if err != nil {
		return nil, err
	}
	source, err := codegen.Generate(ctx, compiler, norm.Definitions())
	if err != nil {
		return nil, err
	}
	models, err := ExtractModels(source, norm)
	if err != nil {
		return nil, fmt.Errorf("extract models: %w", err)
	}

	result := NewResult()
	for _, m := range models {
		result.AddModel(m)
	}
	for _, ep := range norm.Endpoints {
		result.AddEndpoint(ep)
	}
	if err := checkClosure(result); err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(result.Models))
	for id, m := range result.Models {
		deps[id] = m.Dependencies
	}
	for _, group := range depgraph.New(deps).Cycles() {
		log.WithField("models", group).Debug("dependency cycle")
	}
	log.WithFields(logrus.Fields{
		"models":    len(result.Models),
		"endpoints": len(result.Endpoints),
	}).Info("built models")
	return result, nil
}

// checkClosure verifies that every id a result mentions names a model.
func checkClosure(r *Result) error {
	for _, id := range r.ModelIDs() {
		for _, dep := range r.Models[id].Dependencies {
			if _, ok := r.Models[dep]; !ok {
				return fmt.Errorf("%w: model %q depends on missing model %q", codegen.ErrGeneration, id, dep)
			}
		}
	}
	for _, id := range r.EndpointIDs() {
		ep := r.Endpoints[id]
		if ep.RequestModel != "" {
			if _, ok := r.Models[ep.RequestModel]; !ok {
				return fmt.Errorf("%w: endpoint %q references missing model %q", codegen.ErrGeneration, id, ep.RequestModel)
			}
		}
		for status, model := range ep.ResponseModels {
			if _, ok := r.Models[model]; !ok {
				return fmt.Errorf("%w: endpoint %q response %s references missing model %q", codegen.ErrGeneration, id, status, model)
			}
		}
	}
	return nil
}
