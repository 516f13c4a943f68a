package spec

import (
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/tsapidocs/internal/docorder"
)

// Document is a dereferenced API description in one of the two supported
// shapes. Exactly one of V3 and V2 is set.
type Document struct {
	Location string
	V3       *openapi3.T
	V2       *openapi2.T
	// Upgraded is set when V3 was produced from a Swagger 2.0 source.
	Upgraded bool

	order *docorder.Index
}

// Legacy reports whether the document has the Swagger 2.0 shape.
func (d *Document) Legacy() bool { return d != nil && d.V2 != nil }

// Order returns the declaration order of the raw document, or nil when it is
// unknown and keys are visited sorted.
func (d *Document) Order() *docorder.Index {
	if d == nil {
		return nil
	}
	return d.order
}

// FromV3 wraps an already loaded and dereferenced OpenAPI 3 document. raw is
// the source it was loaded from and may be nil.
func FromV3(doc *openapi3.T, raw []byte) (*Document, error) {
	order, err := orderOf(raw)
	if err != nil {
		return nil, err
	}
	return &Document{V3: doc, order: order}, nil
}

// FromV2 wraps a Swagger 2.0 document, resolving its local references.
func FromV2(doc *openapi2.T, raw []byte) (*Document, error) {
	order, err := orderOf(raw)
	if err != nil {
		return nil, err
	}
	if err := resolveLegacyRefs(doc); err != nil {
		return nil, err
	}
	return &Document{V2: doc, order: order}, nil
}

func orderOf(raw []byte) (*docorder.Index, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	order, err := docorder.Parse(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: "failed to read document order", Cause: err}
	}
	return order, nil
}
