package spec

import (
	"fmt"
	"strings"
)

// Result data model shared by the pipeline, the emitter and the CLI.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	PUT     HttpMethod = "put"
	POST    HttpMethod = "post"
	DELETE  HttpMethod = "delete"
	OPTIONS HttpMethod = "options"
	HEAD    HttpMethod = "head"
	PATCH   HttpMethod = "patch"
	TRACE   HttpMethod = "trace"
)

// Methods is the fixed order in which operations of a path item are visited.
var Methods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

// ParseMethod returns the verb named by s, ignoring case.
func ParseMethod(s string) (HttpMethod, error) {
	m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown HTTP method %q", s)
}

// Endpoint is one (path, method) operation and the models of its bodies.
type Endpoint struct {
	ID          string     `json:"id"` // lowercase(path::method)
	Title       string     `json:"title"`
	Path        string     `json:"path"`
	Method      HttpMethod `json:"method"`
	Summary     string     `json:"summary,omitempty"`
	OperationID string     `json:"operationId,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	// RequestModel is empty when the operation has no request body schema.
	RequestModel string `json:"requestModel,omitempty"`
	// ResponseModels maps status codes to model ids.
	ResponseModels map[string]string `json:"responseModels"`
}

// Model is one exported TypeScript declaration.
type Model struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Code          string   `json:"code"`
	AutoGenerated bool     `json:"autoGenerated"`
	Dependencies  []string `json:"dependencies"`
}

// ExportName is the symbol the model's code exports.
func (m *Model) ExportName() string {
	if m.AutoGenerated {
		return "_" + m.Title
	}
	return m.Title
}

type Result struct {
	Models    map[string]*Model    `json:"models"`
	Endpoints map[string]*Endpoint `json:"endpoints"`

	modelOrder    []string
	endpointOrder []string
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{Models: map[string]*Model{}, Endpoints: map[string]*Endpoint{}}
}

// AddModel stores m, keeping the first model seen for an id.
func (r *Result) AddModel(m *Model) {
	if _, ok := r.Models[m.ID]; ok {
		return
	}
	r.Models[m.ID] = m
	r.modelOrder = append(r.modelOrder, m.ID)
}

// AddEndpoint stores e, keeping the first endpoint seen for an id.
func (r *Result) AddEndpoint(e *Endpoint) {
	if _, ok := r.Endpoints[e.ID]; ok {
		return
	}
	r.Endpoints[e.ID] = e
	r.endpointOrder = append(r.endpointOrder, e.ID)
}

// ModelIDs returns model ids in generation order.
func (r *Result) ModelIDs() []string { return append([]string(nil), r.modelOrder...) }

// EndpointIDs returns endpoint ids in traversal order.
func (r *Result) EndpointIDs() []string { return append([]string(nil), r.endpointOrder...) }
