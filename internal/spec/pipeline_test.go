package spec

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/tsapidocs/internal/codegen"
	"github.com/mark3labs/tsapidocs/internal/jsonschema"
	"github.com/mark3labs/tsapidocs/internal/tscompiler"
)

func build(t *testing.T, doc *Document) *Result {
	t.Helper()
	res, err := Build(context.Background(), doc, tscompiler.New())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return res
}

func TestBuild_Models(t *testing.T) {
	t.Parallel()
	res := build(t, loadDoc(t, sampleSpec))

	wantIDs := []string{"pets_200_responsebody", "pet", "user", "pets_requestbody"}
	if got := res.ModelIDs(); !reflect.DeepEqual(got, wantIDs) {
		t.Fatalf("model ids: got %v want %v", got, wantIDs)
	}
	if _, ok := res.Models[codegen.TopLevelID()]; ok {
		t.Fatalf("the wrapper must not become a model")
	}

	want := map[string]string{
		"pet":  "export interface Pet {\n  name: string;\n  owner?: User;\n  [k: string]: unknown;\n}\n",
		"user": "export interface User {\n  pets?: Pet[];\n  [k: string]: unknown;\n}\n",
		"pets_200_responsebody": "/**\n * 200 response body for GET /pets\n */\n" +
			"export type _Pets_200_ResponseBody = Pet[];\n",
		"pets_requestbody": "/**\n * Request body for POST /pets\n */\n" +
			"export interface _Pets_RequestBody {\n  name?: string;\n  [k: string]: unknown;\n}\n",
	}
	for id, code := range want {
		m := res.Models[id]
		if m == nil {
			t.Fatalf("missing model %s", id)
		}
		if m.Code != code {
			t.Errorf("%s code:\n%s\nwant:\n%s", id, m.Code, code)
		}
	}

	body := res.Models["pets_requestbody"]
	if !body.AutoGenerated || body.Title != "Pets_RequestBody" || body.ExportName() != "_Pets_RequestBody" {
		t.Fatalf("unexpected request model %+v", body)
	}
	if !reflect.DeepEqual(res.Models["pets_200_responsebody"].Dependencies, []string{"pet", "user"}) {
		t.Fatalf("unexpected deps %v", res.Models["pets_200_responsebody"].Dependencies)
	}
	if deps := res.Models["pets_requestbody"].Dependencies; deps == nil || len(deps) != 0 {
		t.Fatalf("expected empty, non-nil dependencies, got %#v", deps)
	}
}

func TestBuild_ReferentialClosure(t *testing.T) {
	t.Parallel()
	for name, src := range map[string]string{"current": sampleSpec, "legacy": sampleSwagger} {
		res := build(t, loadDoc(t, src))
		for _, id := range res.ModelIDs() {
			m := res.Models[id]
			if m.ID != strings.ToLower(m.ID) {
				t.Errorf("%s: id %q not lowercase", name, m.ID)
			}
			if !strings.HasSuffix(m.Code, "\n") || strings.HasSuffix(m.Code, "\n\n") {
				t.Errorf("%s: %s must end with exactly one newline", name, id)
			}
			for _, dep := range m.Dependencies {
				if dep == id {
					t.Errorf("%s: %s depends on itself", name, id)
				}
				if _, ok := res.Models[dep]; !ok {
					t.Errorf("%s: %s depends on unknown %s", name, id, dep)
				}
			}
		}
		for _, id := range res.EndpointIDs() {
			ep := res.Endpoints[id]
			if ep.RequestModel != "" {
				if _, ok := res.Models[ep.RequestModel]; !ok {
					t.Errorf("%s: %s request model %s missing", name, id, ep.RequestModel)
				}
			}
			for status, model := range ep.ResponseModels {
				if _, ok := res.Models[model]; !ok {
					t.Errorf("%s: %s %s model %s missing", name, id, status, model)
				}
			}
		}
	}
}

func TestBuild_MutualRecursion(t *testing.T) {
	t.Parallel()
	res := build(t, loadDoc(t, `openapi: 3.0.0
info: { title: t, version: "1" }
paths: {}
components:
  schemas:
    A:
      type: object
      additionalProperties: false
      properties:
        b: { $ref: '#/components/schemas/B' }
    B:
      type: object
      additionalProperties: false
      properties:
        a: { $ref: '#/components/schemas/A' }
`))
	if res.Models["a"].Code != "export interface A {\n  b?: B;\n}\n" {
		t.Fatalf("unexpected A:\n%s", res.Models["a"].Code)
	}
	if !reflect.DeepEqual(res.Models["b"].Dependencies, []string{"a"}) {
		t.Fatalf("unexpected B deps %v", res.Models["b"].Dependencies)
	}
}

func TestBuild_ConstEnum(t *testing.T) {
	t.Parallel()
	res := build(t, loadDoc(t, `swagger: "2.0"
info: { title: t, version: "1" }
paths: {}
definitions:
  Color:
    type: string
    enum: [red, green]
    x-enum-varnames: [Red, Green]
`))
	want := "export const enum Color {\n  Red = \"red\",\n  Green = \"green\"\n}\n"
	if got := res.Models["color"].Code; got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuild_CompilerFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	failing := codegen.CompilerFunc(func(context.Context, *jsonschema.Schema, codegen.Options) (string, error) {
		return "", boom
	})
	res, err := Build(context.Background(), loadDoc(t, sampleSpec), failing)
	if res != nil || !errors.Is(err, codegen.ErrGeneration) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped generation failure, got %v", err)
	}
}

func TestBuild_UnbalancedSourceIsAnError(t *testing.T) {
	t.Parallel()
	broken := codegen.CompilerFunc(func(context.Context, *jsonschema.Schema, codegen.Options) (string, error) {
		return "export interface Pet {\n  name: string;\n", nil
	})
	if _, err := Build(context.Background(), loadDoc(t, sampleSpec), broken); err == nil {
		t.Fatalf("expected an error for unbalanced source")
	}
}

func TestBuild_MissingModelBreaksClosure(t *testing.T) {
	t.Parallel()
	partial := codegen.CompilerFunc(func(context.Context, *jsonschema.Schema, codegen.Options) (string, error) {
		return "export interface Pet {\n  owner?: User;\n}\n", nil
	})
	_, err := Build(context.Background(), loadDoc(t, sampleSpec), partial)
	if !errors.Is(err, codegen.ErrGeneration) {
		t.Fatalf("expected closure failure, got %v", err)
	}
}

func TestBuild_PathsStartingWithDigits(t *testing.T) {
	t.Parallel()
	res := build(t, loadDoc(t, `openapi: 3.0.0
info: { title: t, version: "1" }
paths:
  /2fa/verify:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                code: { type: string }
      responses:
        "204": { description: ok }
  /404:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: { type: string }
`))
	want := map[string]string{
		"faverify_requestbody": "/**\n * Request body for POST /2fa/verify\n */\n" +
			"export interface _FaVerify_RequestBody {\n  code?: string;\n  [k: string]: unknown;\n}\n",
		"_200_responsebody": "/**\n * 200 response body for GET /404\n */\n" +
			"export type __200_ResponseBody = string;\n",
	}
	if len(res.Models) != len(want) {
		t.Fatalf("models: got %v", res.ModelIDs())
	}
	for id, code := range want {
		m := res.Models[id]
		if m == nil {
			t.Fatalf("missing model %s (have %v)", id, res.ModelIDs())
		}
		if m.Code != code {
			t.Errorf("%s code:\n%s\nwant:\n%s", id, m.Code, code)
		}
	}
	if got := res.Endpoints["/2fa/verify::post"].RequestModel; got != "faverify_requestbody" {
		t.Fatalf("request model %q", got)
	}
	if got := res.Endpoints["/404::get"].ResponseModels["200"]; got != "_200_responsebody" {
		t.Fatalf("response model %q", got)
	}
}
