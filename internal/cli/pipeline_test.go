package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/tsapidocs"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      summary: Hello\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"          content:\n" +
	"            application/json:\n" +
	"              schema:\n" +
	"                $ref: '#/components/schemas/Greeting'\n" +
	"components:\n" +
	"  schemas:\n" +
	"    Greeting:\n" +
	"      type: object\n" +
	"      properties:\n" +
	"        text: { type: string }\n"

func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func writeSpec(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(path, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return dir, path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return captureStdout(func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("execute %v: %v", args, err)
		}
	})
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	dir, specPath := writeSpec(t)
	outDir := filepath.Join(dir, "out")
	schemaPath := filepath.Join(dir, "schema.json")

	out := execute(t, "generate", "--input", specPath, "--out", outDir, "--emit-schema", schemaPath, "--dry-run")
	if !strings.Contains(out, "Planned writes to") || !strings.Contains(out, "- models/greeting.ts") {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	if !strings.Contains(out, "Planned schema write to") {
		t.Fatalf("expected planned schema write, got: %s", out)
	}
	// Dry-run should not create the directory
	if _, err := os.Stat(outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
	if _, err := os.Stat(schemaPath); err == nil {
		t.Fatalf("expected no schema write on dry-run")
	}
}

func TestGeneratePipeline_Writes(t *testing.T) {
	dir, specPath := writeSpec(t)
	outDir := filepath.Join(dir, "out")
	schemaPath := filepath.Join(dir, "schema.json")

	out := execute(t, "generate", "--input", specPath, "--out", outDir, "--bundle", "--emit-schema", schemaPath)
	if !strings.Contains(out, "Wrote 1 models to") {
		t.Fatalf("unexpected output: %s", out)
	}
	bundle, err := os.ReadFile(filepath.Join(outDir, "models.ts"))
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	if !strings.Contains(string(bundle), "export interface Greeting {") {
		t.Fatalf("unexpected bundle:\n%s", bundle)
	}
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if !strings.Contains(string(schema), `"title": "_toplevelobject_"`) {
		t.Fatalf("unexpected schema:\n%s", schema)
	}
}

func TestGeneratePipeline_PrintsResultWithoutOut(t *testing.T) {
	_, specPath := writeSpec(t)
	out := execute(t, "generate", "--input", specPath)
	for _, want := range []string{`"greeting": {`, `"/hello::get": {`, `"200": "greeting"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in output:\n%s", want, out)
		}
	}
}

func TestGeneratePipeline_SpecErrorIsUsageError(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate", "--input", filepath.Join(t.TempDir(), "missing.yaml")})
	err := root.Execute()
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "Location:") {
		t.Fatalf("expected location in message: %v", err)
	}
}

func TestEndpoints_Lines(t *testing.T) {
	_, specPath := writeSpec(t)
	out := execute(t, "endpoints", "--input", specPath)
	if out != "GET /hello -> - / 200:greeting\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEndpoints_Filters(t *testing.T) {
	_, specPath := writeSpec(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--methods", "GET"}, "GET /hello -> - / 200:greeting\n"},
		{[]string{"--methods", "post"}, ""},
		{[]string{"--paths", "^/hel"}, "GET /hello -> - / 200:greeting\n"},
		{[]string{"--paths", "^/admin"}, ""},
	}
	for _, tt := range tests {
		args := append([]string{"endpoints", "--input", specPath}, tt.args...)
		if out := execute(t, args...); out != tt.want {
			t.Fatalf("%v: unexpected output %q", tt.args, out)
		}
	}
}

func TestPrintEndpoints(t *testing.T) {
	t.Parallel()
	r, err := tsapidocs.Parse(context.Background(), []byte(`swagger: "2.0"
info: { title: t, version: "1" }
paths:
  /pets:
    post:
      parameters:
        - in: body
          name: body
          schema: { type: object }
      responses:
        "201":
          description: created
          schema: { type: string }
        "400":
          description: bad
          schema: { type: string }
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var buf bytes.Buffer
	printEndpoints(&buf, r)
	want := "POST /pets -> pets_requestbody / 201:pets_201_responsebody / 400:pets_400_responsebody\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}
