package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "ftp://example.com/spec.yaml")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v (%T)", err, err)
	}
}

func TestLoad_EmptyInput(t *testing.T) {
	t.Parallel()
	var se *SpecError
	if _, err := Load(context.Background(), "  "); !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v", err)
	}
	if _, err := LoadData(context.Background(), nil, "mem"); !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	if err == nil {
		t.Fatalf("expected network error")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
}

func TestLoad_HTTPRetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleSpec))
	}))
	defer srv.Close()

	doc, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithBackoffBase(time.Millisecond))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.V3 == nil || doc.Location != srv.URL+"/openapi.yaml" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestLoad_HTTPClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL, WithBackoffBase(time.Millisecond))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestLoad_V3_InvalidSpec(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := strings.TrimSpace(`openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses: {}
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatalf("expected validation error for incomplete responses")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != ValidationError && se.Code != ParseError {
		t.Fatalf("expected ValidationError/ParseError, got %v", se.Code)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoad_V3_ExternalFileRef(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	shared := "Pet:\n  type: object\n  properties:\n    name: { type: string }\n"
	root := `openapi: 3.0.0
info: { title: t, version: "1" }
paths: {}
components:
  schemas:
    Pet:
      $ref: './shared.yaml#/Pet'
`
	if err := os.WriteFile(filepath.Join(dir, "shared.yaml"), []byte(shared), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	path := filepath.Join(dir, "root.yaml")
	if err := os.WriteFile(path, []byte(root), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pet := doc.V3.Components.Schemas["Pet"]
	if pet == nil || pet.Value == nil || pet.Value.Properties["name"] == nil {
		t.Fatalf("expected external ref to be resolved")
	}
}

func TestLoad_V2_KeepsLegacyShape(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "swagger.yaml")
	if err := os.WriteFile(path, []byte(sampleSwagger), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !doc.Legacy() || doc.V3 != nil {
		t.Fatalf("expected a Swagger 2.0 document")
	}
	pet := doc.V2.Definitions["Pet"].Value
	user := doc.V2.Definitions["User"].Value
	if pet.Properties["owner"].Value != user {
		t.Fatalf("references to the same definition must share one node")
	}
	if user.Properties["pets"].Value.Items.Value != pet {
		t.Fatalf("cyclic references must resolve to the shared node")
	}
	resp := doc.V2.Paths["/pets"].Post.Responses["201"].Schema
	if resp.Value != pet {
		t.Fatalf("response schema not resolved")
	}
}

func TestLoad_V2_Upgrade(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "swagger.yaml")
	content := strings.TrimSpace(`swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello":
    get:
      responses:
        "200":
          description: ok
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := Load(context.Background(), path, WithUpgradeLegacy(true))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.V3 == nil || !doc.Upgraded {
		t.Fatalf("expected an upgraded document")
	}
	if !strings.HasPrefix(doc.V3.OpenAPI, "3.") {
		t.Fatalf("expected OpenAPI v3, got %q", doc.V3.OpenAPI)
	}
}

func TestLoad_V2_MissingInfo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "swagger-bad.yaml")
	content := strings.TrimSpace(`swagger: "2.0"
paths: {}
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, opts := range [][]Option{nil, {WithUpgradeLegacy(true)}} {
		_, err := Load(context.Background(), path, opts...)
		var se *SpecError
		if !errors.As(err, &se) {
			t.Fatalf("expected SpecError, got %v", err)
		}
		if se.Code != ValidationError || se.Location != path {
			t.Fatalf("expected ValidationError at %s, got %v at %s", path, se.Code, se.Location)
		}
	}
}

func TestLoad_UnknownVersion(t *testing.T) {
	t.Parallel()
	_, err := LoadData(context.Background(), []byte("openapi: 2.5\ninfo: {}\n"), "mem.yaml")
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
