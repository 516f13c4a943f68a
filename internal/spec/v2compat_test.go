package spec

import (
	"strings"
	"testing"
)

func TestV2Compat_MultipleBodyMerged(t *testing.T) {
	t.Parallel()
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: body
        name: a
        required: true
        schema: { type: string }
      - in: query
        name: q
        type: string
      - in: body
        name: b
        schema: { type: integer }
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !changed {
		t.Fatalf("expected changes")
	}
	s := string(out)
	if strings.Count(s, "in: body") != 1 || !strings.Contains(s, "name: body") {
		t.Fatalf("expected merged single body parameter, got:\n%s", s)
	}
	// merged body comes first, properties keep parameter order
	if strings.Index(s, "name: body") > strings.Index(s, "name: q") {
		t.Fatalf("expected merged body before remaining params, got:\n%s", s)
	}
	if strings.Index(s, " a:") > strings.Index(s, " b:") {
		t.Fatalf("expected property a before b, got:\n%s", s)
	}
	if !strings.Contains(s, "required:\n") || !strings.Contains(s, "- a") {
		t.Fatalf("expected a to be required, got:\n%s", s)
	}
}

func TestV2Compat_BodyAndFormData_ToFormData(t *testing.T) {
	t.Parallel()
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /upload:
    post:
      parameters:
      - in: body
        name: desc
        schema: { $ref: '#/definitions/Desc' }
      - in: formData
        name: file
        type: file
        required: true
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !changed {
		t.Fatalf("expected changes")
	}
	s := string(out)
	if strings.Contains(s, "in: body") {
		t.Fatalf("expected no body params after conversion to formData, got:\n%s", s)
	}
	if !strings.Contains(s, "multipart/form-data") {
		t.Fatalf("expected consumes multipart/form-data, got:\n%s", s)
	}
	if !strings.Contains(s, "name: desc") {
		t.Fatalf("expected desc to survive as formData, got:\n%s", s)
	}
}

func TestV2Compat_Untouched(t *testing.T) {
	t.Parallel()
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: body
        name: a
        schema: { type: string }
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if changed || string(out) != string(in) {
		t.Fatalf("expected input returned unchanged")
	}
}
