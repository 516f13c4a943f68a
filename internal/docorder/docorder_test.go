package docorder

import (
	"reflect"
	"testing"
)

const sample = `
openapi: 3.0.3
paths:
  /zeta:
    get: {}
  /alpha/{id}:
    post: {}
components:
  schemas:
    Zoo:
      type: object
      properties:
        name: {type: string}
        age: {type: integer}
        "a/b": {type: string}
    Apple:
      type: string
tags:
  - name: first
    x-order: {b: 1, a: 2}
`

func TestParse_KeysFollowDeclaration(t *testing.T) {
	t.Parallel()
	ix, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		pointer string
		present []string
		want    []string
	}{
		{"", []string{"tags", "components", "paths", "openapi"}, []string{"openapi", "paths", "components", "tags"}},
		{"/paths", []string{"/alpha/{id}", "/zeta"}, []string{"/zeta", "/alpha/{id}"}},
		{"/components/schemas", []string{"Apple", "Zoo"}, []string{"Zoo", "Apple"}},
		{"/components/schemas/Zoo/properties", []string{"age", "a/b", "name"}, []string{"name", "age", "a/b"}},
		{"/tags/0/x-order", []string{"a", "b"}, []string{"b", "a"}},
	}
	for _, c := range cases {
		if got := ix.Keys(c.pointer, c.present); !reflect.DeepEqual(got, c.want) {
			t.Errorf("Keys(%q) = %v, want %v", c.pointer, got, c.want)
		}
	}
	if !ix.Has(Join("/paths", "/alpha/{id}")) {
		t.Fatalf("expected escaped path pointer to be indexed")
	}
}

func TestKeys_UnknownFallBackToSorted(t *testing.T) {
	t.Parallel()
	ix, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := ix.Keys("/components/schemas", []string{"Zeta", "Apple", "Beta", "Zoo"})
	want := []string{"Zoo", "Apple", "Beta", "Zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	var nilIndex *Index
	if got := nilIndex.Keys("/x", []string{"b", "a"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("nil index should sort, got %v", got)
	}
	if got := ix.Keys(Detached, []string{"b", "a"}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("detached pointer should sort, got %v", got)
	}
}

func TestAlias(t *testing.T) {
	t.Parallel()
	ix, err := Parse([]byte("definitions:\n  B: {properties: {y: {}, x: {}}}\n  A: {}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ix.Alias("/components/schemas", "/definitions")
	if got := ix.Keys("/components/schemas", []string{"A", "B"}); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("alias root: %v", got)
	}
	if got := ix.Keys("/components/schemas/B/properties", []string{"x", "y"}); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Fatalf("alias nested: %v", got)
	}
}

func TestFromRefAndJoin(t *testing.T) {
	t.Parallel()
	if got := FromRef("#/components/schemas/Pet"); got != "/components/schemas/Pet" {
		t.Fatalf("FromRef local: %q", got)
	}
	if got := FromRef("other.yaml#/Pet"); got != Detached {
		t.Fatalf("FromRef external: %q", got)
	}
	if got := Join("/paths", "/pets/{id}", "get"); got != "/paths/~1pets~1{id}/get" {
		t.Fatalf("Join: %q", got)
	}
	if got := Join(Detached, "x"); got != Detached {
		t.Fatalf("Join detached: %q", got)
	}
	toks, err := Tokens("/paths/~1pets~1{id}/get")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if !reflect.DeepEqual(toks, []string{"paths", "/pets/{id}", "get"}) {
		t.Fatalf("tokens: %v", toks)
	}
}
