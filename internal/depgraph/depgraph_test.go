package depgraph

import (
	"reflect"
	"testing"
)

func TestOrder_DependenciesFirst(t *testing.T) {
	t.Parallel()
	g := New(map[string][]string{
		"pet":   {"owner", "tag"},
		"owner": {"address"},
		"tag":   nil,
	})
	got := g.Order()
	want := []string{"address", "owner", "tag", "pet"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order: got %v want %v", got, want)
	}
	if c := g.Cycles(); len(c) != 0 {
		t.Fatalf("expected no cycles, got %v", c)
	}
}

func TestOrder_CollapsesCycles(t *testing.T) {
	t.Parallel()
	g := New(map[string][]string{
		"a":    {"b"},
		"b":    {"a"},
		"c":    {"a"},
		"node": {"node"},
	})
	got := g.Order()
	pos := map[string]int{}
	for i, id := range got {
		pos[id] = i
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 ids, got %v", got)
	}
	if pos["a"]+1 != pos["b"] {
		t.Fatalf("expected cycle members adjacent in id order, got %v", got)
	}
	if pos["c"] < pos["b"] {
		t.Fatalf("expected c after its cyclic dependency, got %v", got)
	}
	want := [][]string{{"a", "b"}, {"node"}}
	if c := g.Cycles(); !reflect.DeepEqual(c, want) {
		t.Fatalf("cycles: got %v want %v", c, want)
	}
}

func TestNew_Empty(t *testing.T) {
	t.Parallel()
	g := New(nil)
	if g.Len() != 0 || len(g.Order()) != 0 || len(g.Cycles()) != 0 {
		t.Fatalf("expected empty graph")
	}
}
