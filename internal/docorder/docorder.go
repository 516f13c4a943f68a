// Package docorder records the declaration order of mapping keys in a raw
// OpenAPI document. Decoded documents keep their mappings in Go maps, so the
// order in which the author wrote paths, schemas and properties is recovered
// from the yaml.v3 node tree and looked up by JSON pointer.
package docorder

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"gopkg.in/yaml.v3"
)

// Detached is the pointer of nodes whose position in the raw document is
// unknown, such as schemas loaded from another file.
const Detached = "\x00detached"

// Index maps a JSON pointer to the keys of the mapping found there.
type Index struct {
	keys    map[string][]string
	aliases []alias
}

type alias struct{ from, to string }

// Parse builds an index from YAML or JSON document bytes.
func Parse(data []byte) (*Index, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return FromNode(&root), nil
}

// FromNode builds an index from an already decoded node tree.
func FromNode(root *yaml.Node) *Index {
	ix := &Index{keys: make(map[string][]string)}
	active := make(map[*yaml.Node]bool)
	ix.walk(root, "", active)
	return ix
}

func (ix *Index) walk(n *yaml.Node, pointer string, active map[*yaml.Node]bool) {
	if n == nil || active[n] {
		return
	}
	active[n] = true
	defer delete(active, n)
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			ix.walk(c, pointer, active)
		}
	case yaml.AliasNode:
		ix.walk(n.Alias, pointer, active)
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			keys = append(keys, k)
			ix.walk(n.Content[i+1], Join(pointer, k), active)
		}
		ix.keys[pointer] = keys
	case yaml.SequenceNode:
		for i, c := range n.Content {
			ix.walk(c, Join(pointer, strconv.Itoa(i)), active)
		}
	}
}

// Alias makes lookups under the pointer prefix from resolve under to. It is
// used when a converted document moved a section, e.g. legacy definitions
// that now live under components/schemas.
func (ix *Index) Alias(from, to string) {
	if ix == nil {
		return
	}
	ix.aliases = append(ix.aliases, alias{from: from, to: to})
}

func (ix *Index) lookup(pointer string) ([]string, bool) {
	if ix == nil || pointer == Detached {
		return nil, false
	}
	if keys, ok := ix.keys[pointer]; ok {
		return keys, true
	}
	for _, a := range ix.aliases {
		if pointer == a.from || strings.HasPrefix(pointer, a.from+"/") {
			keys, ok := ix.keys[a.to+strings.TrimPrefix(pointer, a.from)]
			if ok {
				return keys, true
			}
		}
	}
	return nil, false
}

// Has reports whether a mapping was recorded at pointer.
func (ix *Index) Has(pointer string) bool {
	_, ok := ix.lookup(pointer)
	return ok
}

// Keys returns present ordered by declaration at pointer. Keys the index does
// not know follow in lexical order.
func (ix *Index) Keys(pointer string, present []string) []string {
	out := make([]string, len(present))
	copy(out, present)
	declared, _ := ix.lookup(pointer)
	pos := make(map[string]int, len(declared))
	for i, k := range declared {
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// KeysOf returns the keys of m ordered by declaration at pointer.
func KeysOf[V any](ix *Index, pointer string, m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return ix.Keys(pointer, keys)
}

// Join appends escaped reference tokens to pointer.
func Join(pointer string, tokens ...string) string {
	if pointer == Detached {
		return Detached
	}
	var b strings.Builder
	b.WriteString(pointer)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(jsonpointer.Escape(t))
	}
	return b.String()
}

// FromRef returns the pointer named by a local reference such as
// "#/components/schemas/Pet". Anything else is Detached.
func FromRef(ref string) string {
	if !strings.HasPrefix(ref, "#") {
		return Detached
	}
	frag := ref[1:]
	if unescaped, err := url.PathUnescape(frag); err == nil {
		frag = unescaped
	}
	if frag != "" && !strings.HasPrefix(frag, "/") {
		return Detached
	}
	return frag
}

// Tokens splits a pointer into its decoded reference tokens.
func Tokens(pointer string) ([]string, error) {
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, err
	}
	return p.DecodedTokens(), nil
}
