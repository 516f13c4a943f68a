package schemagraph

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/tsapidocs/internal/docorder"
)

// Locations remembers where in the raw document each schema node is written,
// so properties can be visited in the order the author declared them.
type Locations struct {
	order *docorder.Index
	at    map[*openapi3.Schema]string
}

// NewLocations returns an empty location table backed by order, which may be nil.
func NewLocations(order *docorder.Index) *Locations {
	return &Locations{order: order, at: make(map[*openapi3.Schema]string)}
}

// PointerOf returns where ref's target is declared when seen at pointer:
// a local reference names the declaration site directly.
func PointerOf(ref *openapi3.SchemaRef, pointer string) string {
	if ref != nil && ref.Ref != "" {
		return docorder.FromRef(ref.Ref)
	}
	return pointer
}

// Walk records pointers for ref and everything below it. Nodes that already
// have a location keep it.
func (l *Locations) Walk(ref *openapi3.SchemaRef, pointer string) {
	if !IsDefined(ref) {
		return
	}
	type item struct {
		ref     *openapi3.SchemaRef
		pointer string
	}
	stack := []item{{ref, pointer}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := it.ref.Value
		if _, seen := l.at[n]; seen {
			continue
		}
		p := PointerOf(it.ref, it.pointer)
		l.at[n] = p
		children := Children(n, l.Properties)
		for i := len(children) - 1; i >= 0; i-- {
			e := children[i]
			stack = append(stack, item{e.Ref, docorder.Join(p, e.Tokens...)})
		}
	}
}

// Pointer returns the recorded location of s, or docorder.Detached.
func (l *Locations) Pointer(s *openapi3.Schema) string {
	if p, ok := l.at[s]; ok {
		return p
	}
	return docorder.Detached
}

// Properties lists the property names of s in declaration order. It
// satisfies PropertyOrder.
func (l *Locations) Properties(s *openapi3.Schema) []string {
	return docorder.KeysOf(l.order, docorder.Join(l.Pointer(s), "properties"), s.Properties)
}

func itoa(i int) string { return strconv.Itoa(i) }
