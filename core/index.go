package core

import (
	"fmt"
	"iter"

	"github.com/bndr/gotabulate"
)

// Index maps each marker to the ordered set of declarations carrying it.
// An Index obtained from a Registry is never modified; merges produce a new Index.
type Index[D comparable] struct {
	order []TypeRef
	decls map[TypeRef][]D
	seen  map[TypeRef]map[D]struct{}
	// owned marks seen sets copied by this clone and safe to write.
	owned map[TypeRef]bool
}

// TypeIndex, FieldIndex and MethodIndex are the three projections kept by a Registry.
type (
	TypeIndex   = Index[TypeRef]
	FieldIndex  = Index[FieldRef]
	MethodIndex = Index[MethodRef]
)

func newIndex[D comparable]() *Index[D] {
	return &Index[D]{
		decls: make(map[TypeRef][]D),
		seen:  make(map[TypeRef]map[D]struct{}),
		owned: make(map[TypeRef]bool),
	}
}

// Markers returns markers in the order they were first added.
func (x *Index[D]) Markers() []TypeRef {
	if x == nil {
		return nil
	}
	out := make([]TypeRef, len(x.order))
	copy(out, x.order)
	return out
}

// Get returns the declarations carrying marker, in insertion order.
func (x *Index[D]) Get(marker TypeRef) []D {
	if x == nil {
		return nil
	}
	src := x.decls[marker]
	if len(src) == 0 {
		return nil
	}
	out := make([]D, len(src))
	copy(out, src)
	return out
}

func (x *Index[D]) Contains(marker TypeRef, decl D) bool {
	if x == nil {
		return false
	}
	_, ok := x.seen[marker][decl]
	return ok
}

// Len is the number of markers with at least one declaration.
func (x *Index[D]) Len() int {
	if x == nil {
		return 0
	}
	return len(x.order)
}

// Size is the total number of (marker, declaration) pairs.
func (x *Index[D]) Size() int {
	if x == nil {
		return 0
	}
	n := 0
	for _, d := range x.decls {
		n += len(d)
	}
	return n
}

// All yields every (marker, declaration) pair in insertion order.
func (x *Index[D]) All() iter.Seq2[TypeRef, D] {
	return func(yield func(TypeRef, D) bool) {
		if x == nil {
			return
		}
		for _, m := range x.order {
			for _, d := range x.decls[m] {
				if !yield(m, d) {
					return
				}
			}
		}
	}
}

// AsMap returns a detached copy keyed by marker.
func (x *Index[D]) AsMap() map[TypeRef][]D {
	out := make(map[TypeRef][]D, x.Len())
	if x == nil {
		return out
	}
	for _, m := range x.order {
		out[m] = x.Get(m)
	}
	return out
}

// PrettyTable renders the index as a grid with one row per pair.
func (x *Index[D]) PrettyTable() string {
	if x.Len() == 0 {
		return "{}"
	}
	var rows [][]any
	for m, d := range x.All() {
		rows = append(rows, []any{m.String(), fmt.Sprintf("%v", d)})
	}
	t := gotabulate.Create(rows)
	t.SetHeaders([]string{"marker", "declaration"})
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(85)
	return t.Render("grid")
}

// indexEntry is one marker of an Index as rendered in JSON.
type indexEntry struct {
	Marker       string   `json:"marker"`
	Declarations []string `json:"declarations"`
}

// PrettyJson renders the index as a list of markers with their declarations,
// both in insertion order.
func (x *Index[D]) PrettyJson(indent ...string) string {
	out := make([]indexEntry, 0, x.Len())
	for _, m := range x.Markers() {
		entry := indexEntry{Marker: m.String()}
		for _, d := range x.decls[m] {
			entry.Declarations = append(entry.Declarations, fmt.Sprintf("%v", d))
		}
		out = append(out, entry)
	}
	return prettyJson(out, indent...)
}

// clone copies the top-level structure; declaration slices are shared until appended to.
func (x *Index[D]) clone() *Index[D] {
	out := newIndex[D]()
	if x == nil {
		return out
	}
	out.order = append(out.order, x.order...)
	for m, d := range x.decls {
		out.decls[m] = d[:len(d):len(d)]
	}
	for m, s := range x.seen {
		out.seen[m] = s
	}
	return out
}

// add inserts decl under marker and reports whether it was new.
// Only call add on an Index returned by clone or newIndex that has not been published.
func (x *Index[D]) add(marker TypeRef, decl D) bool {
	if _, ok := x.seen[marker][decl]; ok {
		return false
	}
	if !x.owned[marker] {
		prev := x.seen[marker]
		next := make(map[D]struct{}, len(prev)+1)
		for k := range prev {
			next[k] = struct{}{}
		}
		x.seen[marker] = next
		x.owned[marker] = true
	}
	x.seen[marker][decl] = struct{}{}

	if _, ok := x.decls[marker]; !ok {
		x.order = append(x.order, marker)
	}
	x.decls[marker] = append(x.decls[marker], decl)
	return true
}
