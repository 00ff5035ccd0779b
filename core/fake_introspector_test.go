package core

import (
	"context"
	"go/token"
	"strings"
	"sync"
)

type fakeMarker struct {
	ref        TypeRef
	root       string
	placements PlacementSet
	err        error
}

type fakeUsage struct {
	root   string
	marker TypeRef
	decl   Declaration
	values map[string]any
}

// fakeIntrospector serves markers and usages from memory and counts scans per root.
type fakeIntrospector struct {
	mu      sync.Mutex
	markers []fakeMarker
	usages  []fakeUsage
	fail    map[string]error
	scans   map[string]int
	calls   []string
}

func newFakeIntrospector() *fakeIntrospector {
	return &fakeIntrospector{
		fail:  make(map[string]error),
		scans: make(map[string]int),
	}
}

func (f *fakeIntrospector) marker(root string, ref TypeRef, placements ...Placement) *fakeIntrospector {
	f.markers = append(f.markers, fakeMarker{ref: ref, root: root, placements: NewPlacementSet(placements...)})
	return f
}

func (f *fakeIntrospector) malformed(root string, ref TypeRef, err error) *fakeIntrospector {
	f.markers = append(f.markers, fakeMarker{ref: ref, root: root, err: err})
	return f
}

func (f *fakeIntrospector) use(root string, marker TypeRef, decl Declaration, values map[string]any) *fakeIntrospector {
	f.usages = append(f.usages, fakeUsage{root: root, marker: marker, decl: decl, values: values})
	return f
}

// failWhen makes op ("types", "fields", "methods", "meta", "placements", "instance") fail for marker.
func (f *fakeIntrospector) failWhen(op string, marker TypeRef, err error) *fakeIntrospector {
	f.fail[op+"|"+marker.String()] = err
	return f
}

func (f *fakeIntrospector) scanCount(root string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans[root]
}

func (f *fakeIntrospector) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func inScope(root string, scope []string) bool {
	for _, s := range scope {
		if root == s || strings.HasPrefix(root, s+"/") {
			return true
		}
	}
	return false
}

func (f *fakeIntrospector) record(op string, marker TypeRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.fail[op+"|"+marker.String()]
}

func (f *fakeIntrospector) MetaMarked(_ context.Context, scope []string) ([]TypeRef, error) {
	if err := f.record("meta", TypeRef{}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	for _, s := range scope {
		f.scans[s]++
	}
	f.mu.Unlock()
	// Markers declared in scope or used from it are visible.
	var out []TypeRef
	for _, m := range f.markers {
		if inScope(m.root, scope) || f.usedIn(m.ref, scope) {
			out = append(out, m.ref)
		}
	}
	return out, nil
}

func (f *fakeIntrospector) usedIn(marker TypeRef, scope []string) bool {
	for _, u := range f.usages {
		if u.marker == marker && inScope(u.root, scope) {
			return true
		}
	}
	return false
}

func (f *fakeIntrospector) Placements(_ context.Context, marker TypeRef) (PlacementSet, error) {
	if err := f.record("placements", marker); err != nil {
		return 0, err
	}
	for _, m := range f.markers {
		if m.ref == marker {
			return m.placements, m.err
		}
	}
	return 0, nil
}

func fakeWith[D Declaration](f *fakeIntrospector, op string, marker TypeRef, scope []string) ([]D, error) {
	if err := f.record(op, marker); err != nil {
		return nil, err
	}
	var out []D
	for _, u := range f.usages {
		if u.marker != marker || !inScope(u.root, scope) {
			continue
		}
		if d, ok := u.decl.(D); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeIntrospector) TypesWith(_ context.Context, marker TypeRef, scope []string) ([]TypeRef, error) {
	return fakeWith[TypeRef](f, "types", marker, scope)
}

func (f *fakeIntrospector) FieldsWith(_ context.Context, marker TypeRef, scope []string) ([]FieldRef, error) {
	return fakeWith[FieldRef](f, "fields", marker, scope)
}

func (f *fakeIntrospector) MethodsWith(_ context.Context, marker TypeRef, scope []string) ([]MethodRef, error) {
	return fakeWith[MethodRef](f, "methods", marker, scope)
}

func (f *fakeIntrospector) InstanceOf(_ context.Context, marker TypeRef, decl Declaration) (Instance, error) {
	if err := f.record("instance", marker); err != nil {
		return Instance{}, err
	}
	for _, u := range f.usages {
		if u.marker == marker && u.decl == decl {
			return NewInstance(marker, u.values, "", token.Position{}), nil
		}
	}
	return NewInstance(marker, nil, "", token.Position{}), nil
}
