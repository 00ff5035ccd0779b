package introspect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmeng/anstore/core"
)

const (
	shop    = "example.com/shop"
	anns    = shop + "/anns"
	entity  = shop + "/entity"
	billing = shop + "/billing"
	tags    = "example.com/ext/tags"
)

func ref(pkg, name string) core.TypeRef {
	return core.TypeRef{PkgPath: pkg, Name: name}
}

func newShopSource(t *testing.T, opts ...Option) *Source {
	t.Helper()
	src, err := New(append([]Option{WithModule("testdata/shop")}, opts...)...)
	require.NoError(t, err)
	return src
}

func TestNew_RequiresModule(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(WithModule("testdata/missing"))
	assert.Error(t, err)
}

func TestSource_MetaMarked(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	t.Run("whole module", func(t *testing.T) {
		got, err := src.MetaMarked(ctx, []string{shop})
		require.NoError(t, err)
		assert.Equal(t, []core.TypeRef{
			ref(anns, "Store"),
			ref(anns, "Audit"),
			ref(anns, "ClassOnly"),
			ref(anns, "FieldOnly"),
			ref(anns, "MethodOnly"),
			ref(anns, "Broken"),
			ref(anns, "Future"),
			ref(anns, "Audited"),
			ref(anns, "Table"),
			ref(tags, "Label"),
		}, got)
	})

	t.Run("markers used from a subpackage", func(t *testing.T) {
		got, err := src.MetaMarked(ctx, []string{entity})
		require.NoError(t, err)
		assert.Equal(t, []core.TypeRef{
			ref(anns, "Audited"),
			ref(anns, "Table"),
			ref(anns, "Store"),
			ref(anns, "ClassOnly"),
			ref(anns, "Broken"),
			ref(anns, "Future"),
			ref(anns, "FieldOnly"),
			ref(anns, "Audit"),
			ref(anns, "MethodOnly"),
		}, got)
	})

	t.Run("unresolvable root", func(t *testing.T) {
		_, err := src.MetaMarked(ctx, []string{"example.org/elsewhere"})
		assert.ErrorIs(t, err, errUnresolved)

		_, err = src.MetaMarked(ctx, []string{shop + "/missing"})
		assert.Error(t, err)
	})
}

func TestSource_Placements(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	got, err := src.Placements(ctx, ref(anns, "Store"))
	require.NoError(t, err)
	assert.Equal(t, core.NewPlacementSet(core.PlacementType, core.PlacementField), got)

	got, err = src.Placements(ctx, ref(anns, "Audited"))
	require.NoError(t, err)
	assert.Equal(t, core.NewPlacementSet(core.PlacementType, core.PlacementField, core.PlacementMethod), got)

	got, err = src.Placements(ctx, ref(tags, "Label"))
	require.NoError(t, err)
	assert.Equal(t, core.NewPlacementSet(core.PlacementType), got)

	for _, name := range []string{"Broken", "Future", "Plain", "Missing"} {
		_, err := src.Placements(ctx, ref(anns, name))
		assert.True(t, core.IsMalformedMarkerErr(err), "%s: %v", name, err)
	}
}

func TestSource_Declarations(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	types, err := src.TypesWith(ctx, ref(anns, "Store"), []string{shop})
	require.NoError(t, err)
	assert.Equal(t, []core.TypeRef{ref(billing, "Invoice"), ref(entity, "UserEntity")}, types)

	fields, err := src.FieldsWith(ctx, ref(anns, "Audit"), []string{shop})
	require.NoError(t, err)
	assert.Equal(t, []core.FieldRef{
		{Owner: ref(billing, "Invoice"), Name: "Total"},
		{Owner: ref(entity, "UserEntity"), Name: "Email"},
	}, fields)

	methods, err := src.MethodsWith(ctx, ref(anns, "Audit"), []string{shop})
	require.NoError(t, err)
	assert.Equal(t, []core.MethodRef{
		{Receiver: ref(billing, "Invoice"), Name: "Pay", PointerReceiver: true},
		{Receiver: ref(entity, "UserEntity"), Name: "Rename", PointerReceiver: true},
	}, methods)

	// A field carrying a type-only marker is still reported as a field use.
	fields, err = src.FieldsWith(ctx, ref(anns, "ClassOnly"), []string{entity})
	require.NoError(t, err)
	assert.Equal(t, []core.FieldRef{{Owner: ref(entity, "UserEntity"), Name: "Name"}}, fields)

	// testdata, _ prefixed and nested module directories are never scanned.
	types, err = src.TypesWith(ctx, ref(anns, "ClassOnly"), []string{shop})
	require.NoError(t, err)
	assert.Equal(t, []core.TypeRef{ref(entity, "UserEntity")}, types)

	types, err = src.TypesWith(ctx, ref(anns, "Store"), []string{billing, shop})
	require.NoError(t, err)
	assert.Equal(t, []core.TypeRef{ref(billing, "Invoice"), ref(entity, "UserEntity")}, types, "overlapping roots are read once")
}

func TestSource_WithTests(t *testing.T) {
	src := newShopSource(t, WithTests(true))

	types, err := src.TypesWith(context.Background(), ref(anns, "ClassOnly"), []string{entity})
	require.NoError(t, err)
	assert.Equal(t, []core.TypeRef{ref(entity, "UserEntity"), ref(entity, "userFixture")}, types)
}

func TestSource_InstanceOf(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	tests := []struct {
		name   string
		marker core.TypeRef
		decl   core.Declaration
		want   map[string]any
	}{
		{
			name:   "type",
			marker: ref(anns, "Store"),
			decl:   ref(entity, "UserEntity"),
			want:   map[string]any{"table": "users"},
		},
		{
			name:   "optional argument",
			marker: ref(anns, "Store"),
			decl:   ref(billing, "Invoice"),
			want:   map[string]any{"table": "invoices", "shard": int64(2)},
		},
		{
			name:   "field without arguments",
			marker: ref(anns, "Audit"),
			decl:   core.FieldRef{Owner: ref(billing, "Invoice"), Name: "Total"},
			want:   map[string]any{},
		},
		{
			name:   "field",
			marker: ref(anns, "Audit"),
			decl:   core.FieldRef{Owner: ref(entity, "UserEntity"), Name: "Email"},
			want:   map[string]any{"level": "high"},
		},
		{
			name:   "method shorthand",
			marker: ref(anns, "Audit"),
			decl:   core.MethodRef{Receiver: ref(entity, "UserEntity"), Name: "Rename", PointerReceiver: true},
			want:   map[string]any{"level": "low"},
		},
		{
			name:   "inherited marker",
			marker: ref(anns, "Audited"),
			decl:   ref(entity, "Order"),
			want:   map[string]any{"level": "low"},
		},
		{
			name:   "scalar marker",
			marker: ref(anns, "Table"),
			decl:   ref(entity, "Order"),
			want:   map[string]any{"value": "orders"},
		},
		{
			name:   "marker from a replaced module",
			marker: ref(tags, "Label"),
			decl:   ref(billing, "Invoice"),
			want:   map[string]any{"value": "finance"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := src.InstanceOf(ctx, tt.marker, tt.decl)
			require.NoError(t, err)
			assert.Equal(t, tt.marker, inst.Marker())
			assert.Equal(t, tt.want, inst.Values())
		})
	}

	inst, err := src.InstanceOf(ctx, ref(anns, "Store"), ref(entity, "UserEntity"))
	require.NoError(t, err)
	assert.Equal(t, `+anns.Store=table="users"`, inst.Text())
	assert.Equal(t, 6, inst.Position().Line)

	_, err = src.InstanceOf(ctx, ref(anns, "Store"), ref(entity, "Order"))
	assert.Error(t, err, "Order does not carry Store")

	_, err = src.InstanceOf(ctx, ref(anns, "Store"), nil)
	assert.Error(t, err)
}

func TestSource_InvalidUsage(t *testing.T) {
	src, err := New(WithModule("testdata/bad"))
	require.NoError(t, err)

	_, err = src.InstanceOf(context.Background(), ref(anns, "Store"), ref("example.com/bad/orders", "Bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown argument: owner")
}

func TestSource_Definitions(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	def, err := src.Definition(ctx, ref(anns, "Audited"))
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.False(t, def.Declared)
	assert.Equal(t, ref(anns, "Audit"), *def.Base)

	def, err = src.Definition(ctx, ref(anns, "Plain"))
	require.NoError(t, err)
	assert.Nil(t, def)

	var names []string
	for _, d := range src.Definitions() {
		names = append(names, d.Marker.Name)
	}
	assert.ElementsMatch(t, []string{"Audit", "Audited"}, names)

	src.Reset()
	assert.Empty(t, src.Definitions())
	assert.Equal(t, 0, src.cache.Len())
}

func TestSource_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t, WithConcurrency(2), WithCacheSize(16))

	var wg sync.WaitGroup
	results := make([][]core.TypeRef, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = src.TypesWith(ctx, ref(anns, "Store"), []string{shop})
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Len(t, results[0], 2)
	assert.Equal(t, 3, src.cache.Len(), "anns, billing and entity are parsed once")
}

func TestSource_RegistryIntegration(t *testing.T) {
	ctx := context.Background()
	src := newShopSource(t)

	var skipped []string
	reg, err := core.New(src, core.WithMalformedMarkerHandler(func(e *core.MalformedMarkerError) {
		skipped = append(skipped, e.Marker.Name)
	}))
	require.NoError(t, err)

	require.NoError(t, reg.AddScanRoots(ctx, entity))
	units, err := reg.MarkedUnits(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 9)

	require.NoError(t, reg.AddScanRoots(ctx, shop))
	units, err = reg.MarkedUnits(ctx)
	require.NoError(t, err)

	type row struct {
		marker string
		decl   string
	}
	var got []row
	for _, u := range units {
		got = append(got, row{u.MarkerType().Name, u.Declaration().String()})
	}
	assert.Equal(t, []row{
		// entity first
		{"Audited", "example.com/shop/entity.Order"},
		{"Table", "example.com/shop/entity.Order"},
		{"Store", "example.com/shop/entity.UserEntity"},
		{"Store", "example.com/shop/entity.UserEntity.ID"},
		{"ClassOnly", "example.com/shop/entity.UserEntity"},
		{"FieldOnly", "example.com/shop/entity.UserEntity.ID"},
		{"Audit", "example.com/shop/entity.UserEntity.Email"},
		{"Audit", "(*example.com/shop/entity.UserEntity).Rename"},
		{"MethodOnly", "(*example.com/shop/entity.UserEntity).Rename"},
		// then what the rest of the module adds
		{"Store", "example.com/shop/billing.Invoice"},
		{"Audit", "example.com/shop/billing.Invoice.Total"},
		{"Audit", "(*example.com/shop/billing.Invoice).Pay"},
		{"Label", "example.com/shop/billing.Invoice"},
	}, got)

	assert.Equal(t, []string{"Broken", "Future", "Broken", "Future"}, skipped)
	assert.Equal(t, []string{shop, entity}, reg.ScannedRoots())
}

func TestSource_RegistryFailure(t *testing.T) {
	ctx := context.Background()
	src, err := New(WithModule("testdata/bad"))
	require.NoError(t, err)

	reg, err := core.New(src)
	require.NoError(t, err)

	err = reg.AddScanRoots(ctx, "example.com/bad")
	require.Error(t, err)
	assert.True(t, core.IsIntrospectionErr(err))

	err = reg.AddScanRoots(ctx, "example.org/elsewhere")
	assert.True(t, core.IsIntrospectionErr(err))
}

func TestSource_CanceledReadsAreNotRemembered(t *testing.T) {
	src := newShopSource(t)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Definition(canceled, ref(anns, "Store"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, isDeclarationErr(err))
	assert.Empty(t, src.failed)

	_, err = src.Placements(canceled, ref(anns, "Audit"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, core.IsMalformedMarkerErr(err))

	failing, err := core.New(src)
	require.NoError(t, err)
	err = failing.AddScanRoots(canceled, entity)
	require.Error(t, err)
	assert.True(t, core.IsIntrospectionErr(err), "%v", err)

	// A later merge with a live context sees every marker again.
	var skipped []string
	reg, err := core.New(src, core.WithMalformedMarkerHandler(func(e *core.MalformedMarkerError) {
		skipped = append(skipped, e.Marker.Name)
	}))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, reg.AddScanRoots(ctx, billing, entity))

	types, err := reg.TypeIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.TypeRef{ref(billing, "Invoice"), ref(entity, "UserEntity")}, types.Get(ref(anns, "Store")))
	assert.Equal(t, []string{"Broken", "Future"}, skipped)

	got, err := src.Placements(ctx, ref(anns, "Audit"))
	require.NoError(t, err)
	assert.Equal(t, core.NewPlacementSet(core.PlacementType, core.PlacementField, core.PlacementMethod), got)
}

func TestIsDeclarationErr(t *testing.T) {
	decl := &declarationError{err: errors.New("bad target")}
	assert.True(t, isDeclarationErr(decl))
	assert.True(t, isDeclarationErr(fmt.Errorf("definition: %w", decl)))
	assert.False(t, isDeclarationErr(context.Canceled))
	assert.False(t, isDeclarationErr(nil))
	assert.Equal(t, "bad target", decl.Error())
}
