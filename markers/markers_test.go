package markers

import (
	"go/token"
	"reflect"
	"testing"

	"github.com/fmeng/anstore/core"
)

const annsSource = `package anns

// Store marks a persisted entity.
// +anstore:marker
// +anstore:target=type;field
// +anstore:requires=">= 0.1.0"
type Store struct {
	Table   string
	Shard   int      ` + "`marker:\"shard,optional\"`" + `
	Tags    []string
	Options map[string]any
	Ratio   *float64
	Ignored string ` + "`marker:\"-\"`" + `
	hidden  string
}

// +anstore:marker
// +anstore:target={type,field,method}
type Audit struct {
	Level string
}

// Table is a scalar marker.
// +anstore:marker
// +anstore:target=type
type Table string

// +anstore:marker
// +anstore:target=field
type Flag struct{}

// Audited is another name for Audit.
type Audited Audit

// Remote inherits from another package.
// +anstore:target=method
type Remote other.Store
`

func collectAnns(t *testing.T) map[string]*TypeInfo {
	t.Helper()
	file, err := NewCollector().ParseSource("anns.go", annsSource)
	if err != nil {
		t.Fatalf("Failed to parse source: %v", err)
	}
	out := make(map[string]*TypeInfo)
	for _, ti := range file.Types {
		out[ti.Name] = ti
	}
	return out
}

func mustDefinition(t *testing.T, info *TypeInfo) *Definition {
	t.Helper()
	def, err := NewDefinition(core.TypeRef{PkgPath: "shop/anns", Name: info.Name}, info)
	if err != nil {
		t.Fatalf("NewDefinition(%s) failed: %v", info.Name, err)
	}
	return def
}

func TestNewDefinition(t *testing.T) {
	types := collectAnns(t)

	store := mustDefinition(t, types["Store"])
	if !store.Declared || !store.IsMarker() {
		t.Error("Store should be a declared marker")
	}
	if want := core.NewPlacementSet(core.PlacementType, core.PlacementField); store.Targets != want {
		t.Errorf("Store targets = %s, want %s", store.Targets, want)
	}
	if store.Requires != ">= 0.1.0" {
		t.Errorf("Store requires = %q", store.Requires)
	}
	if store.Description != "Store marks a persisted entity." {
		t.Errorf("Store description = %q", store.Description)
	}
	if want := []string{"table", "shard", "tags", "options", "ratio"}; !reflect.DeepEqual(store.Order, want) {
		t.Errorf("Store arguments = %v, want %v", store.Order, want)
	}
	if !store.Fields["shard"].Optional || !store.Fields["ratio"].Optional || store.Fields["table"].Optional {
		t.Errorf("unexpected optional flags: %+v", store.Fields)
	}
	if store.FieldNames["shard"] != "Shard" {
		t.Errorf("FieldNames[shard] = %q", store.FieldNames["shard"])
	}

	audit := mustDefinition(t, types["Audit"])
	if audit.Targets != core.NewPlacementSet(core.PlacementType, core.PlacementField, core.PlacementMethod) {
		t.Errorf("Audit targets = %s", audit.Targets)
	}

	table := mustDefinition(t, types["Table"])
	if !table.Scalar || table.Fields[ScalarArgument].Type != StringType {
		t.Errorf("Table should be a scalar string marker: %+v", table)
	}

	flag := mustDefinition(t, types["Flag"])
	if len(flag.Fields) != 0 {
		t.Errorf("Flag should take no arguments: %+v", flag.Fields)
	}
}

func TestDefinition_Inherit(t *testing.T) {
	types := collectAnns(t)
	audit := mustDefinition(t, types["Audit"])

	audited := mustDefinition(t, types["Audited"])
	if audited.IsMarker() {
		t.Fatal("Audited is not a marker until its base is resolved")
	}
	if audited.BaseName != "Audit" {
		t.Fatalf("BaseName = %q, want Audit", audited.BaseName)
	}
	audited.Inherit(audit)
	if !audited.IsMarker() || audited.Declared {
		t.Error("Audited should be an inherited marker")
	}
	if audited.Targets != audit.Targets {
		t.Errorf("Audited targets = %s, want %s", audited.Targets, audit.Targets)
	}
	if *audited.Base != audit.Marker {
		t.Errorf("Base = %v", audited.Base)
	}
	if _, ok := audited.Fields["level"]; !ok {
		t.Error("Audited should inherit the level argument")
	}

	remote := mustDefinition(t, types["Remote"])
	if remote.BaseName != "other.Store" {
		t.Fatalf("BaseName = %q, want other.Store", remote.BaseName)
	}
	remote.Inherit(mustDefinition(t, types["Store"]))
	if remote.Targets != core.NewPlacementSet(core.PlacementMethod) {
		t.Errorf("own targets must win, got %s", remote.Targets)
	}
	if remote.Requires != ">= 0.1.0" {
		t.Errorf("Requires should be inherited, got %q", remote.Requires)
	}
}

func TestNewDefinition_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name: "unknown target",
			source: `package x
// +anstore:marker
// +anstore:target=package
type M struct{}
`,
		},
		{
			name: "unsupported field type",
			source: `package x
// +anstore:marker
// +anstore:target=type
type M struct {
	Ch chan int
}
`,
		},
		{
			name: "non string map key",
			source: `package x
// +anstore:marker
// +anstore:target=type
type M map[int]string
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := NewCollector().ParseSource("x.go", tt.source)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := NewDefinition(core.TypeRef{PkgPath: "x", Name: "M"}, file.Types[0]); err == nil {
				t.Error("NewDefinition() should fail")
			}
		})
	}
}

func TestDefinition_Parse(t *testing.T) {
	types := collectAnns(t)
	store := mustDefinition(t, types["Store"])

	tests := []struct {
		name     string
		input    string
		expected map[string]any
		wantErr  bool
	}{
		{
			name:     "empty marker",
			input:    "+Store",
			expected: map[string]any{},
		},
		{
			name:     "qualified name",
			input:    "+anns.Store=table=users",
			expected: map[string]any{"table": "users"},
		},
		{
			name:     "multiple args",
			input:    `+Store=table="user accounts",shard=5,ratio=0.25`,
			expected: map[string]any{"table": "user accounts", "shard": int64(5), "ratio": 0.25},
		},
		{
			name:     "quoted value with separators",
			input:    `+Store=table="a,b=c"`,
			expected: map[string]any{"table": "a,b=c"},
		},
		{
			name:     "slice with braces",
			input:    "+Store=tags={hot, cold}",
			expected: map[string]any{"tags": []any{"hot", "cold"}},
		},
		{
			name:     "slice with semicolons",
			input:    "+Store=tags=hot;cold",
			expected: map[string]any{"tags": []any{"hot", "cold"}},
		},
		{
			name:     "map of any",
			input:    `+Store=options={ttl:30,cached:true,name:"x",nested:{a,b}}`,
			expected: map[string]any{"options": map[string]any{"ttl": int64(30), "cached": true, "name": "x", "nested": []any{"a", "b"}}},
		},
		{
			name:    "unknown argument",
			input:   "+Store=owner=me",
			wantErr: true,
		},
		{
			name:    "bad integer",
			input:   "+Store=shard=two",
			wantErr: true,
		},
		{
			name:    "duplicate argument",
			input:   "+Store=table=a,table=b",
			wantErr: true,
		},
		{
			name:    "bare value for multi-argument marker",
			input:   "+Store=users",
			wantErr: true,
		},
		{
			name:    "name mismatch",
			input:   "+Audit=level=high",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := store.Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if !reflect.DeepEqual(result, tt.expected) {
					t.Errorf("Parse() = %+v, expected %+v", result, tt.expected)
				}
			}
		})
	}
}

func TestDefinition_ParseShorthand(t *testing.T) {
	types := collectAnns(t)

	audit := mustDefinition(t, types["Audit"])
	got, err := audit.Parse(`+Audit="high"`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{"level": "high"}) {
		t.Errorf("Parse() = %v", got)
	}

	table := mustDefinition(t, types["Table"])
	got, err = table.Parse("+Table=users")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{ScalarArgument: "users"}) {
		t.Errorf("Parse() = %v", got)
	}

	flag := mustDefinition(t, types["Flag"])
	if _, err := flag.Parse("+Flag=x"); err == nil {
		t.Error("Flag takes no arguments")
	}
}

func TestParseComment(t *testing.T) {
	tests := []struct {
		raw    string
		want   Comment
		wantOk bool
	}{
		{raw: "// +Store", want: Comment{Name: "Store", Text: "+Store"}, wantOk: true},
		{raw: "//+anns.Store=table=users", want: Comment{Name: "anns.Store", Args: "table=users", Text: "+anns.Store=table=users"}, wantOk: true},
		{raw: "// +anstore:target=type;field", want: Comment{Name: "anstore:target", Args: "type;field", Text: "+anstore:target=type;field"}, wantOk: true},
		{raw: "// +kubebuilder:validation:Optional", wantOk: false},
		{raw: "// +build linux", wantOk: false},
		{raw: "// Store is a marker", wantOk: false},
		{raw: "/* +Store */", wantOk: false},
		{raw: "// +", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseComment(tt.raw, token.Position{})
			if ok != tt.wantOk {
				t.Fatalf("ParseComment(%q) ok = %v, want %v", tt.raw, ok, tt.wantOk)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseComment(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}

	c, _ := ParseComment("// +anns.Store", token.Position{})
	if c.Qualifier() != "anns" || c.Local() != "Store" || c.Namespaced() {
		t.Errorf("unexpected accessors for %+v", c)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(nil); err == nil {
		t.Error("Register(nil) should fail")
	}

	a := &Definition{Marker: core.TypeRef{PkgPath: "p", Name: "A"}}
	b := &Definition{Marker: core.TypeRef{PkgPath: "p", Name: "B"}}
	registry.MustRegister(a)
	registry.MustRegister(b)
	registry.MustRegister(&Definition{Marker: a.Marker, Description: "replaced"})

	if registry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", registry.Len())
	}
	if got := registry.Lookup(a.Marker); got == nil || got.Description != "replaced" {
		t.Errorf("Lookup() = %+v", got)
	}
	if got := registry.Lookup(core.TypeRef{Name: "missing"}); got != nil {
		t.Errorf("Lookup() of unknown marker = %+v", got)
	}
	defs := registry.ListDefinitions()
	if len(defs) != 2 || defs[0].Marker != a.Marker || defs[1].Marker != b.Marker {
		t.Errorf("ListDefinitions() order is wrong: %+v", defs)
	}
}
