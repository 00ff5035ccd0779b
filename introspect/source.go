package introspect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fmeng/anstore/core"
	"github.com/fmeng/anstore/markers"
)

// Source is an Introspector over Go source code. It parses the packages of the
// configured modules on demand and keeps the parsed packages in an LRU cache.
// A Source is safe for concurrent use.
type Source struct {
	opts      options
	loaded    []Module
	modules   moduleSet
	collector *markers.Collector
	cache     *lru.Cache[string, *Package]
	locker    *keyLocker
	logger    *zap.Logger

	mu          sync.Mutex
	definitions *markers.Registry
	failed      map[core.TypeRef]error
	plain       map[core.TypeRef]bool
}

var _ core.Introspector = (*Source)(nil)

// New creates a Source. At least one module is required.
func New(opts ...Option) (*Source, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.moduleDirs) == 0 {
		return nil, errors.New("introspect: no module configured")
	}

	var modules moduleSet
	for _, dir := range o.moduleDirs {
		mods, err := LoadModules(dir)
		if err != nil {
			return nil, fmt.Errorf("introspect: %w", err)
		}
		modules = append(modules, mods...)
	}

	cache, err := lru.New[string, *Package](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}

	s := &Source{
		opts:      o,
		loaded:    modules,
		modules:   modules.sorted(),
		collector: markers.NewCollector(),
		cache:     cache,
		locker:    newKeyLocker(),
		logger:    o.logger.Named("introspect"),
	}
	s.resetDefinitions()
	for _, m := range modules {
		s.logger.Debug("loaded module", zap.String("path", m.Path), zap.String("dir", m.Dir))
	}
	return s, nil
}

// Modules returns the loaded modules, main module first.
func (s *Source) Modules() []Module {
	return append([]Module(nil), s.loaded...)
}

// Reset drops every parsed package and definition so later calls read the
// sources again.
func (s *Source) Reset() {
	s.cache.Purge()
	s.resetDefinitions()
}

func (s *Source) resetDefinitions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions = markers.NewRegistry()
	s.failed = make(map[core.TypeRef]error)
	s.plain = make(map[core.TypeRef]bool)
}

// Definitions returns the marker definitions resolved so far, in resolution order.
func (s *Source) Definitions() []*markers.Definition {
	return s.registry().ListDefinitions()
}

func (s *Source) registry() *markers.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.definitions
}

// MetaMarked returns the markers declared in scope followed, per file, by the
// markers used there.
func (s *Source) MetaMarked(ctx context.Context, scope []string) ([]core.TypeRef, error) {
	pkgs, err := s.scopePackages(ctx, scope)
	if err != nil {
		return nil, err
	}

	var out []core.TypeRef
	seen := make(map[core.TypeRef]bool)
	add := func(ref core.TypeRef) {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	uses := func(pkg *Package, file *markers.File, comments markers.Comments) error {
		for _, c := range comments {
			ref, ok, err := s.markerOf(ctx, pkg, file, c)
			if err != nil {
				return err
			}
			if ok {
				add(ref)
			}
		}
		return nil
	}

	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, ti := range file.Types {
				ref := core.TypeRef{PkgPath: pkg.filePath(file), Name: ti.Name}
				if ti.Markers.Has(markers.MetaMarker) {
					add(ref)
					continue
				}
				def, err := s.Definition(ctx, ref)
				if err != nil && !isDeclarationErr(err) {
					return nil, err
				}
				if def != nil {
					add(ref)
				}
			}
			for _, ti := range file.Types {
				if err := uses(pkg, file, ti.Markers); err != nil {
					return nil, err
				}
				for _, fi := range ti.Fields {
					if err := uses(pkg, file, fi.Markers); err != nil {
						return nil, err
					}
				}
			}
			for _, mi := range file.Methods {
				if err := uses(pkg, file, mi.Markers); err != nil {
					return nil, err
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Placements returns the targets of marker. Markers without targets, with an
// unmet version requirement or with an invalid declaration are malformed. Other
// errors, such as a canceled context, are returned unchanged.
func (s *Source) Placements(ctx context.Context, marker core.TypeRef) (core.PlacementSet, error) {
	def, err := s.Definition(ctx, marker)
	if err != nil {
		if isDeclarationErr(err) && s.metaMarked(ctx, marker) {
			return 0, &core.MalformedMarkerError{Marker: marker, Reason: err.Error()}
		}
		return 0, err
	}
	if def == nil {
		return 0, &core.MalformedMarkerError{Marker: marker, Reason: "type is not meta-marked"}
	}
	if err := usable(def); err != nil {
		return 0, err
	}
	return def.Targets, nil
}

// usage is one declaration in scope carrying a marker.
type usage struct {
	pkg     *Package
	file    *markers.File
	comment markers.Comment
}

// firstUse returns the first comment of comments naming marker.
func (s *Source) firstUse(ctx context.Context, pkg *Package, file *markers.File, comments markers.Comments, marker core.TypeRef) (markers.Comment, bool) {
	for _, c := range comments {
		if c.Namespaced() {
			continue
		}
		if ref, ok := s.resolveName(ctx, pkg, file, c.Name); ok && ref == marker {
			return c, true
		}
	}
	return markers.Comment{}, false
}

func (s *Source) TypesWith(ctx context.Context, marker core.TypeRef, scope []string) ([]core.TypeRef, error) {
	pkgs, err := s.scopePackages(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []core.TypeRef
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, ti := range file.Types {
				if _, ok := s.firstUse(ctx, pkg, file, ti.Markers, marker); ok {
					out = append(out, core.TypeRef{PkgPath: pkg.filePath(file), Name: ti.Name})
				}
			}
		}
	}
	return out, nil
}

func (s *Source) FieldsWith(ctx context.Context, marker core.TypeRef, scope []string) ([]core.FieldRef, error) {
	pkgs, err := s.scopePackages(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []core.FieldRef
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, ti := range file.Types {
				owner := core.TypeRef{PkgPath: pkg.filePath(file), Name: ti.Name}
				for _, fi := range ti.Fields {
					if _, ok := s.firstUse(ctx, pkg, file, fi.Markers, marker); ok {
						out = append(out, core.FieldRef{Owner: owner, Name: fi.Name})
					}
				}
			}
		}
	}
	return out, nil
}

func (s *Source) MethodsWith(ctx context.Context, marker core.TypeRef, scope []string) ([]core.MethodRef, error) {
	pkgs, err := s.scopePackages(ctx, scope)
	if err != nil {
		return nil, err
	}
	var out []core.MethodRef
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, mi := range file.Methods {
				if _, ok := s.firstUse(ctx, pkg, file, mi.Markers, marker); ok {
					out = append(out, mi.Ref(pkg.filePath(file)))
				}
			}
		}
	}
	return out, nil
}

// InstanceOf parses the first use of marker on decl.
func (s *Source) InstanceOf(ctx context.Context, marker core.TypeRef, decl core.Declaration) (core.Instance, error) {
	if decl == nil {
		return core.Instance{}, errors.New("nil declaration")
	}
	u, err := s.find(ctx, marker, decl)
	if err != nil {
		return core.Instance{}, err
	}

	def, err := s.Definition(ctx, marker)
	if err != nil {
		return core.Instance{}, fmt.Errorf("definition of %s: %w", marker, err)
	}
	if def == nil {
		return core.Instance{}, fmt.Errorf("%s is not a marker", marker)
	}
	values, err := def.Parse(u.comment.Text)
	if err != nil {
		return core.Instance{}, fmt.Errorf("%s: %w", u.comment.Position, err)
	}
	return core.NewInstance(marker, values, u.comment.Text, u.comment.Position), nil
}

func (s *Source) find(ctx context.Context, marker core.TypeRef, decl core.Declaration) (usage, error) {
	owner := decl.DeclaringType()
	pkg, err := s.packageOf(ctx, owner.PkgPath)
	if err != nil {
		return usage{}, err
	}

	var comments markers.Comments
	var file *markers.File
	switch d := decl.(type) {
	case core.TypeRef, *core.TypeRef, core.FieldRef, *core.FieldRef:
		f, ti := pkg.lookupType(owner.PkgPath, owner.Name)
		if ti == nil {
			return usage{}, fmt.Errorf("type %s not found", owner)
		}
		file, comments = f, ti.Markers
		if field, ok := fieldName(d); ok {
			comments = nil
			for _, fi := range ti.Fields {
				if fi.Name == field {
					comments = fi.Markers
					break
				}
			}
		}
	case core.MethodRef:
		file, comments = s.methodComments(pkg, d)
	case *core.MethodRef:
		file, comments = s.methodComments(pkg, *d)
	default:
		return usage{}, fmt.Errorf("unsupported declaration %T", decl)
	}

	c, ok := s.firstUse(ctx, pkg, file, comments, marker)
	if !ok {
		return usage{}, fmt.Errorf("%s does not carry %s", decl, marker)
	}
	return usage{pkg: pkg, file: file, comment: c}, nil
}

func (s *Source) methodComments(pkg *Package, m core.MethodRef) (*markers.File, markers.Comments) {
	f, mi := pkg.lookupMethod(m.Receiver.PkgPath, m.Receiver.Name, m.Name)
	if mi == nil {
		return f, nil
	}
	return f, mi.Markers
}

func fieldName(decl core.Declaration) (string, bool) {
	switch d := decl.(type) {
	case core.FieldRef:
		return d.Name, true
	case *core.FieldRef:
		return d.Name, true
	}
	return "", false
}
