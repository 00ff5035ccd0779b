package introspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"

	"github.com/fmeng/anstore/core"
	"github.com/fmeng/anstore/markers"
)

// resolveName turns a marker or type name written in file ("Store", "anns.Store")
// into a type identity. It reports false when the qualifier matches no import.
func (s *Source) resolveName(ctx context.Context, pkg *Package, file *markers.File, name string) (core.TypeRef, bool) {
	c := markers.Comment{Name: name}
	qualifier, local := c.Qualifier(), c.Local()
	if qualifier == "" {
		return core.TypeRef{PkgPath: pkg.filePath(file), Name: local}, true
	}

	for _, imp := range file.Imports {
		if imp.Name == qualifier {
			return core.TypeRef{PkgPath: imp.Path, Name: local}, true
		}
	}
	for _, imp := range file.Imports {
		if imp.Name == "" && guessPackageName(imp.Path) == qualifier {
			return core.TypeRef{PkgPath: imp.Path, Name: local}, true
		}
	}
	// Package names that differ from the import path need the package itself.
	for _, imp := range file.Imports {
		if imp.Name != "" {
			continue
		}
		target, err := s.packageOf(ctx, imp.Path)
		if err == nil && target.Name == qualifier {
			return core.TypeRef{PkgPath: imp.Path, Name: local}, true
		}
	}
	return core.TypeRef{}, false
}

// declarationError is a problem of the marker declaration itself. It does not
// change until the sources do, so it is remembered until Reset.
type declarationError struct {
	err error
}

func (e *declarationError) Error() string { return e.err.Error() }
func (e *declarationError) Unwrap() error { return e.err }

func isDeclarationErr(err error) bool {
	var dErr *declarationError
	return errors.As(err, &dErr)
}

// Definition returns the marker definition of ref, resolving inheritance. It
// returns nil without error when ref is not a known type or is not a marker.
// Errors reading packages are returned as is and never cached.
func (s *Source) Definition(ctx context.Context, ref core.TypeRef) (*markers.Definition, error) {
	return s.definition(ctx, ref, make(map[core.TypeRef]bool))
}

func (s *Source) definition(ctx context.Context, ref core.TypeRef, visiting map[core.TypeRef]bool) (*markers.Definition, error) {
	if def := s.registry().Lookup(ref); def != nil {
		return def, nil
	}
	s.mu.Lock()
	if err, ok := s.failed[ref]; ok {
		s.mu.Unlock()
		return nil, err
	}
	if s.plain[ref] {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	if visiting[ref] {
		return nil, &declarationError{err: fmt.Errorf("marker %s inherits from itself", ref)}
	}
	visiting[ref] = true

	def, err := s.buildDefinition(ctx, ref, visiting)
	switch {
	case err != nil:
		if isDeclarationErr(err) {
			s.mu.Lock()
			s.failed[ref] = err
			s.mu.Unlock()
		}
		return nil, err
	case def == nil || !def.IsMarker():
		s.mu.Lock()
		s.plain[ref] = true
		s.mu.Unlock()
		return nil, nil
	}
	if err := s.registry().Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *Source) buildDefinition(ctx context.Context, ref core.TypeRef, visiting map[core.TypeRef]bool) (*markers.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pkg, err := s.packageOf(ctx, ref.PkgPath)
	if errors.Is(err, errUnresolved) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	file, info := pkg.lookupType(ref.PkgPath, ref.Name)
	if info == nil {
		return nil, nil
	}

	def, err := markers.NewDefinition(ref, info)
	if err != nil {
		return nil, &declarationError{err: err}
	}
	if def.BaseName == "" {
		return def, nil
	}

	baseRef, ok := s.resolveName(ctx, pkg, file, def.BaseName)
	if !ok {
		return def, nil
	}
	base, err := s.definition(ctx, baseRef, visiting)
	if err != nil {
		if !isDeclarationErr(err) {
			return nil, err
		}
		s.logger.Debug("base marker is unusable",
			zap.Stringer("type", ref),
			zap.Stringer("base", baseRef),
			zap.Error(err),
		)
		return def, nil
	}
	if base != nil {
		def.Inherit(base)
	}
	return def, nil
}

// markerOf resolves a marker comment to a marker identity.
func (s *Source) markerOf(ctx context.Context, pkg *Package, file *markers.File, c markers.Comment) (core.TypeRef, bool, error) {
	if c.Namespaced() {
		return core.TypeRef{}, false, nil
	}
	ref, ok := s.resolveName(ctx, pkg, file, c.Name)
	if !ok {
		return core.TypeRef{}, false, nil
	}
	def, err := s.definition(ctx, ref, make(map[core.TypeRef]bool))
	if err != nil {
		if !isDeclarationErr(err) {
			return core.TypeRef{}, false, err
		}
		// A type carrying the meta-marker stays discoverable so its problem is reported.
		return ref, s.metaMarked(ctx, ref), nil
	}
	return ref, def != nil, nil
}

// metaMarked reports whether the declaration of ref carries the meta-marker,
// whether or not the rest of it is valid.
func (s *Source) metaMarked(ctx context.Context, ref core.TypeRef) bool {
	pkg, err := s.packageOf(ctx, ref.PkgPath)
	if err != nil {
		return false
	}
	_, info := pkg.lookupType(ref.PkgPath, ref.Name)
	return info != nil && info.Markers.Has(markers.MetaMarker)
}

// usable checks the targets and the version requirement of a definition.
func usable(def *markers.Definition) error {
	if def.Targets.Empty() {
		return &core.MalformedMarkerError{Marker: def.Marker, Reason: "declares no target placement"}
	}
	if def.Requires == "" {
		return nil
	}
	constraint, err := version.NewConstraint(def.Requires)
	if err != nil {
		return &core.MalformedMarkerError{
			Marker: def.Marker,
			Reason: fmt.Sprintf("invalid version requirement %q: %v", def.Requires, err),
		}
	}
	current, err := version.NewVersion(core.Version())
	if err != nil {
		return fmt.Errorf("parse anstore version: %w", err)
	}
	if !constraint.Check(current) {
		return &core.MalformedMarkerError{
			Marker: def.Marker,
			Reason: fmt.Sprintf("requires anstore %s, running %s", def.Requires, current),
		}
	}
	return nil
}
