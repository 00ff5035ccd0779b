package introspect

import (
	"context"
	"fmt"
	"go/build"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fmeng/anstore/markers"
)

// Package is one parsed package directory.
type Package struct {
	Path  string
	Name  string
	Dir   string
	Files []*markers.File
}

// filePath returns the import path declarations of file belong to. External
// test files live in a package of their own.
func (p *Package) filePath(file *markers.File) string {
	if file.Package != p.Name && strings.HasSuffix(file.Package, "_test") {
		return p.Path + "_test"
	}
	return p.Path
}

// lookupType finds a top-level type declared in the package.
func (p *Package) lookupType(pkgPath, name string) (*markers.File, *markers.TypeInfo) {
	for _, f := range p.Files {
		if p.filePath(f) != pkgPath {
			continue
		}
		for _, ti := range f.Types {
			if ti.Name == name {
				return f, ti
			}
		}
	}
	return nil, nil
}

func (p *Package) lookupMethod(pkgPath, receiver, name string) (*markers.File, *markers.MethodInfo) {
	for _, f := range p.Files {
		if p.filePath(f) != pkgPath {
			continue
		}
		for _, m := range f.Methods {
			if m.Receiver == receiver && m.Name == name {
				return f, m
			}
		}
	}
	return nil, nil
}

type pkgDir struct {
	path string
	dir  string
}

// loadPackage parses the Go files of dir. Results are cached per directory and
// concurrent loads of one directory parse it once.
func (s *Source) loadPackage(ctx context.Context, importPath, dir string) (*Package, error) {
	if pkg, ok := s.cache.Get(dir); ok {
		return pkg, nil
	}
	unlock := s.locker.Lock("pkg", dir)
	defer unlock()
	if pkg, ok := s.cache.Get(dir); ok {
		return pkg, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", importPath, err)
	}

	fset := token.NewFileSet()
	pkg := &Package{Path: importPath, Dir: dir}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !s.wantFile(dir, name) {
			continue
		}
		file, err := s.collector.ParseFile(fset, filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("parse package %s: %w", importPath, err)
		}
		if pkg.Name == "" && !strings.HasSuffix(name, "_test.go") {
			pkg.Name = file.Package
		}
		pkg.Files = append(pkg.Files, file)
	}
	if pkg.Name == "" && len(pkg.Files) > 0 {
		pkg.Name = strings.TrimSuffix(pkg.Files[0].Package, "_test")
	}

	s.cache.Add(dir, pkg)
	s.logger.Debug("parsed package",
		zap.String("path", importPath),
		zap.String("dir", dir),
		zap.Int("files", len(pkg.Files)),
	)
	return pkg, nil
}

// wantFile applies the usual build rules: build constraints, GOOS/GOARCH
// suffixes and the _ and . prefixes.
func (s *Source) wantFile(dir, name string) bool {
	if !strings.HasSuffix(name, ".go") {
		return false
	}
	if strings.HasSuffix(name, "_test.go") && !s.opts.includeTests {
		return false
	}
	ok, err := build.Default.MatchFile(dir, name)
	if err != nil {
		s.logger.Debug("skipping file", zap.String("file", filepath.Join(dir, name)), zap.Error(err))
		return false
	}
	return ok
}

// packageOf loads the package with the given import path.
func (s *Source) packageOf(ctx context.Context, importPath string) (*Package, error) {
	dir, err := s.modules.dir(strings.TrimSuffix(importPath, "_test"))
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", importPath, errUnresolved)
	}
	return s.loadPackage(ctx, strings.TrimSuffix(importPath, "_test"), dir)
}

// walkRoot lists the package directories of root and its subpackages. Nested
// modules, vendor and testdata directories and names starting with _ or . are skipped.
func (s *Source) walkRoot(root string) ([]pkgDir, error) {
	dir, err := s.modules.dir(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resolve scan root %s: %s is not a directory", root, dir)
	}

	var out []pkgDir
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir {
			name := d.Name()
			if name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
				return filepath.SkipDir
			}
		}
		if !s.hasGoFiles(p) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		importPath := root
		if rel != "." {
			importPath = root + "/" + filepath.ToSlash(rel)
		}
		out = append(out, pkgDir{path: importPath, dir: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk scan root %s: %w", root, err)
	}
	return out, nil
}

func (s *Source) hasGoFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && s.wantFile(dir, e.Name()) {
			return true
		}
	}
	return false
}

// scopePackages loads every package under scope. The order follows scope and,
// within one root, the lexical order of directories.
func (s *Source) scopePackages(ctx context.Context, scope []string) ([]*Package, error) {
	var dirs []pkgDir
	seen := make(map[string]bool)
	for _, root := range scope {
		found, err := s.walkRoot(strings.TrimSuffix(strings.TrimSpace(root), "/"))
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if !seen[d.dir] {
				seen[d.dir] = true
				dirs = append(dirs, d)
			}
		}
	}

	pkgs := make([]*Package, len(dirs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for i, d := range dirs {
		g.Go(func() error {
			pkg, err := s.loadPackage(gCtx, d.path, d.dir)
			if err != nil {
				return err
			}
			pkgs[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pkgs, nil
}
