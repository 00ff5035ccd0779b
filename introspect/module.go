package introspect

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// errUnresolved is returned when an import path does not belong to any loaded module.
var errUnresolved = errors.New("package is outside every loaded module")

// Module is a Go module whose sources can be read from disk.
type Module struct {
	Path string
	Dir  string
}

// LoadModules reads the go.mod file in dir. The result holds the main module
// first, followed by every module replaced with a local directory.
func LoadModules(dir string) ([]Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve module dir %s: %w", dir, err)
	}
	gomod := filepath.Join(abs, "go.mod")
	content, err := os.ReadFile(gomod)
	if err != nil {
		return nil, fmt.Errorf("read go.mod: %w", err)
	}
	f, err := modfile.Parse(gomod, content, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return nil, fmt.Errorf("parse go.mod: %s has no module directive", gomod)
	}

	modules := []Module{{Path: f.Module.Mod.Path, Dir: abs}}
	for _, r := range f.Replace {
		// Only local replacements have sources on disk.
		if r.New.Version != "" || !modfile.IsDirectoryPath(r.New.Path) {
			continue
		}
		replDir := r.New.Path
		if !filepath.IsAbs(replDir) {
			replDir = filepath.Join(abs, replDir)
		}
		modules = append(modules, Module{Path: r.Old.Path, Dir: filepath.Clean(replDir)})
	}
	return modules, nil
}

// moduleSet maps import paths to directories.
type moduleSet []Module

// sorted orders modules by decreasing path length so the longest prefix wins.
func (ms moduleSet) sorted() moduleSet {
	out := append(moduleSet(nil), ms...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Path) > len(out[j].Path)
	})
	return out
}

// dir returns the directory of importPath. ms must be sorted.
func (ms moduleSet) dir(importPath string) (string, error) {
	for _, m := range ms {
		if importPath == m.Path {
			return m.Dir, nil
		}
		if rest, ok := strings.CutPrefix(importPath, m.Path+"/"); ok {
			return filepath.Join(m.Dir, filepath.FromSlash(rest)), nil
		}
	}
	return "", fmt.Errorf("%s: %w", importPath, errUnresolved)
}

// guessPackageName derives the conventional package name from an import path:
// "example.com/go-yaml/yaml.v3" gives "yaml", "example.com/api/v2" gives "api".
func guessPackageName(importPath string) string {
	elem := path.Base(importPath)
	if isMajorVersion(elem) {
		elem = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(elem, ".v"); i > 0 && isMajorVersion(elem[i+1:]) {
		elem = elem[:i]
	}
	elem = strings.TrimPrefix(elem, "go-")
	elem = strings.TrimSuffix(elem, "-go")
	if i := strings.LastIndexAny(elem, "-."); i >= 0 {
		elem = elem[i+1:]
	}
	return elem
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
