package driver

import (
	"os"
	"path/filepath"
	"strings"
)

// GitCheckoutDir is where a git dependency pinned at commit is checked out
// under the dependency cache home.
func GitCheckoutDir(home, name, commit string) string {
	return filepath.Join(home, "git", sanitizePathSegment(name), sanitizePathSegment(commit))
}

// PackageDir locates the installed files of a locked package.
func PackageDir(home string, pkg *LockedPackage) string {
	if dir, ok := pkg.SourcePath(); ok {
		return dir
	}
	return GitCheckoutDir(home, pkg.Name, pkg.Version)
}

// LibrarySearchPaths orders the directories searched by require: configured
// paths first, then the project's own libraries, then every locked package.
// A package with its own package.yml contributes its declared libraries;
// otherwise its root directory is searched.
func LibrarySearchPaths(cfg *Config, manifest *Manifest, lock *Lockfile, home string) []string {
	var paths []string
	seen := make(map[string]struct{})
	add := func(dirs ...string) {
		for _, dir := range dirs {
			dir = filepath.Clean(dir)
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			paths = append(paths, dir)
		}
	}
	if cfg != nil {
		add(cfg.LibraryPaths...)
	}
	if manifest != nil {
		add(manifest.LibraryDirs()...)
	}
	if lock != nil {
		for _, pkg := range lock.Packages {
			dir := PackageDir(home, pkg)
			if dep, err := LoadManifest(filepath.Join(dir, ManifestFileName)); err == nil {
				add(dep.LibraryDirs()...)
				continue
			}
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				add(dir)
			}
		}
	}
	return paths
}

func sanitizePathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, value)
}
