package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/octaspire/dern-sub003/pkg/driver"
)

// dependencyInstaller resolves a manifest's dependency graph into locked
// packages. Git sources are fetched into the cache; path sources are used in
// place.
type dependencyInstaller struct {
	manifest  *driver.Manifest
	cacheDir  string
	logger    *slog.Logger
	logs      []string
	git       *gitFetcher
	pinned    map[string]*driver.LockedPackage
	resolved  map[string]*driver.LockedPackage
	resolving map[string]bool
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string, logger *slog.Logger) *dependencyInstaller {
	return &dependencyInstaller{
		manifest: manifest,
		cacheDir: cacheDir,
		logger:   logger,
		git:      newGitFetcher(cacheDir),
	}
}

// Install resolves every dependency, reusing commits already pinned in lock,
// and replaces lock's packages. changed reports whether they differ from
// what lock held before.
func (d *dependencyInstaller) Install(lock *driver.Lockfile) (bool, []string, error) {
	d.logs = []string{}
	d.pinned = make(map[string]*driver.LockedPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		d.pinned[pkg.Name] = pkg
	}
	d.resolved = make(map[string]*driver.LockedPackage)
	d.resolving = make(map[string]bool)

	for _, name := range sortedDependencyNames(d.manifest) {
		if _, err := d.installDependency(name, d.manifest.Dependencies[name], d.manifest.Root()); err != nil {
			return false, d.logs, err
		}
	}

	desired := &driver.Lockfile{Root: lock.Root}
	for _, pkg := range d.resolved {
		desired.Packages = append(desired.Packages, pkg)
	}
	changed := !lock.SamePackages(desired)
	lock.Packages = desired.Packages
	return changed, d.logs, nil
}

func (d *dependencyInstaller) installDependency(name string, spec *driver.DependencySpec, baseDir string) (*driver.LockedPackage, error) {
	key := driver.SanitizeName(name)
	if pkg, ok := d.resolved[key]; ok {
		return pkg, nil
	}
	if d.resolving[key] {
		return nil, fmt.Errorf("dependency cycle detected at %q", name)
	}
	d.resolving[key] = true
	defer delete(d.resolving, key)

	var (
		pkg *driver.LockedPackage
		dir string
		err error
	)
	if spec.IsGit() {
		pkg, dir, err = d.git.Fetch(name, d.pinnedSpec(key, spec))
	} else {
		pkg, dir, err = resolvePathDependency(name, spec, baseDir)
	}
	if err != nil {
		return nil, err
	}

	if child, err := driver.LoadManifest(filepath.Join(dir, driver.ManifestFileName)); err == nil {
		for _, childName := range sortedDependencyNames(child) {
			childPkg, err := d.installDependency(childName, child.Dependencies[childName], dir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			pkg.Dependencies = append(pkg.Dependencies, driver.LockedDependency{
				Name:    childPkg.Name,
				Version: childPkg.Version,
			})
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dependency %q: %w", name, err)
	}

	d.resolved[key] = pkg
	d.logger.Debug("dependency resolved", "name", pkg.Name, "version", pkg.Version, "source", pkg.Source)
	d.logs = append(d.logs, fmt.Sprintf("Resolved %s %s (%s)", pkg.Name, displayVersion(pkg.Version), displaySource(pkg.Source)))
	return pkg, nil
}

// pinnedSpec keeps a git dependency on the commit recorded in the lockfile
// unless the manifest names an explicit rev or the source moved.
func (d *dependencyInstaller) pinnedSpec(key string, spec *driver.DependencySpec) *driver.DependencySpec {
	locked, ok := d.pinned[key]
	if !ok || spec.Rev != "" || locked.Source != driver.SourceGit+spec.Git {
		return spec
	}
	pinned := *spec
	pinned.Rev, pinned.Tag, pinned.Branch = locked.Version, "", ""
	return &pinned
}

func resolvePathDependency(name string, spec *driver.DependencySpec, baseDir string) (*driver.LockedPackage, string, error) {
	dir := spec.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, filepath.FromSlash(dir))
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("dependency %q: %s is not a directory", name, dir)
	}
	version := "0.0.0"
	if m, err := driver.LoadManifest(filepath.Join(dir, driver.ManifestFileName)); err == nil && m.Version != "" {
		version = m.Version
	}
	checksum, err := dirChecksum(dir)
	if err != nil {
		return nil, "", fmt.Errorf("dependency %q: checksum %s: %w", name, dir, err)
	}
	return &driver.LockedPackage{
		Name:     driver.SanitizeName(name),
		Version:  version,
		Source:   driver.SourcePath + dir,
		Checksum: checksum,
	}, dir, nil
}

func sortedDependencyNames(m *driver.Manifest) []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func displayVersion(version string) string {
	if plumbing.IsHash(version) {
		return version[:12]
	}
	return version
}

func displaySource(source string) string {
	if dir, ok := strings.CutPrefix(source, driver.SourcePath); ok {
		if cwd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(cwd, dir); err == nil && !strings.HasPrefix(rel, "..") {
				return driver.SourcePath + rel
			}
		}
	}
	return source
}
