package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LockfileName is written next to package.yml by `dern deps install`.
const LockfileName = "package.lock"

// Source prefixes recorded in LockedPackage.Source.
const (
	SourcePath = "path:"
	SourceGit  = "git:"
)

// Lockfile pins every resolved dependency of a project.
type Lockfile struct {
	Path      string
	Root      string
	Generated string
	Tool      string
	Packages  []*LockedPackage
}

// LockedPackage is one resolved dependency. Version is the git commit for
// git sources and the manifest version for path sources.
type LockedPackage struct {
	Name         string
	Version      string
	Source       string
	Checksum     string
	Dependencies []LockedDependency
}

// LockedDependency is an edge in the resolved graph.
type LockedDependency struct {
	Name    string
	Version string
}

// NewLockfile starts an empty lockfile for the named root package.
func NewLockfile(root, tool string) *Lockfile {
	return &Lockfile{
		Root:      sanitizeSegment(root),
		Generated: time.Now().UTC().Format(time.RFC3339),
		Tool:      strings.TrimSpace(tool),
		Packages:  []*LockedPackage{},
	}
}

// LockfilePath returns the lockfile location for a manifest.
func LockfilePath(manifest *Manifest) string {
	return filepath.Join(manifest.Root(), LockfileName)
}

// LoadLockfile parses package.lock from disk.
func LoadLockfile(path string) (*Lockfile, error) {
	if path == "" {
		return nil, fmt.Errorf("lockfile: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw lockfileDisk
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", abs, err)
	}

	lock := raw.toLockfile()
	lock.Path = abs
	return lock, nil
}

// WriteLockfile serialises lock to path, or to lock.Path when path is empty.
func WriteLockfile(lock *Lockfile, path string) error {
	if lock == nil {
		return fmt.Errorf("lockfile: nil lockfile")
	}
	if path == "" {
		if lock.Path == "" {
			return fmt.Errorf("lockfile: missing path")
		}
		path = lock.Path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	if lock.Generated == "" {
		lock.Generated = time.Now().UTC().Format(time.RFC3339)
	}
	lock.Path = abs
	lock.normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(lock.toDisk()); err != nil {
		return fmt.Errorf("lockfile: marshal %s: %w", abs, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("lockfile: encoder close: %w", err)
	}
	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", abs, err)
	}
	return nil
}

// Package returns the locked entry for name, if any.
func (l *Lockfile) Package(name string) (*LockedPackage, bool) {
	name = sanitizeSegment(name)
	for _, pkg := range l.Packages {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return nil, false
}

// SamePackages reports whether both lockfiles pin identical packages,
// ignoring metadata.
func (l *Lockfile) SamePackages(other *Lockfile) bool {
	if l == nil || other == nil {
		return l == other
	}
	l.normalize()
	other.normalize()
	return slices.EqualFunc(l.Packages, other.Packages, func(a, b *LockedPackage) bool {
		return a.Equal(b)
	})
}

// Equal compares two locked packages field by field.
func (p *LockedPackage) Equal(other *LockedPackage) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Name == other.Name &&
		p.Version == other.Version &&
		p.Source == other.Source &&
		p.Checksum == other.Checksum &&
		slices.Equal(p.Dependencies, other.Dependencies)
}

// SourcePath returns the filesystem location of a path-sourced package.
func (p *LockedPackage) SourcePath() (string, bool) {
	return strings.CutPrefix(p.Source, SourcePath)
}

func (l *Lockfile) normalize() {
	l.Root = sanitizeSegment(l.Root)
	l.Tool = strings.TrimSpace(l.Tool)
	l.Packages = slices.DeleteFunc(l.Packages, func(p *LockedPackage) bool { return p == nil })
	sort.SliceStable(l.Packages, func(i, j int) bool {
		return l.Packages[i].Name < l.Packages[j].Name
	})
	for _, pkg := range l.Packages {
		pkg.Name = sanitizeSegment(pkg.Name)
		pkg.Version = strings.TrimSpace(pkg.Version)
		pkg.Source = strings.TrimSpace(pkg.Source)
		pkg.Checksum = strings.TrimSpace(pkg.Checksum)
		for k := range pkg.Dependencies {
			pkg.Dependencies[k].Name = sanitizeSegment(pkg.Dependencies[k].Name)
			pkg.Dependencies[k].Version = strings.TrimSpace(pkg.Dependencies[k].Version)
		}
		sort.SliceStable(pkg.Dependencies, func(i, j int) bool {
			return pkg.Dependencies[i].Name < pkg.Dependencies[j].Name
		})
	}
}

type lockfileDisk struct {
	Root      string            `yaml:"root"`
	Generated string            `yaml:"generated"`
	Tool      string            `yaml:"tool"`
	Packages  []lockfilePackage `yaml:"packages"`
}

type lockfilePackage struct {
	Name         string               `yaml:"name"`
	Version      string               `yaml:"version"`
	Source       string               `yaml:"source"`
	Checksum     string               `yaml:"checksum,omitempty"`
	Dependencies []lockfileDependency `yaml:"dependencies,omitempty"`
}

type lockfileDependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

func (l *Lockfile) toDisk() lockfileDisk {
	pkgs := make([]lockfilePackage, 0, len(l.Packages))
	for _, pkg := range l.Packages {
		var deps []lockfileDependency
		for _, dep := range pkg.Dependencies {
			deps = append(deps, lockfileDependency(dep))
		}
		pkgs = append(pkgs, lockfilePackage{
			Name:         pkg.Name,
			Version:      pkg.Version,
			Source:       pkg.Source,
			Checksum:     pkg.Checksum,
			Dependencies: deps,
		})
	}
	return lockfileDisk{Root: l.Root, Generated: l.Generated, Tool: l.Tool, Packages: pkgs}
}

func (d lockfileDisk) toLockfile() *Lockfile {
	lock := &Lockfile{
		Root:      d.Root,
		Generated: strings.TrimSpace(d.Generated),
		Tool:      d.Tool,
		Packages:  make([]*LockedPackage, 0, len(d.Packages)),
	}
	for _, pkg := range d.Packages {
		var deps []LockedDependency
		for _, dep := range pkg.Dependencies {
			deps = append(deps, LockedDependency(dep))
		}
		lock.Packages = append(lock.Packages, &LockedPackage{
			Name:         pkg.Name,
			Version:      pkg.Version,
			Source:       pkg.Source,
			Checksum:     pkg.Checksum,
			Dependencies: deps,
		})
	}
	lock.normalize()
	return lock
}
