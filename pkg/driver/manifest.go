package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the project manifest searched for by FindManifest.
const ManifestFileName = "package.yml"

// ErrManifestNotFound is returned by FindManifest when no package.yml exists
// in the start directory or any of its parents.
var ErrManifestNotFound = errors.New("manifest: package.yml not found")

// ErrNoTarget is returned when a manifest defines no runnable script.
var ErrNoTarget = errors.New("manifest: no targets defined")

// Manifest represents the parsed contents of package.yml.
type Manifest struct {
	Path         string
	Name         string
	Version      string
	License      string
	Authors      []string
	Libraries    []string
	Targets      map[string]*TargetSpec
	TargetOrder  []string
	Dependencies map[string]*DependencySpec
}

// TargetSpec names a script that `dern run` can execute.
type TargetSpec struct {
	Name         string
	OriginalName string
	Main         string
}

// DependencySpec describes where a library dependency comes from. Exactly one
// of Git or Path is set; Rev, Tag and Branch select a git revision.
type DependencySpec struct {
	Git    string
	Rev    string
	Tag    string
	Branch string
	Path   string
}

// ValidationError aggregates validation failures for a configuration file.
type ValidationError struct {
	Subject string
	Issues  []string
}

func (e *ValidationError) Error() string {
	subject := e.Subject
	if subject == "" {
		subject = "manifest"
	}
	if len(e.Issues) == 0 {
		return subject + ": invalid configuration"
	}
	var b strings.Builder
	b.WriteString(subject)
	b.WriteString(" validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses package.yml from disk, returning a validated manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// FindManifest walks upward from start looking for package.yml.
func FindManifest(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("manifest: resolve %s: %w", start, err)
	}
	for {
		candidate := filepath.Join(dir, ManifestFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrManifestNotFound
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	errs := ValidationError{Subject: "manifest"}
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	for i, author := range m.Authors {
		if author == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("authors[%d] must be a non-empty string", i))
		}
	}
	for _, lib := range m.Libraries {
		if filepath.IsAbs(lib) {
			errs.Issues = append(errs.Issues, fmt.Sprintf("libraries entry %q must be relative to the manifest", lib))
		}
	}
	for _, name := range m.TargetOrder {
		if target := m.Targets[name]; target.Main == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("target %q requires a main script", target.OriginalName))
		}
	}
	for _, name := range sortedKeys(m.Dependencies) {
		for _, issue := range m.Dependencies[name].validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependencies.%s: %s", name, issue))
		}
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// Root returns the directory holding the manifest.
func (m *Manifest) Root() string {
	return filepath.Dir(m.Path)
}

// LibraryDirs returns the absolute directories this package exposes to
// require. A manifest without a libraries list exposes its root.
func (m *Manifest) LibraryDirs() []string {
	if len(m.Libraries) == 0 {
		return []string{m.Root()}
	}
	dirs := make([]string, 0, len(m.Libraries))
	for _, lib := range m.Libraries {
		dirs = append(dirs, filepath.Join(m.Root(), lib))
	}
	return dirs
}

// DefaultTarget returns the first target in manifest order.
func (m *Manifest) DefaultTarget() (*TargetSpec, error) {
	if m == nil || len(m.TargetOrder) == 0 {
		return nil, ErrNoTarget
	}
	return m.Targets[m.TargetOrder[0]], nil
}

// FindTarget looks up a target by sanitized or original name.
func (m *Manifest) FindTarget(name string) (*TargetSpec, bool) {
	if m == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if target, ok := m.Targets[sanitizeSegment(name)]; ok {
		return target, true
	}
	for _, key := range m.TargetOrder {
		if strings.EqualFold(m.Targets[key].OriginalName, name) {
			return m.Targets[key], true
		}
	}
	return nil, false
}

// MainPath resolves a target's script against the manifest directory.
func (m *Manifest) MainPath(target *TargetSpec) string {
	if filepath.IsAbs(target.Main) {
		return target.Main
	}
	return filepath.Join(m.Root(), target.Main)
}

// IsGit reports whether the dependency is fetched from a git repository.
func (d *DependencySpec) IsGit() bool { return d.Git != "" }

func (d *DependencySpec) validate() []string {
	var errs []string
	switch {
	case d.Git == "" && d.Path == "":
		errs = append(errs, "must specify git or path")
	case d.Git != "" && d.Path != "":
		errs = append(errs, "cannot specify both git and path")
	}
	selectors := 0
	for _, s := range []string{d.Rev, d.Tag, d.Branch} {
		if s != "" {
			selectors++
		}
	}
	if selectors > 1 {
		errs = append(errs, "only one of rev, tag or branch may be set")
	}
	if selectors > 0 && d.Git == "" {
		errs = append(errs, "rev, tag and branch apply only to git dependencies")
	}
	return errs
}

type manifestFile struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	License      string        `yaml:"license"`
	Authors      stringList    `yaml:"authors"`
	Libraries    stringList    `yaml:"libraries"`
	Targets      targetMap     `yaml:"targets"`
	Dependencies dependencyMap `yaml:"dependencies"`
}

type targetMap struct {
	items []targetMapEntry
}

type targetMapEntry struct {
	name string
	main string
}

// UnmarshalYAML keeps targets in file order. A target is either a script
// path or a mapping with a main key.
func (tm *targetMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		tm.items = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: targets must be a mapping")
	}
	items := make([]targetMapEntry, 0, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		var key string
		if err := value.Content[i].Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("manifest: targets must not use empty keys")
		}
		node := value.Content[i+1]
		var main string
		switch node.Kind {
		case yaml.ScalarNode:
			main = node.Value
		case yaml.MappingNode:
			var raw struct {
				Main string `yaml:"main"`
			}
			if err := node.Decode(&raw); err != nil {
				return fmt.Errorf("manifest: target %q: %w", key, err)
			}
			main = raw.Main
		default:
			return fmt.Errorf("manifest: target %q must be a path or mapping", key)
		}
		items = append(items, targetMapEntry{name: key, main: strings.TrimSpace(main)})
	}
	tm.items = items
	return nil
}

type dependencyMap map[string]*DependencySpec

func (dm *dependencyMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*dm = make(dependencyMap)
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("manifest: dependencies must be a mapping")
	}
	result := make(dependencyMap, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		var key string
		if err := value.Content[i].Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("manifest: dependency names must be non-empty")
		}
		node := value.Content[i+1]
		if node.Kind != yaml.MappingNode {
			return fmt.Errorf("manifest: dependency %q must be a mapping with git or path", key)
		}
		var raw struct {
			Git    string `yaml:"git"`
			Rev    string `yaml:"rev"`
			Tag    string `yaml:"tag"`
			Branch string `yaml:"branch"`
			Path   string `yaml:"path"`
		}
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("manifest: dependency %q: %w", key, err)
		}
		result[key] = &DependencySpec{
			Git:    strings.TrimSpace(raw.Git),
			Rev:    strings.TrimSpace(raw.Rev),
			Tag:    strings.TrimSpace(raw.Tag),
			Branch: strings.TrimSpace(raw.Branch),
			Path:   strings.TrimSpace(raw.Path),
		}
	}
	*dm = result
	return nil
}

type stringList []string

func (l stringList) Clone() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			items = append(items, strings.TrimSpace(str))
		}
		*l = stringList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("expected string or sequence for list but found %s", value.ShortTag())
	}
}

func (mf manifestFile) toManifest(path string) *Manifest {
	result := &Manifest{
		Path:         path,
		Name:         sanitizeSegment(mf.Name),
		Version:      strings.TrimSpace(mf.Version),
		License:      strings.TrimSpace(mf.License),
		Authors:      []string(mf.Authors),
		Libraries:    mf.Libraries.Clone(),
		Targets:      make(map[string]*TargetSpec, len(mf.Targets.items)),
		Dependencies: map[string]*DependencySpec(mf.Dependencies),
	}
	if result.Dependencies == nil {
		result.Dependencies = map[string]*DependencySpec{}
	}
	for _, item := range mf.Targets.items {
		key := sanitizeSegment(item.name)
		if _, exists := result.Targets[key]; exists {
			continue
		}
		result.Targets[key] = &TargetSpec{Name: key, OriginalName: item.name, Main: item.main}
		result.TargetOrder = append(result.TargetOrder, key)
	}
	return result
}
