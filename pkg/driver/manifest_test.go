package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, contents string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
	return path
}

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	return writeFile(t, filepath.Join(t.TempDir(), ManifestFileName), contents)
}

func TestLoadManifestBasic(t *testing.T) {
	path := writeManifest(t, `
name: dern-app
version: "0.1.0"
license: MIT
authors:
  - Ada
  - Grace
libraries: [lib, vendor]
targets:
  app: src/main.dern
  tools:
    main: src/tools.dern
dependencies:
  util:
    git: https://example.com/util.git
    tag: v1.2.0
  local-helpers:
    path: ../helpers
`)

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if got, want := manifest.Name, "dern_app"; got != want {
		t.Fatalf("Name = %q, want %q", got, want)
	}
	if manifest.Version != "0.1.0" || manifest.License != "MIT" {
		t.Fatalf("metadata unexpected: %#v", manifest)
	}
	if strings.Join(manifest.Authors, ",") != "Ada,Grace" {
		t.Fatalf("Authors unexpected: %#v", manifest.Authors)
	}
	if got := strings.Join(manifest.TargetOrder, ","); got != "app,tools" {
		t.Fatalf("TargetOrder = %q", got)
	}
	if got := manifest.Targets["tools"].Main; got != "src/tools.dern" {
		t.Fatalf("tools main = %q", got)
	}

	util := manifest.Dependencies["util"]
	if util == nil || !util.IsGit() || util.Tag != "v1.2.0" {
		t.Fatalf("util dependency not parsed: %#v", util)
	}
	helpers := manifest.Dependencies["local-helpers"]
	if helpers == nil || helpers.IsGit() || helpers.Path != "../helpers" {
		t.Fatalf("path dependency not parsed: %#v", helpers)
	}

	root := filepath.Dir(path)
	dirs := manifest.LibraryDirs()
	if len(dirs) != 2 || dirs[0] != filepath.Join(root, "lib") || dirs[1] != filepath.Join(root, "vendor") {
		t.Fatalf("LibraryDirs = %#v", dirs)
	}
	target, err := manifest.DefaultTarget()
	if err != nil {
		t.Fatalf("DefaultTarget: %v", err)
	}
	if got := manifest.MainPath(target); got != filepath.Join(root, "src", "main.dern") {
		t.Fatalf("MainPath = %q", got)
	}
}

func TestManifestWithoutLibrariesExposesRoot(t *testing.T) {
	path := writeManifest(t, "name: bare")
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	dirs := manifest.LibraryDirs()
	if len(dirs) != 1 || dirs[0] != filepath.Dir(path) {
		t.Fatalf("LibraryDirs = %#v", dirs)
	}
	if _, err := manifest.DefaultTarget(); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("DefaultTarget error = %v", err)
	}
}

func TestFindTargetMatchesOriginalName(t *testing.T) {
	path := writeManifest(t, `
name: app
targets:
  build-site: site.dern
`)
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	for _, name := range []string{"build-site", "build_site", "BUILD-SITE"} {
		if _, ok := manifest.FindTarget(name); !ok {
			t.Fatalf("FindTarget(%q) failed", name)
		}
	}
	if _, ok := manifest.FindTarget("other"); ok {
		t.Fatalf("FindTarget matched an unknown target")
	}
}

func TestLoadManifestValidation(t *testing.T) {
	path := writeManifest(t, `
authors: ["", Ada]
libraries: [/abs/lib]
targets:
  app: {main: ""}
dependencies:
  none: {}
  both:
    git: https://example.com/x.git
    path: ../x
  selectors:
    git: https://example.com/y.git
    tag: v1
    branch: main
  stray:
    path: ../z
    rev: abc
`)
	_, err := LoadManifest(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{
		"name must be provided",
		"authors[0] must be a non-empty string",
		`libraries entry "/abs/lib" must be relative to the manifest`,
		`target "app" requires a main script`,
		"dependencies.both: cannot specify both git and path",
		"dependencies.none: must specify git or path",
		"dependencies.selectors: only one of rev, tag or branch may be set",
		"dependencies.stray: rev, tag and branch apply only to git dependencies",
	}
	if strings.Join(verr.Issues, "\n") != strings.Join(want, "\n") {
		t.Fatalf("issues = %#v", verr.Issues)
	}
	if !strings.HasPrefix(err.Error(), "manifest validation failed:") {
		t.Fatalf("error text = %q", err.Error())
	}
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	path := writeManifest(t, `
name: app
dependecies: {}
`)
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "dependecies") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadManifestRejectsScalarDependency(t *testing.T) {
	path := writeManifest(t, `
name: app
dependencies:
  util: "1.0.0"
`)
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "must be a mapping with git or path") {
		t.Fatalf("expected mapping error, got %v", err)
	}
}

func TestLoadManifestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFileName)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty manifest error, got %v", err)
	}
}

func TestFindManifestWalksUpward(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, filepath.Join(root, ManifestFileName), "name: app")
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	found, err := FindManifest(nested)
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if found != path {
		t.Fatalf("FindManifest = %q, want %q", found, path)
	}
}
