package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/driver"
)

func runDeps(opts globalOptions, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dern deps requires a subcommand (install, update)")
		return 1
	}
	switch args[0] {
	case "install":
		if len(args) > 1 {
			fmt.Fprintf(os.Stderr, "dern deps install does not take arguments (received %s)\n", strings.Join(args[1:], " "))
			return 1
		}
		return runDepsSync(opts, nil, false)
	case "update":
		return runDepsSync(opts, args[1:], true)
	default:
		fmt.Fprintf(os.Stderr, "unknown deps subcommand %q\n", args[0])
		return 1
	}
}

// runDepsSync installs the manifest's dependencies and writes package.lock.
// With update set, the named dependencies (or all, when none are named) are
// re-resolved instead of keeping their locked commits.
func runDepsSync(opts globalOptions, targets []string, update bool) int {
	sess, err := newDepsSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	manifest := sess.manifest

	updateSet := make(map[string]struct{})
	for _, target := range targets {
		name := driver.SanitizeName(target)
		if !declaresDependency(manifest, name) {
			fmt.Fprintf(os.Stderr, "dependency %q not declared in manifest\n", target)
			return 1
		}
		updateSet[name] = struct{}{}
	}

	fmt.Fprintf(os.Stdout, "Manifest: %s\n", manifest.Path)
	fmt.Fprintf(os.Stdout, "Root package: %s\n", manifest.Name)
	fmt.Fprintf(os.Stdout, "Dependencies: %d\n", len(manifest.Dependencies))
	fmt.Fprintf(os.Stdout, "Cache directory: %s\n", sess.home)

	lockPath := driver.LockfilePath(manifest)
	lock, err := driver.LoadLockfile(lockPath)
	lockCreated := false
	switch {
	case err == nil:
		if lock.Root != manifest.Name {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match manifest name %q\n", lock.Root, manifest.Name)
			return 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		lockCreated = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return 1
	}
	lock.Path = lockPath
	lock.Tool = cliToolVersion

	previous := lock.Packages
	if update {
		kept := make([]*driver.LockedPackage, 0, len(lock.Packages))
		for _, pkg := range lock.Packages {
			if _, ok := updateSet[pkg.Name]; len(updateSet) > 0 && !ok {
				kept = append(kept, pkg)
			}
		}
		lock.Packages = kept
	}

	installer := newDependencyInstaller(manifest, sess.home, sess.logger)
	_, logs, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve dependencies: %v\n", err)
		return 1
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	changed := !lock.SamePackages(&driver.Lockfile{Packages: previous})
	if changed || lockCreated {
		action := "Updated"
		if lockCreated {
			action = "Created"
		}
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "%s package.lock: %s\n", action, lock.Path)
	} else {
		fmt.Fprintf(os.Stdout, "package.lock already up to date: %s\n", lock.Path)
	}
	fmt.Fprintln(os.Stdout, "Dependencies installed.")
	return 0
}

// newDepsSession is newSession without lockfile checks, which would reject
// the very state deps install repairs.
func newDepsSession(opts globalOptions) (*session, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	sess := &session{config: cfg}
	if sess.logger, err = newLogger(cfg); err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	if sess.manifest, err = loadManifestFrom(cwd); err != nil {
		return nil, fmt.Errorf("unable to load package.yml: %w", err)
	}
	if sess.home, err = driver.ResolveHome(); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", driver.EnvHome, err)
	}
	return sess, nil
}

func declaresDependency(manifest *driver.Manifest, name string) bool {
	for declared := range manifest.Dependencies {
		if driver.SanitizeName(declared) == name {
			return true
		}
	}
	return false
}
