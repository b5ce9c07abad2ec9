package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/driver"
	"github.com/octaspire/dern-sub003/pkg/interpreter"
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

const cliToolVersion = "dern-cli 0.0.0-dev"

const (
	// exitAborted is the status used when a script calls abort.
	exitAborted = 134
	// exitFatal reports a broken interpreter invariant; the process state
	// cannot be trusted afterwards.
	exitFatal = 70
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// globalOptions are the flags accepted before the subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func run(args []string) int {
	opts, rest, err := parseGlobalOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		printUsage()
		return 1
	}
	if len(rest) == 0 {
		return runRepl(opts, nil)
	}

	switch rest[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runEntry(opts, rest[1:])
	case "eval":
		return runEval(opts, rest[1:])
	case "repl":
		return runRepl(opts, rest[1:])
	case "deps":
		return runDeps(opts, rest[1:])
	default:
		return runEntry(opts, rest)
	}
}

func parseGlobalOptions(args []string) (globalOptions, []string, error) {
	var opts globalOptions
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--config" || arg == "--log-level":
			if len(args) < 2 {
				return opts, nil, fmt.Errorf("%s requires a value", arg)
			}
			if arg == "--config" {
				opts.configPath = args[1]
			} else {
				opts.logLevel = args[1]
			}
			args = args[2:]
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
			args = args[1:]
		case strings.HasPrefix(arg, "--log-level="):
			opts.logLevel = strings.TrimPrefix(arg, "--log-level=")
			args = args[1:]
		default:
			return opts, args, nil
		}
	}
	return opts, args, nil
}

// session bundles everything needed to build an interpreter for one
// invocation.
type session struct {
	config   *driver.Config
	logger   *slog.Logger
	manifest *driver.Manifest
	lock     *driver.Lockfile
	home     string
}

// newSession loads dern.yml and the nearest package.yml (searched from
// start) and prepares logging.
func newSession(opts globalOptions, start string) (*session, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	manifest, err := loadManifestFrom(start)
	if err != nil && !errors.Is(err, driver.ErrManifestNotFound) {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	lock, err := loadLockfileForManifest(manifest)
	if err != nil {
		return nil, err
	}
	home, err := driver.ResolveHome()
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		logger.Debug("config loaded", "path", cfg.Path)
	}
	return &session{config: cfg, logger: logger, manifest: manifest, lock: lock, home: home}, nil
}

// newLogger writes text records to stderr at the configured level.
func newLogger(cfg *driver.Config) (*slog.Logger, error) {
	level, err := driver.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func loadConfig(explicit string) (*driver.Config, error) {
	if explicit != "" {
		return driver.LoadConfig(explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	path, err := driver.FindConfig(cwd)
	if errors.Is(err, driver.ErrConfigNotFound) {
		return driver.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return driver.LoadConfig(path)
}

// interpreter builds an interpreter whose require searches the session's
// library paths followed by extra directories.
func (s *session) interpreter(extra ...string) *interpreter.Interpreter {
	paths := driver.LibrarySearchPaths(s.config, s.manifest, s.lock, s.home)
	for _, dir := range extra {
		if abs, err := filepath.Abs(dir); err == nil {
			paths = append(paths, abs)
		}
	}
	s.logger.Debug("library search paths", "paths", paths)
	return interpreter.New(
		interpreter.WithLogger(s.logger),
		interpreter.WithStdout(os.Stdout),
		interpreter.WithCollector(s.config.Collector()),
		interpreter.WithLibraryPaths(paths...),
	)
}

func runEntry(opts globalOptions, args []string) int {
	if len(args) > 1 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(args[1:], " "))
		return 1
	}
	start := "."
	if len(args) == 1 && looksLikePath(args[0]) {
		start = filepath.Dir(args[0])
	}
	sess, err := newSession(opts, start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	var entry string
	switch {
	case len(args) == 0:
		if sess.manifest == nil {
			fmt.Fprintln(os.Stderr, "dern run requires a manifest target or source file (package.yml not found)")
			return 1
		}
		target, err := sess.manifest.DefaultTarget()
		if err != nil {
			fmt.Fprintf(os.Stderr, "manifest error: %v\n", err)
			return 1
		}
		entry = sess.manifest.MainPath(target)
	default:
		entry = args[0]
		if sess.manifest != nil {
			if target, ok := sess.manifest.FindTarget(args[0]); ok {
				entry = sess.manifest.MainPath(target)
			}
		}
	}
	if _, err := os.Stat(entry); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", entry, err)
		return 1
	}

	interp := sess.interpreter(filepath.Dir(entry))
	defer interp.Close()
	sess.logger.Debug("running script", "path", entry)
	return execute(interp, func() *runtime.Value {
		return interp.ReadAndEvalPath(entry)
	}, false)
}

func runEval(opts globalOptions, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "dern eval requires an expression")
		return 1
	}
	sess, err := newSession(opts, ".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	interp := sess.interpreter(".")
	defer interp.Close()
	src := strings.Join(args, " ")
	return execute(interp, func() *runtime.Value {
		return interp.ReadAndEvalString(src)
	}, true)
}

// execute evaluates through fn and maps the outcome onto an exit status.
// An Error result is reported on stderr. abort and internal invariant
// failures surface as panics and are recovered here; the latter end the
// REPL too.
func execute(interp *interpreter.Interpreter, fn func() *runtime.Value, printResult bool) (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(interpreter.AbortError); ok {
			code = exitAborted
			return
		}
		fmt.Fprintf(os.Stderr, "dern: %v\n", r)
		code = exitFatal
	}()

	result := fn()
	if interp.IsQuitting() {
		return interp.ExitCode()
	}
	if result.Is(runtime.KindError) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", result.Text())
		return 1
	}
	if printResult {
		fmt.Fprintln(os.Stdout, result.String())
	}
	return 0
}

func loadManifestFrom(start string) (*driver.Manifest, error) {
	absStart, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest search path %q: %w", start, err)
	}
	if info, statErr := os.Stat(absStart); statErr == nil && !info.IsDir() {
		absStart = filepath.Dir(absStart)
	}
	manifestPath, err := driver.FindManifest(absStart)
	if err != nil {
		return nil, err
	}
	return driver.LoadManifest(manifestPath)
}

func loadLockfileForManifest(manifest *driver.Manifest) (*driver.Lockfile, error) {
	if manifest == nil {
		return nil, nil
	}
	lockPath := driver.LockfilePath(manifest)
	lock, err := driver.LoadLockfile(lockPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if len(manifest.Dependencies) > 0 {
				return nil, fmt.Errorf("package.lock missing for %q; run `dern deps install`", manifest.Name)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", lockPath, err)
	}
	if lock.Root != manifest.Name {
		return nil, fmt.Errorf("lockfile root %q does not match manifest name %q", lock.Root, manifest.Name)
	}
	return lock, nil
}

func looksLikePath(arg string) bool {
	return strings.HasSuffix(arg, interpreter.LibraryExtension) || strings.ContainsRune(arg, filepath.Separator)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  dern [--config path] [--log-level level] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  dern run [target]")
	fmt.Fprintln(os.Stderr, "  dern run <file.dern>")
	fmt.Fprintln(os.Stderr, "  dern <file.dern>")
	fmt.Fprintln(os.Stderr, "  dern eval <expression>")
	fmt.Fprintln(os.Stderr, "  dern repl")
	fmt.Fprintln(os.Stderr, "  dern deps install")
	fmt.Fprintln(os.Stderr, "  dern deps update [dependency ...]")
}
