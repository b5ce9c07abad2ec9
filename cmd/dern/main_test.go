package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/octaspire/dern-sub003/pkg/interpreter"
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// isolate runs the CLI from an empty directory with a private cache home.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DERN_HOME", filepath.Join(dir, ".dern"))
	t.Setenv("DERN_PATH", "")
	chdir(t, dir)
	return dir
}

func TestVersionAndHelp(t *testing.T) {
	isolate(t)
	code, stdout, _ := captureCLI(t, []string{"--version"})
	if code != 0 || strings.TrimSpace(stdout) != cliToolVersion {
		t.Fatalf("--version = %d %q", code, stdout)
	}
	code, _, stderr := captureCLI(t, []string{"--help"})
	if code != 0 || !strings.Contains(stderr, "dern deps install") {
		t.Fatalf("--help = %d %q", code, stderr)
	}
}

func TestRunScriptFile(t *testing.T) {
	dir := isolate(t)
	script := filepath.Join(dir, "hello.dern")
	writeFile(t, script, `
(define greet [greets someone] '(who [name]) (fn (who) (println [Hello, {}!] who)))
(greet [world])
`)
	code, stdout, stderr := captureCLI(t, []string{"run", script})
	if code != 0 {
		t.Fatalf("run exited %d (stderr: %q)", code, stderr)
	}
	if stdout != "Hello, [world]!\n" {
		t.Fatalf("stdout = %q", stdout)
	}

	code, stdout, _ = captureCLI(t, []string{script})
	if code != 0 || stdout != "Hello, [world]!\n" {
		t.Fatalf("bare file invocation = %d %q", code, stdout)
	}
}

func TestRunReportsScriptErrors(t *testing.T) {
	dir := isolate(t)
	script := filepath.Join(dir, "bad.dern")
	writeFile(t, script, "(println [before])\n(not 1 2)\n(println [after])")
	code, stdout, stderr := captureCLI(t, []string{"run", script})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if stdout != "before\n" {
		t.Fatalf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "Error: Builtin 'not' expects one argument.") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRunMissingFile(t *testing.T) {
	dir := isolate(t)
	code, _, stderr := captureCLI(t, []string{"run", filepath.Join(dir, "none.dern")})
	if code != 1 || !strings.Contains(stderr, "failed to read") {
		t.Fatalf("missing file = %d %q", code, stderr)
	}
}

func TestEvalPrintsResult(t *testing.T) {
	isolate(t)
	code, stdout, stderr := captureCLI(t, []string{"eval", "(+", "1", "2)"})
	if code != 0 || stdout != "3\n" {
		t.Fatalf("eval = %d %q (stderr %q)", code, stdout, stderr)
	}
}

func TestEvalExitAndAbort(t *testing.T) {
	isolate(t)
	if code, _, _ := captureCLI(t, []string{"eval", "(exit 7)"}); code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
	code, stdout, _ := captureCLI(t, []string{"eval", "(abort [boom])"})
	if code != exitAborted {
		t.Fatalf("abort exit code = %d", code)
	}
	if stdout != "[boom]\n" {
		t.Fatalf("abort output = %q", stdout)
	}
}

func TestExecuteSeparatesFatalPanics(t *testing.T) {
	isolate(t)
	interp := interpreter.New()
	defer interp.Close()
	panics := map[string]any{
		"fatal":     runtime.FatalError{Op: "allocate", Reason: "garbage collection failed"},
		"imbalance": runtime.StackImbalanceError{},
	}
	for name, value := range panics {
		var code int
		_, stderr := captureOutput(t, func() {
			code = execute(interp, func() *runtime.Value { panic(value) }, false)
		})
		if code != exitFatal || !strings.Contains(stderr, "dern: ") {
			t.Fatalf("%s: exit code = %d (stderr %q)", name, code, stderr)
		}
	}
	var code int
	_, stderr := captureOutput(t, func() {
		code = execute(interp, func() *runtime.Value { return interp.Store().NewError("plain") }, false)
	})
	if code != 1 || !strings.Contains(stderr, "Error: plain") {
		t.Fatalf("script error = %d %q, want 1", code, stderr)
	}
}

func TestGlobalOptions(t *testing.T) {
	dir := isolate(t)
	lib := filepath.Join(dir, "shared")
	writeFile(t, filepath.Join(lib, "answers.dern"), "(define answer [the answer] 42)")
	config := filepath.Join(dir, "settings.yml")
	writeFile(t, config, `
gc:
  trigger_limit: 8
library_paths: [shared]
`)
	code, stdout, stderr := captureCLI(t, []string{"--config", config, "--log-level=error", "eval", "(require 'answers) answer"})
	if code != 0 || stdout != "42\n" {
		t.Fatalf("eval with config = %d %q (stderr %q)", code, stdout, stderr)
	}

	if code, _, stderr := captureCLI(t, []string{"--log-level", "chatty", "eval", "1"}); code != 1 || !strings.Contains(stderr, "chatty") {
		t.Fatalf("bad log level = %d %q", code, stderr)
	}
	if code, _, _ := captureCLI(t, []string{"--config"}); code != 1 {
		t.Fatalf("missing flag value accepted")
	}
}

func TestConfigDiscoveredFromWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "dern.yml"), "library_paths: [lib]")
	writeFile(t, filepath.Join(dir, "lib", "twice.dern"), "(define twice [doubles] '(n [number]) (fn (n) (* 2 n)))")
	code, stdout, stderr := captureCLI(t, []string{"eval", "(require 'twice) (twice 21)"})
	if code != 0 || stdout != "42\n" {
		t.Fatalf("eval = %d %q (stderr %q)", code, stdout, stderr)
	}
}

func TestRunManifestTarget(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "package.yml"), `
name: app
libraries: [lib]
targets:
  main: src/main.dern
  other: src/other.dern
`)
	writeFile(t, filepath.Join(dir, "lib", "strings.dern"), "(define shout [upper greeting] [HELLO])")
	writeFile(t, filepath.Join(dir, "src", "main.dern"), "(require 'strings) (println shout)")
	writeFile(t, filepath.Join(dir, "src", "other.dern"), "(println [other])")

	code, stdout, stderr := captureCLI(t, []string{"run"})
	if code != 0 || stdout != "HELLO\n" {
		t.Fatalf("run default target = %d %q (stderr %q)", code, stdout, stderr)
	}
	code, stdout, _ = captureCLI(t, []string{"run", "other"})
	if code != 0 || stdout != "other\n" {
		t.Fatalf("run other = %d %q", code, stdout)
	}
}

func TestRunRequiresLockfileForDependencies(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "package.yml"), `
name: app
targets:
  main: main.dern
dependencies:
  helpers:
    path: ../helpers
`)
	writeFile(t, filepath.Join(dir, "main.dern"), "1")
	code, _, stderr := captureCLI(t, []string{"run"})
	if code != 1 || !strings.Contains(stderr, "run `dern deps install`") {
		t.Fatalf("run without lockfile = %d %q", code, stderr)
	}
}

func TestReplReadsPipedInput(t *testing.T) {
	isolate(t)
	withStdin(t, "(define x [x] 5)\n(println [x is {}] x)\n")
	code, stdout, stderr := captureCLI(t, []string{"repl"})
	if code != 0 || stdout != "x is 5\n" {
		t.Fatalf("repl = %d %q (stderr %q)", code, stdout, stderr)
	}
}

func TestReplWithoutCommandReadsStdin(t *testing.T) {
	isolate(t)
	withStdin(t, "(exit 4)")
	if code, _, _ := captureCLI(t, nil); code != 4 {
		t.Fatalf("exit code = %d, want 4", code)
	}
}
