package interpreter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// baseRoots is the number of values New leaves on the root stack: the
// global environment, the return slot and the library table.
const baseRoots = 3

func newTestInterpreter(t *testing.T, opts ...Option) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithStdout(&out)}, opts...)
	return New(opts...), &out
}

func mustEval(t *testing.T, interp *Interpreter, src string) *runtime.Value {
	t.Helper()
	result := interp.ReadAndEvalString(src)
	if result.Is(runtime.KindError) {
		t.Fatalf("evaluating %q failed: %s", src, result.Text())
	}
	if got := interp.Store().Roots().Len(); got != baseRoots {
		t.Fatalf("root stack depth after %q = %d, want %d", src, got, baseRoots)
	}
	return result
}

func evalError(t *testing.T, interp *Interpreter, src string) string {
	t.Helper()
	result := interp.ReadAndEvalString(src)
	if !result.Is(runtime.KindError) {
		t.Fatalf("evaluating %q: expected error, got %s", src, result)
	}
	return result.Text()
}

func expectString(t *testing.T, interp *Interpreter, src, want string) {
	t.Helper()
	if got := mustEval(t, interp, src).String(); got != want {
		t.Fatalf("%s => %s, want %s", src, got, want)
	}
}

func TestNewInstallsLibrary(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	global := interp.GlobalEnvironment().Env()
	for _, name := range []string{"define", "fn", "for", "+", "string-format", "require"} {
		if _, ok := global.Get(interp.Store().NewSymbol(name)); !ok {
			t.Fatalf("%s is not bound in the global environment", name)
		}
	}
	if got := interp.Store().Roots().Len(); got != baseRoots {
		t.Fatalf("root stack depth = %d, want %d", got, baseRoots)
	}
}

func TestReadAndEvalStringReturnsLastValue(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	expectString(t, interp, "1 2 3", "3")
	expectString(t, interp, "; only a comment\n", "nil")
}

func TestReadAndEvalStringEmptyInput(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	if msg := evalError(t, interp, ""); msg != "No input" {
		t.Fatalf("empty input error = %q", msg)
	}
}

func TestReadAndEvalStringStopsAtFirstError(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	evalError(t, interp, "(define x [x] 1) (not 1 2) (define y [y] 2)")
	expectString(t, interp, "x", "1")
	if msg := evalError(t, interp, "y"); msg != "Unbound symbol 'y'" {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestReadAndEvalStringSyntaxError(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	evalError(t, interp, "(+ 1 2")
	if got := interp.Store().Roots().Len(); got != baseRoots {
		t.Fatalf("root stack depth = %d, want %d", got, baseRoots)
	}
}

func TestReadAndEvalPathMissingFile(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	result := interp.ReadAndEvalPath(t.TempDir() + "/missing.dern")
	if !result.Is(runtime.KindError) || result.Text() != "No input" {
		t.Fatalf("missing file gave %s", result)
	}
}

func TestExitStopsEvaluation(t *testing.T) {
	interp, out := newTestInterpreter(t)
	mustEval(t, interp, "(exit 3) (println [not printed])")
	if !interp.IsQuitting() || interp.ExitCode() != 3 {
		t.Fatalf("quitting=%v code=%d", interp.IsQuitting(), interp.ExitCode())
	}
	if out.Len() != 0 {
		t.Fatalf("output after exit: %q", out.String())
	}
}

func TestAbortPanicsWithAbortError(t *testing.T) {
	interp, out := newTestInterpreter(t)
	defer func() {
		r := recover()
		abort, ok := r.(AbortError)
		if !ok {
			t.Fatalf("expected AbortError panic, got %v", r)
		}
		if abort.Message != "[fatal]" {
			t.Fatalf("abort message = %q", abort.Message)
		}
		if out.String() != "[fatal]\n" {
			t.Fatalf("abort output = %q", out.String())
		}
	}()
	interp.ReadAndEvalString("(abort [fatal])")
	t.Fatalf("abort returned")
}

func TestAbortUnwindsNestedCalls(t *testing.T) {
	interp, out := newTestInterpreter(t)
	mustEval(t, interp, `
(define f [aborts] '() (fn () (abort [boom])))
(define g [calls f] '(n [number]) (fn (n) (if (< n 1) (f) (+ 1 (g (- n 1))))))`)
	for _, src := range []string{"(f)", "(+ 1 (g 3))", "(do (define v [v] '(1)) (for x in v (f)))"} {
		out.Reset()
		func() {
			defer func() {
				if _, ok := recover().(AbortError); !ok {
					t.Fatalf("%s: expected AbortError panic", src)
				}
			}()
			interp.ReadAndEvalString(src)
			t.Fatalf("%s: abort returned", src)
		}()
		if out.String() != "[boom]\n" {
			t.Fatalf("%s: abort output = %q", src, out.String())
		}
		if got := interp.Store().Roots().Len(); got != baseRoots {
			t.Fatalf("%s: root stack depth after abort = %d, want %d", src, got, baseRoots)
		}
	}
}

func TestUserDataAndLibraries(t *testing.T) {
	interp, _ := newTestInterpreter(t, WithUserData("host"))
	if interp.UserData() != "host" {
		t.Fatalf("user data = %v", interp.UserData())
	}
	if interp.HasLibrary("core") {
		t.Fatalf("library recorded before AddLibrary")
	}
	interp.AddLibrary("core", interp.Store().NewBoolean(true))
	if !interp.HasLibrary("core") {
		t.Fatalf("library not recorded")
	}
}

func TestGarbageCollectionUnderPressure(t *testing.T) {
	interp, _ := newTestInterpreter(t, WithCollector(runtime.Collector{TriggerLimit: 1}))
	src := `
(define make [make] '(n [start]) (fn (n) (fn () (+ n 1))))
(define fs [closures] '())
(for i from 1 to 20 (+= fs (make i)))
(define total [total] 0)
(for f in fs (+= total (f)))
total`
	expectString(t, interp, src, "230")
	if interp.Store().Stats().Collections == 0 {
		t.Fatalf("expected collections to run")
	}
}

func TestCyclicValuesSurviveCollection(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	expectString(t, interp, "(define v [v] '()) (+= v v) (len v)", "1")
	if !interp.Store().Collect() {
		t.Fatalf("collect failed")
	}
	expectString(t, interp, "(len (nth 0 v))", "1")
	if !strings.Contains(mustEval(t, interp, "(to-string v)").Text(), "...") {
		t.Fatalf("cyclic vector should print with an ellipsis")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	mustEval(t, interp, "(define xs [xs] '(1 2 3))")
	interp.Close()
	if n := interp.Store().Len(); n != 0 {
		t.Fatalf("%d values survived Close", n)
	}
}
