package interpreter

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/octaspire/dern-sub003/pkg/parser"
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// Interpreter evaluates Dern values. All values live in one store; the
// global environment, the pending-return slot and the library registry sit
// at the base of its root stack for the interpreter's lifetime.
type Interpreter struct {
	store        *runtime.Store
	global       *runtime.Value
	returnSlot   *runtime.Value
	libraries    *runtime.Value
	stdout       io.Writer
	logger       *slog.Logger
	libraryPaths []string
	userData     any
	quitting     bool
	exitCode     int
}

// Option configures an interpreter at construction.
type Option func(*settings)

type settings struct {
	collector    runtime.Collector
	logger       *slog.Logger
	stdout       io.Writer
	libraryPaths []string
	userData     any
}

// WithLogger routes collector and loader diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStdout redirects print, println and abort output.
func WithStdout(w io.Writer) Option {
	return func(s *settings) { s.stdout = w }
}

// WithCollector sets the collection schedule.
func WithCollector(c runtime.Collector) Option {
	return func(s *settings) { s.collector = c }
}

// WithLibraryPaths sets the directories searched by require.
func WithLibraryPaths(paths ...string) Option {
	return func(s *settings) { s.libraryPaths = append(s.libraryPaths, paths...) }
}

// WithUserData attaches an opaque host value.
func WithUserData(data any) Option {
	return func(s *settings) { s.userData = data }
}

// New creates an interpreter with the standard library installed in its
// global environment.
func New(opts ...Option) *Interpreter {
	cfg := settings{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store := runtime.NewStore(cfg.collector, logger)
	i := &Interpreter{
		store:        store,
		stdout:       cfg.stdout,
		logger:       logger,
		libraryPaths: cfg.libraryPaths,
		userData:     cfg.userData,
	}

	prev := store.PreventGC(true)
	i.global = store.NewEnvironment(nil)
	store.Roots().Push(i.global)
	i.returnSlot = store.NewVector()
	store.Roots().Push(i.returnSlot)
	i.libraries = store.NewHashMap()
	store.Roots().Push(i.libraries)
	i.installLibrary()
	store.PreventGC(prev)
	return i
}

// Store exposes the value store, mainly for hosts building values.
func (i *Interpreter) Store() *runtime.Store { return i.store }

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Value { return i.global }

// Logger returns the interpreter's logger.
func (i *Interpreter) Logger() *slog.Logger { return i.logger }

func (i *Interpreter) Quit() { i.quitting = true }
func (i *Interpreter) IsQuitting() bool { return i.quitting }
func (i *Interpreter) ExitCode() int { return i.exitCode }
func (i *Interpreter) SetExitCode(c int) { i.exitCode = c }
func (i *Interpreter) UserData() any { return i.userData }
func (i *Interpreter) SetUserData(d any) { i.userData = d }
func (i *Interpreter) Stdout() io.Writer { return i.stdout }
func (i *Interpreter) LibraryPaths() []string {
	return append([]string(nil), i.libraryPaths...)
}

// FunctionReturn returns the pending early-return value, or nil.
func (i *Interpreter) FunctionReturn() *runtime.Value {
	return i.returnSlot.At(0)
}

// SetFunctionReturn sets or, with nil, clears the pending early-return
// value. The slot keeps its value reachable for the collector.
func (i *Interpreter) SetFunctionReturn(v *runtime.Value) {
	for i.returnSlot.PopFront() {
	}
	if v != nil {
		i.returnSlot.Push(v)
	}
}

// AddLibrary records a loaded library under name.
func (i *Interpreter) AddLibrary(name string, value *runtime.Value) {
	defer i.store.Roots().Protect(value)()
	key := i.store.NewString(name)
	i.libraries.HashMap().Put(key, value)
}

// HasLibrary reports whether name was recorded with AddLibrary.
func (i *Interpreter) HasLibrary(name string) bool {
	for _, entry := range i.libraries.HashMap().Entries() {
		if entry.Key.Text() == name {
			return true
		}
	}
	return false
}

// Parse reads every value in src. The values are not rooted.
func (i *Interpreter) Parse(src string) ([]*runtime.Value, error) {
	return parser.ParseAll(i.store, src)
}

// ReadAndEvalString parses src and evaluates each value in the global
// environment. Evaluation stops at the first error, which is returned;
// otherwise the last result is returned.
func (i *Interpreter) ReadAndEvalString(src string) *runtime.Value {
	if src == "" {
		return i.store.NewError("No input")
	}
	roots := i.store.Roots()
	lastGood := i.store.NewVector()
	defer roots.Protect(lastGood)()

	p := parser.New(i.store, src)
	for !i.quitting {
		form, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			i.logger.Debug("read: syntax error", "error", err)
			return i.store.NewError(err.Error())
		}
		result := i.evalTopLevel(form)
		if result.Is(runtime.KindError) {
			i.logger.Debug("eval: error", "message", result.Text())
			return result
		}
		lastGood.PopFront()
		lastGood.Push(result)
	}
	if last := lastGood.At(0); last != nil {
		return last
	}
	return i.store.NewNil()
}

// ReadAndEvalBuffer is ReadAndEvalString over a byte buffer.
func (i *Interpreter) ReadAndEvalBuffer(buf []byte) *runtime.Value {
	return i.ReadAndEvalString(string(buf))
}

// ReadAndEvalPath reads and evaluates the file at path. Unreadable or empty
// files report "No input".
func (i *Interpreter) ReadAndEvalPath(path string) *runtime.Value {
	data, err := os.ReadFile(path)
	if err != nil {
		i.logger.Debug("read: cannot read file", "path", path, "error", err)
		return i.store.NewError("No input")
	}
	return i.ReadAndEvalBuffer(data)
}

func (i *Interpreter) evalTopLevel(form *runtime.Value) *runtime.Value {
	defer i.store.Roots().Protect(form)()
	result := i.Eval(form, i.global)
	i.SetFunctionReturn(nil)
	return result
}

// Close drops every root and collects, releasing all values.
func (i *Interpreter) Close() {
	i.store.Roots().Clear()
	i.store.Collect()
}
