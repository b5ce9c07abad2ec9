package interpreter

import (
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// Callback implements a builtin or special. Builtins receive evaluated
// arguments, specials the unevaluated forms. Both receive the calling
// environment.
type Callback func(i *Interpreter, args, env *runtime.Value) *runtime.Value

type libraryEntry struct {
	name    string
	call    Callback
	minArgs int
	doc     string
}

var builtinTable = []libraryEntry{
	{"not", builtinNot, 1, "Reverse boolean value"},
	{"abort", builtinAbort, 1, "Quit execution with error message"},
	{"return", builtinReturn, 1, "Return from function early with the given value"},
	{"vector", builtinVector, 1, "Create new vector of the given values."},
	{"nth", builtinNth, 2, "Index collection; get element at the given index on the given collection"},
	{"starts-with?", builtinStartsWith, 1, "Does the first value start with the second?"},
	{"=", builtinAssign, 1, "Set atomic values, or elements of collections (vector, map, string) at the given index/key"},
	{"string-format", builtinStringFormat, 1, "Create new string from format string and values"},
	{"to-string", builtinToString, 1, "Give value or values as string(s)"},
	{"to-integer", builtinToInteger, 1, "Give value or values as integer(s)"},
	{"print", builtinPrint, 0, "Print message for the user"},
	{"println", builtinPrintln, 0, "Print message for the user and newline"},
	{"env-new", builtinEnvNew, 0, "Create new empty environment"},
	{"env-current", builtinEnvCurrent, 0, "Get the current environment used by the context where this is evaluated"},
	{"env-global", builtinEnvGlobal, 0, "Get the global environment"},
	{"-=", builtinMinusEquals, 1, "Subtract value or values from the first argument (modify it)"},
	{"+=", builtinPlusEquals, 1, "Add value or values into the first argument (modify it)"},
	{"++", builtinIncrement, 1, "Increase a value or values by one"},
	{"--", builtinDecrement, 1, "Decrease a value or values by one"},
	{"pop-front", builtinPopFront, 1, "Remove first element of a vector"},
	{"*", builtinTimes, 1, "Multiply number arguments"},
	{"+", builtinPlus, 1, "Add number arguments"},
	{"-", builtinMinus, 1, "Subtract number arguments, or negate one argument"},
	{"find", builtinFind, 2, "Find value from collection"},
	{"hash-map", builtinHashMap, 0, "Create new hash map"},
	{"exit", builtinExit, 0, "Quit and exit the vm execution or REPL"},
	{"mutable", builtinMutable, 1, "Make value mutable for count times, indefinitely or not at all (constant)"},
	{"doc", builtinDoc, 1, "Get documentation string of a value or values"},
	{"len", builtinLen, 1, "Get length of a value or values"},
	{"read-and-eval-path", builtinReadAndEvalPath, 1, "Read and evaluate a file from the given path"},
	{"read-and-eval-string", builtinReadAndEvalString, 1, "Read and evaluate the given string"},
	{"==", builtinEqualsEquals, 1, "Are the given values equal?"},
	{"!=", builtinNotEquals, 1, "Are the given values not equal?"},
	{"require", builtinRequire, 1, "Load a library by name from the library search paths, once"},
}

var specialTable = []libraryEntry{
	{"do", specialDo, 1, "Evaluate sequence of values and return the value of the last evaluation"},
	{"define", specialDefine, 3, "Bind value to name and document the binding"},
	{"quote", specialQuote, 1, "Quote a value"},
	{"if", specialIf, 1, "Select value or no value and evaluate it according to boolean test"},
	{"while", specialWhile, 2, "Evaluate values repeatedly as long as predicate is true"},
	{"for", specialFor, 3, "Evaluate values repeatedly over a numeric range or container"},
	{"<", specialLess, 1, "Is the first value less than the rest?"},
	{">", specialGreater, 1, "Is the first value greater than the rest?"},
	{"<=", specialLessOrEqual, 1, "Is the first value less than or equal to the rest?"},
	{">=", specialGreaterOrEqual, 1, "Is the first value greater than or equal to the rest?"},
	{"fn", specialFn, 2, "Create new anonymous function"},
	{"uid", specialUID, 2, "Get unique id of a value"},
	{"and", specialAnd, 0, "Evaluate values until one is false; give the last value"},
	{"alias", specialAlias, 2, "Bind an existing value to another name without copying it"},
}

func (i *Interpreter) installLibrary() {
	for _, entry := range builtinTable {
		i.RegisterBuiltin(entry.name, entry.call, entry.minArgs, entry.doc, i.global)
	}
	for _, entry := range specialTable {
		i.RegisterSpecial(entry.name, entry.call, entry.minArgs, entry.doc, i.global)
	}
}

// RegisterBuiltin binds a builtin named name in env (the global environment
// when env is nil).
func (i *Interpreter) RegisterBuiltin(name string, fn Callback, minArgs int, doc string, env *runtime.Value) bool {
	return i.register(name, fn, minArgs, doc, env, false)
}

// RegisterSpecial binds a special named name in env (the global environment
// when env is nil).
func (i *Interpreter) RegisterSpecial(name string, fn Callback, minArgs int, doc string, env *runtime.Value) bool {
	return i.register(name, fn, minArgs, doc, env, true)
}

func (i *Interpreter) register(name string, fn Callback, minArgs int, doc string, env *runtime.Value, special bool) bool {
	if env == nil {
		env = i.global
	}
	if !env.Is(runtime.KindEnvironment) {
		return false
	}
	s := i.store
	roots := s.Roots()
	defer roots.Protect(env)()

	call := func(args, callEnv *runtime.Value) *runtime.Value {
		return fn(i, args, callEnv)
	}
	var value *runtime.Value
	if special {
		value = s.NewSpecial(name, call, minArgs)
	} else {
		value = s.NewBuiltin(name, call, minArgs)
	}
	defer roots.Protect(value)()
	value.DocString = s.NewString(doc)
	symbol := s.NewSymbol(name)
	return env.Env().Set(symbol, value)
}
