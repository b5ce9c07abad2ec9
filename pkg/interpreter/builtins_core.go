package interpreter

import (
	"fmt"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

func builtinNot(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewError("Builtin 'not' expects one argument.")
	}
	value := args.At(0)
	if !value.Is(runtime.KindBoolean) {
		return i.store.NewError("Builtin 'not' expects boolean argument.")
	}
	return i.store.NewBoolean(!value.Bool())
}

func builtinAbort(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewError("Builtin 'abort' expects one argument.")
	}
	message := args.At(0).String()
	fmt.Fprintln(i.stdout, message)
	panic(AbortError{Message: message})
}

// builtinReturn leaves its argument in the pending-return slot; the nearest
// enclosing function call consumes it.
func builtinReturn(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewError("Builtin 'return' expects one argument.")
	}
	value := args.At(0)
	i.SetFunctionReturn(value)
	return value
}

func builtinVector(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.store.NewVectorOf(args.Elements()...)
}

func builtinExit(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() > 1 {
		return i.store.NewError("Builtin 'exit' expects zero or one argument.")
	}
	if args.Len() == 1 {
		code := args.At(0)
		if !code.Is(runtime.KindInteger) {
			return i.store.NewErrorf("Builtin 'exit' expects integer argument. Type %s was given.", code.Kind())
		}
		i.SetExitCode(int(code.Int()))
	}
	i.Quit()
	return i.store.NewBoolean(true)
}

func builtinDoc(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 1 {
		return i.store.NewError("Builtin 'doc' expects at least one argument.")
	}
	docOf := func(v *runtime.Value) *runtime.Value {
		if v.DocString != nil {
			return v.DocString
		}
		return i.store.NewNil()
	}
	if args.Len() == 1 {
		return docOf(args.At(0))
	}
	return i.collect(args, docOf)
}

// collect maps fn over args into a new vector.
func (i *Interpreter) collect(args *runtime.Value, fn func(*runtime.Value) *runtime.Value) *runtime.Value {
	result := i.store.NewVector()
	defer i.store.Roots().Protect(result)()
	for _, arg := range args.Elements() {
		result.Push(fn(arg))
	}
	return result
}

func builtinMutable(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	switch args.Len() {
	case 0:
		return i.store.NewError("Builtin 'mutable' expects at least one argument.")
	case 1:
		args.At(0).SetMutable(runtime.MutableForever)
	case 2:
		count := args.At(1)
		if !count.Is(runtime.KindInteger) {
			return i.store.NewErrorf("Second argument to builtin 'mutable' must be integer (mutable count). Type '%s' was given.", count.Kind())
		}
		args.At(0).SetMutable(int(count.Int()))
	default:
		return i.store.NewError("Builtin 'mutable' expects one or two arguments.")
	}
	return i.store.NewBoolean(true)
}

func builtinLen(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 1 {
		return i.store.NewError("Builtin 'len' expects at least one argument.")
	}
	lenOf := func(v *runtime.Value) *runtime.Value {
		return i.store.NewInteger(int32(v.Len()))
	}
	if args.Len() == 1 {
		return lenOf(args.At(0))
	}
	return i.collect(args, lenOf)
}

func builtinEnvNew(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	switch args.Len() {
	case 0:
		return i.store.NewEnvironment(nil)
	case 1:
		enclosing := args.At(0)
		if !enclosing.Is(runtime.KindEnvironment) {
			return i.store.NewErrorf("Argument to builtin 'env-new' must be an environment. Now argument has type '%s'.", enclosing.Kind())
		}
		return i.store.NewEnvironment(enclosing)
	default:
		return i.store.NewError("Builtin 'env-new' expects zero or one arguments.")
	}
}

func builtinEnvCurrent(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 0 {
		return i.store.NewError("Builtin 'env-current' expects zero arguments.")
	}
	return env
}

func builtinEnvGlobal(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 0 {
		return i.store.NewError("Builtin 'env-global' expects zero arguments.")
	}
	return i.global
}

func builtinReadAndEvalPath(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewErrorf("Builtin 'read-and-eval-path' expects one argument. %d arguments were given.", args.Len())
	}
	path := args.At(0)
	if !path.Is(runtime.KindString) {
		return i.store.NewErrorf("First argument to builtin 'read-and-eval-path' must be string (path). Type '%s' was given.", path.Kind())
	}
	return i.ReadAndEvalPath(path.Text())
}

func builtinReadAndEvalString(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewErrorf("Builtin 'read-and-eval-string' expects one argument. %d arguments were given.", args.Len())
	}
	src := args.At(0)
	if !src.Is(runtime.KindString) {
		return i.store.NewErrorf("First argument to builtin 'read-and-eval-string' must be string (to be evaluated). Type '%s' was given.", src.Kind())
	}
	return i.ReadAndEvalString(src.Text())
}

func builtinHashMap(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	elems := args.Elements()
	if len(elems)%2 != 0 {
		return i.store.NewErrorf("Builtin 'hash-map' expects value for the key at index %d.", len(elems)-1)
	}
	result := i.store.NewHashMap()
	for k := 0; k < len(elems); k += 2 {
		result.HashMap().Put(elems[k], elems[k+1])
	}
	return result
}

func builtinNth(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 2 {
		return i.store.NewError("Builtin 'nth' expects two arguments.")
	}
	indexArg := args.At(0)
	if !indexArg.Is(runtime.KindInteger) {
		return i.store.NewErrorf("First argument to builtin 'nth' must be integer. Type '%s' was given.", indexArg.Kind())
	}
	index := int(indexArg.Int())
	collection := args.At(1)
	length := collection.Len()
	switch collection.Kind() {
	case runtime.KindString:
		if index < 0 || index >= length {
			return i.store.NewErrorf("Builtin 'nth' cannot index string of length %d from index %d.", length, index)
		}
		return i.store.NewCharacter([]rune(collection.Text())[index])
	case runtime.KindVector:
		if index < 0 || index >= length {
			return i.store.NewErrorf("Builtin 'nth' cannot index vector of length %d from index %d.", length, index)
		}
		return collection.At(index)
	case runtime.KindHashMap:
		entry, ok := collection.HashMap().At(index)
		if !ok {
			return i.store.NewErrorf("Builtin 'nth' cannot index hash map of length %d from index %d.", length, index)
		}
		return entry.Value
	default:
		return i.store.NewErrorf("Second argument to builtin 'nth' must be one of the collection types. Type '%s' was given.", collection.Kind())
	}
}

func builtinStartsWith(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 2 {
		return i.store.NewError("Builtin 'starts-with?' expects two arguments.")
	}
	whole, prefix := args.At(0), args.At(1)
	if whole.Kind() != prefix.Kind() {
		return i.store.NewBoolean(false)
	}
	switch whole.Kind() {
	case runtime.KindString, runtime.KindSymbol:
		return i.store.NewBoolean(strings.HasPrefix(whole.Text(), prefix.Text()))
	case runtime.KindVector:
		if prefix.Len() > whole.Len() {
			return i.store.NewBoolean(false)
		}
		for k, elem := range prefix.Elements() {
			if !runtime.Equal(whole.At(k), elem) {
				return i.store.NewBoolean(false)
			}
		}
		return i.store.NewBoolean(true)
	default:
		return i.store.NewErrorf("Builtin 'starts-with?' cannot test values of type '%s'.", whole.Kind())
	}
}

func builtinFind(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewErrorf("Builtin 'find' expects at least two arguments. %d arguments was given.", args.Len())
	}
	container := args.At(0)
	if args.Len() == 2 {
		return i.FindFromValue(container, args.At(1))
	}
	result := i.store.NewVector()
	defer i.store.Roots().Protect(result)()
	for _, key := range args.Elements()[1:] {
		result.Push(i.FindFromValue(container, key))
	}
	return result
}

// builtinEqualsEquals compares the already evaluated arguments with the
// first one.
func builtinEqualsEquals(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewError("Builtin '==' expects at least two arguments.")
	}
	return i.store.NewBoolean(allEqual(args))
}

func builtinNotEquals(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewError("Builtin '!=' expects at least two arguments.")
	}
	return i.store.NewBoolean(!allEqual(args))
}

func allEqual(args *runtime.Value) bool {
	first := args.At(0)
	for _, other := range args.Elements()[1:] {
		if !runtime.Equal(first, other) {
			return false
		}
	}
	return true
}

func builtinPopFront(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewError("Builtin 'pop-front' expects exactly one argument.")
	}
	vec := args.At(0)
	if !vec.Is(runtime.KindVector) {
		return i.store.NewError("Builtin 'pop-front' expects vector argument.")
	}
	if problem := i.checkMutable("pop-front", vec, 0); problem != nil {
		return problem
	}
	return i.store.NewBoolean(vec.PopFront())
}
