package interpreter

import (
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

const formAnnotation = " At form:\n"

// Eval evaluates value in env. Both are kept on the root stack while
// evaluation runs; the result is returned unrooted.
func (i *Interpreter) Eval(value, env *runtime.Value) *runtime.Value {
	if value == nil {
		panic(runtime.FatalError{Op: "eval", Reason: "nil value"})
	}
	if !env.Is(runtime.KindEnvironment) {
		panic(runtime.FatalError{Op: "eval", Reason: "environment required"})
	}
	roots := i.store.Roots()
	depth := roots.Len()
	finished := false
	defer func() {
		// Skipped while a panic unwinds; the outer frames pop in order.
		if finished && roots.Len() != depth {
			panic(runtime.StackImbalanceError{Expected: value, Top: roots.Peek(), Depth: roots.Len()})
		}
	}()
	defer roots.Protect(value, env)()
	result := i.eval(value, env)
	finished = true
	return result
}

func (i *Interpreter) eval(value, env *runtime.Value) *runtime.Value {
	switch value.Kind() {
	case runtime.KindSymbol:
		if bound, ok := env.Env().Get(value); ok {
			return bound
		}
		return i.store.NewErrorf("Unbound symbol '%s'", value.Text())
	case runtime.KindVector:
		return i.evalForm(value, env)
	default:
		return value
	}
}

// evalForm evaluates an application (operator arg...).
func (i *Interpreter) evalForm(form, env *runtime.Value) *runtime.Value {
	elems := form.Elements()
	if len(elems) == 0 {
		return i.store.NewError("Cannot evaluate empty vector '()'")
	}
	operator := i.Eval(elems[0], env)
	defer i.store.Roots().Protect(operator)()

	switch operator.Kind() {
	case runtime.KindSpecial:
		return i.callSpecial(operator, form, env)
	case runtime.KindBuiltin:
		return i.callBuiltin(operator, form, env)
	case runtime.KindFunction:
		return i.callFunction(operator, form, env)
	case runtime.KindError:
		return operator
	default:
		return i.store.NewErrorf("Cannot evaluate operator of type '%s' (%s)", operator.Kind(), operator)
	}
}

// callSpecial passes the unevaluated arguments to the special.
func (i *Interpreter) callSpecial(special, form, env *runtime.Value) *runtime.Value {
	args := i.store.NewVector()
	defer i.store.Roots().Protect(args)()
	for _, elem := range form.Elements()[1:] {
		if elem.Is(runtime.KindError) {
			return elem
		}
		args.Push(elem)
	}
	result := special.Callable().Call(args, env)
	if result.Is(runtime.KindError) {
		annotate(result, form)
	}
	return result
}

func (i *Interpreter) callBuiltin(builtin, form, env *runtime.Value) *runtime.Value {
	args, failed := i.evalArgs(form, env)
	if failed != nil {
		return failed
	}
	defer i.store.Roots().Protect(args)()
	result := builtin.Callable().Call(args, env)
	if result.Is(runtime.KindError) {
		annotate(result, form)
	}
	return result
}

func (i *Interpreter) callFunction(fn, form, env *runtime.Value) *runtime.Value {
	args, failed := i.evalArgs(form, env)
	if failed != nil {
		return failed
	}
	roots := i.store.Roots()
	defer roots.Protect(args)()

	f := fn.Function()
	callEnv := i.store.NewEnvironment(f.Closure)
	defer roots.Protect(callEnv)()
	if problem := i.store.Extend(callEnv, f.Formals, args); problem != nil {
		return problem
	}
	res := i.evalSequence(f.Body.Elements(), callEnv)
	if res.returned {
		i.SetFunctionReturn(nil)
	}
	return res.value
}

// evalArgs evaluates the operands of form left to right into a new vector.
// The first error or pending return stops evaluation and is returned as
// failed.
func (i *Interpreter) evalArgs(form, env *runtime.Value) (args, failed *runtime.Value) {
	args = i.store.NewVector()
	defer i.store.Roots().Protect(args)()
	for _, elem := range form.Elements()[1:] {
		v := i.Eval(elem, env)
		if v.Is(runtime.KindError) || i.FunctionReturn() != nil {
			return nil, v
		}
		args.Push(v)
	}
	return args, nil
}

// bodyResult is the outcome of evaluating a sequence of forms. returned is
// set when a return inside the sequence left a pending value.
type bodyResult struct {
	value    *runtime.Value
	returned bool
}

// evalSequence evaluates forms in order, stopping at the first error or
// pending return. Only function calls consume a pending return; every other
// caller passes it outward.
func (i *Interpreter) evalSequence(forms []*runtime.Value, env *runtime.Value) bodyResult {
	var result *runtime.Value
	for _, form := range forms {
		result = i.Eval(form, env)
		if pending := i.FunctionReturn(); pending != nil {
			return bodyResult{value: pending, returned: true}
		}
		if result.Is(runtime.KindError) {
			return bodyResult{value: result}
		}
	}
	if result == nil {
		result = i.store.NewNil()
	}
	return bodyResult{value: result}
}

// annotate appends the failing form to an error message once.
func annotate(errValue, form *runtime.Value) {
	if strings.Contains(errValue.Text(), formAnnotation) {
		return
	}
	errValue.SetText(errValue.Text() + formAnnotation + form.String())
}
