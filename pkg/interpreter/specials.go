package interpreter

import (
	"fmt"
	"math"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

func specialQuote(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewErrorf("Special 'quote' expects one argument. %d arguments were given.", args.Len())
	}
	return args.At(0)
}

func specialDo(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() == 0 {
		return i.store.NewError("Special 'do' expects at least one argument.")
	}
	// Errors are ordinary values here; only a pending return stops do.
	var result *runtime.Value
	for _, form := range args.Elements() {
		result = i.Eval(form, env)
		if pending := i.FunctionReturn(); pending != nil {
			return pending
		}
	}
	return result
}

func specialAnd(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() == 0 {
		return i.store.NewBoolean(true)
	}
	var result *runtime.Value
	for _, arg := range args.Elements() {
		result = i.Eval(arg, env)
		if pending := i.FunctionReturn(); pending != nil {
			return pending
		}
		if result.Is(runtime.KindError) {
			return result
		}
		if result.Is(runtime.KindBoolean) && !result.Bool() {
			break
		}
	}
	return result
}

// callTest evaluates (fn) for an if whose test is a function.
func (i *Interpreter) callTest(fn, env *runtime.Value) *runtime.Value {
	defer i.store.Roots().Protect(fn)()
	call := i.store.NewVectorOf(fn)
	defer i.store.Roots().Protect(call)()
	return i.Eval(call, env)
}

func specialIf(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	n := args.Len()
	if n != 2 && n != 3 {
		return i.store.NewErrorf("Special 'if' expects two or three arguments. %d arguments were given.", n)
	}
	test := i.Eval(args.At(0), env)
	if test.Is(runtime.KindFunction) {
		// (if (fn () x) ...) calls the function for the test value.
		test = i.callTest(test, env)
	}
	if !test.Is(runtime.KindBoolean) {
		if test.Is(runtime.KindError) {
			return test
		}
		return i.store.NewErrorf("First argument to special 'if' must evaluate into boolean value. Now it evaluated into type %s.", test.Kind())
	}
	switch {
	case test.Bool():
		return i.Eval(args.At(1), env)
	case n == 3:
		return i.Eval(args.At(2), env)
	default:
		return i.store.NewNil()
	}
}

func specialWhile(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewErrorf("Special 'while' expects at least two arguments. %d arguments were given.", args.Len())
	}
	body := args.Elements()[1:]
	var count int32
	for {
		test := i.Eval(args.At(0), env)
		if !test.Is(runtime.KindBoolean) {
			if test.Is(runtime.KindError) {
				return test
			}
			return i.store.NewErrorf("First argument to special 'while' must evaluate into boolean value. Now it evaluated into type %s.", test.Kind())
		}
		if !test.Bool() {
			break
		}
		res := i.evalSequence(body, env)
		if res.returned || res.value.Is(runtime.KindError) {
			return res.value
		}
		count++
	}
	return i.store.NewInteger(count)
}

func specialFn(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewErrorf("Special 'fn' expects at least two arguments. %d arguments were given.", args.Len())
	}
	formals := args.At(0)
	if !formals.Is(runtime.KindVector) {
		return i.store.NewErrorf("First argument to special 'fn' must be vector (formals). Type '%s' was given.", formals.Kind())
	}
	if problem := runtime.FormalsProblem(formals); problem != "" {
		return i.store.NewError(problem)
	}
	body := i.store.NewVector()
	defer i.store.Roots().Protect(body)()
	for _, form := range args.Elements()[1:] {
		if form.Is(runtime.KindError) {
			return form
		}
		body.Push(form)
	}
	return i.store.NewFunction(formals, body, env)
}

func specialUID(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 1 {
		return i.store.NewErrorf("Special 'uid' expects exactly one argument. %d arguments were given.", args.Len())
	}
	value := i.Eval(args.At(0), env)
	if value.Is(runtime.KindError) {
		return value
	}
	if value.UID() > math.MaxInt32 {
		return i.store.NewErrorf("Special 'uid' cannot represent unique id %d as integer.", value.UID())
	}
	return i.store.NewInteger(int32(value.UID()))
}

func specialAlias(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() != 2 {
		return i.store.NewError("Special 'alias' expects two arguments.")
	}
	name := args.At(0)
	if !name.Is(runtime.KindSymbol) {
		return i.store.NewErrorf("First argument to special 'alias' must be symbol. Type '%s' was given.", name.Kind())
	}
	value := i.Eval(args.At(1), env)
	if value.Is(runtime.KindError) {
		return value
	}
	env.Env().Set(name, value)
	return name
}

//-----------------------------------------------------------------------------
// Comparisons

func specialLess(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.compareChain("<", args, env, func(a, b *runtime.Value) bool {
		less, ok := runtime.Less(a, b)
		return ok && less
	})
}

func specialGreater(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.compareChain(">", args, env, func(a, b *runtime.Value) bool {
		less, ok := runtime.Less(b, a)
		return ok && less
	})
}

func specialLessOrEqual(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.compareChain("<=", args, env, func(a, b *runtime.Value) bool {
		greater, ok := runtime.Less(b, a)
		return ok && !greater
	})
}

func specialGreaterOrEqual(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.compareChain(">=", args, env, func(a, b *runtime.Value) bool {
		less, ok := runtime.Less(a, b)
		return ok && !less
	})
}

// compareChain evaluates the first argument once and tests it against each
// following argument in turn, stopping at the first failed test.
func (i *Interpreter) compareChain(name string, args, env *runtime.Value, holds func(a, b *runtime.Value) bool) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewErrorf("Special '%s' expects at least two arguments.", name)
	}
	first := i.Eval(args.At(0), env)
	if first.Is(runtime.KindError) {
		return first
	}
	defer i.store.Roots().Protect(first)()
	for _, arg := range args.Elements()[1:] {
		other := i.Eval(arg, env)
		if other.Is(runtime.KindError) {
			return other
		}
		if !holds(first, other) {
			return i.store.NewBoolean(false)
		}
	}
	return i.store.NewBoolean(true)
}

//-----------------------------------------------------------------------------
// define

func specialDefine(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	n := args.Len()
	if n != 3 && n != 4 && n != 5 {
		return i.store.NewErrorf("Special 'define' expects three, four, or five arguments. %d arguments were given.", n)
	}
	roots := i.store.Roots()
	target := env
	rest := args.Elements()
	first := i.Eval(rest[0], env)
	defer roots.Protect(first)()
	if first.Is(runtime.KindEnvironment) {
		target = first
		rest = rest[1:]
	}
	switch len(rest) {
	case 3:
		return i.defineValue(target, rest[0], rest[1], rest[2], env)
	case 4:
		return i.defineFunction(target, rest[0], rest[1], rest[2], rest[3], env)
	default:
		return i.store.NewErrorf("Special 'define' expects three or four arguments after the target environment. %d arguments were given.", len(rest))
	}
}

// defineName resolves the name form of define: a symbol, or a vector that
// evaluates into one.
func (i *Interpreter) defineName(form, env *runtime.Value, notSymbol, notEvaluated string) *runtime.Value {
	if form.Is(runtime.KindSymbol) {
		return form
	}
	if !form.Is(runtime.KindVector) {
		return i.store.NewErrorf(notSymbol, form.Kind())
	}
	name := i.Eval(form, env)
	if !name.Is(runtime.KindSymbol) {
		if name.Is(runtime.KindError) {
			return name
		}
		return i.store.NewErrorf(notEvaluated, name.Kind())
	}
	return name
}

func (i *Interpreter) defineValue(target, nameForm, doc, valueForm, env *runtime.Value) *runtime.Value {
	s := i.store
	roots := s.Roots()
	name := i.defineName(nameForm, env,
		"Special 'define': (define [optional-target-env] symbol...) name to be defined should be symbol or vector to be evaluated. Type '%s' was given.",
		"Special 'define': (define [optional-target-env] symbol...) vector for name to be defined should evaluate into symbol. Type '%s' was result of evaluation.")
	if name.Is(runtime.KindError) {
		return name
	}
	defer roots.Protect(name)()
	if !doc.Is(runtime.KindString) {
		return s.NewErrorf("Special 'define': (define [optional-target-env] symbol docstring...) docstring must be string. Type '%s' was given.", doc.Kind())
	}

	value := i.Eval(valueForm, env)
	if value.Is(runtime.KindError) {
		return value
	}
	if value.Is(runtime.KindFunction) {
		return s.NewErrorf("At definition of function '%s': functions cannot be defined with the three-argument function. Use four-argument function.", name.Text())
	}
	value = s.CopyIfAtom(value)
	defer roots.Protect(value)()
	value.DocString = doc
	return s.NewBoolean(target.Env().Set(name, value))
}

func (i *Interpreter) defineFunction(target, nameForm, doc, docVecForm, valueForm, env *runtime.Value) *runtime.Value {
	s := i.store
	roots := s.Roots()
	name := i.defineName(nameForm, env,
		"Special 'define': (define [optional-target-env] name...) Name must be symbol or vector to be evaluated. Type '%s' was given.",
		"Special 'define': (define [optional-target-env] name...) Vector for name must evaluate into symbol. Now it evaluated into type '%s'.")
	if name.Is(runtime.KindError) {
		return name
	}
	defer roots.Protect(name)()
	if !doc.Is(runtime.KindString) {
		return s.NewErrorf("Special 'define': (define [optional-target-env) name docstring...) docstring must be stringy. Type '%s' was given.", doc.Kind())
	}

	docVec := i.Eval(docVecForm, env)
	if !docVec.Is(runtime.KindVector) {
		if docVec.Is(runtime.KindError) {
			return docVec
		}
		return s.NewErrorf("Special 'define': (define [optional-target-env] name docstring docvec...). DocVec must be vector. Type '%s' was given.", docVec.Kind())
	}
	defer roots.Protect(docVec)()

	value := i.Eval(valueForm, env)
	if value.Is(runtime.KindError) {
		return value
	}
	if !value.Is(runtime.KindFunction) {
		return s.NewErrorf("Four/Five argument 'define' must be used to define functions. Definition of type '%s' was tried.", value.Kind())
	}
	defer roots.Protect(value)()
	if problems := docVecProblems(value.Function().Formals, docVec); problems != "" {
		return s.NewError(problems)
	}

	var text strings.Builder
	text.WriteString(doc.Text())
	text.WriteString("\nArguments are:")
	elems := docVec.Elements()
	for k := 0; k+1 < len(elems); k += 2 {
		fmt.Fprintf(&text, "\n%s -> %s", elems[k].Text(), elems[k+1].Text())
	}
	value.DocString = s.NewString(text.String())
	value.DocVector = docVec
	return s.NewBoolean(target.Env().Set(name, value))
}

// docVecProblems checks that every formal is documented in docVec, a vector
// of alternating symbols and strings. It returns "" when all are.
func docVecProblems(formals, docVec *runtime.Value) string {
	var b strings.Builder
	for _, formal := range formals.Elements() {
		if problem := formalDocProblem(formal.Text(), docVec.Elements()); problem != "" {
			fmt.Fprintf(&b, "formal '%s' is not handled correctly in docvec: %s\n", formal.Text(), problem)
		}
	}
	return b.String()
}

func formalDocProblem(formal string, docs []*runtime.Value) string {
	for k := 0; k < len(docs); k += 2 {
		symbol := docs[k]
		if !symbol.Is(runtime.KindSymbol) {
			return fmt.Sprintf("docvec element at index %d must be symbol, not %s", k, symbol.Kind())
		}
		if symbol.Text() != formal {
			continue
		}
		if k+1 >= len(docs) {
			return fmt.Sprintf("formal '%s' doesn't have docstring in docvec", formal)
		}
		doc := docs[k+1]
		if !doc.Is(runtime.KindString) {
			return fmt.Sprintf("type of docstring for formal '%s' is not string. It has type %s", formal, doc.Kind())
		}
		if formal == runtime.VarargsMarker && doc.Text() != "varargs" {
			return fmt.Sprintf("docstring for ... should be varargs, not it is '%s'", doc.Text())
		}
		return ""
	}
	return fmt.Sprintf("formal '%s' is not mentioned in docvec", formal)
}
