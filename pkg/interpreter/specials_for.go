package interpreter

import (
	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// specialFor iterates either a container:
//
//	(for x in container [step n] body...)
//
// or an inclusive integer range, counting down when from > to:
//
//	(for i from a to b [step n] body...)
//
// It evaluates to the number of iterations run.
func specialFor(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	n := args.Len()
	if n < 4 {
		return i.store.NewErrorf("Special 'for' expects at least four (for iterating container) or five (for iterating numeric range) arguments. %d arguments were given.", n)
	}
	counter := args.At(0)
	if !counter.Is(runtime.KindSymbol) {
		return i.store.NewErrorf("First argument to special 'for' must be symbol value. Now it has type %s.", counter.Kind())
	}
	mode := args.At(1)
	if !mode.Is(runtime.KindSymbol) {
		return i.store.NewErrorf("Second argument to special 'for' must be symbol 'in' or 'from'. Now it has type %s.", mode.Kind())
	}
	switch mode.Text() {
	case "in":
		return i.forIn(args, env)
	case "from":
		return i.forRange(args, env)
	default:
		return i.store.NewErrorf("Second argument to special 'for' must be symbol 'in' or 'from'. Now it is '%s'.", mode.Text())
	}
}

// forStep parses an optional `step n` at index at. It returns the step, the
// index where the body starts, or an Error value.
func (i *Interpreter) forStep(args *runtime.Value, at, minArgs int, position string) (int, int, *runtime.Value) {
	marker := args.At(at)
	if marker == nil || !marker.Is(runtime.KindSymbol) || marker.Text() != "step" {
		return 1, at, nil
	}
	if args.Len() < minArgs {
		return 0, 0, i.store.NewErrorf("Special 'for' expects at least %d arguments with a given step size. %d arguments were given.", minArgs, args.Len())
	}
	step := args.At(at + 1)
	if !step.Is(runtime.KindInteger) {
		return 0, 0, i.store.NewErrorf("%s argument to special 'for' using 'step' must be an integer step size. Now it has type %s.", position, step.Kind())
	}
	if step.Int() <= 0 {
		return 0, 0, i.store.NewErrorf("The 'step' of special 'for' must be larger than zero. Now it is %d.", step.Int())
	}
	return int(step.Int()), at + 2, nil
}

func (i *Interpreter) forIn(args, env *runtime.Value) *runtime.Value {
	s := i.store
	container := i.Eval(args.At(2), env)
	switch container.Kind() {
	case runtime.KindString, runtime.KindVector, runtime.KindEnvironment, runtime.KindHashMap:
	case runtime.KindError:
		return container
	default:
		return s.NewErrorf("Third argument to special 'for' using 'in' must be a container (string, vector, hash map or environment) Now it has type %s.", container.Kind())
	}
	defer s.Roots().Protect(container)()

	step, bodyStart, problem := i.forStep(args, 3, 5, "Fifth")
	if problem != nil {
		return problem
	}
	body := args.Elements()[bodyStart:]

	index := 0
	var next func() (*runtime.Value, bool)
	switch container.Kind() {
	case runtime.KindString:
		runes := []rune(container.Text())
		next = func() (*runtime.Value, bool) {
			if index >= len(runes) {
				return nil, false
			}
			r := runes[index]
			index += step
			return s.NewCharacter(r), true
		}
	case runtime.KindVector:
		next = func() (*runtime.Value, bool) {
			elem := container.At(index)
			index += step
			return elem, elem != nil
		}
	case runtime.KindEnvironment:
		next = func() (*runtime.Value, bool) {
			entry, ok := container.Env().At(index)
			index += step
			if !ok {
				return nil, false
			}
			return i.iterationPair(entry.Key, entry.Value), true
		}
	case runtime.KindHashMap:
		next = func() (*runtime.Value, bool) {
			entry, ok := container.HashMap().At(index)
			index += step
			if !ok {
				return nil, false
			}
			return i.iterationPair(entry.Key, entry.Value), true
		}
	}
	return i.iterate(env, args.At(0), body, next)
}

// iterationPair builds the (key value) element of a map or environment loop.
// Atomic keys are copied so changing the pair cannot move a binding.
func (i *Interpreter) iterationPair(key, value *runtime.Value) *runtime.Value {
	key = i.store.CopyIfAtom(key)
	defer i.store.Roots().Protect(key)()
	return i.store.NewVectorOf(key, value)
}

func (i *Interpreter) forRange(args, env *runtime.Value) *runtime.Value {
	s := i.store
	n := args.Len()
	if n < 5 {
		return s.NewErrorf("Special 'for' expects at least five arguments for iterating numeric range. %d arguments were given.", n)
	}
	from := i.Eval(args.At(2), env)
	if !from.Is(runtime.KindInteger) {
		if from.Is(runtime.KindError) {
			return from
		}
		return s.NewErrorf("Third argument to special 'for' using 'from' must be integer. Now it has type %s.", from.Kind())
	}
	defer s.Roots().Protect(from)()
	if to := args.At(3); !to.Is(runtime.KindSymbol) || to.Text() != "to" {
		return s.NewError("Fourth argument to special 'for' using 'from' must be symbol 'to'.")
	}
	to := i.Eval(args.At(4), env)
	if to.Kind() != from.Kind() {
		if to.Is(runtime.KindError) {
			return to
		}
		return s.NewErrorf("Fifth argument to special 'for' using 'from' must be of same type than the third (%s). Now it has type %s.", from.Kind(), to.Kind())
	}
	defer s.Roots().Protect(to)()

	step, bodyStart, problem := i.forStep(args, 5, 7, "Seventh")
	if problem != nil {
		return problem
	}
	body := args.Elements()[bodyStart:]

	current, last := int64(from.Int()), int64(to.Int())
	delta := int64(step)
	if current > last {
		delta = -delta
	}
	next := func() (*runtime.Value, bool) {
		if (delta > 0 && current > last) || (delta < 0 && current < last) {
			return nil, false
		}
		v := s.NewInteger(int32(current))
		current += delta
		return v, true
	}
	return i.iterate(env, args.At(0), body, next)
}

// iterate binds symbol to each item from next in a fresh environment
// enclosed by env and evaluates body for it. Errors and pending returns end
// the loop; otherwise the result is the iteration count.
func (i *Interpreter) iterate(env, symbol *runtime.Value, body []*runtime.Value, next func() (*runtime.Value, bool)) *runtime.Value {
	loopEnv := i.store.NewEnvironment(env)
	defer i.store.Roots().Protect(loopEnv)()
	var count int32
	for {
		item, ok := next()
		if !ok {
			break
		}
		loopEnv.Env().Set(symbol, item)
		if len(body) > 0 {
			res := i.evalSequence(body, loopEnv)
			if res.returned || res.value.Is(runtime.KindError) {
				return res.value
			}
		}
		count++
	}
	return i.store.NewInteger(count)
}
