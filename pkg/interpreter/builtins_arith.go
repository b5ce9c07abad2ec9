package interpreter

import (
	"strconv"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

//-----------------------------------------------------------------------------
// Pure arithmetic

func builtinPlus(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	elems := args.Elements()
	if len(elems) > 0 && elems[0].Is(runtime.KindString) {
		var b strings.Builder
		for k, arg := range elems {
			switch arg.Kind() {
			case runtime.KindString:
				b.WriteString(arg.Text())
			case runtime.KindCharacter:
				b.WriteRune(arg.Char())
			default:
				return i.store.NewErrorf("Builtin '+' expects textual arguments if the first argument is textual. %s argument has type %s.", ordinal(k), arg.Kind())
			}
		}
		return i.store.NewString(b.String())
	}
	return i.fold("+", elems, 0, 0, func(a, b int32) int32 { return a + b }, func(a, b float64) float64 { return a + b })
}

func builtinMinus(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	elems := args.Elements()
	if len(elems) > 0 && elems[0].Is(runtime.KindString) {
		text := elems[0].Text()
		for k, arg := range elems[1:] {
			switch arg.Kind() {
			case runtime.KindString:
				text = strings.ReplaceAll(text, arg.Text(), "")
			case runtime.KindCharacter:
				text = strings.ReplaceAll(text, string(arg.Char()), "")
			default:
				return i.store.NewErrorf("Builtin '-' expects textual arguments if the first argument is textual. %s argument has type %s.", ordinal(k+1), arg.Kind())
			}
		}
		return i.store.NewString(text)
	}
	if len(elems) == 1 {
		arg := elems[0]
		switch arg.Kind() {
		case runtime.KindInteger:
			return i.store.NewInteger(-arg.Int())
		case runtime.KindReal:
			return i.store.NewReal(-arg.Real())
		case runtime.KindError:
			return arg
		default:
			return i.store.NewErrorf("Builtin '-' expects numeric arguments (integer or real). 1th argument has type %s.", arg.Kind())
		}
	}
	if len(elems) == 0 {
		return i.store.NewInteger(0)
	}
	first := elems[0]
	if !first.IsNumber() {
		if first.Is(runtime.KindError) {
			return first
		}
		return i.store.NewErrorf("Builtin '-' expects numeric arguments (integer or real). 1th argument has type %s.", first.Kind())
	}
	rest := i.fold("-", elems[1:], 1, 0, func(a, b int32) int32 { return a + b }, func(a, b float64) float64 { return a + b })
	switch {
	case rest.Is(runtime.KindError):
		return rest
	case first.Is(runtime.KindInteger) && rest.Is(runtime.KindInteger):
		return i.store.NewInteger(first.Int() - rest.Int())
	default:
		return i.store.NewReal(first.AsFloat() - rest.AsFloat())
	}
}

func builtinTimes(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.fold("*", args.Elements(), 0, 1, func(a, b int32) int32 { return a * b }, func(a, b float64) float64 { return a * b })
}

// fold combines numeric arguments, staying integral until the first real.
// Error arguments are passed through. offset is the position of elems[0] in
// the full argument list.
func (i *Interpreter) fold(name string, elems []*runtime.Value, offset int, start int32, ints func(a, b int32) int32, reals func(a, b float64) float64) *runtime.Value {
	acc := start
	var racc float64
	isReal := false
	for k, arg := range elems {
		switch arg.Kind() {
		case runtime.KindInteger:
			if isReal {
				racc = reals(racc, float64(arg.Int()))
			} else {
				acc = ints(acc, arg.Int())
			}
		case runtime.KindReal:
			if !isReal {
				isReal = true
				racc = float64(acc)
			}
			racc = reals(racc, arg.Real())
		case runtime.KindError:
			return arg
		default:
			return i.store.NewErrorf("Builtin '%s' expects numeric arguments (integer or real). %s argument has type %s.", name, ordinal(offset+k), arg.Kind())
		}
	}
	if isReal {
		return i.store.NewReal(racc)
	}
	return i.store.NewInteger(acc)
}

//-----------------------------------------------------------------------------
// In-place modification

func builtinIncrement(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.step("++", args, 1)
}

func builtinDecrement(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	return i.step("--", args, -1)
}

// step adds delta to every argument in place and returns the last one.
func (i *Interpreter) step(name string, args *runtime.Value, delta int32) *runtime.Value {
	if args.Len() < 1 {
		return i.store.NewErrorf("Builtin '%s' expects at least one argument.", name)
	}
	for k, arg := range args.Elements() {
		if !arg.IsNumber() {
			return i.store.NewErrorf("Arguments to builtin '%s' must be numbers. %s argument has type '%s'.", name, ordinal(k), arg.Kind())
		}
	}
	for k, arg := range args.Elements() {
		if problem := i.checkMutable(name, arg, k); problem != nil {
			return problem
		}
		if arg.Is(runtime.KindInteger) {
			arg.SetInt(arg.Int() + delta)
		} else {
			arg.SetReal(arg.Real() + float64(delta))
		}
	}
	return args.At(args.Len() - 1)
}

func builtinPlusEquals(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewError("Builtin '+=' expects at least two arguments.")
	}
	target := args.At(0)
	switch target.Kind() {
	case runtime.KindCharacter, runtime.KindInteger, runtime.KindReal, runtime.KindString, runtime.KindVector, runtime.KindHashMap:
	default:
		return i.store.NewErrorf("First argument to builtin '+=' cannot be of type '%s'.", target.Kind())
	}
	if problem := i.checkMutable("+=", target, 0); problem != nil {
		return problem
	}
	if target.Is(runtime.KindHashMap) {
		return i.addToHashMap(target, args.Elements()[1:])
	}
	for _, arg := range args.Elements()[1:] {
		if !i.addTo(target, arg) {
			return i.store.NewError("Builtin '+=' failed")
		}
	}
	return target
}

// addTo adds one value to target in place. A character target becomes a
// string when text is added to it; an integer target becomes a real when a
// real is added.
func (i *Interpreter) addTo(target, arg *runtime.Value) bool {
	switch target.Kind() {
	case runtime.KindCharacter:
		switch arg.Kind() {
		case runtime.KindInteger:
			target.SetChar(target.Char() + rune(arg.Int()))
			return true
		case runtime.KindCharacter, runtime.KindString:
			target.PromoteToString()
			return i.addTo(target, arg)
		}
		return false
	case runtime.KindInteger, runtime.KindReal:
		switch arg.Kind() {
		case runtime.KindInteger, runtime.KindReal:
			addNumber(target, arg.Kind() == runtime.KindReal, arg.Int(), arg.Real())
			return true
		case runtime.KindString:
			isReal, n, f, ok := parseNumber(arg.Text())
			if !ok {
				return false
			}
			addNumber(target, isReal, n, f)
			return true
		case runtime.KindVector:
			for _, elem := range arg.Elements() {
				if !i.addTo(target, elem) {
					return false
				}
			}
			return true
		}
		return false
	case runtime.KindVector:
		target.Push(i.store.CopyIfAtom(arg))
		return true
	case runtime.KindString:
		switch arg.Kind() {
		case runtime.KindString, runtime.KindSymbol:
			target.SetText(target.Text() + arg.Text())
		case runtime.KindCharacter:
			target.SetText(target.Text() + string(arg.Char()))
		case runtime.KindVector:
			for _, elem := range arg.Elements() {
				if !i.addTo(target, elem) {
					return false
				}
			}
		default:
			target.SetText(target.Text() + arg.String())
		}
		return true
	}
	return false
}

func addNumber(target *runtime.Value, isReal bool, n int32, f float64) {
	if isReal && target.Is(runtime.KindInteger) {
		target.PromoteToReal()
	}
	switch {
	case target.Is(runtime.KindInteger):
		target.SetInt(target.Int() + n)
	case isReal:
		target.SetReal(target.Real() + f)
	default:
		target.SetReal(target.Real() + float64(n))
	}
}

// parseNumber accepts only digits, a leading minus and a decimal point; a
// point makes the number real.
func parseNumber(text string) (isReal bool, n int32, f float64, ok bool) {
	if text == "" || strings.Trim(text, "-0123456789.") != "" {
		return false, 0, 0, false
	}
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		return true, 0, f, err == nil
	}
	v, err := strconv.ParseInt(text, 10, 32)
	return false, int32(v), 0, err == nil
}

func (i *Interpreter) addToHashMap(target *runtime.Value, rest []*runtime.Value) *runtime.Value {
	switch len(rest) {
	case 1:
		arg := rest[0]
		switch {
		case arg.Is(runtime.KindHashMap):
			for _, entry := range arg.HashMap().Entries() {
				i.putCopy(target, entry.Key, entry.Value)
			}
			return target
		case arg.Is(runtime.KindVector) && arg.Len()%2 == 0:
			elems := arg.Elements()
			for k := 0; k < len(elems); k += 2 {
				i.putCopy(target, elems[k], elems[k+1])
			}
			return target
		}
		return i.store.NewError("Builtin '+=' failed")
	case 2:
		i.putCopy(target, rest[0], rest[1])
		return target
	default:
		return i.store.NewError("Builtin '+=' expects one or two additional arguments for hash map")
	}
}

// putCopy stores copies of atomic keys and values so later in-place changes
// to the originals do not leak into the map.
func (i *Interpreter) putCopy(target, key, value *runtime.Value) {
	k := i.store.CopyIfAtom(key)
	defer i.store.Roots().Protect(k)()
	target.HashMap().Put(k, i.store.CopyIfAtom(value))
}

func builtinMinusEquals(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 2 {
		return i.store.NewError("Builtin '-=' expects at least two arguments.")
	}
	target := args.At(0)
	switch target.Kind() {
	case runtime.KindCharacter, runtime.KindInteger, runtime.KindReal, runtime.KindString, runtime.KindVector, runtime.KindHashMap:
	default:
		return i.store.NewErrorf("First argument to builtin '-=' cannot be of type '%s'.", target.Kind())
	}
	if problem := i.checkMutable("-=", target, 0); problem != nil {
		return problem
	}
	for _, arg := range args.Elements()[1:] {
		if !subtractFrom(target, arg) {
			return i.store.NewError("Builtin '-=' failed")
		}
	}
	return target
}

func subtractFrom(target, arg *runtime.Value) bool {
	switch target.Kind() {
	case runtime.KindCharacter:
		switch arg.Kind() {
		case runtime.KindInteger:
			target.SetChar(target.Char() - rune(arg.Int()))
		case runtime.KindCharacter:
			target.SetChar(target.Char() - arg.Char())
		default:
			return false
		}
	case runtime.KindInteger, runtime.KindReal:
		if !arg.IsNumber() {
			return false
		}
		addNumber(target, arg.Is(runtime.KindReal), -arg.Int(), -arg.Real())
	case runtime.KindVector:
		for k := target.Len() - 1; k >= 0; k-- {
			if runtime.Equal(target.At(k), arg) {
				target.RemoveAt(k)
			}
		}
	case runtime.KindString:
		switch arg.Kind() {
		case runtime.KindString:
			target.SetText(strings.ReplaceAll(target.Text(), arg.Text(), ""))
		case runtime.KindCharacter:
			target.SetText(strings.ReplaceAll(target.Text(), string(arg.Char()), ""))
		default:
			return false
		}
	case runtime.KindHashMap:
		return target.HashMap().Remove(arg)
	default:
		return false
	}
	return true
}

//-----------------------------------------------------------------------------
// Assignment

// builtinAssign implements both (= target source), which overwrites target
// in place, and (= collection key value), which sets one element.
func builtinAssign(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	s := i.store
	switch args.Len() {
	case 2:
		target, src := args.At(0), args.At(1)
		switch src.Kind() {
		case runtime.KindEnvironment, runtime.KindFunction, runtime.KindSpecial, runtime.KindBuiltin:
			return s.NewErrorf("Builtin '=' cannot assign value of type '%s'. Use 'define' to bind it instead.", src.Kind())
		}
		switch target.Kind() {
		case runtime.KindEnvironment, runtime.KindFunction, runtime.KindSpecial, runtime.KindBuiltin:
			return s.NewErrorf("Builtin '=' cannot assign to value of type '%s'.", target.Kind())
		}
		if problem := i.checkMutable("=", target, 0); problem != nil {
			return problem
		}
		s.Set(target, src)
		return target
	case 3:
		return i.assignElement(args.At(0), args.At(1), args.At(2))
	default:
		return s.NewError("Builtin '=' expects two or three arguments.")
	}
}

func (i *Interpreter) assignElement(target, key, value *runtime.Value) *runtime.Value {
	s := i.store
	switch target.Kind() {
	case runtime.KindString, runtime.KindVector, runtime.KindHashMap, runtime.KindEnvironment:
	default:
		return s.NewBoolean(false)
	}
	if problem := i.checkMutable("=", target, 0); problem != nil {
		return problem
	}
	switch target.Kind() {
	case runtime.KindString:
		if !key.Is(runtime.KindInteger) {
			return s.NewErrorf("Builtin '=' expects integer index for string. Type '%s' was given.", key.Kind())
		}
		if !value.Is(runtime.KindCharacter) {
			return s.NewErrorf("Builtin '=' expects character value for string. Type '%s' was given.", value.Kind())
		}
		runes := []rune(target.Text())
		index := int(key.Int())
		switch {
		case index >= 0 && index < len(runes):
			runes[index] = value.Char()
		case index == len(runes):
			runes = append(runes, value.Char())
		default:
			return s.NewErrorf("Builtin '=' cannot index string of length %d from index %d.", len(runes), index)
		}
		target.SetText(string(runes))
	case runtime.KindVector:
		if !key.Is(runtime.KindInteger) || key.Int() < 0 {
			return s.NewErrorf("Builtin '=' expects non-negative integer index for vector. Value '%s' was given.", key.String())
		}
		index := int(key.Int())
		for target.Len() <= index {
			target.Push(s.NewNil())
		}
		target.Replace(index, s.CopyIfAtom(value))
	case runtime.KindHashMap:
		i.putCopy(target, key, value)
	case runtime.KindEnvironment:
		if !key.Is(runtime.KindSymbol) {
			return s.NewErrorf("Builtin '=' expects symbol key for environment. Type '%s' was given.", key.Kind())
		}
		target.Env().Set(key, value)
	}
	return target
}
