package interpreter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/octaspire/dern-sub003/pkg/runtime"
)

// formatText expands a format string. Each {} takes the next value, ''
// stands for a single quote and '{ for a literal brace. ok is false when the
// values run out.
func formatText(format string, values []*runtime.Value, render func(*runtime.Value) string) (string, bool) {
	var b strings.Builder
	runes := []rune(format)
	next := 0
	for k := 0; k < len(runes); k++ {
		r := runes[k]
		switch {
		case r == '\'' && k+1 < len(runes) && (runes[k+1] == '\'' || runes[k+1] == '{'):
			b.WriteRune(runes[k+1])
			k++
		case r == '{' && k+1 < len(runes) && runes[k+1] == '}':
			if next >= len(values) {
				return "", false
			}
			b.WriteString(render(values[next]))
			next++
			k++
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), true
}

func builtinStringFormat(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	switch args.Len() {
	case 0:
		return i.store.NewError("Builtin 'string-format' expects at least one argument.")
	case 1:
		return i.store.NewString(args.At(0).PlainString())
	}
	format := args.At(0)
	if !format.Is(runtime.KindString) {
		return i.store.NewErrorf("First argument to builtin 'string-format' must be format string if there are more than one argument. Type '%s' was given.", format.Kind())
	}
	text, ok := formatText(format.Text(), args.Elements()[1:], (*runtime.Value).PlainString)
	if !ok {
		return i.store.NewError("Not enough arguments for the format string of 'string-format'.")
	}
	return i.store.NewString(text)
}

func builtinPrint(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() == 0 {
		return i.store.NewError("Builtin 'print' expects one or more arguments.")
	}
	return i.print("print", args, "")
}

func builtinPrintln(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() == 0 {
		fmt.Fprintln(i.stdout)
		return i.store.NewBoolean(true)
	}
	return i.print("println", args, "\n")
}

func (i *Interpreter) print(name string, args *runtime.Value, suffix string) *runtime.Value {
	first := args.At(0)
	var text string
	switch {
	case !first.Is(runtime.KindString):
		text = first.String()
	case args.Len() == 1:
		text = first.Text()
	default:
		var ok bool
		text, ok = formatText(first.Text(), args.Elements()[1:], (*runtime.Value).String)
		if !ok {
			return i.store.NewErrorf("Not enough arguments for the format string of '%s'.", name)
		}
	}
	fmt.Fprint(i.stdout, text+suffix)
	return i.store.NewBoolean(true)
}

func builtinToString(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 1 {
		return i.store.NewError("Builtin 'to-string' expects at least one argument.")
	}
	toString := func(v *runtime.Value) *runtime.Value {
		return i.store.NewString(v.String())
	}
	if args.Len() == 1 {
		return toString(args.At(0))
	}
	return i.collect(args, toString)
}

func builtinToInteger(i *Interpreter, args, env *runtime.Value) *runtime.Value {
	if args.Len() < 1 {
		return i.store.NewError("Builtin 'to-integer' expects at least one argument.")
	}
	if args.Len() == 1 {
		return i.toInteger(args.At(0))
	}
	return i.collect(args, i.toInteger)
}

func (i *Interpreter) toInteger(v *runtime.Value) *runtime.Value {
	switch v.Kind() {
	case runtime.KindInteger:
		return i.store.NewInteger(v.Int())
	case runtime.KindReal:
		t := math.Trunc(v.Real())
		if t > math.MaxInt32 || t < math.MinInt32 || math.IsNaN(t) {
			return i.store.NewErrorf("Builtin 'to-integer' cannot convert real %s into integer.", runtime.FormatReal(v.Real()))
		}
		return i.store.NewInteger(int32(t))
	case runtime.KindCharacter:
		return i.store.NewInteger(int32(v.Char()))
	case runtime.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 32)
		if err != nil {
			return i.store.NewErrorf("Builtin 'to-integer' cannot convert string '%s' into integer.", v.Text())
		}
		return i.store.NewInteger(int32(n))
	default:
		return i.store.NewErrorf("Builtin 'to-integer' cannot convert value of type '%s'.", v.Kind())
	}
}
