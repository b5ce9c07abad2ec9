package runtime

import (
	"fmt"
	"unicode/utf8"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNil Kind = iota
	KindBoolean
	KindInteger
	KindReal
	KindString
	KindCharacter
	KindSymbol
	KindError
	KindVector
	KindHashMap
	KindEnvironment
	KindFunction
	KindSpecial
	KindBuiltin
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindCharacter:
		return "character"
	case KindSymbol:
		return "symbol"
	case KindError:
		return "error"
	case KindVector:
		return "vector"
	case KindHashMap:
		return "hash map"
	case KindEnvironment:
		return "environment"
	case KindFunction:
		return "function"
	case KindSpecial:
		return "special"
	case KindBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Mutability counter states.
const (
	MutableForever = -1
	Constant       = 0
)

// Value is the single runtime datum. Every value is owned by the Store that
// allocated it; containers hold references and never release elements.
type Value struct {
	kind   Kind
	uid    uint64
	marked bool
	freed  bool

	// DocString and DocVector are attached documentation, both optional.
	DocString *Value
	DocVector *Value

	mutable int

	boolean  bool
	integer  int32
	real     float64
	char     rune
	text     string
	vector   []*Value
	hashMap  *HashMap
	env      *Environment
	function *Function
	callable *Callable
}

//-----------------------------------------------------------------------------
// Callables

// Function is a user-defined closure.
type Function struct {
	Formals *Value
	Body    *Value
	Closure *Value
}

// CallFunc is the uniform host callback shape for builtins and specials.
type CallFunc func(args *Value, env *Value) *Value

// Callable backs both Builtin and Special values.
type Callable struct {
	Name    string
	MinArgs int
	Call    CallFunc
}

//-----------------------------------------------------------------------------
// Accessors

func (v *Value) Kind() Kind { return v.kind }

// UID is assigned at allocation and never reissued.
func (v *Value) UID() uint64 { return v.uid }

func (v *Value) Bool() bool { return v.boolean }
func (v *Value) Int() int32 { return v.integer }
func (v *Value) Real() float64 { return v.real }
func (v *Value) Char() rune { return v.char }
func (v *Value) Text() string { return v.text }
func (v *Value) HashMap() *HashMap { return v.hashMap }
func (v *Value) Env() *Environment { return v.env }
func (v *Value) Function() *Function { return v.function }
func (v *Value) Callable() *Callable { return v.callable }

// Freed reports whether the collector has swept this value.
func (v *Value) Freed() bool { return v.freed }

func (v *Value) Is(kind Kind) bool { return v != nil && v.kind == kind }

func (v *Value) IsNumber() bool { return v.kind == KindInteger || v.kind == KindReal }

// IsText reports kinds whose payload is a string.
func (v *Value) IsText() bool {
	return v.kind == KindString || v.kind == KindSymbol || v.kind == KindError
}

// IsAtom reports whether the value is copied rather than shared by bindings.
func (v *Value) IsAtom() bool {
	switch v.kind {
	case KindNil, KindBoolean, KindInteger, KindReal, KindString, KindCharacter, KindSymbol, KindError:
		return true
	default:
		return false
	}
}

// AsFloat widens integers and reals.
func (v *Value) AsFloat() float64 {
	if v.kind == KindInteger {
		return float64(v.integer)
	}
	return v.real
}

//-----------------------------------------------------------------------------
// In-place mutation

func (v *Value) SetBool(b bool) { v.boolean = b }
func (v *Value) SetInt(i int32) { v.integer = i }
func (v *Value) SetReal(f float64) { v.real = f }
func (v *Value) SetChar(r rune) { v.char = r }
func (v *Value) SetText(s string) { v.text = s }

// PromoteToReal widens an integer into a real in place.
func (v *Value) PromoteToReal() {
	if v.kind != KindInteger {
		return
	}
	v.real = float64(v.integer)
	v.integer = 0
	v.kind = KindReal
}

// PromoteToString turns a character into a one-character string in place.
func (v *Value) PromoteToString() {
	if v.kind != KindCharacter {
		return
	}
	v.text = string(v.char)
	v.char = 0
	v.kind = KindString
}

// Mutable returns the mutability counter.
func (v *Value) Mutable() int { return v.mutable }

// SetMutable sets the counter: MutableForever, Constant or a positive count.
func (v *Value) SetMutable(n int) {
	if n < MutableForever {
		n = MutableForever
	}
	v.mutable = n
}

// ConsumeMutation reports whether the value may be modified once more and
// decrements a positive counter.
func (v *Value) ConsumeMutation() bool {
	switch {
	case v.mutable == Constant:
		return false
	case v.mutable > 0:
		v.mutable--
	}
	return true
}

//-----------------------------------------------------------------------------
// Vectors

// Elements exposes the vector payload; callers must not retain it across
// mutations.
func (v *Value) Elements() []*Value { return v.vector }

func (v *Value) At(index int) *Value {
	if index < 0 || index >= len(v.vector) {
		return nil
	}
	return v.vector[index]
}

func (v *Value) Push(elem *Value) { v.vector = append(v.vector, elem) }

func (v *Value) PushFront(elem *Value) {
	v.vector = append(v.vector, nil)
	copy(v.vector[1:], v.vector)
	v.vector[0] = elem
}

// PopFront removes the first element, reporting false when empty.
func (v *Value) PopFront() bool {
	if len(v.vector) == 0 {
		return false
	}
	v.vector[0] = nil
	v.vector = v.vector[1:]
	return true
}

func (v *Value) Replace(index int, elem *Value) bool {
	if index < 0 || index >= len(v.vector) {
		return false
	}
	v.vector[index] = elem
	return true
}

func (v *Value) RemoveAt(index int) bool {
	if index < 0 || index >= len(v.vector) {
		return false
	}
	v.vector = append(v.vector[:index], v.vector[index+1:]...)
	return true
}

// Len returns the language-level length of the value.
func (v *Value) Len() int {
	switch v.kind {
	case KindString, KindSymbol, KindError:
		return utf8.RuneCountInString(v.text)
	case KindVector:
		return len(v.vector)
	case KindHashMap:
		return v.hashMap.Len()
	case KindEnvironment:
		return v.env.Len()
	case KindFunction:
		return requiredFormals(v.function.Formals)
	case KindSpecial, KindBuiltin:
		return v.callable.MinArgs
	default:
		return 1
	}
}

func requiredFormals(formals *Value) int {
	if formals == nil {
		return 0
	}
	n := len(formals.vector)
	for _, f := range formals.vector {
		if f.kind == KindSymbol && f.text == VarargsMarker {
			return n - 2
		}
	}
	return n
}
