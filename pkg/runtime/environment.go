package runtime

import (
	"fmt"
	"sort"
)

// VarargsMarker is the formal that collects remaining arguments into the
// formal just before it.
const VarargsMarker = "..."

// Environment provides lexical scoping for Dern runtime values. It lives
// inside a KindEnvironment value so the collector can reach it.
type Environment struct {
	bindings  *HashMap
	enclosing *Value
}

// Enclosing exposes the lexical parent value (nil for the global scope).
func (e *Environment) Enclosing() *Value {
	return e.enclosing
}

// Len returns the number of bindings in this frame only.
func (e *Environment) Len() int {
	return e.bindings.Len()
}

// Get resolves symbol, searching outward through the scope chain.
func (e *Environment) Get(symbol *Value) (*Value, bool) {
	for env := e; env != nil; {
		if v, ok := env.bindings.Get(symbol); ok {
			return v, true
		}
		if env.enclosing == nil {
			break
		}
		env = env.enclosing.env
	}
	return nil, false
}

// GetLocal looks only at this frame.
func (e *Environment) GetLocal(symbol *Value) (*Value, bool) {
	return e.bindings.Get(symbol)
}

// Set binds or rebinds symbol in this frame; enclosing frames are untouched.
func (e *Environment) Set(symbol, value *Value) bool {
	if symbol == nil || value == nil {
		return false
	}
	e.bindings.Put(symbol, value)
	return true
}

// Remove drops a binding from this frame.
func (e *Environment) Remove(symbol *Value) bool {
	return e.bindings.Remove(symbol)
}

// At returns the binding at insertion position i.
func (e *Environment) At(i int) (HashEntry, bool) {
	return e.bindings.At(i)
}

// Entries exposes the bindings of this frame.
func (e *Environment) Entries() []HashEntry {
	return e.bindings.Entries()
}

// Keys returns the bound names in sorted order (useful for determinism in tests).
func (e *Environment) Keys() []string {
	keys := make([]string, 0, e.Len())
	for _, entry := range e.bindings.Entries() {
		keys = append(keys, entry.Key.text)
	}
	sort.Strings(keys)
	return keys
}

// Extend binds formals to actuals in this frame. A trailing `name ...` pair
// collects every remaining actual into a vector bound to name. Arity
// problems are reported as an Error value; nil means success. The caller
// keeps env, formals and actuals rooted.
func (s *Store) Extend(env, formals, actuals *Value) *Value {
	if !env.Is(KindEnvironment) || !formals.Is(KindVector) || !actuals.Is(KindVector) {
		panic(FatalError{Op: "extend", Reason: "environment, formals and actuals are required"})
	}
	numFormals := len(formals.vector)
	dots, normal, afterDots := 0, 0, 0
	for _, formal := range formals.vector {
		switch {
		case formal.kind == KindSymbol && formal.text == VarargsMarker:
			dots++
		case dots > 0:
			afterDots++
		default:
			normal++
		}
	}
	if dots > 1 {
		return s.NewErrorf("Function can have only one formal ... argument for varargs. Now %d were given.", dots)
	}
	if afterDots > 0 {
		return s.NewErrorf("Function can have no formal arguments after ... for varargs. Now %d formals were given after ...", afterDots)
	}
	required := numFormals
	if dots == 1 {
		if normal == 0 {
			return s.NewError("Function formal ... for varargs must be preceded by the name of the varargs vector.")
		}
		normal--
		required = numFormals - 2
	}
	given := len(actuals.vector)
	if given < required || (dots == 0 && given > required) {
		return s.NewErrorf("Function expects %d arguments. Now %d arguments were given.", required, given)
	}

	frame := env.env
	for i := 0; i < normal; i++ {
		frame.Set(formals.vector[i], actuals.vector[i])
	}
	if dots == 1 {
		rest := s.NewVector()
		rest.vector = append(rest.vector, actuals.vector[normal:]...)
		frame.Set(formals.vector[numFormals-2], rest)
	}
	return nil
}

// FormalsProblem validates a formals vector at function creation time and
// returns a message, or "" when the formals are well formed.
func FormalsProblem(formals *Value) string {
	dots, afterDots := 0, 0
	for i, formal := range formals.vector {
		if formal.kind != KindSymbol {
			return fmt.Sprintf("Formal arguments must be symbols. Formal at index %d has type '%s'.", i, formal.kind)
		}
		switch {
		case formal.text == VarargsMarker:
			dots++
			if i == 0 {
				return "Formal ... for varargs must be preceded by the name of the varargs vector."
			}
		case dots > 0:
			afterDots++
		}
	}
	if dots > 1 {
		return fmt.Sprintf("Function can have only one formal ... argument for varargs. Now %d were given.", dots)
	}
	if afterDots > 0 {
		return fmt.Sprintf("Function can have no formal arguments after ... for varargs. Now %d formals were given after ...", afterDots)
	}
	return ""
}
