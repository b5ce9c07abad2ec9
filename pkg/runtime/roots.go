package runtime

import "fmt"

// StackImbalanceError reports a pop that does not match the top of the root
// stack. It is raised as a panic: an unbalanced stack means a value may
// already have been collected while still in use.
type StackImbalanceError struct {
	Expected *Value
	Top      *Value
	Depth    int
}

func (e StackImbalanceError) Error() string {
	if e.Top == nil {
		return fmt.Sprintf("root stack: pop of %s from empty stack", describe(e.Expected))
	}
	return fmt.Sprintf("root stack: expected %s on top, found %s at depth %d", describe(e.Expected), describe(e.Top), e.Depth)
}

func describe(v *Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", v.kind, v.uid)
}

// RootStack is the collector's only root set.
type RootStack struct {
	values []*Value
}

// Push makes v a root until it is popped.
func (r *RootStack) Push(v *Value) {
	if v == nil {
		panic(FatalError{Op: "push", Reason: "nil value"})
	}
	r.values = append(r.values, v)
}

// Pop removes the top entry, which must be expected.
func (r *RootStack) Pop(expected *Value) {
	n := len(r.values)
	if n == 0 {
		panic(StackImbalanceError{Expected: expected})
	}
	if top := r.values[n-1]; top != expected {
		panic(StackImbalanceError{Expected: expected, Top: top, Depth: n})
	}
	r.values[n-1] = nil
	r.values = r.values[:n-1]
}

// Protect pushes values in order and returns a func that pops them in
// reverse; meant for `defer s.Roots().Protect(a, b)()`.
func (r *RootStack) Protect(values ...*Value) func() {
	for _, v := range values {
		r.Push(v)
	}
	return func() {
		for i := len(values) - 1; i >= 0; i-- {
			r.Pop(values[i])
		}
	}
}

func (r *RootStack) Len() int { return len(r.values) }

// Peek returns the top entry or nil.
func (r *RootStack) Peek() *Value {
	if len(r.values) == 0 {
		return nil
	}
	return r.values[len(r.values)-1]
}

// Clear drops every root.
func (r *RootStack) Clear() {
	clear(r.values)
	r.values = r.values[:0]
}

func (r *RootStack) each(fn func(*Value) bool) bool {
	for _, v := range r.values {
		if !fn(v) {
			return false
		}
	}
	return true
}
