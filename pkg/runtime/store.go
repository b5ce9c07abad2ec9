package runtime

import (
	"fmt"
	"io"
	"log/slog"
)

// FatalError reports a broken runtime invariant. It is raised as a panic and
// is never produced by script mistakes.
type FatalError struct {
	Op     string
	Reason string
}

func (e FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %s", e.Op, e.Reason)
}

// Store allocates every value of one runtime instance and keeps the registry
// the collector sweeps.
type Store struct {
	all     []*Value
	nextUID uint64
	roots   RootStack
	gc      Collector
	logger  *slog.Logger
}

// NewStore creates a store with the given collector schedule. A nil logger
// discards output.
func NewStore(gc Collector, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if gc.TriggerLimit <= 0 {
		gc.TriggerLimit = DefaultTriggerLimit
	}
	return &Store{gc: gc, logger: logger}
}

// Roots exposes the root stack.
func (s *Store) Roots() *RootStack { return &s.roots }

// Collector exposes the collection schedule for adjustment.
func (s *Store) Collector() *Collector { return &s.gc }

// PreventGC suppresses allocation-triggered collection and returns the
// previous setting.
func (s *Store) PreventGC(prevent bool) bool {
	prev := s.gc.Prevent
	s.gc.Prevent = prevent
	return prev
}

// Len returns the size of the registry.
func (s *Store) Len() int { return len(s.all) }

// Contains reports whether v is still registered.
func (s *Store) Contains(v *Value) bool {
	for _, live := range s.all {
		if live == v {
			return true
		}
	}
	return false
}

// Stats reports registry and collector counters.
func (s *Store) Stats() GCStats {
	return GCStats{
		Live:                  len(s.all),
		Roots:                 s.roots.Len(),
		Collections:           s.gc.collections,
		LastFreed:             s.gc.lastFreed,
		AllocatedSinceCollect: s.gc.allocatedSinceCollect,
	}
}

// Allocate registers a zero value of kind, collecting first when the
// allocation budget is spent. Anything the caller still needs must be rooted.
func (s *Store) Allocate(kind Kind) *Value {
	if s.gc.due() && !s.Collect() {
		panic(FatalError{Op: "allocate", Reason: "garbage collection failed"})
	}
	s.nextUID++
	v := &Value{kind: kind, uid: s.nextUID, mutable: MutableForever}
	s.all = append(s.all, v)
	return v
}

//-----------------------------------------------------------------------------
// Constructors

func (s *Store) NewNil() *Value { return s.Allocate(KindNil) }

func (s *Store) NewBoolean(b bool) *Value {
	v := s.Allocate(KindBoolean)
	v.boolean = b
	return v
}

func (s *Store) NewInteger(i int32) *Value {
	v := s.Allocate(KindInteger)
	v.integer = i
	return v
}

func (s *Store) NewReal(f float64) *Value {
	v := s.Allocate(KindReal)
	v.real = f
	return v
}

func (s *Store) NewString(text string) *Value {
	v := s.Allocate(KindString)
	v.text = text
	return v
}

func (s *Store) NewCharacter(r rune) *Value {
	v := s.Allocate(KindCharacter)
	v.char = r
	return v
}

func (s *Store) NewSymbol(name string) *Value {
	v := s.Allocate(KindSymbol)
	v.text = name
	return v
}

func (s *Store) NewError(message string) *Value {
	v := s.Allocate(KindError)
	v.text = message
	return v
}

func (s *Store) NewErrorf(format string, args ...any) *Value {
	return s.NewError(fmt.Sprintf(format, args...))
}

func (s *Store) NewVector() *Value {
	return s.Allocate(KindVector)
}

// NewVectorOf builds a vector over already rooted or reachable elements.
func (s *Store) NewVectorOf(elems ...*Value) *Value {
	v := s.Allocate(KindVector)
	v.vector = append(make([]*Value, 0, len(elems)), elems...)
	return v
}

func (s *Store) NewHashMap() *Value {
	v := s.Allocate(KindHashMap)
	v.hashMap = newHashMap()
	return v
}

// NewEnvironment creates a scope; enclosing may be nil for a root scope.
func (s *Store) NewEnvironment(enclosing *Value) *Value {
	if enclosing != nil && enclosing.kind != KindEnvironment {
		panic(FatalError{Op: "new environment", Reason: "enclosing value is a " + enclosing.kind.String()})
	}
	v := s.Allocate(KindEnvironment)
	v.env = &Environment{bindings: newHashMap(), enclosing: enclosing}
	return v
}

// NewFunction assembles a closure. formals and body must be vectors and
// closure an environment.
func (s *Store) NewFunction(formals, body, closure *Value) *Value {
	if !formals.Is(KindVector) || !body.Is(KindVector) || !closure.Is(KindEnvironment) {
		panic(FatalError{Op: "new function", Reason: "formals, body and closure are required"})
	}
	v := s.Allocate(KindFunction)
	v.function = &Function{Formals: formals, Body: body, Closure: closure}
	return v
}

func (s *Store) NewBuiltin(name string, call CallFunc, minArgs int) *Value {
	v := s.Allocate(KindBuiltin)
	v.callable = &Callable{Name: name, MinArgs: minArgs, Call: call}
	return v
}

func (s *Store) NewSpecial(name string, call CallFunc, minArgs int) *Value {
	v := s.Allocate(KindSpecial)
	v.callable = &Callable{Name: name, MinArgs: minArgs, Call: call}
	return v
}

//-----------------------------------------------------------------------------
// Copy and reset

// Copy returns an independent deep copy of an atom or a vector. Nested
// reference values are shared. Reference kinds have identity and cannot be
// copied themselves.
func (s *Store) Copy(src *Value) *Value {
	if !src.IsAtom() && src.kind != KindVector {
		panic(FatalError{Op: "copy", Reason: "values of type " + src.kind.String() + " cannot be copied"})
	}
	defer s.roots.Protect(src)()
	dst := s.Allocate(src.kind)
	defer s.roots.Protect(dst)()
	if src.DocString != nil {
		dst.DocString = s.Copy(src.DocString)
	}
	if src.DocVector != nil {
		dst.DocVector = s.Copy(src.DocVector)
	}
	dst.boolean = src.boolean
	dst.integer = src.integer
	dst.real = src.real
	dst.char = src.char
	dst.text = src.text
	if src.kind == KindVector {
		dst.vector = make([]*Value, 0, len(src.vector))
		for _, elem := range src.vector {
			if elem.kind == KindVector {
				dst.vector = append(dst.vector, s.Copy(elem))
				continue
			}
			dst.vector = append(dst.vector, s.CopyIfAtom(elem))
		}
	}
	return dst
}

// CopyIfAtom copies atoms and passes reference values through.
func (s *Store) CopyIfAtom(v *Value) *Value {
	if v.IsAtom() {
		return s.Copy(v)
	}
	return v
}

// ClearToNil releases v's payload and turns it into nil in place. Elements
// of containers are left for the collector.
func (s *Store) ClearToNil(v *Value) {
	v.kind = KindNil
	v.DocString = nil
	v.DocVector = nil
	v.boolean = false
	v.integer = 0
	v.real = 0
	v.char = 0
	v.text = ""
	v.vector = nil
	v.hashMap = nil
	v.env = nil
	v.function = nil
	v.callable = nil
}

// Set overwrites target in place with the content of src. Vector and hash
// map elements are shared except atoms, which are copied. Reference kinds
// cannot be assigned this way.
func (s *Store) Set(target, src *Value) {
	switch src.kind {
	case KindEnvironment, KindFunction, KindSpecial, KindBuiltin:
		panic(FatalError{Op: "set", Reason: "values of type " + src.kind.String() + " cannot be assigned"})
	}
	if target == src {
		return
	}
	defer s.roots.Protect(target, src)()
	// Copies are made before target is reset, src may be one of its elements.
	var docString, docVector *Value
	if src.DocString != nil {
		docString = s.Copy(src.DocString)
		defer s.roots.Protect(docString)()
	}
	if src.DocVector != nil {
		docVector = s.Copy(src.DocVector)
		defer s.roots.Protect(docVector)()
	}
	var elems []*Value
	var entries []HashEntry
	switch src.kind {
	case KindVector:
		holder := s.NewVector()
		defer s.roots.Protect(holder)()
		for _, elem := range src.vector {
			holder.vector = append(holder.vector, s.CopyIfAtom(elem))
		}
		elems = append([]*Value(nil), holder.vector...)
	case KindHashMap:
		holder := s.NewVector()
		defer s.roots.Protect(holder)()
		for _, entry := range src.hashMap.entries {
			key := s.CopyIfAtom(entry.Key)
			holder.vector = append(holder.vector, key)
			value := s.CopyIfAtom(entry.Value)
			holder.vector = append(holder.vector, value)
			entries = append(entries, HashEntry{Key: key, Value: value})
		}
	}

	mutable := target.mutable
	s.ClearToNil(target)
	target.kind = src.kind
	target.mutable = mutable
	target.DocString = docString
	target.DocVector = docVector
	target.boolean = src.boolean
	target.integer = src.integer
	target.real = src.real
	target.char = src.char
	target.text = src.text
	switch src.kind {
	case KindVector:
		target.vector = elems
	case KindHashMap:
		target.hashMap = newHashMap()
		for _, entry := range entries {
			target.hashMap.Put(entry.Key, entry.Value)
		}
	}
}
