package runtime

import "testing"

func newTestStore(limit int) *Store {
	return NewStore(Collector{TriggerLimit: limit}, nil)
}

func TestCollectKeepsRootedVectorAndElements(t *testing.T) {
	s := newTestStore(8)
	vec := s.NewVector()
	s.Roots().Push(vec)
	for i := 0; i < 4; i++ {
		vec.Push(s.NewInteger(int32(i)))
	}
	for i := 0; i < 100; i++ {
		s.NewString("garbage")
	}
	if s.Stats().Collections == 0 {
		t.Fatalf("expected allocations to trigger a collection")
	}
	if !s.Contains(vec) {
		t.Fatalf("rooted vector was collected")
	}
	for i, elem := range vec.Elements() {
		if elem.Freed() || elem.Kind() != KindInteger || elem.Int() != int32(i) {
			t.Fatalf("element %d damaged: %v", i, elem)
		}
	}
	s.Roots().Pop(vec)
}

func TestCollectFreesUnrootedValue(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	orphan := s.NewString("temporary")
	if !s.Collect() {
		t.Fatalf("collect failed")
	}
	if s.Contains(orphan) {
		t.Fatalf("unrooted value survived a collection")
	}
	if !orphan.Freed() || orphan.Kind() != KindNil {
		t.Fatalf("swept value should be cleared to nil, got %s", orphan.Kind())
	}
	if s.Stats().LastFreed != 1 {
		t.Fatalf("LastFreed = %d, want 1", s.Stats().LastFreed)
	}
}

func TestCollectKeepsClosureEnvironment(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	closure := s.NewEnvironment(nil)
	s.Roots().Push(closure)
	captured := s.NewInteger(10)
	closure.Env().Set(s.NewSymbol("x"), captured)
	fn := s.NewFunction(s.NewVector(), s.NewVector(), closure)
	s.Roots().Pop(closure)

	s.Roots().Push(fn)
	defer s.Roots().Pop(fn)
	if !s.Collect() {
		t.Fatalf("collect failed")
	}
	if !s.Contains(captured) || captured.Int() != 10 {
		t.Fatalf("value captured by closure environment was collected")
	}
}

func TestCollectHandlesCycles(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	env := s.NewEnvironment(nil)
	defer s.Roots().Protect(env)()
	fn := s.NewFunction(s.NewVector(), s.NewVector(), env)
	env.Env().Set(s.NewSymbol("self"), fn)
	env.Env().Set(s.NewSymbol("env"), env)
	vec := s.NewVector()
	vec.Push(vec)
	env.Env().Set(s.NewSymbol("vec"), vec)

	for i := 0; i < 3; i++ {
		if !s.Collect() {
			t.Fatalf("collect %d failed", i)
		}
	}
	if !s.Contains(fn) || !s.Contains(vec) {
		t.Fatalf("cyclic structure reachable from a root was collected")
	}
	s.Roots().Pop(env)
	if !s.Collect() {
		t.Fatalf("collect failed")
	}
	if s.Contains(fn) || s.Contains(vec) || s.Contains(env) {
		t.Fatalf("unreachable cycle survived")
	}
	s.Roots().Push(env)
}

func TestPreventGCSuppressesTriggeredCollection(t *testing.T) {
	s := newTestStore(4)
	s.PreventGC(true)
	first := s.NewInteger(1)
	for i := 0; i < 50; i++ {
		s.NewInteger(int32(i))
	}
	if s.Stats().Collections != 0 {
		t.Fatalf("collection ran while prevented")
	}
	if !s.Contains(first) {
		t.Fatalf("value collected while gc was prevented")
	}
	s.PreventGC(false)
	s.NewInteger(0)
	if s.Stats().Collections != 1 {
		t.Fatalf("Collections = %d, want 1 once re-enabled", s.Stats().Collections)
	}
	if s.Contains(first) {
		t.Fatalf("expected unrooted value to be collected once gc resumed")
	}
}

func TestCollectMarksDocumentation(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	v := s.NewInteger(3)
	defer s.Roots().Protect(v)()
	v.DocString = s.NewString("three")
	v.DocVector = s.NewVectorOf()
	if !s.Collect() {
		t.Fatalf("collect failed")
	}
	if !s.Contains(v.DocString) || !s.Contains(v.DocVector) {
		t.Fatalf("documentation of a rooted value was collected")
	}
}

func TestCollectFailsOnSweptRoot(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	stale := s.NewString("stale")
	if !s.Collect() {
		t.Fatalf("collect failed")
	}
	s.Roots().Push(stale)
	if s.Collect() {
		t.Fatalf("expected collect to fail when a swept value is rooted")
	}
	s.Roots().Pop(stale)
}

func TestAllocatePanicsWhenCollectionFails(t *testing.T) {
	s := newTestStore(1)
	stale := s.NewString("stale")
	s.Collect()
	s.Roots().Push(stale)
	defer func() {
		if _, ok := recover().(FatalError); !ok {
			t.Fatalf("expected FatalError panic")
		}
	}()
	s.NewInteger(1)
	s.NewInteger(2)
}
