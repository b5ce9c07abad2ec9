package runtime

import "testing"

func TestAllocateAssignsIncreasingUIDs(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	a := s.NewNil()
	b := s.NewNil()
	if a.UID() == 0 || b.UID() <= a.UID() {
		t.Fatalf("uids not increasing: %d, %d", a.UID(), b.UID())
	}
	if a.Mutable() != MutableForever {
		t.Fatalf("new values should be mutable indefinitely")
	}
	s.Collect()
	c := s.NewNil()
	if c.UID() <= b.UID() {
		t.Fatalf("uid reissued after collection: %d", c.UID())
	}
}

func TestCopyIsIndependent(t *testing.T) {
	s := newTestStore(stressLimit)
	inner := integers(s, 1)
	defer s.Roots().Protect(inner)()
	a := s.NewString("a")
	defer s.Roots().Protect(a)()
	src := s.NewVectorOf(a, inner)
	defer s.Roots().Protect(src)()
	src.DocString = s.NewString("doc")

	depth := s.Roots().Len()
	dup := s.Copy(src)
	if s.Roots().Len() != depth {
		t.Fatalf("copy left %d roots", s.Roots().Len()-depth)
	}
	defer s.Roots().Protect(dup)()
	if dup == src || dup.At(1) == inner {
		t.Fatalf("copy shares structure with its source")
	}
	inner.At(0).SetInt(9)
	if dup.At(1).At(0).Int() != 1 {
		t.Fatalf("copy changed when the source changed")
	}
	if dup.DocString == nil || dup.DocString.Text() != "doc" {
		t.Fatalf("documentation was not copied")
	}
}

func TestCopyRejectsReferenceKinds(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	for _, v := range []*Value{s.NewHashMap(), s.NewEnvironment(nil)} {
		func() {
			defer func() {
				if _, ok := recover().(FatalError); !ok {
					t.Fatalf("expected FatalError copying %s", v.Kind())
				}
			}()
			s.Copy(v)
		}()
	}
}

func TestSetOverwritesInPlace(t *testing.T) {
	s := newTestStore(stressLimit)
	target := s.NewInteger(1)
	defer s.Roots().Protect(target)()
	src := integers(s, 5)
	defer s.Roots().Protect(src)()
	src.Push(s.NewHashMap())
	s.Set(target, src)
	if target.Kind() != KindVector || target.Len() != 2 {
		t.Fatalf("target = %v", target)
	}
	if target.At(0) == src.At(0) || target.At(0).Int() != 5 {
		t.Fatalf("atoms should be copied")
	}
	if target.At(1) != src.At(1) {
		t.Fatalf("reference elements should be shared")
	}
}

func TestEqualAndHash(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	one, oneReal := s.NewInteger(1), s.NewReal(1)
	if !Equal(one, oneReal) || Hash(one) != Hash(oneReal) {
		t.Fatalf("1 and 1.0 should be equal with equal hashes")
	}
	if Equal(s.NewString("a"), s.NewSymbol("a")) {
		t.Fatalf("string and symbol should differ")
	}
	v1, v2 := s.NewVector(), s.NewVector()
	if Equal(v1, v2) || !Equal(v1, v1) {
		t.Fatalf("vectors compare by identity")
	}
	if less, ok := Less(s.NewInteger(1), s.NewReal(1.5)); !ok || !less {
		t.Fatalf("1 < 1.5 expected")
	}
	if _, ok := Less(s.NewInteger(1), s.NewString("x")); ok {
		t.Fatalf("integer and string have no ordering")
	}
}

func put(s *Store, m *Value, key string, value int32) {
	k := s.NewString(key)
	defer s.Roots().Protect(k)()
	m.HashMap().Put(k, s.NewInteger(value))
}

func TestHashMapReplaceAndRemove(t *testing.T) {
	s := newTestStore(stressLimit)
	m := s.NewHashMap()
	defer s.Roots().Protect(m)()
	put(s, m, "k", 1)
	put(s, m, "j", 2)
	put(s, m, "k", 3)
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if v, _ := m.HashMap().Get(s.NewString("k")); v.Int() != 3 {
		t.Fatalf("k = %v, want 3", v)
	}
	if !m.HashMap().Remove(s.NewString("k")) || m.Len() != 1 {
		t.Fatalf("remove failed")
	}
	if v, ok := m.HashMap().Get(s.NewString("j")); !ok || v.Int() != 2 {
		t.Fatalf("j lost after remove")
	}
}

func TestStringRendering(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	cases := []struct {
		value *Value
		want  string
		plain string
	}{
		{s.NewNil(), "nil", "nil"},
		{s.NewBoolean(true), "true", "true"},
		{s.NewInteger(-4), "-4", "-4"},
		{s.NewReal(2.5), "2.5", "2.5"},
		{s.NewString("hi"), "[hi]", "hi"},
		{s.NewCharacter('|'), "|bar|", "|"},
		{s.NewCharacter('\n'), "|newline|", "\n"},
		{s.NewSymbol("sym"), "sym", "sym"},
		{s.NewError("bad"), "<error>: bad", "<error>: bad"},
		{s.NewVectorOf(s.NewInteger(1), s.NewString("a")), "(1 [a])", "(1 [a])"},
	}
	for _, tc := range cases {
		if got := tc.value.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
		if got := tc.value.PlainString(); got != tc.plain {
			t.Fatalf("PlainString() = %q, want %q", got, tc.plain)
		}
	}

	m := s.NewHashMap()
	m.HashMap().Put(s.NewInteger(1), s.NewString("a"))
	m.HashMap().Put(s.NewInteger(2), s.NewString("b"))
	if got, want := m.String(), "(hash-map 1 [a]\n          2 [b])"; got != want {
		t.Fatalf("hash map = %q, want %q", got, want)
	}

	cyclic := s.NewVector()
	cyclic.Push(cyclic)
	if got := cyclic.String(); got != "(...)" {
		t.Fatalf("cyclic vector = %q", got)
	}
}

func TestLenOfFunctionCountsRequiredFormals(t *testing.T) {
	s := newTestStore(stressLimit)
	env := s.NewEnvironment(nil)
	defer s.Roots().Protect(env)()
	formals := symbols(s, "a", "rest", "...")
	defer s.Roots().Protect(formals)()
	body := s.NewVector()
	defer s.Roots().Protect(body)()
	fn := s.NewFunction(formals, body, env)
	if fn.Len() != 1 {
		t.Fatalf("Len = %d, want 1", fn.Len())
	}
	if got := s.NewString("äö").Len(); got != 2 {
		t.Fatalf("string Len = %d, want 2", got)
	}
}

func TestConsumeMutation(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	v := s.NewInteger(1)
	v.SetMutable(1)
	if !v.ConsumeMutation() {
		t.Fatalf("first mutation should be allowed")
	}
	if v.ConsumeMutation() {
		t.Fatalf("second mutation should be rejected")
	}
}
