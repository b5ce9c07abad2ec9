package runtime

import (
	"strings"
	"testing"
)

func expectImbalance(t *testing.T, fn func()) StackImbalanceError {
	t.Helper()
	var got StackImbalanceError
	func() {
		defer func() {
			r := recover()
			err, ok := r.(StackImbalanceError)
			if !ok {
				t.Fatalf("expected StackImbalanceError panic, got %v", r)
			}
			got = err
		}()
		fn()
	}()
	return got
}

func TestRootStackPopMismatchPanics(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	a := s.NewInteger(1)
	b := s.NewInteger(2)
	s.Roots().Push(a)
	s.Roots().Push(b)
	err := expectImbalance(t, func() { s.Roots().Pop(a) })
	if err.Top != b || err.Depth != 2 {
		t.Fatalf("unexpected imbalance report: %v", err)
	}
	if !strings.Contains(err.Error(), "expected integer#") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRootStackPopEmptyPanics(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	v := s.NewNil()
	err := expectImbalance(t, func() { s.Roots().Pop(v) })
	if err.Top != nil {
		t.Fatalf("expected empty-stack report, got %v", err)
	}
}

func TestRootStackProtectPopsInReverse(t *testing.T) {
	s := newTestStore(DefaultTriggerLimit)
	a, b, c := s.NewInteger(1), s.NewInteger(2), s.NewInteger(3)
	release := s.Roots().Protect(a, b, c)
	if s.Roots().Len() != 3 || s.Roots().Peek() != c {
		t.Fatalf("protect did not push in order")
	}
	release()
	if s.Roots().Len() != 0 {
		t.Fatalf("root stack length = %d after release", s.Roots().Len())
	}
}
