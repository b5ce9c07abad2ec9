package runtime

import (
	"context"
	"log/slog"
)

// DefaultTriggerLimit is the number of allocations between collections.
const DefaultTriggerLimit = 1024

// Collector holds the collection schedule for one Store.
type Collector struct {
	// TriggerLimit is the number of allocations that triggers a collection.
	TriggerLimit int
	// Prevent suppresses allocation-triggered collections.
	Prevent bool

	allocatedSinceCollect int
	collections           int
	lastFreed             int
}

// GCStats summarises collector activity.
type GCStats struct {
	Live                  int
	Roots                 int
	Collections           int
	LastFreed             int
	AllocatedSinceCollect int
}

// due reports whether an allocation should collect first, and counts the
// allocation otherwise.
func (c *Collector) due() bool {
	limit := c.TriggerLimit
	if limit <= 0 {
		limit = DefaultTriggerLimit
	}
	if c.allocatedSinceCollect >= limit && !c.Prevent {
		c.allocatedSinceCollect = 0
		return true
	}
	c.allocatedSinceCollect++
	return false
}

// Collect runs one mark-and-sweep cycle rooted at the root stack. It reports
// false when marking meets a value that was already swept.
func (s *Store) Collect() bool {
	if !s.mark() {
		s.logger.Error("gc: mark failed", "roots", s.roots.Len())
		return false
	}
	freed := s.sweep()
	s.gc.collections++
	s.gc.lastFreed = freed
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("gc: collect", "freed", freed, "live", len(s.all), "roots", s.roots.Len())
	}
	return true
}

func (s *Store) mark() bool {
	var pending []*Value
	visit := func(v *Value) bool {
		if v == nil || v.marked {
			return true
		}
		if v.freed {
			return false
		}
		v.marked = true
		pending = append(pending, v)
		return true
	}
	ok := s.roots.each(visit)
	for ok && len(pending) > 0 {
		v := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		ok = visit(v.DocString) && visit(v.DocVector)
		switch v.kind {
		case KindVector:
			for _, elem := range v.vector {
				ok = ok && visit(elem)
			}
		case KindHashMap:
			for _, entry := range v.hashMap.entries {
				ok = ok && visit(entry.Key) && visit(entry.Value)
			}
		case KindEnvironment:
			for _, entry := range v.env.bindings.entries {
				ok = ok && visit(entry.Key) && visit(entry.Value)
			}
			if v.env.enclosing != v {
				ok = ok && visit(v.env.enclosing)
			}
		case KindFunction:
			fn := v.function
			if fn == nil || fn.Formals == nil || fn.Body == nil || fn.Closure == nil {
				panic(FatalError{Op: "mark", Reason: "function is missing formals, body or closure"})
			}
			ok = ok && visit(fn.Formals) && visit(fn.Body) && visit(fn.Closure)
		}
	}
	if !ok {
		for _, v := range s.all {
			v.marked = false
		}
	}
	return ok
}

func (s *Store) sweep() int {
	kept := s.all[:0]
	freed := 0
	for _, v := range s.all {
		if v.marked {
			v.marked = false
			kept = append(kept, v)
			continue
		}
		s.ClearToNil(v)
		v.freed = true
		freed++
	}
	clear(s.all[len(kept):])
	s.all = kept
	return freed
}
