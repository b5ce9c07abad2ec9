package runtime

// HashMap maps values to values using Equal and Hash. Iteration follows
// insertion order. Keys are indexed by their hash at insertion, so a stored
// key must not be changed in place; callers hand out copies. Like vectors, a hash map never releases its keys or
// values; only the collector does.
type HashMap struct {
	entries []HashEntry
	index   map[uint64][]int
}

// HashEntry is one key/value binding.
type HashEntry struct {
	Key   *Value
	Value *Value
}

func newHashMap() *HashMap {
	return &HashMap{index: make(map[uint64][]int)}
}

// Len returns the number of bindings.
func (m *HashMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *HashMap) find(key *Value) int {
	for _, i := range m.index[Hash(key)] {
		if Equal(m.entries[i].Key, key) {
			return i
		}
	}
	return -1
}

// Get returns the value bound to key.
func (m *HashMap) Get(key *Value) (*Value, bool) {
	if i := m.find(key); i >= 0 {
		return m.entries[i].Value, true
	}
	return nil, false
}

// Put binds key, replacing any previous binding of an equal key in place.
func (m *HashMap) Put(key, value *Value) {
	if i := m.find(key); i >= 0 {
		m.entries[i].Value = value
		return
	}
	h := Hash(key)
	m.index[h] = append(m.index[h], len(m.entries))
	m.entries = append(m.entries, HashEntry{Key: key, Value: value})
}

// Remove drops the binding for key and reports whether one existed.
func (m *HashMap) Remove(key *Value) bool {
	i := m.find(key)
	if i < 0 {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	m.reindex()
	return true
}

// At returns the binding at insertion position i.
func (m *HashMap) At(i int) (HashEntry, bool) {
	if i < 0 || i >= len(m.entries) {
		return HashEntry{}, false
	}
	return m.entries[i], true
}

// Entries exposes the bindings in insertion order; callers must not retain
// the slice across mutations.
func (m *HashMap) Entries() []HashEntry {
	return m.entries
}

func (m *HashMap) reindex() {
	m.index = make(map[uint64][]int, len(m.entries))
	for i, e := range m.entries {
		h := Hash(e.Key)
		m.index[h] = append(m.index[h], i)
	}
}
