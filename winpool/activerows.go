package winpool

import "sync"

// ActiveRowMap is the injective position→*PersistenceRow map described in
// §3. It is built on sync.Map's LoadOrStore/CompareAndDelete (Go ≥1.20),
// which are the literal realizations of the "put-if-absent" and
// "remove(key, expectedValue)" primitives Design Notes §9 requires of any
// concurrent-map abstraction used here — see DESIGN.md for why this beats
// reaching for a third-party concurrent map.
type ActiveRowMap struct {
	m sync.Map // int64 position -> *PersistenceRow
}

// NewActiveRowMap constructs an empty map. Exported so callers may inject
// their own instance per §6 (e.g. for instrumentation or sharing across
// pools).
func NewActiveRowMap() *ActiveRowMap {
	return &ActiveRowMap{}
}

// Get returns the row at position, if any.
func (m *ActiveRowMap) Get(position int64) (*PersistenceRow, bool) {
	v, ok := m.m.Load(position)
	if !ok {
		return nil, false
	}
	return v.(*PersistenceRow), true
}

// PutIfAbsent inserts row at position only if no row is currently mapped
// there. Returns the row that ended up in the map (either the one just
// inserted, or the one a racing thread got there first) and whether our row
// won.
func (m *ActiveRowMap) PutIfAbsent(position int64, row *PersistenceRow) (winner *PersistenceRow, inserted bool) {
	actual, loaded := m.m.LoadOrStore(position, row)
	if !loaded {
		return row, true
	}
	return actual.(*PersistenceRow), false
}

// RemoveIfMatch deletes position only if the currently mapped row is
// exactly expected, guarding against dropping a row a racing thread just
// re-marked in-use and re-published.
func (m *ActiveRowMap) RemoveIfMatch(position int64, expected *PersistenceRow) bool {
	return m.m.CompareAndDelete(position, expected)
}

// Range iterates every currently mapped row. fn must not block.
func (m *ActiveRowMap) Range(fn func(position int64, row *PersistenceRow) bool) {
	m.m.Range(func(k, v any) bool {
		return fn(k.(int64), v.(*PersistenceRow))
	})
}

// Clear drops every entry without closing or flushing the underlying rows
// (used by WindowPool.Close, which flushes dirty rows beforehand unless the
// pool is read-only).
func (m *ActiveRowMap) Clear() {
	m.m.Range(func(k, v any) bool {
		m.m.Delete(k)
		return true
	})
}
