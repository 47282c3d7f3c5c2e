// Package gc provides a reference implementation of the collector contract
// the atom table consumes: a mark set over atom allocation IDs backed by a
// roaring bitmap.
//
// The table core never decides liveness itself; it asks an oracle. MarkSet
// is such an oracle: a collection cycle marks every atom it proves reachable,
// and anything unmarked, unpinned and non-permanent is reclaimable. Embedders
// with their own tracing collector only need to satisfy the same interface.
package gc

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/atomgo/atom"
)

// MarkSet records which atoms the current collection cycle has proven
// reachable. Safe for concurrent use.
type MarkSet struct {
	mu     sync.Mutex
	marked *roaring64.Bitmap
}

// NewMarkSet creates an empty mark set.
func NewMarkSet() *MarkSet {
	return &MarkSet{marked: roaring64.New()}
}

// Mark records a as reachable.
func (m *MarkSet) Mark(a *atom.Atom) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked.Add(a.ID())
}

// Marked reports whether a has been marked in this cycle.
func (m *MarkSet) Marked(a *atom.Atom) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked.Contains(a.ID())
}

// Reset clears all marks, starting a new collection cycle.
func (m *MarkSet) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked.Clear()
}

// Cardinality returns the number of marked atoms.
func (m *MarkSet) Cardinality() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked.GetCardinality()
}

// IsAboutToBeReclaimed implements the liveness oracle: an atom is dead iff
// it is neither pinned, permanent, nor marked.
func (m *MarkSet) IsAboutToBeReclaimed(a *atom.Atom) bool {
	if a.IsPinned() || a.IsPermanent() {
		return false
	}
	return !m.Marked(a)
}

// NotifyWriteBarrier marks a freshly inserted atom so a sweep already in
// flight never reclaims it.
func (m *MarkSet) NotifyWriteBarrier(a *atom.Atom) {
	m.Mark(a)
}
