package table

import (
	"github.com/hupe1980/atomgo/atom"
)

// Entry associates a canonical atom with its table-side pinned flag.
// The flag mirrors the atom's own pinned bit so a sweep can decide liveness
// without touching the atom.
type Entry struct {
	Atom   *atom.Atom
	Pinned bool
}

// Set is a hash set of atom entries bucketed by content hash. Buckets hold
// the rare hash collisions; membership is decided by key equality.
// Set is not synchronized; the owning partition's lock guards it.
type Set struct {
	buckets map[uint32][]*Entry
	size    int
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{buckets: make(map[uint32][]*Entry)}
}

// Lookup returns the entry matching key, or nil.
func (s *Set) Lookup(key atom.Key) *Entry {
	for _, e := range s.buckets[key.Hash()] {
		if key.Matches(e.Atom) {
			return e
		}
	}
	return nil
}

// Add inserts an entry. The caller guarantees no equal entry is present.
func (s *Set) Add(e *Entry) {
	h := e.Atom.Hash()
	s.buckets[h] = append(s.buckets[h], e)
	s.size++
}

// Remove deletes the entry holding exactly a. It reports whether an entry
// was removed.
func (s *Set) Remove(a *atom.Atom) bool {
	h := a.Hash()
	bucket := s.buckets[h]
	for i, e := range bucket {
		if e.Atom == a {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket[last] = nil
			if last == 0 {
				delete(s.buckets, h)
			} else {
				s.buckets[h] = bucket[:last]
			}
			s.size--
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (s *Set) Len() int { return s.size }

// Range visits every entry until fn returns false. The set must not be
// mutated during the walk.
func (s *Set) Range(fn func(*Entry) bool) {
	for _, bucket := range s.buckets {
		for _, e := range bucket {
			if !fn(e) {
				return
			}
		}
	}
}

// Entries returns a snapshot slice of all entries.
func (s *Set) Entries() []*Entry {
	out := make([]*Entry, 0, s.size)
	s.Range(func(e *Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}
