package table

import (
	"github.com/hupe1980/atomgo/atom"
)

// FrozenSet is an immutable atom set built once during root-runtime
// bootstrap and shared read-only by every runtime forked from the same root.
// Reads require no locking.
type FrozenSet struct {
	set *Set
}

// Freeze takes ownership of s and returns its read-only view. The caller
// must discard its own reference to s.
func Freeze(s *Set) *FrozenSet {
	return &FrozenSet{set: s}
}

// Lookup returns the permanent atom matching key, or nil.
func (f *FrozenSet) Lookup(key atom.Key) *atom.Atom {
	if e := f.set.Lookup(key); e != nil {
		return e.Atom
	}
	return nil
}

// Len returns the number of permanent atoms.
func (f *FrozenSet) Len() int { return f.set.Len() }

// Range visits every permanent atom until fn returns false.
func (f *FrozenSet) Range(fn func(*atom.Atom) bool) {
	f.set.Range(func(e *Entry) bool {
		return fn(e.Atom)
	})
}
