package atom

import (
	"github.com/hupe1980/atomgo/internal/hash"
)

// Key is an ephemeral lookup descriptor used for both search and insertion
// without copying the content. Keys are stack scoped and never stored; the
// referenced units must outlive the lookup only.
//
// A key carries either raw code units plus their content hash, or a
// reference to an existing atom whose stored hash is reused without
// recomputation.
type Key struct {
	narrow []byte
	wide   []uint16
	length int
	hash   uint32
	atom   *Atom // optional known-canonical candidate
}

// NewNarrowKey builds a key over narrow (Latin-1) content.
func NewNarrowKey(units []byte) Key {
	return Key{
		narrow: units,
		length: len(units),
		hash:   hash.Latin1(units),
	}
}

// NewWideKey builds a key over wide (UTF-16) content.
func NewWideKey(units []uint16) Key {
	return Key{
		wide:   units,
		length: len(units),
		hash:   hash.UTF16(units),
	}
}

// KeyFromAtom re-derives a key from an atom already believed to be
// canonical, reusing its stored hash. Matching such a key compares atom
// identity, not content.
func KeyFromAtom(a *Atom) Key {
	return Key{
		narrow: a.narrow,
		wide:   a.wide,
		length: a.Len(),
		hash:   a.hash,
		atom:   a,
	}
}

// Hash returns the content hash.
func (k Key) Hash() uint32 { return k.hash }

// Len returns the number of code units.
func (k Key) Len() int { return k.length }

// Matches reports whether the candidate atom holds the same logical string.
// Length is compared first, then hash, then code units; narrow units are
// widened on the fly for mixed-encoding compares, with no allocation.
func (k Key) Matches(a *Atom) bool {
	if k.atom != nil {
		return k.atom == a
	}
	if a.Len() != k.length || a.hash != k.hash {
		return false
	}

	if a.narrow != nil || a.wide == nil {
		if k.narrow != nil || k.wide == nil {
			return bytesEqual(a.narrow, k.narrow)
		}
		return narrowEqualsWide(a.narrow, k.wide)
	}

	if k.narrow != nil || k.wide == nil {
		return narrowEqualsWide(k.narrow, a.wide)
	}
	return wideEqual(a.wide, k.wide)
}

// NewAtom allocates the canonical atom for this key, copying the content.
func (k Key) NewAtom(id uint64) *Atom {
	if k.narrow != nil || k.wide == nil {
		return NewNarrow(k.narrow, k.hash, id)
	}
	return NewWide(k.wide, k.hash, id)
}

// Footprint returns the storage cost a new atom for this key would charge
// against the memory budget.
func (k Key) Footprint() int {
	return footprintOverhead + len(k.narrow) + 2*len(k.wide)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func wideEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func narrowEqualsWide(narrow []byte, wide []uint16) bool {
	if len(narrow) != len(wide) {
		return false
	}
	for i := range narrow {
		if uint16(narrow[i]) != wide[i] {
			return false
		}
	}
	return true
}
