// Package atom defines the canonical immutable string value managed by the
// atoms table, along with the ephemeral lookup key used to find one.
//
// An atom stores its code units in one of two encodings: narrow (Latin-1,
// one byte per unit) or wide (UTF-16, one uint16 per unit). Two atoms are
// the same logical string when their decoded unit sequences are equal, no
// matter which encoding each side uses.
package atom

import (
	"sync/atomic"
	"unicode/utf16"
)

// Encoding identifies how an atom stores its code units.
type Encoding uint8

const (
	// Latin1 stores one byte per code unit (code points 0-255).
	Latin1 Encoding = iota
	// UTF16 stores one uint16 per code unit.
	UTF16
)

// MaxLength is the maximum number of code units an atom may hold. The limit
// keeps the serialized length-and-encoding header within 31 bits and must be
// validated by callers before any table lock is taken.
const MaxLength = 1<<30 - 2

// footprintOverhead approximates the fixed per-atom storage cost charged to
// the memory budget in addition to the raw code units.
const footprintOverhead = 16

const (
	flagPinned uint32 = 1 << iota
	flagPermanent
)

// Atom is a canonical, immutable interned string.
//
// Content, encoding, length and hash never change after creation. The only
// mutable state is the lifecycle bits: pinned may flip to true once and is
// never cleared, and permanent is set exactly once during root-runtime
// bootstrap. Both transitions are monotonic.
type Atom struct {
	narrow []byte   // Latin-1 code units; nil when wide
	wide   []uint16 // UTF-16 code units; nil when narrow
	hash   uint32
	id     uint64
	flags  atomic.Uint32
}

// NewNarrow creates a narrow atom, copying units.
func NewNarrow(units []byte, hash uint32, id uint64) *Atom {
	a := &Atom{hash: hash, id: id}
	a.narrow = make([]byte, len(units))
	copy(a.narrow, units)
	return a
}

// NewWide creates a wide atom, copying units.
func NewWide(units []uint16, hash uint32, id uint64) *Atom {
	a := &Atom{hash: hash, id: id}
	a.wide = make([]uint16, len(units))
	copy(a.wide, units)
	return a
}

// Len returns the number of code units.
func (a *Atom) Len() int {
	if a.narrow != nil || a.wide == nil {
		return len(a.narrow)
	}
	return len(a.wide)
}

// Encoding returns how the atom stores its code units.
func (a *Atom) Encoding() Encoding {
	if a.wide != nil {
		return UTF16
	}
	return Latin1
}

// Hash returns the precomputed content hash.
func (a *Atom) Hash() uint32 { return a.hash }

// ID returns the allocation ID assigned when the atom was created. IDs are
// unique across a root runtime and all runtimes forked from it, so collectors
// can key mark sets by them.
func (a *Atom) ID() uint64 { return a.id }

// Latin1Units returns the narrow code units, or nil for a wide atom.
// The returned slice must not be modified.
func (a *Atom) Latin1Units() []byte { return a.narrow }

// UTF16Units returns the wide code units, or nil for a narrow atom.
// The returned slice must not be modified.
func (a *Atom) UTF16Units() []uint16 { return a.wide }

// String decodes the atom's content.
func (a *Atom) String() string {
	if a.wide != nil {
		return string(utf16.Decode(a.wide))
	}
	runes := make([]rune, len(a.narrow))
	for i, b := range a.narrow {
		runes[i] = rune(b)
	}
	return string(runes)
}

// IsPinned reports whether the atom may never be collected.
// Permanent atoms are always pinned.
func (a *Atom) IsPinned() bool {
	return a.flags.Load()&flagPinned != 0
}

// IsPermanent reports whether the atom belongs to the process-root permanent
// set shared by every runtime forked from the same root.
func (a *Atom) IsPermanent() bool {
	return a.flags.Load()&flagPermanent != 0
}

// SetPinned marks the atom as never collectible. Pinning is monotonic.
// Only the owning table may call this; use the runtime's Pin operation.
func (a *Atom) SetPinned() {
	a.setFlags(flagPinned)
}

// MorphIntoPermanent irreversibly marks the atom as a permanent atom.
// Valid only during root-runtime bootstrap, while the process is still
// single threaded. Permanent atoms are implicitly pinned.
func (a *Atom) MorphIntoPermanent() {
	a.setFlags(flagPinned | flagPermanent)
}

func (a *Atom) setFlags(bits uint32) {
	for {
		old := a.flags.Load()
		if old&bits == bits {
			return
		}
		if a.flags.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

// Footprint returns the storage cost charged against the memory budget.
func (a *Atom) Footprint() int {
	return footprintOverhead + len(a.narrow) + 2*len(a.wide)
}
