package atomgo

import (
	"github.com/hupe1980/atomgo/atom"
	"github.com/hupe1980/atomgo/internal/table"
)

// Zone is an isolation domain with a private intern cache that shortcuts
// the partition locks for recently seen content.
//
// A Zone is owned by exactly one worker goroutine and is not safe for
// concurrent use. Creating a second zone on a runtime is what switches the
// shared table into locked operation, so every concurrently interning
// goroutine must hold its own zone.
//
// Cache hits trust zone-local liveness: the collector must call Purge when
// it invalidates this zone's proof that cached atoms are reachable
// (typically at the start of a collection cycle).
type Zone struct {
	rt     *Runtime
	cache  *table.Set
	closed bool
}

// NewZone attaches a new zone to the runtime.
func (rt *Runtime) NewZone() *Zone {
	rt.zones.Add(1)
	return &Zone{
		rt:    rt,
		cache: table.NewSet(),
	}
}

// Intern returns the canonical atom for s, consulting this zone's cache
// first. Pinned interning goes through Runtime.Intern directly; pin
// requests always bypass the cache.
func (z *Zone) Intern(s string) (*atom.Atom, error) {
	narrow, wide := stringUnits(s)
	if wide != nil {
		return z.InternUTF16(wide)
	}
	return z.InternLatin1(narrow)
}

// InternLatin1 interns narrow (Latin-1) content through the zone cache.
func (z *Zone) InternLatin1(units []byte) (*atom.Atom, error) {
	return z.rt.internKey(atom.NewNarrowKey(units), false, z)
}

// InternUTF16 interns wide (UTF-16) content through the zone cache.
func (z *Zone) InternUTF16(units []uint16) (*atom.Atom, error) {
	return z.rt.internKey(atom.NewWideKey(units), false, z)
}

// Purge drops every cached entry. The collector calls this when atoms
// cached here may no longer be reachable from the zone's roots.
func (z *Zone) Purge() {
	z.cache = table.NewSet()
}

// Len returns the number of cached atoms.
func (z *Zone) Len() int { return z.cache.Len() }

// Close detaches the zone from its runtime. The zone must not be used
// afterwards.
func (z *Zone) Close() {
	if z.closed {
		return
	}
	z.closed = true
	z.cache = nil
	z.rt.zones.Add(-1)
}

func (z *Zone) lookup(key atom.Key) *atom.Atom {
	if e := z.cache.Lookup(key); e != nil {
		return e.Atom
	}
	return nil
}

func (z *Zone) add(a *atom.Atom) {
	z.cache.Add(&table.Entry{Atom: a})
}
