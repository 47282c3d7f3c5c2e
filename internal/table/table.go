// Package table implements the partitioned, lock-striped store of canonical
// atoms together with its incremental sweep protocol.
//
// The table is split into a fixed number of partitions chosen by the top
// bits of the content hash. Each partition owns a mutex, a primary set and,
// while a sweep of its slice is in progress, a secondary set receiving the
// atoms interned mid-sweep.
package table

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/atomgo/atom"
)

const (
	// PartitionShift is the number of top hash bits selecting a partition.
	PartitionShift = 5
	// PartitionCount is the fixed number of partitions. It never changes
	// for the lifetime of a table.
	PartitionCount = 1 << PartitionShift
)

// secondarySetFootprint is the memory-budget charge for one partition's
// secondary sweep set.
const secondarySetFootprint = 256

// ErrSweepInProgress is returned when an incremental sweep is started while
// a previous one has not completed.
var ErrSweepInProgress = errors.New("incremental sweep already in progress")

// Config wires the table to its owning runtime.
type Config struct {
	// Multithreaded reports whether concurrent workers currently exist.
	// When it returns false and no sweep is in progress, partition locking
	// is elided: with a single worker and no sweep driver, no concurrent
	// mutation is possible by construction.
	Multithreaded func() bool

	// Allocate charges size bytes of atom storage against the memory
	// budget; it returns an error when the budget is exhausted.
	Allocate func(size int) error

	// Release returns size bytes to the budget.
	Release func(size int)

	// NextID returns the allocation ID for a newly created atom.
	NextID func() uint64

	// AboutToBeReclaimed is the collector's liveness oracle. Entries it
	// reports dead are skipped on lookup and removed during sweep.
	AboutToBeReclaimed func(a *atom.Atom) bool
}

type partition struct {
	mu    sync.Mutex
	atoms *Set

	// atomsAddedWhileSweeping receives inserts while this partition's
	// primary set is mid-sweep. Non-nil iff a sweep is in progress; merged
	// into the primary set and discarded when the partition's sweep ends.
	atomsAddedWhileSweeping *Set
}

// Table is the partitioned atom store for one runtime instance.
type Table struct {
	cfg        Config
	partitions [PartitionCount]*partition

	// sweeping is true from a successful StartIncrementalSweep until the
	// cycle completes. The sweep driver is a concurrent mutator in its own
	// right, so while it is set, lock elision is suspended even when only
	// one worker is attached.
	sweeping atomic.Bool
}

// New creates a table with the fixed partition layout.
func New(cfg Config) *Table {
	t := &Table{cfg: cfg}
	for i := range t.partitions {
		t.partitions[i] = &partition{atoms: NewSet()}
	}
	return t
}

// PartitionIndex routes a content hash to its partition. It is a pure
// function: the same hash maps to the same partition for the table's
// lifetime.
func PartitionIndex(hash uint32) int {
	return int(hash >> (32 - PartitionShift))
}

// autoLock is a scoped partition-lock guard. It records whether the lock
// was actually taken so the release decision cannot diverge from the acquire
// decision if the worker count changes in between.
type autoLock struct {
	mu *sync.Mutex
}

func (t *Table) lock(p *partition) autoLock {
	if t.cfg.Multithreaded() || t.sweeping.Load() {
		p.mu.Lock()
		return autoLock{mu: &p.mu}
	}
	return autoLock{}
}

func (l autoLock) unlock() {
	if l.mu != nil {
		l.mu.Unlock()
	}
}

// Intern returns the canonical atom for key, allocating and inserting a new
// one on miss. It reports whether a new atom was created so the caller can
// notify the collector's write barrier.
//
// Insertion is all-or-nothing under the partition lock: an allocation
// failure leaves no partial entry behind. Callers validate the content
// length before calling, so no failure path here can re-enter the table
// while the partition lock is held.
func (t *Table) Intern(key atom.Key, pin bool) (*atom.Atom, bool, error) {
	p := t.partitions[PartitionIndex(key.Hash())]
	l := t.lock(p)
	defer l.unlock()

	var e *Entry
	if adds := p.atomsAddedWhileSweeping; adds != nil {
		// Mid-sweep all new atoms land in the secondary set, so it is the
		// more recent view and is checked first. A hit in the primary set
		// only counts if the collector has not already proven it dead.
		e = adds.Lookup(key)
		if e == nil {
			if e2 := p.atoms.Lookup(key); e2 != nil && !t.entryDead(e2) {
				e = e2
			}
		}
	} else {
		e = p.atoms.Lookup(key)
	}

	if e != nil {
		if pin && !e.Atom.IsPinned() {
			e.Atom.SetPinned()
			e.Pinned = true
		}
		return e.Atom, false, nil
	}

	if err := t.cfg.Allocate(key.Footprint()); err != nil {
		return nil, false, err
	}
	a := key.NewAtom(t.cfg.NextID())
	if pin {
		a.SetPinned()
	}

	addSet := p.atoms
	if p.atomsAddedWhileSweeping != nil {
		addSet = p.atomsAddedWhileSweeping
	}
	addSet.Add(&Entry{Atom: a, Pinned: pin})

	return a, true, nil
}

// PinExisting pins an atom that must already be registered in this table.
// An unpinned atom is guaranteed to be present in its partition's primary or
// secondary set; a miss is a caller bug and panics.
func (t *Table) PinExisting(a *atom.Atom) {
	key := atom.KeyFromAtom(a)

	p := t.partitions[PartitionIndex(key.Hash())]
	l := t.lock(p)
	defer l.unlock()

	e := p.atoms.Lookup(key)
	if e == nil && p.atomsAddedWhileSweeping != nil {
		e = p.atomsAddedWhileSweeping.Lookup(key)
	}
	if e == nil {
		panic("atomgo: pinning an atom that is not in the atoms table")
	}

	a.SetPinned()
	e.Pinned = true
}

// LockAll acquires every partition lock in ascending index order. Together
// with UnlockAll's descending release this is the only multi-lock order in
// the system, so whole-table barrier operations cannot deadlock against
// single-partition paths.
func (t *Table) LockAll() {
	for i := range t.partitions {
		t.partitions[i].mu.Lock()
	}
}

// UnlockAll releases every partition lock in descending index order.
func (t *Table) UnlockAll() {
	for i := range t.partitions {
		t.partitions[PartitionCount-i-1].mu.Unlock()
	}
}

// Collect returns a snapshot of every live atom under the whole-table lock,
// including atoms sitting in secondary sweep sets.
func (t *Table) Collect() []*atom.Atom {
	t.LockAll()
	defer t.UnlockAll()

	var out []*atom.Atom
	for _, p := range t.partitions {
		p.atoms.Range(func(e *Entry) bool {
			out = append(out, e.Atom)
			return true
		})
		if p.atomsAddedWhileSweeping != nil {
			p.atomsAddedWhileSweeping.Range(func(e *Entry) bool {
				out = append(out, e.Atom)
				return true
			})
		}
	}
	return out
}

// Len returns the number of registered atoms.
func (t *Table) Len() int {
	t.LockAll()
	defer t.UnlockAll()

	n := 0
	for _, p := range t.partitions {
		n += p.atoms.Len()
		if p.atomsAddedWhileSweeping != nil {
			n += p.atomsAddedWhileSweeping.Len()
		}
	}
	return n
}

// Reset removes every entry and returns its storage to the budget. Used
// when the owning runtime is torn down. A sweep must not be in progress.
func (t *Table) Reset() {
	t.LockAll()
	defer t.UnlockAll()

	for _, p := range t.partitions {
		if p.atomsAddedWhileSweeping != nil {
			panic("atomgo: table reset during incremental sweep")
		}
		p.atoms.Range(func(e *Entry) bool {
			t.cfg.Release(e.Atom.Footprint())
			return true
		})
		p.atoms = NewSet()
	}
}

func (t *Table) entryDead(e *Entry) bool {
	if e.Pinned || e.Atom.IsPinned() {
		return false
	}
	return t.cfg.AboutToBeReclaimed(e.Atom)
}
