package atomgo

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/hupe1980/atomgo/atom"
	"github.com/hupe1980/atomgo/internal/resource"
	"github.com/hupe1980/atomgo/internal/table"
	"github.com/hupe1980/atomgo/xdr"
)

// Collector is the garbage-collector contract the atom table consumes.
// The table never decides liveness itself; it asks the collector, and it
// notifies the collector whenever a freshly allocated atom is inserted so an
// in-flight collection can record it.
//
// The gc package provides a reference implementation (gc.MarkSet).
type Collector interface {
	// IsAboutToBeReclaimed reports whether the collector has proven the
	// atom unreachable. Called during sweep and for lazy reclaim on read.
	IsAboutToBeReclaimed(a *atom.Atom) bool

	// NotifyWriteBarrier is called after inserting a freshly allocated,
	// not-yet-tracked atom.
	NotifyWriteBarrier(a *atom.Atom)
}

// NoopCollector treats every atom as live and never reclaims.
type NoopCollector struct{}

func (NoopCollector) IsAboutToBeReclaimed(*atom.Atom) bool { return false }
func (NoopCollector) NotifyWriteBarrier(*atom.Atom)        {}

// Runtime owns one atoms table and shares a frozen permanent atom set with
// every runtime forked from the same root.
//
// Lifecycle: bootstrap (permanent set open, single threaded) -> populated
// (concurrent interning, sweeping) -> torn down via Close.
type Runtime struct {
	logger    *Logger
	metrics   MetricsCollector
	collector Collector

	rc    *resource.Controller
	table *table.Table

	// permanent is the frozen, read-only atom set shared across runtimes.
	// permanentInit is non-nil only inside New, while bootstrap runs.
	permanent     *table.FrozenSet
	permanentInit *table.Set

	parent *Runtime
	nextID *atomic.Uint64 // shared by the root and all its children

	zones atomic.Int32
}

// New creates a process-root runtime. Names passed via WithPermanentNames
// and atoms interned inside a WithBootstrap hook become permanent atoms;
// after New returns the permanent set is frozen for good.
func New(optFns ...Option) (*Runtime, error) {
	o := applyOptions(optFns)

	rt := &Runtime{
		logger:    o.logger,
		metrics:   o.metrics,
		collector: o.collector,
		rc:        resource.NewController(o.memoryLimit),
		nextID:    new(atomic.Uint64),
	}
	rt.table = table.New(rt.tableConfig())

	rt.permanentInit = table.NewSet()
	for _, name := range o.permanentNames {
		if _, err := rt.Intern(name, true); err != nil {
			return nil, fmt.Errorf("bootstrap intern %q: %w", name, err)
		}
	}
	if o.bootstrap != nil {
		if err := o.bootstrap(rt); err != nil {
			return nil, fmt.Errorf("bootstrap hook: %w", err)
		}
	}

	// The permanent atoms table has now been populated. Freeze it and
	// discard the mutable reference.
	rt.permanent = table.Freeze(rt.permanentInit)
	rt.permanentInit = nil

	rt.logger.LogBootstrap(rt.permanent.Len())

	return rt, nil
}

// NewChild creates a runtime that shares this runtime's frozen permanent
// atom set. Children own their own table and memory budget and never mint
// permanent atoms; WithPermanentNames and WithBootstrap are rejected.
func (rt *Runtime) NewChild(optFns ...Option) (*Runtime, error) {
	o := applyOptions(optFns)
	if len(o.permanentNames) > 0 || o.bootstrap != nil {
		return nil, ErrChildBootstrap
	}

	child := &Runtime{
		logger:    o.logger,
		metrics:   o.metrics,
		collector: o.collector,
		rc:        resource.NewController(o.memoryLimit),
		permanent: rt.permanent,
		parent:    rt,
		nextID:    rt.nextID,
	}
	child.table = table.New(child.tableConfig())
	return child, nil
}

func (rt *Runtime) tableConfig() table.Config {
	return table.Config{
		Multithreaded: func() bool { return rt.zones.Load() > 1 },
		Allocate: func(size int) error {
			if !rt.rc.TryAcquireMemory(int64(size)) {
				return fmt.Errorf("%w: %w", ErrOutOfMemory, resource.ErrMemoryLimitExceeded)
			}
			return nil
		},
		Release: func(size int) { rt.rc.ReleaseMemory(int64(size)) },
		NextID:  func() uint64 { return rt.nextID.Add(1) },
		AboutToBeReclaimed: func(a *atom.Atom) bool {
			return rt.collector.IsAboutToBeReclaimed(a)
		},
	}
}

// Intern returns the canonical atom for s, converting to the narrow
// encoding when every code point fits in one byte. pin marks the atom as
// never collectible.
func (rt *Runtime) Intern(s string, pin bool) (*atom.Atom, error) {
	narrow, wide := stringUnits(s)
	if wide != nil {
		return rt.InternUTF16(wide, pin)
	}
	return rt.InternLatin1(narrow, pin)
}

// InternLatin1 interns narrow (Latin-1) content.
func (rt *Runtime) InternLatin1(units []byte, pin bool) (*atom.Atom, error) {
	return rt.internKey(atom.NewNarrowKey(units), pin, nil)
}

// InternUTF16 interns wide (UTF-16) content.
func (rt *Runtime) InternUTF16(units []uint16, pin bool) (*atom.Atom, error) {
	return rt.internKey(atom.NewWideKey(units), pin, nil)
}

// internKey resolves a lookup key to its canonical atom: per-zone cache
// first, then the permanent set without locking, then the partitioned table.
func (rt *Runtime) internKey(key atom.Key, pin bool, zone *Zone) (a *atom.Atom, err error) {
	start := time.Now()
	defer func() {
		rt.metrics.RecordIntern(time.Since(start), err)
	}()

	// Pin requests bypass the zone cache: pinning is rare and the hot
	// path stays simple.
	useCache := zone != nil && !pin
	if useCache {
		if a := zone.lookup(key); a != nil {
			return a, nil
		}
	}

	// During bootstrap every atom created joins the permanent set.
	if rt.permanentInit != nil {
		return rt.internPermanent(key)
	}

	if a := rt.permanent.Lookup(key); a != nil {
		if useCache {
			zone.add(a)
		}
		return a, nil
	}

	// Validate the length before taking a partition lock, so no failure
	// path re-enters the table while the lock is held.
	if err := lengthOK(key.Len()); err != nil {
		return nil, err
	}

	a, created, err := rt.table.Intern(key, pin)
	if err != nil {
		return nil, err
	}
	if created {
		rt.collector.NotifyWriteBarrier(a)
	}
	if useCache {
		zone.add(a)
	}
	return a, nil
}

// internPermanent interns into the still-open permanent set. Bootstrap runs
// single threaded, so no locks are taken.
func (rt *Runtime) internPermanent(key atom.Key) (*atom.Atom, error) {
	if e := rt.permanentInit.Lookup(key); e != nil {
		return e.Atom, nil
	}
	if err := lengthOK(key.Len()); err != nil {
		return nil, err
	}
	if !rt.rc.TryAcquireMemory(int64(key.Footprint())) {
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, resource.ErrMemoryLimitExceeded)
	}

	a := key.NewAtom(rt.nextID.Add(1))
	a.MorphIntoPermanent()
	rt.permanentInit.Add(&table.Entry{Atom: a, Pinned: true})
	return a, nil
}

// Pin marks an atom as never collectible. Pinning is monotonic and cannot
// be undone. Permanent atoms are implicitly pinned already.
//
// An unpinned atom is guaranteed to be registered in the table; Pin panics
// if it is not, since that indicates a caller bug.
func (rt *Runtime) Pin(a *atom.Atom) {
	if a.IsPinned() {
		return
	}
	rt.table.PinExisting(a)
}

// SweepCursor retains the position of an incremental sweep between slices.
type SweepCursor struct {
	it *table.SweepIterator
}

// Done reports whether the sweep cycle has completed.
func (c *SweepCursor) Done() bool { return c.it.Empty() }

// StartIncrementalSweep puts the table into the sweeping state: every
// partition gets a secondary set so producers can keep interning while the
// collector walks the primary sets. The start is atomic; on failure no
// partition is left sweeping and the error is returned.
func (rt *Runtime) StartIncrementalSweep() error {
	return rt.table.StartIncrementalSweep()
}

// NewSweepCursor returns a cursor positioned before the first partition.
func (rt *Runtime) NewSweepCursor() *SweepCursor {
	return &SweepCursor{it: rt.table.NewSweepIterator()}
}

// SweepStep advances the sweep by at most budget entries and reports
// whether the cycle completed. No partition lock is held between calls, so
// the pause between slices is unbounded.
func (rt *Runtime) SweepStep(c *SweepCursor, budget int) bool {
	start := time.Now()
	v0, r0 := c.it.Visited(), c.it.Removed()

	done := rt.table.SweepIncrementally(c.it, budget)

	visited, removed := c.it.Visited()-v0, c.it.Removed()-r0
	rt.metrics.RecordSweepSlice(visited, removed, time.Since(start))
	rt.logger.LogSweepSlice(visited, removed, done)
	return done
}

// SweepAll removes every dead atom in one stop-the-world pass under the
// whole-table lock.
func (rt *Runtime) SweepAll() {
	removed := rt.table.SweepAll()
	rt.logger.LogSweepAll(removed)
}

// Snapshot writes every atom registered in this runtime's table to w using
// the atom record format. Permanent atoms are not included; they are
// re-created by bootstrap on the receiving side.
func (rt *Runtime) Snapshot(w io.Writer, comp xdr.Compression) error {
	start := time.Now()
	atoms := rt.table.Collect()

	err := xdr.WriteSnapshot(w, atoms, comp)
	rt.metrics.RecordSnapshot(len(atoms), time.Since(start), err)
	rt.logger.LogSnapshot(len(atoms), err)
	return err
}

// LoadSnapshot re-interns every atom record read from r, preserving the
// single-canonical-instance invariant. It returns the number of atoms read.
func (rt *Runtime) LoadSnapshot(r io.Reader) (int, error) {
	start := time.Now()

	atoms, err := xdr.ReadSnapshot(r, rt)
	rt.metrics.RecordSnapshot(len(atoms), time.Since(start), err)
	rt.logger.LogLoad(len(atoms), err)
	if err != nil {
		return 0, err
	}
	return len(atoms), nil
}

// Stats reports table occupancy and memory usage.
type Stats struct {
	Atoms          int
	PermanentAtoms int
	MemoryUsed     int64
}

// Stats returns a point-in-time view of the runtime.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Atoms:          rt.table.Len(),
		PermanentAtoms: rt.permanent.Len(),
		MemoryUsed:     rt.rc.MemoryUsed(),
	}
}

// Close tears the runtime down, releasing all table storage back to the
// memory budget. Atoms obtained from this runtime must not be used
// afterwards. The shared permanent set stays alive as long as any runtime
// references it.
func (rt *Runtime) Close() error {
	rt.table.Reset()
	return nil
}

// stringUnits converts a Go string to atom code units: narrow bytes when
// every code point fits in Latin-1, wide UTF-16 units otherwise.
func stringUnits(s string) ([]byte, []uint16) {
	narrowOK := true
	for _, r := range s {
		if r > 0xFF {
			narrowOK = false
			break
		}
	}
	if narrowOK {
		units := make([]byte, 0, len(s))
		for _, r := range s {
			units = append(units, byte(r))
		}
		return units, nil
	}
	return nil, utf16.Encode([]rune(s))
}
