package table

// SweepIterator is a resumable cursor over every partition's primary set.
// The driving scheduler calls SweepIncrementally repeatedly with a budget;
// between slices the cursor retains the partition index and in-partition
// position, and no partition lock is held while suspended.
type SweepIterator struct {
	t         *Table
	partition int
	captured  bool
	pending   []*Entry

	visited int
	removed int
}

// NewSweepIterator returns a cursor positioned before the first partition.
// StartIncrementalSweep must have succeeded first.
func (t *Table) NewSweepIterator() *SweepIterator {
	return &SweepIterator{t: t}
}

// Empty reports whether every partition has been fully swept and merged.
func (it *SweepIterator) Empty() bool {
	return it.partition >= PartitionCount
}

// Visited returns the number of entries examined so far.
func (it *SweepIterator) Visited() int { return it.visited }

// Removed returns the number of dead entries removed so far.
func (it *SweepIterator) Removed() int { return it.removed }

// StartIncrementalSweep puts every partition into the sweeping state by
// allocating its secondary set, so producers can keep interning while the
// primary sets are walked. The start is atomic: if any allocation fails,
// all partial secondary sets are merged back and no partition is left
// sweeping. Starting also suspends lock elision for the whole cycle; the
// sweep driver counts as a concurrent worker.
func (t *Table) StartIncrementalSweep() error {
	if !t.sweeping.CompareAndSwap(false, true) {
		return ErrSweepInProgress
	}

	var failed error
	started := 0

	for i := range t.partitions {
		p := t.partitions[i]
		l := t.lock(p)
		if err := t.cfg.Allocate(secondarySetFootprint); err != nil {
			l.unlock()
			failed = err
			break
		}
		p.atomsAddedWhileSweeping = NewSet()
		l.unlock()
		started++
	}

	if failed != nil {
		// Partition locks were released between iterations, so producers
		// may already have interned into the partial secondary sets. Merge
		// them back into the primary sets rather than dropping them.
		for i := 0; i < started; i++ {
			p := t.partitions[i]
			l := t.lock(p)
			t.mergeAtomsAddedWhileSweeping(p)
			l.unlock()
		}
		t.sweeping.Store(false)
		return failed
	}
	return nil
}

// SweepIncrementally walks the table until it runs out of work or budget,
// removing entries the liveness oracle reports dead. budget is the number
// of entries to examine in this slice. It reports whether the sweep cycle
// completed.
func (t *Table) SweepIncrementally(it *SweepIterator, budget int) bool {
	for !it.Empty() {
		if budget <= 0 {
			return false
		}
		budget = t.sweepSlice(it, budget)
	}

	// Closing invariant: no partition retains a secondary set.
	for _, p := range t.partitions {
		l := t.lock(p)
		leftover := p.atomsAddedWhileSweeping != nil
		l.unlock()
		if leftover {
			panic("atomgo: secondary atom set left behind after sweep")
		}
	}
	t.sweeping.Store(false)
	return true
}

// sweepSlice processes up to budget entries of the current partition under
// its lock and returns the remaining budget. When the partition's primary
// set is exhausted, its secondary set is merged and the cursor advances.
func (t *Table) sweepSlice(it *SweepIterator, budget int) int {
	p := t.partitions[it.partition]
	l := t.lock(p)
	defer l.unlock()

	if !it.captured {
		// Only the sweep removes entries from the primary set, so the
		// snapshot stays valid across suspensions.
		it.pending = p.atoms.Entries()
		it.captured = true
	}

	for budget > 0 && len(it.pending) > 0 {
		e := it.pending[0]
		it.pending = it.pending[1:]
		budget--
		it.visited++
		if t.entryDead(e) {
			p.atoms.Remove(e.Atom)
			t.cfg.Release(e.Atom.Footprint())
			it.removed++
		}
	}

	if len(it.pending) == 0 {
		t.mergeAtomsAddedWhileSweeping(p)
		it.partition++
		it.captured = false
	}
	return budget
}

// mergeAtomsAddedWhileSweeping folds the secondary set back into the primary
// set and discards it. Sweep-time arrivals are assumed live: merging only
// inserts, never removes. The caller holds the partition lock.
func (t *Table) mergeAtomsAddedWhileSweeping(p *partition) {
	adds := p.atomsAddedWhileSweeping
	if adds == nil {
		panic("atomgo: sweep cursor driven without starting an incremental sweep")
	}
	p.atomsAddedWhileSweeping = nil

	adds.Range(func(e *Entry) bool {
		p.atoms.Add(e)
		return true
	})
	t.cfg.Release(secondarySetFootprint)
}

// SweepAll removes every dead entry in one non-incremental pass under the
// whole-table lock. No secondary sets are involved; an incremental sweep
// must not be in progress.
func (t *Table) SweepAll() int {
	t.LockAll()
	defer t.UnlockAll()

	removed := 0
	for _, p := range t.partitions {
		if p.atomsAddedWhileSweeping != nil {
			panic("atomgo: non-incremental sweep during incremental sweep")
		}
		var dead []*Entry
		p.atoms.Range(func(e *Entry) bool {
			if t.entryDead(e) {
				dead = append(dead, e)
			}
			return true
		})
		for _, e := range dead {
			p.atoms.Remove(e.Atom)
			t.cfg.Release(e.Atom.Footprint())
			removed++
		}
	}
	return removed
}
