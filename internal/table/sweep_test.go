package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/atomgo/atom"
)

func mustIntern(t *testing.T, tbl *Table, key atom.Key) *atom.Atom {
	t.Helper()
	a, _, err := tbl.Intern(key, false)
	require.NoError(t, err)
	return a
}

func TestIncrementalSweepRemovesDeadKeepsLive(t *testing.T) {
	tbl, env := newTestTable(t)

	live := make([]*atom.Atom, 5)
	for i := range live {
		live[i] = mustIntern(t, tbl, narrowKey(fmt.Sprintf("live-%d", i)))
	}
	dead := make([]*atom.Atom, 3)
	for i := range dead {
		dead[i] = mustIntern(t, tbl, narrowKey(fmt.Sprintf("dead-%d", i)))
		env.markDead(dead[i])
	}

	require.NoError(t, tbl.StartIncrementalSweep())
	it := tbl.NewSweepIterator()

	// Budget of one entry per slice: the walk suspends between any two
	// entries and resumes from the same position.
	steps := 0
	for !tbl.SweepIncrementally(it, 1) {
		steps++
	}
	assert.Equal(t, 8, it.Visited())
	assert.Equal(t, 3, it.Removed())
	assert.GreaterOrEqual(t, steps, 7)

	for i, a := range live {
		b, created, err := tbl.Intern(narrowKey(fmt.Sprintf("live-%d", i)), false)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Same(t, a, b)
	}
	for i := range dead {
		b, created, err := tbl.Intern(narrowKey(fmt.Sprintf("dead-%d", i)), false)
		require.NoError(t, err)
		assert.True(t, created, "dead atom must have been removed")
		assert.NotSame(t, dead[i], b)
	}
}

func TestInsertsDuringSweepSurvive(t *testing.T) {
	tbl, env := newTestTable(t)

	doomed := mustIntern(t, tbl, narrowKey("doomed"))
	env.markDead(doomed)
	for i := 0; i < 6; i++ {
		mustIntern(t, tbl, narrowKey(fmt.Sprintf("filler-%d", i)))
	}

	require.NoError(t, tbl.StartIncrementalSweep())
	it := tbl.NewSweepIterator()

	// Step once, then keep producing while the sweep is suspended.
	tbl.SweepIncrementally(it, 1)

	arrived := mustIntern(t, tbl, narrowKey("mid-sweep-arrival"))

	// Interning content equal to a dead entry must skip it and allocate a
	// fresh canonical atom (lazy reclaim on read).
	replacement, created, err := tbl.Intern(narrowKey("doomed"), false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotSame(t, doomed, replacement)

	for !tbl.SweepIncrementally(it, 2) {
	}

	// Sweep-time arrivals are assumed live and merged back in.
	again, created, err := tbl.Intern(narrowKey("mid-sweep-arrival"), false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, arrived, again)

	again, created, err = tbl.Intern(narrowKey("doomed"), false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, replacement, again)
}

func TestStartIncrementalSweepTwiceFails(t *testing.T) {
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.StartIncrementalSweep())
	assert.ErrorIs(t, tbl.StartIncrementalSweep(), ErrSweepInProgress)

	it := tbl.NewSweepIterator()
	for !tbl.SweepIncrementally(it, 100) {
	}

	// After completion every secondary slot is gone and a new sweep can
	// start.
	assert.NoError(t, tbl.StartIncrementalSweep())
	it = tbl.NewSweepIterator()
	for !tbl.SweepIncrementally(it, 100) {
	}
}

func TestStartIncrementalSweepRollsBackOnAllocationFailure(t *testing.T) {
	tbl, env := newTestTable(t)

	env.setFailAlloc(true)
	err := tbl.StartIncrementalSweep()
	require.ErrorIs(t, err, errNoBudget)

	// The rollback is atomic: all partial secondary sets were released,
	// so a retry succeeds once the budget recovers.
	env.setFailAlloc(false)
	assert.Equal(t, env.acquired.Load(), env.released.Load())
	require.NoError(t, tbl.StartIncrementalSweep())

	it := tbl.NewSweepIterator()
	for !tbl.SweepIncrementally(it, 100) {
	}
	assert.Equal(t, env.acquired.Load(), env.released.Load())
}

func TestPinnedAtomsSurviveSweep(t *testing.T) {
	tbl, env := newTestTable(t)

	pinned, _, err := tbl.Intern(narrowKey("pinned"), true)
	require.NoError(t, err)
	env.markDead(pinned) // the oracle has no say over pinned entries

	latePin := mustIntern(t, tbl, narrowKey("late-pin"))
	tbl.PinExisting(latePin)
	env.markDead(latePin)

	require.NoError(t, tbl.StartIncrementalSweep())
	it := tbl.NewSweepIterator()
	for !tbl.SweepIncrementally(it, 4) {
	}
	assert.Equal(t, 0, it.Removed())

	a, created, err := tbl.Intern(narrowKey("pinned"), false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, pinned, a)
}

func TestSweepAll(t *testing.T) {
	tbl, env := newTestTable(t)

	live := mustIntern(t, tbl, narrowKey("live"))
	for i := 0; i < 4; i++ {
		env.markDead(mustIntern(t, tbl, narrowKey(fmt.Sprintf("gone-%d", i))))
	}

	removed := tbl.SweepAll()
	assert.Equal(t, 4, removed)
	assert.Equal(t, 1, tbl.Len())

	a, created, err := tbl.Intern(narrowKey("live"), false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, live, a)
}

// keyForPartition returns a key whose hash routes to the given partition.
func keyForPartition(idx int) atom.Key {
	for i := 0; ; i++ {
		k := narrowKey(fmt.Sprintf("part-%d-%d", idx, i))
		if PartitionIndex(k.Hash()) == idx {
			return k
		}
	}
}

func TestSweepForcesLockingWithSingleWorker(t *testing.T) {
	// A single-worker table elides partition locks, but the sweep driver is
	// a second mutator: starting a sweep must switch locking back on.
	tbl, env := newTestTableWith(t, func() bool { return false })

	for i := 0; i < 8; i++ {
		env.markDead(mustIntern(t, tbl, narrowKey(fmt.Sprintf("stale-%d", i))))
	}
	require.NoError(t, tbl.StartIncrementalSweep())

	const fresh = 128
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < fresh; i++ {
			if _, _, err := tbl.Intern(narrowKey(fmt.Sprintf("fresh-%d", i)), false); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	it := tbl.NewSweepIterator()
	for !tbl.SweepIncrementally(it, 1) {
	}
	<-done

	for i := 0; i < fresh; i++ {
		_, created, err := tbl.Intern(narrowKey(fmt.Sprintf("fresh-%d", i)), false)
		require.NoError(t, err)
		assert.False(t, created)
	}
	assert.Equal(t, fresh, tbl.Len())
}

func TestSweepStartRollbackKeepsMidStartInserts(t *testing.T) {
	env := &testEnv{dead: make(map[*atom.Atom]bool)}
	key := keyForPartition(0)

	var tbl *Table
	var injected *atom.Atom
	secondaryAllocs := 0
	tbl = New(Config{
		Multithreaded: func() bool { return true },
		Allocate: func(size int) error {
			if size != secondarySetFootprint {
				env.acquired.Add(int64(size))
				return nil
			}
			secondaryAllocs++
			switch secondaryAllocs {
			case 2:
				// Partition 0 already has its secondary set and its lock
				// is free, so a producer can intern into it while the
				// start loop is still working on later partitions.
				a, created, err := tbl.Intern(key, false)
				if err != nil || !created {
					t.Errorf("mid-start intern: created=%v err=%v", created, err)
				}
				injected = a
			case 5:
				return errNoBudget
			}
			env.acquired.Add(int64(size))
			return nil
		},
		Release: func(size int) { env.released.Add(int64(size)) },
		NextID:  func() uint64 { return env.nextID.Add(1) },
		AboutToBeReclaimed: func(a *atom.Atom) bool {
			return false
		},
	})

	require.ErrorIs(t, tbl.StartIncrementalSweep(), errNoBudget)
	require.NotNil(t, injected)

	// The rollback merged partition 0's secondary set into the primary set
	// instead of dropping it; the handle stays canonical.
	a, created, err := tbl.Intern(key, false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, injected, a)

	// Every secondary charge was returned; only the injected atom's storage
	// remains outstanding.
	assert.Equal(t, env.acquired.Load()-int64(injected.Footprint()), env.released.Load())
}

func TestSweepWithoutStartPanics(t *testing.T) {
	tbl, _ := newTestTable(t)

	it := tbl.NewSweepIterator()
	assert.Panics(t, func() {
		tbl.SweepIncrementally(it, 1)
	})
}

func TestSweepReleasesDeadStorage(t *testing.T) {
	tbl, env := newTestTable(t)

	a := mustIntern(t, tbl, narrowKey("victim"))
	env.markDead(a)
	require.Equal(t, int64(a.Footprint()), env.acquired.Load())

	removed := tbl.SweepAll()
	require.Equal(t, 1, removed)
	assert.Equal(t, env.acquired.Load(), env.released.Load())
}
