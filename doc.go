// Package atomgo provides a concurrent, deduplicating table of canonical
// immutable string values ("atoms").
//
// Given raw character data, a Runtime returns a single canonical handle:
// any two requests for byte-identical content receive the same *atom.Atom,
// across encodings, worker goroutines and zones. The table cooperates with
// an external garbage collector through a small contract (Collector) and
// supports incremental sweeping in bounded slices, so collection can proceed
// without stopping producers.
//
// A minimal session:
//
//	rt, _ := atomgo.New(atomgo.WithPermanentNames([]string{"length", "name"}))
//	z := rt.NewZone()
//	defer z.Close()
//
//	a, _ := z.Intern("foo")
//	b, _ := z.Intern("foo")
//	// a == b
package atomgo
