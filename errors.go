package atomgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/atomgo/atom"
	"github.com/hupe1980/atomgo/internal/table"
)

var (
	// ErrOutOfMemory is returned when atom storage cannot be allocated
	// within the configured memory limit. The failing intern leaves no
	// partial entry behind; a later sweep may free budget.
	ErrOutOfMemory = errors.New("atom storage memory limit exceeded")

	// ErrSweepInProgress is returned by StartIncrementalSweep when a
	// previous incremental sweep has not completed.
	ErrSweepInProgress = table.ErrSweepInProgress

	// ErrChildBootstrap is returned when a child runtime is created with
	// bootstrap options; only the process-root runtime mints permanent
	// atoms.
	ErrChildBootstrap = errors.New("child runtimes cannot define permanent atoms")
)

// ErrTooLong indicates content exceeding the maximum atom length. It is
// reported before any partition lock is taken.
type ErrTooLong struct {
	Length int
	Max    int
}

func (e *ErrTooLong) Error() string {
	return fmt.Sprintf("atom content too long: %d code units (max %d)", e.Length, e.Max)
}

// lengthOK validates key length ahead of locking.
func lengthOK(n int) error {
	if n > atom.MaxLength {
		return &ErrTooLong{Length: n, Max: atom.MaxLength}
	}
	return nil
}
