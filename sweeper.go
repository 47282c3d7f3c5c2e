package atomgo

import (
	"context"

	"golang.org/x/time/rate"
)

// SweepScheduler drives an incremental sweep to completion in bounded
// slices, optionally pacing slices with a rate limiter so producers keep
// making progress between them.
type SweepScheduler struct {
	rt      *Runtime
	budget  int
	limiter *rate.Limiter

	cursor *SweepCursor
}

// NewSweepScheduler creates a scheduler that examines at most budget
// entries per slice. limiter may be nil for unpaced slices.
func NewSweepScheduler(rt *Runtime, budget int, limiter *rate.Limiter) *SweepScheduler {
	if budget <= 0 {
		budget = 64
	}
	return &SweepScheduler{rt: rt, budget: budget, limiter: limiter}
}

// Run starts an incremental sweep (unless one is being resumed) and steps
// it until completion or context cancellation. On cancellation the sweep
// stays in progress and a later Run resumes from the retained cursor.
func (s *SweepScheduler) Run(ctx context.Context) error {
	if s.cursor == nil {
		if err := s.rt.StartIncrementalSweep(); err != nil {
			return err
		}
		s.cursor = s.rt.NewSweepCursor()
	}

	for !s.cursor.Done() {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		s.rt.SweepStep(s.cursor, s.budget)
	}

	s.cursor = nil
	return nil
}
