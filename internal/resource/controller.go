// Package resource tracks the memory budget available to atom storage.
package resource

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrMemoryLimitExceeded is returned when the memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Controller enforces an optional hard limit on the bytes held by atom
// content. With no limit it still tracks usage for stats.
type Controller struct {
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64
}

// NewController creates a controller. limitBytes <= 0 means no hard limit.
func NewController(limitBytes int64) *Controller {
	c := &Controller{}
	if limitBytes > 0 {
		c.memSem = semaphore.NewWeighted(limitBytes)
	}
	return c
}

// TryAcquireMemory reserves size bytes without blocking.
func (c *Controller) TryAcquireMemory(size int64) bool {
	if size < 0 {
		return false
	}
	if c.memSem != nil && !c.memSem.TryAcquire(size) {
		return false
	}
	c.memUsed.Add(size)
	return true
}

// ReleaseMemory returns size bytes to the budget.
func (c *Controller) ReleaseMemory(size int64) {
	if size <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(size)
	}
	c.memUsed.Add(-size)
}

// MemoryUsed returns the bytes currently reserved.
func (c *Controller) MemoryUsed() int64 {
	return c.memUsed.Load()
}
