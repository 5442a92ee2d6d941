/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  2 10:31:05 2019 mstenber
 * Last modified: Wed Mar 13 19:40:52 2019 mstenber
 * Edit time:     41 min
 *
 */

package util

import "sync"

const DefaultLimit = 2

// ParallelLimiter ensures at most LimitTotal things happen at the same
// time. It is a semaphore with a trivial API: either Go (blocking
// acquire + goroutine), or TryGo for best-effort work that should be
// dropped rather than queued when the pool is saturated.
type ParallelLimiter struct {
	// How many things are allowed in total (DefaultLimit if zero).
	LimitTotal int

	once  sync.Once
	slots chan struct{}
}

func (self *ParallelLimiter) init() {
	self.once.Do(func() {
		n := self.LimitTotal
		if n <= 0 {
			n = DefaultLimit
		}
		self.slots = make(chan struct{}, n)
	})
}

// Go runs cb in a goroutine once an execution slot is available.
func (self *ParallelLimiter) Go(cb func()) {
	self.init()
	self.slots <- struct{}{}
	go func() {
		defer func() { <-self.slots }()
		cb()
	}()
}

// TryGo runs cb in a goroutine if a slot is free right now, and
// reports whether it did. The caller is expected not to care beyond
// that; there is no queue and no retry.
func (self *ParallelLimiter) TryGo(cb func()) bool {
	self.init()
	select {
	case self.slots <- struct{}{}:
	default:
		return false
	}
	go func() {
		defer func() { <-self.slots }()
		cb()
	}()
	return true
}

// InFlight returns the number of currently held slots.
func (self *ParallelLimiter) InFlight() int {
	self.init()
	return len(self.slots)
}
