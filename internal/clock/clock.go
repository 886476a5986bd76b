// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package clock provides an injectable source of wall-clock time so the
// engine and scheduler can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the single abstraction every time-dependent component reads
// through. Monotonic deadlines for throttling use the same clock.
type Clock interface {
	Now() time.Time
}

// System is the real wall-clock implementation.
type System struct{}

// Now returns the current local time.
//
// Returns:
//   - time.Time: current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// NewSystem creates a Clock backed by the OS wall clock.
//
// Returns:
//   - Clock: system clock implementation.
func NewSystem() Clock {
	return System{}
}

// Fake is a deterministic clock for tests. Zero value starts at the zero
// time; call Set to give it a useful starting point.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock set to the given time.
//
// Parameters:
//   - t: initial time reported by Now.
//
// Returns:
//   - *Fake: initialized fake clock.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// Now returns the clock's current fake time.
//
// Returns:
//   - time.Time: currently set fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
//
// Parameters:
//   - d: duration to advance, may be negative to rewind in tests.
//
// Returns:
//   - time.Time: the new current time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Set pins the fake clock to an explicit time.
//
// Parameters:
//   - t: time to report from subsequent Now calls.
//
// Returns:
//   - None.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
