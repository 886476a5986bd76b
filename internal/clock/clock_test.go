// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	got := c.Advance(5 * time.Minute)
	want := start.Add(5 * time.Minute)
	if !got.Equal(want) {
		t.Fatalf("Advance() = %v, want %v", got, want)
	}
	if now := c.Now(); !now.Equal(want) {
		t.Fatalf("Now() after Advance() = %v, want %v", now, want)
	}
}

func TestFakeSet(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	pinned := time.Date(2026, 6, 15, 12, 30, 0, 0, time.UTC)
	c.Set(pinned)

	if got := c.Now(); !got.Equal(pinned) {
		t.Fatalf("Now() = %v, want %v", got, pinned)
	}
}

func TestSystemNowAdvances(t *testing.T) {
	s := NewSystem()
	first := s.Now()
	time.Sleep(time.Millisecond)
	second := s.Now()

	if !second.After(first) {
		t.Fatalf("expected System clock to advance, got %v then %v", first, second)
	}
}
