// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package scheduler

import (
	"testing"
	"time"

	"github.com/seakee/meshomaton/internal/clock"
)

func newTestScheduler(start time.Time) (*Scheduler, *clock.Fake) {
	fc := clock.NewFake(start)
	return New(fc, nil, nil), fc
}

// S2 — Daily(09:00) with None policy; app background at 08:30, resume at
// 14:00 same day. Expected: zero fires; next fire queued for next day 09:00.
func TestDailyNoneCatchUpAfterTimeJump(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 6, 1, 8, 30, 0, 0, loc)
	sched, _ := newTestScheduler(start)

	spec := ScheduleSpec{
		ID:            "daily-9am",
		Kind:          KindDaily,
		TZ:            "UTC",
		Hour:          9,
		Minute:        0,
		Enabled:       true,
		CatchUpPolicy: CatchUpNone,
	}
	sched.Register(spec)

	resume := time.Date(2026, 6, 1, 14, 0, 0, 0, loc)
	fires := sched.Tick(resume)
	if len(fires) != 0 {
		t.Fatalf("expected zero fires on stale wake, got %d: %+v", len(fires), fires)
	}

	schedules := sched.Schedules()
	if len(schedules) != 1 {
		t.Fatalf("expected schedule to remain registered, got %d", len(schedules))
	}
}

// S3 — Daily(09:00) with LastOnly; last fire Friday 09:00; resumes Monday
// 10:00. Expected exactly one fire with scheduled_for = Monday 09:00,
// is_catch_up = true; next queued Tuesday 09:00.
func TestDailyLastOnlyCatchUpOverWeekend(t *testing.T) {
	loc := time.UTC
	friday9am := time.Date(2026, 6, 5, 9, 0, 0, 0, loc) // Friday
	sched, _ := newTestScheduler(friday9am)

	spec := ScheduleSpec{
		ID:            "daily-9am-catchup",
		Kind:          KindDaily,
		TZ:            "UTC",
		Hour:          9,
		Minute:        0,
		Enabled:       true,
		CatchUpPolicy: CatchUpLastOnly,
	}
	sched.Register(spec)

	// Fire Friday's slot so LastFiredSlotKey reflects "last fire Friday 09:00".
	if fires := sched.Tick(friday9am); len(fires) != 1 {
		t.Fatalf("expected one fire at Friday 09:00, got %d", len(fires))
	}

	monday10am := time.Date(2026, 6, 8, 10, 0, 0, 0, loc) // Monday
	fires := sched.Tick(monday10am)
	if len(fires) != 1 {
		t.Fatalf("expected exactly one catch-up fire, got %d: %+v", len(fires), fires)
	}
	mondaySlot := time.Date(2026, 6, 8, 9, 0, 0, 0, loc)
	if !fires[0].ScheduledFor.Equal(mondaySlot) {
		t.Fatalf("expected scheduled_for Monday 09:00, got %v", fires[0].ScheduledFor)
	}
	if !fires[0].IsCatchUp {
		t.Fatalf("expected IsCatchUp=true")
	}
}

// Invariant 1 — BySlot dedup: across ten successive ticks 30 s apart, a
// slot key is never emitted twice.
func TestIntervalDedupAcrossRepeatedTicks(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _ := newTestScheduler(start)

	spec := ScheduleSpec{
		ID:             "every-30s",
		Kind:           KindInterval,
		Every:          30 * time.Second,
		Enabled:        true,
		CatchUpPolicy:  CatchUpNone,
		DedupeStrategy: DedupeBySlot,
	}
	sched.Register(spec)

	seen := map[string]bool{}
	now := start
	for i := 0; i < 10; i++ {
		now = now.Add(30 * time.Second)
		for _, f := range sched.Tick(now) {
			if seen[f.SlotKey] {
				t.Fatalf("slot %s fired twice", f.SlotKey)
			}
			seen[f.SlotKey] = true
		}
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one fire across ticks")
	}
}

// Invariant 2 — within one tick, fires are non-decreasing by fire_time.
func TestTickOrdersFiresByTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _ := newTestScheduler(start)

	sched.Register(ScheduleSpec{ID: "a", Kind: KindInterval, Every: 10 * time.Second, Enabled: true})
	sched.Register(ScheduleSpec{ID: "b", Kind: KindInterval, Every: 17 * time.Second, Enabled: true})

	fires := sched.Tick(start.Add(time.Minute))
	for i := 1; i < len(fires); i++ {
		if fires[i].ScheduledFor.Before(fires[i-1].ScheduledFor) {
			t.Fatalf("fires out of order: %+v", fires)
		}
	}
}

func TestOneShotFiresOnceThenStaysInactive(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _ := newTestScheduler(start)

	runAt := start.Add(5 * time.Minute)
	sched.Register(ScheduleSpec{ID: "once", Kind: KindOneShot, RunAt: &runAt, Enabled: true})

	fires := sched.Tick(start.Add(10 * time.Minute))
	if len(fires) != 1 {
		t.Fatalf("expected exactly one fire, got %d", len(fires))
	}

	fires = sched.Tick(start.Add(20 * time.Minute))
	if len(fires) != 0 {
		t.Fatalf("expected no further fires for a one-shot, got %d", len(fires))
	}
}

func TestUnregisterRemovesHeapEntry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, _ := newTestScheduler(start)

	sched.Register(ScheduleSpec{ID: "x", Kind: KindInterval, Every: 10 * time.Second, Enabled: true})
	sched.Unregister("x")

	fires := sched.Tick(start.Add(time.Minute))
	if len(fires) != 0 {
		t.Fatalf("expected no fires after unregister, got %d", len(fires))
	}
}
