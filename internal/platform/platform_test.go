// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package platform

import (
	"context"
	"testing"
	"time"

	"github.com/seakee/meshomaton/internal/clock"
	"github.com/seakee/meshomaton/internal/scheduler"
)

type recordingScheduler struct {
	registered []Task
	cancelled  int
}

func (r *recordingScheduler) Initialize(ctx context.Context, onWake WakeCallback) error { return nil }
func (r *recordingScheduler) RegisterTask(ctx context.Context, task Task) error {
	r.registered = append(r.registered, task)
	return nil
}
func (r *recordingScheduler) UnregisterTask(ctx context.Context, scheduleID string) error {
	return nil
}
func (r *recordingScheduler) CancelAll(ctx context.Context) error {
	r.cancelled++
	r.registered = nil
	return nil
}

func TestRegisterScheduleClampsIntervalToPlatformMinimum(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	app := scheduler.New(fc, nil, nil)
	rec := &recordingScheduler{}
	bridge := New(app, rec)

	err := bridge.RegisterSchedule(context.Background(), scheduler.ScheduleSpec{
		ID: "s1", Kind: scheduler.KindInterval, Every: 1 * time.Minute, Enabled: true,
	})
	if err != nil {
		t.Fatalf("RegisterSchedule: %v", err)
	}
	if len(rec.registered) != 1 || rec.registered[0].Every != MinPeriodicInterval {
		t.Fatalf("expected clamp to %v, got %+v", MinPeriodicInterval, rec.registered)
	}
}

func TestSyncToPlatformCancelsThenReregisters(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	app := scheduler.New(fc, nil, nil)
	rec := &recordingScheduler{}
	bridge := New(app, rec)

	runAt := start.Add(time.Hour)
	_ = bridge.RegisterSchedule(context.Background(), scheduler.ScheduleSpec{
		ID: "s2", Kind: scheduler.KindOneShot, RunAt: &runAt, Enabled: true,
	})

	if err := bridge.SyncToPlatform(context.Background()); err != nil {
		t.Fatalf("SyncToPlatform: %v", err)
	}
	if rec.cancelled != 1 {
		t.Fatalf("expected CancelAll to run once, got %d", rec.cancelled)
	}
	if len(rec.registered) != 1 {
		t.Fatalf("expected one re-registered task, got %d", len(rec.registered))
	}
}
