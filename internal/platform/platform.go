// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package platform defines the PlatformScheduler trait bridging the
// in-app Scheduler to an OS-provided background executor (spec.md §4.4),
// plus a SchedulerBridge keeping the two in sync. The concrete OS
// integration is out of scope — only the seam is specified — so this
// package ships a no-op Scheduler implementation a server-side deployment
// registers when no such platform exists.
package platform

import (
	"context"
	"time"

	"github.com/seakee/meshomaton/internal/scheduler"
)

// TaskKind mirrors the platform task shapes register_schedule maps onto.
type TaskKind string

const (
	TaskPeriodic TaskKind = "periodic"
	TaskOneShot  TaskKind = "oneShot"
)

// MinPeriodicInterval is the platform's typical minimum periodic wake
// granularity; register_schedule clamps Interval schedules to this.
const MinPeriodicInterval = 15 * time.Minute

// Task is what a Scheduler registers with the platform executor.
type Task struct {
	ScheduleID string
	Kind       TaskKind
	At         time.Time
	Every      time.Duration
}

// WakeCallback is invoked by the platform when a registered Task fires.
type WakeCallback func(scheduleID string)

// Scheduler is the OS background-executor seam spec.md §4.4 calls
// PlatformScheduler. Concrete OS integration (iOS BGTaskScheduler, Android
// WorkManager, systemd timers, ...) lives outside this repo's scope;
// implementations register/cancel opaque Tasks and invoke WakeCallback on
// fire.
type Scheduler interface {
	Initialize(ctx context.Context, onWake WakeCallback) error
	RegisterTask(ctx context.Context, task Task) error
	UnregisterTask(ctx context.Context, scheduleID string) error
	CancelAll(ctx context.Context) error
}

// NoopScheduler is the Scheduler a deployment with no platform
// background-executor registers, e.g. a continuously-running server
// process that can simply run the in-app Scheduler's own ticker instead.
type NoopScheduler struct{}

func (NoopScheduler) Initialize(ctx context.Context, onWake WakeCallback) error { return nil }
func (NoopScheduler) RegisterTask(ctx context.Context, task Task) error         { return nil }
func (NoopScheduler) UnregisterTask(ctx context.Context, scheduleID string) error {
	return nil
}
func (NoopScheduler) CancelAll(ctx context.Context) error { return nil }

// SchedulerBridge keeps an in-app *scheduler.Scheduler authoritative while
// mirroring a subset of its schedules onto a platform Scheduler, per
// spec.md §4.4.
type SchedulerBridge struct {
	app      *scheduler.Scheduler
	platform Scheduler
}

// New builds a SchedulerBridge over app and platform.
func New(app *scheduler.Scheduler, platform Scheduler) *SchedulerBridge {
	if platform == nil {
		platform = NoopScheduler{}
	}
	return &SchedulerBridge{app: app, platform: platform}
}

// Initialize wires the platform's wake callback to run a tick, persist
// spec state, and re-arm daily/weekly tasks.
func (b *SchedulerBridge) Initialize(ctx context.Context, now func() time.Time) error {
	return b.platform.Initialize(ctx, func(scheduleID string) {
		b.app.Tick(now())
		_ = b.app.Persist()
		_ = b.SyncToPlatform(ctx)
	})
}

// RegisterSchedule registers spec with the in-app Scheduler and, when
// enabled, mirrors it onto the platform executor using the task-shape
// mapping spec.md §4.4 specifies.
func (b *SchedulerBridge) RegisterSchedule(ctx context.Context, spec scheduler.ScheduleSpec) error {
	b.app.Register(spec)
	if !spec.Enabled {
		return nil
	}
	return b.registerPlatformTask(ctx, spec)
}

func (b *SchedulerBridge) registerPlatformTask(ctx context.Context, spec scheduler.ScheduleSpec) error {
	switch spec.Kind {
	case scheduler.KindInterval:
		every := spec.Every
		if every < MinPeriodicInterval {
			every = MinPeriodicInterval
		}
		return b.platform.RegisterTask(ctx, Task{ScheduleID: spec.ID, Kind: TaskPeriodic, Every: every})
	case scheduler.KindOneShot:
		if spec.RunAt == nil {
			return nil
		}
		return b.platform.RegisterTask(ctx, Task{ScheduleID: spec.ID, Kind: TaskOneShot, At: *spec.RunAt})
	case scheduler.KindDaily, scheduler.KindWeekly:
		// The in-app Scheduler computes the next occurrence; the platform
		// only ever needs a single one-shot wake at that instant, re-armed
		// by SyncToPlatform after each platform-driven wake.
		at, ok := b.app.NextFireTime(spec.ID)
		if !ok {
			return nil
		}
		return b.platform.RegisterTask(ctx, Task{ScheduleID: spec.ID, Kind: TaskOneShot, At: at})
	default:
		return nil
	}
}

// UnregisterSchedule removes spec.ID from both the in-app Scheduler and
// the platform executor.
func (b *SchedulerBridge) UnregisterSchedule(ctx context.Context, id string) error {
	b.app.Unregister(id)
	return b.platform.UnregisterTask(ctx, id)
}

// SyncToPlatform cancels every platform task and re-registers one for
// each enabled schedule, called on backgrounding.
func (b *SchedulerBridge) SyncToPlatform(ctx context.Context) error {
	if err := b.platform.CancelAll(ctx); err != nil {
		return err
	}
	for _, spec := range b.app.Schedules() {
		if !spec.Enabled {
			continue
		}
		if err := b.registerPlatformTask(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// ProcessOnResume runs one tick against now, called on foregrounding.
func (b *SchedulerBridge) ProcessOnResume(now time.Time) []scheduler.ScheduledFire {
	return b.app.Tick(now)
}
