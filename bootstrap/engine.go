// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sk-pkg/util"
	"go.uber.org/zap"

	"github.com/seakee/meshomaton/internal/automationfile"
	"github.com/seakee/meshomaton/internal/clock"
	"github.com/seakee/meshomaton/internal/debugrecorder"
	"github.com/seakee/meshomaton/internal/effector/feishumsg"
	"github.com/seakee/meshomaton/internal/effector/webhook"
	"github.com/seakee/meshomaton/internal/engine"
	"github.com/seakee/meshomaton/internal/platform"
	"github.com/seakee/meshomaton/internal/repository"
	"github.com/seakee/meshomaton/internal/scheduler"
	"github.com/seakee/meshomaton/internal/store/mysqlstore"
	"github.com/seakee/meshomaton/internal/telemetry"
)

// loadEngine builds the Store, Repository, Engine, DebugRecorder, Scheduler
// and SchedulerBridge that replace the teacher's Docker-collector/cron-job
// graph. It is wired the same way loadDB/loadRedis are: a dedicated method
// called once from NewApp, storing its results on App.
//
// Returns:
//   - error: returned when the backing MySQL connection named "meshomaton"
//     is missing, when loading automations or schedules from the Store
//     fails, or when the tracer provider fails to install.
func (a *App) loadEngine(ctx context.Context) error {
	db, ok := a.MysqlDB["meshomaton"]
	if !ok {
		return errEngineDatabaseMissing
	}

	a.Store = mysqlstore.New(db, a.Logger)
	a.Repository = repository.New(a.Store)
	if err := a.Repository.Load(); err != nil {
		return err
	}

	tp, err := telemetry.NewProvider(telemetry.Config{
		Enabled:     a.Config.Telemetry.TracingEnable,
		ServiceName: a.Config.Telemetry.ServiceName,
		Environment: a.Config.System.Env,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Telemetry = tp

	a.DebugRecorder = debugrecorder.New(a.Config.Engine.MaxEvaluationRecords)
	a.Clock = clock.NewSystem()

	effectors := engine.Effectors{
		Webhook: webhook.New(a.Logger),
	}
	if a.Config.Feishu.Enable {
		msg := feishumsg.New(a.Feishu)
		effectors.Notifier = msg
		effectors.Messenger = msg
	}

	a.Engine = engine.New(a.Repository, a.Clock, effectors,
		engine.WithThrottleInterval(a.Config.Engine.ThrottleInterval*time.Second),
		engine.WithBatteryHysteresis(a.Config.Engine.BatteryHysteresis),
		engine.WithRecorder(a.DebugRecorder),
		engine.WithLogger(a.Logger),
	)

	a.Scheduler = scheduler.New(a.Clock, a.Logger, a.persistSchedules)
	a.Scheduler.OnFire(a.Engine.OnScheduledFire)

	specs, err := a.Store.LoadSchedules()
	if err != nil {
		return err
	}
	a.Scheduler.ResyncFromStore(specs)

	a.SchedulerBridge = platform.New(a.Scheduler, platform.NoopScheduler{})

	if a.Config.Engine.StarterPack.Enable {
		if err := automationfile.SeedIfEmpty(a.Config.Engine.StarterPack.Path, a.Repository, a.Clock.Now(), a.Logger); err != nil {
			a.Logger.Warn(ctx, "starter pack seed failed", zap.Error(err))
		}

		if a.Config.Engine.StarterPack.WatchForChanges {
			w, err := automationfile.NewWatcher(a.Config.Engine.StarterPack.Path, a.Logger, func() {
				if err := automationfile.SeedIfEmpty(a.Config.Engine.StarterPack.Path, a.Repository, a.Clock.Now(), a.Logger); err != nil {
					a.Logger.Warn(ctx, "starter pack reload failed", zap.Error(err))
				}
			})
			if err != nil {
				a.Logger.Warn(ctx, "starter pack watcher failed to start", zap.Error(err))
			} else {
				a.StarterPackWatcher = w
			}
		}
	}

	a.Logger.Info(ctx, "Engine loaded successfully")

	return nil
}

// persistSchedules writes the Scheduler's current spec states back through
// the Store, optionally guarded by a Redis single-instance lock the same
// way the teacher's Job.lock guards cron overlap in one-server mode.
func (a *App) persistSchedules(specs []scheduler.ScheduleSpec) error {
	if a.Config.Scheduler.DistributedLock {
		if !a.acquireScheduleLock() {
			return nil
		}
	}
	return a.Store.PersistSchedules(specs)
}

var errEngineDatabaseMissing = errors.New(`bootstrap: mysql database "meshomaton" is not configured or not enabled`)

// acquireScheduleLock attempts a short-TTL Redis NX lock guarding a single
// scheduler instance's writes, grounded on the teacher's Job.lock pattern
// (app/pkg/schedule/job.go) but scoped to schedule persistence rather than
// an entire job run.
func (a *App) acquireScheduleLock() bool {
	r, ok := a.Redis["meshomaton"]
	if !ok {
		return true
	}

	key := util.SpliceStr(r.Prefix, "meshomaton:schedule:persistLock")
	ok2, err := r.Do("SET", key, "1", "EX", 5, "NX")
	if err != nil {
		return false
	}
	return ok2 != nil
}

// startScheduler runs the Scheduler's own ticker when no platform
// background executor is present, replacing the teacher's cron-like
// startSchedule goroutine.
func (a *App) startScheduler(ctx context.Context) {
	if err := a.SchedulerBridge.Initialize(ctx, a.Clock.Now); err != nil {
		a.Logger.Error(ctx, "scheduler bridge initialize failed", zap.Error(err))
	}

	if a.StarterPackWatcher != nil {
		go a.StarterPackWatcher.Start(ctx)
	}

	interval := a.Config.Scheduler.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	silentInterval := a.Config.Engine.SilentNodeInterval * time.Second
	if silentInterval <= 0 {
		silentInterval = engine.DefaultSilentNodeInterval
	}
	silentTicker := time.NewTicker(silentInterval)
	defer silentTicker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Scheduler.Tick(a.Clock.Now())
			if a.Config.Scheduler.PersistOnEveryTick {
				if err := a.Scheduler.Persist(); err != nil {
					a.Logger.Error(ctx, "schedule persist failed", zap.Error(err))
				}
			}
			if err := a.SchedulerBridge.SyncToPlatform(ctx); err != nil {
				a.Logger.Error(ctx, "schedule platform sync failed", zap.Error(err))
			}
		case <-silentTicker.C:
			a.Engine.RunSilentNodeSweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}
