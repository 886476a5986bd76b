// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package bootstrap

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/seakee/meshomaton/app"
	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/scheduler"
	"github.com/sk-pkg/redis"
)

// fakePersistOnlyStore implements store.Store with a no-op everywhere
// except PersistSchedules, enough to exercise App.persistSchedules without
// a real database.
type fakePersistOnlyStore struct {
	onPersist func()
}

func (fakePersistOnlyStore) LoadAutomations() ([]automation.Automation, error) { return nil, nil }
func (fakePersistOnlyStore) SaveAutomation(*automation.Automation) error       { return nil }
func (fakePersistOnlyStore) DeleteAutomation(string) error                    { return nil }
func (fakePersistOnlyStore) LoadSchedules() ([]scheduler.ScheduleSpec, error)  { return nil, nil }
func (f fakePersistOnlyStore) PersistSchedules([]scheduler.ScheduleSpec) error {
	if f.onPersist != nil {
		f.onPersist()
	}
	return nil
}
func (fakePersistOnlyStore) AppendLog(automation.LogEntry) error        { return nil }
func (fakePersistOnlyStore) LoadLog(int) ([]automation.LogEntry, error) { return nil, nil }
func (fakePersistOnlyStore) ClearLog() error                            { return nil }

// newTestRedis spins up an in-memory redis server and connects a real
// sk-pkg/redis.Manager to it, the same way miniredis stands in for a real
// server in the teacher's pack (ManuGH-xg2g's cache/redis_test.go).
func newTestRedis(t *testing.T) *redis.Manager {
	t.Helper()

	mr := miniredis.RunT(t)

	r, err := redis.New(
		redis.WithPrefix("test"),
		redis.WithAddress(mr.Addr()),
		redis.WithIdleTimeout(time.Minute),
		redis.WithMaxActive(10),
		redis.WithMaxIdle(5),
		redis.WithDB(0),
	)
	if err != nil {
		t.Fatalf("redis.New: %v", err)
	}

	return r
}

func TestAcquireScheduleLock(t *testing.T) {
	a := &App{
		Config: &app.Config{},
		Redis:  map[string]*redis.Manager{"meshomaton": newTestRedis(t)},
	}
	a.Config.Scheduler.DistributedLock = true

	if !a.acquireScheduleLock() {
		t.Fatal("expected first lock acquisition to succeed")
	}
	if a.acquireScheduleLock() {
		t.Fatal("expected second lock acquisition within TTL to fail")
	}
}

func TestAcquireScheduleLockNoRedisConfigured(t *testing.T) {
	a := &App{
		Config: &app.Config{},
		Redis:  map[string]*redis.Manager{},
	}
	a.Config.Scheduler.DistributedLock = true

	// With distributed locking requested but no "meshomaton" redis profile
	// connected, the lock is a no-op that always grants.
	if !a.acquireScheduleLock() {
		t.Fatal("expected lock to be granted when no redis profile is configured")
	}
	if !a.acquireScheduleLock() {
		t.Fatal("expected repeated grants when no redis profile is configured")
	}
}

func TestPersistSchedulesSkipsWhenLockHeldElsewhere(t *testing.T) {
	r := newTestRedis(t)

	holder := &App{Config: &app.Config{}, Redis: map[string]*redis.Manager{"meshomaton": r}}
	holder.Config.Scheduler.DistributedLock = true
	if !holder.acquireScheduleLock() {
		t.Fatal("setup: expected first instance to acquire the lock")
	}

	var wrote bool
	a := &App{
		Config: &app.Config{},
		Redis:  map[string]*redis.Manager{"meshomaton": r},
		Store:  fakePersistOnlyStore{onPersist: func() { wrote = true }},
	}
	a.Config.Scheduler.DistributedLock = true

	if err := a.persistSchedules(nil); err != nil {
		t.Fatalf("persistSchedules: %v", err)
	}
	if wrote {
		t.Fatal("expected persist to be skipped while another instance holds the lock")
	}
}
