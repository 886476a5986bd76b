// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package store defines the Store trait Repository and Scheduler consume to
// load/save automations, schedules, and logs (spec.md §6). Schema,
// migration, and outbox/sync are the implementation's concern; the engine
// only depends on this interface.
package store

import (
	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/scheduler"
)

// Store is idempotent by id; implementations may add sync/outbox semantics
// transparently without changing this contract.
type Store interface {
	LoadAutomations() ([]automation.Automation, error)
	SaveAutomation(a *automation.Automation) error
	DeleteAutomation(id string) error

	LoadSchedules() ([]scheduler.ScheduleSpec, error)
	PersistSchedules(specs []scheduler.ScheduleSpec) error

	AppendLog(entry automation.LogEntry) error
	LoadLog(max int) ([]automation.LogEntry, error)
	ClearLog() error
}
