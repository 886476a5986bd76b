// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/scheduler"
)

// OnScheduledFire adapts a scheduler.ScheduledFire into a Scheduled Event
// and dispatches it. Registered as a scheduler.FireListener at wiring time.
func (e *Engine) OnScheduledFire(fire scheduler.ScheduledFire) {
	scheduledFor := fire.ScheduledFor
	e.ProcessEvent(context.Background(), automation.Event{
		Kind:         automation.TriggerScheduled,
		Timestamp:    e.now(),
		ScheduleID:   fire.ScheduleID,
		SlotKey:      fire.SlotKey,
		ScheduledFor: &scheduledFor,
		IsCatchUp:    fire.IsCatchUp,
	})
}
