// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import "time"

// Event carries the fields a trigger needs. Kind identifies which
// TriggerKind this event can match; most fields are optional because only
// a subset applies to any one Kind.
type Event struct {
	Kind TriggerKind

	NodeNum  uint32
	NodeName string

	BatteryLevel *int
	Latitude     *float64
	Longitude    *float64

	MessageText  string
	ChannelIndex *uint32

	SNR *float64

	SensorName     string
	SensorDetected *bool

	Timestamp time.Time

	// Scheduled-event fields; ScheduleID is non-empty only for Kind ==
	// TriggerScheduled.
	ScheduleID   string
	SlotKey      string
	ScheduledFor *time.Time
	IsCatchUp    bool
}

// EvaluationTime returns ScheduledFor when the event carries one, else
// Timestamp. Conditions must evaluate against this, not against whatever
// instant a catch-up happened to dispatch at.
func (e Event) EvaluationTime() time.Time {
	if e.ScheduledFor != nil {
		return *e.ScheduledFor
	}
	return e.Timestamp
}
