// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package scheduler

import (
	"fmt"
	"time"
)

// occurrence is one candidate firing instant for a ScheduleSpec, carrying
// whatever extra data its slot key and catch-up bookkeeping need.
type occurrence struct {
	at            time.Time
	intervalCount int // meaningful only for KindInterval
}

// nextOccurrence returns the first occurrence of spec strictly after ref,
// per spec.md §4.3's per-kind algorithms. ok is false when the spec has no
// future occurrence (OneShot already at RunAt with nothing beyond it, or a
// candidate that would fall after EndAt).
func nextOccurrence(spec *ScheduleSpec, ref time.Time) (occurrence, bool) {
	switch spec.Kind {
	case KindOneShot:
		if spec.RunAt == nil {
			return occurrence{}, false
		}
		if !spec.RunAt.After(ref) {
			return occurrence{}, false
		}
		return boundedOccurrence(spec, occurrence{at: *spec.RunAt})

	case KindInterval:
		if spec.Every <= 0 {
			return occurrence{}, false
		}
		anchor := intervalAnchor(spec, ref)
		if !ref.After(anchor) {
			return boundedOccurrence(spec, occurrence{at: anchor, intervalCount: 0})
		}
		elapsed := ref.Sub(anchor)
		k := int(elapsed / spec.Every)
		candidate := anchor.Add(spec.Every * time.Duration(k))
		for !candidate.After(ref) {
			k++
			candidate = anchor.Add(spec.Every * time.Duration(k))
		}
		return boundedOccurrence(spec, occurrence{at: candidate, intervalCount: k})

	case KindDaily:
		loc := spec.location()
		local := ref.In(loc)
		slot := time.Date(local.Year(), local.Month(), local.Day(), spec.Hour, spec.Minute, 0, 0, loc)
		if !slot.After(ref) {
			slot = slot.AddDate(0, 0, 1)
		}
		return boundedOccurrence(spec, occurrence{at: slot})

	case KindWeekly:
		if len(spec.DaysOfWeek) == 0 {
			return occurrence{}, false
		}
		loc := spec.location()
		local := ref.In(loc)
		for dayOffset := 1; dayOffset <= 7; dayOffset++ {
			candidateDay := local.AddDate(0, 0, dayOffset)
			if !weekdayIn(int(candidateDay.Weekday()), spec.DaysOfWeek) {
				continue
			}
			slot := time.Date(candidateDay.Year(), candidateDay.Month(), candidateDay.Day(), spec.Hour, spec.Minute, 0, 0, loc)
			return boundedOccurrence(spec, occurrence{at: slot})
		}
		return occurrence{}, false

	default:
		return occurrence{}, false
	}
}

// atOrAfter returns the first occurrence with at >= ref, used by the "None"
// catch-up stale path and the LastOnly fallback, which both need an
// inclusive lower bound rather than nextOccurrence's strict one.
func atOrAfter(spec *ScheduleSpec, ref time.Time) (occurrence, bool) {
	return nextOccurrence(spec, ref.Add(-time.Nanosecond))
}

// boundedOccurrence rejects a candidate that falls after EndAt, signalling
// "no next occurrence" the same way an exhausted recurrence would.
func boundedOccurrence(spec *ScheduleSpec, occ occurrence) (occurrence, bool) {
	if spec.EndAt != nil && occ.at.After(*spec.EndAt) {
		return occurrence{}, false
	}
	return occ, true
}

// intervalAnchor picks the reference instant an Interval schedule's steps
// are counted from: StartAt, else LastEvaluatedAt, else the current
// reference time (first registration).
func intervalAnchor(spec *ScheduleSpec, ref time.Time) time.Time {
	if spec.StartAt != nil {
		return *spec.StartAt
	}
	if !spec.LastEvaluatedAt.IsZero() {
		return spec.LastEvaluatedAt
	}
	return ref
}

func weekdayIn(weekday int, days []int) bool {
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

// slotKey computes the stable string identifying one scheduled execution,
// per spec.md §4.2. The offset suffix on Daily/Weekly keys makes DST-shifted
// times distinguishable from their neighbors.
func slotKey(spec *ScheduleSpec, occ occurrence) string {
	switch spec.Kind {
	case KindOneShot:
		return fmt.Sprintf("oneShot:%s", occ.at.UTC().Format(time.RFC3339))
	case KindInterval:
		return fmt.Sprintf("interval:%d", occ.intervalCount)
	case KindDaily:
		return fmt.Sprintf("daily:%s", formatLocalSlot(spec, occ.at))
	case KindWeekly:
		return fmt.Sprintf("weekly:%s", formatLocalSlot(spec, occ.at))
	default:
		return ""
	}
}

func formatLocalSlot(spec *ScheduleSpec, at time.Time) string {
	loc := spec.location()
	local := at.In(loc)
	_, offsetSeconds := local.Zone()
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	offH := offsetSeconds / 3600
	offM := (offsetSeconds % 3600) / 60
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d%s%02d:%02d",
		local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), sign, offH, offM)
}
