// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"time"

	"github.com/seakee/meshomaton/internal/automation"
)

// evaluateCondition checks one Condition against the current event/snapshot
// state. It reads node snapshots under the Engine lock; callers must not
// already hold e.mu.
func (e *Engine) evaluateCondition(c automation.Condition, event automation.Event, now time.Time) (bool, string) {
	switch cfg := c.Config.(type) {
	case automation.TimeRangeConfig:
		return evaluateTimeRange(cfg, now)
	case automation.DayOfWeekConfig:
		return evaluateDayOfWeek(cfg, now)
	case automation.BatteryThresholdConfig:
		return e.evaluateBatteryThreshold(c.Kind, cfg, event)
	case automation.NodePresenceConfig:
		return e.evaluateNodePresence(c.Kind, cfg)
	case automation.GeofenceMembershipConfig:
		return e.evaluateGeofenceMembership(c.Kind, cfg)
	default:
		return false, "unrecognized condition config"
	}
}

func evaluateTimeRange(cfg automation.TimeRangeConfig, now time.Time) (bool, string) {
	start, err1 := time.Parse("15:04", cfg.TimeStart)
	end, err2 := time.Parse("15:04", cfg.TimeEnd)
	if err1 != nil || err2 != nil {
		return false, "malformed time range"
	}

	cur := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return cur >= startMin && cur <= endMin, fmt.Sprintf("%02d:%02d not in %s-%s", now.Hour(), now.Minute(), cfg.TimeStart, cfg.TimeEnd)
	}
	// Range crosses midnight, e.g. 22:00-06:00.
	return cur >= startMin || cur <= endMin, fmt.Sprintf("%02d:%02d not in %s-%s", now.Hour(), now.Minute(), cfg.TimeStart, cfg.TimeEnd)
}

func evaluateDayOfWeek(cfg automation.DayOfWeekConfig, now time.Time) (bool, string) {
	today := int(now.Weekday())
	for _, d := range cfg.Days {
		if d == today {
			return true, ""
		}
	}
	return false, fmt.Sprintf("weekday %d not in configured set", today)
}

func (e *Engine) evaluateBatteryThreshold(kind automation.ConditionKind, cfg automation.BatteryThresholdConfig, event automation.Event) (bool, string) {
	level := event.BatteryLevel
	if level == nil {
		e.mu.Lock()
		if v, ok := e.nodeBattery[event.NodeNum]; ok {
			level = &v
		}
		e.mu.Unlock()
	}
	if level == nil {
		return false, "no battery reading available"
	}

	switch kind {
	case automation.ConditionBatteryAbove:
		return *level > cfg.Threshold, fmt.Sprintf("battery %d not above %d", *level, cfg.Threshold)
	case automation.ConditionBatteryBelow:
		return *level < cfg.Threshold, fmt.Sprintf("battery %d not below %d", *level, cfg.Threshold)
	default:
		return false, "unrecognized battery condition kind"
	}
}

func (e *Engine) evaluateNodePresence(kind automation.ConditionKind, cfg automation.NodePresenceConfig) (bool, string) {
	e.mu.Lock()
	online := e.nodePresence[cfg.NodeNum]
	e.mu.Unlock()

	switch kind {
	case automation.ConditionNodeOnline:
		return online, "node not online"
	case automation.ConditionNodeOffline:
		return !online, "node not offline"
	default:
		return false, "unrecognized presence condition kind"
	}
}

func (e *Engine) evaluateGeofenceMembership(kind automation.ConditionKind, cfg automation.GeofenceMembershipConfig) (bool, string) {
	e.mu.Lock()
	lat, hasLat := e.nodeLatitude[cfg.NodeNum]
	lon, hasLon := e.nodeLongitude[cfg.NodeNum]
	e.mu.Unlock()

	if !hasLat || !hasLon {
		return false, "no position reading available"
	}

	inside := withinRadius(lat, lon, cfg.CenterLat, cfg.CenterLon, cfg.RadiusMeters)
	switch kind {
	case automation.ConditionWithinGeofence:
		return inside, "node outside configured zone"
	case automation.ConditionOutsideGeofence:
		return !inside, "node inside configured zone"
	default:
		return false, "unrecognized geofence condition kind"
	}
}
