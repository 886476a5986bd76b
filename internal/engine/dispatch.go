// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/metrics"
	"github.com/seakee/meshomaton/internal/telemetry"
)

var tracer = telemetry.Tracer("meshomaton/engine")

// ProcessEvent runs should_trigger against every known automation and
// executes the ones that pass. Every candidate is recorded on the
// DebugRecorder, triggered or not, per spec.md §4.5.
func (e *Engine) ProcessEvent(ctx context.Context, event automation.Event) []automation.EvaluationRecord {
	ctx, span := tracer.Start(ctx, "process_event",
		oteltrace.WithAttributes(attribute.String("event.kind", string(event.Kind))))
	defer span.End()

	now := e.now()
	automations := e.repo.Automations()

	records := make([]automation.EvaluationRecord, 0, len(automations))
	for i := range automations {
		a := automations[i]
		if a.Trigger.Kind != event.Kind {
			continue
		}

		triggered, reason, details, condLog := e.shouldTrigger(&a, event, now)
		rec := automation.EvaluationRecord{
			AutomationID: a.ID, Name: a.Name, Enabled: a.Enabled,
			TriggerKind: a.Trigger.Kind, EventKind: event.Kind, Timestamp: now,
			Triggered: triggered, SkipReason: reason, SkipDetails: details, ConditionLog: condLog,
		}
		records = append(records, rec)
		if e.recorder != nil {
			e.recorder.Record(rec)
		}

		outcome := string(reason)
		if triggered {
			outcome = "triggered"
		}
		metrics.EvaluationsTotal.WithLabelValues(string(a.Trigger.Kind), outcome).Inc()

		if triggered {
			e.executeAutomation(ctx, &a, event, now)
		}
	}
	return records
}

// shouldTrigger implements spec.md §4.5's per-automation gate: disabled
// check, trigger-kind-specific filter, throttle, then the condition chain
// evaluated in declaration order as a logical AND.
func (e *Engine) shouldTrigger(a *automation.Automation, event automation.Event, now time.Time) (bool, automation.SkipReason, string, []automation.ConditionOutcome) {
	if !a.Enabled {
		return false, automation.SkipDisabled, "", nil
	}

	ok, reason, details := e.matchesTriggerConfig(a, event)
	if !ok {
		return false, reason, details, nil
	}

	key := throttleKey{automationID: a.ID, triggerKind: a.Trigger.Kind}
	e.mu.Lock()
	last, hasLast := e.lastTriggerTime[key]
	e.mu.Unlock()
	if hasLast && now.Sub(last) < e.throttleInterval {
		return false, automation.SkipThrottled, fmt.Sprintf("fired %s ago", now.Sub(last)), nil
	}

	condLog := make([]automation.ConditionOutcome, 0, len(a.Conditions))
	for _, c := range a.Conditions {
		passed, cdetails := e.evaluateCondition(c, event, event.EvaluationTime())
		condLog = append(condLog, automation.ConditionOutcome{Kind: c.Kind, Passed: passed, Details: cdetails})
		if !passed {
			return false, automation.SkipConditionFailed, cdetails, condLog
		}
	}

	return true, automation.SkipNone, "", condLog
}

// matchesTriggerConfig applies the trigger-kind-specific filter described in
// spec.md §4.5's trigger table (node filter, battery hysteresis, keyword
// match, geofence membership transition, signal threshold, channel filter).
func (e *Engine) matchesTriggerConfig(a *automation.Automation, event automation.Event) (bool, automation.SkipReason, string) {
	switch cfg := a.Trigger.Config.(type) {
	case automation.NodeFilterConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter excludes " + strconv.FormatUint(uint64(event.NodeNum), 10)
		}
		return true, automation.SkipNone, ""

	case automation.EmptyConfig:
		return true, automation.SkipNone, ""

	case automation.BatteryLowConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		if event.BatteryLevel == nil {
			return false, automation.SkipBatteryThresholdNotMet, "no battery reading"
		}
		return e.checkBatteryLowHysteresis(a.ID, event.NodeNum, cfg.BatteryThreshold, *event.BatteryLevel)

	case automation.MessageContainsConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		if cfg.Keyword == "" || !containsFold(event.MessageText, cfg.Keyword) {
			return false, automation.SkipKeywordNotMatched, "keyword " + cfg.Keyword + " not found"
		}
		return true, automation.SkipNone, ""

	case automation.GeofenceConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		if event.Latitude == nil || event.Longitude == nil {
			return false, automation.SkipConditionFailed, "no position reading"
		}
		return e.checkGeofenceTransition(a.ID, a.Trigger.Kind, event.NodeNum, cfg, *event.Latitude, *event.Longitude)

	case automation.NodeSilentConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		return true, automation.SkipNone, ""

	case automation.ScheduledConfig:
		if cfg.ScheduleID != "" && cfg.ScheduleID != event.ScheduleID {
			return false, automation.SkipTriggerTypeMismatch, "schedule id mismatch"
		}
		return true, automation.SkipNone, ""

	case automation.SignalWeakConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		if event.SNR == nil || *event.SNR > cfg.SignalThreshold {
			return false, automation.SkipSignalThresholdNotMet, "signal above threshold"
		}
		return true, automation.SkipNone, ""

	case automation.ChannelActivityConfig:
		if cfg.ChannelIndex != nil && (event.ChannelIndex == nil || *cfg.ChannelIndex != *event.ChannelIndex) {
			return false, automation.SkipChannelFilterMismatch, "channel filter mismatch"
		}
		return true, automation.SkipNone, ""

	case automation.DetectionSensorConfig:
		if cfg.NodeNum != nil && *cfg.NodeNum != event.NodeNum {
			return false, automation.SkipNodeFilterMismatch, "node filter mismatch"
		}
		if cfg.SensorNameContains != "" && !containsFold(event.SensorName, cfg.SensorNameContains) {
			return false, automation.SkipTriggerTypeMismatch, "sensor name mismatch"
		}
		if cfg.DetectedState != nil && (event.SensorDetected == nil || *event.SensorDetected != *cfg.DetectedState) {
			return false, automation.SkipTriggerTypeMismatch, "sensor state mismatch"
		}
		return true, automation.SkipNone, ""

	default:
		return false, automation.SkipTriggerTypeMismatch, "unrecognized trigger config"
	}
}

// checkBatteryLowHysteresis re-arms per automation only once the battery
// climbs batteryHysteresis points above threshold, avoiding repeated fires
// while it oscillates near the boundary.
func (e *Engine) checkBatteryLowHysteresis(automationID string, nodeNum uint32, threshold, level int) (bool, automation.SkipReason, string) {
	key := batteryKey{nodeNum: nodeNum, automationID: automationID}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.batteryLowFired[key]; !seen {
		e.batteryLowFired[key] = level <= threshold
		return false, automation.SkipBatteryThresholdNotMet, "first reading for node, no crossing observed yet"
	}

	if level > threshold+e.batteryHysteresis {
		e.batteryLowFired[key] = false
	}
	if level > threshold {
		return false, automation.SkipBatteryThresholdNotMet, fmt.Sprintf("battery %d above threshold %d", level, threshold)
	}
	if e.batteryLowFired[key] {
		return false, automation.SkipBatteryThresholdNotMet, "already fired since last hysteresis reset"
	}
	e.batteryLowFired[key] = true
	return true, automation.SkipNone, ""
}

// checkGeofenceTransition fires only on the enter/exit edge, tracked per
// automation+node since each automation may define its own zone.
func (e *Engine) checkGeofenceTransition(automationID string, kind automation.TriggerKind, nodeNum uint32, cfg automation.GeofenceConfig, lat, lon float64) (bool, automation.SkipReason, string) {
	mapKey := automationID + "|" + strconv.FormatUint(uint64(nodeNum), 10)
	inside := withinRadius(lat, lon, cfg.CenterLat, cfg.CenterLon, cfg.RadiusMeters)

	e.mu.Lock()
	wasInside, known := e.geofenceInside[mapKey]
	e.geofenceInside[mapKey] = inside
	e.mu.Unlock()

	if !known {
		return false, automation.SkipConditionFailed, "no prior membership recorded"
	}

	switch kind {
	case automation.TriggerGeofenceEnter:
		if !wasInside && inside {
			return true, automation.SkipNone, ""
		}
		return false, automation.SkipConditionFailed, "no enter transition"
	case automation.TriggerGeofenceExit:
		if wasInside && !inside {
			return true, automation.SkipNone, ""
		}
		return false, automation.SkipConditionFailed, "no exit transition"
	default:
		return false, automation.SkipTriggerTypeMismatch, "unexpected geofence trigger kind"
	}
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
