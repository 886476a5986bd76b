// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"time"

	"github.com/seakee/meshomaton/internal/automation"
)

// NodeUpdate carries the raw telemetry the mesh-radio transport layer
// reports for one node. Any field left nil/zero is treated as "unchanged"
// for that node, per spec.md §4.5's derived-event table.
type NodeUpdate struct {
	NodeNum   uint32
	NodeName  string
	Battery   *int
	Latitude  *float64
	Longitude *float64
	SNR       *float64
	Online    *bool
	Heard     time.Time
}

// ProcessNodeUpdate folds raw telemetry into the per-node snapshot and
// derives zero or more Events from the changes observed, dispatching each
// through ProcessEvent in the fixed order spec.md §4.5 mandates:
// battery-crossing, battery-full, position/geofence, signal, presence.
func (e *Engine) ProcessNodeUpdate(ctx context.Context, update NodeUpdate) {
	now := e.now()
	if update.Heard.IsZero() {
		update.Heard = now
	}

	e.mu.Lock()
	if update.NodeName != "" {
		e.nodeName[update.NodeNum] = update.NodeName
	}
	name := e.nodeName[update.NodeNum]

	prevBattery, hadBattery := e.nodeBattery[update.NodeNum]
	prevPresence := e.nodePresence[update.NodeNum]

	var battEvent, fullEvent, posEvent, enterEvent, exitEvent, signalEvent, presenceEvent *automation.Event

	if update.Battery != nil {
		e.nodeBattery[update.NodeNum] = *update.Battery

		battEvent = &automation.Event{
			Kind: automation.TriggerBatteryLow, NodeNum: update.NodeNum, NodeName: name,
			BatteryLevel: update.Battery, Timestamp: update.Heard,
		}

		wasFull := hadBattery && prevBattery >= 100
		if *update.Battery >= 100 && !wasFull {
			fullEvent = &automation.Event{
				Kind: automation.TriggerBatteryFull, NodeNum: update.NodeNum, NodeName: name,
				BatteryLevel: update.Battery, Timestamp: update.Heard,
			}
		}
	}

	if update.Latitude != nil && update.Longitude != nil {
		e.nodeLatitude[update.NodeNum] = *update.Latitude
		e.nodeLongitude[update.NodeNum] = *update.Longitude

		posEvent = &automation.Event{
			Kind: automation.TriggerPositionChanged, NodeNum: update.NodeNum, NodeName: name,
			Latitude: update.Latitude, Longitude: update.Longitude, Timestamp: update.Heard,
		}

		// Geofence automations judge the enter/exit edge themselves in
		// checkGeofenceTransition, so each position also goes out as both kinds.
		enter := *posEvent
		enter.Kind = automation.TriggerGeofenceEnter
		enterEvent = &enter
		exit := *posEvent
		exit.Kind = automation.TriggerGeofenceExit
		exitEvent = &exit
	}

	if update.SNR != nil {
		signalEvent = &automation.Event{
			Kind: automation.TriggerSignalWeak, NodeNum: update.NodeNum, NodeName: name,
			SNR: update.SNR, Timestamp: update.Heard,
		}
	}

	e.nodeLastHeard[update.NodeNum] = update.Heard

	if update.Online != nil && *update.Online != prevPresence {
		e.nodePresence[update.NodeNum] = *update.Online
		kind := automation.TriggerNodeOffline
		if *update.Online {
			kind = automation.TriggerNodeOnline
		}
		presenceEvent = &automation.Event{
			Kind: kind, NodeNum: update.NodeNum, NodeName: name, Timestamp: update.Heard,
		}
	}
	e.mu.Unlock()

	for _, evt := range []*automation.Event{battEvent, fullEvent, posEvent, enterEvent, exitEvent, signalEvent, presenceEvent} {
		if evt != nil {
			e.ProcessEvent(ctx, *evt)
		}
	}
}

// ProcessMessage dispatches an incoming mesh message. It always emits a
// MessageReceived event, and additionally a MessageContains event (so
// keyword-triggered automations can match against the same text) and a
// ChannelActivity event when the message carries a channel index.
func (e *Engine) ProcessMessage(ctx context.Context, nodeNum uint32, nodeName string, channelIndex *uint32, text string) {
	now := e.now()
	base := automation.Event{
		NodeNum: nodeNum, NodeName: nodeName, MessageText: text,
		ChannelIndex: channelIndex, Timestamp: now,
	}

	received := base
	received.Kind = automation.TriggerMessageReceived
	e.ProcessEvent(ctx, received)

	contains := base
	contains.Kind = automation.TriggerMessageContains
	e.ProcessEvent(ctx, contains)

	if channelIndex != nil {
		activity := base
		activity.Kind = automation.TriggerChannelActivity
		e.ProcessEvent(ctx, activity)
	}
}

// ProcessSensorEvent dispatches a DetectionSensor reading.
func (e *Engine) ProcessSensorEvent(ctx context.Context, nodeNum uint32, nodeName, sensorName string, detected bool) {
	e.ProcessEvent(ctx, automation.Event{
		Kind: automation.TriggerDetectionSensor, NodeNum: nodeNum, NodeName: nodeName,
		SensorName: sensorName, SensorDetected: &detected, Timestamp: e.now(),
	})
}

// ProcessManual dispatches a user-initiated manual run.
func (e *Engine) ProcessManual(ctx context.Context) {
	e.ProcessEvent(ctx, automation.Event{Kind: automation.TriggerManual, Timestamp: e.now()})
}
