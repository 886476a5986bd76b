// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/clock"
	"github.com/seakee/meshomaton/internal/debugrecorder"
	"github.com/seakee/meshomaton/internal/repository"
	"github.com/seakee/meshomaton/internal/scheduler"
)

// memStore is a minimal in-memory store.Store fake for engine tests.
type memStore struct {
	automations map[string]automation.Automation
	log         []automation.LogEntry
}

func newMemStore() *memStore {
	return &memStore{automations: make(map[string]automation.Automation)}
}

func (m *memStore) LoadAutomations() ([]automation.Automation, error) {
	out := make([]automation.Automation, 0, len(m.automations))
	for _, a := range m.automations {
		out = append(out, a)
	}
	return out, nil
}
func (m *memStore) SaveAutomation(a *automation.Automation) error {
	m.automations[a.ID] = *a
	return nil
}
func (m *memStore) DeleteAutomation(id string) error {
	delete(m.automations, id)
	return nil
}
func (m *memStore) LoadSchedules() ([]scheduler.ScheduleSpec, error) { return nil, nil }
func (m *memStore) PersistSchedules(specs []scheduler.ScheduleSpec) error { return nil }
func (m *memStore) AppendLog(entry automation.LogEntry) error {
	m.log = append(m.log, entry)
	return nil
}
func (m *memStore) LoadLog(max int) ([]automation.LogEntry, error) { return m.log, nil }
func (m *memStore) ClearLog() error                                { m.log = nil; return nil }

type fakeMessenger struct {
	sentToNode    []string
	sentToChannel []string
}

func (f *fakeMessenger) SendToNode(ctx context.Context, targetNode uint32, channelIndex *uint32, text string) error {
	f.sentToNode = append(f.sentToNode, text)
	return nil
}
func (f *fakeMessenger) SendToChannel(ctx context.Context, channelIndex uint32, text string, wantAck bool) error {
	f.sentToChannel = append(f.sentToChannel, text)
	return nil
}

func mustAutomation(t *testing.T, name string, trig automation.Trigger, actions []automation.Action, conds []automation.Condition, now time.Time) *automation.Automation {
	t.Helper()
	a, err := automation.New(name, trig, actions, conds, now)
	if err != nil {
		t.Fatalf("automation.New: %v", err)
	}
	return a
}

func TestProcessEventBatteryLowFiresAndThrottles(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	st := newMemStore()
	repo := repository.New(st)

	nodeNum := uint32(7)
	a := mustAutomation(t, "low battery", automation.Trigger{
		Kind:   automation.TriggerBatteryLow,
		Config: automation.BatteryLowConfig{NodeNum: &nodeNum, BatteryThreshold: 20},
	}, []automation.Action{{Kind: automation.ActionSendMessage, Config: automation.SendMessageConfig{TargetNode: 1, MessageText: "low batt {{battery}}"}}}, nil, start)
	if err := repo.Save(a); err != nil {
		t.Fatalf("save: %v", err)
	}

	msgr := &fakeMessenger{}
	rec := debugrecorder.New(10)
	eng := New(repo, fc, Effectors{Messenger: msgr}, WithRecorder(rec))

	level := 15

	// First-ever reading for this node is already below threshold. This
	// must arm (not fire): there was no prior reading to descend from.
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &level, Timestamp: start,
	})
	if len(msgr.sentToNode) != 0 {
		t.Fatalf("expected no fire on first-sight reading already below threshold, got %d sends", len(msgr.sentToNode))
	}

	// Recover above threshold+hysteresis, then genuinely cross down: this
	// is the first real descent and must fire.
	recovered := 95
	fc.Advance(1 * time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &recovered, Timestamp: fc.Now(),
	})
	fc.Advance(1 * time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &level, Timestamp: fc.Now(),
	})
	if len(msgr.sentToNode) != 1 {
		t.Fatalf("expected 1 message sent after genuine descent, got %d", len(msgr.sentToNode))
	}

	// Recover and cross down again immediately after: the hysteresis is
	// re-armed, so only the throttle suppresses this second crossing.
	fc.Advance(1 * time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &recovered, Timestamp: fc.Now(),
	})
	fc.Advance(1 * time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &level, Timestamp: fc.Now(),
	})
	if len(msgr.sentToNode) != 1 {
		t.Fatalf("expected throttle to suppress second fire, got %d sends", len(msgr.sentToNode))
	}

	// After throttle interval passes it can fire again, but only if battery
	// climbed back above threshold+hysteresis first (still armed otherwise).
	fc.Advance(DefaultThrottleInterval + time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &level, Timestamp: fc.Now(),
	})
	if len(msgr.sentToNode) != 1 {
		t.Fatalf("expected hysteresis to keep it disarmed, got %d sends", len(msgr.sentToNode))
	}

	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &recovered, Timestamp: fc.Now(),
	})
	fc.Advance(DefaultThrottleInterval + time.Second)
	eng.ProcessEvent(context.Background(), automation.Event{
		Kind: automation.TriggerBatteryLow, NodeNum: 7, BatteryLevel: &level, Timestamp: fc.Now(),
	})
	if len(msgr.sentToNode) != 2 {
		t.Fatalf("expected re-arm after hysteresis recovery, got %d sends", len(msgr.sentToNode))
	}
}

func TestCheckBatteryLowHysteresisFirstSightDoesNotFire(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	st := newMemStore()
	repo := repository.New(st)
	eng := New(repo, fc, Effectors{})

	fired, reason, _ := eng.checkBatteryLowHysteresis("auto-1", 7, 20, 15)
	if fired {
		t.Fatalf("expected first-sight reading below threshold not to fire")
	}
	if reason != automation.SkipBatteryThresholdNotMet {
		t.Fatalf("expected SkipBatteryThresholdNotMet, got %v", reason)
	}

	// Still below threshold on the next reading: now it is a real
	// "already armed, no new descent" case, still no fire.
	fired, _, _ = eng.checkBatteryLowHysteresis("auto-1", 7, 20, 14)
	if fired {
		t.Fatalf("expected no fire while already armed below threshold")
	}

	// Recover above threshold+hysteresis, then descend again: this is a
	// genuine crossing and must fire.
	fired, _, _ = eng.checkBatteryLowHysteresis("auto-1", 7, 20, 95)
	if fired {
		t.Fatalf("expected no fire on recovery reading")
	}
	fired, _, _ = eng.checkBatteryLowHysteresis("auto-1", 7, 20, 15)
	if !fired {
		t.Fatalf("expected fire on genuine descent after recovery")
	}
}

func TestProcessEventMessageContainsKeyword(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	st := newMemStore()
	repo := repository.New(st)

	a := mustAutomation(t, "help keyword", automation.Trigger{
		Kind:   automation.TriggerMessageContains,
		Config: automation.MessageContainsConfig{Keyword: "help"},
	}, []automation.Action{{Kind: automation.ActionSendToChannel, Config: automation.SendToChannelConfig{ChannelIndex: 1, MessageText: "ack"}}}, nil, start)
	if err := repo.Save(a); err != nil {
		t.Fatalf("save: %v", err)
	}

	msgr := &fakeMessenger{}
	eng := New(repo, fc, Effectors{Messenger: msgr})

	eng.ProcessMessage(context.Background(), 42, "Node42", nil, "please HELP me")
	if len(msgr.sentToChannel) != 1 {
		t.Fatalf("expected keyword match to fire action, got %d", len(msgr.sentToChannel))
	}

	eng.ProcessMessage(context.Background(), 42, "Node42", nil, "nothing interesting")
	if len(msgr.sentToChannel) != 1 {
		t.Fatalf("expected no additional fire without keyword, got %d", len(msgr.sentToChannel))
	}
}

func TestGeofenceEnterFiresOnceOnTransition(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	st := newMemStore()
	repo := repository.New(st)

	a := mustAutomation(t, "arrived home", automation.Trigger{
		Kind: automation.TriggerGeofenceEnter,
		Config: automation.GeofenceConfig{
			CenterLat: 40.0, CenterLon: -74.0, RadiusMeters: 100,
		},
	}, []automation.Action{{Kind: automation.ActionLogEvent, Config: automation.LogEventConfig{Message: "home"}}}, nil, start)
	if err := repo.Save(a); err != nil {
		t.Fatalf("save: %v", err)
	}

	eng := New(repo, fc, Effectors{})

	farLat, farLon := 40.01, -74.01
	nearLat, nearLon := 40.0001, -74.0001
	eng.ProcessEvent(context.Background(), automation.Event{Kind: automation.TriggerGeofenceEnter, NodeNum: 1, Latitude: &farLat, Longitude: &farLon, Timestamp: start})
	recs := eng.ProcessEvent(context.Background(), automation.Event{Kind: automation.TriggerGeofenceEnter, NodeNum: 1, Latitude: &nearLat, Longitude: &nearLon, Timestamp: start})
	if len(recs) != 1 || !recs[0].Triggered {
		t.Fatalf("expected transition into zone to trigger, got %+v", recs)
	}
}

func TestActionPanicBecomesFailedResult(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFake(start)
	st := newMemStore()
	repo := repository.New(st)

	a := mustAutomation(t, "manual panic", automation.Trigger{
		Kind: automation.TriggerManual, Config: automation.EmptyConfig{},
	}, []automation.Action{{Kind: automation.ActionSendMessage, Config: automation.SendMessageConfig{TargetNode: 1, MessageText: "x"}}}, nil, start)
	if err := repo.Save(a); err != nil {
		t.Fatalf("save: %v", err)
	}

	eng := New(repo, fc, Effectors{Messenger: panicMessenger{}})
	eng.ProcessManual(context.Background())

	log, err := repo.Log(10)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(log) != 1 || log[0].Success {
		t.Fatalf("expected one failed log entry, got %+v", log)
	}
}

type panicMessenger struct{}

func (panicMessenger) SendToNode(ctx context.Context, targetNode uint32, channelIndex *uint32, text string) error {
	panic("boom")
}
func (panicMessenger) SendToChannel(ctx context.Context, channelIndex uint32, text string, wantAck bool) error {
	return nil
}
