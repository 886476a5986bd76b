// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import (
	"encoding/json"
	"testing"
	"time"
)

func threshold(n int) *BatteryLowConfig {
	return &BatteryLowConfig{BatteryThreshold: n}
}

func TestTriggerJSONRoundTrip(t *testing.T) {
	node := uint32(42)
	cases := []Trigger{
		{Kind: TriggerBatteryLow, Config: BatteryLowConfig{NodeNum: &node, BatteryThreshold: 20}},
		{Kind: TriggerBatteryFull, Config: EmptyConfig{}},
		{Kind: TriggerMessageContains, Config: MessageContainsConfig{Keyword: "SOS"}},
		{Kind: TriggerGeofenceEnter, Config: GeofenceConfig{CenterLat: 1.5, CenterLon: -2.5, RadiusMeters: 500}},
		{Kind: TriggerScheduled, Config: ScheduledConfig{ScheduleID: "sched-1"}},
		{Kind: TriggerManual, Config: EmptyConfig{}},
	}

	for _, want := range cases {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %s: %v", want.Kind, err)
		}

		var got Trigger
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", want.Kind, err)
		}

		if got.Kind != want.Kind {
			t.Fatalf("kind round-trip: got %s, want %s", got.Kind, want.Kind)
		}
		gotData, _ := json.Marshal(got)
		if string(gotData) != string(data) {
			t.Fatalf("round-trip mismatch for %s: got %s, want %s", want.Kind, gotData, data)
		}
	}
}

func TestTriggerUnmarshalUnknownKind(t *testing.T) {
	var tr Trigger
	err := json.Unmarshal([]byte(`{"type":"notARealKind","config":{}}`), &tr)
	if err == nil {
		t.Fatal("expected error for unknown trigger kind")
	}
}

func TestActionConditionJSONRoundTrip(t *testing.T) {
	act := Action{Kind: ActionSendMessage, Config: SendMessageConfig{TargetNode: 7, MessageText: "hi"}}
	data, err := json.Marshal(act)
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	var gotAct Action
	if err := json.Unmarshal(data, &gotAct); err != nil {
		t.Fatalf("unmarshal action: %v", err)
	}
	if gotAct.Config.(SendMessageConfig).MessageText != "hi" {
		t.Fatalf("action config not round-tripped: %+v", gotAct.Config)
	}

	cond := Condition{Kind: ConditionTimeRange, Config: TimeRangeConfig{TimeStart: "22:00", TimeEnd: "07:00"}}
	data, err = json.Marshal(cond)
	if err != nil {
		t.Fatalf("marshal condition: %v", err)
	}
	var gotCond Condition
	if err := json.Unmarshal(data, &gotCond); err != nil {
		t.Fatalf("unmarshal condition: %v", err)
	}
	if gotCond.Config.(TimeRangeConfig).TimeEnd != "07:00" {
		t.Fatalf("condition config not round-tripped: %+v", gotCond.Config)
	}
}

func TestAutomationJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := New(
		"low battery alert",
		Trigger{Kind: TriggerBatteryLow, Config: BatteryLowConfig{BatteryThreshold: 20}},
		[]Action{{Kind: ActionPushNotification, Config: PushNotificationConfig{Title: "Battery low", Body: "{{battery}}"}}},
		[]Condition{{Kind: ConditionTimeRange, Config: TimeRangeConfig{TimeStart: "22:00", TimeEnd: "07:00"}}},
		now,
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal automation: %v", err)
	}

	var got Automation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal automation: %v", err)
	}

	if got.ID != a.ID || got.Name != a.Name || got.TriggerCount != a.TriggerCount {
		t.Fatalf("automation round-trip mismatch: got %+v, want %+v", got, a)
	}
	if got.Trigger.Kind != TriggerBatteryLow {
		t.Fatalf("trigger kind lost in round-trip: %s", got.Trigger.Kind)
	}
}

func TestValidateRequiresAtLeastOneAction(t *testing.T) {
	_, err := New(
		"no actions",
		Trigger{Kind: TriggerManual, Config: EmptyConfig{}},
		nil,
		nil,
		time.Now(),
	)
	if err == nil {
		t.Fatal("expected validation error for zero actions")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestEventEvaluationTime(t *testing.T) {
	dispatch := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	scheduled := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	e := Event{Timestamp: dispatch}
	if got := e.EvaluationTime(); !got.Equal(dispatch) {
		t.Fatalf("EvaluationTime without ScheduledFor = %v, want %v", got, dispatch)
	}

	e.ScheduledFor = &scheduled
	if got := e.EvaluationTime(); !got.Equal(scheduled) {
		t.Fatalf("EvaluationTime with ScheduledFor = %v, want %v", got, scheduled)
	}
}
