// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package debugrecorder

import (
	"testing"

	"github.com/seakee/meshomaton/internal/automation"
)

func TestRecorderBoundedOverflow(t *testing.T) {
	r := New(3)
	for i := 0; i < 5; i++ {
		r.Record(automation.EvaluationRecord{AutomationID: string(rune('a' + i))})
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected ring bounded to 3, got %d", len(snap))
	}
	want := []string{"d", "e"}
	if snap[len(snap)-2].AutomationID != want[0] || snap[len(snap)-1].AutomationID != want[1] {
		t.Fatalf("expected oldest entries dropped, got %+v", snap)
	}
}

func TestRecorderSummarize(t *testing.T) {
	r := New(10)
	r.Record(automation.EvaluationRecord{Triggered: true})
	r.Record(automation.EvaluationRecord{Triggered: false, SkipReason: automation.SkipThrottled})
	r.Record(automation.EvaluationRecord{Triggered: false, SkipReason: automation.SkipThrottled})

	sum := r.Summarize()
	if sum.Total != 3 || sum.Triggered != 1 || sum.Skipped != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.BySkipReason[automation.SkipThrottled] != 2 {
		t.Fatalf("expected 2 throttled skips, got %+v", sum.BySkipReason)
	}
}

func TestRecorderClear(t *testing.T) {
	r := New(5)
	r.Record(automation.EvaluationRecord{AutomationID: "x"})
	r.Clear()
	if snap := r.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected empty snapshot after Clear, got %d", len(snap))
	}
}
