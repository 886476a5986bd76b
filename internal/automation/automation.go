// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package automation

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ValidationError reports a malformed trigger/action/condition config caught
// at save time. It never reaches the Engine; Repository.Save rejects the
// mutation and returns this to the editor instead.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "automation: " + e.Field + ": " + e.Reason
}

// Automation is a user-defined rule of the shape "when Trigger and
// (optionally) Conditions then Actions". Mutated only through a Repository,
// which reissues "updated" notifications after every successful write.
type Automation struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   *string     `json:"description"`
	Enabled       bool        `json:"enabled"`
	Trigger       Trigger     `json:"trigger"`
	Actions       []Action    `json:"actions"`
	Conditions    []Condition `json:"conditions"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastTriggered *time.Time  `json:"lastTriggered"`
	TriggerCount  uint64      `json:"triggerCount"`
}

// New builds an Automation with a fresh id, created_at stamped from clock,
// and trigger_count zeroed. It does not persist anything; callers pass the
// result to a Repository.
func New(name string, trigger Trigger, actions []Action, conditions []Condition, now time.Time) (*Automation, error) {
	a := &Automation{
		ID:         uuid.NewString(),
		Name:       name,
		Enabled:    true,
		Trigger:    trigger,
		Actions:    actions,
		Conditions: conditions,
		CreatedAt:  now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate enforces the invariants a Store write must not violate: an id,
// at least one action, and a recognized trigger config.
func (a *Automation) Validate() error {
	if a.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if a.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if a.Trigger.Config == nil {
		return &ValidationError{Field: "trigger", Reason: "config missing or unrecognized kind"}
	}
	if len(a.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "must have at least one action"}
	}
	for i, act := range a.Actions {
		if act.Config == nil {
			return &ValidationError{Field: "actions", Reason: errors.Errorf("index %d: config missing or unrecognized kind", i).Error()}
		}
	}
	for i, c := range a.Conditions {
		if c.Config == nil {
			return &ValidationError{Field: "conditions", Reason: errors.Errorf("index %d: config missing or unrecognized kind", i).Error()}
		}
	}
	return nil
}

// ActionResult records the outcome of executing one Action inside
// execute_automation.
type ActionResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// LogEntry is one row appended to the Repository's bounded log ring after
// execute_automation runs.
type LogEntry struct {
	AutomationID   string         `json:"automationId"`
	Name           string         `json:"name"`
	Timestamp      time.Time      `json:"timestamp"`
	Success        bool           `json:"success"`
	TriggerDetails string         `json:"triggerDetails"`
	ActionNames    []string       `json:"actionNames"`
	ActionResults  []ActionResult `json:"actionResults"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
}

// EvaluationRecord is a debug-only trace of one should_trigger call, pushed
// onto the DebugRecorder regardless of outcome.
type EvaluationRecord struct {
	AutomationID  string     `json:"automationId"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	TriggerKind   TriggerKind `json:"triggerKind"`
	EventKind     TriggerKind `json:"eventKind"`
	Timestamp     time.Time  `json:"timestamp"`
	Triggered     bool       `json:"triggered"`
	SkipReason    SkipReason `json:"skipReason,omitempty"`
	SkipDetails   string     `json:"skipDetails,omitempty"`
	ConditionLog  []ConditionOutcome `json:"conditionOutcomes,omitempty"`
}

// ConditionOutcome records whether one Condition passed during an
// evaluation, in declaration order.
type ConditionOutcome struct {
	Kind    ConditionKind `json:"kind"`
	Passed  bool          `json:"passed"`
	Details string        `json:"details,omitempty"`
}
