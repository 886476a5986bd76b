// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package mysqlstore implements store.Store on top of GORM/MySQL, following
// the teacher's repository-over-model layering (app/repository/collector,
// app/model/collector): thin methods that delegate CRUD to a model.Automation
// / model.Schedule / model.Log row, with errors wrapped via pkg/errors.
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/scheduler"
	"github.com/seakee/meshomaton/internal/store/model"
)

// MaxLogEntries bounds the persisted log table the way spec.md §6's
// max_log_entries caps the in-memory ring; AppendLog trims the table to
// this size after every insert.
const MaxLogEntries = 100

// Store is the GORM-backed store.Store implementation.
type Store struct {
	db  *gorm.DB
	log *logger.Manager
}

// New wraps an already-migrated *gorm.DB (see bootstrap.loadDB).
func New(db *gorm.DB, log *logger.Manager) *Store {
	return &Store{db: db, log: log}
}

// LoadAutomations loads every automation row and parses its JSON columns.
// A row with corrupt JSON is a ParseError: it is skipped and logged; the
// rest load normally.
func (s *Store) LoadAutomations() ([]automation.Automation, error) {
	rows, err := (&model.Automation{}).List(s.db)
	if err != nil {
		return nil, errors.Wrap(err, "load automations")
	}

	out := make([]automation.Automation, 0, len(rows))
	for _, row := range rows {
		a, err := automationFromRow(row)
		if err != nil {
			if s.log != nil {
				s.log.Error(context.Background(), "skipping corrupt automation row", zap.String("id", row.ID), zap.Error(err))
			}
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

// SaveAutomation upserts one automation by id.
func (s *Store) SaveAutomation(a *automation.Automation) error {
	row, err := automationToRow(a)
	if err != nil {
		return errors.Wrap(err, "encode automation")
	}
	return row.Upsert(s.db)
}

// DeleteAutomation removes the automation row by id. Deletion is total.
// Deleting an id that no longer exists is not an error: the caller's
// intent (no such automation) is already satisfied.
func (s *Store) DeleteAutomation(id string) error {
	row := &model.Automation{ID: id}
	err := row.Delete(s.db)
	if err != nil && isNotFoundError(err) {
		return nil
	}
	return err
}

// LoadSchedules loads every schedule row and parses it into a ScheduleSpec.
func (s *Store) LoadSchedules() ([]scheduler.ScheduleSpec, error) {
	rows, err := (&model.Schedule{}).List(s.db)
	if err != nil {
		return nil, errors.Wrap(err, "load schedules")
	}

	out := make([]scheduler.ScheduleSpec, 0, len(rows))
	for _, row := range rows {
		spec, err := scheduleFromRow(row)
		if err != nil {
			if s.log != nil {
				s.log.Error(context.Background(), "skipping corrupt schedule row", zap.String("id", row.ID), zap.Error(err))
			}
			continue
		}
		out = append(out, *spec)
	}
	return out, nil
}

// PersistSchedules atomically replaces the schedule table with specs.
func (s *Store) PersistSchedules(specs []scheduler.ScheduleSpec) error {
	rows := make([]model.Schedule, 0, len(specs))
	for _, spec := range specs {
		rows = append(rows, scheduleToRow(spec))
	}
	err := (&model.Schedule{}).ReplaceAll(s.db, rows)
	if err != nil && isContextCanceledError(err) {
		// The process is shutting down mid-tick; the next tick will persist
		// a fresh snapshot, so this one is not worth surfacing as an error.
		if s.log != nil {
			s.log.Warn(context.Background(), "schedule persist canceled", zap.Error(err))
		}
		return nil
	}
	return err
}

// AppendLog inserts entry and trims the table back to MaxLogEntries.
func (s *Store) AppendLog(entry automation.LogEntry) error {
	row, err := logToRow(entry)
	if err != nil {
		return errors.Wrap(err, "encode log entry")
	}
	if _, err := row.Create(s.db); err != nil {
		return err
	}

	var keepAboveID int
	err = s.db.Raw(
		"SELECT id FROM automation_log ORDER BY id DESC LIMIT 1 OFFSET ?",
		MaxLogEntries-1,
	).Scan(&keepAboveID).Error
	if err != nil || keepAboveID == 0 {
		return nil
	}
	return (&model.Log{}).DeleteOlderThanID(s.db, keepAboveID-1)
}

// LoadLog returns up to max most recent log entries, newest first.
func (s *Store) LoadLog(max int) ([]automation.LogEntry, error) {
	rows, err := (&model.Log{}).ListByArgs(s.db, max, nil)
	if err != nil {
		return nil, errors.Wrap(err, "load log")
	}

	out := make([]automation.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := logFromRow(row)
		if err != nil {
			if s.log != nil {
				s.log.Error(context.Background(), "skipping corrupt log row", zap.Int("id", row.ID), zap.Error(err))
			}
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

// ClearLog empties the log table.
func (s *Store) ClearLog() error {
	return (&model.Log{}).Clear(s.db)
}

func automationToRow(a *automation.Automation) (*model.Automation, error) {
	trig, err := json.Marshal(a.Trigger)
	if err != nil {
		return nil, err
	}
	acts, err := json.Marshal(a.Actions)
	if err != nil {
		return nil, err
	}
	conds, err := json.Marshal(a.Conditions)
	if err != nil {
		return nil, err
	}

	row := &model.Automation{
		ID:           a.ID,
		Name:         a.Name,
		Enabled:      a.Enabled,
		Trigger:      datatypes.JSON(trig),
		Actions:      datatypes.JSON(acts),
		Conditions:   datatypes.JSON(conds),
		CreatedAt:    sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()},
		TriggerCount: a.TriggerCount,
	}
	if a.Description != nil {
		row.Description = sql.NullString{String: *a.Description, Valid: true}
	}
	if a.LastTriggered != nil {
		row.LastTriggered = sql.NullTime{Time: *a.LastTriggered, Valid: true}
	}
	return row, nil
}

func automationFromRow(row model.Automation) (*automation.Automation, error) {
	var trig automation.Trigger
	if err := json.Unmarshal(row.Trigger, &trig); err != nil {
		return nil, errors.Wrap(err, "parse trigger")
	}
	var acts []automation.Action
	if len(row.Actions) > 0 {
		if err := json.Unmarshal(row.Actions, &acts); err != nil {
			return nil, errors.Wrap(err, "parse actions")
		}
	}
	var conds []automation.Condition
	if len(row.Conditions) > 0 {
		if err := json.Unmarshal(row.Conditions, &conds); err != nil {
			return nil, errors.Wrap(err, "parse conditions")
		}
	}

	a := &automation.Automation{
		ID:           row.ID,
		Name:         row.Name,
		Enabled:      row.Enabled,
		Trigger:      trig,
		Actions:      acts,
		Conditions:   conds,
		TriggerCount: row.TriggerCount,
	}
	if row.Description.Valid {
		a.Description = &row.Description.String
	}
	if row.CreatedAt.Valid {
		a.CreatedAt = row.CreatedAt.Time
	}
	if row.LastTriggered.Valid {
		t := row.LastTriggered.Time
		a.LastTriggered = &t
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func scheduleToRow(spec scheduler.ScheduleSpec) model.Schedule {
	days, _ := json.Marshal(spec.DaysOfWeek)
	row := model.Schedule{
		ID:                   spec.ID,
		Kind:                 string(spec.Kind),
		TZ:                   spec.TZ,
		EveryMs:              spec.Every.Milliseconds(),
		Hour:                 spec.Hour,
		Minute:               spec.Minute,
		DaysOfWeek:           datatypes.JSON(days),
		JitterMs:             spec.JitterMs,
		CatchUpPolicy:        string(spec.CatchUpPolicy),
		CatchUpWindowMs:      spec.CatchUpWindow.Milliseconds(),
		MaxCatchUpExecutions: spec.MaxCatchUpExecutions,
		DedupeStrategy:       string(spec.DedupeStrategy),
		LastFiredSlotKey:     spec.LastFiredSlotKey,
		Enabled:              spec.Enabled,
	}
	if spec.RunAt != nil {
		row.RunAt = sql.NullTime{Time: *spec.RunAt, Valid: true}
	}
	if spec.StartAt != nil {
		row.StartAt = sql.NullTime{Time: *spec.StartAt, Valid: true}
	}
	if spec.EndAt != nil {
		row.EndAt = sql.NullTime{Time: *spec.EndAt, Valid: true}
	}
	if !spec.LastEvaluatedAt.IsZero() {
		row.LastEvaluatedAt = sql.NullTime{Time: spec.LastEvaluatedAt, Valid: true}
	}
	return row
}

func scheduleFromRow(row model.Schedule) (*scheduler.ScheduleSpec, error) {
	var days []int
	if len(row.DaysOfWeek) > 0 {
		if err := json.Unmarshal(row.DaysOfWeek, &days); err != nil {
			return nil, errors.Wrap(err, "parse days_of_week")
		}
	}

	spec := &scheduler.ScheduleSpec{
		ID:                   row.ID,
		Kind:                 scheduler.Kind(row.Kind),
		TZ:                   row.TZ,
		Every:                time.Duration(row.EveryMs) * time.Millisecond,
		Hour:                 row.Hour,
		Minute:               row.Minute,
		DaysOfWeek:           days,
		JitterMs:             row.JitterMs,
		CatchUpPolicy:        scheduler.CatchUpPolicy(row.CatchUpPolicy),
		CatchUpWindow:        time.Duration(row.CatchUpWindowMs) * time.Millisecond,
		MaxCatchUpExecutions: row.MaxCatchUpExecutions,
		DedupeStrategy:       scheduler.DedupeStrategy(row.DedupeStrategy),
		LastFiredSlotKey:     row.LastFiredSlotKey,
		Enabled:              row.Enabled,
	}
	if row.RunAt.Valid {
		t := row.RunAt.Time
		spec.RunAt = &t
	}
	if row.StartAt.Valid {
		t := row.StartAt.Time
		spec.StartAt = &t
	}
	if row.EndAt.Valid {
		t := row.EndAt.Time
		spec.EndAt = &t
	}
	if row.LastEvaluatedAt.Valid {
		spec.LastEvaluatedAt = row.LastEvaluatedAt.Time
	}
	return spec, nil
}

func logToRow(entry automation.LogEntry) (*model.Log, error) {
	names, err := json.Marshal(entry.ActionNames)
	if err != nil {
		return nil, err
	}
	results, err := json.Marshal(entry.ActionResults)
	if err != nil {
		return nil, err
	}
	return &model.Log{
		AutomationID:   entry.AutomationID,
		Name:           entry.Name,
		Timestamp:      sql.NullTime{Time: entry.Timestamp, Valid: !entry.Timestamp.IsZero()},
		Success:        entry.Success,
		TriggerDetails: entry.TriggerDetails,
		ActionNames:    datatypes.JSON(names),
		ActionResults:  datatypes.JSON(results),
		ErrorMessage:   entry.ErrorMessage,
	}, nil
}

func logFromRow(row model.Log) (*automation.LogEntry, error) {
	var names []string
	if len(row.ActionNames) > 0 {
		if err := json.Unmarshal(row.ActionNames, &names); err != nil {
			return nil, errors.Wrap(err, "parse action_names")
		}
	}
	var results []automation.ActionResult
	if len(row.ActionResults) > 0 {
		if err := json.Unmarshal(row.ActionResults, &results); err != nil {
			return nil, errors.Wrap(err, "parse action_results")
		}
	}
	entry := &automation.LogEntry{
		AutomationID:   row.AutomationID,
		Name:           row.Name,
		Success:        row.Success,
		TriggerDetails: row.TriggerDetails,
		ActionNames:    names,
		ActionResults:  results,
		ErrorMessage:   row.ErrorMessage,
	}
	if row.Timestamp.Valid {
		entry.Timestamp = row.Timestamp.Time
	}
	return entry, nil
}
