// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package model

import (
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Log is the GORM row for one execution LogEntry, adapted from the
// teacher's collector.Log (app/model/collector/log.go) to the automation
// domain: ContainerID/ContainerName become AutomationID/Name, Caller/Level
// drop away, ActionNames/ActionResults carry the per-action accounting
// spec.md §3 requires.
type Log struct {
	ID             int            `gorm:"column:id;primaryKey" json:"-"`
	AutomationID   string         `gorm:"column:automation_id" json:"automation_id"`
	Name           string         `gorm:"column:name" json:"name"`
	Timestamp      sql.NullTime   `gorm:"column:timestamp" json:"timestamp"`
	Success        bool           `gorm:"column:success" json:"success"`
	TriggerDetails string         `gorm:"column:trigger_details" json:"trigger_details"`
	ActionNames    datatypes.JSON `gorm:"column:action_names" json:"action_names"`
	ActionResults  datatypes.JSON `gorm:"column:action_results" json:"action_results"`
	ErrorMessage   string         `gorm:"column:error_message" json:"error_message"`
}

// TableName returns the database table name for Log.
func (Log) TableName() string {
	return "automation_log"
}

// Create inserts the current Log record.
func (l *Log) Create(db *gorm.DB) (int, error) {
	if err := db.Create(l).Error; err != nil {
		return 0, errors.Wrap(err, "create log")
	}
	return l.ID, nil
}

// ListByArgs returns logs filtered by raw query conditions, newest first,
// bounded to limit rows.
func (l *Log) ListByArgs(db *gorm.DB, limit int, query interface{}, args ...interface{}) (logs []Log, err error) {
	q := db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if query != nil {
		q = q.Where(query, args...)
	}
	err = q.Find(&logs).Error
	return
}

// DeleteOlderThanID removes every log row with id <= keepAboveID, used to
// enforce the bounded log ring when the Store backs onto a real table
// instead of an in-memory ring.
func (l *Log) DeleteOlderThanID(db *gorm.DB, keepAboveID int) error {
	if err := db.Where("id <= ?", keepAboveID).Delete(&Log{}).Error; err != nil {
		return errors.Wrap(err, "trim log table")
	}
	return nil
}

// Clear removes every log row.
func (l *Log) Clear(db *gorm.DB) error {
	if err := db.Where("1 = 1").Delete(&Log{}).Error; err != nil {
		return errors.Wrap(err, "clear log table")
	}
	return nil
}
