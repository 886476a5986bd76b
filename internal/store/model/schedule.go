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

// Schedule is the GORM row for one persisted ScheduleSpec. Most fields map
// 1:1 onto scheduler.ScheduleSpec; DaysOfWeek is stored as a JSON int array
// since GORM has no native set/array column for MySQL.
type Schedule struct {
	ID                   string         `gorm:"column:id;primaryKey" json:"id"`
	Kind                 string         `gorm:"column:kind" json:"kind"`
	TZ                   string         `gorm:"column:tz" json:"tz"`
	RunAt                sql.NullTime   `gorm:"column:run_at" json:"run_at"`
	EveryMs              int64          `gorm:"column:every_ms" json:"every_ms"`
	Hour                 int            `gorm:"column:hour" json:"hour"`
	Minute               int            `gorm:"column:minute" json:"minute"`
	DaysOfWeek           datatypes.JSON `gorm:"column:days_of_week" json:"days_of_week"`
	StartAt              sql.NullTime   `gorm:"column:start_at" json:"start_at"`
	EndAt                sql.NullTime   `gorm:"column:end_at" json:"end_at"`
	JitterMs             int            `gorm:"column:jitter_ms" json:"jitter_ms"`
	CatchUpPolicy        string         `gorm:"column:catch_up_policy" json:"catch_up_policy"`
	CatchUpWindowMs      int64          `gorm:"column:catch_up_window_ms" json:"catch_up_window_ms"`
	MaxCatchUpExecutions int            `gorm:"column:max_catch_up_executions" json:"max_catch_up_executions"`
	DedupeStrategy       string         `gorm:"column:dedupe_strategy" json:"dedupe_strategy"`
	LastFiredSlotKey     string         `gorm:"column:last_fired_slot_key" json:"last_fired_slot_key"`
	LastEvaluatedAt      sql.NullTime   `gorm:"column:last_evaluated_at" json:"last_evaluated_at"`
	Enabled              bool           `gorm:"column:enabled" json:"enabled"`
}

// TableName returns the database table name for Schedule.
func (Schedule) TableName() string {
	return "schedule"
}

// List returns every schedule row.
func (s *Schedule) List(db *gorm.DB) (rows []Schedule, err error) {
	err = db.Order("id").Find(&rows).Error
	return
}

// ReplaceAll atomically replaces the whole schedule table, matching
// Store.persist_schedules's "write current spec states back" semantics.
func (s *Schedule) ReplaceAll(db *gorm.DB, rows []Schedule) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Schedule{}).Error; err != nil {
			return errors.Wrap(err, "clear schedule table")
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert schedule rows")
		}
		return nil
	})
}
