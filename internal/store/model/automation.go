// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package model defines persistence models for automations, schedules, and
// execution logs, following the teacher's collector-log GORM model shape
// (app/model/collector/log.go): one struct per table, methods on pointer
// receivers wrapping db.Where/Create/Updates/Delete, errors wrapped with
// github.com/pkg/errors.
package model

import (
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Automation is the GORM row for one persisted automation. Trigger/Actions/
// Conditions are stored as JSON columns per spec.md §6's persisted schema;
// internal/automation owns parsing them into typed Go values.
type Automation struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	Name          string         `gorm:"column:name" json:"name"`
	Description   sql.NullString `gorm:"column:description" json:"description"`
	Enabled       bool           `gorm:"column:enabled" json:"enabled"`
	Trigger       datatypes.JSON `gorm:"column:trigger" json:"trigger"`
	Actions       datatypes.JSON `gorm:"column:actions" json:"actions"`
	Conditions    datatypes.JSON `gorm:"column:conditions" json:"conditions"`
	CreatedAt     sql.NullTime   `gorm:"column:created_at" json:"created_at"`
	LastTriggered sql.NullTime   `gorm:"column:last_triggered" json:"last_triggered"`
	TriggerCount  uint64         `gorm:"column:trigger_count" json:"trigger_count"`
}

// TableName returns the database table name for Automation.
func (Automation) TableName() string {
	return "automation"
}

// First returns the first record matching non-zero fields of a.
func (a *Automation) First(db *gorm.DB) (*Automation, error) {
	var row Automation
	err := db.Where(a).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns every automation row, ordered by id for deterministic reads.
func (a *Automation) List(db *gorm.DB) (rows []Automation, err error) {
	err = db.Order("id").Find(&rows).Error
	return
}

// Upsert inserts a by primary key or updates every column when it already
// exists, matching Store.save_automation's "replace" semantics.
func (a *Automation) Upsert(db *gorm.DB) error {
	err := db.Save(a).Error
	if err != nil {
		return errors.Wrap(err, "upsert automation")
	}
	return nil
}

// Delete removes the automation row by id.
func (a *Automation) Delete(db *gorm.DB) error {
	if err := db.Where("id = ?", a.ID).Delete(&Automation{}).Error; err != nil {
		return errors.Wrap(err, "delete automation")
	}
	return nil
}
