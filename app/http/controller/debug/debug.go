// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package debug implements the inspection/debug HTTP surface described in
// SPEC_FULL.md: listing automations, per-automation execution log, and the
// bounded DebugRecorder trace, in the same thin-handler style the teacher
// uses for its controllers (parse params, call the repository/service, let
// i18n.Manager render the response).
package debug

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seakee/meshomaton/app/pkg/e"
	"github.com/seakee/meshomaton/internal/debugrecorder"
	"github.com/seakee/meshomaton/internal/repository"
	"github.com/sk-pkg/i18n"
)

type (
	// Handler defines the inspection endpoints exposed over HTTP.
	Handler interface {
		// i is an unexported marker method used to seal this interface.
		i()
		// ListAutomations returns every automation known to the Repository.
		ListAutomations() gin.HandlerFunc
		// AutomationLog returns one automation's execution log.
		AutomationLog() gin.HandlerFunc
		// Evaluations returns the DebugRecorder's ring buffer snapshot.
		Evaluations() gin.HandlerFunc
	}

	handler struct {
		i18n     *i18n.Manager
		repo     *repository.Repository
		recorder *debugrecorder.Recorder
	}
)

func (h handler) i() {}

// New builds the debug/inspection handler set.
func New(i18n *i18n.Manager, repo *repository.Repository, recorder *debugrecorder.Recorder) Handler {
	return &handler{i18n: i18n, repo: repo, recorder: recorder}
}

// ListAutomations returns every automation known to the Repository.
func (h handler) ListAutomations() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.i18n.JSON(c, e.SUCCESS, h.repo.Automations(), nil)
	}
}

// AutomationLog returns the shared execution log filtered to one
// automation ID, bounded by an optional ?limit= query param.
func (h handler) AutomationLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := h.repo.Get(id); !ok {
			h.i18n.JSON(c, e.AutomationNotFound, nil, nil)
			return
		}

		entries, err := h.repo.Log(maxEntries(c))
		if err != nil {
			h.i18n.JSON(c, e.ERROR, nil, err)
			return
		}

		filtered := entries[:0:0]
		for _, entry := range entries {
			if entry.AutomationID == id {
				filtered = append(filtered, entry)
			}
		}

		h.i18n.JSON(c, e.SUCCESS, filtered, nil)
	}
}

// Evaluations returns the DebugRecorder's current ring buffer snapshot, the
// spec.md §4.5 "every should_trigger call regardless of outcome" trace.
func (h handler) Evaluations() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.recorder == nil {
			h.i18n.JSON(c, e.SUCCESS, []string{}, nil)
			return
		}
		h.i18n.JSON(c, e.SUCCESS, h.recorder.Snapshot(), nil)
	}
}

func maxEntries(c *gin.Context) int {
	const defaultMax = 200
	v := c.Query("limit")
	if v == "" {
		return defaultMax
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultMax
	}
	return n
}
