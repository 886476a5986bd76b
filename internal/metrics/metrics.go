// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package metrics exposes the Prometheus counters/histograms SPEC_FULL.md's
// domain-stack table assigns to github.com/prometheus/client_golang: trigger
// counts, tick latency, and catch-up counts for the Engine and Scheduler,
// grounded on the promauto.NewCounterVec/NewHistogramVec pattern used by
// ManuGH-xg2g's internal/pipeline/worker/metrics.go.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts every should_trigger call by outcome: one of
	// "triggered" or a automation.SkipReason string.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshomaton_evaluations_total",
			Help: "Total automation evaluations by outcome.",
		},
		[]string{"trigger_kind", "outcome"},
	)

	// ActionsTotal counts every executed action by kind and success.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshomaton_actions_total",
			Help: "Total actions executed by kind and result.",
		},
		[]string{"action_kind", "result"},
	)

	// AutomationTriggersTotal counts automation executions in which every
	// action succeeded; Automation.trigger_count also counts runs with a
	// failed action.
	AutomationTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshomaton_automation_triggers_total",
			Help: "Total successful automation executions.",
		},
		[]string{"automation_id"},
	)

	// TickDuration observes Scheduler.Tick wall-clock latency.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshomaton_scheduler_tick_duration_seconds",
			Help:    "Scheduler.Tick latency.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FiresTotal counts ScheduledFire emissions by whether the fire was a
	// catch-up.
	FiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshomaton_scheduler_fires_total",
			Help: "Total ScheduledFire emissions.",
		},
		[]string{"is_catch_up"},
	)
)

// ObserveTick records one Scheduler.Tick call's latency and the fires it
// produced.
func ObserveTick(start time.Time, fireCount, catchUpCount int) {
	TickDuration.Observe(time.Since(start).Seconds())
	if n := fireCount - catchUpCount; n > 0 {
		FiresTotal.WithLabelValues("false").Add(float64(n))
	}
	if catchUpCount > 0 {
		FiresTotal.WithLabelValues("true").Add(float64(catchUpCount))
	}
}
