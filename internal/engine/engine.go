// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package engine implements the stateful event dispatcher described in
// spec.md §4.5: per-node snapshots, derived-event detection, trigger/
// condition evaluation, per-automation throttling, and ordered action
// execution with per-action result accounting.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sk-pkg/logger"
	"go.uber.org/zap"

	"github.com/seakee/meshomaton/internal/automation"
	"github.com/seakee/meshomaton/internal/clock"
	"github.com/seakee/meshomaton/internal/debugrecorder"
	"github.com/seakee/meshomaton/internal/effector"
	"github.com/seakee/meshomaton/internal/interpolate"
	"github.com/seakee/meshomaton/internal/repository"
)

// DefaultThrottleInterval is the minimum interval between successful
// executions of the same automation for the same trigger kind, per
// spec.md §6.
const DefaultThrottleInterval = 60 * time.Second

// DefaultBatteryHysteresis is the percentage-point band above a BatteryLow
// threshold required to re-arm it (spec.md §4.5).
const DefaultBatteryHysteresis = 5

// DefaultSilentNodeInterval is how often the silent-node sweep runs.
const DefaultSilentNodeInterval = 5 * time.Minute

// Effectors bundles every optional side-effect trait the Engine executes
// actions through. A nil field means that capability is simply unavailable;
// the corresponding action kinds fail with effector.Unavailable rather than
// panicking.
type Effectors struct {
	Notifier  effector.Notifier
	Messenger effector.Messenger
	Haptics   effector.Haptics
	Audio     effector.AudioPlayer
	Webhook   effector.Webhook
	Glyph     effector.Glyph
	Shortcut  effector.ShortcutRunner
}

type throttleKey struct {
	automationID string
	triggerKind  automation.TriggerKind
}

type batteryKey struct {
	nodeNum      uint32
	automationID string
}

// Engine is the core rule evaluator. Zero value is not usable; build one
// with New.
type Engine struct {
	repo      *repository.Repository
	clock     clock.Clock
	effectors Effectors
	recorder  *debugrecorder.Recorder
	interp    *interpolate.Interpolator
	log       *logger.Manager

	throttleInterval   time.Duration
	batteryHysteresis  int

	mu sync.Mutex

	nodeBattery   map[uint32]int
	nodeLatitude  map[uint32]float64
	nodeLongitude map[uint32]float64
	nodeLastHeard map[uint32]time.Time
	nodePresence  map[uint32]bool
	nodeName      map[uint32]string

	batteryLowFired map[batteryKey]bool
	lastTriggerTime map[throttleKey]time.Time
	geofenceInside  map[string]bool
}

// Option configures optional Engine fields at construction.
type Option func(*Engine)

// WithThrottleInterval overrides DefaultThrottleInterval.
func WithThrottleInterval(d time.Duration) Option {
	return func(e *Engine) { e.throttleInterval = d }
}

// WithBatteryHysteresis overrides DefaultBatteryHysteresis.
func WithBatteryHysteresis(points int) Option {
	return func(e *Engine) { e.batteryHysteresis = points }
}

// WithRecorder attaches a DebugRecorder; every should_trigger call is
// recorded regardless of outcome.
func WithRecorder(r *debugrecorder.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger attaches a logger.Manager for structured diagnostics.
func WithLogger(l *logger.Manager) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an Engine over repo, reading time through c and executing
// actions through effectors.
func New(repo *repository.Repository, c clock.Clock, effectors Effectors, opts ...Option) *Engine {
	e := &Engine{
		repo:              repo,
		clock:             c,
		effectors:         effectors,
		interp:            interpolate.New(),
		throttleInterval:  DefaultThrottleInterval,
		batteryHysteresis: DefaultBatteryHysteresis,
		nodeBattery:       make(map[uint32]int),
		nodeLatitude:      make(map[uint32]float64),
		nodeLongitude:     make(map[uint32]float64),
		nodeLastHeard:     make(map[uint32]time.Time),
		nodePresence:      make(map[uint32]bool),
		nodeName:          make(map[uint32]string),
		batteryLowFired:   make(map[batteryKey]bool),
		lastTriggerTime:   make(map[throttleKey]time.Time),
		geofenceInside:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

func (e *Engine) logError(ctx context.Context, msg string, fields ...zap.Field) {
	if e.log == nil {
		return
	}
	e.log.Error(ctx, msg, fields...)
}
