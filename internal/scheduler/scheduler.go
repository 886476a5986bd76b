// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package scheduler

import (
	"container/heap"
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/seakee/meshomaton/internal/clock"
	"github.com/seakee/meshomaton/internal/metrics"
	"github.com/seakee/meshomaton/internal/telemetry"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

var tracer = telemetry.Tracer("meshomaton/scheduler")

// maxProcessPerTick is the safety cap on heap pops per tick (spec.md §6).
const maxProcessPerTick = 100

// maxCatchUpWalkSteps bounds the inner LastOnly/AllWithinWindow walk so a
// pathological spec (e.g. Every shrunk after a huge catch-up window) cannot
// spin the scheduler; it is independent of maxProcessPerTick, which only
// caps heap pops.
const maxCatchUpWalkSteps = 10000

// PersistFunc writes the current spec states back through the Store.
// Scheduler.Persist calls it with a snapshot; a nil PersistFunc makes
// Persist a no-op.
type PersistFunc func(specs []ScheduleSpec) error

// FireListener observes every ScheduledFire produced by a tick, in
// fire_time order, synchronously within the tick call.
type FireListener func(ScheduledFire)

// Scheduler is the min-heap-ordered evaluator of ScheduleSpecs described in
// spec.md §4.3. It is single-threaded cooperative: Tick is atomic under its
// own mutex and never suspends mid-tick.
type Scheduler struct {
	mu sync.Mutex

	clock clock.Clock
	log   *logger.Manager
	rand  *rand.Rand

	specs map[string]*ScheduleSpec
	heap  fireHeap
	index map[string]*fireEntry

	listeners []FireListener
	persist   PersistFunc
}

// New constructs a Scheduler. log may be nil; persistFn may be nil if the
// caller drives persistence itself.
func New(c clock.Clock, log *logger.Manager, persistFn PersistFunc) *Scheduler {
	return &Scheduler{
		clock:   c,
		log:     log,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		specs:   make(map[string]*ScheduleSpec),
		index:   make(map[string]*fireEntry),
		persist: persistFn,
	}
}

// OnFire registers a listener invoked synchronously, in order, for every
// ScheduledFire a Tick call produces.
func (s *Scheduler) OnFire(l FireListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Register replaces any existing entry for spec.ID; if the spec is enabled
// and active, computes its next occurrence and enqueues it.
func (s *Scheduler) Register(spec ScheduleSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.register(spec)
}

func (s *Scheduler) register(spec ScheduleSpec) {
	stored := spec
	s.specs[spec.ID] = &stored
	s.removeHeapEntry(spec.ID)
	s.enqueueNextFor(&stored, s.now())
}

// Unregister removes a spec and its heap entry.
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.specs, id)
	s.removeHeapEntry(id)
}

// Update is semantically unregister-then-register, preserving
// LastFiredSlotKey from the existing spec so dedup state survives an edit.
func (s *Scheduler) Update(spec ScheduleSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.specs[spec.ID]; ok {
		spec.LastFiredSlotKey = existing.LastFiredSlotKey
	}
	s.register(spec)
}

// ResyncFromStore reloads all specs, discarding in-memory mutable state, and
// rebuilds the heap from scratch.
func (s *Scheduler) ResyncFromStore(specs []ScheduleSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs = make(map[string]*ScheduleSpec, len(specs))
	s.heap = nil
	s.index = make(map[string]*fireEntry)

	now := s.now()
	for _, spec := range specs {
		stored := spec
		s.specs[spec.ID] = &stored
		s.enqueueNextFor(&stored, now)
	}
}

// Schedules returns a read-only snapshot of every registered spec.
func (s *Scheduler) Schedules() []ScheduleSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduleSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, *spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextFireTime returns the instant the heap currently expects to fire id
// next, for callers (e.g. platform.SchedulerBridge) that need to arm an
// external one-shot wake at the same instant without duplicating the
// occurrence math.
func (s *Scheduler) NextFireTime(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.index[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.fireAt, true
}

// Persist writes current spec states back through the configured
// PersistFunc. A nil PersistFunc makes this a no-op.
func (s *Scheduler) Persist() error {
	s.mu.Lock()
	persist := s.persist
	s.mu.Unlock()
	if persist == nil {
		return nil
	}
	return persist(s.Schedules())
}

func (s *Scheduler) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

// Tick is the central algorithm (spec.md §4.3): pops every heap entry whose
// fire time has elapsed (up to maxProcessPerTick), dispatches each on its
// catch-up policy, and broadcasts the resulting fires in fire_time order
// before returning.
func (s *Scheduler) Tick(now time.Time) []ScheduledFire {
	start := time.Now()
	_, span := tracer.Start(context.Background(), "tick", oteltrace.WithAttributes(attribute.String("now", now.Format(time.RFC3339))))
	defer span.End()

	s.mu.Lock()

	var fires []ScheduledFire
	iterations := 0

	for iterations < maxProcessPerTick {
		if s.heap.Len() == 0 {
			break
		}
		top := s.heap[0]
		if top.fireAt.After(now) {
			break
		}

		popped := heap.Pop(&s.heap).(*fireEntry)
		delete(s.index, popped.scheduleID)
		iterations++

		spec, ok := s.specs[popped.scheduleID]
		if !ok || !spec.Enabled {
			continue
		}

		fires = append(fires, s.processEntry(spec, popped, now)...)
	}

	sort.SliceStable(fires, func(i, j int) bool { return fires[i].ScheduledFor.Before(fires[j].ScheduledFor) })

	listeners := append([]FireListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, f := range fires {
		for _, l := range listeners {
			l(f)
		}
	}

	catchUps := 0
	for _, f := range fires {
		if f.IsCatchUp {
			catchUps++
		}
	}
	metrics.ObserveTick(start, len(fires), catchUps)

	return fires
}

// processEntry dispatches one popped heap entry per spec.Kind/CatchUpPolicy
// and returns whatever ScheduledFires it produced, re-enqueueing the spec's
// next occurrence as needed. Called with s.mu held.
func (s *Scheduler) processEntry(spec *ScheduleSpec, popped *fireEntry, now time.Time) []ScheduledFire {
	if spec.Kind == KindOneShot {
		return s.processOneShot(spec, popped, now)
	}

	switch spec.CatchUpPolicy {
	case CatchUpLastOnly:
		return s.processLastOnly(spec, popped, now)
	case CatchUpAllWithinWindow:
		return s.processAllWithinWindow(spec, popped, now)
	default:
		return s.processNone(spec, popped, now)
	}
}

func (s *Scheduler) processOneShot(spec *ScheduleSpec, popped *fireEntry, now time.Time) []ScheduledFire {
	key := slotKey(spec, occurrence{at: popped.occurrenceAt})
	if spec.LastFiredSlotKey == key || !spec.withinBoundaries(popped.occurrenceAt) {
		return nil
	}

	spec.LastFiredSlotKey = key
	spec.LastEvaluatedAt = now
	return []ScheduledFire{s.makeFire(spec, popped.occurrenceAt, key, false, nil)}
}

func (s *Scheduler) processNone(spec *ScheduleSpec, popped *fireEntry, now time.Time) []ScheduledFire {
	var fires []ScheduledFire

	fresh := now.Sub(popped.occurrenceAt) <= freshnessWindow
	if fresh {
		key := slotKey(spec, occurrence{at: popped.occurrenceAt, intervalCount: popped.intervalCount})
		if key != spec.LastFiredSlotKey && spec.withinBoundaries(popped.occurrenceAt) {
			spec.LastFiredSlotKey = key
			fires = append(fires, s.makeFire(spec, popped.occurrenceAt, key, false, intPtrIf(spec.Kind == KindInterval, popped.intervalCount)))
		}
		spec.LastEvaluatedAt = now
		s.enqueueNextFor(spec, popped.occurrenceAt)
		return fires
	}

	occ, ok := atOrAfter(spec, now)
	if !ok {
		return nil
	}
	key := slotKey(spec, occ)
	if occ.at.Sub(now) <= freshnessWindow && key != spec.LastFiredSlotKey && spec.withinBoundaries(occ.at) {
		spec.LastFiredSlotKey = key
		spec.LastEvaluatedAt = now
		fires = append(fires, s.makeFire(spec, occ.at, key, false, intPtrIf(spec.Kind == KindInterval, occ.intervalCount)))
		s.enqueueNextFor(spec, occ.at)
	} else {
		s.enqueueOccurrence(spec, occ)
	}
	return fires
}

func (s *Scheduler) processLastOnly(spec *ScheduleSpec, popped *fireEntry, now time.Time) []ScheduledFire {
	var candidate *occurrence
	var candidateKey string

	occ := occurrence{at: popped.occurrenceAt, intervalCount: popped.intervalCount}
	steps := 0
	for !occ.at.After(now) && steps < maxCatchUpWalkSteps {
		key := slotKey(spec, occ)
		if key != spec.LastFiredSlotKey && spec.withinBoundaries(occ.at) {
			o := occ
			candidate = &o
			candidateKey = key
		}
		next, ok := nextOccurrence(spec, occ.at)
		if !ok || !next.at.After(occ.at) {
			break
		}
		occ = next
		steps++
	}

	if candidate == nil {
		if next, ok := atOrAfter(spec, now); ok {
			s.enqueueOccurrence(spec, next)
		}
		return nil
	}

	spec.LastFiredSlotKey = candidateKey
	spec.LastEvaluatedAt = now
	fire := s.makeFire(spec, candidate.at, candidateKey, true, intPtrIf(spec.Kind == KindInterval, candidate.intervalCount))

	if next, ok := nextOccurrence(spec, candidate.at); ok {
		s.enqueueOccurrence(spec, next)
	}

	return []ScheduledFire{fire}
}

func (s *Scheduler) processAllWithinWindow(spec *ScheduleSpec, popped *fireEntry, now time.Time) []ScheduledFire {
	window := spec.CatchUpWindow
	if window <= 0 {
		window = freshnessWindow
	}
	maxFires := spec.MaxCatchUpExecutions
	if maxFires <= 0 {
		maxFires = 20
	}
	cutoff := now.Add(-window)

	var fires []ScheduledFire
	occ := occurrence{at: popped.occurrenceAt, intervalCount: popped.intervalCount}
	steps := 0

	for steps < maxCatchUpWalkSteps {
		if occ.at.After(now) {
			s.enqueueOccurrence(spec, occ)
			break
		}
		if occ.at.Before(cutoff) {
			next, ok := nextOccurrence(spec, occ.at)
			if !ok {
				return fires
			}
			occ = next
			steps++
			continue
		}

		key := slotKey(spec, occ)
		if key != spec.LastFiredSlotKey && spec.withinBoundaries(occ.at) {
			isCatchUp := len(fires) > 0
			spec.LastFiredSlotKey = key
			fires = append(fires, s.makeFire(spec, occ.at, key, isCatchUp, intPtrIf(spec.Kind == KindInterval, occ.intervalCount)))
			if len(fires) >= maxFires {
				next, ok := nextOccurrence(spec, occ.at)
				if ok {
					s.enqueueOccurrence(spec, next)
				}
				break
			}
		}

		next, ok := nextOccurrence(spec, occ.at)
		if !ok {
			break
		}
		occ = next
		steps++
	}

	spec.LastEvaluatedAt = now
	return fires
}

func (s *Scheduler) makeFire(spec *ScheduleSpec, at time.Time, key string, isCatchUp bool, intervalCount *int) ScheduledFire {
	return ScheduledFire{
		ScheduleID:    spec.ID,
		SlotKey:       key,
		ScheduledFor:  at,
		IsCatchUp:     isCatchUp,
		IntervalCount: intervalCount,
	}
}

// enqueueNextFor computes spec's next occurrence after ref and enqueues it,
// applying jitter to the heap's fireAt without disturbing the canonical
// occurrenceAt used for slot keys and boundary checks.
func (s *Scheduler) enqueueNextFor(spec *ScheduleSpec, ref time.Time) {
	if !spec.Enabled {
		return
	}

	if spec.Kind == KindOneShot {
		if spec.RunAt == nil {
			return
		}
		key := slotKey(spec, occurrence{at: *spec.RunAt})
		if spec.LastFiredSlotKey == key {
			return
		}
		s.enqueueOccurrence(spec, occurrence{at: *spec.RunAt})
		return
	}

	occ, ok := atOrAfter(spec, ref)
	if !ok {
		return
	}
	s.enqueueOccurrence(spec, occ)
}

func (s *Scheduler) enqueueOccurrence(spec *ScheduleSpec, occ occurrence) {
	fireAt := occ.at
	if spec.JitterMs > 0 {
		fireAt = fireAt.Add(time.Duration(s.rand.Intn(spec.JitterMs)) * time.Millisecond)
	}

	entry := &fireEntry{
		scheduleID:    spec.ID,
		fireAt:        fireAt,
		occurrenceAt:  occ.at,
		intervalCount: occ.intervalCount,
	}
	s.removeHeapEntry(spec.ID)
	heap.Push(&s.heap, entry)
	s.index[spec.ID] = entry
}

func (s *Scheduler) removeHeapEntry(id string) {
	entry, ok := s.index[id]
	if !ok {
		return
	}
	heap.Remove(&s.heap, entry.index)
	delete(s.index, id)
}

func intPtrIf(cond bool, v int) *int {
	if !cond {
		return nil
	}
	return &v
}

func (s *Scheduler) logWarn(ctx context.Context, msg string, fields ...zap.Field) {
	if s.log == nil {
		return
	}
	s.log.Warn(ctx, msg, fields...)
}
