// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package scheduler

import "time"

// fireEntry is one pending heap entry: the next due instant for one
// ScheduleSpec. occurrenceAt is the canonical (unjittered) slot instant used
// for slot-key and boundary math; fireAt additionally carries the one-time
// jitter offset and is what orders the heap.
type fireEntry struct {
	scheduleID    string
	fireAt        time.Time
	occurrenceAt  time.Time
	intervalCount int
	index         int // maintained by container/heap
}

// fireHeap is a min-heap of *fireEntry ordered by fireAt, implementing
// container/heap.Interface. A side index map on Scheduler supports O(log n)
// removal by schedule id (the "handle map" approach spec.md §9 calls out as
// one acceptable way to satisfy amortised O(log n) registration).
type fireHeap []*fireEntry

func (h fireHeap) Len() int { return len(h) }

func (h fireHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h fireHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *fireHeap) Push(x interface{}) {
	entry := x.(*fireEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *fireHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}
