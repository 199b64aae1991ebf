// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue implements the watermarked queue (C1): a bounded FIFO
// whose fill measure (bytes or item count, the queue does not care
// which) is compared against an ordered set of marks to derive a drop
// severity, invoking a callback whenever that severity changes. Follows
// pkg/lrucache/cache.go's mutex locking idiom (one sync.Mutex, no
// condition variable, so nothing ever waits on the queue),
// generalized from an LRU eviction policy to a watermark crossing
// policy.
package queue

import (
	"container/list"
	"sync"

	"github.com/flowvista/telemetry-collector/internal/model"
)

// Mark is one (threshold, severity) pair. Marks are evaluated in the
// order they were added; Watermarked assumes thresholds are supplied in
// non-decreasing order, each associated with an increasingly severe drop
// level.
type Mark struct {
	Threshold int64
	Severity  model.Severity
}

// DropLevelFunc is invoked whenever the effective drop severity changes
// after an enqueue/dequeue, keeping the shape of the source's
// "set_drop_level(count, severity, defer_cb)" signature. The deferCb the
// queue passes registers a nil callback, so calling it has no effect;
// callbacks that run once the level falls back below every mark are
// registered with Watermarked.Defer.
type DropLevelFunc func(count int64, severity model.Severity, deferCb func())

// Item is a unit of work carried by the queue along with the fill
// measure it contributes (its byte size, or 1 if the queue counts
// items).
type Item struct {
	Value  any
	Weight int64
}

// Watermarked is a bounded FIFO with rising/falling marks. It never
// blocks: Enqueue always succeeds (the caller is expected to consult
// DropLevel before even constructing the work that would be enqueued,
// per the "the queue never blocks; overflow... raises drop_level=highest
// which callers must honour before enqueueing" failure semantics).
type Watermarked struct {
	mu       sync.Mutex
	items    *list.List
	fill     int64
	marks    []Mark
	onChange DropLevelFunc
	level    model.Severity
	hasLevel bool
	deferred []func()
}

// New constructs a watermarked queue. marks must be sorted by ascending
// Threshold; onChange is called (outside the lock) whenever the
// effective drop severity changes.
func New(marks []Mark, onChange DropLevelFunc) *Watermarked {
	return &Watermarked{
		items: list.New(),
		marks: append([]Mark(nil), marks...),
		onChange: onChange,
	}
}

// Enqueue appends an item and re-evaluates marks. It always succeeds;
// callers that want to honour back-pressure must check DropLevel first.
func (q *Watermarked) Enqueue(value any, weight int64) {
	q.mu.Lock()
	q.items.PushBack(Item{Value: value, Weight: weight})
	q.fill += weight
	q.mu.Unlock()
	q.reevaluate()
}

// Dequeue removes and returns the oldest item. ok is false if the queue
// is empty.
func (q *Watermarked) Dequeue() (value any, ok bool) {
	q.mu.Lock()
	front := q.items.Front()
	if front == nil {
		q.mu.Unlock()
		return nil, false
	}
	item := q.items.Remove(front).(Item)
	q.fill -= item.Weight
	q.mu.Unlock()
	q.reevaluate()
	return item.Value, true
}

// Len returns the current fill measure (not item count, unless the
// caller enqueues with weight 1 per item).
func (q *Watermarked) Len() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fill
}

// DropLevel returns the drop severity in effect right now, without
// mutating the queue.
func (q *Watermarked) DropLevel() (model.Severity, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.level, q.hasLevel
}

// Defer registers cb to run the next time the effective severity falls
// back to "no mark active". Mirrors the source's defer/undefer callback
// pairing used to pause/resume upstream flow.
func (q *Watermarked) Defer(cb func()) {
	q.mu.Lock()
	q.deferred = append(q.deferred, cb)
	q.mu.Unlock()
}

// reevaluate recomputes the highest mark whose threshold the current
// fill has crossed and fires onChange (and any deferred callbacks) if
// that differs from the previously reported level. Runs outside the
// queue's own lock so onChange can safely call back into the queue.
func (q *Watermarked) reevaluate() {
	q.mu.Lock()
	fill := q.fill
	var newLevel model.Severity
	active := false
	for _, m := range q.marks {
		if fill >= m.Threshold {
			newLevel = m.Severity
			active = true
		}
	}

	changed := active != q.hasLevel || (active && newLevel != q.level)
	var toRun []func()
	if changed {
		if !active {
			// Falling back below every mark: run deferred callbacks
			// (the "falling marks fire on descent" rule).
			toRun = q.deferred
			q.deferred = nil
		}
		q.level = newLevel
		q.hasLevel = active
	}
	cb := q.onChange
	q.mu.Unlock()

	if changed && cb != nil {
		cb(fill, newLevel, func() { q.Defer(nil) })
	}
	for _, f := range toRun {
		if f != nil {
			f()
		}
	}
}
