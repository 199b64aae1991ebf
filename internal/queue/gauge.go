// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import (
	"sync"

	"github.com/flowvista/telemetry-collector/internal/model"
)

// Gauge evaluates the same (threshold, severity) marks as Watermarked
// against an externally-set absolute value rather than a FIFO's fill
// measure. Used for the store writer's disk-usage and pending-compaction
// drop sources, which are periodic measurements, not queues.
type Gauge struct {
	mu       sync.Mutex
	value    float64
	marks    []GaugeMark
	level    model.Severity
	hasLevel bool
}

// GaugeMark pairs a high and low threshold with the severity that
// applies between them, so a gauge rises past High and only falls back
// below Low (simple hysteresis: crossing the low mark restores
// acceptance).
type GaugeMark struct {
	High, Low float64
	Severity  model.Severity
}

func NewGauge(marks []GaugeMark) *Gauge {
	return &Gauge{marks: append([]GaugeMark(nil), marks...)}
}

// Set records a new measurement and recomputes the active severity.
func (g *Gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value

	for _, m := range g.marks {
		if g.hasLevel && m.Severity == g.level {
			if value < m.Low {
				g.hasLevel = false
			}
			continue
		}
		if value >= m.High {
			g.level = m.Severity
			g.hasLevel = true
		}
	}
}

// Level returns the currently active severity, if any.
func (g *Gauge) Level() (model.Severity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level, g.hasLevel
}
