// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package connstate implements the connection-state singleton and
// metrics emitter (C12): a process-wide map of every logical peer's
// up/down status, read-only to everything but the core, plus a
// gocron-scheduled periodic snapshot into Prometheus gauges/counters for
// an introspection endpoint to scrape. Follows internal/taskManager's
// gocron wiring shape (NewScheduler/NewJob/DurationJob/Start/Shutdown)
// and internal/metricdata's use of the prometheus client stack for the
// metric-surface idiom.
package connstate

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flowvista/telemetry-collector/internal/model"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// PeerKey identifies one logical peer the core tracks connection state
// for.
type PeerKey struct {
	Kind     model.ConnKind
	Role     model.ConnRole
	Endpoint string
}

// PeerState is the current snapshot for one PeerKey.
type PeerState struct {
	Status      model.ConnStatus
	Message     string
	TimestampUs int64
}

// Registry is the ConnectionState singleton: the core writes through
// Update, a periodic emitter reads through Snapshot.
type Registry struct {
	mu    sync.Mutex
	peers map[PeerKey]PeerState

	statusGauge   *prometheus.GaugeVec
	droppedMsgs   *prometheus.CounterVec
	updateNoConn  prometheus.Gauge
	generatorCount prometheus.Gauge
}

// NewRegistry constructs a Registry and registers its Prometheus
// collectors against reg (pass prometheus.DefaultRegisterer to expose
// through the default /metrics handler).
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		peers: make(map[PeerKey]PeerState),
		statusGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "collector",
			Subsystem: "conn",
			Name:      "status",
			Help:      "Connection status per peer (0=INIT, 1=UP, 2=DOWN).",
		}, []string{"kind", "role", "endpoint"}),
		droppedMsgs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collector",
			Subsystem: "store",
			Name:      "dropped_msg_stats_total",
			Help:      "Rows dropped by the drop-level policy, by severity.",
		}, []string{"severity"}),
		updateNoConn: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "collector",
			Subsystem: "uve",
			Name:      "update_no_conn",
			Help:      "UVEUpdate calls that found the operational store down.",
		}),
		generatorCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "collector",
			Subsystem: "generator",
			Name:      "count",
			Help:      "Number of known generators in the registry.",
		}),
	}
}

// Update records a peer's current status.
func (r *Registry) Update(kind model.ConnKind, role model.ConnRole, endpoint string, status model.ConnStatus, message string, timestampUs int64) {
	key := PeerKey{Kind: kind, Role: role, Endpoint: endpoint}
	r.mu.Lock()
	r.peers[key] = PeerState{Status: status, Message: message, TimestampUs: timestampUs}
	r.mu.Unlock()

	r.statusGauge.WithLabelValues(kindLabel(kind), roleLabel(role), endpoint).Set(float64(status))
}

// Snapshot returns a copy of the current peer map.
func (r *Registry) Snapshot() map[PeerKey]PeerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[PeerKey]PeerState, len(r.peers))
	for k, v := range r.peers {
		out[k] = v
	}
	return out
}

// RecordDrop increments the dropped-row counter for sev.
func (r *Registry) RecordDrop(sev model.Severity) {
	r.droppedMsgs.WithLabelValues(severityLabel(sev)).Inc()
}

// SetUpdateNoConn/SetGeneratorCount publish the corresponding gauges;
// callers (C6, C3) supply the live counter value on each emission tick.
func (r *Registry) SetUpdateNoConn(v int64)      { r.updateNoConn.Set(float64(v)) }
func (r *Registry) SetGeneratorCount(v int)      { r.generatorCount.Set(float64(v)) }

func kindLabel(k model.ConnKind) string {
	switch k {
	case model.ConnCassandra:
		return "cassandra"
	case model.ConnRedis:
		return "redis"
	case model.ConnKafka:
		return "kafka"
	case model.ConnGenerator:
		return "generator"
	default:
		return "unknown"
	}
}

func roleLabel(r model.ConnRole) string {
	if r == model.RoleServer {
		return "server"
	}
	return "client"
}

func severityLabel(s model.Severity) string {
	switch s {
	case model.SevDebug:
		return "debug"
	case model.SevInfo:
		return "info"
	case model.SevNotice:
		return "notice"
	case model.SevWarn:
		return "warn"
	case model.SevError:
		return "error"
	case model.SevCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Emitter runs the periodic snapshot-emission job via gocron,
// mirroring internal/taskManager's scheduler lifecycle.
type Emitter struct {
	scheduler gocron.Scheduler
	registry  *Registry
}

// NewEmitter constructs the gocron scheduler for registry. No job is
// scheduled until Start is called.
func NewEmitter(registry *Registry) (*Emitter, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Emitter{scheduler: s, registry: registry}, nil
}

// Start schedules the snapshot tick at interval and starts the
// scheduler. sample is called on every tick to refresh the gauges that
// have no natural push path (update_no_conn, generator count).
func (e *Emitter) Start(interval time.Duration, sample func(*Registry)) error {
	_, err := e.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		if sample != nil {
			sample(e.registry)
		}
	}))
	if err != nil {
		return err
	}
	cclog.Infof("[CONNSTATE]> metrics emitter starting, interval=%s", interval)
	e.scheduler.Start()
	return nil
}

func (e *Emitter) Shutdown() error {
	return e.scheduler.Shutdown()
}
