// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package generator implements the generator registry (C3): a
// mutex-protected keyed map of active producer processes, session
// ownership and takeover, and the per-generator back-pressure queues.
// Follows internal/memorystore/level.go's locking shape: an
// RWMutex-guarded map, read-mostly lookups, write path only on miss.
package generator

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/opstore"
	"github.com/flowvista/telemetry-collector/internal/queue"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Session is the registry's view of a producer's transport connection.
// The envelope/wire parser is out of scope; the
// registry only needs to close a session, identify it, and push a
// control reply or a resource-state event down it.
type Session interface {
	ID() string
	Close() error
	SendCtrlReply(seqMap map[string]uint64) error
	NotifyResourceState(up bool)
	Send(payload []byte) error
}

// CtrlFields is the parsed control-message payload from OnCtrlMessage.
type CtrlFields struct {
	GeneratorId model.GeneratorId
}

// SequenceProvider is C7's sequence-map lookup, invoked on a successful
// ctrl handshake.
type SequenceProvider interface {
	LastSequences(id model.GeneratorId) (map[string]uint64, error)
}

// Generator is the runtime record for one GeneratorId.
type Generator struct {
	id model.GeneratorId

	mu        sync.Mutex
	session   Session // nil when disconnected
	connected bool

	connectCount   int64
	lastConnectTs  int64
	lastResetTs    int64

	StorageQueue     *queue.Watermarked
	StateMachineQueue *queue.Watermarked

	typeCounters     map[model.SandeshType]int64
	severityCounters map[model.Severity]int64
}

func newGenerator(id model.GeneratorId, session Session) *Generator {
	return &Generator{
		id:                id,
		session:           session,
		connected:         true,
		connectCount:      1,
		lastConnectTs:     time.Now().UnixMicro(),
		StorageQueue:      queue.New(defaultQueueMarks(), nil),
		StateMachineQueue: queue.New(defaultQueueMarks(), nil),
		typeCounters:      make(map[model.SandeshType]int64),
		severityCounters:  make(map[model.Severity]int64),
	}
}

func defaultQueueMarks() []queue.Mark {
	return []queue.Mark{
		{Threshold: 10_000_000, Severity: model.SevWarn},
		{Threshold: 50_000_000, Severity: model.SevError},
	}
}

// ID returns this Generator's identity.
func (g *Generator) ID() model.GeneratorId { return g.id }

// Session returns the currently attached session, or nil if disconnected.
func (g *Generator) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// ConnectCount returns the number of times a session has attached to
// this Generator.
func (g *Generator) ConnectCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connectCount
}

// recordMessage updates per-type/per-severity ingress counters.
func (g *Generator) recordMessage(msgType model.SandeshType, sev model.Severity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.typeCounters[msgType]++
	g.severityCounters[sev]++
}

// Registry is the mutex-protected GeneratorId → Generator map.
type Registry struct {
	mu         sync.RWMutex
	generators map[model.GeneratorId]*Generator
	bySession  map[string]model.GeneratorId

	seqProvider SequenceProvider
	abortOnce   atomic.Bool

	onNewGenerator func(*Generator)
}

func New(seqProvider SequenceProvider) *Registry {
	return &Registry{
		generators:  make(map[model.GeneratorId]*Generator),
		bySession:   make(map[string]model.GeneratorId),
		seqProvider: seqProvider,
	}
}

// OnNewGenerator registers cb to run once for every Generator the
// registry creates, after it is visible to Lookup. The caller typically
// uses this to start a session.Worker against the new Generator's
// StorageQueue.
func (r *Registry) OnNewGenerator(cb func(*Generator)) {
	r.mu.Lock()
	r.onNewGenerator = cb
	r.mu.Unlock()
}

// OnCtrlMessage implements the insert/reattach/session-mismatch decision
// tree.
func (r *Registry) OnCtrlMessage(session Session, fields CtrlFields) error {
	id := fields.GeneratorId
	if id.NodeType == "" || id.InstanceId == "" {
		return errs.New(errs.Protocol, "generator", errEmptyCtrlField)
	}

	r.mu.Lock()
	g, known := r.generators[id]
	if !known {
		g = newGenerator(id, session)
		r.generators[id] = g
		r.bySession[session.ID()] = id
		cb := r.onNewGenerator
		r.mu.Unlock()
		if cb != nil {
			cb(g)
		}
		return r.sendSeqReply(g, session)
	}
	r.mu.Unlock()

	g.mu.Lock()
	switch {
	case g.session == nil:
		g.session = session
		g.connected = true
		g.connectCount++
		g.lastConnectTs = time.Now().UnixMicro()
		g.mu.Unlock()

		r.mu.Lock()
		r.bySession[session.ID()] = id
		r.mu.Unlock()
		return r.sendSeqReply(g, session)

	case g.session.ID() != session.ID():
		prior := g.session
		g.mu.Unlock()
		cclog.Warnf("[GENERATOR]> session mismatch for %s: closing both sessions", id)
		_ = prior.Close()
		_ = session.Close()
		return errs.New(errs.Protocol, "generator", errSessionMismatch)

	default:
		// Same session re-announcing; nothing to do.
		g.mu.Unlock()
		return nil
	}
}

func (r *Registry) sendSeqReply(g *Generator, session Session) error {
	seqMap, err := r.seqProvider.LastSequences(g.id)
	if err != nil {
		return errs.New(errs.Transient, "generator", err)
	}
	return session.SendCtrlReply(seqMap)
}

// OnDisconnect marks the owning Generator disconnected, leaving its entry
// in place for reuse. teardown is invoked to run UVE teardown
// (C6), kept as a caller-supplied hook so this package does not import
// the uve package.
func (r *Registry) OnDisconnect(sessionID string, teardown func(model.GeneratorId)) {
	r.mu.Lock()
	id, ok := r.bySession[sessionID]
	if ok {
		delete(r.bySession, sessionID)
	}
	g := r.generators[id]
	r.mu.Unlock()
	if !ok || g == nil {
		return
	}

	g.mu.Lock()
	g.session = nil
	g.connected = false
	g.lastResetTs = time.Now().UnixMicro()
	g.mu.Unlock()

	if teardown != nil {
		teardown(id)
	}
}

// OnRedisUp/OnRedisDown fan out a resource state event to every live
// session's state machine.
func (r *Registry) OnRedisUp()   { r.broadcastResourceState(true) }
func (r *Registry) OnRedisDown() { r.broadcastResourceState(false) }

func (r *Registry) broadcastResourceState(up bool) {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.generators))
	for _, g := range r.generators {
		if s := g.Session(); s != nil {
			sessions = append(sessions, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.NotifyResourceState(up)
	}
}

// RouteToMatching forwards payload verbatim to every Generator whose
// identity matches destination, a colon-separated
// "source:module:node_type:instance_id" quadruple where any field may be
// "*" (the operational store's cross-process routing).
func (r *Registry) RouteToMatching(destination string, payload []byte) {
	parts := strings.Split(destination, ":")
	if len(parts) != 4 {
		cclog.Warnf("[GENERATOR]> malformed routing destination %q", destination)
		return
	}

	r.mu.RLock()
	var matches []Session
	for id, g := range r.generators {
		if opstore.MatchDestination(destination, id) {
			if s := g.Session(); s != nil {
				matches = append(matches, s)
			}
		}
	}
	r.mu.RUnlock()

	for _, s := range matches {
		if err := s.Send(payload); err != nil {
			cclog.Errorf("[GENERATOR]> routing message to %s: %v", s.ID(), err)
		}
	}
}

// Dispatch implements the per-message-ingress path: find the
// Generator owning sessionID, bump counters, enqueue to its storage
// queue, return immediately.
func (r *Registry) Dispatch(sessionID string, msgType model.SandeshType, sev model.Severity, weight int64, work any) bool {
	r.mu.RLock()
	id, ok := r.bySession[sessionID]
	var g *Generator
	if ok {
		g = r.generators[id]
	}
	r.mu.RUnlock()
	if g == nil {
		return false
	}

	g.recordMessage(msgType, sev)
	g.StorageQueue.Enqueue(work, weight)
	return true
}

// Lookup returns the Generator for id, if any.
func (r *Registry) Lookup(id model.GeneratorId) (*Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[id]
	return g, ok
}

// Remove deletes a Generator entry. Callers must ensure the session is
// nil and its queues drained first.
func (r *Registry) Remove(id model.GeneratorId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.generators, id)
}

// Len reports the number of known generators, for the operational
// counters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.generators)
}

var (
	errEmptyCtrlField  = emptyCtrlFieldErr{}
	errSessionMismatch = sessionMismatchErr{}
)

type emptyCtrlFieldErr struct{}

func (emptyCtrlFieldErr) Error() string { return "ctrl message missing instance_id or node_type" }

type sessionMismatchErr struct{}

func (sessionMismatchErr) Error() string { return "generator already owns a different session" }
