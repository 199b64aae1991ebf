// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest implements the UDP ingest servers (C10): a bound socket
// with a small open/bind state machine that decodes every datagram on
// receipt and fans its samples out to a per-source-IP queue so that one
// noisy exporter cannot starve another, and a worker per source IP that
// feeds the five stat-sample shapes into the stat walker (C11) and from
// there into the store writer (C2). The wire decode itself (sFlow/IPFIX framing) is
// delegated to a Decoder so this package stays shape-agnostic between
// the two protocols; internal/ingest/sflow and internal/ingest/ipfix
// each supply one.
package ingest

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/queue"
	"github.com/flowvista/telemetry-collector/internal/statwalker"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Decoder turns one UDP payload from sourceIP into zero or more decoded
// flow samples. A decode error drops only that datagram.
type Decoder interface {
	Decode(payload []byte, sourceIP string) ([]model.UnderlayFlowSample, error)
}

// StatEmitter is the slice of the store writer (C2) this package needs.
type StatEmitter interface {
	StatTableInsert(rec model.StatRecord) error
}

var defaultMarks = []queue.Mark{
	{Threshold: 10000, Severity: model.SevWarn},
	{Threshold: 50000, Severity: model.SevError},
}

// Server is the shared scaffolding for one UDP ingest protocol (sFlow or
// IPFIX). StatName distinguishes the two in the emitted stat rows.
type Server struct {
	StatName string

	decoder Decoder
	emitter StatEmitter

	mu    sync.Mutex
	state model.IngestState
	conn  *net.UDPConn

	queuesMu sync.Mutex
	queues   map[string]*queue.Watermarked

	onNewSourceIP func(ctx context.Context, sourceIP string)
}

// OnNewSourceIP registers cb to run once for every source IP this server
// sees a datagram from for the first time. The caller typically starts
// a RunWorker goroutine against that IP from cb.
func (s *Server) OnNewSourceIP(cb func(ctx context.Context, sourceIP string)) {
	s.queuesMu.Lock()
	s.onNewSourceIP = cb
	s.queuesMu.Unlock()
}

// NewServer constructs a Server. decoder performs the protocol-specific
// framing decode; emitter is where converted samples end up.
func NewServer(statName string, decoder Decoder, emitter StatEmitter) *Server {
	return &Server{
		StatName: statName,
		decoder:  decoder,
		emitter:  emitter,
		queues:   make(map[string]*queue.Watermarked),
	}
}

// State returns the server's current lifecycle state.
func (s *Server) State() model.IngestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(st model.IngestState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Initialize resolves addr:port and binds the listening socket. A prior
// bound socket, if any, is closed
// first so Initialize doubles as the reconnect path after a socket
// error.
func (s *Server) Initialize(addr string, port int) error {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		s.setState(model.IngestSocketOpenFailed)
		return errs.New(errs.Config, "ingest", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		s.setState(model.IngestSocketBindFailed)
		return errs.New(errs.Config, "ingest", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setState(model.IngestOK)
	return nil
}

// Shutdown closes the bound socket. Queued-but-undispatched samples are
// dropped.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// StartReceive blocks reading datagrams until ctx is cancelled or the
// socket errors. A socket error transitions the server to
// IngestSocketBindFailed ("DOWN"); the caller is expected to retry
// Initialize on its own schedule, attempting a reconnect on the next
// init.
func (s *Server) StartReceive(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cclog.Errorf("[INGEST]> %s socket error, marking DOWN: %v", s.StatName, err)
			s.setState(model.IngestSocketBindFailed)
			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		sourceIP := addr.IP.String()

		samples, err := s.decoder.Decode(payload, sourceIP)
		if err != nil {
			cclog.Warnf("[INGEST]> %s decode error from %s, dropping datagram: %v", s.StatName, sourceIP, err)
			continue
		}
		for _, sample := range samples {
			s.dispatch(ctx, sourceIP, sample)
		}
	}
}

// dispatch enqueues one decoded sample onto sourceIP's per-source-IP
// worker queue.
func (s *Server) dispatch(ctx context.Context, sourceIP string, sample model.UnderlayFlowSample) {
	s.queueFor(ctx, sourceIP).Enqueue(sample, 1)
}

func (s *Server) queueFor(ctx context.Context, sourceIP string) *queue.Watermarked {
	s.queuesMu.Lock()
	q, ok := s.queues[sourceIP]
	isNew := !ok
	if isNew {
		q = queue.New(defaultMarks, nil)
		s.queues[sourceIP] = q
	}
	cb := s.onNewSourceIP
	s.queuesMu.Unlock()

	if isNew && cb != nil {
		cb(ctx, sourceIP)
	}
	return q
}

// RunWorker drains sourceIP's queue until ctx is cancelled, converting
// every sample into stat rows. One worker goroutine is expected per
// source IP that has ever sent a datagram; callers typically start one
// lazily the first time dispatch creates that IP's queue.
func (s *Server) RunWorker(ctx context.Context, sourceIP string) {
	q := s.queueFor(ctx, sourceIP)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		v, ok := q.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		sample, ok := v.(model.UnderlayFlowSample)
		if !ok {
			continue
		}
		if err := s.emitSample(sample); err != nil {
			cclog.Errorf("[INGEST]> %s stat emit failed for %s: %v", s.StatName, sourceIP, err)
		}
	}
}

// emitSample produces five stat samples: {name, pifindex}, {sip},
// {dip}, {protocol, sport}, {protocol, dport}, each carrying the full
// 5-tuple as attributes.
func (s *Server) emitSample(sample model.UnderlayFlowSample) error {
	attribs := map[string]any{
		"sip":      sample.Sip,
		"dip":      sample.Dip,
		"protocol": sample.Protocol,
		"sport":    sample.Sport,
		"dport":    sample.Dport,
	}

	scopes := []struct {
		name string
		tags map[string]model.TagValue
	}{
		{"by_source", map[string]model.TagValue{
			"name":     model.StringTag(sample.SourceIP),
			"pifindex": model.U64Tag(uint64(sample.Pifindex)),
		}},
		{"by_sip", map[string]model.TagValue{"sip": model.StringTag(sample.Sip)}},
		{"by_dip", map[string]model.TagValue{"dip": model.StringTag(sample.Dip)}},
		{"by_sport", map[string]model.TagValue{
			"protocol": model.U64Tag(uint64(sample.Protocol)),
			"sport":    model.U64Tag(uint64(sample.Sport)),
		}},
		{"by_dport", map[string]model.TagValue{
			"protocol": model.U64Tag(uint64(sample.Protocol)),
			"dport":    model.U64Tag(uint64(sample.Dport)),
		}},
	}

	insert := func(rec model.StatRecord) error {
		for k, v := range attribs {
			rec.Attribs[k] = v
		}
		return s.emitter.StatTableInsert(rec)
	}
	w := statwalker.New(insert, sample.TimestampUs, s.StatName, nil)
	for _, sc := range scopes {
		w.Push(sc.name, sc.tags, nil)
		if err := w.Pop(); err != nil {
			return err
		}
	}
	return nil
}
