// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

type fakeDecoder struct {
	samples []model.UnderlayFlowSample
	err     error
}

func (d *fakeDecoder) Decode(payload []byte, sourceIP string) ([]model.UnderlayFlowSample, error) {
	return d.samples, d.err
}

type fakeEmitter struct {
	rows []model.StatRecord
}

func (e *fakeEmitter) StatTableInsert(rec model.StatRecord) error {
	e.rows = append(e.rows, rec)
	return nil
}

func TestInitializeTransitionsToOKOnSuccessfulBind(t *testing.T) {
	s := NewServer("UnderlayFlowSample", &fakeDecoder{}, &fakeEmitter{})
	require.Equal(t, model.IngestUninitialized, s.State())

	err := s.Initialize("127.0.0.1", 0)
	require.NoError(t, err)
	require.Equal(t, model.IngestOK, s.State())
	require.NoError(t, s.Shutdown())
}

func TestInitializeFailsOnUnresolvableAddress(t *testing.T) {
	s := NewServer("UnderlayFlowSample", &fakeDecoder{}, &fakeEmitter{})
	err := s.Initialize("not a valid host\x00", 0)
	require.Error(t, err)
	require.Equal(t, model.IngestSocketOpenFailed, s.State())
}

func TestEmitSampleProducesFiveStatRowsWithFullTuple(t *testing.T) {
	emitter := &fakeEmitter{}
	s := NewServer("UnderlayFlowSample", &fakeDecoder{}, emitter)

	sample := model.UnderlayFlowSample{
		SourceIP: "10.1.1.1", Pifindex: 3,
		Sip: "1.2.3.4", Dip: "5.6.7.8",
		Protocol: 6, Sport: 443, Dport: 51000,
		TimestampUs: 100,
	}
	require.NoError(t, s.emitSample(sample))
	require.Len(t, emitter.rows, 5)

	for _, row := range emitter.rows {
		require.Equal(t, "UnderlayFlowSample", row.StatName)
		require.Equal(t, "1.2.3.4", row.Attribs["sip"])
		require.Equal(t, "5.6.7.8", row.Attribs["dip"])
	}

	statAttrs := make([]string, len(emitter.rows))
	for i, row := range emitter.rows {
		statAttrs[i] = row.StatAttr
	}
	require.Contains(t, statAttrs, "by_source")
	require.Contains(t, statAttrs, "by_sip")
	require.Contains(t, statAttrs, "by_dip")
	require.Contains(t, statAttrs, "by_sport")
	require.Contains(t, statAttrs, "by_dport")
}

func TestDispatchRoutesSamplesToPerSourceIPQueue(t *testing.T) {
	ctx := context.Background()
	s := NewServer("UnderlayFlowSample", &fakeDecoder{}, &fakeEmitter{})
	s.dispatch(ctx, "10.0.0.1", model.UnderlayFlowSample{SourceIP: "10.0.0.1"})
	s.dispatch(ctx, "10.0.0.2", model.UnderlayFlowSample{SourceIP: "10.0.0.2"})

	v1, ok := s.queueFor(ctx, "10.0.0.1").Dequeue()
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", v1.(model.UnderlayFlowSample).SourceIP)

	v2, ok := s.queueFor(ctx, "10.0.0.2").Dequeue()
	require.True(t, ok)
	require.Equal(t, "10.0.0.2", v2.(model.UnderlayFlowSample).SourceIP)
}

func TestOnNewSourceIPFiresOncePerSourceIP(t *testing.T) {
	ctx := context.Background()
	s := NewServer("UnderlayFlowSample", &fakeDecoder{}, &fakeEmitter{})

	var seen []string
	s.OnNewSourceIP(func(_ context.Context, sourceIP string) {
		seen = append(seen, sourceIP)
	})

	s.dispatch(ctx, "10.0.0.1", model.UnderlayFlowSample{SourceIP: "10.0.0.1"})
	s.dispatch(ctx, "10.0.0.1", model.UnderlayFlowSample{SourceIP: "10.0.0.1"})
	s.dispatch(ctx, "10.0.0.2", model.UnderlayFlowSample{SourceIP: "10.0.0.2"})

	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, seen)
}
