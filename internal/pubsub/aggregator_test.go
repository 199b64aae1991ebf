// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProxySample(t *testing.T) {
	raw := []byte(`<sample timestamp="1700000000">42.5</sample>`)
	v, ts, err := parseProxySample(raw)
	require.NoError(t, err)
	require.Equal(t, 42.5, v)
	require.EqualValues(t, 1700000000, ts)
}

func TestParseProxySampleRejectsNonNumeric(t *testing.T) {
	raw := []byte(`<sample timestamp="1">not-a-number</sample>`)
	_, _, err := parseProxySample(raw)
	require.Error(t, err)
}

func TestProxyMapSumAccumulates(t *testing.T) {
	m := NewProxyMap()
	r1 := m.Update(0, "p1", []ProxyKind{ProxySum}, 10)
	r2 := m.Update(0, "p1", []ProxyKind{ProxySum}, 5)
	require.Equal(t, 10.0, r1[ProxySum])
	require.Equal(t, 15.0, r2[ProxySum])
}

func TestProxyMapEWMAAnomalyFirstSampleIsZero(t *testing.T) {
	m := NewProxyMap()
	r := m.Update(0, "p1", []ProxyKind{ProxyEWMAAnomaly}, 10)
	require.InDelta(t, 0.0, r[ProxyEWMAAnomaly], 1e-9)
}

func TestProxyMapClearResetsPartition(t *testing.T) {
	m := NewProxyMap()
	m.Update(0, "p1", []ProxyKind{ProxySum}, 10)
	m.Clear(0)
	r := m.Update(0, "p1", []ProxyKind{ProxySum}, 3)
	require.Equal(t, 3.0, r[ProxySum], "state for partition 0 must have been wiped by Clear")
}

func TestProxyMapKeepsPartitionsIndependent(t *testing.T) {
	m := NewProxyMap()
	m.Update(0, "p1", []ProxyKind{ProxySum}, 10)
	r := m.Update(1, "p1", []ProxyKind{ProxySum}, 3)
	require.Equal(t, 3.0, r[ProxySum])
}
