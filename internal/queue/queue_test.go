// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestWatermarkedRisesAndFalls(t *testing.T) {
	var seen []model.Severity
	q := New([]Mark{
		{Threshold: 10, Severity: model.SevWarn},
		{Threshold: 20, Severity: model.SevError},
	}, func(count int64, severity model.Severity, deferCb func()) {
		seen = append(seen, severity)
	})

	for i := 0; i < 10; i++ {
		q.Enqueue(i, 1)
	}
	require.Len(t, seen, 1)
	require.Equal(t, model.SevWarn, seen[0])

	for i := 0; i < 10; i++ {
		q.Enqueue(i, 1)
	}
	require.Len(t, seen, 2)
	require.Equal(t, model.SevError, seen[1])

	for i := 0; i < 20; i++ {
		_, ok := q.Dequeue()
		require.True(t, ok)
	}
	require.Len(t, seen, 4)
	level, has := q.DropLevel()
	require.False(t, has)
	_ = level
}

func TestWatermarkedNeverBlocks(t *testing.T) {
	q := New([]Mark{{Threshold: 1, Severity: model.SevCritical}}, nil)
	for i := 0; i < 1000; i++ {
		q.Enqueue(i, 1)
	}
	require.Equal(t, int64(1000), q.Len())
}
