// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package connstate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestUpdateThenSnapshotReflectsLatestStatus(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.Update(model.ConnRedis, model.RoleClient, "redis:6379", model.StatusUp, "", 100)

	snap := r.Snapshot()
	key := PeerKey{Kind: model.ConnRedis, Role: model.RoleClient, Endpoint: "redis:6379"}
	require.Equal(t, model.StatusUp, snap[key].Status)
}

func TestUpdateOverwritesPriorStateForSameKey(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	key := PeerKey{Kind: model.ConnKafka, Role: model.RoleClient, Endpoint: "broker:9092"}

	r.Update(model.ConnKafka, model.RoleClient, "broker:9092", model.StatusDown, "dial timeout", 1)
	r.Update(model.ConnKafka, model.RoleClient, "broker:9092", model.StatusUp, "", 2)

	snap := r.Snapshot()
	require.Equal(t, model.StatusUp, snap[key].Status)
	require.Equal(t, int64(2), snap[key].TimestampUs)
}

func TestSnapshotIsACopyNotALiveView(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.Update(model.ConnCassandra, model.RoleClient, "host1", model.StatusUp, "", 1)

	snap := r.Snapshot()
	r.Update(model.ConnCassandra, model.RoleClient, "host1", model.StatusDown, "", 2)

	key := PeerKey{Kind: model.ConnCassandra, Role: model.RoleClient, Endpoint: "host1"}
	require.Equal(t, model.StatusUp, snap[key].Status, "prior snapshot must not observe a later Update")
}

func TestRecordDropIncrementsCounterForSeverity(t *testing.T) {
	r := NewRegistry(prometheus.NewRegistry())
	r.RecordDrop(model.SevError)
	require.Equal(t, float64(1), testutil.ToFloat64(r.droppedMsgs.WithLabelValues("error")))
}
