// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package uve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/classify"
	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

type fakeOpStore struct {
	down     bool
	updates  int
	deletes  int
}

func (f *fakeOpStore) UpdateUVE(ctx context.Context, key model.UVEKey, attr string, payload []byte) error {
	if f.down {
		return errs.New(errs.Transient, "opstore", errUpdateNoConn)
	}
	f.updates++
	return nil
}
func (f *fakeOpStore) DeleteUVEAttr(ctx context.Context, key model.UVEKey, attr string) error {
	f.deletes++
	return nil
}

type errType struct{}

func (errType) Error() string { return "no conn" }

var errUpdateNoConn = errType{}

type fakeProducer struct {
	rawPublishes []string
	aggPublishes []string
}

func (f *fakeProducer) PublishRawUVE(ctx context.Context, key string, partition int, value []byte) error {
	f.rawPublishes = append(f.rawPublishes, key)
	return nil
}
func (f *fakeProducer) PublishAggregation(ctx context.Context, topic string, partition int, value []byte) error {
	f.aggPublishes = append(f.aggPublishes, topic)
	return nil
}

func TestUVEUpdatePublishesRawAndAggregation(t *testing.T) {
	op := &fakeOpStore{}
	pr := &fakeProducer{}
	pub := New(op, pr, 64, map[string][]string{"agg-topic": {"UveVirtualNetwork-stats"}}, "collector1")

	action := classify.UVEUpdateAction{
		StructType: "UveVirtualNetwork", AttrName: "stats",
		Key:        model.UVEKey{StructType: "UveVirtualNetwork", Table: "ObjectVNTable", BareKey: "vn1"},
		Generator:  model.GeneratorId{Source: "h", Module: "m", NodeType: "n", InstanceId: "0"},
		Payload:    []byte(`{"a":1}`),
	}
	ok, err := pub.UVEUpdate(context.Background(), action)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, op.updates)
	require.Len(t, pr.rawPublishes, 1)
	require.Len(t, pr.aggPublishes, 1)
	require.Equal(t, "agg-topic", pr.aggPublishes[0])
}

func TestUVEUpdateReturnsFalseWhenOpStoreDown(t *testing.T) {
	op := &fakeOpStore{down: true}
	pr := &fakeProducer{}
	pub := New(op, pr, 64, nil, "c1")

	action := classify.UVEUpdateAction{
		StructType: "UveVirtualNetwork", AttrName: "stats",
		Key: model.UVEKey{Table: "ObjectVNTable", BareKey: "vn1"},
	}
	ok, err := pub.UVEUpdate(context.Background(), action)
	require.NoError(t, err)
	require.False(t, ok)
	require.EqualValues(t, 1, pub.UpdateNoConnCount())
	require.Empty(t, pr.rawPublishes)
}

func TestUVEDeletePublishesTombstone(t *testing.T) {
	op := &fakeOpStore{}
	pr := &fakeProducer{}
	pub := New(op, pr, 16, nil, "c1")

	action := classify.UVEDeleteAction{
		StructType: "UveVirtualNetwork",
		Key:        model.UVEKey{Table: "ObjectVNTable", BareKey: "vn1"},
	}
	require.NoError(t, pub.UVEDelete(context.Background(), action))
	require.Equal(t, 1, op.deletes)
	require.Len(t, pr.rawPublishes, 1)
}

func TestPartitionMapCoversAllNamespacesWithinRange(t *testing.T) {
	for _, pt := range []model.PartType{model.PartCNodes, model.PartPNodes, model.PartVMs, model.PartIfs, model.PartOther} {
		base, count := PartitionMap(pt, 64)
		require.GreaterOrEqual(t, base, 0)
		require.Less(t, base, 64)
		require.Greater(t, count, 0)
		require.LessOrEqual(t, base+count, 64)
	}
}
