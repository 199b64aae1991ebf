// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package uve implements the UVE publisher (C6): the two parallel
// fan-outs per UVEUpdate/UVEDelete (operational KV store, pub/sub raw +
// aggregation topics), partition selection, and the sequence-number
// handshake plumbing shared with the generator registry.
// Grounded on original_source/src/analytics/OpServerProxy.cc's
// dual-fanout shape (one update driving both a Redis mutation and a
// Kafka publish) and uve_aggregator.cc for the aggregation-topic routing
// decision.
package uve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/flowvista/telemetry-collector/internal/classify"
	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// OpStore is the C7 surface the UVE publisher drives.
type OpStore interface {
	UpdateUVE(ctx context.Context, key model.UVEKey, attrName string, payload []byte) error
	DeleteUVEAttr(ctx context.Context, key model.UVEKey, attrName string) error
}

// Producer is the C8 surface the UVE publisher drives.
type Producer interface {
	PublishRawUVE(ctx context.Context, key string, partition int, value []byte) error
	PublishAggregation(ctx context.Context, topic string, partition int, value []byte) error
}

// Publisher wires together C7 and C8 for one UVEUpdate/UVEDelete call.
type Publisher struct {
	opStore       OpStore
	producer      Producer
	totalPartitions int
	// aggConf maps "<struct_type>-<attr>" to its aggregation topic name
	// (config.Keys.AggConf inverted: each configured topic lists the
	// struct-attr pairs feeding it).
	aggConf map[string]string

	collectorEndpoint string

	updateNoConn atomic.Int64
}

func New(opStore OpStore, producer Producer, totalPartitions int, aggConf map[string][]string, collectorEndpoint string) *Publisher {
	inverted := make(map[string]string)
	for topic, structAttrs := range aggConf {
		for _, sa := range structAttrs {
			inverted[sa] = topic
		}
	}
	return &Publisher{
		opStore:           opStore,
		producer:          producer,
		totalPartitions:   totalPartitions,
		aggConf:           inverted,
		collectorEndpoint: collectorEndpoint,
	}
}

// UpdateNoConnCount exposes the update_no_conn counter.
func (p *Publisher) UpdateNoConnCount() int64 { return p.updateNoConn.Load() }

// partTypeForTable heuristically classifies a UVE table into one of the
// five PartitionMap namespaces by its naming convention; the
// table→namespace mapping itself is an Open Question decision recorded
// in DESIGN.md.
func partTypeForTable(table string) model.PartType {
	lower := strings.ToLower(table)
	switch {
	case strings.Contains(lower, "collector") || strings.Contains(lower, "config"):
		return model.PartCNodes
	case strings.Contains(lower, "vrouter") || strings.Contains(lower, "prouter"):
		return model.PartPNodes
	case strings.Contains(lower, "vm") || strings.Contains(lower, "virtualmachine"):
		return model.PartVMs
	case strings.Contains(lower, "interface") || strings.Contains(lower, "iftable"):
		return model.PartIfs
	default:
		return model.PartOther
	}
}

// UVEUpdate performs the two parallel fan-outs for one attribute update:
// operational store mutation plus inbound pub/sub enqueue, and the
// raw/aggregation Kafka publishes. Returns false (without error) when
// the operational-store connection is down: update_no_conn is
// incremented and the caller treats this as a transient failure it may
// retry later.
func (p *Publisher) UVEUpdate(ctx context.Context, action classify.UVEUpdateAction) (bool, error) {
	partType := partTypeForTable(action.Key.Table)
	part := Partition(partType, action.Key.StorageKey(), p.totalPartitions)

	if err := p.opStore.UpdateUVE(ctx, action.Key, action.AttrName, action.Payload); err != nil {
		if errs.KindOf(err) == errs.Transient {
			p.updateNoConn.Add(1)
			return false, nil
		}
		return false, err
	}

	rawValue := p.rawUVEValue(action)
	rawKey := fmt.Sprintf("%s|%s|%s|%s", action.Key.StorageKey(), action.StructType, action.Generator.String(), p.collectorEndpoint)
	if err := p.producer.PublishRawUVE(ctx, rawKey, part, rawValue); err != nil {
		return true, err
	}

	if topic, ok := p.aggConf[action.StructType+"-"+action.AttrName]; ok {
		aggPart := int(djbHash(rawKey) % uint32(clampPartitions(p.totalPartitions)))
		if err := p.producer.PublishAggregation(ctx, topic, aggPart, rawValue); err != nil {
			return true, err
		}
	}

	return true, nil
}

func clampPartitions(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// rawUVEValue implements the UVEAlarms asymmetry: the full attribute map is embedded only for
// UVEAlarms; every other struct type publishes an empty JSON object —
// the operational-store path above is authoritative for the actual
// value.
func (p *Publisher) rawUVEValue(action classify.UVEUpdateAction) []byte {
	if action.StructType != "UVEAlarms" {
		return []byte("{}")
	}
	obj := map[string]json.RawMessage{action.AttrName: action.Payload}
	encoded, err := json.Marshal(obj)
	if err != nil {
		return []byte("{}")
	}
	return encoded
}

// UVEDelete publishes a tombstone (empty value) on the raw UVE topic and
// removes the attribute from the operational store.
func (p *Publisher) UVEDelete(ctx context.Context, action classify.UVEDeleteAction) error {
	if err := p.opStore.DeleteUVEAttr(ctx, action.Key, ""); err != nil && errs.KindOf(err) != errs.Transient {
		return err
	}
	partType := partTypeForTable(action.Key.Table)
	part := Partition(partType, action.Key.StorageKey(), p.totalPartitions)
	rawKey := fmt.Sprintf("%s|%s|%s|%s", action.Key.StorageKey(), action.StructType, action.Generator.String(), p.collectorEndpoint)
	return p.producer.PublishRawUVE(ctx, rawKey, part, nil)
}

