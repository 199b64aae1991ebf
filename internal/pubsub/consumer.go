// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// commitPeriod is the epoch width used to decide when to commit the
// previously retained "last message of epoch".
const commitPeriod = time.Hour

// staleAfter is the staleness bound: samples older than this relative
// to consumption time are logged and ignored.
const staleAfter = 60 * time.Second

// TraceEmitter receives one proxy-UVE trace record per configured proxy
// kind per sample. Kept as an injected function rather
// than a direct dependency on internal/uve, mirroring the store
// writer's injector-function shape from C11.
type TraceEmitter func(partition int, proxyName string, kind ProxyKind, value float64)

// Consumer runs the aggregation consumer-group worker loop (C9).
type Consumer struct {
	brokers []string
	group   *kafka.ConsumerGroup
	topics  map[string][]ProxyKind // aggregation topic -> proxy kinds configured for it
	proxies *ProxyMap
	emit    TraceEmitter

	mu            sync.Mutex
	storedOffsets map[int]int64
	partEpoch     map[int]int64
	lastOfEpoch   map[int]kafka.Message
}

// NewConsumer constructs a consumer group member named "agg" over the
// configured aggregation topics.
func NewConsumer(brokers []string, topics map[string][]ProxyKind, proxies *ProxyMap, emit TraceEmitter) (*Consumer, error) {
	names := make([]string, 0, len(topics))
	for t := range topics {
		names = append(names, t)
	}
	group, err := kafka.NewConsumerGroup(kafka.ConsumerGroupConfig{
		ID:      "agg",
		Brokers: brokers,
		Topics:  names,
	})
	if err != nil {
		return nil, err
	}
	return &Consumer{
		brokers:       brokers,
		group:         group,
		topics:        topics,
		proxies:       proxies,
		emit:          emit,
		storedOffsets: make(map[int]int64),
		partEpoch:     make(map[int]int64),
		lastOfEpoch:   make(map[int]kafka.Message),
	}, nil
}

// Run drives the generation loop until ctx is cancelled: each call to
// Next is effectively an ASSIGN/REVOKE boundary. Partitions held in the previous generation but absent from
// the new one are Clear()ed before the new generation's workers start.
func (c *Consumer) Run(ctx context.Context) error {
	prevPartitions := make(map[string]map[int]bool)
	for {
		gen, err := c.group.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cclog.Errorf("[PUBSUB]> consumer group rebalance error: %v", err)
			continue
		}

		newPartitions := make(map[string]map[int]bool)
		for topic, assignments := range gen.Assigns {
			newPartitions[topic] = make(map[int]bool)
			for _, a := range assignments {
				newPartitions[topic][a.ID] = true
			}
		}
		for topic, parts := range prevPartitions {
			for partition := range parts {
				if !newPartitions[topic][partition] {
					c.clearPartition(partition)
				}
			}
		}
		prevPartitions = newPartitions

		for topic, assignments := range gen.Assigns {
			kinds := c.topics[topic]
			for _, a := range assignments {
				topic, partition, offset := topic, a.ID, a.Offset
				gen.Start(func(ctx context.Context) {
					c.consumePartition(ctx, gen, topic, partition, offset, kinds)
				})
			}
		}
	}
}

func (c *Consumer) clearPartition(partition int) {
	c.mu.Lock()
	delete(c.storedOffsets, partition)
	delete(c.partEpoch, partition)
	delete(c.lastOfEpoch, partition)
	c.mu.Unlock()
	c.proxies.Clear(partition)
}

func (c *Consumer) consumePartition(ctx context.Context, gen *kafka.Generation, topic string, partition int, offset int64, kinds []ProxyKind) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   c.brokers,
		Topic:     topic,
		Partition: partition,
	})
	defer reader.Close()
	if err := reader.SetOffset(offset); err != nil {
		cclog.Errorf("[PUBSUB]> set offset for %s/%d: %v", topic, partition, err)
		return
	}

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cclog.Errorf("[PUBSUB]> read %s/%d: %v", topic, partition, err)
			continue
		}
		c.handleMessage(gen, topic, partition, msg, kinds)
	}
}

func (c *Consumer) handleMessage(gen *kafka.Generation, topic string, partition int, msg kafka.Message, kinds []ProxyKind) {
	c.mu.Lock()
	if stored, ok := c.storedOffsets[partition]; ok && msg.Offset <= stored {
		c.mu.Unlock()
		return
	}
	c.storedOffsets[partition] = msg.Offset

	epoch := time.Now().Unix() / int64(commitPeriod.Seconds())
	prevEpoch, hasEpoch := c.partEpoch[partition]
	var toCommit *kafka.Message
	if hasEpoch && epoch != prevEpoch {
		if last, ok := c.lastOfEpoch[partition]; ok {
			m := last
			toCommit = &m
		}
		c.partEpoch[partition] = epoch
	} else if !hasEpoch {
		c.partEpoch[partition] = epoch
	}
	c.lastOfEpoch[partition] = msg
	c.mu.Unlock()

	if toCommit != nil {
		if err := gen.CommitOffsets(map[string]map[int]int64{topic: {partition: toCommit.Offset + 1}}); err != nil {
			cclog.Errorf("[PUBSUB]> commit %s/%d: %v", topic, partition, err)
		}
	}

	value, ts, err := parseProxySample(msg.Value)
	if err != nil {
		cclog.Warnf("[PUBSUB]> malformed proxy sample on %s/%d: %v", topic, partition, err)
		return
	}
	age := time.Now().Unix() - ts
	if age > int64(staleAfter.Seconds()) {
		cclog.Warnf("[PUBSUB]> stale proxy sample on %s/%d (age %ds), ignoring", topic, partition, age)
		return
	}

	proxyName := string(msg.Key)
	results := c.proxies.Update(partition, proxyName, kinds, value)
	for kind, v := range results {
		if c.emit != nil {
			c.emit(partition, proxyName, kind, v)
		}
	}
}

func (c *Consumer) Close() error { return c.group.Close() }
