// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pubsub implements the pub/sub producer (C8) and consumer +
// aggregator (C9) against a Kafka-family bus. Grounded on
// GVCUTV-NRG-CHAMP's internal/kafkabus/bus.go Reader/Writer construction
// shape, generalized from one topic per bus instance to per-call topic
// addressing (the core publishes to many dynamically named raw-UVE and
// aggregation topics rather than one fixed topic).
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Producer owns one kafka.Writer per distinct topic, created lazily, and
// the connectivity watchdog state.
type Producer struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer

	deliveries   atomic.Int64
	lastTickDeliveries int64
	disabled     atomic.Bool
	up           atomic.Bool
	startedAt    time.Time
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		brokers:   brokers,
		writers:   make(map[string]*kafka.Writer),
		startedAt: time.Now(),
	}
}

func (p *Producer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	p.writers[topic] = w
	return w
}

// PublishRawUVE publishes key/value to the raw-UVE topic, manually
// targeting partition via an explicit kafka.Message.Partition
// (kafka-go's Hash balancer is bypassed when Partition is set directly).
func (p *Producer) PublishRawUVE(ctx context.Context, key string, partition int, value []byte) error {
	return p.publish(ctx, rawUVETopic, key, partition, value)
}

// PublishAggregation publishes value to a configured aggregation topic.
func (p *Producer) PublishAggregation(ctx context.Context, topic string, partition int, value []byte) error {
	return p.publish(ctx, topic, "", partition, value)
}

const rawUVETopic = "ueve-raw"

func (p *Producer) publish(ctx context.Context, topic, key string, partition int, value []byte) error {
	w := p.writerFor(topic)
	msg := kafka.Message{Value: value, Partition: partition}
	if key != "" {
		msg.Key = []byte(key)
	}
	err := w.WriteMessages(ctx, msg)
	if err == nil {
		p.deliveries.Add(1)
	}
	return err
}

// SetDisabled raises/clears the "Kafka disabled" flag. While it is set
// the watchdog keeps checking delivery activity after its first ~30s
// window as well.
func (p *Producer) SetDisabled(v bool) { p.disabled.Store(v) }

// Up reports the watchdog's current pub/sub health verdict.
func (p *Producer) Up() bool { return p.up.Load() }

// Watchdog runs the ~1s connectivity-check loop: within the
// first ~30s of startup, and whenever disabled is set, it compares
// delivery-callback activity since the last tick. When the flag is set
// and a delivery has succeeded since the previous tick, it clears the
// flag and invokes onReconnect, letting the caller (C3) re-trigger
// OnRedisUp for resumed flow. It does not re-fetch broker metadata and
// does not check the operational store's state before doing so.
func (p *Producer) Watchdog(ctx context.Context, onReconnect func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(onReconnect)
		}
	}
}

func (p *Producer) tick(onReconnect func()) {
	withinStartupWindow := time.Since(p.startedAt) < 30*time.Second
	if !withinStartupWindow && !p.disabled.Load() {
		return
	}

	current := p.deliveries.Load()
	active := current != p.lastTickDeliveries
	p.lastTickDeliveries = current

	wasUp := p.up.Swap(active)
	if active && !wasUp {
		cclog.Infof("[PUBSUB]> producer marked UP")
	} else if !active && wasUp {
		cclog.Warnf("[PUBSUB]> producer marked DOWN")
	}

	if p.disabled.Load() && active {
		p.disabled.Store(false)
		if onReconnect != nil {
			onReconnect()
		}
	}
}

// Close closes every writer opened so far.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
