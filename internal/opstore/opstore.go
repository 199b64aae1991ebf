// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opstore implements the operational-store client (C7): two
// logical connections (To/command, From/subscription) to the same Redis
// endpoint, each its own INIT→AUTH/PING→UP/DOWN state machine, UVE
// key/value mutation and sequence-number lookups, and the "analytics"
// pub/sub subscription that fans out messages to matching Generators.
// Follows internal/repository/dbConnection.go's singleton
// connect-with-retry shape, adapted from a single SQL connection to a
// pair of Redis connections each tracked through its own ConnStatus.
package opstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

const analyticsChannel = "analytics"

// Router forwards a decoded pub/sub message to every Generator whose
// identity matches a colon-separated quadruple with "*" wildcards.
type Router interface {
	RouteToMatching(destination string, payload []byte)
}

// StatusListener receives RedisUpdate(up) fan-out calls: C3 (pause/
// resume generator flow) and C8 (pub/sub health correlation).
type StatusListener interface {
	RedisUpdate(up bool)
}

// analyticsMessage is the {type, destination, message} envelope
// published on the "analytics" channel.
type analyticsMessage struct {
	Type        string `json:"type"`
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

// Client owns the To (command) and From (subscription) connections.
type Client struct {
	to   *redis.Client
	from *redis.Client

	toStatus, fromStatus atomic.Int32 // model.ConnStatus

	listeners []StatusListener
	router    Router

	cancelSub context.CancelFunc
}

// New constructs a Client against addr, authenticating with password if
// set (empty means no AUTH, matching a Redis instance with no
// requirepass).
func New(addr, password string, router Router, listeners ...StatusListener) *Client {
	opts := &redis.Options{Addr: addr, Password: password, DialTimeout: 5 * time.Second}
	c := &Client{
		to:        redis.NewClient(opts),
		from:      redis.NewClient(opts),
		router:    router,
		listeners: listeners,
	}
	c.toStatus.Store(int32(model.StatusInit))
	c.fromStatus.Store(int32(model.StatusInit))
	return c
}

func (c *Client) ToStatus() model.ConnStatus   { return model.ConnStatus(c.toStatus.Load()) }
func (c *Client) FromStatus() model.ConnStatus { return model.ConnStatus(c.fromStatus.Load()) }

// ConnectTo drives the To connection's INIT→AUTH/PING→UP transition. A
// PING error is fatal per the state diagram ("AUTH/PING --reply ERR-->
// fail-stop"); the caller decides whether that means process abort
// (errs.Fatal) via errs.AbortProcess.
func (c *Client) ConnectTo(ctx context.Context) error {
	if err := c.to.Ping(ctx).Err(); err != nil {
		c.toStatus.Store(int32(model.StatusDown))
		return errs.New(errs.Fatal, "opstore", fmt.Errorf("To connection AUTH/PING failed: %w", err))
	}
	c.toStatus.Store(int32(model.StatusUp))

	if err := c.to.FlushDB(ctx).Err(); err != nil {
		cclog.Errorf("[OPSTORE]> flush-all-UVEs on To-UP failed: %v", err)
	}
	c.notify(true)
	return nil
}

// MarkToDown transitions To to DOWN and fans out RedisUpdate(false)
// to every registered listener.
func (c *Client) MarkToDown() {
	c.toStatus.Store(int32(model.StatusDown))
	c.notify(false)
}

func (c *Client) notify(up bool) {
	for _, l := range c.listeners {
		l.RedisUpdate(up)
	}
}

// ConnectFrom drives the From connection up and starts the "analytics"
// subscription loop in a background goroutine. Cancel via Close.
func (c *Client) ConnectFrom(ctx context.Context) error {
	if err := c.from.Ping(ctx).Err(); err != nil {
		c.fromStatus.Store(int32(model.StatusDown))
		return errs.New(errs.Transient, "opstore", fmt.Errorf("From connection AUTH/PING failed: %w", err))
	}
	c.fromStatus.Store(int32(model.StatusUp))

	subCtx, cancel := context.WithCancel(ctx)
	c.cancelSub = cancel
	pubsub := c.from.Subscribe(subCtx, analyticsChannel)
	go c.subscribeLoop(subCtx, pubsub)
	return nil
}

func (c *Client) subscribeLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				c.fromStatus.Store(int32(model.StatusDown))
				return
			}
			c.handleAnalyticsMessage(msg.Payload)
		}
	}
}

// handleAnalyticsMessage base64-decodes and JSON-parses one "analytics"
// channel payload and routes it to matching Generators.
func (c *Client) handleAnalyticsMessage(raw string) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		cclog.Errorf("[OPSTORE]> analytics message base64 decode: %v", err)
		return
	}
	var m analyticsMessage
	if err := json.Unmarshal(decoded, &m); err != nil {
		cclog.Errorf("[OPSTORE]> analytics message json decode: %v", err)
		return
	}
	if c.router != nil {
		c.router.RouteToMatching(m.Destination, []byte(m.Message))
	}
}

// MatchDestination reports whether a Generator's identity matches a
// colon-separated "*"-wildcard destination quadruple.
func MatchDestination(destination string, id model.GeneratorId) bool {
	parts := strings.Split(destination, ":")
	fields := []string{id.Source, id.Module, id.NodeType, id.InstanceId}
	if len(parts) != len(fields) {
		return false
	}
	for i, p := range parts {
		if p != "*" && p != fields[i] {
			return false
		}
	}
	return true
}

// Close cancels the subscription loop and closes both connections.
func (c *Client) Close() {
	if c.cancelSub != nil {
		c.cancelSub()
	}
	_ = c.to.Close()
	_ = c.from.Close()
}
