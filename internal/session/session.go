// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session implements the session receive path (C4): the glue
// that turns one dequeued SessionMessage into the classifier's (C5)
// action set, then drives the store writer (C2), UVE publisher (C6) and
// stat walker (C11) calls the action set calls for. Grounded on
// original_source/src/analytics/ruleeng.cc's RuleWorker, which performs
// the same dispatch from a parsed message to the DbHandler/OpServerProxy
// calls below, but expressed as one pure classify + one I/O-driving
// pipeline instead of a virtual-dispatch rule engine.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/flowvista/telemetry-collector/internal/classify"
	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/generator"
	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/statwalker"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// StoreWriter is the C2 surface the session pipeline drives.
type StoreWriter interface {
	MessageTableInsert(msg model.SessionMessage, objectNames []string) error
	ObjectTableInsert(tableName string, msg model.SessionMessage, bareKey string) error
	FlowTableInsert(rec model.FlowRecord) error
	SessionTableInsert(rec model.SessionRecord) error
	StatTableInsert(rec model.StatRecord) error
	LogFieldNamesInsert(msg model.SessionMessage, fields map[string]string)
}

// UVEPublisher is the C6 surface the session pipeline drives.
type UVEPublisher interface {
	UVEUpdate(ctx context.Context, action classify.UVEUpdateAction) (bool, error)
	UVEDelete(ctx context.Context, action classify.UVEDeleteAction) error
}

// Pipeline implements the five-step per-message path.
type Pipeline struct {
	store StoreWriter
	uve   UVEPublisher
}

func New(store StoreWriter, uve UVEPublisher) *Pipeline {
	return &Pipeline{store: store, uve: uve}
}

// Process classifies msg and drives every resulting store/UVE/stat
// action. A Transient error from a store call means the row was dropped
// by a kill-switch or the back-pressure policy — expected, not a
// processing failure — so it is swallowed rather than propagated; any
// other error aborts and is returned to the caller.
func (p *Pipeline) Process(ctx context.Context, msg model.SessionMessage) error {
	result := classify.Classify(msg)

	objectNames := make([]string, 0, len(result.ObjectAnnotations))
	for _, a := range result.ObjectAnnotations {
		objectNames = append(objectNames, a.Table+":"+a.BareKey)
	}
	if err := swallowTransient(p.store.MessageTableInsert(msg, objectNames)); err != nil {
		return err
	}

	for _, a := range result.ObjectAnnotations {
		if err := swallowTransient(p.store.ObjectTableInsert(a.Table, msg, a.BareKey)); err != nil {
			return err
		}
	}

	for _, u := range result.UVEUpdates {
		if _, err := p.uve.UVEUpdate(ctx, u); err != nil {
			return err
		}
	}
	for _, ex := range result.StatExtractions {
		if err := p.runStatExtraction(msg, ex); err != nil {
			return err
		}
	}
	for _, d := range result.UVEDeletes {
		if err := p.uve.UVEDelete(ctx, d); err != nil {
			return err
		}
	}

	for _, rec := range result.FlowRecords {
		if err := swallowTransient(p.store.FlowTableInsert(rec)); err != nil {
			return err
		}
	}
	for _, rec := range result.SessionRecords {
		if err := swallowTransient(p.store.SessionTableInsert(rec)); err != nil {
			return err
		}
	}

	if result.LogFieldNames != nil {
		p.store.LogFieldNamesInsert(msg, result.LogFieldNames)
	}

	return nil
}

func swallowTransient(err error) error {
	if err == nil || errs.KindOf(err) == errs.Transient {
		return nil
	}
	return err
}

// runStatExtraction pushes one stat-walker scope per list element of
// ex.Node, splitting each element's fields into tags (named by
// ex.Tags, a comma-separated list) and plain attributes, then flushes
// through the store writer.
func (p *Pipeline) runStatExtraction(msg model.SessionMessage, ex classify.StatExtraction) error {
	tagSet := make(map[string]bool)
	for _, name := range strings.Split(ex.Tags, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tagSet[name] = true
		}
	}

	w := statwalker.New(p.store.StatTableInsert, msg.Header.TimestampUs, ex.AttrName, nil)
	for _, item := range ex.Node.Children {
		tags := make(map[string]model.TagValue)
		attribs := make(map[string]any)
		for _, field := range item.Children {
			if tagSet[field.Name] {
				tags[field.Name] = model.StringTag(field.Text)
			} else {
				attribs[field.Name] = field.Text
			}
		}
		w.Push(item.Name, tags, attribs)
		if err := w.Pop(); err != nil {
			return err
		}
	}
	return nil
}

// Worker drains one Generator's storage queue and runs every dequeued
// message through a Pipeline.
type Worker struct {
	pipeline *Pipeline
	idleWait time.Duration
}

func NewWorker(pipeline *Pipeline) *Worker {
	return &Worker{pipeline: pipeline, idleWait: 10 * time.Millisecond}
}

// Run processes g's storage queue until ctx is cancelled, sleeping
// briefly between empty drains rather than busy-spinning.
func (w *Worker) Run(ctx context.Context, g *generator.Generator) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		v, ok := g.StorageQueue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.idleWait):
			}
			continue
		}

		msg, ok := v.(model.SessionMessage)
		if !ok {
			continue
		}
		if err := w.pipeline.Process(ctx, msg); err != nil {
			cclog.Errorf("[SESSION]> processing message from %s: %v", g.ID(), err)
		}
	}
}
