// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package statwalker implements the stat walker (C11): a higher-level
// interface over the store writer's StatTableInsert that lets a caller
// build up nested stat structures one scope at a time instead of
// flattening them up front. Grounded on
// original_source/src/analytics/stat_walker.cc/.h, re-expressed without
// the original's tag-prefix composite feature.
package statwalker

import (
	"strings"

	"github.com/flowvista/telemetry-collector/internal/model"
)

// InsertFn is the injector the walker flushes a completed scope through
// (C2's StatTableInsert, or a test double).
type InsertFn func(rec model.StatRecord) error

// node is one pushed scope awaiting Pop.
type node struct {
	name    string
	tags    map[string]model.TagValue // already fully-qualified
	attribs map[string]any            // already fully-qualified
}

// Walker is a stack of nested stat scopes for a single stat name.
// It is not safe for concurrent use; callers own one Walker per message
// being processed.
type Walker struct {
	insert      InsertFn
	timestampUs int64
	statName    string
	topTags     map[string]model.TagValue
	nodes       []node
}

// New constructs a Walker that will flush via insert, stamping every
// flushed record with timestampUs and statName. topTags are the
// record's seed tags, included in every Pop regardless of nesting depth.
func New(insert InsertFn, timestampUs int64, statName string, topTags map[string]model.TagValue) *Walker {
	return &Walker{
		insert:      insert,
		timestampUs: timestampUs,
		statName:    statName,
		topTags:     topTags,
	}
}

// Push adds a new scope named name below the current stack top. tags and
// attribs use local (unqualified) names; Push rewrites them to
// "<ancestor1>.<ancestor2>...<name>.<key>" using the ancestor names
// already on the stack.9.
func (w *Walker) Push(name string, tags map[string]model.TagValue, attribs map[string]any) {
	prename := w.currentPrefix()
	if prename != "" {
		prename += "."
	}
	prename += name

	qualifiedTags := make(map[string]model.TagValue, len(tags))
	for k, v := range tags {
		qualifiedTags[prename+"."+k] = v
	}
	qualifiedAttribs := make(map[string]any, len(attribs))
	for k, v := range attribs {
		qualifiedAttribs[prename+"."+k] = v
	}

	w.nodes = append(w.nodes, node{name: name, tags: qualifiedTags, attribs: qualifiedAttribs})
}

// Pop flushes the current (deepest) scope: StatAttr is the dotted path
// of ancestor names down to the popped scope, Tags is the union of
// topTags and every tag accumulated along the stack, and Attribs is the
// popped scope's own attributes plus every tag duplicated as a plain
// attribute (last-write-wins on name collision.9).
func (w *Walker) Pop() error {
	if len(w.nodes) == 0 {
		panic("statwalker: Pop called on an empty stack")
	}

	statAttr := w.currentPrefix()

	attribs := make(map[string]any, len(w.nodes[len(w.nodes)-1].attribs))
	for k, v := range w.nodes[len(w.nodes)-1].attribs {
		attribs[k] = v
	}

	tags := make(map[string]model.TagValue)
	for k, v := range w.topTags {
		tags[k] = v
	}
	for _, n := range w.nodes {
		for k, v := range n.tags {
			tags[k] = v
		}
	}
	for k, v := range tags {
		attribs[k] = tagValueAsAny(v)
	}

	rec := model.StatRecord{
		StatName:    w.statName,
		StatAttr:    statAttr,
		TimestampUs: w.timestampUs,
		Tags:        tags,
		Attribs:     attribs,
	}

	w.nodes = w.nodes[:len(w.nodes)-1]

	if w.insert == nil {
		return nil
	}
	return w.insert(rec)
}

// Depth reports how many scopes are currently pushed.
func (w *Walker) Depth() int { return len(w.nodes) }

func (w *Walker) currentPrefix() string {
	names := make([]string, 0, len(w.nodes))
	for _, n := range w.nodes {
		names = append(names, n.name)
	}
	return strings.Join(names, ".")
}

func tagValueAsAny(v model.TagValue) any {
	switch v.Variant {
	case model.TagString:
		return v.Str
	case model.TagU64:
		return v.U64
	case model.TagDouble:
		return v.Dbl
	default:
		return nil
	}
}
