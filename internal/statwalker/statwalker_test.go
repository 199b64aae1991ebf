// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package statwalker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestPushQualifiesTagAndAttribNames(t *testing.T) {
	var flushed []model.StatRecord
	w := New(func(rec model.StatRecord) error {
		flushed = append(flushed, rec)
		return nil
	}, 1000, "CpuStats", nil)

	w.Push("cpu_info", map[string]model.TagValue{"core": model.U64Tag(0)}, map[string]any{"usage": 42})
	require.NoError(t, w.Pop())

	require.Len(t, flushed, 1)
	rec := flushed[0]
	require.Equal(t, "cpu_info", rec.StatAttr)
	require.Contains(t, rec.Tags, "cpu_info.core")
	require.Contains(t, rec.Attribs, "cpu_info.usage")
}

func TestPopAssemblesStatAttrFromAncestorNames(t *testing.T) {
	var flushed model.StatRecord
	w := New(func(rec model.StatRecord) error {
		flushed = rec
		return nil
	}, 1000, "StatName", nil)

	w.Push("parent", nil, nil)
	w.Push("child", nil, map[string]any{"value": 1})
	require.NoError(t, w.Pop())

	require.Equal(t, "parent.child", flushed.StatAttr)
	require.Contains(t, flushed.Attribs, "parent.child.value")
}

func TestPopIncludesTopTagsAndAncestorTags(t *testing.T) {
	var flushed model.StatRecord
	topTags := map[string]model.TagValue{"source": model.StringTag("host1")}
	w := New(func(rec model.StatRecord) error {
		flushed = rec
		return nil
	}, 1000, "StatName", topTags)

	w.Push("parent", map[string]model.TagValue{"iface": model.StringTag("eth0")}, nil)
	w.Push("child", nil, map[string]any{"packets": 7})
	require.NoError(t, w.Pop())

	require.Contains(t, flushed.Tags, "source")
	require.Contains(t, flushed.Tags, "parent.iface")
}

func TestPopDuplicatesTagsAsAttribsUnderQualifiedNames(t *testing.T) {
	var flushed model.StatRecord
	topTags := map[string]model.TagValue{"iface": model.StringTag("seed")}
	w := New(func(rec model.StatRecord) error {
		flushed = rec
		return nil
	}, 1000, "StatName", topTags)

	w.Push("scope", map[string]model.TagValue{"iface": model.StringTag("scoped")}, nil)
	require.NoError(t, w.Pop())

	require.Contains(t, flushed.Attribs, "iface")
	require.Contains(t, flushed.Attribs, "scope.iface")
}

func TestPopLeavesOuterScopesIntactForFurtherChildren(t *testing.T) {
	var flushedAttrs []string
	w := New(func(rec model.StatRecord) error {
		flushedAttrs = append(flushedAttrs, rec.StatAttr)
		return nil
	}, 1000, "StatName", nil)

	w.Push("parent", nil, nil)
	w.Push("child1", nil, map[string]any{"v": 1})
	require.NoError(t, w.Pop())
	require.Equal(t, 1, w.Depth())

	w.Push("child2", nil, map[string]any{"v": 2})
	require.NoError(t, w.Pop())
	require.NoError(t, w.Pop())

	require.Equal(t, []string{"parent.child1", "parent.child2", "parent"}, flushedAttrs)
}

func TestPopOnEmptyStackPanics(t *testing.T) {
	w := New(func(model.StatRecord) error { return nil }, 1000, "StatName", nil)
	require.Panics(t, func() { _ = w.Pop() })
}

func TestPopPropagatesInsertError(t *testing.T) {
	w := New(func(model.StatRecord) error { return require.AnError }, 1000, "StatName", nil)
	w.Push("scope", nil, nil)
	require.Error(t, w.Pop())
}
