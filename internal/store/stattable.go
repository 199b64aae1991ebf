// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// StatTableInsert dispatches a flushed stat record (C11's injector
// payload) to one of the seven stat-table shapes by tag-variant
// combination/(str,
// u64)/(u64,str)/(u64,u64)). Tag names are sorted so a record with two
// tags always maps its first tag alphabetically to tag_val, the second
// to tag_val2 — the tag map carries no inherent order, so this is the
// deterministic tie-break. Unsupported combinations (0 tags, 3+ tags,
// or a double paired with anything) fail the write.
func (w *Writer) StatTableInsert(rec model.StatRecord) error {
	if err := w.killSwitchErr(model.ClassStatsData, StatsTableByStrTag); err != nil {
		return err
	}

	names := make([]string, 0, len(rec.Tags))
	for name := range rec.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	value, err := json.Marshal(rec.Attribs)
	if err != nil {
		return errs.New(errs.Malformed, "store", fmt.Errorf("marshal attribs for %s.%s: %w", rec.StatName, rec.StatAttr, err))
	}

	t2, t1 := SplitTime(rec.TimestampUs, w.rowTimeShiftK)

	switch len(names) {
	case 1:
		return w.statInsertOneTag(rec, names[0], t2, t1, value)
	case 2:
		return w.statInsertTwoTags(rec, names[0], names[1], t2, t1, value)
	default:
		return errs.New(errs.Malformed, "store", fmt.Errorf("unsupported tag count %d for %s.%s", len(names), rec.StatName, rec.StatAttr))
	}
}

func (w *Writer) statInsertOneTag(rec model.StatRecord, tagName string, t2, t1 int64, value []byte) error {
	tag := rec.Tags[tagName]
	var table string
	var tagArg any
	switch tag.Variant {
	case model.TagString:
		table, tagArg = StatsTableByStrTag, tag.Str
	case model.TagU64:
		table, tagArg = StatsTableByU64Tag, tag.U64
	case model.TagDouble:
		table, tagArg = StatsTableByDblTag, tag.Dbl
	default:
		return errs.New(errs.Malformed, "store", fmt.Errorf("invalid tag variant for %s.%s", rec.StatName, rec.StatAttr))
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (stat_name, stat_attr, t2, tag_val, t1, value) VALUES (?, ?, ?, ?, ?, ?) USING TTL %d`,
		table, ttlFor(model.ClassStatsData, w.ttlMap),
	)
	return w.execTracked(int64(len(value)), stmt, rec.StatName, rec.StatAttr, t2, tagArg, t1, value)
}

func (w *Writer) statInsertTwoTags(rec model.StatRecord, firstName, secondName string, t2, t1 int64, value []byte) error {
	first, second := rec.Tags[firstName], rec.Tags[secondName]
	if first.Variant == model.TagDouble || second.Variant == model.TagDouble ||
		first.Variant == model.TagInvalid || second.Variant == model.TagInvalid {
		return errs.New(errs.Malformed, "store", fmt.Errorf("unsupported two-tag variant combination for %s.%s", rec.StatName, rec.StatAttr))
	}

	var table string
	var arg1, arg2 any
	switch {
	case first.Variant == model.TagString && second.Variant == model.TagString:
		table, arg1, arg2 = StatsTableByStrStrTag, first.Str, second.Str
	case first.Variant == model.TagString && second.Variant == model.TagU64:
		table, arg1, arg2 = StatsTableByStrU64Tag, first.Str, second.U64
	case first.Variant == model.TagU64 && second.Variant == model.TagString:
		table, arg1, arg2 = StatsTableByU64StrTag, first.U64, second.Str
	case first.Variant == model.TagU64 && second.Variant == model.TagU64:
		table, arg1, arg2 = StatsTableByU64U64Tag, first.U64, second.U64
	default:
		return errs.New(errs.Malformed, "store", fmt.Errorf("unsupported two-tag variant combination for %s.%s", rec.StatName, rec.StatAttr))
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (stat_name, stat_attr, t2, tag_val, tag_val2, t1, value) VALUES (?, ?, ?, ?, ?, ?, ?) USING TTL %d`,
		table, ttlFor(model.ClassStatsData, w.ttlMap),
	)
	return w.execTracked(int64(len(value)), stmt, rec.StatName, rec.StatAttr, t2, arg1, arg2, t1, value)
}
