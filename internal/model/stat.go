// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

// TagVariant is the type of a stat tag's value.
type TagVariant int

const (
	TagInvalid TagVariant = iota
	TagString
	TagU64
	TagDouble
)

// TagValue is a single typed tag value; exactly one of Str/U64/Dbl is
// meaningful, selected by Variant.
type TagValue struct {
	Variant TagVariant
	Str     string
	U64     uint64
	Dbl     float64
}

func StringTag(v string) TagValue  { return TagValue{Variant: TagString, Str: v} }
func U64Tag(v uint64) TagValue     { return TagValue{Variant: TagU64, U64: v} }
func DoubleTag(v float64) TagValue { return TagValue{Variant: TagDouble, Dbl: v} }

// StatRecord is what the stat walker (C11) flushes into the store writer
// (C2) via its injector function: a stat-table row in waiting. Tags
// holds the fully-qualified tag names accumulated along the walker's
// stack; Attribs holds every plain attribute, including the
// tags duplicated as attributes per the same section.
type StatRecord struct {
	StatName    string
	StatAttr    string
	TimestampUs int64
	Tags        map[string]TagValue
	Attribs     map[string]any
}
