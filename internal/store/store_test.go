// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"strings"
	"sync"
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/config"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// fakeSession is an in-memory cqlSession: it records every statement and
// its arguments, and lets a test script canned Scan results or errors for
// specific statement substrings.
type fakeSession struct {
	mu         sync.Mutex
	execs      []fakeCall
	scanResult map[string][]any // substring -> Scan destination values
	execErr    map[string]error
	closed     bool
}

type fakeCall struct {
	stmt string
	args []interface{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		scanResult: make(map[string][]any),
		execErr:    make(map[string]error),
	}
}

func (f *fakeSession) Query(stmt string, args ...interface{}) cqlQuery {
	return &fakeQuery{s: f, stmt: stmt, args: args}
}
func (f *fakeSession) Close() { f.closed = true }

type fakeQuery struct {
	s    *fakeSession
	stmt string
	args []interface{}
}

func (q *fakeQuery) Exec() error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.execs = append(q.s.execs, fakeCall{q.stmt, q.args})
	for substr, err := range q.s.execErr {
		if strings.Contains(q.stmt, substr) {
			return err
		}
	}
	return nil
}

func (q *fakeQuery) Scan(dest ...interface{}) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for substr, vals := range q.s.scanResult {
		if strings.Contains(q.stmt, substr) {
			for i, v := range vals {
				if i >= len(dest) {
					break
				}
				if sp, ok := dest[i].(*string); ok {
					if sv, ok := v.(string); ok {
						*sp = sv
					}
				}
			}
			return nil
		}
	}
	return gocql.ErrNotFound
}

func (q *fakeQuery) Consistency(gocql.Consistency) cqlQuery { return q }

func testTTLMap() config.TTLMap {
	return config.TTLMap{Flow: 100, Stats: 200, ConfigAudit: 300, Global: 400}
}

func TestCreateTablesBootstrapsSystemRowOnce(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	require.True(t, w.CreateTables())

	var sawSystemInsert bool
	for _, c := range fs.execs {
		if strings.Contains(c.stmt, SystemObjectTable) && strings.Contains(c.stmt, "INSERT") {
			sawSystemInsert = true
		}
	}
	require.True(t, sawSystemInsert)
}

func TestCreateTablesSkipsBootstrapWhenAlreadyInitialized(t *testing.T) {
	fs := newFakeSession()
	fs.scanResult["SELECT key FROM "+SystemObjectTable] = []any{"collector"}
	w := NewWriter(fs, testTTLMap(), 32, 10)

	require.True(t, w.CreateTables())

	for _, c := range fs.execs {
		require.False(t, strings.Contains(c.stmt, SystemObjectTable) && strings.Contains(c.stmt, "INSERT"))
	}
}

func TestMessageTableInsertTruncatesObjectNames(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	msg := model.SessionMessage{
		Header: model.Header{
			Source: "a", Module: "m", MessageType: "SomeType",
			Severity: model.SevInfo, Type: model.Log, TimestampUs: 1_000_000,
		},
		Raw: []byte("<msg/>"),
	}
	names := []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7", "o8"}
	require.NoError(t, w.MessageTableInsert(msg, names))
	require.EqualValues(t, 2, w.DroppedCount())

	found := false
	for _, c := range fs.execs {
		if strings.Contains(c.stmt, CollectorGlobalTable) && strings.Contains(c.stmt, "INSERT") {
			found = true
			objNames, ok := c.args[7].([]string)
			require.True(t, ok)
			require.Len(t, objNames, MsgTableMaxObjectsPerMsg)
			require.Equal(t, "T2:o6", objNames[5])
		}
	}
	require.True(t, found)
}

func TestMessageTableInsertHonoursDisableAllWrites(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)
	w.SetDisableAllWrites(true)

	msg := model.SessionMessage{
		Header: model.Header{Severity: model.SevInfo, Type: model.Log, TimestampUs: 1},
		Raw:    []byte("x"),
	}
	err := w.MessageTableInsert(msg, nil)
	require.Error(t, err)
	require.Empty(t, fs.execs)
}

func TestObjectTableInsertWritesFieldNamesOnce(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	msg := model.SessionMessage{
		Header: model.Header{
			Source: "src1", Module: "mod1", MessageType: "UveVirtualNetwork",
			Severity: model.SevInfo, TimestampUs: 5_000_000,
		},
	}
	require.NoError(t, w.ObjectTableInsert("ObjectVNTable", msg, "default-domain:vn1"))
	firstCount := countFieldNameWrites(fs)
	require.Greater(t, firstCount, 0)

	require.NoError(t, w.ObjectTableInsert("ObjectVNTable", msg, "default-domain:vn1"))
	secondCount := countFieldNameWrites(fs)
	require.Equal(t, firstCount, secondCount, "second call must be fully deduped within the same epoch")
}

func countFieldNameWrites(fs *fakeSession) int {
	n := 0
	for _, c := range fs.execs {
		if strings.Contains(c.stmt, FieldNamesTable) && strings.Contains(c.stmt, "INSERT") {
			n++
		}
	}
	return n
}

func TestStatTableInsertDispatchesByTagVariant(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	rec := model.StatRecord{
		StatName: "UveIfStats", StatAttr: "if_stats", TimestampUs: 1_000_000,
		Tags: map[string]model.TagValue{
			"name":  model.StringTag("eth0"),
			"index": model.U64Tag(7),
		},
		Attribs: map[string]any{"rx": 100, "tx": 200},
	}
	require.NoError(t, w.StatTableInsert(rec))

	found := false
	for _, c := range fs.execs {
		if strings.Contains(c.stmt, StatsTableByU64StrTag) {
			found = true
		}
	}
	require.True(t, found)
}

func TestStatTableInsertRejectsUnsupportedVariant(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	rec := model.StatRecord{
		StatName: "Bad", StatAttr: "x", TimestampUs: 1,
		Tags: map[string]model.TagValue{
			"a": model.DoubleTag(1.5),
			"b": model.DoubleTag(2.5),
		},
	}
	require.Error(t, w.StatTableInsert(rec))
}

func TestFlowTableInsertWritesIndexProjections(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)

	rec := model.FlowRecord{
		BareKey: "flow-1", TimestampUs: 1_000_000,
		Svn: "default-domain:svn", Sip: "10.0.0.1",
		Dvn: "default-domain:dvn", Dip: "10.0.0.2",
		Proto: 6, Sport: 443, Dport: 12345,
		Vrouter: "vrouter-1", Value: []byte("flowdata"),
	}
	require.NoError(t, w.FlowTableInsert(rec))

	seen := map[string]bool{}
	for _, c := range fs.execs {
		for _, tbl := range []string{FlowTable, FlowTableSvnSip, FlowTableDvnDip, FlowTableProtSp, FlowTableProtDp, FlowTableVrouter} {
			if strings.Contains(c.stmt, tbl) && strings.Contains(c.stmt, "INSERT") {
				seen[tbl] = true
			}
		}
	}
	require.Len(t, seen, 6)
}

func TestFlowTableInsertUnconditionallyDroppedAtRed(t *testing.T) {
	fs := newFakeSession()
	w := NewWriter(fs, testTTLMap(), 32, 10)
	w.writeQueue.Enqueue("backlog", 300_000_000) // pushes past the Error mark

	rec := model.FlowRecord{BareKey: "f", TimestampUs: 1, Value: []byte("x")}
	err := w.FlowTableInsert(rec)
	require.Error(t, err)
}
