// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store implements the store writer (C2): column-family writes
// with TTL, partitioning, and watermark-driven drop level against a
// wide-column (Cassandra-family) backing store via gocql.
package store

import (
	"fmt"
	"sync/atomic"

	"github.com/flowvista/telemetry-collector/internal/config"
	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/queue"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Writer is the store-writer component. It owns the gocql session, the
// three kill-switches, the FieldNames dedup cache, and the three
// back-pressure sources whose max determines the effective drop
// severity.
type Writer struct {
	session cqlSession
	ttlMap  config.TTLMap

	disableAll    atomic.Bool
	disableStats  atomic.Bool
	disableMsgs   atomic.Bool

	writeQueue        *queue.Watermarked
	diskUsage         *queue.Gauge
	pendingCompaction *queue.Gauge

	fieldNames *fieldNameCache

	rowTimeShiftK    uint
	fieldCacheShiftC uint

	dropped atomic.Int64
}

// NewWriter constructs a Writer. writeQueue tracks in-flight write bytes
// (raised before and lowered after each write by InsertRow and
// execTracked themselves);
// diskUsage and pendingCompaction are externally fed gauges (a periodic
// poller Sets them from the underlying driver's metrics).
func NewWriter(session cqlSession, ttlMap config.TTLMap, rowTimeShiftK, fieldCacheShiftC uint) *Writer {
	w := &Writer{
		session:          session,
		ttlMap:           ttlMap,
		fieldNames:       newFieldNameCache(),
		rowTimeShiftK:    rowTimeShiftK,
		fieldCacheShiftC: fieldCacheShiftC,
	}
	w.writeQueue = queue.New([]queue.Mark{
		{Threshold: 50_000_000, Severity: model.SevWarn},
		{Threshold: 200_000_000, Severity: model.SevError},
	}, nil)
	w.diskUsage = queue.NewGauge([]queue.GaugeMark{
		{High: config.Keys.DiskUsageWatermarks.High, Low: config.Keys.DiskUsageWatermarks.Low, Severity: model.SevWarn},
	})
	w.pendingCompaction = queue.NewGauge([]queue.GaugeMark{
		{High: config.Keys.PendingCompactionWatermarks.High, Low: config.Keys.PendingCompactionWatermarks.Low, Severity: model.SevWarn},
	})
	return w
}

func (w *Writer) SetDisableAllWrites(v bool) { w.disableAll.Store(v) }
func (w *Writer) SetDisableStatisticsWrites(v bool) { w.disableStats.Store(v) }
func (w *Writer) SetDisableMessagesWrites(v bool) { w.disableMsgs.Store(v) }

func (w *Writer) SetDiskUsage(fraction float64) { w.diskUsage.Set(fraction) }
func (w *Writer) SetPendingCompactions(count float64) { w.pendingCompaction.Set(count) }

// DroppedCount returns the running total of writes shed by the drop
// policy, for the dropped_msg_stats counter family.
func (w *Writer) DroppedCount() int64 { return w.dropped.Load() }

// dropSeverity computes the effective drop severity as the max across
// the queue, disk-usage and pending-compaction sources.
func (w *Writer) dropSeverity() (model.Severity, bool) {
	var best model.Severity
	any := false
	consider := func(sev model.Severity, ok bool) {
		if ok && (!any || sev > best) {
			best, any = sev, true
		}
	}
	consider(w.writeQueue.DropLevel())
	consider(w.diskUsage.Level())
	consider(w.pendingCompaction.Level())
	return best, any
}

// shouldDrop reports whether a write at severity sev must be shed given
// the current effective drop level: everything at or below the drop
// level is shed, letting more severe messages through.
func (w *Writer) shouldDrop(sev model.Severity) bool {
	lvl, ok := w.dropSeverity()
	if !ok {
		return false
	}
	return sev <= lvl
}

// CreateTables idempotently creates every column family in the compiled
// schema list, then writes the system-object row if this is the
// first bring-up (its absence is exactly the "not yet initialised"
// signal the source checks for). Returns false on the first
// sub-failure ("fails fast").
func (w *Writer) CreateTables() bool {
	for _, t := range schemaTables {
		if err := w.session.Query(t.DDL).Exec(); err != nil {
			cclog.Errorf("[STORE]> CreateTables: %s: %v", t.Name, err)
			return false
		}
	}

	if w.alreadyInitialized() {
		return true
	}
	err := w.session.Query(
		fmt.Sprintf(`INSERT INTO %s (key, created_ts, flow_ttl, stats_ttl, config_audit_ttl, global_ttl) VALUES (?, ?, ?, ?, ?, ?)`, SystemObjectTable),
		"collector", nowUs(), w.ttlMap.Flow, w.ttlMap.Stats, w.ttlMap.ConfigAudit, w.ttlMap.Global,
	).Exec()
	if err != nil {
		cclog.Errorf("[STORE]> CreateTables: writing system object row: %v", err)
		return false
	}
	return true
}

// alreadyInitialized reports whether the system-object row already
// exists, the signal that this cluster has been bootstrapped before.
func (w *Writer) alreadyInitialized() bool {
	var key string
	err := w.session.Query(
		fmt.Sprintf("SELECT key FROM %s WHERE key = ?", SystemObjectTable),
		"collector",
	).Scan(&key)
	return err == nil && key == "collector"
}

// Init brings the writer up: on first_time=true it runs CreateTables;
// otherwise the declared tables are assumed to already exist, matching
// the source's "UseColumnFamily for each declared table" (gocql has no
// persistent column-family handle to re-acquire, so this is a no-op
// beyond the log line).
func (w *Writer) Init(firstTime bool) error {
	if firstTime {
		if !w.CreateTables() {
			return errs.New(errs.Transient, "store", fmt.Errorf("CreateTables failed"))
		}
		return nil
	}
	cclog.Infof("[STORE]> Init: reusing %d existing column families", len(schemaTables))
	return nil
}

// killSwitchErr returns a Transient error if the kill-switch applicable
// to class/table is set, nil otherwise.
func (w *Writer) killSwitchErr(class model.RowClass, table string) error {
	switch {
	case w.disableAll.Load():
		return errs.New(errs.Transient, "store", fmt.Errorf("disabled: disable_all_writes"))
	case w.disableStats.Load() && class == model.ClassStatsData:
		return errs.New(errs.Transient, "store", fmt.Errorf("disabled: disable_statistics_writes"))
	case w.disableMsgs.Load() && (table == CollectorGlobalTable || table == ObjectTable || table == ObjectValueTable):
		return errs.New(errs.Transient, "store", fmt.Errorf("disabled: disable_messages_writes"))
	default:
		return nil
	}
}

// execTracked runs a CQL statement through the write queue's
// back-pressure instrumentation, so every write path (generic InsertRow
// and the schema-aware table inserts alike) contributes to the same
// drop-level computation.
func (w *Writer) execTracked(weight int64, stmt string, args ...any) error {
	w.writeQueue.Enqueue(stmt, weight)
	err := w.session.Query(stmt, args...).Exec()
	w.writeQueue.Dequeue()
	if err != nil {
		return errs.New(errs.Transient, "store", err)
	}
	return nil
}

// InsertRow enqueues row for write at consistency c, invoking cb with the
// outcome. Returns an error immediately (without enqueuing) if a
// kill-switch is set. This is the generic primitive; the schema-aware
// table inserts do not call it and write through execTracked instead. It
// expresses the abstract
// (column_family, row_key, column_name, value, ttl) row as a single
// wide row per column family, for callers (and tests) that don't need
// one of the concrete per-table schemas.
func (w *Writer) InsertRow(row model.StoreRow, c Consistency, cb func(error)) error {
	if err := w.killSwitchErr(row.Class, row.ColumnFamily); err != nil {
		if cb != nil {
			cb(err)
		}
		return err
	}

	ttl := ttlFor(row.Class, w.ttlMap)
	stmt := fmt.Sprintf(
		"INSERT INTO %s (row_key, column_name, value) VALUES (?, ?, ?) USING TTL %d",
		row.ColumnFamily, ttl,
	)
	w.writeQueue.Enqueue(row, int64(len(row.Value)))
	err := w.session.Query(stmt, row.RowKey, row.ColumnName, row.Value).
		Consistency(c.toGocql()).Exec()
	w.writeQueue.Dequeue()
	if cb != nil {
		cb(err)
	}
	if err != nil {
		return errs.New(errs.Transient, "store", err)
	}
	return nil
}
