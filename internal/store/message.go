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

// blank is the explicit filler for unused object-name slots.
const blank = "BLANK"

// MessageTableInsert writes one row to the global message table. Row key
// is (T2, random partition byte); column name is (T1, uuid) followed by
// up to MsgTableMaxObjectsPerMsg object names (prefixed "T2:" per the
// source's secondary-attribute shape), each slot padded with blank when
// unset; value is the raw XML-ish body.
func (w *Writer) MessageTableInsert(msg model.SessionMessage, objectNames []string) error {
	if err := w.killSwitchErr(classForMessageType(msg.Header.MessageType), CollectorGlobalTable); err != nil {
		return err
	}
	if w.messageDropped(msg) {
		return errs.New(errs.Transient, "store", fmt.Errorf("dropped at severity %v", msg.Header.Severity))
	}

	t2, t1 := SplitTime(msg.Header.TimestampUs, w.rowTimeShiftK)
	partition := randomPartitionByte()
	uuidStr := newRowUUID()

	objs, truncated := truncateObjectNames(objectNames)
	if truncated > 0 {
		w.dropped.Add(int64(truncated))
	}

	stmt := fmt.Sprintf(`INSERT INTO %s
		(t2, partition, t1, uuid, source, type, module, object_names, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) USING TTL %d`,
		CollectorGlobalTable, ttlFor(classForMessageType(msg.Header.MessageType), w.ttlMap))

	return w.execTracked(int64(len(msg.Raw)), stmt,
		t2, int8(partition), t1, uuidStr,
		msg.Header.Source, msg.Header.MessageType, msg.Header.Module, objs, msg.Raw)
}

// classForMessageType implements "a specific config-audit type gets
// CONFIGAUDIT_TTL; all others get GLOBAL_TTL".
func classForMessageType(messageType string) model.RowClass {
	if messageType == configAuditMessageType {
		return model.ClassConfigAudit
	}
	return model.ClassGlobal
}

// truncateObjectNames keeps the first MsgTableMaxObjectsPerMsg object
// names with a "T2:" column-name prefix, padding unset slots with
// blank and reporting how many were dropped.
func truncateObjectNames(names []string) (padded []string, droppedCount int) {
	kept := names
	if len(kept) > MsgTableMaxObjectsPerMsg {
		droppedCount = len(kept) - MsgTableMaxObjectsPerMsg
		kept = kept[:MsgTableMaxObjectsPerMsg]
	}
	padded = make([]string, MsgTableMaxObjectsPerMsg)
	for i := range padded {
		if i < len(kept) && kept[i] != "" {
			padded[i] = "T2:" + kept[i]
		} else {
			padded[i] = blank
		}
	}
	return padded, droppedCount
}

// messageDropped applies the drop check specific to the message-table
// path: session type flow is unconditionally dropped when red,
// system/object/uve/session honour the computed severity, all
// others bypass the check.
func (w *Writer) messageDropped(msg model.SessionMessage) bool {
	switch msg.Header.Type {
	case model.Flow:
		if lvl, ok := w.dropSeverity(); ok && lvl >= model.SevError {
			w.dropped.Add(1)
			return true
		}
		return false
	case model.System, model.Object, model.UVE, model.Session:
		if w.shouldDrop(msg.Header.Severity) {
			w.dropped.Add(1)
			return true
		}
		return false
	default:
		return false
	}
}
