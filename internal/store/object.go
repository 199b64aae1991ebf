// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// ObjectTableInsert writes one row to OBJECT_TABLE (table_name, t2) / (t1,
// bare_key) → uuid, and its companion ObjectValueTable row, then considers
// writing FieldNames rows for the four object-identity fields so the UI
// can discover distinct object ids/types/modules/sources without a full
// table scan.
func (w *Writer) ObjectTableInsert(tableName string, msg model.SessionMessage, bareKey string) error {
	if err := w.killSwitchErr(model.ClassGlobal, ObjectTable); err != nil {
		return err
	}
	if w.shouldDrop(msg.Header.Severity) {
		w.dropped.Add(1)
		return errs.New(errs.Transient, "store", fmt.Errorf("dropped at severity %v", msg.Header.Severity))
	}

	t2, t1 := SplitTime(msg.Header.TimestampUs, w.rowTimeShiftK)
	uuidStr := newRowUUID()

	objStmt := fmt.Sprintf(
		`INSERT INTO %s (table_name, t2, t1, bare_key, uuid) VALUES (?, ?, ?, ?, ?) USING TTL %d`,
		ObjectTable, ttlFor(model.ClassGlobal, w.ttlMap),
	)
	if err := w.execTracked(int64(len(bareKey)), objStmt, tableName, t2, t1, bareKey, uuidStr); err != nil {
		return err
	}

	valStmt := fmt.Sprintf(
		`INSERT INTO %s (t2, table_name, t1, bare_key) VALUES (?, ?, ?, ?) USING TTL %d`,
		ObjectValueTable, ttlFor(model.ClassGlobal, w.ttlMap),
	)
	if err := w.execTracked(int64(len(bareKey)), valStmt, t2, tableName, t1, bareKey); err != nil {
		return err
	}

	w.writeObjectFieldNames(tableName, bareKey, t2, msg)
	return nil
}

// writeObjectFieldNames considers a FieldNames row for each of the four
// object-identity fields (object id/type/module/source), suppressed by
// the epoch-scoped dedup cache for signatures already seen.
// Failures here are logged and swallowed: a missed FieldNames row never
// fails the primary write it rides along with.
func (w *Writer) writeObjectFieldNames(tableName, bareKey string, t2 int64, msg model.SessionMessage) {
	epoch := CacheEpoch(t2, w.fieldCacheShiftC)
	fields := map[string]string{
		"ObjectId": bareKey,
		"Source":   msg.Header.Source,
		"ModuleId": msg.Header.Module,
		"Messagetype": msg.Header.MessageType,
	}
	for fieldName, fieldVal := range fields {
		if fieldVal == "" {
			continue
		}
		w.maybeWriteFieldName(tableName, epoch, t2, fieldName, fieldVal)
	}
}

// LogFieldNamesInsert writes a FieldNames row for each entry in fields
// (the classifier's SYSTEM/SYSLOG LogFieldNames result), keyed under
// msg's message type rather than an object table name, since these
// messages carry no object annotation of their own.
func (w *Writer) LogFieldNamesInsert(msg model.SessionMessage, fields map[string]string) {
	t2, _ := SplitTime(msg.Header.TimestampUs, w.rowTimeShiftK)
	epoch := CacheEpoch(t2, w.fieldCacheShiftC)
	for fieldName, fieldVal := range fields {
		if fieldVal == "" {
			continue
		}
		w.maybeWriteFieldName(msg.Header.MessageType, epoch, t2, fieldName, fieldVal)
	}
}

// maybeWriteFieldName writes (table_name, t2, field_name, field_val) to
// FIELD_NAMES_STATS_TABLE unless the cache already saw this signature in
// the current epoch.
func (w *Writer) maybeWriteFieldName(tableName string, epoch, t2 int64, fieldName, fieldVal string) {
	signature := fieldName + "=" + fieldVal
	if w.fieldNames.seenOrRecord(epoch, tableName+":"+signature) {
		return
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s (table_name, t2, field_name, field_val) VALUES (?, ?, ?, ?) USING TTL %d`,
		FieldNamesTable, ttlFor(model.ClassGlobal, w.ttlMap),
	)
	if err := w.execTracked(int64(len(fieldVal)), stmt, tableName, t2, fieldName, fieldVal); err != nil {
		cclog.Errorf("[STORE]> FieldNames write for %s.%s: %v", tableName, fieldName, err)
	}
}
