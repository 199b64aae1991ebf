// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"github.com/flowvista/telemetry-collector/internal/config"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// Column-family names, kept bit-exact so the external query engine that
// reads this store can keep finding them by name
// (original_source/src/analytics/vizd_table_desc.cc names the same set
// of tables as compile-time constants; this is their Go-native
// equivalent).
const (
	CollectorGlobalTable = "COLLECTOR_GLOBAL_TABLE"

	MessageTableSource      = "MESSAGE_TABLE_SOURCE"
	MessageTableModuleId    = "MESSAGE_TABLE_MODULE_ID"
	MessageTableMessageType = "MESSAGE_TABLE_MESSAGE_TYPE"
	MessageTableCategory    = "MESSAGE_TABLE_CATEGORY"
	MessageTableTimestamp   = "MESSAGE_TABLE_TIMESTAMP"
	MessageTableKeyword     = "MESSAGE_TABLE_KEYWORD"

	ObjectTable      = "OBJECT_TABLE"
	ObjectValueTable = "OBJECT_VALUE_TABLE"
	SystemObjectTable = "SYSTEM_OBJECT_TABLE"

	FlowTable         = "FLOW_TABLE"
	FlowTableSvnSip   = "FLOW_TABLE_SVN_SIP"
	FlowTableDvnDip   = "FLOW_TABLE_DVN_DIP"
	FlowTableProtSp   = "FLOW_TABLE_PROT_SP"
	FlowTableProtDp   = "FLOW_TABLE_PROT_DP"
	FlowTableVrouter  = "FLOW_TABLE_VROUTER"

	SessionTable = "SESSION_TABLE"

	StatsTableByStrTag    = "STATS_TABLE_BY_STR_TAG"
	StatsTableByU64Tag    = "STATS_TABLE_BY_U64_TAG"
	StatsTableByDblTag    = "STATS_TABLE_BY_DBL_TAG"
	StatsTableByStrStrTag = "STATS_TABLE_BY_STR_STR_TAG"
	StatsTableByStrU64Tag = "STATS_TABLE_BY_STR_U64_TAG"
	StatsTableByU64StrTag = "STATS_TABLE_BY_U64_STR_TAG"
	StatsTableByU64U64Tag = "STATS_TABLE_BY_U64_U64_TAG"

	FieldNamesTable = "FIELD_NAMES_STATS_TABLE"
)

// MsgTableMaxObjectsPerMsg bounds the object-name secondary columns
// written per MessageTableInsert call.
const MsgTableMaxObjectsPerMsg = 6

// configAuditMessageType is the single sandesh_type value whose message
// table TTL is drawn from TTLMap.ConfigAudit instead of TTLMap.Global.
const configAuditMessageType = "CONFIG_DB_UVE_TABLE_LOG"

// tableDef is the minimal column-family descriptor the DDL generator
// needs: a name and its CQL create statement. Real partition-key/
// clustering-key shapes are listed here once so CreateTables and the
// write paths agree on them.
type tableDef struct {
	Name string
	DDL  string
}

// schemaTables is the compiled-in schema list CreateTables iterates.
// Every time-keyed table puts the T2 bucket in its partition key; where
// a table has a T1 column, T1 leads its clustering columns.
var schemaTables = []tableDef{
	{SystemObjectTable, `CREATE TABLE IF NOT EXISTS ` + SystemObjectTable + ` (
		key text PRIMARY KEY,
		created_ts bigint,
		flow_ttl int, stats_ttl int, config_audit_ttl int, global_ttl int
	)`},
	{CollectorGlobalTable, `CREATE TABLE IF NOT EXISTS ` + CollectorGlobalTable + ` (
		t2 bigint, partition tinyint, t1 bigint, uuid text,
		source text, type text, module text, object_names list<text>,
		value blob,
		PRIMARY KEY ((t2, partition), t1, uuid)
	)`},
	{MessageTableSource, `CREATE TABLE IF NOT EXISTS ` + MessageTableSource + ` (
		t2 bigint, source text, t1 bigint, uuid text,
		PRIMARY KEY ((t2, source), t1, uuid)
	)`},
	{MessageTableModuleId, `CREATE TABLE IF NOT EXISTS ` + MessageTableModuleId + ` (
		t2 bigint, module text, t1 bigint, uuid text,
		PRIMARY KEY ((t2, module), t1, uuid)
	)`},
	{MessageTableMessageType, `CREATE TABLE IF NOT EXISTS ` + MessageTableMessageType + ` (
		t2 bigint, type text, t1 bigint, uuid text,
		PRIMARY KEY ((t2, type), t1, uuid)
	)`},
	{MessageTableCategory, `CREATE TABLE IF NOT EXISTS ` + MessageTableCategory + ` (
		t2 bigint, category text, t1 bigint, uuid text,
		PRIMARY KEY ((t2, category), t1, uuid)
	)`},
	{MessageTableTimestamp, `CREATE TABLE IF NOT EXISTS ` + MessageTableTimestamp + ` (
		t2 bigint, t1 bigint, uuid text,
		PRIMARY KEY (t2, t1, uuid)
	)`},
	{MessageTableKeyword, `CREATE TABLE IF NOT EXISTS ` + MessageTableKeyword + ` (
		t2 bigint, keyword text, t1 bigint, uuid text,
		PRIMARY KEY ((t2, keyword), t1, uuid)
	)`},
	{ObjectTable, `CREATE TABLE IF NOT EXISTS ` + ObjectTable + ` (
		table_name text, t2 bigint, t1 bigint, bare_key text, uuid text,
		PRIMARY KEY ((table_name, t2), t1, bare_key)
	)`},
	{ObjectValueTable, `CREATE TABLE IF NOT EXISTS ` + ObjectValueTable + ` (
		t2 bigint, table_name text, t1 bigint, bare_key text,
		PRIMARY KEY ((t2, table_name), t1)
	)`},
	{FlowTable, `CREATE TABLE IF NOT EXISTS ` + FlowTable + ` (
		t2 bigint, partition tinyint, t1 bigint, flow_uuid text, value blob,
		PRIMARY KEY ((t2, partition), t1, flow_uuid)
	)`},
	{FlowTableSvnSip, `CREATE TABLE IF NOT EXISTS ` + FlowTableSvnSip + ` (
		t2 bigint, svn text, sip text, t1 bigint, flow_uuid text,
		PRIMARY KEY ((t2, svn, sip), t1, flow_uuid)
	)`},
	{FlowTableDvnDip, `CREATE TABLE IF NOT EXISTS ` + FlowTableDvnDip + ` (
		t2 bigint, dvn text, dip text, t1 bigint, flow_uuid text,
		PRIMARY KEY ((t2, dvn, dip), t1, flow_uuid)
	)`},
	{FlowTableProtSp, `CREATE TABLE IF NOT EXISTS ` + FlowTableProtSp + ` (
		t2 bigint, proto int, sport int, t1 bigint, flow_uuid text,
		PRIMARY KEY ((t2, proto, sport), t1, flow_uuid)
	)`},
	{FlowTableProtDp, `CREATE TABLE IF NOT EXISTS ` + FlowTableProtDp + ` (
		t2 bigint, proto int, dport int, t1 bigint, flow_uuid text,
		PRIMARY KEY ((t2, proto, dport), t1, flow_uuid)
	)`},
	{FlowTableVrouter, `CREATE TABLE IF NOT EXISTS ` + FlowTableVrouter + ` (
		t2 bigint, vrouter text, t1 bigint, flow_uuid text,
		PRIMARY KEY ((t2, vrouter), t1, flow_uuid)
	)`},
	{SessionTable, `CREATE TABLE IF NOT EXISTS ` + SessionTable + ` (
		t2 bigint, partition tinyint, t1 bigint, session_uuid text, value blob,
		PRIMARY KEY ((t2, partition), t1, session_uuid)
	)`},
	{StatsTableByStrTag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByStrTag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val text, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val), t1)
	)`},
	{StatsTableByU64Tag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByU64Tag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val bigint, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val), t1)
	)`},
	{StatsTableByDblTag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByDblTag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val double, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val), t1)
	)`},
	{StatsTableByStrStrTag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByStrStrTag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val text, tag_val2 text, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val, tag_val2), t1)
	)`},
	{StatsTableByStrU64Tag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByStrU64Tag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val text, tag_val2 bigint, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val, tag_val2), t1)
	)`},
	{StatsTableByU64StrTag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByU64StrTag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val bigint, tag_val2 text, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val, tag_val2), t1)
	)`},
	{StatsTableByU64U64Tag, `CREATE TABLE IF NOT EXISTS ` + StatsTableByU64U64Tag + ` (
		stat_name text, stat_attr text, t2 bigint, tag_val bigint, tag_val2 bigint, t1 bigint, value blob,
		PRIMARY KEY ((stat_name, stat_attr, t2, tag_val, tag_val2), t1)
	)`},
	{FieldNamesTable, `CREATE TABLE IF NOT EXISTS ` + FieldNamesTable + ` (
		table_name text, t2 bigint, field_name text, field_val text,
		PRIMARY KEY ((table_name, t2), field_name, field_val)
	)`},
}

// ttlFor picks the configured TTL, in seconds, for class.
func ttlFor(class model.RowClass, ttlMap config.TTLMap) int {
	switch class {
	case model.ClassFlowData:
		return ttlMap.Flow
	case model.ClassStatsData:
		return ttlMap.Stats
	case model.ClassConfigAudit:
		return ttlMap.ConfigAudit
	default:
		return ttlMap.Global
	}
}
