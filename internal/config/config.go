// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the collector core's process configuration:
// pub/sub bus, operational KV store, wide-column store endpoints, TTLs,
// kill-switches, back-pressure watermarks and auxiliary ingest ports.
// Keys is populated once at startup by Init and is read-only
// thereafter; nothing in this module mutates it after Init returns.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// WatermarkPair is a (high, low) threshold pair for a back-pressure
// source (disk usage or pending compactions).
type WatermarkPair struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// TTLMap holds the per-row-class TTL, in seconds, used by the store
// writer.
type TTLMap struct {
	Flow        int `json:"flow"`
	Stats       int `json:"stats"`
	ConfigAudit int `json:"config_audit"`
	Global      int `json:"global"`
}

// Config is the full process configuration, decoded from a JSON file.
type Config struct {
	Partitions int                 `json:"partitions"`
	AggConf    map[string][]string `json:"aggconf"`

	Brokers     string `json:"brokers"`
	KafkaPrefix string `json:"kafka_prefix"`

	RedisUveEndpoint string `json:"redis_uve_endpoint"`
	RedisPassword    string `json:"redis_password"`

	CassandraEndpoints []string `json:"cassandra_endpoints"`
	CassandraUser      string   `json:"cassandra_user"`
	CassandraPassword  string   `json:"cassandra_password"`

	TTLMap TTLMap `json:"ttl_map"`

	DisableAllWrites       bool `json:"disable_all_writes"`
	DisableStatisticsWrites bool `json:"disable_statistics_writes"`
	DisableMessagesWrites  bool `json:"disable_messages_writes"`

	DiskUsageWatermarks          WatermarkPair `json:"disk_usage_watermarks"`
	PendingCompactionWatermarks  WatermarkPair `json:"pending_compaction_watermarks"`

	StructuredSyslogPort int `json:"structured_syslog_port"`
	SflowPort            int `json:"sflow_port"`
	IpfixPort            int `json:"ipfix_port"`
	ProtobufPort         int `json:"protobuf_port"`

	// ListenAddr is the bind address shared by every UDP ingest server.
	ListenAddr string `json:"listen_addr"`
	// MetricsAddr is where the Prometheus /metrics handler listens.
	MetricsAddr string `json:"metrics_addr"`

	// User/Group are dropped into after every privileged port is bound.
	User  string `json:"user"`
	Group string `json:"group"`

	// RowTimeShiftK is the system constant `k` from the T2/T1 row-time
	// split: T2 = T >> k, T1 = T & ((1<<k)-1).
	RowTimeShiftK uint `json:"row_time_shift_k"`
	// FieldCacheShiftC is the system constant `c` used to derive the
	// FieldName cache epoch: cache_epoch = T2 >> c.
	FieldCacheShiftC uint `json:"field_cache_shift_c"`
	// CommitPeriodSeconds is decoded but not read anywhere: the
	// aggregation consumer commits on its own fixed one-hour period.
	CommitPeriodSeconds int `json:"commit_period_seconds"`
}

// Keys holds the process-wide configuration once Init has run. The
// values below are the defaults used when the config file omits a key.
var Keys = Config{
	Partitions:          4,
	KafkaPrefix:         "analytics",
	TTLMap: TTLMap{
		Flow:        86400,
		Stats:       86400 * 7,
		ConfigAudit: 86400 * 30,
		Global:      86400 * 3,
	},
	DiskUsageWatermarks:         WatermarkPair{High: 0.9, Low: 0.7},
	PendingCompactionWatermarks: WatermarkPair{High: 200, Low: 50},
	StructuredSyslogPort:        5140,
	SflowPort:                   6343,
	IpfixPort:                   4739,
	ProtobufPort:                8089,
	ListenAddr:                  "0.0.0.0",
	MetricsAddr:                 ":8090",
	RowTimeShiftK:               32,
	FieldCacheShiftC:            10,
	CommitPeriodSeconds:         3600,
}

// Init loads and validates the process configuration from flagConfigFile.
// A missing file is not an error (defaults above are used); a malformed
// or schema-invalid file aborts startup.
func Init(flagConfigFile string) {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			cclog.Fatalf("[CONFIG]> reading %s: %v", flagConfigFile, err)
		}
		return
	}

	Validate(configSchema, raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		cclog.Fatalf("[CONFIG]> decoding %s: %v", flagConfigFile, err)
	}

	if len(Keys.CassandraEndpoints) == 0 {
		cclog.Fatal("[CONFIG]> at least one cassandra endpoint is required")
	}
}
