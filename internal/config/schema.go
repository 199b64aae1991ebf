// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema validates the process configuration's option table
// before it is decoded into Keys, following internal/memorystore's
// pattern of an embedded JSON Schema string compiled with
// santhosh-tekuri/jsonschema.
var configSchema = `
	{
  "type": "object",
  "properties": {
    "partitions": {
      "description": "Number of raw UVE partitions / topics.",
      "type": "integer",
      "minimum": 1
    },
    "aggconf": {
      "description": "Mapping of attribute-stream name to aggregation-type list.",
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": { "type": "string" }
      }
    },
    "brokers": {
      "description": "Pub/sub bootstrap endpoint.",
      "type": "string"
    },
    "kafka_prefix": {
      "description": "Topic-name prefix. Accepted but not applied: the raw UVE topic name is fixed and aggregation topics use their configured names unchanged.",
      "type": "string"
    },
    "redis_uve_endpoint": {
      "description": "Operational KV store address.",
      "type": "string"
    },
    "redis_password": {
      "description": "Optional AUTH secret for the operational KV store.",
      "type": "string"
    },
    "cassandra_endpoints": {
      "description": "Wide-column store endpoints.",
      "type": "array",
      "items": { "type": "string" }
    },
    "cassandra_user": { "type": "string" },
    "cassandra_password": { "type": "string" },
    "ttl_map": {
      "description": "Per-class TTLs in seconds.",
      "type": "object",
      "properties": {
        "flow": { "type": "integer" },
        "stats": { "type": "integer" },
        "config_audit": { "type": "integer" },
        "global": { "type": "integer" }
      }
    },
    "disable_all_writes": { "type": "boolean" },
    "disable_statistics_writes": { "type": "boolean" },
    "disable_messages_writes": { "type": "boolean" },
    "disk_usage_watermarks": {
      "type": "object",
      "properties": {
        "high": { "type": "number" },
        "low": { "type": "number" }
      }
    },
    "pending_compaction_watermarks": {
      "type": "object",
      "properties": {
        "high": { "type": "integer" },
        "low": { "type": "integer" }
      }
    },
    "structured_syslog_port": { "type": "integer" },
    "sflow_port": { "type": "integer" },
    "ipfix_port": { "type": "integer" },
    "protobuf_port": { "type": "integer" },
    "listen_addr": { "type": "string" },
    "metrics_addr": { "type": "string" },
    "user": { "type": "string" },
    "group": { "type": "string" },
    "row_time_shift_k": { "type": "integer" },
    "field_cache_shift_c": { "type": "integer" },
    "commit_period_seconds": { "type": "integer" }
  },
  "required": ["cassandra_endpoints", "redis_uve_endpoint", "brokers"]
	}`
