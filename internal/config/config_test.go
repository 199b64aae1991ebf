// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	Init(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Equal(t, 4, Keys.Partitions)
	require.Equal(t, uint(32), Keys.RowTimeShiftK)
}

func TestInitDecodesFile(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"partitions": 8,
		"brokers": "localhost:9092",
		"kafka_prefix": "coll",
		"redis_uve_endpoint": "localhost:6379",
		"cassandra_endpoints": ["localhost:9042"],
		"row_time_shift_k": 24,
		"field_cache_shift_c": 8
	}`
	require.NoError(t, os.WriteFile(fp, []byte(raw), 0o644))

	Init(fp)
	require.Equal(t, 8, Keys.Partitions)
	require.Equal(t, "localhost:9092", Keys.Brokers)
	require.Equal(t, []string{"localhost:9042"}, Keys.CassandraEndpoints)
	require.Equal(t, uint(24), Keys.RowTimeShiftK)
	require.Equal(t, uint(8), Keys.FieldCacheShiftC)
}
