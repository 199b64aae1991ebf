// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"crypto/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// SplitTime implements the T2/T1 row-time split: given a 64-bit µs
// timestamp, T2 = T >> k is the coarse row-key bucket and T1 = T &
// ((1<<k)-1) is the fine column-key ordinal within that bucket.
func SplitTime(tsUs int64, k uint) (t2, t1 int64) {
	t2 = tsUs >> k
	t1 = tsUs & ((int64(1) << k) - 1)
	return t2, t1
}

// CacheEpoch derives the FieldName cache epoch from a T2 bucket:
// cache_epoch = T2 >> c.
func CacheEpoch(t2 int64, c uint) int64 {
	return t2 >> c
}

// randomPartitionByte distributes message-table writes uniformly across
// partitions.2 "Row-key partitioning for the message CF uses a
// uniformly random byte per call".
func randomPartitionByte() byte {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return b[0]
}

// partitionFromKey derives the flow/session-row partition byte from a
// hash of the bare key, reusing the xxhash already pulled in by the
// operational-store client for rendezvous hashing.
func partitionFromKey(key string) byte {
	return byte(xxhash.Sum64String(key) % 256)
}

// newRowUUID is the per-row uuid used as part of the message/flow/
// session column-name tuples so that concurrent writers to the same
// (t2, partition) row never collide.
func newRowUUID() string {
	return uuid.NewString()
}
