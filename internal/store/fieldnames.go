// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import "sync"

// fieldNameCache is the process-wide "at most once per epoch" dedup
// set: a set of (cache_epoch, field_signature) pairs, cleared wholesale
// whenever the epoch advances. Follows pkg/lrucache.Cache's locking
// shape (a single mutex guarding a map), simplified because this set
// needs no per-entry TTL or LRU eviction: the whole generation is
// invalidated at once on epoch advance.
type fieldNameCache struct {
	mu    sync.Mutex
	epoch int64
	seen  map[string]struct{}
}

func newFieldNameCache() *fieldNameCache {
	return &fieldNameCache{seen: make(map[string]struct{})}
}

// seenOrRecord reports whether (epoch, signature) was already recorded.
// If the epoch has advanced since the last call, the set is cleared
// first. The pair is recorded as a side effect when
// not already present, so a single call both checks and records.
func (c *fieldNameCache) seenOrRecord(epoch int64, signature string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch > c.epoch {
		c.epoch = epoch
		c.seen = make(map[string]struct{})
	} else if epoch < c.epoch {
		// A late message timestamped before the current epoch still
		// gets its own (possibly duplicate) row; it addresses an
		// epoch we've already moved past so cannot be deduplicated
		// against the current generation.
		return false
	}

	if _, ok := c.seen[signature]; ok {
		return true
	}
	c.seen[signature] = struct{}{}
	return false
}
