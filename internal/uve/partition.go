// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package uve

import "github.com/flowvista/telemetry-collector/internal/model"

// PartitionMap implements the static (part_type, total_partitions) →
// (base, count) function. Below 15 partitions every part_type maps onto
// the full (0, total_partitions) range rather than a dedicated band,
// since five bands cannot be meaningfully split any smaller. At or above
// 15, the exact per-namespace split isn't pinned down elsewhere, so this
// divides total_partitions into five contiguous, evenly sized bands in
// PartType declaration order (cnodes, pnodes, vms, ifs, other), with any
// remainder folded into the last band. Recorded as an Open Question
// decision in DESIGN.md.
func PartitionMap(partType model.PartType, totalPartitions int) (base, count int) {
	if totalPartitions <= 0 {
		return 0, 0
	}
	if totalPartitions < 15 {
		return 0, totalPartitions
	}
	bands := 5
	band := totalPartitions / bands
	if band == 0 {
		band = 1
	}
	idx := int(partType)
	base = idx * band
	if base >= totalPartitions {
		base = totalPartitions - 1
	}
	count = band
	if idx == bands-1 || base+count > totalPartitions {
		count = totalPartitions - base
	}
	return base, count
}

// djbHash is Bernstein's hash, the source's chosen non-cryptographic
// string hash for UVE key → partition assignment.
func djbHash(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + uint32(s[i])
	}
	return h
}

// Partition computes the final partition for a UVE key:
// partition_base(part_type) + djb_hash(uve_key) mod partition_count.
func Partition(partType model.PartType, uveKey string, totalPartitions int) int {
	base, count := PartitionMap(partType, totalPartitions)
	if count <= 0 {
		return base
	}
	return base + int(djbHash(uveKey)%uint32(count))
}
