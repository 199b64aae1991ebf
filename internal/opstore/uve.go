// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

func uveHashKey(key model.UVEKey) string { return "uve:" + key.StorageKey() }
func seqHashKey(id model.GeneratorId) string { return "seq:" + id.String() }

// UpdateUVE writes one attribute value into the UVE's Redis hash and
// publishes the change on the inbound pub/sub channel, via a pipeline so
// both happen as one round trip. Returns a Transient error
// (counted by the caller as update_no_conn) when the To connection is
// down.
func (c *Client) UpdateUVE(ctx context.Context, key model.UVEKey, attrName string, payload []byte) error {
	if c.ToStatus() != model.StatusUp {
		return errs.New(errs.Transient, "opstore", fmt.Errorf("update_no_conn: To connection is %s", c.ToStatus()))
	}

	pipe := c.to.TxPipeline()
	pipe.HSet(ctx, uveHashKey(key), attrName, payload)
	pipe.Publish(ctx, analyticsChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.New(errs.Transient, "opstore", err)
	}
	return nil
}

// DeleteUVEAttr removes one attribute from a UVE's hash; if the hash
// becomes empty the UVE key itself is removed.
func (c *Client) DeleteUVEAttr(ctx context.Context, key model.UVEKey, attrName string) error {
	if c.ToStatus() != model.StatusUp {
		return errs.New(errs.Transient, "opstore", fmt.Errorf("update_no_conn: To connection is %s", c.ToStatus()))
	}
	hkey := uveHashKey(key)
	if err := c.to.HDel(ctx, hkey, attrName).Err(); err != nil {
		return errs.New(errs.Transient, "opstore", err)
	}
	n, err := c.to.HLen(ctx, hkey).Result()
	if err != nil {
		return errs.New(errs.Transient, "opstore", err)
	}
	if n == 0 {
		if err := c.to.Del(ctx, hkey).Err(); err != nil {
			return errs.New(errs.Transient, "opstore", err)
		}
	}
	return nil
}

// LastSequences implements the generator.SequenceProvider contract: a
// scripted read of the generator's {struct_type: seq} map from the
// operational store.
func (c *Client) LastSequences(id model.GeneratorId) (map[string]uint64, error) {
	ctx := context.Background()
	raw, err := c.to.HGetAll(ctx, seqHashKey(id)).Result()
	if err != nil {
		return nil, errs.New(errs.Transient, "opstore", err)
	}
	out := make(map[string]uint64, len(raw))
	for structType, v := range raw {
		n, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			continue
		}
		out[structType] = n
	}
	return out, nil
}

// RecordSequence persists the latest sequence number seen for
// (generator, struct_type), read back by a later LastSequences call.
func (c *Client) RecordSequence(ctx context.Context, id model.GeneratorId, structType string, seq uint64) error {
	if err := c.to.HSet(ctx, seqHashKey(id), structType, seq).Err(); err != nil {
		return errs.New(errs.Transient, "opstore", err)
	}
	return nil
}

// DeleteUVEs removes every UVE hash attributed to a Generator, invoked
// on session teardown. The original analytics daemon asserts success
// here and aborts the process on failure, admitting in a comment that
// "we need to restart the kafka topic" otherwise; this implementation
// instead surfaces the failure to the caller as a Transient error so
// the OnDisconnect path can decide whether to retry or escalate.
func (c *Client) DeleteUVEs(ctx context.Context, keys []model.UVEKey) error {
	if len(keys) == 0 {
		return nil
	}
	hkeys := make([]string, len(keys))
	for i, k := range keys {
		hkeys[i] = uveHashKey(k)
	}
	if err := c.to.Del(ctx, hkeys...).Err(); err != nil {
		cclog.Errorf("[OPSTORE]> DeleteUVEs: scripted delete failed for %d keys: %v", len(keys), err)
		return errs.New(errs.Transient, "opstore", err)
	}
	return nil
}
