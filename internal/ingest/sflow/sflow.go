// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sflow implements the ingest.Decoder for sFlow datagrams on top
// of netsampler/goflow2/v2's sFlow wire decoder ("for each flow
// sample with an IP-header record, produce one stat sample with tags
// {name=source_ip, pifindex}, {sip}, {dip}, {protocol, sport},
// {protocol, dport}"). The core never parses the sFlow XDR framing
// itself; it only walks the decoded sample tree goflow2 returns.
package sflow

import (
	"bytes"

	"github.com/netsampler/goflow2/v2/decoders/sflow"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// Decoder adapts goflow2's sflow.DecodeMessage to ingest.Decoder.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

// Decode parses one sFlow UDP payload and returns one
// model.UnderlayFlowSample per flow sample that carries a raw IP header
// record. Samples without a parseable IP-header record (counter samples,
// non-IP raw headers) are skipped, not errored.
func (d *Decoder) Decode(payload []byte, sourceIP string) ([]model.UnderlayFlowSample, error) {
	packet, err := sflow.DecodeMessage(bytes.NewReader(payload))
	if err != nil {
		return nil, errs.New(errs.Malformed, "ingest.sflow", err)
	}

	msg, ok := packet.(sflow.Packet)
	if !ok {
		return nil, errs.New(errs.Malformed, "ingest.sflow", nil)
	}

	var out []model.UnderlayFlowSample
	for _, rawSample := range msg.Samples {
		fs, ok := rawSample.(sflow.FlowSample)
		if !ok {
			continue
		}
		for _, rawRecord := range fs.Records {
			sample, ok := ipSampleFromRecord(rawRecord, sourceIP, int(fs.Header.InputIf))
			if ok {
				out = append(out, sample)
			}
		}
	}
	return out, nil
}

func ipSampleFromRecord(rawRecord any, sourceIP string, pifindex int) (model.UnderlayFlowSample, bool) {
	switch rec := rawRecord.(type) {
	case sflow.SampledIPv4:
		return model.UnderlayFlowSample{
			SourceIP: sourceIP,
			Pifindex: pifindex,
			Sip:      rec.Base.SrcIP.String(),
			Dip:      rec.Base.DstIP.String(),
			Protocol: int(rec.Base.Protocol),
			Sport:    int(rec.Base.SrcPort),
			Dport:    int(rec.Base.DstPort),
		}, true
	case sflow.SampledIPv6:
		return model.UnderlayFlowSample{
			SourceIP: sourceIP,
			Pifindex: pifindex,
			Sip:      rec.Base.SrcIP.String(),
			Dip:      rec.Base.DstIP.String(),
			Protocol: int(rec.Base.Protocol),
			Sport:    int(rec.Base.SrcPort),
			Dport:    int(rec.Base.DstPort),
		}, true
	default:
		return model.UnderlayFlowSample{}, false
	}
}
