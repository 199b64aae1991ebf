// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ipfix implements the ingest.Decoder for IPFIX/NetFlow v9
// datagrams on top of netsampler/goflow2/v2's NetFlow decoder, driven by
// the v9/IPFIX library via callbacks new_source, new_msg,
// export_trecord, export_drecord. Decoder keeps those four call sites
// as named methods so the control flow mirrors the source library's
// callback-driven shape even though goflow2 surfaces the decoded
// message as a single parsed value rather than a callback stream:
// Decode replays it through newSource/newMsg/exportTemplateRecord/
// exportDataRecord in the same order the original library would have
// invoked them.
package ipfix

import (
	"bytes"
	"sync"

	"github.com/netsampler/goflow2/v2/decoders/netflow"

	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

// Standard IPFIX information-element numbers the IPFIX spec names.
const (
	ieProtocolIdentifier       = 4
	ieSourceIPv4Address        = 8
	ieDestinationIPv4Address   = 12
	ieSourceTransportPort      = 7
	ieDestinationTransportPort = 11
	ieIngressInterface         = 10
	ieVlanId                   = 58
)

// Decoder adapts goflow2's netflow.DecodeMessage to ingest.Decoder,
// keeping one template cache per exporter (source IP) the way IPFIX
// requires: data records are meaningless until the matching template
// record for their set ID has been seen from that same source.
type Decoder struct {
	mu        sync.Mutex
	templates map[string]netflow.NetFlowTemplateSystem
}

func New() *Decoder {
	return &Decoder{templates: make(map[string]netflow.NetFlowTemplateSystem)}
}

func (d *Decoder) templateSystemFor(sourceIP string) netflow.NetFlowTemplateSystem {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts, ok := d.templates[sourceIP]
	if !ok {
		ts = netflow.CreateTemplateSystem()
		d.templates[sourceIP] = ts
	}
	return ts
}

// Decode parses one IPFIX/NetFlow v9 message and, for IPFIX, returns one
// model.UnderlayFlowSample per data record that resolves to a complete
// 5-tuple. A NetFlow v9 message is parsed (its templates are learned)
// but yields no samples: newMsg walks IPFIX packets only. Template-only
// messages (no data records yet) return no samples and no error: that
// is the normal steady state right after new_source.
func (d *Decoder) Decode(payload []byte, sourceIP string) ([]model.UnderlayFlowSample, error) {
	d.newSource(sourceIP)

	msg, err := netflow.DecodeMessage(bytes.NewReader(payload), d.templateSystemFor(sourceIP))
	if err != nil {
		return nil, errs.New(errs.Malformed, "ingest.ipfix", err)
	}
	return d.newMsg(msg, sourceIP), nil
}

// newSource is invoked once per exporter before decode; goflow2 tracks
// template state itself once templateSystemFor has created an entry, so
// this call site exists to mirror the source's explicit callback rather
// than to do further bookkeeping.
func (d *Decoder) newSource(sourceIP string) {
	d.templateSystemFor(sourceIP)
}

// newMsg walks one decoded message's flow sets, dispatching template
// sets to exportTemplateRecord (no-op: goflow2 already folded the
// template into the template system) and data sets to
// exportDataRecord.
func (d *Decoder) newMsg(msg any, sourceIP string) []model.UnderlayFlowSample {
	packet, ok := msg.(netflow.IPFIXPacket)
	if !ok {
		return nil
	}

	var out []model.UnderlayFlowSample
	for _, rawSet := range packet.FlowSets {
		switch set := rawSet.(type) {
		case netflow.TemplateFlowSet, netflow.IPFIXOptionsTemplateFlowSet:
			d.exportTemplateRecord(set)
		case netflow.DataFlowSet:
			for _, rec := range set.Records {
				if sample, ok := d.exportDataRecord(rec, sourceIP); ok {
					out = append(out, sample)
				}
			}
		}
	}
	return out
}

// exportTemplateRecord is the template-set call site; template learning
// itself already happened inside netflow.DecodeMessage.
func (d *Decoder) exportTemplateRecord(any) {}

// exportDataRecord converts one decoded data record into the stat
// sample shape by the IE numbers the IPFIX spec names.
func (d *Decoder) exportDataRecord(rec netflow.DataRecord, sourceIP string) (model.UnderlayFlowSample, bool) {
	fields := make(map[uint16]netflow.DataField, len(rec.Values))
	for _, f := range rec.Values {
		fields[f.Type] = f
	}

	sip, sipOK := ipFieldString(fields[ieSourceIPv4Address])
	dip, dipOK := ipFieldString(fields[ieDestinationIPv4Address])
	if !sipOK || !dipOK {
		return model.UnderlayFlowSample{}, false
	}

	return model.UnderlayFlowSample{
		SourceIP: sourceIP,
		Pifindex: int(uintField(fields[ieIngressInterface])),
		Sip:      sip,
		Dip:      dip,
		Protocol: int(uintField(fields[ieProtocolIdentifier])),
		Sport:    int(uintField(fields[ieSourceTransportPort])),
		Dport:    int(uintField(fields[ieDestinationTransportPort])),
		VlanId:   int(uintField(fields[ieVlanId])),
	}, true
}

func ipFieldString(f netflow.DataField) (string, bool) {
	b, ok := f.Value.([]byte)
	if !ok || len(b) == 0 {
		return "", false
	}
	return netflow.FormatIP(b), true
}

func uintField(f netflow.DataField) uint64 {
	b, ok := f.Value.([]byte)
	if !ok {
		return 0
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
