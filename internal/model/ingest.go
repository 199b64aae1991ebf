// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package model

// IngestState is a UDP ingest server's lifecycle state.
type IngestState int

const (
	IngestUninitialized IngestState = iota
	IngestOK
	IngestSocketOpenFailed
	IngestSocketBindFailed
)

func (s IngestState) String() string {
	switch s {
	case IngestUninitialized:
		return "UNINITIALIZED"
	case IngestOK:
		return "OK"
	case IngestSocketOpenFailed:
		return "SOCKET_OPEN_FAILED"
	case IngestSocketBindFailed:
		return "SOCKET_BIND_FAILED"
	default:
		return "UNKNOWN"
	}
}

// UnderlayFlowSample is one decoded sFlow/IPFIX flow record, already
// reduced to the 5-tuple + interface/VLAN fields the stat-sample shape
// needs. The UDP payload decode producing this value is delegated
// to an external library; the core only consumes the parsed structures.
type UnderlayFlowSample struct {
	SourceIP string // the exporting device's IP (sFlow agent / IPFIX observation point)
	Pifindex int    // physical interface index the sample was taken on

	Sip, Dip           string
	Protocol           int
	Sport, Dport       int
	VlanId             int
	TimestampUs        int64
}
