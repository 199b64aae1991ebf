// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model declares the wire-level and storage-level entities
// shared across the collector core: GeneratorId, SessionMessage, UVEKey,
// UVEAttr, and the StoreRow abstraction, as described in the data model.
package model

import "fmt"

// SandeshType classifies an incoming message the way the session receive
// path and the classifier branch on it.
type SandeshType int

const (
	Log SandeshType = iota
	Object
	UVE
	Flow
	Session
	Syslog
	System
)

func (t SandeshType) String() string {
	switch t {
	case Log:
		return "log"
	case Object:
		return "object"
	case UVE:
		return "uve"
	case Flow:
		return "flow"
	case Session:
		return "session"
	case Syslog:
		return "syslog"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// Severity orders message severities; drop decisions compare a message's
// severity against a computed drop level.
type Severity int

const (
	SevDebug Severity = iota
	SevInfo
	SevNotice
	SevWarn
	SevError
	SevCritical
)

// KeyHint marks that a header carries the KEY_HINT bit.
const KeyHint = 1 << 0

// GeneratorId is the four-tuple identity of a producer process. It is
// never mutated once constructed and is used as a map key verbatim, so
// all four fields must be non-empty for the id to be usable as a
// registry key (enforced by the caller: an empty instance_id or
// node_type is an error).
type GeneratorId struct {
	Source     string
	Module     string
	NodeType   string
	InstanceId string
}

func (g GeneratorId) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", g.Source, g.Module, g.NodeType, g.InstanceId)
}

func (g GeneratorId) Valid() bool {
	return g.Source != "" && g.Module != "" && g.NodeType != "" && g.InstanceId != ""
}

// Node is a generic typed-tree node for a message body. The real wire
// envelope parser (out of scope) hands the core one of these; Attrs
// holds XML-ish attributes (e.g. "key", "aggtype", "tags", "deleted")
// and Children its nested nodes. Text is the node's text value, used
// when a child carries its payload as text rather than as a subtree
// (the aggtype=stats case).
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

func (n *Node) Attr(name string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// Header is the envelope header carried by every SessionMessage.
type Header struct {
	Source     string
	Module     string
	InstanceId string
	NodeType   string
	Category   string
	Severity   Severity
	Type       SandeshType
	// MessageType is the wire-level sandesh struct name (e.g.
	// "UveVirtualNetworkAgent", "CONFIG_DB_UVE_TABLE_LOG"), distinct
	// from the coarse Type classification above.
	MessageType string
	TimestampUs int64
	SeqNum     uint32
	Pid        int32
	IP         string
	Hints      uint32
}

func (h Header) HasKeyHint() bool { return h.Hints&KeyHint != 0 }

// SessionMessage is the opaque wire envelope plus header and typed body.
// GeneratorId is derived from the header for convenience.
type SessionMessage struct {
	Header Header
	Body   *Node
	Raw    []byte // the raw XML-ish body, stored verbatim by MessageTableInsert
}

func (m SessionMessage) GeneratorId() GeneratorId {
	return GeneratorId{
		Source:     m.Header.Source,
		Module:     m.Header.Module,
		NodeType:   m.Header.NodeType,
		InstanceId: m.Header.InstanceId,
	}
}

// UVEKey identifies one UVE: a struct type, a table and a bare key. The
// storage key is "table:bare_key".
type UVEKey struct {
	StructType string
	Table      string
	BareKey    string
}

func (k UVEKey) StorageKey() string {
	return k.Table + ":" + k.BareKey
}

// AggType is the aggregation tag carried by a UVE attribute.
type AggType string

const (
	AggNone  AggType = "None"
	AggStats AggType = "stats"
)

// UVEAttr is one (uve_key, attr_name) payload plus metadata.
type UVEAttr struct {
	Key      UVEKey
	AttrName string
	Payload  []byte // encoded JSON-like value
	AggType  AggType
	HistogramBin string // optional
	Deleted  bool
	Source   string
	Module   string
	NodeType string
	InstanceId string
	SeqNum   uint64
	TimestampUs int64
}

// FlowRecord is one flow-record row plus the index fields the store
// writer fans out to the five flow-index column families (by SVN, by
// (DVN,DIP), by (proto,sport), by (proto,dport), by vrouter). BareKey
// seeds the partition hash for FlowTable and the index tables alike.
type FlowRecord struct {
	BareKey     string
	TimestampUs int64
	Svn, Sip    string
	Dvn, Dip    string
	Proto       int
	Sport, Dport int
	Vrouter     string
	Value       []byte
}

// SessionRecord is one session-record row; the session CF
// carries no secondary index tables, only the primary row.
type SessionRecord struct {
	BareKey     string
	TimestampUs int64
	Value       []byte
}

// RowClass picks a TTL bucket for a StoreRow.
type RowClass int

const (
	ClassGlobal RowClass = iota
	ClassFlowData
	ClassStatsData
	ClassConfigAudit
)

// StoreRow is the abstract row the store writer inserts.
type StoreRow struct {
	ColumnFamily string
	RowKey       []byte
	ColumnName   []byte
	Value        []byte
	Class        RowClass
}

// PartType enumerates UVE key namespaces used by the partition map.
type PartType int

const (
	PartCNodes PartType = iota
	PartPNodes
	PartVMs
	PartIfs
	PartOther
)

// ConnKind/ConnRole identify a logical peer for ConnectionState.
type ConnKind int

const (
	ConnCassandra ConnKind = iota
	ConnRedis
	ConnKafka
	ConnGenerator
)

type ConnRole int

const (
	RoleClient ConnRole = iota
	RoleServer
)

type ConnStatus int

const (
	StatusInit ConnStatus = iota
	StatusUp
	StatusDown
)

func (s ConnStatus) String() string {
	switch s {
	case StatusInit:
		return "INIT"
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}
