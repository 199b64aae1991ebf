// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classify implements the message classifier (C5): a pure
// function over a typed message tree that produces a storage action set
// and a UVE action set, with no I/O of its own. Grounded on
// original_source/src/analytics/ruleeng.cc's handle_object_log (the
// recursive key="" annotation walk) and its UVE-processing block in
// Ruleeng::RuleWorker/BuildAttrUVE, re-expressed as a data-in/data-out
// function rather than a DB-handler-driven visitor.
package classify

import (
	"strconv"
	"strings"

	"github.com/flowvista/telemetry-collector/internal/model"
)

// ObjectAnnotation is one distinct (table, bare_key) pair discovered by
// the recursive key="" walk. Values for the same table
// found at different nodes are concatenated with ":" (ruleeng.cc's
// keymap accumulation).
type ObjectAnnotation struct {
	Table   string
	BareKey string
}

// UVEUpdateAction is one UVEUpdate(...) call to make against C6.
type UVEUpdateAction struct {
	StructType  string
	AttrName    string
	Generator   model.GeneratorId
	Key         model.UVEKey
	Payload     []byte
	SeqNum      uint64
	AggType     model.AggType
	HistogramBin string
	TimestampUs int64
}

// UVEDeleteAction is one UVEDelete(...) call.
type UVEDeleteAction struct {
	StructType  string
	Generator   model.GeneratorId
	Key         model.UVEKey
	SeqNum      uint64
}

// StatExtraction is a child node flagged for C11 stat extraction. The classifier only identifies the candidate; running
// the walker and emitting StatTableInsert calls is C4's job, since it
// needs the live stat walker instance.
type StatExtraction struct {
	AttrName string
	Tags     string
	Node     *model.Node
}

// Result is the full action set the classifier derives from one message.
type Result struct {
	ObjectAnnotations []ObjectAnnotation
	UVEUpdates        []UVEUpdateAction
	UVEDeletes        []UVEDeleteAction
	StatExtractions   []StatExtraction
	LogFieldNames     map[string]string // SYSTEM/SYSLOG field names
	FlowRecords       []model.FlowRecord
	SessionRecords    []model.SessionRecord
}

// Classify derives the full action set for msg. It performs no I/O: the
// caller (C4) is responsible for turning each action into the
// corresponding C2/C6/C11 call.
func Classify(msg model.SessionMessage) Result {
	var r Result

	if msg.Header.HasKeyHint() && msg.Body != nil {
		r.ObjectAnnotations = walkObjectAnnotations(msg.Body)
	}

	if msg.Header.Type == model.UVE && msg.Body != nil {
		r.UVEUpdates, r.UVEDeletes, r.StatExtractions = classifyUVE(msg)
	}

	if msg.Header.Type == model.System || msg.Header.Type == model.Syslog {
		r.LogFieldNames = logFieldNames(msg)
	}

	if msg.Header.Type == model.Flow && msg.Body != nil {
		r.FlowRecords = extractFlowRecords(msg)
	}
	if msg.Header.Type == model.Session && msg.Body != nil {
		r.SessionRecords = extractSessionRecords(msg)
	}

	return r
}

// extractFlowRecords handles flow messages: a "flowdata" child whose
// own children are one FlowRecord
// each.
func extractFlowRecords(msg model.SessionMessage) []model.FlowRecord {
	list := findChild(msg.Body, "flowdata")
	if list == nil {
		return nil
	}
	out := make([]model.FlowRecord, 0, len(list.Children))
	for _, entry := range list.Children {
		rec := model.FlowRecord{
			BareKey:     flowBareKey(entry),
			TimestampUs: msg.Header.TimestampUs,
			Svn:         childText(entry, "svn"),
			Sip:         childText(entry, "sip"),
			Dvn:         childText(entry, "dvn"),
			Dip:         childText(entry, "dip"),
			Proto:       atoiOr(childText(entry, "protocol"), 0),
			Sport:       atoiOr(childText(entry, "sport"), 0),
			Dport:       atoiOr(childText(entry, "dport"), 0),
			Vrouter:     msg.Header.Source,
			Value:       encodeAttrSubtree(entry),
		}
		out = append(out, rec)
	}
	return out
}

// extractSessionRecords handles session messages, walking the
// "<session_data>" list nodes.
func extractSessionRecords(msg model.SessionMessage) []model.SessionRecord {
	list := findChild(msg.Body, "session_data")
	if list == nil {
		return nil
	}
	out := make([]model.SessionRecord, 0, len(list.Children))
	for _, entry := range list.Children {
		out = append(out, model.SessionRecord{
			BareKey:     flowBareKey(entry),
			TimestampUs: msg.Header.TimestampUs,
			Value:       encodeAttrSubtree(entry),
		})
	}
	return out
}

// flowBareKey concatenates an entry's svn/sip/dvn/dip/protocol/sport/
// dport fields into the bare key that seeds the partition hash for both
// the primary row and its index projections.
func flowBareKey(entry *model.Node) string {
	fields := []string{"svn", "sip", "dvn", "dip", "protocol", "sport", "dport"}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, childText(entry, f))
	}
	return strings.Join(parts, ":")
}

func childText(n *model.Node, name string) string {
	if c := findChild(n, name); c != nil {
		return c.Text
	}
	return ""
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// walkObjectAnnotations recursively walks body for key="<table>" nodes,
// accumulating bare-key values per distinct table (ruleeng.cc's
// handle_object_log: a map keyed by table name, values joined with ":"
// on repeat).
func walkObjectAnnotations(body *model.Node) []ObjectAnnotation {
	keymap := make(map[string]string)
	order := make([]string, 0)
	var walk func(n *model.Node)
	walk = func(n *model.Node) {
		if table, ok := n.Attr("key"); ok && table != "" {
			if existing, seen := keymap[table]; seen {
				keymap[table] = existing + ":" + n.Text
			} else {
				keymap[table] = n.Text
				order = append(order, table)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, c := range body.Children {
		walk(c)
	}

	out := make([]ObjectAnnotation, 0, len(order))
	for _, table := range order {
		out = append(out, ObjectAnnotation{Table: table, BareKey: keymap[table]})
	}
	return out
}

// classifyUVE locates the body's data subnode and its single typed
// child ("object"), collects key=""-annotated children into
// barekey/table, then walks object's attribute children.
func classifyUVE(msg model.SessionMessage) ([]UVEUpdateAction, []UVEDeleteAction, []StatExtraction) {
	data := findChild(msg.Body, "data")
	if data == nil || len(data.Children) == 0 {
		return nil, nil, nil
	}
	object := data.Children[0]

	table, bareKey := extractKeyFields(object)
	if table == "" {
		return nil, nil, nil
	}
	uveKey := model.UVEKey{StructType: object.Name, Table: table, BareKey: bareKey}
	gen := msg.GeneratorId()

	var updates []UVEUpdateAction
	var extractions []StatExtraction
	deleted := false

	for _, attr := range object.Children {
		if v, ok := attr.Attr("deleted"); ok && v == "true" {
			deleted = true
			continue
		}
		if _, isKey := attr.Attr("key"); isKey {
			continue
		}
		if attr.Text == "" && len(attr.Children) == 0 {
			continue
		}

		aggType := model.AggType("None")
		if v, ok := attr.Attr("aggtype"); ok && v != "" {
			aggType = model.AggType(v)
		}

		var payload []byte
		if aggType == model.AggStats {
			payload = []byte(attr.Text)
		} else {
			payload = encodeAttrSubtree(attr)
		}

		if tags, ok := attr.Attr("tags"); ok && tags != "" && isListOfStructs(attr) {
			extractions = append(extractions, StatExtraction{AttrName: attr.Name, Tags: tags, Node: attr})
		}

		hbin, _ := attr.Attr("hbin")
		updates = append(updates, UVEUpdateAction{
			StructType:   object.Name,
			AttrName:     attr.Name,
			Generator:    gen,
			Key:          uveKey,
			Payload:      payload,
			SeqNum:       uint64(msg.Header.SeqNum),
			AggType:      aggType,
			HistogramBin: hbin,
			TimestampUs:  msg.Header.TimestampUs,
		})
	}

	var deletes []UVEDeleteAction
	if deleted {
		deletes = append(deletes, UVEDeleteAction{
			StructType: object.Name,
			Generator:  gen,
			Key:        uveKey,
			SeqNum:     uint64(msg.Header.SeqNum),
		})
	}

	return updates, deletes, extractions
}

// extractKeyFields collects all key=""-annotated children of object: the
// first child's key="" attribute value becomes the table name, and every
// such child's text value concatenates into barekey.
func extractKeyFields(object *model.Node) (table, bareKey string) {
	var textParts []string
	for _, c := range object.Children {
		if v, ok := c.Attr("key"); ok {
			if table == "" {
				table = v
			}
			textParts = append(textParts, c.Text)
		}
	}
	return table, strings.Join(textParts, ":")
}

// isListOfStructs reports whether attr's children are themselves structs
// with further children, the shape C11's stat extraction expects.
func isListOfStructs(attr *model.Node) bool {
	if len(attr.Children) == 0 {
		return false
	}
	for _, c := range attr.Children {
		if len(c.Children) == 0 {
			return false
		}
	}
	return true
}

// encodeAttrSubtree renders attr's XML-ish subtree as the payload bytes
// written through to the UVE path. Out of scope is the original wire
// codec; this emits a flat field=value encoding sufficient
// for the JSON object the operational store and pub/sub publish.
func encodeAttrSubtree(attr *model.Node) []byte {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	var walk func(n *model.Node)
	walk = func(n *model.Node) {
		for _, c := range n.Children {
			if !first {
				b.WriteByte(',')
			}
			first = false
			b.WriteByte('"')
			b.WriteString(c.Name)
			b.WriteString(`":"`)
			b.WriteString(c.Text)
			b.WriteByte('"')
		}
	}
	walk(attr)
	b.WriteByte('}')
	return []byte(b.String())
}

func findChild(n *model.Node, name string) *model.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// logFieldNames handles SYSTEM/SYSLOG messages, emitting FieldNames
// entries for message type, module, source, and category (if present).
func logFieldNames(msg model.SessionMessage) map[string]string {
	out := map[string]string{
		"Messagetype": msg.Header.MessageType,
		"ModuleId":    msg.Header.Module,
		"Source":      msg.Header.Source,
	}
	if msg.Header.Category != "" {
		out["Category"] = msg.Header.Category
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}
