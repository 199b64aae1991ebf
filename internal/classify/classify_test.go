// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestClassifyObjectAnnotationsAccumulatePerTable(t *testing.T) {
	body := &model.Node{Children: []*model.Node{
		{Name: "a", Attrs: map[string]string{"key": "ObjectVNTable"}, Text: "vn1"},
		{Name: "b", Children: []*model.Node{
			{Name: "c", Attrs: map[string]string{"key": "ObjectVNTable"}, Text: "vn2"},
		}},
	}}
	msg := model.SessionMessage{
		Header: model.Header{Hints: model.KeyHint},
		Body:   body,
	}
	r := Classify(msg)
	require.Len(t, r.ObjectAnnotations, 1)
	require.Equal(t, "ObjectVNTable", r.ObjectAnnotations[0].Table)
	require.Equal(t, "vn1:vn2", r.ObjectAnnotations[0].BareKey)
}

func TestClassifyUVEUpdateAndDelete(t *testing.T) {
	object := &model.Node{
		Name: "UveVirtualNetwork",
		Children: []*model.Node{
			{Name: "name", Attrs: map[string]string{"key": "ObjectVNTable"}, Text: "default-domain:vn1"},
			{Name: "deleted", Attrs: map[string]string{"deleted": "true"}},
			{Name: "stats", Text: "some-stat-value"},
		},
	}
	data := &model.Node{Name: "data", Children: []*model.Node{object}}
	body := &model.Node{Children: []*model.Node{data}}

	msg := model.SessionMessage{
		Header: model.Header{
			Type: model.UVE, Source: "h1", Module: "m1", NodeType: "n1", InstanceId: "0", SeqNum: 3,
		},
		Body: body,
	}
	r := Classify(msg)
	require.Len(t, r.UVEUpdates, 1)
	require.Equal(t, "stats", r.UVEUpdates[0].AttrName)
	require.Equal(t, "ObjectVNTable", r.UVEUpdates[0].Key.Table)
	require.Equal(t, "default-domain:vn1", r.UVEUpdates[0].Key.BareKey)
	require.Len(t, r.UVEDeletes, 1)
}

func TestClassifyStatsAggTypeUsesTextPayload(t *testing.T) {
	object := &model.Node{
		Name: "UveIfStats",
		Children: []*model.Node{
			{Name: "name", Attrs: map[string]string{"key": "ObjectIfTable"}, Text: "eth0"},
			{Name: "counters", Attrs: map[string]string{"aggtype": "stats"}, Text: "raw-stat-body"},
		},
	}
	data := &model.Node{Name: "data", Children: []*model.Node{object}}
	body := &model.Node{Children: []*model.Node{data}}

	msg := model.SessionMessage{Header: model.Header{Type: model.UVE}, Body: body}
	r := Classify(msg)
	require.Len(t, r.UVEUpdates, 1)
	require.Equal(t, model.AggStats, r.UVEUpdates[0].AggType)
	require.Equal(t, []byte("raw-stat-body"), r.UVEUpdates[0].Payload)
}

func TestClassifyLogFieldNamesForSystemMessage(t *testing.T) {
	msg := model.SessionMessage{
		Header: model.Header{
			Type: model.System, MessageType: "SystemLog", Module: "vrouter", Source: "h1", Category: "cat1",
		},
	}
	r := Classify(msg)
	require.Equal(t, "SystemLog", r.LogFieldNames["Messagetype"])
	require.Equal(t, "cat1", r.LogFieldNames["Category"])
}

func TestClassifyExtractsFlowRecords(t *testing.T) {
	entry := &model.Node{Name: "FlowDataIpv4", Children: []*model.Node{
		{Name: "svn", Text: "vn-a"},
		{Name: "sip", Text: "10.0.0.1"},
		{Name: "dvn", Text: "vn-b"},
		{Name: "dip", Text: "10.0.0.2"},
		{Name: "protocol", Text: "6"},
		{Name: "sport", Text: "443"},
		{Name: "dport", Text: "51000"},
	}}
	flowdata := &model.Node{Name: "flowdata", Children: []*model.Node{entry}}
	body := &model.Node{Children: []*model.Node{flowdata}}

	msg := model.SessionMessage{
		Header: model.Header{Type: model.Flow, Source: "vrouter1", TimestampUs: 42},
		Body:   body,
	}
	r := Classify(msg)
	require.Len(t, r.FlowRecords, 1)
	rec := r.FlowRecords[0]
	require.Equal(t, "vn-a:10.0.0.1:vn-b:10.0.0.2:6:443:51000", rec.BareKey)
	require.Equal(t, 6, rec.Proto)
	require.Equal(t, 443, rec.Sport)
	require.Equal(t, "vrouter1", rec.Vrouter)
}

func TestClassifyExtractsSessionRecords(t *testing.T) {
	entry := &model.Node{Name: "SessionEndpoint", Children: []*model.Node{
		{Name: "svn", Text: "vn-a"},
	}}
	sessionData := &model.Node{Name: "session_data", Children: []*model.Node{entry}}
	body := &model.Node{Children: []*model.Node{sessionData}}

	msg := model.SessionMessage{Header: model.Header{Type: model.Session}, Body: body}
	r := Classify(msg)
	require.Len(t, r.SessionRecords, 1)
}

func TestClassifyIgnoresNonUVENonKeyMessages(t *testing.T) {
	msg := model.SessionMessage{Header: model.Header{Type: model.Log}}
	r := Classify(msg)
	require.Empty(t, r.ObjectAnnotations)
	require.Empty(t, r.UVEUpdates)
	require.Empty(t, r.LogFieldNames)
}
