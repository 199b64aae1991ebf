// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/classify"
	"github.com/flowvista/telemetry-collector/internal/errs"
	"github.com/flowvista/telemetry-collector/internal/model"
)

type fakeStore struct {
	messageCalls []string
	objectCalls  []string
	flowCalls    int
	sessionCalls int
	statCalls    []model.StatRecord
	logFields    map[string]string

	messageErr error
	objectErr  error
}

func (f *fakeStore) MessageTableInsert(msg model.SessionMessage, objectNames []string) error {
	f.messageCalls = append(f.messageCalls, objectNames...)
	return f.messageErr
}

func (f *fakeStore) ObjectTableInsert(tableName string, msg model.SessionMessage, bareKey string) error {
	f.objectCalls = append(f.objectCalls, tableName+":"+bareKey)
	return f.objectErr
}

func (f *fakeStore) FlowTableInsert(rec model.FlowRecord) error {
	f.flowCalls++
	return nil
}

func (f *fakeStore) SessionTableInsert(rec model.SessionRecord) error {
	f.sessionCalls++
	return nil
}

func (f *fakeStore) StatTableInsert(rec model.StatRecord) error {
	f.statCalls = append(f.statCalls, rec)
	return nil
}

func (f *fakeStore) LogFieldNamesInsert(msg model.SessionMessage, fields map[string]string) {
	f.logFields = fields
}

type fakeUVE struct {
	updates []classify.UVEUpdateAction
	deletes []classify.UVEDeleteAction
	updateErr error
}

func (f *fakeUVE) UVEUpdate(ctx context.Context, action classify.UVEUpdateAction) (bool, error) {
	f.updates = append(f.updates, action)
	return true, f.updateErr
}

func (f *fakeUVE) UVEDelete(ctx context.Context, action classify.UVEDeleteAction) error {
	f.deletes = append(f.deletes, action)
	return nil
}

func TestProcessWritesMessageAndObjectRows(t *testing.T) {
	store := &fakeStore{}
	uve := &fakeUVE{}
	p := New(store, uve)

	body := &model.Node{Children: []*model.Node{
		{Name: "a", Attrs: map[string]string{"key": "ObjectVNTable"}, Text: "vn1"},
	}}
	msg := model.SessionMessage{Header: model.Header{Hints: model.KeyHint}, Body: body}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Equal(t, []string{"ObjectVNTable:vn1"}, store.messageCalls)
	require.Equal(t, []string{"ObjectVNTable:vn1"}, store.objectCalls)
}

func TestProcessSwallowsTransientStoreErrors(t *testing.T) {
	store := &fakeStore{messageErr: errs.New(errs.Transient, "store", fmt.Errorf("dropped"))}
	uve := &fakeUVE{}
	p := New(store, uve)

	msg := model.SessionMessage{Header: model.Header{}}
	require.NoError(t, p.Process(context.Background(), msg))
}

func TestProcessPropagatesNonTransientStoreErrors(t *testing.T) {
	store := &fakeStore{messageErr: errs.New(errs.Fatal, "store", fmt.Errorf("boom"))}
	uve := &fakeUVE{}
	p := New(store, uve)

	msg := model.SessionMessage{Header: model.Header{}}
	require.Error(t, p.Process(context.Background(), msg))
}

func TestProcessDrivesUVEUpdateAndDelete(t *testing.T) {
	store := &fakeStore{}
	uve := &fakeUVE{}
	p := New(store, uve)

	object := &model.Node{
		Name: "UveVirtualNetwork",
		Children: []*model.Node{
			{Name: "name", Attrs: map[string]string{"key": "ObjectVNTable"}, Text: "vn1"},
			{Name: "deleted", Attrs: map[string]string{"deleted": "true"}},
			{Name: "stats", Text: "v"},
		},
	}
	data := &model.Node{Name: "data", Children: []*model.Node{object}}
	body := &model.Node{Children: []*model.Node{data}}
	msg := model.SessionMessage{Header: model.Header{Type: model.UVE}, Body: body}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Len(t, uve.updates, 1)
	require.Len(t, uve.deletes, 1)
}

func TestProcessRunsStatExtractionThroughWalker(t *testing.T) {
	store := &fakeStore{}
	uve := &fakeUVE{}
	p := New(store, uve)

	item := &model.Node{Name: "entry", Children: []*model.Node{
		{Name: "iface", Text: "eth0"},
		{Name: "bytes", Text: "42"},
	}}
	statsAttr := &model.Node{
		Name:  "ifStats",
		Attrs: map[string]string{"tags": "iface"},
		Children: []*model.Node{item},
	}
	object := &model.Node{
		Name: "UveIfList",
		Children: []*model.Node{
			{Name: "name", Attrs: map[string]string{"key": "ObjectIfTable"}, Text: "if1"},
			statsAttr,
		},
	}
	data := &model.Node{Name: "data", Children: []*model.Node{object}}
	body := &model.Node{Children: []*model.Node{data}}
	msg := model.SessionMessage{Header: model.Header{Type: model.UVE}, Body: body}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Len(t, store.statCalls, 1)
	require.Contains(t, store.statCalls[0].Tags, "entry.iface")
}

func TestProcessWritesLogFieldNamesForSystemMessage(t *testing.T) {
	store := &fakeStore{}
	uve := &fakeUVE{}
	p := New(store, uve)

	msg := model.SessionMessage{Header: model.Header{Type: model.System, MessageType: "SystemLog", Source: "h1"}}
	require.NoError(t, p.Process(context.Background(), msg))
	require.Equal(t, "SystemLog", store.logFields["Messagetype"])
}

func TestProcessWritesFlowAndSessionRecords(t *testing.T) {
	store := &fakeStore{}
	uve := &fakeUVE{}
	p := New(store, uve)

	entry := &model.Node{Name: "e", Children: []*model.Node{{Name: "svn", Text: "vn1"}}}
	flowdata := &model.Node{Name: "flowdata", Children: []*model.Node{entry}}
	body := &model.Node{Children: []*model.Node{flowdata}}
	msg := model.SessionMessage{Header: model.Header{Type: model.Flow}, Body: body}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Equal(t, 1, store.flowCalls)
}
