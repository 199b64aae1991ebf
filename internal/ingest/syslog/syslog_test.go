// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package syslog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestParseExtractsHostnameAppNameAndMessage(t *testing.T) {
	line := []byte("<34>1 2026-07-31T10:00:00.000Z myhost.example su - ID47 - failed password attempt")
	msg, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "myhost.example", msg.Header.Source)
	require.Equal(t, "su", msg.Header.Module)
	require.Equal(t, model.Syslog, msg.Header.Type)
	require.Equal(t, "failed password attempt", msg.Body.Text)
}

func TestParseDecodesSeverityFromPRI(t *testing.T) {
	// facility=4, severity=2 (critical): pri = 4*8+2 = 34
	line := []byte("<34>1 2026-07-31T10:00:00.000Z host app - - - boom")
	msg, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, model.SevCritical, msg.Header.Severity)
}

func TestParseHandlesDashFieldsAsEmpty(t *testing.T) {
	line := []byte("<13>1 - - - - - -")
	msg, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "", msg.Header.Source)
	require.Equal(t, "", msg.Header.Module)
}

func TestParseRejectsLineWithoutPRIBracket(t *testing.T) {
	_, err := Parse([]byte("not a syslog line"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseStripsBracketedStructuredData(t *testing.T) {
	line := []byte(`<13>1 2026-07-31T10:00:00.000Z host app - - [exampleSDID@32473 iut="3"] the message`)
	msg, err := Parse(line)
	require.NoError(t, err)
	require.Equal(t, "the message", msg.Body.Text)
}
