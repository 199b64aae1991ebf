// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package syslog implements the supplemented structured-syslog ingest
// path: an RFC5424 UDP listener that turns each datagram into a
// model.SessionMessage{Header.Type: model.Syslog} and drives it through
// the same session pipeline (C4) every generator-sourced message takes.
// No RFC5424 parsing library appears anywhere in the reference corpus
// (see DESIGN.md), so the parser here is hand-rolled against the RFC's
// fixed header grammar rather than against any example's idiom.
package syslog

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/flowvista/telemetry-collector/internal/model"
	"github.com/flowvista/telemetry-collector/internal/session"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// ErrMalformed is returned for a datagram that does not match the
// RFC5424 header grammar well enough to extract a header.
var ErrMalformed = errors.New("syslog: malformed RFC5424 header")

// Server is a UDP listener that feeds parsed syslog datagrams into a
// session.Pipeline.
type Server struct {
	pipeline *session.Pipeline
	conn     *net.UDPConn
}

func NewServer(pipeline *session.Pipeline) *Server {
	return &Server{pipeline: pipeline}
}

func (s *Server) Listen(addr string, port int) error {
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *Server) Shutdown() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Serve reads datagrams until ctx is cancelled. A malformed datagram is
// logged and dropped; it never aborts the listener.
func (s *Server) Serve(ctx context.Context) {
	buf := make([]byte, 16384)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cclog.Errorf("[INGEST]> syslog socket error: %v", err)
			return
		}

		msg, err := Parse(buf[:n])
		if err != nil {
			cclog.Warnf("[INGEST]> syslog: dropping malformed datagram: %v", err)
			continue
		}
		if err := s.pipeline.Process(ctx, msg); err != nil {
			cclog.Errorf("[INGEST]> syslog: pipeline error: %v", err)
		}
	}
}

// Parse decodes one RFC5424 syslog line:
//
//	<PRI>VERSION SP TIMESTAMP SP HOSTNAME SP APP-NAME SP PROCID SP MSGID SP [STRUCTURED-DATA] SP MSG
//
// into a SessionMessage whose body is the free-form MSG text carried
// verbatim in Body.Text, and whose header severity is decoded from PRI
// (facility*8 + severity, RFC5424 §6.2.1). The facility is not kept.
func Parse(line []byte) (model.SessionMessage, error) {
	s := strings.TrimRight(string(line), "\r\n")
	if len(s) == 0 || s[0] != '<' {
		return model.SessionMessage{}, ErrMalformed
	}
	end := strings.IndexByte(s, '>')
	if end < 1 {
		return model.SessionMessage{}, ErrMalformed
	}
	pri, err := strconv.Atoi(s[1:end])
	if err != nil || pri < 0 || pri > 191 {
		return model.SessionMessage{}, ErrMalformed
	}
	rest := s[end+1:]

	fields := strings.SplitN(rest, " ", 7)
	if len(fields) < 6 {
		return model.SessionMessage{}, ErrMalformed
	}
	// fields: VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID [SD MSG...]
	timestampUs := parseTimestampUs(fields[1])
	hostname := nilDash(fields[2])
	appName := nilDash(fields[3])

	msgText := ""
	if len(fields) == 7 {
		msgText = stripStructuredData(fields[6])
	}

	return model.SessionMessage{
		Header: model.Header{
			Source:      hostname,
			Module:      appName,
			NodeType:    "syslog",
			InstanceId:  "0",
			Category:    appName,
			Severity:    severityFromPRI(pri),
			Type:        model.Syslog,
			MessageType: "syslog",
			TimestampUs: timestampUs,
		},
		Body: &model.Node{Name: "msg", Text: msgText},
		Raw:  line,
	}, nil
}

func severityFromPRI(pri int) model.Severity {
	switch pri % 8 {
	case 0, 1, 2:
		return model.SevCritical
	case 3:
		return model.SevError
	case 4:
		return model.SevWarn
	case 5:
		return model.SevNotice
	case 6:
		return model.SevInfo
	default:
		return model.SevDebug
	}
}

func parseTimestampUs(field string) int64 {
	if field == "-" {
		return time.Now().UnixMicro()
	}
	t, err := time.Parse(time.RFC3339Nano, field)
	if err != nil {
		return time.Now().UnixMicro()
	}
	return t.UnixMicro()
}

func nilDash(field string) string {
	if field == "-" {
		return ""
	}
	return field
}

// stripStructuredData drops a leading STRUCTURED-DATA element ("-" or a
// "[...]" run) and returns whatever MSG text follows.
func stripStructuredData(field string) string {
	field = strings.TrimLeft(field, " ")
	if strings.HasPrefix(field, "-") {
		return strings.TrimLeft(field[1:], " ")
	}
	for strings.HasPrefix(field, "[") {
		depth := 0
		i := 0
		for ; i < len(field); i++ {
			switch field[i] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if i >= len(field) {
			return ""
		}
		field = strings.TrimLeft(field[i+1:], " ")
	}
	return field
}
