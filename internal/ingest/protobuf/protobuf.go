// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package protobuf implements the supplemented protobuf sample ingest
// path (protobuf_collector.cc in the original): a UDP listener decoding
// length-prefixed protobuf-encoded stat samples directly into
// StatTableInsert calls, bypassing the session receive path (C4)
// entirely since a sample carries no generator envelope.
//
// The wire message decoded here (StatSample) is this collector's own
// application-level schema, not a third-party .proto; it is decoded
// field-by-field with google.golang.org/protobuf's low-level
// encoding/protowire package rather than a protoc-generated type, since
// no generated message type for it exists anywhere to imitate.
package protobuf

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flowvista/telemetry-collector/internal/model"
	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Field numbers for the StatSample wire schema.
const (
	fieldStatName    = 1
	fieldStatAttr    = 2
	fieldTimestampUs = 3
	fieldTag         = 4
	fieldAttrib      = 5
)

// Field numbers for the nested TagField/AttribField wire schema: a key
// plus exactly one of a string, u64 or double value.
const (
	fieldKey      = 1
	fieldStrVal   = 2
	fieldU64Val   = 3
	fieldDblVal   = 4
)

var errTruncated = errors.New("protobuf: truncated message")

// StatEmitter is the slice of the store writer (C2) this package needs.
type StatEmitter interface {
	StatTableInsert(rec model.StatRecord) error
}

// Server is a UDP listener that decodes length-prefixed StatSample
// messages and writes them straight into a StatEmitter.
type Server struct {
	emitter StatEmitter
	conn    *net.UDPConn
}

func NewServer(emitter StatEmitter) *Server {
	return &Server{emitter: emitter}
}

func (s *Server) Listen(udpAddr *net.UDPAddr) error {
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

// Serve reads datagrams until ctx is cancelled. Each datagram is one
// 4-byte big-endian length prefix followed by exactly that many bytes
// of StatSample-encoded payload; a datagram may carry more than one
// length-prefixed message back to back.
func (s *Server) Serve(ctx context.Context) {
	buf := make([]byte, 65535)
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
			cclog.Errorf("[INGEST]> protobuf socket error: %v", err)
			return
		}

		for _, rec := range decodeDatagram(buf[:n]) {
			if err := s.emitter.StatTableInsert(rec); err != nil {
				cclog.Errorf("[INGEST]> protobuf: stat insert failed: %v", err)
			}
		}
	}
}

func decodeDatagram(payload []byte) []model.StatRecord {
	var out []model.StatRecord
	for len(payload) > 0 {
		if len(payload) < 4 {
			cclog.Warnf("[INGEST]> protobuf: dropping trailing partial length prefix")
			break
		}
		msgLen := binary.BigEndian.Uint32(payload[:4])
		payload = payload[4:]
		if uint32(len(payload)) < msgLen {
			cclog.Warnf("[INGEST]> protobuf: dropping datagram with short message body")
			break
		}
		msgBytes := payload[:msgLen]
		payload = payload[msgLen:]

		rec, err := decodeStatSample(msgBytes)
		if err != nil {
			cclog.Warnf("[INGEST]> protobuf: dropping malformed message: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func decodeStatSample(b []byte) (model.StatRecord, error) {
	rec := model.StatRecord{Tags: make(map[string]model.TagValue), Attribs: make(map[string]any)}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return model.StatRecord{}, errTruncated
		}
		b = b[n:]

		switch num {
		case fieldStatName:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return model.StatRecord{}, err
			}
			rec.StatName = v
			b = b[n:]
		case fieldStatAttr:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return model.StatRecord{}, err
			}
			rec.StatAttr = v
			b = b[n:]
		case fieldTimestampUs:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return model.StatRecord{}, err
			}
			rec.TimestampUs = int64(v)
			b = b[n:]
		case fieldTag:
			sub, n, err := consumeBytes(b, typ)
			if err != nil {
				return model.StatRecord{}, err
			}
			key, tv, err := decodeTagOrAttrib(sub)
			if err != nil {
				return model.StatRecord{}, err
			}
			rec.Tags[key] = tv
			rec.Attribs[key] = tagValueAsAny(tv)
			b = b[n:]
		case fieldAttrib:
			sub, n, err := consumeBytes(b, typ)
			if err != nil {
				return model.StatRecord{}, err
			}
			key, tv, err := decodeTagOrAttrib(sub)
			if err != nil {
				return model.StatRecord{}, err
			}
			rec.Attribs[key] = tagValueAsAny(tv)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return model.StatRecord{}, errTruncated
			}
			b = b[n:]
		}
	}
	return rec, nil
}

func decodeTagOrAttrib(b []byte) (string, model.TagValue, error) {
	var key string
	var tv model.TagValue
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", model.TagValue{}, errTruncated
		}
		b = b[n:]
		switch num {
		case fieldKey:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return "", model.TagValue{}, err
			}
			key = v
			b = b[n:]
		case fieldStrVal:
			v, n, err := consumeString(b, typ)
			if err != nil {
				return "", model.TagValue{}, err
			}
			tv = model.StringTag(v)
			b = b[n:]
		case fieldU64Val:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return "", model.TagValue{}, err
			}
			tv = model.U64Tag(v)
			b = b[n:]
		case fieldDblVal:
			if typ != protowire.Fixed64Type {
				return "", model.TagValue{}, errTruncated
			}
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return "", model.TagValue{}, errTruncated
			}
			tv = model.DoubleTag(math.Float64frombits(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", model.TagValue{}, errTruncated
			}
			b = b[n:]
		}
	}
	return key, tv, nil
}

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	v, n, err := consumeBytes(b, typ)
	if err != nil {
		return "", 0, err
	}
	return string(v), n, nil
}

func consumeBytes(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errTruncated
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, errTruncated
	}
	return v, n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errTruncated
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, errTruncated
	}
	return v, n, nil
}

func tagValueAsAny(v model.TagValue) any {
	switch v.Variant {
	case model.TagString:
		return v.Str
	case model.TagU64:
		return v.U64
	case model.TagDouble:
		return v.Dbl
	default:
		return nil
	}
}
