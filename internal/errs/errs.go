// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package errs declares the error kinds the collector core distinguishes,
// per the error handling design: transient downstream unavailability,
// protocol-level invariant violations, malformed bodies, fatal driver
// invariant violations, and configuration errors. Components branch on
// kind with errors.As rather than string matching.
package errs

import (
	"errors"
	"fmt"
	"os"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Kind identifies one of the five error classes the core distinguishes.
type Kind int

const (
	// Transient covers store write timeouts/queue-full, operational KV
	// store DOWN, pub/sub DOWN. Recovery is via reconnect/watermark loops.
	Transient Kind = iota
	// Protocol covers session mismatch, empty mandatory ctrl fields,
	// a session without an owning Generator.
	Protocol
	// Malformed covers parse failure of a message tree, a bad tag
	// attribute, an unsupported stat value variant.
	Malformed
	// Fatal covers a condition the core cannot continue past, e.g. the
	// operational store's AUTH reply being an error type.
	Fatal
	// Config covers a missing broker, an unresolvable address, or a
	// schema-invalid process configuration.
	Config
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Protocol:
		return "protocol"
	case Malformed:
		return "malformed"
	case Fatal:
		return "fatal"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// CoreError is the concrete error type every component wraps its failures
// in. Component is a short tag (e.g. "store", "uve") used by per-kind
// counters so that dropped_msg_stats-style aggregates can be broken down
// by origin.
type CoreError struct {
	kind      Kind
	Component string
	cause     error
}

func New(kind Kind, component string, cause error) *CoreError {
	return &CoreError{kind: kind, Component: component, cause: cause}
}

func (e *CoreError) Kind() Kind { return e.kind }

func (e *CoreError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s error", e.Component, e.kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Component, e.kind, e.cause)
}

func (e *CoreError) Unwrap() error { return e.cause }

// Is reports a match when target has a Kind() method (another *CoreError,
// for instance) returning the same Kind. A bare Kind value is not an
// error, so kind checks on arbitrary errors go through KindOf.
func (e *CoreError) Is(target error) bool {
	if k, ok := target.(interface{ Kind() Kind }); ok {
		return e.kind == k.Kind()
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to Malformed (the
// conservative "drop and count" policy) when err was not produced by
// this package.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return Malformed
}

// onAbort is the hook AbortProcess ends with; it exits with status 1.
var onAbort = func(msg string) { os.Exit(1) }

// AbortProcess is the single call site through which this module aborts
// the process, per the design note that exception-based assertions in the
// source ("assert(reply->type != REDIS_REPLY_ERROR)") become a typed
// error plus an explicit abort path here instead of a crash deep inside
// a driver callback. It logs at critical level, then calls onAbort.
func AbortProcess(component string, err error) {
	cclog.Critf("[%s]> fatal driver invariant violated, aborting: %v", component, err)
	onAbort(fmt.Sprintf("%s: %v", component, err))
}
