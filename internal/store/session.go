// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"time"

	"github.com/gocql/gocql"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

// Consistency mirrors the subset of gocql.Consistency levels the core
// cares about, kept as our own type so callers outside this package
// don't need to import gocql directly.
type Consistency int

const (
	ConsistencyOne Consistency = iota
	ConsistencyQuorum
	ConsistencyAll
)

func (c Consistency) toGocql() gocql.Consistency {
	switch c {
	case ConsistencyAll:
		return gocql.All
	case ConsistencyQuorum:
		return gocql.Quorum
	default:
		return gocql.One
	}
}

// cqlQuery is the narrow slice of *gocql.Query this package drives,
// extracted so unit tests can substitute a fake session instead of a
// live Cassandra cluster.
type cqlQuery interface {
	Exec() error
	Scan(dest ...interface{}) error
	Consistency(gocql.Consistency) cqlQuery
}

type cqlSession interface {
	Query(stmt string, args ...interface{}) cqlQuery
	Close()
}

// gocqlQuery adapts *gocql.Query to cqlQuery (Consistency on the real
// type returns *gocql.Query, not our interface).
type gocqlQuery struct{ q *gocql.Query }

func (g gocqlQuery) Exec() error            { return g.q.Exec() }
func (g gocqlQuery) Scan(dest ...interface{}) error { return g.q.Scan(dest...) }
func (g gocqlQuery) Consistency(c gocql.Consistency) cqlQuery {
	return gocqlQuery{g.q.Consistency(c)}
}

// gocqlSession adapts *gocql.Session to cqlSession.
type gocqlSession struct{ s *gocql.Session }

func (g gocqlSession) Query(stmt string, args ...interface{}) cqlQuery {
	return gocqlQuery{g.s.Query(stmt, args...)}
}
func (g gocqlSession) Close() { g.s.Close() }

// Connect opens a gocql session against the configured cluster,
// following internal/repository/dbConnection.go's singleton-connect
// shape, adapted from database/sql to gocql's own cluster/session types.
func Connect(hosts []string, user, password string) (cqlSession, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second
	cluster.ReconnectInterval = 5 * time.Second
	if user != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: user,
			Password: password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		cclog.Errorf("[STORE]> connecting to cassandra cluster %v: %v", hosts, err)
		return nil, err
	}
	return gocqlSession{session}, nil
}
