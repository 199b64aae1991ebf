// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowvista/telemetry-collector/internal/model"
)

func TestMatchDestinationWildcards(t *testing.T) {
	id := model.GeneratorId{Source: "host1", Module: "vrouter", NodeType: "compute", InstanceId: "0"}

	require.True(t, MatchDestination("host1:vrouter:compute:0", id))
	require.True(t, MatchDestination("*:*:*:*", id))
	require.True(t, MatchDestination("host1:*:compute:*", id))
	require.False(t, MatchDestination("host2:*:*:*", id))
	require.False(t, MatchDestination("host1:vrouter:compute", id))
}

func TestUveHashKeyAndSeqHashKeyAreStable(t *testing.T) {
	key := model.UVEKey{StructType: "UveVirtualNetwork", Table: "ObjectVNTable", BareKey: "default-domain:vn1"}
	require.Equal(t, "uve:ObjectVNTable:default-domain:vn1", uveHashKey(key))

	id := model.GeneratorId{Source: "h", Module: "m", NodeType: "n", InstanceId: "0"}
	require.Equal(t, "seq:h:m:n:0", seqHashKey(id))
}
