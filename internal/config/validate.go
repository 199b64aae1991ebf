// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of telemetry-collector.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	cclog "github.com/flowvista/telemetry-collector/pkg/log"
)

func Validate(schema string, instance json.RawMessage) {
	sch, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		cclog.Fatalf("[CONFIG]> schema did not compile: %#v", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		cclog.Fatalf("[CONFIG]> instance is not valid json: %v", err)
	}

	if err = sch.Validate(v); err != nil {
		cclog.Fatalf("[CONFIG]> instance does not satisfy schema: %#v", err)
	}
}
