// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors
//
// Esper - EnOcean Serial Protocol gateway
//
// A gateway and CLI for EnOcean ESP3 transceiver modules: telegram
// monitoring, sending, actuator teach-in, and an MQTT bridge with
// heating valve regulation.

package main

import (
	"os"

	"github.com/esper-home/esper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
