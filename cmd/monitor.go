// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/esp3"
)

var monitorProfile string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display received telegrams in human-readable format",
	Long: `Continuously decode and display ESP3 telegrams as they arrive.

Each telegram is shown with timestamp, packet type, RORG, sender address and
payload. Dropped frame candidates from CRC failures are reported inline.

With --profile, radio payloads are additionally decoded against the given EEP
profile (e.g. A5-10-06) and shown field by field.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorProfile, "profile", "", "EEP profile to decode payloads against")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	registry := eep.DefaultRegistry()
	if monitorProfile != "" {
		if _, err := registry.Lookup(monitorProfile); err != nil {
			return err
		}
	}

	fmt.Printf("Esper - Telegram Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	framer := esp3.NewFramer()
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for _, r := range framer.Feed(buf[:n]) {
			if r.Err != nil {
				fmt.Printf("[DROP] %v\n", r.Err)
				continue
			}
			tg, err := esp3.Decode(*r.Frame)
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			fmt.Print(esp3.FormatTelegram(tg))

			if monitorProfile != "" && tg.IsRadio() {
				printDecoded(registry, tg)
			}
		}
	}
}

func printDecoded(registry *eep.Registry, tg *esp3.Telegram) {
	ev, err := registry.Decode(monitorProfile, tg.Payload(), tg.Status())
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	if ev.Teach {
		if ti, err := eep.ParseTeachIn(tg.Payload()); err == nil {
			fmt.Printf("  Teach-in: %s manufacturer 0x%03X\n", ti.ProfileID(), ti.Manufacturer)
		} else {
			fmt.Printf("  Teach-in\n")
		}
		return
	}
	for name, value := range ev.Fields {
		fmt.Printf("  %s: %v\n", name, value)
	}
}
