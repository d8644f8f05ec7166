// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/esper-home/esper/pkg/esp3"
	"github.com/esper-home/esper/pkg/gateway"
)

var (
	sendRORG       string
	sendPacketType uint8
	sendPayload    string
	sendOptional   string
	sendSender     string
	sendDest       string
	sendStatus     uint8
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single telegram",
	Long: `Build and transmit one telegram.

In radio mode (--rorg) the payload is given as hex bytes and must match the
telegram family: 1 byte for RPS/1BS, 4 bytes for 4BS, variable for VLD. The
sender, status and addressing trailer are filled in around it; without
--sender the module's base ID is queried and used.

In raw mode (--packet-type) the data and optional sections go out verbatim
under the given ESP3 packet type, with only the frame header and CRCs added.

Examples:
  esper send --rorg F6 --data 30 --status 30
  esper send --rorg A5 --data 00:1F:8C:08 --dest 05:01:7E:43
  esper send --packet-type 5 --data 08`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendRORG, "rorg", "", "Telegram family: F6, D5, A5 or D2")
	sendCmd.Flags().Uint8Var(&sendPacketType, "packet-type", 0, "ESP3 packet type for raw mode")
	sendCmd.Flags().StringVar(&sendPayload, "data", "", "Payload bytes as hex (colons optional)")
	sendCmd.Flags().StringVar(&sendOptional, "optional", "", "Optional section as hex (raw mode)")
	sendCmd.Flags().StringVar(&sendSender, "sender", "", "Sender address (default: module base ID)")
	sendCmd.Flags().StringVar(&sendDest, "dest", "", "Destination address (default: broadcast)")
	sendCmd.Flags().Uint8Var(&sendStatus, "status", 0, "Status byte")
	sendCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(sendCmd)
}

func parseRORG(s string) (esp3.RORG, error) {
	switch strings.ToUpper(s) {
	case "F6", "RPS":
		return esp3.RORGRPS, nil
	case "D5", "1BS":
		return esp3.RORG1BS, nil
	case "A5", "4BS":
		return esp3.RORG4BS, nil
	case "D2", "VLD":
		return esp3.RORGVLD, nil
	}
	return 0, fmt.Errorf("unknown telegram family %q", s)
}

func parseHexBytes(s string) ([]byte, error) {
	cleaned := strings.NewReplacer(":", "", " ", "").Replace(s)
	return hex.DecodeString(cleaned)
}

// rawSendFrame assembles the verbatim frame for raw mode.
func rawSendFrame(packetType uint8, dataHex, optionalHex string) ([]byte, error) {
	data, err := parseHexBytes(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %v", err)
	}
	optional, err := parseHexBytes(optionalHex)
	if err != nil {
		return nil, fmt.Errorf("invalid optional: %v", err)
	}
	return esp3.Build(esp3.PacketType(packetType), data, optional)
}

func runSend(cmd *cobra.Command, args []string) error {
	if (sendRORG == "") == (sendPacketType == 0) {
		return fmt.Errorf("exactly one of --rorg and --packet-type must be given")
	}
	if sendPacketType != 0 {
		if sendSender != "" || sendDest != "" || sendStatus != 0 {
			return fmt.Errorf("--sender, --dest and --status only apply with --rorg")
		}
		return runSendRaw()
	}
	if sendOptional != "" {
		return fmt.Errorf("--optional only applies with --packet-type; use --dest in radio mode")
	}
	return runSendRadio()
}

func runSendRaw() error {
	wire, err := rawSendFrame(sendPacketType, sendPayload, sendOptional)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	gw := gateway.New(conn)
	gw.Start()
	defer gw.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	if err := gw.Send(wire); err != nil {
		return err
	}
	fmt.Printf("Sent %v frame: % X\n", esp3.PacketType(sendPacketType), wire)

	time.Sleep(100 * time.Millisecond)
	return nil
}

func runSendRadio() error {
	rorg, err := parseRORG(sendRORG)
	if err != nil {
		return err
	}
	payload, err := parseHexBytes(sendPayload)
	if err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}

	dest := esp3.Broadcast
	if sendDest != "" {
		if dest, err = esp3.ParseDeviceID(sendDest); err != nil {
			return err
		}
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	gw := gateway.New(conn)
	gw.Start()
	defer gw.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	var sender esp3.DeviceID
	if sendSender != "" {
		if sender, err = esp3.ParseDeviceID(sendSender); err != nil {
			return err
		}
	} else {
		if sender, err = gw.ReadBaseID(); err != nil {
			return fmt.Errorf("querying base ID: %v", err)
		}
	}

	if err := gw.SendRadio(rorg, payload, sender, sendStatus, dest); err != nil {
		return err
	}
	fmt.Printf("Sent %s from %s to %s: % X (status 0x%02X)\n",
		rorg, sender, dest, payload, sendStatus)

	// Give the module a moment to push the frame out before the port
	// closes under it.
	time.Sleep(100 * time.Millisecond)
	return nil
}
