// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esper-home/esper/pkg/gateway"
)

var baseidCmd = &cobra.Command{
	Use:   "baseid",
	Short: "Show the module's base ID and firmware version",
	Long: `Query the connected transceiver module for its sender base ID and
firmware identification.

Outbound telegrams must use the base ID or one of the 127 addresses derived
from it; this command shows what that range is for the connected module.`,
	RunE: runBaseid,
}

func init() {
	rootCmd.AddCommand(baseidCmd)
}

func runBaseid(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	gw := gateway.New(conn)
	gw.Start()
	defer gw.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	base, err := gw.ReadBaseID()
	if err != nil {
		return fmt.Errorf("querying base ID: %v", err)
	}
	fmt.Printf("Base ID:  %s\n", base)
	fmt.Printf("ID range: %s .. %s\n", base, base.Offset(127))

	version, err := gw.ReadVersion()
	if err != nil {
		return fmt.Errorf("querying version: %v", err)
	}
	fmt.Printf("Module:   %s\n", version)
	return nil
}
