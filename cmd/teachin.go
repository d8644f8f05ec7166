// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/esp3"
	"github.com/esper-home/esper/pkg/gateway"
)

var (
	teachinProfile      string
	teachinChannel      uint8
	teachinManufacturer uint16
)

var teachinCmd = &cobra.Command{
	Use:   "teachin",
	Short: "Send a 4BS teach-in telegram",
	Long: `Announce one of this gateway's sender channels to an actuator.

Put the actuator into learn mode first, then run this command. The telegram
carries the profile's function and type with the LRN bit cleared, so the
actuator pairs the channel address with the announced profile.

Example:
  esper teachin --profile A5-10-06 --channel 1`,
	RunE: runTeachin,
}

func init() {
	teachinCmd.Flags().StringVar(&teachinProfile, "profile", "", "EEP profile to announce (e.g. A5-10-06)")
	teachinCmd.Flags().Uint8Var(&teachinChannel, "channel", 0, "Base ID offset to teach")
	teachinCmd.Flags().Uint16Var(&teachinManufacturer, "manufacturer", eep.ManufacturerMulti, "Manufacturer code (11 bits)")
	teachinCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(teachinCmd)
}

func runTeachin(cmd *cobra.Command, args []string) error {
	profile, err := eep.DefaultRegistry().Lookup(teachinProfile)
	if err != nil {
		return err
	}
	payload, err := eep.BuildTeachIn(profile, teachinManufacturer)
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

	base, err := gw.ReadBaseID()
	if err != nil {
		return fmt.Errorf("querying base ID: %v", err)
	}
	sender := base.Offset(uint32(teachinChannel))

	if err := gw.SendRadio(esp3.RORG4BS, payload, sender, 0x00, esp3.Broadcast); err != nil {
		return err
	}
	fmt.Printf("Teach-in sent: %s as %s (channel %d)\n", profile.ID, sender, teachinChannel)

	time.Sleep(100 * time.Millisecond)
	return nil
}
