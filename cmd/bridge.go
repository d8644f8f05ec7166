// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/esper-home/esper/bridge"
	"github.com/esper-home/esper/config"
	"github.com/esper-home/esper/pkg/eep"
	"github.com/esper-home/esper/pkg/gateway"
	"github.com/esper-home/esper/routes"
)

var bridgeConfigPath string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the MQTT bridge",
	Long: `Run the gateway as a long-lived MQTT bridge.

Decoded telegrams from configured devices are published to Home Assistant via
MQTT discovery, and climate entities regulate their heating valves on a fixed
tick. The transceiver connection, broker, devices and climate loops all come
from the configuration file.`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVarP(&bridgeConfigPath, "config", "c", "esper.yaml", "Configuration file")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(bridgeConfigPath)
	if err != nil {
		return err
	}

	conn, connInfo, err := openFromConfig(cfg.Connection.Port, cfg.Connection.Baud,
		cfg.Connection.URL, cfg.Connection.Username)
	if err != nil {
		return err
	}
	log.Printf("Connection: %s", connInfo)

	gw := gateway.New(conn)
	b, err := bridge.New(cfg, gw, eep.DefaultRegistry())
	if err != nil {
		return err
	}
	gw.OnTelegram(b.HandleTelegram)
	gw.Start()
	defer gw.Close()

	base, err := gw.ReadBaseID()
	if err != nil {
		return fmt.Errorf("querying base ID: %v", err)
	}
	log.Printf("Base ID: %v", base)

	if version, err := gw.ReadVersion(); err == nil {
		log.Printf("Module: %v", version)
	}

	mqttClient := mqtt.NewClient(cfg.Mqtt.ClientOptions())
	if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("connecting to MQTT: %v", t.Error())
	}
	defer mqttClient.Disconnect(250)
	log.Printf("Connected to MQTT broker %v", cfg.Mqtt.Broker)

	if err := b.Register(mqttClient); err != nil {
		return fmt.Errorf("registering entities: %v", err)
	}
	b.SubscribeToClimateCommands(mqttClient)
	b.SubscribeToCoverCommands(mqttClient)

	if cfg.HTTP.Listen != "" {
		go func() {
			if err := routes.Serve(cfg.HTTP.Listen, b); err != nil {
				log.Printf("State endpoint failed: %v", err)
			}
		}()
	}

	stop := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Printf("Shutting down")
		close(stop)
	}()

	b.RunClimateLoops(stop)
	return nil
}
