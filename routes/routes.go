// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

// Package routes exposes the bridge state over a small local HTTP
// API, handy for debugging without an MQTT client.
package routes

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/esper-home/esper/bridge"
)

type stateResponse struct {
	Devices  []bridge.DeviceState  `json:"devices"`
	Climates []bridge.ClimateState `json:"climates"`
}

// New builds the router for one bridge.
func New(b *bridge.Bridge) *httprouter.Router {
	router := httprouter.New()
	router.GET("/state", state(b))
	return router
}

func state(b *bridge.Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		devices, climates := b.Snapshot()
		if devices == nil {
			devices = []bridge.DeviceState{}
		}
		if climates == nil {
			climates = []bridge.ClimateState{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stateResponse{
			Devices:  devices,
			Climates: climates,
		}); err != nil {
			log.Printf("state endpoint: %v", err)
		}
	}
}

// Serve blocks serving the API on addr.
func Serve(addr string, b *bridge.Bridge) error {
	log.Printf("State endpoint listening on %v", addr)
	return http.ListenAndServe(addr, New(b))
}
