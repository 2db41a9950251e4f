package gateway

import (
	"time"

	"github.com/synk/synk-server-go/internal/config"
)

// Envelope is the frame written to clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type OverflowPolicy string

const (
	// OverflowDropOldest evicts the oldest queued frame to make room.
	OverflowDropOldest OverflowPolicy = config.OverflowDropOldest
	// OverflowDisconnect closes a connection whose queue is full.
	OverflowDisconnect OverflowPolicy = config.OverflowDisconnect
)

type Options struct {
	SendBuffer   int
	Overflow     OverflowPolicy
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration
	CloseTimeout time.Duration
	ReadLimit    int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:   64,
		Overflow:     OverflowDropOldest,
		WriteTimeout: config.GatewayWriteTimeout,
		PongTimeout:  config.GatewayPongTimeout,
		PingInterval: config.GatewayPingInterval,
		CloseTimeout: config.GatewayCloseTimeout,
		ReadLimit:    config.GatewayReadLimit,
	}
}

// OptionsFromConfig applies the configurable gateway settings to the defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.SendBuffer = cfg.GatewaySendBuffer
	opts.Overflow = OverflowPolicy(cfg.GatewayOverflowPolicy)
	return opts
}
