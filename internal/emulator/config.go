package emulator

import (
	"errors"
	"time"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/eventlog"
	"github.com/Frixxie/mobile-network-emulator/internal/exposure"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

const defaultShutdownTimeout = 10 * time.Second

// Config assembles the emulator server: the simulation core, the edge
// network it samples usage against, the exposure bus and the shared event
// store.
type Config struct {
	Core    *mobilenet.Core
	Network *edge.Network
	Bus     *exposure.Bus
	Store   eventlog.Store

	// Optional configuration.
	ShutdownTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Core == nil {
		return errors.New("mobile network core is required")
	}
	if c.Network == nil {
		return errors.New("edge network is required")
	}
	if c.Bus == nil {
		return errors.New("exposure bus is required")
	}
	if c.Store == nil {
		return errors.New("event store is required")
	}

	// Optional configuration.
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
