package factories

import (
	"errors"

	"handspeak/core"
	"handspeak/handlers/transport"
	"handspeak/transports/websocket"
)

// TransportFactoryConfig selects and configures the device transport provider.
type TransportFactoryConfig struct {
	WebSocketConfig *websocket.Config `json:"websocket,omitempty" yaml:"websocket,omitempty"`
}

// DefaultTransportFactoryConfig serves devices over WebSocket.
func DefaultTransportFactoryConfig() TransportFactoryConfig {
	return TransportFactoryConfig{WebSocketConfig: websocket.DefaultConfig()}
}

// GetProvider constructs the transport provider selected by this config.
func (c TransportFactoryConfig) GetProvider(logger *core.Logger) (transport.ITransportProvider, error) {
	if c.WebSocketConfig != nil {
		return websocket.NewDeviceTransportProvider(c.WebSocketConfig, logger), nil
	}
	return nil, errors.New("TransportFactoryConfig: no provider config specified")
}
