package transport

import (
	"context"

	"handspeak/core"
)

// ITransportService is one connected device.
type ITransportService interface {
	core.IService
	DeviceID() string
	// StartReceiving decodes device messages into readings until the
	// connection closes. Malformed messages are dropped by the service.
	StartReceiving(outputChan chan<- core.SensorReading, errorChan chan<- error)
	// SendEvent writes an external output event back to the device.
	SendEvent(event core.IExternalOutputEvent) error
	Close() error
}

type ITransportProvider interface {
	Start() error
	Stop() error
	RegisterJobHandler(
		func(svc ITransportService, ctx context.Context) error,
	) error
}
