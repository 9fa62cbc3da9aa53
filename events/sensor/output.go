package sensor

import "handspeak/core"

// SensorReadingEvent carries one decoded device message.
type SensorReadingEvent struct {
	Reading core.SensorReading
}

func (e *SensorReadingEvent) GetId() string {
	return "sensor.reading"
}

// SensorFrameEvent carries one composed frame.
type SensorFrameEvent struct {
	Frame core.SensorFrame
}

func (e *SensorFrameEvent) GetId() string {
	return "sensor.frame"
}

// DeviceReadyEvent fires once every channel has reported at least once.
type DeviceReadyEvent struct {
	core.ExternalOutputMarker
	DeviceID string `json:"device_id"`
}

func (e *DeviceReadyEvent) GetId() string {
	return "device.ready"
}

// DeviceTelemetryEvent reports link health once per second.
type DeviceTelemetryEvent struct {
	core.ExternalOutputMarker
	DeviceID     string  `json:"device_id"`
	PacketCount  uint64  `json:"packet_count"`
	DroppedCount uint64  `json:"dropped_count"`
	DataRate     float64 `json:"data_rate"` // readings per second over the last interval
	LastPacketMs int64   `json:"last_packet_ms"`
}

func (e *DeviceTelemetryEvent) GetId() string {
	return "device.telemetry"
}
