package sensor

import "time"

type SensorConfig struct {
	DeviceID            string `json:"device_id" yaml:"device_id"`
	SamplePeriodMs      int    `json:"sample_period_ms" yaml:"sample_period_ms"`           // Interval between composed frames.
	TelemetryIntervalMs int    `json:"telemetry_interval_ms" yaml:"telemetry_interval_ms"` // Zero disables telemetry events.
}

// DefaultConfig samples at 50 Hz and reports telemetry once per second.
func DefaultConfig() SensorConfig {
	return SensorConfig{
		SamplePeriodMs:      20,
		TelemetryIntervalMs: 1000,
	}
}

func (c SensorConfig) samplePeriod() time.Duration {
	if c.SamplePeriodMs <= 0 {
		return 20 * time.Millisecond
	}
	return time.Duration(c.SamplePeriodMs) * time.Millisecond
}

func (c SensorConfig) telemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalMs) * time.Millisecond
}
