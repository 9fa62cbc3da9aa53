package core

import (
	"fmt"
	"math"
	"time"
)

// SensorChannel names one of the independent reading kinds a device reports.
type SensorChannel string

const (
	ChannelAcceleration    SensorChannel = "acceleration"
	ChannelGravity         SensorChannel = "gravity"
	ChannelAngularVelocity SensorChannel = "angular_velocity"
	ChannelOrientation     SensorChannel = "orientation"
)

// SensorChannels lists every channel a frame is composed from.
var SensorChannels = []SensorChannel{
	ChannelAcceleration,
	ChannelGravity,
	ChannelAngularVelocity,
	ChannelOrientation,
}

// Arity is the number of values a reading of this channel carries.
func (c SensorChannel) Arity() int {
	switch c {
	case ChannelAcceleration, ChannelGravity, ChannelAngularVelocity:
		return 3
	case ChannelOrientation:
		return 4
	default:
		return 0
	}
}

type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func (v Vec3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

type Quat struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
	W float64 `json:"w" msgpack:"w"`
}

func (q Quat) IsZero() bool { return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0 }

// SensorReading is one decoded device message.
type SensorReading struct {
	Channel    SensorChannel
	Values     []float64
	ReceivedAt time.Time
}

// Validate reports ErrInvalidFrame for unknown channels, wrong arity and
// non-finite values.
func (r SensorReading) Validate() error {
	arity := r.Channel.Arity()
	if arity == 0 {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidFrame, r.Channel)
	}
	if len(r.Values) != arity {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrInvalidFrame, r.Channel, arity, len(r.Values))
	}
	for i, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s[%d] is not finite", ErrInvalidFrame, r.Channel, i)
		}
	}
	return nil
}

// FeaturesPerFrame is the width of one frame as submitted to the classifier.
const FeaturesPerFrame = 9

// SensorFrame is the latest value of every channel at one sampling instant.
// Frames are immutable once built.
type SensorFrame struct {
	TimestampMs     int64 `json:"timestamp_ms"`
	Acceleration    Vec3  `json:"acceleration"`
	Gravity         Vec3  `json:"gravity"`
	AngularVelocity Vec3  `json:"angular_velocity"`
	Orientation     Quat  `json:"orientation"`
}

// IsZero reports whether every value across every channel is zero.
func (f SensorFrame) IsZero() bool {
	return f.Acceleration.IsZero() && f.Gravity.IsZero() && f.AngularVelocity.IsZero() && f.Orientation.IsZero()
}

// Features returns accel, gravity and angular velocity in that order.
// Orientation is not part of the classifier input.
func (f SensorFrame) Features() [FeaturesPerFrame]float64 {
	return [FeaturesPerFrame]float64{
		f.Acceleration.X, f.Acceleration.Y, f.Acceleration.Z,
		f.Gravity.X, f.Gravity.Y, f.Gravity.Z,
		f.AngularVelocity.X, f.AngularVelocity.Y, f.AngularVelocity.Z,
	}
}
