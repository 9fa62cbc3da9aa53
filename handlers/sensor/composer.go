package sensor

import (
	"handspeak/core"
)

// Composer holds the latest value of every channel. Later readings of a
// channel overwrite earlier ones; there is no ordering between channels.
type Composer struct {
	latest core.SensorFrame
	seen   map[core.SensorChannel]bool
}

func NewComposer() *Composer {
	return &Composer{seen: make(map[core.SensorChannel]bool, len(core.SensorChannels))}
}

// Apply validates r and records it as the channel's latest value.
func (c *Composer) Apply(r core.SensorReading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	v := r.Values
	switch r.Channel {
	case core.ChannelAcceleration:
		c.latest.Acceleration = core.Vec3{X: v[0], Y: v[1], Z: v[2]}
	case core.ChannelGravity:
		c.latest.Gravity = core.Vec3{X: v[0], Y: v[1], Z: v[2]}
	case core.ChannelAngularVelocity:
		c.latest.AngularVelocity = core.Vec3{X: v[0], Y: v[1], Z: v[2]}
	case core.ChannelOrientation:
		c.latest.Orientation = core.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
	}
	c.seen[r.Channel] = true
	return nil
}

// Ready reports whether every channel has been received at least once.
func (c *Composer) Ready() bool {
	for _, ch := range core.SensorChannels {
		if !c.seen[ch] {
			return false
		}
	}
	return true
}

// Frame snapshots the latest values. ok is false until Ready.
func (c *Composer) Frame(timestampMs int64) (frame core.SensorFrame, ok bool) {
	if !c.Ready() {
		return core.SensorFrame{}, false
	}
	frame = c.latest
	frame.TimestampMs = timestampMs
	return frame, true
}

// Reset forgets every channel, re-arming the readiness gate.
func (c *Composer) Reset() {
	c.latest = core.SensorFrame{}
	for ch := range c.seen {
		delete(c.seen, ch)
	}
}
