package transport

type TransportConfig struct {
	// EchoEvents lists external output event ids that are written back to
	// the device, e.g. so a watch face can show the finalized sentence.
	EchoEvents []string `json:"echo_events" yaml:"echo_events"`
}

func DefaultConfig() TransportConfig {
	return TransportConfig{
		EchoEvents: []string{"classifier.label", "sentence.finalized"},
	}
}

func (c TransportConfig) echoes(id string) bool {
	for _, e := range c.EchoEvents {
		if e == id {
			return true
		}
	}
	return false
}
