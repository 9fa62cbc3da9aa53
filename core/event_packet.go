package core

import (
	"time"

	"github.com/google/uuid"
)

type EventRelayDestination int

const (
	EventRelayDestinationNextService EventRelayDestination = iota + 1 // Pass to the next handler in the pipeline.
	EventRelayDestinationTopService                                   // Re-enter at the pipeline head so every handler observes it.
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string    // Unique identifier for tracking the event packet.
	Relayer     string    // Identifier of the handler that relayed the event.
	CreatedAt   time.Time // When the packet was first created.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.New().String(),
		Relayer:     relayer,
		CreatedAt:   time.Now(),
	}
}

// Forward returns a copy of the packet addressed to the next handler.
// Broadcast packets that re-entered at the head keep travelling down the chain.
func (p *EventPacket) Forward() *EventPacket {
	cp := *p
	cp.Destination = EventRelayDestinationNextService
	return &cp
}
