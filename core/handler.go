package core

import (
	"context"
	"errors"
)

type IService interface {
	Init(
		ctx context.Context,
	) error
	Cleanup() error
	Reset() error
}

type IHandler interface {
	Initialize(
		InputChan <-chan *EventPacket,
		outputChan chan<- *EventPacket,
		OutputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error // Initializes the handler and its service with the given channels.
	Start() error // Starts the handler's event loop. Must not block.
	HandleEvent(packet *EventPacket) error

	Cleanup() error // Cleans up resources used by the handler.
	Reset() error   // Resets the handler to its initial state.
}

// NoopService satisfies IService for handlers that own no external service.
type NoopService struct{}

func (NoopService) Init(_ context.Context) error { return nil }
func (NoopService) Cleanup() error               { return nil }
func (NoopService) Reset() error                 { return nil }

type BaseHandler struct {
	Service               IService
	BackupServices        []IService
	Ctx                   context.Context
	Logger                *Logger
	InputChan             <-chan *EventPacket
	outputNextChan        chan<- *EventPacket
	outputTopChan         chan<- *EventPacket
	FatalServiceErrorChan chan error
}

func (h *BaseHandler) Initialize(
	InputChan <-chan *EventPacket,
	OutputNextChan chan<- *EventPacket,
	OutputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = InputChan
	h.outputNextChan = OutputNextChan
	h.outputTopChan = OutputTopChan
	h.FatalServiceErrorChan = make(chan error, 1)
	h.Ctx = ctx
	if h.Logger == nil {
		h.Logger = GetLogger()
	}
	go h.fatalErrorHandlerLoop()
	if h.Service == nil {
		return nil
	}
	return h.Service.Init(ctx)
}

func (h *BaseHandler) Cleanup() error {
	if h.Service == nil {
		return nil
	}
	return h.Service.Cleanup()
}

func (h *BaseHandler) Reset() error {
	if h.Service == nil {
		return nil
	}
	return h.Service.Reset()
}

func (h *BaseHandler) SwitchToBackupService() error {
	if len(h.BackupServices) == 0 {
		return errors.New("no backup services available")
	}
	h.Service = h.BackupServices[0]
	if err := h.Service.Init(h.Ctx); err != nil {
		return err
	}
	h.BackupServices = h.BackupServices[1:]
	return nil
}

// SendPacket relays a packet to its destination. It gives up once the
// handler context is cancelled so a stopped pipeline never wedges a sender.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	out := h.outputNextChan
	if packet.Destination == EventRelayDestinationTopService {
		out = h.outputTopChan
	}
	if out == nil {
		return
	}
	if h.Ctx == nil {
		out <- packet
		return
	}
	select {
	case out <- packet:
	case <-h.Ctx.Done():
	}
}

// Emit wraps event in a packet and relays it.
func (h *BaseHandler) Emit(event IEvent, destination EventRelayDestination, relayer string) {
	h.SendPacket(NewEventPacket(event, destination, relayer))
}

func (h *BaseHandler) HandleError(err error) {
	select {
	case h.FatalServiceErrorChan <- err:
	default:
		h.Logger.With(map[string]any{"error": err}).Warn("fatal error dropped, handler already recovering")
	}
}

func (h *BaseHandler) fatalErrorHandlerLoop() {
	for {
		select {
		case err := <-h.FatalServiceErrorChan:
			h.Logger.With(map[string]any{"error": err}).Error("fatal service error")
			if switchErr := h.SwitchToBackupService(); switchErr != nil {
				h.Logger.With(map[string]any{"error": switchErr}).Error("failed to switch to backup service")
				h.SendPacket(
					NewEventPacket(&CriticalErrorEvent{Error: err.Error()}, EventRelayDestinationTopService, "BaseHandler"),
				)
				continue
			}
			h.SendPacket(
				NewEventPacket(&WarningEvent{Error: err.Error()}, EventRelayDestinationTopService, "BaseHandler"),
			)
		case <-h.Ctx.Done():
			return
		}
	}
}

func NewBaseHandler(service IService, backupServices []IService, ctx context.Context, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	if service == nil {
		service = NoopService{}
	}
	return &BaseHandler{
		Service:        service,
		BackupServices: backupServices,
		Ctx:            ctx,
		Logger:         logger,
	}
}
