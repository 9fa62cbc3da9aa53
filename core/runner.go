package core

import (
	"context"
	"errors"
	"sync"
)

const defaultChannelBuffer = 256

// Runner wires handlers into a chain: handler i's output feeds handler i+1.
// Packets addressed to the top re-enter at the head so every handler sees
// them in pipeline order. External output events leaving the last handler are
// broadcast to UI clients.
type Runner struct {
	Handlers []IHandler
	// Finished is closed when a handler requests the session to end.
	Finished chan struct{}

	logger   *Logger
	external *ExternalEventHandler
	hooks    []func(*EventPacket)

	ctx            context.Context
	cancel         context.CancelFunc
	topOutputChan  chan *EventPacket
	lastOutputChan chan *EventPacket
	inputChans     []chan *EventPacket

	finishOnce sync.Once
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewRunner(handlers []IHandler, logger *Logger) *Runner {
	if logger == nil {
		logger = GetLogger()
	}
	return &Runner{
		Handlers: handlers,
		Finished: make(chan struct{}),
		logger:   logger.With(map[string]any{"component": "runner"}),
	}
}

// WithExternalEvents attaches the UI bridge for the lifetime of the run.
func (r *Runner) WithExternalEvents(e *ExternalEventHandler) *Runner {
	r.external = e
	return r
}

// OnFinalOutput registers a callback for every packet leaving the chain.
// Must be called before Start.
func (r *Runner) OnFinalOutput(fn func(*EventPacket)) {
	r.hooks = append(r.hooks, fn)
}

func (r *Runner) Start() error {
	return r.StartContext(context.Background())
}

func (r *Runner) StartContext(parent context.Context) error {
	if len(r.Handlers) == 0 {
		return errors.New("runner: no handlers")
	}

	r.ctx, r.cancel = context.WithCancel(parent)
	r.topOutputChan = make(chan *EventPacket, defaultChannelBuffer)
	r.lastOutputChan = make(chan *EventPacket, defaultChannelBuffer)

	r.inputChans = make([]chan *EventPacket, len(r.Handlers))
	for i := range r.inputChans {
		r.inputChans[i] = make(chan *EventPacket, defaultChannelBuffer)
	}

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = r.inputChans[i+1]
		} else {
			outputNextChan = r.lastOutputChan
		}

		if err := handler.Initialize(r.inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.cancel()
			return err
		}
	}
	for _, handler := range r.Handlers {
		if err := handler.Start(); err != nil {
			r.cancel()
			return err
		}
	}

	if r.external != nil {
		r.external.Attach(r.topOutputChan, r.ctx)
	}

	r.wg.Add(2)
	go r.listenToFinalOutput()
	go r.listenToTopOutput()
	return nil
}

// Inject pushes an event to the pipeline top as if a handler had emitted it.
func (r *Runner) Inject(event IEvent, relayer string) {
	select {
	case r.topOutputChan <- NewEventPacket(event, EventRelayDestinationTopService, relayer):
	case <-r.ctx.Done():
	}
}

func (r *Runner) listenToFinalOutput() {
	defer r.wg.Done()
	for {
		select {
		case packet := <-r.lastOutputChan:
			r.processFinalOutput(packet)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) listenToTopOutput() {
	defer r.wg.Done()
	for {
		select {
		case packet := <-r.topOutputChan:
			r.processTopOutput(packet)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) processFinalOutput(packet *EventPacket) {
	if r.external != nil {
		r.external.Broadcast(packet)
	}
	for _, hook := range r.hooks {
		hook(packet)
	}
}

func (r *Runner) processTopOutput(packet *EventPacket) {
	switch event := packet.Event.(type) {
	case *CriticalErrorEvent:
		r.logger.With(map[string]any{"error": event.Error, "relayer": packet.Relayer}).Error("critical error reported")
		return
	case *WarningEvent:
		r.logger.With(map[string]any{"error": event.Error, "relayer": packet.Relayer}).Warn("warning reported")
		return
	case *EndSessionEvent:
		r.logger.With(map[string]any{"reason": event.Reason}).Info("session end requested")
		r.finishOnce.Do(func() { close(r.Finished) })
		return
	}

	select {
	case r.inputChans[0] <- packet.Forward():
	case <-r.ctx.Done():
	}
}

func (r *Runner) Stop() error {
	var errs []error
	r.stopOnce.Do(func() {
		if r.external != nil {
			r.external.Detach(r.topOutputChan)
		}
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		for _, handler := range r.Handlers {
			if err := handler.Cleanup(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
