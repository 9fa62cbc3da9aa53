package factories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"handspeak/core"
	"handspeak/handlers/transport"
	"handspeak/protocol"
)

// PipelineConfig configures a Pipeline's lifecycle behaviour.
type PipelineConfig struct {
	Timeout time.Duration
	// LogWriter, when set, opens a per-session log destination.
	LogWriter func(sessionID, deviceID string) (core.LogWriter, error)
	// OnOutputEvent receives every external output event a session emits.
	OnOutputEvent func(sessionID string, ev core.IExternalOutputEvent)
}

// HandlerBuilder creates the ordered handler slice for a single job.
// It receives the transport service and the job context.
type HandlerBuilder func(svc transport.ITransportService, ctx context.Context) ([]core.IHandler, error)

// Pipeline builds and runs handler pipelines for incoming transport jobs.
type Pipeline struct {
	config   PipelineConfig
	builder  HandlerBuilder
	logger   *core.Logger
	external *core.ExternalEventHandler

	mu       sync.Mutex
	sessions map[string]*activeSession
}

type activeSession struct {
	runner    *core.Runner
	deviceID  string
	startedAt time.Time
}

// NewPipeline creates a Pipeline that uses builder to construct handlers per-job.
func NewPipeline(builder HandlerBuilder, config PipelineConfig, logger *core.Logger) *Pipeline {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		builder:  builder,
		config:   config,
		logger:   logger,
		sessions: make(map[string]*activeSession),
	}
}

// WithExternalEvents attaches every session to the UI event bridge.
func (p *Pipeline) WithExternalEvents(e *core.ExternalEventHandler) *Pipeline {
	p.external = e
	return p
}

// Run builds a handler pipeline for a single job and blocks until completion.
func (p *Pipeline) Run(svc transport.ITransportService, ctx context.Context) error {
	if svc == nil {
		p.logger.Warn("nil transport service, skipping job")
		return nil
	}

	sessionID := uuid.NewString()
	base := core.SessionLoggerFromContext(ctx)
	if base == nil {
		base = p.logger
	}
	if p.config.LogWriter != nil {
		writer, err := p.config.LogWriter(sessionID, svc.DeviceID())
		if err != nil {
			base.With(map[string]any{"error": err}).Warn("session log unavailable")
		} else {
			defer writer.Close()
			base = core.NewSessionLogger(base, writer)
			ctx = core.ContextWithSessionLogger(ctx, base)
		}
	}
	base = base.With(map[string]any{"session_id": sessionID, "device_id": svc.DeviceID()})
	logger := base.With(map[string]any{"component": "pipeline"})

	select {
	case <-ctx.Done():
		logger.Info("context already cancelled, skipping job")
		return nil
	default:
	}

	handlers, err := p.builder(svc, core.ContextWithSessionLogger(ctx, base))
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to build handlers")
		return err
	}

	runner := core.NewRunner(handlers, base)
	if p.external != nil {
		runner.WithExternalEvents(p.external)
	}
	if fn := p.config.OnOutputEvent; fn != nil {
		runner.OnFinalOutput(func(packet *core.EventPacket) {
			if ev, ok := packet.Event.(core.IExternalOutputEvent); ok {
				fn(sessionID, ev)
			}
		})
	}
	if err := runner.StartContext(ctx); err != nil {
		logger.With(map[string]any{"error": err}).Error("runner failed to start")
		return err
	}
	defer runner.Stop()

	p.track(sessionID, &activeSession{runner: runner, deviceID: svc.DeviceID(), startedAt: time.Now().UTC()})
	defer p.untrack(sessionID)

	logger.Info("runner started, waiting for completion")

	var timerC <-chan time.Time
	if p.config.Timeout > 0 {
		timer := time.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-ctx.Done():
		logger.Info("context cancelled, stopping runner")
		return nil
	case <-timerC:
		logger.Warn("timeout reached, stopping runner")
		return context.DeadlineExceeded
	case <-runner.Finished:
		logger.Info("runner finished")
		return nil
	}
}

// Serve registers a job handler with the provider, starts it,
// and blocks until ctx is cancelled. It then stops the provider.
func (p *Pipeline) Serve(provider transport.ITransportProvider, ctx context.Context) error {
	logger := p.logger.With(map[string]any{"component": "pipeline"})

	if err := provider.RegisterJobHandler(func(svc transport.ITransportService, jobCtx context.Context) error {
		return p.Run(svc, jobCtx)
	}); err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to register job handler")
		return err
	}

	if err := provider.Start(); err != nil {
		logger.With(map[string]any{"error": err}).Error("provider failed to start")
		return err
	}

	logger.Info("provider started, waiting for devices")
	<-ctx.Done()

	logger.Info("stopping provider")
	if err := provider.Stop(); err != nil {
		logger.With(map[string]any{"error": err}).Error("error stopping provider")
	}
	return nil
}

func (p *Pipeline) track(id string, s *activeSession) {
	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()
}

func (p *Pipeline) untrack(id string) {
	p.mu.Lock()
	delete(p.sessions, id)
	p.mu.Unlock()
}

// Sessions returns the running sessions, oldest first.
func (p *Pipeline) Sessions() []protocol.SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.SessionInfo, 0, len(p.sessions))
	for id, s := range p.sessions {
		out = append(out, protocol.SessionInfo{
			SessionID: id,
			DeviceID:  s.deviceID,
			StartedAt: s.startedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ResetAll resets every handler of every running session. Devices stay
// connected; sentence state and window buffers start over.
func (p *Pipeline) ResetAll() int {
	p.mu.Lock()
	runners := make([]*core.Runner, 0, len(p.sessions))
	for _, s := range p.sessions {
		runners = append(runners, s.runner)
	}
	p.mu.Unlock()

	for _, r := range runners {
		if err := r.Reset(); err != nil {
			p.logger.With(map[string]any{"error": err}).Warn("session reset incomplete")
		}
	}
	return len(runners)
}
