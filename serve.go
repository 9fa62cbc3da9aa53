package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"handspeak/controlplane"
	"handspeak/core"
	"handspeak/events/control"
	"handspeak/factories"
	"handspeak/handlers/recorder"
	"handspeak/handlers/speech"
	"handspeak/handlers/transport"
	"handspeak/history"
	"handspeak/protocol"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept device sessions and speak recognized sentences",
	Long: `Start the device WebSocket server and the UI event feed.

Each connected device gets its own pipeline; the speaker is shared, so only
one sentence or word is spoken at a time across all devices.

With --connect the agent also dials a fleet control plane, streams session
logs and events to it, and accepts tone changes and restarts from it. The
agent exits when that connection drops.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("connect", "", "WebSocket URL of the control plane (e.g. ws://fleet:8888/ws/agent)")
	cmd.Flags().String("events-addr", "", "listen address for UI clients")
	cmd.Flags().String("device-addr", "", "listen address for devices")
}

func bindServeFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("connect", cmd.Flags().Lookup("connect"))
	_ = viper.BindPFlag("events_addr", cmd.Flags().Lookup("events-addr"))
	_ = viper.BindPFlag("device_addr", cmd.Flags().Lookup("device-addr"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	bindServeFlags(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := core.GetLogger().With(map[string]any{"component": "worker"})

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	source := newSessionSource(settings, loadAPIKeys())

	store, err := history.NewBadgerStore(history.BadgerOptions{Dir: settings.HistoryDir(), Logger: logger})
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	initial, err := source.inline()
	if err != nil {
		return err
	}
	csv, err := recorder.NewCSVStore(initial.Recorder.DataDir, initial.Recorder.FileName)
	if err != nil {
		return fmt.Errorf("open recorder: %w", err)
	}
	deps := factories.SessionDeps{
		Arbiter:  initial.Speech.BuildArbiter(logger),
		History:  store,
		Recorder: csv,
	}

	provider, err := settings.Transport.GetProvider(logger)
	if err != nil {
		return err
	}

	ext := core.NewExternalEventHandler(logger)
	control.Register(ext)
	go func() {
		if err := ext.Serve(ctx, settings.EventsAddr); err != nil {
			logger.With(map[string]any{"error": err, "addr": settings.EventsAddr}).Error("event feed stopped")
			cancel()
		}
	}()

	var client *controlplane.Client
	pipelineCfg := factories.PipelineConfig{
		Timeout: time.Duration(settings.SessionTimeoutSeconds) * time.Second,
	}
	connectURL := viper.GetString("connect")
	switch {
	case connectURL != "":
		pipelineCfg.LogWriter = func(sessionID, _ string) (core.LogWriter, error) {
			return controlplane.NewWSLogWriter(client, sessionID, viper.GetString("remote_log_level")), nil
		}
		pipelineCfg.OnOutputEvent = func(sessionID string, ev core.IExternalOutputEvent) {
			client.SendOutputEvent(sessionID, ev)
		}
	case settings.LogDir != "":
		pipelineCfg.LogWriter = func(sessionID, deviceID string) (core.LogWriter, error) {
			return core.NewSessionLogWriter(settings.LogDir, sessionID, deviceID)
		}
	}

	pipeline := factories.NewPipeline(func(svc transport.ITransportService, jobCtx context.Context) ([]core.IHandler, error) {
		sessionLogger := core.SessionLoggerFromContext(jobCtx)
		if sessionLogger == nil {
			sessionLogger = logger
		}
		cfg, err := source.forDevice(jobCtx, svc.DeviceID(), sessionLogger)
		if err != nil {
			return nil, err
		}
		handlers, err := cfg.BuildHandlers(svc, deps, sessionLogger)
		if err != nil {
			return nil, err
		}
		// TransportInput → Sensor → Recorder → Window → Classifier → Sentence → Speech → TransportOutput
		return handlers.Ordered(), nil
	}, pipelineCfg, logger).WithExternalEvents(ext)

	if connectURL != "" {
		client, err = connectControlPlane(ctx, cancel, connectURL, pipeline, deps.Arbiter, ext, source, logger)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	if err := pipeline.Serve(provider, ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// connectControlPlane dials the fleet control plane. The agent stops when
// the connection drops or a shutdown is requested.
func connectControlPlane(ctx context.Context, cancel context.CancelFunc, connectURL string, pipeline *factories.Pipeline, arbiter *speech.Arbiter, ext *core.ExternalEventHandler, source *sessionSource, logger *core.Logger) (*controlplane.Client, error) {
	logger = logger.With(map[string]any{"component": "connected"})

	agentID := viper.GetString("agent_id")
	hostname, _ := os.Hostname()
	if agentID == "" {
		agentID = hostname
	}

	client := controlplane.NewClient(controlplane.ClientConfig{
		ConnectURL: connectURL,
		AgentID:    agentID,
		Version:    version,
		Metadata:   map[string]string{"hostname": hostname},
		Tones:      core.ToneNames(),
		Status: func() (protocol.AgentStatus, []protocol.SessionInfo) {
			sessions := pipeline.Sessions()
			switch {
			case len(sessions) == 0:
				return protocol.StatusIdle, sessions
			case arbiter.IsSpeaking():
				return protocol.StatusSpeaking, sessions
			default:
				return protocol.StatusRunning, sessions
			}
		},
		Logger: logger,
	})

	client.OnShutdown = func(reason string) {
		logger.With(map[string]any{"reason": reason}).Info("shutdown requested by control plane")
		cancel()
	}
	client.OnConfigUpdate = func(update protocol.ConfigUpdatePayload) error {
		if err := source.apply(update); err != nil {
			logger.With(map[string]any{"error": err}).Warn("rejected config update")
			return err
		}
		if update.Tone != "" {
			ext.InjectInput(&control.ToneSelectEvent{Tone: update.Tone}, "control-plane")
		}
		logger.Info("applied config update from control plane")
		return nil
	}
	client.OnResetSessions = func(reason string) {
		n := pipeline.ResetAll()
		logger.With(map[string]any{"sessions": n, "reason": reason}).Info("session reset requested by control plane")
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect control plane: %w", err)
	}

	go func() {
		client.Wait()
		logger.Info("control plane connection lost, shutting down")
		cancel()
	}()
	return client, nil
}

// sessionSource hands each new device session its configuration. Updates
// from the control plane apply to sessions started afterwards.
type sessionSource struct {
	mu       sync.RWMutex
	settings factories.SettingsConfig
	keys     factories.APIKeys
}

func newSessionSource(settings factories.SettingsConfig, keys factories.APIKeys) *sessionSource {
	return &sessionSource{settings: settings, keys: keys}
}

// inline returns a copy of the file-configured session with credentials applied.
func (s *sessionSource) inline() (factories.SessionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, err := s.settings.Session.Clone()
	if err != nil {
		return cfg, err
	}
	cfg.InjectAPIKeys(s.keys)
	return cfg, nil
}

// forDevice asks the session API first and falls back to the inline config.
func (s *sessionSource) forDevice(ctx context.Context, deviceID string, logger *core.Logger) (factories.SessionConfig, error) {
	s.mu.RLock()
	api, keys := s.settings.SessionAPI, s.keys
	s.mu.RUnlock()

	if api != nil {
		cfg, err := api.Fetch(ctx, deviceID)
		if err == nil {
			cfg.InjectAPIKeys(keys)
			return cfg, nil
		}
		logger.With(map[string]any{"error": err}).Warn("session api failed, using inline session config")
	}
	return s.inline()
}

func (s *sessionSource) apply(update protocol.ConfigUpdatePayload) error {
	var next *factories.SessionConfig
	if len(update.Settings) > 0 {
		cfg, err := factories.SessionConfigFromJSON(update.Settings)
		if err != nil {
			return err
		}
		next = &cfg
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keys
	for name, value := range update.Keys {
		if !setAPIKey(&keys, name, value) {
			return errors.New("unknown credential " + name)
		}
	}
	s.keys = keys
	if next != nil {
		s.settings.Session = *next
	}
	return nil
}

func setAPIKey(keys *factories.APIKeys, name, value string) bool {
	switch strings.ToUpper(name) {
	case "ELEVENLABS_API_KEY":
		keys.ElevenLabs = value
	case "GEMINI_API_KEY":
		keys.Gemini = value
	case "OPENAI_API_KEY":
		keys.OpenAI = value
	case "GROQ_API_KEY":
		keys.Groq = value
	case "TOGETHER_API_KEY":
		keys.Together = value
	case "DEEPSEEK_API_KEY":
		keys.DeepSeek = value
	case "OPENROUTER_API_KEY":
		keys.OpenRouter = value
	case "MISTRAL_API_KEY":
		keys.Mistral = value
	case "BACKEND_URL", envPrefix + "_BACKEND_URL":
		keys.BackendURL = value
	default:
		return false
	}
	return true
}
