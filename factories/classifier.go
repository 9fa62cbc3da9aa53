package factories

import (
	"handspeak/core"
	"handspeak/handlers/classifier"
	"handspeak/services/backend"
	backendclassifier "handspeak/services/backend/classifier"
)

// ClassifierFactoryConfig selects the gesture classifier.
type ClassifierFactoryConfig struct {
	BackendConfig *backend.Config `json:"backend,omitempty" yaml:"backend,omitempty"`
}

// BuildClassifierService constructs the configured classifier, defaulting to
// the HandSpeak model server.
func BuildClassifierService(config ClassifierFactoryConfig, logger *core.Logger) classifier.ClassifierService {
	cfg := backend.DefaultConfig()
	if config.BackendConfig != nil {
		cfg = *config.BackendConfig
	}
	return backendclassifier.NewHTTPClassifier(cfg, logger)
}
