package classifier

import (
	"context"
	"errors"
	"fmt"

	"handspeak/core"
	"handspeak/services/backend"
)

const predictPath = "/predict"

type predictRequest struct {
	SensorData []float64 `json:"sensor_data"`
}

type predictReply struct {
	Prediction *string `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Error      any     `json:"error,omitempty"`
}

// HTTPClassifier submits flattened windows to POST /predict.
type HTTPClassifier struct {
	client *backend.Client
	logger *core.Logger
}

func NewHTTPClassifier(cfg backend.Config, logger *core.Logger) *HTTPClassifier {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &HTTPClassifier{
		client: backend.NewClient(cfg),
		logger: logger.With(map[string]any{"service": "backend-classifier"}),
	}
}

// Client exposes the underlying HTTP client for transport overrides.
func (c *HTTPClassifier) Client() *backend.Client { return c.client }

func (c *HTTPClassifier) Init(_ context.Context) error {
	c.logger.With(map[string]any{"url": c.client.BaseURL() + predictPath}).Info("classifier ready")
	return nil
}

func (c *HTTPClassifier) Cleanup() error { return nil }
func (c *HTTPClassifier) Reset() error   { return nil }

// Classify returns the predicted label. Any failure, including an {"error"}
// reply, wraps core.ErrTransientNetwork.
func (c *HTTPClassifier) Classify(ctx context.Context, w *core.Window) (core.Prediction, error) {
	var reply predictReply
	if err := c.client.PostJSON(ctx, "classify", predictPath, predictRequest{SensorData: w.Flatten()}, &reply); err != nil {
		return core.Prediction{}, err
	}
	if reply.Error != nil {
		return core.Prediction{}, core.NewNetworkError("classify", 0, fmt.Errorf("%v", reply.Error))
	}
	if reply.Prediction == nil {
		return core.Prediction{}, core.NewNetworkError("classify", 0, errors.New("reply has no prediction"))
	}
	return core.Prediction{Label: *reply.Prediction, Confidence: reply.Confidence}, nil
}
