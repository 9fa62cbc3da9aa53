package core

import "context"

// Prediction is the classifier's verdict for one window.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// GestureClassifier maps a window to a label. Implementations must honour
// ctx cancellation so callers can bound every call.
type GestureClassifier interface {
	Classify(ctx context.Context, w *Window) (Prediction, error)
}
