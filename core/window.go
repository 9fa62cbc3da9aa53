package core

import "time"

// Window is a fixed-length run of frames handed to the classifier.
// A window is dispatched exactly once and never shares frames with another.
type Window struct {
	Seq         uint64
	Frames      []SensorFrame
	StartedAt   time.Time
	CompletedAt time.Time
}

func (w *Window) Len() int { return len(w.Frames) }

// Flatten lays the frames out as len(Frames)*FeaturesPerFrame values,
// frame-major, each frame as accel xyz, gravity xyz, angular velocity xyz.
func (w *Window) Flatten() []float64 {
	out := make([]float64, 0, len(w.Frames)*FeaturesPerFrame)
	for _, f := range w.Frames {
		feats := f.Features()
		out = append(out, feats[:]...)
	}
	return out
}
