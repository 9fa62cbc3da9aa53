package recorder

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handspeak/core"
	"handspeak/events/control"
	"handspeak/events/sensor"
)

func startRecorder(t *testing.T, config RecorderConfig) (*CSVStore, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	store, err := NewCSVStore(t.TempDir(), "sensor.csv")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	in := make(chan *core.EventPacket, 16)
	next := make(chan *core.EventPacket, 64)
	h := NewRecorderHandler(store, config, core.NewNopLogger())
	require.NoError(t, h.Initialize(in, next, make(chan *core.EventPacket, 1), ctx))
	require.NoError(t, h.Start())
	return store, in, next
}

func send(in chan *core.EventPacket, ev core.IEvent) {
	in <- core.NewEventPacket(ev, core.EventRelayDestinationNextService, "test")
}

func frame(ts int64, ax float64) *sensor.SensorFrameEvent {
	return &sensor.SensorFrameEvent{Frame: core.SensorFrame{
		TimestampMs:  ts,
		Acceleration: core.Vec3{X: ax, Y: 0.5, Z: -1},
		Gravity:      core.Vec3{Y: 9.8},
	}}
}

// nextStatus skips forwarded frames until a status event arrives.
func nextStatus(t *testing.T, next chan *core.EventPacket) *control.RecorderStatusEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case p := <-next:
			if s, ok := p.Event.(*control.RecorderStatusEvent); ok {
				return s
			}
		case <-deadline:
			t.Fatal("no recorder status")
			return nil
		}
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecorder_WritesLabelledRows(t *testing.T) {
	store, in, next := startRecorder(t, RecorderConfig{FlushRows: 100})

	send(in, frame(0, 9)) // not recording yet
	send(in, &control.RecorderStartEvent{Label: "Hello", ID: "7"})
	status := nextStatus(t, next)
	assert.True(t, status.Recording)
	assert.Equal(t, 0, status.Rows)

	send(in, frame(1000, 1))
	send(in, frame(1020, 2))
	send(in, &control.RecorderStopEvent{})
	status = nextStatus(t, next)
	assert.False(t, status.Recording)
	assert.Equal(t, 2, status.Rows)
	assert.Empty(t, status.Error)

	rows := readCSV(t, store.Path())
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"7", "0.000", "1", "0.5", "-1", "0", "9.8", "0", "0", "0", "0", "0", "0", "0", "Hello"}, rows[1])
	assert.Equal(t, "0.020", rows[2][1])
	assert.Equal(t, "2", rows[2][2])
}

func TestRecorder_ForwardsFramesAndOtherEvents(t *testing.T) {
	_, in, next := startRecorder(t, DefaultConfig())

	send(in, frame(5, 1))
	send(in, &core.StatusEvent{Message: "x"})
	_, ok := (<-next).Event.(*sensor.SensorFrameEvent)
	assert.True(t, ok)
	_, ok = (<-next).Event.(*core.StatusEvent)
	assert.True(t, ok)
}

func TestRecorder_RejectsEmptyLabel(t *testing.T) {
	_, in, next := startRecorder(t, DefaultConfig())

	send(in, &control.RecorderStartEvent{Label: "  "})
	status := nextStatus(t, next)
	assert.False(t, status.Recording)
	assert.NotEmpty(t, status.Error)
}

func TestRecorder_DeleteByLabelAndID(t *testing.T) {
	store, in, next := startRecorder(t, RecorderConfig{FlushRows: 1})

	send(in, &control.RecorderStartEvent{Label: "A", ID: "1"})
	nextStatus(t, next)
	send(in, frame(0, 1))
	send(in, frame(20, 1))
	send(in, &control.RecorderStartEvent{Label: "B", ID: "2"})
	nextStatus(t, next)
	send(in, frame(40, 1))
	send(in, &control.RecorderStopEvent{})
	assert.Equal(t, 3, nextStatus(t, next).Rows)

	send(in, &control.RecorderDeleteEvent{Type: "label", Value: "A"})
	status := nextStatus(t, next)
	assert.Equal(t, 2, status.Deleted)
	assert.Equal(t, 1, status.Rows)

	send(in, &control.RecorderDeleteEvent{Type: "id", Value: "2"})
	status = nextStatus(t, next)
	assert.Equal(t, 1, status.Deleted)
	assert.Equal(t, 0, status.Rows)
	assert.Equal(t, [][]string{Header}, readCSV(t, store.Path()))

	send(in, &control.RecorderDeleteEvent{Type: "row", Value: "1"})
	assert.NotEmpty(t, nextStatus(t, next).Error)
}

func TestCSVStore_CountMissingFile(t *testing.T) {
	store, err := NewCSVStore(t.TempDir(), "none.csv")
	require.NoError(t, err)
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	deleted, err := store.Delete(true, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
