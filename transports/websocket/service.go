package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"handspeak/core"
)

const writeTimeout = 5 * time.Second

// wireReading is one device message:
//
//	{"type": "acceleration", "x": 0.1, "y": -0.2, "z": 9.8}
//
// Orientation messages carry "w" as well.
type wireReading struct {
	Type string   `json:"type"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
	Z    *float64 `json:"z"`
	W    *float64 `json:"w"`
}

var channelAliases = map[string]core.SensorChannel{
	"acceleration":     core.ChannelAcceleration,
	"gravity":          core.ChannelGravity,
	"angular_velocity": core.ChannelAngularVelocity,
	"angularVelocity":  core.ChannelAngularVelocity,
	"orientation":      core.ChannelOrientation,
}

// DecodeReading parses one text frame. Errors wrap core.ErrInvalidFrame.
func DecodeReading(data []byte, receivedAt time.Time) (core.SensorReading, error) {
	var w wireReading
	if err := sonic.Unmarshal(data, &w); err != nil {
		return core.SensorReading{}, fmt.Errorf("%w: %v", core.ErrInvalidFrame, err)
	}
	ch, ok := channelAliases[w.Type]
	if !ok {
		return core.SensorReading{}, fmt.Errorf("%w: unknown type %q", core.ErrInvalidFrame, w.Type)
	}

	parts := []*float64{w.X, w.Y, w.Z}
	if ch == core.ChannelOrientation {
		parts = append(parts, w.W)
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		if p == nil {
			return core.SensorReading{}, fmt.Errorf("%w: %s is missing a component", core.ErrInvalidFrame, ch)
		}
		values[i] = *p
	}

	r := core.SensorReading{Channel: ch, Values: values, ReceivedAt: receivedAt}
	if err := r.Validate(); err != nil {
		return core.SensorReading{}, err
	}
	return r, nil
}

// DeviceService is one connected device.
type DeviceService struct {
	conn     *websocket.Conn
	deviceID string
	logger   *core.Logger
	now      func() time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	received  atomic.Uint64
	malformed atomic.Uint64
}

func NewDeviceService(conn *websocket.Conn, deviceID string, logger *core.Logger) *DeviceService {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeviceService{
		conn:     conn,
		deviceID: deviceID,
		logger:   logger.With(map[string]any{"transport": "websocket", "device_id": deviceID}),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (s *DeviceService) DeviceID() string { return s.deviceID }

func (s *DeviceService) Init(_ context.Context) error {
	if s.conn == nil {
		return websocket.ErrCloseSent
	}
	return nil
}

func (s *DeviceService) Cleanup() error { return s.Close() }
func (s *DeviceService) Reset() error   { return nil }

// Stats returns how many messages were accepted and how many were dropped.
func (s *DeviceService) Stats() (received, malformed uint64) {
	return s.received.Load(), s.malformed.Load()
}

// Done is closed after Close.
func (s *DeviceService) Done() <-chan struct{} { return s.done }

// StartReceiving reads until the connection fails or is closed. The first
// read error is reported on errorChan unless Close was called.
func (s *DeviceService) StartReceiving(outputChan chan<- core.SensorReading, errorChan chan<- error) {
	go func() {
		for {
			messageType, msg, err := s.conn.ReadMessage()
			if err != nil {
				select {
				case <-s.done:
				case errorChan <- err:
				}
				return
			}
			if messageType != websocket.TextMessage {
				s.malformed.Add(1)
				continue
			}

			reading, err := DecodeReading(msg, s.now())
			if err != nil {
				s.malformed.Add(1)
				s.logger.With(map[string]any{"error": err}).Debug("dropping device message")
				continue
			}
			s.received.Add(1)

			select {
			case outputChan <- reading:
			case <-s.done:
				return
			}
		}
	}()
}

func (s *DeviceService) SendEvent(event core.IExternalOutputEvent) error {
	data, err := core.EncodeWireEvent(event)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts down the WebSocket connection
func (s *DeviceService) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, websocket.ErrCloseSent) {
			err = cerr
		}
	})
	return err
}
