package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

var (
	// ErrNotConnected is returned by Read when the session holds no handle.
	ErrNotConnected = errors.New("camera not connected")
	// ErrReadFailure is returned when a frame read fails; the handle is released.
	ErrReadFailure = errors.New("frame read failed")
	// ErrConnectionFailure is returned when Open cannot establish a connection.
	ErrConnectionFailure = errors.New("camera connection failed")
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Device is a live capture handle.
type Device interface {
	IsOpened() bool
	Read(frame *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, value float64)
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Opener connects to a capture source.
type Opener func(url string) (Device, error)

// Session owns one camera's capture handle. A Connected session holds exactly
// one handle and a Disconnected session holds none.
type Session struct {
	spec   model.CameraSpec
	open   Opener
	logger *logger.Logger

	mu     sync.Mutex
	state  State
	device Device
}

// NewSession creates a Disconnected session. A nil opener uses OpenCV capture.
func NewSession(spec model.CameraSpec, open Opener, logger *logger.Logger) *Session {
	if open == nil {
		open = OpenCapture
	}
	return &Session{
		spec:   spec,
		open:   open,
		logger: logger,
		state:  Disconnected,
	}
}

func (s *Session) Name() string {
	return s.spec.Name
}

func (s *Session) Spec() model.CameraSpec {
	return s.spec
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open connects to the camera, releasing any previous handle first. On
// failure the session stays Disconnected; retries are up to the caller.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()

	s.logger.Info("Connecting to camera: %s", s.spec.Name)
	device, err := s.open(s.spec.URL)
	if err == nil && (device == nil || !device.IsOpened()) {
		if device != nil {
			device.Close()
		}
		err = errors.New("capture not opened")
	}
	if err != nil {
		s.logger.Error("Failed to open camera: %s: %v", s.spec.Name, err)
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailure, s.spec.Name, err)
	}

	if s.spec.FPS > 0 {
		device.Set(gocv.VideoCaptureFPS, float64(s.spec.FPS))
	}
	if s.spec.Width > 0 {
		device.Set(gocv.VideoCaptureFrameWidth, float64(s.spec.Width))
	}
	if s.spec.Height > 0 {
		device.Set(gocv.VideoCaptureFrameHeight, float64(s.spec.Height))
	}

	s.device = device
	s.state = Connected
	s.logger.Info("Camera %s connected", s.spec.Name)
	return nil
}

// Read reads one frame into frame and returns the source's frame position.
// A failed read releases the handle and leaves the session Disconnected.
func (s *Session) Read(frame *gocv.Mat) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected {
		return 0, ErrNotConnected
	}

	if !s.device.Read(frame) || frame.Empty() {
		s.logger.Warning("Frame read failed: %s", s.spec.Name)
		s.releaseLocked()
		return 0, fmt.Errorf("%w: %s", ErrReadFailure, s.spec.Name)
	}

	return int64(s.device.Get(gocv.VideoCapturePosFrames)), nil
}

// Close releases the handle if present. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Session) releaseLocked() error {
	if s.device == nil {
		s.state = Disconnected
		return nil
	}
	err := s.device.Close()
	s.device = nil
	s.state = Disconnected
	if err != nil {
		return fmt.Errorf("failed to release camera %s: %w", s.spec.Name, err)
	}
	return nil
}
