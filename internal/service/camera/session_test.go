package camera

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

type fakeDevice struct {
	opened   bool
	reads    []bool
	position float64
	props    map[gocv.VideoCaptureProperties]float64
	closed   int
}

func newFakeDevice(reads ...bool) *fakeDevice {
	return &fakeDevice{opened: true, reads: reads, props: make(map[gocv.VideoCaptureProperties]float64)}
}

func (d *fakeDevice) IsOpened() bool { return d.opened }

func (d *fakeDevice) Read(frame *gocv.Mat) bool {
	if len(d.reads) == 0 || !d.reads[0] {
		return false
	}
	d.reads = d.reads[1:]
	d.position++
	blank := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blank.CopyTo(frame)
	return true
}

func (d *fakeDevice) Set(prop gocv.VideoCaptureProperties, value float64) { d.props[prop] = value }

func (d *fakeDevice) Get(prop gocv.VideoCaptureProperties) float64 {
	if prop == gocv.VideoCapturePosFrames {
		return d.position
	}
	return d.props[prop]
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

var cam1 = model.CameraSpec{Name: "cam1", URL: "rtsp://10.0.0.1/stream", FPS: 15, Width: 640, Height: 480}

func TestSession_OpenAppliesSpec(t *testing.T) {
	dev := newFakeDevice(true)
	var gotURL string
	s := NewSession(cam1, func(url string) (Device, error) {
		gotURL = url
		return dev, nil
	}, logger.Discard())

	if s.State() != Disconnected {
		t.Fatalf("Expected initial state Disconnected, got %s", s.State())
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.State() != Connected {
		t.Errorf("Expected Connected, got %s", s.State())
	}
	if gotURL != cam1.URL {
		t.Errorf("Expected url %s, got %s", cam1.URL, gotURL)
	}
	if dev.props[gocv.VideoCaptureFPS] != 15 || dev.props[gocv.VideoCaptureFrameWidth] != 640 || dev.props[gocv.VideoCaptureFrameHeight] != 480 {
		t.Errorf("Spec not applied: %v", dev.props)
	}
}

func TestSession_OpenFailureStaysDisconnected(t *testing.T) {
	tests := []struct {
		name   string
		opener Opener
	}{
		{"error", func(string) (Device, error) { return nil, errors.New("unreachable") }},
		{"not opened", func(string) (Device, error) { return &fakeDevice{opened: false}, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			s := NewSession(cam1, tt.opener, logger.New(&logs))

			err := s.Open()
			if !errors.Is(err, ErrConnectionFailure) {
				t.Fatalf("Expected ErrConnectionFailure, got %v", err)
			}
			if s.State() != Disconnected {
				t.Errorf("Expected Disconnected after failed open, got %s", s.State())
			}
			if !strings.Contains(logs.String(), "| ERROR | Failed to open camera: cam1") {
				t.Errorf("Expected failure to be logged, got %q", logs.String())
			}

			frame := gocv.NewMat()
			defer frame.Close()
			if _, err := s.Read(&frame); !errors.Is(err, ErrNotConnected) {
				t.Errorf("Expected ErrNotConnected, got %v", err)
			}
		})
	}
}

func TestSession_ReadReturnsPosition(t *testing.T) {
	dev := newFakeDevice(true, true)
	s := NewSession(cam1, func(string) (Device, error) { return dev, nil }, logger.Discard())
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	for want := int64(1); want <= 2; want++ {
		pos, err := s.Read(&frame)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if pos != want {
			t.Errorf("Expected position %d, got %d", want, pos)
		}
		if frame.Empty() {
			t.Error("Expected frame data")
		}
	}
}

func TestSession_ReadFailureReleasesHandle(t *testing.T) {
	dev := newFakeDevice(false)
	s := NewSession(cam1, func(string) (Device, error) { return dev, nil }, logger.Discard())
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if _, err := s.Read(&frame); !errors.Is(err, ErrReadFailure) {
		t.Fatalf("Expected ErrReadFailure, got %v", err)
	}
	if s.State() != Disconnected {
		t.Errorf("Expected Disconnected after read failure, got %s", s.State())
	}
	if dev.closed != 1 {
		t.Errorf("Expected handle released once, got %d", dev.closed)
	}

	if _, err := s.Read(&frame); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after release, got %v", err)
	}
}

func TestSession_ReopenReleasesPreviousHandle(t *testing.T) {
	first := newFakeDevice()
	second := newFakeDevice()
	devices := []*fakeDevice{first, second}
	s := NewSession(cam1, func(string) (Device, error) {
		d := devices[0]
		devices = devices[1:]
		return d, nil
	}, logger.Discard())

	s.Open()
	s.Open()

	if first.closed != 1 {
		t.Errorf("Expected first handle released on reopen, got %d closes", first.closed)
	}
	if second.closed != 0 {
		t.Errorf("Expected second handle to stay open, got %d closes", second.closed)
	}
	if s.State() != Connected {
		t.Errorf("Expected Connected, got %s", s.State())
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	dev := newFakeDevice()
	s := NewSession(cam1, func(string) (Device, error) { return dev, nil }, logger.Discard())
	s.Open()

	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close %d failed: %v", i, err)
		}
	}
	if dev.closed != 1 {
		t.Errorf("Expected exactly one release, got %d", dev.closed)
	}
	if s.State() != Disconnected {
		t.Errorf("Expected Disconnected, got %s", s.State())
	}
}

func TestOpenCapture_MissingSource(t *testing.T) {
	dev, err := OpenCapture(filepath.Join(t.TempDir(), "missing.mp4"))
	if err == nil {
		if dev != nil {
			dev.Close()
		}
		t.Fatal("Expected error for missing source")
	}
	if dev != nil {
		t.Errorf("Expected no device on failure, got %T", dev)
	}

	s := NewSession(model.CameraSpec{Name: "missing", URL: filepath.Join(t.TempDir(), "missing.mp4")}, nil, logger.Discard())
	if err := s.Open(); !errors.Is(err, ErrConnectionFailure) {
		t.Errorf("Expected ErrConnectionFailure, got %v", err)
	}
	if s.State() != Disconnected {
		t.Errorf("Expected Disconnected, got %s", s.State())
	}
}
