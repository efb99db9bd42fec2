package ai

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

// ErrModelNotLoaded is returned when inference is attempted without a network.
var ErrModelNotLoaded = errors.New("detection network not initialized")

// Model runs inference on a preprocessed blob and returns raw candidates.
type Model interface {
	Infer(blob gocv.Mat) ([]model.RawCandidate, error)
	Close() error
}

// DarknetModel is a YOLO network loaded from Darknet cfg/weights files.
type DarknetModel struct {
	net         gocv.Net
	outputNames []string
	logger      *logger.Logger
}

// NewDarknetModel loads the network and resolves its output layers.
func NewDarknetModel(configPath, weightPath string, logger *logger.Logger) (*DarknetModel, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s: %w", configPath, err)
	}
	if _, err := os.Stat(weightPath); err != nil {
		return nil, fmt.Errorf("weight file not found: %s: %w", weightPath, err)
	}

	net := gocv.ReadNetFromDarknet(configPath, weightPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", configPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendOpenCV)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	names := net.GetLayerNames()
	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		if id-1 >= 0 && id-1 < len(names) {
			outputs = append(outputs, names[id-1])
		}
	}
	if len(outputs) == 0 {
		net.Close()
		return nil, fmt.Errorf("network %s has no output layers", configPath)
	}

	logger.Info("Detection network initialized with output layers %v", outputs)
	return &DarknetModel{net: net, outputNames: outputs, logger: logger}, nil
}

// Infer runs a forward pass. Every output row is
// [centerX, centerY, width, height, objectness, classScores...].
func (m *DarknetModel) Infer(blob gocv.Mat) ([]model.RawCandidate, error) {
	if m.net.Empty() {
		return nil, ErrModelNotLoaded
	}

	m.net.SetInput(blob, "")
	outputs := m.net.ForwardLayers(m.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	var candidates []model.RawCandidate
	for _, out := range outputs {
		candidates = append(candidates, ParseOutput(out)...)
	}
	return candidates, nil
}

func (m *DarknetModel) Close() error {
	return m.net.Close()
}

// ParseOutput converts one YOLO output matrix into raw candidates.
func ParseOutput(out gocv.Mat) []model.RawCandidate {
	rows, cols := out.Rows(), out.Cols()
	if cols <= 5 {
		return nil
	}

	candidates := make([]model.RawCandidate, 0, rows)
	for r := 0; r < rows; r++ {
		scores := make([]float32, cols-5)
		for c := 5; c < cols; c++ {
			scores[c-5] = out.GetFloatAt(r, c)
		}
		candidates = append(candidates, model.RawCandidate{
			Scores:  scores,
			CenterX: out.GetFloatAt(r, 0),
			CenterY: out.GetFloatAt(r, 1),
			Width:   out.GetFloatAt(r, 2),
			Height:  out.GetFloatAt(r, 3),
		})
	}
	return candidates
}

type serializedModel struct {
	mu    sync.Mutex
	model Model
}

// Serialized wraps m so concurrent Infer calls run one at a time.
func Serialized(m Model) Model {
	return &serializedModel{model: m}
}

func (s *serializedModel) Infer(blob gocv.Mat) ([]model.RawCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Infer(blob)
}

func (s *serializedModel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Close()
}
