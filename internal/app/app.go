package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/repository"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/service/ai"
	"camwatch/internal/service/annotate"
	"camwatch/internal/service/camera"
	"camwatch/internal/service/detection"
	"camwatch/internal/service/display"
	"camwatch/internal/service/gate"
	"camwatch/internal/service/storage"
)

// ErrQuitRequested is returned by RunCycle when the operator pressed the quit key.
var ErrQuitRequested = errors.New("quit requested")

// Dependencies are the externally constructed parts of an App. Only Model and
// Labels are required.
type Dependencies struct {
	Logger  *logger.Logger
	Clock   clock.Clock
	Opener  camera.Opener
	Model   ai.Model
	Labels  []string
	Display display.Surface
	Index   *sqlite.DB
}

// App owns every camera session and the detection pipeline between them and
// the evidence directory.
type App struct {
	cfg    *config.Config
	logger *logger.Logger
	clock  clock.Clock

	sessions  []*camera.Session
	gate      *gate.Gate
	detector  *ai.Detector
	annotator *annotate.Annotator
	storage   *storage.Service
	display   display.Surface
	index     *sqlite.DB

	labels     []string
	target     string
	toggles    storage.Toggles
	backoff    time.Duration
	concurrent bool
	queueSize  int

	frame     gocv.Mat
	closeOnce sync.Once
	closeErr  error
}

// New wires the pipeline, creates the per-camera output directories and makes
// a first connection attempt to every camera. Cameras that fail to connect are
// retried by the loop.
func New(cfg *config.Config, deps Dependencies) (*App, error) {
	if deps.Model == nil {
		return nil, ai.ErrModelNotLoaded
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Display == nil {
		if cfg.ShowVideo {
			deps.Display = display.NewWindows(nil)
		} else {
			deps.Display = display.None{}
		}
	}

	targetID, err := detection.ClassIndex(deps.Labels, cfg.Model.TargetClass)
	if err != nil {
		return nil, err
	}

	queueSize := cfg.Runtime.QueueSize
	if queueSize <= 0 {
		queueSize = config.DefaultQueueSize
	}

	model := deps.Model
	if cfg.Runtime.ConcurrentCameras {
		model = ai.Serialized(model)
	}

	var (
		imageRepo     repository.ImageRepository
		detectionRepo repository.DetectionRepository
	)
	if deps.Index != nil {
		imageRepo = sqlite.NewImageRepository(deps.Index)
		detectionRepo = sqlite.NewDetectionRepository(deps.Index)
	}

	store := storage.NewService(storage.NewLayout(cfg.DetectedObjects, cfg.Location()), deps.Labels, deps.Logger, imageRepo, detectionRepo)
	if err := store.EnsureCameraDirs(cfg.CameraNames()); err != nil {
		return nil, err
	}

	specs := cfg.CameraSpecs()
	sessions := make([]*camera.Session, 0, len(specs))
	for _, spec := range specs {
		sessions = append(sessions, camera.NewSession(spec, deps.Opener, deps.Logger))
	}

	a := &App{
		cfg:      cfg,
		logger:   deps.Logger,
		clock:    deps.Clock,
		sessions: sessions,
		gate:     gate.New(cfg.DetectionFrameInterval),
		detector: ai.NewDetector(model, cfg.Model.ModelSize, detection.Params{
			TargetClassID:       targetID,
			ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
			NMSThreshold:        cfg.Detection.NMSThreshold,
		}),
		annotator: annotate.NewAnnotator(annotate.Style{
			BoxColor:      annotate.BGR(cfg.Display.BoxColor),
			BoxThickness:  cfg.Display.BoxThickness,
			TextSize:      cfg.Display.TextSize,
			TextColor:     annotate.BGR(cfg.Display.TextColor),
			TextThickness: cfg.Display.TextThickness,
		}, deps.Labels),
		storage: store,
		display: deps.Display,
		index:   deps.Index,
		labels:  deps.Labels,
		target:  cfg.Model.TargetClass,
		toggles: storage.Toggles{
			Raw:       cfg.Runtime.SaveWithoutBBox,
			Annotated: cfg.Runtime.SaveWithBBox,
		},
		backoff:    cfg.ReconnectBackoff(),
		concurrent: cfg.Runtime.ConcurrentCameras,
		queueSize:  queueSize,
		frame:      gocv.NewMat(),
	}

	a.logger.Info("Target class: %s (id %d)", a.target, targetID)
	a.logger.Info("Detection every %d frame(s) on %d camera(s)", a.gate.Interval(), len(sessions))

	for _, s := range sessions {
		s.Open()
		a.logger.Info("Camera initialized: %s", s.Name())
	}
	return a, nil
}

// Sessions returns the camera sessions in visiting order.
func (a *App) Sessions() []*camera.Session {
	return a.sessions
}

// Run drives the loop until ctx is cancelled, the quit key is pressed or an
// unexpected error occurs. Resources are released on every exit path.
func (a *App) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, a.Close())
	}()

	if a.concurrent {
		err = a.runConcurrent(ctx)
	} else {
		for err == nil {
			err = a.RunCycle(ctx)
		}
	}

	switch {
	case errors.Is(err, ErrQuitRequested):
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.logger.Warning("Interrupt received, shutting down")
		return nil
	}
	return err
}

// RunCycle visits every camera once in order, then polls the display for the
// quit key.
func (a *App) RunCycle(ctx context.Context) error {
	for _, s := range a.sessions {
		if err := ctx.Err(); err != nil {
			return err
		}

		due, err := a.step(ctx, s, &a.frame)
		if err != nil {
			return err
		}
		if due {
			a.process(s.Name(), a.frame)
		}
	}

	if a.display.QuitRequested() {
		a.logger.Info("Exit requested by user")
		return ErrQuitRequested
	}
	return nil
}

// step advances one session by a single action: reconnect after the backoff,
// or read a frame. It reports whether the frame just read is due for detection.
func (a *App) step(ctx context.Context, s *camera.Session, frame *gocv.Mat) (bool, error) {
	if s.State() == camera.Disconnected {
		a.logger.Warning("Reconnecting camera: %s", s.Name())
		if err := a.wait(ctx); err != nil {
			return false, err
		}
		// Failures are logged by the session and retried next cycle.
		s.Open()
		return false, nil
	}

	position, err := s.Read(frame)
	if err != nil {
		if errors.Is(err, camera.ErrReadFailure) {
			s.Open()
		}
		return false, nil
	}

	return a.gate.ShouldDetect(s.Name(), position), nil
}

func (a *App) wait(ctx context.Context) error {
	if a.backoff <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.clock.After(a.backoff):
		return nil
	}
}

// process runs detection on frame and persists both variants when the target
// class is present. frame is not modified.
func (a *App) process(cameraName string, frame gocv.Mat) {
	dets, err := a.detector.Detect(frame)
	if err != nil {
		a.logger.Error("Detection failed for camera %s: %v", cameraName, err)
		return
	}
	if len(dets) == 0 {
		return
	}
	a.logger.Info("Camera %s: %d %s detected", cameraName, len(dets), a.target)

	var annotatedFrame storage.Frame
	annotated, err := a.annotator.Annotate(frame, dets)
	if err != nil {
		a.logger.Error("Failed to annotate frame for camera %s: %v", cameraName, err)
	} else {
		defer annotated.Close()
		annotatedFrame = matFrame{mat: annotated}
	}

	if _, err := a.storage.Save(cameraName, a.clock.Now(), matFrame{mat: frame}, annotatedFrame, dets, a.toggles); err != nil {
		a.logger.Warning("Frame cycle for camera %s was only partially saved: %v", cameraName, err)
	}

	if annotatedFrame != nil {
		if err := a.display.Show(cameraName, annotated); err != nil {
			a.logger.Warning("Display failed: %v", err)
		}
	}
}

// Close releases every camera handle, the display, the model and the index.
// Only the first call has any effect.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs error
		for _, s := range a.sessions {
			errs = multierr.Append(errs, s.Close())
		}
		errs = multierr.Append(errs, a.display.Close())
		errs = multierr.Append(errs, a.detector.Close())
		if a.index != nil {
			errs = multierr.Append(errs, a.index.Close())
		}
		if err := a.frame.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to release frame buffer: %w", err))
		}

		if errs != nil {
			a.logger.Error("Cleanup finished with errors: %v", errs)
		}
		a.logger.Info("========== Application Stopped ==========")
		a.closeErr = errs
	})
	return a.closeErr
}
