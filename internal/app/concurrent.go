package app

import (
	"context"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"camwatch/internal/service/camera"
)

// runConcurrent gives every camera its own capture goroutine feeding a bounded
// queue, drained by a per-camera worker. Frames of one camera are processed in
// capture order; inference is serialized by the model wrapper.
func (a *App) runConcurrent(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range a.sessions {
		s := s
		queue := make(chan gocv.Mat, a.queueSize)

		g.Go(func() error {
			defer close(queue)
			return a.capture(ctx, s, queue)
		})
		g.Go(func() error {
			a.drain(ctx, s.Name(), queue)
			return nil
		})
	}

	a.logger.Info("Started %d camera worker(s)", len(a.sessions))
	return g.Wait()
}

// drain processes queued frames until the queue closes. Frames still queued
// after cancellation are released without processing.
func (a *App) drain(ctx context.Context, cameraName string, queue <-chan gocv.Mat) {
	for frame := range queue {
		if ctx.Err() == nil {
			a.process(cameraName, frame)
		}
		frame.Close()
	}
}

func (a *App) capture(ctx context.Context, s *camera.Session, queue chan<- gocv.Mat) error {
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		due, err := a.step(ctx, s, &frame)
		if err != nil {
			return err
		}
		if !due {
			continue
		}

		clone := frame.Clone()
		select {
		case queue <- clone:
		default:
			clone.Close()
			a.logger.Warning("Processing queue full for camera %s, skipping frame", s.Name())
		}
	}
}
