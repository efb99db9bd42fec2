package display

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// QuitKey ends the application when pressed in any display window.
const QuitKey = 'q'

// Surface renders annotated frames for an operator.
type Surface interface {
	Show(camera string, frame gocv.Mat) error
	// QuitRequested polls the keyboard once and reports whether QuitKey was pressed.
	QuitRequested() bool
	Close() error
}

// Window is one on-screen frame viewer.
type Window interface {
	Show(frame gocv.Mat) error
	WaitKey(delay int) int
	Close() error
}

// WindowFactory creates a window with the given title.
type WindowFactory func(title string) Window

// Windows shows each camera in its own window, created on first use.
type Windows struct {
	newWindow WindowFactory

	mu      sync.Mutex
	windows map[string]Window
	order   []string
}

// NewWindows creates a Surface backed by highgui windows. A nil factory uses
// gocv.NewWindow.
func NewWindows(factory WindowFactory) *Windows {
	if factory == nil {
		factory = newGocvWindow
	}
	return &Windows{
		newWindow: factory,
		windows:   make(map[string]Window),
	}
}

func (w *Windows) Show(camera string, frame gocv.Mat) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.windows[camera]
	if !ok {
		win = w.newWindow(camera)
		w.windows[camera] = win
		w.order = append(w.order, camera)
	}
	if err := win.Show(frame); err != nil {
		return fmt.Errorf("failed to show frame for camera %s: %w", camera, err)
	}
	return nil
}

func (w *Windows) QuitRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.order) == 0 {
		return false
	}
	// highgui delivers key events for every window through one WaitKey call.
	key := w.windows[w.order[0]].WaitKey(1)
	return key >= 0 && key&0xFF == QuitKey
}

// Close destroys every window that was opened.
func (w *Windows) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs error
	for _, name := range w.order {
		errs = multierr.Append(errs, w.windows[name].Close())
	}
	w.windows = make(map[string]Window)
	w.order = nil
	return errs
}

// None is the Surface used when show_video is off.
type None struct{}

func (None) Show(string, gocv.Mat) error { return nil }

func (None) QuitRequested() bool { return false }

func (None) Close() error { return nil }

type gocvWindow struct {
	win *gocv.Window
}

func newGocvWindow(title string) Window {
	return &gocvWindow{win: gocv.NewWindow(title)}
}

func (g *gocvWindow) Show(frame gocv.Mat) error {
	return g.win.IMShow(frame)
}

func (g *gocvWindow) WaitKey(delay int) int {
	return g.win.WaitKey(delay)
}

func (g *gocvWindow) Close() error {
	return g.win.Close()
}
