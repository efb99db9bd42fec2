package logger

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RotatingFile is the subset of lumberjack.Logger the rotator drives.
type RotatingFile interface {
	Write(p []byte) (int, error)
	Rotate() error
	Close() error
}

// DailyRotator rotates the wrapped file the first time it is written to on a
// new calendar day in loc.
type DailyRotator struct {
	file  RotatingFile
	loc   *time.Location
	clock clock.Clock

	mu  sync.Mutex
	day string
}

func NewDailyRotator(file RotatingFile, loc *time.Location, clk clock.Clock) *DailyRotator {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.New()
	}
	return &DailyRotator{
		file:  file,
		loc:   loc,
		clock: clk,
		day:   clk.Now().In(loc).Format("2006-01-02"),
	}
}

func (r *DailyRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := r.clock.Now().In(r.loc).Format("2006-01-02")
	if today != r.day {
		if err := r.file.Rotate(); err != nil {
			return 0, err
		}
		r.day = today
	}
	return r.file.Write(p)
}

func (r *DailyRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
