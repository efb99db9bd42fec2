package gate

import "sync"

// Gate samples every Nth frame per camera. The frame position comes from the
// capture source, so for sources that report an unreliable position the gate
// only approximates the configured rate.
type Gate struct {
	interval int64

	mu   sync.Mutex
	last map[string]int64
}

// New creates a Gate; intervals below 1 are treated as 1.
func New(interval int) *Gate {
	if interval < 1 {
		interval = 1
	}
	return &Gate{
		interval: int64(interval),
		last:     make(map[string]int64),
	}
}

// ShouldDetect records position as the camera's latest observed frame
// position and reports whether it is due for detection.
func (g *Gate) ShouldDetect(camera string, position int64) bool {
	g.mu.Lock()
	g.last[camera] = position
	g.mu.Unlock()

	return ShouldDetect(position, g.interval)
}

// Last returns the last observed frame position for camera.
func (g *Gate) Last(camera string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos, ok := g.last[camera]
	return pos, ok
}

func (g *Gate) Interval() int {
	return int(g.interval)
}

// ShouldDetect reports whether position is a multiple of interval.
func ShouldDetect(position, interval int64) bool {
	if interval <= 1 {
		return true
	}
	return position%interval == 0
}
