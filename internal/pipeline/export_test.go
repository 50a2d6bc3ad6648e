package pipeline

import "time"

// SetClock replaces the pipeline clock and restarts the fps window.
func SetClock(p *Pipeline, now func() time.Time) {
	p.now = now
	p.lastFPSTime = now()
}
