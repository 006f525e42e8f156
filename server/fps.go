package crowdsafe

import "time"

// FPSMeter counts frames over windows of at least Window
// and reports the rate of the last complete window
type FPSMeter struct {
	Window time.Duration
	start  time.Time
	count  int
	fps    float64
}

func NewFPSMeter() *FPSMeter {
	return &FPSMeter{Window: time.Second}
}

// Tick counts one frame at now and returns the current rate
func (m *FPSMeter) Tick(now time.Time) float64 {
	if m.start.IsZero() {
		m.start = now
	}
	m.count++

	elapsed := now.Sub(m.start)
	if elapsed >= m.Window {
		m.fps = float64(m.count) / elapsed.Seconds()
		m.count = 0
		m.start = now
	}
	return m.fps
}

func (m *FPSMeter) FPS() float64 { return m.fps }
