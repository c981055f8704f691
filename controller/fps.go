package controller

import "time"

// FPSMeter counts frames and publishes a rate about once per second.
type FPSMeter struct {
	now    func() time.Time
	start  time.Time
	frames int
	fps    float64
}

// NewFPSMeter starts a meter. A nil clock uses time.Now.
func NewFPSMeter(now func() time.Time) *FPSMeter {
	if now == nil {
		now = time.Now
	}
	return &FPSMeter{now: now, start: now()}
}

// Tick counts one frame. Once a second or more has passed since the last publish it publishes
// frames/elapsed and starts a new counting window.
func (m *FPSMeter) Tick() (fps float64, updated bool) {
	m.frames++
	t := m.now()
	elapsed := t.Sub(m.start)
	if elapsed < time.Second {
		return m.fps, false
	}
	m.fps = float64(m.frames) / elapsed.Seconds()
	m.frames = 0
	m.start = t
	return m.fps, true
}

// FPS returns the last published rate, 0 before the first second.
func (m *FPSMeter) FPS() float64 { return m.fps }
