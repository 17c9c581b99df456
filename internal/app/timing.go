package app

import (
	"math"
	"time"
)

// frameWindow keeps the emulation time of the most recent frames. It is
// only touched from the emulation goroutine.
type frameWindow struct {
	times []time.Duration
	next  int
	full  bool
}

func newFrameWindow(frames int) *frameWindow {
	if frames < 1 {
		frames = 1
	}
	return &frameWindow{times: make([]time.Duration, frames)}
}

func (w *frameWindow) add(d time.Duration) {
	w.times[w.next] = d
	w.next++
	if w.next == len(w.times) {
		w.next = 0
		w.full = true
	}
}

func (w *frameWindow) samples() []time.Duration {
	if w.full {
		return w.times
	}
	return w.times[:w.next]
}

func (w *frameWindow) len() int {
	return len(w.samples())
}

func (w *frameWindow) mean() time.Duration {
	s := w.samples()
	if len(s) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total / time.Duration(len(s))
}

// jitter is the standard deviation of the window.
func (w *frameWindow) jitter() time.Duration {
	s := w.samples()
	if len(s) < 2 {
		return 0
	}
	m := float64(w.mean())
	var sum float64
	for _, d := range s {
		diff := float64(d) - m
		sum += diff * diff
	}
	return time.Duration(math.Sqrt(sum / float64(len(s))))
}

func (w *frameWindow) worst() time.Duration {
	var max time.Duration
	for _, d := range w.samples() {
		if d > max {
			max = d
		}
	}
	return max
}

func (w *frameWindow) reset() {
	w.next = 0
	w.full = false
}
