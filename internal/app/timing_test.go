package app

import (
	"testing"
	"time"
)

func TestFrameWindow(t *testing.T) {
	w := newFrameWindow(3)
	if w.mean() != 0 || w.jitter() != 0 || w.worst() != 0 {
		t.Error("Expected zero stats for an empty window")
	}

	w.add(10 * time.Millisecond)
	w.add(20 * time.Millisecond)
	if w.mean() != 15*time.Millisecond {
		t.Errorf("Expected 15ms mean, got %v", w.mean())
	}
	if w.jitter() != 5*time.Millisecond {
		t.Errorf("Expected 5ms jitter, got %v", w.jitter())
	}

	w.add(30 * time.Millisecond)
	w.add(40 * time.Millisecond)
	if w.len() != 3 {
		t.Errorf("Expected 3 samples, got %d", w.len())
	}
	if w.mean() != 30*time.Millisecond {
		t.Errorf("Expected oldest sample dropped and 30ms mean, got %v", w.mean())
	}
	if w.worst() != 40*time.Millisecond {
		t.Errorf("Expected 40ms worst frame, got %v", w.worst())
	}

	w.reset()
	if w.len() != 0 {
		t.Errorf("Expected empty window after reset, got %d", w.len())
	}
}
