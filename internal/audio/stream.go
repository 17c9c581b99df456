// Package audio moves console samples to the host: a buffered stream shared
// with the output device, an oto player and a WAV recorder.
package audio

import (
	"sync"

	"nescore/internal/apu"
)

// DefaultStreamSize holds a little under 200ms at 44.1kHz.
const DefaultStreamSize = 8192

// Stream is an apu.SampleRing safe for one writer (the emulation loop) and
// one reader (the audio device), with a volume applied on the way out.
type Stream struct {
	mutex  sync.Mutex
	ring   *apu.SampleRing
	volume float32
}

// NewStream creates a stream holding up to size samples.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = DefaultStreamSize
	}
	return &Stream{ring: apu.NewSampleRing(size), volume: 1}
}

// SetVolume scales samples on the way out. Values are clamped to [0, 1].
func (s *Stream) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mutex.Lock()
	s.volume = v
	s.mutex.Unlock()
}

// Write queues samples. When full, the oldest samples are dropped.
func (s *Stream) Write(samples []float32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, v := range samples {
		s.ring.Push(v)
	}
}

// Read fills dst and returns how many queued samples were used. On underrun
// the rest of dst repeats the last sample so the output does not click.
func (s *Stream) Read(dst []float32) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := s.ring.Read(dst)
	if s.volume != 1 {
		for i := range dst {
			dst[i] *= s.volume
		}
	}
	return n
}

// Len returns the number of queued samples.
func (s *Stream) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ring.Len()
}

// Clear drops queued samples and resets the held value to silence.
func (s *Stream) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ring.Clear()
}
