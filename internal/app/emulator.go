package app

import (
	"time"

	"github.com/pkg/errors"

	"nescore/internal/audio"
	"nescore/internal/bus"
	"nescore/internal/script"
)

// Emulator runs the console one frame per host update and moves the audio
// produced by each frame to the output stream and recorder.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	stream   *audio.Stream
	recorder *audio.Recorder
	script   *script.Runner
	samples  []float32

	isRunning        bool
	frameCount       uint64
	startTime        time.Time
	emulationTime    time.Duration
	averageFrameTime time.Duration
	frameTimes       *frameWindow
}

// NewEmulator creates an emulator for b. Audio output, recording and
// scripting are attached with the Set methods.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	return &Emulator{
		bus:        b,
		config:     config,
		samples:    make([]float32, 0, 1024),
		frameTimes: newFrameWindow(120),
	}
}

// SetAudioStream sets where generated samples are queued for playback.
func (e *Emulator) SetAudioStream(s *audio.Stream) {
	e.stream = s
}

// SetRecorder sets a WAV recorder that receives every generated sample.
func (e *Emulator) SetRecorder(r *audio.Recorder) {
	e.recorder = r
}

// SetScript sets a script whose frame hook runs after every frame.
func (e *Emulator) SetScript(r *script.Runner) {
	e.script = r
}

// Start starts the emulator
func (e *Emulator) Start() {
	e.isRunning = true
	e.startTime = time.Now()
}

// Stop stops the emulator
func (e *Emulator) Stop() {
	e.isRunning = false
}

// IsRunning reports whether Update advances the console
func (e *Emulator) IsRunning() bool {
	return e.isRunning
}

// Update runs exactly one frame. Console faults are returned unchanged so
// callers can test them with errors.Is.
func (e *Emulator) Update() error {
	if !e.isRunning {
		return nil
	}

	start := time.Now()
	if err := e.bus.StepFrame(); err != nil {
		return err
	}
	e.frameCount++

	if err := e.pumpAudio(); err != nil {
		return err
	}
	if e.script != nil {
		if err := e.script.Frame(); err != nil {
			return err
		}
		if e.script.Stopped() {
			e.isRunning = false
		}
	}

	e.emulationTime = time.Since(start)
	e.frameTimes.add(e.emulationTime)
	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.emulationTime
	} else {
		e.averageFrameTime = time.Duration(float64(e.averageFrameTime)*0.95 + float64(e.emulationTime)*0.05)
	}
	return nil
}

// pumpAudio drains the console's sample buffer.
func (e *Emulator) pumpAudio() error {
	n := e.bus.BufferedSamples()
	if n == 0 {
		return nil
	}
	if cap(e.samples) < n {
		e.samples = make([]float32, n)
	}
	e.samples = e.samples[:n]
	e.bus.ReadSamples(e.samples)

	if e.stream != nil {
		e.stream.Write(e.samples)
	}
	if e.recorder != nil {
		if err := e.recorder.Write(e.samples); err != nil {
			return errors.Wrap(err, "record audio")
		}
	}
	return nil
}

// StepFrame runs one frame even while stopped, for frame advance.
func (e *Emulator) StepFrame() error {
	running := e.isRunning
	e.isRunning = true
	err := e.Update()
	if e.isRunning {
		e.isRunning = running
	}
	return err
}

// ScriptStopped reports whether the attached script asked to stop.
func (e *Emulator) ScriptStopped() bool {
	return e.script != nil && e.script.Stopped()
}

// GetFrameBuffer returns the last completed frame
func (e *Emulator) GetFrameBuffer() []uint32 {
	return e.bus.FrameBuffer()
}

// GetFrameCount returns the frames run by this emulator
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// GetCycleCount returns the console's CPU cycle count
func (e *Emulator) GetCycleCount() uint64 {
	return e.bus.Cycles()
}

// GetEmulationTime returns how long the last frame took to emulate
func (e *Emulator) GetEmulationTime() time.Duration {
	return e.emulationTime
}

// GetAverageFrameTime returns a smoothed frame emulation time
func (e *Emulator) GetAverageFrameTime() time.Duration {
	return e.averageFrameTime
}

// GetEmulationSpeed returns emulation speed relative to real time, over the
// recent frames.
func (e *Emulator) GetEmulationSpeed() float64 {
	avg := e.frameTimes.mean()
	if avg == 0 {
		return 0
	}
	target := time.Duration(float64(time.Second) / e.config.Emulation.FrameRate)
	return float64(target) / float64(avg)
}

// GetFrameJitter returns the spread and the worst of the recent frame
// emulation times.
func (e *Emulator) GetFrameJitter() (jitter, worst time.Duration) {
	return e.frameTimes.jitter(), e.frameTimes.worst()
}

// GetUptime returns the time since Start
func (e *Emulator) GetUptime() time.Duration {
	if e.startTime.IsZero() {
		return 0
	}
	return time.Since(e.startTime)
}
