package app

import (
	"path/filepath"
	"testing"

	"nescore/internal/audio"
	"nescore/internal/script"
)

func TestEmulator_UpdateRunsOneFrame(t *testing.T) {
	b, _ := newTestBus(t, loopProgram)
	e := NewEmulator(b, NewConfig())

	if err := e.Update(); err != nil {
		t.Fatal(err)
	}
	if e.GetFrameCount() != 0 {
		t.Errorf("Expected no frames before Start, got %d", e.GetFrameCount())
	}

	e.Start()
	for i := 0; i < 2; i++ {
		if err := e.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	if e.GetFrameCount() != 2 {
		t.Errorf("Expected 2 frames, got %d", e.GetFrameCount())
	}
	if b.Frame() != 2 {
		t.Errorf("Expected console frame 2, got %d", b.Frame())
	}
	if e.GetCycleCount() == 0 {
		t.Error("Expected cycles to advance")
	}
}

func TestEmulator_PumpsAudio(t *testing.T) {
	b, _ := newTestBus(t, loopProgram)
	e := NewEmulator(b, NewConfig())
	stream := audio.NewStream(0)
	e.SetAudioStream(stream)

	rec, err := audio.NewRecorder(filepath.Join(t.TempDir(), "out.wav"), 44100)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()
	e.SetRecorder(rec)

	e.Start()
	if err := e.Update(); err != nil {
		t.Fatal(err)
	}

	if b.BufferedSamples() != 0 {
		t.Errorf("Expected console buffer drained, got %d samples", b.BufferedSamples())
	}
	if stream.Len() == 0 {
		t.Error("Expected samples in the output stream")
	}
	if rec.Samples() != stream.Len() {
		t.Errorf("Expected recorder to see %d samples, got %d", stream.Len(), rec.Samples())
	}
}

func TestEmulator_ScriptStop(t *testing.T) {
	b, _ := newTestBus(t, loopProgram)
	e := NewEmulator(b, NewConfig())

	r := script.New(b)
	defer r.Close()
	if err := r.LoadString(`function on_frame(f) if f >= 2 then nes.stop() end end`); err != nil {
		t.Fatal(err)
	}
	e.SetScript(r)
	e.Start()

	for i := 0; i < 4; i++ {
		if err := e.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if !e.ScriptStopped() {
		t.Error("Expected script to have stopped")
	}
	if e.IsRunning() {
		t.Error("Expected emulator to stop with the script")
	}
	if e.GetFrameCount() != 2 {
		t.Errorf("Expected 2 frames, got %d", e.GetFrameCount())
	}
}

func TestEmulator_StepFrameWhileStopped(t *testing.T) {
	b, _ := newTestBus(t, loopProgram)
	e := NewEmulator(b, NewConfig())

	if err := e.StepFrame(); err != nil {
		t.Fatal(err)
	}
	if e.GetFrameCount() != 1 {
		t.Errorf("Expected 1 frame, got %d", e.GetFrameCount())
	}
	if e.IsRunning() {
		t.Error("Expected frame advance to leave the emulator stopped")
	}
}
