package graphics

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
)

// HeadlessBackend implements the Backend interface for headless operation
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow keeps the last frame and optionally dumps frames to PNG.
type HeadlessWindow struct {
	title      string
	width      int
	height     int
	running    bool
	frameCount int
	status     string
	last       []uint32

	outputDir string
	every     int
	scale     int
	written   []string
}

// NewHeadlessBackend creates a new headless graphics backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return errors.New("headless backend already initialized")
	}

	b.config = config
	b.initialized = true

	return nil
}

// CreateWindow creates a headless "window" (no actual window)
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, errors.New("backend not initialized")
	}

	scale := b.config.ScreenshotScale
	if scale < 1 {
		scale = 1
	}
	return &HeadlessWindow{
		title:     title,
		width:     width,
		height:    height,
		running:   true,
		last:      make([]uint32, FrameWidth*FrameHeight),
		outputDir: b.config.OutputDir,
		every:     b.config.ScreenshotEvery,
		scale:     scale,
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true (this is a headless backend)
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

// SetTitle sets the window title (for logging purposes)
func (w *HeadlessWindow) SetTitle(title string) {
	w.title = title
}

// GetSize returns window dimensions
func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *HeadlessWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns nil; there is no input in headless mode.
func (w *HeadlessWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame keeps a copy of the frame and writes every Nth one to disk.
func (w *HeadlessWindow) RenderFrame(frame []uint32) error {
	if len(frame) != len(w.last) {
		return errors.Errorf("graphics: frame has %d pixels", len(frame))
	}
	w.frameCount++
	copy(w.last, frame)

	if w.every > 0 && w.outputDir != "" && w.frameCount%w.every == 0 {
		path := filepath.Join(w.outputDir, fmt.Sprintf("frame_%05d.png", w.frameCount))
		if err := SaveScreenshot(path, frame, w.scale); err != nil {
			return err
		}
		w.written = append(w.written, path)
		log.Printf("[HEADLESS] wrote %s", path)
	}
	return nil
}

// SetStatus records the overlay text.
func (w *HeadlessWindow) SetStatus(status string) {
	w.status = status
}

// Cleanup releases window resources
func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// LastFrame returns the most recently rendered frame.
func (w *HeadlessWindow) LastFrame() []uint32 {
	return w.last
}

// GetFrameCount returns the number of frames rendered
func (w *HeadlessWindow) GetFrameCount() int {
	return w.frameCount
}

// Written returns the paths of the PNG files written so far.
func (w *HeadlessWindow) Written() []string {
	return w.written
}
