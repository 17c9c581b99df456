package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"nescore/internal/audio"
	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/graphics"
	"nescore/internal/script"
)

// Options are per-run settings from the command line
type Options struct {
	Headless   bool
	Frames     int    // stop after this many frames; 0 runs until closed
	ScriptPath string // Lua script to load with the ROM
	RecordPath string // WAV file for the audio output
	TracePath  string // nestest-format CPU trace
	Debug      bool

	// Headless runs write every Nth frame as PNG; 0 disables
	ScreenshotEvery int
}

// Application represents the main NES emulator application
type Application struct {
	bus  *bus.Bus
	cart *cartridge.Cartridge
	rom  ROMInfo

	// Graphics backend
	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor

	// Audio
	stream   *audio.Stream
	player   *audio.Player
	recorder *audio.Recorder

	config   *Config
	options  Options
	emulator *Emulator
	states   *StateManager
	script   *script.Runner
	trace    *bufio.Writer
	traceOut *os.File

	running     bool
	interrupted atomic.Bool
	paused      bool
	initialized bool
	headless    bool

	// Held buttons per controller port
	buttons [2]uint8

	// Performance tracking
	frameCount  uint64
	startTime   time.Time
	lastFPSTime time.Time
	fpsFrames   uint64
	currentFPS  float64

	// ESC key confirmation tracking
	lastESCTime time.Time
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("Application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// NewApplication creates the application. An unreadable config file falls
// back to defaults; an invalid one is an error.
func NewApplication(configPath string, opts Options) (*Application, error) {
	app := &Application{
		config:   NewConfig(),
		options:  opts,
		headless: opts.Headless,
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			log.Printf("[APP_WARNING] Could not load config from %s, using defaults: %v", configPath, err)
		}
	}
	if opts.Debug {
		app.config.Debug.EnableLogging = true
		app.config.Debug.ShowFPS = true
	}
	if err := app.config.createDirectories(); err != nil {
		log.Printf("[APP_WARNING] %v", err)
	}

	if err := app.initializeComponents(); err != nil {
		return nil, &ApplicationError{
			Component: "initialization",
			Operation: "component setup",
			Err:       err,
		}
	}
	return app, nil
}

// initializeComponents sets up everything that does not depend on the ROM
func (app *Application) initializeComponents() error {
	if err := app.initializeGraphicsBackend(); err != nil {
		return errors.Wrap(err, "failed to initialize graphics backend")
	}

	app.stream = audio.NewStream(app.config.Audio.BufferSize)
	app.stream.SetVolume(app.config.Audio.Volume)
	if app.config.Audio.Enabled && !app.headless {
		player, err := audio.NewPlayer(app.config.Audio.SampleRate, app.stream)
		if err != nil {
			log.Printf("[APP_WARNING] Audio disabled: %v", err)
		} else {
			app.player = player
		}
	}

	app.states = NewStateManager(app.config.Paths.SaveStates, app.config.Emulation.SaveStateSlots)
	app.initialized = true
	return nil
}

// initializeGraphicsBackend creates the backend named by the configuration
func (app *Application) initializeGraphicsBackend() error {
	backendType := graphics.BackendType(app.config.Video.Backend)
	if app.headless {
		backendType = graphics.BackendHeadless
	}

	buttons, err := app.config.ButtonMap()
	if err != nil {
		return err
	}
	graphicsConfig := graphics.Config{
		WindowTitle:     "nescore",
		WindowWidth:     app.config.Window.Width,
		WindowHeight:    app.config.Window.Height,
		Fullscreen:      app.config.Window.Fullscreen,
		VSync:           app.config.Video.VSync,
		Filter:          app.config.Video.Filter,
		ButtonMap:       buttons,
		OutputDir:       app.config.Paths.Screenshots,
		ScreenshotEvery: app.options.ScreenshotEvery,
		ScreenshotScale: app.config.Window.Scale,
		Debug:           app.config.Debug.EnableLogging,
	}

	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return err
	}
	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendEbitengine {
			return err
		}
		log.Printf("[APP_WARNING] Ebitengine backend failed (%v), falling back to headless mode", err)
		app.headless = true
		app.graphicsBackend = graphics.NewHeadlessBackend()
		if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
			return err
		}
	}
	if app.graphicsBackend.IsHeadless() {
		app.headless = true
	}

	app.window, err = app.graphicsBackend.CreateWindow(
		graphicsConfig.WindowTitle,
		graphicsConfig.WindowWidth,
		graphicsConfig.WindowHeight,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create window")
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)
	return nil
}

// LoadROM loads an iNES file and powers the console on
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	data, err := os.ReadFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "read ROM", Err: err}
	}
	cart, err := cartridge.LoadFromBytes(data)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}
	app.cart = cart
	app.rom = ROMInfo{Path: romPath, Checksum: ROMChecksum(data)}

	if ok, err := loadBatterySave(cart, app.config.Paths.SaveData, app.rom); err != nil {
		log.Printf("[APP_WARNING] %v", err)
	} else if ok {
		log.Printf("[APP] loaded battery save for %s", app.rom.Name())
	}

	app.bus = bus.New(cart)
	app.bus.SetSampleRate(app.config.Audio.SampleRate)
	app.bus.SetStrictDataAccess(app.config.Emulation.StrictPPUData)
	if err := app.setupTrace(); err != nil {
		return &ApplicationError{Component: "debug", Operation: "open trace", Err: err}
	}

	app.emulator = NewEmulator(app.bus, app.config)
	app.emulator.SetAudioStream(app.stream)

	if app.options.RecordPath != "" {
		rec, err := audio.NewRecorder(app.options.RecordPath, app.config.Audio.SampleRate)
		if err != nil {
			return &ApplicationError{Component: "audio", Operation: "start recording", Err: err}
		}
		app.recorder = rec
		app.emulator.SetRecorder(rec)
	}

	if app.options.ScriptPath != "" {
		app.script = script.New(app.bus)
		if err := app.script.LoadFile(app.options.ScriptPath); err != nil {
			return &ApplicationError{Component: "script", Operation: "load", Err: err}
		}
		app.emulator.SetScript(app.script)
	}

	h := cart.Header()
	log.Printf("[APP] loaded %s (mapper %d, %dKB PRG, %dKB CHR, %s mirroring)",
		filepath.Base(romPath), cart.MapperID(), cart.PRGSize()/1024, cart.CHRSize()/1024, h.Mirroring)

	app.window.SetTitle(fmt.Sprintf("nescore - %s", filepath.Base(romPath)))
	app.emulator.Start()
	return nil
}

// setupTrace opens the CPU trace file when one is requested
func (app *Application) setupTrace() error {
	path := app.options.TracePath
	if path == "" && app.config.Debug.CPUTracing {
		path = app.config.Debug.TraceFile
	}
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	app.traceOut = f
	app.trace = bufio.NewWriter(f)
	app.bus.SetTraceWriter(app.trace)
	return nil
}

// Run drives the emulator until the window closes, the frame limit is
// reached or the console faults. A CPU lock-up ends the run without error;
// any other console fault is returned.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}
	if app.bus == nil {
		return errors.New("no ROM loaded")
	}

	app.running = true
	app.startTime = time.Now()
	app.lastFPSTime = app.startTime
	if app.player != nil {
		app.player.Start()
	}

	if app.config.Debug.EnableLogging {
		log.Printf("[APP_DEBUG] Starting emulator with %s backend", app.graphicsBackend.GetName())
	}

	var err error
	if runner, ok := app.window.(graphics.Runner); ok {
		err = runner.Run(app.frame)
	} else {
		err = app.loop()
	}
	app.running = false

	if app.headless && app.frameCount > 0 {
		if path, shotErr := app.Screenshot(); shotErr != nil {
			log.Printf("[APP_WARNING] %v", shotErr)
		} else {
			log.Printf("[APP] final frame written to %s", path)
		}
	}
	return err
}

// loop is the host loop for backends that do not own one. Headless runs
// as fast as possible.
func (app *Application) loop() error {
	frameTime := time.Duration(float64(time.Second) / app.config.Emulation.FrameRate)
	next := time.Now()
	for app.running {
		if err := app.frame(); err != nil {
			if errors.Is(err, graphics.ErrWindowClosed) {
				return nil
			}
			return err
		}
		if app.headless {
			continue
		}
		next = next.Add(frameTime)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		} else {
			next = time.Now()
		}
	}
	return nil
}

// frame is one host update: input, one console frame, presentation.
func (app *Application) frame() error {
	if app.interrupted.Load() {
		app.Stop()
	}
	if !app.running {
		return graphics.ErrWindowClosed
	}

	app.processInput()

	if !app.paused {
		if err := app.emulator.Update(); err != nil {
			if errors.Is(err, cpu.ErrHalted) {
				log.Printf("[APP] %v", err)
				app.Stop()
				return nil
			}
			return &ApplicationError{Component: "console", Operation: "run frame", Err: err}
		}
		app.frameCount++
		if app.emulator.ScriptStopped() {
			log.Printf("[APP] script stopped the session at frame %d", app.bus.Frame())
			app.Stop()
		}
		if app.options.Frames > 0 && app.frameCount >= uint64(app.options.Frames) {
			app.Stop()
		}
	}

	if err := app.render(); err != nil {
		return err
	}
	app.updatePerformanceMetrics()

	if app.window.ShouldClose() {
		app.Stop()
	}
	return nil
}

// processInput applies window events to the controllers and hotkeys
func (app *Application) processInput() {
	for _, event := range app.window.PollEvents() {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return

		case graphics.InputEventTypeButton:
			port, index := event.Button.Port()
			if port == 0 {
				continue
			}
			if event.Pressed {
				app.buttons[port-1] |= 1 << index
			} else {
				app.buttons[port-1] &^= 1 << index
			}
			if err := app.bus.SetButtons(port, app.buttons[port-1]); err != nil {
				log.Printf("[APP_WARNING] %v", err)
			}

		case graphics.InputEventTypeKey:
			if event.Pressed {
				app.handleKey(event)
			}
		}
	}
}

// handleKey runs hotkeys: double ESC quits, F1-F4 save (Shift loads),
// F12 screenshot, P pause, R reset.
func (app *Application) handleKey(event graphics.InputEvent) {
	if event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			app.Stop()
			return
		}
		log.Printf("[APP] press ESC again within 3 seconds to quit")
		app.lastESCTime = now
		return
	}
	app.lastESCTime = time.Time{}

	switch event.Key {
	case graphics.KeyF1, graphics.KeyF2, graphics.KeyF3, graphics.KeyF4:
		slot := int(event.Key - graphics.KeyF1)
		if event.Modifiers&graphics.ModifierShift != 0 {
			if err := app.LoadState(slot); err != nil {
				log.Printf("[APP] load state %d: %v", slot, err)
			}
		} else if err := app.SaveState(slot); err != nil {
			log.Printf("[APP] save state %d: %v", slot, err)
		}
	case graphics.KeyF12:
		if path, err := app.Screenshot(); err != nil {
			log.Printf("[APP] screenshot: %v", err)
		} else {
			log.Printf("[APP] screenshot saved to %s", path)
		}
	case graphics.KeyP:
		app.TogglePause()
	case graphics.KeyR:
		app.Reset()
	}
}

// render presents the current frame and the status overlay
func (app *Application) render() error {
	frame := app.videoProcessor.ProcessFrame(app.bus.FrameBuffer())
	if err := app.window.RenderFrame(frame); err != nil {
		return errors.Wrap(err, "failed to render NES frame")
	}

	status := ""
	if app.config.Debug.ShowFPS {
		status = fmt.Sprintf("FPS %.1f", app.currentFPS)
	}
	if app.paused {
		if status != "" {
			status += "  "
		}
		status += "PAUSED"
	}
	app.window.SetStatus(status)
	return nil
}

// updatePerformanceMetrics recomputes FPS once a second
func (app *Application) updatePerformanceMetrics() {
	app.fpsFrames++
	now := time.Now()
	elapsed := now.Sub(app.lastFPSTime)
	if elapsed < time.Second {
		return
	}
	app.currentFPS = float64(app.fpsFrames) / elapsed.Seconds()
	app.fpsFrames = 0
	app.lastFPSTime = now

	if app.config.Debug.EnableLogging {
		jitter, worst := app.emulator.GetFrameJitter()
		log.Printf("[APP_DEBUG] FPS %.1f, frame %d, emulation %v (%.2fx, jitter %v, worst %v)",
			app.currentFPS, app.bus.Frame(), app.emulator.GetAverageFrameTime(), app.emulator.GetEmulationSpeed(), jitter, worst)
	}
}

// Screenshot writes the current frame to the screenshots directory
func (app *Application) Screenshot() (string, error) {
	if app.bus == nil {
		return "", errors.New("no ROM loaded")
	}
	name := fmt.Sprintf("%s_%06d.png", app.rom.Name(), app.bus.Frame())
	path := filepath.Join(app.config.Paths.Screenshots, name)
	if err := graphics.SaveScreenshot(path, app.bus.FrameBuffer(), app.config.Window.Scale); err != nil {
		return "", err
	}
	return path, nil
}

// Stop ends the run loop
func (app *Application) Stop() {
	app.running = false
}

// Interrupt asks the run loop to stop at the next frame. It is safe to
// call from another goroutine.
func (app *Application) Interrupt() {
	app.interrupted.Store(true)
}

// Pause stops advancing the console
func (app *Application) Pause() {
	app.paused = true
	if app.player != nil {
		app.player.Stop()
	}
}

// Resume continues after Pause
func (app *Application) Resume() {
	app.paused = false
	if app.player != nil && app.running {
		app.player.Start()
	}
}

// TogglePause switches between paused and running
func (app *Application) TogglePause() {
	if app.paused {
		app.Resume()
	} else {
		app.Pause()
	}
}

// SaveState saves the console to a slot
func (app *Application) SaveState(slot int) error {
	if app.bus == nil {
		return errors.New("no ROM loaded")
	}
	if err := app.states.SaveState(app.bus, slot, app.rom); err != nil {
		return err
	}
	log.Printf("[APP] saved state %d at frame %d", slot, app.bus.Frame())
	return nil
}

// LoadState restores the console from a slot
func (app *Application) LoadState(slot int) error {
	if app.bus == nil {
		return errors.New("no ROM loaded")
	}
	if err := app.states.LoadState(app.bus, slot, app.rom); err != nil {
		return err
	}
	app.stream.Clear()
	log.Printf("[APP] loaded state %d at frame %d", slot, app.bus.Frame())
	return nil
}

// Reset presses the console's reset button
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
		log.Printf("[APP] reset")
	}
}

// IsRunning returns whether the run loop is active
func (app *Application) IsRunning() bool {
	return app.running
}

// IsPaused returns whether the console is paused
func (app *Application) IsPaused() bool {
	return app.paused
}

// GetFPS returns the measured host frame rate
func (app *Application) GetFPS() float64 {
	return app.currentFPS
}

// GetFrameCount returns the frames emulated by Run
func (app *Application) GetFrameCount() uint64 {
	return app.frameCount
}

// GetUptime returns the time since Run started
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetBus returns the console, nil before LoadROM
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

// GetConfig returns the active configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// Cleanup flushes save data and releases every resource. The first error
// is returned; the rest are logged.
func (app *Application) Cleanup() error {
	var first error
	keep := func(err error) {
		if err == nil {
			return
		}
		if first == nil {
			first = err
		} else {
			log.Printf("[APP_WARNING] cleanup: %v", err)
		}
	}

	if app.cart != nil {
		keep(writeBatterySave(app.cart, app.config.Paths.SaveData, app.rom))
	}
	if app.recorder != nil {
		keep(app.recorder.Close())
		app.recorder = nil
	}
	if app.trace != nil {
		keep(app.trace.Flush())
		keep(app.traceOut.Close())
		app.trace = nil
	}
	if app.script != nil {
		app.script.Close()
		app.script = nil
	}
	if app.player != nil {
		keep(app.player.Close())
		app.player = nil
	}
	if app.window != nil {
		keep(app.window.Cleanup())
	}
	if app.graphicsBackend != nil {
		keep(app.graphicsBackend.Cleanup())
	}
	return first
}
