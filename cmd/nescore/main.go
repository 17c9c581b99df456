// Package main implements the nescore emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nescore/internal/app"
	"nescore/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug logging and the FPS overlay")
		nogui      = flag.Bool("nogui", false, "Run without a window (headless mode)")
		frames     = flag.Int("frames", 0, "Stop after this many frames (0 runs until closed)")
		shotEvery  = flag.Int("screenshot-every", 0, "Headless: write every Nth frame as PNG")
		script     = flag.String("script", "", "Lua script to run alongside the ROM")
		record     = flag.String("record", "", "Record audio to this WAV file")
		trace      = flag.String("trace", "", "Write a CPU trace to this file")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVer {
		version.PrintBuildInfo(os.Stdout)
		os.Exit(0)
	}
	if *romFile == "" {
		fmt.Fprintln(os.Stderr, "A ROM file is required (-rom <file>)")
		os.Exit(2)
	}
	if *nogui && *frames <= 0 && *script == "" {
		fmt.Fprintln(os.Stderr, "Headless mode needs -frames or a -script that stops the run")
		os.Exit(2)
	}

	fmt.Printf("nescore %s starting...\n", version.GetVersion())

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplication(configPath, app.Options{
		Headless:        *nogui,
		Frames:          *frames,
		ScriptPath:      *script,
		RecordPath:      *record,
		TracePath:       *trace,
		Debug:           *debug,
		ScreenshotEvery: *shotEvery,
	})
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	code := run(application, *romFile)
	if err := application.Cleanup(); err != nil {
		log.Printf("Application cleanup error: %v", err)
		code = 1
	}
	os.Exit(code)
}

// run loads the ROM and drives the application, returning the exit code.
func run(application *app.Application, romFile string) int {
	setupGracefulShutdown(application)

	fmt.Printf("Loading ROM: %s\n", romFile)
	if err := application.LoadROM(romFile); err != nil {
		log.Printf("Failed to load ROM: %v", err)
		return 1
	}

	config := application.GetConfig()
	fmt.Printf("  Window: %dx%d, %s backend\n", config.Window.Width, config.Window.Height, config.Video.Backend)
	fmt.Printf("  Audio:  %s (%d Hz, %.0f%% volume)\n",
		enabledString(config.Audio.Enabled), config.Audio.SampleRate, config.Audio.Volume*100)

	if err := application.Run(); err != nil {
		log.Printf("Emulation stopped: %v", err)
		return 1
	}

	fmt.Printf("Session: %d frames in %v (%.1f FPS)\n",
		application.GetFrameCount(), application.GetUptime(), application.GetFPS())
	return 0
}

// setupGracefulShutdown stops the run loop on SIGINT or SIGTERM so save
// data is flushed on the way out.
func setupGracefulShutdown(application *app.Application) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\nInterrupt received, shutting down...")
		application.Interrupt()
	}()
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func printUsage() {
	fmt.Println("nescore - NES emulator core")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nescore -rom <file> [options]")
	fmt.Println("  nescore -nogui -rom <file> -frames <n> [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  nescore -rom game.nes")
	fmt.Println("  nescore -rom game.nes -record out.wav")
	fmt.Println("  nescore -nogui -rom test.nes -frames 600 -screenshot-every 60")
	fmt.Println("  nescore -nogui -rom test.nes -script check.lua -trace cpu.log")
	fmt.Println()
	fmt.Println("CONTROLS (default):")
	fmt.Println("  Player 1: arrows, J (A), K (B), Enter (Start), Space (Select)")
	fmt.Println("  Player 2: 1-4 (D-pad), 5 (A), 6 (B), 7 (Start), 8 (Select)")
	fmt.Println("  Escape (2x) quit, F1-F4 save state, Shift+F1-F4 load state")
	fmt.Println("  F12 screenshot, P pause, R reset")
	fmt.Println()
	fmt.Printf("Config file: %s\n", app.GetDefaultConfigPath())
}
