package app

import (
	"os"
	"path/filepath"
	"testing"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
)

// loopProgram counts frames in $00 forever.
var loopProgram = []uint8{
	0xE6, 0x00, // INC $00
	0x4C, 0x00, 0x80, // JMP $8000
}

// testConfig returns a headless configuration writing under dir.
func testConfig(dir string) *Config {
	c := NewConfig()
	c.Video.Backend = "headless"
	c.Audio.Enabled = false
	c.Paths.SaveData = filepath.Join(dir, "saves")
	c.Paths.SaveStates = filepath.Join(dir, "states")
	c.Paths.Screenshots = filepath.Join(dir, "screenshots")
	c.Paths.Recordings = filepath.Join(dir, "recordings")
	return c
}

func writeROM(t *testing.T, dir string, builder *cartridge.ROMBuilder) string {
	t.Helper()
	path := filepath.Join(dir, "test.nes")
	if err := os.WriteFile(path, builder.Build(), 0644); err != nil {
		t.Fatalf("Failed to write ROM: %v", err)
	}
	return path
}

func newTestBus(t *testing.T, code []uint8) (*bus.Bus, ROMInfo) {
	t.Helper()
	builder := cartridge.NewROMBuilder().WithCode(0x8000, code...)
	cart, err := builder.BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to build cartridge: %v", err)
	}
	return bus.New(cart), ROMInfo{Path: "test.nes", Checksum: ROMChecksum(builder.Build())}
}
