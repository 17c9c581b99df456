package app

import (
	"os"
	"path/filepath"
	"testing"

	"nescore/internal/cartridge"
)

func TestBatterySave_WriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	rom := ROMInfo{Path: "zelda.nes"}

	cart, err := cartridge.NewROMBuilder().WithBattery().BuildCartridge()
	if err != nil {
		t.Fatal(err)
	}
	cart.LoadSRAM([]uint8{0xDE, 0xAD, 0xBE, 0xEF})
	if err := writeBatterySave(cart, dir, rom); err != nil {
		t.Fatalf("writeBatterySave failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "zelda.sav")); err != nil {
		t.Fatalf("Expected zelda.sav: %v", err)
	}

	fresh, err := cartridge.NewROMBuilder().WithBattery().BuildCartridge()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := loadBatterySave(fresh, dir, rom)
	if err != nil {
		t.Fatalf("loadBatterySave failed: %v", err)
	}
	if !loaded {
		t.Fatal("Expected battery save to load")
	}
	sram := fresh.SRAM()
	for i, want := range []uint8{0xDE, 0xAD, 0xBE, 0xEF} {
		if sram[i] != want {
			t.Errorf("SRAM[%d]: expected $%02X, got $%02X", i, want, sram[i])
		}
	}
}

func TestBatterySave_NoBattery(t *testing.T) {
	dir := t.TempDir()
	rom := ROMInfo{Path: "smb.nes"}
	cart, err := cartridge.NewROMBuilder().BuildCartridge()
	if err != nil {
		t.Fatal(err)
	}

	if err := writeBatterySave(cart, dir, rom); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(batteryPath(dir, rom)); !os.IsNotExist(err) {
		t.Error("Expected no save file for a cart without battery")
	}
	if loaded, err := loadBatterySave(cart, dir, rom); loaded || err != nil {
		t.Errorf("Expected no load, got %v %v", loaded, err)
	}
}

func TestBatterySave_MissingFile(t *testing.T) {
	cart, err := cartridge.NewROMBuilder().WithBattery().BuildCartridge()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := loadBatterySave(cart, t.TempDir(), ROMInfo{Path: "new.nes"})
	if loaded || err != nil {
		t.Errorf("Expected missing file to be ignored, got %v %v", loaded, err)
	}
}
