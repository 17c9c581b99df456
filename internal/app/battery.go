package app

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"nescore/internal/cartridge"
)

// batteryPath returns where a ROM's battery-backed RAM is kept.
func batteryPath(dir string, rom ROMInfo) string {
	return filepath.Join(dir, rom.Name()+".sav")
}

// loadBatterySave fills cartridge RAM from the ROM's .sav file. Carts
// without a battery and missing files are not errors.
func loadBatterySave(cart *cartridge.Cartridge, dir string, rom ROMInfo) (bool, error) {
	if !cart.HasBattery() {
		return false, nil
	}
	data, err := os.ReadFile(batteryPath(dir, rom))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read battery save")
	}
	cart.LoadSRAM(data)
	return true, nil
}

// writeBatterySave stores cartridge RAM for carts with a battery.
func writeBatterySave(cart *cartridge.Cartridge, dir string, rom ROMInfo) error {
	if !cart.HasBattery() {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create save directory")
	}
	if err := os.WriteFile(batteryPath(dir, rom), cart.SRAM(), 0644); err != nil {
		return errors.Wrap(err, "write battery save")
	}
	return nil
}
