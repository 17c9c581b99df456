package cartridge

import "github.com/pkg/errors"

// Mapper000 implements NROM (mapper 0)
// NROM is the simplest mapper with no bank switching capabilities.
// It supports:
// - 16KB or 32KB PRG ROM (16KB is mirrored to fill 32KB address space)
// - 8KB CHR ROM or CHR RAM
// - 8KB PRG RAM (SRAM) at 0x6000-0x7FFF (optionally battery-backed)
type Mapper000 struct {
	cart *Cartridge
	nt   nametables
}

// NewMapper000 creates a new NROM mapper
func NewMapper000(cart *Cartridge) *Mapper000 {
	m := &Mapper000{cart: cart}
	m.nt.mode = cart.header.Mirroring
	return m
}

// ReadPRG reads from PRG ROM/RAM. $4020-$5FFF is unmapped and reads 0.
func (m *Mapper000) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		return m.cart.prgROM[int(address-0x8000)%len(m.cart.prgROM)]
	case address >= 0x6000:
		return m.cart.readSRAM(address)
	}
	return 0
}

// WritePRG writes to PRG RAM. Writes to ROM are ignored.
func (m *Mapper000) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.writeSRAM(address, value)
	}
}

// ReadCHR reads from CHR ROM/RAM
func (m *Mapper000) ReadCHR(address uint16) uint8 {
	return m.cart.readCHR(int(address & 0x1FFF))
}

// WriteCHR writes to CHR RAM
func (m *Mapper000) WriteCHR(address uint16, value uint8) {
	m.cart.writeCHR(int(address&0x1FFF), value)
}

func (m *Mapper000) ReadNametable(address uint16) uint8 {
	return m.nt.read(address)
}

func (m *Mapper000) WriteNametable(address uint16, value uint8) {
	m.nt.write(address, value)
}

func (m *Mapper000) Snapshot() MapperState {
	state := MapperState{ID: 0, VRAM: m.nt.snapshot()}
	snapshotCart(m.cart, &state)
	return state
}

func (m *Mapper000) Restore(state MapperState) error {
	if state.ID != 0 {
		return errors.Wrapf(errStateMismatch, "want mapper 0, got %d", state.ID)
	}
	m.nt.restore(state.VRAM)
	restoreCart(m.cart, state)
	return nil
}
