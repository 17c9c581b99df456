package cartridge

import "github.com/pkg/errors"

// Mapper001 implements MMC1 (SxROM). Registers are loaded one bit at a time
// through a 5-bit shift register; the fifth write commits to the register
// selected by address bits 13-14.
type Mapper001 struct {
	cart *Cartridge
	nt   nametables

	shift   uint8
	control uint8
	chr0    uint8
	chr1    uint8
	prg     uint8
}

const mmc1ShiftReset = 0x10

// NewMapper001 creates an MMC1 in its power-on state: PRG mode 3 with the
// last bank fixed at $C000.
func NewMapper001(cart *Cartridge) *Mapper001 {
	m := &Mapper001{cart: cart, shift: mmc1ShiftReset}
	m.setControl(0x0C)
	return m
}

func (m *Mapper001) setControl(value uint8) {
	m.control = value & 0x1F
	switch m.control & 0x03 {
	case 0:
		m.nt.mode = MirrorSingleScreen0
	case 1:
		m.nt.mode = MirrorSingleScreen1
	case 2:
		m.nt.mode = MirrorVertical
	case 3:
		m.nt.mode = MirrorHorizontal
	}
}

func (m *Mapper001) load(address uint16, value uint8) {
	if value&0x80 != 0 {
		m.shift = mmc1ShiftReset
		m.setControl(m.control | 0x0C)
		return
	}

	complete := m.shift&1 == 1
	m.shift = m.shift>>1 | (value&1)<<4
	if !complete {
		return
	}

	v := m.shift
	m.shift = mmc1ShiftReset
	switch {
	case address <= 0x9FFF:
		m.setControl(v)
	case address <= 0xBFFF:
		m.chr0 = v
	case address <= 0xDFFF:
		m.chr1 = v
	default:
		// Bit 4 is the PRG RAM disable on MMC1B; RAM stays enabled here.
		m.prg = v & 0x0F
	}
}

func (m *Mapper001) prgOffset(address uint16) int {
	banks := len(m.cart.prgROM) / prgBankSize
	switch (m.control >> 2) & 0x03 {
	case 0, 1:
		return int(m.prg>>1)*0x8000 + int(address-0x8000)
	case 2:
		if address < 0xC000 {
			return int(address - 0x8000)
		}
		return int(m.prg)*prgBankSize + int(address-0xC000)
	default:
		if address < 0xC000 {
			return int(m.prg)*prgBankSize + int(address-0x8000)
		}
		return (banks-1)*prgBankSize + int(address-0xC000)
	}
}

func (m *Mapper001) chrOffset(address uint16) int {
	address &= 0x1FFF
	if m.control&0x10 == 0 {
		return int(m.chr0>>1)*0x2000 + int(address)
	}
	if address < 0x1000 {
		return int(m.chr0)*0x1000 + int(address)
	}
	return int(m.chr1)*0x1000 + int(address-0x1000)
}

func (m *Mapper001) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x8000:
		return m.cart.prgROM[m.prgOffset(address)%len(m.cart.prgROM)]
	case address >= 0x6000:
		return m.cart.readSRAM(address)
	}
	return 0
}

func (m *Mapper001) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x8000:
		m.load(address, value)
	case address >= 0x6000:
		m.cart.writeSRAM(address, value)
	}
}

func (m *Mapper001) ReadCHR(address uint16) uint8 {
	return m.cart.readCHR(m.chrOffset(address))
}

func (m *Mapper001) WriteCHR(address uint16, value uint8) {
	m.cart.writeCHR(m.chrOffset(address), value)
}

func (m *Mapper001) ReadNametable(address uint16) uint8 {
	return m.nt.read(address)
}

func (m *Mapper001) WriteNametable(address uint16, value uint8) {
	m.nt.write(address, value)
}

func (m *Mapper001) Snapshot() MapperState {
	state := MapperState{
		ID: 1,
		Registers: map[string]uint8{
			"shift":   m.shift,
			"control": m.control,
			"chr0":    m.chr0,
			"chr1":    m.chr1,
			"prg":     m.prg,
		},
		VRAM: m.nt.snapshot(),
	}
	snapshotCart(m.cart, &state)
	return state
}

func (m *Mapper001) Restore(state MapperState) error {
	if state.ID != 1 {
		return errors.Wrapf(errStateMismatch, "want mapper 1, got %d", state.ID)
	}
	r := state.Registers
	m.shift = r["shift"]
	if m.shift == 0 {
		m.shift = mmc1ShiftReset
	}
	m.setControl(r["control"])
	m.chr0 = r["chr0"]
	m.chr1 = r["chr1"]
	m.prg = r["prg"]
	m.nt.restore(state.VRAM)
	restoreCart(m.cart, state)
	return nil
}
