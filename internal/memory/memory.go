// Package memory implements the CPU and PPU address maps of the NES.
package memory

import "github.com/pkg/errors"

// ErrTestModeAccess reports an access to the CPU test-mode registers
// ($4018-$401F), which are disabled on retail consoles.
var ErrTestModeAccess = errors.New("memory: access to disabled test-mode register")

// Memory represents the NES CPU memory map
type Memory struct {
	// Internal RAM (2KB, mirrored to 8KB)
	ram [0x800]uint8

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	// DMA callback, invoked with the page written to $4014
	dmaCallback func(uint8)

	// Last value seen on the data bus
	openBusValue uint8

	// First register fault since the last ClearErr
	err error
}

// PPUInterface is the CPU-visible side of the PPU registers ($2000-$2007).
type PPUInterface interface {
	ReadRegister(address uint16) (uint8, error)
	WriteRegister(address uint16, value uint8) error
}

// APUInterface is the CPU-visible side of the APU registers ($4000-$4017,
// excluding $4014 and the controller reads).
type APUInterface interface {
	ReadRegister(address uint16) (uint8, error)
	WriteRegister(address uint16, value uint8) error
}

// InputInterface defines the interface for input system access
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is the board as the CPU and PPU see it.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	ReadNametable(address uint16) uint8
	WriteNametable(address uint16, value uint8)
}

// New creates a new Memory instance
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
}

// SetInputSystem sets the input system for controller access
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the DMA callback function
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// Err returns the first fault raised by a register access.
func (m *Memory) Err() error {
	return m.err
}

// ClearErr drops a latched fault.
func (m *Memory) ClearErr() {
	m.err = nil
}

func (m *Memory) fault(err error) {
	if err != nil && m.err == nil {
		m.err = err
	}
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		// PPU registers, mirrored every 8 bytes
		v, err := m.ppuRegisters.ReadRegister(0x2000 + address&0x0007)
		m.fault(err)
		value = v

	case address == 0x4016 || address == 0x4017:
		if m.inputSystem != nil {
			// Upper bits come from open bus on the real console
			value = m.inputSystem.Read(address) | m.openBusValue&0xE0
		} else {
			value = m.openBusValue & 0xE0
		}

	case address < 0x4018:
		v, err := m.apuRegisters.ReadRegister(address)
		m.fault(err)
		value = v

	case address < 0x4020:
		m.fault(errors.Wrapf(ErrTestModeAccess, "read $%04X", address))
		value = m.openBusValue

	default:
		if m.cartridge == nil {
			value = m.openBusValue
		} else {
			value = m.cartridge.ReadPRG(address)
		}
	}

	m.openBusValue = value
	return value
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	m.openBusValue = value

	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.fault(m.ppuRegisters.WriteRegister(0x2000+address&0x0007, value))

	case address == 0x4014:
		if m.dmaCallback != nil {
			m.dmaCallback(value)
		} else {
			m.performOAMDMA(value)
		}

	case address == 0x4016:
		// Controller strobe
		if m.inputSystem != nil {
			m.inputSystem.Write(address, value)
		}

	case address < 0x4018:
		m.fault(m.apuRegisters.WriteRegister(address, value))

	case address < 0x4020:
		m.fault(errors.Wrapf(ErrTestModeAccess, "write $%04X", address))

	default:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// performOAMDMA copies a page through $2004 without cycle accounting. Used
// only when no console is attached to take the stall.
func (m *Memory) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		m.fault(m.ppuRegisters.WriteRegister(0x2004, m.Read(base+i)))
	}
}

// Peek reads RAM or cartridge space without side effects. Register space
// reads as zero.
func (m *Memory) Peek(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.ram[address&0x07FF]
	case address >= 0x4020 && m.cartridge != nil:
		return m.cartridge.ReadPRG(address)
	}
	return 0
}

// Poke writes internal RAM. Addresses outside $0000-$1FFF are ignored.
func (m *Memory) Poke(address uint16, value uint8) {
	if address < 0x2000 {
		m.ram[address&0x07FF] = value
	}
}

// RAM returns a copy of the 2KB internal RAM.
func (m *Memory) RAM() []uint8 {
	out := make([]uint8, len(m.ram))
	copy(out, m.ram[:])
	return out
}

// LoadRAM restores internal RAM.
func (m *Memory) LoadRAM(data []uint8) {
	copy(m.ram[:], data)
}
