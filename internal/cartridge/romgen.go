package cartridge

import (
	"bytes"
	"encoding/binary"
)

// ROMBuilder assembles iNES images in memory. It is used by tests across the
// module and by the headless tools that need a cartridge without a file.
type ROMBuilder struct {
	prgBanks  uint8
	chrBanks  uint8
	mapper    uint8
	mirroring MirrorMode
	battery   bool
	trainer   []uint8
	flags7    uint8

	prg     map[int]uint8
	cpu     map[uint16]uint8
	chrData []uint8

	reset, nmi, irq uint16
}

// NewROMBuilder creates a builder for a 16KB NROM image with 8KB CHR ROM,
// horizontal mirroring and all vectors at $8000.
func NewROMBuilder() *ROMBuilder {
	return &ROMBuilder{
		prgBanks: 1,
		chrBanks: 1,
		prg:      make(map[int]uint8),
		cpu:      make(map[uint16]uint8),
		reset:    0x8000,
		nmi:      0x8000,
		irq:      0x8000,
	}
}

// WithPRGBanks sets the PRG ROM size in 16KB units.
func (b *ROMBuilder) WithPRGBanks(n uint8) *ROMBuilder { b.prgBanks = n; return b }

// WithCHRBanks sets the CHR ROM size in 8KB units. Zero selects CHR RAM.
func (b *ROMBuilder) WithCHRBanks(n uint8) *ROMBuilder { b.chrBanks = n; return b }

func (b *ROMBuilder) WithMapper(id uint8) *ROMBuilder { b.mapper = id; return b }
func (b *ROMBuilder) WithMirroring(m MirrorMode) *ROMBuilder { b.mirroring = m; return b }
func (b *ROMBuilder) WithBattery() *ROMBuilder { b.battery = true; return b }
func (b *ROMBuilder) WithFlags7(v uint8) *ROMBuilder { b.flags7 = v; return b }
func (b *ROMBuilder) WithCHRData(data []uint8) *ROMBuilder { b.chrData = data; return b }
func (b *ROMBuilder) WithResetVector(address uint16) *ROMBuilder { b.reset = address; return b }
func (b *ROMBuilder) WithNMIVector(address uint16) *ROMBuilder { b.nmi = address; return b }
func (b *ROMBuilder) WithIRQVector(address uint16) *ROMBuilder { b.irq = address; return b }

// WithTrainer adds a 512-byte trainer block.
func (b *ROMBuilder) WithTrainer(data []uint8) *ROMBuilder {
	b.trainer = make([]uint8, trainerSize)
	copy(b.trainer, data)
	return b
}

// WithCode places bytes at a CPU address, as seen with the power-on bank
// layout: $C000-$FFFF is the last 16KB bank and $8000-$BFFF the first.
func (b *ROMBuilder) WithCode(address uint16, code ...uint8) *ROMBuilder {
	for i, v := range code {
		b.cpu[address+uint16(i)] = v
	}
	return b
}

// WithPRGByte sets a byte by raw PRG ROM offset.
func (b *ROMBuilder) WithPRGByte(offset int, value uint8) *ROMBuilder {
	b.prg[offset] = value
	return b
}

func (b *ROMBuilder) prgOffset(address uint16) int {
	size := int(b.prgBanks) * prgBankSize
	if address >= 0xC000 {
		return size - prgBankSize + int(address-0xC000)
	}
	return int(address-0x8000) % size
}

// Build returns the encoded image.
func (b *ROMBuilder) Build() []byte {
	var buf bytes.Buffer

	flags6 := b.mapper << 4
	switch b.mirroring {
	case MirrorVertical:
		flags6 |= 0x01
	case MirrorFourScreen:
		flags6 |= 0x08
	}
	if b.battery {
		flags6 |= 0x02
	}
	if b.trainer != nil {
		flags6 |= 0x04
	}
	header := iNESHeader{
		Magic:      [4]uint8{'N', 'E', 'S', 0x1A},
		PRGROMSize: b.prgBanks,
		CHRROMSize: b.chrBanks,
		Flags6:     flags6,
		Flags7:     b.mapper&0xF0 | b.flags7,
	}
	binary.Write(&buf, binary.LittleEndian, header)
	buf.Write(b.trainer)

	prg := make([]uint8, int(b.prgBanks)*prgBankSize)
	if len(prg) > 0 {
		for off, v := range b.prg {
			prg[off%len(prg)] = v
		}
		for addr, v := range b.cpu {
			prg[b.prgOffset(addr)] = v
		}
		for i, vec := range []uint16{b.nmi, b.reset, b.irq} {
			at := b.prgOffset(0xFFFA + uint16(2*i))
			prg[at] = uint8(vec)
			prg[at+1] = uint8(vec >> 8)
		}
	}
	buf.Write(prg)

	chr := make([]uint8, int(b.chrBanks)*chrBankSize)
	copy(chr, b.chrData)
	buf.Write(chr)
	return buf.Bytes()
}

// BuildCartridge builds and parses the image.
func (b *ROMBuilder) BuildCartridge() (*Cartridge, error) {
	return LoadFromBytes(b.Build())
}
