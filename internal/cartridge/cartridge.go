// Package cartridge implements iNES image parsing and the cartridge mappers.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Load-time format errors.
var (
	ErrInvalidMagic      = errors.New("cartridge: invalid iNES magic")
	ErrUnsupportedFormat = errors.New("cartridge: NES 2.0 images are not supported")
	ErrUnsupportedMapper = errors.New("cartridge: unsupported mapper")
	ErrUnsupportedBoard  = errors.New("cartridge: unsupported board")
	ErrTruncated         = errors.New("cartridge: image truncated")
	ErrEmptyPRG          = errors.New("cartridge: PRG ROM size is zero")
)

const (
	prgBankSize = 0x4000
	chrBankSize = 0x2000
	sramSize    = 0x2000
	trainerSize = 512
)

// MirrorMode is the nametable arrangement.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single-screen-0"
	case MirrorSingleScreen1:
		return "single-screen-1"
	case MirrorFourScreen:
		return "four-screen"
	}
	return "unknown"
}

// iNES header structure
type iNESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8 // in 16KB units
	CHRROMSize uint8 // in 8KB units
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Header is the decoded form of the 16-byte iNES header.
type Header struct {
	PRGBanks   int // 16KB units
	CHRBanks   int // 8KB units, 0 means CHR RAM
	Mapper     uint8
	Mirroring  MirrorMode
	HasBattery bool
	HasTrainer bool
	VSSystem   bool
	PlayChoice bool
	PRGRAMSize int // bytes
}

func decodeHeader(raw iNESHeader) (Header, error) {
	if string(raw.Magic[:]) != "NES\x1A" {
		return Header{}, ErrInvalidMagic
	}
	if raw.Flags7&0x0C == 0x08 {
		return Header{}, ErrUnsupportedFormat
	}
	// Old dumpers wrote text such as "DiskDude!" over bytes 7-15.
	if raw.Padding[1]|raw.Padding[2]|raw.Padding[3]|raw.Padding[4] != 0 {
		raw.Flags7 = 0
	}

	h := Header{
		PRGBanks:   int(raw.PRGROMSize),
		CHRBanks:   int(raw.CHRROMSize),
		Mapper:     raw.Flags7&0xF0 | raw.Flags6>>4,
		HasBattery: raw.Flags6&0x02 != 0,
		HasTrainer: raw.Flags6&0x04 != 0,
		VSSystem:   raw.Flags7&0x01 != 0,
		PlayChoice: raw.Flags7&0x02 != 0,
		PRGRAMSize: int(raw.PRGRAMSize) * sramSize,
	}
	switch {
	case raw.Flags6&0x08 != 0:
		h.Mirroring = MirrorFourScreen
	case raw.Flags6&0x01 != 0:
		h.Mirroring = MirrorVertical
	default:
		h.Mirroring = MirrorHorizontal
	}
	// A zero PRG RAM size is read as 8KB for compatibility.
	if h.PRGRAMSize == 0 {
		h.PRGRAMSize = sramSize
	}
	return h, nil
}

// Cartridge holds the ROM image contents and the mapper that serves them.
type Cartridge struct {
	header  Header
	trainer []uint8
	prgROM  []uint8
	chr     []uint8
	sram    []uint8

	hasCHRRAM bool
	mapper    Mapper
}

// LoadFromFile loads a cartridge from an iNES file
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "cartridge: open")
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromBytes parses an in-memory iNES image.
func LoadFromBytes(data []byte) (*Cartridge, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromReader parses an iNES image. Trailing bytes after CHR ROM are
// ignored.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	var raw iNESHeader
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrap(ErrTruncated, "header")
	}

	header, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if header.PRGBanks == 0 {
		return nil, ErrEmptyPRG
	}
	if header.PlayChoice || header.VSSystem {
		return nil, errors.Wrap(ErrUnsupportedBoard, "arcade boards are not supported")
	}

	cart := &Cartridge{header: header}

	if header.HasTrainer {
		cart.trainer = make([]uint8, trainerSize)
		if _, err := io.ReadFull(r, cart.trainer); err != nil {
			return nil, errors.Wrap(ErrTruncated, "trainer")
		}
	}

	cart.prgROM = make([]uint8, header.PRGBanks*prgBankSize)
	if _, err := io.ReadFull(r, cart.prgROM); err != nil {
		return nil, errors.Wrapf(ErrTruncated, "PRG ROM (%d bytes)", len(cart.prgROM))
	}

	if header.CHRBanks > 0 {
		cart.chr = make([]uint8, header.CHRBanks*chrBankSize)
		if _, err := io.ReadFull(r, cart.chr); err != nil {
			return nil, errors.Wrapf(ErrTruncated, "CHR ROM (%d bytes)", len(cart.chr))
		}
	} else {
		cart.chr = make([]uint8, chrBankSize)
		cart.hasCHRRAM = true
	}

	cart.sram = make([]uint8, header.PRGRAMSize)

	mapper, err := createMapper(header.Mapper, cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper
	return cart, nil
}

// createMapper creates the appropriate mapper for the given ID
func createMapper(id uint8, cart *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return NewMapper000(cart), nil
	case 1:
		return NewMapper001(cart), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedMapper, "mapper %d", id)
}

// Header returns the decoded iNES header.
func (c *Cartridge) Header() Header { return c.header }

// Mapper returns the board logic serving this cartridge.
func (c *Cartridge) Mapper() Mapper { return c.mapper }

// MapperID returns the iNES mapper number.
func (c *Cartridge) MapperID() uint8 { return c.header.Mapper }

// HasBattery reports whether PRG RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.header.HasBattery }

// HasCHRRAM reports whether pattern memory is writable RAM.
func (c *Cartridge) HasCHRRAM() bool { return c.hasCHRRAM }

// PRGSize returns the PRG ROM size in bytes.
func (c *Cartridge) PRGSize() int { return len(c.prgROM) }

// CHRSize returns the CHR memory size in bytes.
func (c *Cartridge) CHRSize() int { return len(c.chr) }

// SRAM returns a copy of PRG RAM, for battery saves.
func (c *Cartridge) SRAM() []uint8 {
	out := make([]uint8, len(c.sram))
	copy(out, c.sram)
	return out
}

// LoadSRAM restores PRG RAM contents. Short input leaves the tail untouched.
func (c *Cartridge) LoadSRAM(data []uint8) {
	copy(c.sram, data)
}

func (c *Cartridge) readSRAM(address uint16) uint8 {
	return c.sram[int(address-0x6000)%len(c.sram)]
}

func (c *Cartridge) writeSRAM(address uint16, value uint8) {
	c.sram[int(address-0x6000)%len(c.sram)] = value
}

func (c *Cartridge) readCHR(index int) uint8 {
	return c.chr[index%len(c.chr)]
}

func (c *Cartridge) writeCHR(index int, value uint8) {
	if c.hasCHRRAM {
		c.chr[index%len(c.chr)] = value
	}
}
