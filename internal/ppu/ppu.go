// Package ppu implements the Picture Processing Unit for the NES.
package ppu

import (
	"github.com/pkg/errors"

	"nescore/internal/nmi"
	"nescore/internal/num"
)

// Display resolution.
const (
	Width  = 256
	Height = 240
)

const (
	dotsPerLine   = 341
	linesPerFrame = 262
	vblankLine    = 241
	preRenderLine = 261
)

// Protocol errors surfaced through the register interface and Tick.
var (
	ErrRenderingAccess   = errors.New("ppu: PPUDATA accessed while rendering")
	ErrScheduleViolation = errors.New("ppu: scroll update outside its dot schedule")
)

// PPUCTRL bits
const (
	ctrlNametable   = 0x03
	ctrlIncrement32 = 0x04
	ctrlSpriteTable = 0x08
	ctrlBGTable     = 0x10
	ctrlSprite16    = 0x20
	ctrlNMIEnable   = 0x80
)

// PPUMASK bits
const (
	maskGrayscale  = 0x01
	maskBGLeft     = 0x02
	maskSpriteLeft = 0x04
	maskBG         = 0x08
	maskSprites    = 0x10
)

// VRAM is the PPU address space below the palette: pattern tables and
// nametables as wired by the cartridge.
type VRAM interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	vram VRAM
	nmi  nmi.Setter

	ctrl    uint8
	mask    uint8
	oamAddr uint8
	ioLatch uint8 // last value written to any register

	vblank         bool
	spriteZeroHit  bool
	spriteOverflow bool

	// Loopy registers: v and t are 15 bits, x is fine X.
	v uint16
	t uint16
	x uint8
	w bool

	readBuffer uint8

	// Background pipeline. patternData holds 16 pixels at 2 bits each, the
	// pixel on screen in the low bits. attrData holds 8 pixels of palette
	// selection fed from attrNext.
	patternData  uint32
	attrData     uint16
	attrNext     uint8
	patternLatch uint32
	attrLatch    uint8

	oam        [256]uint8
	palette    paletteRAM
	spriteLine [Width]spritePixel

	scanline int
	dot      int
	frame    uint64

	front, back []uint32

	strictDataAccess bool
}

// New creates a PPU reading pattern and nametable data through vram and
// raising line at the start of vblank.
func New(vram VRAM, line nmi.Setter) *PPU {
	p := &PPU{
		vram:             vram,
		nmi:              line,
		palette:          powerOnPalette,
		front:            make([]uint32, Width*Height),
		back:             make([]uint32, Width*Height),
		strictDataAccess: true,
	}
	return p
}

// SetStrictDataAccess selects how PPUDATA access during rendering is
// handled. Strict mode fails the access with ErrRenderingAccess; otherwise
// the access goes through and v receives the coarse X and Y increments the
// hardware applies.
func (p *PPU) SetStrictDataAccess(strict bool) {
	p.strictDataAccess = strict
}

// Reset applies the console reset line: control, mask, the write toggle,
// scroll and the read buffer are cleared. OAM, palette and VRAM persist.
func (p *PPU) Reset() {
	p.setCtrl(0)
	p.mask = 0
	p.w = false
	p.t = 0
	p.x = 0
	p.readBuffer = 0
}

func (p *PPU) renderingEnabled() bool {
	return p.mask&(maskBG|maskSprites) != 0
}

// renderLine reports whether the current line is a visible or pre-render
// line, where the PPU owns the VRAM bus while rendering is on.
func (p *PPU) renderLine() bool {
	return p.scanline < Height || p.scanline == preRenderLine
}

func (p *PPU) rendering() bool {
	return p.renderingEnabled() && p.renderLine()
}

func (p *PPU) setCtrl(value uint8) {
	old := p.ctrl
	p.ctrl = value
	p.t = p.t&^0x0C00 | uint16(value&ctrlNametable)<<10

	// Enabling NMI while the vblank flag is still set fires immediately.
	if p.vblank && old&ctrlNMIEnable == 0 && value&ctrlNMIEnable != 0 {
		p.nmi.Set()
	}
}

// ReadRegister reads from a PPU register (CPU $2000-$3FFF, mirrored every 8)
func (p *PPU) ReadRegister(address uint16) (uint8, error) {
	switch address & 7 {
	case 2: // PPUSTATUS
		return p.readStatus(), nil
	case 4: // OAMDATA
		return p.oam[p.oamAddr], nil
	case 7: // PPUDATA
		return p.readData()
	}
	// Write-only registers return the bus latch.
	return p.ioLatch, nil
}

// WriteRegister writes to a PPU register (CPU $2000-$3FFF, mirrored every 8)
func (p *PPU) WriteRegister(address uint16, value uint8) error {
	p.ioLatch = value
	switch address & 7 {
	case 0: // PPUCTRL
		p.setCtrl(value)
	case 1: // PPUMASK
		p.mask = value
	case 2: // PPUSTATUS is read only
	case 3: // OAMADDR
		p.oamAddr = value
	case 4: // OAMDATA
		if p.rendering() {
			return nil
		}
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5: // PPUSCROLL
		p.writeScroll(value)
	case 6: // PPUADDR
		p.writeAddr(value)
	case 7: // PPUDATA
		return p.writeData(value)
	}
	return nil
}

func (p *PPU) readStatus() uint8 {
	status := p.ioLatch & 0x1F
	if p.vblank {
		status |= 0x80
	}
	if p.spriteZeroHit {
		status |= 0x40
	}
	if p.spriteOverflow {
		status |= 0x20
	}
	p.vblank = false
	p.w = false
	return status
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = p.t&^0x001F | uint16(value>>3)
		p.x = value & 0x07
	} else {
		p.t = p.t&^0x73E0 | uint16(value&0x07)<<12 | uint16(value>>3)<<5
	}
	p.w = !p.w
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = p.t&^0x7F00 | uint16(value&0x3F)<<8
	} else {
		p.t = p.t&^0x00FF | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// dataAccess checks the bus ownership rule for PPUDATA.
func (p *PPU) dataAccess(op string) error {
	if !p.rendering() {
		return nil
	}
	if p.strictDataAccess {
		return errors.Wrapf(ErrRenderingAccess, "%s at scanline %d dot %d", op, p.scanline, p.dot)
	}
	return nil
}

func (p *PPU) readData() (uint8, error) {
	if err := p.dataAccess("read"); err != nil {
		return 0, err
	}

	address := p.v & 0x3FFF
	var data uint8
	if address < 0x3F00 {
		data = p.readBuffer
		p.readBuffer = p.vram.Read(address)
	} else {
		// Palette reads are immediate; the buffer picks up the nametable
		// byte underneath.
		data = p.palette.read(address)
		p.readBuffer = p.vram.Read(address - 0x1000)
	}
	p.advanceAddress()
	return data, nil
}

func (p *PPU) writeData(value uint8) error {
	if err := p.dataAccess("write"); err != nil {
		return err
	}

	address := p.v & 0x3FFF
	if address < 0x3F00 {
		p.vram.Write(address, value)
	} else {
		p.palette.write(address, value)
	}
	p.advanceAddress()
	return nil
}

func (p *PPU) advanceAddress() {
	if p.rendering() {
		p.stepCoarseX()
		p.stepY()
		return
	}
	if p.ctrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

// WriteDMA copies a 256-byte page into OAM starting at OAMADDR.
func (p *PPU) WriteDMA(page []uint8) {
	for i := 0; i < len(page) && i < 256; i++ {
		p.oam[uint8(i)+p.oamAddr] = page[i]
	}
}

// Tick advances the PPU by one dot.
func (p *PPU) Tick() error {
	p.advanceDot()

	bg := transparent
	if p.rendering() {
		switch {
		case p.dot == 256:
			if err := p.incrementY(); err != nil {
				return err
			}
		case p.dot == 257:
			p.copyX()
		case p.dot >= 327 || p.dot >= 1 && p.dot <= 255:
			switch p.dot & 7 {
			case 7:
				p.fetchTile()
			case 0:
				if err := p.incrementX(); err != nil {
					return err
				}
			case 1:
				p.reloadShifters()
			}
		}
		if p.dot >= 329 && p.dot <= 336 || p.dot >= 1 && p.dot <= 256 {
			bg = p.backgroundPixel()
		}
	}

	switch {
	case p.scanline < Height:
		if p.dot == 261 && p.renderingEnabled() {
			p.evaluateSprites(p.scanline)
		}
		if p.dot >= 1 && p.dot <= Width {
			p.composite(p.dot-1, p.scanline, bg)
		}
	case p.scanline == vblankLine:
		if p.dot == 1 {
			p.vblank = true
			if p.ctrl&ctrlNMIEnable != 0 {
				p.nmi.Set()
			}
		}
	case p.scanline == preRenderLine:
		switch {
		case p.dot == 1:
			p.vblank = false
			p.spriteZeroHit = false
			p.spriteOverflow = false
		case p.dot == 261:
			p.clearSpriteLine()
		case p.dot >= 280 && p.dot <= 304 && p.renderingEnabled():
			p.copyY()
		}
	}
	return nil
}

func (p *PPU) advanceDot() {
	p.dot++
	if p.dot < dotsPerLine {
		return
	}
	p.dot = 0
	p.scanline++
	num.AssertInRange(p.scanline, 1, linesPerFrame)
	if p.scanline < linesPerFrame {
		return
	}
	p.scanline = 0
	p.frame++
	p.front, p.back = p.back, p.front
}

// FrameBuffer returns the last completed frame as 0xAARRGGBB pixels, row
// major. The slice is owned by the PPU and stays valid until the next frame
// completes.
func (p *PPU) FrameBuffer() []uint32 {
	return p.front
}

// Frame returns the number of completed frames.
func (p *PPU) Frame() uint64 {
	return p.frame
}

// Position returns the current scanline (0-261) and dot (0-340).
func (p *PPU) Position() (scanline, dot int) {
	return p.scanline, p.dot
}

// VBlank reports the PPUSTATUS vblank flag without clearing it.
func (p *PPU) VBlank() bool {
	return p.vblank
}

// OAM returns a copy of object attribute memory.
func (p *PPU) OAM() []uint8 {
	out := make([]uint8, len(p.oam))
	copy(out, p.oam[:])
	return out
}

// Palette returns a copy of palette RAM with the aliased entries resolved.
func (p *PPU) Palette() []uint8 {
	out := make([]uint8, 32)
	for i := range out {
		out[i] = p.palette.read(uint16(i))
	}
	return out
}

// Emphasis returns the PPUMASK color emphasis bits (red, green, blue in
// bits 0-2). They are tracked but not applied to the output.
func (p *PPU) Emphasis() uint8 {
	return p.mask >> 5
}
