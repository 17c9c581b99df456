package ppu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// State is a serializable copy of the PPU, including the sprite line being
// drawn and both frame buffers.
type State struct {
	Ctrl           uint8   `json:"ctrl"`
	Mask           uint8   `json:"mask"`
	OAMAddr        uint8   `json:"oam_addr"`
	IOLatch        uint8   `json:"io_latch"`
	VBlank         bool    `json:"vblank"`
	SpriteZeroHit  bool    `json:"sprite_zero_hit"`
	SpriteOverflow bool    `json:"sprite_overflow"`
	V              uint16  `json:"v"`
	T              uint16  `json:"t"`
	X              uint8   `json:"x"`
	W              bool    `json:"w"`
	ReadBuffer     uint8   `json:"read_buffer"`
	PatternData    uint32  `json:"pattern_data"`
	AttrData       uint16  `json:"attr_data"`
	AttrNext       uint8   `json:"attr_next"`
	PatternLatch   uint32  `json:"pattern_latch"`
	AttrLatch      uint8   `json:"attr_latch"`
	OAM            []uint8 `json:"oam"`
	Palette        []uint8 `json:"palette"`
	Scanline       int     `json:"scanline"`
	Dot            int     `json:"dot"`
	Frame          uint64  `json:"frame"`

	SpriteLine []uint16 `json:"sprite_line"`
	Front      []byte   `json:"front"`
	Back       []byte   `json:"back"`
}

// Sprite line entries pack the palette color in the low byte.
const (
	spriteOpaque = 1 << 8
	spriteBehind = 1 << 9
	spriteZero   = 1 << 10
)

func (sp spritePixel) pack() uint16 {
	v := uint16(sp.color)
	if sp.opaque {
		v |= spriteOpaque
	}
	if sp.behind {
		v |= spriteBehind
	}
	if sp.zero {
		v |= spriteZero
	}
	return v
}

func unpackSprite(v uint16) spritePixel {
	return spritePixel{
		color:  uint8(v),
		opaque: v&spriteOpaque != 0,
		behind: v&spriteBehind != 0,
		zero:   v&spriteZero != 0,
	}
}

func packPixels(pixels []uint32) []byte {
	out := make([]byte, 4*len(pixels))
	for i, px := range pixels {
		binary.LittleEndian.PutUint32(out[4*i:], px)
	}
	return out
}

func unpackPixels(dst []uint32, data []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
}

// Snapshot captures the PPU state.
func (p *PPU) Snapshot() State {
	palette := make([]uint8, len(p.palette))
	copy(palette, p.palette[:])
	line := make([]uint16, len(p.spriteLine))
	for i, sp := range p.spriteLine {
		line[i] = sp.pack()
	}
	return State{
		Ctrl:           p.ctrl,
		Mask:           p.mask,
		OAMAddr:        p.oamAddr,
		IOLatch:        p.ioLatch,
		VBlank:         p.vblank,
		SpriteZeroHit:  p.spriteZeroHit,
		SpriteOverflow: p.spriteOverflow,
		V:              p.v,
		T:              p.t,
		X:              p.x,
		W:              p.w,
		ReadBuffer:     p.readBuffer,
		PatternData:    p.patternData,
		AttrData:       p.attrData,
		AttrNext:       p.attrNext,
		PatternLatch:   p.patternLatch,
		AttrLatch:      p.attrLatch,
		OAM:            p.OAM(),
		Palette:        palette,
		Scanline:       p.scanline,
		Dot:            p.dot,
		Frame:          p.frame,
		SpriteLine:     line,
		Front:          packPixels(p.front),
		Back:           packPixels(p.back),
	}
}

// Restore loads a state produced by Snapshot.
func (p *PPU) Restore(s State) error {
	if len(s.OAM) != len(p.oam) || len(s.Palette) != len(p.palette) {
		return errors.Errorf("ppu: state has %d OAM and %d palette bytes", len(s.OAM), len(s.Palette))
	}
	if s.Scanline < 0 || s.Scanline >= linesPerFrame || s.Dot < 0 || s.Dot >= dotsPerLine {
		return errors.Errorf("ppu: state position (%d, %d) out of range", s.Scanline, s.Dot)
	}
	if len(s.SpriteLine) != len(p.spriteLine) {
		return errors.Errorf("ppu: state sprite line has %d pixels", len(s.SpriteLine))
	}
	if len(s.Front) != 4*len(p.front) || len(s.Back) != 4*len(p.back) {
		return errors.Errorf("ppu: state frame buffers are %d and %d bytes", len(s.Front), len(s.Back))
	}

	p.ctrl = s.Ctrl
	p.mask = s.Mask
	p.oamAddr = s.OAMAddr
	p.ioLatch = s.IOLatch
	p.vblank = s.VBlank
	p.spriteZeroHit = s.SpriteZeroHit
	p.spriteOverflow = s.SpriteOverflow
	p.v = s.V & 0x7FFF
	p.t = s.T & 0x7FFF
	p.x = s.X & 0x07
	p.w = s.W
	p.readBuffer = s.ReadBuffer
	p.patternData = s.PatternData
	p.attrData = s.AttrData
	p.attrNext = s.AttrNext
	p.patternLatch = s.PatternLatch
	p.attrLatch = s.AttrLatch
	copy(p.oam[:], s.OAM)
	for i, c := range s.Palette {
		p.palette[i] = c & 0x3F
	}
	p.scanline = s.Scanline
	p.dot = s.Dot
	p.frame = s.Frame
	for i, v := range s.SpriteLine {
		p.spriteLine[i] = unpackSprite(v)
	}
	unpackPixels(p.front, s.Front)
	unpackPixels(p.back, s.Back)
	return nil
}
