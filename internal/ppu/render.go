package ppu

import "github.com/pkg/errors"

// transparent marks a background pixel with pattern value 0.
const transparent = -1

// spritePixel is one entry of the per-line sprite buffer.
type spritePixel struct {
	color  uint8
	opaque bool
	behind bool // priority bit: drawn behind opaque background
	zero   bool // pixel belongs to OAM entry 0
}

// incrementX is "inc hori(v)": legal on render lines at dots 8, 16, ...,
// 256 and 328, 336.
func (p *PPU) incrementX() error {
	legal := p.renderLine() && p.dot&7 == 0 &&
		(p.dot >= 8 && p.dot <= 256 || p.dot >= 328 && p.dot <= 336)
	if !legal {
		return errors.Wrapf(ErrScheduleViolation, "coarse X increment at scanline %d dot %d", p.scanline, p.dot)
	}
	p.stepCoarseX()
	return nil
}

// incrementY is "inc vert(v)": legal on render lines at dot 256 only.
func (p *PPU) incrementY() error {
	if !p.renderLine() || p.dot != 256 {
		return errors.Wrapf(ErrScheduleViolation, "Y increment at scanline %d dot %d", p.scanline, p.dot)
	}
	p.stepY()
	return nil
}

func (p *PPU) stepCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400 // switch horizontal nametable
	} else {
		p.v++
	}
}

func (p *PPU) stepY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800 // switch vertical nametable
	case 31:
		y = 0
	default:
		y++
	}
	p.v = p.v&^0x03E0 | y<<5
}

// copyX is hori(v) = hori(t).
func (p *PPU) copyX() {
	p.v = p.v&^0x041F | p.t&0x041F
}

// copyY is vert(v) = vert(t).
func (p *PPU) copyY() {
	p.v = p.v&^0x7BE0 | p.t&0x7BE0
}

// interleave packs two pattern bit planes into 2 bits per pixel, leftmost
// pixel in the low bits.
func interleave(lo, hi uint8) uint32 {
	var out uint32
	for i := uint(0); i < 8; i++ {
		px := uint32(lo>>i&1) | uint32(hi>>i&1)<<1
		out |= px << ((7 - i) * 2)
	}
	return out
}

// fetchTile loads the nametable, attribute and pattern bytes for the tile
// at v into the latches.
func (p *PPU) fetchTile() {
	fineY := p.v >> 12
	tile := uint16(p.vram.Read(0x2000 | p.v&0x0FFF))

	base := tile << 4
	if p.ctrl&ctrlBGTable != 0 {
		base |= 0x1000
	}
	lo := p.vram.Read(base | fineY)
	hi := p.vram.Read(base | 8 | fineY)
	p.patternLatch = interleave(lo, hi)

	attrAddr := 0x23C0 | p.v&0x0C00 | (p.v>>4)&0x38 | (p.v>>2)&0x07
	attr := p.vram.Read(attrAddr)
	shift := (p.v>>4)&4 | p.v&2
	p.attrLatch = attr >> shift & 3
}

func (p *PPU) reloadShifters() {
	p.patternData |= p.patternLatch << 16
	p.attrNext = p.attrLatch
}

// backgroundPixel returns the color index of the pixel at fine X, or
// transparent, and shifts the pipeline one pixel.
func (p *PPU) backgroundPixel() int {
	px := uint8(p.patternData>>(p.x<<1)) & 3
	attr := uint8(p.attrData>>(p.x<<1)) & 3

	p.patternData >>= 2
	p.attrData = p.attrData>>2 | uint16(p.attrNext&3)<<14

	if px == 0 {
		return transparent
	}
	return int(p.palette.background(attr, px))
}

// composite resolves the final pixel at (x, y) from the background color
// and the sprite line buffer.
func (p *PPU) composite(x, y int, bg int) {
	color := transparent
	if p.mask&maskBG != 0 && (x >= 8 || p.mask&maskBGLeft != 0) {
		color = bg
	}

	sp := p.spriteLine[x]
	if p.mask&maskSprites != 0 && sp.opaque {
		if sp.zero && color != transparent && x != 255 {
			p.spriteZeroHit = true
		}
		if !sp.behind || color == transparent {
			color = int(sp.color)
		}
	}

	if color == transparent {
		color = int(p.palette.universal())
	}
	if p.mask&maskGrayscale != 0 {
		color &= 0x30
	}
	p.back[y*Width+x] = nesColorPalette[color&0x3F]
}

func (p *PPU) spriteHeight() int {
	if p.ctrl&ctrlSprite16 != 0 {
		return 16
	}
	return 8
}

func (p *PPU) clearSpriteLine() {
	p.spriteLine = [Width]spritePixel{}
}

// evaluateSprites fills the sprite line buffer with the first eight sprites
// in range of scanline. The buffer is drawn on the following line, which
// is the one-line offset of OAM Y coordinates.
func (p *PPU) evaluateSprites(scanline int) {
	p.clearSpriteLine()

	height := p.spriteHeight()
	var found [8]int
	count := 0
	for i := 0; i < 256; i += 4 {
		y := int(p.oam[i])
		if scanline < y || scanline >= y+height {
			continue
		}
		if count == len(found) {
			p.spriteOverflow = true
			break
		}
		found[count] = i
		count++
	}

	for _, i := range found[:count] {
		y := int(p.oam[i])
		tile := p.oam[i+1]
		attr := p.oam[i+2]
		x := int(p.oam[i+3])

		palette := attr & 3
		behind := attr&0x20 != 0
		flipH := attr&0x40 != 0
		flipV := attr&0x80 != 0

		row := scanline - y
		if flipV {
			row = height - 1 - row
		}

		for col := 0; col < 8; col++ {
			sx := x + col
			if sx >= Width || sx < 8 && p.mask&maskSpriteLeft == 0 || p.spriteLine[sx].opaque {
				continue
			}
			c := col
			if flipH {
				c = 7 - col
			}

			var px uint8
			if height == 8 {
				table := uint16(0)
				if p.ctrl&ctrlSpriteTable != 0 {
					table = 1
				}
				px = p.patternValue(table, tile, c, row)
			} else {
				t := tile &^ 1
				if row >= 8 {
					t |= 1
				}
				px = p.patternValue(uint16(tile&1), t, c, row&7)
			}
			if px == 0 {
				continue
			}
			p.spriteLine[sx] = spritePixel{
				color:  p.palette.sprite(palette, px),
				opaque: true,
				behind: behind,
				zero:   i == 0,
			}
		}
	}
}

// patternValue returns the 2-bit pixel at (x, y) of tile in pattern table
// 0 ($0000) or 1 ($1000).
func (p *PPU) patternValue(table uint16, tile uint8, x, y int) uint8 {
	address := table<<12 | uint16(tile)<<4 | uint16(y&7)
	lo := p.vram.Read(address)
	hi := p.vram.Read(address | 8)
	shift := uint(7 - x&7)
	return (hi>>shift&1)<<1 | lo>>shift&1
}
