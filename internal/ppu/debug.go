package ppu

// Debug views. None of these touch the read buffer or the scroll registers.

// PatternTableSize is the width and height of one rendered pattern table.
const PatternTableSize = 128

// RenderPatternTable draws the 256 tiles of pattern table 0 ($0000) or 1
// ($1000) as a 16x16 grid of gray levels, 0xAARRGGBB pixels.
func (p *PPU) RenderPatternTable(table int) []uint32 {
	out := make([]uint32, PatternTableSize*PatternTableSize)
	for tile := 0; tile < 256; tile++ {
		tx, ty := tile%16*8, tile/16*8
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				px := p.patternValue(uint16(table&1), uint8(tile), x, y)
				gray := uint32(3-px) * 80
				out[(ty+y)*PatternTableSize+tx+x] = 0xFF000000 | gray<<16 | gray<<8 | gray
			}
		}
	}
	return out
}

// RenderNametables draws the four logical nametables as a 512x480 image
// using the current background pattern table and palette.
func (p *PPU) RenderNametables() []uint32 {
	const w, h = Width * 2, Height * 2
	out := make([]uint32, w*h)
	table := uint16(0)
	if p.ctrl&ctrlBGTable != 0 {
		table = 1
	}
	for n := 0; n < 4; n++ {
		base := 0x2000 + uint16(n)*0x400
		ox, oy := n&1*Width, n>>1*Height
		for y := 0; y < Height; y++ {
			for x := 0; x < Width; x++ {
				tile := p.vram.Read(base + uint16(y>>3)<<5 | uint16(x>>3))
				px := p.patternValue(table, tile, x, y)
				color := p.palette.universal()
				if px != 0 {
					attr := p.vram.Read(base | 0x3C0 + uint16(y>>5)<<3 | uint16(x>>5))
					shift := uint(y>>4&1)<<2 | uint(x>>4&1)<<1
					color = p.palette.background(attr>>shift&3, px)
				}
				out[(oy+y)*w+ox+x] = nesColorPalette[color]
			}
		}
	}
	return out
}

// TileInfo describes one background tile for the debugger.
type TileInfo struct {
	Address       uint16 // nametable entry address
	Nametable     int
	Column, Row   int // within the nametable
	TileIndex     uint8
	TileAddress   uint16 // pattern address of the tile
	AttributeAddr uint16
	AttributeData uint8
	PaletteAddr   uint16 // palette entry for pixel value 1
}

// NametableTileInfo returns the tile at column i (0-63) and row j (0-59)
// of the 2x2 nametable layout.
func (p *PPU) NametableTileInfo(i, j int) TileInfo {
	info := TileInfo{
		Nametable: i/32 + j/30*2,
		Column:    i % 32,
		Row:       j % 30,
	}
	base := 0x2000 + uint16(info.Nametable)*0x400
	info.Address = base + uint16(info.Column+info.Row*32)
	info.TileIndex = p.vram.Read(info.Address)
	info.TileAddress = uint16(info.TileIndex) * 16
	if p.ctrl&ctrlBGTable != 0 {
		info.TileAddress += 0x1000
	}
	info.AttributeAddr = base + 960 + uint16(info.Column/4+info.Row/4*8)
	info.AttributeData = p.vram.Read(info.AttributeAddr)
	quadrant := uint(info.Column%4/2 + info.Row%4/2*2)
	info.PaletteAddr = 0x3F01 + uint16(info.AttributeData>>(quadrant*2)&3)*4
	return info
}

// ScrollInfo is the decoded v register plus fine X.
type ScrollInfo struct {
	CoarseX, CoarseY int
	FineX, FineY     int
	Nametable        int
}

// Scroll decodes the current VRAM address register.
func (p *PPU) Scroll() ScrollInfo {
	return ScrollInfo{
		CoarseX:   int(p.v & 0x1F),
		CoarseY:   int(p.v >> 5 & 0x1F),
		FineX:     int(p.x),
		FineY:     int(p.v >> 12 & 0x07),
		Nametable: int(p.v >> 10 & 0x03),
	}
}
