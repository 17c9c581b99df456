package ppu

// NES 2C02 color palette (NTSC), 0xAARRGGBB.
var nesColorPalette = [64]uint32{
	// $00-$0F
	0xFF545454, 0xFF001E74, 0xFF081090, 0xFF300088, 0xFF440064, 0xFF5C0030, 0xFF540400, 0xFF3C1800,
	0xFF202A00, 0xFF083A00, 0xFF004000, 0xFF003C00, 0xFF00323C, 0xFF000000, 0xFF000000, 0xFF000000,
	// $10-$1F
	0xFF989698, 0xFF084CC4, 0xFF3032EC, 0xFF5C1EE4, 0xFF8814B0, 0xFFA01464, 0xFF982220, 0xFF783C00,
	0xFF545A00, 0xFF287200, 0xFF087C00, 0xFF007628, 0xFF006678, 0xFF000000, 0xFF000000, 0xFF000000,
	// $20-$2F
	0xFFECEEEC, 0xFF4C9AEC, 0xFF787CEC, 0xFFB062EC, 0xFFE454EC, 0xFFEC58B4, 0xFFEC6A64, 0xFFD48820,
	0xFFA0AA00, 0xFF74C400, 0xFF4CD020, 0xFF38CC6C, 0xFF38B4CC, 0xFF3C3C3C, 0xFF000000, 0xFF000000,
	// $30-$3F
	0xFFECEEEC, 0xFFA8CCEC, 0xFFBCBCEC, 0xFFD4B2EC, 0xFFECAEEC, 0xFFECAED4, 0xFFECB4B0, 0xFFE4C490,
	0xFFCCD278, 0xFFB4DE78, 0xFFA8E290, 0xFF98E2B4, 0xFFA0D6E4, 0xFFA0A2A0, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a NES color index to a 0x00RRGGBB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// powerOnPalette is the palette RAM content observed on a cold console.
var powerOnPalette = [32]uint8{
	0x09, 0x01, 0x00, 0x01, 0x00, 0x02, 0x02, 0x0D, 0x08, 0x10, 0x08, 0x24, 0x00, 0x00, 0x04, 0x2C,
	0x09, 0x01, 0x34, 0x03, 0x00, 0x04, 0x00, 0x14, 0x08, 0x3A, 0x00, 0x02, 0x00, 0x20, 0x2C, 0x08,
}

// paletteRAM is the 32 bytes at $3F00-$3F1F, mirrored up to $3FFF. Entries
// $10/$14/$18/$1C alias $00/$04/$08/$0C. Only the low 6 bits are stored.
type paletteRAM [32]uint8

func paletteIndex(address uint16) uint16 {
	i := address & 0x1F
	if i&0x13 == 0x10 {
		i &^= 0x10
	}
	return i
}

func (pr *paletteRAM) read(address uint16) uint8 {
	return pr[paletteIndex(address)]
}

func (pr *paletteRAM) write(address uint16, value uint8) {
	pr[paletteIndex(address)] = value & 0x3F
}

// background returns the color of pixel value 1-3 in background palette 0-3.
func (pr *paletteRAM) background(palette, pixel uint8) uint8 {
	return pr[palette<<2|pixel]
}

// sprite returns the color of pixel value 1-3 in sprite palette 0-3.
func (pr *paletteRAM) sprite(palette, pixel uint8) uint8 {
	return pr[0x10|palette<<2|pixel]
}

// universal is the backdrop color at $3F00.
func (pr *paletteRAM) universal() uint8 {
	return pr[0]
}
