package memory

// PPUMemory is the PPU address space below the palette: pattern tables
// ($0000-$1FFF) and nametables ($2000-$2FFF, mirrored up to $3EFF). Both are
// served by the cartridge, which applies its own mirroring.
type PPUMemory struct {
	cartridge CartridgeInterface
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart CartridgeInterface) *PPUMemory {
	return &PPUMemory{cartridge: cart}
}

// Read reads from PPU memory space ($0000-$3EFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF
	if address < 0x2000 {
		return pm.cartridge.ReadCHR(address)
	}
	return pm.cartridge.ReadNametable(0x2000 | address&0x0FFF)
}

// Write writes to PPU memory space ($0000-$3EFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF
	if address < 0x2000 {
		pm.cartridge.WriteCHR(address, value)
		return
	}
	pm.cartridge.WriteNametable(0x2000|address&0x0FFF, value)
}
