package cartridge

import "github.com/pkg/errors"

// Mapper is the board logic between the console and the cartridge memories.
// CPU accesses cover $4020-$FFFF, CHR accesses $0000-$1FFF and nametable
// accesses $2000-$2FFF of the PPU address space.
type Mapper interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	ReadNametable(address uint16) uint8
	WriteNametable(address uint16, value uint8)

	// Snapshot and Restore carry the board state for save states and the
	// debugger.
	Snapshot() MapperState
	Restore(state MapperState) error
}

// MapperState is a serializable copy of a mapper's mutable state.
type MapperState struct {
	ID        uint8            `json:"id"`
	Registers map[string]uint8 `json:"registers,omitempty"`
	VRAM      []uint8          `json:"vram"`
	PRGRAM    []uint8          `json:"prg_ram,omitempty"`
	CHRRAM    []uint8          `json:"chr_ram,omitempty"`
}

var errStateMismatch = errors.New("cartridge: mapper state belongs to another board")

// nametables is the 2KB of console VRAM plus the mirroring wiring that the
// cartridge applies to it. Four-screen boards carry their own extra 2KB.
type nametables struct {
	vram [0x1000]uint8
	mode MirrorMode
}

func (n *nametables) index(address uint16) uint16 {
	a := (address - 0x2000) & 0x0FFF
	switch n.mode {
	case MirrorHorizontal:
		return a>>1&0x400 | a&0x3FF
	case MirrorVertical:
		return a & 0x7FF
	case MirrorSingleScreen0:
		return a & 0x3FF
	case MirrorSingleScreen1:
		return 0x400 | a&0x3FF
	}
	return a
}

func (n *nametables) read(address uint16) uint8 {
	return n.vram[n.index(address)]
}

func (n *nametables) write(address uint16, value uint8) {
	n.vram[n.index(address)] = value
}

func (n *nametables) snapshot() []uint8 {
	out := make([]uint8, len(n.vram))
	copy(out, n.vram[:])
	return out
}

func (n *nametables) restore(data []uint8) {
	copy(n.vram[:], data)
}

func snapshotCart(c *Cartridge, state *MapperState) {
	state.PRGRAM = c.SRAM()
	if c.hasCHRRAM {
		state.CHRRAM = make([]uint8, len(c.chr))
		copy(state.CHRRAM, c.chr)
	}
}

func restoreCart(c *Cartridge, state MapperState) {
	c.LoadSRAM(state.PRGRAM)
	if c.hasCHRRAM {
		copy(c.chr, state.CHRRAM)
	}
}
