package bus

import (
	"github.com/pkg/errors"

	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/ppu"
)

// State is a full console snapshot. It holds everything needed to resume
// emulation except the ROM contents, the controller inputs and audio
// samples already queued for the host.
type State struct {
	CPU        cpu.State             `json:"cpu"`
	PPU        ppu.State             `json:"ppu"`
	APU        apu.State             `json:"apu"`
	RAM        []uint8               `json:"ram"`
	Mapper     cartridge.MapperState `json:"mapper"`
	NMIPending bool                  `json:"nmi_pending"`
	Cycles     uint64                `json:"cycles"`
}

// Snapshot captures the console state.
func (b *Bus) Snapshot() State {
	return State{
		CPU:        b.CPU.Snapshot(),
		PPU:        b.PPU.Snapshot(),
		APU:        b.APU.Snapshot(),
		RAM:        b.Memory.RAM(),
		Mapper:     b.cart.Mapper().Snapshot(),
		NMIPending: b.nmi.Pending(),
		Cycles:     b.cycles,
	}
}

// Restore loads a snapshot taken from a console running the same
// cartridge. The console is left untouched when the snapshot is rejected.
func (b *Bus) Restore(s State) error {
	if len(s.RAM) != len(b.Memory.RAM()) {
		return errors.Errorf("bus: snapshot RAM is %d bytes", len(s.RAM))
	}
	mapper := b.cart.Mapper()
	prev := mapper.Snapshot()
	if err := mapper.Restore(s.Mapper); err != nil {
		return errors.Wrap(err, "bus: restore mapper")
	}
	prevPPU := b.PPU.Snapshot()
	if err := b.PPU.Restore(s.PPU); err != nil {
		_ = mapper.Restore(prev)
		return errors.Wrap(err, "bus: restore PPU")
	}
	if err := b.APU.Restore(s.APU); err != nil {
		_ = b.PPU.Restore(prevPPU)
		_ = mapper.Restore(prev)
		return errors.Wrap(err, "bus: restore APU")
	}

	b.CPU.Restore(s.CPU)
	b.Memory.LoadRAM(s.RAM)
	b.Memory.ClearErr()

	b.nmi.Handle()
	if s.NMIPending {
		b.nmi.Set()
	}
	b.cycles = s.Cycles
	return nil
}
