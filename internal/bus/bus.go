// Package bus implements the system bus for communication between NES components.
package bus

import (
	"io"
	"slices"

	"github.com/pkg/errors"

	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/memory"
	"nescore/internal/nmi"
	"nescore/internal/ppu"
)

const (
	// PPU dots per CPU cycle (NTSC)
	ppuDotsPerCycle = 3

	// OAM DMA suspends the CPU for 513 cycles, 514 from an odd cycle
	oamDMACycles = 513
)

// Bus connects all NES components together. A single Tick advances the
// whole console by one CPU cycle: three PPU dots, one CPU cycle and one APU
// cycle, in that order.
type Bus struct {
	// Core components
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cart *cartridge.Cartridge
	nmi  *nmi.Line

	// CPU cycles since power on
	cycles uint64

	// Serviced NMIs and started OAM DMAs, for the execution log
	nmiCount uint64
	dmaCount uint64

	sampleRate int
	strict     bool
	trace      io.Writer

	// Execution logging for testing
	executionLog   []ExecutionEvent
	loggingEnabled bool

	// Memory watchpoints, checked when an instruction completes
	watchpoints map[uint16]*watchpoint
	watchOrder  []uint16 // sorted keys of watchpoints
}

// ExecutionEvent records a single instruction step for testing
type ExecutionEvent struct {
	StepNumber   int
	PC           uint16
	Opcode       uint8
	Instruction  string
	CPUCycles    uint64
	Frame        uint64
	NMIProcessed bool
	DMATriggered bool
}

type watchpoint struct {
	value    uint8
	callback func(address uint16, old, value uint8)
}

// New creates a console around cart and runs the power-on reset.
func New(cart *cartridge.Cartridge) *Bus {
	b := &Bus{
		cart:        cart,
		Input:       input.NewInputState(),
		sampleRate:  44100,
		strict:      true,
		watchpoints: make(map[uint16]*watchpoint),
	}
	b.build()
	b.CPU.Reset()
	return b
}

// build wires a fresh set of chips to the cartridge's mapper.
func (b *Bus) build() {
	mapper := b.cart.Mapper()

	b.nmi = nmi.New()
	b.PPU = ppu.New(memory.NewPPUMemory(mapper), b.nmi)
	b.PPU.SetStrictDataAccess(b.strict)

	b.APU = apu.New()
	b.APU.SetSampleRate(b.sampleRate)

	b.Memory = memory.New(b.PPU, b.APU, mapper)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.triggerOAMDMA)
	b.APU.SetMemory(b.Memory)

	b.CPU = cpu.New(b.Memory, b.nmi)
	b.CPU.SetIRQSource(b.APU)
	if b.trace != nil {
		b.CPU.SetTraceWriter(b.trace)
	}

	b.cycles = 0
}

// Reset models the console reset button. Memory, the cartridge and the
// controllers keep their contents.
func (b *Bus) Reset() {
	b.CPU.SoftReset()
	b.PPU.Reset()
	b.APU.Reset()
	b.nmi.Handle()
	b.Memory.ClearErr()
}

// PowerCycle rebuilds the console chips from the same cartridge. Internal
// RAM is cleared. The mapper keeps its state, as cartridge RAM would.
func (b *Bus) PowerCycle() {
	b.build()
	b.Input.Reset()
	b.CPU.Reset()
}

// Tick advances the console by one CPU cycle. The first fault raised by a
// chip during the cycle is returned; the console state after a fault is
// whatever the faulting chip left behind.
func (b *Bus) Tick() error {
	for i := 0; i < ppuDotsPerCycle; i++ {
		if err := b.PPU.Tick(); err != nil {
			return err
		}
	}
	pending := b.nmi.Pending()
	if err := b.CPU.Tick(); err != nil {
		return err
	}
	if pending && !b.nmi.Pending() {
		b.nmiCount++
	}
	b.APU.Tick()
	if n := b.APU.TakeStall(); n > 0 {
		b.CPU.AddStall(n)
	}
	b.cycles++

	if len(b.watchpoints) > 0 && b.CPU.Stall() == 0 {
		b.checkWatchpoints()
	}
	if err := b.Memory.Err(); err != nil {
		b.Memory.ClearErr()
		return err
	}
	return nil
}

// StepInstruction ticks through any pending stall, the next instruction
// (or interrupt entry) and its remaining cycles.
func (b *Bus) StepInstruction() error {
	for b.CPU.Stall() > 0 {
		if err := b.Tick(); err != nil {
			return err
		}
	}

	start, nmis, dmas := b.cycles, b.nmiCount, b.dmaCount
	pc := b.CPU.PC
	opcode := b.Memory.Peek(pc)
	frame := b.PPU.Frame()

	if err := b.Tick(); err != nil {
		return err
	}
	for b.CPU.Stall() > 0 {
		if err := b.Tick(); err != nil {
			return err
		}
	}

	if b.loggingEnabled {
		event := ExecutionEvent{
			StepNumber:   len(b.executionLog) + 1,
			PC:           pc,
			Opcode:       opcode,
			CPUCycles:    b.cycles - start,
			Frame:        frame,
			NMIProcessed: b.nmiCount != nmis,
			DMATriggered: b.dmaCount != dmas,
		}
		if !event.NMIProcessed {
			event.Instruction = cpu.Opcodes[opcode].Instr.String()
		}
		b.executionLog = append(b.executionLog, event)
	}
	return nil
}

// StepFrame runs until the PPU finishes the current frame.
func (b *Bus) StepFrame() error {
	frame := b.PPU.Frame()
	for b.PPU.Frame() == frame {
		if err := b.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles runs the console for n CPU cycles.
func (b *Bus) RunCycles(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := b.Tick(); err != nil {
			return errors.Wrapf(err, "cycle %d", b.cycles)
		}
	}
	return nil
}

// triggerOAMDMA copies page $XX00-$XXFF into OAM and suspends the CPU.
func (b *Bus) triggerOAMDMA(page uint8) {
	base := uint16(page) << 8
	data := make([]uint8, 256)
	for i := range data {
		data[i] = b.Memory.Read(base + uint16(i))
	}
	b.PPU.WriteDMA(data)
	b.dmaCount++

	stall := oamDMACycles
	if b.CPU.Cycles()&1 == 1 {
		stall++
	}
	b.CPU.AddStall(stall)
}

// Cartridge returns the inserted cartridge.
func (b *Bus) Cartridge() *cartridge.Cartridge {
	return b.cart
}

// Cycles returns the CPU cycles run since power on.
func (b *Bus) Cycles() uint64 {
	return b.cycles
}

// Frame returns the number of completed frames.
func (b *Bus) Frame() uint64 {
	return b.PPU.Frame()
}

// FrameBuffer returns the last completed frame as 0xAARRGGBB pixels.
func (b *Bus) FrameBuffer() []uint32 {
	return b.PPU.FrameBuffer()
}

// SetSampleRate sets the host sample rate of the audio stream.
func (b *Bus) SetSampleRate(rate int) {
	b.sampleRate = rate
	b.APU.SetSampleRate(rate)
}

// ReadSamples pulls audio samples in [0, 1] into dst. See apu.ReadSamples.
func (b *Bus) ReadSamples(dst []float32) int {
	return b.APU.ReadSamples(dst)
}

// SetButtons sets the button mask of controller port 1 or 2.
func (b *Bus) SetButtons(port int, mask uint8) error {
	return b.Input.SetButtons(port, mask)
}

// SetStrictDataAccess selects whether PPUDATA access during rendering
// faults. See ppu.SetStrictDataAccess.
func (b *Bus) SetStrictDataAccess(strict bool) {
	b.strict = strict
	b.PPU.SetStrictDataAccess(strict)
}

// SetTraceWriter writes a nestest-format line per instruction to w.
func (b *Bus) SetTraceWriter(w io.Writer) {
	b.trace = w
	b.CPU.SetTraceWriter(w)
}

// Watch calls fn after any instruction that changes the byte at address.
// Only RAM and cartridge space can be watched. A nil fn removes the
// watchpoint.
func (b *Bus) Watch(address uint16, fn func(address uint16, old, value uint8)) {
	i, found := slices.BinarySearch(b.watchOrder, address)
	if fn == nil {
		if found {
			b.watchOrder = slices.Delete(b.watchOrder, i, i+1)
		}
		delete(b.watchpoints, address)
		return
	}
	if !found {
		b.watchOrder = slices.Insert(b.watchOrder, i, address)
	}
	b.watchpoints[address] = &watchpoint{
		value:    b.Memory.Peek(address),
		callback: fn,
	}
}

// checkWatchpoints fires callbacks in ascending address order.
func (b *Bus) checkWatchpoints() {
	for _, address := range b.watchOrder {
		wp, ok := b.watchpoints[address]
		if !ok {
			continue
		}
		if v := b.Memory.Peek(address); v != wp.value {
			old := wp.value
			wp.value = v
			wp.callback(address, old, v)
		}
	}
}

// GetExecutionLog returns execution log for integration testing
func (b *Bus) GetExecutionLog() []ExecutionEvent {
	return b.executionLog
}

// EnableExecutionLogging enables execution logging for testing
func (b *Bus) EnableExecutionLogging() {
	b.loggingEnabled = true
}

// DisableExecutionLogging disables execution logging
func (b *Bus) DisableExecutionLogging() {
	b.loggingEnabled = false
}

// ClearExecutionLog clears the execution log
func (b *Bus) ClearExecutionLog() {
	b.executionLog = b.executionLog[:0]
}

// BufferedSamples returns the number of audio samples waiting to be read.
func (b *Bus) BufferedSamples() int {
	return b.APU.Buffered()
}
