// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"nescore/internal/nmi"
	"nescore/internal/num"
)

// ErrHalted is returned by Tick once a KIL opcode has locked the processor.
// Only a reset clears it.
var ErrHalted = errors.New("cpu: halted by KIL opcode")

// Addressing modes
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

// Size returns the instruction length in bytes for the mode.
func (m AddressingMode) Size() int {
	switch m {
	case Implied, Accumulator:
		return 1
	case Absolute, AbsoluteX, AbsoluteY, Indirect:
		return 3
	}
	return 2
}

const (
	stackBase = 0x0100

	// Status register bit masks
	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	// Interrupt vectors
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE

	// Cycles spent in the reset and interrupt sequences
	interruptCycles = 7
)

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// IRQSource is the level-triggered IRQ input, driven by the APU.
type IRQSource interface {
	IRQ() bool
}

// peeker is implemented by memories that can be read without side effects.
// The tracer uses it to fetch operand bytes.
type peeker interface {
	Peek(address uint16) uint8
}

// CPU represents the 6502 processor used in the NES
type CPU struct {
	// Registers
	A  uint8  // Accumulator
	X  uint8  // X register
	Y  uint8  // Y register
	SP uint8  // Stack pointer
	PC uint16 // Program counter

	// Status register flags. B and bit 5 only exist on the stack.
	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal mode (stored, no effect)
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface
	nmi    nmi.Handler
	irq    IRQSource

	// Completed cycles since power on
	cycles uint64
	// Cycles left before the next fetch
	stall int

	halted  error
	onTrace func(Trace)
}

// New creates a CPU wired to memory and the NMI line. Either of line or a
// later IRQ source may be nil. Call Reset before ticking.
func New(memory MemoryInterface, line nmi.Handler) *CPU {
	return &CPU{
		memory: memory,
		nmi:    line,
		SP:     0xFD,
		I:      true,
	}
}

// SetIRQSource attaches the maskable interrupt input.
func (cpu *CPU) SetIRQSource(src IRQSource) {
	cpu.irq = src
}

// Reset puts the CPU in its power-on state and loads PC from $FFFC. The
// reset sequence occupies the first seven cycles.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.unpackStatus(0x24)
	cpu.PC = cpu.read16(resetVector)
	cpu.cycles = 0
	cpu.stall = interruptCycles
	cpu.halted = nil
}

// SoftReset models the console reset button: registers are kept, S drops
// by three and interrupts are disabled.
func (cpu *CPU) SoftReset() {
	cpu.SP -= 3
	cpu.I = true
	cpu.PC = cpu.read16(resetVector)
	cpu.stall = interruptCycles
	cpu.halted = nil
}

// Cycles returns the number of cycles completed since power on.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// Stall returns the cycles left before the next instruction fetch.
func (cpu *CPU) Stall() int { return cpu.stall }

// AddStall suspends the CPU for n more cycles. OAM DMA uses it.
func (cpu *CPU) AddStall(n int) {
	cpu.stall += n
}

// Halted reports whether a KIL opcode locked the CPU.
func (cpu *CPU) Halted() bool { return cpu.halted != nil }

// Status returns the packed status register as PHP would see it without
// the B flag.
func (cpu *CPU) Status() uint8 { return cpu.packStatus() }

// SetTraceCallback installs fn to be called before each instruction.
func (cpu *CPU) SetTraceCallback(fn func(Trace)) {
	cpu.onTrace = fn
}

// SetTraceWriter writes one trace line per instruction to w. A nil writer
// disables tracing.
func (cpu *CPU) SetTraceWriter(w io.Writer) {
	if w == nil {
		cpu.onTrace = nil
		return
	}
	cpu.onTrace = func(t Trace) {
		fmt.Fprintln(w, t.String())
	}
}

// Tick advances one CPU cycle.
func (cpu *CPU) Tick() error {
	if cpu.halted != nil {
		return cpu.halted
	}
	defer func() { cpu.cycles++ }()

	if cpu.stall > 0 {
		cpu.stall--
		return nil
	}

	if cpu.nmi != nil && cpu.nmi.Handle() {
		cpu.interrupt(nmiVector, false)
		cpu.stall = interruptCycles - 1
		return nil
	}
	if !cpu.I && cpu.irq != nil && cpu.irq.IRQ() {
		cpu.interrupt(irqVector, false)
		cpu.stall = interruptCycles - 1
		return nil
	}

	opcode := cpu.memory.Read(cpu.PC)
	op := Opcodes[opcode]
	if cpu.onTrace != nil {
		cpu.onTrace(cpu.trace(opcode))
	}

	pc := cpu.PC
	address, crossed := cpu.resolve(op.Mode)
	taken := cpu.execute(op, address, crossed)
	if cpu.halted != nil {
		cpu.halted = errors.Wrapf(ErrHalted, "opcode $%02X at $%04X", opcode, pc)
		return cpu.halted
	}

	extra := 0
	if taken {
		extra++
	}
	if crossed && op.PageCycle && (op.Mode != Relative || taken) {
		extra++
	}
	cpu.stall += int(op.Cycles) - 1 + extra
	return nil
}

// Step runs until the current instruction, or the interrupt entry that
// replaces it, has used all of its cycles. Pending stall from an earlier
// instruction is consumed first. It returns the cycles spent.
func (cpu *CPU) Step() (int, error) {
	start := cpu.cycles
	for cpu.stall > 0 {
		if err := cpu.Tick(); err != nil {
			return int(cpu.cycles - start), err
		}
	}
	if err := cpu.Tick(); err != nil {
		return int(cpu.cycles - start), err
	}
	for cpu.stall > 0 {
		if err := cpu.Tick(); err != nil {
			return int(cpu.cycles - start), err
		}
	}
	return int(cpu.cycles - start), nil
}

// resolve computes the effective address for mode and advances PC past the
// instruction. crossed reports an indexed page crossing, or for branches
// whether the target lies on another page.
func (cpu *CPU) resolve(mode AddressingMode) (address uint16, crossed bool) {
	operand := cpu.PC + 1
	switch mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		cpu.PC += 2
		return operand, false

	case ZeroPage:
		cpu.PC += 2
		return uint16(cpu.memory.Read(operand)), false

	case ZeroPageX:
		cpu.PC += 2
		return uint16(cpu.memory.Read(operand) + cpu.X), false

	case ZeroPageY:
		cpu.PC += 2
		return uint16(cpu.memory.Read(operand) + cpu.Y), false

	case Relative:
		cpu.PC += 2
		target := num.Offset(cpu.PC, cpu.memory.Read(operand))
		return target, num.PageCrossed(cpu.PC, target)

	case Absolute:
		cpu.PC += 3
		return cpu.read16(operand), false

	case AbsoluteX:
		cpu.PC += 3
		base := cpu.read16(operand)
		address = base + uint16(cpu.X)
		return address, num.PageCrossed(base, address)

	case AbsoluteY:
		cpu.PC += 3
		base := cpu.read16(operand)
		address = base + uint16(cpu.Y)
		return address, num.PageCrossed(base, address)

	case Indirect:
		cpu.PC += 3
		return cpu.read16Wrapped(cpu.read16(operand)), false

	case IndexedIndirect:
		cpu.PC += 2
		ptr := cpu.memory.Read(operand) + cpu.X
		return cpu.read16Wrapped(uint16(ptr)), false

	case IndirectIndexed:
		cpu.PC += 2
		base := cpu.read16Wrapped(uint16(cpu.memory.Read(operand)))
		address = base + uint16(cpu.Y)
		return address, num.PageCrossed(base, address)
	}
	panic(fmt.Sprintf("cpu: unknown addressing mode %d", mode))
}

func (cpu *CPU) read16(address uint16) uint16 {
	return num.Join16(cpu.memory.Read(address), cpu.memory.Read(address+1))
}

// read16Wrapped reads a pointer whose high byte comes from the same page,
// reproducing the JMP ($xxFF) and zero page pointer wrap.
func (cpu *CPU) read16Wrapped(address uint16) uint16 {
	hi := address&0xFF00 | uint16(uint8(address)+1)
	return num.Join16(cpu.memory.Read(address), cpu.memory.Read(hi))
}

// Stack operations
func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase|uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pull() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase | uint16(cpu.SP))
}

func (cpu *CPU) push16(value uint16) {
	cpu.push(num.Hi(value))
	cpu.push(num.Lo(value))
}

func (cpu *CPU) pull16() uint16 {
	lo := cpu.pull()
	hi := cpu.pull()
	return num.Join16(lo, hi)
}

// interrupt pushes PC and status and jumps through vector. brk selects the
// B flag in the pushed copy.
func (cpu *CPU) interrupt(vector uint16, brk bool) {
	cpu.push16(cpu.PC)
	p := cpu.packStatus()
	if brk {
		p |= bFlagMask
	}
	cpu.push(p)
	cpu.I = true
	cpu.PC = cpu.read16(vector)
}

// packStatus builds the status byte with bit 5 set and B clear.
func (cpu *CPU) packStatus() uint8 {
	p := uint8(unusedMask)
	if cpu.N {
		p |= nFlagMask
	}
	if cpu.V {
		p |= vFlagMask
	}
	if cpu.D {
		p |= dFlagMask
	}
	if cpu.I {
		p |= iFlagMask
	}
	if cpu.Z {
		p |= zFlagMask
	}
	if cpu.C {
		p |= cFlagMask
	}
	return p
}

// unpackStatus loads the flags from a status byte; bits 4 and 5 are
// ignored.
func (cpu *CPU) unpackStatus(p uint8) {
	cpu.N = p&nFlagMask != 0
	cpu.V = p&vFlagMask != 0
	cpu.D = p&dFlagMask != 0
	cpu.I = p&iFlagMask != 0
	cpu.Z = p&zFlagMask != 0
	cpu.C = p&cFlagMask != 0
}

// setZN sets Zero and Negative flags based on value
func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = value&nFlagMask != 0
}

// State is the serializable register file.
type State struct {
	A      uint8  `json:"a"`
	X      uint8  `json:"x"`
	Y      uint8  `json:"y"`
	SP     uint8  `json:"sp"`
	P      uint8  `json:"p"`
	PC     uint16 `json:"pc"`
	Cycles uint64 `json:"cycles"`
	Stall  int    `json:"stall"`
	Halted bool   `json:"halted"`
}

// Snapshot captures the register file.
func (cpu *CPU) Snapshot() State {
	return State{
		A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP,
		P:      cpu.packStatus(),
		PC:     cpu.PC,
		Cycles: cpu.cycles,
		Stall:  cpu.stall,
		Halted: cpu.halted != nil,
	}
}

// Restore loads a register file captured by Snapshot.
func (cpu *CPU) Restore(s State) {
	cpu.A, cpu.X, cpu.Y, cpu.SP = s.A, s.X, s.Y, s.SP
	cpu.unpackStatus(s.P)
	cpu.PC = s.PC
	cpu.cycles = s.Cycles
	cpu.stall = s.Stall
	cpu.halted = nil
	if s.Halted {
		cpu.halted = errors.Wrapf(ErrHalted, "restored at $%04X", s.PC)
	}
}
