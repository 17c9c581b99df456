package cpu

import (
	"fmt"
	"strings"

	"nescore/internal/num"
)

// Trace is the CPU state just before an instruction executes.
type Trace struct {
	PC      uint16
	Opcode  uint8
	Operand [2]uint8
	A       uint8
	X       uint8
	Y       uint8
	P       uint8
	SP      uint8
	Cycles  uint64
}

func (cpu *CPU) trace(opcode uint8) Trace {
	t := Trace{
		PC:     cpu.PC,
		Opcode: opcode,
		A:      cpu.A,
		X:      cpu.X,
		Y:      cpu.Y,
		P:      cpu.packStatus(),
		SP:     cpu.SP,
		Cycles: cpu.cycles,
	}
	peek := cpu.memory.Read
	if p, ok := cpu.memory.(peeker); ok {
		peek = p.Peek
	}
	for i := 1; i < Opcodes[opcode].Mode.Size(); i++ {
		t.Operand[i-1] = peek(cpu.PC + uint16(i))
	}
	return t
}

// Disassemble renders the instruction in assembler syntax. Branch targets
// are resolved to absolute addresses.
func (t Trace) Disassemble() string {
	op := Opcodes[t.Opcode]
	lo, hi := t.Operand[0], t.Operand[1]
	var arg string
	switch op.Mode {
	case Accumulator:
		arg = "A"
	case Immediate:
		arg = fmt.Sprintf("#$%02X", lo)
	case ZeroPage:
		arg = fmt.Sprintf("$%02X", lo)
	case ZeroPageX:
		arg = fmt.Sprintf("$%02X,X", lo)
	case ZeroPageY:
		arg = fmt.Sprintf("$%02X,Y", lo)
	case Relative:
		arg = fmt.Sprintf("$%04X", num.Offset(t.PC+2, lo))
	case Absolute:
		arg = fmt.Sprintf("$%04X", num.Join16(lo, hi))
	case AbsoluteX:
		arg = fmt.Sprintf("$%04X,X", num.Join16(lo, hi))
	case AbsoluteY:
		arg = fmt.Sprintf("$%04X,Y", num.Join16(lo, hi))
	case Indirect:
		arg = fmt.Sprintf("($%04X)", num.Join16(lo, hi))
	case IndexedIndirect:
		arg = fmt.Sprintf("($%02X,X)", lo)
	case IndirectIndexed:
		arg = fmt.Sprintf("($%02X),Y", lo)
	}
	if arg == "" {
		return op.Instr.String()
	}
	return op.Instr.String() + " " + arg
}

// String formats the trace in the column layout of the nestest log, minus
// the PPU position:
//
//	C000  4C F5 C5  JMP $C5F5                       A:00 X:00 Y:00 P:24 SP:FD CYC:7
func (t Trace) String() string {
	size := Opcodes[t.Opcode].Mode.Size()
	raw := make([]string, 0, 3)
	raw = append(raw, fmt.Sprintf("%02X", t.Opcode))
	for i := 1; i < size; i++ {
		raw = append(raw, fmt.Sprintf("%02X", t.Operand[i-1]))
	}
	mark := ' '
	if Unofficial(t.Opcode) {
		mark = '*'
	}
	return fmt.Sprintf("%04X  %-9s%c%-31s A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		t.PC, strings.Join(raw, " "), mark, t.Disassemble(),
		t.A, t.X, t.Y, t.P, t.SP, t.Cycles)
}
