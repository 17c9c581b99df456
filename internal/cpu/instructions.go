package cpu

import "fmt"

// Instr identifies the operation an opcode performs, independent of its
// addressing mode.
type Instr uint8

const (
	ADC Instr = iota
	AND
	ASL
	BCC
	BCS
	BEQ
	BIT
	BMI
	BNE
	BPL
	BRK
	BVC
	BVS
	CLC
	CLD
	CLI
	CLV
	CMP
	CPX
	CPY
	DEC
	DEX
	DEY
	EOR
	INC
	INX
	INY
	JMP
	JSR
	LDA
	LDX
	LDY
	LSR
	NOP
	ORA
	PHA
	PHP
	PLA
	PLP
	ROL
	ROR
	RTI
	RTS
	SBC
	SEC
	SED
	SEI
	STA
	STX
	STY
	TAX
	TAY
	TSX
	TXA
	TXS
	TYA

	// Unofficial
	AHX
	ALR
	ANC
	ARR
	AXS
	DCP
	ISC
	KIL
	LAS
	LAX
	RLA
	RRA
	SAX
	SHX
	SHY
	SLO
	SRE
	TAS
	XAA
)

var instrNames = [...]string{
	"ADC", "AND", "ASL", "BCC", "BCS", "BEQ", "BIT", "BMI", "BNE", "BPL",
	"BRK", "BVC", "BVS", "CLC", "CLD", "CLI", "CLV", "CMP", "CPX", "CPY",
	"DEC", "DEX", "DEY", "EOR", "INC", "INX", "INY", "JMP", "JSR", "LDA",
	"LDX", "LDY", "LSR", "NOP", "ORA", "PHA", "PHP", "PLA", "PLP", "ROL",
	"ROR", "RTI", "RTS", "SBC", "SEC", "SED", "SEI", "STA", "STX", "STY",
	"TAX", "TAY", "TSX", "TXA", "TXS", "TYA",
	"AHX", "ALR", "ANC", "ARR", "AXS", "DCP", "ISC", "KIL", "LAS", "LAX",
	"RLA", "RRA", "SAX", "SHX", "SHY", "SLO", "SRE", "TAS", "XAA",
}

func (i Instr) String() string {
	if int(i) < len(instrNames) {
		return instrNames[i]
	}
	return fmt.Sprintf("Instr(%d)", uint8(i))
}

// Unofficial reports whether an opcode is outside the documented set. The
// extra NOPs and the $EB alias of SBC count as unofficial.
func Unofficial(opcode uint8) bool {
	switch Opcodes[opcode].Instr {
	case NOP:
		return opcode != 0xEA
	case SBC:
		return opcode == 0xEB
	}
	return Opcodes[opcode].Instr >= AHX
}

// execute performs the operation for op at the resolved address. It
// reports whether a branch was taken.
func (cpu *CPU) execute(op Opcode, address uint16, crossed bool) bool {
	switch op.Instr {
	// Loads and stores
	case LDA:
		cpu.A = cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
	case LDX:
		cpu.X = cpu.load(op.Mode, address)
		cpu.setZN(cpu.X)
	case LDY:
		cpu.Y = cpu.load(op.Mode, address)
		cpu.setZN(cpu.Y)
	case STA:
		cpu.store(op.Mode, address, cpu.A)
	case STX:
		cpu.store(op.Mode, address, cpu.X)
	case STY:
		cpu.store(op.Mode, address, cpu.Y)

	// Transfers
	case TAX:
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case TAY:
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case TXA:
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case TYA:
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)
	case TSX:
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)
	case TXS:
		cpu.SP = cpu.X

	// Stack
	case PHA:
		cpu.push(cpu.A)
	case PHP:
		cpu.push(cpu.packStatus() | bFlagMask)
	case PLA:
		cpu.A = cpu.pull()
		cpu.setZN(cpu.A)
	case PLP:
		cpu.unpackStatus(cpu.pull())

	// Arithmetic and logic
	case ADC:
		cpu.adc(cpu.load(op.Mode, address))
	case SBC:
		cpu.adc(^cpu.load(op.Mode, address))
	case AND:
		cpu.A &= cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
	case ORA:
		cpu.A |= cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
	case EOR:
		cpu.A ^= cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
	case CMP:
		cpu.compare(cpu.A, cpu.load(op.Mode, address))
	case CPX:
		cpu.compare(cpu.X, cpu.load(op.Mode, address))
	case CPY:
		cpu.compare(cpu.Y, cpu.load(op.Mode, address))
	case BIT:
		m := cpu.load(op.Mode, address)
		cpu.Z = cpu.A&m == 0
		cpu.V = m&vFlagMask != 0
		cpu.N = m&nFlagMask != 0

	// Increments and decrements
	case INC:
		cpu.modify(op.Mode, address, func(m uint8) uint8 { m++; cpu.setZN(m); return m })
	case DEC:
		cpu.modify(op.Mode, address, func(m uint8) uint8 { m--; cpu.setZN(m); return m })
	case INX:
		cpu.X++
		cpu.setZN(cpu.X)
	case INY:
		cpu.Y++
		cpu.setZN(cpu.Y)
	case DEX:
		cpu.X--
		cpu.setZN(cpu.X)
	case DEY:
		cpu.Y--
		cpu.setZN(cpu.Y)

	// Shifts
	case ASL:
		cpu.modify(op.Mode, address, cpu.asl)
	case LSR:
		cpu.modify(op.Mode, address, cpu.lsr)
	case ROL:
		cpu.modify(op.Mode, address, cpu.rol)
	case ROR:
		cpu.modify(op.Mode, address, cpu.ror)

	// Jumps and calls
	case JMP:
		cpu.PC = address
	case JSR:
		cpu.push16(cpu.PC - 1)
		cpu.PC = address
	case RTS:
		cpu.PC = cpu.pull16() + 1
	case RTI:
		cpu.unpackStatus(cpu.pull())
		cpu.PC = cpu.pull16()
	case BRK:
		cpu.PC++
		cpu.interrupt(irqVector, true)

	// Branches
	case BCC:
		return cpu.branch(!cpu.C, address)
	case BCS:
		return cpu.branch(cpu.C, address)
	case BNE:
		return cpu.branch(!cpu.Z, address)
	case BEQ:
		return cpu.branch(cpu.Z, address)
	case BPL:
		return cpu.branch(!cpu.N, address)
	case BMI:
		return cpu.branch(cpu.N, address)
	case BVC:
		return cpu.branch(!cpu.V, address)
	case BVS:
		return cpu.branch(cpu.V, address)

	// Flags
	case CLC:
		cpu.C = false
	case SEC:
		cpu.C = true
	case CLI:
		cpu.I = false
	case SEI:
		cpu.I = true
	case CLV:
		cpu.V = false
	case CLD:
		cpu.D = false
	case SED:
		cpu.D = true

	case NOP:

	// Unofficial read-modify-write combinations
	case SLO:
		cpu.A |= cpu.modify(op.Mode, address, cpu.asl)
		cpu.setZN(cpu.A)
	case RLA:
		cpu.A &= cpu.modify(op.Mode, address, cpu.rol)
		cpu.setZN(cpu.A)
	case SRE:
		cpu.A ^= cpu.modify(op.Mode, address, cpu.lsr)
		cpu.setZN(cpu.A)
	case RRA:
		cpu.adc(cpu.modify(op.Mode, address, cpu.ror))
	case DCP:
		cpu.compare(cpu.A, cpu.modify(op.Mode, address, func(m uint8) uint8 { return m - 1 }))
	case ISC:
		cpu.adc(^cpu.modify(op.Mode, address, func(m uint8) uint8 { return m + 1 }))

	// Unofficial loads and stores
	case LAX:
		cpu.A = cpu.load(op.Mode, address)
		cpu.X = cpu.A
		cpu.setZN(cpu.A)
	case SAX:
		cpu.store(op.Mode, address, cpu.A&cpu.X)
	case LAS:
		cpu.SP &= cpu.load(op.Mode, address)
		cpu.A, cpu.X = cpu.SP, cpu.SP
		cpu.setZN(cpu.A)

	// Unofficial immediates
	case ANC:
		cpu.A &= cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
		cpu.C = cpu.N
	case ALR:
		cpu.A &= cpu.load(op.Mode, address)
		cpu.A = cpu.lsr(cpu.A)
	case ARR:
		cpu.A &= cpu.load(op.Mode, address)
		carry := uint8(0)
		if cpu.C {
			carry = 0x80
		}
		cpu.A = cpu.A>>1 | carry
		cpu.setZN(cpu.A)
		cpu.C = cpu.A&0x40 != 0
		cpu.V = (cpu.A>>6^cpu.A>>5)&1 != 0
	case XAA:
		cpu.A = cpu.X & cpu.load(op.Mode, address)
		cpu.setZN(cpu.A)
	case AXS:
		m := cpu.load(op.Mode, address)
		t := cpu.A & cpu.X
		cpu.C = t >= m
		cpu.X = t - m
		cpu.setZN(cpu.X)

	// Unofficial stores that AND with the high byte of the base address
	case AHX:
		hi := highPlusOne(address, cpu.Y)
		cpu.store(op.Mode, address, cpu.A&cpu.X&hi)
	case SHX:
		cpu.storeHigh(op.Mode, address, cpu.Y, cpu.X, crossed)
	case SHY:
		cpu.storeHigh(op.Mode, address, cpu.X, cpu.Y, crossed)
	case TAS:
		cpu.SP = cpu.A & cpu.X
		cpu.store(op.Mode, address, cpu.SP&highPlusOne(address, cpu.Y))

	case KIL:
		cpu.halted = ErrHalted

	default:
		panic(fmt.Sprintf("cpu: no implementation for %v", op.Instr))
	}
	return false
}

// load fetches the operand. Implied instructions have none.
func (cpu *CPU) load(mode AddressingMode, address uint16) uint8 {
	switch mode {
	case Implied, Relative:
		panic(fmt.Sprintf("cpu: operand read in addressing mode %d", mode))
	case Accumulator:
		return cpu.A
	}
	return cpu.memory.Read(address)
}

func (cpu *CPU) store(mode AddressingMode, address uint16, value uint8) {
	switch mode {
	case Implied, Accumulator, Immediate, Relative:
		panic(fmt.Sprintf("cpu: operand write in addressing mode %d", mode))
	}
	cpu.memory.Write(address, value)
}

// modify applies fn to the operand in place, in memory or the accumulator,
// and returns the new value.
func (cpu *CPU) modify(mode AddressingMode, address uint16, fn func(uint8) uint8) uint8 {
	if mode == Accumulator {
		cpu.A = fn(cpu.A)
		return cpu.A
	}
	v := fn(cpu.load(mode, address))
	cpu.store(mode, address, v)
	return v
}

func (cpu *CPU) adc(m uint8) {
	carry := uint16(0)
	if cpu.C {
		carry = 1
	}
	sum := uint16(cpu.A) + uint16(m) + carry
	result := uint8(sum)
	cpu.V = (cpu.A^result)&(m^result)&0x80 != 0
	cpu.C = sum > 0xFF
	cpu.A = result
	cpu.setZN(result)
}

func (cpu *CPU) compare(reg, m uint8) {
	cpu.C = reg >= m
	cpu.setZN(reg - m)
}

func (cpu *CPU) asl(m uint8) uint8 {
	cpu.C = m&0x80 != 0
	m <<= 1
	cpu.setZN(m)
	return m
}

func (cpu *CPU) lsr(m uint8) uint8 {
	cpu.C = m&0x01 != 0
	m >>= 1
	cpu.setZN(m)
	return m
}

func (cpu *CPU) rol(m uint8) uint8 {
	carry := uint8(0)
	if cpu.C {
		carry = 1
	}
	cpu.C = m&0x80 != 0
	m = m<<1 | carry
	cpu.setZN(m)
	return m
}

func (cpu *CPU) ror(m uint8) uint8 {
	carry := uint8(0)
	if cpu.C {
		carry = 0x80
	}
	cpu.C = m&0x01 != 0
	m = m>>1 | carry
	cpu.setZN(m)
	return m
}

func (cpu *CPU) branch(cond bool, target uint16) bool {
	if cond {
		cpu.PC = target
	}
	return cond
}

// highPlusOne returns the high byte of the un-indexed base address plus one.
func highPlusOne(address uint16, index uint8) uint8 {
	return uint8((address-uint16(index))>>8) + 1
}

// storeHigh implements SHX/SHY: the stored value is reg & (H+1), and on a
// page crossing that value also replaces the high byte of the address.
func (cpu *CPU) storeHigh(mode AddressingMode, address uint16, index, reg uint8, crossed bool) {
	value := reg & highPlusOne(address, index)
	if crossed {
		address = uint16(value)<<8 | address&0x00FF
	}
	cpu.store(mode, address, value)
}
