// Package num holds the fixed-width arithmetic helpers shared by the CPU, PPU
// and APU.
package num

import "fmt"

// Join16 builds a 16-bit word from its low and high bytes.
func Join16(lo, hi uint8) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// Lo returns the low byte of w.
func Lo(w uint16) uint8 { return uint8(w) }

// Hi returns the high byte of w.
func Hi(w uint16) uint8 { return uint8(w >> 8) }

// Signed reinterprets b as a two's complement value.
func Signed(b uint8) int8 { return int8(b) }

// Offset adds a signed 8-bit displacement to a 16-bit address, wrapping.
func Offset(addr uint16, rel uint8) uint16 {
	return uint16(int32(addr) + int32(int8(rel)))
}

// PageCrossed reports whether a and b lie on different 256-byte pages.
func PageCrossed(a, b uint16) bool {
	return a&0xFF00 != b&0xFF00
}

// Bit returns bit n of x as 0 or 1.
func Bit(x uint8, n uint) uint8 {
	return x >> n & 1
}

// HasBit reports whether bit n of x is set.
func HasBit(x uint8, n uint) bool {
	return x>>n&1 == 1
}

// Reverse8 mirrors the bit order of b.
func Reverse8(b uint8) uint8 {
	b = b&0xF0>>4 | b&0x0F<<4
	b = b&0xCC>>2 | b&0x33<<2
	b = b&0xAA>>1 | b&0x55<<1
	return b
}

// AssertInRange panics when x is outside [lo, hi]. It guards internal
// invariants; a failure is a bug in the emulator, not in the program.
func AssertInRange(x, lo, hi int) {
	if x < lo || x > hi {
		panic(fmt.Sprintf("num: %d out of range [%d, %d]", x, lo, hi))
	}
}
