package cpu

import "testing"

// runImmediate executes a single immediate-mode opcode against m.
func runImmediate(h *CPUTestHelper, opcode, m uint8) {
	h.Memory.SetBytes(0x0300, m)
	h.CPU.execute(Opcodes[opcode], 0x0300, false)
}

func TestADC_Exhaustive(t *testing.T) {
	h := NewCPUTestHelper()
	for a := 0; a < 256; a++ {
		for m := 0; m < 256; m++ {
			for c := 0; c < 2; c++ {
				h.CPU.A = uint8(a)
				h.CPU.C = c == 1
				runImmediate(h, 0x69, uint8(m))

				sum := a + m + c
				signed := int(int8(uint8(a))) + int(int8(uint8(m))) + c
				wantV := signed < -128 || signed > 127
				if h.CPU.A != uint8(sum) || h.CPU.C != (sum > 0xFF) || h.CPU.V != wantV ||
					h.CPU.Z != (uint8(sum) == 0) || h.CPU.N != (sum&0x80 != 0) {
					t.Fatalf("ADC A=%02X M=%02X C=%d: got A=%02X P=%02X", a, m, c, h.CPU.A, h.CPU.Status())
				}
			}
		}
	}
}

func TestSBC_Exhaustive(t *testing.T) {
	h := NewCPUTestHelper()
	for _, opcode := range []uint8{0xE9, 0xEB} {
		for a := 0; a < 256; a++ {
			for m := 0; m < 256; m++ {
				for c := 0; c < 2; c++ {
					h.CPU.A = uint8(a)
					h.CPU.C = c == 1
					runImmediate(h, opcode, uint8(m))

					diff := a - m - (1 - c)
					signed := int(int8(uint8(a))) - int(int8(uint8(m))) - (1 - c)
					wantV := signed < -128 || signed > 127
					if h.CPU.A != uint8(diff) || h.CPU.C != (diff >= 0) || h.CPU.V != wantV ||
						h.CPU.Z != (uint8(diff) == 0) || h.CPU.N != (uint8(diff)&0x80 != 0) {
						t.Fatalf("SBC($%02X) A=%02X M=%02X C=%d: got A=%02X P=%02X", opcode, a, m, c, h.CPU.A, h.CPU.Status())
					}
				}
			}
		}
	}
}

func TestCompare_Exhaustive(t *testing.T) {
	h := NewCPUTestHelper()
	tests := []struct {
		name   string
		opcode uint8
		set    func(uint8)
	}{
		{"CMP", 0xC9, func(v uint8) { h.CPU.A = v }},
		{"CPX", 0xE0, func(v uint8) { h.CPU.X = v }},
		{"CPY", 0xC0, func(v uint8) { h.CPU.Y = v }},
	}
	for _, tt := range tests {
		for r := 0; r < 256; r++ {
			for m := 0; m < 256; m++ {
				h.CPU.A, h.CPU.X, h.CPU.Y = 0x11, 0x22, 0x33
				tt.set(uint8(r))
				h.CPU.V = true
				before := [3]uint8{h.CPU.A, h.CPU.X, h.CPU.Y}
				runImmediate(h, tt.opcode, uint8(m))

				diff := uint8(r - m)
				if h.CPU.C != (r >= m) || h.CPU.Z != (r == m) || h.CPU.N != (diff&0x80 != 0) {
					t.Fatalf("%s R=%02X M=%02X: got P=%02X", tt.name, r, m, h.CPU.Status())
				}
				if !h.CPU.V {
					t.Fatalf("%s must not touch V", tt.name)
				}
				if [3]uint8{h.CPU.A, h.CPU.X, h.CPU.Y} != before {
					t.Fatalf("%s must not store a result", tt.name)
				}
			}
		}
	}
}

func TestShiftFlags(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint8
		a      uint8
		c      bool
		wantA  uint8
		wantC  bool
	}{
		{"ASL carry out", 0x0A, 0x81, false, 0x02, true},
		{"LSR carry out", 0x4A, 0x01, false, 0x00, true},
		{"ROL carry in", 0x2A, 0x40, true, 0x81, false},
		{"ROR carry in", 0x6A, 0x02, true, 0x81, false},
		{"ROR carry out", 0x6A, 0x01, false, 0x00, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCPUTestHelper()
			h.CPU.A = tt.a
			h.CPU.C = tt.c
			h.CPU.execute(Opcodes[tt.opcode], 0, false)
			if h.CPU.A != tt.wantA || h.CPU.C != tt.wantC {
				t.Errorf("Expected A=%02X C=%v, got A=%02X C=%v", tt.wantA, tt.wantC, h.CPU.A, h.CPU.C)
			}
			if h.CPU.Z != (tt.wantA == 0) || h.CPU.N != (tt.wantA&0x80 != 0) {
				t.Errorf("Unexpected Z/N for %02X", tt.wantA)
			}
		})
	}
}

func TestBITFlags(t *testing.T) {
	h := NewCPUTestHelper()
	h.CPU.A = 0x01
	h.Memory.SetBytes(0x0010, 0xC0)
	h.CPU.execute(Opcodes[0x24], 0x0010, false)

	if !h.CPU.Z || !h.CPU.V || !h.CPU.N {
		t.Errorf("Expected Z, V and N from BIT, got P=%02X", h.CPU.Status())
	}
	if h.CPU.A != 0x01 {
		t.Error("BIT must not modify A")
	}
}

func TestDecimalFlagHasNoEffect(t *testing.T) {
	h := NewCPUTestHelper()
	h.CPU.D = true
	h.CPU.A = 0x09
	runImmediate(h, 0x69, 0x01)
	if h.CPU.A != 0x0A {
		t.Errorf("Expected binary result 0x0A, got 0x%02X", h.CPU.A)
	}
	if !h.CPU.D {
		t.Error("Expected D to be preserved")
	}
}
