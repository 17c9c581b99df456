package cpu

import (
	"testing"
)

func TestAddressingWraps(t *testing.T) {
	t.Run("zero page X", func(t *testing.T) {
		h := NewCPUTestHelper()
		h.SetupResetVector(0x8000)
		h.CPU.X = 0x10
		h.Memory.SetBytes(0x000F, 0x77)
		h.LoadProgram(0x8000, 0xB5, 0xFF) // LDA $FF,X
		h.Run(t, 1)
		if h.CPU.A != 0x77 {
			t.Errorf("Expected zero page wrap to $0F, got A=$%02X", h.CPU.A)
		}
	})

	t.Run("(zp,X) pointer wraps", func(t *testing.T) {
		h := NewCPUTestHelper()
		h.SetupResetVector(0x8000)
		h.CPU.X = 0x01
		h.Memory.SetBytes(0x00FF, 0x34)
		h.Memory.SetBytes(0x0000, 0x12)
		h.Memory.SetBytes(0x1234, 0x99)
		h.LoadProgram(0x8000, 0xA1, 0xFE) // LDA ($FE,X)
		h.Run(t, 1)
		if h.CPU.A != 0x99 {
			t.Errorf("Expected pointer $1234, got A=$%02X", h.CPU.A)
		}
	})

	t.Run("(zp),Y pointer wraps", func(t *testing.T) {
		h := NewCPUTestHelper()
		h.SetupResetVector(0x8000)
		h.CPU.Y = 0x02
		h.Memory.SetBytes(0x00FF, 0x00)
		h.Memory.SetBytes(0x0000, 0x04)
		h.Memory.SetBytes(0x0402, 0x55)
		h.LoadProgram(0x8000, 0xB1, 0xFF) // LDA ($FF),Y
		h.Run(t, 1)
		if h.CPU.A != 0x55 {
			t.Errorf("Expected $0400+Y, got A=$%02X", h.CPU.A)
		}
	})

	t.Run("JMP indirect page bug", func(t *testing.T) {
		h := NewCPUTestHelper()
		h.SetupResetVector(0x8000)
		h.Memory.SetBytes(0x02FF, 0x00)
		h.Memory.SetBytes(0x0200, 0x90)
		h.Memory.SetBytes(0x0300, 0xA0)
		h.LoadProgram(0x8000, 0x6C, 0xFF, 0x02) // JMP ($02FF)
		h.Run(t, 1)
		if h.CPU.PC != 0x9000 {
			t.Errorf("Expected high byte from $0200, got PC=$%04X", h.CPU.PC)
		}
	})
}

func TestJSRAndRTS(t *testing.T) {
	h := NewCPUTestHelper()
	h.SetupResetVector(0x8000)
	h.LoadProgram(0x8000, 0x20, 0x00, 0x90) // JSR $9000
	h.LoadProgram(0x9000, 0x60)             // RTS
	h.Run(t, 1)

	h.AssertMemory(t, "JSR PCH", 0x01FD, 0x80)
	h.AssertMemory(t, "JSR PCL", 0x01FC, 0x02)
	h.AssertRegisters(t, "JSR", 0, 0, 0, 0xFB, 0x9000)

	h.Run(t, 1)
	h.AssertRegisters(t, "RTS", 0, 0, 0, 0xFD, 0x8003)
}

func TestUnofficialOpcodes(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *CPUTestHelper)
		program []uint8
		check   func(t *testing.T, h *CPUTestHelper)
	}{
		{
			name:    "LAX zp",
			setup:   func(h *CPUTestHelper) { h.Memory.SetBytes(0x10, 0x8F) },
			program: []uint8{0xA7, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.A != 0x8F || h.CPU.X != 0x8F || !h.CPU.N {
					t.Errorf("Got A=%02X X=%02X N=%v", h.CPU.A, h.CPU.X, h.CPU.N)
				}
			},
		},
		{
			name:    "SAX zp",
			setup:   func(h *CPUTestHelper) { h.CPU.A, h.CPU.X = 0xF0, 0x3C },
			program: []uint8{0x87, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "SAX", 0x10, 0x30)
			},
		},
		{
			name: "DCP zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0x40
				h.Memory.SetBytes(0x10, 0x41)
			},
			program: []uint8{0xC7, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "DCP", 0x10, 0x40)
				if !h.CPU.Z || !h.CPU.C {
					t.Errorf("Expected Z and C from compare, P=%02X", h.CPU.Status())
				}
			},
		},
		{
			name: "ISC zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0x10
				h.CPU.C = true
				h.Memory.SetBytes(0x10, 0x04)
			},
			program: []uint8{0xE7, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "ISC", 0x10, 0x05)
				if h.CPU.A != 0x0B || !h.CPU.C {
					t.Errorf("Expected A=0B C=1, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name: "SLO zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0x01
				h.Memory.SetBytes(0x10, 0x81)
			},
			program: []uint8{0x07, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "SLO", 0x10, 0x02)
				if h.CPU.A != 0x03 || !h.CPU.C {
					t.Errorf("Expected A=03 C=1, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name: "RLA zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0xFF
				h.CPU.C = true
				h.Memory.SetBytes(0x10, 0x80)
			},
			program: []uint8{0x27, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "RLA", 0x10, 0x01)
				if h.CPU.A != 0x01 || !h.CPU.C {
					t.Errorf("Expected A=01 C=1, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name: "SRE zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0x0F
				h.Memory.SetBytes(0x10, 0x03)
			},
			program: []uint8{0x47, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "SRE", 0x10, 0x01)
				if h.CPU.A != 0x0E || !h.CPU.C {
					t.Errorf("Expected A=0E C=1, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name: "RRA zp",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0x10
				h.Memory.SetBytes(0x10, 0x03)
			},
			program: []uint8{0x67, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				// ROR: $03 -> $01 with C=1, then ADC: $10 + $01 + 1
				h.AssertMemory(t, "RRA", 0x10, 0x01)
				if h.CPU.A != 0x12 || h.CPU.C {
					t.Errorf("Expected A=12 C=0, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name:    "ANC",
			setup:   func(h *CPUTestHelper) { h.CPU.A = 0xF0 },
			program: []uint8{0x0B, 0x80},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.A != 0x80 || !h.CPU.C || !h.CPU.N {
					t.Errorf("Expected A=80 C=1 N=1, got A=%02X P=%02X", h.CPU.A, h.CPU.Status())
				}
			},
		},
		{
			name:    "ALR",
			setup:   func(h *CPUTestHelper) { h.CPU.A = 0xFF },
			program: []uint8{0x4B, 0x03},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.A != 0x01 || !h.CPU.C {
					t.Errorf("Expected A=01 C=1, got A=%02X C=%v", h.CPU.A, h.CPU.C)
				}
			},
		},
		{
			name: "ARR",
			setup: func(h *CPUTestHelper) {
				h.CPU.A = 0xFF
				h.CPU.C = true
			},
			program: []uint8{0x6B, 0xC0},
			check: func(t *testing.T, h *CPUTestHelper) {
				// ($FF & $C0) >> 1 | $80 = $E0: bit 6 set, bit 5 set
				if h.CPU.A != 0xE0 || !h.CPU.C || h.CPU.V || !h.CPU.N {
					t.Errorf("Expected A=E0 C=1 V=0 N=1, got A=%02X P=%02X", h.CPU.A, h.CPU.Status())
				}
			},
		},
		{
			name:    "XAA",
			setup:   func(h *CPUTestHelper) { h.CPU.A, h.CPU.X = 0xFF, 0x0F },
			program: []uint8{0x8B, 0x3C},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.A != 0x0C {
					t.Errorf("Expected A=0C, got %02X", h.CPU.A)
				}
			},
		},
		{
			name:    "AXS",
			setup:   func(h *CPUTestHelper) { h.CPU.A, h.CPU.X = 0xF0, 0x3F },
			program: []uint8{0xCB, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.X != 0x20 || !h.CPU.C {
					t.Errorf("Expected X=20 C=1, got X=%02X C=%v", h.CPU.X, h.CPU.C)
				}
			},
		},
		{
			name: "LAS",
			setup: func(h *CPUTestHelper) {
				h.CPU.SP = 0xF3
				h.Memory.SetBytes(0x0300, 0x3F)
			},
			program: []uint8{0xBB, 0x00, 0x03},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.A != 0x33 || h.CPU.X != 0x33 || h.CPU.SP != 0x33 {
					t.Errorf("Expected A=X=S=33, got %02X %02X %02X", h.CPU.A, h.CPU.X, h.CPU.SP)
				}
			},
		},
		{
			name:    "SHY no page cross",
			setup:   func(h *CPUTestHelper) { h.CPU.X, h.CPU.Y = 0x01, 0xFF },
			program: []uint8{0x9C, 0x00, 0x02},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "SHY", 0x0201, 0x03)
			},
		},
		{
			name:    "SHX page cross",
			setup:   func(h *CPUTestHelper) { h.CPU.X, h.CPU.Y = 0x02, 0x01 },
			program: []uint8{0x9E, 0xFF, 0x04},
			check: func(t *testing.T, h *CPUTestHelper) {
				// base $04FF + 1 = $0500; value X & ($04+1) = $00 becomes the high byte
				h.AssertMemory(t, "SHX", 0x0000, 0x00)
				if h.Memory.GetWriteCount(0x0000) != 1 {
					t.Error("Expected the write to land on $0000")
				}
			},
		},
		{
			name:    "AHX abs,Y",
			setup:   func(h *CPUTestHelper) { h.CPU.A, h.CPU.X, h.CPU.Y = 0xFF, 0xFF, 0x00 },
			program: []uint8{0x9F, 0x00, 0x06},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertMemory(t, "AHX", 0x0600, 0x07)
			},
		},
		{
			name:    "TAS",
			setup:   func(h *CPUTestHelper) { h.CPU.A, h.CPU.X = 0xF3, 0x3F },
			program: []uint8{0x9B, 0x00, 0x06},
			check: func(t *testing.T, h *CPUTestHelper) {
				if h.CPU.SP != 0x33 {
					t.Errorf("Expected S=33, got %02X", h.CPU.SP)
				}
				h.AssertMemory(t, "TAS", 0x0600, 0x03)
			},
		},
		{
			name:    "NOP zp,X reads nothing back",
			program: []uint8{0x14, 0x10},
			check: func(t *testing.T, h *CPUTestHelper) {
				h.AssertRegisters(t, "NOP", 0, 0, 0, 0xFD, 0x8002)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCPUTestHelper()
			h.SetupResetVector(0x8000)
			h.LoadProgram(0x8000, tt.program...)
			if tt.setup != nil {
				tt.setup(h)
			}
			h.Run(t, 1)
			tt.check(t, h)
		})
	}
}

func TestAddressingModePanic(t *testing.T) {
	h := NewCPUTestHelper()
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for an operand read in implied mode")
		}
	}()
	h.CPU.load(Implied, 0)
}
