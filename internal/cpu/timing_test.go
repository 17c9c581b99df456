package cpu

import "testing"

func TestInstructionCycles(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *CPUTestHelper)
		program []uint8
		cycles  int
	}{
		{"LDA imm", nil, []uint8{0xA9, 0x01}, 2},
		{"LDA zp", nil, []uint8{0xA5, 0x10}, 3},
		{"LDA abs,X same page", func(h *CPUTestHelper) { h.CPU.X = 0x01 }, []uint8{0xBD, 0x00, 0x02}, 4},
		{"LDA abs,X page cross", func(h *CPUTestHelper) { h.CPU.X = 0x01 }, []uint8{0xBD, 0xFF, 0x02}, 5},
		{"LDA abs,Y page cross", func(h *CPUTestHelper) { h.CPU.Y = 0x10 }, []uint8{0xB9, 0xF8, 0x02}, 5},
		{"LDA (zp),Y page cross", func(h *CPUTestHelper) {
			h.CPU.Y = 0x01
			h.Memory.SetBytes(0x0020, 0xFF, 0x02)
		}, []uint8{0xB1, 0x20}, 6},
		{"STA abs,X page cross", func(h *CPUTestHelper) { h.CPU.X = 0x01 }, []uint8{0x9D, 0xFF, 0x02}, 5},
		{"STA (zp),Y", func(h *CPUTestHelper) { h.Memory.SetBytes(0x0020, 0x00, 0x03) }, []uint8{0x91, 0x20}, 6},
		{"INC abs,X", nil, []uint8{0xFE, 0x00, 0x03}, 7},
		{"NOP abs,X page cross", func(h *CPUTestHelper) { h.CPU.X = 0xFF }, []uint8{0x1C, 0x01, 0x02}, 5},
		{"LAX abs,Y page cross", func(h *CPUTestHelper) { h.CPU.Y = 0xFF }, []uint8{0xBF, 0x01, 0x02}, 5},
		{"DCP abs,Y page cross", func(h *CPUTestHelper) { h.CPU.Y = 0xFF }, []uint8{0xDB, 0x01, 0x02}, 7},
		{"BNE not taken", func(h *CPUTestHelper) { h.CPU.Z = true }, []uint8{0xD0, 0x10}, 2},
		{"BNE taken", func(h *CPUTestHelper) { h.CPU.Z = false }, []uint8{0xD0, 0x10}, 3},
		{"BNE taken page cross", func(h *CPUTestHelper) { h.CPU.Z = false }, []uint8{0xD0, 0x80}, 4},
		{"JSR", nil, []uint8{0x20, 0x00, 0x90}, 6},
		{"JMP ind", nil, []uint8{0x6C, 0x00, 0x03}, 5},
		{"BRK", nil, []uint8{0x00}, 7},
		{"PHA", nil, []uint8{0x48}, 3},
		{"PLA", nil, []uint8{0x68}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCPUTestHelper()
			h.SetupResetVector(0x8000)
			h.LoadProgram(0x8000, tt.program...)
			if tt.setup != nil {
				tt.setup(h)
			}
			cycles, err := h.CPU.Step()
			if err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			if cycles != tt.cycles {
				t.Errorf("Expected %d cycles, got %d", tt.cycles, cycles)
			}
		})
	}
}

func TestTickAdvancesOneCycle(t *testing.T) {
	h := NewCPUTestHelper()
	h.SetupResetVector(0x8000)
	h.LoadProgram(0x8000, 0xEE, 0x00, 0x03, 0xEA) // INC $0300; NOP

	start := h.CPU.Cycles()
	for i := 0; i < 6; i++ {
		if err := h.CPU.Tick(); err != nil {
			t.Fatal(err)
		}
		if h.CPU.Cycles() != start+uint64(i)+1 {
			t.Fatalf("Tick %d: expected cycle %d, got %d", i, start+uint64(i)+1, h.CPU.Cycles())
		}
	}
	// INC took all six cycles; the next tick fetches the NOP
	if h.CPU.Stall() != 0 || h.CPU.PC != 0x8003 {
		t.Errorf("Expected instruction boundary at $8003, got PC=$%04X stall=%d", h.CPU.PC, h.CPU.Stall())
	}
}

func TestAddStall(t *testing.T) {
	h := NewCPUTestHelper()
	h.SetupResetVector(0x8000)
	h.LoadProgram(0x8000, 0xEA)

	h.CPU.AddStall(513)
	cycles, err := h.CPU.Step()
	if err != nil {
		t.Fatal(err)
	}
	if cycles != 515 {
		t.Errorf("Expected 513 stall + 2 NOP cycles, got %d", cycles)
	}
}
