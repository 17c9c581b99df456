package cpu

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"nescore/internal/cartridge"
)

func TestTraceString(t *testing.T) {
	h := NewCPUTestHelper()
	h.LoadProgram(0xC000,
		0x4C, 0x05, 0xC0, // JMP $C005
		0xEA, 0xEA,
		0x04, 0xA9, // *NOP $A9
		0xB1, 0x20, // LDA ($20),Y
		0xD0, 0xFE, // BNE $C009
	)

	var lines []string
	h.CPU.SetTraceCallback(func(tr Trace) { lines = append(lines, tr.String()) })
	h.SetupResetVector(0xC000)
	h.Run(t, 4)

	pad := func(s string) string { return s + strings.Repeat(" ", 31-len(s)) }
	want := []string{
		"C000  4C 05 C0  " + pad("JMP $C005") + " A:00 X:00 Y:00 P:24 SP:FD CYC:7",
		"C005  04 A9    *" + pad("NOP $A9") + " A:00 X:00 Y:00 P:24 SP:FD CYC:10",
		"C007  B1 20     " + pad("LDA ($20),Y") + " A:00 X:00 Y:00 P:24 SP:FD CYC:13",
		"C009  D0 FE     " + pad("BNE $C009") + " A:00 X:00 Y:00 P:26 SP:FD CYC:18",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d trace lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d:\nexpected %q\n     got %q", i, want[i], lines[i])
		}
	}
}

// TestTraceProgram checks a hand-traced program that walks the addressing
// modes, page-cross penalties, branches, the stack and the flag paths of
// the arithmetic instructions.
func TestTraceProgram(t *testing.T) {
	h := NewCPUTestHelper()
	h.LoadProgram(0xC000,
		0xA2, 0x05,       // LDX #$05
		0xA0, 0x10,       // LDY #$10
		0xA9, 0x80,       // LDA #$80
		0x85, 0x10,       // STA $10
		0x95, 0x20,       // STA $20,X
		0x9D, 0xFF, 0x02, // STA $02FF,X
		0xB5, 0x20,       // LDA $20,X
		0x0A,             // ASL A
		0x69, 0x7F,       // ADC #$7F
		0xE9, 0x01,       // SBC #$01
		0xC9, 0x7E,       // CMP #$7E
		0xD0, 0x02,       // BNE $C01A
		0xF0, 0x02,       // BEQ $C01C
		0xEA, 0xEA,       // skipped
		0x24, 0x10,       // BIT $10
		0x08,             // PHP
		0x48,             // PHA
		0xA9, 0x00,       // LDA #$00
		0x68,             // PLA
		0x28,             // PLP
		0x20, 0x40, 0xC0, // JSR $C040
		0x6C, 0x50, 0xC0, // JMP ($C050)
	)
	h.LoadProgram(0xC040,
		0xA1, 0x2B,       // LDA ($2B,X)
		0xB1, 0x30,       // LDA ($30),Y
		0xBD, 0xFB, 0x02, // LDA $02FB,X
		0x60,             // RTS
	)
	h.LoadProgram(0xC050, 0x60, 0xC0)
	h.LoadProgram(0xC060,
		0x38,       // SEC
		0x6A,       // ROR A
		0xAA,       // TAX
		0x88,       // DEY
		0x10, 0xFE, // BPL $C064
	)
	h.LoadProgram(0x0030, 0xF0, 0x02)
	h.LoadProgram(0x02F0, 0x99)
	h.LoadProgram(0x0300, 0x42)

	var lines []string
	h.CPU.SetTraceCallback(func(tr Trace) { lines = append(lines, tr.String()) })
	h.SetupResetVector(0xC000)

	pad := func(s string) string { return s + strings.Repeat(" ", 31-len(s)) }
	want := []string{
		"C000  A2 05     " + pad("LDX #$05") + " A:00 X:00 Y:00 P:24 SP:FD CYC:7",
		"C002  A0 10     " + pad("LDY #$10") + " A:00 X:05 Y:00 P:24 SP:FD CYC:9",
		"C004  A9 80     " + pad("LDA #$80") + " A:00 X:05 Y:10 P:24 SP:FD CYC:11",
		"C006  85 10     " + pad("STA $10") + " A:80 X:05 Y:10 P:A4 SP:FD CYC:13",
		"C008  95 20     " + pad("STA $20,X") + " A:80 X:05 Y:10 P:A4 SP:FD CYC:16",
		"C00A  9D FF 02  " + pad("STA $02FF,X") + " A:80 X:05 Y:10 P:A4 SP:FD CYC:20",
		"C00D  B5 20     " + pad("LDA $20,X") + " A:80 X:05 Y:10 P:A4 SP:FD CYC:25",
		"C00F  0A        " + pad("ASL A") + " A:80 X:05 Y:10 P:A4 SP:FD CYC:29",
		"C010  69 7F     " + pad("ADC #$7F") + " A:00 X:05 Y:10 P:27 SP:FD CYC:31",
		"C012  E9 01     " + pad("SBC #$01") + " A:80 X:05 Y:10 P:E4 SP:FD CYC:33",
		"C014  C9 7E     " + pad("CMP #$7E") + " A:7E X:05 Y:10 P:65 SP:FD CYC:35",
		"C016  D0 02     " + pad("BNE $C01A") + " A:7E X:05 Y:10 P:67 SP:FD CYC:37",
		"C018  F0 02     " + pad("BEQ $C01C") + " A:7E X:05 Y:10 P:67 SP:FD CYC:39",
		"C01C  24 10     " + pad("BIT $10") + " A:7E X:05 Y:10 P:67 SP:FD CYC:42",
		"C01E  08        " + pad("PHP") + " A:7E X:05 Y:10 P:A7 SP:FD CYC:45",
		"C01F  48        " + pad("PHA") + " A:7E X:05 Y:10 P:A7 SP:FC CYC:48",
		"C020  A9 00     " + pad("LDA #$00") + " A:7E X:05 Y:10 P:A7 SP:FB CYC:51",
		"C022  68        " + pad("PLA") + " A:00 X:05 Y:10 P:27 SP:FB CYC:53",
		"C023  28        " + pad("PLP") + " A:7E X:05 Y:10 P:25 SP:FC CYC:57",
		"C024  20 40 C0  " + pad("JSR $C040") + " A:7E X:05 Y:10 P:A7 SP:FD CYC:61",
		"C040  A1 2B     " + pad("LDA ($2B,X)") + " A:7E X:05 Y:10 P:A7 SP:FB CYC:67",
		"C042  B1 30     " + pad("LDA ($30),Y") + " A:99 X:05 Y:10 P:A5 SP:FB CYC:73",
		"C044  BD FB 02  " + pad("LDA $02FB,X") + " A:42 X:05 Y:10 P:25 SP:FB CYC:79",
		"C047  60        " + pad("RTS") + " A:42 X:05 Y:10 P:25 SP:FB CYC:84",
		"C027  6C 50 C0  " + pad("JMP ($C050)") + " A:42 X:05 Y:10 P:25 SP:FD CYC:90",
		"C060  38        " + pad("SEC") + " A:42 X:05 Y:10 P:25 SP:FD CYC:95",
		"C061  6A        " + pad("ROR A") + " A:42 X:05 Y:10 P:25 SP:FD CYC:97",
		"C062  AA        " + pad("TAX") + " A:A1 X:05 Y:10 P:A4 SP:FD CYC:99",
		"C063  88        " + pad("DEY") + " A:A1 X:A1 Y:10 P:A4 SP:FD CYC:101",
		"C064  10 FE     " + pad("BPL $C064") + " A:A1 X:A1 Y:0F P:24 SP:FD CYC:103",
		"C064  10 FE     " + pad("BPL $C064") + " A:A1 X:A1 Y:0F P:24 SP:FD CYC:106",
	}
	h.Run(t, len(want))

	if len(lines) != len(want) {
		t.Fatalf("Expected %d trace lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d:\nexpected %q\n     got %q", i, want[i], lines[i])
		}
	}
	h.AssertMemory(t, "STA $20,X", 0x0025, 0x80)
	h.AssertMemory(t, "STA $02FF,X", 0x0304, 0x80)
	h.AssertMemory(t, "JSR return high", 0x01FD, 0xC0)
	h.AssertMemory(t, "JSR return low", 0x01FC, 0x26)
}

func TestTraceWriter(t *testing.T) {
	h := NewCPUTestHelper()
	var buf bytes.Buffer
	h.CPU.SetTraceWriter(&buf)
	h.LoadProgram(0x8000, 0x0A) // ASL A
	h.SetupResetVector(0x8000)
	h.Run(t, 1)

	if !strings.HasPrefix(buf.String(), "8000  0A        ASL A") {
		t.Errorf("Unexpected trace output %q", buf.String())
	}

	h.CPU.SetTraceWriter(nil)
	buf.Reset()
	h.Run(t, 1)
	if buf.Len() != 0 {
		t.Error("Expected tracing to stop")
	}
}

// nestestMemory is a flat 32KB RAM below $8000 with the cartridge above.
type nestestMemory struct {
	ram    [0x8000]uint8
	mapper cartridge.Mapper
}

func (m *nestestMemory) Read(address uint16) uint8 {
	if address < 0x8000 {
		return m.ram[address]
	}
	return m.mapper.ReadPRG(address)
}

func (m *nestestMemory) Write(address uint16, value uint8) {
	if address < 0x8000 {
		m.ram[address] = value
	}
}

type logEntry struct {
	pc            uint16
	a, x, y, p, s uint8
	cyc           uint64
}

func parseField(line, key string, bits int) uint64 {
	i := strings.Index(line, key)
	if i < 0 {
		return 0
	}
	rest := line[i+len(key):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	base := 16
	if key == "CYC:" {
		base = 10
	}
	v, _ := strconv.ParseUint(rest, base, bits)
	return v
}

// TestNestest compares every instruction against the published nestest
// log. It needs testdata/nestest.nes and testdata/nestest.log.
func TestNestest(t *testing.T) {
	romPath := filepath.Join("testdata", "nestest.nes")
	logPath := filepath.Join("testdata", "nestest.log")
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		t.Skipf("nestest ROM not available: %v", err)
	}
	f, err := os.Open(logPath)
	if err != nil {
		t.Skipf("nestest log not available: %v", err)
	}
	defer f.Close()

	var expected []logEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		pc, err := strconv.ParseUint(line[:4], 16, 16)
		if err != nil {
			continue
		}
		expected = append(expected, logEntry{
			pc:  uint16(pc),
			a:   uint8(parseField(line, "A:", 8)),
			x:   uint8(parseField(line, "X:", 8)),
			y:   uint8(parseField(line, "Y:", 8)),
			p:   uint8(parseField(line, "P:", 8)),
			s:   uint8(parseField(line, "SP:", 8)),
			cyc: parseField(line, "CYC:", 64),
		})
	}

	mem := &nestestMemory{mapper: cart.Mapper()}
	cpu := New(mem, nil)
	cpu.Reset()
	for cpu.Stall() > 0 {
		cpu.Tick()
	}
	cpu.PC = 0xC000

	var got []Trace
	cpu.SetTraceCallback(func(tr Trace) { got = append(got, tr) })
	for i := range expected {
		if _, err := cpu.Step(); err != nil {
			t.Fatalf("Instruction %d: %v", i, err)
		}
		tr := got[i]
		e := expected[i]
		if tr.PC != e.pc || tr.A != e.a || tr.X != e.x || tr.Y != e.y || tr.P != e.p || tr.SP != e.s || tr.Cycles != e.cyc {
			t.Fatalf("Line %d mismatch:\nexpected PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\n     got %s",
				i+1, e.pc, e.a, e.x, e.y, e.p, e.s, e.cyc, tr.String())
		}
	}
}
