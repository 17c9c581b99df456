package ppu

import (
	"testing"

	"github.com/pkg/errors"

	"nescore/internal/nmi"
)

// testVRAM is a flat pattern table plus four unmirrored nametables.
type testVRAM struct {
	mem [0x3000]uint8
}

func (m *testVRAM) Read(address uint16) uint8 {
	return m.mem[address%0x3000]
}

func (m *testVRAM) Write(address uint16, value uint8) {
	m.mem[address%0x3000] = value
}

func newTestPPU() (*PPU, *testVRAM, *nmi.Line) {
	vram := &testVRAM{}
	line := nmi.New()
	return New(vram, line), vram, line
}

func tickN(t *testing.T, p *PPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := p.Tick(); err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
	}
}

func mustWrite(t *testing.T, p *PPU, address uint16, value uint8) {
	t.Helper()
	if err := p.WriteRegister(address, value); err != nil {
		t.Fatalf("WriteRegister($%04X, $%02X) failed: %v", address, value, err)
	}
}

func mustRead(t *testing.T, p *PPU, address uint16) uint8 {
	t.Helper()
	v, err := p.ReadRegister(address)
	if err != nil {
		t.Fatalf("ReadRegister($%04X) failed: %v", address, err)
	}
	return v
}

func TestPPUADDR_RoundTrip(t *testing.T) {
	p, vram, _ := newTestPPU()

	mustWrite(t, p, 0x2006, 0x21)
	mustWrite(t, p, 0x2006, 0x08)
	if p.v != 0x2108 {
		t.Fatalf("Expected v=$2108, got $%04X", p.v)
	}
	mustWrite(t, p, 0x2007, 0xAB)
	if vram.mem[0x2108] != 0xAB {
		t.Errorf("Expected $AB at $2108, got $%02X", vram.mem[0x2108])
	}
	if p.v != 0x2109 {
		t.Errorf("Expected v=$2109 after write, got $%04X", p.v)
	}

	mustWrite(t, p, 0x2006, 0x21)
	mustWrite(t, p, 0x2006, 0x08)
	mustRead(t, p, 0x2007) // prime the buffer
	vram.mem[0x2109] = 0x55
	if got := mustRead(t, p, 0x2007); got != 0xAB {
		t.Errorf("Expected $AB from buffer, got $%02X", got)
	}
	if got := mustRead(t, p, 0x2007); got != 0x55 {
		t.Errorf("Expected $55 from buffer, got $%02X", got)
	}
}

func TestPPUADDR_Increment32(t *testing.T) {
	p, vram, _ := newTestPPU()

	mustWrite(t, p, 0x2000, ctrlIncrement32)
	mustWrite(t, p, 0x2006, 0x20)
	mustWrite(t, p, 0x2006, 0x00)
	mustWrite(t, p, 0x2007, 1)
	mustWrite(t, p, 0x2007, 2)

	if vram.mem[0x2000] != 1 || vram.mem[0x2020] != 2 {
		t.Errorf("Expected column writes at $2000/$2020, got %d/%d", vram.mem[0x2000], vram.mem[0x2020])
	}
}

func TestPPUSTATUS_ResetsWriteToggle(t *testing.T) {
	p, _, _ := newTestPPU()

	mustWrite(t, p, 0x2006, 0x12) // leaves w set
	mustRead(t, p, 0x2002)
	mustWrite(t, p, 0x2006, 0x3F)
	mustWrite(t, p, 0x2006, 0x00)

	if p.v != 0x3F00 {
		t.Errorf("Expected v=$3F00, got $%04X", p.v)
	}
}

func TestPPUSCROLL_Writes(t *testing.T) {
	p, _, _ := newTestPPU()

	mustWrite(t, p, 0x2000, 0x03)
	mustWrite(t, p, 0x2005, 0x7D) // coarse X 15, fine X 5
	mustWrite(t, p, 0x2005, 0x5E) // coarse Y 11, fine Y 6

	if p.x != 5 {
		t.Errorf("Expected fine X 5, got %d", p.x)
	}
	want := uint16(6<<12 | 3<<10 | 11<<5 | 15)
	if p.t != want {
		t.Errorf("Expected t=$%04X, got $%04X", want, p.t)
	}
	if p.w {
		t.Error("Expected w clear after second write")
	}
}

func TestRegisterMirroring(t *testing.T) {
	p, _, _ := newTestPPU()

	mustWrite(t, p, 0x3FF3, 0x40) // OAMADDR through the last mirror
	if p.oamAddr != 0x40 {
		t.Errorf("Expected OAMADDR $40, got $%02X", p.oamAddr)
	}
}

func TestVBlankAndNMITiming(t *testing.T) {
	p, _, line := newTestPPU()
	mustWrite(t, p, 0x2000, ctrlNMIEnable)

	tickN(t, p, vblankLine*dotsPerLine)
	if p.VBlank() {
		t.Fatal("Expected no vblank at dot 0 of line 241")
	}
	if line.Pending() {
		t.Fatal("Expected no NMI before vblank")
	}

	tickN(t, p, 1)
	if sl, dot := p.Position(); sl != 241 || dot != 1 {
		t.Errorf("Expected position (241, 1), got (%d, %d)", sl, dot)
	}
	if !p.VBlank() {
		t.Error("Expected vblank at dot 1 of line 241")
	}
	if !line.Handle() {
		t.Error("Expected NMI at vblank")
	}

	status := mustRead(t, p, 0x2002)
	if status&0x80 == 0 {
		t.Errorf("Expected status bit 7 set, got $%02X", status)
	}
	if p.VBlank() {
		t.Error("Expected status read to clear vblank")
	}
}

func TestVBlank_NoNMIWhenDisabled(t *testing.T) {
	p, _, line := newTestPPU()

	tickN(t, p, vblankLine*dotsPerLine+1)
	if !p.VBlank() {
		t.Fatal("Expected vblank")
	}
	if line.Pending() {
		t.Error("Expected no NMI with PPUCTRL bit 7 clear")
	}

	// Enabling NMI inside vblank fires at once.
	mustWrite(t, p, 0x2000, ctrlNMIEnable)
	if !line.Handle() {
		t.Error("Expected NMI on 0->1 enable during vblank")
	}
	// Rewriting the same value is not an edge.
	mustWrite(t, p, 0x2000, ctrlNMIEnable)
	if line.Pending() {
		t.Error("Expected no NMI when bit 7 stays set")
	}
}

func TestPreRenderClearsFlags(t *testing.T) {
	p, _, _ := newTestPPU()
	p.spriteZeroHit = true
	p.spriteOverflow = true

	tickN(t, p, preRenderLine*dotsPerLine)
	if !p.VBlank() || !p.spriteZeroHit || !p.spriteOverflow {
		t.Fatal("Expected flags still set at dot 0 of the pre-render line")
	}
	tickN(t, p, 1)
	if p.VBlank() || p.spriteZeroHit || p.spriteOverflow {
		t.Error("Expected flags cleared at dot 1 of the pre-render line")
	}
}

func TestFrameSwap(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2006, 0x3F)
	mustWrite(t, p, 0x2006, 0x00)
	mustWrite(t, p, 0x2007, 0x21)

	tickN(t, p, linesPerFrame*dotsPerLine-1)
	if p.Frame() != 0 {
		t.Fatalf("Expected frame 0 before wrap, got %d", p.Frame())
	}
	tickN(t, p, 1)
	if p.Frame() != 1 {
		t.Fatalf("Expected frame 1, got %d", p.Frame())
	}

	fb := p.FrameBuffer()
	if len(fb) != Width*Height {
		t.Fatalf("Expected %d pixels, got %d", Width*Height, len(fb))
	}
	for _, i := range []int{0, Width*Height/2 + 17, Width*Height - 1} {
		if fb[i] != nesColorPalette[0x21] {
			t.Errorf("Expected backdrop $%08X at %d, got $%08X", nesColorPalette[0x21], i, fb[i])
		}
	}
}

func TestGrayscale(t *testing.T) {
	p, _, _ := newTestPPU()
	p.palette.write(0x3F00, 0x16)
	mustWrite(t, p, 0x2001, maskGrayscale)

	tickN(t, p, linesPerFrame*dotsPerLine)
	if got := p.FrameBuffer()[0]; got != nesColorPalette[0x10] {
		t.Errorf("Expected gray $%08X, got $%08X", nesColorPalette[0x10], got)
	}
}

func TestPaletteMirroring(t *testing.T) {
	p, _, _ := newTestPPU()

	tests := []struct {
		write, read uint16
		value       uint8
		want        uint8
	}{
		{0x3F10, 0x3F00, 0x2A, 0x2A},
		{0x3F04, 0x3F14, 0x11, 0x11},
		{0x3F18, 0x3F08, 0x05, 0x05},
		{0x3F1C, 0x3F0C, 0x06, 0x06},
		{0x3F21, 0x3F01, 0x07, 0x07},
		{0x3F11, 0x3F11, 0xFF, 0x3F},
	}
	for _, tt := range tests {
		mustWrite(t, p, 0x2006, uint8(tt.write>>8))
		mustWrite(t, p, 0x2006, uint8(tt.write))
		mustWrite(t, p, 0x2007, tt.value)

		mustWrite(t, p, 0x2006, uint8(tt.read>>8))
		mustWrite(t, p, 0x2006, uint8(tt.read))
		if got := mustRead(t, p, 0x2007); got != tt.want {
			t.Errorf("Write $%04X read $%04X: expected $%02X, got $%02X", tt.write, tt.read, tt.want, got)
		}
	}
}

func TestPaletteRead_FillsBufferFromNametable(t *testing.T) {
	p, vram, _ := newTestPPU()
	vram.mem[0x2F05] = 0x99

	mustWrite(t, p, 0x2006, 0x3F)
	mustWrite(t, p, 0x2006, 0x05)
	if got := mustRead(t, p, 0x2007); got != powerOnPalette[5] {
		t.Errorf("Expected immediate palette value $%02X, got $%02X", powerOnPalette[5], got)
	}
	if p.readBuffer != 0x99 {
		t.Errorf("Expected buffer $99 from $2F05, got $%02X", p.readBuffer)
	}
}

func TestPPUDATA_DuringRendering(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2001, maskBG)

	// Power-on position is the top of the visible area.
	if err := p.WriteRegister(0x2007, 0x01); !errors.Is(err, ErrRenderingAccess) {
		t.Errorf("Expected ErrRenderingAccess on write, got %v", err)
	}
	if _, err := p.ReadRegister(0x2007); !errors.Is(err, ErrRenderingAccess) {
		t.Errorf("Expected ErrRenderingAccess on read, got %v", err)
	}

	// Vblank is open for business.
	tickN(t, p, vblankLine*dotsPerLine+5)
	if err := p.WriteRegister(0x2007, 0x01); err != nil {
		t.Errorf("Expected vblank write to succeed, got %v", err)
	}
}

func TestPPUDATA_LenientRenderingAccess(t *testing.T) {
	p, vram, _ := newTestPPU()
	p.SetStrictDataAccess(false)
	mustWrite(t, p, 0x2006, 0x20)
	mustWrite(t, p, 0x2006, 0x1F) // coarse X 31
	mustWrite(t, p, 0x2001, maskBG)

	mustWrite(t, p, 0x2007, 0x42)
	if vram.mem[0x201F] != 0x42 {
		t.Errorf("Expected write to land at $201F, got $%02X", vram.mem[0x201F])
	}
	// Coarse X wraps into the next nametable and fine Y steps.
	if p.v != 0x3400 {
		t.Errorf("Expected v=$3400, got $%04X", p.v)
	}
}

func TestScheduleViolation(t *testing.T) {
	p, _, _ := newTestPPU()

	p.dot = 5
	if err := p.incrementX(); !errors.Is(err, ErrScheduleViolation) {
		t.Errorf("Expected ErrScheduleViolation for coarse X at dot 5, got %v", err)
	}
	p.dot = 255
	if err := p.incrementY(); !errors.Is(err, ErrScheduleViolation) {
		t.Errorf("Expected ErrScheduleViolation for Y at dot 255, got %v", err)
	}
	p.scanline, p.dot = 245, 256
	if err := p.incrementY(); !errors.Is(err, ErrScheduleViolation) {
		t.Errorf("Expected ErrScheduleViolation for Y in vblank, got %v", err)
	}

	p.scanline, p.dot = preRenderLine, 336
	if err := p.incrementX(); err != nil {
		t.Errorf("Expected coarse X at (261, 336) to be legal, got %v", err)
	}
	p.scanline, p.dot = 10, 256
	if err := p.incrementY(); err != nil {
		t.Errorf("Expected Y at (10, 256) to be legal, got %v", err)
	}
}

func TestRenderingFrameHasNoViolations(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2001, maskBG|maskSprites)
	tickN(t, p, 2*linesPerFrame*dotsPerLine)
	if p.Frame() != 2 {
		t.Errorf("Expected 2 frames, got %d", p.Frame())
	}
}

func TestScrollIncrements(t *testing.T) {
	p, _, _ := newTestPPU()

	tests := []struct {
		name string
		v    uint16
		step func()
		want uint16
	}{
		{"coarse X", 0x0005, p.stepCoarseX, 0x0006},
		{"coarse X wrap", 0x001F, p.stepCoarseX, 0x0400},
		{"coarse X wrap back", 0x041F, p.stepCoarseX, 0x0000},
		{"fine Y", 0x1000, p.stepY, 0x2000},
		{"coarse Y", 0x7000, p.stepY, 0x0020},
		{"coarse Y 29 switches", 0x73A0, p.stepY, 0x0800},
		{"coarse Y 31 wraps", 0x73E0, p.stepY, 0x0000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.v = tt.v
			tt.step()
			if p.v != tt.want {
				t.Errorf("Expected v=$%04X, got $%04X", tt.want, p.v)
			}
		})
	}
}

func TestCopyXY(t *testing.T) {
	p, _, _ := newTestPPU()
	p.t = 0x7FFF
	p.v = 0

	p.copyX()
	if p.v != 0x041F {
		t.Errorf("Expected horizontal bits $041F, got $%04X", p.v)
	}
	p.copyY()
	if p.v != 0x7FFF {
		t.Errorf("Expected all bits after vertical copy, got $%04X", p.v)
	}
}

func TestOAMData(t *testing.T) {
	p, _, _ := newTestPPU()

	mustWrite(t, p, 0x2003, 0xFF)
	mustWrite(t, p, 0x2004, 0x11)
	mustWrite(t, p, 0x2004, 0x22)
	if p.oam[0xFF] != 0x11 || p.oam[0x00] != 0x22 {
		t.Errorf("Expected OAMADDR to wrap, got $%02X $%02X", p.oam[0xFF], p.oam[0x00])
	}

	mustWrite(t, p, 0x2003, 0xFF)
	if got := mustRead(t, p, 0x2004); got != 0x11 {
		t.Errorf("Expected OAMDATA read $11, got $%02X", got)
	}
	if p.oamAddr != 0xFF {
		t.Error("Expected OAMDATA read to leave OAMADDR alone")
	}

	mustWrite(t, p, 0x2001, maskSprites)
	mustWrite(t, p, 0x2004, 0x33)
	if p.oam[0xFF] != 0x11 {
		t.Error("Expected OAMDATA write ignored while rendering")
	}
}

func TestWriteDMA(t *testing.T) {
	p, _, _ := newTestPPU()
	page := make([]uint8, 256)
	for i := range page {
		page[i] = uint8(i)
	}

	mustWrite(t, p, 0x2003, 0x10)
	p.WriteDMA(page)
	if p.oam[0x10] != 0 || p.oam[0xFF] != 0xEF || p.oam[0x0F] != 0xFF {
		t.Errorf("Expected DMA to start at OAMADDR and wrap, got $%02X $%02X $%02X",
			p.oam[0x10], p.oam[0xFF], p.oam[0x0F])
	}
}

func TestWriteOnlyRegistersReturnLatch(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2005, 0x5A)

	if got := mustRead(t, p, 0x2000); got != 0x5A {
		t.Errorf("Expected latch $5A, got $%02X", got)
	}
	if got := mustRead(t, p, 0x2002); got&0x1F != 0x1A {
		t.Errorf("Expected status low bits from latch, got $%02X", got)
	}
}

func TestReset(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2000, 0x80)
	mustWrite(t, p, 0x2001, 0x1E)
	mustWrite(t, p, 0x2005, 0x01)
	p.oam[3] = 7

	p.Reset()
	if p.ctrl != 0 || p.mask != 0 || p.w {
		t.Error("Expected control, mask and w cleared")
	}
	if p.oam[3] != 7 {
		t.Error("Expected OAM to survive reset")
	}
}

func TestSnapshotRestore(t *testing.T) {
	p, _, _ := newTestPPU()
	mustWrite(t, p, 0x2000, 0x90)
	mustWrite(t, p, 0x2005, 0x33)
	p.oam[9] = 0x44
	tickN(t, p, 1000)

	state := p.Snapshot()
	q, _, _ := newTestPPU()
	if err := q.Restore(state); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if q.ctrl != 0x90 || q.x != 3 || !q.w || q.oam[9] != 0x44 {
		t.Error("Expected registers and OAM restored")
	}
	if sl, dot := q.Position(); sl != 2 || dot != 1000-2*dotsPerLine {
		t.Errorf("Expected position (2, %d), got (%d, %d)", 1000-2*dotsPerLine, sl, dot)
	}

	state.OAM = state.OAM[:10]
	if err := q.Restore(state); err == nil {
		t.Error("Expected error for short OAM")
	}
}

func TestSnapshotRestore_SpriteLineAndFrames(t *testing.T) {
	p, _, _ := newTestPPU()
	p.spriteLine[10] = spritePixel{color: 0x2A, opaque: true, zero: true}
	p.spriteLine[200] = spritePixel{color: 0x16, opaque: true, behind: true}
	p.back[5] = 0xFF123456
	p.front[Width*Height-1] = 0xFF654321

	state := p.Snapshot()
	q, _, _ := newTestPPU()
	if err := q.Restore(state); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if q.spriteLine != p.spriteLine {
		t.Errorf("Expected sprite line restored, got %+v and %+v", q.spriteLine[10], q.spriteLine[200])
	}
	if q.back[5] != 0xFF123456 {
		t.Errorf("Expected back buffer pixel $FF123456, got $%08X", q.back[5])
	}
	if got := q.FrameBuffer()[Width*Height-1]; got != 0xFF654321 {
		t.Errorf("Expected front buffer pixel $FF654321, got $%08X", got)
	}

	bad := p.Snapshot()
	bad.SpriteLine = bad.SpriteLine[:8]
	if err := q.Restore(bad); err == nil {
		t.Error("Expected error for short sprite line")
	}
	bad = p.Snapshot()
	bad.Back = nil
	if err := q.Restore(bad); err == nil {
		t.Error("Expected error for missing back buffer")
	}
}

func TestAdvanceDot_PanicsPastLastScanline(t *testing.T) {
	p, _, _ := newTestPPU()
	p.scanline = linesPerFrame
	p.dot = dotsPerLine - 1

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for scanline past the end of the frame")
		}
	}()
	p.advanceDot()
}
