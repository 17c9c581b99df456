// Package apu implements the Audio Processing Unit for the NES.
package apu

import (
	"github.com/pkg/errors"

	"nescore/internal/num"
)

// CPUFrequency is the NTSC CPU clock in Hz. The APU is ticked at this rate.
const CPUFrequency = 1789773.0

// ErrWriteOnlyRegister is returned for reads of any APU register other than
// $4015.
var ErrWriteOnlyRegister = errors.New("apu: read of write-only register")

// Frame sequencer step positions, in CPU cycles since the last reset.
const (
	stepQuarter1 = 7457
	stepHalf1    = 14913
	stepQuarter3 = 22371
	stepIRQ4     = 29828
	stepHalf4    = 29829
	stepWrap4    = 29830
	stepHalf5    = 37281
	stepWrap5    = 37282
)

const defaultBufSize = 8192

// MemoryReader is the CPU bus as seen by the DMC memory reader.
type MemoryReader interface {
	Read(address uint16) uint8
}

// APU represents the NES Audio Processing Unit
type APU struct {
	pulse1   pulse
	pulse2   pulse
	triangle triangle
	noise    noise
	dmc      dmc

	// Frame counter
	fiveStep   bool
	irqInhibit bool
	frameIRQ   bool
	frameCycle int
	resetDelay int
	apuCycle   bool // the next tick clocks the pulse timers

	registers [0x18]uint8

	// Audio generation
	sampleRate       int
	cyclesPerSample  float64
	cycleAccumulator float64
	samples          *SampleRing

	cycles uint64
}

// New creates an APU in its power-on state. The DMC reads nothing until a
// memory reader is attached with SetMemory.
func New() *APU {
	apu := &APU{
		dmc:     newDMC(),
		noise:   newNoise(),
		samples: NewSampleRing(defaultBufSize),
	}
	apu.pulse1.sweep.onesComplement = true
	apu.SetSampleRate(44100)
	return apu
}

// SetMemory attaches the bus the DMC fetches samples from.
func (apu *APU) SetMemory(mem MemoryReader) {
	apu.dmc.mem = mem
}

// SetSampleRate sets the host sample rate of the output stream.
func (apu *APU) SetSampleRate(rate int) {
	if rate <= 0 {
		rate = 44100
	}
	apu.sampleRate = rate
	apu.cyclesPerSample = CPUFrequency / float64(rate)
}

// SampleRate returns the host sample rate.
func (apu *APU) SampleRate() int {
	return apu.sampleRate
}

// Reset silences every channel and clears pending interrupts. The frame
// counter mode survives, as on the console.
func (apu *APU) Reset() {
	apu.writeStatus(0)
	apu.frameIRQ = false
	apu.dmc.irq = false
	apu.frameCycle = 0
	apu.resetDelay = 0
	apu.samples.Clear()
}

// Tick advances the APU by one CPU cycle.
func (apu *APU) Tick() {
	apu.cycles++
	if apu.apuCycle {
		apu.pulse1.clock()
		apu.pulse2.clock()
	}
	apu.apuCycle = !apu.apuCycle

	apu.triangle.clock()
	apu.noise.clock()
	apu.dmc.clock()

	apu.stepFrameCounter()

	apu.cycleAccumulator++
	if apu.cycleAccumulator >= apu.cyclesPerSample {
		apu.cycleAccumulator -= apu.cyclesPerSample
		apu.samples.Push(apu.Output())
	}
}

func (apu *APU) stepFrameCounter() {
	// A $4017 write holds the sequencer until the reset lands.
	if apu.resetDelay > 0 {
		apu.resetDelay--
		if apu.resetDelay == 0 {
			apu.frameCycle = 0
			if apu.fiveStep {
				apu.quarterFrame()
				apu.halfFrame()
			}
		}
		return
	}

	apu.frameCycle++
	num.AssertInRange(apu.frameCycle, 1, stepWrap5)
	if !apu.fiveStep {
		switch apu.frameCycle {
		case stepQuarter1, stepQuarter3:
			apu.quarterFrame()
		case stepHalf1:
			apu.quarterFrame()
			apu.halfFrame()
		case stepIRQ4:
			apu.raiseFrameIRQ()
		case stepHalf4:
			apu.quarterFrame()
			apu.halfFrame()
			apu.raiseFrameIRQ()
		case stepWrap4:
			apu.raiseFrameIRQ()
			apu.frameCycle = 0
		}
		return
	}

	switch apu.frameCycle {
	case stepQuarter1, stepQuarter3:
		apu.quarterFrame()
	case stepHalf1, stepHalf5:
		apu.quarterFrame()
		apu.halfFrame()
	case stepWrap5:
		apu.frameCycle = 0
	}
}

func (apu *APU) raiseFrameIRQ() {
	if !apu.irqInhibit {
		apu.frameIRQ = true
	}
}

// quarterFrame clocks envelopes and the triangle's linear counter.
func (apu *APU) quarterFrame() {
	apu.pulse1.env.clock()
	apu.pulse2.env.clock()
	apu.noise.env.clock()
	apu.triangle.linear.clock()
}

// halfFrame clocks length counters and sweep units.
func (apu *APU) halfFrame() {
	apu.pulse1.length.clock()
	apu.pulse2.length.clock()
	apu.triangle.length.clock()
	apu.noise.length.clock()
	apu.pulse1.sweep.clock(&apu.pulse1.period)
	apu.pulse2.sweep.clock(&apu.pulse2.period)
}

// IRQ reports the level of the APU interrupt line (frame or DMC).
func (apu *APU) IRQ() bool {
	return apu.frameIRQ || apu.dmc.irq
}

// TakeStall returns the CPU cycles stolen by DMC fetches since the last
// call.
func (apu *APU) TakeStall() int {
	n := apu.dmc.stall
	apu.dmc.stall = 0
	return n
}

// ReadRegister reads an APU register. Only $4015 is readable.
func (apu *APU) ReadRegister(address uint16) (uint8, error) {
	if address == 0x4015 {
		return apu.readStatus(), nil
	}
	return 0, errors.Wrapf(ErrWriteOnlyRegister, "$%04X", address)
}

func (apu *APU) readStatus() uint8 {
	var status uint8
	if apu.pulse1.length.active() {
		status |= 0x01
	}
	if apu.pulse2.length.active() {
		status |= 0x02
	}
	if apu.triangle.length.active() {
		status |= 0x04
	}
	if apu.noise.length.active() {
		status |= 0x08
	}
	if apu.dmc.remaining > 0 {
		status |= 0x10
	}
	if apu.frameIRQ {
		status |= 0x40
	}
	if apu.dmc.irq {
		status |= 0x80
	}
	apu.frameIRQ = false
	return status
}

// WriteRegister writes an APU register ($4000-$4013, $4015, $4017).
func (apu *APU) WriteRegister(address uint16, value uint8) error {
	if address < 0x4000 || address > 0x4017 {
		return errors.Errorf("apu: write to $%04X outside the APU", address)
	}
	apu.registers[address-0x4000] = value

	switch {
	case address <= 0x4003:
		apu.pulse1.write(address-0x4000, value)
	case address <= 0x4007:
		apu.pulse2.write(address-0x4004, value)
	case address <= 0x400B:
		apu.triangle.write(address-0x4008, value)
	case address <= 0x400F:
		apu.noise.write(address-0x400C, value)
	case address <= 0x4013:
		apu.dmc.write(address-0x4010, value)
	case address == 0x4015:
		apu.writeStatus(value)
	case address == 0x4017:
		apu.writeFrameCounter(value)
	}
	// $4014 and $4016 belong to the PPU DMA and the controllers.
	return nil
}

func (apu *APU) writeStatus(value uint8) {
	apu.dmc.irq = false
	apu.pulse1.length.setEnabled(value&0x01 != 0)
	apu.pulse2.length.setEnabled(value&0x02 != 0)
	apu.triangle.length.setEnabled(value&0x04 != 0)
	apu.noise.length.setEnabled(value&0x08 != 0)
	if value&0x10 == 0 {
		apu.dmc.remaining = 0
	} else if apu.dmc.remaining == 0 {
		apu.dmc.restart()
	}
}

func (apu *APU) writeFrameCounter(value uint8) {
	apu.fiveStep = value&0x80 != 0
	apu.irqInhibit = value&0x40 != 0
	if apu.irqInhibit {
		apu.frameIRQ = false
	}
	if apu.apuCycle {
		apu.resetDelay = 3
	} else {
		apu.resetDelay = 4
	}
}

// Output returns the current mixed level in [0, 1].
func (apu *APU) Output() float32 {
	return Mix(apu.pulse1.output(), apu.pulse2.output(),
		apu.triangle.output(), apu.noise.output(), apu.dmc.output())
}

// ChannelOutputs returns the raw levels of pulse 1, pulse 2, triangle,
// noise and DMC.
func (apu *APU) ChannelOutputs() [5]uint8 {
	return [5]uint8{
		apu.pulse1.output(), apu.pulse2.output(),
		apu.triangle.output(), apu.noise.output(), apu.dmc.output(),
	}
}

// ReadSamples fills dst from the output stream and returns how many
// samples were produced by the APU. When the stream runs dry the rest of
// dst repeats the last sample.
func (apu *APU) ReadSamples(dst []float32) int {
	return apu.samples.Read(dst)
}

// Buffered returns the number of samples waiting in the output stream.
func (apu *APU) Buffered() int {
	return apu.samples.Len()
}

// Cycles returns the number of CPU cycles the APU has run.
func (apu *APU) Cycles() uint64 {
	return apu.cycles
}
