package apu

import "github.com/pkg/errors"

// EnvelopeState is the saved form of an envelope generator.
type EnvelopeState struct {
	Loop     bool  `json:"loop"`
	Constant bool  `json:"constant"`
	Volume   uint8 `json:"volume"`
	Start    bool  `json:"start"`
	Divider  uint8 `json:"divider"`
	Decay    uint8 `json:"decay"`
}

// LengthState is the saved form of a length counter.
type LengthState struct {
	Enabled bool  `json:"enabled"`
	Halt    bool  `json:"halt"`
	Value   uint8 `json:"value"`
}

// SweepState is the saved form of a pulse sweep unit.
type SweepState struct {
	Enabled bool  `json:"enabled"`
	Period  uint8 `json:"period"`
	Negate  bool  `json:"negate"`
	Shift   uint8 `json:"shift"`
	Reload  bool  `json:"reload"`
	Divider uint8 `json:"divider"`
}

// PulseState is the saved form of a pulse channel.
type PulseState struct {
	Envelope EnvelopeState `json:"envelope"`
	Sweep    SweepState    `json:"sweep"`
	Length   LengthState   `json:"length"`
	Duty     uint8         `json:"duty"`
	Period   uint16        `json:"period"`
	Timer    uint16        `json:"timer"`
	Step     uint8         `json:"step"`
}

// TriangleState is the saved form of the triangle channel.
type TriangleState struct {
	Length        LengthState `json:"length"`
	LinearControl bool        `json:"linear_control"`
	LinearReload  uint8       `json:"linear_reload"`
	LinearFlag    bool        `json:"linear_flag"`
	LinearValue   uint8       `json:"linear_value"`
	Period        uint16      `json:"period"`
	Timer         uint16      `json:"timer"`
	Step          uint8       `json:"step"`
}

// NoiseState is the saved form of the noise channel.
type NoiseState struct {
	Envelope EnvelopeState `json:"envelope"`
	Length   LengthState   `json:"length"`
	Mode     bool          `json:"mode"`
	Period   uint16        `json:"period"`
	Timer    uint16        `json:"timer"`
	Shift    uint16        `json:"shift"`
}

// DMCState is the saved form of the DMC, including its memory reader and
// output unit.
type DMCState struct {
	IRQEnabled    bool   `json:"irq_enabled"`
	Loop          bool   `json:"loop"`
	Rate          uint16 `json:"rate"`
	Timer         uint16 `json:"timer"`
	Level         uint8  `json:"level"`
	SampleAddress uint16 `json:"sample_address"`
	SampleLength  uint16 `json:"sample_length"`
	Address       uint16 `json:"address"`
	Remaining     uint16 `json:"remaining"`
	Buffer        uint8  `json:"buffer"`
	BufferFull    bool   `json:"buffer_full"`
	Shift         uint8  `json:"shift"`
	Bits          uint8  `json:"bits"`
	Silence       bool   `json:"silence"`
	IRQ           bool   `json:"irq"`
	Stall         int    `json:"stall"`
}

// State is a complete copy of the APU: every channel's timers, sequencers
// and units, the frame counter and the position of the output resampler.
// Samples already queued for the host are not part of it.
type State struct {
	Pulse1   PulseState    `json:"pulse1"`
	Pulse2   PulseState    `json:"pulse2"`
	Triangle TriangleState `json:"triangle"`
	Noise    NoiseState    `json:"noise"`
	DMC      DMCState      `json:"dmc"`

	FiveStep   bool `json:"five_step"`
	IRQInhibit bool `json:"irq_inhibit"`
	FrameIRQ   bool `json:"frame_irq"`
	FrameCycle int  `json:"frame_cycle"`
	ResetDelay int  `json:"reset_delay"`
	APUCycle   bool `json:"apu_cycle"`

	Registers        []uint8 `json:"registers"`
	CycleAccumulator float64 `json:"cycle_accumulator"`
	Cycles           uint64  `json:"cycles"`
}

func (e envelope) state() EnvelopeState {
	return EnvelopeState{e.loop, e.constant, e.volume, e.start, e.divider, e.decay}
}

func (s EnvelopeState) envelope() envelope {
	return envelope{s.Loop, s.Constant, s.Volume, s.Start, s.Divider, s.Decay}
}

func (l lengthCounter) state() LengthState {
	return LengthState{l.enabled, l.halt, l.value}
}

func (s LengthState) counter() lengthCounter {
	return lengthCounter{s.Enabled, s.Halt, s.Value}
}

func (p pulse) state() PulseState {
	return PulseState{
		Envelope: p.env.state(),
		Sweep: SweepState{
			Enabled: p.sweep.enabled,
			Period:  p.sweep.period,
			Negate:  p.sweep.negate,
			Shift:   p.sweep.shift,
			Reload:  p.sweep.reload,
			Divider: p.sweep.divider,
		},
		Length: p.length.state(),
		Duty:   p.duty,
		Period: p.period,
		Timer:  p.timer,
		Step:   p.step,
	}
}

func (s PulseState) pulse(onesComplement bool) pulse {
	return pulse{
		env: s.Envelope.envelope(),
		sweep: sweep{
			enabled:        s.Sweep.Enabled,
			period:         s.Sweep.Period & 0x07,
			negate:         s.Sweep.Negate,
			shift:          s.Sweep.Shift & 0x07,
			reload:         s.Sweep.Reload,
			divider:        s.Sweep.Divider,
			onesComplement: onesComplement,
		},
		length: s.Length.counter(),
		duty:   s.Duty,
		period: s.Period & 0x7FF,
		timer:  s.Timer,
		step:   s.Step,
	}
}

// Snapshot captures the APU state.
func (apu *APU) Snapshot() State {
	regs := make([]uint8, len(apu.registers))
	copy(regs, apu.registers[:])
	t, n, d := &apu.triangle, &apu.noise, &apu.dmc
	return State{
		Pulse1: apu.pulse1.state(),
		Pulse2: apu.pulse2.state(),
		Triangle: TriangleState{
			Length:        t.length.state(),
			LinearControl: t.linear.control,
			LinearReload:  t.linear.reload,
			LinearFlag:    t.linear.flag,
			LinearValue:   t.linear.value,
			Period:        t.period,
			Timer:         t.timer,
			Step:          t.step,
		},
		Noise: NoiseState{
			Envelope: n.env.state(),
			Length:   n.length.state(),
			Mode:     n.mode,
			Period:   n.period,
			Timer:    n.timer,
			Shift:    n.shift,
		},
		DMC: DMCState{
			IRQEnabled:    d.irqEnabled,
			Loop:          d.loop,
			Rate:          d.rate,
			Timer:         d.timer,
			Level:         d.level,
			SampleAddress: d.sampleAddress,
			SampleLength:  d.sampleLength,
			Address:       d.address,
			Remaining:     d.remaining,
			Buffer:        d.buffer,
			BufferFull:    d.bufferFull,
			Shift:         d.shift,
			Bits:          d.bits,
			Silence:       d.silence,
			IRQ:           d.irq,
			Stall:         d.stall,
		},
		FiveStep:         apu.fiveStep,
		IRQInhibit:       apu.irqInhibit,
		FrameIRQ:         apu.frameIRQ,
		FrameCycle:       apu.frameCycle,
		ResetDelay:       apu.resetDelay,
		APUCycle:         apu.apuCycle,
		Registers:        regs,
		CycleAccumulator: apu.cycleAccumulator,
		Cycles:           apu.cycles,
	}
}

func (s State) validate() error {
	for i, p := range []PulseState{s.Pulse1, s.Pulse2} {
		if p.Duty > 3 || p.Step > 7 {
			return errors.Errorf("apu: pulse %d duty %d step %d out of range", i+1, p.Duty, p.Step)
		}
	}
	if s.Triangle.Step > 31 {
		return errors.Errorf("apu: triangle step %d out of range", s.Triangle.Step)
	}
	if s.Noise.Period == 0 || s.DMC.Rate == 0 {
		return errors.New("apu: noise period and DMC rate must be non-zero")
	}
	if s.DMC.Bits == 0 || s.DMC.Bits > 8 {
		return errors.Errorf("apu: DMC bit counter %d out of range", s.DMC.Bits)
	}
	if s.FrameCycle < 0 || s.FrameCycle >= stepWrap5 || s.ResetDelay < 0 || s.ResetDelay > 4 {
		return errors.Errorf("apu: frame counter at %d (delay %d) out of range", s.FrameCycle, s.ResetDelay)
	}
	if len(s.Registers) != len(APU{}.registers) {
		return errors.Errorf("apu: state has %d registers", len(s.Registers))
	}
	return nil
}

// Restore loads a state produced by Snapshot. The APU is left untouched
// when the state is rejected. The memory reader, sample rate and queued
// output samples are kept.
func (apu *APU) Restore(s State) error {
	if err := s.validate(); err != nil {
		return err
	}

	apu.pulse1 = s.Pulse1.pulse(true)
	apu.pulse2 = s.Pulse2.pulse(false)
	apu.triangle = triangle{
		linear: linearCounter{
			control: s.Triangle.LinearControl,
			reload:  s.Triangle.LinearReload & 0x7F,
			flag:    s.Triangle.LinearFlag,
			value:   s.Triangle.LinearValue,
		},
		length: s.Triangle.Length.counter(),
		period: s.Triangle.Period & 0x7FF,
		timer:  s.Triangle.Timer,
		step:   s.Triangle.Step,
	}
	apu.noise = noise{
		env:    s.Noise.Envelope.envelope(),
		length: s.Noise.Length.counter(),
		mode:   s.Noise.Mode,
		period: s.Noise.Period,
		timer:  s.Noise.Timer,
		shift:  s.Noise.Shift & 0x7FFF,
	}

	d := s.DMC
	mem := apu.dmc.mem
	apu.dmc = dmc{
		mem:           mem,
		irqEnabled:    d.IRQEnabled,
		loop:          d.Loop,
		rate:          d.Rate,
		timer:         d.Timer,
		level:         d.Level & 0x7F,
		sampleAddress: d.SampleAddress,
		sampleLength:  d.SampleLength,
		address:       d.Address,
		remaining:     d.Remaining,
		buffer:        d.Buffer,
		bufferFull:    d.BufferFull,
		shift:         d.Shift,
		bits:          d.Bits,
		silence:       d.Silence,
		irq:           d.IRQ,
		stall:         d.Stall,
	}

	apu.fiveStep = s.FiveStep
	apu.irqInhibit = s.IRQInhibit
	apu.frameIRQ = s.FrameIRQ
	apu.frameCycle = s.FrameCycle
	apu.resetDelay = s.ResetDelay
	apu.apuCycle = s.APUCycle
	copy(apu.registers[:], s.Registers)

	apu.cycleAccumulator = s.CycleAccumulator
	if apu.cycleAccumulator < 0 || apu.cycleAccumulator >= apu.cyclesPerSample {
		apu.cycleAccumulator = 0
	}
	apu.cycles = s.Cycles
	return nil
}
