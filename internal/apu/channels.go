package apu

// pulse is one of the two square wave channels.
type pulse struct {
	env    envelope
	sweep  sweep
	length lengthCounter

	duty   uint8
	period uint16 // 11-bit timer reload
	timer  uint16
	step   uint8
}

func (p *pulse) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		p.duty = value >> 6
		p.env.write(value)
		p.length.halt = p.env.loop
	case 1:
		p.sweep.write(value)
	case 2:
		p.period = p.period&0x700 | uint16(value)
	case 3:
		p.period = p.period&0x0FF | uint16(value&0x07)<<8
		p.length.load(value >> 3)
		p.env.start = true
		p.step = 0
	}
}

// clock runs on APU cycles (every other CPU cycle).
func (p *pulse) clock() {
	if p.timer == 0 {
		p.timer = p.period
		p.step = (p.step + 1) & 7
	} else {
		p.timer--
	}
}

func (p *pulse) output() uint8 {
	if dutyTable[p.duty][p.step] == 0 || p.sweep.muted(p.period) || !p.length.active() {
		return 0
	}
	return p.env.output()
}

// triangle is the 32-step triangle channel.
type triangle struct {
	linear linearCounter
	length lengthCounter

	period uint16
	timer  uint16
	step   uint8
}

func (t *triangle) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		t.length.halt = value&0x80 != 0
		t.linear.control = value&0x80 != 0
		t.linear.reload = value & 0x7F
	case 2:
		t.period = t.period&0x700 | uint16(value)
	case 3:
		t.period = t.period&0x0FF | uint16(value&0x07)<<8
		t.length.load(value >> 3)
		t.linear.flag = true
	}
}

// clock runs on CPU cycles. The sequencer only advances while both
// counters are non-zero.
func (t *triangle) clock() {
	if t.timer == 0 {
		t.timer = t.period
		if t.length.active() && t.linear.value > 0 {
			t.step = (t.step + 1) & 31
		}
	} else {
		t.timer--
	}
}

func (t *triangle) output() uint8 {
	return triangleTable[t.step]
}

// noise is the pseudo-random channel driven by a 15-bit LFSR.
type noise struct {
	env    envelope
	length lengthCounter

	mode   bool
	period uint16
	timer  uint16
	shift  uint16
}

func newNoise() noise {
	return noise{shift: 1, period: noisePeriodTable[0]}
}

func (n *noise) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		n.env.write(value)
		n.length.halt = n.env.loop
	case 2:
		n.mode = value&0x80 != 0
		n.period = noisePeriodTable[value&0x0F]
	case 3:
		n.length.load(value >> 3)
		n.env.start = true
	}
}

// clock runs on CPU cycles.
func (n *noise) clock() {
	if n.timer > 0 {
		n.timer--
		return
	}
	n.timer = n.period - 1

	tap := uint16(1)
	if n.mode {
		tap = 6
	}
	feedback := (n.shift ^ n.shift>>tap) & 1
	n.shift = n.shift>>1 | feedback<<14
}

func (n *noise) output() uint8 {
	if n.shift&1 != 0 || !n.length.active() {
		return 0
	}
	return n.env.output()
}
