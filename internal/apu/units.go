package apu

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 25% negated
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Periods in CPU cycles (NTSC).
var noisePeriodTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// envelope is the volume generator shared by the pulse and noise channels.
type envelope struct {
	loop     bool
	constant bool
	volume   uint8

	start   bool
	divider uint8
	decay   uint8
}

func (e *envelope) write(value uint8) {
	e.loop = value&0x20 != 0
	e.constant = value&0x10 != 0
	e.volume = value & 0x0F
}

// clock runs on quarter frames.
func (e *envelope) clock() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = e.volume
		return
	}
	if e.divider > 0 {
		e.divider--
		return
	}
	e.divider = e.volume
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

func (e *envelope) output() uint8 {
	if e.constant {
		return e.volume
	}
	return e.decay
}

// lengthCounter silences a channel after a programmed number of half
// frames.
type lengthCounter struct {
	enabled bool
	halt    bool
	value   uint8
}

func (l *lengthCounter) load(index uint8) {
	if l.enabled {
		l.value = lengthTable[index&0x1F]
	}
}

func (l *lengthCounter) setEnabled(enabled bool) {
	l.enabled = enabled
	if !enabled {
		l.value = 0
	}
}

// clock runs on half frames.
func (l *lengthCounter) clock() {
	if l.value > 0 && !l.halt {
		l.value--
	}
}

func (l *lengthCounter) active() bool {
	return l.value > 0
}

// linearCounter is the triangle's second gate, clocked on quarter frames.
type linearCounter struct {
	control bool
	reload  uint8
	flag    bool
	value   uint8
}

func (l *linearCounter) clock() {
	if l.flag {
		l.value = l.reload
	} else if l.value > 0 {
		l.value--
	}
	if !l.control {
		l.flag = false
	}
}

// sweep bends a pulse channel's period on half frames.
type sweep struct {
	enabled bool
	period  uint8
	negate  bool
	shift   uint8
	reload  bool
	divider uint8

	// Pulse 1 negates with one's complement.
	onesComplement bool
}

func (s *sweep) write(value uint8) {
	s.enabled = value&0x80 != 0
	s.period = value >> 4 & 0x07
	s.negate = value&0x08 != 0
	s.shift = value & 0x07
	s.reload = true
}

func (s *sweep) target(period uint16) int {
	change := int(period >> s.shift)
	if s.negate {
		change = -change
		if s.onesComplement {
			change--
		}
	}
	return int(period) + change
}

func (s *sweep) muted(period uint16) bool {
	return period < 8 || s.target(period) > 0x7FF
}

func (s *sweep) clock(period *uint16) {
	if s.divider == 0 && s.enabled && s.shift > 0 && !s.muted(*period) {
		if t := s.target(*period); t >= 0 {
			*period = uint16(t)
		}
	}
	if s.divider == 0 || s.reload {
		s.divider = s.period
		s.reload = false
	} else {
		s.divider--
	}
}
