package apu

// dmcFetchStall is the number of CPU cycles the memory reader steals per
// sample byte.
const dmcFetchStall = 4

// dmc is the delta modulation channel. It plays 1-bit deltas fetched from
// CPU memory.
type dmc struct {
	mem MemoryReader

	irqEnabled bool
	loop       bool
	rate       uint16
	timer      uint16
	level      uint8

	sampleAddress uint16
	sampleLength  uint16

	// memory reader
	address    uint16
	remaining  uint16
	buffer     uint8
	bufferFull bool

	// output unit
	shift   uint8
	bits    uint8
	silence bool

	irq   bool
	stall int
}

func newDMC() dmc {
	return dmc{
		rate:          dmcRateTable[0],
		sampleAddress: 0xC000,
		sampleLength:  1,
		bits:          8,
		silence:       true,
	}
}

func (d *dmc) write(reg uint16, value uint8) {
	switch reg {
	case 0:
		d.irqEnabled = value&0x80 != 0
		d.loop = value&0x40 != 0
		d.rate = dmcRateTable[value&0x0F]
		if !d.irqEnabled {
			d.irq = false
		}
	case 1:
		d.level = value & 0x7F
	case 2:
		d.sampleAddress = 0xC000 + uint16(value)*64
	case 3:
		d.sampleLength = uint16(value)*16 + 1
	}
}

func (d *dmc) restart() {
	d.address = d.sampleAddress
	d.remaining = d.sampleLength
	d.fill()
}

// fill runs the memory reader when the sample buffer is empty.
func (d *dmc) fill() {
	if d.bufferFull || d.remaining == 0 {
		return
	}
	if d.mem != nil {
		d.buffer = d.mem.Read(d.address)
	}
	d.bufferFull = true
	d.stall += dmcFetchStall

	if d.address == 0xFFFF {
		d.address = 0x8000
	} else {
		d.address++
	}
	d.remaining--
	if d.remaining == 0 {
		if d.loop {
			d.restart()
		} else if d.irqEnabled {
			d.irq = true
		}
	}
}

// clock runs on CPU cycles.
func (d *dmc) clock() {
	if d.timer > 0 {
		d.timer--
		return
	}
	d.timer = d.rate - 1

	if !d.silence {
		if d.shift&1 != 0 {
			if d.level <= 125 {
				d.level += 2
			}
		} else if d.level >= 2 {
			d.level -= 2
		}
		d.shift >>= 1
	}

	d.bits--
	if d.bits == 0 {
		d.bits = 8
		if d.bufferFull {
			d.silence = false
			d.shift = d.buffer
			d.bufferFull = false
			d.fill()
		} else {
			d.silence = true
		}
	}
}

func (d *dmc) output() uint8 {
	return d.level
}
