package apu

// SampleRing is a bounded FIFO of output samples. When full, the oldest
// sample is dropped. It is not safe for concurrent use; audio.Stream wraps
// it for the device goroutine.
type SampleRing struct {
	buf   []float32
	head  int
	count int
	last  float32
}

// NewSampleRing creates a ring holding up to size samples.
func NewSampleRing(size int) *SampleRing {
	if size <= 0 {
		size = defaultBufSize
	}
	return &SampleRing{buf: make([]float32, size)}
}

// Push queues s.
func (r *SampleRing) Push(s float32) {
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		r.count--
	}
	r.buf[(r.head+r.count)%len(r.buf)] = s
	r.count++
}

// Read fills dst and returns how many queued samples were used. On underrun
// the rest of dst repeats the last sample read.
func (r *SampleRing) Read(dst []float32) int {
	n := 0
	for ; n < len(dst) && r.count > 0; n++ {
		r.last = r.buf[r.head]
		dst[n] = r.last
		r.head = (r.head + 1) % len(r.buf)
		r.count--
	}
	for i := n; i < len(dst); i++ {
		dst[i] = r.last
	}
	return n
}

// Len returns the number of queued samples.
func (r *SampleRing) Len() int {
	return r.count
}

// Clear drops queued samples and resets the held value to silence.
func (r *SampleRing) Clear() {
	r.head, r.count, r.last = 0, 0, 0
}
