// Package nmi models the NMI wire between the PPU and the CPU.
package nmi

// Setter is the PPU side of the line.
type Setter interface {
	Set()
}

// Handler is the CPU side of the line.
type Handler interface {
	Handle() bool
}

// Line is a single edge latch. The PPU raises it at vblank and the CPU
// consumes it when it polls before an instruction fetch.
type Line struct {
	pending bool
}

// New creates a lowered line.
func New() *Line {
	return &Line{}
}

// Set raises the line.
func (l *Line) Set() {
	l.pending = true
}

// Handle reports whether the line was raised and lowers it.
func (l *Line) Handle() bool {
	p := l.pending
	l.pending = false
	return p
}

// Pending reports the latch without consuming it.
func (l *Line) Pending() bool {
	return l.pending
}
