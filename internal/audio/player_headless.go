//go:build headless

package audio

// Player discards audio in headless builds.
type Player struct {
	stream  *Stream
	started bool
}

func NewPlayer(sampleRate int, stream *Stream) (*Player, error) {
	return &Player{stream: stream}, nil
}

func (p *Player) Read(b []byte) (int, error) {
	return len(b), nil
}

func (p *Player) Start() {
	p.started = true
}

func (p *Player) Stop() {
	p.started = false
}

func (p *Player) Close() error {
	p.started = false
	return nil
}

func (p *Player) IsStarted() bool {
	return p.started
}
