//go:build !headless

package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
)

// Player plays a Stream on the default output device as mono float32.
type Player struct {
	ctx       *oto.Context
	player    *oto.Player
	stream    *Stream
	sampleBuf []float32
	started   bool
	mutex     sync.Mutex
}

// NewPlayer opens the output device at sampleRate. Only one oto context may
// exist per process.
func NewPlayer(sampleRate int, stream *Stream) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrap(err, "audio: open device")
	}
	<-ready

	p := &Player{
		ctx:       ctx,
		stream:    stream,
		sampleBuf: make([]float32, 1024),
	}
	p.player = ctx.NewPlayer(p)
	return p, nil
}

// Read implements io.Reader for the oto player. It runs on oto's goroutine.
func (p *Player) Read(b []byte) (int, error) {
	numSamples := len(b) / 4
	if len(p.sampleBuf) < numSamples {
		p.sampleBuf = make([]float32, numSamples)
	}
	samples := p.sampleBuf[:numSamples]
	p.stream.Read(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return numSamples * 4, nil
}

// Start begins playback.
func (p *Player) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

// Stop pauses playback. Queued samples stay in the stream.
func (p *Player) Stop() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started && p.player != nil {
		p.player.Pause()
		p.started = false
	}
}

// Close releases the device player.
func (p *Player) Close() error {
	p.Stop()
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}

// IsStarted reports whether the player is running.
func (p *Player) IsStarted() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.started
}
