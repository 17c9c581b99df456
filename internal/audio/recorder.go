package audio

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const (
	recordBitDepth = 16
	wavFormatPCM   = 1
)

// Recorder writes samples in [0, 1] to a 16-bit mono PCM WAV file.
type Recorder struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples int
	closed  bool
}

// NewRecorder creates (or truncates) path.
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "audio: create recording")
	}
	return &Recorder{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, recordBitDepth, 1, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: recordBitDepth,
		},
	}, nil
}

// Write appends samples to the recording.
func (r *Recorder) Write(samples []float32) error {
	if r.closed {
		return errors.New("audio: recorder closed")
	}
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = toPCM16(s)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return errors.Wrap(err, "audio: write recording")
	}
	r.samples += len(samples)
	return nil
}

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int {
	return r.samples
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.enc.Close(); err != nil {
		r.file.Close()
		return errors.Wrap(err, "audio: finish recording")
	}
	return r.file.Close()
}

func toPCM16(s float32) int {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return int(s * 32767)
}
