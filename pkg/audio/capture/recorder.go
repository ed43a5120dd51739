// Package capture records mono audio from the default input device.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"voice-stress/pkg/models"
)

const (
	SampleRate = 44100
	bufferSize = 4096
)

type Recorder struct {
	stream *portaudio.Stream
	buffer []float32
}

// NewRecorder initializes portaudio and opens a mono input stream. Close
// must be called to release the device.
func NewRecorder() (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	r := &Recorder{buffer: make([]float32, bufferSize)}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(r.buffer), r.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	r.stream = stream
	return r, nil
}

// Record blocks until d of audio has been captured or ctx is done.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (*models.Waveform, error) {
	total := int(d.Seconds() * SampleRate)
	samples := make([]float64, 0, total)

	if err := r.stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer r.stream.Stop()

	for len(samples) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.stream.Read(); err != nil {
			return nil, fmt.Errorf("failed to read audio stream: %w", err)
		}
		n := len(r.buffer)
		if remaining := total - len(samples); n > remaining {
			n = remaining
		}
		for _, s := range r.buffer[:n] {
			samples = append(samples, float64(s))
		}
	}

	return &models.Waveform{Samples: samples, SampleRate: SampleRate}, nil
}

func (r *Recorder) Close() error {
	var err error
	if r.stream != nil {
		err = r.stream.Close()
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
