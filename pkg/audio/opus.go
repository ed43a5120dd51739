package audio

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"voice-stress/pkg/models"
)

// opusRate is the fixed output rate of libopusfile.
const opusRate = 48000

// OpusDecoder reads Ogg/Opus files. Recordings are expected to be mono
// voice notes; libopusfile does not report the channel count through the
// binding, so multi-channel streams are read as if interleaved mono.
type OpusDecoder struct{}

func (OpusDecoder) Decode(r io.Reader) (*models.Waveform, error) {
	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opus stream: %v", ErrUnsupportedFormat, err)
	}
	defer stream.Close()

	// 120 ms, the largest Opus frame
	buf := make([]float32, opusRate*120/1000)
	var samples []float64
	for {
		n, err := stream.ReadFloat32(buf)
		for _, s := range buf[:n] {
			samples = append(samples, float64(s))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode opus: %w", err)
		}
	}

	return &models.Waveform{Samples: samples, SampleRate: opusRate}, nil
}
