package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"voice-stress/pkg/models"
)

var ErrInvalidWAV = errors.New("invalid WAV data")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WAVDecoder reads RIFF/WAVE files holding 16-bit PCM or 32-bit float
// samples, downmixing to mono.
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.Reader) (*models.Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format = &wavFormat{}
			if err := binary.Read(bytes.NewReader(data[body:body+16]), binary.LittleEndian, format); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		case "data":
			payload = data[body:end]
		}
		// chunks are word aligned
		off = body + size + size%2
	}
	if format == nil || payload == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: zero channels or sample rate", ErrInvalidWAV)
	}

	var interleaved []float64
	switch {
	case format.AudioFormat == wavFormatPCM && format.BitsPerSample == 16:
		interleaved = make([]float64, len(payload)/2)
		const scale = 1.0 / 32768.0
		for i := range interleaved {
			interleaved[i] = float64(int16(binary.LittleEndian.Uint16(payload[2*i:]))) * scale
		}
	case format.AudioFormat == wavFormatFloat && format.BitsPerSample == 32:
		interleaved = make([]float64, len(payload)/4)
		for i := range interleaved {
			interleaved[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:])))
		}
	default:
		return nil, fmt.Errorf("%w: WAV format %d with %d bits per sample",
			ErrUnsupportedFormat, format.AudioFormat, format.BitsPerSample)
	}

	return &models.Waveform{
		Samples:    downmix(interleaved, int(format.NumChannels)),
		SampleRate: int(format.SampleRate),
	}, nil
}

// EncodeWAV writes mono samples as 16-bit PCM. Samples are clipped to
// [-1, 1].
func EncodeWAV(w io.Writer, samples []float64, sampleRate int) error {
	dataSize := uint32(len(samples) * 2)
	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		Fmt           wavFormat
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		Fmt: wavFormat{
			AudioFormat:   wavFormatPCM,
			NumChannels:   1,
			SampleRate:    uint32(sampleRate),
			ByteRate:      uint32(sampleRate * 2),
			BlockAlign:    2,
			BitsPerSample: 16,
		},
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		pcm[i] = int16(math.Round(s * 32767))
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}
