package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAV_RoundTrip(t *testing.T) {
	samples := sineSamples(1000)
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, samples, 16000))
	assert.Equal(t, 44+2*len(samples), buf.Len())

	w, err := NewRegistry(nil).Decode("clip.wav", &buf)
	require.NoError(t, err)
	assert.Equal(t, 16000, w.SampleRate)
	require.Len(t, w.Samples, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], w.Samples[i], 1.0/16384)
	}
}

func TestEncodeWAV_Clips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, []float64{2, -2}, 8000))

	w, err := WAVDecoder{}.Decode(&buf)
	require.NoError(t, err)
	assert.InDelta(t, 1, w.Samples[0], 1e-4)
	assert.InDelta(t, -1, w.Samples[1], 1e-4)
}

// rawWAV assembles a WAV file by hand, with an extra chunk before the data.
func rawWAV(t *testing.T, format, channels, bits uint16, rate uint32, payload []byte) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString("WAVE")

	body.WriteString("fmt ")
	require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(16)))
	blockAlign := channels * bits / 8
	require.NoError(t, binary.Write(&body, binary.LittleEndian, wavFormat{
		AudioFormat:   format,
		NumChannels:   channels,
		SampleRate:    rate,
		ByteRate:      rate * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bits,
	}))

	// odd-sized chunk exercises the pad byte
	body.WriteString("LIST")
	require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(3)))
	body.Write([]byte{'a', 'b', 'c', 0})

	body.WriteString("data")
	require.NoError(t, binary.Write(&body, binary.LittleEndian, uint32(len(payload))))
	body.Write(payload)

	var out bytes.Buffer
	out.WriteString("RIFF")
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint32(body.Len())))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestWAVDecoder_StereoPCM(t *testing.T) {
	var payload bytes.Buffer
	require.NoError(t, binary.Write(&payload, binary.LittleEndian, []int16{16384, 0, -16384, -16384}))

	w, err := WAVDecoder{}.Decode(bytes.NewReader(rawWAV(t, wavFormatPCM, 2, 16, 22050, payload.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, 22050, w.SampleRate)
	assert.Equal(t, []float64{0.25, -0.5}, w.Samples)
}

func TestWAVDecoder_Float32(t *testing.T) {
	var payload bytes.Buffer
	require.NoError(t, binary.Write(&payload, binary.LittleEndian, []float32{0.5, -0.125, 1}))

	w, err := WAVDecoder{}.Decode(bytes.NewReader(rawWAV(t, wavFormatFloat, 1, 32, 44100, payload.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.125, 1}, w.Samples)
}

func TestWAVDecoder_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not riff", []byte("OggS0000000000000000"), ErrInvalidWAV},
		{"no chunks", []byte("RIFF\x04\x00\x00\x00WAVE"), ErrInvalidWAV},
		{"8-bit pcm", rawWAV(t, wavFormatPCM, 1, 8, 8000, []byte{1, 2}), ErrUnsupportedFormat},
		{"zero rate", rawWAV(t, wavFormatPCM, 1, 16, 0, []byte{1, 2}), ErrInvalidWAV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WAVDecoder{}.Decode(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestRegistry_DecodeEmptyWAV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, nil, 8000))

	_, err := NewRegistry(nil).Decode("empty.wav", &buf)
	assert.ErrorIs(t, err, ErrEmptyAudio)
}
