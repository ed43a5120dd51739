// Package audio decodes uploaded recordings into mono waveforms.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voice-stress/pkg/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio contains no samples")
	ErrFileNotFound      = errors.New("file path does not exist")
)

// Decoder turns one encoded container into a mono waveform.
type Decoder interface {
	Decode(r io.Reader) (*models.Waveform, error)
}

// Registry selects a decoder by file extension and enforces the set of
// extensions callers are allowed to submit.
type Registry struct {
	decoders map[string]Decoder
	allowed  map[string]bool
}

// NewRegistry registers every built-in decoder and allows the given
// extensions. An empty list allows everything registered.
func NewRegistry(allowed []string) *Registry {
	r := &Registry{
		decoders: map[string]Decoder{
			".opus": OpusDecoder{},
			".wav":  WAVDecoder{},
		},
		allowed: make(map[string]bool),
	}
	for _, ext := range allowed {
		r.allowed[normalizeExt(ext)] = true
	}
	if len(r.allowed) == 0 {
		for ext := range r.decoders {
			r.allowed[ext] = true
		}
	}
	return r
}

func (r *Registry) Register(ext string, d Decoder) {
	r.decoders[normalizeExt(ext)] = d
}

// Allowed lists accepted extensions in sorted order.
func (r *Registry) Allowed() []string {
	out := make([]string, 0, len(r.allowed))
	for ext := range r.allowed {
		if _, ok := r.decoders[ext]; ok {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// Check validates the extension of filename without decoding anything.
func (r *Registry) Check(filename string) error {
	ext := normalizeExt(filepath.Ext(filename))
	if !r.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if _, ok := r.decoders[ext]; !ok {
		return fmt.Errorf("%w: no decoder for %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

func (r *Registry) Decode(filename string, src io.Reader) (*models.Waveform, error) {
	if err := r.Check(filename); err != nil {
		return nil, err
	}
	w, err := r.decoders[normalizeExt(filepath.Ext(filename))].Decode(src)
	if err != nil {
		return nil, err
	}
	if len(w.Samples) == 0 {
		return nil, ErrEmptyAudio
	}
	return w, nil
}

func (r *Registry) DecodeFile(path string) (*models.Waveform, error) {
	if err := r.Check(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()
	return r.Decode(path, f)
}

// IsInputError reports whether err was caused by the caller's input rather
// than by the decoder itself.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrInvalidWAV)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// downmix averages interleaved channels into one.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
