package features

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// onsetStrength is the spectral flux of the dB mel spectrogram: the mean
// positive band-wise increase from the previous frame.
func onsetStrength(melDB [][]float64) []float64 {
	env := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		prev, cur := melDB[t-1], melDB[t]
		var sum float64
		for b := range cur {
			if d := cur[b] - prev[b]; d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(cur))
	}
	return env
}

// estimateTempo picks the autocorrelation lag of the onset envelope that
// best agrees with a log-normal prior around StartBPM. A flat envelope has
// no rhythm and yields 0.
func (e *Extractor) estimateTempo(env []float64, sampleRate int) float64 {
	if len(env) < 2 {
		return 0
	}
	var peak float64
	for _, v := range env {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return 0
	}

	framesPerMinute := 60 * float64(sampleRate) / float64(e.cfg.HopLength)
	lagMin := int(math.Ceil(framesPerMinute / e.cfg.MaxTempo))
	if lagMin < 1 {
		lagMin = 1
	}
	lagMax := int(math.Floor(framesPerMinute / e.cfg.MinTempo))
	if lagMax > len(env)-1 {
		lagMax = len(env) - 1
	}
	if lagMin > lagMax {
		return 0
	}

	ac := autocorrelate(env, lagMax)
	if ac[0] <= 0 {
		return 0
	}

	best, bestScore := 0.0, math.Inf(-1)
	for lag := lagMin; lag <= lagMax; lag++ {
		bpm := framesPerMinute / float64(lag)
		norm := ac[lag] / ac[0]
		if norm < 0 {
			norm = 0
		}
		prior := math.Log2(bpm / e.cfg.StartBPM)
		score := math.Log1p(1e6*norm) - 0.5*prior*prior
		if score > bestScore {
			best, bestScore = bpm, score
		}
	}
	return best
}

func autocorrelate(x []float64, maxLag int) []float64 {
	size := nextPow2(2 * len(x))
	buf := make([]float64, size)
	copy(buf, x)

	spec := fft.FFTReal(buf)
	for i, v := range spec {
		m := cmplx.Abs(v)
		spec[i] = complex(m*m, 0)
	}
	r := fft.IFFT(spec)

	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(r[i])
	}
	return out
}
