package features

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	amin  = 1e-10
	topDB = 80.0
)

// melSpectrogramDB returns a [frames][bands] mel power spectrogram in dB
// (reference power 1, floored topDB below the peak).
func (e *Extractor) melSpectrogramDB(ctx context.Context, x []float64, sampleRate int) ([][]float64, error) {
	nfft := e.cfg.FrameLength
	starts := frameStarts(len(x), nfft, e.cfg.HopLength)
	if len(starts) == 0 {
		return nil, nil
	}

	win := window.Hann(nfft)
	bank := melFilterBank(sampleRate, nfft, e.cfg.MelBands)

	out := make([][]float64, len(starts))
	peak := math.Inf(-1)
	for i, s := range starts {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		frame := frameAt(x, s, nfft)
		for j := range frame {
			frame[j] *= win[j]
		}
		spec := fft.FFTReal(frame)
		power := make([]float64, nfft/2+1)
		for k := range power {
			m := cmplx.Abs(spec[k])
			power[k] = m * m
		}

		bands := make([]float64, len(bank))
		for b, filt := range bank {
			var sum float64
			for k, w := range filt {
				if w != 0 {
					sum += w * power[k]
				}
			}
			db := 10 * math.Log10(math.Max(amin, sum))
			bands[b] = db
			if db > peak {
				peak = db
			}
		}
		out[i] = bands
	}

	floor := peak - topDB
	for _, bands := range out {
		for b, v := range bands {
			if v < floor {
				bands[b] = floor
			}
		}
	}
	return out, nil
}

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp      = 200.0 / 3
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(f float64) float64 {
	if f < melMinLogHz {
		return f / melFSp
	}
	return melMinLog + math.Log(f/melMinLogHz)/melLogStep
}

func melToHz(m float64) float64 {
	if m < melMinLog {
		return m * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(m-melMinLog))
}

// melFilterBank builds area-normalized triangular filters spanning
// 0..sampleRate/2, one row per band over nfft/2+1 bins.
func melFilterBank(sampleRate, nfft, bands int) [][]float64 {
	bins := nfft/2 + 1
	fmax := float64(sampleRate) / 2

	lo, hi := hzToMel(0), hzToMel(fmax)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	bank := make([][]float64, bands)
	for b := range bank {
		row := make([]float64, bins)
		left, centre, right := edges[b], edges[b+1], edges[b+2]
		norm := 2 / (right - left)
		for k := range row {
			f := float64(k) * float64(sampleRate) / float64(nfft)
			up := (f - left) / (centre - left)
			down := (right - f) / (right - centre)
			w := math.Min(up, down)
			if w > 0 {
				row[k] = w * norm
			}
		}
		bank[b] = row
	}
	return bank
}

// mfcc applies an orthonormal DCT-II over the mel bands of every frame and
// returns [coeffs][frames].
func mfcc(melDB [][]float64, coeffs int) [][]float64 {
	out := make([][]float64, coeffs)
	for c := range out {
		out[c] = make([]float64, len(melDB))
	}
	if len(melDB) == 0 {
		return out
	}

	n := len(melDB[0])
	basis := make([][]float64, coeffs)
	for c := range basis {
		scale := math.Sqrt(2 / float64(n))
		if c == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(c)*(2*float64(i)+1)/(2*float64(n)))
		}
		basis[c] = row
	}

	for t, bands := range melDB {
		for c, row := range basis {
			var sum float64
			for i, v := range bands {
				sum += row[i] * v
			}
			out[c][t] = sum
		}
	}
	return out
}
