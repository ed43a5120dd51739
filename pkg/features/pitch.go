package features

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// silence is the mean-square level under which a frame is never voiced.
const silence = 1e-10

type pitchTrack struct {
	voiced []float64
	frames int
}

// trackPitch runs a YIN tracker (cumulative mean normalized difference)
// over the signal and keeps the F0 of voiced frames only.
func (e *Extractor) trackPitch(ctx context.Context, x []float64, sampleRate int) (pitchTrack, error) {
	sr := float64(sampleRate)
	minLag := int(math.Floor(sr / e.cfg.FMax))
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(math.Ceil(sr / e.cfg.FMin))

	frameLength := e.cfg.FrameLength
	if need := nextPow2(2*maxLag + 2); need > frameLength {
		frameLength = need
	}
	window := frameLength - maxLag
	hop := frameLength / 4

	starts := frameStarts(len(x), frameLength, hop)
	track := pitchTrack{frames: len(starts)}

	for i, s := range starts {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return pitchTrack{}, err
			}
		}
		frame := frameAt(x, s, frameLength)
		f0, ok := yin(frame, window, minLag, maxLag, sr, e.cfg.VoicingThreshold)
		if !ok || f0 < e.cfg.FMin || f0 > e.cfg.FMax {
			continue
		}
		track.voiced = append(track.voiced, f0)
	}
	return track, nil
}

// yin estimates the fundamental of one frame. frame must hold at least
// window+maxLag samples.
func yin(frame []float64, window, minLag, maxLag int, sr, threshold float64) (float64, bool) {
	prefix := make([]float64, len(frame)+1)
	for i, v := range frame {
		prefix[i+1] = prefix[i] + v*v
	}
	e0 := prefix[window]
	if e0/float64(window) < silence {
		return 0, false
	}

	acf := crossCorrelate(frame[:window], frame, maxLag)

	diff := make([]float64, maxLag+1)
	for tau := 1; tau <= maxLag; tau++ {
		et := prefix[tau+window] - prefix[tau]
		d := e0 + et - 2*acf[tau]
		if d < 0 {
			d = 0
		}
		diff[tau] = d
	}

	cmnd := make([]float64, maxLag+1)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau <= maxLag; tau++ {
		running += diff[tau]
		if running == 0 {
			cmnd[tau] = 1
			continue
		}
		cmnd[tau] = diff[tau] * float64(tau) / running
	}

	tau := -1
	for t := minLag; t <= maxLag; t++ {
		if cmnd[t] < threshold {
			for t+1 <= maxLag && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return 0, false
	}

	refined := float64(tau)
	if tau > 1 && tau < maxLag {
		a, b, c := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
		if den := a - 2*b + c; den != 0 {
			shift := 0.5 * (a - c) / den
			if math.Abs(shift) < 1 {
				refined += shift
			}
		}
	}
	return sr / refined, true
}

// crossCorrelate returns r[tau] = sum_j a[j]*b[j+tau] for tau in [0, maxLag].
func crossCorrelate(a, b []float64, maxLag int) []float64 {
	size := nextPow2(len(a) + len(b))
	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	fa := fft.FFTReal(pa)
	fb := fft.FFTReal(pb)
	for i := range fa {
		fa[i] = cmplx.Conj(fa[i]) * fb[i]
	}
	r := fft.IFFT(fa)

	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(r[i])
	}
	return out
}
