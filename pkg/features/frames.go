package features

import "math"

// frameStarts returns the start offsets of non-centered frames over n
// samples. A signal shorter than one frame still yields a single frame.
func frameStarts(n, frameLength, hop int) []int {
	if n == 0 {
		return nil
	}
	if n <= frameLength {
		return []int{0}
	}
	count := 1 + (n-frameLength)/hop
	starts := make([]int, count)
	for i := range starts {
		starts[i] = i * hop
	}
	return starts
}

// frameAt copies frameLength samples from start, zero-padding past the end.
func frameAt(x []float64, start, frameLength int) []float64 {
	f := make([]float64, frameLength)
	if start < len(x) {
		copy(f, x[start:])
	}
	return f
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// rms is the root-mean-square amplitude of every frame. Short final frames
// are averaged over the samples they actually contain.
func rms(x []float64, frameLength, hop int) []float64 {
	starts := frameStarts(len(x), frameLength, hop)
	out := make([]float64, len(starts))
	for i, s := range starts {
		end := s + frameLength
		if end > len(x) {
			end = len(x)
		}
		var sum float64
		for _, v := range x[s:end] {
			sum += v * v
		}
		out[i] = math.Sqrt(sum / float64(end-s))
	}
	return out
}
