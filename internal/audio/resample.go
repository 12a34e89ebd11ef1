package audio

import "math"

// Resample converts mono float32 samples from one sample rate to another
// using linear interpolation. If fromRate == toRate the input is returned
// unchanged. The function is pure: identical inputs always produce
// identical outputs, which matters because capture hardware may silently
// deliver a different rate than requested.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	outLen := int(math.Round(float64(len(samples)) * ratio))
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	last := len(samples) - 1
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		if idx >= last {
			// Clamp at the buffer tail so we never read out of bounds.
			out[i] = samples[last]
			continue
		}
		frac := float32(srcPos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// RMS calculates the root mean square energy of audio samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
