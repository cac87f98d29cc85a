package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the magnitude of the first n/2+1 frequency bins of a
// series after removing its mean. Bin k corresponds to a period of n/k time
// steps. Non-finite values are replaced by the mean.
func PowerSpectrum(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	mean := Describe(values).Mean

	centered := make([]float64, len(values))
	for i, v := range values {
		if finite(v) {
			centered[i] = v - mean
		}
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, len(values)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantPeriod returns the period, in time steps, of the strongest
// non-constant frequency bin. ok is false for flat or too short series.
func DominantPeriod(values []float64) (period float64, ok bool) {
	ps := PowerSpectrum(values)
	best := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > ps[best] || best == 0 {
			best = k
		}
	}
	if best == 0 || ps[best] < 1e-9 {
		return 0, false
	}
	return float64(len(values)) / float64(best), true
}
