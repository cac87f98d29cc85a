package analysis

import "math"

type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Final  float64
}

// Describe summarizes the finite values of a series. Count is zero and the
// other fields are NaN when there are none.
func Describe(values []float64) Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1), Final: math.NaN()}
	var sum, sumSq float64
	for _, v := range values {
		if !finite(v) {
			continue
		}
		s.Count++
		sum += v
		sumSq += v * v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Final = v
	}
	if s.Count == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN(), Final: math.NaN()}
	}
	n := float64(s.Count)
	s.Mean = sum / n
	s.StdDev = math.Sqrt(math.Max(sumSq/n-s.Mean*s.Mean, 0))
	return s
}

// SettlingStep returns the first index from which every finite value stays
// within band of the final one, or -1 for a series without finite values.
func SettlingStep(values []float64, band float64) int {
	final := Describe(values).Final
	if math.IsNaN(final) {
		return -1
	}
	settled := 0
	for i, v := range values {
		if finite(v) && math.Abs(v-final) > band {
			settled = i + 1
		}
	}
	return settled
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
