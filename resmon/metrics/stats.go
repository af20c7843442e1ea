package metrics

import "math"

// Stat is the statistical reduction of one scalar field over repeated runs.
type Stat struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

// NewStat computes mean/min/max/sample-stddev (N−1 denominator) over values.
// Fewer than two values yield a zero stddev; an empty input yields a zero Stat.
func NewStat(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}
	s := Stat{Min: values[0], Max: values[0]}
	for _, v := range values {
		s.Mean += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	n := float64(len(values))
	s.Mean /= n

	if len(values) > 1 {
		var ss float64
		for _, v := range values {
			d := v - s.Mean
			ss += d * d
		}
		s.StdDev = math.Sqrt(ss / (n - 1))
	}
	return s
}
