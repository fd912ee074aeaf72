// Package ta holds the price series math behind the market risk metrics.
package ta

import (
	"math"
	"sort"
)

// Returns gives simple period-over-period returns. Steps from a
// non-positive close are skipped.
func Returns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			out = append(out, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	return out
}

func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// StdDev is the population (zero ddof) standard deviation; 0 for an empty
// series.
func StdDev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := Mean(vals)
	s := 0.0
	for _, v := range vals {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(vals)))
}

// Percentile interpolates linearly between the closest ranks. p is in
// [0, 100].
func Percentile(vals []float64, p float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction.
func MaxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	peak := closes[0]
	maxDD := 0.0
	for _, p := range closes {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// CompoundedGrowth multiplies (1+r) over every return whose magnitude is
// below maxMove and reports how many returns were used.
func CompoundedGrowth(closes []float64, maxMove float64) (growth float64, n int) {
	growth = 1.0
	for i := 1; i < len(closes); i++ {
		r := closes[i]/closes[i-1] - 1
		if math.Abs(r) < maxMove {
			growth *= 1 + r
			n++
		}
	}
	return growth, n
}
