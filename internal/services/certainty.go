package services

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// zScore returns the two-sided normal quantile for confidence, e.g. 1.96 for
// 0.95.
func zScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// WilsonLowerBound is the lower edge of the Wilson score interval for
// accepted successes out of displayed trials. It is 0 when nothing was shown.
func WilsonLowerBound(accepted, displayed int, confidence float64) float64 {
	if displayed <= 0 {
		return 0
	}
	if accepted > displayed {
		accepted = displayed
	}

	n := float64(displayed)
	p := float64(accepted) / n
	z := zScore(confidence)
	z2 := z * z

	centre := p + z2/(2*n)
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n))
	lower := (centre - margin) / (1 + z2/n)

	return math.Max(0, math.Min(1, lower))
}
