package hyqcore

import (
	"math"
)

const (
	// DefaultTerms is the number of series terms used for W(u).
	DefaultTerms = 30
	// MinDistance replaces non-positive distances so u stays finite at the well itself.
	MinDistance = 0.01
	EulerGamma  = 0.5772
)

// DimensionlessTimeParameter returns the Theis parameter u = r²S / (4Tt).
// T and t must be positive; the model validates both before calling in.
func DimensionlessTimeParameter(r, S, T, t float64) float64 {
	if r <= 0 {
		r = MinDistance
	}
	return (r * r * S) / (4 * T * t)
}

// WellFunction evaluates the Theis well function W(u) with n series terms
// (indices 2..n+1). The series loses accuracy for u above ~1 and overflows
// to NaN for very large u; Model.Run reports that as ErrNumerical.
func WellFunction(u float64, n int) float64 {
	w := -EulerGamma - math.Log(u) + u

	pow, fact := u, 1.0
	for i := 2; i < n+2; i++ {
		pow *= u
		fact *= float64(i)
		term := pow / (float64(i) * fact)
		if i%2 == 0 {
			w -= term
		} else {
			w += term
		}
	}
	return w
}

// ConfinedDrawdown is the Theis drawdown s = Q/(4πT)·W(u) at distance r and time t.
func ConfinedDrawdown(Q, T, r, S, t float64, n int) float64 {
	u := DimensionlessTimeParameter(r, S, T, t)
	return (Q / (4 * math.Pi * T)) * WellFunction(u, n)
}

// UnconfinedCorrection applies the Jacob correction s' = s - s²/(2H) for a free
// water table of saturated height H.
func UnconfinedCorrection(s, H float64) float64 {
	return s - (s*s)/(2*H)
}
