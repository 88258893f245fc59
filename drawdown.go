package hyqcore

import (
	"gonum.org/v1/gonum/mat"
)

// DrawdownField evaluates the drawdown of a single well at time t on every cell
// of h0. For unconfined aquifers the correction uses the undisturbed head h0 of
// the cell, never the running head of a superposition.
func DrawdownField(h0 *mat.Dense, t float64, w *Well, aq AquiferParams, n int) *mat.Dense {
	rows, cols := h0.Dims()
	s := mat.NewDense(rows, cols, nil)
	s.Apply(func(i, j int, _ float64) float64 {
		v := ConfinedDrawdown(w.Q, aq.T, w.distances.At(i, j), aq.S, t, n)
		if !aq.Confined {
			v = UnconfinedCorrection(v, h0.At(i, j))
		}
		return v
	}, s)
	return s
}
