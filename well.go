package hyqcore

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Well is a pumping well. Q is in m³/s, positive for extraction.
type Well struct {
	ID string
	X  float64
	Y  float64
	Q  float64

	owner     *Model
	distances *mat.Dense
	drawdown  *mat.Dense
}

func NewWell(id string, x, y, q float64) *Well {
	return &Well{ID: id, X: x, Y: y, Q: q}
}

func (w *Well) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: nil well", ErrInvalidWell)
	}
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidWell)
	}
	if !finite(w.X) || !finite(w.Y) {
		return fmt.Errorf("%w: %s has non-finite location (%v, %v)", ErrInvalidWell, w.ID, w.X, w.Y)
	}
	if !finite(w.Q) {
		return fmt.Errorf("%w: %s has non-finite pumping rate %v", ErrInvalidWell, w.ID, w.Q)
	}
	return nil
}

// Distances is the cached well-to-cell distance field, nil until registered.
func (w *Well) Distances() *mat.Dense {
	return w.distances
}

// Drawdown is the field computed for the last evaluated timestep.
func (w *Well) Drawdown() *mat.Dense {
	return w.drawdown
}
