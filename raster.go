package hyqcore

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// HeadRaster exposes a model's head snapshots as a multi-band raster for
// export and plotting collaborators: one band per snapshot, float64 cells,
// north-up geotransform.
type HeadRaster struct {
	grid  GridDescriptor
	snaps []Snapshot
}

// NewHeadRaster captures the current results of m.
func NewHeadRaster(m *Model) (*HeadRaster, error) {
	g, err := m.Grid()
	if err != nil {
		return nil, err
	}
	return &HeadRaster{grid: g, snaps: m.Results()}, nil
}

func (r *HeadRaster) Shape() (rows, cols int) {
	return r.grid.Shape()
}

func (r *HeadRaster) Transform() Affine {
	return r.grid.Transform()
}

// CRS is passed through unvalidated.
func (r *HeadRaster) CRS() string {
	return r.grid.CRS
}

func (r *HeadRaster) Bands() int {
	return len(r.snaps)
}

// Band returns the head field of band i (0-based).
func (r *HeadRaster) Band(i int) (*mat.Dense, error) {
	if i < 0 || i >= len(r.snaps) {
		return nil, fmt.Errorf("%w: band %d of %d", ErrSnapshotRange, i, len(r.snaps))
	}
	return r.snaps[i].Head, nil
}

func (r *HeadRaster) Label(i int) string {
	if i < 0 || i >= len(r.snaps) {
		return ""
	}
	return "H at t = " + strconv.FormatFloat(r.snaps[i].Time, 'g', -1, 64)
}

// Rows flattens band i into row-major nested slices.
func (r *HeadRaster) Rows(i int) ([][]float64, error) {
	b, err := r.Band(i)
	if err != nil {
		return nil, err
	}
	rows, _ := b.Dims()
	out := make([][]float64, rows)
	for k := 0; k < rows; k++ {
		out[k] = mat.Row(nil, k, b)
	}
	return out, nil
}
