package hyqcore

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxCells bounds rows·cols of a grid; every field of the model holds one
// float64 per cell.
const MaxCells = 1 << 26

// GridDescriptor is the spatial discretization of a model. (XMin, YMax) is the
// upper-left world coordinate; rows run southwards, columns eastwards.
type GridDescriptor struct {
	XMin float64
	YMax float64
	LenX float64
	LenY float64
	ResX float64
	ResY float64
	// CRS is an opaque reference tag handed through to exporters.
	CRS string
}

// Affine is a GDAL-ordered geotransform: x = C + j·A, y = F + i·E.
type Affine [6]float64

func NewGridDescriptor(xMin, yMax, lenX, lenY, resX, resY float64, crs string) (GridDescriptor, error) {
	for _, p := range []struct {
		name string
		v    float64
	}{{"x_min", xMin}, {"y_max", yMax}} {
		if !finite(p.v) {
			return GridDescriptor{}, &ParameterError{Name: p.name, Value: p.v, Reason: "must be finite"}
		}
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"len_x", lenX}, {"len_y", lenY}, {"res_x", resX}, {"res_y", resY}} {
		if !finite(p.v) || p.v <= 0 {
			return GridDescriptor{}, &ParameterError{Name: p.name, Value: p.v, Reason: "must be positive"}
		}
	}
	rows, cols := math.Ceil(lenY/resY), math.Ceil(lenX/resX)
	for _, p := range []struct {
		name string
		v    float64
	}{{"len_y/res_y", rows}, {"len_x/res_x", cols}} {
		if !finite(p.v) || p.v < 1 || p.v > MaxCells {
			return GridDescriptor{}, &ParameterError{Name: p.name, Value: p.v, Reason: fmt.Sprintf("must give between 1 and %d cells", MaxCells)}
		}
	}
	if rows*cols > MaxCells {
		return GridDescriptor{}, &ParameterError{Name: "rows*cols", Value: rows * cols, Reason: fmt.Sprintf("must not exceed %d cells", MaxCells)}
	}
	return GridDescriptor{
		XMin: xMin,
		YMax: yMax,
		LenX: lenX,
		LenY: lenY,
		ResX: resX,
		ResY: resY,
		CRS:  crs,
	}, nil
}

func (g GridDescriptor) Rows() int {
	return int(math.Ceil(g.LenY / g.ResY))
}

func (g GridDescriptor) Cols() int {
	return int(math.Ceil(g.LenX / g.ResX))
}

func (g GridDescriptor) Shape() (rows, cols int) {
	return g.Rows(), g.Cols()
}

// CellToWorld maps cell (row i, col j) to its world coordinate.
func (g GridDescriptor) CellToWorld(i, j int) (x, y float64) {
	return g.XMin + float64(j)*g.ResX, g.YMax - float64(i)*g.ResY
}

// WorldToCell is the inverse of CellToWorld, flooring to the containing cell.
// ok is false when the coordinate falls outside the grid.
func (g GridDescriptor) WorldToCell(x, y float64) (i, j int, ok bool) {
	i = int(math.Floor((g.YMax - y) / g.ResY))
	j = int(math.Floor((x - g.XMin) / g.ResX))
	rows, cols := g.Shape()
	if i < 0 || j < 0 || i >= rows || j >= cols {
		return i, j, false
	}
	return i, j, true
}

// NearestCell returns the cell whose coordinate is closest to (x, y), clamped
// to the grid.
func (g GridDescriptor) NearestCell(x, y float64) (i, j int) {
	rows, cols := g.Shape()
	i = clamp(int(math.Round((g.YMax-y)/g.ResY)), 0, rows-1)
	j = clamp(int(math.Round((x-g.XMin)/g.ResX)), 0, cols-1)
	return i, j
}

func (g GridDescriptor) Transform() Affine {
	return Affine{g.XMin, g.ResX, 0, g.YMax, 0, -g.ResY}
}

// DistanceField returns the Euclidean distance from (x, y) to every cell.
func DistanceField(x, y float64, g GridDescriptor) *mat.Dense {
	rows, cols := g.Shape()
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cx, cy := g.CellToWorld(i, j)
			d.Set(i, j, math.Hypot(cx-x, cy-y))
		}
	}
	return d
}

// OriginDistanceField is the distance of every cell from the grid origin.
func OriginDistanceField(g GridDescriptor) *mat.Dense {
	return DistanceField(g.XMin, g.YMax, g)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
