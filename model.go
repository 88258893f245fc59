package hyqcore

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Stage int

const (
	Uninitialized Stage = iota
	GridSet
	Ready
	HasResults
)

func (s Stage) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case GridSet:
		return "grid-set"
	case Ready:
		return "ready"
	case HasResults:
		return "has-results"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Snapshot is the aquifer head at one evaluated time.
type Snapshot struct {
	Time float64
	Head *mat.Dense
}

// Model superposes Theis drawdown of its wells onto a uniform initial head.
//
// Setup order is SetGrid, SetAquiferParams, then AddWells and SetTimesteps in
// any order, then Run. A Model is not safe for concurrent use.
type Model struct {
	// Terms is the series length used for W(u).
	Terms int
	// Workers bounds the goroutines evaluating (timestep, well) pairs. Values
	// below 2 evaluate sequentially.
	Workers int

	grid       *GridDescriptor
	aquifer    *AquiferParams
	h0         *mat.Dense
	originDist *mat.Dense
	wells      []*Well
	ids        map[string]struct{}
	timesteps  []float64
	results    []Snapshot
	ran        bool
}

func NewModel() *Model {
	return &Model{
		Terms:   DefaultTerms,
		Workers: 1,
		ids:     make(map[string]struct{}),
	}
}

func (m *Model) Stage() Stage {
	switch {
	case m.grid == nil:
		return Uninitialized
	case m.aquifer == nil:
		return GridSet
	case !m.ran:
		return Ready
	}
	return HasResults
}

func (m *Model) require(op string, need Stage) error {
	if st := m.Stage(); st < need {
		return &StageError{Op: op, Stage: st, Need: need}
	}
	return nil
}

// SetGrid defines the spatial discretization. Reconfiguring the grid of a
// populated model recomputes every cached well distance field, rebuilds the
// initial head to the new shape and discards previous results.
func (m *Model) SetGrid(xMin, yMax, lenX, lenY, resX, resY float64, crs string) error {
	g, err := NewGridDescriptor(xMin, yMax, lenX, lenY, resX, resY, crs)
	if err != nil {
		return err
	}
	m.grid = &g
	m.originDist = OriginDistanceField(g)
	for _, w := range m.wells {
		w.distances = DistanceField(w.X, w.Y, g)
		w.drawdown = nil
	}
	if m.aquifer != nil {
		m.h0 = uniformField(g, m.aquifer.H0)
	}
	m.resetResults()
	return nil
}

// SetAquiferParams stores the aquifer properties and creates the uniform
// initial head field. It requires a grid.
func (m *Model) SetAquiferParams(h0, t, s, thickness float64, confined bool) error {
	if err := m.require("SetAquiferParams", GridSet); err != nil {
		return err
	}
	aq, err := NewAquiferParams(h0, t, s, thickness, confined)
	if err != nil {
		return err
	}
	m.aquifer = &aq
	m.h0 = uniformField(*m.grid, h0)
	m.resetResults()
	return nil
}

// AddWells registers wells in order and caches their distance fields against
// the current grid. Either every well is accepted or none is.
func (m *Model) AddWells(wells ...*Well) error {
	if err := m.require("AddWells", GridSet); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(wells))
	for _, w := range wells {
		if err := w.Validate(); err != nil {
			return err
		}
		if w.owner != nil && w.owner != m {
			return fmt.Errorf("%w: %s", ErrWellRegistered, w.ID)
		}
		if _, dup := m.ids[w.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateWell, w.ID)
		}
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateWell, w.ID)
		}
		seen[w.ID] = struct{}{}
	}

	for _, w := range wells {
		w.owner = m
		w.distances = DistanceField(w.X, w.Y, *m.grid)
		w.drawdown = nil
		m.ids[w.ID] = struct{}{}
		m.wells = append(m.wells, w)
	}
	return nil
}

// SetTimesteps stores the times (seconds since pumping started) to evaluate.
func (m *Model) SetTimesteps(ts []float64) error {
	for _, t := range ts {
		if !finite(t) || t <= 0 {
			return &ParameterError{Name: "timestep", Value: t, Reason: "must be positive"}
		}
	}
	m.timesteps = append([]float64(nil), ts...)
	return nil
}

// Run evaluates every timestep and replaces the result sequence.
func (m *Model) Run() error {
	snaps, err := m.evaluate("Run")
	if err != nil {
		return err
	}
	m.results = snaps
	m.ran = true
	return nil
}

// Extend evaluates every timestep and appends the snapshots to the existing
// result sequence.
func (m *Model) Extend() error {
	snaps, err := m.evaluate("Extend")
	if err != nil {
		return err
	}
	m.results = append(m.results, snaps...)
	m.ran = true
	return nil
}

// evaluate computes one head snapshot per timestep. Each snapshot starts from
// H0; wells are subtracted in registration order. Nothing is stored on the
// model until every snapshot is complete.
func (m *Model) evaluate(op string) ([]Snapshot, error) {
	if err := m.require(op, Ready); err != nil {
		return nil, err
	}
	terms := m.Terms
	if terms <= 0 {
		terms = DefaultTerms
	}

	fields := drawdownFields(m.h0, m.timesteps, m.wells, *m.aquifer, terms, m.Workers)

	for k, t := range m.timesteps {
		for i, s := range fields[k] {
			if !finiteField(s) {
				return nil, fmt.Errorf("%w: well %s at t = %g", ErrNumerical, m.wells[i].ID, t)
			}
		}
	}

	snaps := make([]Snapshot, len(m.timesteps))
	for k, t := range m.timesteps {
		h := mat.DenseCopyOf(m.h0)
		for _, s := range fields[k] {
			h.Sub(h, s)
		}
		snaps[k] = Snapshot{Time: t, Head: h}
	}
	if last := len(fields) - 1; last >= 0 {
		for i, w := range m.wells {
			w.drawdown = fields[last][i]
		}
	}
	return snaps, nil
}

func finiteField(d *mat.Dense) bool {
	rows, _ := d.Dims()
	for i := 0; i < rows; i++ {
		for _, v := range d.RawRowView(i) {
			if !finite(v) {
				return false
			}
		}
	}
	return true
}

func (m *Model) resetResults() {
	m.results = nil
	m.ran = false
}

// Grid returns the current grid descriptor.
func (m *Model) Grid() (GridDescriptor, error) {
	if m.grid == nil {
		return GridDescriptor{}, &StageError{Op: "Grid", Stage: m.Stage(), Need: GridSet}
	}
	return *m.grid, nil
}

func (m *Model) Aquifer() (AquiferParams, error) {
	if m.aquifer == nil {
		return AquiferParams{}, &StageError{Op: "Aquifer", Stage: m.Stage(), Need: Ready}
	}
	return *m.aquifer, nil
}

func (m *Model) Wells() []*Well {
	return append([]*Well(nil), m.wells...)
}

func (m *Model) Timesteps() []float64 {
	return append([]float64(nil), m.timesteps...)
}

func (m *Model) InitialHead() *mat.Dense {
	return m.h0
}

func (m *Model) OriginDistances() *mat.Dense {
	return m.originDist
}

// Results returns the head snapshots in evaluation order.
func (m *Model) Results() []Snapshot {
	return append([]Snapshot(nil), m.results...)
}

// Drawdown returns H0 - H for the k-th snapshot.
func (m *Model) Drawdown(k int) (*mat.Dense, error) {
	if k < 0 || k >= len(m.results) {
		return nil, fmt.Errorf("%w: %d of %d", ErrSnapshotRange, k, len(m.results))
	}
	var d mat.Dense
	d.Sub(m.h0, m.results[k].Head)
	return &d, nil
}

// Hydrograph returns the head at the cell nearest to (x, y) for every snapshot.
func (m *Model) Hydrograph(x, y float64) ([]float64, error) {
	if m.grid == nil {
		return nil, &StageError{Op: "Hydrograph", Stage: m.Stage(), Need: GridSet}
	}
	i, j := m.grid.NearestCell(x, y)
	out := make([]float64, len(m.results))
	for k, s := range m.results {
		out[k] = s.Head.At(i, j)
	}
	return out, nil
}

func uniformField(g GridDescriptor, v float64) *mat.Dense {
	rows, cols := g.Shape()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(rows, cols, data)
}
