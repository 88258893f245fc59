package processing

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kacperjurak/hyqcore"
	"github.com/kacperjurak/hyqcore/internal/utils"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/metrics"
	"github.com/kacperjurak/hyqcore/pkg/models"
)

// ScenarioProcessor turns scenario requests into evaluated models.
type ScenarioProcessor struct {
	// Terms is the W(u) series length used when a request does not set one.
	Terms int
	// Workers bounds the goroutines of a single model run.
	Workers int
	// FitMethod is used when a fit request does not name one.
	FitMethod hyqcore.FitMethod
	// MaxCells caps rows·cols of a requested grid; zero means hyqcore.MaxCells.
	MaxCells int
}

func NewScenarioProcessor(terms, workers int, fitMethod string) *ScenarioProcessor {
	if terms <= 0 {
		terms = hyqcore.DefaultTerms
	}
	if workers <= 0 {
		workers = 1
	}
	if fitMethod == "" {
		fitMethod = string(hyqcore.NelderMead)
	}
	return &ScenarioProcessor{Terms: terms, Workers: workers, FitMethod: hyqcore.FitMethod(fitMethod)}
}

// Build sets up a model in the order the engine requires: grid, aquifer,
// wells, timesteps.
func (p *ScenarioProcessor) Build(req *models.ScenarioRequest) (*hyqcore.Model, error) {
	m := hyqcore.NewModel()
	m.Terms = p.Terms
	if req.Terms > 0 {
		m.Terms = req.Terms
	}
	m.Workers = p.Workers

	g := req.Grid
	gd, err := hyqcore.NewGridDescriptor(g.XMin, g.YMax, g.LenX, g.LenY, g.ResX, g.ResY, g.CRS)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if rows, cols := gd.Shape(); p.MaxCells > 0 && rows*cols > p.MaxCells {
		return nil, fmt.Errorf("grid: %w", &hyqcore.ParameterError{
			Name:   "rows*cols",
			Value:  float64(rows * cols),
			Reason: fmt.Sprintf("must not exceed %d cells", p.MaxCells),
		})
	}
	if err := m.SetGrid(g.XMin, g.YMax, g.LenX, g.LenY, g.ResX, g.ResY, g.CRS); err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	a := req.Aquifer
	if err := m.SetAquiferParams(a.H0, a.T, a.S, a.M, a.Confined); err != nil {
		return nil, fmt.Errorf("aquifer: %w", err)
	}
	wells := make([]*hyqcore.Well, len(req.Wells))
	for i, w := range req.Wells {
		wells[i] = hyqcore.NewWell(w.ID, w.X, w.Y, w.Q)
	}
	if err := m.AddWells(wells...); err != nil {
		return nil, fmt.Errorf("wells: %w", err)
	}
	if err := m.SetTimesteps(req.Timesteps); err != nil {
		return nil, fmt.Errorf("timesteps: %w", err)
	}
	return m, nil
}

// Process runs the scenario and summarizes the head snapshots.
func (p *ScenarioProcessor) Process(req *models.ScenarioRequest) (*models.ScenarioResult, error) {
	start := time.Now()
	res, cells, err := p.process(req)
	elapsed := time.Since(start)
	metrics.RecordScenario(elapsed, cells, err)

	if err != nil {
		logging.Warn().Err(err).Str("scenario", req.Name).Msg("scenario rejected")
		return nil, err
	}
	res.RuntimeMs = float64(elapsed.Microseconds()) / 1000
	logging.Debug().
		Str("scenario", req.Name).
		Int("wells", res.Wells).
		Int("rows", res.Rows).
		Int("cols", res.Cols).
		Int("timesteps", len(res.Snapshots)).
		Dur("elapsed", elapsed).
		Msg("scenario evaluated")
	return res, nil
}

func (p *ScenarioProcessor) process(req *models.ScenarioRequest) (*models.ScenarioResult, int, error) {
	m, err := p.Build(req)
	if err != nil {
		return nil, 0, err
	}
	if err := m.Run(); err != nil {
		return nil, 0, err
	}

	raster, err := hyqcore.NewHeadRaster(m)
	if err != nil {
		return nil, 0, err
	}
	aq, err := m.Aquifer()
	if err != nil {
		return nil, 0, err
	}
	rows, cols := raster.Shape()

	res := &models.ScenarioResult{
		ID:        utils.GenerateID(),
		Name:      req.Name,
		Status:    models.StatusOK,
		Rows:      rows,
		Cols:      cols,
		Transform: raster.Transform(),
		CRS:       raster.CRS(),
		H0:        aq.H0,
		Confined:  aq.Confined,
		Wells:     len(req.Wells),
		Snapshots: make([]models.SnapshotResult, raster.Bands()),
		CreatedAt: time.Now().UTC(),
	}

	for k := 0; k < raster.Bands(); k++ {
		head, err := raster.Band(k)
		if err != nil {
			return nil, 0, err
		}
		dd, err := m.Drawdown(k)
		if err != nil {
			return nil, 0, err
		}
		// both fields are freshly allocated, so their backing data is contiguous
		hv := head.RawMatrix().Data
		snap := models.SnapshotResult{
			Time:        req.Timesteps[k],
			Label:       raster.Label(k),
			MinHead:     floats.Min(hv),
			MeanHead:    floats.Sum(hv) / float64(len(hv)),
			MaxDrawdown: floats.Max(dd.RawMatrix().Data),
		}
		if req.IncludeHeads {
			if snap.Head, err = raster.Rows(k); err != nil {
				return nil, 0, err
			}
		}
		res.Snapshots[k] = snap
	}

	for _, pt := range req.Points {
		h, err := m.Hydrograph(pt.X, pt.Y)
		if err != nil {
			return nil, 0, err
		}
		res.Hydrographs = append(res.Hydrographs, models.Hydrograph{ID: pt.ID, X: pt.X, Y: pt.Y, Head: h})
	}

	return res, rows * cols * len(req.Wells) * len(req.Timesteps), nil
}

// Fit estimates transmissivity and storativity from a pumping test.
func (p *ScenarioProcessor) Fit(req *models.FitRequest) (*models.FitResponse, error) {
	obs := make([]hyqcore.Observation, len(req.Observations))
	for i, o := range req.Observations {
		obs[i] = hyqcore.Observation{R: o.R, Time: o.Time, Drawdown: o.Drawdown}
	}
	f, err := hyqcore.NewFitter(req.Q, obs)
	if err != nil {
		return nil, err
	}
	f.Terms = p.Terms
	f.Method = p.FitMethod
	if req.Method != "" {
		f.Method = hyqcore.FitMethod(req.Method)
	}
	if req.Relative {
		f.Weighting = hyqcore.Relative
	}
	f.MaxIterations = req.MaxIterations

	initT, initS := req.InitialT, req.InitialS
	if initT == 0 {
		initT = 1e-3
	}
	if initS == 0 {
		initS = 1e-4
	}

	res, err := f.Fit(initT, initS)
	metrics.RecordFit(string(f.Method), err)
	if err != nil {
		logging.Warn().Err(err).Str("method", string(f.Method)).Msg("fit failed")
		return nil, err
	}
	logging.Debug().
		Str("method", string(res.Method)).
		Float64("T", res.T).
		Float64("S", res.S).
		Float64("rmse", res.RMSE).
		Int("evals", res.FuncEvals).
		Msg("pumping test fitted")

	return &models.FitResponse{
		Transmissivity: res.T,
		Storativity:    res.S,
		RMSE:           res.RMSE,
		Method:         string(res.Method),
		Status:         res.Status,
		Iterations:     res.Iterations,
		FuncEvals:      res.FuncEvals,
		RuntimeMs:      float64(res.Runtime.Microseconds()) / 1000,
	}, nil
}
