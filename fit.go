package hyqcore

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

type FitMethod string

const (
	NelderMead         FitMethod = "nelder-mead"
	LBFGS              FitMethod = "lbfgs"
	LevenbergMarquardt FitMethod = "lm"
)

type Weighting int

const (
	// Unity weights every residual equally.
	Unity Weighting = iota
	// Relative divides each residual by the observed drawdown.
	Relative
)

// penalty stands in for objective values the series cannot produce sensibly.
const penalty = 1e300

var ErrNoObservations = errors.New("hyqcore: no observations")

// Observation is a measured drawdown s at distance r from the pumping well,
// t seconds after pumping started.
type Observation struct {
	R        float64
	Time     float64
	Drawdown float64
}

type FitResult struct {
	T          float64
	S          float64
	RMSE       float64
	Method     FitMethod
	Status     string
	Iterations int
	FuncEvals  int
	Runtime    time.Duration
}

// Fitter estimates transmissivity and storativity from a pumping test with a
// constant rate Q. Parameters are searched in log10 space so both stay positive.
type Fitter struct {
	Q         float64
	Observed  []Observation
	Method    FitMethod
	Weighting Weighting
	Terms     int
	// MaxIterations bounds the major iterations of the optimizer; 0 keeps the
	// optimizer default.
	MaxIterations int
}

func NewFitter(q float64, obs []Observation) (*Fitter, error) {
	if !finite(q) || q == 0 {
		return nil, &ParameterError{Name: "Q", Value: q, Reason: "must be finite and non-zero"}
	}
	if len(obs) == 0 {
		return nil, ErrNoObservations
	}
	for i, o := range obs {
		if !finite(o.R) || o.R < 0 {
			return nil, &ParameterError{Name: fmt.Sprintf("observation[%d].r", i), Value: o.R, Reason: "must not be negative"}
		}
		if !finite(o.Time) || o.Time <= 0 {
			return nil, &ParameterError{Name: fmt.Sprintf("observation[%d].t", i), Value: o.Time, Reason: "must be positive"}
		}
		if !finite(o.Drawdown) {
			return nil, &ParameterError{Name: fmt.Sprintf("observation[%d].s", i), Value: o.Drawdown, Reason: "must be finite"}
		}
	}
	return &Fitter{
		Q:        q,
		Observed: append([]Observation(nil), obs...),
		Method:   NelderMead,
		Terms:    DefaultTerms,
	}, nil
}

// Fit runs the configured method from the initial guess (initT, initS).
func (f *Fitter) Fit(initT, initS float64) (FitResult, error) {
	if !finite(initT) || initT <= 0 {
		return FitResult{}, &ParameterError{Name: "initial T", Value: initT, Reason: "must be positive"}
	}
	if !finite(initS) || initS <= 0 {
		return FitResult{}, &ParameterError{Name: "initial S", Value: initS, Reason: "must be positive"}
	}
	x0 := []float64{math.Log10(initT), math.Log10(initS)}

	switch f.Method {
	case NelderMead, "":
		return f.minimize(x0, NelderMead, &optimize.NelderMead{})
	case LBFGS:
		return f.minimize(x0, LBFGS, &optimize.LBFGS{})
	case LevenbergMarquardt:
		return f.levenbergMarquardt(x0)
	}
	return FitResult{}, fmt.Errorf("hyqcore: unknown fit method %q", f.Method)
}

func (f *Fitter) terms() int {
	if f.Terms <= 0 {
		return DefaultTerms
	}
	return f.Terms
}

// residuals writes the weighted model-minus-observation differences for the
// log10 parameters x into dst.
func (f *Fitter) residuals(dst, x []float64) {
	t, s := math.Pow(10, x[0]), math.Pow(10, x[1])
	n := f.terms()
	for i, o := range f.Observed {
		d := ConfinedDrawdown(f.Q, t, o.R, s, o.Time, n) - o.Drawdown
		if f.Weighting == Relative && o.Drawdown != 0 {
			d /= o.Drawdown
		}
		dst[i] = d
	}
}

func (f *Fitter) objective(x []float64) float64 {
	res := make([]float64, len(f.Observed))
	f.residuals(res, x)
	v := floats.Dot(res, res) / float64(len(res))
	if !finite(v) {
		return penalty
	}
	return v
}

// rmse is the unweighted root mean square error in drawdown units.
func (f *Fitter) rmse(t, s float64) float64 {
	n := f.terms()
	var sum float64
	for _, o := range f.Observed {
		d := ConfinedDrawdown(f.Q, t, o.R, s, o.Time, n) - o.Drawdown
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(f.Observed)))
}

func (f *Fitter) minimize(x0 []float64, method FitMethod, m optimize.Method) (FitResult, error) {
	problem := optimize.Problem{
		Func: f.objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, f.objective, x, nil)
		},
	}
	var settings *optimize.Settings
	if f.MaxIterations > 0 {
		settings = &optimize.Settings{MajorIterations: f.MaxIterations}
	}

	res, err := optimize.Minimize(problem, x0, settings, m)
	if err != nil && res == nil {
		return FitResult{}, fmt.Errorf("hyqcore: %s fit failed: %w", method, err)
	}
	t, s := math.Pow(10, res.X[0]), math.Pow(10, res.X[1])
	out := FitResult{
		T:          t,
		S:          s,
		RMSE:       f.rmse(t, s),
		Method:     method,
		Status:     res.Status.String(),
		Iterations: res.MajorIterations,
		FuncEvals:  res.FuncEvaluations,
		Runtime:    res.Runtime,
	}
	if err != nil {
		return out, fmt.Errorf("hyqcore: %s fit stopped: %w", method, err)
	}
	return out, nil
}

func (f *Fitter) levenbergMarquardt(x0 []float64) (out FitResult, err error) {
	start := time.Now()
	fnc := func(dst, x []float64) {
		f.residuals(dst, x)
		for i, v := range dst {
			if !finite(v) {
				dst[i] = math.Sqrt(penalty)
			}
		}
	}
	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        len(x0),
		Size:       len(f.Observed),
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: x0,
		Tau:        1e-3,
		Eps1:       1e-10,
		Eps2:       1e-10,
	}

	iterations := f.MaxIterations
	if iterations <= 0 {
		iterations = 1000
	}

	// singular normal equations make lm panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hyqcore: lm fit failed: %v", r)
		}
	}()

	res, err := lm.LM(problem, &lm.Settings{Iterations: iterations, ObjectiveTol: 1e-16})
	if err != nil {
		return FitResult{}, fmt.Errorf("hyqcore: lm fit failed: %w", err)
	}
	t, s := math.Pow(10, res.X[0]), math.Pow(10, res.X[1])
	return FitResult{
		T:       t,
		S:       s,
		RMSE:    f.rmse(t, s),
		Method:  LevenbergMarquardt,
		Status:  "OK",
		Runtime: time.Since(start),
	}, nil
}
