// Command hyqsolver evaluates a drawdown scenario file, fits transmissivity
// and storativity to pumping test data, or serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/kacperjurak/hyqcore/internal/processing"
	"github.com/kacperjurak/hyqcore/pkg/config"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/models"
	"github.com/kacperjurak/hyqcore/pkg/server"
)

type options struct {
	ConfigPath   string
	File         string
	Output       string
	Timesteps    config.ArrayFlags
	IncludeHeads bool
	Workers      int

	FitFile  string
	Q        float64
	Method   string
	InitT    float64
	InitS    float64
	Relative bool

	HTTPServer bool
	Quiet      bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "hyqsolver:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("hyqsolver", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "YAML configuration file (default $HYQ_CONFIG)")
	fs.StringVar(&opts.File, "f", "scenario.yaml", "Scenario file (YAML or JSON)")
	fs.StringVar(&opts.Output, "o", "", "Write the JSON result to this file instead of stdout")
	fs.Var(&opts.Timesteps, "t", "Timestep in seconds, repeatable; replaces the file's timesteps")
	fs.BoolVar(&opts.IncludeHeads, "heads", false, "Include full head rasters in the result")
	fs.IntVar(&opts.Workers, "workers", 0, "Goroutines per model run (default solver.workers)")
	fs.StringVar(&opts.FitFile, "fit", "", "Fit T and S to an observation file with columns: r t s")
	fs.Float64Var(&opts.Q, "q", 0, "Pumping rate in m3/s for -fit")
	fs.StringVar(&opts.Method, "m", "", "Fit method: nelder-mead, lbfgs or lm (default solver.fit_method)")
	fs.Float64Var(&opts.InitT, "T", 0, "Initial transmissivity for -fit")
	fs.Float64Var(&opts.InitS, "S", 0, "Initial storativity for -fit")
	fs.BoolVar(&opts.Relative, "relative", false, "Weight fit residuals by the observed drawdown")
	fs.BoolVar(&opts.HTTPServer, "http", false, "Start the HTTP server")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Only log warnings and errors")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Quiet {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "json" && !opts.HTTPServer {
		cfg.Logging.Format = "console"
	}
	cfg.Logging.Output = os.Stderr
	logging.Init(cfg.Logging)

	if opts.HTTPServer {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg)
	}

	workers := cfg.Solver.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	p := processing.NewScenarioProcessor(cfg.Solver.Terms, workers, cfg.Solver.FitMethod)
	p.MaxCells = cfg.Solver.MaxCells

	var result any
	if opts.FitFile != "" {
		result, err = runFit(p, opts)
	} else {
		result, err = runScenario(p, opts)
	}
	if err != nil {
		return err
	}
	return writeResult(opts.Output, stdout, result)
}

func runScenario(p *processing.ScenarioProcessor, opts *options) (*models.ScenarioResult, error) {
	req, err := config.LoadScenario(opts.File)
	if err != nil {
		return nil, err
	}
	if len(opts.Timesteps) > 0 {
		req.Timesteps = []float64(opts.Timesteps)
	}
	req.IncludeHeads = req.IncludeHeads || opts.IncludeHeads

	res, err := p.Process(req)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Snapshots {
		logging.Info().
			Str("label", s.Label).
			Float64("min_head", s.MinHead).
			Float64("max_drawdown", s.MaxDrawdown).
			Msg("snapshot")
	}
	return res, nil
}

func runFit(p *processing.ScenarioProcessor, opts *options) (*models.FitResponse, error) {
	f, err := os.Open(opts.FitFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obs, err := parseObservations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.FitFile, err)
	}
	res, err := p.Fit(&models.FitRequest{
		Q:            opts.Q,
		Observations: obs,
		Method:       opts.Method,
		InitialT:     opts.InitT,
		InitialS:     opts.InitS,
		Relative:     opts.Relative,
	})
	if err != nil {
		return nil, err
	}
	logging.Info().
		Float64("T", res.Transmissivity).
		Float64("S", res.Storativity).
		Float64("rmse", res.RMSE).
		Str("status", res.Status).
		Msg("fit completed")
	return res, nil
}

func writeResult(path string, stdout io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	out = append(out, '\n')
	if path == "" {
		_, err = stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
