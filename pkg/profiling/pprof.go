// Package profiling serves pprof on a side port and reports runtime and GC
// statistics.
package profiling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/kacperjurak/hyqcore/pkg/config"
	"github.com/kacperjurak/hyqcore/pkg/logging"
)

// Profiler manages the pprof server.
type Profiler struct {
	config config.ProfilingConfig
	server *http.Server
}

func New(cfg config.ProfilingConfig) *Profiler {
	return &Profiler{config: cfg}
}

// Handler returns the pprof routes plus /debug/runtime and POST /debug/gc.
// It is served on the profiling port only.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/runtime", RuntimeHandler)
	mux.HandleFunc("POST /debug/gc", GCHandler)
	return mux
}

// Start serves the profiling endpoints in the background. It does nothing
// when profiling is disabled.
func (p *Profiler) Start() error {
	if !p.config.Enabled {
		logging.Debug().Msg("profiling disabled")
		return nil
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	p.server = &http.Server{
		Addr:              ":" + p.config.Port,
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info().Str("port", p.config.Port).Msg("starting profiling server")
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("profiling server error")
		}
	}()
	return nil
}

func (p *Profiler) Stop(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("profiling server shutdown error: %w", err)
	}
	logging.Info().Msg("profiling server stopped")
	return nil
}
