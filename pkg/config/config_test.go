package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kacperjurak/hyqcore/pkg/validation"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, def.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Solver.Terms != 30 || cfg.Solver.FitMethod != "nelder-mead" || cfg.Solver.MaxCells != 1<<22 {
		t.Errorf("Solver = %+v", cfg.Solver)
	}
	if cfg.Worker.Count != 4 {
		t.Errorf("Worker.Count = %d, want 4", cfg.Worker.Count)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "hyq.yaml", `
server:
  port: "9000"
  write_timeout: 2m
worker:
  count: 8
solver:
  terms: 40
  fit_method: lm
store:
  path: /tmp/runs.db
logging:
  level: debug
`)
	t.Setenv("HYQ_SERVER_PORT", "9100")
	t.Setenv("HYQ_WORKER_QUEUE_SIZE", "16")
	t.Setenv("HYQ_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("env did not override port: %q", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 2*time.Minute {
		t.Errorf("WriteTimeout = %v, want 2m", cfg.Server.WriteTimeout)
	}
	if cfg.Worker.Count != 8 || cfg.Worker.QueueSize != 16 {
		t.Errorf("Worker = %+v", cfg.Worker)
	}
	if cfg.Solver.Terms != 40 || cfg.Solver.FitMethod != "lm" {
		t.Errorf("Solver = %+v", cfg.Solver)
	}
	if cfg.Store.Path != "/tmp/runs.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	// untouched keys keep their defaults
	if cfg.Webhook.BreakerFailures != 5 {
		t.Errorf("Webhook.BreakerFailures = %d, want default 5", cfg.Webhook.BreakerFailures)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero workers", "worker:\n  count: 0\n"},
		{"unknown fit method", "solver:\n  fit_method: simplex\n"},
		{"zero cell limit", "solver:\n  max_cells: 0\n"},
		{"non numeric port", "server:\n  port: http\n"},
		{"bad webhook url", "webhook:\n  url: not a url\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "hyq.yaml", tt.yaml))
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("Load error = %v, want *validation.Error", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"HYQ_SERVER_PORT":             "server.port",
		"HYQ_WEBHOOK_BREAKER_TIMEOUT": "webhook.breaker_timeout",
		"HYQ_CONFIG":                  "config",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadScenarioYAML(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
name: two wells
grid: {x_min: 0, y_max: 100, len_x: 100, len_y: 100, res_x: 10, res_y: 10, crs: "EPSG:2180"}
aquifer: {h0: 25, transmissivity: 1e-3, storativity: 1e-4, thickness: 25, confined: false}
wells:
  - {id: P1, x: 30, y: 50, q: 0.01}
  - {id: P2, x: 70, y: 50, q: 0.005}
timesteps: [3600, 7200]
observation_points:
  - {id: OBS1, x: 50, y: 50}
`)
	req, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if req.Name != "two wells" || req.Grid.ResX != 10 || req.Grid.CRS != "EPSG:2180" {
		t.Errorf("header = %+v", req)
	}
	if req.Aquifer.T != 1e-3 || req.Aquifer.Confined {
		t.Errorf("aquifer = %+v", req.Aquifer)
	}
	if len(req.Wells) != 2 || req.Wells[1].ID != "P2" || req.Wells[1].Q != 0.005 {
		t.Errorf("wells = %+v", req.Wells)
	}
	if len(req.Timesteps) != 2 || req.Timesteps[1] != 7200 {
		t.Errorf("timesteps = %v", req.Timesteps)
	}
	if len(req.Points) != 1 || req.Points[0].ID != "OBS1" {
		t.Errorf("points = %+v", req.Points)
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	path := writeFile(t, "scenario.json", `{
  "grid": {"x_min": 0, "y_max": 50, "len_x": 50, "len_y": 50, "res_x": 5, "res_y": 5},
  "aquifer": {"h0": 10, "transmissivity": 0.002, "storativity": 0.0002, "thickness": 10, "confined": true},
  "wells": [{"id": "W", "x": 25, "y": 25, "q": 0.01}],
  "timesteps": [600]
}`)
	req, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if req.Aquifer.S != 0.0002 || !req.Aquifer.Confined || len(req.Wells) != 1 {
		t.Errorf("scenario = %+v", req)
	}
}

func TestLoadScenarioInvalid(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
grid: {x_min: 0, y_max: 100, len_x: 100, len_y: 100, res_x: 0, res_y: 10}
aquifer: {h0: 25, transmissivity: 1e-3, storativity: 1e-4}
timesteps: [3600]
`)
	_, err := LoadScenario(path)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *validation.Error", err)
	}
	if verr.Fields[0].Field != "grid.res_x" {
		t.Errorf("failing field = %q, want grid.res_x", verr.Fields[0].Field)
	}
}

func TestArrayFlags(t *testing.T) {
	var a ArrayFlags
	for _, v := range []string{"3600", "7200.5"} {
		if err := a.Set(v); err != nil {
			t.Fatalf("Set(%q): %v", v, err)
		}
	}
	if err := a.Set("soon"); err == nil {
		t.Error("Set accepted a non-number")
	}
	if a.String() != "3600,7200.5" {
		t.Errorf("String() = %q", a.String())
	}
}
