package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/models"
	"github.com/kacperjurak/hyqcore/pkg/validation"
)

const (
	// EnvPrefix marks variables that override configuration keys:
	// HYQ_SERVER_PORT sets server.port.
	EnvPrefix = "HYQ_"
	// ConfigPathEnvVar names a YAML file loaded between defaults and env.
	ConfigPathEnvVar = "HYQ_CONFIG"
)

// ArrayFlags collects repeated float flags, e.g. -t 3600 -t 7200.
type ArrayFlags []float64

func (a *ArrayFlags) String() string {
	parts := make([]string, len(*a))
	for i, v := range *a {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (a *ArrayFlags) Set(value string) error {
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	*a = append(*a, val)
	return nil
}

// Config holds all settings of the solver service and CLI.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Worker    WorkerConfig    `koanf:"worker"`
	Solver    SolverConfig    `koanf:"solver"`
	Store     StoreConfig     `koanf:"store"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Profiling ProfilingConfig `koanf:"profiling"`
	Logging   logging.Config  `koanf:"logging"`
}

type ServerConfig struct {
	Port              string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

type WorkerConfig struct {
	Count     int `koanf:"count" validate:"gte=1,lte=256"`
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

// SolverConfig sets defaults for every model the service builds.
type SolverConfig struct {
	Terms     int    `koanf:"terms" validate:"gte=1,lte=200"`
	Workers   int    `koanf:"workers" validate:"gte=1,lte=256"`
	FitMethod string `koanf:"fit_method" validate:"oneof=nelder-mead lbfgs lm"`
	// MaxCells caps rows·cols of a requested grid.
	MaxCells int `koanf:"max_cells" validate:"gte=1,lte=67108864"`
}

type StoreConfig struct {
	// Path of the sqlite database; ":memory:" keeps runs in process.
	Path string `koanf:"path" validate:"required"`
}

type WebhookConfig struct {
	// URL receives notifications for batches submitted without their own
	// callback URL. Empty disables them.
	URL             string        `koanf:"url" validate:"omitempty,url"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries      int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type ProfilingConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    string `koanf:"port" validate:"omitempty,numeric"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      8 << 20,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Worker: WorkerConfig{
			Count:     4,
			QueueSize: 64,
		},
		Solver: SolverConfig{
			Terms:     30,
			Workers:   1,
			FitMethod: "nelder-mead",
			MaxCells:  1 << 22,
		},
		Store: StoreConfig{
			Path: "hyq.db",
		},
		Webhook: WebhookConfig{
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Profiling: ProfilingConfig{
			Port: "6060",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers defaults, the optional YAML file at path (or $HYQ_CONFIG when
// path is empty) and HYQ_* environment variables, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.Struct(c)
}

// envKey maps HYQ_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// splitList turns a comma separated env value into a list.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// LoadScenario reads a scenario description from a YAML or JSON file and
// validates it.
func LoadScenario(path string) (*models.ScenarioRequest, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load scenario %s: %w", path, err)
	}

	req := &models.ScenarioRequest{}
	if err := k.UnmarshalWithConf("", req, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", path, err)
	}
	if err := validation.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return req, nil
}
