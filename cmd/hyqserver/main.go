package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kacperjurak/hyqcore/pkg/config"
	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (default $HYQ_CONFIG)")
	port := flag.String("port", "", "Override server.port")
	profile := flag.Bool("profile", false, "Enable the pprof server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *profile {
		cfg.Profiling.Enabled = true
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}
