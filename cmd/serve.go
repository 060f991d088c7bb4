package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"foundry-gateway/internal/bus"
	"foundry-gateway/internal/config"
	"foundry-gateway/internal/provider"
	providerfactory "foundry-gateway/internal/provider/factory"
	"foundry-gateway/internal/router"
	"foundry-gateway/internal/server"
	"foundry-gateway/internal/webhook"
)

const serveUsage = `Usage:
  foundry-gateway serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to optional YAML configuration file
  --port   int      Override server port from configuration

All credentials and secrets are read from the environment; the YAML file
only carries listener settings.`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	registry := provider.NewRegistry()
	providerfactory.RegisterConfiguredProviders(cfg, registry)

	rt := router.New(registry)
	gateway := webhook.NewGateway(cfg.Webhooks)
	hub := bus.NewHub(slog.Default())

	srv, err := server.New(cfg, rt, gateway, hub)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
