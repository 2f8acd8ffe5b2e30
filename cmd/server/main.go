package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"socialnet/internal/config"
	"socialnet/internal/logger"
	"socialnet/internal/transport/http"
)

func main() {
	app := &cli.App{
		Name:  "socialnet",
		Usage: "social network API with live thread updates",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, live channels and in-process workers",
				Action: serve,
			},
			{
				Name:   "worker",
				Usage:  "consume the event stream only",
				Action: runWorker,
			},
			{
				Name:   "migrate",
				Usage:  "apply schema migrations for the configured store",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (context.Context, context.CancelFunc, *config.Config, zerolog.Logger, error) {
	cfg, envLoaded, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if !envLoaded {
		log.Debug().Msg("no .env file found, using environment")
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, cfg, log, nil
}

func serve(c *cli.Context) error {
	ctx, cancel, cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()

	app, err := http.Bootstrap(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Serve(ctx)
}

func runWorker(c *cli.Context) error {
	ctx, cancel, cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()

	app, err := http.Bootstrap(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.RunWorkers(ctx)
}

func migrate(c *cli.Context) error {
	ctx, cancel, cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()

	if err := http.Migrate(ctx, cfg, log); err != nil {
		return err
	}
	log.Info().Str("store", cfg.StoreDriver).Msg("migrations complete")
	return nil
}
