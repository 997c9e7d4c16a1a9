package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/skekre98/galaxy/config"
	"github.com/skekre98/galaxy/engine"
	"github.com/skekre98/galaxy/logging"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "galaxy:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// 1) own flags; everything else is a config override
	fs := pflag.NewFlagSet("galaxy", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	dir := fs.String("config.dir", "configs", "directory holding engine.yaml")
	profile := fs.String("config.profile", os.Getenv("GALAXY_PROFILE"), "profile overlay (engine.<profile>.yaml)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// 2) config
	cfgs, err := config.Load(ctx, *dir, *profile, args, "config.dir", "config.profile")
	if err != nil {
		return err
	}
	cfg := cfgs.Current()

	// 3) logging
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	logger = logger.With(slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))
	slog.SetDefault(logger)

	// 4) engine
	e, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}

	// 5) run until signal
	return e.App.Run(ctx)
}
