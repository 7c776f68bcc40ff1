package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"studio-notify/internal/app"
	"studio-notify/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFiles []string
	var addr string
	var token string

	flagSet := pflag.NewFlagSet("notifyd", pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "load environment from these files before reading it (repeatable)")
	flagSet.StringVar(&addr, "addr", "", "bridge listen address (overrides HTTP_ADDR)")
	flagSet.StringVar(&token, "token", "", "access token to start a session with (overrides ACCESS_TOKEN)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if token != "" {
		cfg.AccessToken = token
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := app.NewServer(cfg, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
