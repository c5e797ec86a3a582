package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillcast/skillcast/internal/crypto"
	"github.com/skillcast/skillcast/internal/iocli"
	"github.com/skillcast/skillcast/internal/server"
	"github.com/skillcast/skillcast/internal/server/auth"
	"github.com/skillcast/skillcast/internal/server/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SkillCast Seed Admin\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("seeding failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	// Токены здесь не выпускаются, секреты JWT не нужны
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	stores, err := server.OpenStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	hasher, err := crypto.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	s := &seeder{
		logger:    logger,
		users:     stores.Users,
		passwords: auth.NewPasswords(logger, stores.Users, auth.NewLedger(stores.Tokens), hasher),
		term:      iocli.NewStdio(),
		getenv:    os.Getenv,
	}

	_, err = s.seed(ctx)
	return err
}
