package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/inkstone-app/inkstone/internal/cli"
	"github.com/inkstone-app/inkstone/internal/config"
	"github.com/inkstone-app/inkstone/internal/iocli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	level := slog.LevelWarn
	if os.Getenv("INKSTONE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	return cli.NewRootCmd(cfg, iocli.NewStdio(), logger).Execute()
}
