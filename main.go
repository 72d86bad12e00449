package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"panopack/logger"
)

func main() {
	cfg, err := ParseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Stderr.WriteString("Configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	console := logger.NewConsole(cfg.GetLoggerOptions())

	if cfg.ShowVersion {
		console.Box("panopack version information", cfg.VersionInfo())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := NewProcessor(cfg, console)

	if _, err := processor.ProcessRoot(ctx, cfg.RootPath); err != nil {
		console.Error("Processing error: %v", err)
		stop()
		os.Exit(1)
	}

	console.Success("All panoramas processed successfully")
}
