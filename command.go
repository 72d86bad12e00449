package main

import (
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"panopack/crop"
	"panopack/logger"
	"panopack/mcpack"
)

type Config struct {
	RootPath    string
	Version     string
	Workers     int
	ArchiveExt  string
	Compression string
	JSONLog     bool
	NoColor     bool
	Quiet       bool
	ShowVersion bool
}

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var compressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"speed":   png.BestSpeed,
	"best":    png.BestCompression,
}

// defaultRoot is the panoramas directory next to the executable.
func defaultRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "panoramas"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "panoramas")
}

// ParseConfig reads flags from args (without the program name). Every flag is
// optional; with no arguments the defaults process <exe dir>/panoramas.
func ParseConfig(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{Version: Version}

	fs := flag.NewFlagSet("panopack", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.RootPath, "root", defaultRoot(), "Directory holding one subfolder per panorama")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Number of concurrent workers")
	fs.StringVar(&cfg.ArchiveExt, "ext", mcpack.Extension, "Archive file extension")
	fs.StringVar(&cfg.Compression, "compression", "default", "PNG compression (default, none, speed, best)")
	fs.BoolVar(&cfg.JSONLog, "json", false, "Log as JSON lines")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Only log warnings and errors")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("error: workers must be at least 1")
	}
	if _, ok := compressionLevels[cfg.Compression]; !ok {
		return fmt.Errorf("error: unknown compression %q", cfg.Compression)
	}
	cfg.ArchiveExt = strings.TrimPrefix(cfg.ArchiveExt, ".")
	if cfg.ArchiveExt == "" || strings.ContainsAny(cfg.ArchiveExt, `/\`) {
		return fmt.Errorf("error: invalid archive extension %q", cfg.ArchiveExt)
	}
	return nil
}

func (cfg *Config) GetLoggerOptions() *logger.RichLoggerOptions {
	opts := logger.DefaultOptions()
	opts.EnableJSON = cfg.JSONLog
	opts.EnableColors = !cfg.NoColor && !cfg.JSONLog
	if cfg.Quiet {
		opts.Level = slog.LevelWarn
	}
	return opts
}

func (cfg *Config) GetCropOptions() crop.Options {
	return crop.Options{Compression: compressionLevels[cfg.Compression]}
}

func (cfg *Config) VersionInfo() string {
	return fmt.Sprintf(
		"Version: %s\nBuild date: %s\nGit commit: %s",
		cfg.Version, BuildDate, GitCommit,
	)
}
