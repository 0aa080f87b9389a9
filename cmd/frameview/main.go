package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cocosip/go-dicom-codec/jpeg2000/lossless"

	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/config"
	"github.com/ironsheep/frameview/internal/framecache"
	"github.com/ironsheep/frameview/internal/pixeldata"
	"github.com/ironsheep/frameview/internal/server"
	"github.com/ironsheep/frameview/internal/viewer"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("frameview - medical image viewer core served over MCP")
	fmt.Println()
	fmt.Println("Usage: frameview [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>        YAML configuration file (default frameview.yaml)")
	fmt.Println("  --write-config <path>  Write the effective configuration to path and exit")
	fmt.Println("  --version, -v          Print version information")
	fmt.Println("  --help, -h             Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug    Override the configured log level\n", config.LogLevelEnv)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Frames are fetched from fetch.urlTemplate in the configuration.")
}

func main() {
	// Handle --version and --help before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("frameview %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
	}

	configPath := flag.String("config", "frameview.yaml", "path to the YAML configuration file")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this path and exit")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frameview: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "frameview: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("configuration written to %s\n", *writeConfig)
		return
	}

	// Logging goes to stderr (stdout is for MCP protocol)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)
	logger.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit, "config", *configPath)

	if cfg.Fetch.URLTemplate == "" {
		logger.Warn("fetch.urlTemplate is not set; every frame fetch will fail")
	}

	palette, err := cfg.Palette()
	if err != nil {
		logger.Error("invalid annotation colors", "error", err)
		os.Exit(1)
	}

	wavelet := pixeldata.NewCodecs(lossless.NewLosslessCodec())
	logger.Debug("wavelet decoding enabled", "syntaxes", wavelet.Syntaxes())

	session := viewer.New(viewer.Options{
		Fetcher:     framecache.NewHTTPFetcher(cfg.Fetch.URLTemplate, cfg.Timeout()),
		Concurrency: cfg.Fetch.Concurrency,
		Decode: pixeldata.Options{
			Wavelet:       wavelet,
			ScanWindow:    cfg.Decode.ScanWindow,
			SwapThreshold: cfg.Decode.SwapThreshold,
		},
		Annotation: annotation.Options{
			HandleRadius: cfg.Annotation.HandleRadius,
			MarkerRadius: cfg.Annotation.MarkerRadius,
			Palette:      palette,
			DefaultText:  cfg.Annotation.DefaultText,
		},
		MinScale: cfg.View.MinScale,
		MaxScale: cfg.View.MaxScale,
		Logger:   logger,
	})
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(session, Version, logger)
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
