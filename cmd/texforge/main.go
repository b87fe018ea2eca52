// Command texforge runs one texture optimization pass over a mod setup.
//
// Usage:
//
//	texforge -profile profile.toml -modlist modlist.txt [-preset quality] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/texforge/texforge"
	"github.com/texforge/texforge/profile"
)

type config struct {
	profilePath string
	modListPath string
	preset      string
	workers     int
	dryRun      bool
	verbose     bool
	quiet       bool
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.profilePath, "profile", "", "profile TOML file (required)")
	flag.StringVar(&cfg.modListPath, "modlist", "", "mod load-order file (required)")
	flag.StringVar(&cfg.preset, "preset", "", "override the profile's quality preset")
	flag.IntVar(&cfg.workers, "workers", 0, "override the profile's worker count")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "plan jobs without converting")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.BoolVar(&cfg.quiet, "q", false, "suppress per-file progress output")
	flag.Parse()

	if cfg.profilePath == "" || cfg.modListPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	return cfg
}

func main() {
	cfg := parseFlags()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	prof, err := profile.Load(cfg.profilePath)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.preset != "" {
		prof.Preset = cfg.preset
	}
	if cfg.workers > 0 {
		prof.Workers = cfg.workers
	}

	mods, err := profile.LoadModList(cfg.modListPath, prof.ModsDir)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []texforge.Option{texforge.WithLogger(logger)}
	if cfg.dryRun {
		opts = append(opts, texforge.WithDryRun())
	}
	if !cfg.quiet {
		opts = append(opts, texforge.WithProgress(func(p texforge.Progress) {
			if p.Err != "" {
				fmt.Fprintf(os.Stderr, "[%d/%d] FAIL %s: %s\n", p.Done, p.Total, p.Path, p.Err)
				return
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", p.Done, p.Total, p.Path)
		}))
	}

	sum, err := texforge.Run(ctx, prof, mods, opts...)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.dryRun {
		fmt.Printf("resolved %d paths, %d textures to convert (%d excluded, %d unreadable)\n",
			sum.Resolved, sum.Total, sum.Excluded, sum.DecodeFailed)
		return
	}

	fmt.Printf("converted %d, skipped %d, failed %d of %d (excluded %d, unreadable %d)\n",
		sum.Converted, sum.Skipped, sum.Failed, sum.Total, sum.Excluded, sum.DecodeFailed)
	for _, je := range sum.Errors {
		fmt.Fprintf(os.Stderr, "failed: %s: %s\n", je.Path, je.Detail)
	}
	switch {
	case sum.Cancelled:
		os.Exit(130)
	case sum.Failed > 0:
		os.Exit(1)
	}
}
