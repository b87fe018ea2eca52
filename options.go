package texforge

import (
	"log/slog"

	"github.com/texforge/texforge/cache"
	"github.com/texforge/texforge/convert"
	"github.com/texforge/texforge/sched"
)

// config collects Run's injectable collaborators.
type config struct {
	logger   *slog.Logger
	cc       cache.Cache
	conv     convert.Converter
	progress sched.ProgressFunc
	dryRun   bool
}

// Option configures a Run call.
type Option func(*config)

// WithLogger sets the logger for the whole pipeline. If not set, logging
// is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithCache overrides the completion cache. Without it, Run opens the
// profile's cache file, or falls back to an in-memory cache when the
// profile names none.
func WithCache(cc cache.Cache) Option {
	return func(c *config) {
		c.cc = cc
	}
}

// WithConverter overrides the external converter. Without it, Run invokes
// the profile's converter binary.
func WithConverter(conv convert.Converter) Option {
	return func(c *config) {
		c.conv = conv
	}
}

// WithProgress sets the batch progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithDryRun resolves, classifies and plans jobs without invoking the
// converter or touching the cache.
func WithDryRun() Option {
	return func(c *config) {
		c.dryRun = true
	}
}
