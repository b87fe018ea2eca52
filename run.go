package texforge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/texforge/texforge/cache"
	"github.com/texforge/texforge/cache/bolt"
	"github.com/texforge/texforge/convert"
	"github.com/texforge/texforge/exclude"
	"github.com/texforge/texforge/internal/pathutil"
	"github.com/texforge/texforge/profile"
	"github.com/texforge/texforge/sched"
	"github.com/texforge/texforge/texture"
	"github.com/texforge/texforge/vfs"
)

// Run executes one optimization pass: build the virtual filesystem from
// the mod list and data root, classify the winning DDS textures, filter
// them against the game's exclusion rules, and drive the remainder
// through the converter.
//
// Configuration problems (bad preset, unreadable data root, unreachable
// cache file) are fatal. Per-archive, per-asset and per-job problems are
// logged, counted in the summary, and never stop the run.
func Run(ctx context.Context, prof profile.Profile, mods []Mod, opts ...Option) (Summary, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	logger := c.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	preset := PresetQuality
	if prof.Preset != "" {
		var err error
		if preset, err = sched.ParsePreset(prof.Preset); err != nil {
			return Summary{}, err
		}
	}

	rules, err := exclude.LoadFile(prof.RulesDir, prof.Game)
	if err != nil {
		return Summary{}, err
	}

	v, err := vfs.Build(ctx, mods, prof.DataRoot, vfs.WithLogger(logger))
	if err != nil {
		return Summary{}, err
	}
	defer v.Close()

	sum := Summary{Resolved: v.Len()}
	assets := classify(v, rules, logger, &sum)
	sum.Classified = len(assets)

	if c.dryRun {
		planner := sched.New(nopConverter{}, cache.NewMemory(),
			sched.WithPreset(preset), sched.WithLogger(logger))
		sum.Total = len(planner.BuildJobs(assets, prof.OutputRoot))
		logger.Info("dry run", "resolved", sum.Resolved, "jobs", sum.Total,
			"excluded", sum.Excluded)
		return sum, nil
	}

	cc := c.cc
	if cc == nil {
		if prof.CachePath != "" {
			bc, err := bolt.Open(prof.CachePath)
			if err != nil {
				return Summary{}, err
			}
			defer bc.Close()
			cc = bc
		} else {
			cc = cache.NewMemory()
		}
	}

	conv := c.conv
	if conv == nil {
		conv = convert.NewTool(prof.Converter, convert.WithLogger(logger))
	}

	s := sched.New(conv, cc,
		sched.WithPreset(preset),
		sched.WithWorkers(prof.Workers),
		sched.WithRetries(prof.Retries),
		sched.WithTimeout(prof.JobTimeout()),
		sched.WithLogger(logger),
		sched.WithProgress(c.progress))
	batch, err := s.Run(ctx, assets, prof.OutputRoot)
	if err != nil {
		return Summary{}, err
	}
	sum.Summary = batch
	return sum, nil
}

// classify walks the merged filesystem and returns the winning textures
// that survive exclusion filtering and header decoding.
func classify(v *vfs.VFS, rules *exclude.Set, logger *slog.Logger, sum *Summary) []texture.Asset {
	var assets []texture.Asset
	for e := range v.Entries() {
		if pathutil.Ext(e.Path) != ".dds" {
			continue
		}
		if rules.Matches(e.Path) {
			sum.Excluded++
			logger.Debug("excluded", "path", e.Path, "mod", e.Mod)
			continue
		}
		head, err := vfs.ReadEntryPrefix(e, texture.HeaderSize)
		if err != nil {
			sum.DecodeFailed++
			logger.Warn("unreadable texture", "path", e.Path, "error", err)
			continue
		}
		asset, err := texture.Classify(e, head)
		if err != nil {
			if !errors.Is(err, texture.ErrNotTexture) {
				sum.DecodeFailed++
				logger.Warn("malformed texture", "path", e.Path, "error", err)
			}
			continue
		}
		assets = append(assets, asset)
	}
	return assets
}

// nopConverter backs dry runs; BuildJobs never dispatches to it.
type nopConverter struct{}

func (nopConverter) Convert(context.Context, convert.Request) error { return nil }
