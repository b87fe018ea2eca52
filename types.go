package texforge

import (
	"github.com/texforge/texforge/profile"
	"github.com/texforge/texforge/sched"
	"github.com/texforge/texforge/vfs"
)

// Re-exported pipeline types, so callers of Run need only this package.
type (
	// Profile is the run configuration loaded from TOML.
	Profile = profile.Profile

	// Mod is one prioritized asset source.
	Mod = vfs.Mod

	// Preset selects a quality/size trade-off.
	Preset = sched.Preset

	// Progress is one batch progress event.
	Progress = sched.Progress

	// ProgressFunc receives progress events from the batch workers.
	ProgressFunc = sched.ProgressFunc

	// JobError describes one failed conversion.
	JobError = sched.JobError
)

// Quality presets.
const (
	PresetPerformance = sched.PresetPerformance
	PresetQuality     = sched.PresetQuality
	PresetUltra       = sched.PresetUltra
)

// Summary is the outcome of one run: the batch accounting plus the
// resolution and classification counts that precede scheduling.
type Summary struct {
	sched.Summary

	// Resolved is the number of logical paths in the merged filesystem.
	Resolved int

	// Classified is the number of textures that entered the batch.
	Classified int

	// Excluded counts textures dropped by exclusion rules.
	Excluded int

	// DecodeFailed counts textures skipped for unreadable headers.
	DecodeFailed int
}
