// Package profile loads run configuration and ordered mod lists.
//
// A profile is one TOML file describing where assets come from, where
// output goes, and how the converter runs. The mod list is a separate
// line-oriented file in load-order format: one mod per line, `+` enabled,
// `-` disabled, first line wins conflicts.
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid marks a profile that parsed but cannot drive a run.
var ErrInvalid = errors.New("profile: invalid profile")

// Profile is the run configuration.
type Profile struct {
	// Game selects the exclusion rule set and archive conventions.
	Game string `toml:"game"`

	// DataRoot is the game's base data directory.
	DataRoot string `toml:"data_root"`

	// ModsDir holds one subdirectory per mod.
	ModsDir string `toml:"mods_dir"`

	// OutputRoot receives converted files, mirroring logical paths.
	OutputRoot string `toml:"output_root"`

	// Preset names the quality preset. Empty means the default.
	Preset string `toml:"preset"`

	// Converter is the external converter binary.
	Converter string `toml:"converter"`

	// Workers bounds converter concurrency. Zero means one per core.
	Workers int `toml:"workers"`

	// Retries is the extra attempts a failed job gets.
	Retries int `toml:"retries"`

	// Timeout bounds a single converter invocation, e.g. "5m".
	Timeout duration `toml:"timeout"`

	// CachePath is the completion cache file. Empty disables persistence.
	CachePath string `toml:"cache_path"`

	// RulesDir holds per-game exclusion rule files.
	RulesDir string `toml:"rules_dir"`
}

// duration wraps time.Duration for TOML string values.
type duration time.Duration

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// JobTimeout returns the configured per-job timeout, zero if unset.
func (p Profile) JobTimeout() time.Duration {
	return time.Duration(p.Timeout)
}

// Load reads and validates a profile file.
func Load(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a profile from r.
func Parse(r io.Reader) (Profile, error) {
	var p Profile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("profile: parse: %w", err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	switch {
	case p.Game == "":
		return fmt.Errorf("%w: game is required", ErrInvalid)
	case p.DataRoot == "":
		return fmt.Errorf("%w: data_root is required", ErrInvalid)
	case p.OutputRoot == "":
		return fmt.Errorf("%w: output_root is required", ErrInvalid)
	case p.Converter == "":
		return fmt.Errorf("%w: converter is required", ErrInvalid)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalid)
	case p.Retries < 0:
		return fmt.Errorf("%w: retries must be >= 0", ErrInvalid)
	case p.Timeout < 0:
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalid)
	}
	return nil
}
