// Package vfs merges prioritized mod directories and archive containers
// into one logical path map.
//
// Resolution is deterministic: mods contribute from lowest to highest
// priority, later contributions overwrite earlier ones at the same logical
// path, and within one mod archives contribute before loose files so loose
// files win ties at equal priority. The built tree is immutable.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/texforge/texforge/bsa"
	"github.com/texforge/texforge/internal/pathutil"
)

// ErrDataRoot is returned when the data root is missing or unreadable.
// It is fatal to the run.
var ErrDataRoot = errors.New("vfs: data root unavailable")

// Mod is one prioritized source of assets.
type Mod struct {
	// Name identifies the mod in entries and logs.
	Name string

	// Enabled mods contribute entries; disabled mods are skipped entirely.
	Enabled bool

	// Priority ranks the mod; higher priorities override lower ones.
	Priority int

	// Root is the mod's directory on disk.
	Root string

	// Archives lists the mod's registered archive files, relative to Root
	// or absolute.
	Archives []string
}

// SourceKind distinguishes loose files from archive records.
type SourceKind uint8

const (
	// SourceLoose is a plain file under a mod root.
	SourceLoose SourceKind = iota
	// SourceArchive is a record inside an archive container.
	SourceArchive
)

// String returns the human-readable source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceLoose:
		return "loose"
	case SourceArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Entry is one resolved logical file.
type Entry struct {
	// Path is the normalized logical path.
	Path string

	// Kind tells whether the entry is loose or archived.
	Kind SourceKind

	// Mod is the name of the contributing mod.
	Mod string

	// Size is the uncompressed size when known; for compressed archive
	// records it is the packed size.
	Size int64

	// Fingerprint identifies the content for cache keying. It covers
	// size and mtime for loose files, and the archive's stat plus the
	// record coordinates for archived entries.
	Fingerprint digest.Digest

	// LoosePath is the absolute on-disk path for loose entries.
	LoosePath string

	// Archive and Record locate archived entries.
	Archive *bsa.Archive
	Record  bsa.Record
}

// VFS is the immutable resolved tree.
type VFS struct {
	entries  map[string]Entry
	paths    []string // sorted, for deterministic iteration
	archives []*bsa.Archive
}

// builder carries options through Build.
type builder struct {
	logger *slog.Logger
}

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger for resolution diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func (b *builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// Build resolves mods against the data root.
//
// The data root contributes below every mod: its own archives first, then
// its loose files. Mods follow in ascending priority order, archives before
// loose files within each mod. An archive that fails to parse is skipped
// with a log entry; a missing data root fails the build with ErrDataRoot.
func Build(ctx context.Context, mods []Mod, dataRoot string, opts ...Option) (*VFS, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	info, err := os.Stat(dataRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDataRoot, dataRoot)
	}

	v := &VFS{entries: make(map[string]Entry)}

	base := Mod{Name: "", Enabled: true, Root: dataRoot, Archives: findArchives(dataRoot)}
	ordered := make([]Mod, 0, len(mods)+1)
	ordered = append(ordered, base)
	ordered = append(ordered, mods...)
	slices.SortStableFunc(ordered[1:], func(a, b Mod) int { return a.Priority - b.Priority })

	for _, mod := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !mod.Enabled {
			continue
		}
		b.addArchives(v, mod)
		if err := b.addLoose(v, mod); err != nil {
			return nil, err
		}
	}

	v.paths = make([]string, 0, len(v.entries))
	for p := range v.entries {
		v.paths = append(v.paths, p)
	}
	sort.Strings(v.paths)

	b.log().Info("vfs built", "mods", len(mods), "entries", len(v.entries))
	return v, nil
}

// addArchives merges each registered archive's records at the mod's priority.
func (b *builder) addArchives(v *VFS, mod Mod) {
	for _, arcPath := range mod.Archives {
		if !filepath.IsAbs(arcPath) {
			arcPath = filepath.Join(mod.Root, arcPath)
		}
		info, err := os.Stat(arcPath)
		if err != nil {
			b.log().Warn("archive unavailable", "mod", mod.Name, "archive", arcPath, "error", err)
			continue
		}
		a, err := bsa.Open(arcPath, bsa.WithLogger(b.logger))
		if err != nil {
			// Fail-closed per archive: a bad container contributes nothing.
			b.log().Warn("archive skipped", "mod", mod.Name, "archive", arcPath, "error", err)
			continue
		}
		v.archives = append(v.archives, a)
		if !a.HasNames() {
			b.log().Warn("archive has no name table, not merged", "mod", mod.Name, "archive", arcPath)
			continue
		}
		statFP := fmt.Sprintf("%s:%d:%d", arcPath, info.Size(), info.ModTime().UnixNano())
		for rec := range a.Entries() {
			p := rec.Path()
			if p == "" {
				continue
			}
			v.entries[p] = Entry{
				Path:        p,
				Kind:        SourceArchive,
				Mod:         mod.Name,
				Size:        int64(rec.PackedSize),
				Fingerprint: digest.FromString(fmt.Sprintf("bsa:%s:%d:%d", statFP, rec.Offset, rec.PackedSize)),
				Archive:     a,
				Record:      rec,
			}
		}
	}
}

// addLoose merges the mod root's files at the mod's priority, after its
// archives so loose entries win equal-priority ties.
func (b *builder) addLoose(v *VFS, mod Mod) error {
	if mod.Root == "" {
		return nil
	}
	root := mod.Root
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if isArchivePath(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		p := pathutil.Normalize(rel)
		v.entries[p] = Entry{
			Path:        p,
			Kind:        SourceLoose,
			Mod:         mod.Name,
			Size:        info.Size(),
			Fingerprint: digest.FromString(fmt.Sprintf("loose:%s:%d:%d", p, info.Size(), info.ModTime().UnixNano())),
			LoosePath:   path,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("vfs: walk %s: %w", root, err)
	}
	return nil
}

// findArchives lists the *.bsa files directly under dir in lexical order.
func findArchives(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var archives []string
	for _, e := range entries {
		if !e.IsDir() && isArchivePath(e.Name()) {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)
	return archives
}

func isArchivePath(p string) bool {
	return pathutil.Ext(pathutil.Normalize(p)) == ".bsa"
}

// Resolve returns the winning entry for a logical path.
func (v *VFS) Resolve(logicalPath string) (Entry, bool) {
	e, ok := v.entries[pathutil.Normalize(logicalPath)]
	return e, ok
}

// Len returns the number of unique logical paths.
func (v *VFS) Len() int { return len(v.entries) }

// Entries iterates entries in sorted path order.
func (v *VFS) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, p := range v.paths {
			if !yield(v.entries[p]) {
				return
			}
		}
	}
}

// ReadFile returns an entry's full content.
func (v *VFS) ReadFile(e Entry) ([]byte, error) {
	return ReadEntry(e)
}

// ReadEntry returns an entry's full content. The entry's archive must
// still be open.
func ReadEntry(e Entry) ([]byte, error) {
	switch e.Kind {
	case SourceLoose:
		data, err := os.ReadFile(e.LoosePath) //nolint:gosec // paths come from the resolved tree
		if err != nil {
			return nil, fmt.Errorf("vfs: read %s: %w", e.Path, err)
		}
		return data, nil
	case SourceArchive:
		return e.Archive.ReadRecord(e.Record)
	default:
		return nil, fmt.Errorf("vfs: read %s: unknown source kind %d", e.Path, e.Kind)
	}
}

// ReadEntryPrefix returns up to n leading bytes of an entry's content.
// Archived entries decompress only the requested prefix.
func ReadEntryPrefix(e Entry, n int) ([]byte, error) {
	switch e.Kind {
	case SourceLoose:
		f, err := os.Open(e.LoosePath) //nolint:gosec // paths come from the resolved tree
		if err != nil {
			return nil, fmt.Errorf("vfs: read %s: %w", e.Path, err)
		}
		defer f.Close()
		buf := make([]byte, n)
		got, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("vfs: read %s: %w", e.Path, err)
		}
		return buf[:got], nil
	case SourceArchive:
		return e.Archive.ReadRecordPrefix(e.Record, n)
	default:
		return nil, fmt.Errorf("vfs: read %s: unknown source kind %d", e.Path, e.Kind)
	}
}

// Close releases all archives opened during Build.
func (v *VFS) Close() error {
	var firstErr error
	for _, a := range v.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
