// Package exclude filters logical paths against per-game wildcard rules.
//
// Rule sources are line-oriented: one wildcard pattern per line, `#`
// comments and blank lines ignored. Matching is case-insensitive on
// normalized paths; the first matching rule excludes, no match means
// included.
package exclude

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/texforge/texforge/internal/pathutil"
)

// Rule is one wildcard pattern tied to its game.
type Rule struct {
	Pattern string
	Game    string
}

// Set is an ordered collection of exclusion rules for one game.
type Set struct {
	game  string
	rules []Rule
}

// Load reads rules for a game from r, preserving order.
func Load(game string, r io.Reader) (*Set, error) {
	s := &Set{game: game}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.rules = append(s.rules, Rule{Pattern: pathutil.Normalize(line), Game: game})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("exclude: read rules for %s: %w", game, err)
	}
	return s, nil
}

// LoadFile reads `<dir>/<game>.txt`. A missing file yields an empty set,
// since a game without a rule file simply excludes nothing.
func LoadFile(dir, game string) (*Set, error) {
	f, err := os.Open(filepath.Join(dir, game+".txt")) //nolint:gosec // rule dir comes from the profile
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{game: game}, nil
		}
		return nil, fmt.Errorf("exclude: open rules for %s: %w", game, err)
	}
	defer f.Close()
	return Load(game, f)
}

// Game returns the game identifier the set was loaded for.
func (s *Set) Game() string { return s.game }

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// Matches reports whether the path is excluded by any rule.
func (s *Set) Matches(logicalPath string) bool {
	p := pathutil.Normalize(logicalPath)
	for _, rule := range s.rules {
		if matchPattern(rule.Pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a normalized pattern against a normalized path.
// A pattern without a separator matches the path's base name; otherwise
// the pattern matches the whole path segment by segment.
func matchPattern(pattern, p string) bool {
	if !strings.Contains(pattern, "/") {
		_, base := pathutil.Split(p)
		return matchSegment(pattern, base)
	}
	patSegs := strings.Split(pattern, "/")
	pathSegs := strings.Split(p, "/")
	if len(patSegs) != len(pathSegs) {
		return false
	}
	for i, ps := range patSegs {
		if !matchSegment(ps, pathSegs[i]) {
			return false
		}
	}
	return true
}

// matchSegment matches one segment, honoring a single `*` wildcard.
func matchSegment(pattern, seg string) bool {
	i := strings.Index(pattern, "*")
	if i < 0 {
		return pattern == seg
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	// Anything past the first wildcard is a literal suffix.
	return len(seg) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(seg, prefix) &&
		strings.HasSuffix(seg, suffix)
}
