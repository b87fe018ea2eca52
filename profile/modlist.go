package profile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/texforge/texforge/vfs"
)

// LoadModList reads a load-order file and resolves each mod against
// modsDir.
//
// One mod per line: `+Name` enabled, `-Name` disabled; blank lines and
// `#` comments are ignored. The first line is the highest-priority mod,
// so earlier lines are assigned larger priority ranks. Each mod's
// archives are the `*.bsa` files directly under its root, in lexical
// order; a mod directory missing from disk is kept with no archives so
// ordering stays faithful to the list.
func LoadModList(path, modsDir string) ([]vfs.Mod, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("profile: open mod list: %w", err)
	}
	defer f.Close()
	return ParseModList(f, modsDir)
}

// ParseModList reads a load-order document from r. See LoadModList.
func ParseModList(r io.Reader, modsDir string) ([]vfs.Mod, error) {
	type line struct {
		name    string
		enabled bool
	}
	var lines []line

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var enabled bool
		switch text[0] {
		case '+':
			enabled = true
		case '-':
			enabled = false
		default:
			return nil, fmt.Errorf("profile: mod list line %q: missing +/- marker", text)
		}
		name := strings.TrimSpace(text[1:])
		if name == "" {
			return nil, fmt.Errorf("profile: mod list line %q: empty mod name", text)
		}
		lines = append(lines, line{name: name, enabled: enabled})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("profile: read mod list: %w", err)
	}

	mods := make([]vfs.Mod, 0, len(lines))
	for i, ln := range lines {
		root := filepath.Join(modsDir, ln.name)
		archives, err := findArchives(root)
		if err != nil {
			return nil, err
		}
		mods = append(mods, vfs.Mod{
			Name:    ln.name,
			Enabled: ln.enabled,
			// First line outranks everything below it.
			Priority: len(lines) - i,
			Root:     root,
			Archives: archives,
		})
	}
	return mods, nil
}

// findArchives lists the *.bsa files directly under root, lexically.
func findArchives(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: read mod dir: %w", err)
	}
	var archives []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".bsa") {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)
	return archives, nil
}
