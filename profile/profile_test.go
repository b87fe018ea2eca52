package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProfile = `
game = "skyrimse"
data_root = "/games/skyrim/Data"
mods_dir = "/games/skyrim/mods"
output_root = "/games/skyrim/out"
preset = "quality"
converter = "/usr/bin/texconv"
workers = 4
retries = 2
timeout = "3m"
cache_path = "/games/skyrim/.texforge.db"
rules_dir = "/etc/texforge/rules"
`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(validProfile))
	require.NoError(t, err)
	assert.Equal(t, "skyrimse", p.Game)
	assert.Equal(t, "/games/skyrim/Data", p.DataRoot)
	assert.Equal(t, "quality", p.Preset)
	assert.Equal(t, 4, p.Workers)
	assert.Equal(t, 2, p.Retries)
	assert.Equal(t, 3*time.Minute, p.JobTimeout())
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing game", doc: `data_root = "/d"` + "\n" + `output_root = "/o"` + "\n" + `converter = "/c"`},
		{name: "missing data root", doc: `game = "g"` + "\n" + `output_root = "/o"` + "\n" + `converter = "/c"`},
		{name: "missing converter", doc: `game = "g"` + "\n" + `data_root = "/d"` + "\n" + `output_root = "/o"`},
		{name: "negative retries", doc: validProfile + "\nretries = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(validProfile + "\nspeed = \"ludicrous\""))
	assert.Error(t, err)
}

func TestParseBadTimeout(t *testing.T) {
	doc := strings.Replace(validProfile, `timeout = "3m"`, `timeout = "soon"`, 1)
	_, err := Parse(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(validProfile), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/texconv", p.Converter)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseModList(t *testing.T) {
	modsDir := t.TempDir()
	for _, mod := range []string{"Armor Pack", "Weather Overhaul"} {
		require.NoError(t, os.MkdirAll(filepath.Join(modsDir, mod), 0o755))
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(modsDir, "Armor Pack", "Armor Pack.bsa"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(modsDir, "Armor Pack", "Armor Pack - Textures.bsa"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(modsDir, "Armor Pack", "readme.txt"), []byte("x"), 0o644))

	doc := `# load order
+Armor Pack
-Old Armor Pack
+Weather Overhaul
`
	mods, err := ParseModList(strings.NewReader(doc), modsDir)
	require.NoError(t, err)
	require.Len(t, mods, 3)

	// First line outranks everything below it.
	assert.Equal(t, "Armor Pack", mods[0].Name)
	assert.True(t, mods[0].Enabled)
	assert.Greater(t, mods[0].Priority, mods[2].Priority)
	assert.Greater(t, mods[1].Priority, mods[2].Priority)

	assert.Equal(t, "Old Armor Pack", mods[1].Name)
	assert.False(t, mods[1].Enabled)

	// Archives are lexical and exclude non-.bsa files.
	assert.Equal(t, []string{"Armor Pack - Textures.bsa", "Armor Pack.bsa"}, mods[0].Archives)

	// Missing on disk, but kept so ordering stays faithful to the list.
	assert.Empty(t, mods[1].Archives)
	assert.Equal(t, filepath.Join(modsDir, "Weather Overhaul"), mods[2].Root)
}

func TestParseModListBadLines(t *testing.T) {
	for _, doc := range []string{"ArmorPack\n", "+\n"} {
		_, err := ParseModList(strings.NewReader(doc), t.TempDir())
		assert.Error(t, err, "doc %q", doc)
	}
}
