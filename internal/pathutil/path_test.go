package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty string", "", "."},
		{"root slash", "/", "."},
		{"simple", "Textures", "textures"},
		{"backslashes", `Textures\Armor\steel.dds`, "textures/armor/steel.dds"},
		{"mixed separators", `Textures/Armor\steel.dds`, "textures/armor/steel.dds"},
		{"upper case", "TEXTURES/ARMOR/STEEL_N.DDS", "textures/armor/steel_n.dds"},
		{"leading slash", "/textures/a.dds", "textures/a.dds"},
		{"trailing slash", "textures/armor/", "textures/armor"},
		{"double slashes", "textures//armor", "textures/armor"},
		{"only slashes", "///", "."},
		{"backslash only", `\`, "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		input    string
		wantDir  string
		wantBase string
	}{
		{"textures/armor/steel.dds", "textures/armor", "steel.dds"},
		{"steel.dds", "", "steel.dds"},
		{"a/b", "a", "b"},
	}
	for _, tt := range tests {
		dir, base := Split(tt.input)
		assert.Equal(t, tt.wantDir, dir)
		assert.Equal(t, tt.wantBase, base)
	}
}

func TestExtStem(t *testing.T) {
	assert.Equal(t, ".dds", Ext("textures/steel_n.dds"))
	assert.Equal(t, "", Ext("textures/readme"))
	assert.Equal(t, "steel_n", Stem("textures/steel_n.dds"))
	assert.Equal(t, "readme", Stem("textures/readme"))
}
