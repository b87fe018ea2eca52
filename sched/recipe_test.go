package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texforge/texforge/texture"
)

func TestParsePreset(t *testing.T) {
	for _, name := range []string{"performance", "quality", "ultra"} {
		p, err := ParsePreset(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}

	_, err := ParsePreset("extreme")
	assert.Error(t, err)
}

func TestRecipeID(t *testing.T) {
	assert.Equal(t, "BC7_UNORM:2048:mips", Recipe{Format: "BC7_UNORM", MaxDim: 2048}.ID())
	assert.Equal(t, "BC3_UNORM:512:1mip", Recipe{Format: "BC3_UNORM", MaxDim: 512, SingleMip: true}.ID())
}

func TestResolveRecipeCoversAllTypes(t *testing.T) {
	types := []texture.Type{
		texture.Diffuse, texture.Normal, texture.Specular,
		texture.Gloss, texture.Emissive, texture.Packed, texture.Other,
	}
	for _, p := range []Preset{PresetPerformance, PresetQuality, PresetUltra} {
		for _, typ := range types {
			r, ok := ResolveRecipe(p, typ)
			require.True(t, ok, "%s/%s", p, typ)
			assert.NotEmpty(t, r.Format)
		}
	}
}

func TestResolveRecipeScalesWithPreset(t *testing.T) {
	perf, _ := ResolveRecipe(PresetPerformance, texture.Diffuse)
	ultra, _ := ResolveRecipe(PresetUltra, texture.Diffuse)
	assert.Less(t, perf.MaxDim, ultra.MaxDim)
}
