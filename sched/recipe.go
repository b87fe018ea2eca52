package sched

import (
	"fmt"
	"strconv"

	"github.com/texforge/texforge/texture"
)

// Preset selects a quality/size trade-off. Each preset defines a max
// dimension and mip policy per texture type.
type Preset uint8

// Quality presets.
const (
	PresetPerformance Preset = iota
	PresetQuality
	PresetUltra
)

// String returns the preset name.
func (p Preset) String() string {
	switch p {
	case PresetPerformance:
		return "performance"
	case PresetQuality:
		return "quality"
	case PresetUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// ParsePreset parses a preset name.
func ParsePreset(s string) (Preset, error) {
	switch s {
	case "performance":
		return PresetPerformance, nil
	case "quality":
		return PresetQuality, nil
	case "ultra":
		return PresetUltra, nil
	default:
		return 0, fmt.Errorf("sched: unknown preset %q", s)
	}
}

// Recipe is the conversion target for one texture type under one preset.
type Recipe struct {
	// Format is the converter's target pixel format.
	Format string

	// MaxDim caps the larger output dimension; zero leaves size alone.
	MaxDim int

	// SingleMip drops the mip chain to one level.
	SingleMip bool
}

// ID returns the stable recipe identifier used for grouping and cache keys.
func (r Recipe) ID() string {
	mips := "mips"
	if r.SingleMip {
		mips = "1mip"
	}
	return r.Format + ":" + strconv.Itoa(r.MaxDim) + ":" + mips
}

// recipes maps preset and type to a conversion target. Behavior changes by
// adding rows here, not by branching elsewhere.
//
// Diffuse keeps an alpha-capable compressed format; normals use the
// two-channel compressed format; single-channel maps use the 4-bit-channel
// format; packed composites fall back to uncompressed RGBA because block
// compression bleeds across their channels.
var recipes = map[Preset]map[texture.Type]Recipe{
	PresetPerformance: {
		texture.Diffuse:  {Format: "BC3_UNORM", MaxDim: 1024},
		texture.Normal:   {Format: "BC1_UNORM", MaxDim: 1024},
		texture.Specular: {Format: "BC4_UNORM", MaxDim: 512},
		texture.Gloss:    {Format: "BC4_UNORM", MaxDim: 512},
		texture.Emissive: {Format: "BC3_UNORM", MaxDim: 512, SingleMip: true},
		texture.Packed:   {Format: "R8G8B8A8_UNORM", MaxDim: 1024},
		texture.Other:    {Format: "BC3_UNORM", MaxDim: 1024},
	},
	PresetQuality: {
		texture.Diffuse:  {Format: "BC7_UNORM", MaxDim: 2048},
		texture.Normal:   {Format: "BC5_UNORM", MaxDim: 2048},
		texture.Specular: {Format: "BC4_UNORM", MaxDim: 1024},
		texture.Gloss:    {Format: "BC4_UNORM", MaxDim: 1024},
		texture.Emissive: {Format: "BC3_UNORM", MaxDim: 1024},
		texture.Packed:   {Format: "R8G8B8A8_UNORM", MaxDim: 2048},
		texture.Other:    {Format: "BC7_UNORM", MaxDim: 2048},
	},
	PresetUltra: {
		texture.Diffuse:  {Format: "BC7_UNORM", MaxDim: 4096},
		texture.Normal:   {Format: "BC7_UNORM", MaxDim: 4096},
		texture.Specular: {Format: "BC4_UNORM", MaxDim: 2048},
		texture.Gloss:    {Format: "BC4_UNORM", MaxDim: 2048},
		texture.Emissive: {Format: "BC7_UNORM", MaxDim: 2048},
		texture.Packed:   {Format: "R8G8B8A8_UNORM", MaxDim: 4096},
		texture.Other:    {Format: "BC7_UNORM", MaxDim: 4096},
	},
}

// ResolveRecipe returns the recipe for a type under a preset.
func ResolveRecipe(p Preset, t texture.Type) (Recipe, bool) {
	byType, ok := recipes[p]
	if !ok {
		return Recipe{}, false
	}
	r, ok := byType[t]
	return r, ok
}
