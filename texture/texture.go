// Package texture classifies texture assets and decodes their headers.
//
// Classification is two independent checks: the semantic Type comes from
// the logical path alone, and header decoding validates that the bytes are
// a well-formed texture. A path that types as Normal but fails header
// decode is a decode failure, never a reclassification.
package texture

import (
	"errors"
	"strings"

	"github.com/texforge/texforge/internal/pathutil"
	"github.com/texforge/texforge/vfs"
)

// Sentinel errors for header decoding.
var (
	// ErrNotTexture is returned when the magic does not match; the asset
	// is silently excluded, not reported.
	ErrNotTexture = errors.New("texture: not a texture")

	// ErrMalformedHeader is returned when the magic matches but later
	// header fields are invalid. The asset is dropped and logged.
	ErrMalformedHeader = errors.New("texture: malformed header")
)

// Type is the semantic texture class derived from the logical path.
type Type uint8

// Texture types in rule-table order of specificity.
const (
	Diffuse Type = iota
	Normal
	Specular
	Gloss
	Emissive
	Packed
	Other
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Diffuse:
		return "diffuse"
	case Normal:
		return "normal"
	case Specular:
		return "specular"
	case Gloss:
		return "gloss"
	case Emissive:
		return "emissive"
	case Packed:
		return "packed"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// typeRule maps a stem suffix to a type. First match wins.
type typeRule struct {
	suffix string
	typ    Type
}

// Longer suffixes come before their shorter overlaps, e.g. _msn before _n.
var typeRules = []typeRule{
	{"_rmaos", Packed},
	{"_rma", Packed},
	{"_msn", Normal},
	{"_normal", Normal},
	{"_n", Normal},
	{"_spec", Specular},
	{"_s", Specular},
	{"_glow", Emissive},
	{"_g", Emissive},
	{"_em", Emissive},
	{"_e", Emissive},
	{"_m", Gloss},
	{"_p", Gloss},
	{"_h", Gloss},
	{"_sk", Other},
	{"_d", Diffuse},
}

// TypeOf classifies a logical path by its base name suffix.
// Paths with no matching suffix default to Diffuse.
func TypeOf(logicalPath string) Type {
	stem := pathutil.Stem(pathutil.Normalize(logicalPath))
	for _, rule := range typeRules {
		if strings.HasSuffix(stem, rule.suffix) {
			return rule.typ
		}
	}
	return Diffuse
}

// Asset is a classified, header-validated texture.
type Asset struct {
	// Path is the normalized logical path.
	Path string

	// Type is the path-derived semantic class.
	Type Type

	// Header holds the decoded texture header.
	Header Header

	// Entry is the source this asset resolved from.
	Entry vfs.Entry
}

// Classify combines path typing with header decoding for a VFS entry.
//
// head must hold at least the leading HeaderSize bytes of the entry's
// content (shorter content is passed as-is). The two checks stay distinct:
// ErrNotTexture means the bytes are not a texture regardless of how the
// path classified.
func Classify(entry vfs.Entry, head []byte) (Asset, error) {
	hdr, err := DecodeHeader(head)
	if err != nil {
		return Asset{}, err
	}
	return Asset{
		Path:   entry.Path,
		Type:   TypeOf(entry.Path),
		Header: hdr,
		Entry:  entry,
	}, nil
}
