// Package pathutil provides normalization for logical asset paths.
//
// A logical path is the slash-separated, lower-cased path of an asset
// relative to the data root. Mod directories on disk and archive records
// both normalize to this form so entries from different sources can be
// compared and merged.
package pathutil

import "strings"

// Normalize converts a source path to logical form.
//
// It performs the following transformations:
//   - Converts backslashes to forward slashes
//   - Lower-cases the whole path
//   - Strips leading and trailing slashes
//   - Collapses consecutive slashes
//   - Converts empty input to "."
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ToLower(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	if !strings.Contains(p, "//") {
		return p
	}
	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// Split separates a logical path into its directory and base name.
// The directory is "" for paths without a separator.
func Split(p string) (dir, base string) {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

// Ext returns the extension of a logical path including the dot,
// or "" when the base name has none.
func Ext(p string) string {
	_, base := Split(p)
	if i := strings.LastIndex(base, "."); i >= 0 {
		return base[i:]
	}
	return ""
}

// Stem returns the base name of a logical path without its extension.
func Stem(p string) string {
	_, base := Split(p)
	if i := strings.LastIndex(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}
