package bsa

import "strings"

// The container stores 64-bit path hashes rather than relying on name
// tables for lookup. The low 32 bits encode the first/last characters and
// length of the name stem; the high 32 bits are a rolling hash over the
// middle characters plus the extension. Folder paths and file names are
// hashed separately.
//
// Hashing expects normalized input (lower case, forward slashes); callers
// go through Lookup which normalizes first.

const hashStep = 0x1003f

// HashFile hashes a file's base name, e.g. "steel_n.dds".
func HashFile(name string) uint64 {
	stem := name
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		stem, ext = name[:i], name[i:]
	}
	return hashParts(stem, ext)
}

// HashFolder hashes a directory path, e.g. "textures/armor".
// The empty path hashes to zero.
func HashFolder(dir string) uint64 {
	return hashParts(dir, "")
}

func hashParts(stem, ext string) uint64 {
	n := len(stem)
	var low uint32
	if n > 0 {
		low = uint32(stem[n-1])
		if n > 2 {
			low |= uint32(stem[n-2]) << 8
		}
		low |= uint32(n) << 16
		low |= uint32(stem[0]) << 24
	}
	switch ext {
	case ".kf":
		low |= 0x80
	case ".nif":
		low |= 0x8000
	case ".dds":
		low |= 0x8080
	case ".wav":
		low |= 0x80000000
	}

	var mid, extHash uint32
	for i := 1; i < n-2; i++ {
		mid = mid*hashStep + uint32(stem[i])
	}
	for i := 0; i < len(ext); i++ {
		extHash = extHash*hashStep + uint32(ext[i])
	}
	return uint64(mid+extHash)<<32 | uint64(low)
}
