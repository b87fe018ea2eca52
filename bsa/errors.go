package bsa

import "errors"

// Sentinel errors for archive parsing and record reads.
var (
	// ErrBadMagic is returned when the file does not start with the BSA magic.
	ErrBadMagic = errors.New("bsa: bad magic")

	// ErrUnsupportedVersion is returned when the header version is not a
	// supported container variant.
	ErrUnsupportedVersion = errors.New("bsa: unsupported version")

	// ErrTruncated is returned when the record tables end before the header
	// says they should. A truncated archive contributes no entries.
	ErrTruncated = errors.New("bsa: truncated record table")

	// ErrRecordBounds is returned when a record's data range lies outside
	// the archive file.
	ErrRecordBounds = errors.New("bsa: record out of bounds")

	// ErrDecompression is returned when a record's data block cannot be
	// decompressed. The error is scoped to the record, not the archive.
	ErrDecompression = errors.New("bsa: decompression failed")

	// ErrRecordTooLarge is returned when a record's uncompressed size
	// exceeds the configured limit.
	ErrRecordTooLarge = errors.New("bsa: record exceeds size limit")
)
