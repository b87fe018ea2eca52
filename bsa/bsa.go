// Package bsa reads the layered-asset binary container format.
//
// An archive is a header, a folder record table, per-folder file record
// blocks, an optional file name block, and the data blocks. Records may be
// individually compressed; the algorithm depends on the container version
// (zlib for v103/v104, lz4 for v105).
//
// Parsing is fail-closed: magic and version are validated before any record
// is read, and a truncated record table voids the whole archive. Record
// reads are fail-open: a record that cannot be decompressed yields a
// per-record error and leaves the archive usable.
package bsa

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/texforge/texforge/internal/pathutil"
)

const headerSize = 36

// Record table row widths.
const (
	folderRecordLen     = 16
	folderRecordLenV105 = 24
	fileRecordLen       = 16
)

// maxNameLen bounds embedded and table name lengths read from the file.
const maxNameLen = 1024

type hashKey struct {
	folder uint64
	name   uint64
}

// Archive provides access to a parsed container.
//
// An Archive is immutable after Parse and safe for concurrent reads.
type Archive struct {
	src     io.ReaderAt
	size    int64
	closer  io.Closer
	hdr     Header
	records []Record
	byHash  map[hashKey]int

	maxRecordSize uint64
	logger        *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithMaxRecordSize limits the uncompressed size of a single record.
// Zero disables the limit.
func WithMaxRecordSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxRecordSize = limit
	}
}

// WithLogger sets the logger for parse and read diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens and parses the archive at path.
// The caller must Close the returned archive.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // archive paths come from the profile
	if err != nil {
		return nil, fmt.Errorf("bsa: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bsa: stat %s: %w", path, err)
	}
	a, err := Parse(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Parse reads the header and record tables from r.
//
// The reader is retained for later record reads; callers must keep it
// open for the lifetime of the archive.
func Parse(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	a := &Archive{src: r, size: size}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.parseHeader(); err != nil {
		return nil, err
	}
	if err := a.parseRecords(); err != nil {
		return nil, err
	}
	a.byHash = make(map[hashKey]int, len(a.records))
	for i, rec := range a.records {
		a.byHash[hashKey{rec.FolderHash, rec.NameHash}] = i
	}
	a.log().Debug("archive parsed",
		"version", uint32(a.hdr.Version),
		"folders", a.hdr.FolderCount,
		"files", len(a.records))
	return a, nil
}

func (a *Archive) parseHeader() error {
	var buf [headerSize]byte
	if _, err := a.src.ReadAt(buf[:], 0); err != nil {
		return fmt.Errorf("%w: header", ErrTruncated)
	}
	if string(buf[0:4]) != "BSA\x00" {
		return ErrBadMagic
	}
	le := binary.LittleEndian
	a.hdr = Header{
		Version:       Version(le.Uint32(buf[4:])),
		RecordsOffset: le.Uint32(buf[8:]),
		Flags:         ArchiveFlag(le.Uint32(buf[12:])),
		FolderCount:   le.Uint32(buf[16:]),
		FileCount:     le.Uint32(buf[20:]),
		FolderNameLen: le.Uint32(buf[24:]),
		FileNameLen:   le.Uint32(buf[28:]),
		ContentFlags:  le.Uint32(buf[32:]),
	}
	if !a.hdr.Version.supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.hdr.Version)
	}
	if int64(a.hdr.RecordsOffset) < headerSize || int64(a.hdr.RecordsOffset) >= a.size {
		return fmt.Errorf("%w: record offset %d", ErrTruncated, a.hdr.RecordsOffset)
	}

	// Header counts are untrusted; a table that cannot fit in the bytes
	// that remain voids the archive before anything is sized off it.
	folderLen := uint64(folderRecordLen)
	if a.hdr.Version == V105 {
		folderLen = folderRecordLenV105
	}
	need := uint64(a.hdr.FolderCount)*folderLen +
		uint64(a.hdr.FileCount)*fileRecordLen +
		uint64(a.hdr.FolderNameLen) + uint64(a.hdr.FileNameLen)
	if remaining := uint64(a.size) - uint64(a.hdr.RecordsOffset); need > remaining {
		return fmt.Errorf("%w: record tables need %d bytes, %d remain", ErrTruncated, need, remaining)
	}
	return nil
}

// folderRecord is one parsed folder table row.
type folderRecord struct {
	hash  uint64
	count uint32
}

func (a *Archive) parseRecords() error {
	section := io.NewSectionReader(a.src, int64(a.hdr.RecordsOffset), a.size-int64(a.hdr.RecordsOffset))
	br := bufio.NewReader(section)

	folders := make([]folderRecord, a.hdr.FolderCount)
	for i := range folders {
		fr, err := a.readFolderRecord(br)
		if err != nil {
			return err
		}
		folders[i] = fr
	}

	a.records = make([]Record, 0, a.hdr.FileCount)
	for _, fr := range folders {
		folderName := ""
		if a.hdr.Flags&FlagFolderNames != 0 {
			name, err := readPrefixedName(br)
			if err != nil {
				return err
			}
			folderName = pathutil.Normalize(name)
			if folderName == "." {
				folderName = ""
			}
		}
		for range fr.count {
			rec, err := a.readFileRecord(br)
			if err != nil {
				return err
			}
			rec.Folder = folderName
			rec.FolderHash = fr.hash
			a.records = append(a.records, rec)
		}
	}
	if uint32(len(a.records)) != a.hdr.FileCount {
		return fmt.Errorf("%w: %d of %d file records", ErrTruncated, len(a.records), a.hdr.FileCount)
	}

	if a.hdr.HasFileNames() {
		if err := a.readNameBlock(br); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) readFolderRecord(br *bufio.Reader) (folderRecord, error) {
	// v105 widens the offset to 64 bits with 4 bytes of padding.
	recLen := folderRecordLen
	if a.hdr.Version == V105 {
		recLen = folderRecordLenV105
	}
	buf := make([]byte, recLen)
	if _, err := io.ReadFull(br, buf); err != nil {
		return folderRecord{}, fmt.Errorf("%w: folder record", ErrTruncated)
	}
	le := binary.LittleEndian
	return folderRecord{
		hash:  le.Uint64(buf[0:]),
		count: le.Uint32(buf[8:]),
	}, nil
}

func (a *Archive) readFileRecord(br *bufio.Reader) (Record, error) {
	var buf [16]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return Record{}, fmt.Errorf("%w: file record", ErrTruncated)
	}
	le := binary.LittleEndian
	sizeField := le.Uint32(buf[8:])
	compressed := a.hdr.Compressed()
	if sizeField&sizeCompressionToggle != 0 {
		compressed = !compressed
	}
	return Record{
		NameHash:   le.Uint64(buf[0:]),
		PackedSize: sizeField & sizeMask,
		Offset:     uint64(le.Uint32(buf[12:])),
		Compressed: compressed,
	}, nil
}

// readNameBlock assigns names from the trailing name table in record order.
func (a *Archive) readNameBlock(br *bufio.Reader) error {
	block := make([]byte, a.hdr.FileNameLen)
	if _, err := io.ReadFull(br, block); err != nil {
		return fmt.Errorf("%w: name block", ErrTruncated)
	}
	pos := 0
	for i := range a.records {
		start := pos
		for pos < len(block) && block[pos] != 0 {
			pos++
		}
		if pos >= len(block) {
			return fmt.Errorf("%w: name block exhausted at record %d", ErrTruncated, i)
		}
		a.records[i].Name = pathutil.Normalize(string(block[start:pos]))
		pos++ // NUL
	}
	return nil
}

// readPrefixedName reads a length-prefixed, NUL-terminated name.
func readPrefixedName(br *bufio.Reader) (string, error) {
	n, err := br.ReadByte()
	if err != nil {
		return "", fmt.Errorf("%w: folder name", ErrTruncated)
	}
	if n == 0 || int(n) > maxNameLen {
		return "", fmt.Errorf("%w: folder name length %d", ErrTruncated, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", fmt.Errorf("%w: folder name", ErrTruncated)
	}
	return string(buf[:n-1]), nil // strip NUL
}

// Header returns the parsed archive header.
func (a *Archive) Header() Header { return a.hdr }

// Len returns the number of file records.
func (a *Archive) Len() int { return len(a.records) }

// HasNames reports whether records carry logical paths.
func (a *Archive) HasNames() bool { return a.hdr.HasFileNames() }

// Entries returns an iterator over all file records in table order.
// The iterator is restartable.
func (a *Archive) Entries() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range a.records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Lookup finds the record for a logical path by hashing its folder and
// base name. A miss means the entry is absent; it is never an error.
func (a *Archive) Lookup(logicalPath string) (Record, bool) {
	p := pathutil.Normalize(logicalPath)
	dir, base := pathutil.Split(p)
	i, ok := a.byHash[hashKey{HashFolder(dir), HashFile(base)}]
	if !ok {
		return Record{}, false
	}
	return a.records[i], true
}

// ReadRecord returns the uncompressed content of a record.
//
// The record's data range is validated against the archive size before any
// read. Decompression failures are scoped to the record.
func (a *Archive) ReadRecord(rec Record) ([]byte, error) {
	data, err := a.recordData(rec)
	if err != nil {
		return nil, err
	}
	if !rec.Compressed {
		return data, nil
	}

	origSize, dec, err := a.decoder(rec, data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, origSize)
	if _, err := io.ReadFull(dec, out); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDecompression, rec.Path(), err)
	}
	// Trailing garbage after the declared size means a corrupt stream.
	var one [1]byte
	if n, err := dec.Read(one[:]); n != 0 || !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q: trailing data", ErrDecompression, rec.Path())
	}
	return out, nil
}

// ReadRecordPrefix returns up to n leading bytes of the record's content.
//
// Compressed records are decompressed only up to n bytes, so inspecting a
// header never materializes the full payload.
func (a *Archive) ReadRecordPrefix(rec Record, n int) ([]byte, error) {
	data, err := a.recordData(rec)
	if err != nil {
		return nil, err
	}
	if !rec.Compressed {
		if n > len(data) {
			n = len(data)
		}
		return data[:n], nil
	}

	origSize, dec, err := a.decoder(rec, data)
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(origSize) {
		n = int(origSize)
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(dec, out); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDecompression, rec.Path(), err)
	}
	return out, nil
}

// recordData reads a record's raw bytes, embedded name stripped, after
// validating its range against the archive size.
func (a *Archive) recordData(rec Record) ([]byte, error) {
	end := rec.Offset + uint64(rec.PackedSize)
	if end < rec.Offset || end > uint64(a.size) {
		return nil, fmt.Errorf("%w: %q at %d+%d", ErrRecordBounds, rec.Path(), rec.Offset, rec.PackedSize)
	}
	data := make([]byte, rec.PackedSize)
	if _, err := a.src.ReadAt(data, int64(rec.Offset)); err != nil { //nolint:gosec // bounds checked above
		return nil, fmt.Errorf("bsa: read %q: %w", rec.Path(), err)
	}

	if a.hdr.embeddedNames() {
		if len(data) < 1 || int(data[0])+1 > len(data) {
			return nil, fmt.Errorf("%w: %q: embedded name", ErrDecompression, rec.Path())
		}
		data = data[1+int(data[0]):]
	}
	return data, nil
}

// decoder validates the size prefix and returns the record's declared
// uncompressed size and a streaming reader over its compressed bytes.
func (a *Archive) decoder(rec Record, data []byte) (uint32, io.Reader, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("%w: %q: missing size prefix", ErrDecompression, rec.Path())
	}
	origSize := binary.LittleEndian.Uint32(data[0:4])
	if a.maxRecordSize > 0 && uint64(origSize) > a.maxRecordSize {
		return 0, nil, fmt.Errorf("%w: %q: %d bytes", ErrRecordTooLarge, rec.Path(), origSize)
	}
	stream := data[4:]

	switch a.hdr.Version {
	case V103, V104:
		zr, err := zlib.NewReader(bytes.NewReader(stream))
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %q: %v", ErrDecompression, rec.Path(), err)
		}
		return origSize, zr, nil
	case V105:
		return origSize, lz4.NewReader(bytes.NewReader(stream)), nil
	default:
		return 0, nil, fmt.Errorf("%w: %q: version %d", ErrDecompression, rec.Path(), a.hdr.Version)
	}
}

// Close releases the underlying file when the archive was opened via Open.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
