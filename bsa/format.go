package bsa

// Version identifies a container format variant. The variants share the
// same header and record layout apart from the folder record width and the
// per-record compression algorithm.
type Version uint32

// Supported container versions.
const (
	// V103 uses 32-bit folder offsets and zlib record compression.
	V103 Version = 103
	// V104 adds the embedded-names data layout; zlib record compression.
	V104 Version = 104
	// V105 widens folder offsets to 64 bits and uses lz4 record compression.
	V105 Version = 105
)

func (v Version) supported() bool {
	return v == V103 || v == V104 || v == V105
}

// ArchiveFlag is the header's archive flag bitfield.
type ArchiveFlag uint32

const (
	// FlagFolderNames indicates folder names are stored with the records.
	FlagFolderNames ArchiveFlag = 0x1
	// FlagFileNames indicates a file name block follows the records.
	FlagFileNames ArchiveFlag = 0x2
	// FlagCompressed marks records as compressed by default; a record's
	// size bit toggles against this default.
	FlagCompressed ArchiveFlag = 0x4
	// FlagEmbeddedNames prefixes each data block with its full path
	// (v104 and later).
	FlagEmbeddedNames ArchiveFlag = 0x100
)

// Header is the fixed 36-byte archive header.
type Header struct {
	Version       Version
	RecordsOffset uint32
	Flags         ArchiveFlag
	FolderCount   uint32
	FileCount     uint32
	FolderNameLen uint32
	FileNameLen   uint32
	ContentFlags  uint32
}

// Compressed reports whether the default for records is compressed.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// HasFileNames reports whether the archive carries a file name block.
func (h Header) HasFileNames() bool { return h.Flags&FlagFileNames != 0 }

// embeddedNames reports whether data blocks carry a leading path string.
func (h Header) embeddedNames() bool {
	return h.Version >= V104 && h.Flags&FlagEmbeddedNames != 0
}

// Record describes one file inside an archive.
type Record struct {
	// Folder and Name are the record's path components, empty when the
	// archive omits name tables.
	Folder string
	Name   string

	// FolderHash and NameHash identify the record independently of names.
	FolderHash uint64
	NameHash   uint64

	// Offset is the absolute position of the record's data block.
	Offset uint64

	// PackedSize is the stored size of the data block, including any
	// embedded path prefix and compression header.
	PackedSize uint32

	// Compressed reports whether the data block is compressed.
	Compressed bool
}

// Path returns the record's logical path, or "" when names are absent.
func (r Record) Path() string {
	if r.Name == "" {
		return ""
	}
	if r.Folder == "" {
		return r.Name
	}
	return r.Folder + "/" + r.Name
}

// sizeCompressionToggle flips the record's compression against the
// archive default.
const sizeCompressionToggle = 0x40000000

const sizeMask = 0x3fffffff
