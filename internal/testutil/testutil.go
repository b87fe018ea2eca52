// Package testutil builds synthetic archives and texture fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"

	"github.com/texforge/texforge/bsa"
	"github.com/texforge/texforge/internal/pathutil"
)

// ArchiveSpec describes a synthetic archive to build.
type ArchiveSpec struct {
	Version bsa.Version
	// Files maps logical paths to content.
	Files map[string][]byte
	// Compress sets the compressed-by-default flag; all records follow it.
	Compress bool
	// OmitNames drops the folder/file name tables, leaving hash-only records.
	OmitNames bool
	// EmbedNames prefixes data blocks with their path (v104+ layout).
	EmbedNames bool
}

type specFile struct {
	name    string
	content []byte
}

type specFolder struct {
	name  string
	files []specFile
}

// BuildArchive serializes the spec into archive bytes.
func BuildArchive(t *testing.T, spec ArchiveSpec) []byte {
	t.Helper()
	if spec.Version == 0 {
		spec.Version = bsa.V104
	}

	folders := groupFolders(spec)

	var flags bsa.ArchiveFlag
	if !spec.OmitNames {
		flags |= bsa.FlagFolderNames | bsa.FlagFileNames
	}
	if spec.Compress {
		flags |= bsa.FlagCompressed
	}
	if spec.EmbedNames {
		flags |= bsa.FlagEmbeddedNames
	}

	folderRecLen := 16
	if spec.Version == bsa.V105 {
		folderRecLen = 24
	}

	fileCount := 0
	folderNameLen := 0
	fileNameLen := 0
	recordsSize := 0
	for _, fo := range folders {
		recordsSize += folderRecLen
		if !spec.OmitNames {
			recordsSize += 2 + len(fo.name) // length prefix + name + NUL
			folderNameLen += 2 + len(fo.name)
		}
		recordsSize += 16 * len(fo.files)
		for _, fi := range fo.files {
			fileCount++
			fileNameLen += len(fi.name) + 1
		}
	}
	if spec.OmitNames {
		fileNameLen = 0
		folderNameLen = 0
	}

	dataStart := 36 + recordsSize + fileNameLen

	// Build data blocks up front so record offsets are known.
	type block struct {
		data []byte
	}
	blocks := make([]block, 0, fileCount)
	offsets := make([]uint32, 0, fileCount)
	offset := uint32(dataStart) //nolint:gosec // test fixture sizes are small
	for _, fo := range folders {
		for _, fi := range fo.files {
			var buf bytes.Buffer
			if spec.EmbedNames {
				full := fi.name
				if fo.name != "" {
					full = fo.name + "/" + fi.name
				}
				buf.WriteByte(byte(len(full)))
				buf.WriteString(full)
			}
			if spec.Compress {
				var sizeBuf [4]byte
				binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(fi.content))) //nolint:gosec // fixture
				buf.Write(sizeBuf[:])
				buf.Write(compress(t, spec.Version, fi.content))
			} else {
				buf.Write(fi.content)
			}
			blocks = append(blocks, block{data: buf.Bytes()})
			offsets = append(offsets, offset)
			offset += uint32(buf.Len()) //nolint:gosec // fixture
		}
	}

	var out bytes.Buffer
	le := binary.LittleEndian
	w32 := func(v uint32) {
		var b [4]byte
		le.PutUint32(b[:], v)
		out.Write(b[:])
	}
	w64 := func(v uint64) {
		var b [8]byte
		le.PutUint64(b[:], v)
		out.Write(b[:])
	}

	out.WriteString("BSA\x00")
	w32(uint32(spec.Version))
	w32(36)
	w32(uint32(flags))
	w32(uint32(len(folders)))        //nolint:gosec // fixture
	w32(uint32(fileCount))           //nolint:gosec // fixture
	w32(uint32(folderNameLen))       //nolint:gosec // fixture
	w32(uint32(fileNameLen))         //nolint:gosec // fixture
	w32(0x1)                         // content flags: textures

	blockIdx := 0
	for _, fo := range folders {
		w64(bsa.HashFolder(fo.name))
		w32(uint32(len(fo.files))) //nolint:gosec // fixture
		if spec.Version == bsa.V105 {
			w32(0)
			w64(0)
		} else {
			w32(0)
		}
	}
	// The folder record's offset field is unused by the reader; record
	// blocks follow the folder table in order.
	for _, fo := range folders {
		if !spec.OmitNames {
			out.WriteByte(byte(len(fo.name) + 1))
			out.WriteString(fo.name)
			out.WriteByte(0)
		}
		for _, fi := range fo.files {
			w64(bsa.HashFile(fi.name))
			sizeField := uint32(len(blocks[blockIdx].data)) //nolint:gosec // fixture
			w32(sizeField)
			w32(offsets[blockIdx])
			blockIdx++
		}
	}
	if !spec.OmitNames {
		for _, fo := range folders {
			for _, fi := range fo.files {
				out.WriteString(fi.name)
				out.WriteByte(0)
			}
		}
	}
	for _, b := range blocks {
		out.Write(b.data)
	}
	return out.Bytes()
}

// WriteArchive builds the spec and writes it to path.
func WriteArchive(t *testing.T, path string, spec ArchiveSpec) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, BuildArchive(t, spec), 0o644))
}

func groupFolders(spec ArchiveSpec) []specFolder {
	byFolder := make(map[string][]specFile)
	for p, content := range spec.Files {
		norm := pathutil.Normalize(p)
		dir, base := pathutil.Split(norm)
		byFolder[dir] = append(byFolder[dir], specFile{name: base, content: content})
	}
	names := make([]string, 0, len(byFolder))
	for name := range byFolder {
		names = append(names, name)
	}
	sort.Strings(names)
	folders := make([]specFolder, 0, len(names))
	for _, name := range names {
		files := byFolder[name]
		sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
		folders = append(folders, specFolder{name: name, files: files})
	}
	return folders
}

func compress(t *testing.T, v bsa.Version, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch v {
	case bsa.V105:
		lw := lz4.NewWriter(&buf)
		_, err := lw.Write(content)
		require.NoError(t, err)
		require.NoError(t, lw.Close())
	default:
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(content)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	return buf.Bytes()
}

// DDS builds a minimal DDS file with the given dimensions and FourCC.
// An empty fourcc produces an uncompressed RGBA8 pixel format block.
func DDS(width, height, mips uint32, fourcc string) []byte {
	buf := make([]byte, 128)
	le := binary.LittleEndian
	copy(buf[0:4], "DDS ")
	le.PutUint32(buf[4:], 124)
	le.PutUint32(buf[8:], 0x000a1007) // caps|height|width|pixelformat|mipcount|linearsize
	le.PutUint32(buf[12:], height)
	le.PutUint32(buf[16:], width)
	le.PutUint32(buf[28:], mips)
	le.PutUint32(buf[76:], 32) // pixel format size
	if fourcc != "" {
		le.PutUint32(buf[80:], 0x4) // DDPF_FOURCC
		copy(buf[84:88], fourcc)
	} else {
		le.PutUint32(buf[80:], 0x41) // DDPF_RGB | DDPF_ALPHAPIXELS
		le.PutUint32(buf[88:], 32)
		le.PutUint32(buf[92:], 0x00ff0000)
		le.PutUint32(buf[96:], 0x0000ff00)
		le.PutUint32(buf[100:], 0x000000ff)
		le.PutUint32(buf[104:], 0xff000000)
	}
	le.PutUint32(buf[108:], 0x1000) // DDSCAPS_TEXTURE
	return buf
}
