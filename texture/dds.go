package texture

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is how many leading bytes DecodeHeader needs to cover every
// supported layout, including the DX10 extension block.
const HeaderSize = 148

const (
	ddsMagic      = "DDS "
	ddsHeaderLen  = 124
	ddsPixelFmtSz = 32

	pfFourCC = 0x4
	pfRGB    = 0x40
)

// Header holds the decoded fields of a texture header.
type Header struct {
	Width    uint32
	Height   uint32
	MipCount uint32

	// Format names the pixel format: the FourCC code (e.g. "DXT5",
	// "BC7" via "DX10"), or "RGBA8"/"RGB8" for uncompressed layouts.
	Format string

	// DXGIFormat is the extended format code when Format is "DX10".
	DXGIFormat uint32
}

// DecodeHeader decodes the minimal texture header from the leading bytes
// of a file.
//
// A magic mismatch returns ErrNotTexture. A matching magic with malformed
// subsequent fields returns ErrMalformedHeader.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < len(ddsMagic) || string(data[0:4]) != ddsMagic {
		return Header{}, ErrNotTexture
	}
	if len(data) < 128 {
		return Header{}, fmt.Errorf("%w: %d header bytes", ErrMalformedHeader, len(data))
	}
	le := binary.LittleEndian
	if size := le.Uint32(data[4:]); size != ddsHeaderLen {
		return Header{}, fmt.Errorf("%w: header size %d", ErrMalformedHeader, size)
	}

	hdr := Header{
		Height:   le.Uint32(data[12:]),
		Width:    le.Uint32(data[16:]),
		MipCount: le.Uint32(data[28:]),
	}
	if hdr.Width == 0 || hdr.Height == 0 {
		return Header{}, fmt.Errorf("%w: %dx%d", ErrMalformedHeader, hdr.Width, hdr.Height)
	}

	if size := le.Uint32(data[76:]); size != ddsPixelFmtSz {
		return Header{}, fmt.Errorf("%w: pixel format size %d", ErrMalformedHeader, size)
	}
	pfFlags := le.Uint32(data[80:])
	switch {
	case pfFlags&pfFourCC != 0:
		hdr.Format = fourCCString(data[84:88])
		if hdr.Format == "DX10" {
			if len(data) < HeaderSize {
				return Header{}, fmt.Errorf("%w: truncated DX10 extension", ErrMalformedHeader)
			}
			hdr.DXGIFormat = le.Uint32(data[128:])
		}
	case pfFlags&pfRGB != 0:
		if le.Uint32(data[88:]) == 32 {
			hdr.Format = "RGBA8"
		} else {
			hdr.Format = "RGB8"
		}
	default:
		return Header{}, fmt.Errorf("%w: pixel format flags %#x", ErrMalformedHeader, pfFlags)
	}
	return hdr, nil
}

func fourCCString(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}
