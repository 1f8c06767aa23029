package prolib

import "strings"

// Library header and table of contents constants
const (
	LibraryHeaderSize   = 0x22 // magic(2) + codepage(20) + reserved(8) + toc_offset(4)
	LibraryHeaderSize64 = 0x2a // magic(2) + codepage(20) + reserved(12) + toc_offset(8)
	CodepageOffset      = 0x02
	CodepageSize        = 20
	TOCOffsetField      = 0x1e // uint32 TOC offset in standard libraries
	TOCOffsetField64    = 0x22 // uint64 TOC offset in 64-bit libraries
	TOCRecordSize       = 48   // fixed part following the entry name
)

// TOC record markers
const (
	TOCMarkerLive    byte = 0xff
	TOCMarkerDeleted byte = 0xfe
)

// Library magic numbers (big-endian)
const (
	MagicLibrary       uint16 = 0xd707
	MagicLibrary64     uint16 = 0xd70b
	MagicMappedLibrary uint16 = 0xd787
	MagicMapped64      uint16 = 0xd78b

	magicMappedBit uint16 = 0x0080
)

// R-code header constants
const (
	RCodeHeaderSize = 68

	RCodeMagic        uint32 = 0x56ced309
	RCodeMagicSwapped uint32 = 0x09d3ce56

	RCodeVersionMask uint16 = 0x3fff
	RCode64BitFlag   uint16 = 0x4000
	RCodeMinVersion  uint16 = 1000
	RCodeSHA256From  uint16 = 1100 // first version carrying a SHA-256 digest
)

// Digest size constants
const (
	DigestSizeMD5    = 16
	DigestSizeSHA256 = 32
)

// Codepage constants
const (
	CodepageUTF8   = "UTF-8"
	CodepageLatin1 = "ISO8859-1"
)

// CodepageName normalises a NUL padded codepage name read from a library header
func CodepageName(raw []byte) string {
	s := string(raw)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "", "UTF8", "UTF-8":
		return CodepageUTF8
	case "ISO8859-1", "ISO-8859-1", "LATIN1", "LATIN-1":
		return CodepageLatin1
	default:
		return name
	}
}
