// Package testutil builds synthetic procedure libraries and r-code headers for tests.
// It does not import prolib, so in-package tests can use it.
package testutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Library magic numbers
const (
	MagicLibrary       uint16 = 0xd707
	MagicLibrary64     uint16 = 0xd70b
	MagicMappedLibrary uint16 = 0xd787
	MagicMapped64      uint16 = 0xd78b
)

const (
	headerSize   = 0x22
	headerSize64 = 0x2a
	recordSize   = 48
	rcodeHeader  = 68
	rcodeMagic   = 0x56ced309
)

// Routine describes a synthetic r-code header
type Routine struct {
	CRC          uint16
	Timestamp    uint32
	Version      uint16 // 1200 when zero
	Digest       []byte // nil writes a zero digest offset
	LittleEndian bool
	Padding      int // bytes between the header and the digest
}

// Bytes encodes the routine
func (r Routine) Bytes() []byte {
	var order binary.ByteOrder = binary.BigEndian
	if r.LittleEndian {
		order = binary.LittleEndian
	}
	version := r.Version
	if version == 0 {
		version = 1200
	}

	buf := make([]byte, rcodeHeader+r.Padding+len(r.Digest))
	order.PutUint32(buf[0:4], rcodeMagic)
	order.PutUint32(buf[4:8], r.Timestamp)
	if r.Digest != nil {
		order.PutUint16(buf[10:12], uint16(rcodeHeader+r.Padding))
	}
	order.PutUint16(buf[14:16], version)
	order.PutUint16(buf[16:18], r.CRC)
	copy(buf[rcodeHeader+r.Padding:], r.Digest)
	return buf
}

// SHA256Digest returns a deterministic 32-byte digest derived from seed
func SHA256Digest(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// MD5Digest returns a deterministic 16-byte digest derived from seed
func MD5Digest(seed string) []byte {
	sum := md5.Sum([]byte(seed))
	return sum[:]
}

// RCode returns a version 1200 routine with a SHA-256 digest derived from seed
func RCode(crc uint16, seed string) []byte {
	return Routine{CRC: crc, Timestamp: 1700000000, Digest: SHA256Digest(seed)}.Bytes()
}

// LibraryEntry is one member of a synthetic library
type LibraryEntry struct {
	Name      string
	Data      []byte
	RawName   []byte // written instead of Name when set
	Deleted   bool
	ModTime   uint32
	BadOffset bool   // point the data offset past the end of the file
	Offset    uint64 // data offset written to the TOC instead of the real one when set
}

// LibraryOptions controls the library header
type LibraryOptions struct {
	Magic    uint16 // MagicLibrary when zero
	Codepage string // "UTF-8" when empty
}

// BuildLibrary encodes a library: header, entry data, then the table of contents
func BuildLibrary(opts LibraryOptions, entries []LibraryEntry) []byte {
	magic := opts.Magic
	if magic == 0 {
		magic = MagicLibrary
	}
	codepage := opts.Codepage
	if codepage == "" {
		codepage = "UTF-8"
	}
	wide := magic == MagicLibrary64 || magic == MagicMapped64

	size := headerSize
	if wide {
		size = headerSize64
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], magic)
	copy(buf[2:22], codepage)

	offsets := make([]uint64, len(entries))
	for i, e := range entries {
		offsets[i] = uint64(len(buf))
		buf = append(buf, e.Data...)
	}

	tocOffset := uint64(len(buf))
	if wide {
		binary.BigEndian.PutUint64(buf[0x22:0x2a], tocOffset)
	} else {
		binary.BigEndian.PutUint32(buf[0x1e:0x22], uint32(tocOffset))
	}

	var toc []byte
	for i, e := range entries {
		name := []byte(e.Name)
		if e.RawName != nil {
			name = e.RawName
		}
		marker := byte(0xff)
		if e.Deleted {
			marker = 0xfe
		}
		toc = append(toc, marker, byte(len(name)))
		toc = append(toc, name...)

		record := make([]byte, recordSize)
		binary.BigEndian.PutUint32(record[6:10], e.ModTime)
		binary.BigEndian.PutUint32(record[10:14], e.ModTime)
		offset := offsets[i]
		if e.BadOffset {
			offset = 1 << 30
		}
		if e.Offset != 0 {
			offset = e.Offset
		}
		if wide {
			binary.BigEndian.PutUint64(record[14:22], offset)
			binary.BigEndian.PutUint32(record[22:26], uint32(len(e.Data)))
		} else {
			binary.BigEndian.PutUint32(record[14:18], uint32(offset))
			binary.BigEndian.PutUint32(record[18:22], uint32(len(e.Data)))
		}
		toc = append(toc, record...)
	}

	return append(buf, toc...)
}

// WriteLibrary writes a synthetic library into dir and returns its path
func WriteLibrary(t testing.TB, dir, name string, opts LibraryOptions, entries []LibraryEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildLibrary(opts, entries), 0644); err != nil {
		t.Fatalf("Failed to write library %s: %v", path, err)
	}
	return path
}
