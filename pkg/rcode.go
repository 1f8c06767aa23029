package prolib

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"
)

// ISOInstant renders timestamps as an ISO-8601 UTC instant
const ISOInstant = "2006-01-02T15:04:05Z"

// RoutineMetadata holds the identifying fields of a compiled routine header
type RoutineMetadata struct {
	CRC       uint16
	Timestamp int64 // seconds since epoch, UTC
	Digest    string
	Version   uint16
	Is64Bit   bool
}

// Equivalent reports whether two routines share CRC and digest. The timestamp is ignored.
func (m *RoutineMetadata) Equivalent(other *RoutineMetadata) bool {
	if m == nil || other == nil {
		return false
	}
	return m.CRC == other.CRC && m.Digest == other.Digest
}

// Time returns the build timestamp in UTC
func (m *RoutineMetadata) Time() time.Time {
	return time.Unix(m.Timestamp, 0).UTC()
}

// TimestampString returns the build timestamp as an ISO-8601 instant
func (m *RoutineMetadata) TimestampString() string {
	return m.Time().Format(ISOInstant)
}

// MetadataParser extracts routine metadata from an entry stream.
// Malformed input fails with an error matching ErrInvalidRoutine; any other
// error is an I/O failure of the stream.
type MetadataParser interface {
	Parse(r io.Reader) (*RoutineMetadata, error)
}

// ParserFunc adapts a function to MetadataParser
type ParserFunc func(r io.Reader) (*RoutineMetadata, error)

// Parse calls f(r)
func (f ParserFunc) Parse(r io.Reader) (*RoutineMetadata, error) {
	return f(r)
}

// RCodeParser is the MetadataParser for OpenEdge r-code headers
type RCodeParser struct{}

// Parse implements MetadataParser
func (RCodeParser) Parse(r io.Reader) (*RoutineMetadata, error) {
	return ParseRCode(r)
}

// ParseRCode reads the r-code header and digest from r
func ParseRCode(r io.Reader) (*RoutineMetadata, error) {
	header := make([]byte, RCodeHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if isShortRead(err) {
			return nil, invalidRoutine("truncated header")
		}
		return nil, err
	}

	var order binary.ByteOrder
	switch binary.BigEndian.Uint32(header[0:4]) {
	case RCodeMagic:
		order = binary.BigEndian
	case RCodeMagicSwapped:
		order = binary.LittleEndian
	default:
		return nil, invalidRoutine("can't find magic number")
	}

	rawVersion := order.Uint16(header[14:16])
	version := rawVersion & RCodeVersionMask
	if version < RCodeMinVersion {
		return nil, invalidRoutine("unsupported r-code version %d", version)
	}

	meta := &RoutineMetadata{
		CRC:       order.Uint16(header[16:18]),
		Timestamp: int64(order.Uint32(header[4:8])),
		Version:   version,
		Is64Bit:   rawVersion&RCode64BitFlag != 0,
	}

	digestOffset := int64(order.Uint16(header[10:12]))
	if digestOffset == 0 {
		return meta, nil
	}
	if digestOffset < RCodeHeaderSize {
		return nil, invalidRoutine("digest offset %d inside header", digestOffset)
	}

	if _, err := io.CopyN(io.Discard, r, digestOffset-RCodeHeaderSize); err != nil {
		if isShortRead(err) {
			return nil, invalidRoutine("digest offset %d beyond end of routine", digestOffset)
		}
		return nil, err
	}

	digestSize := DigestSizeMD5
	if version >= RCodeSHA256From {
		digestSize = DigestSizeSHA256
	}
	digest := make([]byte, digestSize)
	if _, err := io.ReadFull(r, digest); err != nil {
		if isShortRead(err) {
			return nil, invalidRoutine("truncated digest at offset %d", digestOffset)
		}
		return nil, err
	}

	if version >= RCodeSHA256From {
		meta.Digest = base64.StdEncoding.EncodeToString(digest)
	} else {
		meta.Digest = strings.ToUpper(hex.EncodeToString(digest))
	}

	if IsDebugEnabled("rcode") {
		VerboseLog(3, "r-code v%d crc=%d timestamp=%d digest=%s", meta.Version, meta.CRC, meta.Timestamp, meta.Digest)
	}
	return meta, nil
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// readMetadata streams one entry through the parser and always closes the stream
func readMetadata(a Archive, entry Entry, parser MetadataParser) (*RoutineMetadata, error) {
	rc, err := a.Open(entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	meta, err := parser.Parse(rc)
	if err != nil && !errors.Is(err, ErrInvalidRoutine) && !errors.Is(err, ErrEntryRead) {
		err = &EntryReadError{Name: entry.Name, Err: err}
	}
	return meta, err
}
