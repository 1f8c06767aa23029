package prolib

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// Library is a procedure library opened read-only through a private memory mapping
type Library struct {
	path     string
	file     *os.File
	data     []byte // Memory-mapped file contents, nil once closed
	magic    uint16
	codepage string
	entries  []Entry
	mutex    sync.RWMutex // Protects data against Close while entries are streamed
}

// OpenLibrary maps a library file and reads its table of contents.
// Every failure is returned as an *ArchiveOpenError.
func OpenLibrary(path string) (*Library, error) {
	defer VerboseEnter()()

	file, err := os.Open(path)
	if err != nil {
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: fmt.Errorf("failed to stat file: %w", err)}
	}
	if stat.IsDir() {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: errors.New("is a directory")}
	}
	if stat.Size() < LibraryHeaderSize {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: fmt.Errorf("file too small: %d bytes", stat.Size())}
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: fmt.Errorf("failed to mmap file: %w", err)}
	}

	lib := &Library{
		path: path,
		file: file,
		data: data,
	}

	tocOffset, err := lib.readHeader()
	if err == nil {
		err = lib.readTOC(tocOffset)
	}
	if err != nil {
		lib.Close()
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}

	VerboseLog(1, "Opened library %s: %d entries, codepage %s, memory-mapped=%v",
		path, len(lib.entries), lib.codepage, lib.IsMemoryMapped())
	return lib, nil
}

// readHeader validates the magic number and returns the TOC offset
func (l *Library) readHeader() (int64, error) {
	l.magic = binary.BigEndian.Uint16(l.data[0:2])
	switch l.magic {
	case MagicLibrary, MagicLibrary64, MagicMappedLibrary, MagicMapped64:
	default:
		return 0, fmt.Errorf("invalid signature: got 0x%04x, expected 0x%04x or 0x%04x",
			l.magic, MagicLibrary, MagicLibrary64)
	}

	l.codepage = CodepageName(l.data[CodepageOffset : CodepageOffset+CodepageSize])

	var tocOffset uint64
	if l.Is64Bit() {
		if len(l.data) < LibraryHeaderSize64 {
			return 0, fmt.Errorf("file too small: %d bytes", len(l.data))
		}
		tocOffset = binary.BigEndian.Uint64(l.data[TOCOffsetField64 : TOCOffsetField64+8])
	} else {
		tocOffset = uint64(binary.BigEndian.Uint32(l.data[TOCOffsetField : TOCOffsetField+4]))
	}

	if tocOffset > uint64(len(l.data)) {
		return 0, fmt.Errorf("TOC offset %d beyond end of file (%d bytes)", tocOffset, len(l.data))
	}
	return int64(tocOffset), nil
}

// readTOC walks the table of contents until a record that is neither live nor deleted
func (l *Library) readTOC(offset int64) error {
	size := int64(len(l.data))
	for offset < size {
		marker := l.data[offset]
		if marker != TOCMarkerLive && marker != TOCMarkerDeleted {
			break
		}
		if offset+2 > size {
			return fmt.Errorf("truncated TOC record at offset %d", offset)
		}

		nameLen := int64(l.data[offset+1])
		recordStart := offset + 2 + nameLen
		next := recordStart + TOCRecordSize
		if next > size {
			return fmt.Errorf("truncated TOC record at offset %d", offset)
		}

		name := l.decodeName(l.data[offset+2 : recordStart])
		record := l.data[recordStart:next]
		offset = next

		if marker == TOCMarkerDeleted || nameLen == 0 {
			if IsDebugEnabled("toc") {
				VerboseLog(2, "Skipping deleted TOC record %q", name)
			}
			continue
		}

		entry := Entry{
			Name:    name,
			ModTime: int64(binary.BigEndian.Uint32(record[6:10])),
			AddTime: int64(binary.BigEndian.Uint32(record[10:14])),
		}
		if l.Is64Bit() {
			entry.offset = int64(binary.BigEndian.Uint64(record[14:22]))
			entry.Size = int64(binary.BigEndian.Uint32(record[22:26]))
		} else {
			entry.offset = int64(binary.BigEndian.Uint32(record[14:18]))
			entry.Size = int64(binary.BigEndian.Uint32(record[18:22]))
		}

		if IsDebugEnabled("toc") {
			VerboseLog(2, "TOC entry %q: offset=%d size=%d", entry.Name, entry.offset, entry.Size)
		}
		if entry.offset < 0 || entry.offset > size || entry.Size > size-entry.offset {
			VerboseLog(1, "TOC entry %q points outside the library: offset=%d size=%d", entry.Name, entry.offset, entry.Size)
		}
		l.entries = append(l.entries, entry)
	}
	return nil
}

// decodeName converts a TOC name from the library codepage to UTF-8
func (l *Library) decodeName(raw []byte) string {
	if l.codepage == CodepageLatin1 {
		var sb strings.Builder
		sb.Grow(len(raw))
		for _, b := range raw {
			sb.WriteRune(rune(b))
		}
		return sb.String()
	}
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(raw)
}

// Path returns the library file path
func (l *Library) Path() string {
	return l.path
}

// Entries returns the live entries in TOC order
func (l *Library) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Entry returns the first entry with the given name
func (l *Library) Entry(name string) (Entry, bool) {
	for _, e := range l.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Codepage returns the normalised codepage from the library header
func (l *Library) Codepage() string {
	return l.codepage
}

// Is64Bit returns true for libraries using 64-bit TOC offsets
func (l *Library) Is64Bit() bool {
	return l.magic == MagicLibrary64 || l.magic == MagicMapped64
}

// IsMemoryMapped returns true for shared (memory-mapped) libraries
func (l *Library) IsMemoryMapped() bool {
	return l.magic&magicMappedBit != 0
}

// SupportsExtraction returns false for memory-mapped libraries
func (l *Library) SupportsExtraction() bool {
	return !l.IsMemoryMapped()
}

// Open returns a reader over the bytes of one entry
func (l *Library) Open(entry Entry) (io.ReadCloser, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if l.data == nil {
		return nil, &EntryReadError{Name: entry.Name, Err: ErrLibraryClosed}
	}

	size := int64(len(l.data))
	if entry.offset < LibraryHeaderSize || entry.offset > size || entry.Size < 0 || entry.Size > size-entry.offset {
		return nil, &EntryReadError{
			Name: entry.Name,
			Err: fmt.Errorf("data range at offset %d, %d bytes, outside library (%d bytes)",
				entry.offset, entry.Size, size),
		}
	}
	end := entry.offset + entry.Size

	return &entryReader{lib: l, name: entry.Name, pos: entry.offset, end: end}, nil
}

// Close unmaps and closes the library file
func (l *Library) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.data != nil {
		if err := unix.Munmap(l.data); err != nil {
			return fmt.Errorf("failed to unmap library %s: %w", l.path, err)
		}
		l.data = nil
	}

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close library %s: %w", l.path, err)
		}
		l.file = nil
	}

	return nil
}

// entryReader streams one entry's range of the mapping
type entryReader struct {
	lib    *Library
	name   string
	end    int64
	pos    int64
	closed bool
}

func (r *entryReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, &EntryReadError{Name: r.name, Err: os.ErrClosed}
	}

	r.lib.mutex.RLock()
	defer r.lib.mutex.RUnlock()

	if r.lib.data == nil {
		return 0, &EntryReadError{Name: r.name, Err: ErrLibraryClosed}
	}
	if r.pos >= r.end {
		return 0, io.EOF
	}

	n := copy(p, r.lib.data[r.pos:r.end])
	r.pos += int64(n)
	return n, nil
}

func (r *entryReader) Close() error {
	r.closed = true
	return nil
}
