package prolib

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/plkit/prolib/internal/testutil"
)

func TestOpenLibraryEntries(t *testing.T) {
	tempDir := t.TempDir()

	path := testutil.WriteLibrary(t, tempDir, "app.pl", testutil.LibraryOptions{}, []testutil.LibraryEntry{
		{Name: "src/b.r", Data: []byte("bbbb"), ModTime: 1600000000},
		{Name: "old.r", Data: []byte("gone"), Deleted: true},
		{Name: "a.r", Data: []byte("aa")},
		{Name: "win\\c.r", Data: []byte("c")},
	})

	lib, err := OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}
	defer lib.Close()

	entries := lib.Entries()
	expected := []struct {
		name string
		size int64
	}{
		{"src/b.r", 4},
		{"a.r", 2},
		{"win\\c.r", 1},
	}
	if len(entries) != len(expected) {
		t.Fatalf("Expected %d entries, got %d", len(expected), len(entries))
	}
	for i, want := range expected {
		if entries[i].Name != want.name || entries[i].Size != want.size {
			t.Errorf("Entry %d: expected %s (%d bytes), got %s (%d bytes)",
				i, want.name, want.size, entries[i].Name, entries[i].Size)
		}
	}
	if entries[0].ModTime != 1600000000 {
		t.Errorf("Expected mod time 1600000000, got %d", entries[0].ModTime)
	}

	if !lib.SupportsExtraction() || lib.IsMemoryMapped() {
		t.Error("Standard library should support extraction")
	}
	if lib.Codepage() != CodepageUTF8 {
		t.Errorf("Expected codepage %s, got %s", CodepageUTF8, lib.Codepage())
	}
	if lib.Path() != path {
		t.Errorf("Expected path %s, got %s", path, lib.Path())
	}

	entry, ok := lib.Entry("a.r")
	if !ok {
		t.Fatal("Entry(a.r) not found")
	}
	rc, err := lib.Open(entry)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "aa" {
		t.Errorf("Expected entry data 'aa', got %q", data)
	}

	if _, ok := lib.Entry("old.r"); ok {
		t.Error("Deleted entry should not be listed")
	}
}

func TestOpenLibraryVariants(t *testing.T) {
	tests := []struct {
		name        string
		magic       uint16
		extractable bool
	}{
		{"standard", testutil.MagicLibrary, true},
		{"64-bit", testutil.MagicLibrary64, true},
		{"memory-mapped", testutil.MagicMappedLibrary, false},
		{"memory-mapped 64-bit", testutil.MagicMapped64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteLibrary(t, t.TempDir(), "lib.pl", testutil.LibraryOptions{Magic: tt.magic},
				[]testutil.LibraryEntry{
					{Name: "one.r", Data: []byte("first")},
					{Name: "two.r", Data: []byte("second")},
				})

			lib, err := OpenLibrary(path)
			if err != nil {
				t.Fatalf("OpenLibrary() error = %v", err)
			}
			defer lib.Close()

			if lib.SupportsExtraction() != tt.extractable {
				t.Errorf("Expected SupportsExtraction() = %v", tt.extractable)
			}

			entries := lib.Entries()
			if len(entries) != 2 {
				t.Fatalf("Expected 2 entries, got %d", len(entries))
			}
			rc, err := lib.Open(entries[1])
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			if string(data) != "second" {
				t.Errorf("Expected 'second', got %q", data)
			}
		})
	}
}

func TestOpenLibraryLatin1Names(t *testing.T) {
	path := testutil.WriteLibrary(t, t.TempDir(), "latin.pl", testutil.LibraryOptions{Codepage: "iso8859-1"},
		[]testutil.LibraryEntry{
			{RawName: []byte{'c', 'a', 'f', 0xe9, '.', 'r'}, Data: []byte("x")},
		})

	lib, err := OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}
	defer lib.Close()

	if lib.Codepage() != CodepageLatin1 {
		t.Errorf("Expected codepage %s, got %s", CodepageLatin1, lib.Codepage())
	}
	if name := lib.Entries()[0].Name; name != "café.r" {
		t.Errorf("Expected name 'café.r', got %q", name)
	}
}

func TestOpenLibraryErrors(t *testing.T) {
	tempDir := t.TempDir()

	badMagic := testutil.BuildLibrary(testutil.LibraryOptions{Magic: 0x1234}, nil)
	badMagicPath := filepath.Join(tempDir, "magic.pl")
	if err := os.WriteFile(badMagicPath, badMagic, 0644); err != nil {
		t.Fatal(err)
	}

	tinyPath := filepath.Join(tempDir, "tiny.pl")
	if err := os.WriteFile(tinyPath, []byte{0xd7, 0x07}, 0644); err != nil {
		t.Fatal(err)
	}

	badTOC := testutil.BuildLibrary(testutil.LibraryOptions{}, nil)
	badTOC[0x1e] = 0x7f // TOC offset far beyond the end
	badTOCPath := filepath.Join(tempDir, "toc.pl")
	if err := os.WriteFile(badTOCPath, badTOC, 0644); err != nil {
		t.Fatal(err)
	}

	truncated := testutil.BuildLibrary(testutil.LibraryOptions{}, []testutil.LibraryEntry{{Name: "a.r", Data: []byte("a")}})
	truncatedPath := filepath.Join(tempDir, "truncated.pl")
	if err := os.WriteFile(truncatedPath, truncated[:len(truncated)-10], 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(tempDir, "missing.pl")},
		{"directory", tempDir},
		{"too small", tinyPath},
		{"invalid signature", badMagicPath},
		{"TOC offset beyond end", badTOCPath},
		{"truncated TOC", truncatedPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, err := OpenLibrary(tt.path)
			if err == nil {
				lib.Close()
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrArchiveOpen) {
				t.Errorf("Expected ErrArchiveOpen, got %v", err)
			}
			var openErr *ArchiveOpenError
			if !errors.As(err, &openErr) || openErr.Path != tt.path {
				t.Errorf("Expected *ArchiveOpenError for %s, got %v", tt.path, err)
			}
		})
	}
}

func TestLibraryEntryOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		opts  testutil.LibraryOptions
		entry testutil.LibraryEntry
	}{
		{
			name:  "offset past end",
			entry: testutil.LibraryEntry{Name: "bad.r", Data: []byte("lost"), BadOffset: true},
		},
		{
			name:  "64-bit offset overflowing the range end",
			opts:  testutil.LibraryOptions{Magic: testutil.MagicLibrary64},
			entry: testutil.LibraryEntry{Name: "bad.r", Data: []byte("lost"), Offset: 1<<63 - 10},
		},
		{
			name:  "64-bit offset with the sign bit set",
			opts:  testutil.LibraryOptions{Magic: testutil.MagicLibrary64},
			entry: testutil.LibraryEntry{Name: "bad.r", Data: []byte("lost"), Offset: 1 << 63},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteLibrary(t, t.TempDir(), "bad.pl", tt.opts, []testutil.LibraryEntry{
				{Name: "good.r", Data: []byte("ok")},
				tt.entry,
			})

			lib, err := OpenLibrary(path)
			if err != nil {
				t.Fatalf("OpenLibrary() error = %v", err)
			}
			defer lib.Close()

			good, _ := lib.Entry("good.r")
			if rc, err := lib.Open(good); err != nil {
				t.Errorf("Expected good.r to open, got %v", err)
			} else {
				rc.Close()
			}

			bad, _ := lib.Entry("bad.r")
			_, err = lib.Open(bad)
			if !errors.Is(err, ErrEntryRead) {
				t.Fatalf("Expected ErrEntryRead, got %v", err)
			}
			var readErr *EntryReadError
			if !errors.As(err, &readErr) || readErr.Name != "bad.r" {
				t.Errorf("Expected *EntryReadError for bad.r, got %v", err)
			}
		})
	}
}

func TestLibraryClose(t *testing.T) {
	path := testutil.WriteLibrary(t, t.TempDir(), "lib.pl", testutil.LibraryOptions{}, []testutil.LibraryEntry{
		{Name: "a.r", Data: []byte("abc")},
	})

	lib, err := OpenLibrary(path)
	if err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}
	entry := lib.Entries()[0]
	rc, err := lib.Open(entry)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := lib.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}

	if _, err := rc.Read(make([]byte, 3)); !errors.Is(err, ErrLibraryClosed) {
		t.Errorf("Expected ErrLibraryClosed reading after Close, got %v", err)
	}
	if _, err := lib.Open(entry); !errors.Is(err, ErrLibraryClosed) {
		t.Errorf("Expected ErrLibraryClosed opening after Close, got %v", err)
	}
}

func TestCodepageName(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{"UTF-8\x00\x00\x00", CodepageUTF8},
		{"", CodepageUTF8},
		{"utf8", CodepageUTF8},
		{"ISO8859-1\x00", CodepageLatin1},
		{"latin1", CodepageLatin1},
		{"IBM850\x00junk", "IBM850"},
	}

	for _, tc := range testCases {
		if got := CodepageName([]byte(tc.raw)); got != tc.expected {
			t.Errorf("CodepageName(%q) = %s, expected %s", tc.raw, got, tc.expected)
		}
	}
}
