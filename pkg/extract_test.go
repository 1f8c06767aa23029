package prolib

import (
	"bytes"
	"errors"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/plkit/prolib/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestExtractWritesTree(t *testing.T) {
	dir := t.TempDir()
	lib := newMemArchive("lib.pl",
		memMember{"top.r", []byte("top")},
		memMember{"sub\\dir\\win.r", []byte("win")},
		memMember{"sub/unix.r", []byte("unix")},
		memMember{"empty.r", nil},
	)

	result, err := Extract(lib, ExtractOptions{Dir: dir})
	require.NoError(t, err)

	assert.Empty(t, result.Failures)
	assert.Len(t, result.Extracted, 4)
	assert.Equal(t, map[string]string{
		"top.r":         "top",
		"sub/dir/win.r": "win",
		"sub/unix.r":    "unix",
		"empty.r":       "",
	}, readTree(t, dir))
	assert.Zero(t, lib.open)
}

func TestExtractMemoryMappedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	lib := newMemArchive("lib.pl", memMember{"a.r", []byte("a")})
	lib.extractable = false

	result, err := Extract(lib, ExtractOptions{Dir: dir})

	assert.ErrorIs(t, err, ErrNotExtractable)
	assert.Nil(t, result)
	assert.Empty(t, readTree(t, dir))
	assert.Zero(t, lib.opened, "no entry may be read")
}

func TestExtractContinuesAfterFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exists.r"), []byte("keep"), 0644))

	lib := newMemArchive("lib.pl",
		memMember{"exists.r", []byte("new")},
		memMember{"../escape.r", []byte("bad")},
		memMember{"/abs.r", []byte("bad")},
		memMember{"C:\\drive.r", []byte("bad")},
		memMember{"unreadable.r", []byte("x")},
		memMember{"ok.r", []byte("ok")},
	)
	lib.openErr["unreadable.r"] = errors.New("io")

	result, err := Extract(lib, ExtractOptions{Dir: dir})
	require.NoError(t, err)

	var failed []string
	for _, f := range result.Failures {
		failed = append(failed, f.Name)
	}
	assert.Equal(t, []string{"exists.r", "../escape.r", "/abs.r", "C:\\drive.r", "unreadable.r"}, failed)
	assert.Equal(t, []string{filepath.Join(dir, "ok.r")}, result.Extracted)
	assert.Equal(t, map[string]string{"exists.r": "keep", "ok.r": "ok"}, readTree(t, dir))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.r"))
	assert.Zero(t, lib.open)
}

func TestExtractPatterns(t *testing.T) {
	lib := newMemArchive("lib.pl",
		memMember{"src/a.r", []byte("a")},
		memMember{"src\\b.r", []byte("b")},
		memMember{"lib/c.r", []byte("c")},
		memMember{"d.txt", []byte("d")},
	)

	tests := []struct {
		name     string
		patterns []string
		expected []string
	}{
		{"no pattern", nil, []string{"d.txt", "lib/c.r", "src/a.r", "src/b.r"}},
		{"base name glob", []string{"*.r"}, []string{"lib/c.r", "src/a.r", "src/b.r"}},
		{"path glob", []string{"src/*"}, []string{"src/a.r", "src/b.r"}},
		{"several", []string{"d.*", "lib/*.r"}, []string{"d.txt", "lib/c.r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			result, err := Extract(lib, ExtractOptions{Dir: dir, Patterns: tt.patterns})
			require.NoError(t, err)

			var names []string
			for name := range readTree(t, dir) {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.expected, names)
			assert.Equal(t, 4-len(tt.expected), result.Skipped)
		})
	}
}

func TestExtractInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	lib := newMemArchive("lib.pl", memMember{"a.r", []byte("a")})

	_, err := Extract(lib, ExtractOptions{Dir: dir, Patterns: []string{"[oops"}})

	require.ErrorIs(t, err, path.ErrBadPattern)
	assert.Empty(t, readTree(t, dir))
	assert.NoError(t, ValidatePatterns([]string{"*.r", "src/*"}))
}

func TestExtractLargeEntryFromLibrary(t *testing.T) {
	tempDir := t.TempDir()
	// spans several writev batches
	big := bytes.Repeat([]byte("0123456789abcdef"), (extractChunkSize*extractIovecs*2+12345)/16)
	path := testutil.WriteLibrary(t, tempDir, "big.pl", testutil.LibraryOptions{}, []testutil.LibraryEntry{
		{Name: "big/blob.r", Data: big},
	})

	out := filepath.Join(tempDir, "out")
	result, err := ExtractFile(OpenArchive, path, ExtractOptions{Dir: out})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	data, err := os.ReadFile(filepath.Join(out, "big", "blob.r"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(big, data), "extracted bytes differ")
}

func TestExtractFileMemoryMappedLibrary(t *testing.T) {
	tempDir := t.TempDir()
	path := testutil.WriteLibrary(t, tempDir, "mapped.pl", testutil.LibraryOptions{Magic: testutil.MagicMappedLibrary},
		[]testutil.LibraryEntry{{Name: "a.r", Data: []byte("a")}})
	out := filepath.Join(tempDir, "out")

	_, err := ExtractFile(OpenArchive, path, ExtractOptions{Dir: out})

	assert.ErrorIs(t, err, ErrNotExtractable)
	assert.NoDirExists(t, out)
}

func TestExtractCorruptOffsetFailsEntry(t *testing.T) {
	tempDir := t.TempDir()
	path := testutil.WriteLibrary(t, tempDir, "corrupt.pl", testutil.LibraryOptions{Magic: testutil.MagicLibrary64},
		[]testutil.LibraryEntry{
			{Name: "a.r", Data: []byte("aaaa"), Offset: 1<<63 - 10},
			{Name: "b.r", Data: []byte("bbbb")},
		})
	out := filepath.Join(tempDir, "out")

	result, err := ExtractFile(OpenArchive, path, ExtractOptions{Dir: out})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "a.r", result.Failures[0].Name)
	assert.ErrorIs(t, result.Failures[0].Err, ErrEntryRead)
	assert.Equal(t, []string{filepath.Join(out, "b.r")}, result.Extracted)
	assert.NoFileExists(t, filepath.Join(out, "a.r"))
}
