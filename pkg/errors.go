package prolib

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors, matched with errors.Is
var (
	ErrArchiveOpen    = errors.New("cannot open library")
	ErrEntryRead      = errors.New("cannot read library entry")
	ErrInvalidRoutine = errors.New("invalid r-code")
	ErrNotExtractable = errors.New("unable to extract files from memory-mapped library")
	ErrLibraryClosed  = errors.New("library is closed")
)

// ArchiveOpenError reports a library that could not be opened or whose header is invalid
type ArchiveOpenError struct {
	Path string
	Err  error
}

func (e *ArchiveOpenError) Error() string {
	// os errors already name the path
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) && pathErr.Path == e.Path {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ArchiveOpenError) Unwrap() error { return e.Err }

// Is makes every ArchiveOpenError match ErrArchiveOpen
func (e *ArchiveOpenError) Is(target error) bool { return target == ErrArchiveOpen }

// EntryReadError reports an entry whose bytes could not be streamed
type EntryReadError struct {
	Name string
	Err  error
}

func (e *EntryReadError) Error() string {
	return fmt.Sprintf("failed to read entry %s: %v", e.Name, e.Err)
}

func (e *EntryReadError) Unwrap() error { return e.Err }

// Is makes every EntryReadError match ErrEntryRead
func (e *EntryReadError) Is(target error) bool { return target == ErrEntryRead }

// invalidRoutine wraps ErrInvalidRoutine with detail
func invalidRoutine(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRoutine, fmt.Sprintf(format, args...))
}
