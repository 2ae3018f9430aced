package binder

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by directory operations.
var (
	// ErrNotDirectory is returned when the input path does not resolve to
	// a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNoCandidates is returned when the directory holds no files with
	// the .pdf extension.
	ErrNoCandidates = errors.New("no PDF files found in the directory")
)

// LoadError reports a candidate file the PDF parser rejected.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load PDF %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError reports a failure to serialize or write the merged document.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write merged PDF: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
