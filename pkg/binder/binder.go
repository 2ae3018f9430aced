// Package binder merges every PDF file found in a directory into a single
// document written next to that directory.
package binder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pdfbinder/pdfbinder/pkg/pdf"
)

// Result describes a completed merge.
type Result struct {
	OutputPath string
	Files      int
	Pages      int
}

type candidate struct {
	path    string
	modTime time.Time
}

// CountCandidates reports how many files in dir would take part in a merge,
// without merging. Used for preview display.
func CountCandidates(dir string) (int, error) {
	files, err := candidates(dir)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// MergeDirectory merges every PDF file in dir, ordered by ascending
// modification time, into <parent-of-dir>/<dir-name>.pdf. It either
// produces the complete merged file or fails without writing anything;
// there is no partial output.
func MergeDirectory(dir string) (*Result, error) {
	files, err := candidates(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoCandidates
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	merger := pdf.NewMerger()
	for _, f := range files {
		doc, err := pdf.Open(f.path)
		if err != nil {
			return nil, &LoadError{Path: f.path, Err: err}
		}
		merger.Append(doc)
	}
	merged := merger.Finalize()

	outputPath := outputPath(dir)
	if err := merged.Save(outputPath); err != nil {
		return nil, &WriteError{Err: err}
	}

	return &Result{
		OutputPath: outputPath,
		Files:      len(files),
		Pages:      merged.NumPages(),
	}, nil
}

// candidates enumerates the regular files in dir whose extension is exactly
// ".pdf" (case-sensitive), in directory-scan order.
func candidates(dir string) ([]candidate, error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%q: %w", dir, ErrNotDirectory)
	case err != nil:
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%q: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pdf" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
		}
		files = append(files, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: fi.ModTime(),
		})
	}

	return files, nil
}

// outputPath places the merged file next to the input directory, named
// after it.
func outputPath(dir string) string {
	clean := filepath.Clean(dir)
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+".pdf")
}
