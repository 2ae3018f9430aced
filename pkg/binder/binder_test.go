package binder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfbinder/pdfbinder/pkg/pdf"
)

// writePDF writes a one-page document whose content stream carries marker,
// with the given modification time
func writePDF(t *testing.T, path, marker string, modTime time.Time) {
	t.Helper()

	catalog := pdf.Dictionary{"Type": pdf.Name("Catalog"), "Pages": pdf.Ref(2, 0)}
	doc := &pdf.Document{
		Version: "1.4",
		Objects: map[pdf.ObjectID]pdf.Object{
			{Number: 1}: catalog,
			{Number: 2}: pdf.Dictionary{
				"Type":  pdf.Name("Pages"),
				"Kids":  pdf.Array{pdf.Ref(3, 0)},
				"Count": pdf.Integer(1),
			},
			{Number: 3}: pdf.Dictionary{
				"Type":     pdf.Name("Page"),
				"Parent":   pdf.Ref(2, 0),
				"Contents": pdf.Ref(4, 0),
				"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
			},
			{Number: 4}: pdf.Stream{
				Dictionary: pdf.Dictionary{"Length": pdf.Integer(len(marker))},
				Data:       []byte(marker),
			},
		},
		Trailer: pdf.Dictionary{"Root": pdf.Ref(1, 0)},
		Root:    catalog,
		MaxID:   4,
	}

	require.NoError(t, doc.Save(path))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

// mergedMarkers opens the merged output and reads back the content
// stream of every page, in page order
func mergedMarkers(t *testing.T, path string) []string {
	t.Helper()

	doc, err := pdf.Open(path)
	require.NoError(t, err)

	var markers []string
	for _, id := range doc.PageIDs() {
		page, ok := doc.GetObject(id).(pdf.Dictionary)
		require.True(t, ok)
		ref, ok := page.GetReference("Contents")
		require.True(t, ok)
		stream, ok := doc.GetObject(ref.ObjectID).(pdf.Stream)
		require.True(t, ok)
		markers = append(markers, string(stream.Data))
	}
	return markers
}

func TestMergeDirectory(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "scans")
	require.NoError(t, os.Mkdir(dir, 0755))

	base := time.Now().Add(-time.Hour)
	writePDF(t, filepath.Join(dir, "c.pdf"), "second", base.Add(2*time.Minute))
	writePDF(t, filepath.Join(dir, "a.pdf"), "third", base.Add(4*time.Minute))
	writePDF(t, filepath.Join(dir, "b.pdf"), "first", base)

	result, err := MergeDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(parent, "scans.pdf"), result.OutputPath)
	assert.Equal(t, 3, result.Files)
	assert.Equal(t, 3, result.Pages)

	// order follows modification time, not name
	assert.Equal(t, []string{"first", "second", "third"}, mergedMarkers(t, result.OutputPath))
}

func TestMergeDirectoryIgnoresOtherEntries(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "mixed")
	require.NoError(t, os.Mkdir(dir, 0755))

	writePDF(t, filepath.Join(dir, "doc.pdf"), "only", time.Now().Add(-time.Minute))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UPPER.PDF"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0755))

	result, err := MergeDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Files)
	assert.Equal(t, []string{"only"}, mergedMarkers(t, result.OutputPath))
}

func TestMergeDirectoryEmpty(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "empty")
	require.NoError(t, os.Mkdir(dir, 0755))

	_, err := MergeDirectory(dir)
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, statErr := os.Stat(filepath.Join(parent, "empty.pdf"))
	assert.True(t, os.IsNotExist(statErr), "no output should be written")
}

func TestMergeDirectoryNotADirectory(t *testing.T) {
	parent := t.TempDir()

	file := filepath.Join(parent, "plain.pdf")
	writePDF(t, file, "x", time.Now())
	_, err := MergeDirectory(file)
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = MergeDirectory(filepath.Join(parent, "does-not-exist"))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestMergeDirectoryStatError(t *testing.T) {
	// a component beyond NAME_MAX makes stat fail with ENAMETOOLONG,
	// which is an access failure, not a missing directory
	long := filepath.Join(t.TempDir(), strings.Repeat("a", 300))

	_, err := MergeDirectory(long)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotDirectory)
}

func TestMergeDirectoryCorruptFile(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "broken")
	require.NoError(t, os.Mkdir(dir, 0755))

	writePDF(t, filepath.Join(dir, "good.pdf"), "ok", time.Now().Add(-time.Minute))
	corrupt := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(corrupt, []byte("not really a pdf"), 0644))

	_, err := MergeDirectory(dir)
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, corrupt, loadErr.Path)

	_, statErr := os.Stat(filepath.Join(parent, "broken.pdf"))
	assert.True(t, os.IsNotExist(statErr), "failed merge must not leave output behind")
}

func TestCountCandidates(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "batch")
	require.NoError(t, os.Mkdir(dir, 0755))

	writePDF(t, filepath.Join(dir, "one.pdf"), "1", time.Now())
	writePDF(t, filepath.Join(dir, "two.pdf"), "2", time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0644))

	n, err := CountCandidates(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// counting never writes the output
	_, statErr := os.Stat(filepath.Join(parent, "batch.pdf"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = CountCandidates(filepath.Join(parent, "missing"))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{filepath.Join("work", "scans"), filepath.Join("work", "scans.pdf")},
		{filepath.Join("work", "scans") + string(filepath.Separator), filepath.Join("work", "scans.pdf")},
		{"scans", "scans.pdf"},
	}

	for _, tt := range tests {
		if got := outputPath(tt.dir); got != tt.want {
			t.Errorf("outputPath(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	loadErr := &LoadError{Path: "x.pdf", Err: errors.New("boom")}
	assert.Contains(t, loadErr.Error(), "x.pdf")
	assert.ErrorContains(t, loadErr, "boom")

	writeErr := &WriteError{Err: errors.New("disk full")}
	assert.ErrorContains(t, writeErr, "disk full")
	assert.Equal(t, "disk full", errors.Unwrap(writeErr).Error())
}
