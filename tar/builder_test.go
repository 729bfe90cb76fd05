package tar

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/kiln/blob"
)

const longName = "some/really/long/path/that/exceeds/100/characters/" +
	"abcdefghijklmnopqrstuvwxyz0123456789012345678901234567890"

type readEntry struct {
	name     string
	contents []byte
	modTime  time.Time
	typeflag byte
}

func readArchive(t *testing.T, raw []byte) []readEntry {
	t.Helper()
	tr := tar.NewReader(bytes.NewReader(raw))
	var entries []readEntry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		contents, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries = append(entries, readEntry{
			name:     hdr.Name,
			contents: contents,
			modTime:  hdr.ModTime,
			typeflag: hdr.Typeflag,
		})
	}
	return entries
}

func buildArchive(t *testing.T, b *Builder) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, b.WriteTo(&buf))
	return buf.Bytes()
}

func TestBuilderPreservesOrder(t *testing.T) {
	t.Parallel()

	fileA := []byte("contents of fileA")
	fileB := []byte("contents of fileB")

	var b Builder
	b.AddBytes("some/path/to/resourceFileA", time.Unix(0, 0), fileA)
	b.AddBytes("resourceFileB", time.Unix(0, 0), fileB)
	b.AddDir("some/path/to", time.Unix(0, 0))
	b.AddBytes(longName, time.Unix(0, 0), fileA)

	entries := readArchive(t, buildArchive(t, &b))
	require.Len(t, entries, 4)

	assert.Equal(t, "some/path/to/resourceFileA", entries[0].name)
	assert.Equal(t, fileA, entries[0].contents)
	assert.Equal(t, "resourceFileB", entries[1].name)
	assert.Equal(t, fileB, entries[1].contents)
	assert.Equal(t, "some/path/to/", entries[2].name)
	assert.Equal(t, byte(tar.TypeDir), entries[2].typeflag)
	assert.Equal(t, longName, entries[3].name, "long names must survive without truncation")
	assert.Equal(t, fileA, entries[3].contents)
}

func TestBuilderMultiByteContent(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AddBytes("test", time.Unix(0, 0), []byte("日本語"))
	b.AddBytes("plain", time.Unix(0, 0), []byte("asdf"))
	b.AddBlob("lazy", int64(len("abc")), time.Unix(0, 0), blob.FromString("abc"))

	entries := readArchive(t, buildArchive(t, &b))
	require.Len(t, entries, 3)

	assert.Equal(t, "test", entries[0].name)
	assert.Equal(t, []byte("日本語"), entries[0].contents)
	assert.Equal(t, "plain", entries[1].name)
	assert.Equal(t, []byte("asdf"), entries[1].contents)
	assert.Equal(t, "lazy", entries[2].name)
	assert.Equal(t, []byte("abc"), entries[2].contents)
}

func TestBuilderModificationTimes(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AddBytes("foo", time.Unix(1234, 0), []byte("foo"))
	b.AddBlob("bar", 3, time.Unix(3, 0), blob.FromString("bar"))
	b.AddBytes("sub-second", time.Unix(1234, 567000000), []byte("x"))

	entries := readArchive(t, buildArchive(t, &b))
	require.Len(t, entries, 3)

	assert.True(t, entries[0].modTime.Equal(time.Unix(1234, 0)),
		"got %v, want %v", entries[0].modTime, time.Unix(1234, 0))
	assert.True(t, entries[1].modTime.Equal(time.Unix(3, 0)),
		"got %v, want %v", entries[1].modTime, time.Unix(3, 0))
	assert.True(t, entries[2].modTime.Equal(time.Unix(1234, 567000000)),
		"sub-second precision must round-trip, got %v", entries[2].modTime)
}

func TestBuilderAddFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fileA")
	require.NoError(t, os.WriteFile(path, []byte("contents of fileA"), 0o644))

	modTime := time.Unix(1000, 0)
	var b Builder
	require.NoError(t, b.AddFile(path, "some/path/to/resourceFileA", modTime))
	require.NoError(t, b.AddFile(dir, "some/path/to", modTime))

	entries := readArchive(t, buildArchive(t, &b))
	require.Len(t, entries, 2)

	assert.Equal(t, "some/path/to/resourceFileA", entries[0].name)
	assert.Equal(t, []byte("contents of fileA"), entries[0].contents)
	assert.True(t, entries[0].modTime.Equal(modTime),
		"mod time comes from the caller, not the file")
	assert.Equal(t, "some/path/to/", entries[1].name)
	assert.Equal(t, byte(tar.TypeDir), entries[1].typeflag)
}

func TestBuilderAddFileMissing(t *testing.T) {
	t.Parallel()

	var b Builder
	err := b.AddFile(filepath.Join(t.TempDir(), "nope"), "entry-name", time.Unix(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry-name")
}

func TestBuilderEntrySourceFailure(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AddBlob("broken-entry", 4, time.Unix(0, 0), blob.FromFile(filepath.Join(t.TempDir(), "gone")))

	err := b.WriteTo(io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken-entry", "error must name the offending entry")
}

func TestBuilderAddEntry(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AddEntry(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     "app/run.sh",
		Mode:     0o755,
		Size:     int64(len("#!/bin/sh\n")),
		ModTime:  time.Unix(42, 0),
	}, blob.FromString("#!/bin/sh\n"))

	raw := buildArchive(t, &b)
	tr := tar.NewReader(bytes.NewReader(raw))
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "app/run.sh", hdr.Name)
	assert.Equal(t, int64(0o755), hdr.Mode)
}

func TestBuilderReproducible(t *testing.T) {
	t.Parallel()

	build := func() []byte {
		var b Builder
		b.AddBytes("a", time.Unix(1234, 0), []byte("alpha"))
		b.AddDir("d", time.Unix(1234, 0))
		b.AddBytes(longName, time.Unix(1234, 0), []byte("omega"))
		var buf bytes.Buffer
		require.NoError(t, b.WriteTo(&buf))
		return buf.Bytes()
	}

	assert.Equal(t, build(), build(), "identical inputs must produce identical bytes")
}

func TestBuilderToBlob(t *testing.T) {
	t.Parallel()

	var b Builder
	b.AddBytes("a", time.Unix(0, 0), []byte("alpha"))
	archive := b.ToBlob()

	first, err := blob.ToBytes(archive)
	require.NoError(t, err)
	second, err := blob.ToBytes(archive)
	require.NoError(t, err)
	assert.Equal(t, first, second, "archive blob is re-readable")

	entries := readArchive(t, first)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].name)
}
