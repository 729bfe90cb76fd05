// Package tar assembles named byte sources into a deterministic tar stream.
//
// Entries are written in the exact order they were added; the builder never
// sorts, deduplicates, or substitutes wall-clock timestamps, so identical
// inputs produce a byte-identical archive on every invocation. Compression
// is deliberately not part of this package; callers layer it on afterward.
package tar

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/meigma/kiln/blob"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

type entry struct {
	header *tar.Header
	source blob.Blob // nil for directories
}

// Builder builds a plain, uncompressed tar stream from ordered entries.
//
// The zero value is ready to use. Builder is not safe for concurrent
// mutation; assemble entries from one goroutine.
type Builder struct {
	entries []entry
}

// AddBytes adds a regular file entry holding contents verbatim.
//
// Payload bytes round-trip exactly; multi-byte text is never transcoded.
func (b *Builder) AddBytes(name string, modTime time.Time, contents []byte) {
	b.entries = append(b.entries, entry{
		header: &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     defaultFileMode,
			Size:     int64(len(contents)),
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		},
		source: blob.FromBytes(contents),
	})
}

// AddBlob adds a regular file entry whose contents are streamed from src at
// write time. The size must match the number of bytes src produces.
func (b *Builder) AddBlob(name string, size int64, modTime time.Time, src blob.Blob) {
	b.entries = append(b.entries, entry{
		header: &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     defaultFileMode,
			Size:     size,
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		},
		source: src,
	})
}

// AddDir adds a directory entry. Directory names are normalized to end
// with a trailing separator.
func (b *Builder) AddDir(name string, modTime time.Time) {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	b.entries = append(b.entries, entry{
		header: &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     name,
			Mode:     defaultDirMode,
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		},
	})
}

// AddFile adds an entry for the file or directory at path, archived under
// name. Size and permissions are captured now; contents are read when the
// archive is written. The modification time is taken verbatim from modTime,
// never from the file.
func (b *Builder) AddFile(path, name string, modTime time.Time) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("tar: stat entry %q: %w", name, err)
	}
	if info.IsDir() {
		if !strings.HasSuffix(name, "/") {
			name += "/"
		}
		b.entries = append(b.entries, entry{
			header: &tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name,
				Mode:     int64(info.Mode().Perm()),
				ModTime:  modTime,
				Format:   tar.FormatPAX,
			},
		})
		return nil
	}
	b.entries = append(b.entries, entry{
		header: &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     int64(info.Mode().Perm()),
			Size:     info.Size(),
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		},
		source: blob.FromFile(path),
	})
	return nil
}

// AddEntry adds a pre-built header with src as its contents. Callers that
// need ownership, permissions, or link fields beyond what the other Add
// methods capture build the header themselves. The header's format is
// forced to PAX so long names and exact timestamps survive.
func (b *Builder) AddEntry(header *tar.Header, src blob.Blob) {
	header.Format = tar.FormatPAX
	b.entries = append(b.entries, entry{header: header, source: src})
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// WriteTo streams the archive to w, entries in insertion order.
//
// A failure reading an entry's source aborts the build with an error
// naming the offending entry.
func (b *Builder) WriteTo(w io.Writer) error {
	tw := tar.NewWriter(w)
	for _, e := range b.entries {
		if err := tw.WriteHeader(e.header); err != nil {
			return fmt.Errorf("tar: write header for %q: %w", e.header.Name, err)
		}
		if e.source == nil {
			continue
		}
		if _, err := e.source.WriteTo(tw); err != nil {
			return fmt.Errorf("tar: write contents of %q: %w", e.header.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("tar: finalize archive: %w", err)
	}
	return nil
}

// ToBlob returns the archive as a Blob.
//
// The blob re-runs the build on every write, so it is re-readable as long
// as all entry sources are.
func (b *Builder) ToBlob() blob.Blob {
	return blob.FromFunc(b.WriteTo)
}
