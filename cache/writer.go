package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/kiln/blob"
	"github.com/meigma/kiln/compress"
	"github.com/meigma/kiln/image"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer persists layers, selectors, configs, and image metadata under a
// cache root. It is safe for concurrent use.
//
// Every write streams to a temp file under the cache's tmp directory, then
// moves it into its content-addressed final path only if nothing is there
// yet; an existing file at that path is guaranteed byte-identical, so the
// move is skipped and duplicate writes stay idempotent. When two writers
// race past the existence check, the losing rename may land over the
// winner's file; on POSIX the rename is atomic and the contents are
// identical, so the overwrite is safe. No partial file is ever visible at
// a final path.
type Writer struct {
	files  Files
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used for write diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter returns a Writer persisting into the given layout.
func NewWriter(files Files, opts ...Option) *Writer {
	w := &Writer{files: files}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.logger
}

// WriteOption configures a single layer write.
type WriteOption func(*writeConfig)

type writeConfig struct {
	algorithm compress.Algorithm
}

// WithAlgorithm selects the compression algorithm for a layer write.
// The default is gzip.
func WithAlgorithm(algorithm compress.Algorithm) WriteOption {
	return func(cfg *writeConfig) {
		cfg.algorithm = algorithm
	}
}

// WriteCompressed persists an already compressed layer blob.
//
// The input streams exactly once: the compressed digest is computed while
// writing to disk, and a decompressing tee computes the uncompressed
// diffID in the same pass. Input that is not actually compressed fails
// with compress.ErrUnknownFormat; raw bytes are never silently stored as
// if compressed.
func (w *Writer) WriteCompressed(compressedLayer blob.Blob) (CachedLayer, error) {
	tmp, tmpPath, err := w.createTemp("layer-")
	if err != nil {
		return CachedLayer{}, err
	}
	defer discardTemp(tmp, tmpPath)

	pr, pw := io.Pipe()
	var diffID blob.Digest
	var g errgroup.Group
	g.Go(func() error {
		d, err := digestOfDecompressed(pr)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		// Drain trailing container bytes so the producer never blocks.
		_, _ = io.Copy(io.Discard, pr)
		diffID = d
		return nil
	})

	desc, writeErr := compressedLayer.WriteTo(io.MultiWriter(tmp, pw))
	pw.CloseWithError(writeErr)
	waitErr := g.Wait()
	if writeErr != nil {
		return CachedLayer{}, fmt.Errorf("cache: stream compressed layer: %w", writeErr)
	}
	if waitErr != nil {
		return CachedLayer{}, fmt.Errorf("cache: compute diffID: %w", waitErr)
	}
	if err := tmp.Close(); err != nil {
		return CachedLayer{}, fmt.Errorf("cache: finish temp file: %w", err)
	}
	return w.commitLayer(tmpPath, diffID, desc)
}

// WriteUncompressed compresses an uncompressed layer blob while streaming,
// persists it, and records selector as an alternate key for the layer's
// diffID so future rebuilds can skip re-hashing unchanged inputs.
//
// Compression uses gzip unless overridden with WithAlgorithm. Both digests
// are computed in the single pass: the blob's own descriptor yields the
// diffID and a digesting writer below the compressor yields the stored
// digest.
func (w *Writer) WriteUncompressed(uncompressedLayer blob.Blob, selector blob.Digest, opts ...WriteOption) (CachedLayer, error) {
	cfg := writeConfig{algorithm: compress.Gzip}
	for _, opt := range opts {
		opt(&cfg)
	}

	tmp, tmpPath, err := w.createTemp("layer-")
	if err != nil {
		return CachedLayer{}, err
	}
	defer discardTemp(tmp, tmpPath)

	dw := blob.NewDigestWriter(tmp)
	cw, err := compress.NewWriter(dw, cfg.algorithm)
	if err != nil {
		return CachedLayer{}, err
	}
	uncompressedDesc, err := uncompressedLayer.WriteTo(cw)
	if err != nil {
		cw.Close()
		return CachedLayer{}, fmt.Errorf("cache: stream uncompressed layer: %w", err)
	}
	if err := cw.Close(); err != nil {
		return CachedLayer{}, fmt.Errorf("cache: finish compression: %w", err)
	}
	desc := dw.Descriptor()
	if err := tmp.Close(); err != nil {
		return CachedLayer{}, fmt.Errorf("cache: finish temp file: %w", err)
	}

	layer, err := w.commitLayer(tmpPath, uncompressedDesc.Digest, desc)
	if err != nil {
		return CachedLayer{}, err
	}
	if err := w.writeSelector(selector, layer.DiffID()); err != nil {
		return CachedLayer{}, err
	}
	return layer, nil
}

// WriteTarLayer persists a compressed layer whose diffID the caller
// already computed while building the tar, skipping the redundant
// decompression pass. The diffID is trusted as supplied.
func (w *Writer) WriteTarLayer(diffID blob.Digest, compressedLayer blob.Blob) (CachedLayer, error) {
	tmp, tmpPath, err := w.createTemp("layer-")
	if err != nil {
		return CachedLayer{}, err
	}
	defer discardTemp(tmp, tmpPath)

	desc, err := compressedLayer.WriteTo(tmp)
	if err != nil {
		return CachedLayer{}, fmt.Errorf("cache: stream compressed layer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return CachedLayer{}, fmt.Errorf("cache: finish temp file: %w", err)
	}
	return w.commitLayer(tmpPath, diffID, desc)
}

// WriteLocalConfig persists a locally built container configuration under
// the given digest. The digest is trusted as supplied; configs written
// here are not yet associated with a pushed manifest.
func (w *Writer) WriteLocalConfig(digest blob.Digest, config *image.ContainerConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("cache: serialize container config: %w", err)
	}

	tmp, tmpPath, err := w.createTemp("config-")
	if err != nil {
		return err
	}
	defer discardTemp(tmp, tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("cache: write container config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: finish temp file: %w", err)
	}

	dest := w.files.LocalConfigFile(digest)
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return fmt.Errorf("cache: create config directory: %w", err)
	}
	if err := moveIfNotExists(tmpPath, dest); err != nil {
		return err
	}
	w.log().Debug("local config cached", "digest", digest.String())
	return nil
}

// WriteMetadata serializes the full metadata bundle for an image
// reference, replacing any prior content for that reference.
//
// The replacement is atomic (temp file plus rename) but concurrent
// writers targeting the same reference are not coordinated; the last
// writer to complete the move wins.
func (w *Writer) WriteMetadata(ref image.Reference, metadata image.ImageMetadata) error {
	if err := metadata.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("cache: serialize metadata: %w", err)
	}

	dir := w.files.ImageDirectory(ref)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("cache: create image directory: %w", err)
	}

	tmp, tmpPath, err := w.createTemp("metadata-")
	if err != nil {
		return err
	}
	defer discardTemp(tmp, tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("cache: write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: finish temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.files.ImageMetadataFile(ref)); err != nil {
		return fmt.Errorf("cache: replace metadata for %s: %w", ref, err)
	}
	w.log().Debug("image metadata written", "reference", ref.String())
	return nil
}

// createTemp creates a staging file in the cache's tmp directory, so the
// later rename into a final path stays on one filesystem.
func (w *Writer) createTemp(prefix string) (*os.File, string, error) {
	dir := w.files.TemporaryDirectory()
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, "", fmt.Errorf("cache: create temporary directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, prefix+"*")
	if err != nil {
		return nil, "", fmt.Errorf("cache: create temporary file: %w", err)
	}
	return tmp, tmp.Name(), nil
}

// discardTemp releases a staging file. After a successful move both calls
// are no-ops; a temp file orphaned by a crash is not content-addressed and
// therefore invisible to correctness.
func discardTemp(tmp *os.File, tmpPath string) {
	_ = tmp.Close()
	_ = os.Remove(tmpPath)
}

// commitLayer moves a completed temp file into its layer path and builds
// the CachedLayer handle.
func (w *Writer) commitLayer(tmpPath string, diffID blob.Digest, desc blob.Descriptor) (CachedLayer, error) {
	dest := w.files.LayerFile(diffID, desc.Digest)
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return CachedLayer{}, fmt.Errorf("cache: create layer directory: %w", err)
	}
	if err := moveIfNotExists(tmpPath, dest); err != nil {
		return CachedLayer{}, err
	}
	w.log().Debug("layer cached",
		"digest", desc.Digest.String(),
		"diffID", diffID.String(),
		"size", desc.Size,
	)
	return CachedLayer{
		digest:  desc.Digest,
		diffID:  diffID,
		size:    desc.Size,
		content: blob.WithDescriptor(blob.FromFile(dest), desc),
	}, nil
}

// writeSelector records selector → diffID as a one-line file holding the
// diffID's hex hash. Selector files are replaced atomically; the mapping
// for a selector may move to a new diffID as sources change.
func (w *Writer) writeSelector(selector, diffID blob.Digest) error {
	dest := w.files.SelectorFile(selector)
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return fmt.Errorf("cache: create selectors directory: %w", err)
	}

	tmp, tmpPath, err := w.createTemp("selector-")
	if err != nil {
		return err
	}
	defer discardTemp(tmp, tmpPath)

	if _, err := tmp.WriteString(diffID.Hash()); err != nil {
		return fmt.Errorf("cache: write selector: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: finish temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("cache: replace selector %s: %w", selector.Hash(), err)
	}
	return nil
}

// digestOfDecompressed auto-detects the compression of r and digests the
// decompressed stream.
func digestOfDecompressed(r io.Reader) (blob.Digest, error) {
	dec, err := compress.NewReader(r)
	if err != nil {
		return blob.Digest{}, err
	}
	defer dec.Close()
	dr := blob.NewDigestReader(dec)
	if _, err := io.Copy(io.Discard, dr); err != nil {
		return blob.Digest{}, err
	}
	return dr.Descriptor().Digest, nil
}

// moveIfNotExists places source at destination unless content-addressed
// bytes are already there.
//
// The existence check is an optimization, not the source of truth: if two
// writers race past it, the rename decides, and replacing an existing
// destination with the racer's byte-identical file is safe. Failed moves
// surface both paths and the underlying cause; on some operating systems
// the usual culprit is file locking by antivirus software.
func moveIfNotExists(source, destination string) error {
	if _, err := os.Stat(destination); err == nil {
		// Already cached; the write is a designed no-op.
		_ = os.Remove(source)
		return nil
	}
	if err := os.Rename(source, destination); err != nil {
		if _, statErr := os.Stat(destination); statErr == nil {
			// A racing writer finished first with identical bytes.
			_ = os.Remove(source)
			return nil
		}
		return fmt.Errorf(
			"cache: unable to move %s to %s; such failures are often caused by interference from antivirus software: %w",
			source, destination, err)
	}
	return nil
}
