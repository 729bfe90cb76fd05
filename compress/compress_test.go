package compress

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/kiln/blob"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("layer content that compresses well ", 1000)

	for _, algorithm := range []Algorithm{Gzip, Zstd} {
		t.Run(algorithm.String(), func(t *testing.T) {
			var compressed bytes.Buffer
			cw, err := NewWriter(&compressed, algorithm)
			require.NoError(t, err)
			_, err = io.Copy(cw, strings.NewReader(content))
			require.NoError(t, err)
			require.NoError(t, cw.Close())

			dec, err := NewReader(bytes.NewReader(compressed.Bytes()))
			require.NoError(t, err)
			decompressed, err := io.ReadAll(dec)
			require.NoError(t, err)
			require.NoError(t, dec.Close())

			assert.Equal(t, content, string(decompressed))
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	gzipped := compressBytes(t, []byte("payload"), Gzip)
	zstded := compressBytes(t, []byte("payload"), Zstd)

	tests := []struct {
		name    string
		input   []byte
		want    Algorithm
		wantErr error
	}{
		{"gzip", gzipped, Gzip, nil},
		{"zstd", zstded, Zstd, nil},
		{"plain text", []byte("uncompressedLayerBlob"), 0, ErrUnknownFormat},
		{"empty", nil, 0, ErrUnknownFormat},
		{"one byte", []byte{0x1f}, 0, ErrUnknownFormat},
		{"short gzip prefix", []byte{0x1f, 0x8b}, Gzip, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			algorithm, replay, err := Detect(bytes.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NotEqual(t, Gzip, algorithm, "a failed detection must not look like gzip")
				assert.NotEqual(t, Zstd, algorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, algorithm)

			// The replay reader yields the full stream including the
			// sniffed prefix.
			replayed, err := io.ReadAll(replay)
			require.NoError(t, err)
			assert.Equal(t, tt.input, replayed)
		})
	}
}

func TestNewReaderRejectsPlainData(t *testing.T) {
	t.Parallel()

	_, err := NewReader(strings.NewReader("this is not compressed"))
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestCompressBlob(t *testing.T) {
	t.Parallel()

	content := "uncompressedLayerBlob"

	for _, algorithm := range []Algorithm{Gzip, Zstd} {
		t.Run(algorithm.String(), func(t *testing.T) {
			compressed := Compress(blob.FromString(content), algorithm)

			// Re-readable: consume twice with identical results.
			first, err := blob.ToBytes(compressed)
			require.NoError(t, err)
			second, err := blob.ToBytes(compressed)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			dec, err := NewReader(bytes.NewReader(first))
			require.NoError(t, err)
			decompressed, err := io.ReadAll(dec)
			require.NoError(t, err)
			assert.Equal(t, content, string(decompressed))
		})
	}
}

func TestCompressBlobDescriptor(t *testing.T) {
	t.Parallel()

	compressed := Compress(blob.FromString("content"), Gzip)
	var buf bytes.Buffer
	desc, err := compressed.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), desc.Size, "descriptor identifies the compressed bytes")
}

func TestAlgorithmString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gzip", Gzip.String())
	assert.Equal(t, "zstd", Zstd.String())
}

func compressBytes(t *testing.T, content []byte, algorithm Algorithm) []byte {
	t.Helper()
	var buf bytes.Buffer
	cw, err := NewWriter(&buf, algorithm)
	require.NoError(t, err)
	_, err = cw.Write(content)
	require.NoError(t, err)
	require.NoError(t, cw.Close())
	return buf.Bytes()
}
