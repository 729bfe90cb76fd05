// Package image holds the serialized forms of image metadata: container
// configurations, the manifest schema variants, and the per-image metadata
// bundle the cache persists.
//
// The manifest types form a tagged union discriminated by media type (with
// a schema-version fallback for the legacy V2.1 format); deserialization is
// forward compatible, so documents written by newer versions remain
// readable minus their new fields.
package image

import (
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/kiln/blob"
)

// ContainerConfig is a container configuration JSON document.
//
// The wire shape is the OCI image config, which is field-compatible with
// the Docker config format the legacy manifests embed.
type ContainerConfig ocispec.Image

// AddLayerDiffID appends a layer's uncompressed digest to the rootfs
// diff_ids list, creating the rootfs section on first use.
func (c *ContainerConfig) AddLayerDiffID(diffID blob.Digest) {
	if c.RootFS.Type == "" {
		c.RootFS.Type = "layers"
	}
	c.RootFS.DiffIDs = append(c.RootFS.DiffIDs, digest.Digest(diffID.String()))
}

// AddHistoryEntry appends a history entry describing how a layer was built.
func (c *ContainerConfig) AddHistoryEntry(entry ocispec.History) {
	c.History = append(c.History, entry)
}

// LayerCount returns the number of layer diff IDs recorded in the rootfs.
func (c *ContainerConfig) LayerCount() int {
	return len(c.RootFS.DiffIDs)
}
