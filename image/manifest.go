package image

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Docker media types for the schema 2 formats. The OCI equivalents come
// from the image-spec module.
const (
	MediaTypeV22Manifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeV22ManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeV22Config       = "application/vnd.docker.container.image.v1+json"
	MediaTypeV22Layer        = "application/vnd.docker.image.rootfs.diff.tar.gzip"
)

// Manifest is the tagged union of supported image manifest schemas:
// *V21Manifest, *V22Manifest, and *OCIManifest. Callers branch with a
// type switch.
type Manifest interface {
	isManifest()
}

// ManifestList is the tagged union of multi-platform aggregates:
// *V22ManifestList and *OCIIndex.
type ManifestList interface {
	isManifestList()
}

// V21Manifest is the legacy Docker V2.1 single-platform manifest
// (schemaVersion 1). It has no media type field of its own; the schema
// version is its discriminant.
type V21Manifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	Name          string       `json:"name,omitempty"`
	Tag           string       `json:"tag,omitempty"`
	Architecture  string       `json:"architecture,omitempty"`
	FSLayers      []V21FSLayer `json:"fsLayers"`
	History       []V21History `json:"history,omitempty"`
}

// V21FSLayer references a layer blob by its compressed digest.
type V21FSLayer struct {
	BlobSum string `json:"blobSum"`
}

// V21History carries a serialized v1 compatibility JSON string.
type V21History struct {
	V1Compatibility string `json:"v1Compatibility"`
}

func (*V21Manifest) isManifest() {}

// NewV21Manifest returns an empty legacy manifest with the schema version set.
func NewV21Manifest() *V21Manifest {
	return &V21Manifest{SchemaVersion: 1}
}

// ContainerConfig parses the first history entry's v1 compatibility JSON
// into a container configuration. The second return is false when the
// manifest has no history.
func (m *V21Manifest) ContainerConfig() (*ContainerConfig, bool, error) {
	if len(m.History) == 0 {
		return nil, false, nil
	}
	var cfg ContainerConfig
	if err := json.Unmarshal([]byte(m.History[0].V1Compatibility), &cfg); err != nil {
		return nil, false, fmt.Errorf("image: parse v1 compatibility: %w", err)
	}
	return &cfg, true, nil
}

// V22Manifest is the Docker V2.2 single-platform manifest.
type V22Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Config        ocispec.Descriptor   `json:"config"`
	Layers        []ocispec.Descriptor `json:"layers"`
}

func (*V22Manifest) isManifest() {}

// NewV22Manifest returns an empty V2.2 manifest with its schema version
// and media type set.
func NewV22Manifest() *V22Manifest {
	return &V22Manifest{SchemaVersion: 2, MediaType: MediaTypeV22Manifest}
}

// OCIManifest is the OCI single-platform image manifest.
type OCIManifest struct {
	ocispec.Manifest
}

func (*OCIManifest) isManifest() {}

// NewOCIManifest returns an empty OCI manifest with its schema version and
// media type set.
func NewOCIManifest() *OCIManifest {
	return &OCIManifest{Manifest: ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
	}}
}

// V22ManifestList is the Docker V2.2 multi-platform manifest list.
// Descriptor order is preserved exactly as built.
type V22ManifestList struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Manifests     []ocispec.Descriptor `json:"manifests"`
}

func (*V22ManifestList) isManifestList() {}

// NewV22ManifestList returns an empty manifest list with its schema
// version and media type set.
func NewV22ManifestList() *V22ManifestList {
	return &V22ManifestList{SchemaVersion: 2, MediaType: MediaTypeV22ManifestList}
}

// DigestsForPlatform returns the digests of all manifests matching the
// given architecture and OS, in list order.
func (l *V22ManifestList) DigestsForPlatform(architecture, os string) []string {
	var digests []string
	for _, desc := range l.Manifests {
		if desc.Platform == nil {
			continue
		}
		if desc.Platform.Architecture == architecture && desc.Platform.OS == os {
			digests = append(digests, desc.Digest.String())
		}
	}
	return digests
}

// OCIIndex is the OCI multi-platform image index.
type OCIIndex struct {
	ocispec.Index
}

func (*OCIIndex) isManifestList() {}

// NewOCIIndex returns an empty index with its schema version and media
// type set.
func NewOCIIndex() *OCIIndex {
	return &OCIIndex{Index: ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
	}}
}

// Descriptors returns the platform manifest descriptors of any manifest
// list variant, in stored order.
func Descriptors(list ManifestList) []ocispec.Descriptor {
	switch l := list.(type) {
	case *V22ManifestList:
		return l.Manifests
	case *OCIIndex:
		return l.Manifests
	default:
		return nil
	}
}
