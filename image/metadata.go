package image

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ErrInvalidMetadata is returned when an image metadata document violates
// the structural rules of the bundle (unknown manifest kind, or an entry
// count that does not fit the manifest list).
var ErrInvalidMetadata = errors.New("image: invalid metadata")

// ManifestAndConfig pairs one platform manifest with its container
// configuration. Config is nil for legacy V2.1 manifests, which embed
// their configuration. ConfigDigest optionally pins the digest the config
// was (or will be) pushed under.
type ManifestAndConfig struct {
	Manifest     Manifest
	Config       *ContainerConfig
	ConfigDigest string
}

// ImageMetadata is the per-image metadata bundle persisted by the cache.
//
// ManifestList is nil for single-platform builds, in which case exactly
// one ManifestsAndConfigs entry exists. For multi-platform builds the
// list's descriptors correspond one-to-one, in order, with the entries.
// The bundle is written whole and never mutated in place.
type ImageMetadata struct {
	ManifestList        ManifestList
	ManifestsAndConfigs []ManifestAndConfig
}

// Validate checks the structural invariants of the bundle: without a
// manifest list exactly one entry exists; with one, the list's descriptors
// correspond one-to-one with the entries.
func (m ImageMetadata) Validate() error {
	if m.ManifestList == nil {
		if len(m.ManifestsAndConfigs) != 1 {
			return fmt.Errorf("%w: single-platform metadata must hold exactly one manifest, got %d",
				ErrInvalidMetadata, len(m.ManifestsAndConfigs))
		}
		return nil
	}
	if len(m.ManifestsAndConfigs) == 0 {
		return fmt.Errorf("%w: manifest list present but no manifests", ErrInvalidMetadata)
	}
	if n := len(Descriptors(m.ManifestList)); n != len(m.ManifestsAndConfigs) {
		return fmt.Errorf("%w: manifest list holds %d descriptors for %d manifests",
			ErrInvalidMetadata, n, len(m.ManifestsAndConfigs))
	}
	return nil
}

type manifestAndConfigJSON struct {
	Manifest     json.RawMessage  `json:"manifest"`
	Config       *ContainerConfig `json:"config,omitempty"`
	ConfigDigest string           `json:"configDigest,omitempty"`
}

type imageMetadataJSON struct {
	ManifestList        json.RawMessage         `json:"manifestList,omitempty"`
	ManifestsAndConfigs []manifestAndConfigJSON `json:"manifestsAndConfigs"`
}

// MarshalJSON implements json.Marshaler.
func (m ImageMetadata) MarshalJSON() ([]byte, error) {
	out := imageMetadataJSON{}
	if m.ManifestList != nil {
		raw, err := json.Marshal(m.ManifestList)
		if err != nil {
			return nil, err
		}
		out.ManifestList = raw
	}
	for _, mc := range m.ManifestsAndConfigs {
		raw, err := json.Marshal(mc.Manifest)
		if err != nil {
			return nil, err
		}
		out.ManifestsAndConfigs = append(out.ManifestsAndConfigs, manifestAndConfigJSON{
			Manifest:     raw,
			Config:       mc.Config,
			ConfigDigest: mc.ConfigDigest,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown fields are ignored
// so documents written by newer versions remain readable; the decoded
// bundle must still satisfy Validate, so a structurally broken document
// never reads back as a partial bundle.
func (m *ImageMetadata) UnmarshalJSON(data []byte) error {
	var in imageMetadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	decoded := ImageMetadata{}
	if !isJSONNull(in.ManifestList) {
		list, err := decodeManifestList(in.ManifestList)
		if err != nil {
			return err
		}
		decoded.ManifestList = list
	}
	for _, mc := range in.ManifestsAndConfigs {
		manifest, err := decodeManifest(mc.Manifest)
		if err != nil {
			return err
		}
		decoded.ManifestsAndConfigs = append(decoded.ManifestsAndConfigs, ManifestAndConfig{
			Manifest:     manifest,
			Config:       mc.Config,
			ConfigDigest: mc.ConfigDigest,
		})
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*m = decoded
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// manifestProbe extracts just the discriminant fields of a manifest or
// manifest list document.
type manifestProbe struct {
	SchemaVersion int    `json:"schemaVersion"`
	MediaType     string `json:"mediaType"`
}

// DecodeManifest decodes a single-platform manifest of any supported
// schema, discriminating by media type with a schema-version fallback for
// the legacy V2.1 format.
func DecodeManifest(raw []byte) (Manifest, error) {
	return decodeManifest(raw)
}

func decodeManifest(raw json.RawMessage) (Manifest, error) {
	if isJSONNull(raw) {
		return nil, fmt.Errorf("%w: missing manifest", ErrInvalidMetadata)
	}
	var probe manifestProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("image: parse manifest: %w", err)
	}
	var manifest Manifest
	switch {
	case probe.MediaType == MediaTypeV22Manifest:
		manifest = &V22Manifest{}
	case probe.MediaType == ocispec.MediaTypeImageManifest:
		manifest = &OCIManifest{}
	case probe.MediaType == "" && probe.SchemaVersion == 1:
		manifest = &V21Manifest{}
	default:
		return nil, fmt.Errorf("%w: unknown manifest kind (mediaType %q, schemaVersion %d)",
			ErrInvalidMetadata, probe.MediaType, probe.SchemaVersion)
	}
	if err := json.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("image: parse manifest: %w", err)
	}
	return manifest, nil
}

// DecodeManifestList decodes a multi-platform manifest list of any
// supported schema.
func DecodeManifestList(raw []byte) (ManifestList, error) {
	return decodeManifestList(raw)
}

func decodeManifestList(raw json.RawMessage) (ManifestList, error) {
	var probe manifestProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("image: parse manifest list: %w", err)
	}
	var list ManifestList
	switch probe.MediaType {
	case MediaTypeV22ManifestList:
		list = &V22ManifestList{}
	case ocispec.MediaTypeImageIndex:
		list = &OCIIndex{}
	default:
		return nil, fmt.Errorf("%w: unknown manifest list kind (mediaType %q)",
			ErrInvalidMetadata, probe.MediaType)
	}
	if err := json.Unmarshal(raw, list); err != nil {
		return nil, fmt.Errorf("image: parse manifest list: %w", err)
	}
	return list, nil
}
