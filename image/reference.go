package image

import (
	"errors"
	"fmt"

	"github.com/distribution/reference"
)

// ErrInvalidReference is returned when an image reference string is malformed.
var ErrInvalidReference = errors.New("image: invalid reference")

// Reference is a parsed, normalized image reference
// (e.g. "registry.example/project/thing:tag").
//
// References without a tag or digest are normalized to ":latest" so that
// one reference string always maps to one cache location.
type Reference struct {
	named reference.Named
}

// ParseReference parses and normalizes an image reference string.
func ParseReference(s string) (Reference, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %q: %v", ErrInvalidReference, s, err)
	}
	return Reference{named: reference.TagNameOnly(named)}, nil
}

// String returns the familiar form of the reference, e.g.
// "registry.example/project/thing:tag".
func (r Reference) String() string {
	return reference.FamiliarString(r.named)
}

// Name returns the repository name without tag or digest.
func (r Reference) Name() string {
	return reference.FamiliarName(r.named)
}

// Tag returns the tag, or the empty string for digest references.
func (r Reference) Tag() string {
	if tagged, ok := r.named.(reference.Tagged); ok {
		return tagged.Tag()
	}
	return ""
}

// IsZero reports whether r is the unparsed zero value.
func (r Reference) IsZero() bool {
	return r.named == nil
}
