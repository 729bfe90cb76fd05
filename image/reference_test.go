package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantString string
		wantName   string
		wantTag    string
	}{
		{
			name:       "registry with tag",
			input:      "registry.example/project/thing:tag",
			wantString: "registry.example/project/thing:tag",
			wantName:   "registry.example/project/thing",
			wantTag:    "tag",
		},
		{
			name:       "untagged normalizes to latest",
			input:      "registry.example/project/thing",
			wantString: "registry.example/project/thing:latest",
			wantName:   "registry.example/project/thing",
			wantTag:    "latest",
		},
		{
			name:       "bare name",
			input:      "busybox",
			wantString: "busybox:latest",
			wantName:   "busybox",
			wantTag:    "latest",
		},
		{
			name:       "registry with port",
			input:      "localhost:5000/app:v1",
			wantString: "localhost:5000/app:v1",
			wantName:   "localhost:5000/app",
			wantTag:    "v1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseReference(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantString, ref.String())
			assert.Equal(t, tt.wantName, ref.Name())
			assert.Equal(t, tt.wantTag, ref.Tag())
			assert.False(t, ref.IsZero())
		})
	}
}

func TestParseReferenceInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "UPPERCASE", "registry.example/project/thing:tag:extra"} {
		_, err := ParseReference(input)
		require.ErrorIs(t, err, ErrInvalidReference, "input %q", input)
	}
}

func TestParseReferenceDigest(t *testing.T) {
	t.Parallel()

	ref, err := ParseReference("registry.example/thing@" + digestA.String())
	require.NoError(t, err)
	assert.Empty(t, ref.Tag(), "digest references carry no tag")
	assert.Contains(t, ref.String(), digestA.String())
}

func TestReferenceZero(t *testing.T) {
	t.Parallel()

	var zero Reference
	assert.True(t, zero.IsZero())
}
