package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b SemanticVersion
		want int
	}{
		{"minor ordering is numeric", SemanticVersion{1, 9, 0}, SemanticVersion{1, 10, 0}, -1},
		{"major dominates", SemanticVersion{1, 99, 99}, SemanticVersion{2, 0, 0}, -1},
		{"major dominates reversed", SemanticVersion{2, 0, 0}, SemanticVersion{1, 10, 0}, 1},
		{"patch breaks ties", SemanticVersion{1, 2, 4}, SemanticVersion{1, 2, 3}, 1},
		{"equal", SemanticVersion{3, 1, 4}, SemanticVersion{3, 1, 4}, 0},
		{"concatenation collision", SemanticVersion{1, 11, 1}, SemanticVersion{11, 1, 1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
		})
	}
}

func TestParseSemanticVersion(t *testing.T) {
	v, err := ParseSemanticVersion("v1.10.2")
	require.NoError(t, err)
	assert.Equal(t, SemanticVersion{1, 10, 2}, v)
	assert.Equal(t, "1.10.2", v.String())

	for _, bad := range []string{"", "1.2", "1.2.x", "1.-2.3", "1.2.3.4"} {
		_, err := ParseSemanticVersion(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, SemanticVersion{}.IsZero())
}
