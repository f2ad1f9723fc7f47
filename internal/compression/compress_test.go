package compression_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/remedy-project/remedy/internal/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress_RoundTrip(t *testing.T) {
	c := compression.New(compression.LevelDefault)
	original := []byte(strings.Repeat("const value = process.env.SECRET\n", 100))

	compressed, err := c.Compress(original)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(original))

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(original, restored))
}

func TestCompress_NoneIsPassthrough(t *testing.T) {
	c := compression.New(compression.LevelNone)
	data := []byte("unchanged")

	out, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
	assert.False(t, c.IsEnabled())
}

func TestFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    compression.Level
		wantErr bool
	}{
		{"none", compression.LevelNone, false},
		{"fast", compression.LevelFast, false},
		{"default", compression.LevelDefault, false},
		{"", compression.LevelDefault, false},
		{"max", compression.LevelMax, false},
		{"9", compression.LevelMax, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		c, err := compression.FromString(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.Level, tt.in)
	}
}

func TestDecompress_RejectsGarbage(t *testing.T) {
	_, err := compression.Decompress([]byte("not gzip at all"))
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "max", compression.New(compression.LevelMax).String())
	assert.Equal(t, "none", compression.New(compression.LevelNone).String())
}
