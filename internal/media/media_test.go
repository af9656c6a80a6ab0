package media

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDecodeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	t.Run("raw base64", func(t *testing.T) {
		data, ct, err := DecodeImage(encoded)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
		assert.Equal(t, "image/png", ct)
	})

	t.Run("data url", func(t *testing.T) {
		data, _, err := DecodeImage("data:image/png;base64," + encoded)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	t.Run("blank", func(t *testing.T) {
		_, _, err := DecodeImage("   ")
		assert.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("not base64", func(t *testing.T) {
		_, _, err := DecodeImage("%%%")
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		big := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", MaxImageBytes+1)))
		_, _, err := DecodeImage(big)
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})
}

func TestPostImageKey(t *testing.T) {
	assert.Equal(t, "posts/p1", PostImageKey("p1"))
}
