package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	require.Equal(t, "ads/42/summer-promo-video-123.mp4", ObjectPath("ads", "42", "Summer Promo Video.MP4", "123"))
	require.Equal(t, "avatars/7/file-9", ObjectPath("avatars", "7", "", "9"))
}

func TestRandomUpperAlphaNum(t *testing.T) {
	s, err := RandomUpperAlphaNum(16)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{16}$`), s)
}
