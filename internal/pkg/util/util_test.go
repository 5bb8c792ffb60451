package util

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInviteCode(t *testing.T) {
	code, err := GenerateInviteCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(inviteAlphabet, r))
	}
	assert.Equal(t, "AB12CD", NormalizeInviteCode("  ab12cd "))
}

func TestObjectKeys(t *testing.T) {
	key := BuildObjectKey(12, "IMG_0001.JPG", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "couple/12/2026/10/19/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.True(t, OwnsObjectKey(12, key))
	assert.False(t, OwnsObjectKey(1, key))
	assert.False(t, OwnsObjectKey(12, "couple/12/../13/x.jpg"))
	assert.Equal(t, "thumbs/"+key+".jpg", ThumbKey(key))
}

func TestContentTypes(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType("a.png", ""))
	assert.Equal(t, "image/jpeg", DetectContentType("a.bin", "image/jpeg; charset=binary"))
	assert.True(t, IsMediaType("video/mp4"))
	assert.True(t, IsMediaType("image/heic"))
	assert.False(t, IsMediaType("application/pdf"))
	assert.False(t, IsImageType("video/mp4"))
}

func TestMakeThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		src.Set(x, x%480, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	thumb, size, err := MakeThumbnail(&buf, 320)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(640, 480), size)

	decoded, err := jpeg.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(320, 240), decoded.Bounds().Size())

	_, _, err = MakeThumbnail(strings.NewReader("not an image"), 320)
	assert.Error(t, err)
}

func TestParseIDAndPreview(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
	_, ok = ParseID("0")
	assert.False(t, ok)
	_, ok = ParseID("x")
	assert.False(t, ok)
	assert.Equal(t, "ab…", Preview(" abc ", 2))
	assert.Equal(t, "abc", Preview("abc", 3))
}
