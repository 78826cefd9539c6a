package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		size int64
		kind Kind
		ok   bool
	}{
		{"photo.JPG", 1 * mb, KindImage, true},
		{"photo.bmp", 1 * mb, KindImage, false},
		{"photo.png", 11 * mb, KindImage, false},
		{"logo.png", 3 * mb, KindLogo, false},
		{"clip.mov", 90 * mb, KindVideo, true},
		{"song.flac", 1 * mb, KindAudio, false},
		{"deck.pdf", 40 * mb, KindDocument, true},
		{"x.png", 1, "sticker", false},
	}
	for _, tt := range tests {
		err := Validate(tt.name, tt.size, tt.kind)
		if tt.ok {
			assert.NoError(t, err, tt.name)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAsset, tt.name)
		}
	}

	err := Validate("huge.bmp", 20*mb, KindLogo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
	assert.Contains(t, err.Error(), "not supported")
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("a/b/deck.PDF")
	assert.True(t, ok)
	assert.Equal(t, KindDocument, k)

	_, ok = KindOf("notes.txt")
	assert.False(t, ok)
}

func TestSplitPage(t *testing.T) {
	ref, page := splitPage("deck.pdf#3")
	assert.Equal(t, "deck.pdf", ref)
	assert.Equal(t, 3, page)

	ref, page = splitPage("https://x.test/a.png#top")
	assert.Equal(t, "https://x.test/a.png#top", ref)
	assert.Equal(t, 1, page)
}

func TestImageFromFileIsCached(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bg.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t, 8, 4), 0644))

	lib := NewLibrary(Options{CacheSize: 4}, nil, zerolog.Nop())
	img, err := lib.Image(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 4), img.Bounds().Size())

	require.NoError(t, os.Remove(p))
	_, err = lib.Image(context.Background(), p)
	assert.NoError(t, err)

	_, err = lib.Image(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "missing.png")))
	assert.Error(t, err)
}

func TestImageOverHTTP(t *testing.T) {
	data := pngBytes(t, 3, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	lib := NewLibrary(Options{}, nil, zerolog.Nop())
	img, err := lib.Image(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = lib.Image(context.Background(), srv.URL+"/nope.png")
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	store := storage.NewLocalStorage(t.TempDir(), "https://cdn.test")
	lib := NewLibrary(Options{}, store, zerolog.Nop())

	obj, err := lib.Upload(context.Background(), "Logo.PNG", strings.NewReader("img"), 3, KindLogo)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "assets/logo/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))
	assert.Equal(t, "https://cdn.test/"+obj.Key, obj.URL)

	_, err = lib.Upload(context.Background(), "song.exe", strings.NewReader("x"), 1, KindAudio)
	assert.ErrorIs(t, err, ErrInvalidAsset)
}
