package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramePoolReusesBySize(t *testing.T) {
	p := NewFramePool()
	a := p.Get(image.Rect(0, 0, 64, 32))
	assert.Equal(t, image.Rect(0, 0, 64, 32), a.Rect)
	p.Put(a)

	b := p.Get(image.Rect(10, 10, 74, 42))
	assert.Equal(t, image.Pt(64, 32), b.Rect.Size())

	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	p.Put(nil)
}

func TestWorkersHonoursLimit(t *testing.T) {
	assert.Equal(t, 1, Workers(1, 1))
	n := Workers(1920*1080*4, 0)
	assert.GreaterOrEqual(t, n, 1)
	assert.GreaterOrEqual(t, Workers(1<<62, 0), 1)
}

func TestBestEncoderByFormat(t *testing.T) {
	assert.Equal(t, "libvpx-vp9", BestEncoder("ffmpeg", "webm"))
	assert.Equal(t, "gif", BestEncoder("ffmpeg", "gif"))
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp3")
	newer := filepath.Join(dir, "new.WAV")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatest(dir, ".mp3", ".wav")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatest(dir, ".flac")
	assert.Error(t, err)
}
