package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/config"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/raster"
	"github.com/ivlev/frameforge/internal/scene"
	"github.com/ivlev/frameforge/internal/storage"
	"github.com/ivlev/frameforge/internal/template"
)

func small(format export.Format) export.Options {
	return export.Options{
		CompositionID:    export.CompositionPromo,
		OutputFormat:     format,
		Quality:          export.High,
		InputProps:       template.DefaultProps(template.Minimal),
		DurationInFrames: 6,
		FPS:              30,
		Width:            32,
		Height:           18,
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.FFmpeg.Encoder = "libx264"
	cfg.Workers = 3
	return cfg
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildArgsMP4(t *testing.T) {
	p := config.RenderParams{Width: 1280, Height: 720, FPS: 30, DurationInFrames: 90, Format: "mp4", Encoder: "libx264", Quality: 18}
	args := buildFFmpegArgs(p, "out.mp4")

	assert.Equal(t, "1280x720", argValue(args, "-video_size"))
	assert.Equal(t, "3.000000", argValue(args, "-t"))
	assert.Equal(t, "18", argValue(args, "-crf"))
	assert.Equal(t, "medium", argValue(args, "-preset"))
	assert.Equal(t, "+faststart", argValue(args, "-movflags"))
	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.NotContains(t, args, "-af")
}

func TestBuildArgsEncoders(t *testing.T) {
	base := config.RenderParams{Width: 64, Height: 64, FPS: 30, DurationInFrames: 30, Format: "mp4"}

	vt := base
	vt.Encoder, vt.Quality = "h264_videotoolbox", 80
	assert.Equal(t, "8000k", argValue(buildFFmpegArgs(vt, "o.mp4"), "-b:v"))

	nv := base
	nv.Encoder, nv.Quality = "h264_nvenc", 23
	assert.Equal(t, "23", argValue(buildFFmpegArgs(nv, "o.mp4"), "-cq"))

	vp9 := base
	vp9.Format, vp9.Encoder, vp9.Quality = "webm", "libvpx-vp9", 24
	args := buildFFmpegArgs(vp9, "o.webm")
	assert.Equal(t, "24", argValue(args, "-crf"))
	assert.Equal(t, "0", argValue(args, "-b:v"))
	assert.Empty(t, argValue(args, "-movflags"))
}

func TestBuildArgsGIFIgnoresAudio(t *testing.T) {
	p := config.RenderParams{Width: 64, Height: 64, FPS: 15, DurationInFrames: 15, Format: "gif", Encoder: "gif", AudioPath: "music.mp3"}
	args := buildFFmpegArgs(p, "o.gif")
	assert.Contains(t, argValue(args, "-vf"), "palettegen")
	assert.NotContains(t, args, "music.mp3")
	assert.NotContains(t, args, "-pix_fmt")
}

func TestBuildArgsAudio(t *testing.T) {
	p := config.RenderParams{
		Width: 64, Height: 64, FPS: 30, DurationInFrames: 60, Format: "mp4", Encoder: "libx264", Quality: 23,
		AudioPath: "music.mp3", AudioOffset: 1, AudioDelay: 0.5, AudioVolume: "0.5",
	}
	args := buildFFmpegArgs(p, "o.mp4")
	assert.Equal(t, "1.000000", argValue(args, "-ss"))
	assert.Contains(t, strings.Join(args, " "), "-i - -ss 1.000000 -i music.mp3")
	assert.Equal(t, "adelay=500|500,volume='0.5':eval=frame", argValue(args, "-af"))
	assert.Equal(t, "aac", argValue(args, "-c:a"))
	assert.Contains(t, strings.Join(args, " "), "-map 0:v -map 1:a")
}

func TestQualityLevel(t *testing.T) {
	assert.Equal(t, 18, qualityLevel(export.High, "libx264"))
	assert.Equal(t, 28, qualityLevel(export.Low, "h264_nvenc"))
	assert.Equal(t, 50, qualityLevel(export.Medium, "h264_videotoolbox"))
	assert.Equal(t, 40, qualityLevel(export.Low, "libvpx-vp9"))
	assert.Equal(t, 0, qualityLevel(export.High, "gif"))
	assert.Equal(t, 23, qualityLevel("weird", "libx264"))
}

func TestParamsAudioFromProps(t *testing.T) {
	r := NewRenderer(testConfig(t), raster.New(nil, nil, zerolog.Nop()), nil, zerolog.Nop())

	opts := small(export.MP4)
	opts.InputProps.AudioURL = "file:///music/track.mp3"
	opts.InputProps.AudioVolume = 0.8
	opts.InputProps.AudioStartFrom = 60

	p := r.Params(opts)
	assert.Equal(t, "libx264", p.Encoder)
	assert.Equal(t, 18, p.Quality)
	assert.Equal(t, "/music/track.mp3", p.AudioPath)
	assert.Equal(t, 2.0, p.AudioOffset)
	assert.Zero(t, p.AudioDelay)
	assert.Contains(t, p.AudioVolume, "(t*30)")
	assert.Contains(t, p.AudioVolume, "0.800000")
}

func TestParamsAudioFromTimeline(t *testing.T) {
	r := NewRenderer(testConfig(t), raster.New(nil, nil, zerolog.Nop()), nil, zerolog.Nop())

	a, _ := scene.CreateScene("a", template.Minimal, 0, 30, template.DefaultProps(template.Minimal))
	props := template.DefaultProps(template.Corporate)
	props.AudioURL = "voice.mp3"
	b, err := scene.CreateScene("b", template.Corporate, 45, 30, props)
	require.NoError(t, err)
	tl := scene.AddScene(scene.AddScene(scene.Timeline{}, a), b)

	opts := export.Options{CompositionID: export.CompositionTimeline, OutputFormat: export.WebM, Quality: export.Low, Timeline: &tl, FPS: 30}
	p := r.Params(opts)
	assert.Equal(t, "libvpx-vp9", p.Encoder)
	assert.Equal(t, 75, p.DurationInFrames)
	assert.Equal(t, "voice.mp3", p.AudioPath)
	assert.Equal(t, 1.5, p.AudioDelay)
}

func TestStreamWritesFramesInOrder(t *testing.T) {
	r := NewRenderer(testConfig(t), raster.New(nil, nil, zerolog.Nop()), nil, zerolog.Nop())
	opts := small(export.MP4)

	var buf bytes.Buffer
	var calls []int
	require.NoError(t, r.Stream(context.Background(), opts, &buf, func(done, total int) {
		assert.Equal(t, 6, total)
		calls = append(calls, done)
	}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, calls)

	frameSize := 32 * 18 * 4
	require.Equal(t, 6*frameSize, buf.Len())

	direct := raster.New(nil, nil, zerolog.Nop())
	for i := 0; i < 6; i++ {
		vs, err := opts.Frame(i)
		require.NoError(t, err)
		img, err := direct.Render(context.Background(), vs)
		require.NoError(t, err)
		assert.Equal(t, img.Pix, buf.Bytes()[i*frameSize:(i+1)*frameSize], "frame %d", i)
		direct.Release(img)
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	r := NewRenderer(testConfig(t), raster.New(nil, nil, zerolog.Nop()), nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Stream(ctx, small(export.MP4), &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteRawRGBAConvertsOtherImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 2, 4, 3))
	img.Set(2, 2, color.NRGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, img))
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 0, 0}, buf.Bytes())
}

// fakeFFmpeg installs a shell script that swallows stdin and writes its last
// argument.
func fakeFFmpeg(t *testing.T, exit int) string {
	if runtime.GOOS == "windows" {
		t.Skip("shell script ffmpeg stub needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat > /dev/null\nfor last; do :; done\necho encoded > \"$last\"\nexit " + strconv.Itoa(exit) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestRenderUploadsArtifact(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFmpeg.BinaryPath = fakeFFmpeg(t, 0)
	store := storage.NewLocalStorage(t.TempDir(), "https://cdn.example.com")
	r := NewRenderer(cfg, raster.New(nil, nil, zerolog.Nop()), store, zerolog.Nop())

	var last float64
	res, err := r.Render(context.Background(), small(export.MP4), func(p float64) { last = p })
	require.NoError(t, err)

	assert.FileExists(t, res.LocalPath)
	assert.True(t, strings.HasPrefix(res.URL, "https://cdn.example.com/exports/promovideo-"), res.URL)
	assert.Equal(t, float64(encodeShare), last)
}

func TestRenderReportsEncoderFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFmpeg.BinaryPath = fakeFFmpeg(t, 1)
	r := NewRenderer(cfg, raster.New(nil, nil, zerolog.Nop()), nil, zerolog.Nop())

	_, err := r.Render(context.Background(), small(export.MP4), nil)
	require.Error(t, err)
	entries, _ := os.ReadDir(cfg.OutputDir)
	assert.Empty(t, entries)
}
