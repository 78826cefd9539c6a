package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"

	"github.com/ivlev/frameforge/internal/config"
	"github.com/ivlev/frameforge/internal/export"
)

// FFmpegEncoder reads raw RGBA frames on stdin and writes one encoded file.
type FFmpegEncoder struct {
	Binary string
}

// Encode starts ffmpeg and hands its stdin to feed. feed must write exactly
// p.DurationInFrames frames.
func (e *FFmpegEncoder) Encode(ctx context.Context, p config.RenderParams, output string, feed func(io.Writer) error) error {
	cmd := exec.CommandContext(ctx, e.Binary, buildFFmpegArgs(p, output)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	if err := feed(stdin); err != nil {
		stdin.Close()
		cmd.Wait()
		return fmt.Errorf("write raw error: %w, output: %s", err, tail(stderr.String(), 512))
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

func buildFFmpegArgs(p config.RenderParams, output string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}

	withAudio := p.AudioPath != "" && p.Format != string(export.GIF)
	if withAudio {
		if p.AudioOffset > 0 {
			args = append(args, "-ss", fmt.Sprintf("%f", p.AudioOffset))
		}
		args = append(args, "-i", p.AudioPath)
	}

	args = append(args, "-t", fmt.Sprintf("%f", p.Seconds()))

	if p.Format == string(export.GIF) {
		args = append(args,
			"-vf", "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
			"-loop", "0",
			output,
		)
		return args
	}

	args = append(args, "-map", "0:v")
	if withAudio {
		args = append(args, "-map", "1:a", "-af", audioFilter(p))
	}

	args = append(args, "-c:v", p.Encoder, "-pix_fmt", "yuv420p")

	switch p.Encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	case "libvpx-vp9":
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-b:v", "0", "-row-mt", "1")
	default: // libx264
		preset := p.Preset
		if preset == "" {
			preset = "medium"
		}
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", preset)
	}

	if withAudio {
		if p.Format == string(export.WebM) {
			args = append(args, "-c:a", "libopus")
		} else {
			args = append(args, "-c:a", "aac", "-b:a", "192k")
		}
	}
	if p.Format == string(export.MP4) {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, output)
	return args
}

func audioFilter(p config.RenderParams) string {
	var parts []string
	if p.AudioDelay > 0 {
		ms := int(p.AudioDelay * 1000)
		parts = append(parts, fmt.Sprintf("adelay=%d|%d", ms, ms))
	}
	vol := p.AudioVolume
	if vol == "" {
		vol = "1"
	}
	parts = append(parts, fmt.Sprintf("volume='%s':eval=frame", vol))
	return strings.Join(parts, ",")
}

// qualityLevel maps an export quality onto the encoder's own scale.
func qualityLevel(q export.Quality, encoder string) int {
	levels := map[export.Quality]int{export.Low: 28, export.Medium: 23, export.High: 18}
	switch encoder {
	case "h264_videotoolbox":
		// multiplied by 100 kbit/s
		levels = map[export.Quality]int{export.Low: 30, export.Medium: 50, export.High: 80}
	case "libvpx-vp9":
		levels = map[export.Quality]int{export.Low: 40, export.Medium: 33, export.High: 24}
	case "gif":
		return 0
	}
	if v, ok := levels[q]; ok {
		return v
	}
	return levels[export.Medium]
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
