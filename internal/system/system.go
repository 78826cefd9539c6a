package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open file limit; ffmpeg pipes and cached
// assets hold many descriptors during a batch.
func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("could not read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn().Err(err).Msg("could not raise open file limit")
		return
	}
	log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
}

// framesInFlight is how many frame buffers one worker holds at once:
// the canvas, layer scratch images and the copy queued for ffmpeg.
const framesInFlight = 4

// Workers picks a rasterizer worker count from the logical CPU count,
// capped so that frameBytes-sized buffers fit in available memory.
// A positive limit caps the result further.
func Workers(frameBytes uint64, limit int) int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = 1
	}

	if vm, err := mem.VirtualMemory(); err == nil && frameBytes > 0 {
		byMem := int(vm.Available / frameBytes / framesInFlight)
		if byMem < n {
			n = byMem
		}
	}

	if limit > 0 && limit < n {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

var (
	encodersOnce sync.Once
	encoderList  string
)

// BestEncoder picks the video codec for an output format. For mp4 hardware
// H.264 encoders are preferred when ffmpeg lists them.
func BestEncoder(ffmpeg, format string) string {
	switch format {
	case "webm":
		return "libvpx-vp9"
	case "gif":
		return "gif"
	}

	encodersOnce.Do(func() {
		out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
		if err == nil {
			encoderList = string(out)
		}
	})

	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(encoderList, name) {
			return name
		}
	}
	return "libx264"
}

// FindLatest returns the most recently modified file in dir with one of
// the given extensions.
func FindLatest(dir string, exts ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, e.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ProbeDuration returns the media duration in seconds reported by ffprobe.
func ProbeDuration(ctx context.Context, ffprobe, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration of %s: %w", path, err)
	}
	return duration, nil
}
