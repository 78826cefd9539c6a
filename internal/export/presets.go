package export

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/frameforge/internal/cache"
)

type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Preset is the recommended output for one platform.
type Preset struct {
	Platform   string     `json:"platform" yaml:"platform"`
	Quality    Quality    `json:"quality" yaml:"quality"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
	FrameRate  int        `json:"frameRate" yaml:"frame_rate"`
	Codec      string     `json:"codec" yaml:"codec"`
	Bitrate    string     `json:"bitrate" yaml:"bitrate"`
}

var platformPresets = map[string]Preset{
	"youtube":         {Quality: High, Resolution: Resolution{1920, 1080}, FrameRate: 30, Codec: "h264", Bitrate: "8M"},
	"youtube-shorts":  {Quality: High, Resolution: Resolution{1080, 1920}, FrameRate: 30, Codec: "h264", Bitrate: "6M"},
	"instagram":       {Quality: High, Resolution: Resolution{1080, 1080}, FrameRate: 30, Codec: "h264", Bitrate: "5M"},
	"instagram-story": {Quality: High, Resolution: Resolution{1080, 1920}, FrameRate: 30, Codec: "h264", Bitrate: "5M"},
	"tiktok":          {Quality: High, Resolution: Resolution{1080, 1920}, FrameRate: 30, Codec: "h264", Bitrate: "6M"},
	"twitter":         {Quality: Medium, Resolution: Resolution{1280, 720}, FrameRate: 30, Codec: "h264", Bitrate: "5M"},
	"linkedin":        {Quality: Medium, Resolution: Resolution{1920, 1080}, FrameRate: 30, Codec: "h264", Bitrate: "5M"},
	"facebook":        {Quality: Medium, Resolution: Resolution{1280, 720}, FrameRate: 30, Codec: "h264", Bitrate: "4M"},
	"web":             {Quality: Medium, Resolution: Resolution{1280, 720}, FrameRate: 30, Codec: "vp9", Bitrate: "2M"},
	"gif":             {Quality: Low, Resolution: Resolution{480, 270}, FrameRate: 15, Codec: "gif"},
}

// Platforms lists the known preset names in order.
func Platforms() []string {
	names := make([]string, 0, len(platformPresets))
	for name := range platformPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset reads the table directly.
func LookupPreset(platform string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(platform))
	p, ok := platformPresets[key]
	if !ok {
		return Preset{}, fmt.Errorf("%w: unknown platform %q", ErrInvalidOptions, platform)
	}
	p.Platform = key
	return p, nil
}

// Format is the container the preset's codec is written to.
func (p Preset) Format() Format {
	switch p.Codec {
	case "vp9":
		return WebM
	case "gif":
		return GIF
	default:
		return MP4
	}
}

// Apply copies the preset's output settings onto opts.
func (p Preset) Apply(opts Options) Options {
	opts.OutputFormat = p.Format()
	opts.Quality = p.Quality
	opts.Width = p.Resolution.Width
	opts.Height = p.Resolution.Height
	if opts.FPS > 0 && opts.DurationInFrames > 0 && opts.FPS != p.FrameRate {
		// keep the wall-clock length
		opts.DurationInFrames = opts.DurationInFrames * p.FrameRate / opts.FPS
	}
	opts.FPS = p.FrameRate
	return opts
}

// Presets serves preset lookups through a TTL cache.
type Presets struct {
	mu    sync.Mutex
	cache *cache.Cache[string, Preset]
}

func NewPresets(ttl time.Duration, capacity int) *Presets {
	return &Presets{cache: cache.New[string, Preset](ttl, capacity)}
}

func (p *Presets) Get(platform string) (Preset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.GetOrLoad(strings.ToLower(strings.TrimSpace(platform)), LookupPreset)
}
