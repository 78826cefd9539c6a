// Package template turns a prop bundle and a frame number into a
// VisualState: the layers, their geometry, opacity and transforms, plus the
// audio gain. Nothing here touches pixels.
package template

import (
	"fmt"
	"math"

	"github.com/ivlev/frameforge/internal/animation"
	"github.com/ivlev/frameforge/internal/effects"
	"github.com/ivlev/frameforge/internal/transition"
)

// VideoConfig is the canvas a composition is evaluated against.
type VideoConfig struct {
	Width            int `yaml:"width" json:"width"`
	Height           int `yaml:"height" json:"height"`
	FPS              int `yaml:"fps" json:"fps"`
	DurationInFrames int `yaml:"duration_in_frames" json:"durationInFrames"`
}

// DefaultVideoConfig is 1080p at 30 fps for five seconds.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{Width: 1920, Height: 1080, FPS: 30, DurationInFrames: 150}
}

// LayerKind tells the rasterizer how to draw a layer.
type LayerKind string

const (
	LayerMedia  LayerKind = "media" // image or video frame
	LayerText   LayerKind = "text"
	LayerRect   LayerKind = "rect"
	LayerCircle LayerKind = "circle"
	LayerQR     LayerKind = "qr"
)

// Rect is an axis-aligned box in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Layer is one drawable element. Transform is applied around the center of
// Bounds.
type Layer struct {
	Name      string              `json:"name"`
	Kind      LayerKind           `json:"kind"`
	Bounds    Rect                `json:"bounds"`
	Opacity   float64             `json:"opacity"`
	Transform animation.Transform `json:"-"`
	Color     string              `json:"color,omitempty"`
	Text      string              `json:"text,omitempty"`
	FontSize  float64             `json:"fontSize,omitempty"`
	Src       string              `json:"src,omitempty"`
	Outline   bool                `json:"outline,omitempty"`
}

// AudioState is the soundtrack configuration at one frame.
type AudioState struct {
	Src       string  `json:"src"`
	Volume    float64 `json:"volume"`
	StartFrom int     `json:"startFrom"`
}

// VisualState is everything needed to draw one frame.
type VisualState struct {
	Frame      int                  `json:"frame"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Background string               `json:"background"`
	Layers     []Layer              `json:"layers"`
	Filters    []effects.Descriptor `json:"-"`
	Clip       *transition.Inset    `json:"-"`
	Audio      *AudioState          `json:"audio,omitempty"`
}

// Layer returns the first layer with the given name.
func (v VisualState) Layer(name string) (Layer, bool) {
	for _, l := range v.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// Composer evaluates a template at a frame.
type Composer interface {
	Kind() Kind
	Compose(frame int, video VideoConfig) VisualState
}

var registry = map[Kind]func(Props) Composer{
	Educational: func(p Props) Composer { return &educational{props: p} },
	Corporate:   func(p Props) Composer { return &corporate{props: p} },
	Minimal:     func(p Props) Composer { return &minimal{props: p} },
}

// New validates props and returns the composer for its kind.
func New(props Props) (Composer, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	build, ok := registry[props.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no composer for %q", ErrInvalidProps, props.Kind)
	}
	return build(props), nil
}

// AudioFadeFrames is the length of the soundtrack fade-in.
const AudioFadeFrames = 10

// AudioGain is the soundtrack volume at frame: a linear fade-in from
// silence to volume over AudioFadeFrames.
func AudioGain(volume float64, frame int) float64 {
	return volume * math.Min(1, math.Max(0, float64(frame)/AudioFadeFrames))
}

// AudioTrack expresses the fade-in as a keyframe track so it can be turned
// into an ffmpeg volume expression.
func AudioTrack(volume float64) animation.Track {
	return animation.NewTrack("volume",
		animation.Keyframe{Frame: 0, Value: 0},
		animation.Keyframe{Frame: AudioFadeFrames, Value: volume},
	)
}

func audioState(b Base, frame int) *AudioState {
	if b.AudioURL == "" {
		return nil
	}
	return &AudioState{
		Src:       b.AudioURL,
		Volume:    AudioGain(b.AudioVolume, frame),
		StartFrom: b.AudioStartFrom,
	}
}

// backgroundMedia covers the canvas with the background video, or the
// background image when no video is set.
func backgroundMedia(b Base, video VideoConfig, opacity float64) (Layer, bool) {
	src := b.BackgroundVideoURL
	if src == "" {
		src = b.BackgroundImageURL
	}
	if src == "" {
		return Layer{}, false
	}
	return Layer{
		Name:      "background",
		Kind:      LayerMedia,
		Bounds:    Rect{W: float64(video.Width), H: float64(video.Height)},
		Opacity:   opacity,
		Transform: animation.Identity(),
		Src:       src,
	}, true
}

// callToAction renders the optional QR code in the bottom-right corner.
func callToAction(b Base, video VideoConfig, opacity float64) (Layer, bool) {
	if b.CallToActionURL == "" {
		return Layer{}, false
	}
	size := math.Round(float64(video.Height) * 0.15)
	return Layer{
		Name:      "cta",
		Kind:      LayerQR,
		Bounds:    Rect{X: float64(video.Width) - size - 40, Y: float64(video.Height) - size - 40, W: size, H: size},
		Opacity:   opacity,
		Transform: animation.Identity(),
		Text:      b.CallToActionURL,
		Color:     "#000000",
	}, true
}

func text(name, s string, size float64, color string, box Rect, opacity float64, tr animation.Transform) Layer {
	return Layer{
		Name:      name,
		Kind:      LayerText,
		Bounds:    box,
		Opacity:   opacity,
		Transform: tr,
		Color:     color,
		Text:      s,
		FontSize:  size,
	}
}

func colorOr(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}
