// Package export runs compositions through an out-of-process renderer and
// tracks each export as a job: pending, processing, then completed or
// failed.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivlev/frameforge/internal/scene"
	"github.com/ivlev/frameforge/internal/template"
)

var (
	ErrInvalidOptions = errors.New("invalid export options")
	ErrJobNotFound    = errors.New("export job not found")
	ErrNotTerminal    = errors.New("export job has not finished")
	ErrTerminal       = errors.New("export job already finished")
)

type Format string

const (
	MP4  Format = "mp4"
	GIF  Format = "gif"
	WebM Format = "webm"
)

type Quality string

const (
	Low    Quality = "low"
	Medium Quality = "medium"
	High   Quality = "high"
)

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Composition ids understood by the renderer.
const (
	CompositionPromo    = "PromoVideo"
	CompositionTimeline = "Timeline"
)

// Options is a fully resolved composition plus output settings.
type Options struct {
	CompositionID    string           `json:"compositionId"`
	OutputFormat     Format           `json:"outputFormat"`
	Quality          Quality          `json:"quality"`
	InputProps       template.Props   `json:"inputProps"`
	Overlay          template.Overlay `json:"overlay,omitempty"`
	Timeline         *scene.Timeline  `json:"timeline,omitempty"`
	DurationInFrames int              `json:"durationInFrames"`
	FPS              int              `json:"fps"`
	Width            int              `json:"width,omitempty"`
	Height           int              `json:"height,omitempty"`
}

func (o Options) Validate() error {
	switch o.OutputFormat {
	case MP4, GIF, WebM:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidOptions, o.OutputFormat)
	}
	switch o.Quality {
	case Low, Medium, High:
	default:
		return fmt.Errorf("%w: unsupported quality %q", ErrInvalidOptions, o.Quality)
	}
	if o.FPS <= 0 || o.FPS > 120 {
		return fmt.Errorf("%w: fps %d out of range", ErrInvalidOptions, o.FPS)
	}
	if o.Width < 0 || o.Height < 0 || o.Width%2 != 0 || o.Height%2 != 0 {
		return fmt.Errorf("%w: resolution %dx%d must be even", ErrInvalidOptions, o.Width, o.Height)
	}

	switch o.CompositionID {
	case CompositionPromo:
		if o.DurationInFrames <= 0 {
			return fmt.Errorf("%w: duration %d must be positive", ErrInvalidOptions, o.DurationInFrames)
		}
		if err := o.InputProps.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		if err := o.Overlay.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	case CompositionTimeline:
		if o.Timeline == nil || len(o.Timeline.Scenes) == 0 {
			return fmt.Errorf("%w: timeline has no scenes", ErrInvalidOptions)
		}
		for _, s := range o.Timeline.Scenes {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("%w: scene %q: %w", ErrInvalidOptions, s.Name, err)
			}
		}
		if o.DurationInFrames < 0 {
			return fmt.Errorf("%w: negative duration", ErrInvalidOptions)
		}
	case "":
		return fmt.Errorf("%w: missing composition id", ErrInvalidOptions)
	default:
		return fmt.Errorf("%w: unknown composition %q", ErrInvalidOptions, o.CompositionID)
	}
	return nil
}

// Normalize returns a copy of o whose keyframe tracks, including those of
// every timeline scene, are sorted and unique by frame.
func (o Options) Normalize() Options {
	o.Overlay = o.Overlay.Normalize()
	if o.Timeline != nil {
		tl := *o.Timeline
		tl.Scenes = make([]scene.Scene, len(o.Timeline.Scenes))
		for i, s := range o.Timeline.Scenes {
			s.Overlay = s.Overlay.Normalize()
			tl.Scenes[i] = s
		}
		o.Timeline = &tl
	}
	return o
}

// Video is the canvas the renderer evaluates the composition against. Zero
// width and height fall back to 1080p; a timeline export without an explicit
// duration runs for the whole timeline.
func (o Options) Video() template.VideoConfig {
	v := template.DefaultVideoConfig()
	if o.Width > 0 && o.Height > 0 {
		v.Width, v.Height = o.Width, o.Height
	}
	v.FPS = o.FPS
	v.DurationInFrames = o.DurationInFrames
	if o.CompositionID == CompositionTimeline && v.DurationInFrames == 0 && o.Timeline != nil {
		v.DurationInFrames = o.Timeline.TotalDuration
	}
	return v
}

// Frame evaluates the composition at frame.
func (o Options) Frame(frame int) (template.VisualState, error) {
	video := o.Video()
	if o.CompositionID == CompositionTimeline {
		return scene.RenderFrame(*o.Timeline, frame, video)
	}
	c, err := template.New(o.InputProps)
	if err != nil {
		return template.VisualState{}, err
	}
	return template.Render(c, o.Overlay, frame, video), nil
}

type Result struct {
	LocalPath string `json:"localPath"`
	URL       string `json:"url"`
}

type Job struct {
	ID        string    `json:"id"`
	Options   Options   `json:"options"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressFunc receives a percentage in [0, 100].
type ProgressFunc func(percent float64)

// Renderer turns a composition into an encoded artifact.
type Renderer interface {
	Render(ctx context.Context, opts Options, progress ProgressFunc) (Result, error)
}
