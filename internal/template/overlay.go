package template

import (
	"fmt"

	"github.com/ivlev/frameforge/internal/animation"
	"github.com/ivlev/frameforge/internal/effects"
	"github.com/ivlev/frameforge/internal/transition"
)

// EntranceKind selects the curve a scene enters with.
type EntranceKind string

const (
	EntranceNone   EntranceKind = ""
	EntranceFade   EntranceKind = "fade"
	EntranceSlide  EntranceKind = "slide"
	EntranceZoom   EntranceKind = "zoom"
	EntranceWipe   EntranceKind = "wipe"
	EntranceSpring EntranceKind = "spring"
)

type Entrance struct {
	Kind      EntranceKind         `yaml:"kind,omitempty" json:"kind,omitempty"`
	Direction transition.Direction `yaml:"direction,omitempty" json:"direction,omitempty"`
	Duration  int                  `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Overlay is the per-scene animation applied on top of a template:
// keyframe tracks, a transient filter stack, a color grade and an entrance.
type Overlay struct {
	Tracks   []animation.Track `yaml:"tracks,omitempty" json:"tracks,omitempty"`
	Effects  []effects.Effect  `yaml:"effects,omitempty" json:"effects,omitempty"`
	Grade    string            `yaml:"grade,omitempty" json:"grade,omitempty"`
	Entrance Entrance          `yaml:"entrance,omitempty" json:"entrance,omitempty"`
}

func (o Overlay) Validate() error {
	if o.Grade != "" {
		if _, err := effects.Preset(o.Grade); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProps, err)
		}
	}
	switch o.Entrance.Kind {
	case EntranceNone, EntranceFade, EntranceSlide, EntranceZoom, EntranceWipe, EntranceSpring:
	default:
		return fmt.Errorf("%w: unknown entrance %q", ErrInvalidProps, o.Entrance.Kind)
	}
	if o.Entrance.Duration < 0 {
		return fmt.Errorf("%w: negative entrance duration", ErrInvalidProps)
	}
	return nil
}

// Normalize returns a copy whose tracks are sorted and unique by frame.
func (o Overlay) Normalize() Overlay {
	if len(o.Tracks) == 0 {
		return o
	}
	tracks := make([]animation.Track, len(o.Tracks))
	for i, t := range o.Tracks {
		tracks[i] = t.Normalize()
	}
	o.Tracks = tracks
	return o
}

// Apply folds the overlay into vs. The background media layer only takes
// the filters; every other layer also gets the overlay opacity and
// transform. vs is not modified.
func (o Overlay) Apply(vs VisualState, frame int, video VideoConfig) VisualState {
	tr, st := animation.Compose(o.Tracks, frame)
	opacity := st.Opacity

	d := o.Entrance.Duration
	switch o.Entrance.Kind {
	case EntranceFade:
		opacity *= transition.Fade(frame, d)
	case EntranceSlide:
		off := transition.SlideIn(frame, d, o.Entrance.Direction)
		switch o.Entrance.Direction {
		case transition.FromTop, transition.FromBottom:
			tr = tr.Then(animation.Identity().WithY(off * float64(video.Height) / 100))
		default:
			tr = tr.Then(animation.Identity().WithX(off * float64(video.Width) / 100))
		}
	case EntranceZoom:
		tr = tr.Then(animation.Identity().WithScale(transition.Zoom(frame, d, 0.8, 1)))
	case EntranceSpring:
		tr = tr.Then(animation.Identity().WithScale(transition.Spring(frame, video.FPS, transition.DefaultSpring())))
	case EntranceWipe:
		clip := transition.Wipe(frame, d, o.Entrance.Direction)
		vs.Clip = &clip
	}

	layers := make([]Layer, len(vs.Layers))
	for i, l := range vs.Layers {
		if l.Name != "background" {
			l.Opacity *= opacity
			l.Transform = l.Transform.Then(tr)
		}
		layers[i] = l
	}
	vs.Layers = layers

	filters := make([]effects.Descriptor, 0, len(vs.Filters)+len(o.Effects)+4)
	filters = append(filters, vs.Filters...)
	filters = append(filters, effects.BuildFilterStack(o.Effects, frame)...)
	if st.Blur > 0 {
		filters = append(filters, effects.Describe(effects.Blur, st.Blur))
	}
	if st.Brightness != 100 {
		filters = append(filters, effects.Describe(effects.Brightness, st.Brightness-100))
	}
	if g, err := effects.Preset(o.Grade); err == nil && o.Grade != "" {
		filters = append(filters, g.Filters()...)
	}
	vs.Filters = filters
	return vs
}

// Render composes the template at frame and applies the overlay.
func Render(c Composer, o Overlay, frame int, video VideoConfig) VisualState {
	return o.Apply(c.Compose(frame, video), frame, video)
}
