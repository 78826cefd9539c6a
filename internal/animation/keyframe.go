package animation

import (
	"encoding/json"
	"sort"

	"gopkg.in/yaml.v3"
)

// Easing shapes the progress between two keyframes.
type Easing string

const (
	EaseLinear Easing = "linear"
	EaseIn     Easing = "ease-in"
	EaseOut    Easing = "ease-out"
	EaseInOut  Easing = "ease-in-out"
)

// Property is an animatable visual property.
type Property string

const (
	PropOpacity    Property = "opacity"
	PropScale      Property = "scale"
	PropRotation   Property = "rotation"
	PropX          Property = "x"
	PropY          Property = "y"
	PropBlur       Property = "blur"
	PropBrightness Property = "brightness"
)

// Keyframe is a control point of a track.
type Keyframe struct {
	Frame  int     `yaml:"frame" json:"frame"`
	Value  float64 `yaml:"value" json:"value"`
	Easing Easing  `yaml:"easing,omitempty" json:"easing,omitempty"`
}

// Track holds the keyframes of one property, sorted by frame and unique by
// frame. Tracks are values: every mutation returns a new Track.
type Track struct {
	Property  Property   `yaml:"property" json:"property"`
	Keyframes []Keyframe `yaml:"keyframes" json:"keyframes"`
}

// NewTrack builds a track from keyframes in any order. Later keyframes win
// on frame collisions.
func NewTrack(property Property, keyframes ...Keyframe) Track {
	t := Track{Property: property}
	for _, kf := range keyframes {
		t = t.AddKeyframe(kf)
	}
	return t
}

// AddKeyframe inserts kf, replacing any keyframe already at kf.Frame.
func (t Track) AddKeyframe(kf Keyframe) Track {
	if kf.Frame < 0 {
		kf.Frame = 0
	}
	out := make([]Keyframe, 0, len(t.Keyframes)+1)
	for _, k := range t.Keyframes {
		if k.Frame != kf.Frame {
			out = append(out, k)
		}
	}
	out = append(out, kf)
	sortKeyframes(out)
	return Track{Property: t.Property, Keyframes: out}
}

// RemoveKeyframe drops the keyframe at frame, if any.
func (t Track) RemoveKeyframe(frame int) Track {
	out := make([]Keyframe, 0, len(t.Keyframes))
	for _, k := range t.Keyframes {
		if k.Frame != frame {
			out = append(out, k)
		}
	}
	return Track{Property: t.Property, Keyframes: out}
}

// UpdateKeyframe replaces the keyframe at frame with kf. kf may move to a
// different frame; an existing keyframe there is overwritten. Updating a
// frame that holds no keyframe leaves the track unchanged.
func (t Track) UpdateKeyframe(frame int, kf Keyframe) Track {
	if _, ok := t.At(frame); !ok {
		return t.clone()
	}
	return t.RemoveKeyframe(frame).AddKeyframe(kf)
}

// At returns the keyframe placed exactly at frame.
func (t Track) At(frame int) (Keyframe, bool) {
	i := sort.Search(len(t.Keyframes), func(i int) bool { return t.Keyframes[i].Frame >= frame })
	if i < len(t.Keyframes) && t.Keyframes[i].Frame == frame {
		return t.Keyframes[i], true
	}
	return Keyframe{}, false
}

// Normalize restores the sort and uniqueness invariants of a track that was
// decoded from a file or built as a literal.
func (t Track) Normalize() Track {
	return NewTrack(t.Property, t.Keyframes...)
}

// UnmarshalYAML decodes a track and normalizes it, so files may list
// keyframes in any order.
func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	type plain Track
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Track(p).Normalize()
	return nil
}

func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Track(p).Normalize()
	return nil
}

func (t Track) clone() Track {
	out := make([]Keyframe, len(t.Keyframes))
	copy(out, t.Keyframes)
	return Track{Property: t.Property, Keyframes: out}
}

func sortKeyframes(kfs []Keyframe) {
	sort.Slice(kfs, func(i, j int) bool {
		return kfs[i].Frame < kfs[j].Frame
	})
}
