package effects

import (
	"fmt"
	"strings"
)

// Type of a visual filter effect.
type Type string

const (
	Blur       Type = "blur"
	Brightness Type = "brightness"
	Contrast   Type = "contrast"
	Saturate   Type = "saturate"
	Grayscale  Type = "grayscale"
	Sepia      Type = "sepia"
	Invert     Type = "invert"
	HueRotate  Type = "hue-rotate"
)

// Effect is a transient filter active over [StartFrame, EndFrame]. Its
// magnitude ramps from 0 to Intensity across that window.
type Effect struct {
	Type       Type    `yaml:"type" json:"type"`
	Intensity  float64 `yaml:"intensity" json:"intensity"`
	StartFrame int     `yaml:"start_frame" json:"startFrame"`
	EndFrame   int     `yaml:"end_frame" json:"endFrame"`
}

// Active reports whether frame lies inside the effect window (inclusive).
func (e Effect) Active(frame int) bool {
	return frame >= e.StartFrame && frame <= e.EndFrame
}

// Progress is the effect magnitude at frame, clamped to [0, Intensity].
func (e Effect) Progress(frame int) float64 {
	if e.EndFrame <= e.StartFrame {
		if e.Active(frame) {
			return e.Intensity
		}
		return 0
	}
	t := float64(frame-e.StartFrame) / float64(e.EndFrame-e.StartFrame)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t * e.Intensity
}

// Descriptor is one entry of a composable filter stack, e.g. blur(4px).
// The zero Descriptor is empty and renders as "".
type Descriptor struct {
	Name  string
	Value float64
	Unit  string
}

func (d Descriptor) Empty() bool {
	return d.Name == ""
}

func (d Descriptor) String() string {
	if d.Empty() {
		return ""
	}
	return fmt.Sprintf("%s(%s%s)", d.Name, formatValue(d.Value), d.Unit)
}

// Describe maps an effect type and magnitude to its descriptor. Unknown
// types give an empty descriptor.
func Describe(t Type, progress float64) Descriptor {
	switch t {
	case Blur:
		return Descriptor{Name: string(Blur), Value: progress, Unit: "px"}
	case Brightness, Contrast, Saturate:
		return Descriptor{Name: string(t), Value: 100 + progress, Unit: "%"}
	case Grayscale, Sepia, Invert:
		return Descriptor{Name: string(t), Value: progress, Unit: "%"}
	case HueRotate:
		return Descriptor{Name: string(HueRotate), Value: progress, Unit: "deg"}
	default:
		return Descriptor{}
	}
}

// BuildFilterStack evaluates the effects active at currentFrame. The result
// keeps input order, which is also the order filters are applied in.
// Unknown effect types occupy an empty slot instead of failing.
func BuildFilterStack(effects []Effect, currentFrame int) []Descriptor {
	stack := make([]Descriptor, 0, len(effects))
	for _, e := range effects {
		if !e.Active(currentFrame) {
			continue
		}
		stack = append(stack, Describe(e.Type, e.Progress(currentFrame)))
	}
	return stack
}

// Join renders a stack as one space-separated filter string, skipping
// empty descriptors.
func Join(stack []Descriptor) string {
	parts := make([]string, 0, len(stack))
	for _, d := range stack {
		if s := d.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func formatValue(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
