package effects

import (
	"fmt"
	"math"
	"sort"
)

// Grade is a color-grading parameter bundle. Every field is independent.
type Grade struct {
	Temperature float64 `yaml:"temperature" json:"temperature"` // -100..100, warm > 0
	Tint        float64 `yaml:"tint" json:"tint"`               // -100..100, magenta > 0
	Exposure    float64 `yaml:"exposure" json:"exposure"`       // stops, -2..2
	Contrast    float64 `yaml:"contrast" json:"contrast"`       // -100..100
	Highlights  float64 `yaml:"highlights" json:"highlights"`   // -100..100
	Shadows     float64 `yaml:"shadows" json:"shadows"`         // -100..100
	Saturation  float64 `yaml:"saturation" json:"saturation"`   // -100..100
	Vibrance    float64 `yaml:"vibrance" json:"vibrance"`       // -100..100
}

var presets = map[string]Grade{
	"neutral":   {},
	"warm":      {Temperature: 30, Tint: 5, Exposure: 0.1, Saturation: 10, Vibrance: 10},
	"cool":      {Temperature: -30, Tint: -5, Contrast: 5, Saturation: -5},
	"cinematic": {Temperature: 10, Tint: -10, Exposure: -0.2, Contrast: 25, Highlights: -20, Shadows: 15, Saturation: -10, Vibrance: 15},
	"vintage":   {Temperature: 40, Tint: 10, Exposure: 0.05, Contrast: -15, Highlights: -10, Shadows: 20, Saturation: -30},
	"noir":      {Contrast: 40, Highlights: 10, Shadows: -20, Saturation: -100},
	"vivid":     {Exposure: 0.1, Contrast: 15, Saturation: 35, Vibrance: 30},
}

// Preset returns the named grade.
func Preset(name string) (Grade, error) {
	g, ok := presets[name]
	if !ok {
		return Grade{}, fmt.Errorf("unknown grade preset: %s", name)
	}
	return g, nil
}

// PresetNames lists the built-in grades in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BlendGrades interpolates every field of g1 towards g2 by t in [0,1].
func BlendGrades(g1, g2 Grade, t float64) Grade {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	mix := func(a, b float64) float64 { return a + (b-a)*t }
	return Grade{
		Temperature: mix(g1.Temperature, g2.Temperature),
		Tint:        mix(g1.Tint, g2.Tint),
		Exposure:    mix(g1.Exposure, g2.Exposure),
		Contrast:    mix(g1.Contrast, g2.Contrast),
		Highlights:  mix(g1.Highlights, g2.Highlights),
		Shadows:     mix(g1.Shadows, g2.Shadows),
		Saturation:  mix(g1.Saturation, g2.Saturation),
		Vibrance:    mix(g1.Vibrance, g2.Vibrance),
	}
}

// Filters approximates the grade with the standard filter descriptors.
// Neutral fields produce no descriptor.
func (g Grade) Filters() []Descriptor {
	var out []Descriptor
	if g.Exposure != 0 {
		// one stop doubles the light
		out = append(out, Describe(Brightness, (math.Pow(2, g.Exposure)-1)*100))
	}
	if c := g.Contrast + (g.Highlights-g.Shadows)/4; c != 0 {
		out = append(out, Describe(Contrast, c))
	}
	if s := g.Saturation + g.Vibrance/2; s != 0 {
		out = append(out, Describe(Saturate, s))
	}
	if g.Temperature > 0 {
		out = append(out, Describe(Sepia, g.Temperature/2))
	}
	if g.Tint != 0 {
		out = append(out, Describe(HueRotate, g.Tint*0.3))
	}
	return out
}
