// Package transition holds stateless entrance and exit curves. Every
// function is pure: identical inputs always give identical outputs, which
// keeps exports reproducible.
package transition

import (
	"fmt"
	"math"
)

// Direction of a slide or wipe.
type Direction string

const (
	FromLeft   Direction = "left"
	FromRight  Direction = "right"
	FromTop    Direction = "top"
	FromBottom Direction = "bottom"
)

// Progress returns frame/duration clamped to [0,1]. A non-positive duration
// is treated as already finished.
func Progress(frame, duration int) float64 {
	if duration <= 0 {
		return 1
	}
	p := float64(frame) / float64(duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Fade is the opacity of a fade-in.
func Fade(frame, duration int) float64 {
	return Progress(frame, duration)
}

// FadeOut is the opacity of a fade-out that ends at duration.
func FadeOut(frame, duration int) float64 {
	return 1 - Progress(frame, duration)
}

// SlideIn returns the offset, in percent of the frame size, of an element
// sliding in from dir. It starts at ±100 and reaches 0 at duration.
func SlideIn(frame, duration int, dir Direction) float64 {
	remaining := (1 - Progress(frame, duration)) * 100
	switch dir {
	case FromLeft, FromTop:
		return -remaining
	default:
		return remaining
	}
}

// Zoom interpolates a scale factor from `from` to `to`.
func Zoom(frame, duration int, from, to float64) float64 {
	return from + (to-from)*Progress(frame, duration)
}

// Inset is a clip rectangle inset, each edge in percent.
type Inset struct {
	Top, Right, Bottom, Left float64
}

func (i Inset) String() string {
	return fmt.Sprintf("inset(%g%% %g%% %g%% %g%%)", i.Top, i.Right, i.Bottom, i.Left)
}

// Wipe returns the clip inset hiding the part of the element not yet
// revealed by a wipe that travels away from dir.
func Wipe(frame, duration int, dir Direction) Inset {
	hidden := (1 - Progress(frame, duration)) * 100
	switch dir {
	case FromLeft:
		return Inset{Right: hidden}
	case FromRight:
		return Inset{Left: hidden}
	case FromTop:
		return Inset{Bottom: hidden}
	default:
		return Inset{Top: hidden}
	}
}

// SpringConfig parameterises the damped harmonic oscillator.
type SpringConfig struct {
	Damping   float64
	Stiffness float64
	Mass      float64
}

// DefaultSpring is critically damped, so progress rises monotonically.
func DefaultSpring() SpringConfig {
	return SpringConfig{Damping: 20, Stiffness: 100, Mass: 1}
}

// Spring returns the position of a spring released from 0 towards 1 after
// frame frames at fps. Non-positive parameters fall back to DefaultSpring.
func Spring(frame, fps int, cfg SpringConfig) float64 {
	if frame <= 0 {
		return 0
	}
	if fps <= 0 {
		fps = 30
	}
	def := DefaultSpring()
	if cfg.Mass <= 0 {
		cfg.Mass = def.Mass
	}
	if cfg.Stiffness <= 0 {
		cfg.Stiffness = def.Stiffness
	}
	if cfg.Damping <= 0 {
		cfg.Damping = def.Damping
	}

	t := float64(frame) / float64(fps)
	omega0 := math.Sqrt(cfg.Stiffness / cfg.Mass)
	zeta := cfg.Damping / (2 * math.Sqrt(cfg.Stiffness*cfg.Mass))

	// displacement x(t) from the target, x(0) = -1, x'(0) = 0
	var x float64
	switch {
	case zeta < 1:
		wd := omega0 * math.Sqrt(1-zeta*zeta)
		x = -math.Exp(-zeta*omega0*t) * (math.Cos(wd*t) + (zeta*omega0/wd)*math.Sin(wd*t))
	case zeta == 1:
		x = -math.Exp(-omega0*t) * (1 + omega0*t)
	default:
		s := math.Sqrt(zeta*zeta - 1)
		r1 := -omega0 * (zeta - s)
		r2 := -omega0 * (zeta + s)
		// c1 + c2 = -1, r1*c1 + r2*c2 = 0
		c1 := r2 / (r1 - r2)
		c2 := -1 - c1
		x = c1*math.Exp(r1*t) + c2*math.Exp(r2*t)
	}
	return 1 + x
}
