package template

import (
	"math"

	"github.com/ivlev/frameforge/internal/animation"
)

type minimal struct {
	props Props
}

func (m *minimal) Kind() Kind { return Minimal }

func (m *minimal) Compose(frame int, video VideoConfig) VisualState {
	b := m.props.Base
	f := float64(frame)
	w, h := float64(video.Width), float64(video.Height)

	opacity := math.Min(1, f/40)
	scale := 0.95 + math.Min(0.05, f/60*0.05)
	accentOpacity := 0.3 + math.Sin(f/30)*0.1

	vs := VisualState{
		Frame:      frame,
		Width:      video.Width,
		Height:     video.Height,
		Background: colorOr(b.BackgroundColor, "#FFFFFF"),
		Audio:      audioState(b, frame),
	}
	if bg, ok := backgroundMedia(b, video, 0.1); ok {
		vs.Layers = append(vs.Layers, bg)
	}

	const accentSize = 300
	accent := Rect{X: w/2 - accentSize/2, W: accentSize, H: accentSize}
	switch m.props.Minimal.AccentPosition {
	case AccentTop:
		accent.Y = -accentSize / 2
	case AccentBottom:
		accent.Y = h - accentSize/2
	default:
		accent.Y = h/2 - accentSize/2
	}
	vs.Layers = append(vs.Layers, Layer{
		Name:      "accent",
		Kind:      LayerCircle,
		Bounds:    accent,
		Opacity:   accentOpacity,
		Transform: animation.Identity(),
		Color:     b.PrimaryColor,
	})

	content := animation.Identity().WithScale(scale)
	boxW := w * 0.7
	boxX := (w - boxW) / 2
	vs.Layers = append(vs.Layers,
		text("title", b.Title, 110, "#1F2937", Rect{X: boxX, Y: h/2 - 130, W: boxW, H: 110}, opacity, content),
		Layer{
			Name:      "divider",
			Kind:      LayerRect,
			Bounds:    Rect{X: (w - 60) / 2, Y: h/2 + 20, W: 60, H: 2},
			Opacity:   opacity,
			Transform: content,
			Color:     b.PrimaryColor,
		},
		text("subtitle", b.Subtitle, 36, "#6B7280", Rect{X: boxX, Y: h/2 + 60, W: boxW, H: 40}, opacity, content),
	)

	if b.LogoURL != "" {
		vs.Layers = append(vs.Layers, Layer{
			Name:      "logo",
			Kind:      LayerMedia,
			Bounds:    Rect{X: w/2 - 50, Y: 60, W: 100, H: 100},
			Opacity:   opacity * 0.8,
			Transform: animation.Identity(),
			Src:       b.LogoURL,
		})
	}

	vs.Layers = append(vs.Layers, Layer{
		Name:      "corner",
		Kind:      LayerRect,
		Bounds:    Rect{X: w - 100, Y: h - 100, W: 60, H: 60},
		Opacity:   opacity * 0.4,
		Transform: animation.Identity(),
		Color:     b.PrimaryColor,
		Outline:   true,
	})

	if cta, ok := callToAction(b, video, opacity); ok {
		vs.Layers = append(vs.Layers, cta)
	}
	return vs
}
