package template

import (
	"math"

	"github.com/ivlev/frameforge/internal/animation"
)

type corporate struct {
	props Props
}

func (c *corporate) Kind() Kind { return Corporate }

func (c *corporate) Compose(frame int, video VideoConfig) VisualState {
	b := c.props.Base
	co := c.props.Corporate
	f := float64(frame)
	w, h := float64(video.Width), float64(video.Height)

	opacity := math.Min(1, f/30)
	slideX := math.Max(0, 150-f*4)
	pulse := 1 + math.Sin(f/20)*0.03

	vs := VisualState{
		Frame:      frame,
		Width:      video.Width,
		Height:     video.Height,
		Background: colorOr(b.BackgroundColor, "#0F172A"),
		Audio:      audioState(b, frame),
	}
	if bg, ok := backgroundMedia(b, video, 0.15); ok {
		vs.Layers = append(vs.Layers, bg)
	}

	vs.Layers = append(vs.Layers,
		Layer{
			Name:      "tint",
			Kind:      LayerRect,
			Bounds:    Rect{W: w, H: h},
			Opacity:   0.05,
			Transform: animation.Identity(),
			Color:     b.PrimaryColor,
		},
		Layer{
			Name:      "accent",
			Kind:      LayerRect,
			Bounds:    Rect{Y: h * 0.4, W: 12, H: h * 0.2},
			Opacity:   1,
			Transform: animation.Identity().WithScale(pulse),
			Color:     b.PrimaryColor,
		},
	)

	content := animation.Identity().WithX(-slideX)
	boxW := w * 0.8
	boxX := (w - boxW) / 2
	vs.Layers = append(vs.Layers,
		text("title", b.Title, 95, "#FFFFFF", Rect{X: boxX, Y: h/2 - 110, W: boxW, H: 105}, opacity, content),
		text("subtitle", b.Subtitle, 42, "#94A3B8", Rect{X: boxX, Y: h/2 + 10, W: boxW, H: 50}, opacity, content),
	)

	headerX := 80.0
	if b.LogoURL != "" {
		vs.Layers = append(vs.Layers, Layer{
			Name:      "logo",
			Kind:      LayerMedia,
			Bounds:    Rect{X: headerX, Y: 50, W: 48, H: 48},
			Opacity:   opacity,
			Transform: animation.Identity(),
			Src:       b.LogoURL,
		})
		headerX += 64
	}
	if co.CompanyName != "" {
		vs.Layers = append(vs.Layers, text("company", co.CompanyName, 32, "#FFFFFF",
			Rect{X: headerX, Y: 56, W: w / 2, H: 36}, opacity, animation.Identity()))
	}
	if co.Tagline != "" {
		vs.Layers = append(vs.Layers, text("tagline", co.Tagline, 24, "#CBD5E1",
			Rect{X: 80, Y: h - 60 - 28, W: w - 160, H: 28}, opacity, animation.Identity()))
	}

	vs.Layers = append(vs.Layers, Layer{
		Name:      "footer",
		Kind:      LayerRect,
		Bounds:    Rect{Y: h - 6, W: w, H: 6},
		Opacity:   opacity * 0.6,
		Transform: animation.Identity(),
		Color:     b.PrimaryColor,
	})

	if cta, ok := callToAction(b, video, opacity); ok {
		vs.Layers = append(vs.Layers, cta)
	}
	return vs
}
