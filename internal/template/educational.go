package template

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/frameforge/internal/animation"
)

type educational struct {
	props Props
}

func (e *educational) Kind() Kind { return Educational }

func (e *educational) Compose(frame int, video VideoConfig) VisualState {
	b := e.props.Base
	ed := e.props.Educational
	f := float64(frame)
	w, h := float64(video.Width), float64(video.Height)

	opacity := math.Min(1, f/30)
	scale := math.Min(1, 0.5+f/40)
	slideY := math.Max(0, 100-f*3)

	vs := VisualState{
		Frame:      frame,
		Width:      video.Width,
		Height:     video.Height,
		Background: colorOr(b.BackgroundColor, "#1E3A8A"),
		Audio:      audioState(b, frame),
	}
	if bg, ok := backgroundMedia(b, video, 0.3); ok {
		vs.Layers = append(vs.Layers, bg)
	}

	vs.Layers = append(vs.Layers, Layer{
		Name:      "bar",
		Kind:      LayerRect,
		Bounds:    Rect{W: w, H: 8},
		Opacity:   1,
		Transform: animation.Identity(),
		Color:     b.PrimaryColor,
	})

	corner := w / 3
	if ed.Subject != "" {
		vs.Layers = append(vs.Layers, text("subject", strings.ToUpper(ed.Subject), 18, "#FFFFFF",
			Rect{X: 40, Y: 40, W: corner, H: 24}, opacity, animation.Identity()))
	}
	if ed.LessonNumber > 0 {
		vs.Layers = append(vs.Layers, text("lesson", fmt.Sprintf("Lesson %d", ed.LessonNumber), 18, b.PrimaryColor,
			Rect{X: w - 40 - corner, Y: 40, W: corner, H: 24}, opacity, animation.Identity()))
	}

	content := animation.Identity().WithScale(scale).WithY(slideY)
	boxW := w * 0.8
	boxX := (w - boxW) / 2
	vs.Layers = append(vs.Layers,
		text("title", b.Title, 90, "#FFFFFF", Rect{X: boxX, Y: h/2 - 110, W: boxW, H: 100}, opacity, content),
		Layer{
			Name:      "divider",
			Kind:      LayerRect,
			Bounds:    Rect{X: (w - 200) / 2, Y: h/2 + 5, W: 200, H: 4},
			Opacity:   opacity,
			Transform: content,
			Color:     b.PrimaryColor,
		},
		text("subtitle", b.Subtitle, 40, "#E0E7FF", Rect{X: boxX, Y: h/2 + 30, W: boxW, H: 50}, opacity, content),
	)

	if b.LogoURL != "" {
		vs.Layers = append(vs.Layers, Layer{
			Name:      "logo",
			Kind:      LayerMedia,
			Bounds:    Rect{X: 40, Y: h - 120, W: 80, H: 80},
			Opacity:   opacity,
			Transform: animation.Identity(),
			Src:       b.LogoURL,
		})
	}

	progress := 100
	if video.DurationInFrames > 0 {
		progress = int(math.Round(math.Min(1, math.Max(0, f/float64(video.DurationInFrames))) * 100))
	}
	vs.Layers = append(vs.Layers, text("progress", fmt.Sprintf("%d%%", progress), 20, "#FFFFFF",
		Rect{X: w - 160, Y: h - 64, W: 120, H: 24}, opacity, animation.Identity()))

	if cta, ok := callToAction(b, video, opacity); ok {
		vs.Layers = append(vs.Layers, cta)
	}
	return vs
}
