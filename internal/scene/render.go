package scene

import "github.com/ivlev/frameforge/internal/template"

// RenderFrame composes the scene active at frame. Scene templates see the
// frame relative to their own start. A gap renders as an empty black
// canvas.
func RenderFrame(tl Timeline, frame int, video template.VideoConfig) (template.VisualState, error) {
	s := ActiveScene(tl, frame)
	if s == nil {
		return template.VisualState{
			Frame:      frame,
			Width:      video.Width,
			Height:     video.Height,
			Background: "#000000",
		}, nil
	}

	c, err := template.New(s.Props)
	if err != nil {
		return template.VisualState{}, err
	}
	local := video
	local.DurationInFrames = s.DurationInFrames
	vs := template.Render(c, s.Overlay, frame-s.StartFrame, local)
	vs.Frame = frame
	return vs, nil
}
