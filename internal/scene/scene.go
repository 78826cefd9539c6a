// Package scene manages a timeline of template scenes. Timelines are values:
// every operation returns a new Timeline and leaves its input untouched.
package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ivlev/frameforge/internal/template"
)

var (
	ErrSceneNotFound = errors.New("scene not found")
	ErrInvalidScene  = errors.New("invalid scene")
)

// Scene is one template occupying [StartFrame, StartFrame+DurationInFrames).
type Scene struct {
	ID               string           `yaml:"id" json:"id"`
	Name             string           `yaml:"name" json:"name"`
	StartFrame       int              `yaml:"start_frame" json:"startFrame"`
	DurationInFrames int              `yaml:"duration_in_frames" json:"durationInFrames"`
	Template         template.Kind    `yaml:"template" json:"templateType"`
	Props            template.Props   `yaml:"props" json:"props"`
	Overlay          template.Overlay `yaml:"overlay,omitempty" json:"overlay,omitempty"`
}

func (s Scene) EndFrame() int {
	return s.StartFrame + s.DurationInFrames
}

// Contains reports whether frame falls inside the scene's half-open range.
func (s Scene) Contains(frame int) bool {
	return frame >= s.StartFrame && frame < s.EndFrame()
}

// Validate checks the frame range and that the props fit the template.
func (s Scene) Validate() error {
	if s.StartFrame < 0 {
		return fmt.Errorf("%w: start frame %d is negative", ErrInvalidScene, s.StartFrame)
	}
	if s.DurationInFrames <= 0 {
		return fmt.Errorf("%w: duration %d must be positive", ErrInvalidScene, s.DurationInFrames)
	}
	if s.Props.Kind != s.Template {
		return fmt.Errorf("%w: props are %q, scene template is %q", template.ErrInvalidProps, s.Props.Kind, s.Template)
	}
	if err := s.Props.Validate(); err != nil {
		return err
	}
	return s.Overlay.Validate()
}

// Timeline is an ordered list of scenes. TotalDuration is the largest end
// frame of any scene.
type Timeline struct {
	Scenes        []Scene `yaml:"scenes" json:"scenes"`
	TotalDuration int     `yaml:"total_duration" json:"totalDuration"`
}

// CreateScene builds a validated scene with a fresh id.
func CreateScene(name string, kind template.Kind, start, duration int, props template.Props) (Scene, error) {
	s := Scene{
		ID:               uuid.NewString(),
		Name:             name,
		StartFrame:       start,
		DurationInFrames: duration,
		Template:         kind,
		Props:            props,
	}
	if err := s.Validate(); err != nil {
		return Scene{}, err
	}
	return s, nil
}

// AddScene inserts s and keeps the scenes ordered by start frame.
func AddScene(tl Timeline, s Scene) Timeline {
	scenes := append(clone(tl.Scenes), s)
	return normalized(scenes)
}

// RemoveScene drops the scene with id. Unknown ids leave the timeline as is.
func RemoveScene(tl Timeline, id string) Timeline {
	scenes := make([]Scene, 0, len(tl.Scenes))
	for _, s := range tl.Scenes {
		if s.ID != id {
			scenes = append(scenes, s)
		}
	}
	return normalized(scenes)
}

// MoveScene sets the start frame of the scene with id.
func MoveScene(tl Timeline, id string, start int) (Timeline, error) {
	if start < 0 {
		return tl, fmt.Errorf("%w: start frame %d is negative", ErrInvalidScene, start)
	}
	return update(tl, id, func(s *Scene) { s.StartFrame = start })
}

// UpdateSceneDuration sets the duration of the scene with id.
func UpdateSceneDuration(tl Timeline, id string, duration int) (Timeline, error) {
	if duration <= 0 {
		return tl, fmt.Errorf("%w: duration %d must be positive", ErrInvalidScene, duration)
	}
	return update(tl, id, func(s *Scene) { s.DurationInFrames = duration })
}

// ActiveScene returns the first scene whose range contains frame, or nil
// when frame falls in a gap or outside the timeline.
func ActiveScene(tl Timeline, frame int) *Scene {
	for i := range tl.Scenes {
		if tl.Scenes[i].Contains(frame) {
			s := tl.Scenes[i]
			return &s
		}
	}
	return nil
}

// ReorderScenes packs the scenes back to back from frame 0, keeping their
// current order.
func ReorderScenes(tl Timeline) Timeline {
	scenes := clone(tl.Scenes)
	next := 0
	for i := range scenes {
		scenes[i].StartFrame = next
		next += scenes[i].DurationInFrames
	}
	return Timeline{Scenes: scenes, TotalDuration: next}
}

// DuplicateScene copies the scene with id and places the copy right after
// the original.
func DuplicateScene(tl Timeline, id string) (Timeline, error) {
	var orig *Scene
	for i := range tl.Scenes {
		if tl.Scenes[i].ID == id {
			orig = &tl.Scenes[i]
			break
		}
	}
	if orig == nil {
		return tl, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}

	dup := *orig
	dup.ID = uuid.NewString()
	dup.Name = orig.Name + " (copy)"
	dup.StartFrame = orig.EndFrame()
	dup.Overlay.Tracks = append(dup.Overlay.Tracks[:0:0], orig.Overlay.Tracks...)
	dup.Overlay.Effects = append(dup.Overlay.Effects[:0:0], orig.Overlay.Effects...)
	return AddScene(tl, dup), nil
}

func update(tl Timeline, id string, fn func(*Scene)) (Timeline, error) {
	scenes := clone(tl.Scenes)
	for i := range scenes {
		if scenes[i].ID == id {
			fn(&scenes[i])
			return normalized(scenes), nil
		}
	}
	return tl, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
}

func normalized(scenes []Scene) Timeline {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].StartFrame < scenes[j].StartFrame
	})
	total := 0
	for _, s := range scenes {
		if end := s.EndFrame(); end > total {
			total = end
		}
	}
	return Timeline{Scenes: scenes, TotalDuration: total}
}

func clone(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes), len(scenes)+1)
	copy(out, scenes)
	return out
}
