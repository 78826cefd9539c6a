package scene

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/animation"
	"github.com/ivlev/frameforge/internal/effects"
	"github.com/ivlev/frameforge/internal/template"
)

func mustScene(t *testing.T, name string, kind template.Kind, start, duration int) Scene {
	t.Helper()
	s, err := CreateScene(name, kind, start, duration, template.DefaultProps(kind))
	require.NoError(t, err)
	return s
}

func TestCreateSceneValidates(t *testing.T) {
	s := mustScene(t, "intro", template.Educational, 0, 60)
	assert.NotEmpty(t, s.ID)

	_, err := CreateScene("bad", template.Corporate, 0, 60, template.DefaultProps(template.Minimal))
	assert.ErrorIs(t, err, template.ErrInvalidProps)

	_, err = CreateScene("bad", template.Minimal, -1, 60, template.DefaultProps(template.Minimal))
	assert.ErrorIs(t, err, ErrInvalidScene)

	_, err = CreateScene("bad", template.Minimal, 0, 0, template.DefaultProps(template.Minimal))
	assert.ErrorIs(t, err, ErrInvalidScene)
}

func TestAddAndRemoveRecomputeDuration(t *testing.T) {
	a := mustScene(t, "a", template.Minimal, 100, 50)
	b := mustScene(t, "b", template.Minimal, 0, 30)

	var tl Timeline
	tl = AddScene(tl, a)
	tl = AddScene(tl, b)
	require.Len(t, tl.Scenes, 2)
	assert.Equal(t, "b", tl.Scenes[0].Name)
	assert.Equal(t, 150, tl.TotalDuration)

	tl2 := RemoveScene(tl, a.ID)
	assert.Equal(t, 30, tl2.TotalDuration)
	assert.Len(t, tl.Scenes, 2)

	assert.Equal(t, 0, RemoveScene(tl2, b.ID).TotalDuration)
	assert.Equal(t, tl2, RemoveScene(tl2, "missing"))
}

func TestActiveSceneHalfOpen(t *testing.T) {
	a := mustScene(t, "a", template.Minimal, 0, 30)
	b := mustScene(t, "b", template.Minimal, 40, 20)
	tl := AddScene(AddScene(Timeline{}, a), b)

	tests := []struct {
		frame int
		want  string
	}{
		{0, "a"},
		{29, "a"},
		{30, ""},
		{39, ""},
		{40, "b"},
		{59, "b"},
		{60, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		s := ActiveScene(tl, tt.frame)
		if tt.want == "" {
			assert.Nil(t, s, "frame %d", tt.frame)
			continue
		}
		require.NotNil(t, s, "frame %d", tt.frame)
		assert.Equal(t, tt.want, s.Name)
	}
}

func TestMoveAndUpdate(t *testing.T) {
	a := mustScene(t, "a", template.Minimal, 0, 30)
	b := mustScene(t, "b", template.Minimal, 30, 30)
	tl := AddScene(AddScene(Timeline{}, a), b)

	moved, err := MoveScene(tl, a.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, "b", moved.Scenes[0].Name)
	assert.Equal(t, 130, moved.TotalDuration)
	assert.Equal(t, 0, tl.Scenes[0].StartFrame)

	longer, err := UpdateSceneDuration(tl, b.ID, 90)
	require.NoError(t, err)
	assert.Equal(t, 120, longer.TotalDuration)

	_, err = MoveScene(tl, "missing", 10)
	assert.ErrorIs(t, err, ErrSceneNotFound)
	_, err = UpdateSceneDuration(tl, a.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidScene)
	_, err = MoveScene(tl, a.ID, -5)
	assert.ErrorIs(t, err, ErrInvalidScene)
}

func TestReorderScenesPacksAndIsIdempotent(t *testing.T) {
	tl := Timeline{}
	tl = AddScene(tl, mustScene(t, "a", template.Minimal, 10, 30))
	tl = AddScene(tl, mustScene(t, "b", template.Corporate, 100, 20))
	tl = AddScene(tl, mustScene(t, "c", template.Educational, 200, 50))

	packed := ReorderScenes(tl)
	assert.Equal(t, 0, packed.Scenes[0].StartFrame)
	assert.Equal(t, 30, packed.Scenes[1].StartFrame)
	assert.Equal(t, 50, packed.Scenes[2].StartFrame)
	assert.Equal(t, 100, packed.TotalDuration)

	assert.Equal(t, packed, ReorderScenes(packed))
}

func TestDuplicateScene(t *testing.T) {
	a := mustScene(t, "intro", template.Educational, 0, 40)
	a.Overlay.Tracks = []animation.Track{animation.NewTrack(animation.PropOpacity, animation.Keyframe{Frame: 0, Value: 1})}
	tl := AddScene(Timeline{}, a)

	dup, err := DuplicateScene(tl, a.ID)
	require.NoError(t, err)
	require.Len(t, dup.Scenes, 2)

	c := dup.Scenes[1]
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, "intro (copy)", c.Name)
	assert.Equal(t, 40, c.StartFrame)
	assert.Equal(t, 80, dup.TotalDuration)

	c.Overlay.Tracks[0].Property = animation.PropScale
	assert.Equal(t, animation.PropOpacity, dup.Scenes[0].Overlay.Tracks[0].Property)

	_, err = DuplicateScene(tl, "missing")
	assert.ErrorIs(t, err, ErrSceneNotFound)
}

func TestTimelineYAMLRoundTrip(t *testing.T) {
	a := mustScene(t, "intro", template.Corporate, 0, 60)
	a.Overlay = template.Overlay{
		Effects:  []effects.Effect{{Type: effects.Blur, Intensity: 4, StartFrame: 0, EndFrame: 10}},
		Grade:    "warm",
		Entrance: template.Entrance{Kind: template.EntranceFade, Duration: 15},
	}
	b := mustScene(t, "outro", template.Minimal, 60, 30)
	tl := AddScene(AddScene(Timeline{}, a), b)

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, WriteTimeline(tl, path))

	got, err := ReadTimeline(path)
	require.NoError(t, err)
	assert.Equal(t, tl, got)
}

func TestReadTimelineSortsKeyframes(t *testing.T) {
	s := mustScene(t, "intro", template.Minimal, 0, 60)
	s.Overlay.Tracks = []animation.Track{{Property: animation.PropOpacity, Keyframes: []animation.Keyframe{
		{Frame: 50, Value: 1},
		{Frame: 10, Value: 0},
		{Frame: 10, Value: 0.2},
	}}}
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, WriteTimeline(AddScene(Timeline{}, s), path))

	tl, err := ReadTimeline(path)
	require.NoError(t, err)
	require.Len(t, tl.Scenes[0].Overlay.Tracks, 1)
	tr := tl.Scenes[0].Overlay.Tracks[0]
	require.Len(t, tr.Keyframes, 2)
	assert.InDelta(t, 0.6, animation.ValueAt(tr, 30), 1e-9)
	assert.InDelta(t, 0.2, animation.ValueAt(tr, 0), 1e-9)
}

func TestReadTimelineRejectsInvalidScene(t *testing.T) {
	bad := mustScene(t, "x", template.Minimal, 0, 10)
	bad.Props.PrimaryColor = "red"
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, WriteTimeline(Timeline{Scenes: []Scene{bad}}, path))

	_, err := ReadTimeline(path)
	assert.ErrorIs(t, err, template.ErrInvalidProps)
}

func TestRenderFrameUsesLocalFrame(t *testing.T) {
	a := mustScene(t, "a", template.Educational, 0, 30)
	b := mustScene(t, "b", template.Corporate, 50, 60)
	tl := AddScene(AddScene(Timeline{}, a), b)
	video := template.VideoConfig{Width: 640, Height: 360, FPS: 30}

	vs, err := RenderFrame(tl, 40, video)
	require.NoError(t, err)
	assert.Empty(t, vs.Layers)
	assert.Equal(t, "#000000", vs.Background)

	vs, err = RenderFrame(tl, 65, video)
	require.NoError(t, err)
	assert.Equal(t, 65, vs.Frame)
	title, ok := vs.Layer("title")
	require.True(t, ok)
	assert.InDelta(t, 0.5, title.Opacity, 1e-9)
}
