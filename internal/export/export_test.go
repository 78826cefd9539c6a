package export

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/animation"
	"github.com/ivlev/frameforge/internal/events"
	"github.com/ivlev/frameforge/internal/scene"
	"github.com/ivlev/frameforge/internal/store"
	"github.com/ivlev/frameforge/internal/template"
)

type fakeRenderer struct {
	steps []float64
	err   error
	calls int
	last  Options
}

func (f *fakeRenderer) Render(_ context.Context, opts Options, progress ProgressFunc) (Result, error) {
	f.calls++
	f.last = opts
	for _, s := range f.steps {
		progress(s)
	}
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{LocalPath: "/tmp/out." + string(opts.OutputFormat), URL: "file:///tmp/out." + string(opts.OutputFormat)}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.JobEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev events.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}

type failingStore struct{ store.Store }

func (failingStore) Create(context.Context, store.Record) (store.Record, error) {
	return store.Record{}, errors.New("db down")
}

func (failingStore) Update(context.Context, store.Record) (store.Record, error) {
	return store.Record{}, errors.New("db down")
}

func promo() Options {
	return Options{
		CompositionID:    CompositionPromo,
		OutputFormat:     MP4,
		Quality:          High,
		InputProps:       template.DefaultProps(template.Corporate),
		DurationInFrames: 90,
		FPS:              30,
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		ok     bool
	}{
		{"valid", func(*Options) {}, true},
		{"missing composition", func(o *Options) { o.CompositionID = "" }, false},
		{"unknown composition", func(o *Options) { o.CompositionID = "Other" }, false},
		{"bad format", func(o *Options) { o.OutputFormat = "avi" }, false},
		{"bad quality", func(o *Options) { o.Quality = "ultra" }, false},
		{"zero fps", func(o *Options) { o.FPS = 0 }, false},
		{"zero duration", func(o *Options) { o.DurationInFrames = 0 }, false},
		{"odd width", func(o *Options) { o.Width, o.Height = 641, 360 }, false},
		{"bad props", func(o *Options) { o.InputProps.PrimaryColor = "blue" }, false},
		{"bad overlay", func(o *Options) { o.Overlay.Grade = "sunset" }, false},
		{"empty timeline", func(o *Options) { o.CompositionID = CompositionTimeline }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := promo()
			tt.mutate(&o)
			if tt.ok {
				assert.NoError(t, o.Validate())
			} else {
				assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
			}
		})
	}
}

func TestExportVideoCompletes(t *testing.T) {
	r := &fakeRenderer{steps: []float64{10, 5, 50, 150, -1}}
	mem := store.NewMemory()
	pub := &recorder{}
	o := NewOrchestrator(r, mem, pub, zerolog.Nop())

	var seen []float64
	job, err := o.ExportVideo(context.Background(), promo(), func(p float64) { seen = append(seen, p) })
	require.NoError(t, err)

	assert.Equal(t, Completed, job.Status)
	assert.Equal(t, 100.0, job.Progress)
	require.NotNil(t, job.Result)
	assert.Equal(t, "/tmp/out.mp4", job.Result.LocalPath)
	assert.Empty(t, job.Error)
	assert.Equal(t, []float64{10, 50, 100}, seen)
	assert.Equal(t, []string{"pending", "processing", "completed"}, pub.statuses())

	rec, err := mem.GetOne(context.Background(), Collection, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec.Data["status"])
	assert.Equal(t, "file:///tmp/out.mp4", rec.Data["url"])
}

func TestExportVideoFailure(t *testing.T) {
	boom := errors.New("encoder crashed")
	o := NewOrchestrator(&fakeRenderer{steps: []float64{30}, err: boom}, nil, nil, zerolog.Nop())

	job, err := o.ExportVideo(context.Background(), promo(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, job)
	assert.Equal(t, Failed, job.Status)
	assert.Equal(t, "encoder crashed", job.Error)
	assert.Equal(t, 30.0, job.Progress)
	assert.Nil(t, job.Result)

	got, err := o.Job(job.ID)
	require.NoError(t, err)
	assert.Equal(t, Failed, got.Status)
}

func TestExportVideoEmptyErrorMessage(t *testing.T) {
	o := NewOrchestrator(&fakeRenderer{err: errors.New("")}, nil, nil, zerolog.Nop())
	job, err := o.ExportVideo(context.Background(), promo(), nil)
	require.Error(t, err)
	assert.Equal(t, "render failed", job.Error)
}

func TestInvalidOptionsCreateNoJob(t *testing.T) {
	r := &fakeRenderer{}
	o := NewOrchestrator(r, nil, nil, zerolog.Nop())

	opts := promo()
	opts.OutputFormat = "mkv"
	job, err := o.ExportVideo(context.Background(), opts, nil)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Empty(t, o.Jobs())
	assert.Zero(t, r.calls)
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	pub := &recorder{err: errors.New("broker down")}
	o := NewOrchestrator(&fakeRenderer{}, failingStore{}, pub, zerolog.Nop())

	job, err := o.ExportVideo(context.Background(), promo(), nil)
	require.NoError(t, err)
	assert.Equal(t, Completed, job.Status)
	assert.Len(t, pub.statuses(), 3)
}

func TestResetAndRetry(t *testing.T) {
	r := &fakeRenderer{err: errors.New("timeout")}
	mem := store.NewMemory()
	o := NewOrchestrator(r, mem, nil, zerolog.Nop())

	job, err := o.ExportVideo(context.Background(), promo(), nil)
	require.Error(t, err)

	_, err = o.Reset("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	r.err = nil
	retried, err := o.Retry(context.Background(), job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, Completed, retried.Status)
	assert.Empty(t, retried.Error)
	assert.Equal(t, 2, r.calls)

	rec, err := mem.GetOne(context.Background(), Collection, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", rec.Data["status"])

	reset, err := o.Reset(job.ID)
	require.NoError(t, err)
	assert.Equal(t, Pending, reset.Status)
	assert.Nil(t, reset.Result)

	_, err = o.Reset(job.ID)
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestTerminalJobRejectsTransitions(t *testing.T) {
	o := NewOrchestrator(&fakeRenderer{}, nil, nil, zerolog.Nop())
	job, err := o.ExportVideo(context.Background(), promo(), nil)
	require.NoError(t, err)

	_, err = o.transition(job.ID, Processing, func(*Job) {})
	assert.ErrorIs(t, err, ErrTerminal)

	_, ok := o.advance(job.ID, 100)
	assert.False(t, ok)
}

func TestJobsInCreationOrder(t *testing.T) {
	o := NewOrchestrator(&fakeRenderer{}, nil, nil, zerolog.Nop())
	a, _ := o.ExportVideo(context.Background(), promo(), nil)
	b, _ := o.ExportVideo(context.Background(), promo(), nil)

	jobs := o.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, a.ID, jobs[0].ID)
	assert.Equal(t, b.ID, jobs[1].ID)

	_, err := o.Job("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPresets(t *testing.T) {
	p := NewPresets(time.Minute, 4)

	yt, err := p.Get("YouTube")
	require.NoError(t, err)
	assert.Equal(t, "youtube", yt.Platform)
	assert.Equal(t, "1920x1080", yt.Resolution.String())
	assert.Equal(t, MP4, yt.Format())

	_, err = p.Get("myspace")
	assert.ErrorIs(t, err, ErrInvalidOptions)

	gif, err := LookupPreset("gif")
	require.NoError(t, err)
	opts := gif.Apply(promo())
	assert.Equal(t, GIF, opts.OutputFormat)
	assert.Equal(t, 15, opts.FPS)
	assert.Equal(t, 45, opts.DurationInFrames)
	assert.NoError(t, opts.Validate())

	assert.Contains(t, Platforms(), "tiktok")
	assert.Len(t, Platforms(), len(platformPresets))
}

func TestProjectRoundTripReproducesFrames(t *testing.T) {
	props := template.DefaultProps(template.Educational)
	props.Title = "Fractions"
	pf := NewProjectFile(props, 120, 30, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, SaveProject(&buf, pf))
	assert.Contains(t, buf.String(), `"version": "1.0.0"`)
	assert.Contains(t, buf.String(), `"templateType": "educational"`)

	loaded, err := LoadProject(&buf)
	require.NoError(t, err)
	assert.Equal(t, pf, loaded)

	before, err := pf.Options(MP4, High).Frame(45)
	require.NoError(t, err)
	after, err := loaded.Options(MP4, High).Frame(45)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadProjectRejectsMismatch(t *testing.T) {
	pf := NewProjectFile(template.DefaultProps(template.Minimal), 60, 30, time.Now())
	pf.Settings.TemplateType = template.Corporate

	var buf bytes.Buffer
	require.NoError(t, SaveProject(&buf, pf))
	_, err := LoadProject(&buf)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = LoadProject(bytes.NewBufferString("{"))
	assert.Error(t, err)
}

func TestTimelineOptions(t *testing.T) {
	s, err := scene.CreateScene("intro", template.Minimal, 0, 45, template.DefaultProps(template.Minimal))
	require.NoError(t, err)
	tl := scene.AddScene(scene.Timeline{}, s)

	opts := Options{CompositionID: CompositionTimeline, OutputFormat: WebM, Quality: Low, Timeline: &tl, FPS: 30, Width: 640, Height: 360}
	require.NoError(t, opts.Validate())
	assert.Equal(t, 45, opts.Video().DurationInFrames)
	assert.Equal(t, 640, opts.Video().Width)

	vs, err := opts.Frame(10)
	require.NoError(t, err)
	_, ok := vs.Layer("title")
	assert.True(t, ok)
}

func TestExportVideoSortsOverlayTracks(t *testing.T) {
	unsorted := animation.Track{Property: animation.PropOpacity, Keyframes: []animation.Keyframe{
		{Frame: 50, Value: 1},
		{Frame: 10, Value: 0},
		{Frame: 50, Value: 0.8},
	}}

	s, err := scene.CreateScene("intro", template.Minimal, 0, 60, template.DefaultProps(template.Minimal))
	require.NoError(t, err)
	s.Overlay.Tracks = []animation.Track{unsorted}
	tl := scene.AddScene(scene.Timeline{}, s)

	r := &fakeRenderer{}
	o := NewOrchestrator(r, nil, nil, zerolog.Nop())

	opts := promo()
	opts.Overlay.Tracks = []animation.Track{unsorted}
	_, err = o.ExportVideo(context.Background(), opts, nil)
	require.NoError(t, err)
	got := r.last.Overlay.Tracks[0]
	require.Len(t, got.Keyframes, 2)
	assert.InDelta(t, 0.4, animation.ValueAt(got, 30), 1e-9)
	assert.Equal(t, 50, opts.Overlay.Tracks[0].Keyframes[0].Frame)

	_, err = o.ExportVideo(context.Background(), Options{
		CompositionID: CompositionTimeline, OutputFormat: MP4, Quality: Low, Timeline: &tl, FPS: 30,
	}, nil)
	require.NoError(t, err)
	got = r.last.Timeline.Scenes[0].Overlay.Tracks[0]
	assert.Equal(t, 10, got.Keyframes[0].Frame)
	assert.Equal(t, 50, tl.Scenes[0].Overlay.Tracks[0].Keyframes[0].Frame)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out", "video.mp4")
	require.NoError(t, Download(context.Background(), srv.Client(), srv.URL+"/video.mp4", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	err = Download(context.Background(), srv.Client(), srv.URL+"/missing", path+".2")
	assert.Error(t, err)
	_, statErr := os.Stat(path + ".2")
	assert.True(t, os.IsNotExist(statErr))
}
