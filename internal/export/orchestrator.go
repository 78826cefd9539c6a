package export

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameforge/internal/events"
	"github.com/ivlev/frameforge/internal/store"
)

// Collection is the record-store collection finished exports are written to.
const Collection = "exports"

// Orchestrator owns export jobs. It is safe for concurrent use; each job is
// driven by the goroutine that called ExportVideo or Retry.
type Orchestrator struct {
	renderer Renderer
	store    store.Store
	events   events.Publisher
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
}

// NewOrchestrator wires the collaborators. A nil store skips persistence
// and a nil publisher drops events.
func NewOrchestrator(r Renderer, s store.Store, p events.Publisher, log zerolog.Logger) *Orchestrator {
	if p == nil {
		p = events.Nop{}
	}
	return &Orchestrator{
		renderer: r,
		store:    s,
		events:   p,
		log:      log,
		now:      time.Now,
		jobs:     make(map[string]*Job),
	}
}

// ExportVideo validates opts, then renders synchronously. Invalid options
// return ErrInvalidOptions without creating a job. A render failure leaves
// the job failed and is returned along with the job.
func (o *Orchestrator) ExportVideo(ctx context.Context, opts Options, progress ProgressFunc) (*Job, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	now := o.now()
	job := &Job{
		ID:        uuid.NewString(),
		Options:   opts,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.order = append(o.order, job.ID)
	snap := *job
	o.mu.Unlock()

	o.publish(ctx, snap)
	return o.run(ctx, job.ID, progress)
}

// Retry resets a finished job to pending and runs it again with the same
// options.
func (o *Orchestrator) Retry(ctx context.Context, id string, progress ProgressFunc) (*Job, error) {
	if _, err := o.Reset(id); err != nil {
		return nil, err
	}
	return o.run(ctx, id, progress)
}

// Reset moves a completed or failed job back to pending, clearing its
// progress, result and error.
func (o *Orchestrator) Reset(id string) (*Job, error) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Status.Terminal() {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotTerminal, id, job.Status)
	}
	job.Status = Pending
	job.Progress = 0
	job.Result = nil
	job.Error = ""
	job.UpdatedAt = o.now()
	snap := *job
	o.mu.Unlock()

	o.publish(context.Background(), snap)
	return &snap, nil
}

// Job returns a snapshot of one job.
func (o *Orchestrator) Job(id string) (*Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snap := *job
	return &snap, nil
}

// Jobs returns snapshots of every job in creation order.
func (o *Orchestrator) Jobs() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Job, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.jobs[id])
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, id string, progress ProgressFunc) (*Job, error) {
	log := o.log.With().Str("job", id).Logger()

	snap, err := o.transition(id, Processing, func(*Job) {})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, snap)
	log.Info().Str("composition", snap.Options.CompositionID).Str("format", string(snap.Options.OutputFormat)).Msg("export started")

	res, renderErr := o.renderer.Render(ctx, snap.Options, func(p float64) {
		if v, ok := o.advance(id, p); ok && progress != nil {
			progress(v)
		}
	})

	if renderErr != nil {
		msg := renderErr.Error()
		if msg == "" {
			msg = "render failed"
		}
		snap, err = o.transition(id, Failed, func(j *Job) { j.Error = msg })
		if err != nil {
			return nil, err
		}
		log.Error().Err(renderErr).Msg("export failed")
		o.persist(ctx, snap)
		o.publish(ctx, snap)
		return &snap, fmt.Errorf("export %s: %w", id, renderErr)
	}

	if v, ok := o.advance(id, 100); ok && progress != nil {
		progress(v)
	}
	snap, err = o.transition(id, Completed, func(j *Job) {
		j.Result = &res
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", res.URL).Str("path", res.LocalPath).Msg("export completed")
	o.persist(ctx, snap)
	o.publish(ctx, snap)
	return &snap, nil
}

var transitions = map[Status][]Status{
	Pending:    {Processing},
	Processing: {Completed, Failed},
}

func (o *Orchestrator) transition(id string, to Status, mutate func(*Job)) (Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		return Job{}, fmt.Errorf("%w: %s is %s", ErrTerminal, id, job.Status)
	}
	allowed := false
	for _, s := range transitions[job.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return Job{}, fmt.Errorf("export job %s: cannot move from %s to %s", id, job.Status, to)
	}

	job.Status = to
	mutate(job)
	job.UpdatedAt = o.now()
	return *job, nil
}

// advance records renderer progress, clamped to [0, 100] and never moving
// backwards. It reports the stored value and whether it changed.
func (o *Orchestrator) advance(id string, p float64) (float64, bool) {
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[id]
	if !ok || job.Status != Processing || p <= job.Progress {
		return 0, false
	}
	job.Progress = p
	job.UpdatedAt = o.now()
	return p, true
}

// persist writes the finished job to the record store. Failures are logged
// and never change the job.
func (o *Orchestrator) persist(ctx context.Context, job Job) {
	if o.store == nil {
		return
	}
	rec := store.Record{
		Collection: Collection,
		ID:         job.ID,
		Data:       jobData(job),
	}
	if _, err := o.store.Create(ctx, rec); err != nil {
		// a retried job already has a record
		if _, uerr := o.store.Update(ctx, rec); uerr != nil {
			o.log.Warn().Err(err).Str("job", job.ID).Msg("failed to persist export record")
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, job Job) {
	ev := events.JobEvent{
		JobID:     job.ID,
		Kind:      "export",
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.Error,
		Timestamp: job.UpdatedAt,
	}
	if job.Result != nil {
		ev.URL = job.Result.URL
	}
	if err := o.events.Publish(ctx, ev); err != nil {
		o.log.Warn().Err(err).Str("job", job.ID).Msg("failed to publish export event")
	}
}

func jobData(job Job) map[string]any {
	data := map[string]any{
		"compositionId": job.Options.CompositionID,
		"outputFormat":  string(job.Options.OutputFormat),
		"quality":       string(job.Options.Quality),
		"status":        string(job.Status),
		"progress":      job.Progress,
	}
	if job.Options.CompositionID == CompositionPromo {
		data["templateType"] = string(job.Options.InputProps.Kind)
	}
	if job.Result != nil {
		data["localPath"] = job.Result.LocalPath
		data["url"] = job.Result.URL
	}
	if job.Error != "" {
		data["error"] = job.Error
	}
	return data
}
