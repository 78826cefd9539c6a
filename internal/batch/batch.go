// Package batch runs a list of exports one after another and collects a
// result per item. A failed item never stops the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameforge/internal/events"
	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/store"
)

var (
	ErrJobNotFound = errors.New("batch job not found")
	ErrEmptyBatch  = errors.New("batch has no videos")
)

// Collection is the record-store collection finished batches are written to.
const Collection = "batches"

// Result is the outcome of one item, at the item's index.
type Result struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Job struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Videos    []export.Options `json:"videos"`
	Status    export.Status    `json:"status"`
	Progress  float64          `json:"progress"`
	Results   []Result         `json:"results"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (j Job) clone() Job {
	j.Videos = append([]export.Options(nil), j.Videos...)
	j.Results = append([]Result(nil), j.Results...)
	return j
}

// Exporter runs a single export to completion.
type Exporter interface {
	ExportVideo(ctx context.Context, opts export.Options, progress export.ProgressFunc) (*export.Job, error)
}

type Processor struct {
	exporter Exporter
	store    store.Store
	events   events.Publisher
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewProcessor(e Exporter, s store.Store, p events.Publisher, log zerolog.Logger) *Processor {
	if p == nil {
		p = events.Nop{}
	}
	return &Processor{
		exporter: e,
		store:    s,
		events:   p,
		log:      log,
		now:      time.Now,
		jobs:     make(map[string]*Job),
	}
}

// CreateJob registers a pending batch. Item options are validated when each
// item runs so one bad item fails on its own.
func (p *Processor) CreateJob(name string, videos []export.Options) (*Job, error) {
	if len(videos) == 0 {
		return nil, ErrEmptyBatch
	}
	now := p.now()
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Videos:    append([]export.Options(nil), videos...),
		Status:    export.Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	p.mu.Lock()
	p.jobs[job.ID] = job
	snap := job.clone()
	p.mu.Unlock()

	p.publish(context.Background(), snap)
	return &snap, nil
}

// ProcessJob runs every item in order, waiting for each export to finish
// before the next starts. progress receives the batch percentage after each
// item.
func (p *Processor) ProcessJob(ctx context.Context, id string, progress export.ProgressFunc) (*Job, error) {
	p.mu.Lock()
	job, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != export.Pending {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: batch %s is %s", export.ErrTerminal, id, job.Status)
	}
	job.Status = export.Processing
	job.UpdatedAt = p.now()
	total := len(job.Videos)
	videos := append([]export.Options(nil), job.Videos...)
	snap := job.clone()
	p.mu.Unlock()

	log := p.log.With().Str("batch", id).Int("items", total).Logger()
	log.Info().Str("name", snap.Name).Msg("batch started")
	p.publish(ctx, snap)

	for i, opts := range videos {
		if err := ctx.Err(); err != nil {
			p.Cancel(id)
			break
		}

		res := Result{Index: i}
		exp, err := p.exporter.ExportVideo(ctx, opts, nil)
		switch {
		case err != nil:
			res.Error = err.Error()
		case exp == nil || exp.Result == nil:
			res.Error = "export returned no result"
		default:
			res.Success = true
			res.URL = exp.Result.URL
		}

		p.mu.Lock()
		if job.Status != export.Processing {
			// cancelled while the item was rendering
			p.mu.Unlock()
			log.Warn().Int("item", i).Msg("discarding result of cancelled batch")
			break
		}
		job.Results = append(job.Results, res)
		job.Progress = float64(i+1) / float64(total) * 100
		job.UpdatedAt = p.now()
		pct := job.Progress
		p.mu.Unlock()

		if res.Success {
			log.Info().Int("item", i).Str("url", res.URL).Msg("batch item completed")
		} else {
			log.Warn().Int("item", i).Str("error", res.Error).Msg("batch item failed")
		}
		if progress != nil {
			progress(pct)
		}
	}

	p.mu.Lock()
	if job.Status == export.Processing {
		job.Status = export.Completed
		job.UpdatedAt = p.now()
	}
	snap = job.clone()
	p.mu.Unlock()

	log.Info().Str("status", string(snap.Status)).Int("failed", failures(snap.Results)).Msg("batch finished")
	// the final record is written even when ctx cancelled the batch
	final := context.WithoutCancel(ctx)
	p.persist(final, snap)
	p.publish(final, snap)
	return &snap, nil
}

// Cancel marks a pending or running batch failed and records a synthetic
// failed result. An export already in flight is not interrupted; its result
// is discarded.
func (p *Processor) Cancel(id string) (*Job, error) {
	p.mu.Lock()
	job, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status.Terminal() {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: batch %s is %s", export.ErrTerminal, id, job.Status)
	}
	job.Status = export.Failed
	job.Results = append(job.Results, Result{Index: len(job.Results), Error: "batch cancelled"})
	job.UpdatedAt = p.now()
	snap := job.clone()
	p.mu.Unlock()

	p.log.Info().Str("batch", id).Msg("batch cancelled")
	p.publish(context.Background(), snap)
	return &snap, nil
}

func (p *Processor) Job(id string) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	snap := job.clone()
	return &snap, nil
}

func (p *Processor) persist(ctx context.Context, job Job) {
	if p.store == nil {
		return
	}
	results := make([]any, 0, len(job.Results))
	for _, r := range job.Results {
		results = append(results, map[string]any{
			"index":   r.Index,
			"success": r.Success,
			"url":     r.URL,
			"error":   r.Error,
		})
	}
	rec := store.Record{
		Collection: Collection,
		ID:         job.ID,
		Data: map[string]any{
			"name":     job.Name,
			"status":   string(job.Status),
			"progress": job.Progress,
			"total":    len(job.Videos),
			"results":  results,
		},
	}
	if _, err := p.store.Create(ctx, rec); err != nil {
		p.log.Warn().Err(err).Str("batch", job.ID).Msg("failed to persist batch record")
	}
}

func (p *Processor) publish(ctx context.Context, job Job) {
	ev := events.JobEvent{
		JobID:     job.ID,
		Kind:      "batch",
		Status:    string(job.Status),
		Progress:  job.Progress,
		Timestamp: job.UpdatedAt,
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.log.Warn().Err(err).Str("batch", job.ID).Msg("failed to publish batch event")
	}
}

func failures(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
