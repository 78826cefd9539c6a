// Package project keeps saved compositions with a bounded version history.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/store"
)

// MaxVersions bounds the history; the oldest entry is dropped first.
const MaxVersions = 50

// Collection is the record-store collection projects are written to.
const Collection = "projects"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrVersionNotFound = errors.New("project version not found")
)

type Version struct {
	Number    int                `json:"number"`
	State     export.ProjectFile `json:"state"`
	CreatedAt time.Time          `json:"createdAt"`
	Note      string             `json:"note,omitempty"`
}

type Project struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Version   int                `json:"version"`
	State     export.ProjectFile `json:"state"`
	History   []Version          `json:"history"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (p Project) clone() Project {
	p.History = append([]Version(nil), p.History...)
	return p
}

// Manager owns projects in memory and mirrors every save to the record
// store. Store failures are logged and do not fail the save.
type Manager struct {
	store store.Store
	now   func() time.Time
	log   zerolog.Logger

	mu       sync.Mutex
	projects map[string]*Project
}

// NewManager builds a manager. s may be nil and now defaults to time.Now.
func NewManager(s store.Store, now func() time.Time, log zerolog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:    s,
		now:      now,
		log:      log,
		projects: make(map[string]*Project),
	}
}

// Create starts a project at version 1 with state as its first history
// entry.
func (m *Manager) Create(ctx context.Context, name string, state export.ProjectFile) (*Project, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	now := m.now()
	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   1,
		State:     state,
		History:   []Version{{Number: 1, State: state, CreatedAt: now, Note: "created"}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.projects[p.ID] = p
	snap := p.clone()
	m.mu.Unlock()

	m.persist(ctx, snap, true)
	return &snap, nil
}

// SaveVersion stores state as the next version.
func (m *Manager) SaveVersion(ctx context.Context, id string, state export.ProjectFile, note string) (*Project, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	p, ok := m.projects[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	now := m.now()
	p.Version++
	p.State = state
	p.UpdatedAt = now
	p.History = append(p.History, Version{Number: p.Version, State: state, CreatedAt: now, Note: note})
	if over := len(p.History) - MaxVersions; over > 0 {
		p.History = append([]Version(nil), p.History[over:]...)
	}
	snap := p.clone()
	m.mu.Unlock()

	m.log.Debug().Str("project", id).Int("version", snap.Version).Msg("version saved")
	m.persist(ctx, snap, false)
	return &snap, nil
}

// Versions returns the retained history, oldest first.
func (m *Manager) Versions(id string) ([]Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return append([]Version(nil), p.History...), nil
}

// RestoreVersion saves the state of an earlier version as a new version.
// Versions newer than the restored one stay in the history.
func (m *Manager) RestoreVersion(ctx context.Context, id string, number int) (*Project, error) {
	versions, err := m.Versions(id)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Number == number {
			return m.SaveVersion(ctx, id, v.State, fmt.Sprintf("restored from version %d", number))
		}
	}
	return nil, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, id, number)
}

func (m *Manager) Get(id string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	snap := p.clone()
	return &snap, nil
}

// Load reads a project back from the record store and makes it current.
func (m *Manager) Load(ctx context.Context, id string) (*Project, error) {
	if m.store == nil {
		return m.Get(id)
	}
	rec, err := m.store.GetOne(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		return nil, err
	}

	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode project record: %w", err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode project record: %w", err)
	}

	m.mu.Lock()
	m.projects[p.ID] = &p
	snap := p.clone()
	m.mu.Unlock()
	return &snap, nil
}

func (m *Manager) persist(ctx context.Context, p Project, create bool) {
	if m.store == nil {
		return
	}
	data, err := toData(p)
	if err != nil {
		m.log.Warn().Err(err).Str("project", p.ID).Msg("failed to encode project")
		return
	}
	rec := store.Record{Collection: Collection, ID: p.ID, Data: data}
	if create {
		_, err = m.store.Create(ctx, rec)
	} else {
		_, err = m.store.Update(ctx, rec)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("project", p.ID).Int("version", p.Version).Msg("failed to persist project")
	}
}

func toData(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
