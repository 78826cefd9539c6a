package project

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/export"
	"github.com/ivlev/frameforge/internal/store"
	"github.com/ivlev/frameforge/internal/template"
)

func clock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func state(title string) export.ProjectFile {
	props := template.DefaultProps(template.Corporate)
	props.Title = title
	return export.NewProjectFile(props, 150, 30, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
}

func TestVersionMonotonicity(t *testing.T) {
	for _, n := range []int{0, 1, 10, 49, 60} {
		m := NewManager(nil, clock(), zerolog.Nop())
		p, err := m.Create(context.Background(), "promo", state("v1"))
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			p, err = m.SaveVersion(context.Background(), p.ID, state("next"), "")
			require.NoError(t, err)
		}
		assert.Equal(t, 1+n, p.Version)

		versions, err := m.Versions(p.ID)
		require.NoError(t, err)
		want := 1 + n
		if want > MaxVersions {
			want = MaxVersions
		}
		assert.Len(t, versions, want)
		assert.Equal(t, p.Version, versions[len(versions)-1].Number)
	}
}

func TestOldestVersionEvicted(t *testing.T) {
	m := NewManager(nil, clock(), zerolog.Nop())
	p, _ := m.Create(context.Background(), "promo", state("v1"))
	for i := 0; i < MaxVersions; i++ {
		p, _ = m.SaveVersion(context.Background(), p.ID, state("next"), "")
	}

	versions, _ := m.Versions(p.ID)
	assert.Equal(t, 2, versions[0].Number)

	_, err := m.RestoreVersion(context.Background(), p.ID, 1)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestRestoreKeepsNewerVersions(t *testing.T) {
	m := NewManager(nil, clock(), zerolog.Nop())
	ctx := context.Background()
	p, _ := m.Create(ctx, "promo", state("first"))
	p, _ = m.SaveVersion(ctx, p.ID, state("second"), "tweak")
	p, _ = m.SaveVersion(ctx, p.ID, state("third"), "")

	restored, err := m.RestoreVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Version)
	assert.Equal(t, "first", restored.State.State.Title)

	versions, _ := m.Versions(p.ID)
	require.Len(t, versions, 4)
	assert.Equal(t, "third", versions[2].State.State.Title)
	assert.Equal(t, "restored from version 1", versions[3].Note)
	assert.True(t, restored.UpdatedAt.After(restored.CreatedAt))
}

func TestInvalidStateRejected(t *testing.T) {
	m := NewManager(nil, clock(), zerolog.Nop())
	bad := state("x")
	bad.Settings.FPS = 0

	_, err := m.Create(context.Background(), "bad", bad)
	assert.ErrorIs(t, err, export.ErrInvalidOptions)

	p, _ := m.Create(context.Background(), "ok", state("x"))
	_, err = m.SaveVersion(context.Background(), p.ID, bad, "")
	assert.ErrorIs(t, err, export.ErrInvalidOptions)

	_, err = m.SaveVersion(context.Background(), "missing", state("x"), "")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestPersistAndLoad(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	m := NewManager(mem, clock(), zerolog.Nop())

	p, err := m.Create(ctx, "promo", state("one"))
	require.NoError(t, err)
	_, err = m.SaveVersion(ctx, p.ID, state("two"), "")
	require.NoError(t, err)

	fresh := NewManager(mem, clock(), zerolog.Nop())
	loaded, err := fresh.Load(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	assert.Equal(t, "two", loaded.State.State.Title)
	require.Len(t, loaded.History, 2)

	want, _ := m.Get(p.ID)
	assert.Equal(t, want.State, loaded.State)

	_, err = fresh.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
