package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameforge/internal/config"
)

// exercise runs the same contract checks against any Store.
func exercise(t *testing.T, s Store) {
	ctx := context.Background()
	coll := "jobs_" + uuid.NewString()[:8]

	a, err := s.Create(ctx, Record{Collection: coll, ID: "a", Data: map[string]any{"status": "pending"}})
	require.NoError(t, err)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = s.Create(ctx, Record{Collection: coll, ID: "a"})
	assert.Error(t, err)

	_, err = s.Create(ctx, Record{Collection: coll, ID: "b", Data: map[string]any{"status": "pending"}})
	require.NoError(t, err)

	upd, err := s.Update(ctx, Record{Collection: coll, ID: "a", Data: map[string]any{"status": "completed"}})
	require.NoError(t, err)
	assert.Equal(t, a.CreatedAt.Unix(), upd.CreatedAt.Unix())

	got, err := s.GetOne(ctx, coll, "a")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Data["status"])

	list, err := s.GetFullList(ctx, coll)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	require.NoError(t, s.Delete(ctx, coll, "a"))
	_, err = s.GetOne(ctx, coll, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, coll, "a"), ErrNotFound)
	_, err = s.Update(ctx, Record{Collection: coll, ID: "zzz"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	tick := time.Unix(1000, 0)
	m.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	exercise(t, m)
}

func TestMemoryCopiesData(t *testing.T) {
	m := NewMemory()
	data := map[string]any{"k": "v"}
	_, err := m.Create(context.Background(), Record{Collection: "c", ID: "1", Data: data})
	require.NoError(t, err)
	data["k"] = "changed"

	got, _ := m.GetOne(context.Background(), "c", "1")
	assert.Equal(t, "v", got.Data["k"])
}

func TestPostgres(t *testing.T) {
	if os.Getenv("FRAMEFORGE_TEST_POSTGRES") == "" {
		t.Skip("FRAMEFORGE_TEST_POSTGRES not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = os.Getenv("POSTGRES_HOST")
	cfg.Password = os.Getenv("POSTGRES_PASSWORD")

	p, err := ConnectPostgres(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()
	exercise(t, p)
}
