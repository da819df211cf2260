package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/api/internal/aggregate"
)

func openTestStore(t *testing.T) *GenerationStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "generations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 5, 4, 10, 30, 0, 123, time.FixedZone("CEST", 2*60*60))

	require.NoError(t, s.Insert(ctx, "video-1", aggregate.Record{
		ID: "job-1", PartnerID: "acme", UserID: "u1", Status: aggregate.StatusQueued, CreatedAt: created,
	}))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.PartnerID)
	assert.Equal(t, aggregate.StatusQueued, got.Status)
	assert.True(t, created.Equal(got.CreatedAt), "created %v, got %v", created, got.CreatedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteAndSetStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, "v", aggregate.Record{ID: "job-1", Status: aggregate.StatusQueued, CreatedAt: created}))

	require.NoError(t, s.SetStatus(ctx, "job-1", aggregate.StatusProcessing))
	require.NoError(t, s.Complete(ctx, "job-1", aggregate.StatusSucceeded, created.Add(90*time.Second), 42.5))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusSucceeded, got.Status)
	require.NotNil(t, got.CompletedAt)
	latency, ok := got.Latency()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, latency)
	assert.Equal(t, 42.5, got.VideoSeconds)

	assert.ErrorIs(t, s.SetStatus(ctx, "ghost", aggregate.StatusFailed), ErrNotFound)
	assert.ErrorIs(t, s.Complete(ctx, "ghost", aggregate.StatusFailed, created, 0), ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "v", aggregate.Record{ID: "job-1", Status: aggregate.StatusQueued, CreatedAt: time.Now()}))

	require.NoError(t, s.Delete(ctx, "job-1"))

	_, err := s.Get(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "job-1"), ErrNotFound)
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, r := range []aggregate.Record{
		{ID: "a", PartnerID: "acme", UserID: "u1", CreatedAt: day.Add(1 * time.Hour)},
		{ID: "b", PartnerID: "globex", UserID: "u2", CreatedAt: day.Add(25 * time.Hour)},
		{ID: "c", PartnerID: "acme", UserID: "u2", CreatedAt: day.Add(49 * time.Hour)},
	} {
		r.Status = aggregate.StatusQueued
		require.NoError(t, s.Insert(ctx, "v", r), "insert %d", i)
	}

	ids := func(rs []aggregate.Record) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	window, err := s.List(ctx, Filter{From: day.Add(24 * time.Hour), To: day.Add(49 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(window))

	acme, err := s.List(ctx, Filter{PartnerID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(acme))

	none, err := s.List(ctx, Filter{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Insert(context.Background(), "v", aggregate.Record{ID: "x", Status: aggregate.StatusQueued, CreatedAt: time.Now()}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.Get(context.Background(), "x")
	assert.NoError(t, err)
}
