package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/timing"
)

func TestRendererSubmitAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/renders":
			var req RenderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "job-1", req.JobID)
			assert.Equal(t, "v1", req.Manifest.VideoID)
			_ = json.NewEncoder(w).Encode(RenderJob{RenderID: "r-1", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/renders/r-1":
			_ = json.NewEncoder(w).Encode(RenderStatus{RenderID: "r-1", Status: "completed", DownloadURL: "https://cdn/v.mp4", Duration: 42})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/renders/r-1/narration":
			_ = json.NewEncoder(w).Encode(timing.Narration{Shots: []timing.ShotAudio{{ShotIndex: 0, AudioDuration: 3}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewRendererClient(&config.RendererConfig{BaseURL: srv.URL, APIKey: "key"})
	require.True(t, c.IsConfigured())
	ctx := context.Background()

	job, err := c.SubmitRender(ctx, &RenderRequest{JobID: "job-1", Manifest: &manifest.Manifest{VideoID: "v1"}})
	require.NoError(t, err)
	assert.Equal(t, "r-1", job.RenderID)

	status, err := c.GetRender(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, status.Duration)

	n, err := c.GetNarration(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, n.Shots, 1)
	assert.Equal(t, 3.0, n.Shots[0].AudioDuration)
}

func TestRendererAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewRendererClient(&config.RendererConfig{BaseURL: srv.URL, APIKey: "key"})
	_, err := c.GetRender(context.Background(), "r-1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Body)
}

type scriptedRenderer struct {
	Renderer
	statuses []RenderStatus
	calls    atomic.Int32
}

func (s *scriptedRenderer) GetRender(context.Context, string) (*RenderStatus, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	st := s.statuses[i]
	return &st, nil
}

func TestPollRenderUntilDone(t *testing.T) {
	r := &scriptedRenderer{statuses: []RenderStatus{
		{Status: "processing", Progress: 10},
		{Status: "processing", Progress: 60},
		{Status: "completed", Progress: 100, Duration: 12},
	}}
	var seen []int

	st, err := PollRender(context.Background(), r, "r", time.Millisecond, time.Second, func(s *RenderStatus) {
		seen = append(seen, s.Progress)
	})
	require.NoError(t, err)
	assert.Equal(t, 12.0, st.Duration)
	assert.Equal(t, []int{10, 60, 100}, seen)
}

func TestPollRenderFailure(t *testing.T) {
	r := &scriptedRenderer{statuses: []RenderStatus{{Status: "failed", Error: "bad shot"}}}

	_, err := PollRender(context.Background(), r, "r", time.Millisecond, time.Second, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad shot")
}

func TestPollRenderHonoursContext(t *testing.T) {
	r := &scriptedRenderer{statuses: []RenderStatus{{Status: "processing"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PollRender(ctx, r, "r", time.Hour, time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpeechTimingsSkipsSilentShots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req timingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "v1", req.VideoID)
		require.Len(t, req.Shots, 1)
		assert.Equal(t, 1, req.Shots[0].ShotIndex)
		_ = json.NewEncoder(w).Encode(timing.Narration{Shots: []timing.ShotAudio{{ShotIndex: 1, AudioDuration: 2}}})
	}))
	defer srv.Close()

	c := NewSpeechClient(&config.SpeechConfig{ServiceURL: srv.URL, Timeout: 5})
	require.NoError(t, c.HealthCheck(context.Background()))

	n, err := c.Timings(context.Background(), &manifest.Manifest{VideoID: "v1", Shots: []manifest.Shot{
		{Voiceover: "  "},
		{Voiceover: "Hello there"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n.Shots[0].ShotIndex)
}

func TestSpeechTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewSpeechClient(&config.SpeechConfig{ServiceURL: srv.URL, Timeout: 1})
	start := time.Now()
	_, err := c.Timings(context.Background(), &manifest.Manifest{VideoID: "v", Shots: []manifest.Shot{{Voiceover: "hi"}}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := ManifestKey("v1", "job-1")
	assert.Equal(t, "manifests/v1/job-1.json", key)

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	body := []byte(`{"video_id":"v1"}`)
	require.NoError(t, s.Put(ctx, key, body, "application/json"))
	body[0] = 'X'

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"video_id":"v1"}`, string(got))

	url, err := s.SignedURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://manifests/v1/job-1.json", url)
}
