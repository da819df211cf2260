package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf, Service: "test"})

	l.Debug().Str(FieldVideoID, "v1").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry[FieldService])
	assert.Equal(t, "v1", entry[FieldVideoID])
	assert.Equal(t, "hello", entry["message"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}

func TestWithContextAddsJobID(t *testing.T) {
	var buf bytes.Buffer
	l := WithContext(ContextWithJobID(context.Background(), "job-1"), New(Config{Output: &buf}))

	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"job_id":"job-1"`)
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	AsynqLogger{L: New(Config{Output: &buf})}.Warn("queue ", "busy")
	assert.Contains(t, buf.String(), `"message":"queue busy"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
