package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcollins/quotesync/internal/logger"
	"github.com/rcollins/quotesync/internal/refresh"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), logger.NewWithWriter(io.Discard, slog.LevelDebug))
}

func TestStore_ExistsOnlyAfterFirstAppend(t *testing.T) {
	s := testStore(t)
	assert.False(t, s.Exists())

	require.NoError(t, s.Append(RunRecord{Category: "price", StartedBy: "scheduled", CompletedAt: time.Now(), Success: true}))

	assert.True(t, s.Exists())
}

func TestStore_LoadMissingFileReturnsEmpty(t *testing.T) {
	s := testStore(t)

	records, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_AppendAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	at := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(RunRecord{Category: "price", StartedBy: "scheduled", CompletedAt: at, Success: true}))
	require.NoError(t, s.Append(RunRecord{Category: "benchmark", StartedBy: "manual", CompletedAt: at.Add(time.Hour), Success: false}))

	records, err := s.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "price", records[0].Category)
	assert.True(t, records[0].CompletedAt.Equal(at))
	assert.False(t, records[1].Success)
}

func TestStore_LastSuccessfulRun(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record("price", refresh.TriggerScheduled, base, true))
	require.NoError(t, s.Record("price", refresh.TriggerScheduled, base.Add(24*time.Hour), true))
	require.NoError(t, s.Record("price", refresh.TriggerScheduled, base.Add(48*time.Hour), false))
	require.NoError(t, s.Record("price", refresh.TriggerManual, base.Add(72*time.Hour), true))
	require.NoError(t, s.Record("benchmark", refresh.TriggerScheduled, base.Add(96*time.Hour), true))

	last, ok := s.LastSuccessfulRun("price", refresh.TriggerScheduled)

	require.True(t, ok)
	// Failed and manual records never count; the newest successful
	// scheduled price record wins.
	assert.True(t, last.Equal(base.Add(24*time.Hour)))
}

func TestStore_LastSuccessfulRunNoMatch(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Record("benchmark", refresh.TriggerScheduled, time.Now(), true))

	_, ok := s.LastSuccessfulRun("price", refresh.TriggerScheduled)

	assert.False(t, ok)
}

func TestStore_LoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, logger.NewWithWriter(io.Discard, slog.LevelDebug))

	content := `{"category":"price","started_by":"scheduled","completed_at":"2026-02-01T18:00:00Z","success":true}
not json at all
{"category":"currency","started_by":"scheduled","completed_at":"2026-02-02T18:00:00Z","success":true}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, RunsFilename), []byte(content), 0644))

	records, err := s.Load()

	require.NoError(t, err)
	assert.Len(t, records, 2)
}
