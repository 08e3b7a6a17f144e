package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.db")
	s, err := Open(path, daemonlog.Default("test"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsLifetimeStatsRow(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.GetLifetimeStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalWords)
	assert.Equal(t, 0, stats.TotalSessions)
}

func TestSessionStartRecordSegmentSessionEnd(t *testing.T) {
	s := newTestStore(t)
	start := time.Now().Add(-10 * time.Second)

	sessionID, err := s.SessionStart(start)
	require.NoError(t, err)
	assert.Greater(t, sessionID, int64(0))

	require.NoError(t, s.RecordSegment(sessionID, "hello world", 2, 2.0, 50*time.Millisecond, 60))
	require.NoError(t, s.RecordSegment(sessionID, "another segment here", 3, 3.0, 70*time.Millisecond, 60))

	require.NoError(t, s.SessionEnd(sessionID, start.Add(10*time.Second), session.ResourceUsage{
		GPUPeakMB: 512, GPUMeanMB: 400, CPUPeakPercent: 30, CPUMeanPercent: 20,
	}))

	segs, err := s.GetSessionSegments(sessionID)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "hello world", segs[0].Text)
	assert.Equal(t, 2, segs[0].Words)

	sessions, err := s.GetRecentSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 5, sessions[0].WordsDictated)
	assert.Equal(t, 2, sessions[0].SegmentsProcessed)
	assert.InDelta(t, 2.5, sessions[0].AvgSegmentDurationS, 0.001)
	assert.InDelta(t, 512, sessions[0].GPUPeakMB, 0.001)
	assert.InDelta(t, 20, sessions[0].CPUMeanPercent, 0.001)

	lifetime, err := s.GetLifetimeStats()
	require.NoError(t, err)
	assert.Equal(t, 5, lifetime.TotalWords)
	assert.Equal(t, 1, lifetime.TotalSessions)
	assert.Equal(t, 2, lifetime.TotalSegments)
}

func TestSearchTranscriptionsMatchesSubstring(t *testing.T) {
	s := newTestStore(t)
	sessionID, err := s.SessionStart(time.Now())
	require.NoError(t, err)

	require.NoError(t, s.RecordSegment(sessionID, "this is a test about coding", 6, 3, 10*time.Millisecond, 90))
	require.NoError(t, s.RecordSegment(sessionID, "some random text here", 4, 2, 10*time.Millisecond, 90))

	results, err := s.SearchTranscriptions("coding", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "coding")
}

func TestCleanupOldSegmentsLeavesRecentRows(t *testing.T) {
	s := newTestStore(t)
	sessionID, err := s.SessionStart(time.Now())
	require.NoError(t, err)
	require.NoError(t, s.RecordSegment(sessionID, "recent segment", 2, 1, 5*time.Millisecond, 60))

	deleted, err := s.CleanupOldSegments(90)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestDatabaseSizeMBIsPositive(t *testing.T) {
	s := newTestStore(t)
	sizeMB, err := s.DatabaseSizeMB()
	require.NoError(t, err)
	assert.Greater(t, sizeMB, 0.0)
}

func TestGetSessionsLastNDaysIncludesFreshSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SessionStart(time.Now())
	require.NoError(t, err)

	sessions, err := s.GetSessionsLastNDays(7)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
