package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swictation/internal/daemonlog"
)

func TestNormalizedEditDistance(t *testing.T) {
	assert.InDelta(t, 3.0/7.0, normalizedEditDistance("kitten", "sitting"), 1e-9)
	assert.Equal(t, 0.0, normalizedEditDistance("hello", "hello"))
	assert.Equal(t, 0.0, normalizedEditDistance("", ""))
	assert.Equal(t, 1.0, normalizedEditDistance("abc", ""))
}

func TestNormalizedEditDistancePhoneticThreshold(t *testing.T) {
	dist := normalizedEditDistance("arkon", "archon")
	assert.Greater(t, dist, 0.3)
	assert.Less(t, dist, 0.4)
}

func TestPreserveCase(t *testing.T) {
	assert.Equal(t, "World", preserveCase("Hello", "world", CaseModePreserveInput))
	assert.Equal(t, "WORLD", preserveCase("HELLO", "world", CaseModePreserveInput))
	assert.Equal(t, "world", preserveCase("hello", "World", CaseModePreserveInput))
}

func newTestStore(t *testing.T) *CorrectionStore {
	t.Helper()
	dir := t.TempDir()
	return NewCorrectionStore(dir, 0.25, daemonlog.Default("test"))
}

func TestLearnThenApplyExactWord(t *testing.T) {
	// Learn() always stores new corrections with CaseModePreserveInput, so a
	// lowercase match produces a lowercase replacement; capitalization, if
	// any, is reapplied by a later pipeline stage, not here.
	s := newTestStore(t)
	_, err := s.Learn("gigaham", "gigaam", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)

	got := s.Apply("using gigaham for transcription", "secretary")
	assert.Equal(t, "using gigaam for transcription", got)
}

func TestLearnThenApplyExactPhrase(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Learn("sure tation", "swictation", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)

	got := s.Apply("start sure tation now", "secretary")
	assert.Equal(t, "start swictation now", got)
}

func TestApplyForcePatternCaseModeIgnoresInputCase(t *testing.T) {
	s := newTestStore(t)
	file := correctionsFile{Corrections: []Correction{{
		ID:        "fixed-id",
		Original:  "gigaham",
		Corrected: "GigaAM",
		Mode:      CorrectionModeAll,
		MatchType: MatchTypeExact,
		CaseMode:  CaseModeForcePattern,
	}}}
	require.NoError(t, s.saveFile(file))
	require.NoError(t, s.Reload())

	got := s.Apply("using GIGAHAM for transcription", "secretary")
	assert.Equal(t, "using GigaAM for transcription", got)
}

func TestApplyPhoneticWordMatch(t *testing.T) {
	// "arkon" vs "archon" has normalized edit distance ~0.333, so this test
	// needs a looser threshold than the 0.25 spec default to exercise the
	// phonetic-word match path.
	s := NewCorrectionStore(t.TempDir(), 0.4, daemonlog.Default("test"))
	_, err := s.Learn("archon", "Archon", CorrectionModeAll, MatchTypePhonetic)
	require.NoError(t, err)

	got := s.Apply("the arkon awoke", "secretary")
	assert.Equal(t, "the archon awoke", got)
}

func TestApplyRespectsMode(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Learn("func", "function", CorrectionModeCode, MatchTypeExact)
	require.NoError(t, err)

	assert.Equal(t, "write a func", s.Apply("write a func", "secretary"))
	assert.Equal(t, "write a function", s.Apply("write a func", "code"))
}

func TestLearnReplacesExistingCorrectionWithSameOriginalAndMode(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Learn("teh", "the", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)
	_, err = s.Learn("teh", "then", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "then", all[0].Corrected)
}

func TestDeleteRemovesCorrection(t *testing.T) {
	s := newTestStore(t)
	c, err := s.Learn("foo", "bar", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)

	require.NoError(t, s.Delete(c.ID))
	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteUnknownIDErrors(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.Delete("does-not-exist"))
}

func TestUsageCountsFlushAfterThreshold(t *testing.T) {
	s := newTestStore(t)
	c, err := s.Learn("gigaham", "GigaAM", CorrectionModeAll, MatchTypeExact)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		s.Apply("gigaham", "secretary")
	}
	assert.True(t, s.ShouldFlush())
	require.NoError(t, s.FlushUsageCounts())
	assert.False(t, s.ShouldFlush())

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, c.ID, all[0].ID)
	assert.EqualValues(t, 50, all[0].UseCount)
}

func TestApplyLeavesUnmatchedWordsUnchanged(t *testing.T) {
	s := newTestStore(t)
	got := s.Apply("nothing matches here", "secretary")
	assert.Equal(t, "nothing matches here", got)
}
