package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Supplemented beyond spec.md's Data Model: the original's read surface for
// the companion UI process (get_recent_sessions, get_session_segments,
// search_transcriptions, get_lifetime_stats, get_sessions_last_n_days,
// cleanup_old_segments, get_database_size_mb) is carried over verbatim
// since spec.md's Non-goals never exclude it and an always-resident daemon
// with a metrics store needs a read path for it - see
// original_source/.../database.rs.

// GetLifetimeStats returns the single lifetime_stats row.
func (s *Store) GetLifetimeStats() (LifetimeStats, error) {
	row := s.read.QueryRow(`SELECT
		total_words, total_characters, total_sessions, total_time_minutes, total_segments,
		avg_wpm, avg_latency_ms, typing_equiv_wpm, speedup_factor, time_saved_minutes,
		wpm_trend_7day, latency_trend_7day, cuda_errors_total, cuda_errors_recovered,
		memory_pressure_events, high_latency_warnings, best_wpm_session, best_wpm_value,
		longest_session_words, longest_session_id, lowest_latency_session, lowest_latency_ms,
		last_updated
		FROM lifetime_stats WHERE id = 1`)

	var st LifetimeStats
	var bestWPMSession, longestSessionID, lowestLatencySession, longestSessionWords sql.NullInt64
	var lastUpdated, bestWPMValue, lowestLatencyMs sql.NullFloat64
	err := row.Scan(
		&st.TotalWords, &st.TotalCharacters, &st.TotalSessions, &st.TotalTimeMinutes, &st.TotalSegments,
		&st.AvgWPM, &st.AvgLatencyMs, &st.TypingEquivWPM, &st.SpeedupFactor, &st.TimeSavedMinutes,
		&st.WPMTrend7Day, &st.LatencyTrend7Day, &st.CUDAErrorsTotal, &st.CUDAErrorsRecovered,
		&st.MemoryPressureEvents, &st.HighLatencyWarnings, &bestWPMSession, &bestWPMValue,
		&longestSessionWords, &longestSessionID, &lowestLatencySession, &lowestLatencyMs,
		&lastUpdated,
	)
	if err != nil {
		return LifetimeStats{}, fmt.Errorf("load lifetime stats: %w", err)
	}
	// These columns have no default and stay NULL until set; NULL reads as 0.
	st.BestWPMValue = bestWPMValue.Float64
	st.LongestSessionWords = int(longestSessionWords.Int64)
	st.LowestLatencyMs = lowestLatencyMs.Float64
	st.BestWPMSession = nullInt64Ptr(bestWPMSession)
	st.LongestSessionID = nullInt64Ptr(longestSessionID)
	st.LowestLatencySession = nullInt64Ptr(lowestLatencySession)
	if lastUpdated.Valid {
		t := time.Unix(int64(lastUpdated.Float64), 0)
		st.LastUpdated = &t
	}
	return st, nil
}

// GetRecentSessions returns the most recent sessions, newest first.
func (s *Store) GetRecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.read.Query(`SELECT
		id, start_time, end_time, duration_s, active_time_s, pause_time_s, words_dictated,
		characters_typed, segments_processed, wpm, typing_equiv_wpm, avg_latency_ms,
		median_latency_ms, p95_latency_ms, transformations_count, keyboard_actions_count,
		avg_segment_words, avg_segment_duration_s, gpu_peak_mb, gpu_mean_mb, cpu_mean_percent,
		cpu_peak_percent
		FROM sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// GetSessionsLastNDays returns every session started within the last n days,
// ascending by start time (for trend charts).
func (s *Store) GetSessionsLastNDays(days int) ([]SessionRecord, error) {
	cutoff := float64(time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix())
	rows, err := s.read.Query(`SELECT
		id, start_time, end_time, duration_s, active_time_s, pause_time_s, words_dictated,
		characters_typed, segments_processed, wpm, typing_equiv_wpm, avg_latency_ms,
		median_latency_ms, p95_latency_ms, transformations_count, keyboard_actions_count,
		avg_segment_words, avg_segment_duration_s, gpu_peak_mb, gpu_mean_mb, cpu_mean_percent,
		cpu_peak_percent
		FROM sessions WHERE start_time >= ? ORDER BY start_time ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query sessions by day range: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]SessionRecord, error) {
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startUnix float64
		var endUnix sql.NullFloat64
		// The REAL summary columns stay NULL until SessionEnd fills them
		// (active_time_s and pause_time_s are never filled); NULL reads as 0.
		reals := []*float64{
			&rec.DurationS, &rec.ActiveTimeS, &rec.PauseTimeS, &rec.WPM, &rec.TypingEquivWPM, &rec.AvgLatencyMs,
			&rec.MedianLatencyMs, &rec.P95LatencyMs, &rec.AvgSegmentWords, &rec.AvgSegmentDurationS,
			&rec.GPUPeakMB, &rec.GPUMeanMB, &rec.CPUMeanPercent, &rec.CPUPeakPercent,
		}
		n := make([]sql.NullFloat64, len(reals))
		if err := rows.Scan(
			&rec.ID, &startUnix, &endUnix, &n[0], &n[1], &n[2], &rec.WordsDictated,
			&rec.CharactersTyped, &rec.SegmentsProcessed, &n[3], &n[4], &n[5],
			&n[6], &n[7], &rec.TransformationsCount, &rec.KeyboardActionsCount,
			&n[8], &n[9], &n[10], &n[11], &n[12],
			&n[13],
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		for i, p := range reals {
			*p = n[i].Float64
		}
		rec.StartTime = time.Unix(int64(startUnix), 0)
		if endUnix.Valid {
			t := time.Unix(int64(endUnix.Float64), 0)
			rec.EndTime = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSessionSegments returns every segment recorded for a session, in
// recording order.
func (s *Store) GetSessionSegments(sessionID int64) ([]SegmentRecord, error) {
	rows, err := s.read.Query(segmentSelectCols+" FROM segments WHERE session_id = ? ORDER BY timestamp ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session segments: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// SearchTranscriptions does a simple substring search over recorded segment
// text (original_source's LIKE-based fallback; no FTS table in this port).
func (s *Store) SearchTranscriptions(query string, limit int) ([]SegmentRecord, error) {
	rows, err := s.read.Query(segmentSelectCols+" FROM segments WHERE text LIKE ? ORDER BY timestamp DESC LIMIT ?",
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search transcriptions: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// RecordSegment never fills the vad/audio_save/transform/injection latency
// columns, so they are read through COALESCE as 0 rather than NULL.
const segmentSelectCols = `SELECT
	id, session_id, timestamp, duration_s, words, characters, text,
	COALESCE(vad_latency_ms, 0), COALESCE(audio_save_latency_ms, 0), stt_latency_ms, COALESCE(transform_latency_us, 0),
	COALESCE(injection_latency_ms, 0), total_latency_ms, transformations_count, keyboard_actions_count`

func scanSegments(rows *sql.Rows) ([]SegmentRecord, error) {
	var out []SegmentRecord
	for rows.Next() {
		var rec SegmentRecord
		var ts float64
		var text sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &ts, &rec.DurationS, &rec.Words, &rec.Characters, &text,
			&rec.VADLatencyMs, &rec.AudioSaveLatencyMs, &rec.STTLatencyMs, &rec.TransformLatencyUs,
			&rec.InjectionLatencyMs, &rec.TotalLatencyMs, &rec.TransformationsCount, &rec.KeyboardActionsCount,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		rec.Timestamp = time.Unix(int64(ts), 0)
		rec.Text = text.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CleanupOldSegments deletes segment rows older than the given number of
// days and returns the number of rows removed, bounding database growth
// (spec.md §4.10's stability guarantee is about schema, not row count; the
// original caps size the same way).
func (s *Store) CleanupOldSegments(days int) (int64, error) {
	cutoff := float64(time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix())
	res, err := s.write.Exec("DELETE FROM segments WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old segments: %w", err)
	}
	return res.RowsAffected()
}

// DatabaseSizeMB reports the on-disk size of the metrics file.
func (s *Store) DatabaseSizeMB() (float64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("stat metrics database: %w", err)
	}
	return float64(info.Size()) / (1024 * 1024), nil
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
