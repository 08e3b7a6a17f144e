package metrics

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// Store is the embedded single-writer relational store for C10. Writes only
// ever happen from the pipeline worker (internal/session); UI-facing reads
// use a separate read-only connection to the same file (spec.md §4.10).
type Store struct {
	path  string
	write *sql.DB
	read  *sql.DB
	log   *daemonlog.Logger
}

// Open creates the database file (and parent directory) if needed, applies
// the schema, and seeds the single lifetime_stats row.
func Open(path string, logger *daemonlog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}

	write, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}
	// A single connection serializes writers the way the original's
	// Arc<Mutex<Connection>> does, without needing our own mutex.
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path))
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open metrics database (read-only): %w", err)
	}

	s := &Store{path: path, write: write, read: read, log: logger}
	if err := s.initSchema(); err != nil {
		write.Close()
		read.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.write.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply metrics schema: %w", err)
	}
	_, err := s.write.Exec(
		"INSERT OR IGNORE INTO lifetime_stats (id, last_updated) VALUES (1, ?)",
		float64(time.Now().Unix()),
	)
	if err != nil {
		return fmt.Errorf("seed lifetime_stats: %w", err)
	}
	return nil
}

// Close releases both connections.
func (s *Store) Close() error {
	writeErr := s.write.Close()
	readErr := s.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// SessionStart inserts a new sessions row and returns its id. Satisfies
// session.MetricsSink.
func (s *Store) SessionStart(startedAt time.Time) (int64, error) {
	res, err := s.write.Exec(
		"INSERT INTO sessions (start_time, typing_equiv_wpm) VALUES (?, ?)",
		float64(startedAt.Unix()), typingBaselineWPM,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// RecordSegment inserts a segments row under sessionID. Satisfies
// session.MetricsSink.
func (s *Store) RecordSegment(sessionID int64, text string, words int, durationSec float64, latency time.Duration, wpm float64) error {
	latencyMs := float64(latency.Microseconds()) / 1000.0
	_, err := s.write.Exec(
		`INSERT INTO segments (
			session_id, timestamp, duration_s, words, characters, text,
			stt_latency_ms, total_latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, float64(time.Now().Unix()), durationSec, words, len(text), text,
		latencyMs, latencyMs,
	)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// SessionEnd aggregates this session's segments into its sessions row, sets
// end_time/duration_s, and recomputes the lifetime aggregate (spec.md §4.10:
// "recomputed by aggregating sessions at the end of every session"). Satisfies
// session.MetricsSink.
func (s *Store) SessionEnd(sessionID int64, endedAt time.Time, usage session.ResourceUsage) error {
	var startUnix float64
	if err := s.write.QueryRow("SELECT start_time FROM sessions WHERE id = ?", sessionID).Scan(&startUnix); err != nil {
		return fmt.Errorf("load session start: %w", err)
	}
	durationS := endedAt.Sub(time.Unix(int64(startUnix), 0)).Seconds()

	rows, err := s.write.Query(
		"SELECT words, characters, duration_s, total_latency_ms FROM segments WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	defer rows.Close()

	var totalWords, totalChars, segmentCount int
	var totalSegDuration float64
	var latencies []float64
	for rows.Next() {
		var words, chars int
		var segDuration, latencyMs float64
		if err := rows.Scan(&words, &chars, &segDuration, &latencyMs); err != nil {
			return fmt.Errorf("scan segment: %w", err)
		}
		totalWords += words
		totalChars += chars
		totalSegDuration += segDuration
		latencies = append(latencies, latencyMs)
		segmentCount++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate segments: %w", err)
	}

	var wpm, avgSegWords, avgSegDuration float64
	if durationS > 0 {
		wpm = float64(totalWords) / (durationS / 60)
	}
	if segmentCount > 0 {
		avgSegWords = float64(totalWords) / float64(segmentCount)
		avgSegDuration = totalSegDuration / float64(segmentCount)
	}
	avgLatency, medianLatency, p95Latency := latencyStats(latencies)

	_, err = s.write.Exec(
		`UPDATE sessions SET
			end_time = ?, duration_s = ?, words_dictated = ?, characters_typed = ?,
			segments_processed = ?, wpm = ?, avg_latency_ms = ?, median_latency_ms = ?,
			p95_latency_ms = ?, avg_segment_words = ?, avg_segment_duration_s = ?,
			gpu_peak_mb = ?, gpu_mean_mb = ?, cpu_mean_percent = ?, cpu_peak_percent = ?
		WHERE id = ?`,
		float64(endedAt.Unix()), durationS, totalWords, totalChars,
		segmentCount, wpm, avgLatency, medianLatency, p95Latency,
		avgSegWords, avgSegDuration,
		usage.GPUPeakMB, usage.GPUMeanMB, usage.CPUMeanPercent, usage.CPUPeakPercent,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}

	if err := s.recalculateLifetimeStats(); err != nil {
		s.log.Warn("recalculate lifetime stats", "err", err)
	}
	return nil
}

// latencyStats returns (mean, median, p95) of a latency sample, 0 for an
// empty sample.
func latencyStats(vals []float64) (mean, median, p95 float64) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(len(sorted))
	median = percentile(sorted, 0.5)
	p95 = percentile(sorted, 0.95)
	return mean, median, p95
}

// percentile assumes sorted is already ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// recalculateLifetimeStats ports original_source's
// database.rs::recalculate_lifetime_stats verbatim (aggregate over every
// completed session, estimate time saved against the 40 WPM typing
// baseline).
func (s *Store) recalculateLifetimeStats() error {
	var totalWords, totalChars, totalSessions int
	var totalTimeMinutes, avgWPM, avgLatency float64
	var bestWPM sql.NullFloat64
	var bestWPMSession sql.NullInt64
	var lowestLatency sql.NullFloat64
	var lowestLatencySession sql.NullInt64

	row := s.write.QueryRow(`
		SELECT
			COALESCE(SUM(words_dictated), 0),
			COALESCE(SUM(characters_typed), 0),
			COUNT(*),
			COALESCE(SUM(duration_s) / 60.0, 0),
			COALESCE(AVG(wpm), 0),
			COALESCE(AVG(avg_latency_ms), 0),
			MAX(wpm),
			(SELECT id FROM sessions WHERE end_time IS NOT NULL ORDER BY wpm DESC LIMIT 1),
			MIN(avg_latency_ms),
			(SELECT id FROM sessions WHERE end_time IS NOT NULL AND avg_latency_ms > 0 ORDER BY avg_latency_ms ASC LIMIT 1)
		FROM sessions WHERE end_time IS NOT NULL`)
	if err := row.Scan(&totalWords, &totalChars, &totalSessions, &totalTimeMinutes, &avgWPM, &avgLatency,
		&bestWPM, &bestWPMSession, &lowestLatency, &lowestLatencySession); err != nil {
		return fmt.Errorf("aggregate sessions: %w", err)
	}

	var totalSegments int
	if err := s.write.QueryRow("SELECT COUNT(*) FROM segments").Scan(&totalSegments); err != nil {
		return fmt.Errorf("count segments: %w", err)
	}

	var timeSavedMinutes float64
	if avgWPM > typingBaselineWPM && totalWords > 0 {
		dictationTime := float64(totalWords) / avgWPM
		typingTime := float64(totalWords) / typingBaselineWPM
		timeSavedMinutes = typingTime - dictationTime
	}

	_, err := s.write.Exec(
		`UPDATE lifetime_stats SET
			total_words = ?, total_characters = ?, total_sessions = ?, total_time_minutes = ?,
			total_segments = ?, avg_wpm = ?, avg_latency_ms = ?, time_saved_minutes = ?,
			best_wpm_value = ?, best_wpm_session = ?, lowest_latency_ms = ?, lowest_latency_session = ?,
			last_updated = ?
		WHERE id = 1`,
		totalWords, totalChars, totalSessions, totalTimeMinutes,
		totalSegments, avgWPM, avgLatency, timeSavedMinutes,
		nullableFloat(bestWPM), nullableInt(bestWPMSession), nullableFloat(lowestLatency), nullableInt(lowestLatencySession),
		float64(time.Now().Unix()),
	)
	if err != nil {
		return fmt.Errorf("update lifetime_stats: %w", err)
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) interface{} {
	if !v.Valid {
		return 0.0
	}
	return v.Float64
}

func nullableInt(v sql.NullInt64) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Int64
}
