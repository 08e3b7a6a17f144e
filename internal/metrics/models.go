package metrics

import "time"

// SessionRecord mirrors one row of the sessions table.
type SessionRecord struct {
	ID                    int64
	StartTime             time.Time
	EndTime               *time.Time
	DurationS             float64
	ActiveTimeS           float64
	PauseTimeS            float64
	WordsDictated         int
	CharactersTyped       int
	SegmentsProcessed     int
	WPM                   float64
	TypingEquivWPM        float64
	AvgLatencyMs          float64
	MedianLatencyMs       float64
	P95LatencyMs          float64
	TransformationsCount  int
	KeyboardActionsCount  int
	AvgSegmentWords       float64
	AvgSegmentDurationS   float64
	GPUPeakMB             float64
	GPUMeanMB             float64
	CPUMeanPercent        float64
	CPUPeakPercent        float64
}

// SegmentRecord mirrors one row of the segments table.
type SegmentRecord struct {
	ID                   int64
	SessionID            int64
	Timestamp            time.Time
	DurationS            float64
	Words                int
	Characters           int
	Text                 string
	VADLatencyMs         float64
	AudioSaveLatencyMs   float64
	STTLatencyMs         float64
	TransformLatencyUs   float64
	InjectionLatencyMs   float64
	TotalLatencyMs       float64
	TransformationsCount int
	KeyboardActionsCount int
}

// LifetimeStats mirrors the single lifetime_stats row.
type LifetimeStats struct {
	TotalWords            int
	TotalCharacters       int
	TotalSessions         int
	TotalTimeMinutes      float64
	TotalSegments         int
	AvgWPM                float64
	AvgLatencyMs          float64
	TypingEquivWPM        float64
	SpeedupFactor         float64
	TimeSavedMinutes      float64
	WPMTrend7Day          float64
	LatencyTrend7Day      float64
	CUDAErrorsTotal       int
	CUDAErrorsRecovered   int
	MemoryPressureEvents  int
	HighLatencyWarnings   int
	BestWPMSession        *int64
	BestWPMValue          float64
	LongestSessionWords   int
	LongestSessionID      *int64
	LowestLatencySession  *int64
	LowestLatencyMs       float64
	LastUpdated           *time.Time
}
