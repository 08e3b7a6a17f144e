package broadcast

// Frame is one line of the broadcast socket's newline-delimited JSON stream
// (spec.md §6). Type selects which of the remaining fields are meaningful;
// Timestamp holds either a float (seconds since epoch) or an "HH:MM:SS"
// string depending on Type, matching the wire table exactly.
type Frame struct {
	Type      string      `json:"type"`
	Timestamp interface{} `json:"timestamp,omitempty"`

	SessionID *int64 `json:"session_id,omitempty"`
	State     string `json:"state,omitempty"`

	Text      string  `json:"text,omitempty"`
	WPM       float64 `json:"wpm,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Words     int     `json:"words,omitempty"`

	Segments         int     `json:"segments,omitempty"`
	DurationS        float64 `json:"duration_s,omitempty"`
	GPUMemoryMB      float64 `json:"gpu_memory_mb,omitempty"`
	GPUMemoryPercent float64 `json:"gpu_memory_percent,omitempty"`
	CPUPercent       float64 `json:"cpu_percent,omitempty"`
}

const (
	typeSessionStart  = "session_start"
	typeSessionEnd    = "session_end"
	typeStateChange   = "state_change"
	typeTranscription = "transcription"
	typeMetricsUpdate = "metrics_update"
)

func sessionStartFrame(sessionID int64, at float64) Frame {
	return Frame{Type: typeSessionStart, SessionID: &sessionID, Timestamp: at}
}

func sessionEndFrame(sessionID int64, at float64) Frame {
	return Frame{Type: typeSessionEnd, SessionID: &sessionID, Timestamp: at}
}

func stateChangeFrame(state string, at float64) Frame {
	return Frame{Type: typeStateChange, State: state, Timestamp: at}
}

func transcriptionFrame(text, hms string, wpm, latencyMs float64, words int) Frame {
	return Frame{Type: typeTranscription, Text: text, Timestamp: hms, WPM: wpm, LatencyMs: latencyMs, Words: words}
}

// metricsUpdateFrame builds a resource/throughput snapshot frame. Its only
// producer is Hub.PublishMetricsUpdate, which no production code calls.
func metricsUpdateFrame(state string, sessionID *int64, segments, words int, wpm, durationS, latencyMs, gpuMB, gpuPercent, cpuPercent float64) Frame {
	return Frame{
		Type: typeMetricsUpdate, State: state, SessionID: sessionID,
		Segments: segments, Words: words, WPM: wpm, DurationS: durationS, LatencyMs: latencyMs,
		GPUMemoryMB: gpuMB, GPUMemoryPercent: gpuPercent, CPUPercent: cpuPercent,
	}
}
