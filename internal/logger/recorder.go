package logger

import (
	"encoding/json"
)

const defaultBufferSize = 500

// LogEntry is a parsed log line kept for the recent-logs endpoint.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder implements io.Writer and keeps the most recent zerolog entries.
type Recorder struct {
	buffer *RingBuffer[LogEntry]
}

// NewRecorder creates a recorder holding at most bufferSize entries.
func NewRecorder(bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Recorder{buffer: NewRingBuffer[LogEntry](bufferSize)}
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (r *Recorder) Write(p []byte) (n int, err error) {
	n = len(p)

	entry, parseErr := parseLogEntry(p)
	if parseErr != nil {
		return n, nil //nolint:nilerr // malformed entries are dropped
	}

	r.buffer.Push(entry)
	return n, nil
}

// RecentLogs returns all buffered log entries, oldest first.
func (r *Recorder) RecentLogs() []LogEntry {
	return r.buffer.Last(0)
}

func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{}

	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}

	if len(raw) > 0 {
		entry.Fields = raw
	}

	return entry, nil
}
