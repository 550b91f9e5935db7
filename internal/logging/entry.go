package logging

import "time"

// LogEntry is the archived form of one structured log record: a zap
// entry flattened to a JSON-serializable shape, the unit archive.go
// writes to and reads from an archive file.
type LogEntry struct {
	ID        uint64                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Source    string                 `json:"source,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// QueryOptions filters a search over one or more archive files.
type QueryOptions struct {
	Level     string
	Source    string
	RequestID string
	StartTime time.Time
	EndTime   time.Time
	Search    string
	Offset    int
	Limit     int
}
