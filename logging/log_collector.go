package logging

import (
	"sync"
	"time"
)

// GeneralKey groups records that carry no operation attribute.
const GeneralKey = "general"

// LogEntry represents a single captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector keeps the most recent entries per operation.
type LogCollector struct {
	mu    sync.RWMutex
	limit int
	logs  map[string][]LogEntry
}

// NewLogCollector creates a LogCollector keeping at most limit entries per
// operation. A limit of zero or less keeps everything.
func NewLogCollector(limit int) *LogCollector {
	return &LogCollector{
		limit: limit,
		logs:  make(map[string][]LogEntry),
	}
}

// AddLog appends an entry, dropping the oldest one for key when over the limit.
func (c *LogCollector) AddLog(key string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logs := append(c.logs[key], entry)
	if c.limit > 0 && len(logs) > c.limit {
		logs = append([]LogEntry(nil), logs[len(logs)-c.limit:]...)
	}
	c.logs[key] = logs
}

// GetLogs returns a copy of the entries recorded for key.
func (c *LogCollector) GetLogs(key string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, ok := c.logs[key]
	if !ok {
		return nil
	}
	result := make([]LogEntry, len(logs))
	copy(result, logs)
	return result
}

// GetAllLogs returns a copy of every entry grouped by operation.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.logs))
	for key, logs := range c.logs {
		logsCopy := make([]LogEntry, len(logs))
		copy(logsCopy, logs)
		result[key] = logsCopy
	}
	return result
}

// Clear removes all stored entries.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = make(map[string][]LogEntry)
}
