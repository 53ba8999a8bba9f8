package audit

import (
	"context"
	"sync"
	"time"
)

// Record is one immutable audit entry per handled request.
type Record struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sink durably appends records. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// MemorySink keeps records in memory, newest last.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(ctx context.Context, rec Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// History returns up to limit records for actor, newest first.
func (s *MemorySink) History(ctx context.Context, actor string, limit int) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.records[i].Actor == actor {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}
