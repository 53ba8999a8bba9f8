package pgstore

import (
	"context"
	"fmt"

	"github.com/PaulFidika/meterkit/audit"
	"github.com/google/uuid"
)

// DefaultHistoryLimit is the page size of History when limit <= 0.
const DefaultHistoryLimit = 50

// ActivityStore appends audit records to activity_logs and reads them back.
type ActivityStore struct {
	db DB
}

func NewActivityStore(db DB) *ActivityStore { return &ActivityStore{db: db} }

// Write implements audit.Sink. Writing the same record id twice is a no-op,
// so queue retries after a committed insert succeed.
func (s *ActivityStore) Write(ctx context.Context, rec audit.Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		id = uuid.New()
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO activity_logs (id, request_id, action, actor, method, path, status, ip, user_agent, duration_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (id) DO NOTHING`,
		id, rec.RequestID, rec.Action, rec.Actor, rec.Method, rec.Path, rec.Status, rec.IP, rec.UserAgent, rec.DurationMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// History returns the actor's most recent records, newest first.
func (s *ActivityStore) History(ctx context.Context, actor string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, request_id, action, actor, method, path, status, ip, user_agent, duration_ms, created_at
		   FROM activity_logs WHERE actor=$1 ORDER BY created_at DESC LIMIT $2`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()
	out := make([]audit.Record, 0, limit)
	for rows.Next() {
		var r audit.Record
		var id uuid.UUID
		if err := rows.Scan(&id, &r.RequestID, &r.Action, &r.Actor, &r.Method, &r.Path, &r.Status, &r.IP, &r.UserAgent, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ID = id.String()
		out = append(out, r)
	}
	return out, rows.Err()
}
