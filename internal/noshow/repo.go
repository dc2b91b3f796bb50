package noshow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LogEntry mirrors one row of no_show_logs: the per-order record of an
// automated no-show action, written whether or not cancel/notify succeeded.
type LogEntry struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	PickupDate   string    `json:"pickup_date"`
	PickupTime   string    `json:"pickup_time"`
	GraceMinutes int       `json:"grace_minutes"`
	Cancelled    bool      `json:"cancelled"`
	Notified     bool      `json:"notified"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunSummary mirrors no_show_processing_logs: one row per sweep.
type RunSummary struct {
	ID         string    `json:"id"`
	Scanned    int       `json:"scanned"`
	Overdue    int       `json:"overdue"`
	Skipped    int       `json:"skipped"`
	Cancelled  int       `json:"cancelled"`
	Notified   int       `json:"notified"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) InsertNoShow(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO no_show_logs(id, order_id, user_id, pickup_date, pickup_time,
			grace_minutes, cancelled, notified, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NULLIF($9,''), $10)`,
		e.ID, e.OrderID, e.UserID, e.PickupDate, e.PickupTime,
		e.GraceMinutes, e.Cancelled, e.Notified, e.Error, e.CreatedAt)
	return err
}

func (r *Repo) InsertRun(ctx context.Context, s *RunSummary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO no_show_processing_logs(id, scanned, overdue, skipped, cancelled,
			notified, errors, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.ID, s.Scanned, s.Overdue, s.Skipped, s.Cancelled,
		s.Notified, s.Errors, s.StartedAt, s.FinishedAt)
	return err
}
