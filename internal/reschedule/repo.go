package reschedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// LogEntry mirrors one row of pickup_reschedule_log. Rows exist for failed
// attempts too; the table doubles as the audit trail and the data source for
// the duplicate-slot and daily-limit checks.
type LogEntry struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	RequestedRole string        `json:"requested_by_role"`
	OriginalDate  string        `json:"original_date"`
	OriginalTime  string        `json:"original_time"`
	NewDate       string        `json:"new_date"`
	NewTime       string        `json:"new_time"`
	Reason        string        `json:"reason,omitempty"`
	Status        AttemptStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) Insert(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO pickup_reschedule_log(id, order_id, user_id, requested_by_role,
			original_date, original_time, new_date, new_time,
			reason, status, failure_reason, created_at)
		VALUES ($1,$2,$3,$4, NULLIF($5,''), NULLIF($6,''), $7, $8,
			NULLIF($9,''), $10, NULLIF($11,''), $12)`,
		e.ID, e.OrderID, e.UserID, e.RequestedRole,
		e.OriginalDate, e.OriginalTime, e.NewDate, e.NewTime,
		e.Reason, e.Status, e.FailureReason, e.CreatedAt)
	return err
}

// SuccessfulSlotExists is the duplicate-slot guard: has a successful
// reschedule already targeted this exact slot for this order?
func (r *Repo) SuccessfulSlotExists(ctx context.Context, orderID, date, tm string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM pickup_reschedule_log
			WHERE order_id=$1 AND new_date=$2 AND new_time=$3 AND status=$4)`,
		orderID, date, tm, AttemptSuccess).Scan(&exists)
	return exists, err
}

// CountToday counts successful reschedules for the order since local midnight.
func (r *Repo) CountToday(ctx context.Context, orderID string, now time.Time) (int, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM pickup_reschedule_log
		WHERE order_id=$1 AND status=$2 AND created_at >= $3`,
		orderID, AttemptSuccess, dayStart).Scan(&n)
	return n, err
}

// LatestSuccessSince returns the timestamp of the newest successful reschedule
// inside the window, if any.
func (r *Repo) LatestSuccessSince(ctx context.Context, orderID string, since time.Time) (*time.Time, error) {
	var ts time.Time
	err := r.DB.QueryRow(ctx, `
		SELECT created_at FROM pickup_reschedule_log
		WHERE order_id=$1 AND status=$2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`,
		orderID, AttemptSuccess, since).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
