package restock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andrewkhoh/farmstand-orders/internal/orders"
)

type RestorationType string

const (
	TypeOrderCancellation RestorationType = "order_cancellation"
	TypeEmergency         RestorationType = "emergency"
)

// LogEntry mirrors one row of stock_restoration_logs: one append-only record
// per (order, product) restoration event.
type LogEntry struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id,omitempty"`
	ProductID        string          `json:"product_id"`
	PreviousStock    int             `json:"previous_stock"`
	NewStock         int             `json:"new_stock"`
	QuantityRestored int             `json:"quantity_restored"`
	Type             RestorationType `json:"restoration_type"`
	OperatorID       string          `json:"operator_id,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type RestoredItem struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
}

type Repo struct {
	DB *pgxpool.Pool
}

// CompletedRestorationExists is the idempotence check: a completed log row for
// the order means its stock has already been put back.
func (r *Repo) CompletedRestorationExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM stock_restoration_logs WHERE order_id=$1 AND status='completed')`,
		orderID).Scan(&exists)
	return exists, err
}

// RestoreItems puts back every line item's quantity in a single transaction:
// either all increments and log rows commit together or none do.
func (r *Repo) RestoreItems(ctx context.Context, orderID string, items []orders.OrderItem, typ RestorationType) ([]RestoredItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]RestoredItem, 0, len(items))
	for _, it := range items {
		restored, err := restoreOne(ctx, tx, orderID, it.ProductID, it.Quantity, typ, "", "")
		if err != nil {
			return nil, &orders.ItemRestoreError{ProductID: it.ProductID, Err: err}
		}
		out = append(out, restored)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// RestoreProduct is the single-item primitive, used for manual corrections and
// emergency restorations.
func (r *Repo) RestoreProduct(ctx context.Context, productID string, qty int, orderID string, typ RestorationType, operatorID, reason string) (RestoredItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return RestoredItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	restored, err := restoreOne(ctx, tx, orderID, productID, qty, typ, operatorID, reason)
	if err != nil {
		return RestoredItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return RestoredItem{}, err
	}
	return restored, nil
}

func restoreOne(ctx context.Context, tx pgx.Tx, orderID, productID string, qty int, typ RestorationType, operatorID, reason string) (RestoredItem, error) {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return RestoredItem{}, orders.ErrProductNotFound
	}
	if err != nil {
		return RestoredItem{}, err
	}

	newStock := stock + qty
	if _, err := tx.Exec(ctx,
		`UPDATE products SET stock_quantity=$2, updated_at=now() WHERE id=$1`,
		productID, newStock); err != nil {
		return RestoredItem{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_restoration_logs(id, order_id, product_id, previous_stock, new_stock,
			quantity_restored, restoration_type, operator_id, reason, status, created_at)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), 'completed', now())`,
		uuid.NewString(), orderID, productID, stock, newStock, qty, typ, operatorID, reason); err != nil {
		return RestoredItem{}, err
	}
	return RestoredItem{ProductID: productID, Quantity: qty, PreviousStock: stock, NewStock: newStock}, nil
}

// ListByOrder returns the audit trail for one order.
func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]LogEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(order_id,''), product_id, previous_stock, new_stock,
			quantity_restored, restoration_type, COALESCE(operator_id,''), COALESCE(reason,''), created_at
		FROM stock_restoration_logs WHERE order_id=$1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ProductID, &e.PreviousStock, &e.NewStock,
			&e.QuantityRestored, &e.Type, &e.OperatorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
