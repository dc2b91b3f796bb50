package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Repo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

const orderCols = `id, user_id, customer_name, customer_email, customer_phone,
	fulfillment, status, payment_method, payment_status,
	subtotal, tax, total,
	COALESCE(pickup_date,''), COALESCE(pickup_time,''),
	COALESCE(delivery_address,''), COALESCE(notes,''), COALESCE(cancellation_reason,''),
	created_at, updated_at`

// SubmitTx is the atomic submission: inside one transaction it re-validates
// every requested quantity against live stock (row locked), decrements stock,
// and inserts the order with its items. Any shortfall rolls the whole thing
// back and returns the full conflict list so the caller can show all problems
// at once.
func (r *Repo) SubmitTx(ctx context.Context, o *Order) ([]InventoryConflict, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var conflicts []InventoryConflict
	for _, it := range o.Items {
		p := Product{ID: it.ProductID}
		err := tx.QueryRow(ctx, `
			SELECT stock_quantity, COALESCE(min_pre_order_quantity,0), COALESCE(max_pre_order_quantity,0)
			FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&p.Stock, &p.MinPreOrderQty, &p.MaxPreOrderQty)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if err := p.CheckPreOrderQty(it.Quantity); err != nil {
			return nil, err
		}
		if p.Stock < it.Quantity {
			conflicts = append(conflicts, InventoryConflict{
				ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock,
			})
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil // rollback via defer, nothing persisted
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, customer_name, customer_email, customer_phone,
			fulfillment, status, payment_method, payment_status,
			subtotal, tax, total,
			pickup_date, pickup_time, delivery_address, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,
			NULLIF($13,''), NULLIF($14,''), NULLIF($15,''), NULLIF($16,''), $17, $18)`,
		o.ID, o.UserID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Fulfillment, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.Subtotal, o.Tax, o.Total,
		o.PickupDate, o.PickupTime, o.DeliveryAddress, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, product_name, unit_price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity, it.Subtotal); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repo) ListAll(ctx context.Context) ([]*Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
}

// ListReadyPickups returns candidates for the no-show sweep: ready pickup
// orders that have a scheduled slot.
func (r *Repo) ListReadyPickups(ctx context.Context) ([]*Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders
		WHERE status=$1 AND fulfillment=$2 AND pickup_date IS NOT NULL AND pickup_time IS NOT NULL
		ORDER BY pickup_date, pickup_time`, StatusReady, FulfillmentPickup)
}

// list scans rows one by one; a malformed row is logged and skipped rather
// than failing the whole listing.
func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.Log.Warn("skipping malformed order row", zap.Error(err))
			continue
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatusCond is the conditional write behind every status transition:
// it only matches when the row still carries the status we validated against.
// Zero rows matched means a concurrent writer won; the caller gets
// ErrStatusConflict instead of a silent overwrite.
func (r *Repo) UpdateStatusCond(ctx context.Context, id string, from, to Status, reason string) (time.Time, error) {
	now := time.Now().UTC()
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3,
			cancellation_reason = COALESCE(NULLIF($4,''), cancellation_reason),
			updated_at=$5
		WHERE id=$1 AND status=$2`,
		id, from, to, reason, now)
	if err != nil {
		return time.Time{}, err
	}
	if ct.RowsAffected() == 0 {
		return time.Time{}, ErrStatusConflict
	}
	return now, nil
}

func (r *Repo) UpdatePickupSlot(ctx context.Context, id, date, tm string) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET pickup_date=$2, pickup_time=$3, updated_at=now() WHERE id=$1`,
		id, date, tm)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// PickupSlotCounts maps "15:04" slot times to the number of active pickup
// orders already holding them on the given date.
func (r *Repo) PickupSlotCounts(ctx context.Context, date string) (map[string]int, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT pickup_time, COUNT(*) FROM orders
		WHERE fulfillment=$1 AND pickup_date=$2 AND status NOT IN ($3,$4)
		GROUP BY pickup_time`,
		FulfillmentPickup, date, StatusCompleted, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var tm string
		var n int
		if err := rows.Scan(&tm, &n); err != nil {
			return nil, err
		}
		out[tm] = n
	}
	return out, rows.Err()
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity, subtotal
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Fulfillment, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.Subtotal, &o.Tax, &o.Total,
		&o.PickupDate, &o.PickupTime,
		&o.DeliveryAddress, &o.Notes, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
