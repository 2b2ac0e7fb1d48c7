package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FulfillmentRepo struct{ DB *pgxpool.Pool }

// MarkPaid: reaksi atas payment.confirmed — pending_payment -> processing,
// payment pending -> paid. Idempotent: order yang sudah paid dikembalikan
// apa adanya (event gateway bisa datang dobel).
func (r *FulfillmentRepo) MarkPaid(ctx context.Context, orderID string) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.PaymentStatus == PaymentPaid {
		return o, tx.Commit(ctx)
	}
	if o.Status != OrderPendingPayment {
		// payment nyusul setelah cancel/fail; biar caller yang memutuskan refund
		return Order{}, fmt.Errorf("%w: order %s is %s", ErrWrongState, orderID, o.Status)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status='processing', payment_status='paid', updated_at=$2
		WHERE id=$1`, orderID, now); err != nil {
		return Order{}, err
	}
	o.Status = OrderProcessing
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = now
	return o, tx.Commit(ctx)
}

// FulfillItem: pending -> fulfilled + unit terikat -> sold, satu transaksi.
// Precondition: order sudah paid dan processing/completed; caller harus
// seller pemilik unit, kecuali admin.
//
// payload kosong = pakai data tersimpan di ProductItem (jalur auto-delivery);
// payload terisi = seller kirim manual.
//
// Return kedua: true kalau transisi ini membuat seluruh order terminal
// (order dipromosikan ke completed dalam transaksi yang sama).
func (r *FulfillmentRepo) FulfillItem(ctx context.Context, orderItemID, callerID string, isAdmin bool, payload string) (OrderItem, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderItem{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := lockOrderItem(ctx, tx, orderItemID)
	if err != nil {
		return OrderItem{}, false, err
	}
	if !isAdmin && it.SellerID != callerID {
		return OrderItem{}, false, fmt.Errorf("%w: caller %s does not own seller %s", ErrForbidden, callerID, it.SellerID)
	}

	o, err := lockOrder(ctx, tx, it.OrderID)
	if err != nil {
		return OrderItem{}, false, err
	}
	if o.PaymentStatus != PaymentPaid || (o.Status != OrderProcessing && o.Status != OrderCompleted) {
		return OrderItem{}, false, fmt.Errorf("%w: order %s is %s/%s", ErrNotPayable, o.ID, o.Status, o.PaymentStatus)
	}

	switch it.Status {
	case LinePending:
	case LineFulfilled:
		return OrderItem{}, false, fmt.Errorf("%w: order item %s", ErrAlreadyFulfilled, orderItemID)
	default:
		return OrderItem{}, false, fmt.Errorf("%w: order item %s is %s", ErrWrongState, orderItemID, it.Status)
	}

	// kunci + baca unit terikat; payload default diambil dari sini
	var (
		itemStatus string
		itemData   string
	)
	err = tx.QueryRow(ctx, `SELECT status, data FROM product_items WHERE id=$1 FOR UPDATE`, it.ProductItemID).
		Scan(&itemStatus, &itemData)
	if err != nil {
		return OrderItem{}, false, err
	}
	if ItemStatus(itemStatus) != ItemPending {
		return OrderItem{}, false, fmt.Errorf("%w: product item %s is %s", ErrWrongState, it.ProductItemID, itemStatus)
	}
	if payload == "" {
		payload = itemData
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE order_items SET status='fulfilled', fulfillment_data=$2, fulfilled_at=$3
		WHERE id=$1`, orderItemID, payload, now); err != nil {
		return OrderItem{}, false, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE product_items SET status='sold', sold_at=$2, updated_at=$2
		WHERE id=$1`, it.ProductItemID, now); err != nil {
		return OrderItem{}, false, err
	}

	// promosi eager: kalau tidak ada line pending lagi, order selesai
	completed := false
	if o.Status == OrderProcessing {
		var remaining int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM order_items WHERE order_id=$1 AND status='pending'`, o.ID).Scan(&remaining); err != nil {
			return OrderItem{}, false, err
		}
		if remaining == 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status='completed', updated_at=$2 WHERE id=$1`, o.ID, now); err != nil {
				return OrderItem{}, false, err
			}
			completed = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderItem{}, false, err
	}
	it.Status = LineFulfilled
	it.FulfillmentData = &payload
	it.FulfilledAt = &now
	return it, completed, nil
}

// PendingLineIDs: line yang masih pending untuk satu order (dipakai jalur
// auto-fulfill di consumer payment).
func (r *FulfillmentRepo) PendingLineIDs(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM order_items WHERE order_id=$1 AND status='pending' ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CancelOrder: buyer (atau admin) membatalkan order yang belum dibayar.
// Seluruh efek Allocator dibalik persis di satu transaksi.
func (r *FulfillmentRepo) CancelOrder(ctx context.Context, orderID, callerID string, isAdmin bool) (Order, error) {
	return r.release(ctx, orderID, callerID, isAdmin, OrderCancelled, PaymentCancelled)
}

// Release: jalur sistem (payment failed/expired, sweeper TTL) — tanpa cek
// kepemilikan. finalStatus menentukan cancelled vs failed.
func (r *FulfillmentRepo) Release(ctx context.Context, orderID string, finalStatus OrderStatus, finalPayment PaymentStatus) (Order, error) {
	return r.release(ctx, orderID, "", true, finalStatus, finalPayment)
}

func (r *FulfillmentRepo) release(ctx context.Context, orderID, callerID string, isAdmin bool, finalStatus OrderStatus, finalPayment PaymentStatus) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !isAdmin && o.BuyerID != callerID {
		return Order{}, fmt.Errorf("%w: caller %s does not own order %s", ErrForbidden, callerID, orderID)
	}
	if o.Status != OrderPendingPayment || !CanTransitionOrder(o.Status, finalStatus) {
		// cancel atas order yang sudah cancelled = error bernama, bukan double-release
		return Order{}, fmt.Errorf("%w: order %s is %s", ErrWrongState, orderID, o.Status)
	}

	// kunci semua unit terikat dulu, baru mutasi
	rows, err := tx.Query(ctx, `
		SELECT pi.id FROM product_items pi
		JOIN order_items oi ON oi.product_item_id = pi.id
		WHERE oi.order_id=$1 AND oi.status='pending'
		FOR UPDATE OF pi`, orderID)
	if err != nil {
		return Order{}, err
	}
	var itemIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Order{}, err
		}
		itemIDs = append(itemIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE order_items SET status='cancelled' WHERE order_id=$1 AND status='pending'`, orderID); err != nil {
		return Order{}, err
	}
	// inverse persis dari alokasi: available lagi, ikatan dilepas
	if _, err := tx.Exec(ctx, `
		UPDATE product_items SET status='available', order_item_id=NULL, sold_at=NULL, updated_at=$2
		WHERE id = ANY($1)`, itemIDs, now); err != nil {
		return Order{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=$4 WHERE id=$1`,
		orderID, string(finalStatus), string(finalPayment), now); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Status = finalStatus
	o.PaymentStatus = finalPayment
	o.UpdatedAt = now
	return o, nil
}

// RefundItem: refund admin per line atas item yang sudah fulfilled.
// Hanya line target + unitnya yang dibalik; sibling dan total order tidak
// disentuh.
func (r *FulfillmentRepo) RefundItem(ctx context.Context, orderItemID, callerID string, isAdmin bool, notes string) (OrderItem, error) {
	if !isAdmin {
		return OrderItem{}, fmt.Errorf("%w: refund requires admin", ErrForbidden)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it, err := lockOrderItem(ctx, tx, orderItemID)
	if err != nil {
		return OrderItem{}, err
	}
	if it.Status != LineFulfilled {
		return OrderItem{}, fmt.Errorf("%w: order item %s is %s", ErrWrongState, orderItemID, it.Status)
	}
	if _, err := tx.Exec(ctx, `SELECT id FROM product_items WHERE id=$1 FOR UPDATE`, it.ProductItemID); err != nil {
		return OrderItem{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE order_items SET status='refunded', refund_notes=$2 WHERE id=$1`, orderItemID, notes); err != nil {
		return OrderItem{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE product_items SET status='available', order_item_id=NULL, sold_at=NULL, updated_at=$2
		WHERE id=$1`, it.ProductItemID, now); err != nil {
		return OrderItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderItem{}, err
	}
	it.Status = LineRefunded
	it.RefundNotes = &notes
	return it, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (Order, error) {
	var (
		o   Order
		ext *string
		s   string
		ps  string
	)
	err := tx.QueryRow(ctx, `
		SELECT id, external_id, buyer_id, total_cents, status, payment_status, created_at, updated_at
		FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &ext, &o.BuyerID, &o.TotalCents, &s, &ps, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	} else if err != nil {
		return Order{}, err
	}
	if ext != nil {
		o.ExternalID = *ext
	}
	o.Status = OrderStatus(s)
	o.PaymentStatus = PaymentStatus(ps)
	return o, nil
}

func lockOrderItem(ctx context.Context, tx pgx.Tx, orderItemID string) (OrderItem, error) {
	var (
		it OrderItem
		s  string
	)
	err := tx.QueryRow(ctx, `
		SELECT id, order_id, product_id, seller_id, product_item_id, price_cents, status, created_at
		FROM order_items WHERE id=$1 FOR UPDATE`, orderItemID).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SellerID, &it.ProductItemID, &it.PriceCents, &s, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, fmt.Errorf("%w: order item %s", ErrNotFound, orderItemID)
	} else if err != nil {
		return OrderItem{}, err
	}
	it.Status = OrderItemStatus(s)
	return it, nil
}
