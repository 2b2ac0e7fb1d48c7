package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

// picked = satu unit yang sudah terkunci FOR UPDATE, siap diikat ke OrderItem.
type picked struct {
	itemID     string
	productID  string
	sellerID   string
	priceCents int
}

// CreateOrder: resolve cart buyer -> alokasi unit inventory -> Order + OrderItems,
// semua dalam SATU transaksi. Idempotent via external_id (opsional, seperti
// idempotency order di API lama).
//
// Locking read (FOR UPDATE) di product_items men-serialize allocator yang
// rebutan stok product yang sama: loser nunggu commit/rollback winner, lalu
// melihat sisa available yang sudah berkurang.
//
// Gagal di baris mana pun = rollback total; tidak ada reservasi parsial.
func (r *OrderRepo) CreateOrder(ctx context.Context, buyerID, externalID string) (Order, []OrderItem, bool, error) {
	if buyerID == "" {
		return Order{}, nil, false, fmt.Errorf("%w: missing buyer id", ErrInvalidDemand)
	}

	// cek existing by external_id (di luar tx, DB tetap jadi kebenaran)
	if externalID != "" {
		var existingID string
		err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id=$1`, externalID).Scan(&existingID)
		if err == nil {
			o, items, gerr := r.GetOrder(ctx, existingID)
			return o, items, true, gerr
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, false, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) resolve demand dari cart
	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM cart_items
		WHERE buyer_id=$1 ORDER BY created_at, id`, buyerID)
	if err != nil {
		return Order{}, nil, false, err
	}
	var demands []Demand
	for rows.Next() {
		var d Demand
		if err := rows.Scan(&d.ProductID, &d.Qty); err != nil {
			rows.Close()
			return Order{}, nil, false, err
		}
		demands = append(demands, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, nil, false, err
	}
	if len(demands) == 0 {
		return Order{}, nil, false, ErrEmptyCart
	}

	// 2) per demand: cek product active + kunci N unit tertua yang available.
	// Semua line dikunci dulu sebelum mutasi apa pun (all-or-nothing per Order).
	var (
		picks      []picked
		shortfalls []ShortfallDetail
		total      int
		productIDs []string
	)
	for _, d := range demands {
		if d.Qty <= 0 {
			return Order{}, nil, false, fmt.Errorf("%w: qty %d for product %s", ErrInvalidDemand, d.Qty, d.ProductID)
		}
		var (
			sellerID   string
			priceCents int
			pstatus    string
		)
		err := tx.QueryRow(ctx, `SELECT seller_id, price_cents, status FROM products WHERE id=$1`, d.ProductID).
			Scan(&sellerID, &priceCents, &pstatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, false, fmt.Errorf("%w: product %s", ErrProductUnavailable, d.ProductID)
		} else if err != nil {
			return Order{}, nil, false, err
		}
		if ProductStatus(pstatus) != ProductActive {
			return Order{}, nil, false, fmt.Errorf("%w: product %s is %s", ErrProductUnavailable, d.ProductID, pstatus)
		}

		// FIFO stok: unit paling tua dulu; id sebagai tie-break supaya urutan
		// kandidat stabil saat created_at tabrakan. SKIP LOCKED: allocator
		// yang kalah langsung ambil unit berikutnya, bukan antre di baris
		// yang sama (dan LIMIT + FOR UPDATE polos bisa balikin lebih sedikit
		// baris dari yang masih available setelah recheck).
		irows, err := tx.Query(ctx, `
			SELECT id FROM product_items
			WHERE product_id=$1 AND status='available'
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, d.ProductID, d.Qty)
		if err != nil {
			return Order{}, nil, false, err
		}
		var itemIDs []string
		for irows.Next() {
			var id string
			if err := irows.Scan(&id); err != nil {
				irows.Close()
				return Order{}, nil, false, err
			}
			itemIDs = append(itemIDs, id)
		}
		irows.Close()
		if err := irows.Err(); err != nil {
			return Order{}, nil, false, err
		}

		if len(itemIDs) < d.Qty {
			// kumpulkan semua kekurangan dulu biar response menyebut tiap line
			shortfalls = append(shortfalls, ShortfallDetail{
				ProductID: d.ProductID, Requested: d.Qty, Available: len(itemIDs),
			})
			continue
		}
		for _, itemID := range itemIDs {
			picks = append(picks, picked{itemID: itemID, productID: d.ProductID, sellerID: sellerID, priceCents: priceCents})
		}
		total += priceCents * d.Qty
		productIDs = append(productIDs, d.ProductID)
	}
	if len(shortfalls) > 0 {
		return Order{}, nil, false, &InsufficientStockError{Details: shortfalls} // rollback via defer
	}

	// 3) order dulu, lalu per unit: insert OrderItem + ikat ProductItem-nya
	// di loop yang sama (tidak ada pencocokan array-by-value setelah bulk op).
	now := time.Now().UTC()
	orderID := uuid.NewString()
	var extArg any
	if externalID != "" {
		extArg = externalID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, buyer_id, total_cents, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending_payment', 'pending', $5, $5)`,
		orderID, extArg, buyerID, total, now)
	if err != nil {
		return Order{}, nil, false, err
	}

	items := make([]OrderItem, 0, len(picks))
	for _, p := range picks {
		oiID := uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, seller_id, product_item_id, price_cents, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)`,
			oiID, orderID, p.productID, p.sellerID, p.itemID, p.priceCents, now)
		if err != nil {
			return Order{}, nil, false, err
		}
		ct, err := tx.Exec(ctx, `
			UPDATE product_items SET status='pending', order_item_id=$1, updated_at=$2
			WHERE id=$3 AND status='available'`, oiID, now, p.itemID)
		if err != nil {
			return Order{}, nil, false, err
		}
		if ct.RowsAffected() != 1 {
			// row sudah dikunci di atas; kalau sampai sini ada yang salah besar
			return Order{}, nil, false, fmt.Errorf("product item %s vanished during allocation", p.itemID)
		}
		items = append(items, OrderItem{
			ID: oiID, OrderID: orderID, ProductID: p.productID, SellerID: p.sellerID,
			ProductItemID: p.itemID, PriceCents: p.priceCents, Status: LinePending, CreatedAt: now,
		})
	}

	// 4) bersihkan cart untuk product yang sudah teralokasi
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE buyer_id=$1 AND product_id = ANY($2)`, buyerID, productIDs); err != nil {
		return Order{}, nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, false, err
	}
	return Order{
		ID: orderID, ExternalID: externalID, BuyerID: buyerID, TotalCents: total,
		Status: OrderPendingPayment, PaymentStatus: PaymentPending, CreatedAt: now, UpdatedAt: now,
	}, items, false, nil
}

func (r *OrderRepo) GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	var (
		o   Order
		ext *string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, external_id, buyer_id, total_cents, status, payment_status, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &ext, &o.BuyerID, &o.TotalCents, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	} else if err != nil {
		return Order{}, nil, err
	}
	if ext != nil {
		o.ExternalID = *ext
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, seller_id, product_item_id, price_cents, status,
		       fulfillment_data, fulfilled_at, refund_notes, created_at
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SellerID, &it.ProductItemID,
			&it.PriceCents, &it.Status, &it.FulfillmentData, &it.FulfilledAt, &it.RefundNotes, &it.CreatedAt); err != nil {
			return Order{}, nil, err
		}
		items = append(items, it)
	}
	return o, items, rows.Err()
}

func (r *OrderRepo) GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, PaymentStatus, error) {
	var s, ps string
	err := r.DB.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id=$1`, orderID).Scan(&s, &ps)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	} else if err != nil {
		return "", "", err
	}
	return OrderStatus(s), PaymentStatus(ps), nil
}

// ListExpiredPending: order pending_payment yang lebih tua dari TTL reservasi.
// Dipakai sweeper supaya stok pending tidak hilang selamanya kalau payment
// tidak pernah resolve.
func (r *OrderRepo) ListExpiredPending(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders
		WHERE status='pending_payment' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, time.Now().UTC().Add(-olderThan), limit)
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
