package market

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartRepo: demand pre-order milik satu buyer. Tidak ada locking lintas
// buyer di sini — baris cart cuma disentuh pemiliknya; kontensi stok baru
// terjadi di OrderRepo.CreateOrder.
type CartRepo struct{ DB *pgxpool.Pool }

// Put: set qty untuk (buyer, product); upsert, bukan penjumlahan, supaya
// retry dari client tidak menggandakan demand.
func (r *CartRepo) Put(ctx context.Context, buyerID, productID string, qty int) error {
	if buyerID == "" || productID == "" {
		return fmt.Errorf("%w: missing buyer or product id", ErrInvalidDemand)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidDemand, qty)
	}
	now := time.Now().UTC()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, buyer_id, product_id, qty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (buyer_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), buyerID, productID, qty, now)
	return err
}

func (r *CartRepo) Remove(ctx context.Context, buyerID, productID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE buyer_id=$1 AND product_id=$2`, buyerID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart line for product %s", ErrNotFound, productID)
	}
	return nil
}

func (r *CartRepo) List(ctx context.Context, buyerID string) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, buyer_id, product_id, qty, created_at, updated_at
		FROM cart_items WHERE buyer_id=$1 ORDER BY created_at, id`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var c CartItem
		if err := rows.Scan(&c.ID, &c.BuyerID, &c.ProductID, &c.Qty, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveDemand: bentuk (product, qty) yang dikonsumsi Allocator.
func (r *CartRepo) ResolveDemand(ctx context.Context, buyerID string) ([]Demand, error) {
	items, err := r.List(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	out := make([]Demand, 0, len(items))
	for _, it := range items {
		out = append(out, Demand{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out, nil
}

// Clear: dipakai di luar checkout (checkout sendiri menghapus cart di dalam
// transaksi alokasinya).
func (r *CartRepo) Clear(ctx context.Context, buyerID string, productIDs []string) error {
	if len(productIDs) == 0 {
		_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE buyer_id=$1`, buyerID)
		return err
	}
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE buyer_id=$1 AND product_id = ANY($2)`, buyerID, productIDs)
	return err
}
