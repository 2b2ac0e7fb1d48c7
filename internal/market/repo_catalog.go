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

type CatalogRepo struct{ DB *pgxpool.Pool }

func (r *CatalogRepo) CreateProduct(ctx context.Context, sellerID, name string, priceCents int) (Product, error) {
	if sellerID == "" || name == "" || priceCents <= 0 {
		return Product{}, fmt.Errorf("%w: seller, name and positive price required", ErrInvalidDemand)
	}
	now := time.Now().UTC()
	p := Product{
		ID: uuid.NewString(), SellerID: sellerID, Name: name, PriceCents: priceCents,
		Status: ProductDraft, CreatedAt: now, UpdatedAt: now,
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, seller_id, name, price_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.SellerID, p.Name, p.PriceCents, string(p.Status), now)
	return p, err
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID string) (Product, error) {
	var (
		p Product
		s string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, seller_id, name, price_cents, status, created_at, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &s, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	} else if err != nil {
		return Product{}, err
	}
	p.Status = ProductStatus(s)
	return p, nil
}

// SetProductStatus: seller pemilik atau admin; transisi harus legal
// (draft -> pending_approval -> active/rejected, dst).
func (r *CatalogRepo) SetProductStatus(ctx context.Context, productID, callerID string, isAdmin bool, next ProductStatus) (Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		sellerID string
		cur      string
	)
	err = tx.QueryRow(ctx, `SELECT seller_id, status FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&sellerID, &cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	} else if err != nil {
		return Product{}, err
	}
	if !isAdmin && sellerID != callerID {
		return Product{}, fmt.Errorf("%w: caller %s does not own product %s", ErrForbidden, callerID, productID)
	}
	if !CanTransitionProduct(ProductStatus(cur), next) {
		return Product{}, fmt.Errorf("%w: product %s cannot go %s -> %s", ErrWrongState, productID, cur, next)
	}
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE products SET status=$2, updated_at=$3 WHERE id=$1`, productID, string(next), now); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, productID)
}

// ListActive: katalog buyer — product active + jumlah unit available.
func (r *CatalogRepo) ListActive(ctx context.Context) ([]ProductListing, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.seller_id, p.name, p.price_cents, p.status, p.created_at, p.updated_at,
		       COUNT(pi.id) FILTER (WHERE pi.status = 'available') AS available
		FROM products p
		LEFT JOIN product_items pi ON pi.product_id = p.id
		WHERE p.status = 'active'
		GROUP BY p.id
		ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductListing
	for rows.Next() {
		var (
			l ProductListing
			s string
		)
		if err := rows.Scan(&l.ID, &l.SellerID, &l.Name, &l.PriceCents, &s, &l.CreatedAt, &l.UpdatedAt, &l.Available); err != nil {
			return nil, err
		}
		l.Status = ProductStatus(s)
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddItems: restock seller — bulk load unit inventory ke satu product.
// Tiap payload jadi satu unit available.
func (r *CatalogRepo) AddItems(ctx context.Context, productID, callerID string, isAdmin bool, payloads []string) ([]string, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: no item payloads", ErrInvalidDemand)
	}
	for _, d := range payloads {
		if d == "" {
			return nil, fmt.Errorf("%w: empty item payload", ErrInvalidDemand)
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		sellerID string
		status   string
	)
	err = tx.QueryRow(ctx, `SELECT seller_id, status FROM products WHERE id=$1`, productID).Scan(&sellerID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	} else if err != nil {
		return nil, err
	}
	if !isAdmin && sellerID != callerID {
		return nil, fmt.Errorf("%w: caller %s does not own product %s", ErrForbidden, callerID, productID)
	}
	if ProductStatus(status) == ProductArchived {
		return nil, fmt.Errorf("%w: product %s is archived", ErrWrongState, productID)
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(payloads))
	for _, data := range payloads {
		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_items(id, product_id, seller_id, data, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'available', $5, $5)`,
			id, productID, sellerID, data, now); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// DisableItem: seller menarik unit dari pool (typo di payload, credential
// bocor, dll). Hanya unit available yang boleh ditarik.
func (r *CatalogRepo) DisableItem(ctx context.Context, itemID, callerID string, isAdmin bool) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		sellerID string
		status   string
	)
	err = tx.QueryRow(ctx, `SELECT seller_id, status FROM product_items WHERE id=$1 FOR UPDATE`, itemID).
		Scan(&sellerID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: product item %s", ErrNotFound, itemID)
	} else if err != nil {
		return err
	}
	if !isAdmin && sellerID != callerID {
		return fmt.Errorf("%w: caller %s does not own item %s", ErrForbidden, callerID, itemID)
	}
	if ItemStatus(status) != ItemAvailable {
		return fmt.Errorf("%w: product item %s is %s", ErrWrongState, itemID, status)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE product_items SET status='disabled', updated_at=$2 WHERE id=$1`, itemID, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CountItems: hitungan per status untuk satu product (dipakai seller
// dashboard dan test invariant).
func (r *CatalogRepo) CountItems(ctx context.Context, productID string) (map[ItemStatus]int, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*) FROM product_items WHERE product_id=$1 GROUP BY status`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[ItemStatus]int{}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[ItemStatus(s)] = n
	}
	return out, rows.Err()
}
