package market

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidDemand      = errors.New("invalid demand")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotPayable         = errors.New("order not payable")
	ErrAlreadyFulfilled   = errors.New("order item already fulfilled")
	ErrWrongState         = errors.New("wrong state")
)

// ShortfallDetail menyebut baris mana yang kurang stok (user harus tahu
// product mana yang gagal, bukan cuma "kurang").
type ShortfallDetail struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type InsufficientStockError struct {
	Details []ShortfallDetail
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("product %s: requested %d, available %d", d.ProductID, d.Requested, d.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// Is: supaya errors.Is(err, ErrInsufficientStock) tetap jalan
// meski caller tidak peduli detailnya.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
