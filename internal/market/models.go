package market

import "time"

// Product: template jualan (nama + harga), tidak punya qty sendiri.
// Stok riil hidup di ProductItem.
type Product struct {
	ID         string
	SellerID   string
	Name       string
	PriceCents int
	Status     ProductStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductListing = Product + hitungan stok available (untuk katalog).
type ProductListing struct {
	Product
	Available int
}

// ProductItem: satu unit inventory sekali-pakai (satu akun, satu key,
// satu lisensi). Data = payload rahasia yang dikirim ke buyer saat fulfilled.
// OrderItemID terisi hanya selama unit terikat ke satu OrderItem aktif.
type ProductItem struct {
	ID          string
	ProductID   string
	SellerID    string
	Data        string
	Status      ItemStatus
	OrderItemID *string
	SoldAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem: demand pre-order, unik per (buyer, product).
// Boleh minta lebih dari stok yang ada; ditolak baru saat checkout.
type CartItem struct {
	ID        string
	BuyerID   string
	ProductID string
	Qty       int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Demand struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Order struct {
	ID            string
	ExternalID    string
	BuyerID       string
	TotalCents    int
	Status        OrderStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem selalu qty=1: cart qty N menghasilkan N OrderItem,
// masing-masing terikat 1:1 ke ProductItem berbeda.
// PriceCents = snapshot harga product saat alokasi.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	SellerID        string
	ProductItemID   string
	PriceCents      int
	Status          OrderItemStatus
	FulfillmentData *string
	FulfilledAt     *time.Time
	RefundNotes     *string
	CreatedAt       time.Time
}
