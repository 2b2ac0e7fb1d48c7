package market

type ProductStatus string

const (
	ProductDraft           ProductStatus = "draft"
	ProductPendingApproval ProductStatus = "pending_approval"
	ProductActive          ProductStatus = "active"
	ProductRejected        ProductStatus = "rejected"
	ProductArchived        ProductStatus = "archived"
)

var validNextProduct = map[ProductStatus]map[ProductStatus]bool{
	ProductDraft:           {ProductPendingApproval: true, ProductArchived: true},
	ProductPendingApproval: {ProductActive: true, ProductRejected: true},
	ProductActive:          {ProductArchived: true},
	ProductRejected:        {ProductPendingApproval: true, ProductArchived: true},
	ProductArchived:        {},
}

func CanTransitionProduct(from, to ProductStatus) bool {
	return validNextProduct[from][to]
}

type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemPending   ItemStatus = "pending"
	ItemSold      ItemStatus = "sold"
	ItemDisabled  ItemStatus = "disabled"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderProcessing     OrderStatus = "processing"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
	OrderFailed         OrderStatus = "failed"
)

// Status order hanya maju, kecuali cancel dari pending_payment.
var validNextOrder = map[OrderStatus]map[OrderStatus]bool{
	OrderPendingPayment: {OrderProcessing: true, OrderCancelled: true, OrderFailed: true},
	OrderProcessing:     {OrderCompleted: true},
	OrderCompleted:      {},
	OrderCancelled:      {},
	OrderFailed:         {},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	return validNextOrder[from][to]
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

type OrderItemStatus string

const (
	LinePending   OrderItemStatus = "pending"
	LineFulfilled OrderItemStatus = "fulfilled"
	LineCancelled OrderItemStatus = "cancelled"
	LineRefunded  OrderItemStatus = "refunded"
)

// Terminal: tidak ada transisi keluar lagi kecuali refund atas fulfilled.
func (s OrderItemStatus) Terminal() bool {
	return s == LineFulfilled || s == LineCancelled || s == LineRefunded
}
