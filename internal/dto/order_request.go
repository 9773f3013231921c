package dto

type OrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
}

type OrderRequest struct {
	TransactionNumber string      `json:"transaction_number"`
	OrderItems        []OrderItem `json:"order_items" validate:"required,min=1,dive"`
}
