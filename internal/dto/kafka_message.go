package dto

type KafkaMessage struct {
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data"`
}

type StockUpdate struct {
	TransactionNumber string `json:"transaction_number"`
	Status            bool   `json:"status"`
}

type CategoryEvent struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Parent *string `json:"parent"`
	Level  int     `json:"level"`
	Path   string  `json:"path"`
}

type ProductCategoryEvent struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
}

type ProductStockEvent struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
	Stock    int64  `json:"stock"`
	Status   string `json:"status"`
}
