package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const LowStockThreshold = 5

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

func StockStatusFor(stock int64) StockStatus {
	switch {
	case stock <= 0:
		return StockStatusOutOfStock
	case stock < LowStockThreshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"detailedDescription" json:"detailedDescription"`
	Price        float64            `bson:"price" json:"price"`
	Colors       []string           `bson:"colors" json:"colors"`
	Photos       []Image            `bson:"photos" json:"photos"`
	Thumbnail    string             `bson:"thumbnail" json:"thumbnail"`
	Category     primitive.ObjectID `bson:"category" json:"category"`
	Vendor       string             `bson:"vendor" json:"vendor"`
	Stock        int64              `bson:"stock" json:"stock"`
	SKU          string             `bson:"sku" json:"sku"`
	Status       StockStatus        `bson:"status" json:"status"`
	Verified     bool               `bson:"verified" json:"verified"`
	SoldCount    int64              `bson:"soldCount" json:"soldCount"`
	Rating       float64            `bson:"rating" json:"rating"`
	ReviewsCount int64              `bson:"reviewsCount" json:"reviewsCount"`
	Country      string             `bson:"country" json:"country"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p Product) IsLowStock() bool {
	return p.Stock < LowStockThreshold
}
