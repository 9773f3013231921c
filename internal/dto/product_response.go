package dto

import (
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
)

type ProductResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"detailedDescription"`
	Price        float64        `json:"price"`
	Colors       []string       `json:"colors"`
	Photos       []domain.Image `json:"photos"`
	Thumbnail    string         `json:"thumbnail"`
	Category     string         `json:"category"`
	Vendor       string         `json:"vendor"`
	Stock        int64          `json:"stock"`
	SKU          string         `json:"sku"`
	Status       string         `json:"status"`
	Verified     bool           `json:"verified"`
	SoldCount    int64          `json:"soldCount"`
	Rating       float64        `json:"rating"`
	ReviewsCount int64          `json:"reviewsCount"`
	Country      string         `json:"country"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func NewProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.Hex(),
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		Colors:       p.Colors,
		Photos:       p.Photos,
		Thumbnail:    p.Thumbnail,
		Category:     p.Category.Hex(),
		Vendor:       p.Vendor,
		Stock:        p.Stock,
		SKU:          p.SKU,
		Status:       string(p.Status),
		Verified:     p.Verified,
		SoldCount:    p.SoldCount,
		Rating:       p.Rating,
		ReviewsCount: p.ReviewsCount,
		Country:      p.Country,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func NewProductResponses(products []domain.Product) []ProductResponse {
	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, NewProductResponse(p))
	}
	return res
}
