package dto

import (
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
)

type CategoryResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Parent             *string           `json:"parent"`
	Children           []string          `json:"children"`
	Image              *domain.Image     `json:"image,omitempty"`
	IsActive           bool              `json:"isActive"`
	Level              int               `json:"level"`
	Path               string            `json:"path"`
	ProductCount       *int64            `json:"productCount,omitempty"`
	AssociatedProducts []ProductResponse `json:"associatedProducts,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type CategoryTreeNode struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Image              *domain.Image      `json:"image,omitempty"`
	Level              int                `json:"level"`
	Path               string             `json:"path"`
	ProductCount       int64              `json:"productCount"`
	AssociatedProducts []ProductResponse  `json:"associatedProducts"`
	Children           []CategoryTreeNode `json:"children,omitempty"`
}

func NewCategoryResponse(c domain.Category) CategoryResponse {
	res := CategoryResponse{
		ID:        c.ID.Hex(),
		Name:      c.Name,
		Children:  make([]string, 0, len(c.Children)),
		Image:     c.Image,
		IsActive:  c.IsActive,
		Level:     c.Level,
		Path:      c.Path,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}

	if !c.IsRoot() {
		parent := c.Parent.Hex()
		res.Parent = &parent
	}

	for _, child := range c.Children {
		res.Children = append(res.Children, child.Hex())
	}

	return res
}

func NewCategoryEvent(c domain.Category) CategoryEvent {
	res := NewCategoryResponse(c)
	return CategoryEvent{ID: res.ID, Name: res.Name, Parent: res.Parent, Level: res.Level, Path: res.Path}
}
