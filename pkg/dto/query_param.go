package dto

import (
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Filter struct {
	Limit int    `query:"limit"`
	Page  int    `query:"page"`
	Q     string `query:"q"`
}

// Normalize fills in the default page and limit and caps the page size.
func (f *Filter) Normalize() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
}

func (f Filter) Skip() int64 {
	return int64(f.Page-1) * int64(f.Limit)
}

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortFeatured  ProductSort = "featured"
	SortPopular   ProductSort = "popular"
)

func ParseProductSort(value string) (ProductSort, error) {
	switch value {
	case "", "latest", string(SortNewest):
		return SortNewest, nil
	case string(SortPriceAsc), string(SortPriceDesc), string(SortFeatured), string(SortPopular):
		return ProductSort(value), nil
	}
	return "", errs.ErrInvalidSort
}

// VerifiedOnly reports whether the sort ranks verified products only.
func (s ProductSort) VerifiedOnly() bool {
	return s == SortFeatured || s == SortPopular
}

type ProductFilter struct {
	Filter
	// CategoryIDs restricts results to these categories; nil means the whole catalog.
	CategoryIDs []primitive.ObjectID
	MinPrice    *float64
	MaxPrice    *float64
	InStock     *bool
	Vendor      string
	// Verified must not be false when Sort is VerifiedOnly.
	Verified    *bool
	Sort        ProductSort
}

type ParentScope int

const (
	ParentAny ParentScope = iota
	ParentRoot
	ParentID
)

type CategoryFilter struct {
	Parent     ParentScope
	ParentID   primitive.ObjectID
	ActiveOnly bool
}
