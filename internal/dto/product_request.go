package dto

type ProductRequest struct {
	Title       string  `json:"title" form:"title" validate:"required"`
	Description string  `json:"detailedDescription" form:"detailedDescription"`
	Price       float64 `json:"price" form:"price" validate:"gte=0"`
	Colors      string  `json:"colors" form:"colors"`
	Category    string  `json:"category" form:"category"`
	Subcategory string  `json:"subcategory" form:"subcategory"`
	SKU         string  `json:"sku" form:"sku" validate:"required"`
	Stock       int64   `json:"stock" form:"stock" validate:"gte=0"`
	Country     string  `json:"country" form:"country"`
}

// CategoryID prefers the subcategory when both are given.
func (r ProductRequest) CategoryID() string {
	if r.Subcategory != "" {
		return r.Subcategory
	}
	return r.Category
}

type ProductUpdateRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"detailedDescription"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Colors      []string `json:"colors"`
	Category    *string  `json:"category"`
	Stock       *int64   `json:"stock" validate:"omitempty,gte=0"`
	Country     *string  `json:"country"`
}

type AssignCategoryRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
}

type ProductVerificationRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

type ProductSearchRequest struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
	Vendor   string
	Verified *bool
	Sort     string
}
