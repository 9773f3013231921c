package service

import (
	"context"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/segmentio/kafka-go"
)

type CategoryService interface {
	AddCategory(ctx context.Context, actor domain.Actor, req dto.CategoryRequest) (res dto.CategoryResponse, err error)
	GetCategoryByID(ctx context.Context, id string) (res dto.CategoryResponse, err error)
	GetCategories(ctx context.Context, req dto.CategoryListRequest) (res []dto.CategoryResponse, err error)
	GetCategoryTree(ctx context.Context, rootID string) (res []dto.CategoryTreeNode, err error)
	UpdateCategory(ctx context.Context, actor domain.Actor, id string, req dto.CategoryUpdateRequest) (res dto.CategoryResponse, err error)
	DeleteCategory(ctx context.Context, actor domain.Actor, id string) (err error)
	ListDescendantCategories(ctx context.Context, id string) (res []dto.CategoryResponse, err error)
	ReconcileCategoryChildren(ctx context.Context) (repaired int, err error)
}

type ProductService interface {
	AddProduct(ctx context.Context, actor domain.Actor, req dto.ProductRequest, photos []dto.FileUpload) (res dto.ProductResponse, err error)
	GetProductByID(ctx context.Context, id string) (res dto.ProductResponse, err error)
	SearchProductsUnderCategory(ctx context.Context, categoryID string, req dto.ProductSearchRequest) (res pkgdto.PaginationResponse, err error)
	UpdateProduct(ctx context.Context, actor domain.Actor, id string, req dto.ProductUpdateRequest) (res dto.ProductResponse, err error)
	DeleteProduct(ctx context.Context, actor domain.Actor, id string) (err error)
	VerifyProduct(ctx context.Context, actor domain.Actor, id string, verified bool) (err error)
	AssignProductToCategory(ctx context.Context, actor domain.Actor, productID string, categoryID string) (err error)
	CountProducts(ctx context.Context, categoryID string, includeDescendants bool) (count int64, err error)
	DecreaseProductsStock(ctx context.Context, req dto.OrderRequest) (err error)
	RestoreProductsStock(ctx context.Context, req dto.OrderRequest) (err error)
	ConsumeEvent(ctx context.Context)
}

// BlobStore keeps uploaded images outside the catalog.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (image domain.Image, err error)
	Delete(ctx context.Context, publicID string) (err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, data interface{}) (err error)
}

type EventReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type StockNotifier interface {
	NotifyLowStock(ctx context.Context, product domain.Product) (err error)
}
