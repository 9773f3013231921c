package repository

import (
	"context"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CategoryRepository interface {
	AddCategory(ctx context.Context, data domain.Category) (id primitive.ObjectID, err error)
	GetCategoryByID(ctx context.Context, id primitive.ObjectID) (category domain.Category, err error)
	CategoryNameExists(ctx context.Context, name string, excludeID primitive.ObjectID) (exists bool, err error)
	GetCategories(ctx context.Context, filter pkgdto.CategoryFilter) (data []domain.Category, err error)
	// GetCategoriesUnderPath returns the category at path and all of its descendants.
	GetCategoriesUnderPath(ctx context.Context, path string) (data []domain.Category, err error)
	CountChildCategories(ctx context.Context, id primitive.ObjectID) (count int64, err error)
	// LockCategory writes to the category document so that concurrent transactions
	// touching the same category conflict instead of interleaving.
	LockCategory(ctx context.Context, id primitive.ObjectID) (err error)
	UpdateCategory(ctx context.Context, data domain.Category) (err error)
	UpdateCategoryLineage(ctx context.Context, id primitive.ObjectID, level int, path string) (err error)
	AddChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error)
	RemoveChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error)
	SetChildCategories(ctx context.Context, id primitive.ObjectID, children []primitive.ObjectID) (err error)
	DeleteCategory(ctx context.Context, id primitive.ObjectID) (err error)
}

type ProductRepository interface {
	AddProduct(ctx context.Context, data domain.Product) (id primitive.ObjectID, err error)
	GetProductByID(ctx context.Context, id primitive.ObjectID) (product domain.Product, err error)
	GetProducts(ctx context.Context, filter pkgdto.ProductFilter) (data []domain.Product, total int64, err error)
	GetProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (data []domain.Product, err error)
	// CountProductsByCategories groups product counts by category; nil categoryIDs counts every category.
	CountProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (counts map[primitive.ObjectID]int64, err error)
	CountProducts(ctx context.Context, categoryIDs []primitive.ObjectID) (count int64, err error)
	UpdateProduct(ctx context.Context, data domain.Product) (err error)
	SetProductCategory(ctx context.Context, productID primitive.ObjectID, categoryID primitive.ObjectID) (err error)
	SetProductVerification(ctx context.Context, id primitive.ObjectID, verified bool) (err error)
	// DecreaseProductStock only applies when stock >= quantity and returns the updated product.
	DecreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error)
	IncreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error)
	DeleteProduct(ctx context.Context, id primitive.ObjectID) (err error)
}

type CatalogRepository interface {
	CategoryRepository
	ProductRepository
	// HandleTrx runs fn in one transaction; repo must be used for every call inside fn.
	HandleTrx(ctx context.Context, fn func(ctx context.Context, repo CatalogRepository) error) error
}
