package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/repository"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxImageSize = 5 << 20

const (
	EventCategoryCreated         = "category_created"
	EventCategoryUpdated         = "category_updated"
	EventCategoryDeleted         = "category_deleted"
	EventAddProduct              = "add_product"
	EventUpdateProduct           = "update_product"
	EventDeleteProduct           = "delete_product"
	EventProductCategoryAssigned = "product_category_assigned"
	EventDecreaseProductQuantity = "decrease_product_quantity"
	EventRestoreProductStockES   = "restore_product_stock_es"
	EventStockUpdated            = "stock_updated"
	EventOrderCreated            = "order_created"
	EventRestoreProductStock     = "restore_product_stock"
)

func parseObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, errs.ErrInvalidID
	}
	return objectID, nil
}

// isRootReference reports whether a parent reference denotes "no parent".
func isRootReference(parent string) bool {
	parent = strings.TrimSpace(parent)
	return parent == "" || parent == "null" || parent == "root"
}

func publishEvent(ctx context.Context, publisher EventPublisher, eventType string, key string, data interface{}) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, eventType, key, data); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "publishEvent").Str("event_type", eventType).Msg("failed to publish event")
	}
}

func uploadImage(ctx context.Context, store BlobStore, file *dto.FileUpload) (*domain.Image, error) {
	if file == nil {
		return nil, nil
	}

	if len(file.Data) == 0 {
		return nil, errs.ErrNotAnImage
	}

	if len(file.Data) > MaxImageSize {
		return nil, errs.ErrFileTooLarge
	}

	contentType := http.DetectContentType(file.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errs.ErrNotAnImage
	}

	if store == nil {
		return nil, errs.Infrastructure("uploadImage", errors.New("blob store is not configured"))
	}

	image, err := store.Upload(ctx, file.Data, contentType)
	if err != nil {
		return nil, errs.Infrastructure("uploadImage", err)
	}

	return &image, nil
}

// discardImages removes blobs that are no longer referenced. Failures are only logged.
func discardImages(ctx context.Context, store BlobStore, images ...*domain.Image) {
	if store == nil {
		return
	}

	for _, image := range images {
		if image == nil || image.PublicID == "" {
			continue
		}

		if err := store.Delete(ctx, image.PublicID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("component", "discardImages").Str("public_id", image.PublicID).Msg("failed to delete image")
		}
	}
}

// ensureLeafCategory locks the category for the rest of the transaction and
// checks that it has no subcategories.
func ensureLeafCategory(ctx context.Context, repo repository.CatalogRepository, id primitive.ObjectID) (domain.Category, error) {
	category, err := repo.GetCategoryByID(ctx, id)
	if err != nil {
		return category, err
	}

	if err := repo.LockCategory(ctx, id); err != nil {
		return category, err
	}

	if len(category.Children) > 0 {
		return category, errs.ErrNotALeaf
	}

	childCount, err := repo.CountChildCategories(ctx, id)
	if err != nil {
		return category, err
	}

	if childCount > 0 {
		return category, errs.ErrNotALeaf
	}

	return category, nil
}

func categoryIDs(categories []domain.Category) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	return ids
}

func groupProductsByCategory(products []domain.Product) map[primitive.ObjectID][]dto.ProductResponse {
	grouped := make(map[primitive.ObjectID][]dto.ProductResponse)
	for _, p := range products {
		grouped[p.Category] = append(grouped[p.Category], dto.NewProductResponse(p))
	}
	return grouped
}
