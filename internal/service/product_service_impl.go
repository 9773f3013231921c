package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/repository"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductServiceImpl struct {
	repo      repository.CatalogRepository
	blobStore BlobStore
	publisher EventPublisher
	reader    EventReader
	notifier  StockNotifier
}

func CreateProductService(repo repository.CatalogRepository, blobStore BlobStore, publisher EventPublisher, reader EventReader, notifier StockNotifier) ProductService {
	return &ProductServiceImpl{repo: repo, blobStore: blobStore, publisher: publisher, reader: reader, notifier: notifier}
}

func splitColors(colors string) []string {
	res := []string{}
	for _, c := range strings.Split(colors, ",") {
		if c = strings.TrimSpace(c); c != "" {
			res = append(res, c)
		}
	}
	return res
}

func (s *ProductServiceImpl) AddProduct(ctx context.Context, actor domain.Actor, req dto.ProductRequest, photos []dto.FileUpload) (res dto.ProductResponse, err error) {
	if !actor.CanSellProducts() {
		return res, errs.ErrUnauthorized
	}

	title := strings.TrimSpace(req.Title)
	sku := strings.TrimSpace(req.SKU)
	if title == "" || sku == "" || req.Price < 0 || req.Stock < 0 {
		return res, errs.ErrClient
	}

	categoryID, err := parseObjectID(req.CategoryID())
	if err != nil {
		return res, err
	}

	images := make([]domain.Image, 0, len(photos))
	for i := range photos {
		image, err := uploadImage(ctx, s.blobStore, &photos[i])
		if err != nil {
			discardImages(ctx, s.blobStore, imageRefs(images)...)
			return res, err
		}
		images = append(images, *image)
	}

	now := time.Now()
	product := domain.Product{
		Title:       title,
		Description: req.Description,
		Price:       req.Price,
		Colors:      splitColors(req.Colors),
		Photos:      images,
		Category:    categoryID,
		Vendor:      actor.UserID,
		Stock:       req.Stock,
		SKU:         sku,
		Status:      domain.StockStatusFor(req.Stock),
		Country:     req.Country,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(images) > 0 {
		product.Thumbnail = images[0].URL
	}

	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		if _, err := ensureLeafCategory(ctx, repo, categoryID); err != nil {
			return err
		}

		product.ID = primitive.NewObjectID()
		_, err := repo.AddProduct(ctx, product)
		return err
	})
	if err != nil {
		discardImages(ctx, s.blobStore, imageRefs(images)...)
		return res, err
	}

	res = dto.NewProductResponse(product)
	publishEvent(ctx, s.publisher, EventAddProduct, res.ID, res)

	return res, nil
}

func imageRefs(images []domain.Image) []*domain.Image {
	refs := make([]*domain.Image, 0, len(images))
	for i := range images {
		refs = append(refs, &images[i])
	}
	return refs
}

func (s *ProductServiceImpl) GetProductByID(ctx context.Context, id string) (res dto.ProductResponse, err error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return res, err
	}

	product, err := s.repo.GetProductByID(ctx, objectID)
	if err != nil {
		return res, err
	}

	return dto.NewProductResponse(product), nil
}

func (s *ProductServiceImpl) SearchProductsUnderCategory(ctx context.Context, categoryID string, req dto.ProductSearchRequest) (res pkgdto.PaginationResponse, err error) {
	sort, err := pkgdto.ParseProductSort(req.Sort)
	if err != nil {
		return res, err
	}

	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return res, errs.ErrClient
	}

	if sort.VerifiedOnly() && req.Verified != nil && !*req.Verified {
		return res, errs.ErrClient
	}

	filter := pkgdto.ProductFilter{
		Filter:   pkgdto.Filter{Page: req.Page, Limit: req.Limit, Q: strings.TrimSpace(req.Q)},
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		InStock:  req.InStock,
		Vendor:   req.Vendor,
		Verified: req.Verified,
		Sort:     sort,
	}
	filter.Normalize()

	if categoryID != "" {
		objectID, err := parseObjectID(categoryID)
		if err != nil {
			return res, err
		}

		category, err := s.repo.GetCategoryByID(ctx, objectID)
		if err != nil {
			return res, err
		}

		descendants, err := s.repo.GetCategoriesUnderPath(ctx, category.Path)
		if err != nil {
			return res, err
		}
		filter.CategoryIDs = categoryIDs(descendants)
	}

	products, total, err := s.repo.GetProducts(ctx, filter)
	if err != nil {
		return res, err
	}

	res.Records = dto.NewProductResponses(products)
	res.Metadata.TotalCount = uint64(total)
	res.Metadata.Page = uint64(filter.Page)
	res.Metadata.Limit = filter.Limit

	return res, nil
}

func (s *ProductServiceImpl) UpdateProduct(ctx context.Context, actor domain.Actor, id string, req dto.ProductUpdateRequest) (res dto.ProductResponse, err error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return res, err
	}

	if (req.Price != nil && *req.Price < 0) || (req.Stock != nil && *req.Stock < 0) {
		return res, errs.ErrClient
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return res, errs.ErrClient
	}

	var newCategory *primitive.ObjectID
	if req.Category != nil {
		categoryID, err := parseObjectID(*req.Category)
		if err != nil {
			return res, err
		}
		newCategory = &categoryID
	}

	var updated domain.Product
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		product, err := repo.GetProductByID(ctx, objectID)
		if err != nil {
			return err
		}

		if !actor.CanManageProduct(product.Vendor) {
			return errs.ErrUnauthorized
		}

		if req.Title != nil {
			product.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			product.Description = *req.Description
		}
		if req.Price != nil {
			product.Price = *req.Price
		}
		if req.Colors != nil {
			product.Colors = req.Colors
		}
		if req.Country != nil {
			product.Country = *req.Country
		}
		if req.Stock != nil {
			product.Stock = *req.Stock
			product.Status = domain.StockStatusFor(product.Stock)
		}

		if newCategory != nil && *newCategory != product.Category {
			if _, err := ensureLeafCategory(ctx, repo, *newCategory); err != nil {
				return err
			}
			product.Category = *newCategory
		}

		product.UpdatedAt = time.Now()
		if err := repo.UpdateProduct(ctx, product); err != nil {
			return err
		}

		updated = product
		return nil
	})
	if err != nil {
		return res, err
	}

	res = dto.NewProductResponse(updated)
	publishEvent(ctx, s.publisher, EventUpdateProduct, res.ID, res)

	return res, nil
}

func (s *ProductServiceImpl) DeleteProduct(ctx context.Context, actor domain.Actor, id string) (err error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	var deleted domain.Product
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		product, err := repo.GetProductByID(ctx, objectID)
		if err != nil {
			return err
		}

		if !actor.CanManageProduct(product.Vendor) {
			return errs.ErrUnauthorized
		}

		if err := repo.DeleteProduct(ctx, objectID); err != nil {
			return err
		}

		deleted = product
		return nil
	})
	if err != nil {
		return err
	}

	discardImages(ctx, s.blobStore, imageRefs(deleted.Photos)...)
	publishEvent(ctx, s.publisher, EventDeleteProduct, deleted.ID.Hex(), dto.NewProductResponse(deleted))

	return nil
}

func (s *ProductServiceImpl) VerifyProduct(ctx context.Context, actor domain.Actor, id string, verified bool) (err error) {
	if !actor.CanVerifyProducts() {
		return errs.ErrUnauthorized
	}

	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	var product domain.Product
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		product, err = repo.GetProductByID(ctx, objectID)
		if err != nil {
			return err
		}

		if err := repo.SetProductVerification(ctx, objectID, verified); err != nil {
			return err
		}

		product.Verified = verified
		return nil
	})
	if err != nil {
		return err
	}

	publishEvent(ctx, s.publisher, EventUpdateProduct, product.ID.Hex(), dto.NewProductResponse(product))

	return nil
}

// AssignProductToCategory binds a product to a leaf category. The category is
// locked for the transaction so a concurrent child creation cannot slip in
// between the leaf check and the write.
func (s *ProductServiceImpl) AssignProductToCategory(ctx context.Context, actor domain.Actor, productID string, categoryID string) (err error) {
	productObjectID, err := parseObjectID(productID)
	if err != nil {
		return err
	}

	categoryObjectID, err := parseObjectID(categoryID)
	if err != nil {
		return err
	}

	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		if _, err := ensureLeafCategory(ctx, repo, categoryObjectID); err != nil {
			return err
		}

		product, err := repo.GetProductByID(ctx, productObjectID)
		if err != nil {
			return err
		}

		if !actor.CanManageProduct(product.Vendor) {
			return errs.ErrUnauthorized
		}

		if product.Category == categoryObjectID {
			return nil
		}

		return repo.SetProductCategory(ctx, productObjectID, categoryObjectID)
	})
	if err != nil {
		return err
	}

	publishEvent(ctx, s.publisher, EventProductCategoryAssigned, productID, dto.ProductCategoryEvent{
		ProductID:  productObjectID.Hex(),
		CategoryID: categoryObjectID.Hex(),
	})

	return nil
}

func (s *ProductServiceImpl) CountProducts(ctx context.Context, categoryID string, includeDescendants bool) (count int64, err error) {
	objectID, err := parseObjectID(categoryID)
	if err != nil {
		return 0, err
	}

	category, err := s.repo.GetCategoryByID(ctx, objectID)
	if err != nil {
		return 0, err
	}

	ids := []primitive.ObjectID{objectID}
	if includeDescendants {
		descendants, err := s.repo.GetCategoriesUnderPath(ctx, category.Path)
		if err != nil {
			return 0, err
		}
		ids = categoryIDs(descendants)
	}

	return s.repo.CountProducts(ctx, ids)
}

type stockLine struct {
	id       primitive.ObjectID
	quantity int64
}

func parseOrderLines(req dto.OrderRequest) ([]stockLine, error) {
	if len(req.OrderItems) == 0 {
		return nil, errs.ErrClient
	}

	lines := make([]stockLine, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		if item.Quantity <= 0 {
			return nil, errs.ErrInvalidQuantity
		}

		id, err := parseObjectID(item.ProductID)
		if err != nil {
			return nil, err
		}

		lines = append(lines, stockLine{id: id, quantity: item.Quantity})
	}

	return lines, nil
}

// DecreaseProductsStock applies every line of an order or none of them.
func (s *ProductServiceImpl) DecreaseProductsStock(ctx context.Context, req dto.OrderRequest) (err error) {
	lines, err := parseOrderLines(req)
	if err != nil {
		return err
	}

	var updated []domain.Product
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		updated = updated[:0]
		for _, line := range lines {
			product, err := repo.DecreaseProductStock(ctx, line.id, line.quantity)
			if err != nil {
				return err
			}
			updated = append(updated, product)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, product := range updated {
		publishEvent(ctx, s.publisher, EventDecreaseProductQuantity, product.ID.Hex(), dto.ProductStockEvent{
			ID:       product.ID.Hex(),
			Quantity: lines[i].quantity,
			Stock:    product.Stock,
			Status:   string(product.Status),
		})

		if product.IsLowStock() {
			s.notifyLowStock(ctx, product)
		}
	}

	return nil
}

func (s *ProductServiceImpl) RestoreProductsStock(ctx context.Context, req dto.OrderRequest) (err error) {
	lines, err := parseOrderLines(req)
	if err != nil {
		return err
	}

	var updated []domain.Product
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		updated = updated[:0]
		for _, line := range lines {
			product, err := repo.IncreaseProductStock(ctx, line.id, line.quantity)
			if err != nil {
				return err
			}
			updated = append(updated, product)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, product := range updated {
		publishEvent(ctx, s.publisher, EventRestoreProductStockES, product.ID.Hex(), dto.ProductStockEvent{
			ID:       product.ID.Hex(),
			Quantity: lines[i].quantity,
			Stock:    product.Stock,
			Status:   string(product.Status),
		})
	}

	return nil
}

func (s *ProductServiceImpl) notifyLowStock(ctx context.Context, product domain.Product) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.NotifyLowStock(ctx, product); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("component", "notifyLowStock").Str("product_id", product.ID.Hex()).Msg("failed to send low stock alert")
	}
}

// ConsumeEvent reads order events until ctx is cancelled or the reader is closed.
func (s *ProductServiceImpl) ConsumeEvent(ctx context.Context) {
	if s.reader == nil {
		return
	}

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				log.Ctx(ctx).Info().Str("component", "ConsumeEvent").Msg("event consumer stopped")
				return
			}

			log.Ctx(ctx).Error().Err(err).Str("component", "ConsumeEvent").Msg("failed to read message")
			continue
		}

		s.handleEvent(ctx, msg)
	}
}

func (s *ProductServiceImpl) handleEvent(ctx context.Context, msg kafka.Message) {
	var received dto.KafkaMessage
	if err := json.Unmarshal(msg.Value, &received); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "handleEvent").Msg("failed to unmarshal message")
		return
	}

	switch received.EventType {
	case EventOrderCreated:
		var order dto.OrderRequest
		if err := decodeEventData(received.Data, &order); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", "handleEvent").Str("event_type", received.EventType).Msg("failed to decode order")
			return
		}

		err := s.DecreaseProductsStock(ctx, order)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("component", "handleEvent").Str("transaction_number", order.TransactionNumber).Msg("failed to reserve stock")
		}

		publishEvent(ctx, s.publisher, EventStockUpdated, order.TransactionNumber, dto.StockUpdate{
			TransactionNumber: order.TransactionNumber,
			Status:            err == nil,
		})
	case EventRestoreProductStock:
		var order dto.OrderRequest
		if err := decodeEventData(received.Data, &order); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", "handleEvent").Str("event_type", received.EventType).Msg("failed to decode order")
			return
		}

		if err := s.RestoreProductsStock(ctx, order); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("component", "handleEvent").Str("transaction_number", order.TransactionNumber).Msg("failed to restore stock")
		}
	default:
		log.Ctx(ctx).Debug().Str("component", "handleEvent").Str("event_type", received.EventType).Msg("ignoring event")
	}
}

func decodeEventData(data interface{}, target interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(dataBytes, target)
}
