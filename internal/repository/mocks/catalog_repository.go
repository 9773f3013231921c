package mocks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/repository"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// maxTrxAttempts bounds how often HandleTrx reruns fn after a transient failure.
const maxTrxAttempts = 3

// CatalogRepository is an in-memory repository.CatalogRepository.
// HandleTrx serializes transactions, restores a snapshot when fn fails and
// reruns fn when the failure carries the TransientTransactionError label.
// FailOn and FailOnce inject infrastructure errors into individual methods.
type CatalogRepository struct {
	txMu sync.Mutex

	mu         sync.Mutex
	categories map[primitive.ObjectID]domain.Category
	products   map[primitive.ObjectID]domain.Product
	failures   map[string]error
	oneShots   map[string][]error
	calls      []string
}

var _ repository.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		categories: map[primitive.ObjectID]domain.Category{},
		products:   map[primitive.ObjectID]domain.Product{},
		failures:   map[string]error{},
		oneShots:   map[string][]error{},
	}
}

// FailOn makes every later call to method fail with an infrastructure error wrapping cause.
func (m *CatalogRepository) FailOn(method string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = cause
}

// FailOnce queues cause for the next call to method only.
func (m *CatalogRepository) FailOnce(method string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneShots[method] = append(m.oneShots[method], cause)
}

func (m *CatalogRepository) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = map[string]error{}
	m.oneShots = map[string][]error{}
}

func (m *CatalogRepository) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Categories returns every stored category ordered by level then name.
func (m *CatalogRepository) Categories() []domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		res = append(res, copyCategory(c))
	}
	sortCategories(res)
	return res
}

func (m *CatalogRepository) Products() []domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID.Hex() < res[j].ID.Hex() })
	return res
}

// PutCategory stores c as is, bypassing every invariant. Useful to seed drift.
func (m *CatalogRepository) PutCategory(c domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = copyCategory(c)
}

func (m *CatalogRepository) PutProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// begin records the call and returns the injected failure, if any. Callers hold mu.
func (m *CatalogRepository) begin(method string) error {
	m.calls = append(m.calls, method)
	if queued := m.oneShots[method]; len(queued) > 0 {
		m.oneShots[method] = queued[1:]
		return errs.Infrastructure(method, queued[0])
	}
	if cause, ok := m.failures[method]; ok {
		return errs.Infrastructure(method, cause)
	}
	return nil
}

func (m *CatalogRepository) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo repository.CatalogRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	for attempt := 1; ; attempt++ {
		err := m.runTrx(ctx, fn)
		if err == nil || attempt == maxTrxAttempts || !isTransient(err) {
			return err
		}
	}
}

// isTransient walks single Unwrap chains for the label, as the driver does.
func isTransient(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if le, ok := err.(mongo.LabeledError); ok && le.HasErrorLabel("TransientTransactionError") {
			return true
		}
	}
	return false
}

func (m *CatalogRepository) runTrx(ctx context.Context, fn func(ctx context.Context, repo repository.CatalogRepository) error) (err error) {
	m.mu.Lock()
	if err := m.begin("HandleTrx"); err != nil {
		m.mu.Unlock()
		return err
	}
	categories, products := m.snapshot()
	m.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			m.restore(categories, products)
			panic(p)
		}
		if err != nil {
			m.restore(categories, products)
		}
	}()

	if err = ctx.Err(); err != nil {
		return errs.Infrastructure("HandleTrx", err)
	}

	err = fn(ctx, m)
	if err == nil && ctx.Err() != nil {
		err = errs.Infrastructure("HandleTrx", ctx.Err())
	}

	return err
}

func (m *CatalogRepository) snapshot() (map[primitive.ObjectID]domain.Category, map[primitive.ObjectID]domain.Product) {
	categories := make(map[primitive.ObjectID]domain.Category, len(m.categories))
	for id, c := range m.categories {
		categories[id] = copyCategory(c)
	}
	products := make(map[primitive.ObjectID]domain.Product, len(m.products))
	for id, p := range m.products {
		products[id] = p
	}
	return categories, products
}

func (m *CatalogRepository) restore(categories map[primitive.ObjectID]domain.Category, products map[primitive.ObjectID]domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = categories
	m.products = products
}

func copyCategory(c domain.Category) domain.Category {
	c.Children = append([]primitive.ObjectID{}, c.Children...)
	if c.Parent != nil {
		parent := *c.Parent
		c.Parent = &parent
	}
	if c.Image != nil {
		image := *c.Image
		c.Image = &image
	}
	return c
}

func sortCategories(data []domain.Category) {
	sort.SliceStable(data, func(i, j int) bool {
		if data[i].Level != data[j].Level {
			return data[i].Level < data[j].Level
		}
		return data[i].Name < data[j].Name
	})
}

func (m *CatalogRepository) AddCategory(ctx context.Context, data domain.Category) (id primitive.ObjectID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("AddCategory"); err != nil {
		return id, err
	}

	if data.ID.IsZero() {
		data.ID = primitive.NewObjectID()
	}
	for _, c := range m.categories {
		if c.Name == data.Name {
			return id, errs.ErrDuplicateName
		}
	}
	if _, ok := m.categories[data.ID]; ok {
		return id, errs.Infrastructure("AddCategory", errors.New("duplicate _id"))
	}

	m.categories[data.ID] = copyCategory(data)
	return data.ID, nil
}

func (m *CatalogRepository) GetCategoryByID(ctx context.Context, id primitive.ObjectID) (category domain.Category, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetCategoryByID"); err != nil {
		return category, err
	}

	c, ok := m.categories[id]
	if !ok {
		return category, errs.ErrCategoryNotFound
	}
	return copyCategory(c), nil
}

func (m *CatalogRepository) CategoryNameExists(ctx context.Context, name string, excludeID primitive.ObjectID) (exists bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("CategoryNameExists"); err != nil {
		return false, err
	}

	for _, c := range m.categories {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *CatalogRepository) GetCategories(ctx context.Context, filter pkgdto.CategoryFilter) (data []domain.Category, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetCategories"); err != nil {
		return nil, err
	}

	data = []domain.Category{}
	for _, c := range m.categories {
		switch filter.Parent {
		case pkgdto.ParentRoot:
			if c.Parent != nil {
				continue
			}
		case pkgdto.ParentID:
			if c.Parent == nil || *c.Parent != filter.ParentID {
				continue
			}
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		data = append(data, copyCategory(c))
	}
	sortCategories(data)
	return data, nil
}

func (m *CatalogRepository) GetCategoriesUnderPath(ctx context.Context, path string) (data []domain.Category, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetCategoriesUnderPath"); err != nil {
		return nil, err
	}

	data = []domain.Category{}
	for _, c := range m.categories {
		if domain.PathWithin(c.Path, path) {
			data = append(data, copyCategory(c))
		}
	}
	sortCategories(data)
	return data, nil
}

func (m *CatalogRepository) CountChildCategories(ctx context.Context, id primitive.ObjectID) (count int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("CountChildCategories"); err != nil {
		return 0, err
	}

	for _, c := range m.categories {
		if c.Parent != nil && *c.Parent == id {
			count++
		}
	}
	return count, nil
}

func (m *CatalogRepository) LockCategory(ctx context.Context, id primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("LockCategory"); err != nil {
		return err
	}

	if _, ok := m.categories[id]; !ok {
		return errs.ErrCategoryNotFound
	}
	return nil
}

func (m *CatalogRepository) UpdateCategory(ctx context.Context, data domain.Category) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("UpdateCategory"); err != nil {
		return err
	}

	stored, ok := m.categories[data.ID]
	if !ok {
		return errs.ErrCategoryNotFound
	}
	for _, c := range m.categories {
		if c.Name == data.Name && c.ID != data.ID {
			return errs.ErrDuplicateName
		}
	}

	updated := copyCategory(data)
	updated.Children = stored.Children
	updated.CreatedAt = stored.CreatedAt
	m.categories[data.ID] = updated
	return nil
}

func (m *CatalogRepository) UpdateCategoryLineage(ctx context.Context, id primitive.ObjectID, level int, path string) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("UpdateCategoryLineage"); err != nil {
		return err
	}

	c, ok := m.categories[id]
	if !ok {
		return errs.ErrCategoryNotFound
	}
	c.Level = level
	c.Path = path
	c.UpdatedAt = time.Now()
	m.categories[id] = c
	return nil
}

func (m *CatalogRepository) AddChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("AddChildCategory"); err != nil {
		return err
	}

	parent, ok := m.categories[parentID]
	if !ok {
		return errs.ErrParentNotFound
	}
	if !parent.HasChild(childID) {
		parent.Children = append(parent.Children, childID)
	}
	parent.UpdatedAt = time.Now()
	m.categories[parentID] = parent
	return nil
}

func (m *CatalogRepository) RemoveChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("RemoveChildCategory"); err != nil {
		return err
	}

	parent, ok := m.categories[parentID]
	if !ok {
		return nil
	}
	children := []primitive.ObjectID{}
	for _, id := range parent.Children {
		if id != childID {
			children = append(children, id)
		}
	}
	parent.Children = children
	parent.UpdatedAt = time.Now()
	m.categories[parentID] = parent
	return nil
}

func (m *CatalogRepository) SetChildCategories(ctx context.Context, id primitive.ObjectID, children []primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("SetChildCategories"); err != nil {
		return err
	}

	c, ok := m.categories[id]
	if !ok {
		return errs.ErrCategoryNotFound
	}
	c.Children = append([]primitive.ObjectID{}, children...)
	c.UpdatedAt = time.Now()
	m.categories[id] = c
	return nil
}

func (m *CatalogRepository) DeleteCategory(ctx context.Context, id primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("DeleteCategory"); err != nil {
		return err
	}

	if _, ok := m.categories[id]; !ok {
		return errs.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *CatalogRepository) AddProduct(ctx context.Context, data domain.Product) (id primitive.ObjectID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("AddProduct"); err != nil {
		return id, err
	}

	if data.ID.IsZero() {
		data.ID = primitive.NewObjectID()
	}
	for _, p := range m.products {
		if p.SKU == data.SKU {
			return id, errs.ErrDuplicateSKU
		}
	}

	m.products[data.ID] = data
	return data.ID, nil
}

func (m *CatalogRepository) GetProductByID(ctx context.Context, id primitive.ObjectID) (product domain.Product, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetProductByID"); err != nil {
		return product, err
	}

	p, ok := m.products[id]
	if !ok {
		return product, errs.ErrProductNotFound
	}
	return p, nil
}

func (m *CatalogRepository) GetProducts(ctx context.Context, filter pkgdto.ProductFilter) (data []domain.Product, total int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetProducts"); err != nil {
		return nil, 0, err
	}

	matched := []domain.Product{}
	for _, p := range m.products {
		if matchProduct(p, filter) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return lessProduct(matched[i], matched[j], filter.Sort)
	})

	total = int64(len(matched))
	if filter.Limit > 0 {
		start := int(filter.Skip())
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	return matched, total, nil
}

func matchProduct(p domain.Product, filter pkgdto.ProductFilter) bool {
	if filter.CategoryIDs != nil && !containsID(filter.CategoryIDs, p.Category) {
		return false
	}
	if filter.Q != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Q)) {
		return false
	}
	if filter.MinPrice != nil && p.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
		return false
	}
	if filter.InStock != nil && (p.Stock > 0) != *filter.InStock {
		return false
	}
	if filter.Vendor != "" && p.Vendor != filter.Vendor {
		return false
	}

	switch filter.Sort {
	case pkgdto.SortFeatured:
		return p.Verified && p.Rating >= 4 && p.ReviewsCount >= 1
	case pkgdto.SortPopular:
		return p.Verified && (p.SoldCount > 0 || p.ReviewsCount >= 1)
	}

	if filter.Verified != nil && p.Verified != *filter.Verified {
		return false
	}
	return true
}

func lessProduct(a, b domain.Product, order pkgdto.ProductSort) bool {
	switch order {
	case pkgdto.SortPriceAsc:
		if a.Price != b.Price {
			return a.Price < b.Price
		}
	case pkgdto.SortPriceDesc:
		if a.Price != b.Price {
			return a.Price > b.Price
		}
	case pkgdto.SortFeatured:
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.ReviewsCount != b.ReviewsCount {
			return a.ReviewsCount > b.ReviewsCount
		}
	case pkgdto.SortPopular:
		if a.SoldCount != b.SoldCount {
			return a.SoldCount > b.SoldCount
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.ReviewsCount != b.ReviewsCount {
			return a.ReviewsCount > b.ReviewsCount
		}
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.Hex() > b.ID.Hex()
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func (m *CatalogRepository) GetProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (data []domain.Product, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("GetProductsByCategories"); err != nil {
		return nil, err
	}

	data = []domain.Product{}
	for _, p := range m.products {
		if containsID(categoryIDs, p.Category) {
			data = append(data, p)
		}
	}
	sort.SliceStable(data, func(i, j int) bool { return lessProduct(data[i], data[j], pkgdto.SortNewest) })
	return data, nil
}

func (m *CatalogRepository) CountProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (counts map[primitive.ObjectID]int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("CountProductsByCategories"); err != nil {
		return nil, err
	}

	counts = map[primitive.ObjectID]int64{}
	for _, p := range m.products {
		if categoryIDs == nil || containsID(categoryIDs, p.Category) {
			counts[p.Category]++
		}
	}
	return counts, nil
}

func (m *CatalogRepository) CountProducts(ctx context.Context, categoryIDs []primitive.ObjectID) (count int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("CountProducts"); err != nil {
		return 0, err
	}

	for _, p := range m.products {
		if containsID(categoryIDs, p.Category) {
			count++
		}
	}
	return count, nil
}

func (m *CatalogRepository) UpdateProduct(ctx context.Context, data domain.Product) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("UpdateProduct"); err != nil {
		return err
	}

	p, ok := m.products[data.ID]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.Title = data.Title
	p.Description = data.Description
	p.Price = data.Price
	p.Colors = data.Colors
	p.Category = data.Category
	p.Stock = data.Stock
	p.Status = domain.StockStatusFor(data.Stock)
	p.Country = data.Country
	p.UpdatedAt = data.UpdatedAt
	m.products[data.ID] = p
	return nil
}

func (m *CatalogRepository) SetProductCategory(ctx context.Context, productID primitive.ObjectID, categoryID primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("SetProductCategory"); err != nil {
		return err
	}

	p, ok := m.products[productID]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.Category = categoryID
	p.UpdatedAt = time.Now()
	m.products[productID] = p
	return nil
}

func (m *CatalogRepository) SetProductVerification(ctx context.Context, id primitive.ObjectID, verified bool) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("SetProductVerification"); err != nil {
		return err
	}

	p, ok := m.products[id]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.Verified = verified
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return nil
}

func (m *CatalogRepository) DecreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("DecreaseProductStock"); err != nil {
		return product, err
	}
	if quantity <= 0 {
		return product, errs.ErrInvalidQuantity
	}

	p, ok := m.products[id]
	if !ok {
		return product, errs.ErrProductNotFound
	}
	if p.Stock < quantity {
		return product, errs.ErrInsufficientStock
	}
	p.Stock -= quantity
	p.SoldCount += quantity
	p.Status = domain.StockStatusFor(p.Stock)
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return p, nil
}

func (m *CatalogRepository) IncreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("IncreaseProductStock"); err != nil {
		return product, err
	}
	if quantity <= 0 {
		return product, errs.ErrInvalidQuantity
	}

	p, ok := m.products[id]
	if !ok {
		return product, errs.ErrProductNotFound
	}
	p.Stock += quantity
	p.SoldCount -= quantity
	if p.SoldCount < 0 {
		p.SoldCount = 0
	}
	p.Status = domain.StockStatusFor(p.Stock)
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return p, nil
}

func (m *CatalogRepository) DeleteProduct(ctx context.Context, id primitive.ObjectID) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.begin("DeleteProduct"); err != nil {
		return err
	}

	if _, ok := m.products[id]; !ok {
		return errs.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}
