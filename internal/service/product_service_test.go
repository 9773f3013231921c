package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *CatalogServiceSuite) TestAddProduct() {
	root := s.createCategory("Electronics", "")
	leaf := s.createCategory("Phones", root.ID)

	type TestCase struct {
		Name        string
		Actor       domain.Actor
		Request     dto.ProductRequest
		Photos      []dto.FileUpload
		ExpectedErr error
	}

	valid := dto.ProductRequest{Title: "Phone", Price: 199, Subcategory: leaf.ID, SKU: "PH-1", Stock: 8}

	testCases := []TestCase{
		{Name: "Customer", Actor: customer, Request: valid, ExpectedErr: errs.ErrUnauthorized},
		{Name: "Unapproved seller", Actor: domain.Actor{UserID: "s", Role: domain.RoleSeller}, Request: valid, ExpectedErr: errs.ErrUnauthorized},
		{Name: "Negative price", Actor: seller, Request: dto.ProductRequest{Title: "Phone", Price: -1, Category: leaf.ID, SKU: "X"}, ExpectedErr: errs.ErrClient},
		{Name: "Unknown category", Actor: seller, Request: dto.ProductRequest{Title: "Phone", Category: "5f1d7f3e9b1e8a3d4c2b1a09", SKU: "X"}, ExpectedErr: errs.ErrCategoryNotFound},
		{Name: "Non leaf category", Actor: seller, Request: dto.ProductRequest{Title: "Phone", Category: root.ID, SKU: "X"}, ExpectedErr: errs.ErrNotALeaf},
		{Name: "Photo is not an image", Actor: seller, Request: valid, Photos: []dto.FileUpload{{Data: []byte("hello")}}, ExpectedErr: errs.ErrNotAnImage},
	}

	for _, tc := range testCases {
		s.Run(tc.Name, func() {
			_, err := s.products.AddProduct(s.ctx, tc.Actor, tc.Request, tc.Photos)
			s.ErrorIs(err, tc.ExpectedErr)
		})
	}
	s.Empty(s.repo.Products())

	req := valid
	req.Colors = "red, blue,,"
	res, err := s.products.AddProduct(s.ctx, seller, req, []dto.FileUpload{{Data: pngHeader}, {Data: pngHeader}})
	s.Require().NoError(err)
	s.Equal(leaf.ID, res.Category)
	s.Equal(seller.UserID, res.Vendor)
	s.Equal([]string{"red", "blue"}, res.Colors)
	s.Equal(string(domain.StockStatusInStock), res.Status)
	s.Require().Len(res.Photos, 2)
	s.Equal(res.Photos[0].URL, res.Thumbnail)
	s.False(res.Verified)

	_, err = s.products.AddProduct(s.ctx, seller, valid, []dto.FileUpload{{Data: pngHeader}})
	s.ErrorIs(err, errs.ErrDuplicateSKU)
	s.Len(s.blobs.Stored(), 2)

	s.Len(s.publisher.EventsOfType(service.EventAddProduct), 1)
}

func (s *CatalogServiceSuite) TestAssignProductToCategory() {
	root := s.createCategory("Root", "")
	first := s.createCategory("First", root.ID)
	second := s.createCategory("Second", root.ID)
	product := s.createProduct(seller, first.ID, "P-1", 10, 10)

	type TestCase struct {
		Name        string
		Actor       domain.Actor
		ProductID   string
		CategoryID  string
		ExpectedErr error
	}

	testCases := []TestCase{
		{Name: "Unknown category", Actor: seller, ProductID: product.ID, CategoryID: "5f1d7f3e9b1e8a3d4c2b1a09", ExpectedErr: errs.ErrCategoryNotFound},
		{Name: "Non leaf", Actor: seller, ProductID: product.ID, CategoryID: root.ID, ExpectedErr: errs.ErrNotALeaf},
		{Name: "Unknown product", Actor: seller, ProductID: "5f1d7f3e9b1e8a3d4c2b1a09", CategoryID: second.ID, ExpectedErr: errs.ErrProductNotFound},
		{Name: "Another vendor", Actor: other, ProductID: product.ID, CategoryID: second.ID, ExpectedErr: errs.ErrUnauthorized},
		{Name: "Malformed product id", Actor: seller, ProductID: "123", CategoryID: second.ID, ExpectedErr: errs.ErrInvalidID},
		{Name: "Owner", Actor: seller, ProductID: product.ID, CategoryID: second.ID},
		{Name: "Admin", Actor: admin, ProductID: product.ID, CategoryID: first.ID},
	}

	for _, tc := range testCases {
		s.Run(tc.Name, func() {
			err := s.products.AssignProductToCategory(s.ctx, tc.Actor, tc.ProductID, tc.CategoryID)
			if tc.ExpectedErr == nil {
				s.NoError(err)
				return
			}
			s.ErrorIs(err, tc.ExpectedErr)
		})
	}

	got, err := s.products.GetProductByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, got.Category)
}

func (s *CatalogServiceSuite) TestAssignmentAndChildCreationDoNotInterleave() {
	root := s.createCategory("Root", "")
	target := s.createCategory("Target", root.ID)
	parking := s.createCategory("Parking", root.ID)
	product := s.createProduct(seller, parking.ID, "P-1", 10, 10)

	var (
		wg        sync.WaitGroup
		assignErr error
		createErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		assignErr = s.products.AssignProductToCategory(s.ctx, seller, product.ID, target.ID)
	}()
	go func() {
		defer wg.Done()
		_, createErr = s.categories.AddCategory(s.ctx, admin, dto.CategoryRequest{Name: "Nested", Parent: target.ID})
	}()
	wg.Wait()

	// exactly one side wins: a category never ends up with both products and children
	s.True((assignErr == nil) != (createErr == nil), "assign=%v create=%v", assignErr, createErr)
	if assignErr != nil {
		s.ErrorIs(assignErr, errs.ErrNotALeaf)
	} else {
		s.ErrorIs(createErr, errs.ErrParentHasProducts)
	}
	s.assertTreeConsistent()
}

func (s *CatalogServiceSuite) TestUpdateProduct() {
	root := s.createCategory("Root", "")
	leaf := s.createCategory("Leaf", root.ID)
	otherLeaf := s.createCategory("Other", root.ID)
	product := s.createProduct(seller, leaf.ID, "P-1", 10, 10)

	title := "Renamed"
	price := 12.5
	stock := int64(2)

	_, err := s.products.UpdateProduct(s.ctx, other, product.ID, dto.ProductUpdateRequest{Title: &title})
	s.ErrorIs(err, errs.ErrUnauthorized)

	_, err = s.products.UpdateProduct(s.ctx, seller, product.ID, dto.ProductUpdateRequest{Category: &root.ID})
	s.ErrorIs(err, errs.ErrNotALeaf)

	negative := -1.0
	_, err = s.products.UpdateProduct(s.ctx, seller, product.ID, dto.ProductUpdateRequest{Price: &negative})
	s.ErrorIs(err, errs.ErrClient)

	res, err := s.products.UpdateProduct(s.ctx, seller, product.ID, dto.ProductUpdateRequest{
		Title:    &title,
		Price:    &price,
		Stock:    &stock,
		Category: &otherLeaf.ID,
	})
	s.Require().NoError(err)
	s.Equal(title, res.Title)
	s.Equal(price, res.Price)
	s.Equal(string(domain.StockStatusLowStock), res.Status)
	s.Equal(otherLeaf.ID, res.Category)
	s.Len(s.publisher.EventsOfType(service.EventUpdateProduct), 1)
}

func (s *CatalogServiceSuite) TestDeleteProduct() {
	leaf := s.createCategory("Leaf", "")
	res, err := s.products.AddProduct(s.ctx, seller, dto.ProductRequest{Title: "T", Category: leaf.ID, SKU: "P-1", Stock: 1}, []dto.FileUpload{{Data: pngHeader}})
	s.Require().NoError(err)

	s.ErrorIs(s.products.DeleteProduct(s.ctx, other, res.ID), errs.ErrUnauthorized)
	s.Require().NoError(s.products.DeleteProduct(s.ctx, seller, res.ID))
	s.Empty(s.blobs.Stored())

	_, err = s.products.GetProductByID(s.ctx, res.ID)
	s.ErrorIs(err, errs.ErrProductNotFound)

	s.ErrorIs(s.products.DeleteProduct(s.ctx, admin, res.ID), errs.ErrProductNotFound)
}

func (s *CatalogServiceSuite) TestVerifyProduct() {
	leaf := s.createCategory("Leaf", "")
	product := s.createProduct(seller, leaf.ID, "P-1", 10, 10)

	s.ErrorIs(s.products.VerifyProduct(s.ctx, seller, product.ID, true), errs.ErrUnauthorized)
	s.Require().NoError(s.products.VerifyProduct(s.ctx, admin, product.ID, true))

	got, err := s.products.GetProductByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.True(got.Verified)
}

func (s *CatalogServiceSuite) TestCountProducts() {
	electronics := s.createCategory("Electronics", "")
	phones := s.createCategory("Phones", electronics.ID)
	laptops := s.createCategory("Laptops", electronics.ID)
	garden := s.createCategory("Garden", "")
	s.createProduct(seller, phones.ID, "P-1", 1, 1)
	s.createProduct(seller, phones.ID, "P-2", 1, 1)
	s.createProduct(seller, laptops.ID, "L-1", 1, 1)
	s.createProduct(seller, garden.ID, "G-1", 1, 1)

	count, err := s.products.CountProducts(s.ctx, electronics.ID, false)
	s.Require().NoError(err)
	s.Zero(count)

	count, err = s.products.CountProducts(s.ctx, electronics.ID, true)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	count, err = s.products.CountProducts(s.ctx, phones.ID, false)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	_, err = s.products.CountProducts(s.ctx, "5f1d7f3e9b1e8a3d4c2b1a09", true)
	s.ErrorIs(err, errs.ErrCategoryNotFound)
}

func (s *CatalogServiceSuite) TestSearchProductsUnderCategory() {
	electronics := s.createCategory("Electronics", "")
	phones := s.createCategory("Phones", electronics.ID)
	laptops := s.createCategory("Laptops", electronics.ID)
	garden := s.createCategory("Garden", "")

	now := time.Now()
	cheap := s.seedProduct(phones.ID, domain.Product{Title: "Budget Phone", Price: 100, Stock: 5, Vendor: "v1", Verified: true, Rating: 4.5, ReviewsCount: 10, SoldCount: 3, CreatedAt: now.Add(-3 * time.Hour)})
	pricey := s.seedProduct(phones.ID, domain.Product{Title: "Flagship Phone", Price: 900, Stock: 0, Vendor: "v2", Verified: true, Rating: 4.9, ReviewsCount: 2, SoldCount: 40, CreatedAt: now.Add(-2 * time.Hour)})
	laptop := s.seedProduct(laptops.ID, domain.Product{Title: "Laptop", Price: 500, Stock: 2, Vendor: "v1", Verified: false, Rating: 5, ReviewsCount: 7, SoldCount: 9, CreatedAt: now.Add(-1 * time.Hour)})
	gardenPhone := s.seedProduct(garden.ID, domain.Product{Title: "Garden Phone", Price: 1, Stock: 1, Vendor: "v1", Verified: true, CreatedAt: now})

	ids := func(records interface{}) []string {
		res := []string{}
		for _, p := range records.([]dto.ProductResponse) {
			res = append(res, p.ID)
		}
		return res
	}

	minPrice := 150.0
	inStock := true

	type TestCase struct {
		Name     string
		Category string
		Request  dto.ProductSearchRequest
		Expected []string
		Total    uint64
	}

	testCases := []TestCase{
		{Name: "Newest under root", Category: electronics.ID, Expected: []string{laptop.ID.Hex(), pricey.ID.Hex(), cheap.ID.Hex()}, Total: 3},
		{Name: "Latest alias", Category: electronics.ID, Request: dto.ProductSearchRequest{Sort: "latest"}, Expected: []string{laptop.ID.Hex(), pricey.ID.Hex(), cheap.ID.Hex()}, Total: 3},
		{Name: "Price ascending", Category: electronics.ID, Request: dto.ProductSearchRequest{Sort: "price_asc"}, Expected: []string{cheap.ID.Hex(), laptop.ID.Hex(), pricey.ID.Hex()}, Total: 3},
		{Name: "Price descending", Category: electronics.ID, Request: dto.ProductSearchRequest{Sort: "price_desc"}, Expected: []string{pricey.ID.Hex(), laptop.ID.Hex(), cheap.ID.Hex()}, Total: 3},
		{Name: "Featured", Category: electronics.ID, Request: dto.ProductSearchRequest{Sort: "featured"}, Expected: []string{pricey.ID.Hex(), cheap.ID.Hex()}, Total: 2},
		{Name: "Popular", Category: electronics.ID, Request: dto.ProductSearchRequest{Sort: "popular"}, Expected: []string{pricey.ID.Hex(), cheap.ID.Hex()}, Total: 2},
		{Name: "Leaf only", Category: laptops.ID, Expected: []string{laptop.ID.Hex()}, Total: 1},
		{Name: "Text and price", Category: electronics.ID, Request: dto.ProductSearchRequest{Q: "phone", MinPrice: &minPrice}, Expected: []string{pricey.ID.Hex()}, Total: 1},
		{Name: "In stock", Category: electronics.ID, Request: dto.ProductSearchRequest{InStock: &inStock, Sort: "price_asc"}, Expected: []string{cheap.ID.Hex(), laptop.ID.Hex()}, Total: 2},
		{Name: "Vendor", Category: electronics.ID, Request: dto.ProductSearchRequest{Vendor: "v2"}, Expected: []string{pricey.ID.Hex()}, Total: 1},
		{Name: "Second page", Category: electronics.ID, Request: dto.ProductSearchRequest{Page: 2, Limit: 2}, Expected: []string{cheap.ID.Hex()}, Total: 3},
		{Name: "Whole catalog", Request: dto.ProductSearchRequest{Q: "phone"}, Expected: []string{gardenPhone.ID.Hex(), pricey.ID.Hex(), cheap.ID.Hex()}, Total: 3},
	}

	for _, tc := range testCases {
		s.Run(tc.Name, func() {
			res, err := s.products.SearchProductsUnderCategory(s.ctx, tc.Category, tc.Request)
			s.Require().NoError(err)
			s.Equal(tc.Expected, ids(res.Records))
			s.Equal(tc.Total, res.Metadata.TotalCount)
		})
	}

	res, err := s.products.SearchProductsUnderCategory(s.ctx, electronics.ID, dto.ProductSearchRequest{Limit: 500})
	s.Require().NoError(err)
	s.Equal(100, res.Metadata.Limit)
	s.Equal(uint64(1), res.Metadata.Page)

	_, err = s.products.SearchProductsUnderCategory(s.ctx, electronics.ID, dto.ProductSearchRequest{Sort: "cheapest"})
	s.ErrorIs(err, errs.ErrInvalidSort)
	s.Equal(errs.KindValidation, errs.GetErrorKind(err))

	unverified, verified := false, true
	for _, sort := range []string{"featured", "popular"} {
		_, err = s.products.SearchProductsUnderCategory(s.ctx, electronics.ID, dto.ProductSearchRequest{Sort: sort, Verified: &unverified})
		s.ErrorIs(err, errs.ErrClient, sort)

		res, err = s.products.SearchProductsUnderCategory(s.ctx, electronics.ID, dto.ProductSearchRequest{Sort: sort, Verified: &verified})
		s.Require().NoError(err)
		s.Equal([]string{pricey.ID.Hex(), cheap.ID.Hex()}, ids(res.Records))
	}

	_, err = s.products.SearchProductsUnderCategory(s.ctx, "5f1d7f3e9b1e8a3d4c2b1a09", dto.ProductSearchRequest{})
	s.ErrorIs(err, errs.ErrCategoryNotFound)
}

func (s *CatalogServiceSuite) TestDecreaseProductsStock() {
	leaf := s.createCategory("Leaf", "")
	first := s.createProduct(seller, leaf.ID, "P-1", 10, 6)
	second := s.createProduct(seller, leaf.ID, "P-2", 10, 1)

	err := s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{
		{ProductID: first.ID, Quantity: 2},
		{ProductID: second.ID, Quantity: 5},
	}})
	s.ErrorIs(err, errs.ErrInsufficientStock)
	s.Equal(errs.KindConflict, errs.GetErrorKind(err))

	got, err := s.products.GetProductByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(int64(6), got.Stock)

	err = s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{{ProductID: first.ID, Quantity: 0}}})
	s.ErrorIs(err, errs.ErrInvalidQuantity)

	err = s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{})
	s.ErrorIs(err, errs.ErrClient)

	s.Require().NoError(s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{
		{ProductID: first.ID, Quantity: 2},
		{ProductID: second.ID, Quantity: 1},
	}}))

	got, err = s.products.GetProductByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(int64(4), got.Stock)
	s.Equal(int64(2), got.SoldCount)
	s.Equal(string(domain.StockStatusLowStock), got.Status)

	got, err = s.products.GetProductByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(string(domain.StockStatusOutOfStock), got.Status)

	s.Len(s.notifier.Notified(), 2)
	s.Len(s.publisher.EventsOfType(service.EventDecreaseProductQuantity), 2)

	s.Require().NoError(s.products.RestoreProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{{ProductID: second.ID, Quantity: 1}}}))
	got, err = s.products.GetProductByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), got.Stock)
	s.Zero(got.SoldCount)
	s.Len(s.publisher.EventsOfType(service.EventRestoreProductStockES), 1)
}

func (s *CatalogServiceSuite) TestConcurrentDecrementsNeverOversell() {
	leaf := s.createCategory("Leaf", "")
	product := s.createProduct(seller, leaf.ID, "P-1", 10, 10)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{{ProductID: product.ID, Quantity: 1}}})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, errs.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	s.Equal(10, ok)
	s.Equal(15, rejected)

	got, err := s.products.GetProductByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Zero(got.Stock)
	s.Equal(int64(10), got.SoldCount)
}

func (s *CatalogServiceSuite) TestStockFailureRollsBackWholeOrder() {
	leaf := s.createCategory("Leaf", "")
	first := s.createProduct(seller, leaf.ID, "P-1", 10, 10)
	second := s.createProduct(seller, leaf.ID, "P-2", 10, 10)
	before := s.repo.Products()

	s.repo.FailOn("DecreaseProductStock", context.DeadlineExceeded)

	err := s.products.DecreaseProductsStock(s.ctx, dto.OrderRequest{OrderItems: []dto.OrderItem{
		{ProductID: first.ID, Quantity: 1},
		{ProductID: second.ID, Quantity: 1},
	}})
	s.True(errs.IsRetryable(err))
	s.Equal(before, s.repo.Products())
	s.Empty(s.notifier.Notified())
}

func (s *CatalogServiceSuite) TestConsumeEvent() {
	leaf := s.createCategory("Leaf", "")
	product := s.createProduct(seller, leaf.ID, "P-1", 10, 10)

	s.Require().NoError(s.reader.Push(service.EventOrderCreated, dto.OrderRequest{
		TransactionNumber: "TRX-1",
		OrderItems:        []dto.OrderItem{{ProductID: product.ID, Quantity: 4}},
	}))
	s.Require().NoError(s.reader.Push(service.EventOrderCreated, dto.OrderRequest{
		TransactionNumber: "TRX-2",
		OrderItems:        []dto.OrderItem{{ProductID: product.ID, Quantity: 100}},
	}))
	s.reader.PushRaw([]byte("{not json"))
	s.Require().NoError(s.reader.Push("user_update", map[string]string{"id": "1"}))
	s.Require().NoError(s.reader.Push(service.EventRestoreProductStock, dto.OrderRequest{
		TransactionNumber: "TRX-1",
		OrderItems:        []dto.OrderItem{{ProductID: product.ID, Quantity: 1}},
	}))

	s.products.ConsumeEvent(s.ctx)

	updates := s.publisher.EventsOfType(service.EventStockUpdated)
	s.Require().Len(updates, 2)
	s.Equal("TRX-1", updates[0].Key)
	s.Equal(dto.StockUpdate{TransactionNumber: "TRX-1", Status: true}, updates[0].Data)
	s.Equal(dto.StockUpdate{TransactionNumber: "TRX-2", Status: false}, updates[1].Data)

	got, err := s.products.GetProductByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(int64(7), got.Stock)
}

func (s *CatalogServiceSuite) TestConsumeEventStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.products.ConsumeEvent(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("consumer did not stop")
	}
}

func (s *CatalogServiceSuite) TestProductIDsAreValidated() {
	_, err := s.products.GetProductByID(s.ctx, "nope")
	s.ErrorIs(err, errs.ErrInvalidID)

	_, err = s.products.GetProductByID(s.ctx, primitive.NewObjectID().Hex())
	s.ErrorIs(err, errs.ErrProductNotFound)
	s.Equal(errs.KindNotFound, errs.GetErrorKind(err))
}
