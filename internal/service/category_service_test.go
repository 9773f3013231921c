package service_test

import (
	"errors"
	"strings"
	"sync"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func writeConflict() error {
	return mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
}

func (s *CatalogServiceSuite) countCalls(method string) int {
	n := 0
	for _, c := range s.repo.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

func (s *CatalogServiceSuite) TestElectronicsPhonesLifecycle() {
	electronics := s.createCategory("Electronics", "")
	s.Equal(1, electronics.Level)

	misc := s.createCategory("Misc", "")
	product := s.createProduct(seller, misc.ID, "SKU-1", 10, 3)

	phones := s.createCategory("Phones", electronics.ID)
	s.Equal(2, phones.Level)
	s.Equal(electronics.ID+"/"+phones.ID, phones.Path)

	got, err := s.categories.GetCategoryByID(s.ctx, electronics.ID)
	s.Require().NoError(err)
	s.Equal([]string{phones.ID}, got.Children)
	s.assertTreeConsistent()

	err = s.products.AssignProductToCategory(s.ctx, seller, product.ID, electronics.ID)
	s.ErrorIs(err, errs.ErrNotALeaf)
	s.Equal(errs.KindForbidden, errs.GetErrorKind(err))

	s.Require().NoError(s.products.AssignProductToCategory(s.ctx, seller, product.ID, phones.ID))

	err = s.categories.DeleteCategory(s.ctx, admin, electronics.ID)
	s.ErrorIs(err, errs.ErrHasChildren)
	s.Equal(errs.KindConflict, errs.GetErrorKind(err))
	s.Equal("Cannot delete category with 1 subcategories. Delete subcategories first.", err.Error())

	err = s.categories.DeleteCategory(s.ctx, admin, phones.ID)
	s.ErrorIs(err, errs.ErrHasProducts)
	s.Equal("Cannot delete category with 1 products. Move products first.", err.Error())

	s.Require().NoError(s.products.AssignProductToCategory(s.ctx, seller, product.ID, misc.ID))
	s.Require().NoError(s.categories.DeleteCategory(s.ctx, admin, phones.ID))

	got, err = s.categories.GetCategoryByID(s.ctx, electronics.ID)
	s.Require().NoError(err)
	s.Empty(got.Children)
	s.assertTreeConsistent()

	s.Require().NoError(s.categories.DeleteCategory(s.ctx, admin, electronics.ID))

	_, err = s.categories.GetCategoryByID(s.ctx, electronics.ID)
	s.ErrorIs(err, errs.ErrCategoryNotFound)
	s.assertTreeConsistent()

	s.Len(s.publisher.EventsOfType(service.EventCategoryCreated), 3)
	s.Len(s.publisher.EventsOfType(service.EventCategoryDeleted), 2)
	s.Len(s.publisher.EventsOfType(service.EventProductCategoryAssigned), 2)
}

func (s *CatalogServiceSuite) TestAddCategory() {
	root := s.createCategory("Fashion", "")

	type TestCase struct {
		Name        string
		Actor       domain.Actor
		Request     dto.CategoryRequest
		ExpectedErr error
	}

	testCases := []TestCase{
		{
			Name:        "Non admin",
			Actor:       seller,
			Request:     dto.CategoryRequest{Name: "Shoes"},
			ExpectedErr: errs.ErrUnauthorized,
		},
		{
			Name:        "Blank name",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "   "},
			ExpectedErr: errs.ErrInvalidName,
		},
		{
			Name:        "Name too long",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: strings.Repeat("x", domain.MaxCategoryNameLength+1)},
			ExpectedErr: errs.ErrInvalidName,
		},
		{
			Name:        "Duplicate name",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "Fashion"},
			ExpectedErr: errs.ErrDuplicateName,
		},
		{
			Name:        "Malformed parent",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "Shoes", Parent: "not-an-id"},
			ExpectedErr: errs.ErrInvalidID,
		},
		{
			Name:        "Unknown parent",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "Shoes", Parent: "5f1d7f3e9b1e8a3d4c2b1a09"},
			ExpectedErr: errs.ErrParentNotFound,
		},
		{
			Name:        "Not an image",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "Shoes", Image: &dto.FileUpload{Data: []byte("plain text")}},
			ExpectedErr: errs.ErrNotAnImage,
		},
		{
			Name:        "Image too large",
			Actor:       admin,
			Request:     dto.CategoryRequest{Name: "Shoes", Image: &dto.FileUpload{Data: make([]byte, service.MaxImageSize+1)}},
			ExpectedErr: errs.ErrFileTooLarge,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.Name, func() {
			_, err := s.categories.AddCategory(s.ctx, tc.Actor, tc.Request)
			s.ErrorIs(err, tc.ExpectedErr)
		})
	}

	s.Len(s.repo.Categories(), 1)

	child, err := s.categories.AddCategory(s.ctx, admin, dto.CategoryRequest{
		Name:   "  Shoes  ",
		Parent: root.ID,
		Image:  &dto.FileUpload{Filename: "shoes.png", Data: pngHeader},
	})
	s.Require().NoError(err)
	s.Equal("Shoes", child.Name)
	s.Require().NotNil(child.Parent)
	s.Equal(root.ID, *child.Parent)
	s.True(child.IsActive)
	s.Require().NotNil(child.Image)
	s.Contains(s.blobs.Stored(), child.Image.PublicID)
	s.assertTreeConsistent()
}

func (s *CatalogServiceSuite) TestAddCategoryUnderParentWithProducts() {
	root := s.createCategory("Books", "")
	s.createProduct(seller, root.ID, "BOOK-1", 12, 4)

	_, err := s.categories.AddCategory(s.ctx, admin, dto.CategoryRequest{
		Name:   "Novels",
		Parent: root.ID,
		Image:  &dto.FileUpload{Data: pngHeader},
	})
	s.ErrorIs(err, errs.ErrParentHasProducts)
	s.Equal(errs.KindConflict, errs.GetErrorKind(err))

	s.Len(s.repo.Categories(), 1)
	s.Empty(s.blobs.Stored())
}

func (s *CatalogServiceSuite) TestRoundTripAndReparent() {
	a := s.createCategory("A", "")
	d := s.createCategory("D", "")
	b := s.createCategory("B", a.ID)
	c := s.createCategory("C", b.ID)
	e := s.createCategory("E", c.ID)

	s.Equal(a.Level+1, b.Level)
	s.Equal([]string{b.ID}, s.mustGet(a.ID).Children)

	moved, err := s.categories.UpdateCategory(s.ctx, admin, b.ID, dto.CategoryUpdateRequest{Parent: strPtr(d.ID)})
	s.Require().NoError(err)
	s.Equal(d.Level+1, moved.Level)
	s.Equal(d.ID+"/"+b.ID, moved.Path)

	s.Empty(s.mustGet(a.ID).Children)
	s.Equal([]string{b.ID}, s.mustGet(d.ID).Children)

	s.Equal(3, s.category(c.ID).Level)
	s.Equal(d.ID+"/"+b.ID+"/"+c.ID, s.category(c.ID).Path)
	s.Equal(d.ID+"/"+b.ID+"/"+c.ID+"/"+e.ID, s.category(e.ID).Path)
	s.assertTreeConsistent()

	moved, err = s.categories.UpdateCategory(s.ctx, admin, b.ID, dto.CategoryUpdateRequest{Parent: strPtr("null")})
	s.Require().NoError(err)
	s.Nil(moved.Parent)
	s.Equal(1, moved.Level)
	s.Equal(b.ID, moved.Path)
	s.Equal(3, s.category(e.ID).Level)
	s.Equal(b.ID+"/"+c.ID+"/"+e.ID, s.category(e.ID).Path)
	s.Empty(s.mustGet(d.ID).Children)
	s.assertTreeConsistent()

	s.Len(s.publisher.EventsOfType(service.EventCategoryUpdated), 2)
}

func (s *CatalogServiceSuite) mustGet(id string) dto.CategoryResponse {
	res, err := s.categories.GetCategoryByID(s.ctx, id)
	s.Require().NoError(err)
	return res
}

func (s *CatalogServiceSuite) TestReparentRejectsCycles() {
	a := s.createCategory("A", "")
	b := s.createCategory("B", a.ID)
	c := s.createCategory("C", b.ID)
	before := s.repo.Categories()

	_, err := s.categories.UpdateCategory(s.ctx, admin, a.ID, dto.CategoryUpdateRequest{Parent: strPtr(a.ID)})
	s.ErrorIs(err, errs.ErrCircularReference)
	s.Equal(errs.KindValidation, errs.GetErrorKind(err))

	_, err = s.categories.UpdateCategory(s.ctx, admin, a.ID, dto.CategoryUpdateRequest{Parent: strPtr(c.ID)})
	s.ErrorIs(err, errs.ErrCircularReference)

	s.Equal(before, s.repo.Categories())
}

func (s *CatalogServiceSuite) TestUpdateCategory() {
	a := s.createCategory("A", "")
	b := s.createCategory("B", "")
	leaf := s.createCategory("Leaf", b.ID)
	s.createProduct(seller, leaf.ID, "LEAF-1", 5, 5)

	type TestCase struct {
		Name        string
		Actor       domain.Actor
		ID          string
		Request     dto.CategoryUpdateRequest
		ExpectedErr error
	}

	testCases := []TestCase{
		{Name: "Non admin", Actor: seller, ID: a.ID, Request: dto.CategoryUpdateRequest{Name: strPtr("Z")}, ExpectedErr: errs.ErrUnauthorized},
		{Name: "Unknown id", Actor: admin, ID: "5f1d7f3e9b1e8a3d4c2b1a09", Request: dto.CategoryUpdateRequest{Name: strPtr("Z")}, ExpectedErr: errs.ErrCategoryNotFound},
		{Name: "Rename onto existing", Actor: admin, ID: a.ID, Request: dto.CategoryUpdateRequest{Name: strPtr("B")}, ExpectedErr: errs.ErrDuplicateName},
		{Name: "Unknown parent", Actor: admin, ID: a.ID, Request: dto.CategoryUpdateRequest{Parent: strPtr("5f1d7f3e9b1e8a3d4c2b1a09")}, ExpectedErr: errs.ErrParentNotFound},
		{Name: "Parent with products", Actor: admin, ID: a.ID, Request: dto.CategoryUpdateRequest{Parent: strPtr(leaf.ID)}, ExpectedErr: errs.ErrParentHasProducts},
	}

	for _, tc := range testCases {
		s.Run(tc.Name, func() {
			_, err := s.categories.UpdateCategory(s.ctx, tc.Actor, tc.ID, tc.Request)
			s.ErrorIs(err, tc.ExpectedErr)
		})
	}
	s.assertTreeConsistent()

	first, err := s.categories.UpdateCategory(s.ctx, admin, a.ID, dto.CategoryUpdateRequest{
		Name:  strPtr("Alpha"),
		Image: &dto.FileUpload{Data: pngHeader},
	})
	s.Require().NoError(err)
	s.Equal("Alpha", first.Name)
	s.Require().NotNil(first.Image)

	second, err := s.categories.UpdateCategory(s.ctx, admin, a.ID, dto.CategoryUpdateRequest{
		IsActive: boolPtr(false),
		Image:    &dto.FileUpload{Data: pngHeader},
	})
	s.Require().NoError(err)
	s.False(second.IsActive)
	s.Contains(s.blobs.Deleted(), first.Image.PublicID)
	s.Equal([]string{second.Image.PublicID}, s.blobs.Stored())
}

func (s *CatalogServiceSuite) TestDeleteCategory() {
	a := s.createCategory("A", "")

	err := s.categories.DeleteCategory(s.ctx, customer, a.ID)
	s.ErrorIs(err, errs.ErrUnauthorized)

	err = s.categories.DeleteCategory(s.ctx, admin, "5f1d7f3e9b1e8a3d4c2b1a09")
	s.ErrorIs(err, errs.ErrCategoryNotFound)

	err = s.categories.DeleteCategory(s.ctx, admin, "xyz")
	s.ErrorIs(err, errs.ErrInvalidID)

	withImage, err := s.categories.AddCategory(s.ctx, admin, dto.CategoryRequest{Name: "Pictured", Image: &dto.FileUpload{Data: pngHeader}})
	s.Require().NoError(err)
	s.Require().NoError(s.categories.DeleteCategory(s.ctx, admin, withImage.ID))
	s.Contains(s.blobs.Deleted(), withImage.Image.PublicID)
}

func (s *CatalogServiceSuite) TestDeleteCategoryCountsCachedChildren() {
	a := s.createCategory("A", "")
	stale := s.category(a.ID)
	stale.Children = append(stale.Children, primitive.NewObjectID())
	s.repo.PutCategory(stale)

	err := s.categories.DeleteCategory(s.ctx, admin, a.ID)
	s.ErrorIs(err, errs.ErrHasChildren)
}

func (s *CatalogServiceSuite) TestFailedReparentLeavesStoreUnchanged() {
	a := s.createCategory("A", "")
	d := s.createCategory("D", "")
	b := s.createCategory("B", a.ID)
	s.createCategory("C", b.ID)
	before := s.repo.Categories()

	s.repo.FailOn("UpdateCategoryLineage", errors.New("connection reset by peer"))

	_, err := s.categories.UpdateCategory(s.ctx, admin, b.ID, dto.CategoryUpdateRequest{Parent: strPtr(d.ID)})
	s.ErrorIs(err, errs.ErrInfrastructure)
	s.True(errs.IsRetryable(err))
	s.Equal(errs.KindInfrastructure, errs.GetErrorKind(err))
	s.NotContains(err.Error(), "connection reset")

	s.Equal(before, s.repo.Categories())
	s.Empty(s.publisher.EventsOfType(service.EventCategoryUpdated))
}

func (s *CatalogServiceSuite) TestFailedCreateDiscardsUpload() {
	a := s.createCategory("A", "")
	s.repo.FailOn("AddChildCategory", errors.New("i/o timeout"))

	_, err := s.categories.AddCategory(s.ctx, admin, dto.CategoryRequest{
		Name:   "B",
		Parent: a.ID,
		Image:  &dto.FileUpload{Data: pngHeader},
	})
	s.True(errs.IsRetryable(err))
	s.Len(s.repo.Categories(), 1)
	s.Empty(s.blobs.Stored())
	s.Len(s.blobs.Deleted(), 1)
}

func (s *CatalogServiceSuite) TestWriteConflictRerunsTransaction() {
	a := s.createCategory("A", "")
	d := s.createCategory("D", "")
	b := s.createCategory("B", a.ID)
	c := s.createCategory("C", b.ID)
	trx := s.countCalls("HandleTrx")

	s.repo.FailOnce("UpdateCategoryLineage", writeConflict())

	moved, err := s.categories.UpdateCategory(s.ctx, admin, b.ID, dto.CategoryUpdateRequest{Parent: strPtr(d.ID)})
	s.Require().NoError(err)
	s.Equal(d.ID+"/"+b.ID, moved.Path)
	s.Equal(d.ID+"/"+b.ID+"/"+c.ID, s.category(c.ID).Path)
	s.Equal(trx+2, s.countCalls("HandleTrx"))
	s.Len(s.publisher.EventsOfType(service.EventCategoryUpdated), 1)
	s.assertTreeConsistent()
}

func (s *CatalogServiceSuite) TestPersistentWriteConflictSurfacesAsRetryable() {
	a := s.createCategory("A", "")
	d := s.createCategory("D", "")
	b := s.createCategory("B", a.ID)
	before := s.repo.Categories()
	trx := s.countCalls("HandleTrx")

	s.repo.FailOn("LockCategory", writeConflict())

	_, err := s.categories.UpdateCategory(s.ctx, admin, b.ID, dto.CategoryUpdateRequest{Parent: strPtr(d.ID)})
	s.True(errs.IsRetryable(err))
	s.Equal(errs.KindInfrastructure, errs.GetErrorKind(err))

	var cmdErr mongo.CommandError
	s.Require().True(errors.As(err, &cmdErr))
	s.True(cmdErr.HasErrorLabel("TransientTransactionError"))

	s.Equal(trx+3, s.countCalls("HandleTrx"))
	s.Equal(before, s.repo.Categories())
	s.Empty(s.publisher.EventsOfType(service.EventCategoryUpdated))
}

func (s *CatalogServiceSuite) TestConcurrentReparentsStayConsistent() {
	left := s.createCategory("Left", "")
	right := s.createCategory("Right", "")
	node := s.createCategory("Node", "")
	s.createCategory("Leaf", node.ID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		target := left.ID
		if i%2 == 1 {
			target = right.ID
		}

		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			_, err := s.categories.UpdateCategory(s.ctx, admin, node.ID, dto.CategoryUpdateRequest{Parent: strPtr(target)})
			s.NoError(err)
		}(target)
	}
	wg.Wait()

	s.assertTreeConsistent()

	moved := s.category(node.ID)
	s.Require().NotNil(moved.Parent)
	holders := 0
	for _, id := range []string{left.ID, right.ID} {
		if s.category(id).HasChild(moved.ID) {
			holders++
		}
	}
	s.Equal(1, holders)
}

func (s *CatalogServiceSuite) TestListDescendantCategories() {
	a := s.createCategory("A", "")
	b := s.createCategory("B", a.ID)
	c := s.createCategory("C", b.ID)
	s.createCategory("Sibling", a.ID)
	s.createCategory("Other", "")

	res, err := s.categories.ListDescendantCategories(s.ctx, b.ID)
	s.Require().NoError(err)

	ids := []string{}
	for _, r := range res {
		ids = append(ids, r.ID)
	}
	s.ElementsMatch([]string{b.ID, c.ID}, ids)

	res, err = s.categories.ListDescendantCategories(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Len(res, 4)

	_, err = s.categories.ListDescendantCategories(s.ctx, "5f1d7f3e9b1e8a3d4c2b1a09")
	s.ErrorIs(err, errs.ErrCategoryNotFound)
}

func (s *CatalogServiceSuite) TestGetCategories() {
	a := s.createCategory("A", "")
	b := s.createCategory("B", a.ID)
	hidden := s.createCategory("Hidden", a.ID)
	s.createCategory("Z", "")
	s.createProduct(seller, b.ID, "B-1", 1, 1)
	s.createProduct(seller, b.ID, "B-2", 2, 1)

	_, err := s.categories.UpdateCategory(s.ctx, admin, hidden.ID, dto.CategoryUpdateRequest{IsActive: boolPtr(false)})
	s.Require().NoError(err)

	all, err := s.categories.GetCategories(s.ctx, dto.CategoryListRequest{})
	s.Require().NoError(err)
	s.Equal([]string{"A", "Z", "B"}, names(all))

	all, err = s.categories.GetCategories(s.ctx, dto.CategoryListRequest{IncludeInactive: true})
	s.Require().NoError(err)
	s.Equal([]string{"A", "Z", "B", "Hidden"}, names(all))

	roots, err := s.categories.GetCategories(s.ctx, dto.CategoryListRequest{Parent: strPtr("root")})
	s.Require().NoError(err)
	s.Equal([]string{"A", "Z"}, names(roots))

	children, err := s.categories.GetCategories(s.ctx, dto.CategoryListRequest{Parent: strPtr(a.ID), IncludeProducts: true})
	s.Require().NoError(err)
	s.Require().Len(children, 1)
	s.Require().NotNil(children[0].ProductCount)
	s.Equal(int64(2), *children[0].ProductCount)
	s.Len(children[0].AssociatedProducts, 2)

	_, err = s.categories.GetCategories(s.ctx, dto.CategoryListRequest{Parent: strPtr("bogus")})
	s.ErrorIs(err, errs.ErrInvalidID)
}

func names(categories []dto.CategoryResponse) []string {
	res := make([]string, 0, len(categories))
	for _, c := range categories {
		res = append(res, c.Name)
	}
	return res
}

func (s *CatalogServiceSuite) TestGetCategoryTree() {
	electronics := s.createCategory("Electronics", "")
	phones := s.createCategory("Phones", electronics.ID)
	laptops := s.createCategory("Laptops", electronics.ID)
	s.createCategory("Gaming", laptops.ID)
	s.createCategory("Garden", "")
	s.createProduct(seller, phones.ID, "PHONE-1", 100, 10)

	tree, err := s.categories.GetCategoryTree(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(tree, 2)
	s.Equal("Electronics", tree[0].Name)
	s.Nil(tree[1].Children)

	s.Require().Len(tree[0].Children, 2)
	s.Equal("Laptops", tree[0].Children[0].Name)
	s.Len(tree[0].Children[0].Children, 1)
	s.Equal("Phones", tree[0].Children[1].Name)
	s.Equal(int64(1), tree[0].Children[1].ProductCount)
	s.Len(tree[0].Children[1].AssociatedProducts, 1)
	s.Equal(int64(0), tree[0].ProductCount)
	s.NotNil(tree[0].AssociatedProducts)

	_, err = s.categories.UpdateCategory(s.ctx, admin, laptops.ID, dto.CategoryUpdateRequest{IsActive: boolPtr(false)})
	s.Require().NoError(err)

	tree, err = s.categories.GetCategoryTree(s.ctx, electronics.ID)
	s.Require().NoError(err)
	s.Require().Len(tree, 1)
	s.Require().Len(tree[0].Children, 1)
	s.Equal("Phones", tree[0].Children[0].Name)

	_, err = s.categories.GetCategoryTree(s.ctx, "5f1d7f3e9b1e8a3d4c2b1a09")
	s.ErrorIs(err, errs.ErrCategoryNotFound)
}

func (s *CatalogServiceSuite) TestReconcileCategoryChildren() {
	a := s.createCategory("A", "")
	b := s.createCategory("B", a.ID)
	c := s.createCategory("C", "")

	drifted := s.category(a.ID)
	drifted.Children = nil
	s.repo.PutCategory(drifted)

	phantom := s.category(c.ID)
	phantom.Children = append(phantom.Children, s.category(b.ID).ID)
	s.repo.PutCategory(phantom)

	repaired, err := s.categories.ReconcileCategoryChildren(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, repaired)
	s.assertTreeConsistent()
	s.Equal([]string{b.ID}, s.mustGet(a.ID).Children)
	s.Empty(s.mustGet(c.ID).Children)

	repaired, err = s.categories.ReconcileCategoryChildren(s.ctx)
	s.Require().NoError(err)
	s.Zero(repaired)
}
