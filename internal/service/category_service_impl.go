package service

import (
	"context"
	"errors"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/repository"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CategoryServiceImpl struct {
	repo      repository.CatalogRepository
	blobStore BlobStore
	publisher EventPublisher
}

func CreateCategoryService(repo repository.CatalogRepository, blobStore BlobStore, publisher EventPublisher) CategoryService {
	return &CategoryServiceImpl{repo: repo, blobStore: blobStore, publisher: publisher}
}

func (s *CategoryServiceImpl) AddCategory(ctx context.Context, actor domain.Actor, req dto.CategoryRequest) (res dto.CategoryResponse, err error) {
	if !actor.CanManageCategories() {
		return res, errs.ErrUnauthorized
	}

	name, err := domain.NormalizeCategoryName(req.Name)
	if err != nil {
		return res, err
	}

	var parentID *primitive.ObjectID
	if !isRootReference(req.Parent) {
		id, err := parseObjectID(req.Parent)
		if err != nil {
			return res, err
		}
		parentID = &id
	}

	image, err := uploadImage(ctx, s.blobStore, req.Image)
	if err != nil {
		return res, err
	}

	var created domain.Category
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		exists, err := repo.CategoryNameExists(ctx, name, primitive.NilObjectID)
		if err != nil {
			return err
		}
		if exists {
			return errs.ErrDuplicateName
		}

		now := time.Now()
		category := domain.Category{
			ID:        primitive.NewObjectID(),
			Name:      name,
			Children:  []primitive.ObjectID{},
			Image:     image,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var parent *domain.Category
		if parentID != nil {
			p, err := loadParentCategory(ctx, repo, *parentID)
			if err != nil {
				return err
			}
			parent = &p
		}

		category.PlaceUnder(parent)

		if _, err := repo.AddCategory(ctx, category); err != nil {
			return err
		}

		if parent != nil {
			if err := repo.AddChildCategory(ctx, parent.ID, category.ID); err != nil {
				return err
			}
		}

		created = category
		return nil
	})
	if err != nil {
		discardImages(ctx, s.blobStore, image)
		return res, err
	}

	publishEvent(ctx, s.publisher, EventCategoryCreated, created.ID.Hex(), dto.NewCategoryEvent(created))

	return dto.NewCategoryResponse(created), nil
}

// loadParentCategory fetches and locks a prospective parent, refusing one that
// already holds products since it would stop being a leaf.
func loadParentCategory(ctx context.Context, repo repository.CatalogRepository, id primitive.ObjectID) (parent domain.Category, err error) {
	parent, err = repo.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrCategoryNotFound) {
			return parent, errs.ErrParentNotFound
		}
		return parent, err
	}

	if err = repo.LockCategory(ctx, id); err != nil {
		return parent, err
	}

	count, err := repo.CountProducts(ctx, []primitive.ObjectID{id})
	if err != nil {
		return parent, err
	}

	if count > 0 {
		return parent, errs.ErrParentHasProducts
	}

	return parent, nil
}

func (s *CategoryServiceImpl) GetCategoryByID(ctx context.Context, id string) (res dto.CategoryResponse, err error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return res, err
	}

	category, err := s.repo.GetCategoryByID(ctx, objectID)
	if err != nil {
		return res, err
	}

	return dto.NewCategoryResponse(category), nil
}

func (s *CategoryServiceImpl) GetCategories(ctx context.Context, req dto.CategoryListRequest) (res []dto.CategoryResponse, err error) {
	filter := pkgdto.CategoryFilter{ActiveOnly: !req.IncludeInactive}

	if req.Parent != nil {
		if isRootReference(*req.Parent) {
			filter.Parent = pkgdto.ParentRoot
		} else {
			parentID, err := parseObjectID(*req.Parent)
			if err != nil {
				return nil, err
			}
			filter.Parent = pkgdto.ParentID
			filter.ParentID = parentID
		}
	}

	categories, err := s.repo.GetCategories(ctx, filter)
	if err != nil {
		return nil, err
	}

	res = make([]dto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		res = append(res, dto.NewCategoryResponse(c))
	}

	if !req.IncludeProducts || len(categories) == 0 {
		return res, nil
	}

	ids := categoryIDs(categories)

	counts, err := s.repo.CountProductsByCategories(ctx, ids)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.GetProductsByCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	grouped := groupProductsByCategory(products)

	for i, c := range categories {
		count := counts[c.ID]
		res[i].ProductCount = &count
		res[i].AssociatedProducts = grouped[c.ID]
		if res[i].AssociatedProducts == nil {
			res[i].AssociatedProducts = []dto.ProductResponse{}
		}
	}

	return res, nil
}

func (s *CategoryServiceImpl) GetCategoryTree(ctx context.Context, rootID string) (res []dto.CategoryTreeNode, err error) {
	var (
		root       *primitive.ObjectID
		categories []domain.Category
	)

	if rootID == "" {
		categories, err = s.repo.GetCategories(ctx, pkgdto.CategoryFilter{ActiveOnly: true})
		if err != nil {
			return nil, err
		}
	} else {
		id, err := parseObjectID(rootID)
		if err != nil {
			return nil, err
		}

		category, err := s.repo.GetCategoryByID(ctx, id)
		if err != nil {
			return nil, err
		}

		subtree, err := s.repo.GetCategoriesUnderPath(ctx, category.Path)
		if err != nil {
			return nil, err
		}

		for _, c := range subtree {
			if c.IsActive {
				categories = append(categories, c)
			}
		}
		root = &id
	}

	if len(categories) == 0 {
		return []dto.CategoryTreeNode{}, nil
	}

	ids := categoryIDs(categories)

	counts, err := s.repo.CountProductsByCategories(ctx, ids)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.GetProductsByCategories(ctx, ids)
	if err != nil {
		return nil, err
	}

	return buildCategoryTree(categories, counts, groupProductsByCategory(products), root), nil
}

func (s *CategoryServiceImpl) UpdateCategory(ctx context.Context, actor domain.Actor, id string, req dto.CategoryUpdateRequest) (res dto.CategoryResponse, err error) {
	if !actor.CanManageCategories() {
		return res, errs.ErrUnauthorized
	}

	objectID, err := parseObjectID(id)
	if err != nil {
		return res, err
	}

	var name string
	if req.Name != nil {
		name, err = domain.NormalizeCategoryName(*req.Name)
		if err != nil {
			return res, err
		}
	}

	var newParentID *primitive.ObjectID
	if req.Parent != nil && !isRootReference(*req.Parent) {
		parentID, err := parseObjectID(*req.Parent)
		if err != nil {
			return res, err
		}
		newParentID = &parentID
	}

	image, err := uploadImage(ctx, s.blobStore, req.Image)
	if err != nil {
		return res, err
	}

	var (
		updated  domain.Category
		replaced *domain.Image
	)
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		replaced = nil

		category, err := repo.GetCategoryByID(ctx, objectID)
		if err != nil {
			return err
		}

		if err := repo.LockCategory(ctx, objectID); err != nil {
			return err
		}

		if req.Name != nil && name != category.Name {
			exists, err := repo.CategoryNameExists(ctx, name, objectID)
			if err != nil {
				return err
			}
			if exists {
				return errs.ErrDuplicateName
			}
			category.Name = name
		}

		if req.IsActive != nil {
			category.IsActive = *req.IsActive
		}

		if image != nil {
			replaced = category.Image
			category.Image = image
		}

		if req.Parent != nil && !domain.SameParent(category.Parent, newParentID) {
			if err := moveCategory(ctx, repo, &category, newParentID); err != nil {
				return err
			}
		}

		category.UpdatedAt = time.Now()
		if err := repo.UpdateCategory(ctx, category); err != nil {
			return err
		}

		updated = category
		return nil
	})
	if err != nil {
		discardImages(ctx, s.blobStore, image)
		return res, err
	}

	discardImages(ctx, s.blobStore, replaced)
	publishEvent(ctx, s.publisher, EventCategoryUpdated, updated.ID.Hex(), dto.NewCategoryEvent(updated))

	return dto.NewCategoryResponse(updated), nil
}

// moveCategory re-parents category (nil parentID moves it to the root), keeps
// both children caches in step and rewrites level and path across the subtree.
// The category document itself is left for the caller to persist.
func moveCategory(ctx context.Context, repo repository.CatalogRepository, category *domain.Category, parentID *primitive.ObjectID) error {
	var parent *domain.Category
	if parentID != nil {
		if *parentID == category.ID {
			return errs.ErrCircularReference
		}

		p, err := loadParentCategory(ctx, repo, *parentID)
		if err != nil {
			return err
		}

		if category.Contains(p) {
			return errs.ErrCircularReference
		}
		parent = &p
	}

	subtree, err := repo.GetCategoriesUnderPath(ctx, category.Path)
	if err != nil {
		return err
	}

	oldParent, oldLevel, oldPath := category.Parent, category.Level, category.Path
	category.PlaceUnder(parent)

	if oldParent != nil {
		if err := repo.RemoveChildCategory(ctx, *oldParent, category.ID); err != nil {
			return err
		}
	}

	if parent != nil {
		if err := repo.AddChildCategory(ctx, parent.ID, category.ID); err != nil {
			return err
		}
	}

	delta := category.Level - oldLevel
	for _, d := range subtree {
		if d.ID == category.ID {
			continue
		}

		err := repo.UpdateCategoryLineage(ctx, d.ID, d.Level+delta, domain.RebasePath(d.Path, oldPath, category.Path))
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *CategoryServiceImpl) DeleteCategory(ctx context.Context, actor domain.Actor, id string) (err error) {
	if !actor.CanManageCategories() {
		return errs.ErrUnauthorized
	}

	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	var deleted domain.Category
	err = s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
		category, err := repo.GetCategoryByID(ctx, objectID)
		if err != nil {
			return err
		}

		if err := repo.LockCategory(ctx, objectID); err != nil {
			return err
		}

		productCount, err := repo.CountProducts(ctx, []primitive.ObjectID{objectID})
		if err != nil {
			return err
		}
		if productCount > 0 {
			return errs.HasProducts(productCount)
		}

		childCount, err := repo.CountChildCategories(ctx, objectID)
		if err != nil {
			return err
		}
		if cached := int64(len(category.Children)); cached > childCount {
			childCount = cached
		}
		if childCount > 0 {
			return errs.HasChildren(childCount)
		}

		if !category.IsRoot() {
			if err := repo.RemoveChildCategory(ctx, *category.Parent, objectID); err != nil {
				return err
			}
		}

		if err := repo.DeleteCategory(ctx, objectID); err != nil {
			return err
		}

		deleted = category
		return nil
	})
	if err != nil {
		return err
	}

	discardImages(ctx, s.blobStore, deleted.Image)
	publishEvent(ctx, s.publisher, EventCategoryDeleted, deleted.ID.Hex(), dto.NewCategoryEvent(deleted))

	return nil
}

func (s *CategoryServiceImpl) ListDescendantCategories(ctx context.Context, id string) (res []dto.CategoryResponse, err error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	category, err := s.repo.GetCategoryByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	descendants, err := s.repo.GetCategoriesUnderPath(ctx, category.Path)
	if err != nil {
		return nil, err
	}

	res = make([]dto.CategoryResponse, 0, len(descendants))
	for _, c := range descendants {
		res = append(res, dto.NewCategoryResponse(c))
	}

	return res, nil
}

// ReconcileCategoryChildren rebuilds drifted children caches from the parent
// pointers. Each repair runs in its own transaction against fresh reads.
func (s *CategoryServiceImpl) ReconcileCategoryChildren(ctx context.Context) (repaired int, err error) {
	categories, err := s.repo.GetCategories(ctx, pkgdto.CategoryFilter{})
	if err != nil {
		return 0, err
	}

	known := make(map[primitive.ObjectID]bool, len(categories))
	expected := make(map[primitive.ObjectID][]primitive.ObjectID)
	for _, c := range categories {
		known[c.ID] = true
		if !c.IsRoot() {
			expected[*c.Parent] = append(expected[*c.Parent], c.ID)
		}
	}

	for parentID, children := range expected {
		if !known[parentID] {
			log.Ctx(ctx).Warn().Str("component", "ReconcileCategoryChildren").Str("parent_id", parentID.Hex()).Int("orphans", len(children)).Msg("categories reference a missing parent")
		}
	}

	for _, c := range categories {
		if sameIDSet(c.Children, expected[c.ID]) {
			continue
		}

		var fixed bool
		err := s.repo.HandleTrx(ctx, func(ctx context.Context, repo repository.CatalogRepository) error {
			fixed = false

			current, err := repo.GetCategoryByID(ctx, c.ID)
			if err != nil {
				return err
			}

			children, err := repo.GetCategories(ctx, pkgdto.CategoryFilter{Parent: pkgdto.ParentID, ParentID: c.ID})
			if err != nil {
				return err
			}

			want := categoryIDs(children)
			if sameIDSet(current.Children, want) {
				return nil
			}

			if err := repo.SetChildCategories(ctx, c.ID, want); err != nil {
				return err
			}

			log.Ctx(ctx).Warn().Str("component", "ReconcileCategoryChildren").Str("category_id", c.ID.Hex()).Int("cached", len(current.Children)).Int("actual", len(want)).Msg("repaired children cache")
			fixed = true
			return nil
		})
		if err != nil {
			if errors.Is(err, errs.ErrCategoryNotFound) {
				continue
			}
			return repaired, err
		}

		if fixed {
			repaired++
		}
	}

	return repaired, nil
}

func sameIDSet(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[primitive.ObjectID]int, len(a))
	for _, id := range a {
		seen[id]++
	}

	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}

	return true
}
