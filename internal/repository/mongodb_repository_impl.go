package repository

import (
	"context"
	"regexp"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CategoryCollection = "categories"
	ProductCollection  = "products"
)

type MongoDBCatalogRepositoryImpl struct {
	db *mongo.Database
}

func CreateNewMongoDBRepository(db *mongo.Database) CatalogRepository {
	return &MongoDBCatalogRepositoryImpl{db: db}
}

func (r *MongoDBCatalogRepositoryImpl) categories() *mongo.Collection {
	return r.db.Collection(CategoryCollection)
}

func (r *MongoDBCatalogRepositoryImpl) products() *mongo.Collection {
	return r.db.Collection(ProductCollection)
}

// storeError logs a driver failure and hides it behind an infrastructure error.
func storeError(ctx context.Context, component string, err error) error {
	log.Ctx(ctx).Error().Err(err).Str("component", component).Msg("")
	return errs.Infrastructure(component, err)
}

func (r *MongoDBCatalogRepositoryImpl) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo CatalogRepository) error) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return storeError(ctx, "HandleTrx", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		err := fn(sessCtx, r)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("component", "HandleTrx").Msg("transaction aborted")
		}
		return nil, err
	})

	return trxError(ctx, err)
}

// trxError hides driver failures that escape WithTransaction, such as an
// exhausted commit retry, and leaves domain errors from fn untouched.
func trxError(ctx context.Context, err error) error {
	if err != nil && errs.GetErrorKind(err) == errs.KindInternal {
		return storeError(ctx, "HandleTrx", err)
	}

	return err
}

func (r *MongoDBCatalogRepositoryImpl) AddCategory(ctx context.Context, data domain.Category) (id primitive.ObjectID, err error) {
	if data.ID.IsZero() {
		data.ID = primitive.NewObjectID()
	}
	if data.Children == nil {
		data.Children = []primitive.ObjectID{}
	}

	result, err := r.categories().InsertOne(ctx, data)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return id, errs.ErrDuplicateName
		}
		return id, storeError(ctx, "AddCategory", err)
	}

	return result.InsertedID.(primitive.ObjectID), nil
}

func (r *MongoDBCatalogRepositoryImpl) GetCategoryByID(ctx context.Context, id primitive.ObjectID) (category domain.Category, err error) {
	filter := bson.D{{Key: "_id", Value: id}}

	err = r.categories().FindOne(ctx, filter).Decode(&category)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return category, errs.ErrCategoryNotFound
		}
		return category, storeError(ctx, "GetCategoryByID", err)
	}

	return category, nil
}

func (r *MongoDBCatalogRepositoryImpl) CategoryNameExists(ctx context.Context, name string, excludeID primitive.ObjectID) (exists bool, err error) {
	filter := bson.D{
		{Key: "name", Value: name},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}},
	}

	count, err := r.categories().CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, storeError(ctx, "CategoryNameExists", err)
	}

	return count > 0, nil
}

func (r *MongoDBCatalogRepositoryImpl) GetCategories(ctx context.Context, param pkgdto.CategoryFilter) (data []domain.Category, err error) {
	filter := bson.D{}

	switch param.Parent {
	case pkgdto.ParentRoot:
		filter = append(filter, bson.E{Key: "parent", Value: nil})
	case pkgdto.ParentID:
		filter = append(filter, bson.E{Key: "parent", Value: param.ParentID})
	}

	if param.ActiveOnly {
		filter = append(filter, bson.E{Key: "isActive", Value: true})
	}

	return r.findCategories(ctx, "GetCategories", filter)
}

func (r *MongoDBCatalogRepositoryImpl) GetCategoriesUnderPath(ctx context.Context, path string) (data []domain.Category, err error) {
	filter := bson.D{{Key: "path", Value: bson.D{{Key: "$regex", Value: subtreePattern(path)}}}}

	return r.findCategories(ctx, "GetCategoriesUnderPath", filter)
}

func subtreePattern(path string) string {
	return "^" + regexp.QuoteMeta(path) + "(" + regexp.QuoteMeta(domain.PathSeparator) + "|$)"
}

func (r *MongoDBCatalogRepositoryImpl) findCategories(ctx context.Context, component string, filter bson.D) (data []domain.Category, err error) {
	opts := options.Find().SetSort(bson.D{{Key: "level", Value: 1}, {Key: "name", Value: 1}})

	cursor, err := r.categories().Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(ctx, component, err)
	}

	data = []domain.Category{}
	if err = cursor.All(ctx, &data); err != nil {
		return nil, storeError(ctx, component, err)
	}

	return data, nil
}

func (r *MongoDBCatalogRepositoryImpl) CountChildCategories(ctx context.Context, id primitive.ObjectID) (count int64, err error) {
	count, err = r.categories().CountDocuments(ctx, bson.D{{Key: "parent", Value: id}})
	if err != nil {
		return 0, storeError(ctx, "CountChildCategories", err)
	}

	return count, nil
}

func (r *MongoDBCatalogRepositoryImpl) LockCategory(ctx context.Context, id primitive.ObjectID) (err error) {
	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}}}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "LockCategory", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) UpdateCategory(ctx context.Context, data domain.Category) (err error) {
	filter := bson.D{{Key: "_id", Value: data.ID}}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: data.Name},
		{Key: "parent", Value: data.Parent},
		{Key: "image", Value: data.Image},
		{Key: "isActive", Value: data.IsActive},
		{Key: "level", Value: data.Level},
		{Key: "path", Value: data.Path},
		{Key: "updatedAt", Value: data.UpdatedAt},
	}}}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrDuplicateName
		}
		return storeError(ctx, "UpdateCategory", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) UpdateCategoryLineage(ctx context.Context, id primitive.ObjectID, level int, path string) (err error) {
	filter := bson.D{{Key: "_id", Value: id}}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "level", Value: level},
		{Key: "path", Value: path},
		{Key: "updatedAt", Value: time.Now()},
	}}}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "UpdateCategoryLineage", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) AddChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error) {
	filter := bson.D{{Key: "_id", Value: parentID}}

	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "children", Value: childID}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now()}}},
	}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "AddChildCategory", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrParentNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) RemoveChildCategory(ctx context.Context, parentID primitive.ObjectID, childID primitive.ObjectID) (err error) {
	filter := bson.D{{Key: "_id", Value: parentID}}

	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "children", Value: childID}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now()}}},
	}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "RemoveChildCategory", err)
	}

	if result.MatchedCount == 0 {
		log.Ctx(ctx).Warn().Str("component", "RemoveChildCategory").Str("parent_id", parentID.Hex()).Msg("parent category is missing")
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) SetChildCategories(ctx context.Context, id primitive.ObjectID, children []primitive.ObjectID) (err error) {
	if children == nil {
		children = []primitive.ObjectID{}
	}

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "children", Value: children},
		{Key: "updatedAt", Value: time.Now()},
	}}}

	result, err := r.categories().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "SetChildCategories", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) DeleteCategory(ctx context.Context, id primitive.ObjectID) (err error) {
	result, err := r.categories().DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return storeError(ctx, "DeleteCategory", err)
	}

	if result.DeletedCount == 0 {
		return errs.ErrCategoryNotFound
	}

	return nil
}
