package repository

import (
	"context"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoDBCatalogRepositoryImpl) AddProduct(ctx context.Context, data domain.Product) (id primitive.ObjectID, err error) {
	if data.ID.IsZero() {
		data.ID = primitive.NewObjectID()
	}

	result, err := r.products().InsertOne(ctx, data)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return id, errs.ErrDuplicateSKU
		}
		return id, storeError(ctx, "AddProduct", err)
	}

	return result.InsertedID.(primitive.ObjectID), nil
}

func (r *MongoDBCatalogRepositoryImpl) GetProductByID(ctx context.Context, id primitive.ObjectID) (product domain.Product, err error) {
	filter := bson.D{{Key: "_id", Value: id}}

	err = r.products().FindOne(ctx, filter).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return product, errs.ErrProductNotFound
		}
		return product, storeError(ctx, "GetProductByID", err)
	}

	return product, nil
}

func (r *MongoDBCatalogRepositoryImpl) GetProducts(ctx context.Context, param pkgdto.ProductFilter) (data []domain.Product, total int64, err error) {
	filter, sort := buildProductQuery(param)

	total, err = r.products().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, storeError(ctx, "GetProducts", err)
	}

	opts := options.Find().SetSort(sort)
	if param.Limit > 0 {
		opts = opts.SetSkip(param.Skip()).SetLimit(int64(param.Limit))
	}

	cursor, err := r.products().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, storeError(ctx, "GetProducts", err)
	}

	data = []domain.Product{}
	if err = cursor.All(ctx, &data); err != nil {
		return nil, 0, storeError(ctx, "GetProducts", err)
	}

	return data, total, nil
}

func (r *MongoDBCatalogRepositoryImpl) GetProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (data []domain.Product, err error) {
	data = []domain.Product{}
	if len(categoryIDs) == 0 {
		return data, nil
	}

	filter := bson.D{{Key: "category", Value: bson.D{{Key: "$in", Value: categoryIDs}}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.products().Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(ctx, "GetProductsByCategories", err)
	}

	if err = cursor.All(ctx, &data); err != nil {
		return nil, storeError(ctx, "GetProductsByCategories", err)
	}

	return data, nil
}

func (r *MongoDBCatalogRepositoryImpl) CountProductsByCategories(ctx context.Context, categoryIDs []primitive.ObjectID) (counts map[primitive.ObjectID]int64, err error) {
	pipeline := mongo.Pipeline{}
	if categoryIDs != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: "category", Value: bson.D{{Key: "$in", Value: categoryIDs}}},
		}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$category"},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}})

	cursor, err := r.products().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeError(ctx, "CountProductsByCategories", err)
	}

	var rows []struct {
		CategoryID primitive.ObjectID `bson:"_id"`
		Count      int64              `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, storeError(ctx, "CountProductsByCategories", err)
	}

	counts = make(map[primitive.ObjectID]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Count
	}

	return counts, nil
}

func (r *MongoDBCatalogRepositoryImpl) CountProducts(ctx context.Context, categoryIDs []primitive.ObjectID) (count int64, err error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}

	filter := bson.D{{Key: "category", Value: bson.D{{Key: "$in", Value: categoryIDs}}}}

	count, err = r.products().CountDocuments(ctx, filter)
	if err != nil {
		return 0, storeError(ctx, "CountProducts", err)
	}

	return count, nil
}

func (r *MongoDBCatalogRepositoryImpl) UpdateProduct(ctx context.Context, data domain.Product) (err error) {
	filter := bson.D{{Key: "_id", Value: data.ID}}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: data.Title},
		{Key: "detailedDescription", Value: data.Description},
		{Key: "price", Value: data.Price},
		{Key: "colors", Value: data.Colors},
		{Key: "category", Value: data.Category},
		{Key: "stock", Value: data.Stock},
		{Key: "status", Value: domain.StockStatusFor(data.Stock)},
		{Key: "country", Value: data.Country},
		{Key: "updatedAt", Value: data.UpdatedAt},
	}}}

	result, err := r.products().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "UpdateProduct", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) SetProductCategory(ctx context.Context, productID primitive.ObjectID, categoryID primitive.ObjectID) (err error) {
	filter := bson.D{{Key: "_id", Value: productID}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "category", Value: categoryID},
		{Key: "updatedAt", Value: time.Now()},
	}}}

	result, err := r.products().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "SetProductCategory", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}

func (r *MongoDBCatalogRepositoryImpl) SetProductVerification(ctx context.Context, id primitive.ObjectID, verified bool) (err error) {
	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "verified", Value: verified},
		{Key: "updatedAt", Value: time.Now()},
	}}}

	result, err := r.products().UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError(ctx, "SetProductVerification", err)
	}

	if result.MatchedCount == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}

// stockUpdate shifts stock by delta and soldCount by -delta, then derives status
// from the new stock, all in one pipeline update.
func stockUpdate(delta int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "stock", Value: bson.D{{Key: "$add", Value: bson.A{"$stock", delta}}}},
			{Key: "soldCount", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$subtract", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$soldCount", 0}}}, delta}}},
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: bson.A{
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$lte", Value: bson.A{"$stock", 0}}}},
						{Key: "then", Value: domain.StockStatusOutOfStock},
					},
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$lt", Value: bson.A{"$stock", domain.LowStockThreshold}}}},
						{Key: "then", Value: domain.StockStatusLowStock},
					},
				}},
				{Key: "default", Value: domain.StockStatusInStock},
			}}}},
		}}},
	}
}

func (r *MongoDBCatalogRepositoryImpl) DecreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error) {
	if quantity <= 0 {
		return product, errs.ErrInvalidQuantity
	}

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "stock", Value: bson.D{{Key: "$gte", Value: quantity}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	err = r.products().FindOneAndUpdate(ctx, filter, stockUpdate(-quantity), opts).Decode(&product)
	if err == nil {
		return product, nil
	}

	if err != mongo.ErrNoDocuments {
		return product, storeError(ctx, "DecreaseProductStock", err)
	}

	// the guard failed: either the product is gone or there is not enough stock
	if _, err = r.GetProductByID(ctx, id); err != nil {
		return product, err
	}

	return product, errs.ErrInsufficientStock
}

func (r *MongoDBCatalogRepositoryImpl) IncreaseProductStock(ctx context.Context, id primitive.ObjectID, quantity int64) (product domain.Product, err error) {
	if quantity <= 0 {
		return product, errs.ErrInvalidQuantity
	}

	filter := bson.D{{Key: "_id", Value: id}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	err = r.products().FindOneAndUpdate(ctx, filter, stockUpdate(quantity), opts).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return product, errs.ErrProductNotFound
		}
		return product, storeError(ctx, "IncreaseProductStock", err)
	}

	return product, nil
}

func (r *MongoDBCatalogRepositoryImpl) DeleteProduct(ctx context.Context, id primitive.ObjectID) (err error) {
	result, err := r.products().DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return storeError(ctx, "DeleteProduct", err)
	}

	if result.DeletedCount == 0 {
		return errs.ErrProductNotFound
	}

	return nil
}
