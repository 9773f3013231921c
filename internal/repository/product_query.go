package repository

import (
	"regexp"

	pkgdto "github.com/alimikegami/point-of-sales/catalog-service/pkg/dto"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	FeaturedMinRating  = 4
	FeaturedMinReviews = 1
)

// buildProductQuery turns a product filter into a Mongo filter and sort document.
func buildProductQuery(param pkgdto.ProductFilter) (filter bson.D, sort bson.D) {
	filter = bson.D{}

	if param.CategoryIDs != nil {
		filter = append(filter, bson.E{Key: "category", Value: bson.D{{Key: "$in", Value: param.CategoryIDs}}})
	}

	if param.Q != "" {
		filter = append(filter, bson.E{Key: "title", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(param.Q)},
			{Key: "$options", Value: "i"},
		}})
	}

	if param.MinPrice != nil || param.MaxPrice != nil {
		price := bson.D{}
		if param.MinPrice != nil {
			price = append(price, bson.E{Key: "$gte", Value: *param.MinPrice})
		}
		if param.MaxPrice != nil {
			price = append(price, bson.E{Key: "$lte", Value: *param.MaxPrice})
		}
		filter = append(filter, bson.E{Key: "price", Value: price})
	}

	if param.InStock != nil {
		if *param.InStock {
			filter = append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$gt", Value: 0}}})
		} else {
			filter = append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$lte", Value: 0}}})
		}
	}

	if param.Vendor != "" {
		filter = append(filter, bson.E{Key: "vendor", Value: param.Vendor})
	}

	switch param.Sort {
	case pkgdto.SortFeatured:
		filter = append(filter,
			bson.E{Key: "verified", Value: true},
			bson.E{Key: "rating", Value: bson.D{{Key: "$gte", Value: FeaturedMinRating}}},
			bson.E{Key: "reviewsCount", Value: bson.D{{Key: "$gte", Value: FeaturedMinReviews}}},
		)
		sort = bson.D{
			{Key: "rating", Value: -1},
			{Key: "reviewsCount", Value: -1},
			{Key: "createdAt", Value: -1},
		}
	case pkgdto.SortPopular:
		filter = append(filter,
			bson.E{Key: "verified", Value: true},
			bson.E{Key: "$or", Value: bson.A{
				bson.D{{Key: "soldCount", Value: bson.D{{Key: "$gt", Value: 0}}}},
				bson.D{{Key: "reviewsCount", Value: bson.D{{Key: "$gte", Value: 1}}}},
			}},
		)
		sort = bson.D{
			{Key: "soldCount", Value: -1},
			{Key: "rating", Value: -1},
			{Key: "reviewsCount", Value: -1},
			{Key: "createdAt", Value: -1},
		}
	default:
		if param.Verified != nil {
			filter = append(filter, bson.E{Key: "verified", Value: *param.Verified})
		}

		switch param.Sort {
		case pkgdto.SortPriceAsc:
			sort = bson.D{{Key: "price", Value: 1}, {Key: "createdAt", Value: -1}}
		case pkgdto.SortPriceDesc:
			sort = bson.D{{Key: "price", Value: -1}, {Key: "createdAt", Value: -1}}
		default:
			sort = bson.D{{Key: "createdAt", Value: -1}}
		}
	}

	// stable paging across equal sort keys
	sort = append(sort, bson.E{Key: "_id", Value: -1})

	return filter, sort
}
