package service

import (
	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// buildCategoryTree assembles the nested tree from a flat list ordered by
// (level, name). Only nodes reachable from the start point through listed
// categories are included, so the subtree of an unlisted category is dropped.
// With rootID the result holds that single category, or nothing when it is not listed.
func buildCategoryTree(categories []domain.Category, counts map[primitive.ObjectID]int64, products map[primitive.ObjectID][]dto.ProductResponse, rootID *primitive.ObjectID) []dto.CategoryTreeNode {
	var roots []domain.Category
	byParent := make(map[primitive.ObjectID][]domain.Category)

	for _, c := range categories {
		if rootID != nil {
			if c.ID == *rootID {
				roots = append(roots, c)
			}
		} else if c.IsRoot() {
			roots = append(roots, c)
		}

		if !c.IsRoot() {
			byParent[*c.Parent] = append(byParent[*c.Parent], c)
		}
	}

	var build func(nodes []domain.Category) []dto.CategoryTreeNode
	build = func(nodes []domain.Category) []dto.CategoryTreeNode {
		res := make([]dto.CategoryTreeNode, 0, len(nodes))
		for _, c := range nodes {
			associated := products[c.ID]
			if associated == nil {
				associated = []dto.ProductResponse{}
			}

			node := dto.CategoryTreeNode{
				ID:                 c.ID.Hex(),
				Name:               c.Name,
				Image:              c.Image,
				Level:              c.Level,
				Path:               c.Path,
				ProductCount:       counts[c.ID],
				AssociatedProducts: associated,
			}

			if children := byParent[c.ID]; len(children) > 0 {
				node.Children = build(children)
			}

			res = append(res, node)
		}
		return res
	}

	return build(roots)
}
