package domain

import (
	"strings"
	"time"

	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxCategoryNameLength = 100
	PathSeparator         = "/"
)

type Image struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

type Category struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	Parent    *primitive.ObjectID  `bson:"parent" json:"parent"`
	Children  []primitive.ObjectID `bson:"children" json:"children"`
	Image     *Image               `bson:"image,omitempty" json:"image,omitempty"`
	IsActive  bool                 `bson:"isActive" json:"isActive"`
	Level     int                  `bson:"level" json:"level"`
	Path      string               `bson:"path" json:"path"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// NormalizeCategoryName trims the name and checks it is usable.
func NormalizeCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > MaxCategoryNameLength {
		return "", errs.ErrInvalidName
	}
	return name, nil
}

func (c Category) IsRoot() bool {
	return c.Parent == nil
}

// PlaceUnder derives parent, level and path from parent (nil for a root).
// The category must already have its ID.
func (c *Category) PlaceUnder(parent *Category) {
	if parent == nil {
		c.Parent = nil
		c.Level = 1
		c.Path = c.ID.Hex()
		return
	}

	parentID := parent.ID
	c.Parent = &parentID
	c.Level = parent.Level + 1
	c.Path = parent.Path + PathSeparator + c.ID.Hex()
}

// Contains reports whether other is c itself or lies in c's subtree.
func (c Category) Contains(other Category) bool {
	return PathWithin(other.Path, c.Path)
}

func (c Category) HasChild(id primitive.ObjectID) bool {
	for _, child := range c.Children {
		if child == id {
			return true
		}
	}
	return false
}

// PathWithin reports whether path equals prefix or descends from it.
func PathWithin(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+PathSeparator)
}

// RebasePath moves path from under oldPrefix to under newPrefix.
func RebasePath(path, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

func SameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
