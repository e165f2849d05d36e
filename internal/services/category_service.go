package services

import (
	"context"
	"strings"

	"finledger/internal/core"
)

// CategoryService is the per-owner registry of expense categories. Names
// are unique per owner; rename and delete are not offered because
// transactions and budgets reference categories by name.
type CategoryService struct {
	base
}

// NewCategoryService creates the category registry over store.
func NewCategoryService(store Store, opts ...Option) *CategoryService {
	return &CategoryService{base: newBase(store, opts)}
}

// Create registers name for the owner. A duplicate yields core.ErrConflict.
func (s *CategoryService) Create(ctx context.Context, ownerID int64, name string) (core.Category, error) {
	c := core.Category{OwnerID: ownerID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	var created core.Category
	err := s.atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		created, err = tx.CreateCategory(ctx, c)
		return err
	})
	return created, err
}

// List returns the owner's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, ownerID int64) ([]core.Category, error) {
	return s.store.ListCategories(ctx, ownerID)
}
