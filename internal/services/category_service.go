package services

import (
	"context"

	apperrors "centavo/internal/errors"
	"centavo/internal/models"
	"centavo/internal/month"
	"centavo/internal/store"
)

// categoryService handles category-related business logic.
type categoryService struct {
	store *store.Store
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(st *store.Store) CategoryServicer {
	return &categoryService{store: st}
}

// CreateCategory creates a new spending category. The creation month becomes
// the category's budget chain floor.
func (s *categoryService) CreateCategory(ctx context.Context, name, icon, color string) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	count, err := store.Count[models.Category](ctx, s.store, "name = ?", name)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}

	category := &models.Category{
		Name:       name,
		Icon:       icon,
		Color:      color,
		FloorMonth: month.Current(),
	}
	if err := store.Create(ctx, s.store, category); err != nil {
		return nil, err
	}
	return category, nil
}

// GetCategories returns all categories ordered by name.
func (s *categoryService) GetCategories(ctx context.Context) ([]models.Category, error) {
	return store.Where[models.Category](ctx, s.store, "name ASC", "1 = 1")
}

// GetCategoryByID returns a category by ID.
func (s *categoryService) GetCategoryByID(ctx context.Context, categoryID string) (*models.Category, error) {
	category, err := store.Find[models.Category](ctx, s.store, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperrors.ErrCategoryNotFound
	}
	return category, nil
}

// UpdateCategory updates a category's display fields.
func (s *categoryService) UpdateCategory(ctx context.Context, categoryID, name, icon, color string) (*models.Category, error) {
	category, err := s.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
		category.Name = name
	}
	if icon != "" {
		updates["icon"] = icon
		category.Icon = icon
	}
	if color != "" {
		updates["color"] = color
		category.Color = color
	}

	if len(updates) > 0 {
		if err := store.Updates(ctx, s.store, category, updates); err != nil {
			return nil, err
		}
	}
	return category, nil
}

// DeleteCategory removes a category together with its budget rows. Deletion
// is blocked while any transaction still references the category, so no
// transaction is ever left pointing at a missing envelope.
func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	category, err := s.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}

	count, err := store.Count[models.Transaction](ctx, s.store, "category_id = ?", categoryID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.ErrCategoryInUse
	}

	return s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := store.DeleteWhere[models.CategoryBudget](ctx, tx, "category_id = ?", categoryID); err != nil {
			return err
		}
		return store.Delete(ctx, tx, category)
	})
}
