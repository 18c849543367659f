package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/repository"
	"ledgerly/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrCategoryExists = errors.New("category already exists")

// CategoryService manages a user's categories. Names are unique per user,
// ignoring case.
type CategoryService struct {
	repo    *repository.Categories
	budgets cache.Cache[core.Budget]
}

func NewCategoryService(store storage.Store, budgets cache.Cache[core.Budget]) *CategoryService {
	return &CategoryService{repo: repository.NewCategories(store), budgets: budgets}
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.repo.List(ctx, userID)
}

func (s *CategoryService) Create(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, found, err := s.repo.FindByName(ctx, userID, c.Name); err != nil {
		return core.Category{}, err
	} else if found {
		return core.Category{}, fmt.Errorf("%w: %s", ErrCategoryExists, c.Name)
	}

	c.ID = uuid.NewString()
	c.UserID = userID
	if err := s.repo.Save(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	invalidateBudgets(ctx, s.budgets, userID)
	return c, nil
}

// Update renames a category or changes its limit.
func (s *CategoryService) Update(ctx context.Context, userID, id string, c core.Category) (core.Category, error) {
	prev, err := s.get(ctx, userID, id)
	if err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if core.NormalizeCategory(c.Name) != core.NormalizeCategory(prev.Name) {
		if _, found, err := s.repo.FindByName(ctx, userID, c.Name); err != nil {
			return core.Category{}, err
		} else if found {
			return core.Category{}, fmt.Errorf("%w: %s", ErrCategoryExists, c.Name)
		}
	}

	c.ID = prev.ID
	c.UserID = prev.UserID
	if err := s.repo.Save(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	invalidateBudgets(ctx, s.budgets, userID)
	return c, nil
}

// SetLimit updates the limit of the category with the given name, creating
// the category when the user has none by that name.
func (s *CategoryService) SetLimit(ctx context.Context, userID, name string, limit decimal.Decimal) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name), Limit: limit}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	existing, found, err := s.repo.FindByName(ctx, userID, c.Name)
	if err != nil {
		return core.Category{}, err
	}
	if found {
		c.ID = existing.ID
		c.Name = existing.Name
	} else {
		c.ID = uuid.NewString()
	}
	c.UserID = userID

	if err := s.repo.Save(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	invalidateBudgets(ctx, s.budgets, userID)
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	invalidateBudgets(ctx, s.budgets, userID)
	return nil
}

func (s *CategoryService) get(ctx context.Context, userID, id string) (core.Category, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if c.UserID != userID {
		return core.Category{}, storage.ErrNotFound
	}
	return c, nil
}
