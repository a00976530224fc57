package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/repository"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/slug"
)

// CategoryService implements category listing and admin management.
type CategoryService struct {
	categories repository.CategoryRepository
	guard      Authorizer
	notify     *Notifier
	logger     *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(categories repository.CategoryRepository, guard Authorizer, notify *Notifier, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, guard: guard, notify: notify, logger: logger}
}

// CategoryInput holds category fields. An empty Slug is derived from Name.
type CategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
}

// ListCategories returns every category by name.
func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory creates a category.
func (s *CategoryService) CreateCategory(ctx context.Context, actor authz.Actor, input *CategoryInput) (*domain.Category, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectCategory, "", authz.ActionCreate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Category{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	if err := applyCategoryInput(c, input); err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, apperrors.InvalidField("name", "is required")
	}

	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.notify.Changed(ctx, categoryChange(c.ID))
	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", c.ID),
		slog.String("slug", c.Slug),
	)
	return c, nil
}

// UpdateCategory applies partial updates to a category.
func (s *CategoryService) UpdateCategory(ctx context.Context, actor authz.Actor, id string, input *CategoryInput) (*domain.Category, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectCategory, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category for update: %w", err)
	}
	if err := applyCategoryInput(c, input); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()

	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.notify.Changed(ctx, categoryChange(c.ID))
	s.logger.InfoContext(ctx, "category updated",
		slog.String("category_id", c.ID),
	)
	return c, nil
}

// DeleteCategory removes a category. Its products become uncategorized.
func (s *CategoryService) DeleteCategory(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectCategory, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.notify.Changed(ctx, categoryChange(id))
	s.logger.InfoContext(ctx, "category deleted",
		slog.String("category_id", id),
	)
	return nil
}

func applyCategoryInput(c *domain.Category, in *CategoryInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperrors.InvalidField("name", "must not be empty")
		}
		c.Name = name
	}
	switch {
	case in.Slug != nil && *in.Slug != "":
		if !slug.IsValid(*in.Slug) {
			return apperrors.InvalidField("slug", "must contain only lowercase letters, digits and hyphens")
		}
		c.Slug = *in.Slug
	case c.Slug == "" || in.Slug != nil:
		c.Slug = slug.Generate(c.Name)
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			c.Description = nil
		} else {
			c.Description = &d
		}
	}
	return nil
}

func categoryChange(id string) event.Change {
	return event.Change{Type: event.CategoryChanged, EntityType: "category", EntityID: id}
}
