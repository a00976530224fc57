package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/repository"
	"github.com/utafrali/mercadolocal/internal/storage"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/slug"
)

// ProductService implements the dashboard and admin product operations.
type ProductService struct {
	products repository.ProductRepository
	vendors  repository.VendorRepository
	guard    Authorizer
	files    storage.Storage
	notify   *Notifier
	logger   *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	products repository.ProductRepository,
	vendors repository.VendorRepository,
	guard Authorizer,
	files storage.Storage,
	notify *Notifier,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		vendors:  vendors,
		guard:    guard,
		files:    files,
		notify:   notify,
		logger:   logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	domain.ProductInput
	// VendorID picks the store when an admin creates on a vendor's behalf.
	// Vendors always create in their own store.
	VendorID string
}

// CreateProduct creates a product in the actor's store.
func (s *ProductService) CreateProduct(ctx context.Context, actor authz.Actor, input *CreateProductInput) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, "", authz.ActionCreate); err != nil {
		return nil, err
	}

	vendor, err := s.storeFor(ctx, actor, input.VendorID)
	if err != nil {
		return nil, err
	}

	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.InvalidField("name", "is required")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:               uuid.New().String(),
		VendorID:         vendor.ID,
		IsActive:         true,
		GalleryImageURLs: []string{},
		Tags:             []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := applyProductInput(product, &input.ProductInput); err != nil {
		return nil, err
	}

	product.Slug, err = uniqueSlug(ctx, product.Name, s.products.SlugExists)
	if err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.notify.Changed(ctx, productChange(event.ProductCreated, product))
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("vendor_id", product.VendorID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// GetProduct returns a product the actor may edit, active or not.
func (s *ProductService) GetProduct(ctx context.Context, actor authz.Actor, id string) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, id, authz.ActionUpdate); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// ListProducts lists the actor's products. Admins see every store unless the
// filter names one.
func (s *ProductService) ListProducts(ctx context.Context, actor authz.Actor, filter domain.ProductFilter) ([]domain.Product, int, error) {
	if actor.UserID == "" {
		return nil, 0, apperrors.Unauthorized("authentication required")
	}
	if actor.Role != domain.RoleAdmin {
		vendor, err := s.ownStore(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		filter.VendorID = &vendor.ID
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct applies partial updates to a product the actor owns. A new
// name moves the product to a new slug.
func (s *ProductService) UpdateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductInput) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	oldName := product.Name
	if err := applyProductInput(product, input); err != nil {
		return nil, err
	}
	if slug.Generate(product.Name) != slug.Generate(oldName) {
		product.Slug, err = uniqueSlug(ctx, product.Name, s.products.SlugExists)
		if err != nil {
			return nil, err
		}
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.notify.Changed(ctx, productChange(event.ProductUpdated, product))
	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

// ModerateProduct sets the admin-only visibility flags.
func (s *ProductService) ModerateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductModeration) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, id, authz.ActionModerate); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for moderation: %w", err)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("moderate product: %w", err)
	}

	s.notify.Changed(ctx, productChange(event.ProductUpdated, product))
	s.logger.InfoContext(ctx, "product moderated",
		slog.String("product_id", product.ID),
		slog.Bool("is_active", product.IsActive),
		slog.Bool("is_featured", product.IsFeatured),
	)
	return product, nil
}

// DeleteProduct removes a product and then its stored images.
func (s *ProductService) DeleteProduct(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, id, authz.ActionDelete); err != nil {
		return err
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product for delete: %w", err)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	removeFiles(ctx, s.files, s.logger, productImages(product)...)

	s.notify.Changed(ctx, productChange(event.ProductDeleted, product))
	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
	)
	return nil
}

// storeFor resolves the store a new product belongs to.
func (s *ProductService) storeFor(ctx context.Context, actor authz.Actor, vendorID string) (*domain.Vendor, error) {
	if actor.Role != domain.RoleAdmin {
		return s.ownStore(ctx, actor)
	}
	if vendorID == "" {
		return nil, apperrors.InvalidField("vendor_id", "is required")
	}
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidField("vendor_id", "unknown vendor")
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return vendor, nil
}

func (s *ProductService) ownStore(ctx context.Context, actor authz.Actor) (*domain.Vendor, error) {
	vendor, err := s.vendors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("open a store before listing products")
		}
		return nil, fmt.Errorf("get own store: %w", err)
	}
	if vendor.Status == domain.VendorStatusSuspended {
		return nil, apperrors.Forbidden("store is suspended")
	}
	return vendor, nil
}

func applyProductInput(p *domain.Product, in *domain.ProductInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperrors.InvalidField("name", "must not be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	switch {
	case in.ClearPrice:
		p.Price = nil
	case in.Price != nil:
		if *in.Price < 0 {
			return apperrors.InvalidField("price", "must not be negative")
		}
		p.Price = in.Price
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			p.CategoryID = nil
		} else {
			p.CategoryID = in.CategoryID
		}
	}
	if in.Tags != nil {
		p.Tags = normalizeTags(in.Tags)
	}
	variations := in.Variations
	if in.VariationRows != nil {
		if in.Variations != nil {
			return apperrors.InvalidField("variation_rows", "cannot be set together with variations")
		}
		variations = domain.Unflatten(in.VariationRows)
		if variations == nil {
			variations = domain.Variations{}
		}
	}
	if variations != nil {
		p.Variations = variations
		if total, ok := variations.TotalStock(); ok && in.Stock == nil {
			p.Stock = &total
		}
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return apperrors.InvalidField("stock", "must not be negative")
		}
		p.Stock = in.Stock
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func productImages(p *domain.Product) []string {
	urls := make([]string, 0, len(p.GalleryImageURLs)+1)
	if p.MainImageURL != "" {
		urls = append(urls, p.MainImageURL)
	}
	return append(urls, p.GalleryImageURLs...)
}

func productChange(eventType string, p *domain.Product) event.Change {
	return event.Change{
		Type:       eventType,
		EntityType: "product",
		EntityID:   p.ID,
		Data: event.ProductData{
			ID:       p.ID,
			Slug:     p.Slug,
			VendorID: p.VendorID,
			IsActive: p.IsActive,
		},
	}
}
