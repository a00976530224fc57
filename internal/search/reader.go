package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/mercadolocal/internal/domain"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// ProductReader is the product store surface used by public reads.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListCardsByVendor(ctx context.Context, vendorRef string) ([]domain.ProductCard, error)
	IncrementViewCount(ctx context.Context, id string) error
}

// VendorReader is the vendor store surface used by public reads.
type VendorReader interface {
	GetByID(ctx context.Context, id string) (*domain.Vendor, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Vendor, error)
}

// CategoryReader resolves product categories.
type CategoryReader interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

// Reader serves the public product detail and storefront pages.
type Reader struct {
	products   ProductReader
	vendors    VendorReader
	categories CategoryReader
	logger     *slog.Logger
}

// NewReader creates a Reader.
func NewReader(products ProductReader, vendors VendorReader, categories CategoryReader, logger *slog.Logger) *Reader {
	return &Reader{
		products:   products,
		vendors:    vendors,
		categories: categories,
		logger:     logger,
	}
}

func isUUID(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// GetProduct resolves ref as a product id when it parses as a UUID and as a
// slug otherwise. Inactive products, and products of vendors that are not
// visible, are reported as not found. The view counter is bumped after the
// product is resolved; a failed bump is logged and ignored.
func (r *Reader) GetProduct(ctx context.Context, ref string) (*domain.ProductDetail, error) {
	var (
		p   *domain.Product
		err error
	)
	if isUUID(ref) {
		p, err = r.products.GetByID(ctx, ref)
	} else {
		p, err = r.products.GetBySlug(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperrors.NotFound("product", ref)
	}

	vendor, err := r.vendors.GetByID(ctx, p.VendorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", ref)
		}
		return nil, err
	}
	if vendor.Status == domain.VendorStatusSuspended {
		return nil, apperrors.NotFound("product", ref)
	}

	detail := &domain.ProductDetail{
		Product:      *p,
		Vendor:       vendor,
		WhatsAppLink: vendor.WhatsAppLink(fmt.Sprintf("Hola! Me interesa \"%s\"", p.Name)),
	}
	if p.CategoryID != nil {
		category, err := r.categories.GetByID(ctx, *p.CategoryID)
		switch {
		case err == nil:
			detail.Category = category
		case errors.Is(err, apperrors.ErrNotFound):
		default:
			return nil, err
		}
	}

	if err := r.products.IncrementViewCount(ctx, p.ID); err != nil {
		viewIncrementFailures.Inc()
		r.logger.WarnContext(ctx, "failed to increment view count",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	} else {
		detail.ViewCount++
	}
	return detail, nil
}

// GetVendorStorefront returns a vendor with its active product cards. ref
// is a vendor slug or id; vendor and products are fetched concurrently.
// Suspended vendors are not found.
func (r *Reader) GetVendorStorefront(ctx context.Context, ref string) (*domain.Storefront, error) {
	var (
		vendor *domain.Vendor
		cards  []domain.ProductCard
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if isUUID(ref) {
			vendor, err = r.vendors.GetByID(gctx, ref)
		} else {
			vendor, err = r.vendors.GetBySlug(gctx, ref)
		}
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = r.products.ListCardsByVendor(gctx, ref)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if vendor.Status == domain.VendorStatusSuspended {
		return nil, apperrors.NotFound("vendor", ref)
	}

	return &domain.Storefront{
		Vendor:       vendor,
		Products:     cards,
		WhatsAppLink: vendor.WhatsAppLink(fmt.Sprintf("Hola %s! Vi tu tienda en MercadoLocal", vendor.StoreName)),
	}, nil
}
