package repository

import (
	"context"
	"time"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/geo"
)

// CatalogStore is the read side used by the search engine and the
// suggestion assembler. Implementations must report "query ran, no rows" as
// an empty slice with a nil error and reserve errors for failed calls.
type CatalogStore interface {
	// VendorCoordinates returns vendors with both coordinates set whose
	// location falls inside box.
	VendorCoordinates(ctx context.Context, box geo.BoundingBox) ([]domain.VendorCoordinates, error)

	// SearchProducts returns one page of active product cards matching q,
	// plus the number of matches ignoring Limit and Offset.
	SearchProducts(ctx context.Context, q domain.CatalogQuery) ([]domain.ProductCard, int, error)

	// SuggestProducts returns up to limit active products whose name contains text.
	SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)

	// SuggestCategories returns up to limit categories whose name contains text.
	SuggestCategories(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)

	// SuggestVendors returns up to limit active vendors whose store name contains text.
	SuggestVendors(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)

	// ListCardsByVendor returns the active product cards of the vendor with
	// the given slug or id, featured first.
	ListCardsByVendor(ctx context.Context, vendorRef string) ([]domain.ProductCard, error)

	// Update writes every mutable column of product.
	Update(ctx context.Context, product *domain.Product) error

	// UpdateImages replaces the main image and gallery of a product.
	UpdateImages(ctx context.Context, id, mainImageURL string, gallery []string) error

	// Delete removes a product from the store by its identifier.
	Delete(ctx context.Context, id string) error

	// IncrementViewCount atomically adds one to the view counter.
	IncrementViewCount(ctx context.Context, id string) error

	// SlugExists reports whether slug is taken.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// OwnerOf returns the user that owns the vendor selling the product.
	OwnerOf(ctx context.Context, id string) (string, error)
}

// VendorRepository defines the interface for vendor persistence operations.
type VendorRepository interface {
	Create(ctx context.Context, vendor *domain.Vendor) error
	GetByID(ctx context.Context, id string) (*domain.Vendor, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Vendor, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Vendor, error)
	List(ctx context.Context, filter domain.VendorFilter) ([]domain.Vendor, int, error)
	Update(ctx context.Context, vendor *domain.Vendor) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	OwnerOf(ctx context.Context, id string) (string, error)

	// ActivatePro records paymentID and grants PRO until expiresAt. A payment
	// that was already recorded leaves the vendor untouched and returns false.
	ActivatePro(ctx context.Context, vendorID, paymentID string, expiresAt time.Time) (bool, error)
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementRepository defines the interface for announcement persistence operations.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *domain.Announcement) error
	GetByID(ctx context.Context, id string) (*domain.Announcement, error)
	List(ctx context.Context) ([]domain.Announcement, error)
	ListCurrent(ctx context.Context, now time.Time) ([]domain.Announcement, error)
	Update(ctx context.Context, a *domain.Announcement) error
	Delete(ctx context.Context, id string) error
}

// ProfileRepository defines the interface for profile persistence operations.
type ProfileRepository interface {
	Create(ctx context.Context, p *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, int, error)
	UpdateRole(ctx context.Context, id, role string) error
	SetBanned(ctx context.Context, id string, banned bool) error
	Delete(ctx context.Context, id string) error
}
