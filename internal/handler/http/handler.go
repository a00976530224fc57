package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/service"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/middleware"
	"github.com/utafrali/mercadolocal/pkg/validator"
)

// Catalog is the public search surface, served by *search.Engine or by the
// Redis listing cache in front of it.
type Catalog interface {
	Search(ctx context.Context, spec domain.SearchQuerySpec) (*domain.SearchResult, error)
	Suggest(ctx context.Context, text string) []domain.Suggestion
}

// PageReader serves product detail and storefront pages.
type PageReader interface {
	GetProduct(ctx context.Context, ref string) (*domain.ProductDetail, error)
	GetVendorStorefront(ctx context.Context, ref string) (*domain.Storefront, error)
}

// CategoryManager is implemented by *service.CategoryService.
type CategoryManager interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, actor authz.Actor, input *service.CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, actor authz.Actor, id string, input *service.CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, actor authz.Actor, id string) error
}

// AnnouncementManager is implemented by *service.AnnouncementService.
type AnnouncementManager interface {
	ListCurrent(ctx context.Context) ([]domain.Announcement, error)
	ListAnnouncements(ctx context.Context, actor authz.Actor) ([]domain.Announcement, error)
	CreateAnnouncement(ctx context.Context, actor authz.Actor, input *domain.AnnouncementInput) (*domain.Announcement, error)
	UpdateAnnouncement(ctx context.Context, actor authz.Actor, id string, input *domain.AnnouncementInput) (*domain.Announcement, error)
	DeleteAnnouncement(ctx context.Context, actor authz.Actor, id string) error
}

// ProductManager is implemented by *service.ProductService.
type ProductManager interface {
	CreateProduct(ctx context.Context, actor authz.Actor, input *service.CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, actor authz.Actor, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, actor authz.Actor, filter domain.ProductFilter) ([]domain.Product, int, error)
	UpdateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductInput) (*domain.Product, error)
	ModerateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductModeration) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor authz.Actor, id string) error
}

// ImageManager is implemented by *service.ImageService.
type ImageManager interface {
	UploadImages(ctx context.Context, actor authz.Actor, productID string, files []service.ImageFile, primaryIndex *int) (*domain.Product, error)
	RemoveImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error)
	SetMainImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error)
	ReorderGallery(ctx context.Context, actor authz.Actor, productID string, order []string) (*domain.Product, error)
}

// StoreManager is implemented by *service.VendorService.
type StoreManager interface {
	OpenStore(ctx context.Context, actor authz.Actor, input *service.OpenStoreInput) (*domain.Vendor, error)
	GetOwnStore(ctx context.Context, actor authz.Actor) (*domain.Vendor, error)
	UpdateStore(ctx context.Context, actor authz.Actor, id string, input *domain.VendorProfileInput) (*domain.Vendor, error)
	ListVendors(ctx context.Context, actor authz.Actor, filter domain.VendorFilter) ([]domain.Vendor, int, error)
	ModerateVendor(ctx context.Context, actor authz.Actor, id string, input *domain.VendorModeration) (*domain.Vendor, error)
}

// UserManager is implemented by *service.UserService.
type UserManager interface {
	ListUsers(ctx context.Context, actor authz.Actor, filter domain.ProfileFilter) ([]domain.Profile, int, error)
	ChangeRole(ctx context.Context, actor authz.Actor, id, role string) error
	SetBanned(ctx context.Context, actor authz.Actor, id string, banned bool) error
	CreateUser(ctx context.Context, actor authz.Actor, input *service.CreateUserInput) (*domain.Profile, error)
	DeleteUser(ctx context.Context, actor authz.Actor, id string) error
}

// SubscriptionManager is implemented by *service.SubscriptionService.
type SubscriptionManager interface {
	StartCheckout(ctx context.Context, actor authz.Actor) (*service.Checkout, error)
	HandleNotification(ctx context.Context, n service.Notification) (string, error)
}

// actorFrom converts the authenticated principal into a service actor. An
// anonymous request yields the zero Actor, which every guarded operation rejects.
func actorFrom(r *http.Request) authz.Actor {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return authz.Actor{}
	}
	return authz.Actor{UserID: p.UserID, Role: p.Role}
}

// decodeBody decodes and validates a JSON body. Malformed JSON is reported as
// invalid input; validation failures keep their field map.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	err := validator.DecodeAndValidate(w, r, dst)
	if err == nil {
		return nil
	}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	return apperrors.InvalidInput("request body is not valid JSON for this endpoint")
}

// idParam reads a UUID path parameter.
func idParam(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.InvalidField(name, "must be a valid UUID")
	}
	return id, nil
}
