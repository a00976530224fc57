package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/pkg/httputil"
	"github.com/utafrali/mercadolocal/pkg/pagination"
)

// PublicHandler serves the anonymous catalog pages.
type PublicHandler struct {
	catalog       Catalog
	pages         PageReader
	categories    CategoryManager
	announcements AnnouncementManager
	logger        *slog.Logger
}

// NewPublicHandler creates a new public catalog handler.
func NewPublicHandler(
	catalog Catalog,
	pages PageReader,
	categories CategoryManager,
	announcements AnnouncementManager,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		catalog:       catalog,
		pages:         pages,
		categories:    categories,
		announcements: announcements,
		logger:        logger,
	}
}

// searchSpec reads a SearchQuerySpec from the query string. Unparseable
// coordinates are dropped, which disables the radius filter.
func searchSpec(r *http.Request) (domain.SearchQuerySpec, pagination.Params) {
	page := pagination.FromRequest(r)
	query := httputil.QueryString(r, "query")
	if query == "" {
		query = httputil.QueryString(r, "q")
	}
	return domain.SearchQuerySpec{
		Query:          query,
		Page:           page.Page,
		PageSize:       page.PerPage,
		City:           httputil.QueryString(r, "city"),
		Category:       httputil.QueryString(r, "category"),
		SortBy:         httputil.QueryString(r, "sort"),
		OnlyProVendors: httputil.QueryBool(r, "onlyProVendors"),
		Latitude:       httputil.QueryFloat(r, "latitude"),
		Longitude:      httputil.QueryFloat(r, "longitude"),
		RadiusKm:       httputil.QueryFloat(r, "radius"),
	}, page
}

// SearchProducts handles GET /productos
func (h *PublicHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	spec, page := searchSpec(r)

	result, err := h.catalog.Search(r.Context(), spec)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Data, result.TotalCount, page.Page, page.PerPage))
}

// Suggest handles GET /productos/sugerencias?q=
func (h *PublicHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions := h.catalog.Suggest(r.Context(), httputil.QueryString(r, "q"))
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	httputil.WriteData(w, http.StatusOK, suggestions)
}

// GetProduct handles GET /producto/{ref}. ref is a product id or slug.
func (h *PublicHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := h.pages.GetProduct(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, detail)
}

// GetStorefront handles GET /tienda/{ref}. ref is a vendor slug or id.
func (h *PublicHandler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	storefront, err := h.pages.GetVendorStorefront(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, storefront)
}

// ListCategories handles GET /categorias
func (h *PublicHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// ListAnnouncements handles GET /anuncios
func (h *PublicHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.announcements.ListCurrent(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if announcements == nil {
		announcements = []domain.Announcement{}
	}
	httputil.WriteData(w, http.StatusOK, announcements)
}
