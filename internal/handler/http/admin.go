package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/mercadolocal/internal/domain"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httputil"
	"github.com/utafrali/mercadolocal/pkg/pagination"
)

// AdminHandler serves the admin panel.
type AdminHandler struct {
	categories    CategoryManager
	announcements AnnouncementManager
	products      ProductManager
	stores        StoreManager
	users         UserManager
	logger        *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	categories CategoryManager,
	announcements AnnouncementManager,
	products ProductManager,
	stores StoreManager,
	users UserManager,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		categories:    categories,
		announcements: announcements,
		products:      products,
		stores:        stores,
		users:         users,
		logger:        logger,
	}
}

// --- Categories ---

// CreateCategory handles POST /api/admin/categories
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	category, err := h.categories.CreateCategory(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, category)
}

// UpdateCategory handles PATCH /api/admin/categories/{id}
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req CategoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	category, err := h.categories.UpdateCategory(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /api/admin/categories/{id}
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.categories.DeleteCategory(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Announcements ---

// ListAnnouncements handles GET /api/admin/announcements
func (h *AdminHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.announcements.ListAnnouncements(r.Context(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if announcements == nil {
		announcements = []domain.Announcement{}
	}
	httputil.WriteData(w, http.StatusOK, announcements)
}

// CreateAnnouncement handles POST /api/admin/announcements
func (h *AdminHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req AnnouncementRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	a, err := h.announcements.CreateAnnouncement(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, a)
}

// UpdateAnnouncement handles PATCH /api/admin/announcements/{id}
func (h *AdminHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req AnnouncementRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	a, err := h.announcements.UpdateAnnouncement(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, a)
}

// DeleteAnnouncement handles DELETE /api/admin/announcements/{id}
func (h *AdminHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.announcements.DeleteAnnouncement(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Products ---

// ModerateProduct handles PATCH /api/admin/products/{id}
func (h *AdminHandler) ModerateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ModerateProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.products.ModerateProduct(r.Context(), actorFrom(r), id, &domain.ProductModeration{
		IsActive:   req.IsActive,
		IsFeatured: req.IsFeatured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.products.DeleteProduct(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Vendors ---

// ListVendors handles GET /api/admin/vendors
func (h *AdminHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.VendorFilter{
		Query:   httputil.QueryString(r, "q"),
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	if v := httputil.QueryString(r, "status"); v != "" {
		filter.Status = &v
	}

	vendors, total, err := h.stores.ListVendors(r.Context(), actorFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(vendors, total, page.Page, page.PerPage))
}

// ModerateVendor handles PATCH /api/admin/vendors/{id}
func (h *AdminHandler) ModerateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ModerateVendorRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	vendor, err := h.stores.ModerateVendor(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, vendor)
}

// --- Users ---

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.ProfileFilter{
		Query:   httputil.QueryString(r, "q"),
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	if v := httputil.QueryString(r, "role"); v != "" {
		filter.Role = &v
	}

	users, total, err := h.users.ListUsers(r.Context(), actorFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(users, total, page.Page, page.PerPage))
}

// ChangeRole handles PUT /api/admin/users/{id}/role
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ChangeRoleRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.users.ChangeRole(r.Context(), actorFrom(r), id, req.Role); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetBanned handles PUT /api/admin/users/{id}/ban
func (h *AdminHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req BanRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.Banned == nil {
		httputil.WriteError(w, r, apperrors.InvalidField("banned", "is required"), h.logger)
		return
	}

	if err := h.users.SetBanned(r.Context(), actorFrom(r), id, *req.Banned); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /api/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	profile, err := h.users.CreateUser(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, profile)
}

// DeleteUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.users.DeleteUser(r.Context(), actorFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
