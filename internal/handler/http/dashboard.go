package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/service"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httputil"
	"github.com/utafrali/mercadolocal/pkg/pagination"
)

// maxUploadBytes bounds a whole multipart upload request.
const maxUploadBytes = service.MaxImagesPerUpload*service.MaxImageBytes + 1<<20

// DashboardHandler serves the vendor dashboard: the actor's store, its
// products and their images, and the PRO checkout.
type DashboardHandler struct {
	stores        StoreManager
	products      ProductManager
	images        ImageManager
	subscriptions SubscriptionManager
	logger        *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler. subscriptions may be
// nil when payments are not configured.
func NewDashboardHandler(
	stores StoreManager,
	products ProductManager,
	images ImageManager,
	subscriptions SubscriptionManager,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		stores:        stores,
		products:      products,
		images:        images,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// --- Store ---

// OpenStore handles POST /api/dashboard/store
func (h *DashboardHandler) OpenStore(w http.ResponseWriter, r *http.Request) {
	var req OpenStoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	vendor, err := h.stores.OpenStore(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, vendor)
}

// GetStore handles GET /api/dashboard/store
func (h *DashboardHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.stores.GetOwnStore(r.Context(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, vendor)
}

// UpdateStore handles PATCH /api/dashboard/store
func (h *DashboardHandler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	var req UpdateStoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	actor := actorFrom(r)
	own, err := h.stores.GetOwnStore(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	vendor, err := h.stores.UpdateStore(r.Context(), actor, own.ID, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, vendor)
}

// --- Products ---

// ListProducts handles GET /api/dashboard/products
func (h *DashboardHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.ProductFilter{
		Query:   httputil.QueryString(r, "q"),
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	if v := httputil.QueryString(r, "active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidField("active", "must be true or false"), h.logger)
			return
		}
		filter.IsActive = &active
	}
	if v := httputil.QueryString(r, "vendor_id"); v != "" {
		filter.VendorID = &v
	}

	products, total, err := h.products.ListProducts(r.Context(), actorFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// CreateProduct handles POST /api/dashboard/products
func (h *DashboardHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.products.CreateProduct(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// GetProduct handles GET /api/dashboard/products/{id}
func (h *DashboardHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.products.GetProduct(r.Context(), actorFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newProductForm(product))
}

// UpdateProduct handles PATCH /api/dashboard/products/{id}
func (h *DashboardHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.ClearPrice && req.Price != nil {
		httputil.WriteError(w, r, apperrors.InvalidField("price", "cannot be set together with clear_price"), h.logger)
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/dashboard/products/{id}
func (h *DashboardHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
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

// --- Images ---

// UploadImages handles POST /api/dashboard/products/{id}/images. The body is
// multipart/form-data with one or more "images" parts and an optional
// "primary_index" field.
func (h *DashboardHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.InvalidInput("upload exceeds the request size limit"), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("request must be multipart/form-data"), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var primary *int
	if v := r.FormValue("primary_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidField("primary_index", "must be an integer"), h.logger)
			return
		}
		primary = &n
	}

	files, err := readImageParts(r.MultipartForm.File["images"])
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.images.UploadImages(r.Context(), actorFrom(r), id, files, primary)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// readImageParts loads uploaded parts into memory. Each read stops one byte
// past the per-file limit so oversized files are still rejected by size.
func readImageParts(headers []*multipart.FileHeader) ([]service.ImageFile, error) {
	files := make([]service.ImageFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, service.MaxImageBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		files = append(files, service.ImageFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// RemoveImage handles DELETE /api/dashboard/products/{id}/images
func (h *DashboardHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ImageURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.images.RemoveImage(r.Context(), actorFrom(r), id, req.URL)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// SetMainImage handles PUT /api/dashboard/products/{id}/images/main
func (h *DashboardHandler) SetMainImage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ImageURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.images.SetMainImage(r.Context(), actorFrom(r), id, req.URL)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// ReorderGallery handles PUT /api/dashboard/products/{id}/images/order
func (h *DashboardHandler) ReorderGallery(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	var req ReorderGalleryRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.images.ReorderGallery(r.Context(), actorFrom(r), id, req.Order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// --- Subscription ---

// StartCheckout handles POST /api/dashboard/subscription
func (h *DashboardHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	if h.subscriptions == nil {
		httputil.WriteError(w, r, apperrors.Unavailable("payments", errors.New("payments are not configured")), h.logger)
		return
	}

	checkout, err := h.subscriptions.StartCheckout(r.Context(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, checkout)
}
