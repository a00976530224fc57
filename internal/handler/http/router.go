package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/mercadolocal/pkg/health"
	"github.com/utafrali/mercadolocal/pkg/middleware"
)

// Handlers groups the route handlers. Webhook is nil when payments are not
// configured, and the webhook route is then not mounted. Media serves
// uploaded images when they are kept in process memory.
type Handlers struct {
	Public    *PublicHandler
	Dashboard *DashboardHandler
	Admin     *AdminHandler
	Webhook   *WebhookHandler
	Media     http.Handler
}

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	Tokens         middleware.TokenValidator
	ResolveRole    middleware.RoleResolver
	AdminSecret    string
	AllowedOrigins []string
	PprofCIDRs     []string
	// Limiter throttles the suggestion and webhook endpoints per client IP.
	Limiter *middleware.RateLimiter
	Metrics *middleware.HTTPMetrics
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(h Handlers, cfg RouterConfig, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
	}))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.RequestLogger(logger))

	// Health, metrics and profiling
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		throttle = cfg.Limiter.Middleware
	}

	// Public catalog
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicCache(30, 120))

		r.Get("/productos", h.Public.SearchProducts)
		r.With(throttle).Get("/productos/sugerencias", h.Public.Suggest)
		r.Get("/tienda/{ref}", h.Public.GetStorefront)
		r.Get("/categorias", h.Public.ListCategories)
		r.Get("/anuncios", h.Public.ListAnnouncements)
	})
	// Uncached: every product detail request counts a view.
	r.Get("/producto/{ref}", h.Public.GetProduct)

	authenticated := func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(cfg.Tokens, cfg.ResolveRole))
		r.Use(middleware.RequestLogger(logger))
	}

	// Vendor dashboard
	r.Route("/api/dashboard", func(r chi.Router) {
		authenticated(r)

		r.Post("/store", h.Dashboard.OpenStore)
		r.Get("/store", h.Dashboard.GetStore)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleVendor, middleware.RoleAdmin))

			r.Patch("/store", h.Dashboard.UpdateStore)

			r.Get("/products", h.Dashboard.ListProducts)
			r.Post("/products", h.Dashboard.CreateProduct)
			r.Get("/products/{id}", h.Dashboard.GetProduct)
			r.Patch("/products/{id}", h.Dashboard.UpdateProduct)
			r.Delete("/products/{id}", h.Dashboard.DeleteProduct)

			r.Post("/products/{id}/images", h.Dashboard.UploadImages)
			r.Delete("/products/{id}/images", h.Dashboard.RemoveImage)
			r.Put("/products/{id}/images/main", h.Dashboard.SetMainImage)
			r.Put("/products/{id}/images/order", h.Dashboard.ReorderGallery)

			r.Post("/subscription", h.Dashboard.StartCheckout)
		})
	})

	// Admin panel
	r.Route("/api/admin", func(r chi.Router) {
		authenticated(r)
		r.Use(middleware.RequireRole(middleware.RoleAdmin))

		r.Post("/categories", h.Admin.CreateCategory)
		r.Patch("/categories/{id}", h.Admin.UpdateCategory)
		r.Delete("/categories/{id}", h.Admin.DeleteCategory)

		r.Get("/announcements", h.Admin.ListAnnouncements)
		r.Post("/announcements", h.Admin.CreateAnnouncement)
		r.Patch("/announcements/{id}", h.Admin.UpdateAnnouncement)
		r.Delete("/announcements/{id}", h.Admin.DeleteAnnouncement)

		r.Get("/products", h.Dashboard.ListProducts)
		r.Patch("/products/{id}", h.Admin.ModerateProduct)
		r.Delete("/products/{id}", h.Admin.DeleteProduct)

		r.Get("/vendors", h.Admin.ListVendors)
		r.Patch("/vendors/{id}", h.Admin.ModerateVendor)

		r.Get("/users", h.Admin.ListUsers)
		r.Put("/users/{id}/role", h.Admin.ChangeRole)
		r.Put("/users/{id}/ban", h.Admin.SetBanned)

		// Account creation and deletion reach the hosted auth backend.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSharedSecret(cfg.AdminSecret))

			r.Post("/users", h.Admin.CreateUser)
			r.Delete("/users/{id}", h.Admin.DeleteUser)
		})
	})

	if h.Media != nil {
		r.Method(http.MethodGet, "/media/*", h.Media)
		r.Method(http.MethodHead, "/media/*", h.Media)
	}

	// Payment provider callbacks
	if h.Webhook != nil {
		r.With(throttle).Post("/api/mercadopago/webhook", h.Webhook.MercadoPago)
	}

	return r
}
