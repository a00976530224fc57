// Package search implements the product search, autocomplete and the public
// product and storefront reads.
package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/geo"
	"github.com/utafrali/mercadolocal/pkg/pagination"
	"github.com/utafrali/mercadolocal/pkg/tracing"
)

// Store is the slice of the catalog store the engine reads from.
type Store interface {
	VendorCoordinates(ctx context.Context, box geo.BoundingBox) ([]domain.VendorCoordinates, error)
	SearchProducts(ctx context.Context, q domain.CatalogQuery) ([]domain.ProductCard, int, error)
	SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)
	SuggestCategories(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)
	SuggestVendors(ctx context.Context, text string, limit int) ([]domain.Suggestion, error)
}

// Engine answers product searches and autocomplete lookups. It holds no
// state besides its collaborators.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates a search engine over store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Search returns one page of active product cards matching spec. Page and
// page size are expected to be clamped by the caller; zero values fall back
// to the first page and the default page size.
func (e *Engine) Search(ctx context.Context, spec domain.SearchQuerySpec) (_ *domain.SearchResult, err error) {
	ctx, span := tracing.Tracer("search").Start(ctx, "search.Products")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() { observeSearch(start, err) }()

	spec = spec.Normalized()
	if spec.Page < 1 {
		spec.Page = 1
	}
	if spec.PageSize <= 0 {
		spec.PageSize = pagination.DefaultPerPage
	}

	q := domain.CatalogQuery{
		Text:           spec.Query,
		Category:       spec.Category,
		OnlyProVendors: spec.OnlyProVendors,
		Sort:           domain.ResolveSort(spec.SortBy),
		Limit:          spec.PageSize,
		Offset:         (spec.Page - 1) * spec.PageSize,
	}

	if spec.GeoActive() {
		center := geo.Point{Lat: *spec.Latitude, Lon: *spec.Longitude}
		ids, err := e.vendorsWithin(ctx, center, *spec.RadiusKm)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("search.geo_vendors", len(ids)))
		if len(ids) == 0 {
			geoShortCircuits.Inc()
			return domain.EmptySearchResult(), nil
		}
		q.VendorIDs = ids
	} else {
		q.City = spec.City
	}

	cards, total, err := e.store.SearchProducts(ctx, q)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "search executed",
		slog.String("query", spec.Query),
		slog.Int("page", spec.Page),
		slog.Int("total", total),
		slog.Bool("geo", q.VendorIDs != nil),
	)
	return &domain.SearchResult{Data: cards, TotalCount: total}, nil
}

// vendorsWithin returns the ids of vendors at most radiusKm from center. The
// store narrows candidates to a bounding box; the exact great-circle
// distance decides.
func (e *Engine) vendorsWithin(ctx context.Context, center geo.Point, radiusKm float64) ([]string, error) {
	candidates, err := e.store.VendorCoordinates(ctx, geo.NewBoundingBox(center, radiusKm))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if geo.Within(center, geo.Point{Lat: c.Latitude, Lon: c.Longitude}, radiusKm) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
