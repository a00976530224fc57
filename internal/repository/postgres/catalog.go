package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/geo"
	"github.com/utafrali/mercadolocal/pkg/database"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

const cardColumns = `
	p.id, p.slug, p.name, p.price, p.main_image_url, p.is_featured, p.is_active, p.view_count, p.created_at,
	v.store_name, v.slug, v.is_pro, v.city,
	c.name, c.slug`

// Product to vendor and product to category are inner joins so every card
// carries both relations.
const catalogFrom = `
	FROM products p
	JOIN vendors v ON v.id = p.vendor_id
	JOIN categories c ON c.id = p.category_id`

// vendorVisible is the one rule deciding whether a vendor's products and
// store are shown to buyers. Product detail and the storefront apply the same
// rule, so every listed card resolves.
const vendorVisible = "v.status <> 'suspended'"

var sortColumns = map[string]string{
	domain.SortFieldName:      "p.name",
	domain.SortFieldPrice:     "p.price",
	domain.SortFieldCreatedAt: "p.created_at",
	domain.SortFieldViewCount: "p.view_count",
}

// CatalogStore implements repository.CatalogStore.
type CatalogStore struct {
	db database.DBTX
}

// NewCatalogStore creates a catalog store over db.
func NewCatalogStore(db database.DBTX) *CatalogStore {
	return &CatalogStore{db: db}
}

// VendorCoordinates returns vendors with both coordinates set inside box.
func (s *CatalogStore) VendorCoordinates(ctx context.Context, box geo.BoundingBox) (_ []domain.VendorCoordinates, err error) {
	lonPredicate := "longitude BETWEEN $3 AND $4"
	if box.WrapsAntimeridian {
		lonPredicate = "(longitude >= $3 OR longitude <= $4)"
	}
	query := `
		SELECT id, latitude, longitude
		FROM vendors
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN $1 AND $2
		  AND ` + lonPredicate

	ctx, end := database.TraceQuery(ctx, "VendorCoordinates", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, apperrors.Store("query vendor coordinates", err)
	}
	defer rows.Close()

	out := []domain.VendorCoordinates{}
	for rows.Next() {
		var vc domain.VendorCoordinates
		if err := rows.Scan(&vc.ID, &vc.Latitude, &vc.Longitude); err != nil {
			return nil, apperrors.Store("scan vendor coordinates", err)
		}
		if math.IsNaN(vc.Latitude) || math.IsNaN(vc.Longitude) {
			continue
		}
		out = append(out, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("iterate vendor coordinates", err)
	}
	return out, nil
}

// catalogWhere builds the predicate set shared by the page and count queries.
func catalogWhere(q domain.CatalogQuery) (string, []any) {
	conditions := []string{"p.is_active = true", vendorVisible}
	var args []any
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	if q.OnlyProVendors {
		conditions = append(conditions, "v.is_pro = true AND (v.pro_expires_at IS NULL OR v.pro_expires_at > now())")
	}
	if q.Text != "" {
		n := next(containsPattern(q.Text))
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d OR v.store_name ILIKE $%d)", n, n, n))
	}
	if q.VendorIDs != nil {
		conditions = append(conditions, fmt.Sprintf("p.vendor_id = ANY($%d::uuid[])", next(q.VendorIDs)))
	} else if q.City != "" {
		conditions = append(conditions, fmt.Sprintf("v.city = $%d", next(q.City)))
	}
	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", next(q.Category)))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// orderBy renders the ORDER BY clause. Null prices sort last in both
// directions and id breaks ties so pages are stable.
func orderBy(o domain.SortOrder) string {
	col, ok := sortColumns[o.Field]
	if !ok {
		o = domain.DefaultSort
		col = sortColumns[o.Field]
	}
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, p.id ASC", col, dir)
}

// SearchProducts returns one page of cards and the total match count. The
// total comes from a window count on the page query; a page past the end
// returns no rows, so the total is then counted separately.
func (s *CatalogStore) SearchProducts(ctx context.Context, q domain.CatalogQuery) (_ []domain.ProductCard, _ int, err error) {
	where, args := catalogWhere(q)
	n := len(args)
	query := fmt.Sprintf(`
		SELECT %s,
			count(*) OVER() AS total_count
		%s
		%s
		%s
		LIMIT $%d OFFSET $%d`,
		cardColumns, catalogFrom, where, orderBy(q.Sort), n+1, n+2,
	)

	ctx, end := database.TraceQuery(ctx, "SearchProducts", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, apperrors.Store("search products", err)
	}
	defer rows.Close()

	cards := []domain.ProductCard{}
	total := 0
	for rows.Next() {
		card, err := scanCard(rows, &total)
		if err != nil {
			return nil, 0, apperrors.Store("scan product card", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Store("iterate product cards", err)
	}

	if len(cards) == 0 && q.Offset > 0 {
		countQuery := "SELECT count(*) " + catalogFrom + " " + where
		if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, apperrors.Store("count products", err)
		}
	}
	return cards, total, nil
}

// scanCard reads one card row. Vendor and category are folded into single
// optional records here so callers never see the raw join shape. When total
// is non-nil a trailing count column is read into it.
func scanCard(row pgx.Row, total *int) (domain.ProductCard, error) {
	var (
		c            domain.ProductCard
		mainImage    *string
		vendorName   *string
		vendorSlug   *string
		vendorPro    *bool
		vendorCity   *string
		categoryName *string
		categorySlug *string
	)
	dest := []any{
		&c.ID, &c.Slug, &c.Name, &c.Price, &mainImage, &c.IsFeatured, &c.IsActive, &c.ViewCount, &c.CreatedAt,
		&vendorName, &vendorSlug, &vendorPro, &vendorCity,
		&categoryName, &categorySlug,
	}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return c, err
	}

	if mainImage != nil {
		c.MainImageURL = *mainImage
	}
	if vendorSlug != nil {
		c.Vendor = &domain.VendorRef{Slug: *vendorSlug}
		if vendorName != nil {
			c.Vendor.StoreName = *vendorName
		}
		if vendorPro != nil {
			c.Vendor.IsPro = *vendorPro
		}
		if vendorCity != nil {
			c.Vendor.City = *vendorCity
		}
	}
	if categorySlug != nil {
		c.Category = &domain.CategoryRef{Slug: *categorySlug}
		if categoryName != nil {
			c.Category.Name = *categoryName
		}
	}
	return c, nil
}

func (s *CatalogStore) suggest(ctx context.Context, op, query, kind, text string, limit int) (_ []domain.Suggestion, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, containsPattern(text), limit)
	if err != nil {
		return nil, apperrors.Store(op, err)
	}
	defer rows.Close()

	out := []domain.Suggestion{}
	for rows.Next() {
		sg := domain.Suggestion{Kind: kind}
		if err := rows.Scan(&sg.ID, &sg.Text, &sg.Slug); err != nil {
			return nil, apperrors.Store(op, err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store(op, err)
	}
	return out, nil
}

// SuggestProducts returns active products of visible vendors whose name
// contains text, most viewed first.
func (s *CatalogStore) SuggestProducts(ctx context.Context, text string, limit int) ([]domain.Suggestion, error) {
	return s.suggest(ctx, "SuggestProducts", `
		SELECT p.id, p.name, p.slug
		FROM products p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.is_active = true AND `+vendorVisible+` AND p.name ILIKE $1
		ORDER BY p.view_count DESC, p.name ASC
		LIMIT $2`, domain.SuggestionProduct, text, limit)
}

// SuggestCategories returns categories whose name contains text.
func (s *CatalogStore) SuggestCategories(ctx context.Context, text string, limit int) ([]domain.Suggestion, error) {
	return s.suggest(ctx, "SuggestCategories", `
		SELECT id, name, slug
		FROM categories
		WHERE name ILIKE $1
		ORDER BY name ASC
		LIMIT $2`, domain.SuggestionCategory, text, limit)
}

// SuggestVendors returns visible vendors whose store name contains text, PRO first.
func (s *CatalogStore) SuggestVendors(ctx context.Context, text string, limit int) ([]domain.Suggestion, error) {
	return s.suggest(ctx, "SuggestVendors", `
		SELECT v.id, v.store_name, v.slug
		FROM vendors v
		WHERE `+vendorVisible+` AND v.store_name ILIKE $1
		ORDER BY v.is_pro DESC, v.store_name ASC
		LIMIT $2`, domain.SuggestionVendor, text, limit)
}
