package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/pkg/database"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

const productColumns = `id, slug, name, price, description, main_image_url, gallery_image_urls, category_id, vendor_id,
	is_active, is_featured, stock, view_count, tags, variations, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func marshalVariations(v domain.Variations) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal variations: %w", err)
	}
	return b, nil
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	variations, err := marshalVariations(p.Variations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		p.Price,
		p.Description,
		p.MainImageURL,
		emptyIfNil(p.GalleryImageURLs),
		p.CategoryID,
		p.VendorID,
		p.IsActive,
		p.IsFeatured,
		p.Stock,
		p.ViewCount,
		emptyIfNil(p.Tags),
		variations,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidField("category_id", "unknown category")
		}
		return apperrors.Store("insert product", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id, "get product")
	}
	return p, nil
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`
	p, err := scanProduct(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		return nil, notFoundOr(err, "product", slug, "get product by slug")
	}
	return p, nil
}

// List returns products matching the filter, newest first, with the total count.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.VendorID != nil {
		args = append(args, *filter.VendorID)
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, containsPattern(q))
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperrors.Store("list products", err)
	}
	defer rows.Close()

	var (
		products   = []domain.Product{}
		totalCount int
	)
	for rows.Next() {
		p, err := scanProduct(rows, &totalCount)
		if err != nil {
			return nil, 0, apperrors.Store("scan product row", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Store("iterate product rows", err)
	}
	return products, totalCount, nil
}

// ListCardsByVendor returns the active cards of the vendor whose slug or id
// is vendorRef. Products without a category are included with a nil Category.
func (r *ProductRepository) ListCardsByVendor(ctx context.Context, vendorRef string) ([]domain.ProductCard, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM products p
		JOIN vendors v ON v.id = p.vendor_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE (v.slug = $1 OR v.id::text = $1) AND p.is_active = true
		ORDER BY p.is_featured DESC, p.created_at DESC, p.id ASC`

	rows, err := r.db.Query(ctx, query, vendorRef)
	if err != nil {
		return nil, apperrors.Store("list vendor products", err)
	}
	defer rows.Close()

	cards := []domain.ProductCard{}
	for rows.Next() {
		card, err := scanCard(rows, nil)
		if err != nil {
			return nil, apperrors.Store("scan vendor product", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("iterate vendor products", err)
	}
	return cards, nil
}

// Update writes every mutable column of p.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	variations, err := marshalVariations(p.Variations)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET slug = $2, name = $3, price = $4, description = $5, category_id = $6,
			is_active = $7, is_featured = $8, stock = $9, tags = $10, variations = $11, updated_at = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		p.ID,
		p.Slug,
		p.Name,
		p.Price,
		p.Description,
		p.CategoryID,
		p.IsActive,
		p.IsFeatured,
		p.Stock,
		emptyIfNil(p.Tags),
		variations,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidField("category_id", "unknown category")
		}
		return apperrors.Store("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// UpdateImages replaces the main image and the gallery.
func (r *ProductRepository) UpdateImages(ctx context.Context, id, mainImageURL string, gallery []string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET main_image_url = $2, gallery_image_urls = $3, updated_at = now()
		WHERE id = $1`,
		id, mainImageURL, emptyIfNil(gallery),
	)
	if err != nil {
		return apperrors.Store("update product images", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return apperrors.Store("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// IncrementViewCount adds one to the view counter in a single statement.
func (r *ProductRepository) IncrementViewCount(ctx context.Context, id string) (err error) {
	const query = `UPDATE products SET view_count = view_count + 1 WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "IncrementViewCount", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, id); err != nil {
		return apperrors.Store("increment view count", err)
	}
	return nil
}

// SlugExists reports whether a product already uses slug.
func (r *ProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, apperrors.Store("check product slug", err)
	}
	return exists, nil
}

// OwnerOf returns the user ID of the vendor selling product id.
func (r *ProductRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, `
		SELECT v.user_id
		FROM products p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.id = $1`, id,
	).Scan(&userID)
	if err != nil {
		return "", notFoundOr(err, "product", id, "get product owner")
	}
	return userID, nil
}

// scanProduct reads one productColumns row, plus a trailing count column
// when total is given.
func scanProduct(row pgx.Row, total ...*int) (*domain.Product, error) {
	var (
		p          domain.Product
		variations []byte
	)
	dest := []any{
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Price,
		&p.Description,
		&p.MainImageURL,
		&p.GalleryImageURLs,
		&p.CategoryID,
		&p.VendorID,
		&p.IsActive,
		&p.IsFeatured,
		&p.Stock,
		&p.ViewCount,
		&p.Tags,
		&variations,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if len(total) > 0 {
		dest = append(dest, total[0])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(variations) > 0 {
		if err := json.Unmarshal(variations, &p.Variations); err != nil {
			return nil, fmt.Errorf("unmarshal variations: %w", err)
		}
	}
	return &p, nil
}

func limitOffset(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
