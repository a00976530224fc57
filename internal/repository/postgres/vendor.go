package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/pkg/database"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

const vendorColumns = `id, user_id, store_name, slug, description, city, latitude, longitude, whatsapp,
	is_pro, pro_expires_at, status, created_at, updated_at`

// VendorRepository implements repository.VendorRepository using PostgreSQL.
type VendorRepository struct {
	db database.DBTX
}

// NewVendorRepository creates a new PostgreSQL-backed vendor repository.
func NewVendorRepository(db database.DBTX) *VendorRepository {
	return &VendorRepository{db: db}
}

// Create inserts a new vendor.
func (r *VendorRepository) Create(ctx context.Context, v *domain.Vendor) error {
	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		v.ID, v.UserID, v.StoreName, v.Slug, v.Description, v.City, v.Latitude, v.Longitude, v.WhatsApp,
		v.IsPro, v.ProExpiresAt, v.Status, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("vendor", "slug", v.Slug)
		}
		return apperrors.Store("insert vendor", err)
	}
	return nil
}

func (r *VendorRepository) getBy(ctx context.Context, column, value string) (*domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE ` + column + ` = $1`
	v, err := scanVendor(r.db.QueryRow(ctx, query, value))
	if err != nil {
		return nil, notFoundOr(err, "vendor", value, "get vendor by "+column)
	}
	return v, nil
}

// GetByID retrieves a vendor by its ID.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*domain.Vendor, error) {
	return r.getBy(ctx, "id", id)
}

// GetBySlug retrieves a vendor by its slug.
func (r *VendorRepository) GetBySlug(ctx context.Context, slug string) (*domain.Vendor, error) {
	return r.getBy(ctx, "slug", slug)
}

// GetByUserID retrieves the vendor owned by userID.
func (r *VendorRepository) GetByUserID(ctx context.Context, userID string) (*domain.Vendor, error) {
	return r.getBy(ctx, "user_id", userID)
}

// List returns vendors matching the filter, with the total count.
func (r *VendorRepository) List(ctx context.Context, filter domain.VendorFilter) ([]domain.Vendor, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, containsPattern(q))
		conditions = append(conditions, fmt.Sprintf("(store_name ILIKE $%d OR city ILIKE $%d)", len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM vendors
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		vendorColumns, whereClause, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperrors.Store("list vendors", err)
	}
	defer rows.Close()

	var (
		vendors    = []domain.Vendor{}
		totalCount int
	)
	for rows.Next() {
		v, err := scanVendor(rows, &totalCount)
		if err != nil {
			return nil, 0, apperrors.Store("scan vendor row", err)
		}
		vendors = append(vendors, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Store("iterate vendor rows", err)
	}
	return vendors, totalCount, nil
}

// Update writes every mutable column of v.
func (r *VendorRepository) Update(ctx context.Context, v *domain.Vendor) error {
	query := `
		UPDATE vendors
		SET store_name = $2, slug = $3, description = $4, city = $5, latitude = $6, longitude = $7,
			whatsapp = $8, is_pro = $9, pro_expires_at = $10, status = $11, updated_at = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		v.ID, v.StoreName, v.Slug, v.Description, v.City, v.Latitude, v.Longitude,
		v.WhatsApp, v.IsPro, v.ProExpiresAt, v.Status, v.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("vendor", "slug", v.Slug)
		}
		return apperrors.Store("update vendor", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("vendor", v.ID)
	}
	return nil
}

// SlugExists reports whether a vendor already uses slug.
func (r *VendorRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vendors WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, apperrors.Store("check vendor slug", err)
	}
	return exists, nil
}

// OwnerOf returns the user that owns vendor id.
func (r *VendorRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var userID string
	if err := r.db.QueryRow(ctx, `SELECT user_id FROM vendors WHERE id = $1`, id).Scan(&userID); err != nil {
		return "", notFoundOr(err, "vendor", id, "get vendor owner")
	}
	return userID, nil
}

// ActivatePro records the payment and extends PRO in one statement, so a
// redelivered notification for the same payment changes nothing.
func (r *VendorRepository) ActivatePro(ctx context.Context, vendorID, paymentID string, expiresAt time.Time) (bool, error) {
	query := `
		WITH recorded AS (
			INSERT INTO pro_payments (payment_id, vendor_id, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (payment_id) DO NOTHING
			RETURNING vendor_id
		)
		UPDATE vendors
		SET is_pro = true, pro_expires_at = GREATEST(COALESCE(pro_expires_at, $3), $3), updated_at = now()
		WHERE id = (SELECT vendor_id FROM recorded)
		RETURNING id`

	var id string
	err := r.db.QueryRow(ctx, query, paymentID, vendorID, expiresAt).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case database.IsForeignKeyViolation(err):
		return false, apperrors.NotFound("vendor", vendorID)
	default:
		return false, apperrors.Store("activate pro", err)
	}
}

func scanVendor(row pgx.Row, total ...*int) (*domain.Vendor, error) {
	var v domain.Vendor
	dest := []any{
		&v.ID, &v.UserID, &v.StoreName, &v.Slug, &v.Description, &v.City, &v.Latitude, &v.Longitude, &v.WhatsApp,
		&v.IsPro, &v.ProExpiresAt, &v.Status, &v.CreatedAt, &v.UpdatedAt,
	}
	if len(total) > 0 {
		dest = append(dest, total[0])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &v, nil
}
