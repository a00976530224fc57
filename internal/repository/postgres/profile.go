package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/pkg/database"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db database.DBTX
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (id, email, full_name, role, is_banned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Email, p.FullName, p.Role, p.IsBanned, p.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", p.Email)
		}
		return apperrors.Store("insert profile", err)
	}
	return nil
}

// GetByID retrieves a profile by user ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx, `
		SELECT id, email, full_name, role, is_banned, created_at
		FROM profiles
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.IsBanned, &p.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "user", id, "get profile")
	}
	return &p, nil
}

// List returns profiles matching the filter, with the total count.
func (r *ProfileRepository) List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, int, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, containsPattern(q))
		conditions = append(conditions, fmt.Sprintf("(email ILIKE $%d OR full_name ILIKE $%d)", len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`
		SELECT id, email, full_name, role, is_banned, created_at, count(*) OVER() AS total_count
		FROM profiles
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperrors.Store("list profiles", err)
	}
	defer rows.Close()

	var (
		profiles   = []domain.Profile{}
		totalCount int
	)
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.IsBanned, &p.CreatedAt, &totalCount); err != nil {
			return nil, 0, apperrors.Store("scan profile row", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Store("iterate profile rows", err)
	}
	return profiles, totalCount, nil
}

func (r *ProfileRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Store(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// UpdateRole changes the role of a user.
func (r *ProfileRepository) UpdateRole(ctx context.Context, id, role string) error {
	return r.exec(ctx, "update role", id, `UPDATE profiles SET role = $2 WHERE id = $1`, id, role)
}

// SetBanned bans or unbans a user.
func (r *ProfileRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return r.exec(ctx, "set banned", id, `UPDATE profiles SET is_banned = $2 WHERE id = $1`, id, banned)
}

// Delete removes a profile and, through cascades, its vendor and products.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete profile", id, `DELETE FROM profiles WHERE id = $1`, id)
}
