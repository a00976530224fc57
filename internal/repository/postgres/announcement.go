package postgres

import (
	"context"
	"time"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/pkg/database"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

const announcementColumns = `id, title, body, is_active, starts_at, ends_at, created_at, updated_at`

// AnnouncementRepository implements repository.AnnouncementRepository using PostgreSQL.
type AnnouncementRepository struct {
	db database.DBTX
}

// NewAnnouncementRepository creates a new PostgreSQL-backed announcement repository.
func NewAnnouncementRepository(db database.DBTX) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO announcements (`+announcementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Title, a.Body, a.IsActive, a.StartsAt, a.EndsAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return apperrors.Store("insert announcement", err)
	}
	return nil
}

// GetByID retrieves an announcement by its ID.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	var a domain.Announcement
	err := r.db.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.Body, &a.IsActive, &a.StartsAt, &a.EndsAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "announcement", id, "get announcement")
	}
	return &a, nil
}

func (r *AnnouncementRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Announcement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Store(op, err)
	}
	defer rows.Close()

	out := []domain.Announcement{}
	for rows.Next() {
		var a domain.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.IsActive, &a.StartsAt, &a.EndsAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, apperrors.Store(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store(op, err)
	}
	return out, nil
}

// List returns every announcement, newest first.
func (r *AnnouncementRepository) List(ctx context.Context) ([]domain.Announcement, error) {
	return r.list(ctx, "list announcements",
		`SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC, id ASC`)
}

// ListCurrent returns active announcements whose window contains now.
func (r *AnnouncementRepository) ListCurrent(ctx context.Context, now time.Time) ([]domain.Announcement, error) {
	return r.list(ctx, "list current announcements", `
		SELECT `+announcementColumns+`
		FROM announcements
		WHERE is_active = true
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY created_at DESC, id ASC`, now)
}

// Update writes every mutable column of a.
func (r *AnnouncementRepository) Update(ctx context.Context, a *domain.Announcement) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE announcements
		SET title = $2, body = $3, is_active = $4, starts_at = $5, ends_at = $6, updated_at = $7
		WHERE id = $1`,
		a.ID, a.Title, a.Body, a.IsActive, a.StartsAt, a.EndsAt, a.UpdatedAt,
	)
	if err != nil {
		return apperrors.Store("update announcement", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("announcement", a.ID)
	}
	return nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return apperrors.Store("delete announcement", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("announcement", id)
	}
	return nil
}
