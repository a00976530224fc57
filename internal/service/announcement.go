package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/repository"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// AnnouncementService manages platform banners.
type AnnouncementService struct {
	announcements repository.AnnouncementRepository
	guard         Authorizer
	notify        *Notifier
	logger        *slog.Logger
	now           func() time.Time
}

// NewAnnouncementService creates a new announcement service.
func NewAnnouncementService(announcements repository.AnnouncementRepository, guard Authorizer, notify *Notifier, logger *slog.Logger) *AnnouncementService {
	return &AnnouncementService{
		announcements: announcements,
		guard:         guard,
		notify:        notify,
		logger:        logger,
		now:           time.Now,
	}
}

// ListCurrent returns the announcements shown to visitors right now.
func (s *AnnouncementService) ListCurrent(ctx context.Context) ([]domain.Announcement, error) {
	list, err := s.announcements.ListCurrent(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list current announcements: %w", err)
	}
	return list, nil
}

// ListAnnouncements returns every announcement for the admin panel.
func (s *AnnouncementService) ListAnnouncements(ctx context.Context, actor authz.Actor) ([]domain.Announcement, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectAnnouncement, "", authz.ActionModerate); err != nil {
		return nil, err
	}
	list, err := s.announcements.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return list, nil
}

// CreateAnnouncement creates an announcement. It is active unless the input
// says otherwise.
func (s *AnnouncementService) CreateAnnouncement(ctx context.Context, actor authz.Actor, input *domain.AnnouncementInput) (*domain.Announcement, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectAnnouncement, "", authz.ActionCreate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &domain.Announcement{ID: uuid.New().String(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := applyAnnouncementInput(a, input); err != nil {
		return nil, err
	}
	if a.Title == "" {
		return nil, apperrors.InvalidField("title", "is required")
	}

	if err := s.announcements.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}

	s.notify.Changed(ctx, announcementChange(a.ID))
	s.logger.InfoContext(ctx, "announcement created",
		slog.String("announcement_id", a.ID),
	)
	return a, nil
}

// UpdateAnnouncement applies partial updates to an announcement.
func (s *AnnouncementService) UpdateAnnouncement(ctx context.Context, actor authz.Actor, id string, input *domain.AnnouncementInput) (*domain.Announcement, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectAnnouncement, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	a, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get announcement for update: %w", err)
	}
	if err := applyAnnouncementInput(a, input); err != nil {
		return nil, err
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.announcements.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update announcement: %w", err)
	}

	s.notify.Changed(ctx, announcementChange(a.ID))
	s.logger.InfoContext(ctx, "announcement updated",
		slog.String("announcement_id", a.ID),
	)
	return a, nil
}

// DeleteAnnouncement removes an announcement.
func (s *AnnouncementService) DeleteAnnouncement(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectAnnouncement, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.announcements.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}

	s.notify.Changed(ctx, announcementChange(id))
	s.logger.InfoContext(ctx, "announcement deleted",
		slog.String("announcement_id", id),
	)
	return nil
}

func applyAnnouncementInput(a *domain.Announcement, in *domain.AnnouncementInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperrors.InvalidField("title", "must not be empty")
		}
		a.Title = title
	}
	if in.Body != nil {
		a.Body = strings.TrimSpace(*in.Body)
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	if in.StartsAt != nil {
		a.StartsAt = in.StartsAt
	}
	if in.EndsAt != nil {
		a.EndsAt = in.EndsAt
	}
	if a.StartsAt != nil && a.EndsAt != nil && !a.EndsAt.After(*a.StartsAt) {
		return apperrors.InvalidField("ends_at", "must be after starts_at")
	}
	return nil
}

func announcementChange(id string) event.Change {
	return event.Change{Type: event.AnnouncementChanged, EntityType: "announcement", EntityID: id}
}
