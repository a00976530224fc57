package service

import (
	"context"
	"errors"
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

// VendorService implements store profile and vendor moderation operations.
type VendorService struct {
	vendors  repository.VendorRepository
	profiles repository.ProfileRepository
	guard    Authorizer
	notify   *Notifier
	logger   *slog.Logger
}

// NewVendorService creates a new vendor service.
func NewVendorService(
	vendors repository.VendorRepository,
	profiles repository.ProfileRepository,
	guard Authorizer,
	notify *Notifier,
	logger *slog.Logger,
) *VendorService {
	return &VendorService{
		vendors:  vendors,
		profiles: profiles,
		guard:    guard,
		notify:   notify,
		logger:   logger,
	}
}

// OpenStoreInput holds the parameters for opening a store.
type OpenStoreInput struct {
	StoreName   string
	Description string
	City        string
	Latitude    *float64
	Longitude   *float64
	WhatsApp    string
}

// OpenStore creates the actor's store and promotes a buyer to vendor. Each
// user runs at most one store.
func (s *VendorService) OpenStore(ctx context.Context, actor authz.Actor, input *OpenStoreInput) (*domain.Vendor, error) {
	if actor.UserID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if _, err := s.vendors.GetByUserID(ctx, actor.UserID); err == nil {
		return nil, apperrors.AlreadyExists("store", "user_id", actor.UserID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing store: %w", err)
	}

	name := strings.TrimSpace(input.StoreName)
	if name == "" {
		return nil, apperrors.InvalidField("store_name", "is required")
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, apperrors.InvalidField("latitude", "latitude and longitude must be set together")
	}

	storeSlug, err := uniqueSlug(ctx, name, s.vendors.SlugExists)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	vendor := &domain.Vendor{
		ID:          uuid.New().String(),
		UserID:      actor.UserID,
		StoreName:   name,
		Slug:        storeSlug,
		Description: strings.TrimSpace(input.Description),
		City:        strings.TrimSpace(input.City),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		WhatsApp:    strings.TrimSpace(input.WhatsApp),
		Status:      domain.VendorStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.vendors.Create(ctx, vendor); err != nil {
		return nil, fmt.Errorf("create vendor: %w", err)
	}

	if actor.Role == domain.RoleBuyer {
		if err := s.profiles.UpdateRole(ctx, actor.UserID, domain.RoleVendor); err != nil {
			return nil, fmt.Errorf("promote user to vendor: %w", err)
		}
	}

	s.notify.Changed(ctx, vendorChange(vendor, ""))
	s.logger.InfoContext(ctx, "store opened",
		slog.String("vendor_id", vendor.ID),
		slog.String("slug", vendor.Slug),
	)
	return vendor, nil
}

// GetOwnStore returns the actor's store.
func (s *VendorService) GetOwnStore(ctx context.Context, actor authz.Actor) (*domain.Vendor, error) {
	if actor.UserID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	vendor, err := s.vendors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get own store: %w", err)
	}
	return vendor, nil
}

// UpdateStore applies the storefront fields a vendor may edit.
func (s *VendorService) UpdateStore(ctx context.Context, actor authz.Actor, id string, input *domain.VendorProfileInput) (*domain.Vendor, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectVendor, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get vendor for update: %w", err)
	}

	if input.StoreName != nil {
		name := strings.TrimSpace(*input.StoreName)
		if name == "" {
			return nil, apperrors.InvalidField("store_name", "must not be empty")
		}
		vendor.StoreName = name
	}
	if input.Description != nil {
		vendor.Description = strings.TrimSpace(*input.Description)
	}
	if input.City != nil {
		vendor.City = strings.TrimSpace(*input.City)
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, apperrors.InvalidField("latitude", "latitude and longitude must be set together")
	}
	if input.Latitude != nil {
		vendor.Latitude, vendor.Longitude = input.Latitude, input.Longitude
	}
	if input.WhatsApp != nil {
		vendor.WhatsApp = strings.TrimSpace(*input.WhatsApp)
	}
	vendor.UpdatedAt = time.Now().UTC()

	if err := s.vendors.Update(ctx, vendor); err != nil {
		return nil, fmt.Errorf("update vendor: %w", err)
	}

	s.notify.Changed(ctx, vendorChange(vendor, ""))
	s.logger.InfoContext(ctx, "store updated",
		slog.String("vendor_id", vendor.ID),
	)
	return vendor, nil
}

// ListVendors returns vendors for the admin panel.
func (s *VendorService) ListVendors(ctx context.Context, actor authz.Actor, filter domain.VendorFilter) ([]domain.Vendor, int, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectVendor, "", authz.ActionModerate); err != nil {
		return nil, 0, err
	}
	if filter.Status != nil && !domain.IsValidVendorStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidField("status", "unknown vendor status")
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	vendors, total, err := s.vendors.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list vendors: %w", err)
	}
	return vendors, total, nil
}

// ModerateVendor sets status and the PRO flag. Granting PRO without an
// expiry leaves it open-ended; revoking it clears the expiry.
func (s *VendorService) ModerateVendor(ctx context.Context, actor authz.Actor, id string, input *domain.VendorModeration) (*domain.Vendor, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectVendor, id, authz.ActionModerate); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get vendor for moderation: %w", err)
	}

	if input.Status != nil {
		if !domain.IsValidVendorStatus(*input.Status) {
			return nil, apperrors.InvalidField("status", "unknown vendor status")
		}
		vendor.Status = *input.Status
	}
	if input.IsPro != nil {
		vendor.IsPro = *input.IsPro
		if !vendor.IsPro {
			vendor.ProExpiresAt = nil
		}
	}
	if input.ProExpiresAt != nil && vendor.IsPro {
		vendor.ProExpiresAt = input.ProExpiresAt
	}
	vendor.UpdatedAt = time.Now().UTC()

	if err := s.vendors.Update(ctx, vendor); err != nil {
		return nil, fmt.Errorf("moderate vendor: %w", err)
	}

	s.notify.Changed(ctx, vendorChange(vendor, ""))
	s.logger.InfoContext(ctx, "vendor moderated",
		slog.String("vendor_id", vendor.ID),
		slog.String("status", vendor.Status),
		slog.Bool("is_pro", vendor.IsPro),
	)
	return vendor, nil
}

func vendorChange(v *domain.Vendor, paymentID string) event.Change {
	eventType := event.VendorUpdated
	if paymentID != "" {
		eventType = event.VendorProActivated
	}
	data := event.VendorData{
		ID:        v.ID,
		Slug:      v.Slug,
		Status:    v.Status,
		IsPro:     v.IsPro,
		PaymentID: paymentID,
	}
	if v.ProExpiresAt != nil {
		data.ProExpiresAt = v.ProExpiresAt.UTC().Format(time.RFC3339)
	}
	return event.Change{
		Type:       eventType,
		EntityType: "vendor",
		EntityID:   v.ID,
		Data:       data,
	}
}
