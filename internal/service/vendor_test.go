package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

func newVendorService(f *fixture, profiles *mockProfileRepository) *VendorService {
	return NewVendorService(f.vendors, profiles, f.guard, f.notify, newTestLogger())
}

func TestOpenStore_PromotesBuyer(t *testing.T) {
	f := newFixture(t)
	profiles := new(mockProfileRepository)
	svc := newVendorService(f, profiles)
	ctx := context.Background()

	f.vendors.On("GetByUserID", ctx, otherUserID).Return(nil, apperrors.NotFound("vendor", otherUserID))
	f.vendors.On("SlugExists", ctx, "nandu-artesanal").Return(false, nil)
	f.vendors.On("Create", ctx, mock.MatchedBy(func(v *domain.Vendor) bool {
		return v.Slug == "nandu-artesanal" && v.UserID == otherUserID && v.Status == domain.VendorStatusActive && !v.IsPro
	})).Return(nil)
	profiles.On("UpdateRole", ctx, otherUserID, domain.RoleVendor).Return(nil)

	vendor, err := svc.OpenStore(ctx, buyerActor, &OpenStoreInput{
		StoreName: "Ñandú Artesanal",
		City:      " Córdoba ",
		Latitude:  floatPtr(-31.42),
		Longitude: floatPtr(-64.18),
		WhatsApp:  "+5493515551234",
	})
	require.NoError(t, err)
	assert.Equal(t, "Córdoba", vendor.City)
	assert.True(t, vendor.HasCoordinates())
	assert.Equal(t, []string{event.VendorUpdated}, f.published.types())
	profiles.AssertExpectations(t)
}

func TestOpenStore_OneStorePerUser(t *testing.T) {
	f := newFixture(t)
	svc := newVendorService(f, new(mockProfileRepository))
	ctx := context.Background()

	f.vendors.On("GetByUserID", ctx, vendorUserID).Return(activeVendor(), nil)

	_, err := svc.OpenStore(ctx, vendorActor, &OpenStoreInput{StoreName: "Otra"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestOpenStore_HalfCoordinates(t *testing.T) {
	f := newFixture(t)
	svc := newVendorService(f, new(mockProfileRepository))
	ctx := context.Background()

	f.vendors.On("GetByUserID", ctx, otherUserID).Return(nil, apperrors.NotFound("vendor", otherUserID))

	_, err := svc.OpenStore(ctx, buyerActor, &OpenStoreInput{StoreName: "Tienda", Latitude: floatPtr(-31.4)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateStore(t *testing.T) {
	f := newFixture(t)
	svc := newVendorService(f, new(mockProfileRepository))
	ctx := context.Background()

	f.vendors.On("OwnerOf", ctx, vendorID).Return(vendorUserID, nil)
	f.vendors.On("GetByID", ctx, vendorID).Return(activeVendor(), nil)
	f.vendors.On("Update", ctx, mock.MatchedBy(func(v *domain.Vendor) bool {
		return v.StoreName == "Mates del Norte" && v.Slug == "mates-del-sur" && *v.Latitude == -24.78
	})).Return(nil)

	vendor, err := svc.UpdateStore(ctx, vendorActor, vendorID, &domain.VendorProfileInput{
		StoreName: strPtr("Mates del Norte"),
		Latitude:  floatPtr(-24.78),
		Longitude: floatPtr(-65.41),
	})
	require.NoError(t, err)
	assert.Equal(t, "mates-del-sur", vendor.Slug, "storefront URL survives a rename")

	_, err = svc.UpdateStore(ctx, otherActor, vendorID, &domain.VendorProfileInput{StoreName: strPtr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestModerateVendor(t *testing.T) {
	f := newFixture(t)
	svc := newVendorService(f, new(mockProfileRepository))
	ctx := context.Background()

	_, err := svc.ModerateVendor(ctx, vendorActor, vendorID, &domain.VendorModeration{IsPro: boolPtr(true)})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	v := activeVendor()
	v.IsPro, v.ProExpiresAt = true, &expires
	f.vendors.On("GetByID", ctx, vendorID).Return(v, nil)
	f.vendors.On("Update", ctx, mock.MatchedBy(func(v *domain.Vendor) bool {
		return v.Status == domain.VendorStatusSuspended && !v.IsPro && v.ProExpiresAt == nil
	})).Return(nil)

	vendor, err := svc.ModerateVendor(ctx, adminActor, vendorID, &domain.VendorModeration{
		Status: strPtr(domain.VendorStatusSuspended),
		IsPro:  boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VendorStatusSuspended, vendor.Status)

	_, err = svc.ModerateVendor(ctx, adminActor, vendorID, &domain.VendorModeration{Status: strPtr("closed")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListVendors_AdminOnly(t *testing.T) {
	f := newFixture(t)
	svc := newVendorService(f, new(mockProfileRepository))
	ctx := context.Background()

	_, _, err := svc.ListVendors(ctx, vendorActor, domain.VendorFilter{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = svc.ListVendors(ctx, adminActor, domain.VendorFilter{Status: strPtr("closed")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	f.vendors.On("List", ctx, domain.VendorFilter{Status: strPtr(domain.VendorStatusPending), Page: 2, PerPage: 60}).
		Return([]domain.Vendor{*activeVendor()}, 61, nil)
	vendors, total, err := svc.ListVendors(ctx, adminActor, domain.VendorFilter{
		Status: strPtr(domain.VendorStatusPending), Page: 2, PerPage: 500,
	})
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
	assert.Equal(t, 61, total)
}
