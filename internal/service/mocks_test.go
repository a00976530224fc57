package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/identity"
	"github.com/utafrali/mercadolocal/internal/payment/mercadopago"
)

// --- Mock Repositories ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ListCardsByVendor(ctx context.Context, vendorRef string) ([]domain.ProductCard, error) {
	args := m.Called(ctx, vendorRef)
	return args.Get(0).([]domain.ProductCard), args.Error(1)
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) UpdateImages(ctx context.Context, id, mainImageURL string, gallery []string) error {
	return m.Called(ctx, id, mainImageURL, gallery).Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepository) IncrementViewCount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type mockVendorRepository struct {
	mock.Mock
}

func (m *mockVendorRepository) Create(ctx context.Context, v *domain.Vendor) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockVendorRepository) GetByID(ctx context.Context, id string) (*domain.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockVendorRepository) GetBySlug(ctx context.Context, slug string) (*domain.Vendor, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockVendorRepository) GetByUserID(ctx context.Context, userID string) (*domain.Vendor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockVendorRepository) List(ctx context.Context, filter domain.VendorFilter) ([]domain.Vendor, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Vendor), args.Int(1), args.Error(2)
}

func (m *mockVendorRepository) Update(ctx context.Context, v *domain.Vendor) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockVendorRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *mockVendorRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockVendorRepository) ActivatePro(ctx context.Context, vendorID, paymentID string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, vendorID, paymentID, expiresAt)
	return args.Bool(0), args.Error(1)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockAnnouncementRepository struct {
	mock.Mock
}

func (m *mockAnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Announcement), args.Error(1)
}

func (m *mockAnnouncementRepository) List(ctx context.Context) ([]domain.Announcement, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Announcement), args.Error(1)
}

func (m *mockAnnouncementRepository) ListCurrent(ctx context.Context, now time.Time) ([]domain.Announcement, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.Announcement), args.Error(1)
}

func (m *mockAnnouncementRepository) Update(ctx context.Context, a *domain.Announcement) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAnnouncementRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockProfileRepository) List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Profile), args.Int(1), args.Error(2)
}

func (m *mockProfileRepository) UpdateRole(ctx context.Context, id, role string) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *mockProfileRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return m.Called(ctx, id, banned).Error(0)
}

func (m *mockProfileRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// --- Mock Upstreams ---

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) CreateAccount(ctx context.Context, in identity.NewAccount) (*identity.Account, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *mockAccounts) DeleteAccount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}

func (m *mockProvider) CreatePreference(ctx context.Context, in mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Preference), args.Error(1)
}

// --- Notification Recorders ---

type recordingPublisher struct {
	mu      sync.Mutex
	changes []event.Change
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, c event.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.changes))
	for i, c := range p.changes {
		out[i] = c.Type
	}
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- Test Helpers ---

const (
	vendorUserID = "11111111-1111-1111-1111-111111111111"
	otherUserID  = "22222222-2222-2222-2222-222222222222"
	adminUserID  = "33333333-3333-3333-3333-333333333333"
	vendorID     = "44444444-4444-4444-4444-444444444444"
	productID    = "55555555-5555-5555-5555-555555555555"
)

var (
	vendorActor = authz.Actor{UserID: vendorUserID, Role: domain.RoleVendor}
	otherActor  = authz.Actor{UserID: otherUserID, Role: domain.RoleVendor}
	adminActor  = authz.Actor{UserID: adminUserID, Role: domain.RoleAdmin}
	buyerActor  = authz.Actor{UserID: otherUserID, Role: domain.RoleBuyer}
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	products  *mockProductRepository
	vendors   *mockVendorRepository
	published *recordingPublisher
	cache     *countingInvalidator
	guard     *authz.Guard
	notify    *Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products:  new(mockProductRepository),
		vendors:   new(mockVendorRepository),
		published: &recordingPublisher{},
		cache:     &countingInvalidator{},
	}
	guard, err := authz.NewGuard(map[string]authz.OwnerLookup{
		authz.ObjectProduct: f.products,
		authz.ObjectVendor:  f.vendors,
	})
	require.NoError(t, err)
	f.guard = guard
	f.notify = NewNotifier(f.published, f.cache, newTestLogger())
	t.Cleanup(func() {
		f.products.AssertExpectations(t)
		f.vendors.AssertExpectations(t)
	})
	return f
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func activeVendor() *domain.Vendor {
	return &domain.Vendor{
		ID:        vendorID,
		UserID:    vendorUserID,
		StoreName: "Mates del Sur",
		Slug:      "mates-del-sur",
		Status:    domain.VendorStatusActive,
	}
}
