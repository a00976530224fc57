package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/service"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/health"
	"github.com/utafrali/mercadolocal/pkg/httputil"
	"github.com/utafrali/mercadolocal/pkg/middleware"
)

// =============================================================================
// Mock services
// =============================================================================

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) Search(ctx context.Context, spec domain.SearchQuerySpec) (*domain.SearchResult, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SearchResult), args.Error(1)
}

func (m *mockCatalog) Suggest(ctx context.Context, text string) []domain.Suggestion {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.Suggestion)
}

type mockPages struct{ mock.Mock }

func (m *mockPages) GetProduct(ctx context.Context, ref string) (*domain.ProductDetail, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductDetail), args.Error(1)
}

func (m *mockPages) GetVendorStorefront(ctx context.Context, ref string) (*domain.Storefront, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Storefront), args.Error(1)
}

type mockCategories struct{ mock.Mock }

func (m *mockCategories) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategories) CreateCategory(ctx context.Context, actor authz.Actor, input *service.CategoryInput) (*domain.Category, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategories) UpdateCategory(ctx context.Context, actor authz.Actor, id string, input *service.CategoryInput) (*domain.Category, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategories) DeleteCategory(ctx context.Context, actor authz.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockAnnouncements struct{ mock.Mock }

func (m *mockAnnouncements) ListCurrent(ctx context.Context) ([]domain.Announcement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Announcement), args.Error(1)
}

func (m *mockAnnouncements) ListAnnouncements(ctx context.Context, actor authz.Actor) ([]domain.Announcement, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Announcement), args.Error(1)
}

func (m *mockAnnouncements) CreateAnnouncement(ctx context.Context, actor authz.Actor, input *domain.AnnouncementInput) (*domain.Announcement, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Announcement), args.Error(1)
}

func (m *mockAnnouncements) UpdateAnnouncement(ctx context.Context, actor authz.Actor, id string, input *domain.AnnouncementInput) (*domain.Announcement, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Announcement), args.Error(1)
}

func (m *mockAnnouncements) DeleteAnnouncement(ctx context.Context, actor authz.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockProducts struct{ mock.Mock }

func (m *mockProducts) CreateProduct(ctx context.Context, actor authz.Actor, input *service.CreateProductInput) (*domain.Product, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProducts) GetProduct(ctx context.Context, actor authz.Actor, id string) (*domain.Product, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProducts) ListProducts(ctx context.Context, actor authz.Actor, filter domain.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, actor, filter)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProducts) UpdateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductInput) (*domain.Product, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProducts) ModerateProduct(ctx context.Context, actor authz.Actor, id string, input *domain.ProductModeration) (*domain.Product, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProducts) DeleteProduct(ctx context.Context, actor authz.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockImages struct{ mock.Mock }

func (m *mockImages) UploadImages(ctx context.Context, actor authz.Actor, productID string, files []service.ImageFile, primaryIndex *int) (*domain.Product, error) {
	args := m.Called(ctx, actor, productID, files, primaryIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockImages) RemoveImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error) {
	args := m.Called(ctx, actor, productID, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockImages) SetMainImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error) {
	args := m.Called(ctx, actor, productID, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockImages) ReorderGallery(ctx context.Context, actor authz.Actor, productID string, order []string) (*domain.Product, error) {
	args := m.Called(ctx, actor, productID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockStores struct{ mock.Mock }

func (m *mockStores) OpenStore(ctx context.Context, actor authz.Actor, input *service.OpenStoreInput) (*domain.Vendor, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockStores) GetOwnStore(ctx context.Context, actor authz.Actor) (*domain.Vendor, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockStores) UpdateStore(ctx context.Context, actor authz.Actor, id string, input *domain.VendorProfileInput) (*domain.Vendor, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

func (m *mockStores) ListVendors(ctx context.Context, actor authz.Actor, filter domain.VendorFilter) ([]domain.Vendor, int, error) {
	args := m.Called(ctx, actor, filter)
	return args.Get(0).([]domain.Vendor), args.Int(1), args.Error(2)
}

func (m *mockStores) ModerateVendor(ctx context.Context, actor authz.Actor, id string, input *domain.VendorModeration) (*domain.Vendor, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vendor), args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) ListUsers(ctx context.Context, actor authz.Actor, filter domain.ProfileFilter) ([]domain.Profile, int, error) {
	args := m.Called(ctx, actor, filter)
	return args.Get(0).([]domain.Profile), args.Int(1), args.Error(2)
}

func (m *mockUsers) ChangeRole(ctx context.Context, actor authz.Actor, id, role string) error {
	return m.Called(ctx, actor, id, role).Error(0)
}

func (m *mockUsers) SetBanned(ctx context.Context, actor authz.Actor, id string, banned bool) error {
	return m.Called(ctx, actor, id, banned).Error(0)
}

func (m *mockUsers) CreateUser(ctx context.Context, actor authz.Actor, input *service.CreateUserInput) (*domain.Profile, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockUsers) DeleteUser(ctx context.Context, actor authz.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) StartCheckout(ctx context.Context, actor authz.Actor) (*service.Checkout, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Checkout), args.Error(1)
}

func (m *mockSubscriptions) HandleNotification(ctx context.Context, n service.Notification) (string, error) {
	args := m.Called(ctx, n)
	return args.String(0), args.Error(1)
}

// =============================================================================
// Test helpers
// =============================================================================

const (
	testJWTSecret = "test-jwt-secret-with-at-least-32-characters"
	testAdminKey  = "admin-shared-secret"

	vendorUserID = "5b8f6c1e-2d3a-4f7b-9c0d-1e2f3a4b5c6d"
	adminUserID  = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	buyerUserID  = "0f1e2d3c-4b5a-4968-8776-a5b4c3d2e1f0"
	storeID      = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
	productID    = "7e6d5c4b-3a29-4817-b6a5-948372615049"

	otherProductID = "2c1b0a99-8877-4665-a544-332211009988"
)

var (
	vendorActor = authz.Actor{UserID: vendorUserID, Role: domain.RoleVendor}
	adminActor  = authz.Actor{UserID: adminUserID, Role: domain.RoleAdmin}
	buyerActor  = authz.Actor{UserID: buyerUserID, Role: domain.RoleBuyer}
)

type testServer struct {
	catalog       *mockCatalog
	pages         *mockPages
	categories    *mockCategories
	announcements *mockAnnouncements
	products      *mockProducts
	images        *mockImages
	stores        *mockStores
	users         *mockUsers
	subscriptions *mockSubscriptions
	router        http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roleResolver answers from a fixed user to role table.
func roleResolver(roles map[string]string) middleware.RoleResolver {
	return func(_ context.Context, userID string) (string, error) {
		role, ok := roles[userID]
		if !ok {
			return "", apperrors.NotFound("profile", userID)
		}
		return role, nil
	}
}

// newTestServer wires the full router over mocked services. Without
// payments the subscription manager and webhook are left out.
func newTestServer(t *testing.T, payments bool) *testServer {
	t.Helper()
	ts := &testServer{
		catalog:       &mockCatalog{},
		pages:         &mockPages{},
		categories:    &mockCategories{},
		announcements: &mockAnnouncements{},
		products:      &mockProducts{},
		images:        &mockImages{},
		stores:        &mockStores{},
		users:         &mockUsers{},
		subscriptions: &mockSubscriptions{},
	}
	logger := testLogger()

	var subs SubscriptionManager
	var webhook *WebhookHandler
	if payments {
		subs = ts.subscriptions
		webhook = NewWebhookHandler(ts.subscriptions, logger)
	}

	handlers := Handlers{
		Public:    NewPublicHandler(ts.catalog, ts.pages, ts.categories, ts.announcements, logger),
		Dashboard: NewDashboardHandler(ts.stores, ts.products, ts.images, subs, logger),
		Admin:     NewAdminHandler(ts.categories, ts.announcements, ts.products, ts.stores, ts.users, logger),
		Webhook:   webhook,
	}
	cfg := RouterConfig{
		Tokens: middleware.NewHS256Validator(testJWTSecret, "authenticated"),
		ResolveRole: roleResolver(map[string]string{
			vendorUserID: domain.RoleVendor,
			adminUserID:  domain.RoleAdmin,
			buyerUserID:  domain.RoleBuyer,
		}),
		AdminSecret:    testAdminKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	ts.router = NewRouter(handlers, cfg, health.NewHandler(), logger)

	t.Cleanup(func() {
		ts.catalog.AssertExpectations(t)
		ts.pages.AssertExpectations(t)
		ts.categories.AssertExpectations(t)
		ts.announcements.AssertExpectations(t)
		ts.products.AssertExpectations(t)
		ts.images.AssertExpectations(t)
		ts.stores.AssertExpectations(t)
		ts.users.AssertExpectations(t)
		ts.subscriptions.AssertExpectations(t)
	})
	return ts
}

// sessionToken signs a hosted-backend style access token for userID.
func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	claims := middleware.SessionClaims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func authed(t *testing.T, req *http.Request, userID string) *http.Request {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, userID))
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }
