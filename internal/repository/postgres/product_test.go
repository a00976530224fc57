package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/domain"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

var productColumnNames = []string{
	"id", "slug", "name", "price", "description", "main_image_url", "gallery_image_urls", "category_id", "vendor_id",
	"is_active", "is_featured", "stock", "view_count", "tags", "variations", "created_at", "updated_at",
}

func sampleProduct() domain.Product {
	stock := 3
	return domain.Product{
		ID:               "prod-1",
		Slug:             "mate-imperial",
		Name:             "Mate imperial",
		Price:            floatPtr(12500),
		Description:      "Calabaza forrada",
		MainImageURL:     "https://cdn.example/main.jpg",
		GalleryImageURLs: []string{"https://cdn.example/g1.jpg"},
		CategoryID:       strPtr("cat-1"),
		VendorID:         "vendor-1",
		IsActive:         true,
		Stock:            &stock,
		Tags:             []string{"mate"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func productRow(p domain.Product, variations []byte) []any {
	return []any{
		p.ID, p.Slug, p.Name, p.Price, p.Description, p.MainImageURL, p.GalleryImageURLs, p.CategoryID, p.VendorID,
		p.IsActive, p.IsFeatured, p.Stock, p.ViewCount, p.Tags, variations, p.CreatedAt, p.UpdatedAt,
	}
}

func TestProductRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WithArgs(p.ID, p.Slug, p.Name, p.Price, p.Description, p.MainImageURL, p.GalleryImageURLs, p.CategoryID,
			p.VendorID, p.IsActive, p.IsFeatured, p.Stock, p.ViewCount, p.Tags, pgxmock.AnyArg(), p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_CreateDuplicateSlug(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").WithArgs(anyArgs(17)...).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestProductRepository_CreateUnknownCategory(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").WithArgs(anyArgs(17)...).WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductRepository_GetBySlugDecodesVariations(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE slug = $1")).
		WithArgs("mate-imperial").
		WillReturnRows(mock.NewRows(productColumnNames).
			AddRow(productRow(p, []byte(`{"color":[{"name":"negro"},{"name":"marrón"}]}`))...))

	got, err := repo.GetBySlug(context.Background(), "mate-imperial")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	require.Len(t, got.Variations["color"], 2)
	assert.Equal(t, "marrón", got.Variations["color"][1].Name)
}

func TestProductRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("FROM products WHERE id = \\$1").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProductRepository_ListFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE vendor_id = $1 AND is_active = $2 AND name ILIKE $3")+
		".*"+regexp.QuoteMeta("LIMIT $4 OFFSET $5")).
		WithArgs("vendor-1", false, "%mate%", 10, 10).
		WillReturnRows(mock.NewRows(append(productColumnNames, "total_count")).
			AddRow(append(productRow(p, nil), 11)...))

	products, total, err := repo.List(context.Background(), domain.ProductFilter{
		VendorID: strPtr("vendor-1"),
		IsActive: boolPtr(false),
		Query:    " mate ",
		Page:     2,
		PerPage:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, products, 1)
	assert.Nil(t, products[0].Variations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_UpdateMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("UPDATE products").
		WithArgs(p.ID, p.Slug, p.Name, p.Price, p.Description, p.CategoryID, p.IsActive, p.IsFeatured,
			p.Stock, p.Tags, pgxmock.AnyArg(), p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_IncrementViewCount(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("SET view_count = view_count + 1 WHERE id = $1")).
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.IncrementViewCount(context.Background(), "prod-1"))

	mock.ExpectExec("SET view_count").WithArgs("prod-1").WillReturnError(errors.New("deadlock"))
	assert.ErrorIs(t, repo.IncrementViewCount(context.Background(), "prod-1"), apperrors.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_OwnerOf(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT v.user_id").WithArgs("prod-1").
		WillReturnRows(mock.NewRows([]string{"user_id"}).AddRow("user-7"))

	owner, err := repo.OwnerOf(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "user-7", owner)
}
