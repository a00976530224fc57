package http

import (
	"time"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/service"
)

// --- Store ---

// OpenStoreRequest is the JSON request body for opening a store.
type OpenStoreRequest struct {
	StoreName   string   `json:"store_name" validate:"required,min=2,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	City        string   `json:"city" validate:"max=120"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	WhatsApp    string   `json:"whatsapp" validate:"omitempty,whatsapp"`
}

func (req *OpenStoreRequest) toInput() *service.OpenStoreInput {
	return &service.OpenStoreInput{
		StoreName:   req.StoreName,
		Description: req.Description,
		City:        req.City,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		WhatsApp:    req.WhatsApp,
	}
}

// UpdateStoreRequest is the JSON request body for editing a storefront.
type UpdateStoreRequest struct {
	StoreName   *string  `json:"store_name" validate:"omitempty,min=2,max=120"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	City        *string  `json:"city" validate:"omitempty,max=120"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	WhatsApp    *string  `json:"whatsapp" validate:"omitempty,whatsapp"`
}

func (req *UpdateStoreRequest) toInput() *domain.VendorProfileInput {
	return &domain.VendorProfileInput{
		StoreName:   req.StoreName,
		Description: req.Description,
		City:        req.City,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		WhatsApp:    req.WhatsApp,
	}
}

// --- Products ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name          string                `json:"name" validate:"required,min=1,max=200"`
	Description   string                `json:"description" validate:"max=5000"`
	Price         *float64              `json:"price" validate:"omitempty,gte=0"`
	CategoryID    *string               `json:"category_id" validate:"omitempty,uuid"`
	Stock         *int                  `json:"stock" validate:"omitempty,gte=0"`
	Tags          []string              `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	Variations    domain.Variations     `json:"variations"`
	VariationRows []domain.VariationRow `json:"variation_rows" validate:"omitempty,max=200"`
	IsActive      *bool                 `json:"is_active"`
	VendorID      string                `json:"vendor_id" validate:"omitempty,uuid"`
}

func (req *CreateProductRequest) toInput() *service.CreateProductInput {
	return &service.CreateProductInput{
		ProductInput: domain.ProductInput{
			Name:          &req.Name,
			Description:   &req.Description,
			Price:         req.Price,
			CategoryID:    req.CategoryID,
			Stock:         req.Stock,
			Tags:          req.Tags,
			Variations:    req.Variations,
			VariationRows: req.VariationRows,
			IsActive:      req.IsActive,
		},
		VendorID: req.VendorID,
	}
}

// UpdateProductRequest is the JSON request body for updating a product.
// clear_price switches the product to price on request.
type UpdateProductRequest struct {
	Name          *string               `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string               `json:"description" validate:"omitempty,max=5000"`
	Price         *float64              `json:"price" validate:"omitempty,gte=0"`
	ClearPrice    bool                  `json:"clear_price"`
	CategoryID    *string               `json:"category_id" validate:"omitempty,uuid"`
	Stock         *int                  `json:"stock" validate:"omitempty,gte=0"`
	Tags          []string              `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	Variations    domain.Variations     `json:"variations"`
	VariationRows []domain.VariationRow `json:"variation_rows" validate:"omitempty,max=200"`
	IsActive      *bool                 `json:"is_active"`
}

func (req *UpdateProductRequest) toInput() *domain.ProductInput {
	return &domain.ProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		ClearPrice:    req.ClearPrice,
		CategoryID:    req.CategoryID,
		Stock:         req.Stock,
		Tags:          req.Tags,
		Variations:    req.Variations,
		VariationRows: req.VariationRows,
		IsActive:      req.IsActive,
	}
}

// productForm is a product as the dashboard edit form loads it, with the
// variations also given as flat rows.
type productForm struct {
	*domain.Product
	VariationRows []domain.VariationRow `json:"variation_rows"`
}

func newProductForm(p *domain.Product) productForm {
	rows := p.Variations.Flatten()
	if rows == nil {
		rows = []domain.VariationRow{}
	}
	return productForm{Product: p, VariationRows: rows}
}

// ModerateProductRequest is the JSON request body for admin product flags.
type ModerateProductRequest struct {
	IsActive   *bool `json:"is_active"`
	IsFeatured *bool `json:"is_featured"`
}

// ImageURLRequest names one stored image of a product.
type ImageURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ReorderGalleryRequest lists the gallery URLs in their new order.
type ReorderGalleryRequest struct {
	Order []string `json:"order" validate:"required,dive,url"`
}

// --- Categories and announcements ---

// CategoryRequest is the JSON request body for creating or updating a
// category. An empty slug regenerates it from the name.
type CategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=80"`
	Slug        *string `json:"slug" validate:"omitempty,slug"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (req *CategoryRequest) toInput() *service.CategoryInput {
	return &service.CategoryInput{Name: req.Name, Slug: req.Slug, Description: req.Description}
}

// AnnouncementRequest is the JSON request body for creating or updating an
// announcement.
type AnnouncementRequest struct {
	Title    *string    `json:"title" validate:"omitempty,min=1,max=160"`
	Body     *string    `json:"body" validate:"omitempty,max=2000"`
	IsActive *bool      `json:"is_active"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

func (req *AnnouncementRequest) toInput() *domain.AnnouncementInput {
	return &domain.AnnouncementInput{
		Title:    req.Title,
		Body:     req.Body,
		IsActive: req.IsActive,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
}

// --- Vendors and users ---

// ModerateVendorRequest is the JSON request body for admin vendor changes.
type ModerateVendorRequest struct {
	Status       *string    `json:"status" validate:"omitempty,oneof=active suspended pending"`
	IsPro        *bool      `json:"is_pro"`
	ProExpiresAt *time.Time `json:"pro_expires_at"`
}

func (req *ModerateVendorRequest) toInput() *domain.VendorModeration {
	return &domain.VendorModeration{Status: req.Status, IsPro: req.IsPro, ProExpiresAt: req.ProExpiresAt}
}

// ChangeRoleRequest is the JSON request body for changing a user's role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=buyer vendor admin"`
}

// BanRequest is the JSON request body for banning or unbanning a user.
type BanRequest struct {
	Banned *bool `json:"banned" validate:"required"`
}

// CreateUserRequest is the JSON request body for creating a user account.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer vendor admin"`
}

func (req *CreateUserRequest) toInput() *service.CreateUserInput {
	return &service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	}
}
