package domain

import (
	"time"
)

// Product is a vendor listing.
type Product struct {
	ID               string     `json:"id"`
	Slug             string     `json:"slug"`
	Name             string     `json:"name"`
	Price            *float64   `json:"price"`
	Description      string     `json:"description"`
	MainImageURL     string     `json:"main_image_url,omitempty"`
	GalleryImageURLs []string   `json:"gallery_image_urls"`
	CategoryID       *string    `json:"category_id,omitempty"`
	VendorID         string     `json:"vendor_id"`
	IsActive         bool       `json:"is_active"`
	IsFeatured       bool       `json:"is_featured"`
	Stock            *int       `json:"stock,omitempty"`
	ViewCount        int64      `json:"view_count"`
	Tags             []string   `json:"tags"`
	Variations       Variations `json:"variations,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PriceOnRequest reports whether buyers have to ask the vendor for a price.
func (p *Product) PriceOnRequest() bool {
	return p.Price == nil
}

// ProductDetail is a product with its vendor and category resolved.
type ProductDetail struct {
	Product
	Vendor       *Vendor   `json:"vendor"`
	Category     *Category `json:"category,omitempty"`
	WhatsAppLink string    `json:"whatsapp_link,omitempty"`
}

// VendorRef is the vendor projection embedded in product cards.
type VendorRef struct {
	StoreName string `json:"store_name"`
	Slug      string `json:"slug"`
	IsPro     bool   `json:"is_pro"`
	City      string `json:"city,omitempty"`
}

// CategoryRef is the category projection embedded in product cards.
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductCard is the list projection of a product.
type ProductCard struct {
	ID           string       `json:"id"`
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Price        *float64     `json:"price"`
	MainImageURL string       `json:"main_image_url,omitempty"`
	IsFeatured   bool         `json:"is_featured"`
	IsActive     bool         `json:"is_active"`
	ViewCount    int64        `json:"view_count"`
	CreatedAt    time.Time    `json:"created_at"`
	Vendor       *VendorRef   `json:"vendor"`
	Category     *CategoryRef `json:"category"`
}

// ProductInput holds the fields a vendor or admin may set on a product.
// Nil pointers leave the stored value untouched on update.
type ProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	ClearPrice  bool
	CategoryID  *string
	Stock       *int
	Tags        []string
	Variations  Variations
	// VariationRows is the dashboard form shape of Variations; an empty
	// non-nil slice clears them.
	VariationRows []VariationRow
	IsActive      *bool
}

// ProductModeration holds the admin-only product flags.
type ProductModeration struct {
	IsActive   *bool
	IsFeatured *bool
}

// ProductFilter selects products for dashboard and admin listings. Unlike the
// public search it includes inactive products.
type ProductFilter struct {
	VendorID *string
	IsActive *bool
	Query    string
	Page     int
	PerPage  int
}
