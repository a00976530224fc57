package domain

import (
	"math"
	"net/url"
	"strings"
	"time"
)

// Vendor status constants.
const (
	VendorStatusActive    = "active"
	VendorStatusSuspended = "suspended"
	VendorStatusPending   = "pending"
)

// Vendor is a store run by one user.
type Vendor struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	StoreName    string     `json:"store_name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	City         string     `json:"city"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	WhatsApp     string     `json:"whatsapp,omitempty"`
	IsPro        bool       `json:"is_pro"`
	ProExpiresAt *time.Time `json:"pro_expires_at,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasCoordinates reports whether the vendor can take part in radius searches.
func (v *Vendor) HasCoordinates() bool {
	if v.Latitude == nil || v.Longitude == nil {
		return false
	}
	return isFinite(*v.Latitude) && isFinite(*v.Longitude)
}

// ProActive reports whether the PRO tier is in force at now.
func (v *Vendor) ProActive(now time.Time) bool {
	if !v.IsPro {
		return false
	}
	return v.ProExpiresAt == nil || now.Before(*v.ProExpiresAt)
}

// WhatsAppLink builds a wa.me deep-link prefilled with message. It returns ""
// when the vendor has no usable number.
func (v *Vendor) WhatsAppLink(message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v.WhatsApp)
	if len(digits) < 8 {
		return ""
	}

	link := "https://wa.me/" + digits
	if message = strings.TrimSpace(message); message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return link
}

// VendorCoordinates is the minimal vendor projection used by the geo filter.
type VendorCoordinates struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// VendorProfileInput holds the storefront fields a vendor may edit.
type VendorProfileInput struct {
	StoreName   *string
	Description *string
	City        *string
	Latitude    *float64
	Longitude   *float64
	WhatsApp    *string
}

// VendorModeration holds the admin-only vendor fields.
type VendorModeration struct {
	Status       *string
	IsPro        *bool
	ProExpiresAt *time.Time
}

// VendorFilter selects vendors for the admin listing.
type VendorFilter struct {
	Status  *string
	Query   string
	Page    int
	PerPage int
}

// Storefront is a vendor page: the vendor, its active products and a contact link.
type Storefront struct {
	Vendor       *Vendor       `json:"vendor"`
	Products     []ProductCard `json:"products"`
	WhatsAppLink string        `json:"whatsapp_link,omitempty"`
}

// IsValidVendorStatus checks whether status is a known vendor status.
func IsValidVendorStatus(status string) bool {
	switch status {
	case VendorStatusActive, VendorStatusSuspended, VendorStatusPending:
		return true
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
