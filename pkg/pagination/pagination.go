package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPerPage fills a four-column card grid three rows deep.
	DefaultPerPage = 12
	// MaxPerPage bounds a single listing request.
	MaxPerPage = 60
)

// Params holds 1-based pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return New(1, DefaultPerPage)
}

// New clamps page and perPage into range and derives the offset.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromRequest reads the page and per_page query parameters. Missing or
// non-numeric values take the defaults; out-of-range values are clamped.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil {
		perPage = DefaultPerPage
	}
	return New(page, perPage)
}
