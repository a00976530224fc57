package domain

import (
	"math"
	"strings"
)

// Sort keys accepted by the product search.
const (
	SortRelevance     = "relevance"
	SortNameAsc       = "name_asc"
	SortNameDesc      = "name_desc"
	SortPriceAsc      = "price_asc"
	SortPriceDesc     = "price_desc"
	SortCreatedAtAsc  = "created_at_asc"
	SortCreatedAtDesc = "created_at_desc"
	SortViewCountAsc  = "view_count_asc"
	SortViewCountDesc = "view_count_desc"
)

// Sortable product fields.
const (
	SortFieldName      = "name"
	SortFieldPrice     = "price"
	SortFieldCreatedAt = "created_at"
	SortFieldViewCount = "view_count"
)

// SortOrder is a resolved sort key.
type SortOrder struct {
	Field string
	Desc  bool
}

// DefaultSort is used for absent or unknown sort keys.
var DefaultSort = SortOrder{Field: SortFieldCreatedAt, Desc: true}

// ResolveSort maps a sort key to a field and direction. "relevance" ranks by
// view count; anything unrecognized falls back to newest first.
func ResolveSort(key string) SortOrder {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == SortRelevance {
		return SortOrder{Field: SortFieldViewCount, Desc: true}
	}

	i := strings.LastIndexByte(key, '_')
	if i <= 0 {
		return DefaultSort
	}
	field, dir := key[:i], key[i+1:]

	switch field {
	case SortFieldName, SortFieldPrice, SortFieldCreatedAt, SortFieldViewCount:
	default:
		return DefaultSort
	}
	switch dir {
	case "asc":
		return SortOrder{Field: field}
	case "desc":
		return SortOrder{Field: field, Desc: true}
	}
	return DefaultSort
}

// SearchQuerySpec describes one product search.
type SearchQuerySpec struct {
	Query          string   `json:"query,omitempty"`
	Page           int      `json:"page"`
	PageSize       int      `json:"page_size"`
	City           string   `json:"city,omitempty"`
	Category       string   `json:"category,omitempty"`
	SortBy         string   `json:"sort,omitempty"`
	OnlyProVendors bool     `json:"only_pro_vendors,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	RadiusKm       *float64 `json:"radius,omitempty"`
}

// GeoActive reports whether the radius filter applies: latitude, longitude
// and radius must all be present and finite, the center must be a real
// coordinate, and the radius positive.
func (s SearchQuerySpec) GeoActive() bool {
	if s.Latitude == nil || s.Longitude == nil || s.RadiusKm == nil {
		return false
	}
	if !isFinite(*s.Latitude) || !isFinite(*s.Longitude) || !isFinite(*s.RadiusKm) {
		return false
	}
	if *s.Latitude < -90 || *s.Latitude > 90 || *s.Longitude < -180 || *s.Longitude > 180 {
		return false
	}
	return *s.RadiusKm > 0
}

// Normalized returns a copy with text fields trimmed and the sort key
// resolved, so equivalent searches compare equal. Geo fields are dropped when
// the radius filter is inactive, and city is dropped when it is active.
func (s SearchQuerySpec) Normalized() SearchQuerySpec {
	n := s
	n.Query = strings.TrimSpace(s.Query)
	n.City = strings.TrimSpace(s.City)
	n.Category = strings.TrimSpace(s.Category)

	order := ResolveSort(s.SortBy)
	dir := "asc"
	if order.Desc {
		dir = "desc"
	}
	n.SortBy = order.Field + "_" + dir

	if s.GeoActive() {
		n.City = ""
		lat, lon, r := round6(*s.Latitude), round6(*s.Longitude), round6(*s.RadiusKm)
		n.Latitude, n.Longitude, n.RadiusKm = &lat, &lon, &r
	} else {
		n.Latitude, n.Longitude, n.RadiusKm = nil, nil, nil
	}
	return n
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

// CatalogQuery is the predicate set handed to the catalog store once the
// geo filter has been resolved to vendor ids.
type CatalogQuery struct {
	Text           string
	City           string
	Category       string
	OnlyProVendors bool
	// VendorIDs restricts results to these vendors when non-nil. It is never
	// empty: an empty geo match short-circuits before the store is queried.
	VendorIDs []string
	Sort      SortOrder
	Limit     int
	Offset    int
}

// SearchResult is one page of product cards plus the total match count.
type SearchResult struct {
	Data       []ProductCard `json:"data"`
	TotalCount int           `json:"total_count"`
}

// EmptySearchResult returns a result with a non-nil empty page.
func EmptySearchResult() *SearchResult {
	return &SearchResult{Data: []ProductCard{}, TotalCount: 0}
}

// Suggestion kinds.
const (
	SuggestionProduct  = "product"
	SuggestionCategory = "category"
	SuggestionVendor   = "vendor"
)

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	Slug string `json:"slug,omitempty"`
	ID   string `json:"id,omitempty"`
}

// SuggestResult is an assembled suggestion list. Partial is set when at least
// one lookup failed, so the list may be missing a whole kind.
type SuggestResult struct {
	Items   []Suggestion
	Partial bool
}
