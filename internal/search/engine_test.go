package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/geo"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

type fakeVendor struct {
	id, name, slug, city string
	lat, lon             *float64
	pro                  bool
}

type fakeProduct struct {
	card        domain.ProductCard
	vendorID    string
	description string
}

// fakeStore evaluates catalog queries over an in-memory snapshot.
type fakeStore struct {
	mu          sync.Mutex
	vendors     []fakeVendor
	products    []fakeProduct
	searchCalls int
	suggestErr  map[string]error
	suggestions map[string][]domain.Suggestion
	calls       []string
}

func (s *fakeStore) vendor(id string) fakeVendor {
	for _, v := range s.vendors {
		if v.id == id {
			return v
		}
	}
	return fakeVendor{}
}

func (s *fakeStore) VendorCoordinates(_ context.Context, box geo.BoundingBox) ([]domain.VendorCoordinates, error) {
	var out []domain.VendorCoordinates
	for _, v := range s.vendors {
		if v.lat == nil || v.lon == nil {
			continue
		}
		if box.Contains(geo.Point{Lat: *v.lat, Lon: *v.lon}) {
			out = append(out, domain.VendorCoordinates{ID: v.id, Latitude: *v.lat, Longitude: *v.lon})
		}
	}
	return out, nil
}

func (s *fakeStore) SearchProducts(_ context.Context, q domain.CatalogQuery) ([]domain.ProductCard, int, error) {
	s.mu.Lock()
	s.searchCalls++
	s.mu.Unlock()

	text := strings.ToLower(q.Text)
	var matched []domain.ProductCard
	for _, p := range s.products {
		v := s.vendor(p.vendorID)
		switch {
		case !p.card.IsActive:
			continue
		case q.OnlyProVendors && !v.pro:
			continue
		case text != "" && !strings.Contains(strings.ToLower(p.card.Name), text) &&
			!strings.Contains(strings.ToLower(p.description), text) &&
			!strings.Contains(strings.ToLower(v.name), text):
			continue
		case q.VendorIDs != nil && !contains(q.VendorIDs, p.vendorID):
			continue
		case q.VendorIDs == nil && q.City != "" && v.city != q.City:
			continue
		case q.Category != "" && (p.card.Category == nil || p.card.Category.Slug != q.Category):
			continue
		}
		matched = append(matched, p.card)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareField(a, b, q.Sort); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	total := len(matched)
	if q.Offset >= total {
		return []domain.ProductCard{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

// compareField orders by one sort column, nulls last in both directions.
func compareField(a, b domain.ProductCard, o domain.SortOrder) int {
	var c int
	switch o.Field {
	case domain.SortFieldName:
		c = strings.Compare(a.Name, b.Name)
	case domain.SortFieldPrice:
		switch {
		case a.Price == nil && b.Price == nil:
			return 0
		case a.Price == nil:
			return 1
		case b.Price == nil:
			return -1
		case *a.Price < *b.Price:
			c = -1
		case *a.Price > *b.Price:
			c = 1
		}
	case domain.SortFieldViewCount:
		c = int(a.ViewCount - b.ViewCount)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if o.Desc {
		c = -c
	}
	return c
}

func (s *fakeStore) suggest(kind string) ([]domain.Suggestion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, kind)
	s.mu.Unlock()
	if err := s.suggestErr[kind]; err != nil {
		return nil, err
	}
	return s.suggestions[kind], nil
}

func (s *fakeStore) SuggestProducts(context.Context, string, int) ([]domain.Suggestion, error) {
	return s.suggest(domain.SuggestionProduct)
}

func (s *fakeStore) SuggestCategories(context.Context, string, int) ([]domain.Suggestion, error) {
	return s.suggest(domain.SuggestionCategory)
}

func (s *fakeStore) SuggestVendors(context.Context, string, int) ([]domain.Suggestion, error) {
	return s.suggest(domain.SuggestionVendor)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func card(id, name string, price *float64, views int64, age int, active bool, category string) domain.ProductCard {
	return domain.ProductCard{
		ID:        id,
		Slug:      "slug-" + id,
		Name:      name,
		Price:     price,
		IsActive:  active,
		ViewCount: views,
		CreatedAt: base.Add(time.Duration(age) * time.Hour),
		Category:  &domain.CategoryRef{Name: category, Slug: strings.ToLower(category)},
	}
}

// scenarioStore holds a Buenos Aires vendor and a Córdoba vendor, one
// product each.
func scenarioStore() *fakeStore {
	return &fakeStore{
		vendors: []fakeVendor{
			{id: "v1", name: "Porteño", city: "Buenos Aires", lat: f64(-34.60), lon: f64(-58.38)},
			{id: "v2", name: "Serrano", city: "Córdoba", lat: f64(-31.42), lon: f64(-64.18), pro: true},
		},
		products: []fakeProduct{
			{card: card("p1", "Mate", f64(1000), 5, 1, true, "Mates"), vendorID: "v1"},
			{card: card("p2", "Alfajor", f64(300), 9, 2, true, "Dulces"), vendorID: "v2"},
		},
	}
}

func ids(cards []domain.ProductCard) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestSearch_GeoRadiusScenario(t *testing.T) {
	store := scenarioStore()
	eng := NewEngine(store, newTestLogger())

	res, err := eng.Search(context.Background(), domain.SearchQuerySpec{
		Latitude: f64(-34.60), Longitude: f64(-58.38), RadiusKm: f64(5), Page: 1, PageSize: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(res.Data))
	assert.Equal(t, 1, res.TotalCount)

	res, err = eng.Search(context.Background(), domain.SearchQuerySpec{
		Latitude: f64(-34.60), Longitude: f64(-58.38), RadiusKm: f64(1000), Page: 1, PageSize: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(res.Data), "newest first by default")
	assert.Equal(t, 2, res.TotalCount)
}

func TestSearch_GeoShortCircuitSkipsProductQuery(t *testing.T) {
	store := scenarioStore()
	eng := NewEngine(store, newTestLogger())

	res, err := eng.Search(context.Background(), domain.SearchQuerySpec{
		Latitude: f64(0), Longitude: f64(0), RadiusKm: f64(10), Page: 1, PageSize: 12,
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Zero(t, res.TotalCount)
	assert.Zero(t, store.searchCalls)
}

func TestSearch_GeoOverridesCity(t *testing.T) {
	store := scenarioStore()
	eng := NewEngine(store, newTestLogger())

	geoOnly, err := eng.Search(context.Background(), domain.SearchQuerySpec{
		Latitude: f64(-31.42), Longitude: f64(-64.18), RadiusKm: f64(20), Page: 1, PageSize: 12,
	})
	require.NoError(t, err)

	withCity, err := eng.Search(context.Background(), domain.SearchQuerySpec{
		City:     "Buenos Aires",
		Latitude: f64(-31.42), Longitude: f64(-64.18), RadiusKm: f64(20), Page: 1, PageSize: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p2"}, ids(geoOnly.Data))
	assert.Equal(t, geoOnly, withCity)
}

func TestSearch_InvalidGeoFallsBackToCity(t *testing.T) {
	store := scenarioStore()
	eng := NewEngine(store, newTestLogger())

	for name, spec := range map[string]domain.SearchQuerySpec{
		"zero radius":            {City: "Córdoba", Latitude: f64(-34.6), Longitude: f64(-58.38), RadiusKm: f64(0)},
		"missing lon":            {City: "Córdoba", Latitude: f64(-34.6), RadiusKm: f64(5)},
		"negative radius":        {City: "Córdoba", Latitude: f64(-34.6), Longitude: f64(-58.38), RadiusKm: f64(-1)},
		"latitude out of range":  {City: "Córdoba", Latitude: f64(-134.6), Longitude: f64(-58.38), RadiusKm: f64(5)},
		"longitude out of range": {City: "Córdoba", Latitude: f64(-34.6), Longitude: f64(301.6), RadiusKm: f64(5)},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := eng.Search(context.Background(), spec)
			require.NoError(t, err)
			assert.Equal(t, []string{"p2"}, ids(res.Data))
		})
	}
}

func TestSearch_TextMatchesNameDescriptionOrVendor(t *testing.T) {
	store := scenarioStore()
	store.products = append(store.products,
		fakeProduct{card: card("p3", "Bombilla", nil, 0, 3, true, "Mates"), vendorID: "v1", description: "Acero para MATE"},
	)
	eng := NewEngine(store, newTestLogger())

	res, err := eng.Search(context.Background(), domain.SearchQuerySpec{Query: "  mate ", SortBy: "name_asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, ids(res.Data))

	res, err = eng.Search(context.Background(), domain.SearchQuerySpec{Query: "serrano"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids(res.Data))
}

func TestSearch_OnlyProAndCategory(t *testing.T) {
	store := scenarioStore()
	eng := NewEngine(store, newTestLogger())

	res, err := eng.Search(context.Background(), domain.SearchQuerySpec{OnlyProVendors: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids(res.Data))

	res, err = eng.Search(context.Background(), domain.SearchQuerySpec{Category: "mates"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(res.Data))
}

func manyProducts() *fakeStore {
	store := scenarioStore()
	store.products = nil
	views := []int64{7, 3, 7, 1, 9, 3, 7, 0, 2, 5, 7, 4, 1}
	for i, v := range views {
		id := string(rune('a' + i))
		store.products = append(store.products, fakeProduct{
			card:     card(id, "Producto "+id, f64(float64(100*(i%4))), v, i%5, true, "Mates"),
			vendorID: "v1",
		})
	}
	store.products = append(store.products,
		fakeProduct{card: card("zz", "Oculto", nil, 100, 9, false, "Mates"), vendorID: "v1"})
	return store
}

func TestSearch_UnknownSortMatchesDefault(t *testing.T) {
	eng := NewEngine(manyProducts(), newTestLogger())

	want, err := eng.Search(context.Background(), domain.SearchQuerySpec{SortBy: "created_at_desc", PageSize: 50})
	require.NoError(t, err)
	for _, key := range []string{"", "rating_desc", "price", "price_sideways", "_desc"} {
		got, err := eng.Search(context.Background(), domain.SearchQuerySpec{SortBy: key, PageSize: 50})
		require.NoError(t, err)
		assert.Equal(t, ids(want.Data), ids(got.Data), key)
	}
}

func TestSearch_RelevanceIsDeterministic(t *testing.T) {
	eng := NewEngine(manyProducts(), newTestLogger())

	first, err := eng.Search(context.Background(), domain.SearchQuerySpec{SortBy: "relevance", PageSize: 50})
	require.NoError(t, err)
	for i := 1; i < len(first.Data); i++ {
		prev, cur := first.Data[i-1], first.Data[i]
		require.GreaterOrEqual(t, prev.ViewCount, cur.ViewCount)
		if prev.ViewCount == cur.ViewCount {
			assert.Less(t, prev.ID, cur.ID)
		}
	}

	again, err := eng.Search(context.Background(), domain.SearchQuerySpec{SortBy: "relevance", PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, ids(first.Data), ids(again.Data))
}

func TestSearch_PagesCoverEveryMatchOnce(t *testing.T) {
	eng := NewEngine(manyProducts(), newTestLogger())

	for _, sortKey := range []string{"relevance", "price_asc", "created_at_desc"} {
		seen := map[string]bool{}
		var total int
		for page := 1; ; page++ {
			res, err := eng.Search(context.Background(), domain.SearchQuerySpec{SortBy: sortKey, Page: page, PageSize: 4})
			require.NoError(t, err)
			total = res.TotalCount
			if len(res.Data) == 0 {
				break
			}
			for _, c := range res.Data {
				assert.False(t, seen[c.ID], "duplicate %s under %s", c.ID, sortKey)
				seen[c.ID] = true
				assert.True(t, c.IsActive)
			}
		}
		assert.Equal(t, 13, total)
		assert.Len(t, seen, total, sortKey)
	}
}

func TestSearch_StoreErrorIsReturned(t *testing.T) {
	eng := NewEngine(&errStore{}, newTestLogger())

	res, err := eng.Search(context.Background(), domain.SearchQuerySpec{Query: "mate"})
	assert.Error(t, err)
	assert.Nil(t, res)

	res, err = eng.Search(context.Background(), domain.SearchQuerySpec{
		Latitude: f64(-34.6), Longitude: f64(-58.38), RadiusKm: f64(5),
	})
	assert.Error(t, err)
	assert.Nil(t, res)
}

type errStore struct{ fakeStore }

func (*errStore) VendorCoordinates(context.Context, geo.BoundingBox) ([]domain.VendorCoordinates, error) {
	return nil, errors.New("connection refused")
}

func (*errStore) SearchProducts(context.Context, domain.CatalogQuery) ([]domain.ProductCard, int, error) {
	return nil, 0, errors.New("connection refused")
}
