package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/mercadolocal/internal/domain"
)

// MinSuggestRunes is the shortest input that triggers a lookup.
const MinSuggestRunes = 2

// Per-kind suggestion limits.
const (
	productSuggestionLimit  = 5
	categorySuggestionLimit = 3
	vendorSuggestionLimit   = 3
)

// Suggest returns autocomplete entries for a partial query: products, then
// categories, then vendors. A failing lookup is logged and contributes
// nothing; Suggest itself never fails.
func (e *Engine) Suggest(ctx context.Context, text string) []domain.Suggestion {
	return e.LookupSuggestions(ctx, text).Items
}

// LookupSuggestions is Suggest that also reports whether any lookup failed.
func (e *Engine) LookupSuggestions(ctx context.Context, text string) domain.SuggestResult {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinSuggestRunes {
		return domain.SuggestResult{Items: []domain.Suggestion{}}
	}

	lookups := []struct {
		kind  string
		limit int
		fn    func(context.Context, string, int) ([]domain.Suggestion, error)
	}{
		{domain.SuggestionProduct, productSuggestionLimit, e.store.SuggestProducts},
		{domain.SuggestionCategory, categorySuggestionLimit, e.store.SuggestCategories},
		{domain.SuggestionVendor, vendorSuggestionLimit, e.store.SuggestVendors},
	}

	// Each goroutine writes only its own slot, and none returns an error, so
	// one failing lookup never cancels the others.
	results := make([][]domain.Suggestion, len(lookups))
	failed := make([]bool, len(lookups))
	var g errgroup.Group
	for i, l := range lookups {
		g.Go(func() error {
			hits, err := l.fn(ctx, text, l.limit)
			if err != nil {
				suggestFailures.WithLabelValues(l.kind).Inc()
				e.logger.WarnContext(ctx, "suggestion lookup failed",
					slog.String("kind", l.kind),
					slog.String("error", err.Error()),
				)
				failed[i] = true
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	res := domain.SuggestResult{Items: assemble(results...)}
	for _, f := range failed {
		res.Partial = res.Partial || f
	}
	return res
}

// assemble concatenates the lookups in order and drops repeats of the same
// kind and text, keeping the first.
func assemble(groups ...[]domain.Suggestion) []domain.Suggestion {
	type key struct{ kind, text string }
	seen := make(map[key]struct{})
	out := []domain.Suggestion{}
	for _, group := range groups {
		for _, s := range group {
			k := key{s.Kind, s.Text}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
