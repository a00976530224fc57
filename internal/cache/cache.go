// Package cache keeps search listings and suggestions in Redis. Entries are
// keyed by the normalized filter set under a catalog generation; any catalog
// write bumps the generation, which retires every entry at once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/mercadolocal/internal/domain"
)

const (
	generationKey = "catalog:gen"
	searchPrefix  = "catalog:search:"
	suggestPrefix = "catalog:suggest:"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mercadolocal_listing_cache_lookups_total",
	Help: "Listing cache lookups by kind and result.",
}, []string{"kind", "result"})

// Searcher is the uncached read path.
type Searcher interface {
	Search(ctx context.Context, spec domain.SearchQuerySpec) (*domain.SearchResult, error)
	LookupSuggestions(ctx context.Context, text string) domain.SuggestResult
}

// Listing wraps a Searcher with a Redis read-through cache. Redis failures
// degrade to the uncached path.
type Listing struct {
	client *redis.Client
	next   Searcher
	ttl    time.Duration
	logger *slog.Logger
}

// NewListing creates a listing cache in front of next.
func NewListing(client *redis.Client, next Searcher, ttl time.Duration, logger *slog.Logger) *Listing {
	return &Listing{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger,
	}
}

// Search serves spec from the cache, or from the wrapped searcher on a miss.
// Errors are never cached.
func (l *Listing) Search(ctx context.Context, spec domain.SearchQuerySpec) (*domain.SearchResult, error) {
	spec = spec.Normalized()
	key, ok := l.key(ctx, searchPrefix, specDigest(spec))
	if ok {
		var cached domain.SearchResult
		if l.load(ctx, "search", key, &cached) {
			return &cached, nil
		}
	}

	res, err := l.next.Search(ctx, spec)
	if err != nil {
		return nil, err
	}
	if ok {
		l.store(ctx, key, res)
	}
	return res, nil
}

// Suggest serves autocomplete entries from the cache when present. A result
// missing a failed lookup is served but not stored.
func (l *Listing) Suggest(ctx context.Context, text string) []domain.Suggestion {
	norm := strings.ToLower(strings.TrimSpace(text))
	key, ok := l.key(ctx, suggestPrefix, norm)
	if ok {
		var cached []domain.Suggestion
		if l.load(ctx, "suggest", key, &cached) {
			return cached
		}
	}

	res := l.next.LookupSuggestions(ctx, text)
	if ok && !res.Partial && len(res.Items) > 0 {
		l.store(ctx, key, res.Items)
	}
	return res.Items
}

// Invalidate retires every cached entry by moving to a new generation.
func (l *Listing) Invalidate(ctx context.Context) error {
	if err := l.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}

func (l *Listing) generation(ctx context.Context) (int64, error) {
	gen, err := l.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// key returns the cache key for suffix under the current generation. ok is
// false when Redis cannot be read, in which case the cache is bypassed.
func (l *Listing) key(ctx context.Context, prefix, suffix string) (string, bool) {
	gen, err := l.generation(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "listing cache unavailable", slog.String("error", err.Error()))
		return "", false
	}
	return prefix + strconv.FormatInt(gen, 10) + ":" + suffix, true
}

func (l *Listing) load(ctx context.Context, kind, key string, dst any) bool {
	data, err := l.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.WarnContext(ctx, "listing cache read failed", slog.String("error", err.Error()))
		}
		lookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		lookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
	lookups.WithLabelValues(kind, "hit").Inc()
	return true
}

func (l *Listing) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := l.client.Set(ctx, key, data, l.ttl).Err(); err != nil {
		l.logger.WarnContext(ctx, "listing cache write failed", slog.String("error", err.Error()))
	}
}

func specDigest(spec domain.SearchQuerySpec) string {
	b, _ := json.Marshal(spec)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// Nop is the invalidation hook used when no cache is configured.
type Nop struct{}

// Invalidate does nothing.
func (Nop) Invalidate(context.Context) error { return nil }
