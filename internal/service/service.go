// Package service holds the marketplace write paths. Every mutation runs
// authorize, validate, write, then notifies peers and retires cached listings.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/storage"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/pagination"
	"github.com/utafrali/mercadolocal/pkg/slug"
)

// maxSlugAttempts bounds the numeric suffixes tried for a taken slug.
const maxSlugAttempts = 50

// Authorizer is implemented by *authz.Guard.
type Authorizer interface {
	Authorize(ctx context.Context, actor authz.Actor, kind, id, action string) error
}

// Publisher is implemented by *event.Producer and event.Nop.
type Publisher interface {
	Publish(ctx context.Context, c event.Change) error
}

// Invalidator is implemented by *cache.Listing and cache.Nop.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces committed catalog changes. Failures are logged and
// never undo the write.
type Notifier struct {
	publisher   Publisher
	invalidator Invalidator
	logger      *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(publisher Publisher, invalidator Invalidator, logger *slog.Logger) *Notifier {
	return &Notifier{publisher: publisher, invalidator: invalidator, logger: logger}
}

// Changed invalidates the local listing cache and publishes c.
func (n *Notifier) Changed(ctx context.Context, c event.Change) {
	if err := n.invalidator.Invalidate(ctx); err != nil {
		n.logger.WarnContext(ctx, "failed to invalidate listing cache",
			slog.String("event_type", c.Type),
			slog.String("error", err.Error()),
		)
	}
	if err := n.publisher.Publish(ctx, c); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish catalog event",
			slog.String("event_type", c.Type),
			slog.String("entity_id", c.EntityID),
			slog.String("error", err.Error()),
		)
	}
}

// uniqueSlug returns the first free slug derived from name.
func uniqueSlug(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := slug.Generate(name)
	if base == "" {
		return "", apperrors.InvalidField("name", "must contain letters or digits")
	}
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slug.WithSuffix(base, n)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperrors.AlreadyExists("slug", "value", base)
}

// removeFiles deletes stored files by URL. URLs the storage did not serve
// and delete failures are skipped; the caller's write already succeeded.
func removeFiles(ctx context.Context, files storage.Storage, logger *slog.Logger, urls ...string) {
	for _, u := range urls {
		key, ok := files.KeyFromURL(u)
		if !ok {
			continue
		}
		if err := files.Delete(ctx, key); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "failed to delete stored image",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func normalizePage(page, perPage int) (int, int) {
	p := pagination.New(page, perPage)
	return p.Page, p.PerPage
}
