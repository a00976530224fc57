package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/mercadolocal/pkg/kafka"
)

// Invalidator retires cached catalog reads.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Consumer bumps the local listing cache when a peer instance changes the
// catalog.
type Consumer struct {
	cache  Invalidator
	source string
	logger *slog.Logger
}

// NewConsumer creates a consumer that ignores events published by source.
func NewConsumer(cache Invalidator, source string, logger *slog.Logger) *Consumer {
	return &Consumer{cache: cache, source: source, logger: logger}
}

// Handle processes one catalog event. A failed invalidation is returned so
// the message is retried.
func (c *Consumer) Handle(ctx context.Context, evt *kafka.Event) error {
	if evt.Source == c.source {
		return nil
	}

	switch evt.EventType {
	case ProductCreated, ProductUpdated, ProductDeleted, ProductImagesChanged,
		VendorUpdated, VendorProActivated, CategoryChanged, AnnouncementChanged:
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	if err := c.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate after %s: %w", evt.EventType, err)
	}
	c.logger.DebugContext(ctx, "listing cache invalidated",
		slog.String("event_type", evt.EventType),
		slog.String("source", evt.Source),
	)
	return nil
}
