// Package event publishes catalog change events and consumes them on peer
// instances to retire cached listings.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/mercadolocal/pkg/kafka"
	"github.com/utafrali/mercadolocal/pkg/logger"
)

// TopicCatalogChanged carries every catalog mutation.
var TopicCatalogChanged = kafka.Topic("catalog", "changed")

// Event types.
const (
	ProductCreated       = "product.created"
	ProductUpdated       = "product.updated"
	ProductDeleted       = "product.deleted"
	ProductImagesChanged = "product.images_changed"
	VendorUpdated        = "vendor.updated"
	VendorProActivated   = "vendor.pro_activated"
	CategoryChanged      = "category.changed"
	AnnouncementChanged  = "announcement.changed"
)

// Change describes one catalog mutation.
type Change struct {
	Type       string
	EntityType string
	EntityID   string
	Data       any
}

// ProductData is the payload of product events.
type ProductData struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	VendorID string `json:"vendor_id"`
	IsActive bool   `json:"is_active"`
}

// VendorData is the payload of vendor events.
type VendorData struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Status       string `json:"status"`
	IsPro        bool   `json:"is_pro"`
	ProExpiresAt string `json:"pro_expires_at,omitempty"`
	PaymentID    string `json:"payment_id,omitempty"`
}

// Publisher is implemented by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes catalog changes. source identifies this instance so
// its own events can be skipped when consumed back.
type Producer struct {
	pub    Publisher
	source string
	logger *slog.Logger
}

// NewProducer creates a catalog event producer.
func NewProducer(pub Publisher, source string, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, source: source, logger: logger}
}

// Publish sends c on the catalog topic, tagged with the request's
// correlation id.
func (p *Producer) Publish(ctx context.Context, c Change) error {
	evt, err := kafka.NewEvent(c.Type, c.EntityType, c.EntityID, p.source, c.Data)
	if err != nil {
		return fmt.Errorf("build %s event: %w", c.Type, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if err := p.pub.Publish(ctx, TopicCatalogChanged, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", c.Type, err)
	}

	p.logger.DebugContext(ctx, "catalog event published",
		slog.String("event_type", c.Type),
		slog.String("entity_id", c.EntityID),
	)
	return nil
}

// Nop drops every change. It is used when no broker is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Change) error { return nil }
