package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/payment/mercadopago"
	"github.com/utafrali/mercadolocal/internal/repository"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// PaymentProvider is implemented by *mercadopago.Client.
type PaymentProvider interface {
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
	CreatePreference(ctx context.Context, in mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// PlanConfig describes the PRO plan and where the provider sends the buyer
// and its notifications.
type PlanConfig struct {
	Price           float64
	Currency        string
	Duration        time.Duration
	AppBaseURL      string
	NotificationURL string
	WebhookSecret   string
}

// Checkout is a started PRO checkout.
type Checkout struct {
	PreferenceID string `json:"preference_id"`
	InitPoint    string `json:"init_point"`
}

// Webhook outcomes, as reported by HandleNotification.
const (
	WebhookIgnored   = "ignored"
	WebhookPending   = "not_approved"
	WebhookActivated = "activated"
	WebhookDuplicate = "duplicate"
	WebhookOrphaned  = "orphaned"
)

// SubscriptionService sells the PRO plan and applies payment notifications.
type SubscriptionService struct {
	vendors  repository.VendorRepository
	provider PaymentProvider
	guard    Authorizer
	notify   *Notifier
	plan     PlanConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	vendors repository.VendorRepository,
	provider PaymentProvider,
	guard Authorizer,
	notify *Notifier,
	plan PlanConfig,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		vendors:  vendors,
		provider: provider,
		guard:    guard,
		notify:   notify,
		plan:     plan,
		logger:   logger,
		now:      time.Now,
	}
}

// StartCheckout creates a checkout preference for the actor's store. The
// store id travels as the external reference and comes back on the payment.
func (s *SubscriptionService) StartCheckout(ctx context.Context, actor authz.Actor) (*Checkout, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectSubscription, "", authz.ActionCreate); err != nil {
		return nil, err
	}

	vendor, err := s.vendors.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("open a store before subscribing")
		}
		return nil, fmt.Errorf("get own store: %w", err)
	}

	base := strings.TrimRight(s.plan.AppBaseURL, "/") + "/dashboard/suscripcion"
	pref, err := s.provider.CreatePreference(ctx, mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{{
			ID:         "pro-plan",
			Title:      "MercadoLocal PRO",
			Quantity:   1,
			UnitPrice:  s.plan.Price,
			CurrencyID: s.plan.Currency,
		}},
		ExternalReference: vendor.ID,
		BackURLs: mercadopago.BackURLs{
			Success: base + "?estado=aprobado",
			Failure: base + "?estado=rechazado",
			Pending: base + "?estado=pendiente",
		},
		AutoReturn:      "approved",
		NotificationURL: s.plan.NotificationURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout preference: %w", err)
	}

	s.logger.InfoContext(ctx, "pro checkout started",
		slog.String("vendor_id", vendor.ID),
		slog.String("preference_id", pref.ID),
	)
	return &Checkout{PreferenceID: pref.ID, InitPoint: pref.InitPoint}, nil
}

// Notification is a raw webhook delivery. DataID is the data.id query
// parameter; when present it is the id the provider signed.
type Notification struct {
	Body      []byte
	Signature string
	RequestID string
	DataID    string
}

// HandleNotification applies a payment notification and returns its outcome.
// Payment state is always read from the provider. Errors mean the delivery
// should be retried; replays of an applied payment are no-ops.
func (s *SubscriptionService) HandleNotification(ctx context.Context, n Notification) (outcome string, err error) {
	defer func() { observeWebhook(outcome, err) }()

	note, err := mercadopago.ParseNotification(n.Body)
	if err != nil {
		return "", err
	}
	paymentID := string(note.Data.ID)
	if n.DataID != "" {
		if paymentID != "" && !strings.EqualFold(paymentID, n.DataID) {
			return "", apperrors.BadSignature()
		}
		paymentID = n.DataID
	}
	if s.plan.WebhookSecret != "" {
		if err := mercadopago.VerifySignature(s.plan.WebhookSecret, n.Signature, n.RequestID, paymentID, s.now()); err != nil {
			return "", err
		}
	}
	if !note.IsPayment() || paymentID == "" {
		return WebhookIgnored, nil
	}

	payment, err := s.provider.GetPayment(ctx, paymentID)
	if err != nil {
		return "", fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if !payment.Approved() {
		s.logger.InfoContext(ctx, "payment not approved",
			slog.String("payment_id", paymentID),
			slog.String("status", payment.Status),
		)
		return WebhookPending, nil
	}

	vendorID := strings.TrimSpace(payment.ExternalReference)
	if !isUUIDRef(vendorID) {
		s.logger.WarnContext(ctx, "approved payment has no vendor reference",
			slog.String("payment_id", paymentID),
			slog.String("external_reference", vendorID),
		)
		return WebhookOrphaned, nil
	}

	expiresAt := s.now().UTC().Add(s.plan.Duration)
	activated, err := s.vendors.ActivatePro(ctx, vendorID, paymentID, expiresAt)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "approved payment references unknown vendor",
				slog.String("payment_id", paymentID),
				slog.String("vendor_id", vendorID),
			)
			return WebhookOrphaned, nil
		}
		return "", fmt.Errorf("activate pro for %s: %w", vendorID, err)
	}
	if !activated {
		return WebhookDuplicate, nil
	}

	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to reload vendor after pro activation",
			slog.String("vendor_id", vendorID),
			slog.String("error", err.Error()),
		)
		vendor = &domain.Vendor{ID: vendorID, IsPro: true, ProExpiresAt: &expiresAt}
	}
	s.notify.Changed(ctx, vendorChange(vendor, paymentID))
	s.logger.InfoContext(ctx, "pro plan activated",
		slog.String("vendor_id", vendorID),
		slog.String("payment_id", paymentID),
	)
	return WebhookActivated, nil
}

func isUUIDRef(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
