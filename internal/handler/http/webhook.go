package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/utafrali/mercadolocal/internal/service"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httputil"
)

// maxWebhookBytes bounds a payment notification body.
const maxWebhookBytes = 64 << 10

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	subscriptions SubscriptionManager
	logger        *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(subscriptions SubscriptionManager, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{subscriptions: subscriptions, logger: logger}
}

type webhookResponse struct {
	Outcome string `json:"outcome"`
}

// MercadoPago handles POST /api/mercadopago/webhook. Malformed and unsigned
// deliveries are rejected with 4xx. Downstream failures answer 5xx so the
// provider retries; replays of an applied payment answer 200.
func (h *WebhookHandler) MercadoPago(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.InvalidInput("notification body too large"), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("unreadable notification body"), h.logger)
		return
	}

	outcome, err := h.subscriptions.HandleNotification(r.Context(), service.Notification{
		Body:      body,
		Signature: r.Header.Get("x-signature"),
		RequestID: r.Header.Get("x-request-id"),
		DataID:    r.URL.Query().Get("data.id"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, webhookResponse{Outcome: outcome})
}
