package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

var paymentWebhooks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mercadolocal_payment_webhooks_total",
		Help: "Payment notifications by outcome.",
	},
	[]string{"outcome"},
)

func observeWebhook(outcome string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrBadSignature):
		outcome = "bad_signature"
	case errors.Is(err, apperrors.ErrInvalidInput):
		outcome = "malformed"
	case err != nil:
		outcome = "failed"
	}
	paymentWebhooks.WithLabelValues(outcome).Inc()
}
