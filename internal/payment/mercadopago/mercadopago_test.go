package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, MaxConnsPerHost: 4})
	return NewClient(hc, srv.URL, "TEST-token")
}

func TestGetPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/12345", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":12345,"status":"approved","external_reference":"vendor-1","transaction_amount":4999,"currency_id":"ARS"}`))
	})

	p, err := c.GetPayment(context.Background(), "12345")
	require.NoError(t, err)
	assert.True(t, p.Approved())
	assert.Equal(t, "vendor-1", p.ExternalReference)
	assert.Equal(t, int64(12345), p.ID)
}

func TestGetPayment_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found","error":"not_found"}`))
	})

	_, err := c.GetPayment(context.Background(), "999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetPayment_Unavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetPayment(context.Background(), "1")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestCreatePreference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))

		var in PreferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "vendor-1", in.ExternalReference)
		require.Len(t, in.Items, 1)
		assert.Equal(t, 4999.0, in.Items[0].UnitPrice)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example/checkout/pref-1"}`))
	})

	pref, err := c.CreatePreference(context.Background(), PreferenceRequest{
		Items:             []PreferenceItem{{ID: "pro-monthly", Title: "Plan PRO", Quantity: 1, UnitPrice: 4999, CurrencyID: "ARS"}},
		ExternalReference: "vendor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mp.example/checkout/pref-1", pref.InitPoint)
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"type":"payment","action":"payment.updated","data":{"id":"123"}}`))
	require.NoError(t, err)
	assert.True(t, n.IsPayment())
	assert.Equal(t, ResourceID("123"), n.Data.ID)

	n, err = ParseNotification([]byte(`{"action":"payment.created","data":{"id":456}}`))
	require.NoError(t, err)
	assert.True(t, n.IsPayment())
	assert.Equal(t, ResourceID("456"), n.Data.ID)

	n, err = ParseNotification([]byte(`{"type":"merchant_order","data":{"id":"9"}}`))
	require.NoError(t, err)
	assert.False(t, n.IsPayment())

	_, err = ParseNotification([]byte(`{not json`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestVerifySignature(t *testing.T) {
	signedAt := time.Unix(1704908010, 0)
	now := signedAt.Add(time.Minute)
	header := Sign("s3cret", "req-1", "ABC123", "1704908010")

	assert.NoError(t, VerifySignature("s3cret", header, "req-1", "ABC123", now))
	assert.NoError(t, VerifySignature("s3cret", header, "req-1", "abc123", now))

	for name, tc := range map[string][4]string{
		"wrong secret":   {"other", header, "req-1", "ABC123"},
		"wrong request":  {"s3cret", header, "req-2", "ABC123"},
		"wrong id":       {"s3cret", header, "req-1", "XYZ"},
		"no v1":          {"s3cret", "ts=1704908010", "req-1", "ABC123"},
		"garbage":        {"s3cret", "nonsense", "req-1", "ABC123"},
		"bad hex":        {"s3cret", "ts=1,v1=zz", "req-1", "ABC123"},
		"non-numeric ts": {"s3cret", Sign("s3cret", "req-1", "ABC123", "yesterday"), "req-1", "ABC123"},
	} {
		t.Run(name, func(t *testing.T) {
			err := VerifySignature(tc[0], tc[1], tc[2], tc[3], now)
			assert.ErrorIs(t, err, apperrors.ErrBadSignature)
		})
	}
}

func TestVerifySignature_TimestampWindow(t *testing.T) {
	signedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	seconds := Sign("s3cret", "req-1", "987", "1773489600")
	millis := Sign("s3cret", "req-1", "987", "1773489600250")

	tests := []struct {
		name   string
		header string
		now    time.Time
		ok     bool
	}{
		{"seconds, fresh", seconds, signedAt.Add(30 * time.Second), true},
		{"milliseconds, fresh", millis, signedAt.Add(MaxSignatureAge - time.Second), true},
		{"slightly ahead of our clock", seconds, signedAt.Add(-time.Minute), true},
		{"replayed later", seconds, signedAt.Add(MaxSignatureAge + time.Second), false},
		{"milliseconds, replayed later", millis, signedAt.Add(time.Hour), false},
		{"far in the future", seconds, signedAt.Add(-MaxSignatureAge - time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature("s3cret", tt.header, "req-1", "987", tt.now)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrBadSignature)
			}
		})
	}
}
