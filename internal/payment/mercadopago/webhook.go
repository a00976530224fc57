package mercadopago

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// TopicPayment is the notification type carrying payment updates.
const TopicPayment = "payment"

// MaxSignatureAge is how far a signature timestamp may be from the receiver's
// clock, in either direction.
const MaxSignatureAge = 5 * time.Minute

// Notification is the webhook body. Only the type and data id are trusted;
// payment state is always fetched from the API.
type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID ResourceID `json:"id"`
	} `json:"data"`
}

// ResourceID accepts the data id as a JSON string or number.
type ResourceID string

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResourceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ResourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("data.id: %w", err)
	}
	*r = ResourceID(n.String())
	return nil
}

// ParseNotification decodes a webhook body.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, apperrors.InvalidInput("malformed notification body")
	}
	return &n, nil
}

// IsPayment reports whether the notification concerns a payment.
func (n *Notification) IsPayment() bool {
	return n.Type == TopicPayment || strings.HasPrefix(n.Action, TopicPayment+".")
}

// VerifySignature checks the x-signature header ("ts=<ts>,v1=<hex>") against
// an HMAC-SHA256 over "id:<dataID>;request-id:<requestID>;ts:<ts>;" keyed by
// secret. Alphanumeric ids are signed in lower case. The timestamp, in unix
// seconds or milliseconds, must be within MaxSignatureAge of now.
func VerifySignature(secret, header, requestID, dataID string, now time.Time) error {
	ts, v1, err := parseSignatureHeader(header)
	if err != nil {
		return apperrors.BadSignature()
	}

	got, err := hex.DecodeString(v1)
	if err != nil || !hmac.Equal(signature(secret, requestID, dataID, ts), got) {
		return apperrors.BadSignature()
	}

	signedAt, err := parseSignatureTime(ts)
	if err != nil {
		return apperrors.BadSignature()
	}
	if age := now.Sub(signedAt); age > MaxSignatureAge || age < -MaxSignatureAge {
		return apperrors.BadSignature()
	}
	return nil
}

// parseSignatureTime reads a unix timestamp. Values of 1e12 and above are
// milliseconds.
func parseSignatureTime(ts string) (time.Time, error) {
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("signature ts %q: not a unix timestamp", ts)
	}
	if n >= 1e12 {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}

// Sign returns the x-signature header value for the given parts.
func Sign(secret, requestID, dataID, ts string) string {
	return "ts=" + ts + ",v1=" + hex.EncodeToString(signature(secret, requestID, dataID, ts))
}

func signature(secret, requestID, dataID, ts string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("id:" + strings.ToLower(dataID) + ";request-id:" + requestID + ";ts:" + ts + ";"))
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (ts, v1 string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return "", "", errors.New("incomplete signature header")
	}
	return ts, v1, nil
}
