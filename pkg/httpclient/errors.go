package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// upstreamErrorBody covers the error shapes returned by the payment provider
// and the object storage API.
type upstreamErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// maps it onto the application error taxonomy.
//
// Credential failures (401, 403) are reported as an unavailable upstream: they
// mean this service is misconfigured, not that the caller lacks access.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apperrors.Unavailable(service, fmt.Errorf("status %d, reading body: %w", resp.StatusCode, err))
	}

	message := strings.TrimSpace(string(raw))
	var body upstreamErrorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			message = body.Message
		case body.Error != "":
			message = body.Error
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapStatus(resp.StatusCode, message, service)
}

func mapStatus(status int, message, service string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(service+" resource", message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return apperrors.InvalidInput(fmt.Sprintf("%s rejected the request: %s", service, message))
	default:
		return apperrors.Unavailable(service, fmt.Errorf("status %d: %s", status, message))
	}
}

// AsUpstreamError maps a Doer error onto the taxonomy. Context cancellation is
// returned unchanged.
func AsUpstreamError(err error, service string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return mapStatus(upstream.Status, upstream.Body, service)
	}
	return apperrors.Unavailable(service, err)
}

// DoJSON sends req through d and decodes a 2xx JSON body into out, which may
// be nil. Every failure is mapped onto the taxonomy.
func DoJSON(ctx context.Context, d Doer, req *http.Request, out any, service string) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := d.Do(ctx, req)
	if err != nil {
		return AsUpstreamError(err, service)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, service)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Unavailable(service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
