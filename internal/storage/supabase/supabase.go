// Package supabase stores images in a Supabase Storage bucket over its REST API.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/mercadolocal/internal/storage"
	"github.com/utafrali/mercadolocal/pkg/httpclient"
)

// ServiceName labels upstream errors and the circuit breaker.
const ServiceName = "object-storage"

// Storage implements storage.Storage against one public bucket.
type Storage struct {
	doer       httpclient.Doer
	baseURL    string
	bucket     string
	serviceKey string
}

// New creates a bucket client. serviceKey is the service-role key; it is
// sent as a bearer token and never exposed in returned URLs.
func New(doer httpclient.Doer, baseURL, bucket, serviceKey string) *Storage {
	return &Storage{
		doer:       doer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
	}
}

// Upload writes the object, replacing any previous object with the same key.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	// Buffered so the retrying client can rewind the body.
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", input.Key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(input.Key), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", input.ContentType)
	req.Header.Set("x-upsert", "true")

	if err := httpclient.DoJSON(ctx, s.doer, req, nil, ServiceName); err != nil {
		return nil, err
	}
	return &storage.UploadResult{Key: input.Key, URL: s.publicURL(input.Key)}, nil
}

// Delete removes the object stored under key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), http.NoBody)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	s.authorize(req)
	return httpclient.DoJSON(ctx, s.doer, req, nil, ServiceName)
}

// KeyFromURL returns the object key of a public URL in this bucket.
func (s *Storage) KeyFromURL(raw string) (string, bool) {
	escaped, ok := strings.CutPrefix(raw, s.publicPrefix())
	if !ok || escaped == "" {
		return "", false
	}
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *Storage) objectURL(key string) string {
	return s.baseURL + "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + escapeKey(key)
}

func (s *Storage) publicPrefix() string {
	return s.baseURL + "/storage/v1/object/public/" + url.PathEscape(s.bucket) + "/"
}

func (s *Storage) publicURL(key string) string {
	return s.publicPrefix() + escapeKey(key)
}

func (s *Storage) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

// escapeKey escapes each path segment and keeps the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
