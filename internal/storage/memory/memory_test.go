package memory

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/storage"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

func TestStorage_UploadGetDelete(t *testing.T) {
	s := New("http://localhost:8080/")
	ctx := context.Background()

	res, err := s.Upload(ctx, &storage.UploadInput{
		Key:         "products/p1/a.png",
		ContentType: "image/png",
		Size:        3,
		Data:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
	assert.Equal(t, "products/p1/a.png", res.Key)
	assert.Equal(t, "http://localhost:8080/media/products/p1/a.png", res.URL)

	data, ct, ok := s.Get(res.Key)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", ct)

	key, ok := s.KeyFromURL(res.URL)
	require.True(t, ok)
	assert.Equal(t, res.Key, key)

	require.NoError(t, s.Delete(ctx, key))
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Delete(ctx, key), apperrors.ErrNotFound)
}

func TestStorage_KeyFromForeignURL(t *testing.T) {
	s := New("http://localhost:8080")

	_, ok := s.KeyFromURL("https://cdn.example.com/media/x.png")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("http://localhost:8080/media/")
	assert.False(t, ok)
}

func TestStorage_ServeHTTP(t *testing.T) {
	s := New("http://localhost:8080")
	_, err := s.Upload(context.Background(), &storage.UploadInput{
		Key:         "products/p1/a.webp",
		ContentType: "image/webp",
		Size:        4,
		Data:        bytes.NewReader([]byte("webp")),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/products/p1/a.webp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "webp", rec.Body.String())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/products/p1/missing.webp", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
