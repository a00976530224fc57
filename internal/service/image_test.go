package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/storage"
	"github.com/utafrali/mercadolocal/internal/storage/memory"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	webpBytes = []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
)

func newImageService(f *fixture, files storage.Storage) *ImageService {
	return NewImageService(f.products, files, f.guard, f.notify, newTestLogger())
}

func storeFile(t *testing.T, files *memory.Storage, key string) string {
	t.Helper()
	res, err := files.Upload(context.Background(), &storage.UploadInput{Key: key, Data: bytes.NewReader(pngBytes)})
	require.NoError(t, err)
	return res.URL
}

func TestUploadImages_PrimaryReplacesMain(t *testing.T) {
	f := newFixture(t)
	files := memory.New("http://localhost")
	svc := newImageService(f, files)
	ctx := context.Background()

	oldMain := storeFile(t, files, "products/p/old.png")
	f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
	f.products.On("GetByID", ctx, productID).Return(&domain.Product{
		ID: productID, MainImageURL: oldMain, GalleryImageURLs: []string{"http://cdn/g1.png"},
	}, nil)

	var gotMain string
	var gotGallery []string
	f.products.On("UpdateImages", ctx, productID, mock.AnythingOfType("string"), mock.AnythingOfType("[]string")).
		Run(func(args mock.Arguments) {
			gotMain, gotGallery = args.String(2), args.Get(3).([]string)
		}).Return(nil)

	product, err := svc.UploadImages(ctx, vendorActor, productID, []ImageFile{
		{Name: "a.jpg", Data: jpegBytes},
		{Name: "b.webp", Data: webpBytes},
	}, intPtr(1))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotMain, "http://localhost/media/products/"+productID+"/"))
	assert.True(t, strings.HasSuffix(gotMain, ".webp"))
	require.Len(t, gotGallery, 2)
	assert.Equal(t, "http://cdn/g1.png", gotGallery[0])
	assert.True(t, strings.HasSuffix(gotGallery[1], ".jpg"))
	assert.Equal(t, gotMain, product.MainImageURL)

	_, _, ok := files.Get("products/p/old.png")
	assert.False(t, ok, "replaced main image is deleted")
	assert.Equal(t, 2, files.Len())

	data, ct, ok := files.Get(strings.TrimPrefix(gotMain, "http://localhost/media/"))
	require.True(t, ok)
	assert.Equal(t, "image/webp", ct)
	assert.Equal(t, webpBytes, data)
	assert.Equal(t, []string{event.ProductImagesChanged}, f.published.types())
}

func TestUploadImages_FirstBecomesMainWhenMissing(t *testing.T) {
	f := newFixture(t)
	files := memory.New("http://localhost")
	svc := newImageService(f, files)
	ctx := context.Background()

	f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
	f.products.On("GetByID", ctx, productID).Return(&domain.Product{ID: productID}, nil)
	f.products.On("UpdateImages", ctx, productID,
		mock.MatchedBy(func(main string) bool { return strings.HasSuffix(main, ".png") }),
		mock.MatchedBy(func(g []string) bool { return len(g) == 1 && strings.HasSuffix(g[0], ".jpg") }),
	).Return(nil)

	_, err := svc.UploadImages(ctx, vendorActor, productID, []ImageFile{
		{Name: "a.png", Data: pngBytes},
		{Name: "b.jpg", Data: jpegBytes},
	}, nil)
	require.NoError(t, err)
}

func TestUploadImages_Validation(t *testing.T) {
	tooMany := make([]ImageFile, MaxImagesPerUpload+1)
	for i := range tooMany {
		tooMany[i] = ImageFile{Name: "x.png", Data: pngBytes}
	}
	oversized := append(bytes.Clone(pngBytes), make([]byte, MaxImageBytes)...)

	tests := []struct {
		name    string
		files   []ImageFile
		primary *int
	}{
		{"no files", nil, nil},
		{"too many files", tooMany, nil},
		{"oversized", []ImageFile{{Name: "big.png", Data: oversized}}, nil},
		{"empty file", []ImageFile{{Name: "empty.png"}}, nil},
		{"not an image", []ImageFile{{Name: "notes.png", Data: []byte("hola mundo")}}, nil},
		{"gif rejected", []ImageFile{{Name: "a.gif", Data: []byte("GIF89a......")}}, nil},
		{"primary out of range", []ImageFile{{Name: "a.png", Data: pngBytes}}, intPtr(1)},
		{"negative primary", []ImageFile{{Name: "a.png", Data: pngBytes}}, intPtr(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			files := memory.New("http://localhost")
			svc := newImageService(f, files)
			ctx := context.Background()
			f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)

			_, err := svc.UploadImages(ctx, vendorActor, productID, tt.files, tt.primary)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 0, files.Len())
			f.products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		})
	}
}

func TestUploadImages_StoreFailureRemovesUploads(t *testing.T) {
	f := newFixture(t)
	files := memory.New("http://localhost")
	svc := newImageService(f, files)
	ctx := context.Background()

	f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
	f.products.On("GetByID", ctx, productID).Return(&domain.Product{ID: productID}, nil)
	f.products.On("UpdateImages", ctx, productID, mock.Anything, mock.Anything).
		Return(apperrors.Store("update images", errors.New("conn reset")))

	_, err := svc.UploadImages(ctx, vendorActor, productID, []ImageFile{
		{Name: "a.png", Data: pngBytes},
		{Name: "b.png", Data: pngBytes},
	}, nil)
	assert.ErrorIs(t, err, apperrors.ErrStore)
	assert.Equal(t, 0, files.Len())
	assert.Equal(t, 0, f.cache.count())
}

func TestReorderGallery(t *testing.T) {
	gallery := []string{"u1", "u2", "u3"}

	tests := []struct {
		name  string
		order []string
		ok    bool
	}{
		{"permutation", []string{"u3", "u1", "u2"}, true},
		{"same order", []string{"u1", "u2", "u3"}, true},
		{"missing one", []string{"u1", "u2"}, false},
		{"duplicate", []string{"u1", "u1", "u2"}, false},
		{"foreign url", []string{"u1", "u2", "u9"}, false},
		{"extra", []string{"u1", "u2", "u3", "u4"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := newImageService(f, memory.New("http://localhost"))
			ctx := context.Background()

			f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
			f.products.On("GetByID", ctx, productID).Return(&domain.Product{
				ID: productID, MainImageURL: "main", GalleryImageURLs: gallery,
			}, nil)
			if tt.ok {
				f.products.On("UpdateImages", ctx, productID, "main", tt.order).Return(nil)
			}

			product, err := svc.ReorderGallery(ctx, vendorActor, productID, tt.order)
			if !tt.ok {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.order, product.GalleryImageURLs)
		})
	}
}

func TestSetMainImage_SwapsWithGallery(t *testing.T) {
	f := newFixture(t)
	svc := newImageService(f, memory.New("http://localhost"))
	ctx := context.Background()

	f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
	f.products.On("GetByID", ctx, productID).Return(&domain.Product{
		ID: productID, MainImageURL: "main", GalleryImageURLs: []string{"g1", "g2", "g3"},
	}, nil)
	f.products.On("UpdateImages", ctx, productID, "g2", []string{"main", "g1", "g3"}).Return(nil)

	product, err := svc.SetMainImage(ctx, vendorActor, productID, "g2")
	require.NoError(t, err)
	assert.Equal(t, "g2", product.MainImageURL)

	_, err = svc.SetMainImage(ctx, vendorActor, productID, "nowhere")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemoveImage(t *testing.T) {
	f := newFixture(t)
	files := memory.New("http://localhost")
	svc := newImageService(f, files)
	ctx := context.Background()

	g1 := storeFile(t, files, "products/p/g1.png")
	f.products.On("OwnerOf", ctx, productID).Return(vendorUserID, nil)
	f.products.On("GetByID", ctx, productID).Return(&domain.Product{
		ID: productID, MainImageURL: "main", GalleryImageURLs: []string{g1, "g2"},
	}, nil)
	f.products.On("UpdateImages", ctx, productID, "main", []string{"g2"}).Return(nil)

	product, err := svc.RemoveImage(ctx, vendorActor, productID, g1)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, product.GalleryImageURLs)
	assert.Equal(t, 0, files.Len())

	_, err = svc.RemoveImage(ctx, vendorActor, productID, "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
