package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/repository"
	"github.com/utafrali/mercadolocal/internal/storage"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// Upload limits.
const (
	MaxImagesPerUpload = 8
	MaxImageBytes      = 5 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ImageFile is one uploaded file.
type ImageFile struct {
	Name string
	Data []byte
}

// ImageService stores product images and maintains the main image and gallery.
type ImageService struct {
	products repository.ProductRepository
	files    storage.Storage
	guard    Authorizer
	notify   *Notifier
	logger   *slog.Logger
}

// NewImageService creates a new image service.
func NewImageService(
	products repository.ProductRepository,
	files storage.Storage,
	guard Authorizer,
	notify *Notifier,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		products: products,
		files:    files,
		guard:    guard,
		notify:   notify,
		logger:   logger,
	}
}

// UploadImages stores files for a product. primaryIndex selects the file
// that becomes the main image, replacing the current one; the rest are
// appended to the gallery. Without a primary index the first file becomes
// the main image only when the product has none.
func (s *ImageService) UploadImages(ctx context.Context, actor authz.Actor, productID string, files []ImageFile, primaryIndex *int) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, productID, authz.ActionUpdate); err != nil {
		return nil, err
	}

	contentTypes, err := checkImages(files, primaryIndex)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product for upload: %w", err)
	}

	uploaded := make([]string, 0, len(files))
	for i, f := range files {
		ct := contentTypes[i]
		res, err := s.files.Upload(ctx, &storage.UploadInput{
			Key:         fmt.Sprintf("products/%s/%s.%s", productID, uuid.New().String(), imageExtensions[ct]),
			ContentType: ct,
			Size:        int64(len(f.Data)),
			Data:        bytes.NewReader(f.Data),
		})
		if err != nil {
			removeFiles(ctx, s.files, s.logger, uploaded...)
			return nil, fmt.Errorf("upload %q: %w", f.Name, err)
		}
		uploaded = append(uploaded, res.URL)
	}

	primary := -1
	switch {
	case primaryIndex != nil:
		primary = *primaryIndex
	case product.MainImageURL == "":
		primary = 0
	}

	var replaced string
	main := product.MainImageURL
	gallery := slices.Clone(product.GalleryImageURLs)
	for i, u := range uploaded {
		if i == primary {
			replaced, main = main, u
			continue
		}
		gallery = append(gallery, u)
	}

	if err := s.products.UpdateImages(ctx, productID, main, gallery); err != nil {
		removeFiles(ctx, s.files, s.logger, uploaded...)
		return nil, fmt.Errorf("update product images: %w", err)
	}
	if replaced != "" {
		removeFiles(ctx, s.files, s.logger, replaced)
	}

	product.MainImageURL, product.GalleryImageURLs = main, gallery
	s.notify.Changed(ctx, productChange(event.ProductImagesChanged, product))
	s.logger.InfoContext(ctx, "product images uploaded",
		slog.String("product_id", productID),
		slog.Int("count", len(uploaded)),
		slog.Bool("main_replaced", primary >= 0),
	)
	return product, nil
}

// RemoveImage detaches url from the product and deletes the stored file.
func (s *ImageService) RemoveImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, productID, authz.ActionUpdate); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product for image removal: %w", err)
	}

	main, gallery := product.MainImageURL, product.GalleryImageURLs
	switch i := slices.Index(gallery, url); {
	case url != "" && url == main:
		main = ""
	case i >= 0:
		gallery = slices.Delete(slices.Clone(gallery), i, i+1)
	default:
		return nil, apperrors.NotFound("image", url)
	}

	if err := s.products.UpdateImages(ctx, productID, main, gallery); err != nil {
		return nil, fmt.Errorf("update product images: %w", err)
	}
	removeFiles(ctx, s.files, s.logger, url)

	product.MainImageURL, product.GalleryImageURLs = main, gallery
	s.notify.Changed(ctx, productChange(event.ProductImagesChanged, product))
	return product, nil
}

// SetMainImage promotes a gallery image to main image. The previous main
// image takes its place at the front of the gallery.
func (s *ImageService) SetMainImage(ctx context.Context, actor authz.Actor, productID, url string) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, productID, authz.ActionUpdate); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product for main image: %w", err)
	}
	i := slices.Index(product.GalleryImageURLs, url)
	if i < 0 {
		return nil, apperrors.InvalidField("url", "is not in the gallery")
	}

	gallery := slices.Delete(slices.Clone(product.GalleryImageURLs), i, i+1)
	if product.MainImageURL != "" {
		gallery = slices.Insert(gallery, 0, product.MainImageURL)
	}
	if err := s.products.UpdateImages(ctx, productID, url, gallery); err != nil {
		return nil, fmt.Errorf("update product images: %w", err)
	}

	product.MainImageURL, product.GalleryImageURLs = url, gallery
	s.notify.Changed(ctx, productChange(event.ProductImagesChanged, product))
	return product, nil
}

// ReorderGallery stores a new gallery order. order must be a permutation of
// the current gallery.
func (s *ImageService) ReorderGallery(ctx context.Context, actor authz.Actor, productID string, order []string) (*domain.Product, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectProduct, productID, authz.ActionUpdate); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product for reorder: %w", err)
	}
	if !isPermutation(product.GalleryImageURLs, order) {
		return nil, apperrors.InvalidField("order", "must list every gallery image exactly once")
	}

	if err := s.products.UpdateImages(ctx, productID, product.MainImageURL, order); err != nil {
		return nil, fmt.Errorf("update product images: %w", err)
	}

	product.GalleryImageURLs = order
	s.notify.Changed(ctx, productChange(event.ProductImagesChanged, product))
	return product, nil
}

// checkImages validates the batch and returns each file's sniffed type.
func checkImages(files []ImageFile, primaryIndex *int) ([]string, error) {
	if len(files) == 0 {
		return nil, apperrors.InvalidField("images", "at least one image is required")
	}
	if len(files) > MaxImagesPerUpload {
		return nil, apperrors.InvalidField("images", fmt.Sprintf("at most %d images per upload", MaxImagesPerUpload))
	}
	if primaryIndex != nil && (*primaryIndex < 0 || *primaryIndex >= len(files)) {
		return nil, apperrors.InvalidField("primary_index", "must point at one of the uploaded images")
	}

	types := make([]string, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, apperrors.InvalidField("images", fmt.Sprintf("%q is empty", f.Name))
		}
		if len(f.Data) > MaxImageBytes {
			return nil, apperrors.InvalidField("images", fmt.Sprintf("%q exceeds %d MiB", f.Name, MaxImageBytes>>20))
		}
		ct := http.DetectContentType(f.Data)
		if _, ok := imageExtensions[ct]; !ok {
			return nil, apperrors.InvalidField("images", fmt.Sprintf("%q is %s, expected JPEG, PNG or WebP", f.Name, ct))
		}
		types[i] = ct
	}
	return types, nil
}

func isPermutation(current, order []string) bool {
	if len(current) != len(order) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, u := range current {
		counts[u]++
	}
	for _, u := range order {
		if counts[u] == 0 {
			return false
		}
		counts[u]--
	}
	return true
}
