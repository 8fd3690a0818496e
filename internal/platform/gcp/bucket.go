package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/radview/radview-backend/internal/platform/logger"
)

// BucketCategory selects one of the three object-storage namespaces. Images
// and thumbnails live in separate buckets so access policies can differ;
// staging holds direct browser uploads not yet linked to metadata.
type BucketCategory string

const (
	BucketCategoryImage     BucketCategory = "image"
	BucketCategoryThumbnail BucketCategory = "thumbnail"
	BucketCategoryStaging   BucketCategory = "staging"
)

type bucketConfig struct {
	name string
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

type ObjectStore interface {
	Upload(ctx context.Context, category BucketCategory, key string, file io.Reader, contentType string) error
	Download(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, category BucketCategory, key string) error
	Exists(ctx context.Context, category BucketCategory, key string) (bool, error)
	GetObjectAttrs(ctx context.Context, category BucketCategory, key string) (*ObjectAttrs, error)
	ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error
	SignedURL(ctx context.Context, category BucketCategory, key string, ttl time.Duration) (string, error)
}

type bucketService struct {
	log             *logger.Logger
	storageClient   *storage.Client
	emulatorHost    string
	imageBucket     bucketConfig
	thumbnailBucket bucketConfig
	stagingBucket   bucketConfig
}

func NewBucketService(log *logger.Logger) (ObjectStore, error) {
	serviceLog := log.With("service", "BucketService")

	imageBucketName := os.Getenv("IMAGE_GCS_BUCKET_NAME")
	thumbBucketName := os.Getenv("THUMBNAIL_GCS_BUCKET_NAME")
	stagingBucketName := os.Getenv("STAGING_GCS_BUCKET_NAME")
	if imageBucketName == "" {
		return nil, fmt.Errorf("missing env var IMAGE_GCS_BUCKET_NAME")
	}
	if thumbBucketName == "" {
		return nil, fmt.Errorf("missing env var THUMBNAIL_GCS_BUCKET_NAME")
	}
	if stagingBucketName == "" {
		return nil, fmt.Errorf("missing env var STAGING_GCS_BUCKET_NAME")
	}

	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")

	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if emulatorHost != "" {
		stClient, err = storage.NewClient(ctx, option.WithoutAuthentication())
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"emulator_host", emulatorHost,
		"image_bucket", imageBucketName,
		"thumbnail_bucket", thumbBucketName,
		"staging_bucket", stagingBucketName,
	)

	return &bucketService{
		log:             serviceLog,
		storageClient:   stClient,
		emulatorHost:    emulatorHost,
		imageBucket:     bucketConfig{name: imageBucketName},
		thumbnailBucket: bucketConfig{name: thumbBucketName},
		stagingBucket:   bucketConfig{name: stagingBucketName},
	}, nil
}

func (bs *bucketService) getBucketConfig(category BucketCategory) (bucketConfig, error) {
	switch category {
	case BucketCategoryImage:
		return bs.imageBucket, nil
	case BucketCategoryThumbnail:
		return bs.thumbnailBucket, nil
	case BucketCategoryStaging:
		return bs.stagingBucket, nil
	default:
		return bucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
}

func (bs *bucketService) Upload(ctx context.Context, category BucketCategory, key string, file io.Reader, contentType string) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(cfg.name).Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".dcm"), strings.HasSuffix(s, ".dicom"):
		return "application/dicom"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}

// Cancel must outlive the returned reader; attaching it to Close avoids
// killing the context before the caller has read any bytes.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) Download(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := bs.storageClient.Bucket(cfg.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) Delete(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(cfg.name).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.name, err)
	}
	return nil
}

func (bs *bucketService) Exists(ctx context.Context, category BucketCategory, key string) (bool, error) {
	attrs, err := bs.GetObjectAttrs(ctx, category, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return attrs != nil, nil
}

func (bs *bucketService) GetObjectAttrs(ctx context.Context, category BucketCategory, key string) (*ObjectAttrs, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attrs, err := bs.storageClient.Bucket(cfg.name).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, storage.ErrObjectNotExist
		}
		return nil, fmt.Errorf("failed to fetch GCS object attrs: %w", err)
	}
	return &ObjectAttrs{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (bs *bucketService) ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := bs.storageClient.Bucket(cfg.name).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (bs *bucketService) DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error {
	keys, err := bs.ListKeys(ctx, category, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = bs.Delete(ctx, category, k)
	}
	return nil
}

// SignedURL issues a V4 read-scoped URL for key, valid for ttl. Each bucket
// category signs independently; a URL minted for a thumbnail key grants
// nothing in the image bucket. Returns "" without error when the object does
// not exist so callers can render a "no preview" state.
func (bs *bucketService) SignedURL(ctx context.Context, category BucketCategory, key string, ttl time.Duration) (string, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return "", err
	}
	exists, err := bs.Exists(ctx, category, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", nil
	}

	if bs.emulatorHost != "" {
		// The emulator cannot verify signatures; a plain media URL stands in.
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			bs.emulatorHost, url.PathEscape(cfg.name), url.PathEscape(key)), nil
	}

	u, err := bs.storageClient.Bucket(cfg.name).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %q in bucket %q: %w", key, cfg.name, err)
	}
	return u, nil
}
