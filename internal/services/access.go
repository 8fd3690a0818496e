package services

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
)

// DefaultSignedURLTTL bounds how long an issued access grant stays valid
// when the caller does not ask for a specific lifetime.
const DefaultSignedURLTTL = time.Hour

// AccessService issues short-lived, read-scoped URLs for stored assets and
// thumbnails. The two namespaces sign independently; neither grant implies
// the other. A request for a missing object yields "" (no error) so viewers
// can render a "no preview" state.
type AccessService interface {
	SignedAssetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	SignedThumbnailURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type accessService struct {
	log   *logger.Logger
	store gcp.ObjectStore
	// rdb is optional; nil disables URL caching.
	rdb *goredis.Client
}

func NewAccessService(baseLog *logger.Logger, store gcp.ObjectStore, rdb *goredis.Client) AccessService {
	return &accessService{
		log:   baseLog.With("service", "AccessService"),
		store: store,
		rdb:   rdb,
	}
}

func (as *accessService) SignedAssetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return as.signed(ctx, gcp.BucketCategoryImage, key, ttl)
}

func (as *accessService) SignedThumbnailURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return as.signed(ctx, gcp.BucketCategoryThumbnail, key, ttl)
}

func (as *accessService) signed(ctx context.Context, category gcp.BucketCategory, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", nil
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	cacheKey := fmt.Sprintf("signedurl:%s:%s:%d", category, key, int64(ttl.Seconds()))
	if as.rdb != nil {
		if cached, err := as.rdb.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	u, err := as.store.SignedURL(ctx, category, key, ttl)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "", nil
	}

	if as.rdb != nil {
		// Cache for half the grant lifetime so a cached URL always has at
		// least ttl/2 of validity left when served.
		if err := as.rdb.Set(ctx, cacheKey, u, ttl/2).Err(); err != nil {
			as.log.Warn("signed URL cache write failed", "error", err)
		}
	}
	return u, nil
}
