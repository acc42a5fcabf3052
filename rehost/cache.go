package rehost

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// Store 是转存结果的键值存储，internal/cache.Manager 满足该接口.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedUploader 对同一源地址只转存一次.
// 存储读写失败只记录日志，不影响转存本身.
type CachedUploader struct {
	next   Uploader
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUploader 包装 next；ttl 为 0 时使用存储的默认过期时间.
func NewCachedUploader(next Uploader, store Store, ttl time.Duration, logger *zap.Logger) *CachedUploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedUploader{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "rehost_cache")),
	}
}

func (c *CachedUploader) UploadFromURL(ctx context.Context, sourceURL string) UploadResult {
	key := cacheKey(sourceURL)

	if hosted, err := c.store.Get(ctx, key); err == nil && hosted != "" {
		c.logger.Debug("rehost cache hit", zap.String("key", key))
		return UploadResult{Success: true, URL: hosted}
	}

	res := c.next.UploadFromURL(ctx, sourceURL)
	if !res.Success {
		return res
	}
	if err := c.store.Set(ctx, key, res.URL, c.ttl); err != nil {
		c.logger.Warn("rehost cache write failed", zap.Error(err))
	}
	return res
}

func cacheKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "rehost:" + hex.EncodeToString(sum[:])
}
