package storage

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	// SignedURLLifetime is how long minted download URLs stay valid.
	SignedURLLifetime = time.Hour
	// cacheTTL stays well inside SignedURLLifetime so a cached URL is never
	// handed out after it expired.
	cacheTTL = 45 * time.Minute
)

// URLCache is satisfied by cache.Cache.
type URLCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Resolver maps storage handles to fetchable URLs.
type Resolver struct {
	backend Backend
	cache   URLCache
}

// NewResolver builds a Resolver. backend may be nil, in which case only
// values that are already URLs resolve; cache may be nil.
func NewResolver(backend Backend, cache URLCache) *Resolver {
	return &Resolver{backend: backend, cache: cache}
}

// URL resolves value. Empty values and handles that cannot be resolved
// yield nil, and values that already look like URLs are returned as-is
// without a network call.
func (r *Resolver) URL(ctx context.Context, value string) *string {
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "http") {
		return &value
	}
	if !ValidPath(value) {
		slog.Warn("refusing to resolve invalid storage handle", "storage_id", value)
		return nil
	}
	if r.backend == nil {
		slog.Warn("storage not configured, cannot resolve handle", "storage_id", value)
		return nil
	}

	key := "storage:url:" + value
	if r.cache != nil {
		var cached string
		if err := r.cache.Get(ctx, key, &cached); err == nil && cached != "" {
			return &cached
		}
	}

	url, err := r.backend.SignedURL(ctx, value, SignedURLLifetime)
	if err != nil {
		slog.Warn("resolve storage url", "storage_id", value, "error", err)
		return nil
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, url, cacheTTL); err != nil {
			slog.Debug("cache storage url", "error", err)
		}
	}
	return &url
}

// URLs resolves each value and drops the ones that fail. It returns nil,
// not an empty slice, when nothing resolves.
func (r *Resolver) URLs(ctx context.Context, values []string) []string {
	var out []string
	for _, v := range values {
		if u := r.URL(ctx, v); u != nil {
			out = append(out, *u)
		}
	}
	return out
}

// Forget drops a cached URL, e.g. after the file was deleted.
func (r *Resolver) Forget(ctx context.Context, value string) {
	if d, ok := r.cache.(interface {
		Delete(ctx context.Context, keys ...string) error
	}); ok {
		_ = d.Delete(ctx, "storage:url:"+value)
	}
}
