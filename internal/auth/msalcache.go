package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
)

const msalCacheKey = "msal-cache"

// TokenCache implements the MSAL cache interface on top of a Store
type TokenCache struct {
	store Store
	mu    sync.Mutex
}

// NewTokenCache creates a new token cache
func NewTokenCache(store Store) *TokenCache {
	return &TokenCache{store: store}
}

// Replace implements cache.ExportReplace
func (t *TokenCache) Replace(ctx context.Context, c cache.Unmarshaler, hints cache.ReplaceHints) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := t.store.Get(msalCacheKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No cache is OK
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	return c.Unmarshal(data)
}

// Export implements cache.ExportReplace
func (t *TokenCache) Export(ctx context.Context, c cache.Marshaler, hints cache.ExportHints) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	return t.store.Set(msalCacheKey, data)
}

// Clear drops the cache
func (t *TokenCache) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(msalCacheKey)
}
