package auth

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TokenBlacklist 保存已登出 Token 的 jti，直到 Token 自身过期。
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// MemoryBlacklist is a process-local TokenBlacklist for single-instance
// deployments without Redis. Entries expire with their token.
type MemoryBlacklist struct {
	cache *ttlcache.Cache[string, struct{}]
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		cache: ttlcache.New[string, struct{}](
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
	}
}

func (m *MemoryBlacklist) Add(_ context.Context, jti string, originalTokenExpTime time.Time) error {
	// 过期项按到期顺序出队，无需扫描全部
	m.cache.DeleteExpired()

	ttl := time.Until(originalTokenExpTime)
	if ttl <= 0 {
		return nil // Token 已过期
	}
	m.cache.Set(jti, struct{}{}, ttl)
	return nil
}

func (m *MemoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.cache.Has(jti), nil
}
