// Package cache はプレゼンス解決結果の短期TTLキャッシュを提供する。
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/presenceman/internal/model"
)

// StatusCache はUserStatusのキャッシュ操作のインターフェース。
// テスト時に決定的なクロックを持つ実装に差し替え可能。
type StatusCache interface {
	// Get は指定キーのUserStatusを返す。TTL超過エントリは存在しない扱いとなる。
	Get(key string) (model.UserStatus, bool)
	// Put は指定キーにUserStatusを格納する。既存エントリは上書きされる。
	Put(key string, status model.UserStatus)
}

// Key はキャッシュキーを構築する。
// 明示メソッド指定と自動選択は独立してキャッシュされる。
func Key(userID int64, method model.PresenceMethod) string {
	if method == "" {
		method = model.MethodAuto
	}
	return fmt.Sprintf("%d:%s", userID, method)
}

// entry はキャッシュエントリ。格納時刻を保持し、読み取り時に鮮度を検査する。
type entry struct {
	status   model.UserStatus
	storedAt time.Time
}

// TTLCache はmutexで保護されたインメモリのTTLキャッシュ。
// 期限切れエントリはGet時に存在しない扱いとし、次回Put時に上書きされる
// （遅延削除。バックグラウンドでの能動的な削除は行わない）。
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache は指定TTLのTTLCacheを生成する。
// nowがnilの場合はtime.Nowを使用する。テストでは固定クロックを注入する。
func NewTTLCache(ttl time.Duration, now func() time.Time) *TTLCache {
	if now == nil {
		now = time.Now
	}
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

// Get は指定キーのUserStatusを返す。
// エントリが存在しない、またはTTLを超過している場合はfalseを返す。
func (c *TTLCache) Get(key string) (model.UserStatus, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return model.UserStatus{}, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		return model.UserStatus{}, false
	}
	return e.status, true
}

// Put は指定キーにUserStatusを格納する。
func (c *TTLCache) Put(key string, status model.UserStatus) {
	c.mu.Lock()
	c.entries[key] = entry{status: status, storedAt: c.now()}
	c.mu.Unlock()
}
