package localizer

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache は Avatar をキーにキャラクターごとの Map を保持します。
// チャット切り替え時には Clear で丸ごと捨てるのだ。部分的な無効化はしないのだ。
type Cache struct {
	store *cache.Cache

	mu         sync.RWMutex
	generation uint64
}

// NewCache は Cache を生成します。ttl が 0 以下なら期限切れにはならず、Clear されるまで保持するのだ。
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{store: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{store: cache.New(ttl, 2*ttl)}
}

// Get は Avatar に対応する Map を返します。
func (c *Cache) Get(avatar string) (Map, bool) {
	if avatar == "" {
		return nil, false
	}
	v, ok := c.store.Get(avatar)
	if !ok {
		return nil, false
	}
	m, ok := v.(Map)
	return m, ok
}

// Put は Avatar に対応する Map を保存します。
func (c *Cache) Put(avatar string, m Map) {
	if avatar == "" {
		return
	}
	c.store.Set(avatar, m, cache.DefaultExpiration)
}

// putAt は世代が変わっていなければ保存します。Clear をまたいだ構築結果は捨てるのだ。
func (c *Cache) putAt(gen uint64, avatar string, m Map) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if gen != c.generation {
		return false
	}
	c.Put(avatar, m)
	return true
}

// Clear はすべてのエントリを破棄し、世代を進めます。
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.store.Flush()
}

// Generation は Clear のたびに増える世代番号です。
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Len は保持しているエントリ数を返します。
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
