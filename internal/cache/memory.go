package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with TTL support
type MemoryCache struct {
	items   map[string]*memoryItem
	mu      sync.RWMutex
	maxSize int
	stopCh  chan struct{}
	once    sync.Once
}

type memoryItem struct {
	data       []byte
	expiration time.Time
	accessed   time.Time
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 10000
	}

	mc := &MemoryCache{
		items:   make(map[string]*memoryItem),
		maxSize: maxSize,
		stopCh:  make(chan struct{}),
	}

	go mc.cleanupLoop()

	return mc
}

// Get retrieves a value, unmarshaling it into dest
func (mc *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, exists := mc.items[key]
	if !exists || time.Now().After(item.expiration) {
		if exists {
			delete(mc.items, key)
		}
		mc.mu.Unlock()
		return ErrMiss
	}
	item.accessed = time.Now()
	data := item.data
	mc.mu.Unlock()

	return json.Unmarshal(data, dest)
}

// Set stores a value with a TTL
func (mc *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.items) >= mc.maxSize {
		mc.evictOldest()
	}

	mc.items[key] = &memoryItem{
		data:       data,
		expiration: time.Now().Add(ttl),
		accessed:   time.Now(),
	}
	return nil
}

// Delete removes a key
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.items, key)
	return nil
}

// Close stops the cleanup goroutine
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stopCh) })
	return nil
}

// evictOldest removes the least recently accessed item. Caller holds the lock.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, item := range mc.items {
		if oldestKey == "" || item.accessed.Before(oldest) {
			oldestKey = key
			oldest = item.accessed
		}
	}
	if oldestKey != "" {
		delete(mc.items, oldestKey)
	}
}

func (mc *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for key, item := range mc.items {
				if now.After(item.expiration) {
					delete(mc.items, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
