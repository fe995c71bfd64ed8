package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RenderedEntry is one cached rendering result
type RenderedEntry struct {
	Output    string
	CreatedAt time.Time
	LastUsed  time.Time
	Size      int64
}

// RenderCache caches rendered output keyed by a hash of the source text.
// Entries older than maxAge are dropped by a background loop; when the cache
// is full the least recently used entry is evicted.
type RenderCache struct {
	cache       map[string]*RenderedEntry
	mutex       sync.Mutex
	maxEntries  int           // Maximum number of entries
	maxAge      time.Duration // Maximum age of entries
	cleanupTick time.Duration // How often to run cleanup
	stopCleanup chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	cachedSize  int64
	hits        int64
	misses      int64
}

// NewRenderCache creates a cache and starts its cleanup goroutine. Call Stop to release it.
func NewRenderCache(maxEntries int, maxAge time.Duration) *RenderCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	rc := &RenderCache{
		cache:       make(map[string]*RenderedEntry),
		maxEntries:  maxEntries,
		maxAge:      maxAge,
		cleanupTick: time.Minute,
		stopCleanup: make(chan struct{}),
		done:        make(chan struct{}),
	}
	if maxAge > 0 && maxAge < rc.cleanupTick {
		rc.cleanupTick = maxAge
	}
	go rc.cleanupLoop()
	return rc
}

// Key returns the cache key for src
func Key(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached output for src
func (rc *RenderCache) Get(src string) (string, bool) {
	key := Key(src)
	now := time.Now()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	entry, exists := rc.cache[key]
	if !exists || rc.expired(entry, now) {
		rc.misses++
		return "", false
	}
	rc.hits++
	entry.LastUsed = now
	return entry.Output, true
}

// Set stores output for src
func (rc *RenderCache) Set(src, output string) {
	key := Key(src)
	now := time.Now()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	if old, exists := rc.cache[key]; exists {
		rc.cachedSize -= old.Size
	} else if len(rc.cache) >= rc.maxEntries {
		rc.evictOldest()
	}
	entry := &RenderedEntry{
		Output:    output,
		CreatedAt: now,
		LastUsed:  now,
		Size:      int64(len(output)),
	}
	rc.cache[key] = entry
	rc.cachedSize += entry.Size
}

// Len returns the number of cached entries
func (rc *RenderCache) Len() int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return len(rc.cache)
}

// Clear removes all entries from the cache
func (rc *RenderCache) Clear() {
	rc.mutex.Lock()
	rc.cache = make(map[string]*RenderedEntry)
	rc.cachedSize = 0
	rc.mutex.Unlock()
}

// GetCachedSizeHuman returns the cached bytes in a readable form
func (rc *RenderCache) GetCachedSizeHuman() string {
	rc.mutex.Lock()
	size := rc.cachedSize
	rc.mutex.Unlock()
	if size < 1024 {
		return fmt.Sprintf("%d bytes", size)
	}
	if size < 1024*1024 {
		return fmt.Sprintf("%.2f KB", float64(size)/1024.0)
	}
	return fmt.Sprintf("%.2f MB", float64(size)/(1024.0*1024.0))
}

// Stats returns cache statistics
func (rc *RenderCache) Stats() map[string]interface{} {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	hitRate := 0.0
	if total := rc.hits + rc.misses; total > 0 {
		hitRate = float64(rc.hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"entries":     len(rc.cache),
		"max_entries": rc.maxEntries,
		"max_age":     rc.maxAge.String(),
		"size":        rc.cachedSize,
		"hits":        rc.hits,
		"misses":      rc.misses,
		"hit_rate":    hitRate,
	}
}

// Stop shuts down the cleanup goroutine and waits for it to exit
func (rc *RenderCache) Stop() {
	rc.stopOnce.Do(func() { close(rc.stopCleanup) })
	<-rc.done
}

func (rc *RenderCache) expired(entry *RenderedEntry, now time.Time) bool {
	return rc.maxAge > 0 && now.Sub(entry.CreatedAt) > rc.maxAge
}

// evictOldest removes the least recently used entry, caller holds the lock
func (rc *RenderCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range rc.cache {
		if oldestKey == "" || entry.LastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastUsed
		}
	}
	if oldestKey != "" {
		rc.cachedSize -= rc.cache[oldestKey].Size
		delete(rc.cache, oldestKey)
	}
}

func (rc *RenderCache) cleanupLoop() {
	defer close(rc.done)
	ticker := time.NewTicker(rc.cleanupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.stopCleanup:
			return
		}
	}
}

// cleanup removes expired entries
func (rc *RenderCache) cleanup() {
	if rc.maxAge <= 0 {
		return
	}
	now := time.Now()
	removed := 0

	rc.mutex.Lock()
	for key, entry := range rc.cache {
		if rc.expired(entry, now) {
			rc.cachedSize -= entry.Size
			delete(rc.cache, key)
			removed++
		}
	}
	rc.mutex.Unlock()

	if removed > 0 {
		log.WithField("removed", removed).Debug("RenderCache: cleanup removed expired entries")
	}
}
