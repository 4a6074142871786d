package main

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const cacheShards = 128

// CachedResponse is an encoded response body with the headers needed to
// replay it.
type CachedResponse struct {
	ContentType  string
	LastModified time.Time
	Body         []byte
}

// ResponseCache is a sharded LRU of encoded responses. Keys embed the
// collection's modification time, so reloaded collections never hit stale
// entries; those simply age out. A nil cache caches nothing.
type ResponseCache struct {
	locks   [cacheShards]sync.Mutex
	lists   [cacheShards]list.List
	content [cacheShards]map[string]*list.Element
	size    int32
	maxSize int32
}

type cacheEntry struct {
	key   string
	value *CachedResponse
}

// NewResponseCache returns a cache holding about maxSize entries, or nil if
// maxSize is not positive.
func NewResponseCache(maxSize int) *ResponseCache {
	if maxSize <= 0 {
		return nil
	}
	rc := &ResponseCache{maxSize: int32(maxSize)}
	for i := range rc.content {
		rc.content[i] = make(map[string]*list.Element)
	}
	return rc
}

func getShard(key string) int {
	return int(xxhash.Sum64String(key) % cacheShards)
}

func (rc *ResponseCache) Get(key string) *CachedResponse {
	if rc == nil {
		return nil
	}
	shard := getShard(key)
	rc.locks[shard].Lock()
	defer rc.locks[shard].Unlock()

	if e, hit := rc.content[shard][key]; hit {
		rc.lists[shard].MoveToFront(e)
		return e.Value.(*cacheEntry).value
	}

	return nil
}

// Put stores value under key. When the cache is full, the least recently
// used entry of the key's shard is evicted, or of the next shard holding
// one, so Len never exceeds the configured size for long.
func (rc *ResponseCache) Put(key string, value *CachedResponse) {
	if rc == nil {
		return
	}
	shard := getShard(key)
	rc.locks[shard].Lock()
	list := &rc.lists[shard]

	if e, hit := rc.content[shard][key]; hit {
		list.MoveToFront(e)
		e.Value.(*cacheEntry).value = value
		rc.locks[shard].Unlock()
		return
	}

	e := list.PushFront(&cacheEntry{key, value})
	rc.content[shard][key] = e
	rc.locks[shard].Unlock()

	// Shards are locked one at a time to stay clear of lock ordering.
	if atomic.AddInt32(&rc.size, 1) <= rc.maxSize {
		return
	}
	for i := 0; i < cacheShards && atomic.LoadInt32(&rc.size) > rc.maxSize; i++ {
		rc.evictOldest((shard+i)%cacheShards, e)
	}
}

func (rc *ResponseCache) evictOldest(shard int, keep *list.Element) {
	rc.locks[shard].Lock()
	defer rc.locks[shard].Unlock()

	oldest := rc.lists[shard].Back()
	if oldest == nil || oldest == keep {
		return
	}
	rc.lists[shard].Remove(oldest)
	delete(rc.content[shard], oldest.Value.(*cacheEntry).key)
	atomic.AddInt32(&rc.size, -1)
}

// Len returns the number of cached entries.
func (rc *ResponseCache) Len() int {
	if rc == nil {
		return 0
	}
	return int(atomic.LoadInt32(&rc.size))
}
