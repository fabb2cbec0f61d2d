package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process. It backs tests and runs
// where Redis is disabled; published messages go to local subscribers.
type MemoryCache struct {
	mu     sync.Mutex
	now    func() time.Time
	data   map[string]memoryItem
	lists  map[string][][]byte
	sets   map[string]map[string]struct{}
	subs   map[string][]chan []byte
	closed bool
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:   time.Now,
		data:  make(map[string]memoryItem),
		lists: make(map[string][][]byte),
		sets:  make(map[string]map[string]struct{}),
		subs:  make(map[string][]chan []byte),
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item := memoryItem{value: data}
	if expiration > 0 {
		item.expireAt = mc.now().Add(expiration)
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.data[key]
	if ok && item.expired(mc.now()) {
		delete(mc.data, key)
		ok = false
	}
	mc.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return decode(item.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.data, key)
		delete(mc.lists, key)
		delete(mc.sets, key)
	}
	return nil
}

func (mc *MemoryCache) PushCapped(_ context.Context, key string, value interface{}, max int64) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	list := append([][]byte{data}, mc.lists[key]...)
	if max > 0 && int64(len(list)) > max {
		list = list[:max]
	}
	mc.lists[key] = list
	return nil
}

// Range follows LRANGE semantics, including negative indexes.
func (mc *MemoryCache) Range(_ context.Context, key string, start, stop int64) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	list := mc.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []string{}, nil
	}
	out := make([]string, 0, stop-start+1)
	for _, v := range list[start : stop+1] {
		out = append(out, string(v))
	}
	return out, nil
}

func (mc *MemoryCache) Publish(_ context.Context, channel string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, ch := range mc.subs[channel] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving messages published on channel.
// Slow subscribers miss messages once their buffer is full.
func (mc *MemoryCache) Subscribe(channel string, buffer int) <-chan []byte {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	ch := make(chan []byte, buffer)
	if mc.closed {
		close(ch)
		return ch
	}
	mc.subs[channel] = append(mc.subs[channel], ch)
	return ch
}

func (mc *MemoryCache) SetAdd(_ context.Context, key string, members ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	set, ok := mc.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		mc.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (mc *MemoryCache) SetRemove(_ context.Context, key string, members ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, m := range members {
		delete(mc.sets[key], m)
	}
	return nil
}

// SetMembers returns the members sorted.
func (mc *MemoryCache) SetMembers(_ context.Context, key string) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := make([]string, 0, len(mc.sets[key]))
	for m := range mc.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Close closes subscriber channels.
func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return nil
	}
	mc.closed = true
	for _, chans := range mc.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	mc.subs = nil
	return nil
}
