package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Params narrows a cached lookup. Key order never affects the cache key.
type Params map[string]any

// Observer receives one call per Get.
type Observer interface {
	ObserveLookup(dataType string, hit bool)
}

type entry struct {
	tenantID int
	data     any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) validAt(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

type Stats struct {
	Size        int   `json:"size"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Expirations int64 `json:"expirations"`
}

// Cache is an in-process, tenant-scoped TTL cache. Expired entries are
// dropped on the Get that observes them; Start runs an optional sweeper.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	policy   TTLPolicy
	now      func() time.Time
	observer Observer
	loads    singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	expirations atomic.Int64

	sweepMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

func New(policy TTLPolicy, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds "tenant:<id>:<type>:<params hash>".
func Key(tenantID int, t DataType, params Params) string {
	return "tenant:" + strconv.Itoa(tenantID) + ":" + string(t) + ":" + hashParams(params)
}

func hashParams(params Params) string {
	if len(params) == 0 {
		return "-"
	}
	// encoding/json writes map keys in sorted order, nested maps included
	raw, err := json.Marshal(map[string]any(params))
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", map[string]any(params)))
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}

func (c *Cache) Get(tenantID int, t DataType, params Params) (any, bool) {
	key := Key(tenantID, t, params)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !e.validAt(c.now()) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && !cur.validAt(c.now()) {
			delete(c.entries, key)
			c.expirations.Add(1)
		}
		c.mu.Unlock()
		ok = false
	}

	c.observe(t, ok)
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Lookup is a typed Get. A stored value of another type counts as a miss.
func Lookup[T any](c *Cache, tenantID int, t DataType, params Params) (T, bool) {
	var zero T
	v, ok := c.Get(tenantID, t, params)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (c *Cache) Set(tenantID int, t DataType, data any, params Params) {
	c.SetWithTTL(tenantID, t, data, params, 0)
}

// SetWithTTL stores data with an explicit ttl. A non-positive ttl uses the
// policy's duration for t.
func (c *Cache) SetWithTTL(tenantID int, t DataType, data any, params Params, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.policy.TTLFor(t)
	}
	key := Key(tenantID, t, params)

	c.mu.Lock()
	c.entries[key] = entry{tenantID: tenantID, data: data, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// GetOrLoad returns the cached value or calls load once per key, even with
// concurrent callers. Only successful loads are stored.
func GetOrLoad[T any](ctx context.Context, c *Cache, tenantID int, t DataType, params Params, load func(context.Context) (T, error)) (T, error) {
	if v, ok := Lookup[T](c, tenantID, t, params); ok {
		return v, nil
	}

	v, err, _ := c.loads.Do(Key(tenantID, t, params), func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(tenantID, t, loaded, params)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

func (c *Cache) InvalidateTenant(tenantID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.tenantID == tenantID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]entry)
	return removed
}

func (c *Cache) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !e.validAt(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expirations.Add(int64(removed))
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Size:        c.Len(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Expirations: c.expirations.Load(),
	}
}

// Start launches the background sweeper. Calling Start while a sweeper is
// running is a no-op.
func (c *Cache) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}

	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.sweepLoop(interval, c.stop, c.done)
}

// Stop halts the sweeper and waits for it to exit. Safe to call repeatedly.
func (c *Cache) Stop() {
	c.sweepMu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.sweepMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Cache) sweepLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.SweepExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("🧹 cache sweep")
			}
		case <-stop:
			return
		}
	}
}

func (c *Cache) observe(t DataType, hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.observer != nil {
		c.observer.ObserveLookup(string(t), hit)
	}
}
