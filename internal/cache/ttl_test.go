package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(clock *fakeClock) *Cache {
	return New(DefaultPolicy(), WithClock(clock.Now))
}

func TestGet_ReturnsStoredValueUntilTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set(1, ClinicServices, "lasik", nil)

	clock.Advance(DefaultTTL - time.Nanosecond)
	v, ok := c.Get(1, ClinicServices, nil)
	require.True(t, ok)
	assert.Equal(t, "lasik", v)

	clock.Advance(time.Nanosecond)
	_, ok = c.Get(1, ClinicServices, nil)
	assert.False(t, ok, "entry must be absent once now - stored == ttl")
}

func TestGet_ExpiredEntryIsEvictedOnce(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set(1, ClinicServices, "x", nil)
	clock.Advance(DefaultTTL)

	require.Equal(t, 1, c.Len())
	_, ok := c.Get(1, ClinicServices, nil)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.EqualValues(t, 1, c.Stats().Expirations)

	_, ok = c.Get(1, ClinicServices, nil)
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().Expirations)
}

func TestSet_OverwriteResetsTimestampAndTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.SetWithTTL(1, ClinicServices, "old", nil, time.Minute)
	clock.Advance(50 * time.Second)
	c.SetWithTTL(1, ClinicServices, "new", nil, 2*time.Minute)
	clock.Advance(90 * time.Second)

	v, ok := c.Get(1, ClinicServices, nil)
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestPolicy_StableTypesGetLongTTL(t *testing.T) {
	tests := []struct {
		dataType DataType
		want     time.Duration
	}{
		{ContactInfo, StableTTL},
		{ClinicHours, StableTTL},
		{InsuranceInfo, StableTTL},
		{ProviderInfo, StableTTL},
		{ClinicServices, DefaultTTL},
		{ConditionsTreated, DefaultTTL},
		{DataType("unknown"), DefaultTTL},
	}
	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(string(tt.dataType), func(t *testing.T) {
			assert.Equal(t, tt.want, p.TTLFor(tt.dataType))
		})
	}
}

func TestSet_UsesTierTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set(1, ClinicHours, "9-5", nil)
	c.Set(1, ClinicServices, "exams", nil)
	clock.Advance(10 * time.Minute)

	_, ok := c.Get(1, ClinicHours, nil)
	assert.True(t, ok)
	_, ok = c.Get(1, ClinicServices, nil)
	assert.False(t, ok)
}

func TestKey_ParamOrderIndependent(t *testing.T) {
	a := Params{"a": 1, "b": 2, "nested": map[string]any{"x": 1, "y": []int{1, 2}}}
	b := Params{"nested": map[string]any{"y": []int{1, 2}, "x": 1}, "b": 2, "a": 1}
	assert.Equal(t, Key(3, ProviderInfo, a), Key(3, ProviderInfo, b))
	assert.NotEqual(t, Key(3, ProviderInfo, a), Key(3, ProviderInfo, Params{"a": 2, "b": 2}))
	assert.Equal(t, Key(3, ProviderInfo, nil), Key(3, ProviderInfo, Params{}))
}

func TestGet_ParamOrderHitsSameEntry(t *testing.T) {
	c := New(DefaultPolicy())
	c.Set(1, ProviderInfo, "dr. reyes", Params{"a": 1, "b": 2})

	v, ok := c.Get(1, ProviderInfo, Params{"b": 2, "a": 1})
	require.True(t, ok)
	assert.Equal(t, "dr. reyes", v)
}

func TestInvalidateTenant_LeavesOtherTenants(t *testing.T) {
	c := New(DefaultPolicy())
	c.Set(1, ClinicHours, "a", nil)
	c.Set(1, ContactInfo, "b", Params{"k": "v"})
	c.Set(12, ClinicHours, "c", nil)
	c.Set(2, ClinicHours, "d", nil)

	assert.Equal(t, 2, c.InvalidateTenant(1))

	_, ok := c.Get(1, ClinicHours, nil)
	assert.False(t, ok)
	_, ok = c.Get(12, ClinicHours, nil)
	assert.True(t, ok)
	_, ok = c.Get(2, ClinicHours, nil)
	assert.True(t, ok)

	assert.Equal(t, 0, c.InvalidateTenant(1))
}

func TestInvalidateAll(t *testing.T) {
	c := New(DefaultPolicy())
	c.Set(1, ClinicHours, "a", nil)
	c.Set(2, ClinicHours, "b", nil)

	assert.Equal(t, 2, c.InvalidateAll())
	assert.Equal(t, 0, c.Len())
}

func TestSweepExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set(1, ClinicServices, "short", nil)
	c.Set(1, ClinicHours, "long", nil)
	clock.Advance(DefaultTTL + time.Second)

	assert.Equal(t, 1, c.SweepExpired())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.SweepExpired())
}

func TestLookup_TypeMismatchIsMiss(t *testing.T) {
	c := New(DefaultPolicy())
	c.Set(1, ClinicHours, 42, nil)

	_, ok := Lookup[string](c, 1, ClinicHours, nil)
	assert.False(t, ok)

	n, ok := Lookup[int](c, 1, ClinicHours, nil)
	require.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestGetOrLoad_LoadsOncePerKey(t *testing.T) {
	c := New(DefaultPolicy())

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrLoad(context.Background(), c, 1, ClinicHours, nil, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "loaded", r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(len(results)))

	v, err := GetOrLoad(context.Background(), c, 1, ClinicHours, nil, func(context.Context) (string, error) {
		t.Fatal("loader must not run on a hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
}

func TestGetOrLoad_ErrorIsNotCached(t *testing.T) {
	c := New(DefaultPolicy())
	boom := errors.New("store down")

	_, err := GetOrLoad(context.Background(), c, 1, TenantProfile, nil, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(DefaultPolicy())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				params := Params{"i": i % 10}
				c.Set(w%3, ClinicServices, fmt.Sprintf("%d-%d", w, i), params)
				c.Get(w%3, ClinicServices, params)
				if i%50 == 0 {
					c.InvalidateTenant(w % 3)
				}
				if i%70 == 0 {
					c.SweepExpired()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 30)
}

func TestStartStop(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	c.Set(1, ClinicServices, "x", nil)
	clock.Advance(time.Hour)

	c.Start(5 * time.Millisecond)
	c.Start(5 * time.Millisecond)

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
}

type recordingObserver struct {
	mu   sync.Mutex
	hits map[string]int
	miss map[string]int
}

func (o *recordingObserver) ObserveLookup(dataType string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits[dataType]++
	} else {
		o.miss[dataType]++
	}
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{hits: map[string]int{}, miss: map[string]int{}}
	c := New(DefaultPolicy(), WithObserver(obs))

	c.Get(1, ClinicHours, nil)
	c.Set(1, ClinicHours, "x", nil)
	c.Get(1, ClinicHours, nil)

	assert.Equal(t, 1, obs.hits["clinic_hours"])
	assert.Equal(t, 1, obs.miss["clinic_hours"])
	assert.EqualValues(t, 1, c.Stats().Hits)
	assert.EqualValues(t, 1, c.Stats().Misses)
}
