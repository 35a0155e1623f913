package clips

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestPutGet(t *testing.T) {
	s := New(Config{})

	id := s.Put([]byte("mp3"), "audio/mpeg")
	require.NotEmpty(t, id)

	c, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, []byte("mp3"), c.Data)
	assert.Equal(t, "audio/mpeg", c.ContentType)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestIDsAreUnique(t *testing.T) {
	s := New(Config{})
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := s.Put(nil, "audio/mpeg")
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestExpiry(t *testing.T) {
	clock := newClock()
	s := New(Config{TTL: time.Minute, Now: clock.Now})

	id := s.Put([]byte("a"), "audio/mpeg")
	clock.Advance(59 * time.Second)
	_, ok := s.Get(id)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestSweep(t *testing.T) {
	clock := newClock()
	s := New(Config{TTL: time.Minute, Now: clock.Now})

	s.Put([]byte("a"), "audio/mpeg")
	s.Put([]byte("b"), "audio/mpeg")
	clock.Advance(2 * time.Minute)
	s.Put([]byte("c"), "audio/mpeg")

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	clock := newClock()
	s := New(Config{TTL: time.Hour, MaxEntries: 2, Now: clock.Now})

	first := s.Put([]byte("1"), "audio/mpeg")
	clock.Advance(time.Second)
	second := s.Put([]byte("2"), "audio/mpeg")
	clock.Advance(time.Second)
	third := s.Put([]byte("3"), "audio/mpeg")

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(first)
	assert.False(t, ok, "oldest clip should be evicted")
	_, ok = s.Get(second)
	assert.True(t, ok)
	_, ok = s.Get(third)
	assert.True(t, ok)
}

func TestMaxEntriesPrefersExpired(t *testing.T) {
	clock := newClock()
	s := New(Config{TTL: time.Minute, MaxEntries: 2, Now: clock.Now})

	old := s.Put([]byte("old"), "audio/mpeg")
	clock.Advance(2 * time.Minute)
	live := s.Put([]byte("live"), "audio/mpeg")
	clock.Advance(time.Second)
	s.Put([]byte("new"), "audio/mpeg")

	_, ok := s.Get(old)
	assert.False(t, ok)
	_, ok = s.Get(live)
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := New(Config{MaxEntries: 50})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := s.Put([]byte{byte(j)}, "audio/mpeg")
				s.Get(id)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, s.Len(), 50)
}
