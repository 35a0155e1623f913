package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock returns the same instant on every call.
func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestUnknownSession(t *testing.T) {
	s := NewMemoryStore()

	assert.Empty(t, s.History("nope"))
	assert.NotNil(t, s.History("nope"))
	assert.Empty(t, s.Recent("nope", 5))
	assert.Equal(t, 0, s.Count("nope"))
	assert.False(t, s.Clear("nope"))
	assert.Empty(t, s.List())
}

func TestAppendAndRecent(t *testing.T) {
	s := NewMemoryStore(WithClock(steppingClock()))

	for i := 0; i < 7; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.Append("s1", role, fmt.Sprintf("m%d", i))
	}

	require.Equal(t, 7, s.Count("s1"))
	require.Len(t, s.History("s1"), 7)

	t.Run("last k in append order", func(t *testing.T) {
		recent := s.Recent("s1", 3)
		require.Len(t, recent, 3)
		assert.Equal(t, "m4", recent[0].Content)
		assert.Equal(t, "m5", recent[1].Content)
		assert.Equal(t, "m6", recent[2].Content)
		assert.Equal(t, RoleUser, recent[2].Role)
	})

	t.Run("k larger than history returns all", func(t *testing.T) {
		assert.Len(t, s.Recent("s1", 50), 7)
	})

	t.Run("zero returns none", func(t *testing.T) {
		assert.Empty(t, s.Recent("s1", 0))
	})
}

func TestTimestampsStrictlyOrdered(t *testing.T) {
	s := NewMemoryStore(WithClock(fixedClock()))
	for i := 0; i < 5; i++ {
		s.Append("s1", RoleUser, "x")
	}

	msgs := s.History("s1")
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp), "message %d not after %d", i, i-1)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewMemoryStore()
	s.Append("s1", RoleUser, "original")

	h := s.History("s1")
	h[0].Content = "mutated"

	assert.Equal(t, "original", s.History("s1")[0].Content)
}

func TestClear(t *testing.T) {
	s := NewMemoryStore()
	s.Append("s1", RoleUser, "hello")

	assert.True(t, s.Clear("s1"))
	assert.False(t, s.Clear("s1"))
	assert.Empty(t, s.History("s1"))
	assert.Empty(t, s.List())
}

func TestList(t *testing.T) {
	s := NewMemoryStore(WithClock(steppingClock()))
	s.Append("a", RoleUser, "1")
	s.Append("b", RoleUser, "1")
	s.Append("a", RoleAssistant, "2")

	list := s.List()
	require.Len(t, list, 2)

	assert.Equal(t, "a", list[0].SessionID)
	assert.Equal(t, 2, list[0].MessageCount)
	assert.True(t, list[0].UpdatedAt.After(list[0].CreatedAt))

	assert.Equal(t, "b", list[1].SessionID)
	assert.Equal(t, 1, list[1].MessageCount)
	assert.Equal(t, list[1].CreatedAt, list[1].UpdatedAt)
}

func TestMaxMessages(t *testing.T) {
	s := NewMemoryStore(WithMaxMessages(3), WithClock(steppingClock()))
	for i := 0; i < 5; i++ {
		s.Append("s1", RoleUser, fmt.Sprintf("m%d", i))
	}

	h := s.History("s1")
	require.Len(t, h, 3)
	assert.Equal(t, "m2", h[0].Content)
	assert.Equal(t, "m4", h[2].Content)

	// created_at follows the oldest stored message once trimmed
	sum := s.List()[0]
	assert.Equal(t, 3, sum.MessageCount)
	assert.Equal(t, h[0].Timestamp, sum.CreatedAt)
	assert.Equal(t, h[2].Timestamp, sum.UpdatedAt)
}

func TestMaxSessionsEvictsLeastRecentlyUpdated(t *testing.T) {
	s := NewMemoryStore(WithMaxSessions(2), WithClock(steppingClock()))
	s.Append("a", RoleUser, "1")
	s.Append("b", RoleUser, "1")
	s.Append("a", RoleUser, "2")
	s.Append("c", RoleUser, "1")

	assert.Equal(t, 0, s.Count("b"))
	assert.Equal(t, 2, s.Count("a"))
	assert.Equal(t, 1, s.Count("c"))
	assert.Len(t, s.List(), 2)
}

func TestUnlimited(t *testing.T) {
	s := NewMemoryStore(WithMaxMessages(0), WithMaxSessions(0))
	for i := 0; i < DefaultMaxMessages+10; i++ {
		s.Append("s1", RoleUser, "x")
	}
	assert.Equal(t, DefaultMaxMessages+10, s.Count("s1"))
}

func TestConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(WithMaxMessages(0))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("shared", RoleUser, fmt.Sprintf("%d-%d", w, i))
				_ = s.Recent("shared", 10)
				_ = s.List()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, s.Count("shared"))
	msgs := s.History("shared")
	for i := 1; i < len(msgs); i++ {
		require.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp))
	}
}
