// Package clips keeps synthesized audio in memory for a short time so it
// can be served back by URL.
package clips

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 256
)

// Clip is one stored audio file.
type Clip struct {
	ID          string
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// Config bounds the cache.
type Config struct {
	TTL        time.Duration
	MaxEntries int

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// Store is a concurrency-safe TTL cache of clips keyed by random UUIDs.
type Store struct {
	cfg Config

	mu    sync.Mutex
	clips map[string]*Clip
}

// New creates a Store.
func New(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{cfg: cfg, clips: make(map[string]*Clip)}
}

// Put stores data and returns its id. When the store is full, expired
// clips are dropped first, then the oldest clip.
func (s *Store) Put(data []byte, contentType string) string {
	now := s.cfg.Now()
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clips) >= s.cfg.MaxEntries {
		s.gcLocked(now)
		for len(s.clips) >= s.cfg.MaxEntries {
			s.evictOldestLocked()
		}
	}

	s.clips[id] = &Clip{
		ID:          id,
		Data:        data,
		ContentType: contentType,
		CreatedAt:   now,
	}
	return id
}

// Get returns a live clip.
func (s *Store) Get(id string) (*Clip, bool) {
	now := s.cfg.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clips[id]
	if !ok {
		return nil, false
	}
	if s.expired(c, now) {
		delete(s.clips, id)
		return nil, false
	}
	return c, true
}

// Len returns the number of stored clips, including expired ones not yet
// collected.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

// Sweep drops every expired clip and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.cfg.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.clips)
	s.gcLocked(now)
	return before - len(s.clips)
}

func (s *Store) expired(c *Clip, now time.Time) bool {
	return now.Sub(c.CreatedAt) >= s.cfg.TTL
}

func (s *Store) gcLocked(now time.Time) {
	for id, c := range s.clips {
		if s.expired(c, now) {
			delete(s.clips, id)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldest *Clip
	for _, c := range s.clips {
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest != nil {
		delete(s.clips, oldest.ID)
	}
}
