package playground

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store keeps sessions in memory and drops them after ttl without use.
type Store struct {
	sessions sync.Map // map[id]*Session
	ttl      time.Duration
	api      API
	settings Settings
	now      func() time.Time
}

func NewStore(api API, settings Settings, ttl time.Duration) *Store {
	return &Store{
		api:      api,
		settings: settings,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a live session and marks it used.
func (s *Store) Get(id string) (*Session, bool) {
	val, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}

	sess := val.(*Session)
	now := s.now()
	if s.ttl > 0 && now.Sub(sess.idleSince()) > s.ttl {
		s.drop(id, sess)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

func (s *Store) Create() *Session {
	sess := NewSession(uuid.NewString(), s.api, s.settings)
	sess.now = s.now
	sess.touch(s.now())
	s.sessions.Store(sess.ID, sess)
	return sess
}

func (s *Store) Len() int {
	n := 0
	s.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	dropped := 0
	s.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*Session)
		if now.Sub(sess.idleSince()) > s.ttl {
			s.drop(key.(string), sess)
			dropped++
		}
		return true
	})
	return dropped
}

// Run sweeps periodically until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("dropped", n).Msg("expired playground sessions")
			}
		}
	}
}

func (s *Store) drop(id string, sess *Session) {
	if s.sessions.CompareAndDelete(id, sess) {
		sess.Close()
	}
}
