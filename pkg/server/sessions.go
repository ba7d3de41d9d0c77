package server

import (
	"sync"

	"github.com/ecstasoy/editorbridge/pkg/ratelimiter"
	"github.com/ecstasoy/editorbridge/pkg/transport"
)

// sessions numbers requests per connection and drops per-connection state
// when the connection goes away.
type sessions struct {
	transport.NopObserver

	mu      sync.Mutex
	seq     map[string]uint64
	limiter *ratelimiter.KeyedLimiter
}

func newSessions() *sessions {
	return &sessions{seq: make(map[string]uint64)}
}

func (s *sessions) next(connID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[connID]++
	return s.seq[connID]
}

func (s *sessions) ConnectionClosed(id string) {
	s.mu.Lock()
	delete(s.seq, id)
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Forget(id)
	}
}
