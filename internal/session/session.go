// Package session tracks who is acting and which issues they have already
// viewed.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hcl-hz/PMS-board/internal/models"
)

// Session is one viewer's session: the actor it was opened for plus an
// idempotency set of viewed issue ids. The actor never changes.
type Session struct {
	ID string

	actor  *models.Actor
	mu     sync.Mutex
	viewed map[string]struct{}
}

// New creates a session with a fresh id. actor may be nil for anonymous viewers.
func New(actor *models.Actor) *Session {
	return &Session{
		ID:     uuid.NewString(),
		actor:  actor,
		viewed: make(map[string]struct{}),
	}
}

// Actor returns the actor the session was opened for, or nil when anonymous.
func (s *Session) Actor() *models.Actor { return s.actor }

// belongsTo reports whether the session was opened for actor.
func (s *Session) belongsTo(actor *models.Actor) bool {
	if s.actor == nil || actor == nil {
		return s.actor == nil && actor == nil
	}
	return s.actor.ID == actor.ID
}

// MarkViewed records a view of issueID and reports whether it is the first
// one in this session.
func (s *Session) MarkViewed(issueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.viewed[issueID]; ok {
		return false
	}
	s.viewed[issueID] = struct{}{}
	return true
}

// Forget removes issueID from the viewed set.
func (s *Session) Forget(issueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewed, issueID)
}

const (
	// DefaultTTL is how long an unused session stays live.
	DefaultTTL = 30 * time.Minute
	// DefaultCapacity bounds the live sessions; the least recently used go first.
	DefaultCapacity = 10000
)

// Registry holds live sessions keyed by id. Sessions expire after a period
// without use and the oldest are evicted once the registry is full.
type Registry struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

// NewRegistry creates an empty registry. Non-positive arguments fall back to
// DefaultCapacity and DefaultTTL.
func NewRegistry(capacity int, ttl time.Duration) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{sessions: expirable.NewLRU[string, *Session](capacity, nil, ttl)}
}

// Get returns the live session for id when it was opened for the same actor.
// Otherwise, including for an empty, unknown or expired id, it opens a new
// session for actor. Each hit restarts the session's expiry.
func (r *Registry) Get(id string, actor *models.Actor) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if s, ok := r.sessions.Get(id); ok && s.belongsTo(actor) {
			r.sessions.Add(id, s)
			return s
		}
	}
	s := New(actor)
	r.sessions.Add(s.ID, s)
	return s
}
