package upload

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

// DefaultSessionTTL bounds how long a pending duplicate decision is kept
// before it is discarded.
const DefaultSessionTTL = 30 * time.Minute

// PendingImport holds an import suspended on a duplicate decision, plus the
// cooperative cancellation flag shared with any in-flight commit.
type PendingImport struct {
	Token     string
	FileName  string
	SheetName string
	StartedBy string
	KeepFile  bool
	FileBytes []byte

	// Accepted records, pre-normalization; duplicates not yet removed
	Records []*booking.Booking
	// Deduplicated colliding key values
	DuplicateKeys map[int64]struct{}

	TotalRows      int
	FilteredOut    int
	AlreadyPresent int
	KeySample      []string

	CreatedAt time.Time
	cancelled atomic.Bool
}

// Cancel sets the cooperative cancellation flag. An in-flight commit
// observes it at its next checkpoint.
func (p *PendingImport) Cancel() {
	p.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested
func (p *PendingImport) Cancelled() bool {
	return p.cancelled.Load()
}

// SessionStore keeps pending imports in memory. The console is effectively
// single-user, so process-local state is acceptable here.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*PendingImport
}

// NewSessionStore creates a session store. ttl <= 0 selects DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{ttl: ttl, sessions: make(map[string]*PendingImport)}
}

// Put stores a pending import and assigns it a token
func (s *SessionStore) Put(p *PendingImport) string {
	p.Token = uuid.NewString()
	p.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[p.Token] = p
	return p.Token
}

// Get returns the pending import for a token, or false when it is unknown
// or expired.
func (s *SessionStore) Get(token string) (*PendingImport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	if time.Since(p.CreatedAt) > s.ttl {
		delete(s.sessions, token)
		return nil, false
	}
	return p, true
}

// Delete removes a pending import
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// EvictExpired drops sessions older than the TTL and returns how many were
// removed. Called periodically by the maintenance scheduler.
func (s *SessionStore) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for token, p := range s.sessions {
		if time.Since(p.CreatedAt) > s.ttl {
			delete(s.sessions, token)
			evicted++
		}
	}
	return evicted
}
